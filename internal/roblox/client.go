// Package roblox wraps the Roblox web API lookups the bot needs:
// resolving usernames, reading profiles, listing group memberships, and
// fetching avatar thumbnails.
package roblox

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jaxron/axonet/middleware/retry"
	"github.com/jaxron/axonet/middleware/singleflight"
	"github.com/jaxron/axonet/pkg/client"
	"github.com/jaxron/roapi.go/pkg/api"
	"github.com/jaxron/roapi.go/pkg/api/resources/groups"
	"github.com/jaxron/roapi.go/pkg/api/resources/thumbnails"
	"github.com/jaxron/roapi.go/pkg/api/resources/users"
	apiTypes "github.com/jaxron/roapi.go/pkg/api/types"
)

var ErrUserNotFound = errors.New("roblox user not found")

// Profile is the subset of a Roblox user profile the bot reads.
type Profile struct {
	ID          uint64
	Username    string
	DisplayName string
	Description string
	Created     time.Time
	IsBanned    bool
}

// Group is one group membership with the member's role in it.
type Group struct {
	ID   uint64
	Name string
	Role string
}

type Client struct {
	roAPI *api.API
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	roAPI := api.New(nil,
		client.WithMarshalFunc(sonic.Marshal),
		client.WithUnmarshalFunc(sonic.Unmarshal),
		client.WithTimeout(timeout),
		client.WithMiddleware(retry.New(3, 500*time.Millisecond, 2*time.Second)),
		client.WithMiddleware(singleflight.New()),
	)
	return &Client{roAPI: roAPI}
}

func (c *Client) UserByID(ctx context.Context, id uint64) (Profile, error) {
	info, err := c.roAPI.Users().GetUserByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		ID:          info.ID,
		Username:    info.Name,
		DisplayName: info.DisplayName,
		Description: info.Description,
		Created:     info.Created,
		IsBanned:    info.IsBanned,
	}, nil
}

// UserByUsername resolves a username to a full profile. Returns
// ErrUserNotFound when no account matches.
func (c *Client) UserByUsername(ctx context.Context, username string) (Profile, error) {
	builder := users.NewGetUsersByUsernamesBuilder(username)
	res, err := c.roAPI.Users().GetUsersByUsernames(ctx, builder.Build())
	if err != nil {
		return Profile{}, err
	}
	if len(res.Data) == 0 {
		return Profile{}, ErrUserNotFound
	}
	return c.UserByID(ctx, res.Data[0].ID)
}

// UserGroups lists the user's group memberships.
func (c *Client) UserGroups(ctx context.Context, id uint64) ([]Group, error) {
	builder := groups.NewUserGroupRolesBuilder(id)
	res, err := c.roAPI.Groups().GetUserGroupRoles(ctx, builder.Build())
	if err != nil {
		return nil, err
	}

	memberships := make([]Group, 0, len(res.Data))
	for _, entry := range res.Data {
		memberships = append(memberships, Group{
			ID:   entry.Group.ID,
			Name: entry.Group.Name,
			Role: entry.Role.Name,
		})
	}
	return memberships, nil
}

// GroupsAmong filters the user's memberships down to the given group IDs.
func (c *Client) GroupsAmong(ctx context.Context, id uint64, groupIDs []uint64) ([]Group, error) {
	memberships, err := c.UserGroups(ctx, id)
	if err != nil {
		return nil, err
	}
	wanted := make(map[uint64]bool, len(groupIDs))
	for _, groupID := range groupIDs {
		wanted[groupID] = true
	}

	var matched []Group
	for _, membership := range memberships {
		if wanted[membership.ID] {
			matched = append(matched, membership)
		}
	}
	return matched, nil
}

// AvatarURL fetches the user's headshot thumbnail URL, or "" when the
// render is not ready.
func (c *Client) AvatarURL(ctx context.Context, id uint64) (string, error) {
	requests := thumbnails.NewBatchThumbnailsBuilder()
	requests.AddRequest(apiTypes.ThumbnailRequest{
		Type:      apiTypes.AvatarHeadShotType,
		TargetID:  id,
		RequestID: strconv.FormatUint(id, 10),
		Size:      apiTypes.Size420x420,
		Format:    apiTypes.PNG,
	})

	res, err := c.roAPI.Thumbnails().GetBatchThumbnails(ctx, requests.Build())
	if err != nil {
		return "", err
	}
	for _, response := range res.Data {
		if response.TargetID == id && response.State == apiTypes.ThumbnailStateCompleted && response.ImageURL != nil {
			return *response.ImageURL, nil
		}
	}
	return "", nil
}
