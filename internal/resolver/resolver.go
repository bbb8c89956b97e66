// Package resolver joins Discord identities to Roblox identities and to the
// moderation ledger, answering "what do we know about this person".
package resolver

import (
	"context"
	"database/sql"
	"errors"

	"warden/internal/moderation"
	"warden/internal/roblox"
	"warden/internal/storage"
)

const recentHistoryLimit = 5

// PlayerLookup is the Roblox read surface CheckPlayer needs.
// *roblox.Client satisfies it.
type PlayerLookup interface {
	UserByUsername(ctx context.Context, username string) (roblox.Profile, error)
	GroupsAmong(ctx context.Context, id uint64, groupIDs []uint64) ([]roblox.Group, error)
	AvatarURL(ctx context.Context, id uint64) (string, error)
}

type Resolver struct {
	ledger *moderation.Ledger
	store  *storage.Store
	lookup PlayerLookup
}

// Summary aggregates a target's active marks and most recent cases.
type Summary struct {
	Warnings      int
	CommunityBans int
	GameBans      int
	Recent        []moderation.Action
}

func New(ledger *moderation.Ledger, store *storage.Store, lookup PlayerLookup) *Resolver {
	return &Resolver{ledger: ledger, store: store, lookup: lookup}
}

func (r *Resolver) Summarize(ctx context.Context, guildID, targetID string) (Summary, error) {
	var summary Summary
	var err error

	if summary.Warnings, err = r.ledger.CountActive(ctx, guildID, targetID, moderation.KindWarning); err != nil {
		return Summary{}, err
	}
	if summary.CommunityBans, err = r.ledger.CountActive(ctx, guildID, targetID, moderation.KindCommunityBan); err != nil {
		return Summary{}, err
	}
	if summary.GameBans, err = r.ledger.CountActive(ctx, guildID, targetID, moderation.KindGameBan); err != nil {
		return Summary{}, err
	}
	summary.Recent, err = r.ledger.History(ctx, guildID, moderation.Filter{TargetID: targetID}, recentHistoryLimit)
	if err != nil {
		return Summary{}, err
	}
	return summary, nil
}

// RobloxIdentity returns the Roblox account linked to a Discord user, if
// any.
func (r *Resolver) RobloxIdentity(ctx context.Context, discordID string) (storage.Profile, bool, error) {
	profile, err := r.store.GetProfile(ctx, discordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Profile{}, false, nil
		}
		return storage.Profile{}, false, err
	}
	return profile, profile.RobloxID != nil, nil
}

// DiscordIdentity returns the Discord user linked to a Roblox account, if
// any.
func (r *Resolver) DiscordIdentity(ctx context.Context, robloxID uint64) (storage.Profile, bool, error) {
	return r.store.ProfileByRobloxID(ctx, robloxID)
}

// PlayerReport is everything known about a Roblox player: their profile,
// community group memberships, and, when a verified Discord link exists,
// their moderation summary in the guild.
type PlayerReport struct {
	Profile   roblox.Profile
	AvatarURL string
	Groups    []roblox.Group
	Linked    *storage.Profile
	Summary   *Summary
}

func (r *Resolver) CheckPlayer(ctx context.Context, guildID, username string, communityGroupIDs []uint64) (PlayerReport, error) {
	profile, err := r.lookup.UserByUsername(ctx, username)
	if err != nil {
		return PlayerReport{}, err
	}

	report := PlayerReport{Profile: profile}
	if report.Groups, err = r.lookup.GroupsAmong(ctx, profile.ID, communityGroupIDs); err != nil {
		return PlayerReport{}, err
	}
	// Thumbnail is cosmetic, a failed render never fails the report.
	report.AvatarURL, _ = r.lookup.AvatarURL(ctx, profile.ID)

	linked, found, err := r.store.ProfileByRobloxID(ctx, profile.ID)
	if err != nil {
		return PlayerReport{}, err
	}
	if found {
		report.Linked = &linked
		summary, err := r.Summarize(ctx, guildID, linked.DiscordID)
		if err != nil {
			return PlayerReport{}, err
		}
		report.Summary = &summary
	}
	return report, nil
}
