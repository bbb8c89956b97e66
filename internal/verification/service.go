// Package verification implements the Roblox account linking flow: the bot
// hands the user a code, the user pastes it into their Roblox profile
// description, and the bot confirms it before linking the accounts.
package verification

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"warden/internal/roblox"
	"warden/internal/storage"
)

var (
	ErrNoPending     = errors.New("no pending verification attempt")
	ErrCodeMissing   = errors.New("verification code not found in profile description")
	ErrAlreadyLinked = errors.New("roblox account already linked to another user")
	ErrNotVerified   = errors.New("user has no linked roblox account")
)

// ProfileLookup is the Roblox read the service needs. *roblox.Client
// satisfies it.
type ProfileLookup interface {
	UserByUsername(ctx context.Context, username string) (roblox.Profile, error)
}

type Service struct {
	store   *storage.Store
	lookup  ProfileLookup
	pending *PendingStore
	clock   Clock
}

func NewService(store *storage.Store, lookup ProfileLookup, pending *PendingStore) *Service {
	return &Service{
		store:   store,
		lookup:  lookup,
		pending: pending,
		clock:   realClock{},
	}
}

func (s *Service) WithClock(clock Clock) {
	s.clock = clock
}

// Begin starts a verification attempt and returns the code the user must
// put in their profile description. A prior unfinished attempt is replaced.
func (s *Service) Begin(discordID string) Pending {
	return s.pending.Put(discordID, GenerateCode(3))
}

// Complete checks the user's Roblox profile for the pending code and links
// the accounts. A prior link on the same Discord user is archived to
// verification history, not lost.
func (s *Service) Complete(ctx context.Context, discordID, username string) (roblox.Profile, error) {
	pending, ok := s.pending.Get(discordID)
	if !ok {
		return roblox.Profile{}, ErrNoPending
	}

	profile, err := s.lookup.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return roblox.Profile{}, err
	}
	if !strings.Contains(profile.Description, pending.Code) {
		return roblox.Profile{}, ErrCodeMissing
	}

	if existing, linked, err := s.store.ProfileByRobloxID(ctx, profile.ID); err != nil {
		return roblox.Profile{}, err
	} else if linked && existing.DiscordID != discordID {
		return roblox.Profile{}, ErrAlreadyLinked
	}

	now := s.clock.Now()
	if err := s.archiveCurrentLink(ctx, discordID, now); err != nil {
		return roblox.Profile{}, err
	}
	if err := s.store.LinkRoblox(ctx, discordID, profile.ID, profile.Username, now); err != nil {
		return roblox.Profile{}, err
	}

	s.pending.Delete(discordID)
	return profile, nil
}

// Unverify removes the link, archiving it to verification history.
func (s *Service) Unverify(ctx context.Context, discordID string) error {
	current, err := s.store.GetProfile(ctx, discordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotVerified
		}
		return err
	}
	if current.RobloxID == nil {
		return ErrNotVerified
	}

	if err := s.archiveLink(ctx, current, s.clock.Now()); err != nil {
		return err
	}
	return s.store.UnlinkRoblox(ctx, discordID)
}

func (s *Service) archiveCurrentLink(ctx context.Context, discordID string, now time.Time) error {
	current, err := s.store.GetProfile(ctx, discordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if current.RobloxID == nil {
		return nil
	}
	return s.archiveLink(ctx, current, now)
}

func (s *Service) archiveLink(ctx context.Context, profile storage.Profile, now time.Time) error {
	linkedAt := now
	if profile.VerifiedAt != nil {
		linkedAt = *profile.VerifiedAt
	}
	return s.store.AddVerificationHistory(ctx, storage.VerificationRecord{
		DiscordID:      profile.DiscordID,
		RobloxID:       *profile.RobloxID,
		RobloxUsername: profile.RobloxUsername,
		LinkedAt:       linkedAt,
		UnlinkedAt:     now,
	})
}
