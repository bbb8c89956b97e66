package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Profile tracks per-user leveling progress and the linked Roblox account.
// RobloxID is nil while the user is unverified.
type Profile struct {
	DiscordID      string
	RobloxID       *uint64
	RobloxUsername string
	VerifiedAt     *time.Time
	MessageCount   int64
	Level          int
	LastMessageAt  time.Time
}

type VerificationRecord struct {
	ID             int64
	DiscordID      string
	RobloxID       uint64
	RobloxUsername string
	LinkedAt       time.Time
	UnlinkedAt     time.Time
}

// EnsureProfile creates the row if missing and returns the current profile.
func (s *Store) EnsureProfile(ctx context.Context, discordID string) (Profile, error) {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO users (discord_id) VALUES (?)`, discordID)
	if err != nil {
		return Profile{}, err
	}
	return s.GetProfile(ctx, discordID)
}

func (s *Store) GetProfile(ctx context.Context, discordID string) (Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT discord_id, roblox_id, roblox_username, verified_at, message_count, level, last_message_at
		FROM users
		WHERE discord_id = ?
	`, discordID)
	return scanProfile(row)
}

// ProfileByRobloxID reports whether any profile is already linked to the
// given Roblox account.
func (s *Store) ProfileByRobloxID(ctx context.Context, robloxID uint64) (Profile, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT discord_id, roblox_id, roblox_username, verified_at, message_count, level, last_message_at
		FROM users
		WHERE roblox_id = ?
	`, robloxID)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, false, nil
		}
		return Profile{}, false, err
	}
	return profile, true, nil
}

func (s *Store) SaveProgress(ctx context.Context, discordID string, messageCount int64, level int, lastMessageAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET message_count = ?, level = ?, last_message_at = ?
		WHERE discord_id = ?
	`, messageCount, level, lastMessageAt.UnixMilli(), discordID)
	return err
}

func (s *Store) LinkRoblox(ctx context.Context, discordID string, robloxID uint64, robloxUsername string, at time.Time) error {
	if _, err := s.EnsureProfile(ctx, discordID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET roblox_id = ?, roblox_username = ?, verified_at = ?
		WHERE discord_id = ?
	`, robloxID, robloxUsername, at.UnixMilli(), discordID)
	return err
}

func (s *Store) UnlinkRoblox(ctx context.Context, discordID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET roblox_id = NULL, roblox_username = '', verified_at = NULL
		WHERE discord_id = ?
	`, discordID)
	return err
}

func (s *Store) AddVerificationHistory(ctx context.Context, rec VerificationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_history (discord_id, roblox_id, roblox_username, linked_at, unlinked_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.DiscordID, rec.RobloxID, rec.RobloxUsername, rec.LinkedAt.UnixMilli(), rec.UnlinkedAt.UnixMilli())
	return err
}

func (s *Store) ListVerificationHistory(ctx context.Context, discordID string) ([]VerificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, discord_id, roblox_id, roblox_username, linked_at, unlinked_at
		FROM verification_history
		WHERE discord_id = ?
		ORDER BY unlinked_at DESC
	`, discordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []VerificationRecord
	for rows.Next() {
		var rec VerificationRecord
		var linked, unlinked int64
		if err := rows.Scan(&rec.ID, &rec.DiscordID, &rec.RobloxID, &rec.RobloxUsername, &linked, &unlinked); err != nil {
			return nil, err
		}
		rec.LinkedAt = time.UnixMilli(linked)
		rec.UnlinkedAt = time.UnixMilli(unlinked)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) TopByMessages(ctx context.Context, limit int) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT discord_id, roblox_id, roblox_username, verified_at, message_count, level, last_message_at
		FROM users
		WHERE message_count > 0
		ORDER BY message_count DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

type LevelingStats struct {
	TotalUsers    int64
	TotalMessages int64
	MaxLevel      int
}

// GetLevelingStats aggregates over profiles that have counted at least one
// message.
func (s *Store) GetLevelingStats(ctx context.Context) (LevelingStats, error) {
	var stats LevelingStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(message_count), 0), COALESCE(MAX(level), 0)
		FROM users
		WHERE message_count > 0
	`).Scan(&stats.TotalUsers, &stats.TotalMessages, &stats.MaxLevel)
	return stats, err
}

func scanProfile(row interface{ Scan(...any) error }) (Profile, error) {
	var profile Profile
	var robloxID sql.NullInt64
	var verifiedAt sql.NullInt64
	var lastMessageAt int64
	err := row.Scan(&profile.DiscordID, &robloxID, &profile.RobloxUsername, &verifiedAt,
		&profile.MessageCount, &profile.Level, &lastMessageAt)
	if err != nil {
		return Profile{}, err
	}
	if robloxID.Valid {
		value := uint64(robloxID.Int64)
		profile.RobloxID = &value
	}
	profile.VerifiedAt = scanNullableTime(verifiedAt)
	profile.LastMessageAt = time.UnixMilli(lastMessageAt)
	return profile, nil
}
