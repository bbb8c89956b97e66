package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// ActionRow is a moderation ledger record. DurationMs and ExpiresAt are nil
// for permanent actions.
type ActionRow struct {
	ID          int64
	GuildID     string
	TargetID    string
	ModeratorID string
	Kind        string
	Reason      string
	DurationMs  *int64
	ExpiresAt   *time.Time
	IsActive    bool
	CreatedAt   time.Time
}

// ActionFilter narrows ListActions. Zero-value fields are unset.
type ActionFilter struct {
	TargetID    string
	ModeratorID string
	Kind        string
}

type KindCount struct {
	Kind  string
	Count int
}

type ModeratorCount struct {
	ModeratorID string
	Count       int
}

func (s *Store) InsertAction(ctx context.Context, action ActionRow) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_actions
			(guild_id, target_id, moderator_id, kind, reason, duration_ms, expires_at, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, action.GuildID, action.TargetID, action.ModeratorID, action.Kind, action.Reason,
		nullableInt64(action.DurationMs), nullableSQLTime(action.ExpiresAt),
		boolToInt(action.IsActive), action.CreatedAt.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LatestActive returns the most recent active record for the target matching
// any of the given kinds. Ties on created_at break by id so same-millisecond
// inserts resolve to the later row.
func (s *Store) LatestActive(ctx context.Context, guildID, targetID string, kinds []string) (ActionRow, bool, error) {
	if len(kinds) == 0 {
		return ActionRow{}, false, nil
	}
	query := `
		SELECT id, guild_id, target_id, moderator_id, kind, reason, duration_ms, expires_at, is_active, created_at
		FROM moderation_actions
		WHERE guild_id = ? AND target_id = ? AND is_active = 1 AND kind IN (` + placeholders(len(kinds)) + `)
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	args := []any{guildID, targetID}
	for _, kind := range kinds {
		args = append(args, kind)
	}

	row := s.db.QueryRowContext(ctx, query, args...)
	action, err := scanAction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ActionRow{}, false, nil
		}
		return ActionRow{}, false, err
	}
	return action, true, nil
}

func (s *Store) CountActive(ctx context.Context, guildID, targetID, kind string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM moderation_actions
		WHERE guild_id = ? AND target_id = ? AND kind = ? AND is_active = 1
	`, guildID, targetID, kind).Scan(&count)
	return count, err
}

func (s *Store) Deactivate(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE moderation_actions SET is_active = 0 WHERE id = ?`, id)
	return err
}

func (s *Store) ListActions(ctx context.Context, guildID string, filter ActionFilter, limit int) ([]ActionRow, error) {
	query := `
		SELECT id, guild_id, target_id, moderator_id, kind, reason, duration_ms, expires_at, is_active, created_at
		FROM moderation_actions
		WHERE guild_id = ?
	`
	args := []any{guildID}
	if filter.TargetID != "" {
		query += ` AND target_id = ?`
		args = append(args, filter.TargetID)
	}
	if filter.ModeratorID != "" {
		query += ` AND moderator_id = ?`
		args = append(args, filter.ModeratorID)
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []ActionRow
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

func (s *Store) CountActionsSince(ctx context.Context, guildID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM moderation_actions
		WHERE guild_id = ? AND created_at >= ?
	`, guildID, since.UnixMilli()).Scan(&count)
	return count, err
}

func (s *Store) CountByKindSince(ctx context.Context, guildID string, since time.Time) ([]KindCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*)
		FROM moderation_actions
		WHERE guild_id = ? AND created_at >= ?
		GROUP BY kind
		ORDER BY COUNT(*) DESC
	`, guildID, since.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []KindCount
	for rows.Next() {
		var kc KindCount
		if err := rows.Scan(&kc.Kind, &kc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, kc)
	}
	return counts, rows.Err()
}

func (s *Store) TopModeratorsSince(ctx context.Context, guildID string, since time.Time, limit int) ([]ModeratorCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT moderator_id, COUNT(*)
		FROM moderation_actions
		WHERE guild_id = ? AND created_at >= ?
		GROUP BY moderator_id
		ORDER BY COUNT(*) DESC
		LIMIT ?
	`, guildID, since.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []ModeratorCount
	for rows.Next() {
		var mc ModeratorCount
		if err := rows.Scan(&mc.ModeratorID, &mc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, mc)
	}
	return counts, rows.Err()
}

func scanAction(row interface{ Scan(...any) error }) (ActionRow, error) {
	var action ActionRow
	var durationMs sql.NullInt64
	var expiresAt sql.NullInt64
	var isActive int
	var createdAt int64
	err := row.Scan(&action.ID, &action.GuildID, &action.TargetID, &action.ModeratorID,
		&action.Kind, &action.Reason, &durationMs, &expiresAt, &isActive, &createdAt)
	if err != nil {
		return ActionRow{}, err
	}
	if durationMs.Valid {
		value := durationMs.Int64
		action.DurationMs = &value
	}
	action.ExpiresAt = scanNullableTime(expiresAt)
	action.IsActive = isActive == 1
	action.CreatedAt = time.UnixMilli(createdAt)
	return action, nil
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
