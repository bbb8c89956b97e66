// Package moderation implements the append-only moderation action ledger.
// Records are never deleted or rewritten; reversal flips the prior record's
// active flag and appends a new record, and timed actions expire lazily by
// comparing expiry to the clock at read time.
package moderation

import (
	"context"
	"strings"
	"sync"
	"time"

	"warden/internal/storage"
)

// Action is a single ledger record. ID is the case ID shown to users.
type Action struct {
	ID          int64
	GuildID     string
	TargetID    string
	ModeratorID string
	Kind        Kind
	Reason      string
	DurationMs  int64
	ExpiresAt   *time.Time
	IsActive    bool
	CreatedAt   time.Time
}

// Expired reports whether a timed action's expiry has passed. Permanent
// actions never expire.
func (a Action) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && !a.ExpiresAt.After(now)
}

// InEffect reports whether the action currently has effect: active and not
// time-expired.
func (a Action) InEffect(now time.Time) bool {
	return a.IsActive && !a.Expired(now)
}

// Request describes a new action to record. DurationMs zero means permanent.
type Request struct {
	GuildID     string
	TargetID    string
	ModeratorID string
	Kind        Kind
	Reason      string
	DurationMs  int64
}

// Filter narrows History. Zero-value fields are unset.
type Filter struct {
	TargetID    string
	ModeratorID string
	Kind        Kind
}

// HistoryCap bounds History results regardless of the caller's limit.
const HistoryCap = 50

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Ledger is the authoritative record of moderation actions and the single
// source of truth for "is this user currently banned or muted" queries.
// Check-then-act sequences are serialized per (guild, target) key.
type Ledger struct {
	store *storage.Store
	clock Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLedger(store *storage.Store) *Ledger {
	return &Ledger{
		store: store,
		clock: realClock{},
		locks: make(map[string]*sync.Mutex),
	}
}

func (l *Ledger) WithClock(clock Clock) {
	l.clock = clock
}

func (l *Ledger) lockTarget(guildID, targetID string) func() {
	key := guildID + ":" + targetID
	l.mu.Lock()
	lock := l.locks[key]
	if lock == nil {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	l.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// Record appends a new action. Singleton effect kinds (ban, mute, timeout)
// are guarded against an existing in-effect record of their group and fail
// with ConflictError; accumulating kinds always append; kick and the undo
// kinds are recorded inactive with no guard.
func (l *Ledger) Record(ctx context.Context, req Request) (Action, error) {
	if err := validate(req); err != nil {
		return Action{}, err
	}

	unlock := l.lockTarget(req.GuildID, req.TargetID)
	defer unlock()

	now := l.clock.Now()
	if req.Kind.HasEffect() && !req.Kind.Accumulates() {
		existing, found, err := l.activeEffect(ctx, req.GuildID, req.TargetID, req.Kind.Group(), now)
		if err != nil {
			return Action{}, err
		}
		if found {
			return Action{}, &ConflictError{Existing: existing}
		}
	}
	return l.insert(ctx, req, req.Kind.HasEffect(), now)
}

// ActiveEffect returns the record currently in effect for the kind's
// mutual-exclusion group, if any. A time-expired record is reported as
// absent without being written back; only an explicit reversal flips it.
func (l *Ledger) ActiveEffect(ctx context.Context, guildID, targetID string, kind Kind) (Action, bool, error) {
	unlock := l.lockTarget(guildID, targetID)
	defer unlock()
	return l.activeEffect(ctx, guildID, targetID, kind.Group(), l.clock.Now())
}

func (l *Ledger) activeEffect(ctx context.Context, guildID, targetID string, group []Kind, now time.Time) (Action, bool, error) {
	row, found, err := l.store.LatestActive(ctx, guildID, targetID, kindNames(group))
	if err != nil || !found {
		return Action{}, false, err
	}
	action := fromRow(row)
	if action.Expired(now) {
		return Action{}, false, nil
	}
	return action, true, nil
}

// CountActive counts active records of an exact kind, for the accumulating
// kinds where multiple simultaneous records are legal.
func (l *Ledger) CountActive(ctx context.Context, guildID, targetID string, kind Kind) (int, error) {
	return l.store.CountActive(ctx, guildID, targetID, string(kind))
}

// Reverse flips the most recent active record of the kind's group to
// inactive and appends the undo record. For accumulating kinds the appended
// record is a same-kind record whose reason is marked as a removal. Unlike
// ActiveEffect this also reaches time-expired records, so a reversal is the
// write path that retires them.
func (l *Ledger) Reverse(ctx context.Context, guildID, targetID, moderatorID string, kind Kind, reason string) (Action, error) {
	if strings.TrimSpace(reason) == "" {
		return Action{}, &ValidationError{Detail: "reason must not be empty"}
	}
	if !kind.Valid() || !kind.HasEffect() {
		return Action{}, &ValidationError{Detail: "kind " + string(kind) + " cannot be reversed"}
	}

	unlock := l.lockTarget(guildID, targetID)
	defer unlock()

	row, found, err := l.store.LatestActive(ctx, guildID, targetID, kindNames(kind.Group()))
	if err != nil {
		return Action{}, err
	}
	if !found {
		return Action{}, &ReversalError{Kind: kind}
	}
	if err := l.store.Deactivate(ctx, row.ID); err != nil {
		return Action{}, err
	}

	reversed := fromRow(row)
	now := l.clock.Now()
	if kind.Accumulates() {
		return l.insert(ctx, Request{
			GuildID:     guildID,
			TargetID:    targetID,
			ModeratorID: moderatorID,
			Kind:        kind,
			Reason:      kind.removalPrefix() + reason,
		}, false, now)
	}

	undo, _ := reversed.Kind.Undo()
	return l.insert(ctx, Request{
		GuildID:     guildID,
		TargetID:    targetID,
		ModeratorID: moderatorID,
		Kind:        undo,
		Reason:      reason,
	}, false, now)
}

// History lists records newest first. The limit is clamped to HistoryCap.
func (l *Ledger) History(ctx context.Context, guildID string, filter Filter, limit int) ([]Action, error) {
	if limit <= 0 || limit > HistoryCap {
		limit = HistoryCap
	}
	rows, err := l.store.ListActions(ctx, guildID, storage.ActionFilter{
		TargetID:    filter.TargetID,
		ModeratorID: filter.ModeratorID,
		Kind:        string(filter.Kind),
	}, limit)
	if err != nil {
		return nil, err
	}
	actions := make([]Action, 0, len(rows))
	for _, row := range rows {
		actions = append(actions, fromRow(row))
	}
	return actions, nil
}

func (l *Ledger) insert(ctx context.Context, req Request, active bool, now time.Time) (Action, error) {
	action := Action{
		GuildID:     req.GuildID,
		TargetID:    req.TargetID,
		ModeratorID: req.ModeratorID,
		Kind:        req.Kind,
		Reason:      req.Reason,
		DurationMs:  req.DurationMs,
		IsActive:    active,
		CreatedAt:   now,
	}
	row := storage.ActionRow{
		GuildID:     req.GuildID,
		TargetID:    req.TargetID,
		ModeratorID: req.ModeratorID,
		Kind:        string(req.Kind),
		Reason:      req.Reason,
		IsActive:    active,
		CreatedAt:   now,
	}
	if req.DurationMs > 0 {
		duration := req.DurationMs
		expires := now.Add(time.Duration(duration) * time.Millisecond)
		action.ExpiresAt = &expires
		row.DurationMs = &duration
		row.ExpiresAt = &expires
	}

	id, err := l.store.InsertAction(ctx, row)
	if err != nil {
		return Action{}, err
	}
	action.ID = id
	return action, nil
}

func validate(req Request) error {
	if !req.Kind.Valid() {
		return &ValidationError{Detail: "unknown kind " + string(req.Kind)}
	}
	if strings.TrimSpace(req.Reason) == "" {
		return &ValidationError{Detail: "reason must not be empty"}
	}
	if req.DurationMs < 0 {
		return &ValidationError{Detail: "duration must not be negative"}
	}
	return nil
}

func fromRow(row storage.ActionRow) Action {
	action := Action{
		ID:          row.ID,
		GuildID:     row.GuildID,
		TargetID:    row.TargetID,
		ModeratorID: row.ModeratorID,
		Kind:        Kind(row.Kind),
		Reason:      row.Reason,
		ExpiresAt:   row.ExpiresAt,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt,
	}
	if row.DurationMs != nil {
		action.DurationMs = *row.DurationMs
	}
	return action
}

func kindNames(kinds []Kind) []string {
	names := make([]string, len(kinds))
	for i, kind := range kinds {
		names[i] = string(kind)
	}
	return names
}
