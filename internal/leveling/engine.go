// Package leveling converts a stream of per-user message events into a
// monotonic level. Counting is cooldown-gated and levels derive
// deterministically from a cumulative threshold table.
package leveling

import (
	"context"
	"math"
	"sync"
	"time"

	"warden/internal/storage"
)

const (
	MaxLevel = 100
	Cooldown = 60 * time.Second
)

// thresholds[L] is the total messages needed to have reached level L.
var thresholds = buildThresholds()

func buildThresholds() [MaxLevel + 1]int64 {
	var table [MaxLevel + 1]int64
	for level := 1; level <= MaxLevel; level++ {
		table[level] = table[level-1] + requirementFor(level)
	}
	return table
}

// requirementFor is the messages needed to go from level-1 to level:
// 10 × level^1.5, rounded down to a multiple of ten, never below ten.
func requirementFor(level int) int64 {
	required := int64(math.Floor(10*math.Pow(float64(level), 1.5)/10)) * 10
	if required < 10 {
		return 10
	}
	return required
}

// LevelFor returns the largest level whose cumulative threshold the message
// count satisfies, capped at MaxLevel.
func LevelFor(messageCount int64) int {
	level := 0
	for level < MaxLevel && messageCount >= thresholds[level+1] {
		level++
	}
	return level
}

// ProfileStore is the persistence the engine needs. *storage.Store
// satisfies it.
type ProfileStore interface {
	EnsureProfile(ctx context.Context, discordID string) (storage.Profile, error)
	SaveProgress(ctx context.Context, discordID string, messageCount int64, level int, lastMessageAt time.Time) error
	TopByMessages(ctx context.Context, limit int) ([]storage.Profile, error)
	GetLevelingStats(ctx context.Context) (storage.LevelingStats, error)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Engine struct {
	mu    sync.Mutex
	store ProfileStore
	clock Clock
	roles map[int]string
}

// Result reports the outcome of ingesting one message.
type Result struct {
	Counted   bool
	LeveledUp bool
	OldLevel  int
	NewLevel  int
}

// Progress is a read-only snapshot of a user's advancement.
type Progress struct {
	Level          int
	MessageCount   int64
	ProgressToNext int64
	NeededForNext  int64
	AtMax          bool
}

// NewEngine builds an engine over the given store. roles maps level
// milestones to external role IDs and may be nil.
func NewEngine(store ProfileStore, roles map[int]string) *Engine {
	return &Engine{
		store: store,
		clock: realClock{},
		roles: roles,
	}
}

func (e *Engine) WithClock(clock Clock) {
	e.clock = clock
}

// IngestMessage counts one message for the user. Messages inside the
// cooldown window are ignored entirely, with no mutation at all. Every
// counted message is flushed to the store before returning so a level-up is
// never lost to a crash.
func (e *Engine) IngestMessage(ctx context.Context, discordID string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	profile, err := e.store.EnsureProfile(ctx, discordID)
	if err != nil {
		return Result{}, err
	}

	now := e.clock.Now()
	if now.Sub(profile.LastMessageAt) < Cooldown {
		return Result{}, nil
	}

	count := profile.MessageCount + 1
	level := LevelFor(count)
	if err := e.store.SaveProgress(ctx, discordID, count, level, now); err != nil {
		return Result{}, err
	}

	result := Result{Counted: true, OldLevel: profile.Level, NewLevel: level}
	if level > profile.Level {
		result.LeveledUp = true
	}
	return result, nil
}

// GetProgress reports the user's current level and how far into the next
// level they are.
func (e *Engine) GetProgress(ctx context.Context, discordID string) (Progress, error) {
	profile, err := e.store.EnsureProfile(ctx, discordID)
	if err != nil {
		return Progress{}, err
	}

	progress := Progress{
		Level:        profile.Level,
		MessageCount: profile.MessageCount,
	}
	if profile.Level >= MaxLevel {
		progress.AtMax = true
		return progress, nil
	}

	progress.NeededForNext = thresholds[profile.Level+1] - thresholds[profile.Level]
	progress.ProgressToNext = profile.MessageCount - thresholds[profile.Level]
	if progress.ProgressToNext < 0 {
		progress.ProgressToNext = 0
	}
	return progress, nil
}

// Leaderboard returns the most active profiles, busiest first.
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]storage.Profile, error) {
	return e.store.TopByMessages(ctx, limit)
}

// Stats aggregates activity across all counted profiles.
type Stats struct {
	TotalUsers      int64
	TotalMessages   int64
	MaxLevel        int
	AverageMessages int64
}

func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	raw, err := e.store.GetLevelingStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		TotalUsers:    raw.TotalUsers,
		TotalMessages: raw.TotalMessages,
		MaxLevel:      raw.MaxLevel,
	}
	if raw.TotalUsers > 0 {
		stats.AverageMessages = raw.TotalMessages / raw.TotalUsers
	}
	return stats, nil
}

// RoleForLevel returns the external role granted at exactly this level.
func (e *Engine) RoleForLevel(level int) (string, bool) {
	role, ok := e.roles[level]
	return role, ok
}
