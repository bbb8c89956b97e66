package leveling

import (
	"context"
	"testing"
	"time"

	"warden/internal/storage"
)

type fakeStore struct {
	profiles map[string]storage.Profile
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: make(map[string]storage.Profile)}
}

func (s *fakeStore) EnsureProfile(_ context.Context, discordID string) (storage.Profile, error) {
	profile, ok := s.profiles[discordID]
	if !ok {
		profile = storage.Profile{DiscordID: discordID}
		s.profiles[discordID] = profile
	}
	return profile, nil
}

func (s *fakeStore) SaveProgress(_ context.Context, discordID string, messageCount int64, level int, lastMessageAt time.Time) error {
	profile := s.profiles[discordID]
	profile.MessageCount = messageCount
	profile.Level = level
	profile.LastMessageAt = lastMessageAt
	s.profiles[discordID] = profile
	return nil
}

func (s *fakeStore) TopByMessages(_ context.Context, limit int) ([]storage.Profile, error) {
	var out []storage.Profile
	for _, profile := range s.profiles {
		out = append(out, profile)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].MessageCount > out[i].MessageCount {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) GetLevelingStats(_ context.Context) (storage.LevelingStats, error) {
	var stats storage.LevelingStats
	for _, profile := range s.profiles {
		if profile.MessageCount == 0 {
			continue
		}
		stats.TotalUsers++
		stats.TotalMessages += profile.MessageCount
		if profile.Level > stats.MaxLevel {
			stats.MaxLevel = profile.Level
		}
	}
	return stats, nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestEngine(roles map[int]string) (*Engine, *fakeStore, *fakeClock) {
	store := newFakeStore()
	engine := NewEngine(store, roles)
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	engine.WithClock(clock)
	return engine, store, clock
}

func TestRequirementTable(t *testing.T) {
	cases := []struct {
		level    int
		required int64
		total    int64
	}{
		{1, 10, 10},
		{2, 20, 30},
		{3, 50, 80},
		{4, 80, 160},
	}
	for _, tc := range cases {
		if got := requirementFor(tc.level); got != tc.required {
			t.Fatalf("level %d: expected requirement %d, got %d", tc.level, tc.required, got)
		}
		if got := thresholds[tc.level]; got != tc.total {
			t.Fatalf("level %d: expected cumulative %d, got %d", tc.level, tc.total, got)
		}
	}
}

func TestLevelFor(t *testing.T) {
	cases := []struct {
		count int64
		level int
	}{
		{0, 0},
		{9, 0},
		{10, 1},
		{29, 1},
		{30, 2},
		{80, 3},
		{1 << 60, MaxLevel},
	}
	for _, tc := range cases {
		if got := LevelFor(tc.count); got != tc.level {
			t.Fatalf("count %d: expected level %d, got %d", tc.count, tc.level, got)
		}
	}
}

func TestLevelUpOnTenthMessage(t *testing.T) {
	engine, _, clock := newTestEngine(nil)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		clock.now = clock.now.Add(Cooldown)
		result, err := engine.IngestMessage(ctx, "u1")
		if err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
		if !result.Counted {
			t.Fatalf("message %d should count", i)
		}
		if i < 10 && result.LeveledUp {
			t.Fatalf("unexpected level-up on message %d", i)
		}
		if i == 10 {
			if !result.LeveledUp || result.OldLevel != 0 || result.NewLevel != 1 {
				t.Fatalf("expected level-up to 1 on message 10, got %+v", result)
			}
		}
	}
}

func TestCooldownIgnoresMessageEntirely(t *testing.T) {
	engine, store, clock := newTestEngine(nil)
	ctx := context.Background()

	if _, err := engine.IngestMessage(ctx, "u1"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	before := store.profiles["u1"]

	clock.now = clock.now.Add(30 * time.Second)
	result, err := engine.IngestMessage(ctx, "u1")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Counted || result.LeveledUp {
		t.Fatalf("message inside cooldown must be ignored, got %+v", result)
	}
	after := store.profiles["u1"]
	if after != before {
		t.Fatalf("cooldown-gated message mutated state: %+v -> %+v", before, after)
	}

	// Exactly at the cooldown boundary the message counts again.
	clock.now = clock.now.Add(30 * time.Second)
	result, err = engine.IngestMessage(ctx, "u1")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !result.Counted {
		t.Fatal("message at cooldown boundary should count")
	}
}

func TestMultiLevelJump(t *testing.T) {
	engine, store, clock := newTestEngine(nil)
	ctx := context.Background()

	// A profile whose stored level lags its message count must jump
	// straight to the correct level on the next counted message.
	store.profiles["u1"] = storage.Profile{DiscordID: "u1", MessageCount: 79, Level: 0}

	result, err := engine.IngestMessage(ctx, "u1")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !result.LeveledUp || result.OldLevel != 0 || result.NewLevel != 3 {
		t.Fatalf("expected jump to level 3, got %+v", result)
	}
	if !store.profiles["u1"].LastMessageAt.Equal(clock.now) {
		t.Fatal("last message time not persisted")
	}
}

func TestGetProgress(t *testing.T) {
	engine, store, _ := newTestEngine(nil)
	ctx := context.Background()

	store.profiles["u1"] = storage.Profile{DiscordID: "u1", MessageCount: 45, Level: 2}
	progress, err := engine.GetProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.Level != 2 || progress.MessageCount != 45 {
		t.Fatalf("unexpected snapshot: %+v", progress)
	}
	if progress.ProgressToNext != 15 || progress.NeededForNext != 50 {
		t.Fatalf("expected 15/50 into level 3, got %d/%d", progress.ProgressToNext, progress.NeededForNext)
	}

	store.profiles["max"] = storage.Profile{DiscordID: "max", MessageCount: 1 << 40, Level: MaxLevel}
	progress, err = engine.GetProgress(ctx, "max")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if !progress.AtMax {
		t.Fatal("expected completion at max level")
	}
}

func TestMonotonicity(t *testing.T) {
	engine, store, clock := newTestEngine(nil)
	ctx := context.Background()

	lastCount := int64(0)
	lastLevel := 0
	for i := range 200 {
		if i%3 == 0 {
			clock.now = clock.now.Add(10 * time.Second)
		} else {
			clock.now = clock.now.Add(Cooldown)
		}
		if _, err := engine.IngestMessage(ctx, "u1"); err != nil {
			t.Fatalf("ingest: %v", err)
		}
		profile := store.profiles["u1"]
		if profile.MessageCount < lastCount || profile.Level < lastLevel {
			t.Fatalf("regression at step %d: %+v", i, profile)
		}
		lastCount = profile.MessageCount
		lastLevel = profile.Level
	}
}

func TestRoleForLevel(t *testing.T) {
	engine, _, _ := newTestEngine(map[int]string{5: "role-5", 10: "role-10"})

	if role, ok := engine.RoleForLevel(5); !ok || role != "role-5" {
		t.Fatalf("expected role-5, got %q ok=%v", role, ok)
	}
	if _, ok := engine.RoleForLevel(6); ok {
		t.Fatal("no role expected at level 6")
	}
}

func TestStats(t *testing.T) {
	engine, store, _ := newTestEngine(nil)
	ctx := context.Background()

	stats, err := engine.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalUsers != 0 || stats.AverageMessages != 0 {
		t.Fatalf("expected empty stats, got %+v", stats)
	}

	store.profiles["a"] = storage.Profile{DiscordID: "a", MessageCount: 30, Level: 2}
	store.profiles["b"] = storage.Profile{DiscordID: "b", MessageCount: 10, Level: 1}
	store.profiles["quiet"] = storage.Profile{DiscordID: "quiet"}

	stats, err = engine.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalUsers != 2 || stats.TotalMessages != 40 || stats.MaxLevel != 2 || stats.AverageMessages != 20 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestLeaderboard(t *testing.T) {
	engine, store, _ := newTestEngine(nil)
	ctx := context.Background()

	store.profiles["a"] = storage.Profile{DiscordID: "a", MessageCount: 5}
	store.profiles["b"] = storage.Profile{DiscordID: "b", MessageCount: 50}
	store.profiles["c"] = storage.Profile{DiscordID: "c", MessageCount: 20}

	top, err := engine.Leaderboard(ctx, 2)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(top) != 2 || top[0].DiscordID != "b" || top[1].DiscordID != "c" {
		t.Fatalf("unexpected leaderboard: %+v", top)
	}
}
