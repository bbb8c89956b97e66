package moderation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/moderation"
	"warden/internal/storage"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLedger(t *testing.T) (*moderation.Ledger, *fakeClock) {
	t.Helper()
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate())

	ledger := moderation.NewLedger(store)
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	ledger.WithClock(clock)
	return ledger, clock
}

func TestRecordBanRejectsDuplicate(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	first, err := ledger.Record(ctx, moderation.Request{
		GuildID: "g1", TargetID: "u1", ModeratorID: "m1",
		Kind: moderation.KindBan, Reason: "spam",
	})
	require.NoError(t, err)
	assert.True(t, first.IsActive)
	assert.NotZero(t, first.ID)

	_, err = ledger.Record(ctx, moderation.Request{
		GuildID: "g1", TargetID: "u1", ModeratorID: "m2",
		Kind: moderation.KindBan, Reason: "again",
	})
	var conflict *moderation.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.ID, conflict.Existing.ID)
	assert.Equal(t, "spam", conflict.Existing.Reason)

	// Same user in another guild is unaffected.
	_, err = ledger.Record(ctx, moderation.Request{
		GuildID: "g2", TargetID: "u1", ModeratorID: "m1",
		Kind: moderation.KindBan, Reason: "spam",
	})
	require.NoError(t, err)
}

func TestTimedActionExpiresLazily(t *testing.T) {
	t.Parallel()
	ledger, clock := newTestLedger(t)
	ctx := context.Background()

	action, err := ledger.Record(ctx, moderation.Request{
		GuildID: "g1", TargetID: "u1", ModeratorID: "m1",
		Kind: moderation.KindTimeout, Reason: "flood", DurationMs: 3_600_000,
	})
	require.NoError(t, err)
	require.NotNil(t, action.ExpiresAt)
	assert.Equal(t, clock.Now().Add(time.Hour), *action.ExpiresAt)

	got, found, err := ledger.ActiveEffect(ctx, "g1", "u1", moderation.KindTimeout)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, action.ID, got.ID)

	clock.advance(3_700_000 * time.Millisecond)

	_, found, err = ledger.ActiveEffect(ctx, "g1", "u1", moderation.KindTimeout)
	require.NoError(t, err)
	assert.False(t, found, "expired action must read as absent")

	// Expiry is never written back by a read: the stored record stays
	// active until an explicit reversal.
	history, err := ledger.History(ctx, "g1", moderation.Filter{TargetID: "u1"}, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].IsActive)

	// The slot is free again for a new timed restriction.
	_, err = ledger.Record(ctx, moderation.Request{
		GuildID: "g1", TargetID: "u1", ModeratorID: "m1",
		Kind: moderation.KindTimeout, Reason: "flood again", DurationMs: 3_600_000,
	})
	require.NoError(t, err)
}

func TestMuteAndTimeoutAreMutuallyExclusive(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	timeout, err := ledger.Record(ctx, moderation.Request{
		GuildID: "g1", TargetID: "u1", ModeratorID: "m1",
		Kind: moderation.KindTimeout, Reason: "flood", DurationMs: 600_000,
	})
	require.NoError(t, err)

	_, err = ledger.Record(ctx, moderation.Request{
		GuildID: "g1", TargetID: "u1", ModeratorID: "m1",
		Kind: moderation.KindMute, Reason: "still flooding",
	})
	var conflict *moderation.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, moderation.KindTimeout, conflict.Existing.Kind)

	// Reversing through the mute group lifts the timeout and records the
	// undo kind matching what was actually in effect.
	undo, err := ledger.Reverse(ctx, "g1", "u1", "m2", moderation.KindMute, "appealed")
	require.NoError(t, err)
	assert.Equal(t, moderation.KindUntimeout, undo.Kind)
	assert.False(t, undo.IsActive)

	_, found, err := ledger.ActiveEffect(ctx, "g1", "u1", moderation.KindMute)
	require.NoError(t, err)
	assert.False(t, found)

	history, err := ledger.History(ctx, "g1", moderation.Filter{TargetID: "u1"}, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, action := range history {
		if action.ID == timeout.ID {
			assert.False(t, action.IsActive, "reversed record must be flipped inactive")
			assert.Equal(t, "flood", action.Reason, "reversal must not rewrite the record")
		}
	}
}

func TestWarningAccumulationAndRemoval(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	for _, reason := range []string{"rule 1", "rule 2", "rule 3"} {
		_, err := ledger.Record(ctx, moderation.Request{
			GuildID: "g1", TargetID: "u1", ModeratorID: "m1",
			Kind: moderation.KindWarning, Reason: reason,
		})
		require.NoError(t, err)
	}

	count, err := ledger.CountActive(ctx, "g1", "u1", moderation.KindWarning)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	removal, err := ledger.Reverse(ctx, "g1", "u1", "m2", moderation.KindWarning, "appealed")
	require.NoError(t, err)
	assert.Equal(t, moderation.KindWarning, removal.Kind)
	assert.Equal(t, "Removed warning: appealed", removal.Reason)
	assert.False(t, removal.IsActive)

	count, err = ledger.CountActive(ctx, "g1", "u1", moderation.KindWarning)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// The newest warning is the one that was flipped.
	history, err := ledger.History(ctx, "g1", moderation.Filter{TargetID: "u1", Kind: moderation.KindWarning}, 10)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "Removed warning: appealed", history[0].Reason)
	assert.False(t, history[1].IsActive)
	assert.Equal(t, "rule 3", history[1].Reason)
}

func TestCommunityAndGameBanRemovalPrefixes(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	cases := []struct {
		kind   moderation.Kind
		reason string
		want   string
	}{
		{moderation.KindCommunityBan, "resolved", "Removed community ban: resolved"},
		{moderation.KindGameBan, "unbanned in game", "Removed game ban: unbanned in game"},
	}
	for _, tc := range cases {
		_, err := ledger.Record(ctx, moderation.Request{
			GuildID: "g1", TargetID: "u1", ModeratorID: "m1",
			Kind: tc.kind, Reason: "exploiting",
		})
		require.NoError(t, err)

		removal, err := ledger.Reverse(ctx, "g1", "u1", "m1", tc.kind, tc.reason)
		require.NoError(t, err)
		assert.Equal(t, tc.kind, removal.Kind)
		assert.Equal(t, tc.want, removal.Reason)
	}
}

func TestReverseWithNothingActive(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)

	_, err := ledger.Reverse(context.Background(), "g1", "u1", "m1", moderation.KindBan, "oops")
	var reversal *moderation.ReversalError
	require.ErrorAs(t, err, &reversal)
	assert.Equal(t, moderation.KindBan, reversal.Kind)
}

func TestReverseReachesExpiredRecords(t *testing.T) {
	t.Parallel()
	ledger, clock := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Record(ctx, moderation.Request{
		GuildID: "g1", TargetID: "u1", ModeratorID: "m1",
		Kind: moderation.KindBan, Reason: "spam", DurationMs: 1_000,
	})
	require.NoError(t, err)
	clock.advance(time.Minute)

	// Reads see the ban as gone, but the explicit reversal still retires
	// the stored record.
	_, found, err := ledger.ActiveEffect(ctx, "g1", "u1", moderation.KindBan)
	require.NoError(t, err)
	assert.False(t, found)

	undo, err := ledger.Reverse(ctx, "g1", "u1", "m1", moderation.KindBan, "cleanup")
	require.NoError(t, err)
	assert.Equal(t, moderation.KindUnban, undo.Kind)

	history, err := ledger.History(ctx, "g1", moderation.Filter{TargetID: "u1", Kind: moderation.KindBan}, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].IsActive)
}

func TestKickRecordedInactive(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	kick, err := ledger.Record(ctx, moderation.Request{
		GuildID: "g1", TargetID: "u1", ModeratorID: "m1",
		Kind: moderation.KindKick, Reason: "cooldown",
	})
	require.NoError(t, err)
	assert.False(t, kick.IsActive)

	// A kick never blocks a later kick.
	_, err = ledger.Record(ctx, moderation.Request{
		GuildID: "g1", TargetID: "u1", ModeratorID: "m1",
		Kind: moderation.KindKick, Reason: "again",
	})
	require.NoError(t, err)
}

func TestRecordValidation(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  moderation.Request
	}{
		{"empty reason", moderation.Request{GuildID: "g", TargetID: "u", ModeratorID: "m", Kind: moderation.KindBan, Reason: "  "}},
		{"negative duration", moderation.Request{GuildID: "g", TargetID: "u", ModeratorID: "m", Kind: moderation.KindBan, Reason: "x", DurationMs: -1}},
		{"unknown kind", moderation.Request{GuildID: "g", TargetID: "u", ModeratorID: "m", Kind: "shadowban", Reason: "x"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.Record(ctx, tc.req)
			var validation *moderation.ValidationError
			assert.ErrorAs(t, err, &validation)
		})
	}

	_, err := ledger.Reverse(ctx, "g", "u", "m", moderation.KindKick, "x")
	var validation *moderation.ValidationError
	assert.ErrorAs(t, err, &validation, "kick has no ongoing state to reverse")
}

func TestHistoryCap(t *testing.T) {
	t.Parallel()
	ledger, clock := newTestLedger(t)
	ctx := context.Background()

	for range 60 {
		clock.advance(time.Second)
		_, err := ledger.Record(ctx, moderation.Request{
			GuildID: "g1", TargetID: "u1", ModeratorID: "m1",
			Kind: moderation.KindWarning, Reason: "w",
		})
		require.NoError(t, err)
	}

	history, err := ledger.History(ctx, "g1", moderation.Filter{}, 200)
	require.NoError(t, err)
	assert.Len(t, history, moderation.HistoryCap)

	history, err = ledger.History(ctx, "g1", moderation.Filter{}, 5)
	require.NoError(t, err)
	assert.Len(t, history, 5)
}

func TestSelectMuteKind(t *testing.T) {
	t.Parallel()

	day := int64(24 * 60 * 60 * 1000)
	assert.Equal(t, moderation.KindTimeout, moderation.SelectMuteKind(60_000))
	assert.Equal(t, moderation.KindTimeout, moderation.SelectMuteKind(28*day))
	assert.Equal(t, moderation.KindMute, moderation.SelectMuteKind(28*day+1))
	assert.Equal(t, moderation.KindMute, moderation.SelectMuteKind(0))
}

func TestConflictErrorMessage(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Record(ctx, moderation.Request{
		GuildID: "g1", TargetID: "u1", ModeratorID: "m1",
		Kind: moderation.KindMute, Reason: "spam",
	})
	require.NoError(t, err)

	_, err = ledger.Record(ctx, moderation.Request{
		GuildID: "g1", TargetID: "u1", ModeratorID: "m1",
		Kind: moderation.KindMute, Reason: "spam",
	})
	require.Error(t, err)
	assert.True(t, errors.As(err, new(*moderation.ConflictError)))
	assert.Contains(t, err.Error(), "mute already active")
}
