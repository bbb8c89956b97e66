package duration_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/duration"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		allowed []duration.Unit
		want    int64
		wantErr bool
	}{
		{name: "one day", input: "1d", allowed: duration.BanUnits, want: 86_400_000},
		{name: "two weeks", input: "2w", allowed: duration.BanUnits, want: 2 * 7 * 86_400_000},
		{name: "three months", input: "3mo", allowed: duration.BanUnits, want: 3 * 30 * 86_400_000},
		{name: "one year", input: "1y", allowed: duration.BanUnits, want: 365 * 86_400_000},
		{name: "uppercase unit", input: "5D", allowed: duration.BanUnits, want: 5 * 86_400_000},
		{name: "minutes for timeout", input: "45m", allowed: duration.TimeoutUnits, want: 45 * 60_000},
		{name: "hours for mute", input: "12h", allowed: duration.MuteUnits, want: 12 * 3_600_000},
		{name: "zero amount rejected", input: "0d", allowed: duration.BanUnits, wantErr: true},
		{name: "unit outside caller set", input: "1h", allowed: duration.BanUnits, wantErr: true},
		{name: "minutes not valid for ban", input: "10m", allowed: duration.BanUnits, wantErr: true},
		{name: "missing unit", input: "10", allowed: duration.BanUnits, wantErr: true},
		{name: "missing amount", input: "d", allowed: duration.BanUnits, wantErr: true},
		{name: "empty string", input: "", allowed: duration.BanUnits, wantErr: true},
		{name: "sign rejected", input: "-1d", allowed: duration.BanUnits, wantErr: true},
		{name: "whitespace rejected", input: "1 d", allowed: duration.BanUnits, wantErr: true},
		{name: "trailing garbage", input: "1dx", allowed: duration.BanUnits, wantErr: true},
		{name: "unknown unit", input: "1q", allowed: duration.BanUnits, wantErr: true},
		{name: "overflow", input: "99999999999999999999y", allowed: duration.BanUnits, wantErr: true},
		{name: "overflow after multiply", input: "9223372036854776y", allowed: duration.BanUnits, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := duration.Parse(tt.input, tt.allowed...)
			if tt.wantErr {
				var parseErr *duration.ParseError
				require.ErrorAs(t, err, &parseErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ms   int64
		want string
	}{
		{60_000, "1 minute"},
		{45 * 60_000, "45 minutes"},
		{3_600_000, "1 hour"},
		{5 * 3_600_000, "5 hours"},
		{86_400_000, "1 day"},
		{6 * 86_400_000, "6 days"},
		{7 * 86_400_000, "1 week"},
		{30 * 86_400_000, "1 month"},
		{90 * 86_400_000, "3 months"},
		{365 * 86_400_000, "1 year"},
		{2 * 365 * 86_400_000, "2 years"},
		{500, "less than a minute"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, duration.Format(tt.ms))
	}
}

// Format must never pick a unit coarser than the true magnitude: reparsing
// the label can only stay equal or shrink. Sampled rather than exhaustive.
func TestFormatNeverOvershoots(t *testing.T) {
	t.Parallel()

	all := []duration.Unit{duration.Minute, duration.Hour, duration.Day, duration.Week, duration.Month, duration.Year}
	labelUnits := strings.NewReplacer(
		" minutes", "m", " minute", "m",
		" months", "mo", " month", "mo",
		" hours", "h", " hour", "h",
		" days", "d", " day", "d",
		" weeks", "w", " week", "w",
		" years", "y", " year", "y",
	)

	for _, in := range []string{"1m", "90m", "25h", "13d", "5w", "11mo", "3y"} {
		ms, err := duration.Parse(in, all...)
		require.NoError(t, err)

		label := duration.Format(ms)
		reparsed, err := duration.Parse(labelUnits.Replace(label), all...)
		require.NoError(t, err, "label %q", label)
		assert.LessOrEqual(t, reparsed, ms)
	}
}
