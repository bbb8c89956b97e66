package moderation

import "time"

// Kind is the closed set of moderation action kinds.
type Kind string

const (
	KindBan          Kind = "ban"
	KindUnban        Kind = "unban"
	KindMute         Kind = "mute"
	KindUnmute       Kind = "unmute"
	KindKick         Kind = "kick"
	KindTimeout      Kind = "timeout"
	KindUntimeout    Kind = "untimeout"
	KindGameBan      Kind = "gameban"
	KindWarning      Kind = "warning"
	KindCommunityBan Kind = "communityban"
)

// TimeoutCeiling is the longest native timeout the platform accepts. Timed
// restrictions above it fall back to a role-based mute.
const TimeoutCeiling = 28 * 24 * time.Hour

func (k Kind) Valid() bool {
	switch k {
	case KindBan, KindUnban, KindMute, KindUnmute, KindKick,
		KindTimeout, KindUntimeout, KindGameBan, KindWarning, KindCommunityBan:
		return true
	}
	return false
}

// HasEffect reports whether a record of this kind carries ongoing state.
// Point-in-time events (kick and the undo kinds) are recorded inactive.
func (k Kind) HasEffect() bool {
	switch k {
	case KindBan, KindMute, KindTimeout, KindWarning, KindCommunityBan, KindGameBan:
		return true
	}
	return false
}

// Accumulates reports whether multiple simultaneously active records of this
// kind are legal, as opposed to the mutually exclusive singleton kinds.
func (k Kind) Accumulates() bool {
	switch k {
	case KindWarning, KindCommunityBan, KindGameBan:
		return true
	}
	return false
}

// Group returns the kinds sharing this kind's mutual-exclusion slot. A mute
// and a timeout are the same "muted" state and may not coexist.
func (k Kind) Group() []Kind {
	switch k {
	case KindMute, KindTimeout, KindUnmute, KindUntimeout:
		return []Kind{KindMute, KindTimeout}
	case KindBan, KindUnban:
		return []Kind{KindBan}
	}
	return []Kind{k}
}

// Undo returns the kind recorded when a record of this kind is reversed.
// Accumulating kinds are reversed by a same-kind removal record instead.
func (k Kind) Undo() (Kind, bool) {
	switch k {
	case KindBan:
		return KindUnban, true
	case KindMute:
		return KindUnmute, true
	case KindTimeout:
		return KindUntimeout, true
	}
	return "", false
}

func (k Kind) removalPrefix() string {
	switch k {
	case KindWarning:
		return "Removed warning: "
	case KindCommunityBan:
		return "Removed community ban: "
	case KindGameBan:
		return "Removed game ban: "
	}
	return ""
}

// SelectMuteKind picks the concrete kind for a mute request: the platform's
// native timeout covers timed restrictions up to TimeoutCeiling, anything
// longer or permanent uses a role-based mute.
func SelectMuteKind(durationMs int64) Kind {
	if durationMs > 0 && durationMs <= TimeoutCeiling.Milliseconds() {
		return KindTimeout
	}
	return KindMute
}
