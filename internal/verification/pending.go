package verification

import (
	"sync"
	"time"
)

// Pending is an in-flight verification attempt waiting for the user to
// update their Roblox profile description.
type Pending struct {
	DiscordID string
	Code      string
	StartedAt time.Time
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// PendingStore holds in-flight attempts keyed by Discord user. Entries
// expire by wall-clock comparison at read time, with an opportunistic
// sweep of everything stale on each write.
type PendingStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   Clock
	entries map[string]Pending
}

func NewPendingStore(ttl time.Duration) *PendingStore {
	return &PendingStore{
		ttl:     ttl,
		clock:   realClock{},
		entries: make(map[string]Pending),
	}
}

func (p *PendingStore) WithClock(clock Clock) {
	p.clock = clock
}

// Put registers a new attempt, replacing any prior one for the same user.
func (p *PendingStore) Put(discordID, code string) Pending {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	p.sweep(now)

	entry := Pending{DiscordID: discordID, Code: code, StartedAt: now}
	p.entries[discordID] = entry
	return entry
}

// Get returns the user's attempt if it has not expired.
func (p *PendingStore) Get(discordID string) (Pending, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[discordID]
	if !ok {
		return Pending{}, false
	}
	if p.expired(entry, p.clock.Now()) {
		delete(p.entries, discordID)
		return Pending{}, false
	}
	return entry, true
}

func (p *PendingStore) Delete(discordID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, discordID)
}

func (p *PendingStore) expired(entry Pending, now time.Time) bool {
	return now.Sub(entry.StartedAt) >= p.ttl
}

func (p *PendingStore) sweep(now time.Time) {
	for id, entry := range p.entries {
		if p.expired(entry, now) {
			delete(p.entries, id)
		}
	}
}
