package security

import (
	"context"
	"sync"
	"time"
)

// Blocked gates outlive idle ones by this factor so a returning session still
// sees its block.
const blockedTTLFactor = 24

// Registry owns one Gate per client session. Idle gates are evicted after
// idleTTL, blocked gates after idleTTL*blockedTTLFactor.
type Registry struct {
	mu      sync.Mutex
	gates   map[string]*registryEntry
	factory func(sessionID string) *Gate
	idleTTL time.Duration
	now     func() time.Time
}

type registryEntry struct {
	gate     *Gate
	lastSeen time.Time
}

func NewRegistry(factory func(sessionID string) *Gate, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = time.Hour
	}
	return &Registry{
		gates:   make(map[string]*registryEntry),
		factory: factory,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Returns the gate for sessionID, creating it on first use
func (r *Registry) Get(sessionID string) *Gate {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if ent, ok := r.gates[sessionID]; ok {
		ent.lastSeen = now
		return ent.gate
	}

	g := r.factory(sessionID)
	r.gates[sessionID] = &registryEntry{gate: g, lastSeen: now}
	return g
}

// Returns the gate for sessionID without creating one
func (r *Registry) Lookup(sessionID string) (*Gate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ent, ok := r.gates[sessionID]
	if !ok {
		return nil, false
	}
	return ent.gate, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.gates)
}

// Session ids of every blocked gate
func (r *Registry) Blocked() []string {
	r.mu.Lock()
	entries := make(map[string]*Gate, len(r.gates))
	for id, ent := range r.gates {
		entries[id] = ent.gate
	}
	r.mu.Unlock()

	var ids []string
	for id, g := range entries {
		if g.IsBlocked() {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Registry) Cleanup() int {
	now := r.now()
	cutoff := now.Add(-r.idleTTL)
	blockedCutoff := now.Add(-r.idleTTL * blockedTTLFactor)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, ent := range r.gates {
		if !ent.lastSeen.Before(cutoff) {
			continue
		}
		if !ent.gate.IsBlocked() || ent.lastSeen.Before(blockedCutoff) {
			delete(r.gates, id)
			removed++
		}
	}
	return removed
}

// Runs Cleanup every interval until ctx is cancelled
func (r *Registry) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.Cleanup()
			}
		}
	}()
}
