package router

import "sync"

// EscalationGate implements the "explicit escalation request forces the
// next decision to deep, once" rule. It is a single-use latch, scoped to
// one scan's agent loop.
type EscalationGate struct {
	mu      sync.Mutex
	pending bool
}

// RequestEscalation arms the gate. The next call to Consume returns true
// exactly once, then the gate resets.
func (g *EscalationGate) RequestEscalation() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = true
}

// Consume reports whether an escalation is armed, clearing it as a side
// effect so it fires at most once per request.
func (g *EscalationGate) Consume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.pending {
		return false
	}
	g.pending = false
	return true
}
