// Package events implements the per-scan ordered event bus: Publish
// assigns a dense monotonic sequence number, Subscribe replays retained
// history then tails live events, and a slow subscriber that falls more
// than MaxLag behind is dropped with a terminal stream_overflow event
// rather than blocking publishers. Modeled on the teacher's
// pkg/events.ConnectionManager (channel-scoped subscriber fan-out,
// per-connection send timeout so one slow client cannot stall others)
// but restructured from WebSocket-connection-centric broadcast into a
// plain in-process pub/sub primitive — the WebSocket transport in
// pkg/transport is a thin consumer of this bus, not the bus itself.
package events

import (
	"sync"
	"time"

	"github.com/redlance/redlance/pkg/models"
)

// Bus owns the ordered event stream for every active scan.
type Bus struct {
	mu    sync.Mutex
	scans map[string]*scanStream
	// MaxLag subscribers may fall behind before being dropped.
	maxLag int
	// RetentionGrace is how long a terminal scan's history is kept before
	// pkg/cleanup may purge it.
	retentionGrace time.Duration
}

type scanStream struct {
	mu          sync.Mutex
	nextSeq     int64
	retained    []models.Event
	subscribers map[int64]*subscriber
	nextSubID   int64
	terminalAt  *time.Time
}

// NewBus constructs a Bus with the given backpressure and retention
// configuration.
func NewBus(maxLag int, retentionGrace time.Duration) *Bus {
	if maxLag <= 0 {
		maxLag = 256
	}
	return &Bus{
		scans:          make(map[string]*scanStream),
		maxLag:         maxLag,
		retentionGrace: retentionGrace,
	}
}

func (b *Bus) streamFor(scanID string) *scanStream {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.scans[scanID]
	if !ok {
		s = &scanStream{subscribers: make(map[int64]*subscriber)}
		b.scans[scanID] = s
	}
	return s
}

// Publish assigns the next dense sequence number for scanID to event and
// fans it out to every live subscriber, in order. Publish never blocks on
// a slow subscriber: subscribers that exceed MaxLag are dropped and sent
// one final stream_overflow event, for which their channel keeps a slot.
func (b *Bus) Publish(scanID string, event models.Event) models.Event {
	s := b.streamFor(scanID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeq++
	event.ScanID = scanID
	event.Sequence = s.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.retained = append(s.retained, event)
	if event.Kind.IsTerminal() {
		now := time.Now()
		s.terminalAt = &now
	}

	// All channel sends for this stream — both backlog replay in
	// Subscribe and live delivery here — happen while holding s.mu, so a
	// subscriber's channel never receives two concurrent writers and
	// ordering is preserved even across the subscribe/publish race.
	for id, sub := range s.subscribers {
		b.deliverLocked(s, id, sub, event)
	}
	return event
}

// deliverLocked must be called with s.mu held. Every channel has room for
// its buffer plus MaxLag unread events and one slot reserved for the
// overflow event, so no send here blocks and no event is lost while the
// subscriber is within MaxLag.
func (b *Bus) deliverLocked(s *scanStream, id int64, sub *subscriber, event models.Event) {
	if len(sub.ch) < cap(sub.ch)-1 {
		sub.ch <- event
		return
	}

	delete(s.subscribers, id)
	overflow := models.Event{
		ScanID:    sub.scanID,
		Timestamp: time.Now(),
		Kind:      models.EventStreamOverflow,
		Payload:   map[string]any{"reason": "subscriber exceeded max_lag"},
	}
	sub.ch <- overflow // the reserved last slot
	close(sub.ch)
}

// Subscribe returns a channel that first replays retained events from
// fromSequence (exclusive) or from the beginning if fromSequence is 0,
// then tails live events as Publish is called. The returned cancel func
// must be called when the caller is done to release the subscription.
func (b *Bus) Subscribe(scanID string, fromSequence int64, bufferSize int) (<-chan models.Event, func()) {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	s := b.streamFor(scanID)

	s.mu.Lock()
	defer s.mu.Unlock()

	backlog := make([]models.Event, 0, len(s.retained))
	for _, e := range s.retained {
		if e.Sequence > fromSequence {
			backlog = append(backlog, e)
		}
	}

	// The channel must hold the whole backlog plus bufferSize of live lag,
	// since the backlog is flushed synchronously below with no consumer
	// draining it yet; an undersized channel would deadlock this send. On
	// top of that it holds MaxLag further events and one slot reserved for
	// the stream_overflow event deliverLocked sends when dropping it.
	capacity := bufferSize + len(backlog) + b.maxLag + 1
	sub := &subscriber{
		id:     s.nextSubID,
		scanID: scanID,
		ch:     make(chan models.Event, capacity),
	}
	s.nextSubID++
	s.subscribers[sub.id] = sub

	// Backlog replay happens in the same critical section as live delivery
	// (Publish's deliverLocked also runs under s.mu), so a concurrent
	// Publish cannot deliver a live event ahead of this backlog — the
	// subscriber's channel always sees strictly increasing sequence
	// numbers with no reordering.
	for _, e := range backlog {
		sub.ch <- e
	}

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[sub.id]; ok {
			delete(s.subscribers, sub.id)
			close(sub.ch)
		}
		s.mu.Unlock()
	}
	return sub.ch, cancel
}

// Retained returns a snapshot of every event published for scanID so far,
// in order. Used by the storage/cleanup layers, not by live subscribers.
func (b *Bus) Retained(scanID string) []models.Event {
	s := b.streamFor(scanID)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Event, len(s.retained))
	copy(out, s.retained)
	return out
}

// TerminalAt reports when scanID's stream reached a terminal event, if it
// has. Used by pkg/cleanup to compute retention-grace expiry.
func (b *Bus) TerminalAt(scanID string) (time.Time, bool) {
	s := b.streamFor(scanID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminalAt == nil {
		return time.Time{}, false
	}
	return *s.terminalAt, true
}

// RetentionGrace returns the configured post-terminal retention window.
func (b *Bus) RetentionGrace() time.Duration { return b.retentionGrace }

// Purge drops all retained state for scanID. Called by pkg/cleanup once
// RetentionGrace has elapsed past a terminal event.
func (b *Bus) Purge(scanID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.scans, scanID)
}

// ScanIDs returns every scan with retained state, for cleanup sweeps.
func (b *Bus) ScanIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.scans))
	for id := range b.scans {
		out = append(out, id)
	}
	return out
}

type subscriber struct {
	id     int64
	scanID string
	ch     chan models.Event
	mu     sync.Mutex
}
