package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redlance/redlance/pkg/models"
)

func TestPublishAssignsDenseMonotonicSequence(t *testing.T) {
	b := NewBus(0, time.Minute)
	e1 := b.Publish("scan-1", models.Event{Kind: models.EventToolCall})
	e2 := b.Publish("scan-1", models.Event{Kind: models.EventToolCompleted})
	e3 := b.Publish("scan-1", models.Event{Kind: models.EventScanCompleted})

	assert.Equal(t, int64(1), e1.Sequence)
	assert.Equal(t, int64(2), e2.Sequence)
	assert.Equal(t, int64(3), e3.Sequence)
}

func TestSequencesAreScopedPerScan(t *testing.T) {
	b := NewBus(0, time.Minute)
	a1 := b.Publish("scan-a", models.Event{Kind: models.EventToolCall})
	bScan1 := b.Publish("scan-b", models.Event{Kind: models.EventToolCall})

	assert.Equal(t, int64(1), a1.Sequence)
	assert.Equal(t, int64(1), bScan1.Sequence)
}

func TestSubscribeReceivesLiveEventsInOrder(t *testing.T) {
	b := NewBus(0, time.Minute)
	ch, cancel := b.Subscribe("scan-1", 0, 8)
	defer cancel()

	b.Publish("scan-1", models.Event{Kind: models.EventToolCall})
	b.Publish("scan-1", models.Event{Kind: models.EventToolCompleted})
	b.Publish("scan-1", models.Event{Kind: models.EventScanCompleted})

	var got []models.Event
	for i := 0; i < 3; i++ {
		select {
		case e := <-ch:
			got = append(got, e)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}

	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].Sequence)
	assert.Equal(t, int64(2), got[1].Sequence)
	assert.Equal(t, int64(3), got[2].Sequence)
}

func TestSubscribeReplaysBacklogFromGivenSequence(t *testing.T) {
	b := NewBus(0, time.Minute)
	b.Publish("scan-1", models.Event{Kind: models.EventToolCall})
	b.Publish("scan-1", models.Event{Kind: models.EventToolCall})
	b.Publish("scan-1", models.Event{Kind: models.EventToolCompleted})

	ch, cancel := b.Subscribe("scan-1", 1, 8)
	defer cancel()

	var got []models.Event
	for i := 0; i < 2; i++ {
		select {
		case e := <-ch:
			got = append(got, e)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for backlog replay")
		}
	}

	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].Sequence)
	assert.Equal(t, int64(3), got[1].Sequence)
}

func TestSubscribeFromZeroReplaysFullHistory(t *testing.T) {
	b := NewBus(0, time.Minute)
	b.Publish("scan-1", models.Event{Kind: models.EventToolCall})
	b.Publish("scan-1", models.Event{Kind: models.EventToolCompleted})

	ch, cancel := b.Subscribe("scan-1", 0, 8)
	defer cancel()

	e1 := <-ch
	e2 := <-ch
	assert.Equal(t, int64(1), e1.Sequence)
	assert.Equal(t, int64(2), e2.Sequence)
}

func TestBacklogReplayThenLiveTailHasNoReorderOrDuplicate(t *testing.T) {
	b := NewBus(0, time.Minute)
	b.Publish("scan-1", models.Event{Kind: models.EventToolCall})
	b.Publish("scan-1", models.Event{Kind: models.EventToolCall})

	ch, cancel := b.Subscribe("scan-1", 0, 16)
	defer cancel()

	b.Publish("scan-1", models.Event{Kind: models.EventToolCompleted})
	b.Publish("scan-1", models.Event{Kind: models.EventScanCompleted})

	var got []int64
	for i := 0; i < 4; i++ {
		select {
		case e := <-ch:
			got = append(got, e.Sequence)
		case <-time.After(time.Second):
			t.Fatalf("timed out after receiving %d events", len(got))
		}
	}

	assert.Equal(t, []int64{1, 2, 3, 4}, got)
}

func TestSlowSubscriberIsDroppedPastMaxLagWithOverflowEvent(t *testing.T) {
	b := NewBus(2, time.Minute)
	ch, cancel := b.Subscribe("scan-1", 0, 1) // tiny buffer, never drained
	defer cancel()

	for i := 0; i < 10; i++ {
		b.Publish("scan-1", models.Event{Kind: models.EventToolCall})
	}

	var last models.Event
	for e := range ch {
		last = e
	}
	assert.Equal(t, models.EventStreamOverflow, last.Kind)
}

func TestRetainedReturnsOrderedSnapshot(t *testing.T) {
	b := NewBus(0, time.Minute)
	b.Publish("scan-1", models.Event{Kind: models.EventToolCall})
	b.Publish("scan-1", models.Event{Kind: models.EventToolCompleted})

	retained := b.Retained("scan-1")
	require.Len(t, retained, 2)
	assert.Equal(t, int64(1), retained[0].Sequence)
	assert.Equal(t, int64(2), retained[1].Sequence)
}

func TestTerminalAtSetOnlyAfterTerminalEvent(t *testing.T) {
	b := NewBus(0, time.Minute)
	_, ok := b.TerminalAt("scan-1")
	assert.False(t, ok)

	b.Publish("scan-1", models.Event{Kind: models.EventToolCall})
	_, ok = b.TerminalAt("scan-1")
	assert.False(t, ok)

	b.Publish("scan-1", models.Event{Kind: models.EventScanCompleted})
	ts, ok := b.TerminalAt("scan-1")
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now(), ts, time.Second)
}

func TestPurgeRemovesAllStateForScan(t *testing.T) {
	b := NewBus(0, time.Minute)
	b.Publish("scan-1", models.Event{Kind: models.EventToolCall})
	assert.Contains(t, b.ScanIDs(), "scan-1")

	b.Purge("scan-1")
	assert.NotContains(t, b.ScanIDs(), "scan-1")
	assert.Empty(t, b.Retained("scan-1"))
}

func TestCancelUnsubscribesAndClosesChannel(t *testing.T) {
	b := NewBus(0, time.Minute)
	ch, cancel := b.Subscribe("scan-1", 0, 8)
	cancel()

	b.Publish("scan-1", models.Event{Kind: models.EventToolCall})

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after cancel")
}
