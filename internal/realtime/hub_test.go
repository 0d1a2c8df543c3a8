package realtime

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(sub *Subscription, n int, timeout time.Duration) []Event {
	var events []Event
	deadline := time.After(timeout)
	for len(events) < n {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				return events
			}
			events = append(events, e)
		case <-deadline:
			return events
		}
	}
	return events
}

func TestHub_PublishPreservesOrder(t *testing.T) {
	hub := NewHub(time.Second)
	defer hub.Close()
	roomID := uuid.New()

	sub := hub.Join(roomID, "conn-1", uuid.New())
	// Drain the join announcement first.
	require.Len(t, collect(sub, 1, time.Second), 1)

	const total = 50
	for i := 0; i < total; i++ {
		hub.Publish(roomID, Event{Type: EventNewMessage, RoomID: roomID, Payload: i, Timestamp: time.Now()})
	}

	events := collect(sub, total, 2*time.Second)
	require.Len(t, events, total)
	for i, e := range events {
		assert.Equal(t, i, e.Payload, "event %d out of order", i)
	}
}

func TestHub_JoinAndLeaveAnnounced(t *testing.T) {
	hub := NewHub(time.Second)
	defer hub.Close()
	roomID := uuid.New()
	watcher := uuid.New()
	visitor := uuid.New()

	sub := hub.Join(roomID, "watcher", watcher)
	require.Len(t, collect(sub, 1, time.Second), 1)

	hub.Join(roomID, "visitor", visitor)
	hub.Leave(roomID, "visitor")

	events := collect(sub, 2, time.Second)
	require.Len(t, events, 2)
	assert.Equal(t, EventUserJoinedChat, events[0].Type)
	assert.Equal(t, visitor, events[0].UserID)
	assert.Equal(t, EventUserLeftChat, events[1].Type)
	assert.Equal(t, visitor, events[1].UserID)
}

func TestHub_LeaveIsIdempotent(t *testing.T) {
	hub := NewHub(time.Second)
	defer hub.Close()
	roomID := uuid.New()

	hub.Join(roomID, "conn-1", uuid.New())
	hub.Leave(roomID, "conn-1")
	hub.Leave(roomID, "conn-1")
	hub.Leave(uuid.New(), "ghost")
}

func TestHub_Participants(t *testing.T) {
	hub := NewHub(time.Second)
	defer hub.Close()
	roomID := uuid.New()
	user := uuid.New()

	assert.Empty(t, hub.Participants(roomID))

	// Two connections for the same user count once.
	hub.Join(roomID, "conn-1", user)
	hub.Join(roomID, "conn-2", user)

	participants := hub.Participants(roomID)
	assert.Len(t, participants, 1)
	assert.Equal(t, user, participants[0])
}

func TestHub_TypingExpiresAutomatically(t *testing.T) {
	hub := NewHub(50 * time.Millisecond)
	defer hub.Close()
	roomID := uuid.New()
	typist := uuid.New()

	sub := hub.Join(roomID, "watcher", uuid.New())
	require.Len(t, collect(sub, 1, time.Second), 1)

	hub.Typing(roomID, typist)

	events := collect(sub, 2, time.Second)
	require.Len(t, events, 2)
	assert.Equal(t, EventUserTyping, events[0].Type)
	assert.Equal(t, typist, events[0].UserID)
	assert.Equal(t, EventUserStoppedTyping, events[1].Type)
	assert.Equal(t, typist, events[1].UserID)
}

func TestHub_ExplicitStopTyping(t *testing.T) {
	hub := NewHub(time.Minute)
	defer hub.Close()
	roomID := uuid.New()
	typist := uuid.New()

	sub := hub.Join(roomID, "watcher", uuid.New())
	require.Len(t, collect(sub, 1, time.Second), 1)

	hub.Typing(roomID, typist)
	hub.StopTyping(roomID, typist)

	events := collect(sub, 2, time.Second)
	require.Len(t, events, 2)
	assert.Equal(t, EventUserTyping, events[0].Type)
	assert.Equal(t, EventUserStoppedTyping, events[1].Type)

	// Stopping again is a no-op, no duplicate broadcast.
	hub.StopTyping(roomID, typist)
	assert.Empty(t, collect(sub, 1, 100*time.Millisecond))
}

func TestHub_SlowSubscriberIsDropped(t *testing.T) {
	hub := NewHub(time.Second)
	defer hub.Close()
	roomID := uuid.New()

	slow := hub.Join(roomID, "slow", uuid.New())

	// Nobody reads from slow; overflow its buffer plus the join event.
	for i := 0; i < subscriberBuffer+16; i++ {
		hub.Publish(roomID, Event{Type: EventNewMessage, RoomID: roomID, Payload: fmt.Sprintf("m%d", i)})
	}

	// The dropped subscriber's channel is closed.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-slow.Events():
			if !ok {
				assert.Empty(t, hub.Participants(roomID))
				return
			}
		case <-deadline:
			t.Fatal("slow subscriber was never dropped")
		}
	}
}
