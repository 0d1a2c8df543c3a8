package realtime

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hardik18-hk19/urbi-fix-sub000/internal/metrics"
)

// Event names delivered over the per-room channel.
const (
	EventNewMessage         = "new_message"
	EventNewPriceOffer      = "new_price_offer"
	EventPriceOfferResponse = "price_offer_response"
	EventUserTyping         = "user_typing"
	EventUserStoppedTyping  = "user_stopped_typing"
	EventUserJoinedChat     = "user_joined_chat"
	EventUserLeftChat       = "user_left_chat"
)

// Event is a realtime notification scoped to one room.
type Event struct {
	Type      string      `json:"type"`
	RoomID    uuid.UUID   `json:"room_id"`
	UserID    uuid.UUID   `json:"user_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Subscription is one connection's membership in a room.
type Subscription struct {
	ConnID string
	UserID uuid.UUID
	events chan Event
}

// Events is the ordered stream for this connection. The channel is closed
// when the subscription is removed, either by Leave or by falling behind.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

const subscriberBuffer = 64

type room struct {
	id uuid.UUID

	mu     sync.Mutex
	subs   map[string]*Subscription
	typing map[uuid.UUID]*time.Timer
	queue  chan Event
	done   chan struct{}
}

// Hub is the room-based broadcaster. Each room owns a single dispatch
// goroutine draining an ordered queue, so events reach every joined
// connection in publish order.
type Hub struct {
	mu        sync.Mutex
	rooms     map[uuid.UUID]*room
	typingTTL time.Duration
}

func NewHub(typingTTL time.Duration) *Hub {
	if typingTTL <= 0 {
		typingTTL = 2 * time.Second
	}
	return &Hub{
		rooms:     make(map[uuid.UUID]*room),
		typingTTL: typingTTL,
	}
}

func (h *Hub) getOrCreateRoom(roomID uuid.UUID) *room {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[roomID]
	if !ok {
		r = &room{
			id:     roomID,
			subs:   make(map[string]*Subscription),
			typing: make(map[uuid.UUID]*time.Timer),
			queue:  make(chan Event, 256),
			done:   make(chan struct{}),
		}
		h.rooms[roomID] = r
		go r.dispatch()
	}
	return r
}

// Join adds a connection to the room's subscriber set and announces it.
func (h *Hub) Join(roomID uuid.UUID, connID string, userID uuid.UUID) *Subscription {
	r := h.getOrCreateRoom(roomID)

	sub := &Subscription{
		ConnID: connID,
		UserID: userID,
		events: make(chan Event, subscriberBuffer),
	}
	r.mu.Lock()
	r.subs[connID] = sub
	r.mu.Unlock()

	h.Publish(roomID, Event{
		Type:      EventUserJoinedChat,
		RoomID:    roomID,
		UserID:    userID,
		Timestamp: time.Now(),
	})
	return sub
}

// Leave removes the connection and announces the departure. It is also the
// implicit-disconnect path, so it tolerates repeated calls.
func (h *Hub) Leave(roomID uuid.UUID, connID string) {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	h.mu.Unlock()
	if !ok {
		return
	}

	r.mu.Lock()
	sub, ok := r.subs[connID]
	if ok {
		delete(r.subs, connID)
		close(sub.events)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	h.stopTyping(r, sub.UserID, false)

	h.Publish(roomID, Event{
		Type:      EventUserLeftChat,
		RoomID:    roomID,
		UserID:    sub.UserID,
		Timestamp: time.Now(),
	})
}

// Publish enqueues an event for in-order delivery to the room's current
// subscribers. Rooms nobody has joined drop events silently: missed history
// is resynchronized via the chat log, not the broadcaster.
func (h *Hub) Publish(roomID uuid.UUID, event Event) {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	h.mu.Unlock()
	if !ok {
		return
	}

	select {
	case r.queue <- event:
	case <-r.done:
	}
}

// Participants reports the user ids currently connected to the room.
func (h *Hub) Participants(roomID uuid.UUID) []uuid.UUID {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	h.mu.Unlock()
	if !ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[uuid.UUID]struct{}, len(r.subs))
	var users []uuid.UUID
	for _, sub := range r.subs {
		if _, dup := seen[sub.UserID]; dup {
			continue
		}
		seen[sub.UserID] = struct{}{}
		users = append(users, sub.UserID)
	}
	return users
}

// Typing marks a participant as typing and broadcasts the indicator. The
// mark auto-expires after the typing TTL unless rearmed; expiry broadcasts
// user_stopped_typing without requiring an explicit stop.
func (h *Hub) Typing(roomID uuid.UUID, userID uuid.UUID) {
	r := h.getOrCreateRoom(roomID)

	r.mu.Lock()
	if timer, ok := r.typing[userID]; ok {
		timer.Reset(h.typingTTL)
		r.mu.Unlock()
		return
	}
	r.typing[userID] = time.AfterFunc(h.typingTTL, func() {
		h.stopTyping(r, userID, true)
	})
	r.mu.Unlock()

	h.Publish(roomID, Event{
		Type:      EventUserTyping,
		RoomID:    roomID,
		UserID:    userID,
		Timestamp: time.Now(),
	})
}

// StopTyping clears the indicator explicitly.
func (h *Hub) StopTyping(roomID uuid.UUID, userID uuid.UUID) {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	h.mu.Unlock()
	if !ok {
		return
	}
	h.stopTyping(r, userID, true)
}

func (h *Hub) stopTyping(r *room, userID uuid.UUID, broadcast bool) {
	r.mu.Lock()
	timer, ok := r.typing[userID]
	if ok {
		timer.Stop()
		delete(r.typing, userID)
	}
	r.mu.Unlock()
	if !ok || !broadcast {
		return
	}

	h.Publish(r.id, Event{
		Type:      EventUserStoppedTyping,
		RoomID:    r.id,
		UserID:    userID,
		Timestamp: time.Now(),
	})
}

// Close stops every room dispatcher and closes all subscriber channels.
func (h *Hub) Close() {
	h.mu.Lock()
	rooms := make([]*room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.rooms = make(map[uuid.UUID]*room)
	h.mu.Unlock()

	for _, r := range rooms {
		close(r.done)
		r.mu.Lock()
		for connID, sub := range r.subs {
			delete(r.subs, connID)
			close(sub.events)
		}
		for userID, timer := range r.typing {
			timer.Stop()
			delete(r.typing, userID)
		}
		r.mu.Unlock()
	}
}

// dispatch is the room's single delivery loop: events leave the queue in
// publish order and fan out to every subscriber before the next event is
// taken, so no connection ever observes a reordering.
func (r *room) dispatch() {
	for {
		select {
		case event := <-r.queue:
			r.fanOut(event)
		case <-r.done:
			return
		}
	}
}

func (r *room) fanOut(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for connID, sub := range r.subs {
		select {
		case sub.events <- event:
			metrics.RealtimeEventsDelivered.Inc()
		default:
			// A full buffer means the client stopped reading; drop the
			// connection rather than stall the room. The client re-syncs
			// from the message log on reconnect.
			log.Printf("realtime: dropping slow subscriber %s in room %s", connID, r.id)
			delete(r.subs, connID)
			close(sub.events)
			metrics.RealtimeSubscribersDropped.Inc()
		}
	}
}
