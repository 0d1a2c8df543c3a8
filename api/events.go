package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hardik18-hk19/urbi-fix-sub000/internal/realtime"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/service/chat"
)

// Broadcaster is the hub surface the event stream needs.
type Broadcaster interface {
	Join(roomID uuid.UUID, connID string, userID uuid.UUID) *realtime.Subscription
	Leave(roomID uuid.UUID, connID string)
	Typing(roomID uuid.UUID, userID uuid.UUID)
	StopTyping(roomID uuid.UUID, userID uuid.UUID)
	Participants(roomID uuid.UUID) []uuid.UUID
}

// EventsHandler serves the per-room realtime stream over SSE plus the typing
// and presence endpoints. Missed events are resynchronized through the
// message log, so the stream carries live traffic only.
type EventsHandler struct {
	service chat.ChatUseCase
	hub     Broadcaster
}

func NewEventsHandler(service chat.ChatUseCase, hub Broadcaster) *EventsHandler {
	return &EventsHandler{service: service, hub: hub}
}

func (h *EventsHandler) Register(router *gin.RouterGroup) {
	router.GET("/:roomId/events", h.stream)
	router.GET("/:roomId/participants", h.participants)
	router.POST("/:roomId/typing/start", h.typingStart)
	router.POST("/:roomId/typing/stop", h.typingStop)
}

func (h *EventsHandler) stream(c *gin.Context) {
	roomID, ok := h.roomForActor(c)
	if !ok {
		return
	}

	connID := uuid.New().String()
	sub := h.hub.Join(roomID, connID, actor(c).UserID)
	defer h.hub.Leave(roomID, connID)

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, open := <-sub.Events():
			if !open {
				return false
			}
			c.SSEvent(event.Type, event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *EventsHandler) participants(c *gin.Context) {
	roomID, ok := h.roomForActor(c)
	if !ok {
		return
	}

	users := h.hub.Participants(roomID)
	out := make([]string, 0, len(users))
	for _, id := range users {
		out = append(out, id.String())
	}
	c.JSON(http.StatusOK, gin.H{"participants": out})
}

func (h *EventsHandler) typingStart(c *gin.Context) {
	roomID, ok := h.roomForActor(c)
	if !ok {
		return
	}
	h.hub.Typing(roomID, actor(c).UserID)
	c.Status(http.StatusNoContent)
}

func (h *EventsHandler) typingStop(c *gin.Context) {
	roomID, ok := h.roomForActor(c)
	if !ok {
		return
	}
	h.hub.StopTyping(roomID, actor(c).UserID)
	c.Status(http.StatusNoContent)
}

func (h *EventsHandler) roomForActor(c *gin.Context) (uuid.UUID, bool) {
	roomID, ok := parseUUIDParam(c, "roomId")
	if !ok {
		return uuid.Nil, false
	}
	if _, err := h.service.Room(c.Request.Context(), roomID, actor(c)); err != nil {
		respondError(c, err)
		return uuid.Nil, false
	}
	return roomID, true
}

var _ Broadcaster = (*realtime.Hub)(nil)
