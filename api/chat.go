package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hardik18-hk19/urbi-fix-sub000/internal/domain"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/service/chat"
)

type ChatHandler struct {
	service chat.ChatUseCase
}

type sendMessageRequest struct {
	Text    string  `json:"text"`
	ReplyTo *string `json:"reply_to,omitempty"`
}

type sendPriceOfferRequest struct {
	AmountCents int64      `json:"amount_cents"`
	Description string     `json:"description"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
	ValidHours  int        `json:"valid_hours,omitempty"`
}

type respondOfferRequest struct {
	Action string `json:"action"`
}

type scheduleModificationRequest struct {
	ProposedDate time.Time `json:"proposed_date"`
	ProposedTime string    `json:"proposed_time"`
	Reason       string    `json:"reason"`
}

type roomResponse struct {
	ID         string `json:"id"`
	BookingID  string `json:"booking_id"`
	ConsumerID string `json:"consumer_id"`
	ProviderID string `json:"provider_id"`
	CreatedAt  string `json:"created_at"`
}

type messageResponse struct {
	ID        string                `json:"id"`
	RoomID    string                `json:"room_id"`
	SenderID  string                `json:"sender_id"`
	Seq       int64                 `json:"seq"`
	Type      string                `json:"type"`
	Content   domain.MessageContent `json:"content"`
	ReplyTo   *string               `json:"reply_to,omitempty"`
	CreatedAt string                `json:"created_at"`
}

func NewChatHandler(service chat.ChatUseCase) *ChatHandler {
	return &ChatHandler{service: service}
}

func (h *ChatHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.listRooms)
	router.GET("/booking/:bookingId", h.roomForBooking)
	router.GET("/:roomId/messages", h.listMessages)
	router.POST("/:roomId/messages", h.sendMessage)
	router.POST("/:roomId/price-offer", h.sendPriceOffer)
	router.POST("/:roomId/price-offer/:messageId/respond", h.respondToPriceOffer)
	router.POST("/:roomId/schedule-modification", h.sendScheduleModification)
	router.POST("/:roomId/attachments", h.uploadAttachment)
}

func (h *ChatHandler) listRooms(c *gin.Context) {
	rooms, err := h.service.ListRooms(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]roomResponse, 0, len(rooms))
	for i := range rooms {
		out = append(out, toRoomResponse(&rooms[i]))
	}
	c.JSON(http.StatusOK, gin.H{"rooms": out})
}

func (h *ChatHandler) roomForBooking(c *gin.Context) {
	bookingID, ok := parseUUIDParam(c, "bookingId")
	if !ok {
		return
	}

	room, err := h.service.GetOrCreateRoom(c.Request.Context(), bookingID, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRoomResponse(room))
}

func (h *ChatHandler) listMessages(c *gin.Context) {
	roomID, ok := parseUUIDParam(c, "roomId")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	messages, err := h.service.ListMessages(c.Request.Context(), roomID, actor(c), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": toMessageResponses(messages)})
}

func (h *ChatHandler) sendMessage(c *gin.Context) {
	roomID, ok := parseUUIDParam(c, "roomId")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := chat.SendTextInput{
		RoomID: roomID,
		Actor:  actor(c),
		Text:   req.Text,
	}
	if req.ReplyTo != nil {
		replyTo, err := parseUUIDString(*req.ReplyTo)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reply_to"})
			return
		}
		input.ReplyTo = replyTo
	}

	message, err := h.service.SendText(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMessageResponse(message))
}

func (h *ChatHandler) sendPriceOffer(c *gin.Context) {
	roomID, ok := parseUUIDParam(c, "roomId")
	if !ok {
		return
	}
	var req sendPriceOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.service.SendPriceOffer(c.Request.Context(), chat.SendPriceOfferInput{
		RoomID:      roomID,
		Actor:       actor(c),
		AmountCents: req.AmountCents,
		Description: req.Description,
		ValidUntil:  req.ValidUntil,
		ValidHours:  req.ValidHours,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMessageResponse(message))
}

func (h *ChatHandler) respondToPriceOffer(c *gin.Context) {
	roomID, ok := parseUUIDParam(c, "roomId")
	if !ok {
		return
	}
	messageID, ok := parseUUIDParam(c, "messageId")
	if !ok {
		return
	}
	var req respondOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.service.RespondToPriceOffer(c.Request.Context(), chat.RespondToOfferInput{
		RoomID:    roomID,
		MessageID: messageID,
		Actor:     actor(c),
		Action:    req.Action,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMessageResponse(message))
}

func (h *ChatHandler) sendScheduleModification(c *gin.Context) {
	roomID, ok := parseUUIDParam(c, "roomId")
	if !ok {
		return
	}
	var req scheduleModificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.service.SendScheduleModification(c.Request.Context(), chat.SendScheduleInput{
		RoomID:       roomID,
		Actor:        actor(c),
		ProposedDate: req.ProposedDate,
		ProposedTime: req.ProposedTime,
		Reason:       req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMessageResponse(message))
}

func (h *ChatHandler) uploadAttachment(c *gin.Context) {
	roomID, ok := parseUUIDParam(c, "roomId")
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	message, err := h.service.SendAttachment(c.Request.Context(), chat.SendAttachmentInput{
		RoomID:   roomID,
		Actor:    actor(c),
		Filename: header.Filename,
		Size:     header.Size,
		File:     file,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMessageResponse(message))
}

func toRoomResponse(r *domain.ChatRoom) roomResponse {
	return roomResponse{
		ID:         r.ID.String(),
		BookingID:  r.BookingID.String(),
		ConsumerID: r.ConsumerID.String(),
		ProviderID: r.ProviderID.String(),
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
	}
}

func toMessageResponses(list []domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(list))
	for i := range list {
		out = append(out, toMessageResponse(&list[i]))
	}
	return out
}

func toMessageResponse(m *domain.Message) messageResponse {
	resp := messageResponse{
		ID:        m.ID.String(),
		RoomID:    m.RoomID.String(),
		SenderID:  m.SenderID.String(),
		Seq:       m.Seq,
		Type:      string(m.Type),
		Content:   m.Content,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
	if m.ReplyTo != nil {
		replyTo := m.ReplyTo.String()
		resp.ReplyTo = &replyTo
	}
	return resp
}
