package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hardik18-hk19/urbi-fix-sub000/internal/domain"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/service/booking"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type transitionRequest struct {
	Status string `json:"status"`
}

type bookingResponse struct {
	ID                    string `json:"id"`
	ConsumerID            string `json:"consumer_id"`
	ProviderID            string `json:"provider_id"`
	ServiceID             string `json:"service_id"`
	Status                string `json:"status"`
	OriginalAmountCents   int64  `json:"original_amount_cents"`
	NegotiatedAmountCents *int64 `json:"negotiated_amount_cents,omitempty"`
	CurrentAmountCents    int64  `json:"current_amount_cents"`
	ScheduledDate         string `json:"scheduled_date"`
	ScheduledTime         string `json:"scheduled_time,omitempty"`
	Notes                 string `json:"notes,omitempty"`
	PaymentStatus         string `json:"payment_status"`
	CreatedAt             string `json:"created_at"`
	UpdatedAt             string `json:"updated_at"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.list)
	router.GET("/:id", h.get)
	router.POST("/:id/status", h.transition)
}

func (h *BookingHandler) list(c *gin.Context) {
	bookings, err := h.service.ListForUser(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

func (h *BookingHandler) get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	bk, err := h.service.Get(c.Request.Context(), id, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(bk))
}

func (h *BookingHandler) transition(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bk, err := h.service.Transition(c.Request.Context(), id, actor(c), domain.BookingStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(bk))
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		ID:                    b.ID.String(),
		ConsumerID:            b.ConsumerID.String(),
		ProviderID:            b.ProviderID.String(),
		ServiceID:             b.ServiceID.String(),
		Status:                string(b.Status),
		OriginalAmountCents:   b.OriginalAmountCents,
		NegotiatedAmountCents: b.NegotiatedAmountCents,
		CurrentAmountCents:    b.CurrentAmountCents(),
		ScheduledDate:         b.ScheduledDate.Format(time.RFC3339),
		ScheduledTime:         b.ScheduledTime,
		Notes:                 b.Notes,
		PaymentStatus:         string(b.PaymentStatus),
		CreatedAt:             b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             b.UpdatedAt.Format(time.RFC3339),
	}
}
