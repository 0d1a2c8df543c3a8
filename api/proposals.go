package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hardik18-hk19/urbi-fix-sub000/internal/domain"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/repository"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/service/proposals"
)

type ProposalHandler struct {
	service proposals.ProposalUseCase
}

type createProposalRequest struct {
	BookingID       string                 `json:"booking_id"`
	ProposalType    string                 `json:"proposal_type"`
	ProposedChanges domain.ProposedChanges `json:"proposed_changes"`
	Justification   string                 `json:"justification"`
	ExpirationHours int                    `json:"expiration_hours"`
}

type respondProposalRequest struct {
	Action          string `json:"action"`
	ResponseMessage string `json:"response_message"`
}

type proposalResponse struct {
	ID              string                 `json:"id"`
	BookingID       string                 `json:"booking_id"`
	ProposedBy      string                 `json:"proposed_by"`
	ProposedTo      string                 `json:"proposed_to"`
	ProposalType    string                 `json:"proposal_type"`
	ProposedChanges domain.ProposedChanges `json:"proposed_changes"`
	Justification   string                 `json:"justification"`
	Status          string                 `json:"status"`
	ResponseMessage string                 `json:"response_message,omitempty"`
	ExpiresAt       string                 `json:"expires_at"`
	CreatedAt       string                 `json:"created_at"`
}

func NewProposalHandler(service proposals.ProposalUseCase) *ProposalHandler {
	return &ProposalHandler{service: service}
}

func (h *ProposalHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/", h.listForUser)
	router.GET("/:id", h.get)
	router.POST("/:id/respond", h.respond)
	router.DELETE("/:id", h.cancel)
	router.GET("/booking/:bookingId", h.listByBooking)
}

func (h *ProposalHandler) create(c *gin.Context) {
	var req createProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking_id"})
		return
	}

	proposal, err := h.service.Create(c.Request.Context(), proposals.CreateProposalInput{
		BookingID:       bookingID,
		Actor:           actor(c),
		Kind:            domain.ProposalKind(req.ProposalType),
		Changes:         req.ProposedChanges,
		Justification:   req.Justification,
		ExpirationHours: req.ExpirationHours,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProposalResponse(proposal))
}

func (h *ProposalHandler) respond(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req respondProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	proposal, err := h.service.Respond(c.Request.Context(), proposals.RespondInput{
		ProposalID:      id,
		Actor:           actor(c),
		Action:          req.Action,
		ResponseMessage: req.ResponseMessage,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProposalResponse(proposal))
}

func (h *ProposalHandler) cancel(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	proposal, err := h.service.Cancel(c.Request.Context(), id, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProposalResponse(proposal))
}

func (h *ProposalHandler) get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	proposal, err := h.service.Get(c.Request.Context(), id, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProposalResponse(proposal))
}

func (h *ProposalHandler) listByBooking(c *gin.Context) {
	bookingID, ok := parseUUIDParam(c, "bookingId")
	if !ok {
		return
	}

	list, err := h.service.ListByBooking(c.Request.Context(), bookingID, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": toProposalResponses(list)})
}

func (h *ProposalHandler) listForUser(c *gin.Context) {
	filter := repository.ProposalFilter{Direction: c.Query("direction")}
	if raw := c.Query("status"); raw != "" {
		status := domain.ProposalStatus(raw)
		filter.Status = &status
	}

	list, err := h.service.ListForUser(c.Request.Context(), actor(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": toProposalResponses(list)})
}

func toProposalResponses(list []domain.Proposal) []proposalResponse {
	out := make([]proposalResponse, 0, len(list))
	for i := range list {
		out = append(out, toProposalResponse(&list[i]))
	}
	return out
}

func toProposalResponse(p *domain.Proposal) proposalResponse {
	return proposalResponse{
		ID:              p.ID.String(),
		BookingID:       p.BookingID.String(),
		ProposedBy:      p.ProposedBy.String(),
		ProposedTo:      p.ProposedTo.String(),
		ProposalType:    string(p.Kind),
		ProposedChanges: p.Changes,
		Justification:   p.Justification,
		Status:          string(p.Status),
		ResponseMessage: p.ResponseMessage,
		ExpiresAt:       p.ExpiresAt.Format(time.RFC3339),
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
	}
}
