package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hardik18-hk19/urbi-fix-sub000/internal/domain"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"

	actorKey = "actor"
)

// Identity resolves the caller from the trusted gateway headers. The gateway
// terminates authentication; this service only needs who is calling.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.GetHeader(headerUserID))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid " + headerUserID + " header"})
			return
		}

		role := domain.Role(c.GetHeader(headerUserRole))
		switch role {
		case domain.RoleConsumer, domain.RoleProvider, domain.RoleAdmin:
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or unknown " + headerUserRole + " header"})
			return
		}

		c.Set(actorKey, domain.Participant{UserID: userID, Role: role})
		c.Next()
	}
}

func actor(c *gin.Context) domain.Participant {
	v, _ := c.Get(actorKey)
	p, _ := v.(domain.Participant)
	return p
}

// respondError maps domain error kinds onto HTTP statuses. Expired wraps
// Conflict, so it lands on 409 through the Conflict case.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func parseUUIDString(raw string) (*uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
