package casts

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rocky-roll-call/rrc-backend/internal/middleware"
	"github.com/rocky-roll-call/rrc-backend/pkg/response"
)

// ContextCastID is the context key for the cast ID once manager access is checked.
const ContextCastID = "cast_id"

// RequireCastManager validates that the caller manages the cast named by the
// :id path parameter. Call after JWT.
func RequireCastManager(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		castID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid cast id")
			c.Abort()
			return
		}
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		ok, err := svc.IsManager(c.Request.Context(), castID, userID)
		if errors.Is(err, ErrCastNotFound) {
			response.NotFound(c, "cast not found")
			c.Abort()
			return
		}
		if err != nil {
			response.Internal(c, "failed to check cast access")
			c.Abort()
			return
		}
		if !ok {
			response.Forbidden(c, "only cast managers can do this")
			c.Abort()
			return
		}
		c.Set(ContextCastID, castID)
		c.Next()
	}
}
