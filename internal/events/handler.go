package events

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rocky-roll-call/rrc-backend/internal/casts"
	"github.com/rocky-roll-call/rrc-backend/internal/middleware"
	"github.com/rocky-roll-call/rrc-backend/internal/models"
	"github.com/rocky-roll-call/rrc-backend/pkg/response"
)

// ManagerChecker reports whether a profile manages a cast.
type ManagerChecker interface {
	IsManager(ctx context.Context, castID, profileID uuid.UUID) (bool, error)
}

// ContextEvent is the context key for the event loaded by RequireEventManager.
const ContextEvent = "event"

// Handler handles event and casting HTTP endpoints.
type Handler struct {
	svc      *Service
	managers ManagerChecker
	logger   *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(svc *Service, managers ManagerChecker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, managers: managers, logger: logger}
}

// Register mounts the event routes on the public and JWT-protected groups.
func (h *Handler) Register(public, api gin.IRoutes) {
	manager := h.RequireEventManager()

	public.GET("/roles", h.Roles)
	public.GET("/events", h.List)
	public.GET("/events/upcoming", h.Upcoming)
	public.GET("/events/:id", h.Get)
	public.GET("/events/:id/castings", h.ListCastings)
	public.GET("/events/:id/castings/:cid", h.GetCasting)

	api.POST("/events", h.Create)
	api.PATCH("/events/:id", manager, h.Update)
	api.DELETE("/events/:id", manager, h.Delete)
	api.POST("/events/:id/castings", manager, h.CreateCasting)
	api.PATCH("/events/:id/castings/:cid", manager, h.UpdateCasting)
	api.DELETE("/events/:id/castings/:cid", manager, h.DeleteCasting)
}

// RequireEventManager validates that the caller manages the cast owning the
// event named by :id. Call after JWT.
func (h *Handler) RequireEventManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid event id")
			c.Abort()
			return
		}
		e, err := h.svc.Get(c.Request.Context(), id)
		if err != nil {
			h.fail(c, err, "failed to load event")
			c.Abort()
			return
		}
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		ok, err := h.managers.IsManager(c.Request.Context(), e.CastID, userID)
		if err != nil {
			h.fail(c, err, "failed to check cast access")
			c.Abort()
			return
		}
		if !ok {
			response.Forbidden(c, "only cast managers can do this")
			c.Abort()
			return
		}
		c.Set(ContextEvent, e)
		c.Next()
	}
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case IsRejection(err):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrEventNotFound):
		response.NotFound(c, "event not found")
	case errors.Is(err, ErrCastingNotFound):
		response.NotFound(c, "casting not found")
	case errors.Is(err, casts.ErrCastNotFound):
		response.NotFound(c, "cast not found")
	default:
		h.logger.Error(msg, zap.Error(err))
		response.Internal(c, msg)
	}
}

func optionalCastID(c *gin.Context) (*uuid.UUID, bool) {
	raw := c.Query("cast_id")
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.BadRequest(c, "invalid cast_id")
		return nil, false
	}
	return &id, true
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		response.BadRequest(c, "invalid "+key)
		return 0, false
	}
	return n, true
}

// Roles handles GET /roles.
func (h *Handler) Roles(c *gin.Context) {
	roles := models.Roles()
	out := make([]models.RoleInfo, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.Info())
	}
	response.OK(c, out)
}

// List handles GET /events with an optional cast_id filter.
func (h *Handler) List(c *gin.Context) {
	castID, ok := optionalCastID(c)
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), castID)
	if err != nil {
		h.fail(c, err, "failed to list events")
		return
	}
	response.OK(c, list)
}

// Upcoming handles GET /events/upcoming?days=&limit=&cast_id=.
func (h *Handler) Upcoming(c *gin.Context) {
	castID, ok := optionalCastID(c)
	if !ok {
		return
	}
	days, ok := queryInt(c, "days")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	out, err := h.svc.Upcoming(c.Request.Context(), days, limit, castID)
	if err != nil {
		h.fail(c, err, "failed to load upcoming events")
		return
	}
	response.OK(c, out)
}

// Get handles GET /events/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to load event")
		return
	}
	response.OK(c, e)
}

// Create handles POST /events. The caller must manage the owning cast.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body EventInput
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "cast_id, name and starts_at required")
		return
	}
	ok, err := h.managers.IsManager(c.Request.Context(), body.CastID, userID)
	if err != nil {
		h.fail(c, err, "failed to check cast access")
		return
	}
	if !ok {
		response.Forbidden(c, "only cast managers can do this")
		return
	}
	e, err := h.svc.CreateEvent(c.Request.Context(), body)
	if err != nil {
		h.fail(c, err, "failed to create event")
		return
	}
	response.Created(c, e)
}

// Update handles PATCH /events/:id.
func (h *Handler) Update(c *gin.Context) {
	e := c.MustGet(ContextEvent).(*models.Event)
	var body EventPatch
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid body")
		return
	}
	updated, err := h.svc.UpdateEvent(c.Request.Context(), e.ID, body)
	if err != nil {
		h.fail(c, err, "failed to update event")
		return
	}
	response.OK(c, updated)
}

// Delete handles DELETE /events/:id.
func (h *Handler) Delete(c *gin.Context) {
	e := c.MustGet(ContextEvent).(*models.Event)
	if err := h.svc.DeleteEvent(c.Request.Context(), e.ID); err != nil {
		h.fail(c, err, "failed to delete event")
		return
	}
	response.NoContent(c)
}

// ListCastings handles GET /events/:id/castings.
func (h *Handler) ListCastings(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.svc.Castings(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to list castings")
		return
	}
	response.OK(c, list)
}

// GetCasting handles GET /events/:id/castings/:cid.
func (h *Handler) GetCasting(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	cid, err := uuid.Parse(c.Param("cid"))
	if err != nil {
		response.BadRequest(c, "invalid casting id")
		return
	}
	casting, err := h.svc.GetCasting(c.Request.Context(), id, cid)
	if err != nil {
		h.fail(c, err, "failed to load casting")
		return
	}
	response.OK(c, casting)
}

// CreateCasting handles POST /events/:id/castings.
func (h *Handler) CreateCasting(c *gin.Context) {
	e := c.MustGet(ContextEvent).(*models.Event)
	var body CastingInput
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid body")
		return
	}
	casting, err := h.svc.CreateCasting(c.Request.Context(), e.ID, body)
	if err != nil {
		h.fail(c, err, "failed to create casting")
		return
	}
	response.Created(c, casting)
}

// UpdateCasting handles PATCH /events/:id/castings/:cid.
func (h *Handler) UpdateCasting(c *gin.Context) {
	e := c.MustGet(ContextEvent).(*models.Event)
	cid, err := uuid.Parse(c.Param("cid"))
	if err != nil {
		response.BadRequest(c, "invalid casting id")
		return
	}
	var body CastingPatch
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid body")
		return
	}
	casting, err := h.svc.UpdateCasting(c.Request.Context(), e.ID, cid, body)
	if err != nil {
		h.fail(c, err, "failed to update casting")
		return
	}
	response.OK(c, casting)
}

// DeleteCasting handles DELETE /events/:id/castings/:cid.
func (h *Handler) DeleteCasting(c *gin.Context) {
	e := c.MustGet(ContextEvent).(*models.Event)
	cid, err := uuid.Parse(c.Param("cid"))
	if err != nil {
		response.BadRequest(c, "invalid casting id")
		return
	}
	if err := h.svc.DeleteCasting(c.Request.Context(), e.ID, cid); err != nil {
		h.fail(c, err, "failed to delete casting")
		return
	}
	response.NoContent(c)
}
