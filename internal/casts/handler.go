package casts

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rocky-roll-call/rrc-backend/internal/middleware"
	"github.com/rocky-roll-call/rrc-backend/internal/models"
	"github.com/rocky-roll-call/rrc-backend/pkg/response"
)

// ProfileLookup reports whether a profile exists.
type ProfileLookup interface {
	ProfileExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// EventLister returns the next future events of a cast.
type EventLister interface {
	CastUpcoming(ctx context.Context, castID uuid.UUID, n int) ([]models.Event, error)
}

// Handler handles cast HTTP endpoints.
type Handler struct {
	svc      *Service
	profiles ProfileLookup
	events   EventLister
	logger   *zap.Logger
}

// NewHandler creates a casts handler. events may be nil.
func NewHandler(svc *Service, profiles ProfileLookup, events EventLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, profiles: profiles, events: events, logger: logger}
}

// Register mounts the cast routes. public takes the read-only routes, api the
// JWT-protected ones; requestLimit guards the member-request endpoints.
func (h *Handler) Register(public, api gin.IRoutes, requestLimit gin.HandlerFunc) {
	manager := RequireCastManager(h.svc)
	if requestLimit == nil {
		requestLimit = func(c *gin.Context) { c.Next() }
	}

	public.GET("/casts", h.List)
	public.GET("/casts/:id", h.Get)
	public.GET("/casts/slug/:slug", h.GetBySlug)
	public.GET("/casts/:id/sections", h.ListSections)

	api.POST("/casts", h.Create)
	api.PATCH("/casts/:id", manager, h.Update)
	api.DELETE("/casts/:id", manager, h.Delete)

	api.POST("/casts/:id/members/:pid", manager, h.relation(OpAddMember))
	api.DELETE("/casts/:id/members/:pid", manager, h.relation(OpRemoveMember))
	api.POST("/casts/:id/managers/:pid", manager, h.relation(OpAddManager))
	api.DELETE("/casts/:id/managers/:pid", manager, h.relation(OpRemoveManager))
	api.POST("/casts/:id/blocked/:pid", manager, h.relation(OpBlockUser))
	api.DELETE("/casts/:id/blocked/:pid", manager, h.relation(OpUnblockUser))
	api.POST("/casts/:id/member-requests/:pid", requestLimit, h.memberRequest(OpAddMemberRequest))
	api.DELETE("/casts/:id/member-requests/:pid", requestLimit, h.memberRequest(OpRemoveMemberRequest))

	api.POST("/casts/:id/sections", manager, h.CreateSection)
	api.PATCH("/casts/:id/sections/:sid", manager, h.UpdateSection)
	api.DELETE("/casts/:id/sections/:sid", manager, h.DeleteSection)
}

// CastDetail is the response of the cast detail endpoints.
type CastDetail struct {
	*models.Cast
	Relations      Snapshot       `json:"relations"`
	UpcomingEvents []models.Event `json:"upcoming_events"`
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case IsRejection(err), errors.Is(err, ErrInvalidName), errors.Is(err, ErrNotSoleManager):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrCastNotFound):
		response.NotFound(c, "cast not found")
	case errors.Is(err, ErrSectionNotFound):
		response.NotFound(c, "section not found")
	case errors.Is(err, ErrDuplicateName):
		response.Conflict(c, "a cast with this name already exists")
	default:
		h.logger.Error(msg, zap.Error(err))
		response.Internal(c, msg)
	}
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.BadRequest(c, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /casts.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to list casts")
		return
	}
	response.OK(c, list)
}

// Get handles GET /casts/:id. Includes relation sets and the next three events.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	cast, m, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to load cast")
		return
	}
	h.detail(c, cast, m)
}

// GetBySlug handles GET /casts/slug/:slug.
func (h *Handler) GetBySlug(c *gin.Context) {
	cast, m, err := h.svc.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.fail(c, err, "failed to load cast")
		return
	}
	h.detail(c, cast, m)
}

func (h *Handler) detail(c *gin.Context, cast *models.Cast, m *Membership) {
	out := CastDetail{Cast: cast, Relations: m.Snapshot(), UpcomingEvents: []models.Event{}}
	if h.events != nil {
		events, err := h.events.CastUpcoming(c.Request.Context(), cast.ID, 3)
		if err != nil {
			h.fail(c, err, "failed to load upcoming events")
			return
		}
		out.UpcomingEvents = events
	}
	response.OK(c, out)
}

// Create handles POST /casts. The caller becomes member and manager.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body CastInput
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name required")
		return
	}
	cast, err := h.svc.Create(c.Request.Context(), userID, body)
	if err != nil {
		h.fail(c, err, "failed to create cast")
		return
	}
	response.Created(c, cast)
}

// Update handles PATCH /casts/:id.
func (h *Handler) Update(c *gin.Context) {
	id := c.MustGet(ContextCastID).(uuid.UUID)
	var body CastPatch
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid body")
		return
	}
	cast, err := h.svc.Update(c.Request.Context(), id, body)
	if err != nil {
		h.fail(c, err, "failed to update cast")
		return
	}
	response.OK(c, cast)
}

// Delete handles DELETE /casts/:id.
func (h *Handler) Delete(c *gin.Context) {
	id := c.MustGet(ContextCastID).(uuid.UUID)
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err, "failed to delete cast")
		return
	}
	response.NoContent(c)
}

func (h *Handler) relation(op Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		castID := c.MustGet(ContextCastID).(uuid.UUID)
		h.apply(c, castID, op)
	}
}

// memberRequest lets a profile manage its own request; managers may act on anyone's.
func (h *Handler) memberRequest(op Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		castID, ok := parseID(c, "id")
		if !ok {
			return
		}
		pid, ok := parseID(c, "pid")
		if !ok {
			return
		}
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		if userID != pid {
			isManager, err := h.svc.IsManager(c.Request.Context(), castID, userID)
			if err != nil {
				h.fail(c, err, "failed to check cast access")
				return
			}
			if !isManager {
				response.Forbidden(c, "only the profile or a cast manager can do this")
				return
			}
		}
		h.apply(c, castID, op)
	}
}

func (h *Handler) apply(c *gin.Context, castID uuid.UUID, op Operation) {
	pid, ok := parseID(c, "pid")
	if !ok {
		return
	}
	if h.profiles != nil {
		exists, err := h.profiles.ProfileExists(c.Request.Context(), pid)
		if err != nil {
			h.fail(c, err, "failed to load profile")
			return
		}
		if !exists {
			response.NotFound(c, "profile not found")
			return
		}
	}
	m, err := h.svc.Apply(c.Request.Context(), castID, op, pid)
	if err != nil {
		h.fail(c, err, "failed to update cast relations")
		return
	}
	response.OK(c, m.Snapshot())
}

// ListSections handles GET /casts/:id/sections.
func (h *Handler) ListSections(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.Sections(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to list sections")
		return
	}
	response.OK(c, list)
}

// CreateSection handles POST /casts/:id/sections.
func (h *Handler) CreateSection(c *gin.Context) {
	castID := c.MustGet(ContextCastID).(uuid.UUID)
	var body SectionInput
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "title required")
		return
	}
	sec, err := h.svc.AddSection(c.Request.Context(), castID, body)
	if err != nil {
		h.fail(c, err, "failed to create section")
		return
	}
	response.Created(c, sec)
}

// UpdateSectionRequest is the body for PATCH /casts/:id/sections/:sid.
type UpdateSectionRequest struct {
	Title *string `json:"title"`
	Text  *string `json:"text"`
	Order *int    `json:"order"`
}

// UpdateSection handles PATCH /casts/:id/sections/:sid.
func (h *Handler) UpdateSection(c *gin.Context) {
	castID := c.MustGet(ContextCastID).(uuid.UUID)
	sid, ok := parseID(c, "sid")
	if !ok {
		return
	}
	var body UpdateSectionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid body")
		return
	}
	sec, err := h.svc.UpdateSection(c.Request.Context(), castID, sid, body.Title, body.Text, body.Order)
	if err != nil {
		h.fail(c, err, "failed to update section")
		return
	}
	response.OK(c, sec)
}

// DeleteSection handles DELETE /casts/:id/sections/:sid.
func (h *Handler) DeleteSection(c *gin.Context) {
	castID := c.MustGet(ContextCastID).(uuid.UUID)
	sid, ok := parseID(c, "sid")
	if !ok {
		return
	}
	if err := h.svc.DeleteSection(c.Request.Context(), castID, sid); err != nil {
		h.fail(c, err, "failed to delete section")
		return
	}
	response.NoContent(c)
}
