package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rocky-roll-call/rrc-backend/internal/models"
	"github.com/rocky-roll-call/rrc-backend/pkg/response"
	"github.com/rocky-roll-call/rrc-backend/pkg/utils"
)

// ContextUserID mirrors middleware.ContextUserID; auth cannot import middleware.
const ContextUserID = "user_id"

// Store persists profiles.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	Create(ctx context.Context, p *models.Profile) error
	Update(ctx context.Context, p *models.Profile) error
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
	Alt      string `json:"alt"`
	Bio      string `json:"bio"`
	Location string `json:"location"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest is the body for PATCH /profiles/me.
type UpdateProfileRequest struct {
	Name     *string `json:"name"`
	Alt      *string `json:"alt"`
	Bio      *string `json:"bio"`
	Location *string `json:"location"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token   string               `json:"token"`
	Profile models.ProfilePublic `json:"profile"`
}

// Handler handles auth and profile HTTP endpoints.
type Handler struct {
	repo   Store
	jwt    *JWTService
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo Store, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, now: time.Now, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		response.BadRequest(c, "name required")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	now := h.now().UTC()
	profile := &models.Profile{
		ID:        uuid.New(),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Password:  hash,
		Name:      name,
		Alt:       strings.TrimSpace(req.Alt),
		Bio:       req.Bio,
		Location:  strings.TrimSpace(req.Location),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.repo.Create(c.Request.Context(), profile); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			response.BadRequest(c, "email already registered")
			return
		}
		h.logger.Error("create profile", zap.Error(err))
		response.Internal(c, "failed to create profile")
		return
	}

	token, err := h.jwt.Generate(profile.ID, profile.Email)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	h.logger.Info("profile registered", zap.String("profile_id", profile.ID.String()))
	response.Created(c, TokenResponse{Token: token, Profile: profile.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	profile, err := h.repo.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if !errors.Is(err, ErrProfileNotFound) {
			h.logger.Error("load profile", zap.Error(err))
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if !utils.CheckPassword(req.Password, profile.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(profile.ID, profile.Email)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, Profile: profile.ToPublic()})
}

// GetProfile handles GET /profiles/:id.
func (h *Handler) GetProfile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid profile id")
		return
	}
	h.writeProfile(c, id)
}

// Me handles GET /profiles/me.
func (h *Handler) Me(c *gin.Context) {
	h.writeProfile(c, c.MustGet(ContextUserID).(uuid.UUID))
}

func (h *Handler) writeProfile(c *gin.Context, id uuid.UUID) {
	profile, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrProfileNotFound) {
		response.NotFound(c, "profile not found")
		return
	}
	if err != nil {
		h.logger.Error("load profile", zap.Error(err))
		response.Internal(c, "failed to load profile")
		return
	}
	response.OK(c, profile.ToPublic())
}

// UpdateMe handles PATCH /profiles/me.
func (h *Handler) UpdateMe(c *gin.Context) {
	id := c.MustGet(ContextUserID).(uuid.UUID)
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid body")
		return
	}
	profile, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrProfileNotFound) {
		response.NotFound(c, "profile not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load profile")
		return
	}
	if req.Name != nil {
		profile.Name = strings.TrimSpace(*req.Name)
	}
	if req.Alt != nil {
		profile.Alt = strings.TrimSpace(*req.Alt)
	}
	if req.Bio != nil {
		profile.Bio = *req.Bio
	}
	if req.Location != nil {
		profile.Location = strings.TrimSpace(*req.Location)
	}
	if profile.Name == "" {
		response.BadRequest(c, "name required")
		return
	}
	profile.UpdatedAt = h.now().UTC()
	if err := h.repo.Update(c.Request.Context(), profile); err != nil {
		h.logger.Error("update profile", zap.Error(err))
		response.Internal(c, "failed to update profile")
		return
	}
	response.OK(c, profile.ToPublic())
}
