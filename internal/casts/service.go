package casts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rocky-roll-call/rrc-backend/internal/models"
	"github.com/rocky-roll-call/rrc-backend/internal/obs"
)

// Store persists casts and their relation sets. WithMembership must run fn
// inside a transaction that serializes all relation mutations on the cast and
// persist the recorded changes only when fn returns nil.
type Store interface {
	Create(ctx context.Context, cast *models.Cast, seed func(m *Membership) error) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Cast, error)
	GetBySlug(ctx context.Context, slug string) (*models.Cast, error)
	List(ctx context.Context) ([]models.Cast, error)
	Update(ctx context.Context, cast *models.Cast) error
	Delete(ctx context.Context, id uuid.UUID, guard func(m *Membership) error) error
	Membership(ctx context.Context, id uuid.UUID) (*Membership, error)
	WithMembership(ctx context.Context, id uuid.UUID, at time.Time, fn func(m *Membership) error) error
}

// SectionStore persists cast page sections.
type SectionStore interface {
	ListSections(ctx context.Context, castID uuid.UUID) ([]models.PageSection, error)
	GetSection(ctx context.Context, castID, id uuid.UUID) (*models.PageSection, error)
	CreateSection(ctx context.Context, s *models.PageSection) error
	UpdateSection(ctx context.Context, s *models.PageSection) error
	DeleteSection(ctx context.Context, castID, id uuid.UUID) error
}

// Publisher fans cast activity out to feed subscribers.
type Publisher interface {
	PublishCastEvent(castID uuid.UUID, event string, payload []byte) error
}

// CastInput is the editable part of a cast.
type CastInput struct {
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	Email         string `json:"email"`
	ExternalURL   string `json:"external_url"`
	FacebookURL   string `json:"facebook_url"`
	TwitterUser   string `json:"twitter_user"`
	InstagramUser string `json:"instagram_user"`
}

// CastPatch carries the fields of a partial cast update.
type CastPatch struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	Email         *string `json:"email"`
	ExternalURL   *string `json:"external_url"`
	FacebookURL   *string `json:"facebook_url"`
	TwitterUser   *string `json:"twitter_user"`
	InstagramUser *string `json:"instagram_user"`
}

// MembershipEvent is published after every successful relation transition.
type MembershipEvent struct {
	CastID    uuid.UUID `json:"cast_id"`
	Operation Operation `json:"operation"`
	ProfileID uuid.UUID `json:"profile_id"`
	Changes   []Change  `json:"changes"`
}

// FeedEventMembership is the feed event name for relation transitions.
const FeedEventMembership = "membership"

// Service runs cast operations against a store.
type Service struct {
	store     Store
	sections  SectionStore
	publisher Publisher
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a cast service. publisher may be nil.
func NewService(store Store, sections SectionStore, publisher Publisher, now func() time.Time, logger *zap.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, sections: sections, publisher: publisher, now: now, logger: logger}
}

// Create stores a new cast. The creator becomes its first member and manager.
func (s *Service) Create(ctx context.Context, creator uuid.UUID, in CastInput) (*models.Cast, error) {
	name := strings.TrimSpace(in.Name)
	slug := Slugify(name)
	if err := checkName(name, slug); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	cast := &models.Cast{
		ID:            uuid.New(),
		Name:          name,
		Slug:          slug,
		Description:   in.Description,
		Email:         strings.TrimSpace(in.Email),
		ExternalURL:   strings.TrimSpace(in.ExternalURL),
		FacebookURL:   strings.TrimSpace(in.FacebookURL),
		TwitterUser:   strings.TrimSpace(in.TwitterUser),
		InstagramUser: strings.TrimSpace(in.InstagramUser),
		CreatedAt:     now,
		ModifiedAt:    now,
	}
	err := s.store.Create(ctx, cast, func(m *Membership) error {
		if err := m.AddMember(creator); err != nil {
			return err
		}
		return m.AddManager(creator)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("cast created",
		zap.String("cast_id", cast.ID.String()),
		zap.String("slug", cast.Slug),
		zap.String("creator_id", creator.String()),
	)
	return cast, nil
}

// Get returns a cast with its relation sets.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Cast, *Membership, error) {
	cast, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.store.Membership(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return cast, m, nil
}

// GetBySlug returns a cast by its slug with its relation sets.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Cast, *Membership, error) {
	cast, err := s.store.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, nil, err
	}
	m, err := s.store.Membership(ctx, cast.ID)
	if err != nil {
		return nil, nil, err
	}
	return cast, m, nil
}

// List returns all casts.
func (s *Service) List(ctx context.Context) ([]models.Cast, error) {
	return s.store.List(ctx)
}

// Update applies a partial update. The slug always follows the name and the
// modified timestamp is refreshed.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch CastPatch) (*models.Cast, error) {
	cast, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		cast.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		cast.Description = *patch.Description
	}
	if patch.Email != nil {
		cast.Email = strings.TrimSpace(*patch.Email)
	}
	if patch.ExternalURL != nil {
		cast.ExternalURL = strings.TrimSpace(*patch.ExternalURL)
	}
	if patch.FacebookURL != nil {
		cast.FacebookURL = strings.TrimSpace(*patch.FacebookURL)
	}
	if patch.TwitterUser != nil {
		cast.TwitterUser = strings.TrimSpace(*patch.TwitterUser)
	}
	if patch.InstagramUser != nil {
		cast.InstagramUser = strings.TrimSpace(*patch.InstagramUser)
	}
	cast.Slug = Slugify(cast.Name)
	if err := checkName(cast.Name, cast.Slug); err != nil {
		return nil, err
	}
	cast.ModifiedAt = s.now().UTC()
	if err := s.store.Update(ctx, cast); err != nil {
		return nil, err
	}
	return cast, nil
}

// Delete removes a cast. It is refused while more than one manager remains.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.store.Delete(ctx, id, func(m *Membership) error {
		if m.ManagerCount() > 1 {
			return ErrNotSoleManager
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("cast deleted", zap.String("cast_id", id.String()))
	return nil
}

// Membership returns the current relation sets of a cast.
func (s *Service) Membership(ctx context.Context, castID uuid.UUID) (*Membership, error) {
	return s.store.Membership(ctx, castID)
}

// IsManager reports whether p manages the cast.
func (s *Service) IsManager(ctx context.Context, castID, p uuid.UUID) (bool, error) {
	m, err := s.store.Membership(ctx, castID)
	if err != nil {
		return false, err
	}
	return m.IsManager(p), nil
}

// Apply runs one membership transition for p on the cast and returns the
// resulting relation sets.
func (s *Service) Apply(ctx context.Context, castID uuid.UUID, op Operation, p uuid.UUID) (*Membership, error) {
	var result *Membership
	err := s.store.WithMembership(ctx, castID, s.now().UTC(), func(m *Membership) error {
		if err := m.Apply(op, p); err != nil {
			return err
		}
		result = m
		return nil
	})
	obs.ObserveTransition(string(op), transitionResult(err))
	if err != nil {
		if !IsRejection(err) && !errors.Is(err, ErrCastNotFound) {
			s.logger.Error("membership transition failed",
				zap.String("cast_id", castID.String()),
				zap.String("profile_id", p.String()),
				zap.String("operation", string(op)),
				zap.Error(err),
			)
		}
		return nil, err
	}
	s.logger.Info("membership changed",
		zap.String("cast_id", castID.String()),
		zap.String("profile_id", p.String()),
		zap.String("operation", string(op)),
	)
	s.publish(castID, FeedEventMembership, MembershipEvent{
		CastID:    castID,
		Operation: op,
		ProfileID: p,
		Changes:   result.Changes(),
	})
	return result, nil
}

func (s *Service) publish(castID uuid.UUID, event string, payload any) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("marshal feed event", zap.Error(err))
		return
	}
	if err := s.publisher.PublishCastEvent(castID, event, body); err != nil {
		s.logger.Warn("publish feed event failed", zap.String("cast_id", castID.String()), zap.Error(err))
	}
}

func transitionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsRejection(err):
		return "rejected"
	default:
		return "error"
	}
}

// SectionInput is the body for creating or replacing a page section.
type SectionInput struct {
	Title string `json:"title" binding:"required"`
	Text  string `json:"text"`
	Order *int   `json:"order"`
}

// Sections lists the page sections of a cast in display order.
func (s *Service) Sections(ctx context.Context, castID uuid.UUID) ([]models.PageSection, error) {
	if _, err := s.store.GetByID(ctx, castID); err != nil {
		return nil, err
	}
	return s.sections.ListSections(ctx, castID)
}

// AddSection creates a page section on a cast.
func (s *Service) AddSection(ctx context.Context, castID uuid.UUID, in SectionInput) (*models.PageSection, error) {
	if _, err := s.store.GetByID(ctx, castID); err != nil {
		return nil, err
	}
	sec := &models.PageSection{
		ID:        uuid.New(),
		CastID:    castID,
		Title:     strings.TrimSpace(in.Title),
		Text:      in.Text,
		Order:     1,
		CreatedAt: s.now().UTC(),
	}
	if in.Order != nil {
		sec.Order = *in.Order
	}
	if err := s.sections.CreateSection(ctx, sec); err != nil {
		return nil, fmt.Errorf("create section: %w", err)
	}
	return sec, nil
}

// UpdateSection changes the title, text or order of a page section.
func (s *Service) UpdateSection(ctx context.Context, castID, id uuid.UUID, title, text *string, order *int) (*models.PageSection, error) {
	sec, err := s.sections.GetSection(ctx, castID, id)
	if err != nil {
		return nil, err
	}
	if title != nil {
		sec.Title = strings.TrimSpace(*title)
	}
	if text != nil {
		sec.Text = *text
	}
	if order != nil {
		sec.Order = *order
	}
	if err := s.sections.UpdateSection(ctx, sec); err != nil {
		return nil, err
	}
	return sec, nil
}

// DeleteSection removes a page section.
func (s *Service) DeleteSection(ctx context.Context, castID, id uuid.UUID) error {
	return s.sections.DeleteSection(ctx, castID, id)
}
