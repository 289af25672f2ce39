package events

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rocky-roll-call/rrc-backend/internal/casts"
	"github.com/rocky-roll-call/rrc-backend/internal/models"
	"github.com/rocky-roll-call/rrc-backend/internal/obs"
)

// Query selects events by start time. A zero To leaves the range open and a
// zero Limit returns every match.
type Query struct {
	From   time.Time
	To     time.Time
	CastID *uuid.UUID
	Limit  int
}

// CastingTx is the view of one event inside a casting write. The owning cast
// row is share-locked for its lifetime, so the membership it returns cannot
// change before commit.
type CastingTx interface {
	Event() *models.Event
	Membership(ctx context.Context) (*casts.Membership, error)
	Casting(ctx context.Context, id uuid.UUID) (*models.Casting, error)
	InsertCasting(ctx context.Context, c *models.Casting) error
	UpdateCasting(ctx context.Context, c *models.Casting) error
}

// Store persists events and castings.
type Store interface {
	CreateEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListEvents(ctx context.Context, q Query) ([]models.Event, error)
	UpdateEvent(ctx context.Context, e *models.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	DeleteStartedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	ListCastings(ctx context.Context, eventID uuid.UUID) ([]models.Casting, error)
	GetCasting(ctx context.Context, eventID, id uuid.UUID) (*models.Casting, error)
	DeleteCasting(ctx context.Context, eventID, id uuid.UUID) error
	WithEventCast(ctx context.Context, eventID uuid.UUID, fn func(tx CastingTx) error) error
}

// Defaults for the upcoming calendar.
type Defaults struct {
	UpcomingDays  int
	UpcomingLimit int
}

// FeedEventCasting is the feed event name for casting writes.
const FeedEventCasting = "casting"

// MaxUpcomingDays caps the calendar window so the end date stays representable.
const MaxUpcomingDays = 3660

// CastingEvent is published to the cast feed after a casting write.
type CastingEvent struct {
	EventID uuid.UUID       `json:"event_id"`
	Action  string          `json:"action"`
	Casting *models.Casting `json:"casting,omitempty"`
}

// Service runs event and casting operations.
type Service struct {
	store     Store
	publisher casts.Publisher
	defaults  Defaults
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates an events service. publisher may be nil.
func NewService(store Store, publisher casts.Publisher, defaults Defaults, now func() time.Time, logger *zap.Logger) *Service {
	if defaults.UpcomingDays <= 0 {
		defaults.UpcomingDays = 14
	}
	if defaults.UpcomingLimit <= 0 {
		defaults.UpcomingLimit = 12
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, publisher: publisher, defaults: defaults, now: now, logger: logger}
}

// EventInput is the body for creating an event.
type EventInput struct {
	CastID      uuid.UUID `json:"cast_id" binding:"required"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Venue       string    `json:"venue"`
	StartsAt    time.Time `json:"starts_at"`
}

// EventPatch is a partial event update. The owning cast cannot change.
type EventPatch struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Venue       *string    `json:"venue"`
	StartsAt    *time.Time `json:"starts_at"`
}

// CreateEvent schedules a new event for a cast.
func (s *Service) CreateEvent(ctx context.Context, in EventInput) (*models.Event, error) {
	e := &models.Event{
		ID:          uuid.New(),
		CastID:      in.CastID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Venue:       strings.TrimSpace(in.Venue),
		StartsAt:    in.StartsAt.UTC(),
		CreatedAt:   s.now().UTC(),
	}
	if !validEvent(e) {
		return nil, ErrInvalidEvent
	}
	if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, err
	}
	s.logger.Info("event created",
		zap.String("event_id", e.ID.String()),
		zap.String("cast_id", e.CastID.String()),
		zap.Time("starts_at", e.StartsAt),
	)
	return e, nil
}

// Get returns an event by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return s.store.GetEvent(ctx, id)
}

// List returns events ordered by start, optionally for one cast.
func (s *Service) List(ctx context.Context, castID *uuid.UUID) ([]models.Event, error) {
	list, err := s.store.ListEvents(ctx, Query{CastID: castID})
	if err != nil {
		return nil, err
	}
	sortEvents(list)
	return list, nil
}

// UpdateEvent applies a partial update.
func (s *Service) UpdateEvent(ctx context.Context, id uuid.UUID, patch EventPatch) (*models.Event, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		e.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	if patch.Venue != nil {
		e.Venue = strings.TrimSpace(*patch.Venue)
	}
	if patch.StartsAt != nil {
		e.StartsAt = patch.StartsAt.UTC()
	}
	if !validEvent(e) {
		return nil, ErrInvalidEvent
	}
	if err := s.store.UpdateEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// DeleteEvent removes an event and its castings.
func (s *Service) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteEvent(ctx, id); err != nil {
		return err
	}
	s.logger.Info("event deleted", zap.String("event_id", id.String()))
	return nil
}

// CastUpcoming returns the next n events of a cast that have not started yet.
func (s *Service) CastUpcoming(ctx context.Context, castID uuid.UUID, n int) ([]models.Event, error) {
	list, err := s.store.ListEvents(ctx, Query{From: s.now().UTC(), CastID: &castID, Limit: n})
	if err != nil {
		return nil, err
	}
	sortEvents(list)
	return list, nil
}

// Upcoming returns events starting within the next days, grouped by UTC day.
// Non-positive days or limit fall back to the configured defaults; days is
// capped at MaxUpcomingDays.
func (s *Service) Upcoming(ctx context.Context, days, limit int, castID *uuid.UUID) ([]Day, error) {
	if days <= 0 {
		days = s.defaults.UpcomingDays
	}
	if days > MaxUpcomingDays {
		days = MaxUpcomingDays
	}
	if limit <= 0 {
		limit = s.defaults.UpcomingLimit
	}
	from := s.now().UTC()
	list, err := s.store.ListEvents(ctx, Query{
		From:   from,
		To:     from.AddDate(0, 0, days),
		CastID: castID,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	return GroupByDay(list), nil
}

// SweepExpired deletes every event past its retention window.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-models.EventRetention)
	n, err := s.store.DeleteStartedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired events swept", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// Castings lists the castings of an event by role rank, then creation order.
func (s *Service) Castings(ctx context.Context, eventID uuid.UUID) ([]models.Casting, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	list, err := s.store.ListCastings(ctx, eventID)
	if err != nil {
		return nil, err
	}
	SortCastings(list)
	return list, nil
}

// GetCasting returns one casting of an event.
func (s *Service) GetCasting(ctx context.Context, eventID, id uuid.UUID) (*models.Casting, error) {
	return s.store.GetCasting(ctx, eventID, id)
}

// CreateCasting binds a profile or write-in to a role at an event. A profile
// must be a member of the event's cast.
func (s *Service) CreateCasting(ctx context.Context, eventID uuid.UUID, in CastingInput) (*models.Casting, error) {
	c := &models.Casting{
		ID:        uuid.New(),
		EventID:   eventID,
		ProfileID: in.ProfileID,
		WriteIn:   strings.TrimSpace(in.WriteIn),
		Role:      in.Role,
		CreatedAt: s.now().UTC(),
	}
	var castID uuid.UUID
	err := s.checkCasting(c)
	if err == nil {
		err = s.store.WithEventCast(ctx, eventID, func(tx CastingTx) error {
			castID = tx.Event().CastID
			if err := requireMember(ctx, tx, c.ProfileID); err != nil {
				return err
			}
			return tx.InsertCasting(ctx, c)
		})
	}
	s.observe("create", eventID, err)
	if err != nil {
		return nil, err
	}
	s.publish(castID, CastingEvent{EventID: eventID, Action: "created", Casting: c})
	return c, nil
}

// UpdateCasting applies a patch to a casting. The assignee pair is always
// re-validated and membership is re-checked when the profile changes.
func (s *Service) UpdateCasting(ctx context.Context, eventID, id uuid.UUID, patch CastingPatch) (*models.Casting, error) {
	var (
		updated models.Casting
		castID  uuid.UUID
	)
	err := func() error {
		if patch.EventID != nil && *patch.EventID != eventID {
			return ErrEventImmutable
		}
		return s.store.WithEventCast(ctx, eventID, func(tx CastingTx) error {
			castID = tx.Event().CastID
			current, err := tx.Casting(ctx, id)
			if err != nil {
				return err
			}
			updated = patch.apply(*current)
			if err := s.checkCasting(&updated); err != nil {
				return err
			}
			if !sameProfile(current.ProfileID, updated.ProfileID) {
				if err := requireMember(ctx, tx, updated.ProfileID); err != nil {
					return err
				}
			}
			return tx.UpdateCasting(ctx, &updated)
		})
	}()
	s.observe("update", eventID, err)
	if err != nil {
		return nil, err
	}
	s.publish(castID, CastingEvent{EventID: eventID, Action: "updated", Casting: &updated})
	return &updated, nil
}

// DeleteCasting removes a casting.
func (s *Service) DeleteCasting(ctx context.Context, eventID, id uuid.UUID) error {
	e, err := s.store.GetEvent(ctx, eventID)
	if err == nil {
		err = s.store.DeleteCasting(ctx, eventID, id)
	}
	s.observe("delete", eventID, err)
	if err != nil {
		return err
	}
	s.publish(e.CastID, CastingEvent{EventID: eventID, Action: "deleted", Casting: &models.Casting{ID: id, EventID: eventID}})
	return nil
}

// Column widths of events.name and events.venue.
const (
	maxEventName  = 128
	maxEventVenue = 256
)

func validEvent(e *models.Event) bool {
	return e.Name != "" && !e.StartsAt.IsZero() &&
		utf8.RuneCountInString(e.Name) <= maxEventName && utf8.RuneCountInString(e.Venue) <= maxEventVenue
}

func (s *Service) checkCasting(c *models.Casting) error {
	if !c.Role.Valid() {
		return ErrInvalidRole
	}
	return Validate(c.ProfileID, c.WriteIn)
}

func requireMember(ctx context.Context, tx CastingTx, profileID *uuid.UUID) error {
	if profileID == nil {
		return nil
	}
	m, err := tx.Membership(ctx)
	if err != nil {
		return err
	}
	if !m.IsMember(*profileID) {
		return ErrNotCastMember
	}
	return nil
}

func (s *Service) observe(op string, eventID uuid.UUID, err error) {
	switch {
	case err == nil:
		obs.ObserveCastingWrite(op, "ok")
	case IsRejection(err), errors.Is(err, ErrEventNotFound), errors.Is(err, ErrCastingNotFound):
		obs.ObserveCastingWrite(op, "rejected")
	default:
		obs.ObserveCastingWrite(op, "error")
		s.logger.Error("casting write failed",
			zap.String("operation", op),
			zap.String("event_id", eventID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) publish(castID uuid.UUID, ev CastingEvent) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("marshal feed event", zap.Error(err))
		return
	}
	if err := s.publisher.PublishCastEvent(castID, FeedEventCasting, body); err != nil {
		s.logger.Warn("publish feed event failed", zap.String("cast_id", castID.String()), zap.Error(err))
	}
}

// SortCastings orders castings by role rank, then creation time.
func SortCastings(list []models.Casting) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Role != list[j].Role {
			return list[i].Role < list[j].Role
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

func sortEvents(list []models.Event) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].StartsAt.Before(list[j].StartsAt) })
}
