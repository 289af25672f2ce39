package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rocky-roll-call/rrc-backend/internal/casts"
	"github.com/rocky-roll-call/rrc-backend/internal/models"
)

// memStore keeps events and castings in memory; members maps a cast to the
// profiles the membership check should accept.
type memStore struct {
	mu       sync.Mutex
	events   map[uuid.UUID]models.Event
	castings map[uuid.UUID]models.Casting
	members  map[uuid.UUID][]uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		events:   map[uuid.UUID]models.Event{},
		castings: map[uuid.UUID]models.Casting{},
		members:  map[uuid.UUID][]uuid.UUID{},
	}
}

func (s *memStore) CreateEvent(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = *e
	return nil
}

func (s *memStore) GetEvent(_ context.Context, id uuid.UUID) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return &e, nil
}

func (s *memStore) ListEvents(_ context.Context, q Query) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := []models.Event{}
	for _, e := range s.events {
		if !q.From.IsZero() && e.StartsAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && e.StartsAt.After(q.To) {
			continue
		}
		if q.CastID != nil && e.CastID != *q.CastID {
			continue
		}
		list = append(list, e)
	}
	sortEvents(list)
	if q.Limit > 0 && len(list) > q.Limit {
		list = list[:q.Limit]
	}
	return list, nil
}

func (s *memStore) UpdateEvent(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; !ok {
		return ErrEventNotFound
	}
	s.events[e.ID] = *e
	return nil
}

func (s *memStore) DeleteEvent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return ErrEventNotFound
	}
	delete(s.events, id)
	for cid, c := range s.castings {
		if c.EventID == id {
			delete(s.castings, cid)
		}
	}
	return nil
}

func (s *memStore) DeleteStartedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.events {
		if e.StartsAt.Before(cutoff) {
			delete(s.events, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) ListCastings(_ context.Context, eventID uuid.UUID) ([]models.Casting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := []models.Casting{}
	for _, c := range s.castings {
		if c.EventID == eventID {
			list = append(list, c)
		}
	}
	return list, nil
}

func (s *memStore) GetCasting(_ context.Context, eventID, id uuid.UUID) (*models.Casting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.casting(eventID, id)
}

func (s *memStore) casting(eventID, id uuid.UUID) (*models.Casting, error) {
	c, ok := s.castings[id]
	if !ok || c.EventID != eventID {
		return nil, ErrCastingNotFound
	}
	return &c, nil
}

func (s *memStore) DeleteCasting(_ context.Context, eventID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.casting(eventID, id); err != nil {
		return err
	}
	delete(s.castings, id)
	return nil
}

func (s *memStore) WithEventCast(_ context.Context, eventID uuid.UUID, fn func(tx CastingTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	tx := &memTx{store: s, event: &e, pending: map[uuid.UUID]models.Casting{}}
	if err := fn(tx); err != nil {
		return err
	}
	for id, c := range tx.pending {
		s.castings[id] = c
	}
	return nil
}

type memTx struct {
	store   *memStore
	event   *models.Event
	pending map[uuid.UUID]models.Casting
}

func (t *memTx) Event() *models.Event { return t.event }

func (t *memTx) Membership(_ context.Context) (*casts.Membership, error) {
	m := casts.NewMembership(t.event.CastID)
	m.Load(casts.RelationMember, t.store.members[t.event.CastID]...)
	return m, nil
}

func (t *memTx) Casting(_ context.Context, id uuid.UUID) (*models.Casting, error) {
	return t.store.casting(t.event.ID, id)
}

func (t *memTx) InsertCasting(_ context.Context, c *models.Casting) error {
	t.pending[c.ID] = *c
	return nil
}

func (t *memTx) UpdateCasting(_ context.Context, c *models.Casting) error {
	if _, err := t.store.casting(t.event.ID, c.ID); err != nil {
		return err
	}
	t.pending[c.ID] = *c
	return nil
}
