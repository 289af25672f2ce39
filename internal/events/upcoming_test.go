package events

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocky-roll-call/rrc-backend/internal/models"
)

func TestGroupByDay(t *testing.T) {
	at := func(day, hour int) models.Event {
		return models.Event{ID: uuid.New(), StartsAt: time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC)}
	}
	late := at(15, 23)
	early := at(15, 1)
	next := at(16, 0)
	// 23:30 in UTC-5 is the next UTC day.
	offset := models.Event{ID: uuid.New(), StartsAt: time.Date(2026, 3, 16, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))}

	days := GroupByDay([]models.Event{next, late, offset, early})
	require.Len(t, days, 3)
	assert.Equal(t, "2026-03-15", days[0].Date)
	assert.Equal(t, []uuid.UUID{early.ID, late.ID}, []uuid.UUID{days[0].Events[0].ID, days[0].Events[1].ID})
	assert.Equal(t, "2026-03-16", days[1].Date)
	assert.Equal(t, "2026-03-17", days[2].Date)
	assert.Equal(t, offset.ID, days[2].Events[0].ID)

	assert.Empty(t, GroupByDay(nil))
}

func newStaticService(store *memStore) *Service {
	return NewService(store, nil, Defaults{UpcomingDays: 14, UpcomingLimit: 12}, func() time.Time { return fixedNow }, nil)
}

func TestUpcoming(t *testing.T) {
	store := newMemStore()
	svc := newStaticService(store)
	ctx := context.Background()
	castA, castB := uuid.New(), uuid.New()

	add := func(cast uuid.UUID, offset time.Duration) {
		_, err := svc.CreateEvent(ctx, EventInput{CastID: cast, Name: "Show", StartsAt: fixedNow.Add(offset)})
		require.NoError(t, err)
	}
	add(castA, -time.Hour)
	add(castA, 2*time.Hour)
	add(castB, 26*time.Hour)
	add(castA, 10*24*time.Hour)
	add(castA, 20*24*time.Hour)

	days, err := svc.Upcoming(ctx, 0, 0, nil)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, "2026-03-14", days[0].Date)
	assert.Equal(t, "2026-03-15", days[1].Date)
	assert.Equal(t, "2026-03-24", days[2].Date)

	days, err = svc.Upcoming(ctx, 30, 0, &castA)
	require.NoError(t, err)
	var n int
	for _, d := range days {
		for _, e := range d.Events {
			assert.Equal(t, castA, e.CastID)
			n++
		}
	}
	assert.Equal(t, 3, n)

	days, err = svc.Upcoming(ctx, 30, 1, nil)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Len(t, days[0].Events, 1)

	next, err := svc.CastUpcoming(ctx, castA, 3)
	require.NoError(t, err)
	require.Len(t, next, 3)
	assert.True(t, next[0].StartsAt.Before(next[1].StartsAt))
	assert.False(t, next[0].StartsAt.Before(fixedNow))
}

func TestUpcomingHugeWindowStillMatches(t *testing.T) {
	store := newMemStore()
	svc := newStaticService(store)
	ctx := context.Background()

	_, err := svc.CreateEvent(ctx, EventInput{CastID: uuid.New(), Name: "Late show", StartsAt: fixedNow.Add(2 * time.Hour)})
	require.NoError(t, err)

	for _, days := range []int{MaxUpcomingDays, 200000, math.MaxInt} {
		groups, err := svc.Upcoming(ctx, days, 0, nil)
		require.NoError(t, err)
		assert.Len(t, groups, 1, "days=%d", days)
	}
}

func TestEventCRUD(t *testing.T) {
	store := newMemStore()
	svc := newStaticService(store)
	ctx := context.Background()
	castID := uuid.New()

	_, err := svc.CreateEvent(ctx, EventInput{CastID: castID, Name: "  ", StartsAt: fixedNow})
	assert.ErrorIs(t, err, ErrInvalidEvent)
	_, err = svc.CreateEvent(ctx, EventInput{CastID: castID, Name: "Show"})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	e, err := svc.CreateEvent(ctx, EventInput{CastID: castID, Name: " Show ", Venue: "The Strand", StartsAt: fixedNow})
	require.NoError(t, err)
	assert.Equal(t, "Show", e.Name)
	assert.Equal(t, fixedNow, e.CreatedAt)

	later := fixedNow.Add(24 * time.Hour)
	updated, err := svc.UpdateEvent(ctx, e.ID, EventPatch{StartsAt: &later})
	require.NoError(t, err)
	assert.Equal(t, later, updated.StartsAt)
	assert.Equal(t, "The Strand", updated.Venue)

	empty := ""
	_, err = svc.UpdateEvent(ctx, e.ID, EventPatch{Name: &empty})
	assert.ErrorIs(t, err, ErrInvalidEvent)
	long := strings.Repeat("n", 129)
	_, err = svc.UpdateEvent(ctx, e.ID, EventPatch{Name: &long})
	assert.ErrorIs(t, err, ErrInvalidEvent)
	_, err = svc.CreateEvent(ctx, EventInput{CastID: castID, Name: "Show", Venue: strings.Repeat("v", 257), StartsAt: fixedNow})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	list, err := svc.List(ctx, &castID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.DeleteEvent(ctx, e.ID))
	_, err = svc.Get(ctx, e.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestSweepExpired(t *testing.T) {
	store := newMemStore()
	svc := newStaticService(store)
	ctx := context.Background()
	castID := uuid.New()

	old, err := svc.CreateEvent(ctx, EventInput{CastID: castID, Name: "Old", StartsAt: fixedNow.Add(-models.EventRetention - time.Hour)})
	require.NoError(t, err)
	recent, err := svc.CreateEvent(ctx, EventInput{CastID: castID, Name: "Recent", StartsAt: fixedNow.Add(-models.EventRetention + time.Hour)})
	require.NoError(t, err)
	assert.True(t, old.Expired(fixedNow))
	assert.False(t, recent.Expired(fixedNow))

	n, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)
	_, err = svc.Get(ctx, recent.ID)
	assert.NoError(t, err)
}

func TestListOrdersByStartRegardlessOfCreation(t *testing.T) {
	store := newMemStore()
	svc := newStaticService(store)
	ctx := context.Background()
	castID := uuid.New()

	var ids []uuid.UUID
	for _, offset := range []int{2, 0, 1} {
		e, err := svc.CreateEvent(ctx, EventInput{
			CastID:   castID,
			Name:     "Show",
			StartsAt: fixedNow.Add(time.Duration(offset) * 24 * time.Hour),
		})
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	list, err := svc.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uuid.UUID{ids[1], ids[2], ids[0]}, []uuid.UUID{list[0].ID, list[1].ID, list[2].ID})
}
