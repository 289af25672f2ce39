//go:build integration

package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocky-roll-call/rrc-backend/internal/casts"
	"github.com/rocky-roll-call/rrc-backend/internal/models"
	"github.com/rocky-roll-call/rrc-backend/pkg/database/dbtest"
)

const lockWait = 300 * time.Millisecond

type pgFixture struct {
	casts   *casts.Repository
	events  *Repository
	castID  uuid.UUID
	event   *models.Event
	member  uuid.UUID
	casting *models.Casting
}

func newPGFixture(t *testing.T) *pgFixture {
	t.Helper()
	pool := dbtest.Open(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	f := &pgFixture{casts: casts.NewRepository(pool), events: NewRepository(pool)}
	f.member = dbtest.Profile(t, pool, "Member")

	f.castID = uuid.New()
	require.NoError(t, f.casts.Create(ctx, &models.Cast{
		ID: f.castID, Name: "Midnight", Slug: "midnight", CreatedAt: now, ModifiedAt: now,
	}, func(m *casts.Membership) error { return m.AddMember(f.member) }))

	f.event = &models.Event{ID: uuid.New(), CastID: f.castID, Name: "Show", StartsAt: now.Add(time.Hour), CreatedAt: now}
	require.NoError(t, f.events.CreateEvent(ctx, f.event))

	f.casting = &models.Casting{ID: uuid.New(), EventID: f.event.ID, WriteIn: "Guest", Role: models.RoleFrank, CreatedAt: now}
	require.NoError(t, f.events.WithEventCast(ctx, f.event.ID, func(tx CastingTx) error {
		return tx.InsertCasting(ctx, f.casting)
	}))
	return f
}

func TestCreateEventUnknownCast(t *testing.T) {
	f := newPGFixture(t)
	err := f.events.CreateEvent(context.Background(), &models.Event{
		ID: uuid.New(), CastID: uuid.New(), Name: "Orphan", StartsAt: time.Now(), CreatedAt: time.Now(),
	})
	assert.ErrorIs(t, err, casts.ErrCastNotFound)
}

func TestWithEventCastMissingEvent(t *testing.T) {
	f := newPGFixture(t)
	err := f.events.WithEventCast(context.Background(), uuid.New(), func(CastingTx) error { return nil })
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestConcurrentCastingPatchesDoNotLoseUpdates(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	secondSaw := make(chan *models.Casting, 1)
	secondDone := make(chan error, 1)

	go func() {
		firstDone <- f.events.WithEventCast(ctx, f.event.ID, func(tx CastingTx) error {
			c, err := tx.Casting(ctx, f.casting.ID)
			if err != nil {
				return err
			}
			close(entered)
			<-release
			c.WriteIn = ""
			c.ProfileID = &f.member
			return tx.UpdateCasting(ctx, c)
		})
	}()
	<-entered
	go func() {
		secondDone <- f.events.WithEventCast(ctx, f.event.ID, func(tx CastingTx) error {
			c, err := tx.Casting(ctx, f.casting.ID)
			if err != nil {
				return err
			}
			secondSaw <- c
			c.Role = models.RoleJanet
			return tx.UpdateCasting(ctx, c)
		})
	}()

	select {
	case <-secondSaw:
		t.Fatal("second patch read the casting while the first held it")
	case <-time.After(lockWait):
	}
	close(release)
	require.NoError(t, <-firstDone)
	seen := <-secondSaw
	require.NotNil(t, seen.ProfileID)
	assert.Empty(t, seen.WriteIn)
	require.NoError(t, <-secondDone)

	got, err := f.events.GetCasting(ctx, f.event.ID, f.casting.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ProfileID)
	assert.Equal(t, f.member, *got.ProfileID)
	assert.Empty(t, got.WriteIn)
	assert.Equal(t, models.RoleJanet, got.Role)
}

func TestCastingWriteHoldsOffMemberRemoval(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	castingDone := make(chan error, 1)
	removeDone := make(chan error, 1)

	go func() {
		castingDone <- f.events.WithEventCast(ctx, f.event.ID, func(tx CastingTx) error {
			m, err := tx.Membership(ctx)
			if err != nil {
				return err
			}
			if !m.IsMember(f.member) {
				return ErrNotCastMember
			}
			close(entered)
			<-release
			return tx.InsertCasting(ctx, &models.Casting{
				ID: uuid.New(), EventID: f.event.ID, ProfileID: &f.member, Role: models.RoleBrad, CreatedAt: time.Now(),
			})
		})
	}()
	<-entered
	go func() {
		removeDone <- f.casts.WithMembership(ctx, f.castID, time.Now(), func(m *casts.Membership) error {
			return m.RemoveMember(f.member)
		})
	}()

	select {
	case <-removeDone:
		t.Fatal("member removal ran while a casting write held the cast")
	case <-time.After(lockWait):
	}
	close(release)
	require.NoError(t, <-castingDone)
	require.NoError(t, <-removeDone)

	list, err := f.events.ListCastings(ctx, f.event.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCastingRequiresExactlyOneOccupant(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	err := f.events.WithEventCast(ctx, f.event.ID, func(tx CastingTx) error {
		return tx.InsertCasting(ctx, &models.Casting{
			ID: uuid.New(), EventID: f.event.ID, ProfileID: &f.member, WriteIn: "Both", Role: models.RoleFrank, CreatedAt: time.Now(),
		})
	})
	assert.Error(t, err)
}
