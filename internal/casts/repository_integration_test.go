//go:build integration

package casts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocky-roll-call/rrc-backend/internal/models"
	"github.com/rocky-roll-call/rrc-backend/pkg/database/dbtest"
)

const lockWait = 300 * time.Millisecond

func createCast(t *testing.T, repo *Repository, owner uuid.UUID) *models.Cast {
	t.Helper()
	now := time.Now().UTC()
	id := uuid.New()
	c := &models.Cast{ID: id, Name: "Cast " + id.String()[:8], Slug: "cast-" + id.String()[:8], CreatedAt: now, ModifiedAt: now}
	require.NoError(t, repo.Create(context.Background(), c, func(m *Membership) error {
		if err := m.AddMember(owner); err != nil {
			return err
		}
		return m.AddManager(owner)
	}))
	return c
}

func TestRepositoryCreateSeedsRelations(t *testing.T) {
	pool := dbtest.Open(t)
	repo := NewRepository(pool)
	owner := dbtest.Profile(t, pool, "Owner")
	c := createCast(t, repo, owner)

	m, err := repo.Membership(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, m.IsMember(owner))
	assert.True(t, m.IsManager(owner))

	_, err = repo.Membership(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrCastNotFound)
}

func TestWithMembershipSerializesWriters(t *testing.T) {
	pool := dbtest.Open(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	owner := dbtest.Profile(t, pool, "Owner")
	first := dbtest.Profile(t, pool, "First")
	second := dbtest.Profile(t, pool, "Second")
	c := createCast(t, repo, owner)

	entered := make(chan struct{})
	release := make(chan struct{})
	secondEntered := make(chan bool, 1)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, repo.WithMembership(ctx, c.ID, time.Now(), func(m *Membership) error {
			close(entered)
			<-release
			return m.AddMember(first)
		}))
	}()
	<-entered
	go func() {
		defer wg.Done()
		assert.NoError(t, repo.WithMembership(ctx, c.ID, time.Now(), func(m *Membership) error {
			secondEntered <- m.IsMember(first)
			return m.AddMember(second)
		}))
	}()

	select {
	case <-secondEntered:
		t.Fatal("second writer ran while the cast row was locked")
	case <-time.After(lockWait):
	}
	close(release)
	assert.True(t, <-secondEntered, "second writer must see the first writer's change")
	wg.Wait()

	m, err := repo.Membership(ctx, c.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{owner, first, second}, m.List(RelationMember))
}

func TestWithMembershipRollsBackOnError(t *testing.T) {
	pool := dbtest.Open(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	owner := dbtest.Profile(t, pool, "Owner")
	other := dbtest.Profile(t, pool, "Other")
	c := createCast(t, repo, owner)

	err := repo.WithMembership(ctx, c.ID, time.Now(), func(m *Membership) error {
		require.NoError(t, m.AddMember(other))
		return m.AddManager(uuid.New())
	})
	assert.ErrorIs(t, err, ErrNotMember)

	m, err := repo.Membership(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, m.IsMember(other))

	err = repo.WithMembership(ctx, uuid.New(), time.Now(), func(*Membership) error { return nil })
	assert.ErrorIs(t, err, ErrCastNotFound)
}

func TestShareLockBlocksMembershipWrites(t *testing.T) {
	pool := dbtest.Open(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	owner := dbtest.Profile(t, pool, "Owner")
	other := dbtest.Profile(t, pool, "Other")
	c := createCast(t, repo, owner)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()
	require.NoError(t, LockCast(ctx, tx, c.ID, "SHARE"))

	done := make(chan error, 1)
	go func() {
		done <- repo.WithMembership(ctx, c.ID, time.Now(), func(m *Membership) error {
			return m.AddMember(other)
		})
	}()
	select {
	case <-done:
		t.Fatal("membership write ran while a reader held the cast")
	case <-time.After(lockWait):
	}
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, <-done)

	// A second share lock does not wait on the first.
	tx1, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx1.Rollback(ctx) }()
	require.NoError(t, LockCast(ctx, tx1, c.ID, "SHARE"))
	tx2, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx2.Rollback(ctx) }()
	shortCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()
	require.NoError(t, LockCast(shortCtx, tx2, c.ID, "SHARE"))
}

func TestDeleteCascadesRelations(t *testing.T) {
	pool := dbtest.Open(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	owner := dbtest.Profile(t, pool, "Owner")
	c := createCast(t, repo, owner)

	require.NoError(t, repo.Delete(ctx, c.ID, nil))
	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM cast_relations WHERE cast_id = $1`, c.ID).Scan(&n))
	assert.Zero(t, n)
	assert.ErrorIs(t, repo.Delete(ctx, c.ID, nil), ErrCastNotFound)
}
