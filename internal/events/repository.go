package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rocky-roll-call/rrc-backend/internal/casts"
	"github.com/rocky-roll-call/rrc-backend/internal/models"
)

// Repository handles event and casting persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `id, cast_id, name, description, venue, starts_at, created_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.CastID, &e.Name, &e.Description, &e.Venue, &e.StartsAt, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateEvent inserts an event. A missing owning cast yields casts.ErrCastNotFound.
func (r *Repository) CreateEvent(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (` + eventColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, q, e.ID, e.CastID, e.Name, e.Description, e.Venue, e.StartsAt, e.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return casts.ErrCastNotFound
	}
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent returns an event by ID.
func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

// ListEvents returns events matching q ordered by start.
func (r *Repository) ListEvents(ctx context.Context, q Query) ([]models.Event, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if !q.From.IsZero() {
		where = append(where, "starts_at >= "+arg(q.From))
	}
	if !q.To.IsZero() {
		where = append(where, "starts_at <= "+arg(q.To))
	}
	if q.CastID != nil {
		where = append(where, "cast_id = "+arg(*q.CastID))
	}
	sql := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY starts_at, created_at"
	if q.Limit > 0 {
		sql += " LIMIT " + arg(q.Limit)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// UpdateEvent saves name, description, venue and start.
func (r *Repository) UpdateEvent(ctx context.Context, e *models.Event) error {
	tag, err := r.pool.Exec(ctx, `UPDATE events SET name = $1, description = $2, venue = $3, starts_at = $4
		WHERE id = $5`, e.Name, e.Description, e.Venue, e.StartsAt, e.ID)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// DeleteEvent removes an event; castings cascade.
func (r *Repository) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// DeleteStartedBefore removes every event that started before cutoff.
func (r *Repository) DeleteStartedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE starts_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep events: %w", err)
	}
	return tag.RowsAffected(), nil
}

const castingColumns = `id, event_id, profile_id, writein, role, created_at`

func scanCasting(row pgx.Row) (*models.Casting, error) {
	var c models.Casting
	err := row.Scan(&c.ID, &c.EventID, &c.ProfileID, &c.WriteIn, &c.Role, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCastingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCastings returns the castings of an event by role rank, then creation.
func (r *Repository) ListCastings(ctx context.Context, eventID uuid.UUID) ([]models.Casting, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+castingColumns+` FROM castings WHERE event_id = $1
		ORDER BY role, created_at`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Casting{}
	for rows.Next() {
		c, err := scanCasting(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

// GetCasting returns one casting of an event.
func (r *Repository) GetCasting(ctx context.Context, eventID, id uuid.UUID) (*models.Casting, error) {
	return scanCasting(r.pool.QueryRow(ctx, `SELECT `+castingColumns+` FROM castings
		WHERE event_id = $1 AND id = $2`, eventID, id))
}

// DeleteCasting removes one casting of an event.
func (r *Repository) DeleteCasting(ctx context.Context, eventID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM castings WHERE event_id = $1 AND id = $2`, eventID, id)
	if err != nil {
		return fmt.Errorf("delete casting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCastingNotFound
	}
	return nil
}

// WithEventCast runs fn in a transaction holding a share lock on the event's
// cast row, so relation changes wait until the casting write commits.
func (r *Repository) WithEventCast(ctx context.Context, eventID uuid.UUID, fn func(tx CastingTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := scanEvent(tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, eventID))
	if err != nil {
		return err
	}
	if err := casts.LockCast(ctx, tx, e.CastID, "SHARE"); err != nil {
		return err
	}
	if err := fn(&castingTx{tx: tx, event: e}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type castingTx struct {
	tx         pgx.Tx
	event      *models.Event
	membership *casts.Membership
}

func (t *castingTx) Event() *models.Event { return t.event }

func (t *castingTx) Membership(ctx context.Context) (*casts.Membership, error) {
	if t.membership != nil {
		return t.membership, nil
	}
	m, err := casts.LoadMembership(ctx, t.tx, t.event.CastID)
	if err != nil {
		return nil, err
	}
	t.membership = m
	return m, nil
}

// Casting reads a casting and holds its row until commit, so concurrent
// patches of the same casting apply one after the other.
func (t *castingTx) Casting(ctx context.Context, id uuid.UUID) (*models.Casting, error) {
	return scanCasting(t.tx.QueryRow(ctx, `SELECT `+castingColumns+` FROM castings
		WHERE event_id = $1 AND id = $2 FOR UPDATE`, t.event.ID, id))
}

func (t *castingTx) InsertCasting(ctx context.Context, c *models.Casting) error {
	const q = `INSERT INTO castings (` + castingColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := t.tx.Exec(ctx, q, c.ID, c.EventID, c.ProfileID, c.WriteIn, c.Role, c.CreatedAt); err != nil {
		return fmt.Errorf("insert casting: %w", err)
	}
	return nil
}

func (t *castingTx) UpdateCasting(ctx context.Context, c *models.Casting) error {
	tag, err := t.tx.Exec(ctx, `UPDATE castings SET profile_id = $1, writein = $2, role = $3
		WHERE event_id = $4 AND id = $5`, c.ProfileID, c.WriteIn, c.Role, c.EventID, c.ID)
	if err != nil {
		return fmt.Errorf("update casting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCastingNotFound
	}
	return nil
}
