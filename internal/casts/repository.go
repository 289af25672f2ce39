package casts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rocky-roll-call/rrc-backend/internal/models"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository handles cast, relation and page section persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a casts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const castColumns = `id, name, slug, description, email, external_url, facebook_url, twitter_user, instagram_user, created_at, modified_at`

func scanCast(row pgx.Row) (*models.Cast, error) {
	var c models.Cast
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Email, &c.ExternalURL, &c.FacebookURL,
		&c.TwitterUser, &c.InstagramUser, &c.CreatedAt, &c.ModifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCastNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a cast and its seeded relation sets in one transaction.
func (r *Repository) Create(ctx context.Context, cast *models.Cast, seed func(m *Membership) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `INSERT INTO casts (` + castColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = tx.Exec(ctx, q, cast.ID, cast.Name, cast.Slug, cast.Description, cast.Email, cast.ExternalURL,
		cast.FacebookURL, cast.TwitterUser, cast.InstagramUser, cast.CreatedAt, cast.ModifiedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("insert cast: %w", err)
	}

	m := NewMembership(cast.ID)
	if seed != nil {
		if err := seed(m); err != nil {
			return err
		}
	}
	if err := applyChanges(ctx, tx, cast.ID, m.Changes()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByID returns a cast by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Cast, error) {
	return scanCast(r.pool.QueryRow(ctx, `SELECT `+castColumns+` FROM casts WHERE id = $1`, id))
}

// GetBySlug returns a cast by slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Cast, error) {
	return scanCast(r.pool.QueryRow(ctx, `SELECT `+castColumns+` FROM casts WHERE slug = $1`, slug))
}

// List returns all casts ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Cast, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+castColumns+` FROM casts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Cast{}
	for rows.Next() {
		c, err := scanCast(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

// Update saves the editable fields, slug and modified timestamp.
func (r *Repository) Update(ctx context.Context, cast *models.Cast) error {
	const q = `UPDATE casts SET name = $1, slug = $2, description = $3, email = $4, external_url = $5,
		facebook_url = $6, twitter_user = $7, instagram_user = $8, modified_at = $9
		WHERE id = $10`
	tag, err := r.pool.Exec(ctx, q, cast.Name, cast.Slug, cast.Description, cast.Email, cast.ExternalURL,
		cast.FacebookURL, cast.TwitterUser, cast.InstagramUser, cast.ModifiedAt, cast.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("update cast: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCastNotFound
	}
	return nil
}

// Delete removes a cast after guard approves its locked relation sets.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID, guard func(m *Membership) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockCast(ctx, tx, id, "UPDATE"); err != nil {
		return err
	}
	m, err := LoadMembership(ctx, tx, id)
	if err != nil {
		return err
	}
	if guard != nil {
		if err := guard(m); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM casts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete cast: %w", err)
	}
	return tx.Commit(ctx)
}

// Membership loads the relation sets of a cast without locking.
func (r *Repository) Membership(ctx context.Context, id uuid.UUID) (*Membership, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM casts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrCastNotFound
	}
	return LoadMembership(ctx, r.pool, id)
}

// WithMembership locks the cast row, runs fn on its relation sets and writes
// the recorded changes before committing. Concurrent calls for the same cast
// queue on the row lock.
func (r *Repository) WithMembership(ctx context.Context, id uuid.UUID, at time.Time, fn func(m *Membership) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockCast(ctx, tx, id, "UPDATE"); err != nil {
		return err
	}
	m, err := LoadMembership(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := fn(m); err != nil {
		return err
	}
	changes := m.Changes()
	if len(changes) == 0 {
		return tx.Commit(ctx)
	}
	if err := applyChanges(ctx, tx, id, changes); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE casts SET modified_at = $1 WHERE id = $2`, at, id); err != nil {
		return fmt.Errorf("touch cast: %w", err)
	}
	return tx.Commit(ctx)
}

// LockCast takes a row lock on the cast ("UPDATE" or "SHARE").
func LockCast(ctx context.Context, tx pgx.Tx, id uuid.UUID, mode string) error {
	return lockCast(ctx, tx, id, mode)
}

func lockCast(ctx context.Context, tx pgx.Tx, id uuid.UUID, mode string) error {
	q := `SELECT id FROM casts WHERE id = $1 FOR UPDATE`
	if mode == "SHARE" {
		q = `SELECT id FROM casts WHERE id = $1 FOR SHARE`
	}
	var locked uuid.UUID
	err := tx.QueryRow(ctx, q, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrCastNotFound
	}
	if err != nil {
		return fmt.Errorf("lock cast: %w", err)
	}
	return nil
}

// LoadMembership reads every relation row of a cast.
func LoadMembership(ctx context.Context, q Querier, castID uuid.UUID) (*Membership, error) {
	rows, err := q.Query(ctx, `SELECT profile_id, relation FROM cast_relations WHERE cast_id = $1`, castID)
	if err != nil {
		return nil, fmt.Errorf("load relations: %w", err)
	}
	defer rows.Close()
	m := NewMembership(castID)
	for rows.Next() {
		var (
			profileID uuid.UUID
			relation  string
		)
		if err := rows.Scan(&profileID, &relation); err != nil {
			return nil, err
		}
		m.Load(Relation(relation), profileID)
	}
	return m, rows.Err()
}

func applyChanges(ctx context.Context, tx pgx.Tx, castID uuid.UUID, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ch := range changes {
		if ch.Added {
			batch.Queue(`INSERT INTO cast_relations (cast_id, profile_id, relation) VALUES ($1, $2, $3)
				ON CONFLICT DO NOTHING`, castID, ch.ProfileID, string(ch.Relation))
			continue
		}
		batch.Queue(`DELETE FROM cast_relations WHERE cast_id = $1 AND profile_id = $2 AND relation = $3`,
			castID, ch.ProfileID, string(ch.Relation))
	}
	br := tx.SendBatch(ctx, batch)
	for range changes {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("apply relation change: %w", err)
		}
	}
	return br.Close()
}

const sectionColumns = `id, cast_id, title, text, sort_order, created_at`

func scanSection(row pgx.Row) (*models.PageSection, error) {
	var s models.PageSection
	err := row.Scan(&s.ID, &s.CastID, &s.Title, &s.Text, &s.Order, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSectionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSections returns the page sections of a cast by display order.
func (r *Repository) ListSections(ctx context.Context, castID uuid.UUID) ([]models.PageSection, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sectionColumns+` FROM cast_page_sections
		WHERE cast_id = $1 ORDER BY sort_order, created_at`, castID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.PageSection{}
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// GetSection returns one page section of a cast.
func (r *Repository) GetSection(ctx context.Context, castID, id uuid.UUID) (*models.PageSection, error) {
	return scanSection(r.pool.QueryRow(ctx, `SELECT `+sectionColumns+` FROM cast_page_sections
		WHERE cast_id = $1 AND id = $2`, castID, id))
}

// CreateSection inserts a page section.
func (r *Repository) CreateSection(ctx context.Context, s *models.PageSection) error {
	const q = `INSERT INTO cast_page_sections (` + sectionColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, q, s.ID, s.CastID, s.Title, s.Text, s.Order, s.CreatedAt)
	return err
}

// UpdateSection saves title, text and order.
func (r *Repository) UpdateSection(ctx context.Context, s *models.PageSection) error {
	tag, err := r.pool.Exec(ctx, `UPDATE cast_page_sections SET title = $1, text = $2, sort_order = $3
		WHERE cast_id = $4 AND id = $5`, s.Title, s.Text, s.Order, s.CastID, s.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSectionNotFound
	}
	return nil
}

// DeleteSection removes a page section.
func (r *Repository) DeleteSection(ctx context.Context, castID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cast_page_sections WHERE cast_id = $1 AND id = $2`, castID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSectionNotFound
	}
	return nil
}
