package models

import (
	"time"

	"github.com/google/uuid"
)

// Cast represents a performing troupe and the organization owning its events.
type Cast struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Description   string    `json:"description"`
	Email         string    `json:"email"`
	ExternalURL   string    `json:"external_url"`
	FacebookURL   string    `json:"facebook_url"`
	TwitterUser   string    `json:"twitter_user"`
	InstagramUser string    `json:"instagram_user"`
	CreatedAt     time.Time `json:"created_at"`
	ModifiedAt    time.Time `json:"modified_at"`
}

// PageSection is an extra content block shown on a cast page.
type PageSection struct {
	ID        uuid.UUID `json:"id"`
	CastID    uuid.UUID `json:"cast_id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}
