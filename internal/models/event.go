package models

import (
	"time"

	"github.com/google/uuid"
)

// EventRetention is how long after its start an event is kept before it is swept.
const EventRetention = 730 * 24 * time.Hour

// Event is a scheduled show owned by a cast.
type Event struct {
	ID          uuid.UUID `json:"id"`
	CastID      uuid.UUID `json:"cast_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Venue       string    `json:"venue"`
	StartsAt    time.Time `json:"starts_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Expired reports whether the event started more than EventRetention before now.
func (e *Event) Expired(now time.Time) bool {
	return now.After(e.StartsAt.Add(EventRetention))
}
