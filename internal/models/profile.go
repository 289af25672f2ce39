package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a registered person. Its ID is the person identifier used by cast relations and castings.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Name      string    `json:"name"`
	Alt       string    `json:"alt"`
	Bio       string    `json:"bio"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfilePublic is Profile without sensitive fields for API responses.
type ProfilePublic struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	Location    string    `json:"location"`
	CreatedAt   time.Time `json:"created_at"`
}

// DisplayName returns the alias when set, otherwise the name.
func (p *Profile) DisplayName() string {
	if p.Alt != "" {
		return p.Alt
	}
	return p.Name
}

// ToPublic converts Profile to ProfilePublic.
func (p *Profile) ToPublic() ProfilePublic {
	return ProfilePublic{
		ID:          p.ID,
		Name:        p.Name,
		DisplayName: p.DisplayName(),
		Bio:         p.Bio,
		Location:    p.Location,
		CreatedAt:   p.CreatedAt,
	}
}
