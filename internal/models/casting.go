package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role is a part performed at an event. The value is its rank: the listing order
// and the boundary between performer and crew roles.
type Role int

const (
	RoleFrank    Role = 1
	RoleJanet    Role = 2
	RoleBrad     Role = 3
	RoleRiff     Role = 4
	RoleMagenta  Role = 5
	RoleColumbia Role = 6
	RoleScott    Role = 7
	RoleRocky    Role = 8
	RoleEddie    Role = 9
	RoleCrim     Role = 10
	RoleTransy   Role = 11

	RoleEmcee  Role = 20
	RoleTrixie Role = 21

	RoleTech   Role = 30
	RoleLights Role = 31
	RolePhotos Role = 32
)

// CrewRankThreshold is the first rank of crew roles; crew castings never show a picture.
const CrewRankThreshold Role = 30

var roleLabels = map[Role]string{
	RoleFrank:    "Dr. Frank-N-Furter",
	RoleJanet:    "Janet Weiss",
	RoleBrad:     "Brad Majors",
	RoleRiff:     "Riff Raff",
	RoleMagenta:  "Magenta",
	RoleColumbia: "Columbia",
	RoleScott:    "Dr. Everett V. Scott",
	RoleRocky:    "Rocky Horror",
	RoleEddie:    "Eddie",
	RoleCrim:     "The Criminologist",
	RoleTransy:   "Transylvanian",
	RoleEmcee:    "Emcee",
	RoleTrixie:   "Trixie",
	RoleTech:     "Tech",
	RoleLights:   "Lights",
	RolePhotos:   "Photographer",
}

var allRoles = []Role{
	RoleFrank, RoleJanet, RoleBrad, RoleRiff, RoleMagenta, RoleColumbia, RoleScott, RoleRocky,
	RoleEddie, RoleCrim, RoleTransy, RoleEmcee, RoleTrixie, RoleTech, RoleLights, RolePhotos,
}

// Roles returns every role in rank order.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

// Label returns the display name of the role, or "" for an unknown rank.
func (r Role) Label() string {
	return roleLabels[r]
}

// IsCrew reports whether r is a crew (non-performer) role.
func (r Role) IsCrew() bool {
	return r >= CrewRankThreshold
}

// RoleInfo is the JSON view of a role.
type RoleInfo struct {
	Rank  int    `json:"rank"`
	Label string `json:"label"`
	Crew  bool   `json:"crew"`
}

// Info returns the JSON view of the role.
func (r Role) Info() RoleInfo {
	return RoleInfo{Rank: int(r), Label: r.Label(), Crew: r.IsCrew()}
}

// Casting binds a profile or a write-in name to a role at an event.
type Casting struct {
	ID        uuid.UUID  `json:"id"`
	EventID   uuid.UUID  `json:"event_id"`
	ProfileID *uuid.UUID `json:"profile_id,omitempty"`
	WriteIn   string     `json:"writein,omitempty"`
	Role      Role       `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

// MarshalJSON adds the role label and picture flag to the stored fields.
func (c Casting) MarshalJSON() ([]byte, error) {
	type plain Casting
	return json.Marshal(struct {
		plain
		RoleLabel   string `json:"role_label"`
		ShowPicture bool   `json:"show_picture"`
	}{plain(c), c.Role.Label(), c.ShowPicture()})
}

// ShowPicture reports whether the casting is a performer role bound to a profile.
func (c *Casting) ShowPicture() bool {
	return c.ProfileID != nil && c.Role < CrewRankThreshold
}
