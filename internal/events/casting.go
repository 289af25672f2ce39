package events

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rocky-roll-call/rrc-backend/internal/models"
)

// MaxWriteInLength bounds a write-in name, in characters.
const MaxWriteInLength = 128

// Validate checks that exactly one assignee is given. The write-in is
// compared after trimming.
func Validate(profileID *uuid.UUID, writeIn string) error {
	writeIn = strings.TrimSpace(writeIn)
	hasWriteIn := writeIn != ""
	switch {
	case profileID == nil && !hasWriteIn:
		return ErrMissingAssignee
	case profileID != nil && hasWriteIn:
		return ErrConflictingAssignee
	case utf8.RuneCountInString(writeIn) > MaxWriteInLength:
		return ErrWriteInTooLong
	}
	return nil
}

// CastingInput is the body for POST /events/:id/castings.
type CastingInput struct {
	Role      models.Role `json:"role"`
	ProfileID *uuid.UUID  `json:"profile_id"`
	WriteIn   string      `json:"writein"`
}

// CastingPatch is a partial casting update. The Set flags distinguish a
// field sent as null from one left out.
type CastingPatch struct {
	Role       *models.Role
	ProfileSet bool
	ProfileID  *uuid.UUID
	WriteInSet bool
	WriteIn    string
	EventID    *uuid.UUID
}

// UnmarshalJSON decodes a patch body, recording which assignee fields were present.
func (p *CastingPatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["role"]; ok && !isNull(v) {
		var r models.Role
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		p.Role = &r
	}
	if v, ok := raw["profile_id"]; ok {
		p.ProfileSet = true
		if !isNull(v) {
			var id uuid.UUID
			if err := json.Unmarshal(v, &id); err != nil {
				return err
			}
			p.ProfileID = &id
		}
	}
	if v, ok := raw["writein"]; ok {
		p.WriteInSet = true
		if !isNull(v) {
			if err := json.Unmarshal(v, &p.WriteIn); err != nil {
				return err
			}
		}
	}
	if v, ok := raw["event_id"]; ok && !isNull(v) {
		var id uuid.UUID
		if err := json.Unmarshal(v, &id); err != nil {
			return err
		}
		p.EventID = &id
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// apply returns c with the patch applied. Event changes are checked by the caller.
func (p CastingPatch) apply(c models.Casting) models.Casting {
	if p.Role != nil {
		c.Role = *p.Role
	}
	if p.ProfileSet {
		c.ProfileID = p.ProfileID
	}
	if p.WriteInSet {
		c.WriteIn = strings.TrimSpace(p.WriteIn)
	}
	return c
}

func sameProfile(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
