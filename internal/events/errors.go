package events

import "errors"

// Casting assignment rejections.
var (
	ErrMissingAssignee     = errors.New("events: casting needs a profile or a write-in")
	ErrConflictingAssignee = errors.New("events: casting cannot have both a profile and a write-in")
	ErrNotCastMember       = errors.New("events: profile is not a member of the cast")
	ErrEventImmutable      = errors.New("events: casting event cannot be changed")
	ErrInvalidRole         = errors.New("events: unknown role")
	ErrWriteInTooLong      = errors.New("events: write-in is too long")
)

var (
	ErrEventNotFound   = errors.New("events: event not found")
	ErrCastingNotFound = errors.New("events: casting not found")
	// ErrInvalidEvent is returned for an event without a name or start time,
	// or with a name or venue over its length limit.
	ErrInvalidEvent = errors.New("events: event needs a name and a start time")
)

var rejections = []error{
	ErrMissingAssignee, ErrConflictingAssignee, ErrNotCastMember, ErrEventImmutable, ErrInvalidRole, ErrInvalidEvent,
	ErrWriteInTooLong,
}

// IsRejection reports whether err is a validation rejection of an event or casting write.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}
