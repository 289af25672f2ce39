package casts

import "errors"

// Membership transition rejections. They are deterministic functions of the
// current relation sets and are never retried.
var (
	ErrAlreadyMember    = errors.New("casts: already a member")
	ErrNotMember        = errors.New("casts: not a member")
	ErrStillManager     = errors.New("casts: still a manager")
	ErrAlreadyManager   = errors.New("casts: already a manager")
	ErrNotManager       = errors.New("casts: not a manager")
	ErrAlreadyRequested = errors.New("casts: membership already requested")
	ErrNoSuchRequest    = errors.New("casts: no membership request")
	ErrBlocked          = errors.New("casts: blocked from cast")
	ErrAlreadyBlocked   = errors.New("casts: already blocked")
	ErrNotBlocked       = errors.New("casts: not blocked")
	ErrIsManager        = errors.New("casts: cannot block a manager")
)

var (
	// ErrCastNotFound is returned when no cast has the requested id or slug.
	ErrCastNotFound = errors.New("casts: cast not found")
	// ErrNotSoleManager is returned when deleting a cast that still has other managers.
	ErrNotSoleManager = errors.New("casts: must be the sole manager to delete")
	// ErrInvalidName is returned when a cast name is empty, too long or yields
	// an empty or too long slug.
	ErrInvalidName = errors.New("casts: invalid name")
	// ErrDuplicateName is returned when another cast already uses the name or slug.
	ErrDuplicateName = errors.New("casts: name already taken")
	// ErrSectionNotFound is returned when a page section does not exist on the cast.
	ErrSectionNotFound = errors.New("casts: page section not found")
)

var rejections = []error{
	ErrAlreadyMember, ErrNotMember, ErrStillManager, ErrAlreadyManager, ErrNotManager,
	ErrAlreadyRequested, ErrNoSuchRequest, ErrBlocked, ErrAlreadyBlocked, ErrNotBlocked, ErrIsManager,
}

// IsRejection reports whether err is one of the membership transition rejections.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}
