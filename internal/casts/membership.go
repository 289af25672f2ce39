package casts

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Relation names one of the four per-cast relation sets.
type Relation string

const (
	RelationMember  Relation = "member"
	RelationManager Relation = "manager"
	RelationRequest Relation = "member_request"
	RelationBlocked Relation = "blocked"
)

// Relations lists every relation in storage order.
var Relations = []Relation{RelationMember, RelationManager, RelationRequest, RelationBlocked}

// Change is one recorded relation-set mutation.
type Change struct {
	Relation  Relation  `json:"relation"`
	ProfileID uuid.UUID `json:"profile_id"`
	Added     bool      `json:"added"`
}

// Membership holds the relation sets of one cast and enforces the legal
// transitions between them. Every operation checks all of its preconditions
// before mutating anything, so a rejected call leaves the sets untouched.
//
// Membership is not safe for concurrent use; callers load it inside a
// transaction scoped to the cast and discard it afterwards.
type Membership struct {
	CastID  uuid.UUID
	sets    map[Relation]map[uuid.UUID]struct{}
	changes []Change
}

// NewMembership returns empty relation sets for a cast.
func NewMembership(castID uuid.UUID) *Membership {
	m := &Membership{CastID: castID, sets: make(map[Relation]map[uuid.UUID]struct{}, len(Relations))}
	for _, rel := range Relations {
		m.sets[rel] = make(map[uuid.UUID]struct{})
	}
	return m
}

// Load seeds a relation set from storage without recording changes.
func (m *Membership) Load(rel Relation, ids ...uuid.UUID) {
	set, ok := m.sets[rel]
	if !ok {
		return
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

// Changes returns the mutations recorded since the membership was loaded.
func (m *Membership) Changes() []Change {
	out := make([]Change, len(m.changes))
	copy(out, m.changes)
	return out
}

func (m *Membership) has(rel Relation, p uuid.UUID) bool {
	_, ok := m.sets[rel][p]
	return ok
}

func (m *Membership) add(rel Relation, p uuid.UUID) {
	m.sets[rel][p] = struct{}{}
	m.changes = append(m.changes, Change{Relation: rel, ProfileID: p, Added: true})
}

func (m *Membership) remove(rel Relation, p uuid.UUID) {
	delete(m.sets[rel], p)
	m.changes = append(m.changes, Change{Relation: rel, ProfileID: p, Added: false})
}

// AddMember adds p to the members. A pending request from p is consumed.
func (m *Membership) AddMember(p uuid.UUID) error {
	if m.has(RelationMember, p) {
		return ErrAlreadyMember
	}
	if m.has(RelationBlocked, p) {
		return ErrBlocked
	}
	m.add(RelationMember, p)
	if m.has(RelationRequest, p) {
		m.remove(RelationRequest, p)
	}
	return nil
}

// RemoveMember removes p from the members. Managers must be demoted first.
func (m *Membership) RemoveMember(p uuid.UUID) error {
	if m.has(RelationManager, p) {
		return ErrStillManager
	}
	if !m.has(RelationMember, p) {
		return ErrNotMember
	}
	m.remove(RelationMember, p)
	return nil
}

// AddManager promotes an existing member to manager.
func (m *Membership) AddManager(p uuid.UUID) error {
	if !m.has(RelationMember, p) {
		return ErrNotMember
	}
	if m.has(RelationManager, p) {
		return ErrAlreadyManager
	}
	m.add(RelationManager, p)
	return nil
}

// RemoveManager demotes p; membership is kept.
func (m *Membership) RemoveManager(p uuid.UUID) error {
	if !m.has(RelationManager, p) {
		return ErrNotManager
	}
	m.remove(RelationManager, p)
	return nil
}

// AddMemberRequest records that p asked to join. Managers are members, so the
// member check covers them.
func (m *Membership) AddMemberRequest(p uuid.UUID) error {
	if m.has(RelationMember, p) {
		return ErrAlreadyMember
	}
	if m.has(RelationRequest, p) {
		return ErrAlreadyRequested
	}
	if m.has(RelationBlocked, p) {
		return ErrBlocked
	}
	m.add(RelationRequest, p)
	return nil
}

// RemoveMemberRequest withdraws or declines the pending request of p.
func (m *Membership) RemoveMemberRequest(p uuid.UUID) error {
	if !m.has(RelationRequest, p) {
		return ErrNoSuchRequest
	}
	m.remove(RelationRequest, p)
	return nil
}

// BlockUser bars p from the cast, evicting its membership and dropping any
// pending request. Managers cannot be blocked.
func (m *Membership) BlockUser(p uuid.UUID) error {
	if m.has(RelationManager, p) {
		return ErrIsManager
	}
	if m.has(RelationBlocked, p) {
		return ErrAlreadyBlocked
	}
	m.add(RelationBlocked, p)
	if m.has(RelationMember, p) {
		m.remove(RelationMember, p)
	}
	if m.has(RelationRequest, p) {
		m.remove(RelationRequest, p)
	}
	return nil
}

// UnblockUser lifts the block on p.
func (m *Membership) UnblockUser(p uuid.UUID) error {
	if !m.has(RelationBlocked, p) {
		return ErrNotBlocked
	}
	m.remove(RelationBlocked, p)
	return nil
}

// IsMember reports whether p is a member.
func (m *Membership) IsMember(p uuid.UUID) bool { return m.has(RelationMember, p) }

// IsManager reports whether p is a manager.
func (m *Membership) IsManager(p uuid.UUID) bool { return m.has(RelationManager, p) }

// HasRequestedMembership reports whether p has a pending request.
func (m *Membership) HasRequestedMembership(p uuid.UUID) bool { return m.has(RelationRequest, p) }

// IsBlocked reports whether p is blocked.
func (m *Membership) IsBlocked(p uuid.UUID) bool { return m.has(RelationBlocked, p) }

// ManagerCount returns the number of managers.
func (m *Membership) ManagerCount() int { return len(m.sets[RelationManager]) }

// List returns the ids in a relation set, sorted for stable output.
func (m *Membership) List(rel Relation) []uuid.UUID {
	set := m.sets[rel]
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Snapshot is the JSON view of all relation sets.
type Snapshot struct {
	Managers       []uuid.UUID `json:"managers"`
	Members        []uuid.UUID `json:"members"`
	MemberRequests []uuid.UUID `json:"member_requests"`
	Blocked        []uuid.UUID `json:"blocked"`
}

// Snapshot returns the current relation sets.
func (m *Membership) Snapshot() Snapshot {
	return Snapshot{
		Managers:       m.List(RelationManager),
		Members:        m.List(RelationMember),
		MemberRequests: m.List(RelationRequest),
		Blocked:        m.List(RelationBlocked),
	}
}

// Operation names a membership transition exposed to callers.
type Operation string

const (
	OpAddMember           Operation = "add_member"
	OpRemoveMember        Operation = "remove_member"
	OpAddManager          Operation = "add_manager"
	OpRemoveManager       Operation = "remove_manager"
	OpAddMemberRequest    Operation = "add_member_request"
	OpRemoveMemberRequest Operation = "remove_member_request"
	OpBlockUser           Operation = "block_user"
	OpUnblockUser         Operation = "unblock_user"
)

// Apply runs the transition named by op for p.
func (m *Membership) Apply(op Operation, p uuid.UUID) error {
	switch op {
	case OpAddMember:
		return m.AddMember(p)
	case OpRemoveMember:
		return m.RemoveMember(p)
	case OpAddManager:
		return m.AddManager(p)
	case OpRemoveManager:
		return m.RemoveManager(p)
	case OpAddMemberRequest:
		return m.AddMemberRequest(p)
	case OpRemoveMemberRequest:
		return m.RemoveMemberRequest(p)
	case OpBlockUser:
		return m.BlockUser(p)
	case OpUnblockUser:
		return m.UnblockUser(p)
	}
	return fmt.Errorf("casts: unknown operation %q", op)
}
