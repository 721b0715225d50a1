// Package members is the boundary to the external membership subsystem.
// The financial core only needs enough of a member to gate operations:
// approved membership to borrow, admin role for review and accrual actions.
package members

import (
	"sync"

	"github.com/villagesacco/sacco/pkg/apperrors"
)

type Role string

const (
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
)

type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "PENDING"
	MembershipApproved MembershipStatus = "APPROVED"
	MembershipRejected MembershipStatus = "REJECTED"
)

type Member struct {
	ID               string           `json:"id"`
	Role             Role             `json:"role"`
	MembershipStatus MembershipStatus `json:"membership_status"`
}

// CanBorrow reports whether the member may submit loan applications.
func (m Member) CanBorrow() bool {
	return m.MembershipStatus == MembershipApproved
}

// IsAdmin reports whether the member may perform admin actions.
func (m Member) IsAdmin() bool {
	return m.Role == RoleAdmin && m.MembershipStatus == MembershipApproved
}

// Directory resolves member IDs. Backed by the external auth/user
// subsystem in production.
type Directory interface {
	Lookup(id string) (Member, error)
}

// StaticDirectory is an in-memory Directory for development and tests.
type StaticDirectory struct {
	mu      sync.RWMutex
	members map[string]Member
}

func NewStaticDirectory(members ...Member) *StaticDirectory {
	d := &StaticDirectory{members: make(map[string]Member)}
	for _, m := range members {
		d.members[m.ID] = m
	}
	return d
}

func (d *StaticDirectory) Add(m Member) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[m.ID] = m
}

func (d *StaticDirectory) Lookup(id string) (Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.members[id]
	if !ok {
		return Member{}, apperrors.NotFound("member")
	}
	return m, nil
}
