// Package orgs manages organizations, their members and pending invites.
package orgs

import (
	"errors"
	"time"
)

// Status of an organization.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
)

// Role of a member inside an organization. Lower rank is more privileged.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleViewer Role = "VIEWER"
)

// Roles lists the roles from most to least privileged.
var Roles = []Role{RoleOwner, RoleAdmin, RoleMember, RoleViewer}

// Rank orders roles, OWNER first. Unknown roles sort last.
func (r Role) Rank() int {
	for i, v := range Roles {
		if r == v {
			return i
		}
	}
	return len(Roles)
}

func (r Role) Valid() bool { return r.Rank() < len(Roles) }

// InviteStatus is the lifecycle of an invite.
type InviteStatus string

const (
	InvitePending  InviteStatus = "PENDING"
	InviteAccepted InviteStatus = "ACCEPTED"
	InviteRevoked  InviteStatus = "REVOKED"
)

// InviteTTL is how long an invite token stays valid.
const InviteTTL = 7 * 24 * time.Hour

var (
	ErrNotFound      = errors.New("orgs: not found")
	ErrInvalidName   = errors.New("orgs: name is required")
	ErrSlugTaken     = errors.New("orgs: slug already in use")
	ErrInvalidRole   = errors.New("orgs: invalid role")
	ErrAlreadyMember = errors.New("orgs: user is already a member")
	ErrLastOwner     = errors.New("orgs: organization must keep at least one owner")
	ErrInviteExists  = errors.New("orgs: a pending invite already exists for this email")
	ErrInviteExpired = errors.New("orgs: invite has expired")
	ErrSuspended     = errors.New("orgs: organization is suspended")
	ErrInvalidEmail  = errors.New("orgs: invalid invite email")
	ErrWrongInvitee  = errors.New("orgs: invite was sent to a different email")
)

// Organization is a team that owns websites and billing.
type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Plan        string    `json:"plan"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	MemberCount int       `json:"memberCount"`
}

// Person is the user data copied onto a membership.
type Person struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Member is a user's membership in an organization.
type Member struct {
	OrgID    string    `json:"orgId"`
	UserID   string    `json:"userId"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Invite is an emailed invitation to join an organization.
type Invite struct {
	ID        int64        `json:"id"`
	OrgID     string       `json:"orgId"`
	Email     string       `json:"email"`
	Role      Role         `json:"role"`
	Token     string       `json:"token"`
	Status    InviteStatus `json:"status"`
	InvitedBy string       `json:"invitedBy"`
	CreatedAt time.Time    `json:"createdAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Expired reports whether the invite can no longer be accepted.
func (i Invite) Expired(now time.Time) bool { return !now.Before(i.ExpiresAt) }

// Filter narrows List.
type Filter struct {
	Search string
	Status Status
}

// NewOrganization is the input to Create.
type NewOrganization struct {
	Name  string
	Slug  string
	Plan  string
	Owner Person
}
