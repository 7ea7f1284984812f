// Package accounts stores platform users and their login sessions.
package accounts

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// Status is the lifecycle state of a user account.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusFrozen    Status = "FROZEN"
)

// Statuses lists every account status in display order.
var Statuses = []Status{StatusActive, StatusSuspended, StatusFrozen}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// TrustLevel grades how much a user has verified about themselves.
type TrustLevel string

const (
	TrustUnverified TrustLevel = "UNVERIFIED"
	TrustBasic      TrustLevel = "BASIC"
	TrustVerified   TrustLevel = "VERIFIED"
	TrustSecure     TrustLevel = "SECURE"
)

// TrustLevels lists every trust level from lowest to highest.
var TrustLevels = []TrustLevel{TrustUnverified, TrustBasic, TrustVerified, TrustSecure}

// Valid reports whether l is a known trust level.
func (l TrustLevel) Valid() bool {
	for _, v := range TrustLevels {
		if l == v {
			return true
		}
	}
	return false
}

var (
	ErrNotFound           = errors.New("accounts: user not found")
	ErrEmailTaken         = errors.New("accounts: email already registered")
	ErrInvalidEmail       = errors.New("accounts: invalid email address")
	ErrWeakPassword       = errors.New("accounts: password must be at least 8 characters")
	ErrInvalidCredentials = errors.New("accounts: invalid email or password")
	ErrAccountLocked      = errors.New("accounts: account is not active")
	ErrInvalidStatus      = errors.New("accounts: invalid status")
	ErrInvalidTrustLevel  = errors.New("accounts: invalid trust level")
)

// User is a platform account.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Status           Status     `json:"status"`
	TrustLevel       TrustLevel `json:"trustLevel"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	EmailVerified    bool       `json:"emailVerified"`
	CreatedAt        time.Time  `json:"createdAt"`
	LastLoginAt      time.Time  `json:"lastLoginAt,omitzero"`
}

// NewUser is the input to Store.Create.
type NewUser struct {
	Email    string
	Name     string
	Password string
}

// Filter narrows a user listing.
type Filter struct {
	Status Status
	Search string
}

// Session is an authenticated user session.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NormalizeEmail lowercases and validates an address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
