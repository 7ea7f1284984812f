// Package security records security events, request access logs and login
// attempts, and aggregates them for the admin security and logs pages.
package security

import (
	"context"
	"errors"
	"time"

	"github.com/eringen/panelengine/paging"
	"github.com/eringen/panelengine/report"
)

// Action names a security-relevant operation.
type Action string

const (
	ActionLogin            Action = "LOGIN"
	ActionLogout           Action = "LOGOUT"
	ActionPasswordChange   Action = "PASSWORD_CHANGE"
	ActionTwoFactorEnable  Action = "TWO_FACTOR_ENABLE"
	ActionAccountLock      Action = "ACCOUNT_LOCK"
	ActionPermissionChange Action = "PERMISSION_CHANGE"
	ActionAPIKeyCreate     Action = "API_KEY_CREATE"
)

// Actions lists every known action.
var Actions = []Action{
	ActionLogin, ActionLogout, ActionPasswordChange, ActionTwoFactorEnable,
	ActionAccountLock, ActionPermissionChange, ActionAPIKeyCreate,
}

// Status is the outcome of a security event.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusBlocked Status = "BLOCKED"
)

// Statuses lists every known status.
var Statuses = []Status{StatusSuccess, StatusFailure, StatusBlocked}

var ErrInvalidEvent = errors.New("security: event requires a known action and status")

// Event is one entry in the security log.
type Event struct {
	ID        int64     `json:"id"`
	Action    Action    `json:"action"`
	Status    Status    `json:"status"`
	UserID    string    `json:"userId,omitempty"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Suspicious reports whether the event belongs in the suspicious activity list.
func (e Event) Suspicious() bool {
	return e.Status == StatusFailure || e.Status == StatusBlocked || e.Action == ActionAccountLock
}

// Access is one entry in the request access log.
type Access struct {
	ID         int64     `json:"id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"statusCode"`
	IP         string    `json:"ip"`
	UserID     string    `json:"userId,omitempty"`
	LatencyMS  int64     `json:"latencyMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// LoginAttempt is a single credential check.
type LoginAttempt struct {
	Email     string    `json:"email"`
	IP        string    `json:"ip"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserCounter supplies the account counts the overview needs.
type UserCounter interface {
	CountTotal(ctx context.Context) (int, error)
	CountTwoFactor(ctx context.Context) (int, error)
}

// WindowCount is the number of events in a rolling window.
type WindowCount struct {
	Window string `json:"window"`
	Count  int    `json:"count"`
}

// IPCount is a source address with its failure count.
type IPCount struct {
	IP    string `json:"ip"`
	Count int    `json:"count"`
}

// Overview is the data behind the security dashboard.
type Overview struct {
	EventWindows     []WindowCount       `json:"eventWindows"`
	FailedLogins24h  int                 `json:"failedLogins24h"`
	Blocked24h       int                 `json:"blocked24h"`
	LoginsByDay      []report.SplitPoint `json:"loginsByDay"`
	TopFailedIPs     []IPCount           `json:"topFailedIps"`
	Suspicious       []Event             `json:"suspicious"`
	TotalUsers       int                 `json:"totalUsers"`
	TwoFactorUsers   int                 `json:"twoFactorUsers"`
	TwoFactorPercent int                 `json:"twoFactorPercent"`
	GeneratedAt      time.Time           `json:"generatedAt"`
}

// EventFilter narrows the paginated security event list.
type EventFilter struct {
	Action Action
	Status Status
	Days   int
}

// EventPage is a page of security events.
type EventPage struct {
	Events []Event     `json:"events"`
	Page   paging.Page `json:"page"`
	Window []int       `json:"window"`
	Filter EventFilter `json:"filter"`
}

// LogType selects which source the logs page shows.
type LogType string

const (
	LogAll      LogType = "all"
	LogSecurity LogType = "security"
	LogAccess   LogType = "access"
)

// ParseLogType maps unknown values to LogAll.
func ParseLogType(s string) LogType {
	switch LogType(s) {
	case LogSecurity, LogAccess:
		return LogType(s)
	default:
		return LogAll
	}
}

// LogFilter narrows the merged logs page.
type LogFilter struct {
	Type   LogType
	Search string
	Days   int
}

// LogEntry is a row on the merged logs page. Exactly one of Event and
// Access is set.
type LogEntry struct {
	Kind      LogType   `json:"kind"`
	Event     *Event    `json:"event,omitempty"`
	Access    *Access   `json:"access,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ActionCount is an action with its number of occurrences.
type ActionCount struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

// LogPage is a page of the merged logs view.
type LogPage struct {
	Entries    []LogEntry    `json:"entries"`
	Page       paging.Page   `json:"page"`
	Window     []int         `json:"window"`
	Filter     LogFilter     `json:"filter"`
	TopActions []ActionCount `json:"topActions"`
}

// Page sizes used by the security and logs pages.
const (
	EventPageSize = 20
	LogPageSize   = 30
	DefaultDays   = 7
)
