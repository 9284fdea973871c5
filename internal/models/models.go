// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

// Package models defines the persistent domain entities shared across the
// AccessMux components: tenants, members, accounts, access events, and
// provisioning jobs.
package models

import "time"

// Member status values. A member's status mirrors the outcome of the last
// provisioning job for that member and is owned by the job queue.
const (
	MemberStatusPending = "pending"
	MemberStatusActive  = "active"
	MemberStatusFailed  = "failed"
	MemberStatusDeleted = "deleted"
)

// ProvisionJob status values. Transitions: pending -> sent -> {acked|failed}.
// Terminal states are immutable.
const (
	JobStatusPending = "pending"
	JobStatusSent    = "sent"
	JobStatusAcked   = "acked"
	JobStatusFailed  = "failed"
)

// ProvisionJob types, matching the member mutation they synchronize.
const (
	JobTypeCreate = "create"
	JobTypeUpdate = "update"
	JobTypeDelete = "delete"
)

// Account roles.
const (
	RoleAdmin = "admin" // platform superuser, may manage all tenants
	RoleOwner = "owner" // tenant administrator, bound to a single tenant
)

// Tenant is an isolated customer organization. All other entities are scoped
// to exactly one tenant.
type Tenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	APIKey    string    `json:"api_key,omitempty"`    // authenticates subscriber clients and the tenant HTTP API
	EdgeSecret string   `json:"edge_secret,omitempty"` // authenticates edge gateways and device webhooks
	Timezone  string    `json:"timezone"`              // IANA zone used for attendance day boundaries
	CreatedAt time.Time `json:"created_at"`
}

// Member is a person enrolled for access and attendance tracking within a
// tenant. EmployeeNo is the device-facing identifier produced by the identity
// codec at creation time.
type Member struct {
	ID         int64      `json:"id"`
	TenantID   int64      `json:"tenant_id"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Phone      *string    `json:"phone,omitempty"`
	EmployeeNo string     `json:"employee_no"`
	PhotoPath  *string    `json:"photo_path,omitempty"`
	Status     string     `json:"status"`
	LastError  *string    `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Account is a platform login (admin or tenant owner).
type Account struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	TenantID     *int64     `json:"tenant_id,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// AccessEvent is an immutable access-control fact. EventID is the idempotency
// key, unique across the whole store; an event is never mutated or deleted
// once inserted.
type AccessEvent struct {
	ID         int64                  `json:"id"`
	EventID    string                 `json:"event_id"`
	TenantID   int64                  `json:"tenant_id"`
	MemberID   *int64                 `json:"member_id"` // nil means unmapped
	EmployeeNo *string                `json:"employee_no,omitempty"`
	DeviceID   *string                `json:"device_id,omitempty"`
	EventType  string                 `json:"event_type"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	TS         time.Time              `json:"ts"`
	CreatedAt  time.Time              `json:"created_at"`
}

// ProvisionJob is a unit of work synchronizing one member mutation to an edge
// gateway. Exactly one job drives one member status transition.
type ProvisionJob struct {
	ID        int64           `json:"id"`
	TenantID  int64           `json:"tenant_id"`
	MemberID  int64           `json:"member_id"`
	JobType   string          `json:"job_type"`
	Payload   MemberPayload   `json:"payload"`
	Status    string          `json:"status"`
	Error     *string         `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MemberPayload is the canonical member-facing document carried by a
// provisioning job and pushed to gateways.
type MemberPayload struct {
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Phone      *string `json:"phone,omitempty"`
	EmployeeNo string  `json:"employee_no"`
	PhotoPath  *string `json:"photo_path,omitempty"`
}

// IsTerminalJobStatus reports whether a job status admits no further
// transitions.
func IsTerminalJobStatus(status string) bool {
	return status == JobStatusAcked || status == JobStatusFailed
}
