// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

// Package ingest normalizes heterogeneous device payloads into canonical
// access events and feeds them through the idempotent ingestion pipeline.
//
// Three payload shapes arrive here: direct HTTP submissions from an
// authenticated tenant, events relayed over a gateway's duplex channel, and
// raw device webhook pushes. All three collapse onto the same canonical
// record and the same idempotency key derivation.
package ingest

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/accessmux/accessmux/internal/database"
	"github.com/accessmux/accessmux/internal/identity"
	"github.com/accessmux/accessmux/internal/models"
)

// Normalization rejection sentinels. Handlers map these to client-visible
// validation errors.
var (
	ErrMissingIdentifier = errors.New("missing member identifier")
	ErrInvalidIdentifier = errors.New("identifier does not decode")
	ErrTenantMismatch    = errors.New("identifier belongs to another tenant")
	ErrMemberNotFound    = errors.New("member not found")
)

// Ingest source tags, used for metrics and logging.
const (
	SourceHTTP    = "http"
	SourceGateway = "gateway"
	SourceWebhook = "webhook"
)

// MemberStore is the member lookup surface the normalizer needs.
type MemberStore interface {
	GetMember(ctx context.Context, tenantID, id int64) (*models.Member, error)
	GetMemberByEmployeeNo(ctx context.Context, tenantID int64, employeeNo string) (*models.Member, error)
}

// DirectEvent is the submission body shared by the authenticated HTTP path
// and the gateway relay path. The gateway historically sends camelCase
// employeeNo, so both spellings are accepted.
type DirectEvent struct {
	EmployeeNo      string                 `json:"employee_no"`
	EmployeeNoCamel string                 `json:"employeeNo"`
	DeviceID        string                 `json:"device_id"`
	EventType       string                 `json:"event_type"`
	Payload         map[string]interface{} `json:"payload"`
	TS              string                 `json:"ts"`
	EventID         string                 `json:"event_id"`
}

// Normalizer turns raw inbound payloads into canonical AccessEvent drafts.
type Normalizer struct {
	members MemberStore
}

// NewNormalizer creates a Normalizer backed by the given member store.
func NewNormalizer(members MemberStore) *Normalizer {
	return &Normalizer{members: members}
}

// NormalizeDirect handles the strict shapes: direct HTTP submissions and
// gateway-relayed events. The identifier is authoritative here, so a token
// that does not decode, decodes to another tenant, or names a missing member
// is a rejection rather than an unmapped event.
func (n *Normalizer) NormalizeDirect(ctx context.Context, tenant *models.Tenant, in *DirectEvent) (*models.AccessEvent, error) {
	employeeNo := strings.TrimSpace(in.EmployeeNo)
	if employeeNo == "" {
		employeeNo = strings.TrimSpace(in.EmployeeNoCamel)
	}
	if employeeNo == "" {
		return nil, ErrMissingIdentifier
	}

	tenantID, memberID, ok := identity.DecodeEmployeeNo(employeeNo)
	if !ok {
		return nil, ErrInvalidIdentifier
	}
	if tenantID != tenant.ID {
		return nil, ErrTenantMismatch
	}
	member, err := n.members.GetMember(ctx, tenant.ID, memberID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}

	ts := parseTimestamp(in.TS)
	return n.buildDraft(tenant, &member.ID, employeeNo, in.DeviceID, in.EventType, in.Payload, ts, in.EventID), nil
}

// NormalizeWebhook handles the tolerant shape: a raw device push whose
// identifier is hunted down inside an untrusted nested document. Resolution
// failures degrade to an unmapped event instead of rejecting, because device
// identifier spaces are not guaranteed to follow the composite encoding.
func (n *Normalizer) NormalizeWebhook(ctx context.Context, tenant *models.Tenant, doc map[string]interface{}) (*models.AccessEvent, error) {
	employeeNo := findIdentifier(doc)

	var memberID *int64
	if employeeNo != "" {
		member, err := n.resolveWebhookMember(ctx, tenant, employeeNo)
		if err != nil {
			return nil, err
		}
		if member != nil {
			memberID = &member.ID
		}
	}

	ts := webhookTimestamp(doc)
	return n.buildDraft(tenant, memberID, employeeNo, "", "", doc, ts, ""), nil
}

// resolveWebhookMember maps a device identifier to a member, or nil when no
// mapping exists. The composite codec is tried first. Terminals frequently
// echo back only the member half of the composite, so an all-digit
// identifier is next tried as a member id within this tenant. Anything left
// falls through to a lookup over the stored identifier strings of this
// tenant only.
func (n *Normalizer) resolveWebhookMember(ctx context.Context, tenant *models.Tenant, employeeNo string) (*models.Member, error) {
	if tenantID, memberID, ok := identity.DecodeEmployeeNo(employeeNo); ok && tenantID == tenant.ID {
		member, err := n.members.GetMember(ctx, tenant.ID, memberID)
		if err == nil {
			return member, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}

	if memberID, err := strconv.ParseInt(employeeNo, 10, 64); err == nil && memberID > 0 {
		member, err := n.members.GetMember(ctx, tenant.ID, memberID)
		if err == nil {
			return member, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}

	member, err := n.members.GetMemberByEmployeeNo(ctx, tenant.ID, employeeNo)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return member, nil
}

// buildDraft assembles the canonical event, deriving the idempotency key
// when the caller did not supply one.
func (n *Normalizer) buildDraft(tenant *models.Tenant, memberID *int64, employeeNo, deviceID, eventType string, payload map[string]interface{}, ts time.Time, eventID string) *models.AccessEvent {
	if eventType == "" {
		eventType = "access"
	}
	if eventID == "" {
		eventID = identity.DeriveEventID(tenant.ID, employeeNo, deviceID, eventType, ts, payload)
	}

	draft := &models.AccessEvent{
		EventID:   eventID,
		TenantID:  tenant.ID,
		MemberID:  memberID,
		EventType: eventType,
		Payload:   payload,
		TS:        ts,
	}
	if employeeNo != "" {
		draft.EmployeeNo = &employeeNo
	}
	if deviceID != "" {
		draft.DeviceID = &deviceID
	}
	return draft
}

// parseTimestamp accepts ISO-8601 with or without an offset. Naive values
// are taken as UTC; missing or unparseable values fall back to now.
func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Now().UTC()
}
