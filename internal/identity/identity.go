// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

// Package identity implements the employee-number codec and the idempotency
// key derivation shared by every ingestion path.
//
// The employee number is the composite device-facing identifier
// "{tenant_id}s{member_id}". It is the sole bridge between the identifier
// space enrolled on physical terminals and the internal numeric ids; every
// ingestion path decodes it before trusting it.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// employeeNoRe matches the full composite token, with no leading or trailing
// garbage tolerated.
var employeeNoRe = regexp.MustCompile(`^(\d+)s(\d+)$`)

// EncodeEmployeeNo produces the composite device-facing identifier for a
// member: "{tenantID}s{memberID}".
func EncodeEmployeeNo(tenantID, memberID int64) string {
	return fmt.Sprintf("%ds%d", tenantID, memberID)
}

// DecodeEmployeeNo parses a composite employee number. It returns ok=false
// for any token that is not exactly digits, the literal 's', digits.
func DecodeEmployeeNo(token string) (tenantID, memberID int64, ok bool) {
	m := employeeNoRe.FindStringSubmatch(token)
	if m == nil {
		return 0, 0, false
	}
	tenantID, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	memberID, err = strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return tenantID, memberID, true
}

// keySeed is the canonical composition hashed into an idempotency key. JSON
// marshaling sorts map keys, so byte-identical payload documents produce
// byte-identical seeds regardless of which ingestion shape carried them.
type keySeed struct {
	TenantID   int64                  `json:"tenant_id"`
	EmployeeNo string                 `json:"employee_no"`
	DeviceID   string                 `json:"device_id"`
	EventType  string                 `json:"event_type"`
	TS         string                 `json:"ts"`
	Payload    map[string]interface{} `json:"payload"`
}

// DeriveEventID computes the deterministic idempotency key for one logical
// event occurrence: SHA-256 over the canonical seed, truncated to 32 hex
// characters. Replays of the same device push collapse to the same key;
// changing any one field changes the key.
func DeriveEventID(tenantID int64, employeeNo, deviceID, eventType string, ts time.Time, payload map[string]interface{}) string {
	seed := keySeed{
		TenantID:   tenantID,
		EmployeeNo: employeeNo,
		DeviceID:   deviceID,
		EventType:  eventType,
		TS:         ts.UTC().Format(time.RFC3339Nano),
		Payload:    payload,
	}

	// Marshal cannot fail for this shape; fall back to the raw composition
	// if the payload carries something unmarshalable (e.g. channels never
	// occur in decoded JSON, but defensive callers exist).
	data, err := json.Marshal(seed)
	if err != nil {
		data = []byte(fmt.Sprintf("%d|%s|%s|%s|%s", tenantID, employeeNo, deviceID, eventType, seed.TS))
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:32]
}
