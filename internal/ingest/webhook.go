// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

package ingest

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// maxIdentifierDepth bounds the recursive identifier search. Device payload
// nesting is not trusted.
const maxIdentifierDepth = 8

// identifierKeys are the fallback key names searched for a member-facing
// identifier, in no particular priority among themselves; employeeNoString
// at any level always wins first.
var identifierKeys = map[string]bool{
	"employeeNo": true,
	"cardNo":     true,
	"cardID":     true,
	"employeeID": true,
}

// findIdentifier extracts the member-facing identifier from a raw device
// document. An exact employeeNoString field is preferred, with a recursive
// walk over the remaining known key names as fallback. Returns "" when
// nothing usable is found.
func findIdentifier(doc map[string]interface{}) string {
	if acs, ok := doc["AccessControllerEvent"].(map[string]interface{}); ok {
		if v := stringValue(acs["employeeNoString"]); v != "" {
			return v
		}
	}
	return searchIdentifier(doc, 0)
}

func searchIdentifier(node interface{}, depth int) string {
	if depth > maxIdentifierDepth {
		return ""
	}
	switch v := node.(type) {
	case map[string]interface{}:
		if s := stringValue(v["employeeNoString"]); s != "" {
			return s
		}
		for key, child := range v {
			if identifierKeys[key] {
				if s := stringValue(child); s != "" && s != "0" {
					return s
				}
			}
			switch child.(type) {
			case map[string]interface{}, []interface{}:
				if s := searchIdentifier(child, depth+1); s != "" {
					return s
				}
			}
		}
	case []interface{}:
		for _, item := range v {
			if s := searchIdentifier(item, depth+1); s != "" {
				return s
			}
		}
	}
	return ""
}

// stringValue renders a scalar as a trimmed identifier string. Device
// firmwares send numbers and strings interchangeably.
func stringValue(v interface{}) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		// JSON numbers decode as float64; identifiers are whole numbers.
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return ""
	default:
		return ""
	}
}

// webhookTimestamp locates the event instant inside a device document:
// top-level dateTime, then AccessControllerEvent.dateTime, then now.
func webhookTimestamp(doc map[string]interface{}) time.Time {
	if raw, ok := doc["dateTime"].(string); ok && raw != "" {
		return parseTimestamp(raw)
	}
	if acs, ok := doc["AccessControllerEvent"].(map[string]interface{}); ok {
		if raw, ok := acs["dateTime"].(string); ok && raw != "" {
			return parseTimestamp(raw)
		}
	}
	return time.Now().UTC()
}

// mimeBoundary is the fixed part delimiter some access controllers use for
// their multipart event pushes.
var mimeBoundary = []byte("--MIME_boundary")

// DecodeWebhookBody parses a device push body into a JSON document. Bodies
// arrive either as plain JSON or as a multipart envelope whose JSON part
// must be carved out by hand (the firmware's framing is not standards
// compliant enough for a multipart reader). A body with no usable JSON
// object yields (nil, true): the device expects a 200 regardless, so the
// caller acknowledges and drops it.
func DecodeWebhookBody(body []byte, contentType string) (map[string]interface{}, bool) {
	ct := strings.ToLower(contentType)

	var jsonData []byte
	switch {
	case strings.Contains(ct, "multipart") || bytes.Contains(body, mimeBoundary):
		for _, part := range bytes.Split(body, mimeBoundary) {
			if !bytes.Contains(part, []byte("Content-Type: application/json")) {
				continue
			}
			chunks := bytes.SplitN(part, []byte("\r\n\r\n"), 2)
			if len(chunks) == 2 {
				jsonData = bytes.TrimRight(bytes.TrimSpace(chunks[1]), "\r\n-")
				break
			}
		}
	case strings.Contains(ct, "application/json"):
		jsonData = body
	}

	if len(jsonData) == 0 {
		return nil, true
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, true
	}
	return doc, false
}
