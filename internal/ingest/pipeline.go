// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

package ingest

import (
	"context"

	"github.com/accessmux/accessmux/internal/hub"
	"github.com/accessmux/accessmux/internal/logging"
	"github.com/accessmux/accessmux/internal/metrics"
	"github.com/accessmux/accessmux/internal/models"
)

// EventStore is the persistence surface the pipeline needs: an atomic
// get-or-create keyed by the idempotency key.
type EventStore interface {
	InsertEventIfAbsent(ctx context.Context, e *models.AccessEvent) (*models.AccessEvent, bool, error)
}

// Broadcaster is the realtime fan-out surface.
type Broadcaster interface {
	BroadcastToClients(tenantID int64, msg *hub.Message)
}

// Pipeline persists normalized events exactly once and announces first
// insertions to the tenant's subscribers.
type Pipeline struct {
	store Store
	hub   Broadcaster
}

// Store combines the lookup surfaces the pipeline and its normalizer need.
type Store interface {
	EventStore
	MemberStore
}

// NewPipeline creates a Pipeline.
func NewPipeline(store Store, broadcaster Broadcaster) *Pipeline {
	return &Pipeline{store: store, hub: broadcaster}
}

// Ingest stores a draft idempotently. Replays of an already-stored key
// return the existing record without a second broadcast. Returns the stored
// event and whether this call inserted it.
func (p *Pipeline) Ingest(ctx context.Context, draft *models.AccessEvent, source string) (*models.AccessEvent, bool, error) {
	stored, inserted, err := p.store.InsertEventIfAbsent(ctx, draft)
	if err != nil {
		return nil, false, err
	}

	metrics.RecordIngest(source, inserted)

	if !inserted {
		logging.Debug().
			Str("event_id", stored.EventID).
			Int64("tenant_id", stored.TenantID).
			Str("source", source).
			Msg("Duplicate event collapsed")
		return stored, false, nil
	}

	logging.Info().
		Str("event_id", stored.EventID).
		Int64("tenant_id", stored.TenantID).
		Str("source", source).
		Str("event_type", stored.EventType).
		Msg("Access event ingested")

	p.hub.BroadcastToClients(stored.TenantID, &hub.Message{
		Type: hub.MsgEventsAccess,
		Data: stored,
	})
	return stored, true, nil
}
