// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/accessmux/accessmux/internal/hub"
	"github.com/accessmux/accessmux/internal/models"
)

// fakeStore implements Store over a map keyed by event id.
type fakeStore struct {
	*fakeMembers
	events map[string]*models.AccessEvent
	nextID int64
}

func newFakeStore(members ...*models.Member) *fakeStore {
	return &fakeStore{
		fakeMembers: newFakeMembers(members...),
		events:      make(map[string]*models.AccessEvent),
	}
}

func (f *fakeStore) InsertEventIfAbsent(_ context.Context, e *models.AccessEvent) (*models.AccessEvent, bool, error) {
	if existing, ok := f.events[e.EventID]; ok {
		return existing, false, nil
	}
	f.nextID++
	stored := *e
	stored.ID = f.nextID
	stored.CreatedAt = time.Now().UTC()
	f.events[e.EventID] = &stored
	return &stored, true, nil
}

// fakeBroadcaster records broadcasts per tenant.
type fakeBroadcaster struct {
	messages map[int64][]*hub.Message
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{messages: make(map[int64][]*hub.Message)}
}

func (f *fakeBroadcaster) BroadcastToClients(tenantID int64, msg *hub.Message) {
	f.messages[tenantID] = append(f.messages[tenantID], msg)
}

func TestIngestBroadcastsOnFirstInsert(t *testing.T) {
	store := newFakeStore()
	bc := newFakeBroadcaster()
	p := NewPipeline(store, bc)

	draft := &models.AccessEvent{
		EventID:   "k1",
		TenantID:  3,
		EventType: "access",
		TS:        time.Now().UTC(),
	}

	stored, inserted, err := p.Ingest(context.Background(), draft, SourceWebhook)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !inserted {
		t.Error("first ingest reported duplicate")
	}
	if stored.ID == 0 {
		t.Error("stored event has no record id")
	}

	msgs := bc.messages[3]
	if len(msgs) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(msgs))
	}
	if msgs[0].Type != hub.MsgEventsAccess {
		t.Errorf("broadcast type = %q, want %q", msgs[0].Type, hub.MsgEventsAccess)
	}
}

func TestIngestReplayIsSilent(t *testing.T) {
	store := newFakeStore()
	bc := newFakeBroadcaster()
	p := NewPipeline(store, bc)

	draft := &models.AccessEvent{EventID: "k1", TenantID: 3, EventType: "access", TS: time.Now().UTC()}

	first, _, err := p.Ingest(context.Background(), draft, SourceHTTP)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	replay, inserted, err := p.Ingest(context.Background(), draft, SourceHTTP)
	if err != nil {
		t.Fatalf("replay ingest: %v", err)
	}
	if inserted {
		t.Error("replay reported as new insert")
	}
	if replay.ID != first.ID {
		t.Errorf("replay returned record %d, want %d", replay.ID, first.ID)
	}
	if len(bc.messages[3]) != 1 {
		t.Errorf("broadcasts = %d after replay, want 1", len(bc.messages[3]))
	}
}
