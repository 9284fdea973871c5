// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

// Package hub implements the tenant-scoped realtime registry: subscriber
// clients receive event and member-change broadcasts, edge gateways receive
// provisioning commands over their duplex channel.
package hub

import (
	"sync"

	"github.com/accessmux/accessmux/internal/logging"
	"github.com/accessmux/accessmux/internal/metrics"
)

// Message is the wire envelope for every realtime push.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client-facing message types.
const (
	MsgEventsAccess = "events.access"
	MsgUsersCreated = "users.created"
	MsgUsersUpdated = "users.updated"
	MsgUsersDeleted = "users.deleted"
	MsgUsersChanged = "users.changed"
)

// Gateway-facing message types.
const (
	MsgUserProvision = "user.provision"
	MsgUserUpdate    = "user.update"
	MsgUserDelete    = "user.delete"
)

// Gateway-inbound message types.
const (
	MsgUserProvisioned = "user.provisioned"
	MsgUserUpdated     = "user.updated"
	MsgUserDeleted     = "user.deleted"
	MsgEvent           = "event"
)

// Conn is the write surface of one realtime connection. Implementations
// must be safe for concurrent WriteMessage calls.
type Conn interface {
	WriteMessage(msg *Message) error
	Close() error
}

// Hub tracks connected subscriber clients and edge gateways per tenant.
//
// A single mutex covers both registries; membership changes and fan-out
// snapshots are short critical sections, actual socket writes happen
// outside the lock. Send failures are swallowed: the failing connection's
// own read loop observes the broken socket and removes it. The hub never
// prunes on write failure.
type Hub struct {
	mu       sync.Mutex
	clients  map[int64]map[Conn]struct{}
	gateways map[int64]map[Conn]struct{}
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{
		clients:  make(map[int64]map[Conn]struct{}),
		gateways: make(map[int64]map[Conn]struct{}),
	}
}

// AddClient registers a subscriber connection for a tenant.
func (h *Hub) AddClient(tenantID int64, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[tenantID] == nil {
		h.clients[tenantID] = make(map[Conn]struct{})
	}
	h.clients[tenantID][c] = struct{}{}
	metrics.ClientConnections.Inc()
	logging.Debug().Int64("tenant_id", tenantID).Msg("Subscriber client connected")
}

// RemoveClient unregisters a subscriber connection. Removing a connection
// that is not registered is a no-op.
func (h *Hub) RemoveClient(tenantID int64, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[tenantID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, tenantID)
	}
	metrics.ClientConnections.Dec()
	logging.Debug().Int64("tenant_id", tenantID).Msg("Subscriber client disconnected")
}

// AddGateway registers an edge gateway connection for a tenant.
func (h *Hub) AddGateway(tenantID int64, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.gateways[tenantID] == nil {
		h.gateways[tenantID] = make(map[Conn]struct{})
	}
	h.gateways[tenantID][c] = struct{}{}
	metrics.GatewayConnections.Inc()
	logging.Info().Int64("tenant_id", tenantID).Msg("Edge gateway connected")
}

// RemoveGateway unregisters an edge gateway connection.
func (h *Hub) RemoveGateway(tenantID int64, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.gateways[tenantID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.gateways, tenantID)
	}
	metrics.GatewayConnections.Dec()
	logging.Info().Int64("tenant_id", tenantID).Msg("Edge gateway disconnected")
}

// IsGatewayConnected reports whether the tenant has at least one live
// gateway connection.
func (h *Hub) IsGatewayConnected(tenantID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.gateways[tenantID]) > 0
}

// BroadcastToClients fans a message out to every subscriber of a tenant.
// Best effort: one dead connection does not block delivery to the rest.
func (h *Hub) BroadcastToClients(tenantID int64, msg *Message) {
	h.send(h.snapshot(h.clients, tenantID), msg, "client")
}

// SendToGateways pushes a message to every gateway connection of a tenant.
func (h *Hub) SendToGateways(tenantID int64, msg *Message) {
	h.send(h.snapshot(h.gateways, tenantID), msg, "gateway")
}

// snapshot copies a tenant's connection set under the lock so writes can
// happen outside it.
func (h *Hub) snapshot(registry map[int64]map[Conn]struct{}, tenantID int64) []Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := registry[tenantID]
	if len(set) == 0 {
		return nil
	}
	conns := make([]Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

func (h *Hub) send(conns []Conn, msg *Message, channel string) {
	for _, c := range conns {
		if err := c.WriteMessage(msg); err != nil {
			metrics.BroadcastErrors.WithLabelValues(channel).Inc()
			logging.Debug().Err(err).Str("channel", channel).Str("type", msg.Type).
				Msg("Realtime write failed, leaving removal to the read loop")
			continue
		}
		metrics.BroadcastsSent.WithLabelValues(channel).Inc()
	}
}

// ClientCount returns the number of connected subscriber clients across all
// tenants, used by the health endpoint.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// GatewayCount returns the number of connected gateways across all tenants.
func (h *Hub) GatewayCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.gateways {
		n += len(set)
	}
	return n
}
