// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/accessmux/accessmux/internal/database"
	"github.com/accessmux/accessmux/internal/hub"
	"github.com/accessmux/accessmux/internal/ingest"
	"github.com/accessmux/accessmux/internal/logging"
	"github.com/accessmux/accessmux/internal/models"
)

const (
	// closeUnauthorized is sent to subscribers whose api_key does not
	// match the requested tenant.
	closeUnauthorized = 4401

	wsReadLimit  = 1 << 20
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Subscribers are browser dashboards on other origins; gateways are
	// not browsers at all. Tenant isolation comes from the credentials.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ClientWS upgrades a subscriber connection for one tenant. The api_key
// query parameter must resolve to the tenant named in the path; a mismatch
// is reported in-band with close code 4401 so dashboards can distinguish
// bad credentials from transport failures.
func (h *Handler) ClientWS(w http.ResponseWriter, r *http.Request) {
	tenantID, err := getIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "tenant id must be numeric", nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug().Err(err).Msg("Subscriber upgrade failed")
		return
	}

	tenant, err := h.db.GetTenantByAPIKey(r.Context(), r.URL.Query().Get("api_key"))
	if err != nil || tenant.ID != tenantID {
		msg := websocket.FormatCloseMessage(closeUnauthorized, "invalid api key")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	wsConn := hub.NewWSConn(conn)
	h.hub.AddClient(tenant.ID, wsConn)
	defer func() {
		h.hub.RemoveClient(tenant.ID, wsConn)
		_ = wsConn.Close()
	}()

	stopPing := startKeepalive(conn, wsConn)
	defer stopPing()

	// Server-push only: reads detect liveness and close.
	conn.SetReadLimit(wsReadLimit)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// startKeepalive arms the pong-extended read deadline and starts a ping
// ticker. The returned func stops the ticker.
func startKeepalive(conn *websocket.Conn, wsConn *hub.WSConn) func() {
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	ticker := time.NewTicker(wsPingPeriod)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := wsConn.Ping(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}

// gatewayMessage is the inbound envelope from an edge gateway.
type gatewayMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// gatewayAck is the data half of a provisioning report.
type gatewayAck struct {
	JobID  int64   `json:"job_id"`
	Status string  `json:"status"`
	Error  *string `json:"error"`
}

// GatewayWS upgrades an edge gateway's duplex channel. On connect the
// tenant's pending job backlog is drained; afterwards the read loop feeds
// acknowledgements and relayed events until the socket drops.
func (h *Handler) GatewayWS(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.db.GetTenantByEdgeSecret(r.Context(), chi.URLParam(r, "edgeSecret"))
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown edge secret", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "gateway lookup failed", err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug().Err(err).Int64("tenant_id", tenant.ID).Msg("Gateway upgrade failed")
		return
	}

	wsConn := hub.NewWSConn(conn)
	h.hub.AddGateway(tenant.ID, wsConn)
	defer func() {
		h.hub.RemoveGateway(tenant.ID, wsConn)
		_ = wsConn.Close()
	}()

	stopPing := startKeepalive(conn, wsConn)
	defer stopPing()

	// Drain any backlog accumulated while the gateway was offline.
	h.queue.DispatchIfConnected(r.Context(), tenant.ID)

	conn.SetReadLimit(wsReadLimit)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleGatewayMessage(r.Context(), tenant, data)
	}
}

// handleGatewayMessage dispatches one inbound gateway frame. Unknown types
// are ignored for forward compatibility; malformed frames are logged and
// dropped rather than killing the channel.
func (h *Handler) handleGatewayMessage(ctx context.Context, tenant *models.Tenant, data []byte) {
	var msg gatewayMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logging.Debug().Err(err).Int64("tenant_id", tenant.ID).Msg("Unparseable gateway frame dropped")
		return
	}

	switch msg.Type {
	case hub.MsgUserProvisioned, hub.MsgUserUpdated, hub.MsgUserDeleted:
		var ack gatewayAck
		if err := json.Unmarshal(msg.Data, &ack); err != nil {
			logging.Debug().Err(err).Int64("tenant_id", tenant.ID).Msg("Unparseable acknowledgement dropped")
			return
		}
		if err := h.queue.Acknowledge(ctx, tenant.ID, ack.JobID, ack.Status, ack.Error); err != nil {
			logging.Error().Err(err).Int64("job_id", ack.JobID).Msg("Failed to apply acknowledgement")
		}

	case hub.MsgEvent:
		var in ingest.DirectEvent
		if err := json.Unmarshal(msg.Data, &in); err != nil {
			logging.Debug().Err(err).Int64("tenant_id", tenant.ID).Msg("Unparseable relayed event dropped")
			return
		}
		draft, err := h.normalizer.NormalizeDirect(ctx, tenant, &in)
		if err != nil {
			logging.Warn().Err(err).Int64("tenant_id", tenant.ID).Msg("Relayed event rejected")
			return
		}
		if _, _, err := h.pipeline.Ingest(ctx, draft, ingest.SourceGateway); err != nil {
			logging.Error().Err(err).Int64("tenant_id", tenant.ID).Msg("Failed to ingest relayed event")
		}

	default:
		// Newer gateways may speak newer message types.
	}
}
