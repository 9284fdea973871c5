// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

// Package jobqueue delivers member provisioning commands to edge gateways
// and drives the pending → sent → {acked|failed} job state machine from
// gateway acknowledgements.
package jobqueue

import (
	"context"
	"errors"

	"github.com/accessmux/accessmux/internal/database"
	"github.com/accessmux/accessmux/internal/hub"
	"github.com/accessmux/accessmux/internal/logging"
	"github.com/accessmux/accessmux/internal/metrics"
	"github.com/accessmux/accessmux/internal/models"
)

// Store is the persistence surface the queue needs.
type Store interface {
	CreateJob(ctx context.Context, tenantID, memberID int64, jobType string, payload models.MemberPayload) (*models.ProvisionJob, error)
	GetJob(ctx context.Context, id int64) (*models.ProvisionJob, error)
	ListPendingJobs(ctx context.Context, tenantID int64) ([]models.ProvisionJob, error)
	MarkJobSent(ctx context.Context, id int64) error
	FinishJob(ctx context.Context, id int64, status string, jobError *string) error
	SetMemberStatus(ctx context.Context, tenantID, id int64, status string, lastError *string) error
}

// GatewayHub is the realtime surface the queue needs: gateway presence and
// pushes, plus subscriber notifications after acknowledgements.
type GatewayHub interface {
	IsGatewayConnected(tenantID int64) bool
	SendToGateways(tenantID int64, msg *hub.Message)
	BroadcastToClients(tenantID int64, msg *hub.Message)
}

// Queue coordinates provisioning delivery for all tenants.
type Queue struct {
	store Store
	hub   GatewayHub
}

// New creates a Queue.
func New(store Store, gatewayHub GatewayHub) *Queue {
	return &Queue{store: store, hub: gatewayHub}
}

// jobCommand is the data half of an outbound gateway command.
type jobCommand struct {
	JobID int64 `json:"job_id"`
	models.MemberPayload
}

// commandType maps a job type to its gateway message type.
func commandType(jobType string) string {
	switch jobType {
	case models.JobTypeUpdate:
		return hub.MsgUserUpdate
	case models.JobTypeDelete:
		return hub.MsgUserDelete
	default:
		return hub.MsgUserProvision
	}
}

// Enqueue creates a pending job and immediately attempts delivery if the
// tenant's gateway is online.
func (q *Queue) Enqueue(ctx context.Context, tenantID, memberID int64, jobType string, payload models.MemberPayload) (*models.ProvisionJob, error) {
	job, err := q.store.CreateJob(ctx, tenantID, memberID, jobType, payload)
	if err != nil {
		return nil, err
	}
	metrics.JobTransitions.WithLabelValues(models.JobStatusPending).Inc()

	logging.Info().
		Int64("job_id", job.ID).
		Int64("tenant_id", tenantID).
		Int64("member_id", memberID).
		Str("job_type", jobType).
		Msg("Provision job enqueued")

	q.DispatchIfConnected(ctx, tenantID)
	return job, nil
}

// DispatchIfConnected drains the tenant's pending backlog to its gateway,
// oldest first. A no-op when no gateway is connected: jobs stay pending
// until one shows up, and the connect path calls this again. Jobs are
// marked sent only after a successful socket write; a write failure leaves
// the job pending for the next dispatch.
func (q *Queue) DispatchIfConnected(ctx context.Context, tenantID int64) {
	if !q.hub.IsGatewayConnected(tenantID) {
		return
	}

	jobs, err := q.store.ListPendingJobs(ctx, tenantID)
	if err != nil {
		logging.Error().Err(err).Int64("tenant_id", tenantID).Msg("Failed to list pending jobs")
		return
	}

	for i := range jobs {
		job := &jobs[i]
		q.hub.SendToGateways(tenantID, &hub.Message{
			Type: commandType(job.JobType),
			Data: jobCommand{JobID: job.ID, MemberPayload: job.Payload},
		})

		if err := q.store.MarkJobSent(ctx, job.ID); err != nil {
			if !errors.Is(err, database.ErrNotFound) {
				logging.Error().Err(err).Int64("job_id", job.ID).Msg("Failed to mark job sent")
			}
			continue
		}
		metrics.JobTransitions.WithLabelValues(models.JobStatusSent).Inc()
		logging.Debug().Int64("job_id", job.ID).Int64("tenant_id", tenantID).Msg("Provision job dispatched")
	}
}

// Acknowledge applies a gateway's report for one job. gatewayTenantID is
// the tenant the reporting gateway authenticated as; a job belonging to a
// different tenant is ignored, as are unknown job ids and jobs already in a
// terminal state. Gateways replay stale ids after reconnects, so none of
// these cases is an error.
func (q *Queue) Acknowledge(ctx context.Context, gatewayTenantID, jobID int64, outcome string, ackError *string) error {
	job, err := q.store.GetJob(ctx, jobID)
	if errors.Is(err, database.ErrNotFound) {
		logging.Debug().Int64("job_id", jobID).Msg("Acknowledgement for unknown job ignored")
		return nil
	}
	if err != nil {
		return err
	}

	if job.TenantID != gatewayTenantID {
		logging.Warn().
			Int64("job_id", jobID).
			Int64("job_tenant_id", job.TenantID).
			Int64("gateway_tenant_id", gatewayTenantID).
			Msg("Cross-tenant acknowledgement rejected")
		return nil
	}
	if models.IsTerminalJobStatus(job.Status) {
		logging.Debug().Int64("job_id", jobID).Str("status", job.Status).Msg("Duplicate acknowledgement ignored")
		return nil
	}

	status := models.JobStatusAcked
	var jobError *string
	if outcome != "ok" {
		status = models.JobStatusFailed
		jobError = ackError
		if jobError == nil {
			jobError = &outcome
		}
	}

	if err := q.store.FinishJob(ctx, jobID, status, jobError); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Lost a race with another acknowledgement.
			return nil
		}
		return err
	}
	metrics.JobTransitions.WithLabelValues(status).Inc()

	memberStatus := models.MemberStatusFailed
	if status == models.JobStatusAcked {
		if job.JobType == models.JobTypeDelete {
			memberStatus = models.MemberStatusDeleted
		} else {
			memberStatus = models.MemberStatusActive
		}
		jobError = nil
	}
	if err := q.store.SetMemberStatus(ctx, job.TenantID, job.MemberID, memberStatus, jobError); err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			return err
		}
	}

	logging.Info().
		Int64("job_id", jobID).
		Int64("tenant_id", job.TenantID).
		Int64("member_id", job.MemberID).
		Str("status", status).
		Msg("Provision job acknowledged")

	q.hub.BroadcastToClients(job.TenantID, &hub.Message{
		Type: hub.MsgUsersChanged,
		Data: map[string]interface{}{
			"member_id": job.MemberID,
			"status":    memberStatus,
		},
	})
	return nil
}
