/**
 * @description
 * This file defines the core domain models for balance resolution: the caller
 * identity used for cache keying and downstream correlation, the classified
 * outcome of a workflow trigger, and the lifecycle of an asynchronous workflow
 * run as observed through polling.
 *
 * @dependencies
 * - time: Standard Go library.
 * - github.com/google/uuid: For resolution audit record identifiers.
 */

package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ZeroBalance is the decimal string reported whenever no balance has been
// resolved. Balances are always carried as decimal strings, never as binary
// floating point, to avoid precision loss.
const ZeroBalance = "0.00"

// Identity carries the two email addresses involved in a balance resolution.
// OriginalEmail is the authenticated caller's own address and is the only key
// ever used for the balance cache. ResolutionEmail is the address actually sent
// to the workflow engine; it defaults to OriginalEmail but may be permanently
// replaced by a company-level override. The two diverging is expected and part
// of the contract.
type Identity struct {
	OriginalEmail   string
	ResolutionEmail string
}

// JobStatus is the classified status of a workflow run.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusUnknown    JobStatus = "UNKNOWN"
)

// Terminal reports whether a job in this status will never change again.
// Unknown statuses are treated as terminal so that an unexpected engine
// response can never keep a caller polling forever.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusUnknown:
		return true
	}
	return false
}

// ClassifyJobStatus maps the status strings emitted by the workflow engine onto
// the closed JobStatus set. The mapping is total: any unrecognized string
// becomes JobStatusUnknown rather than silently passing for success.
func ClassifyJobStatus(raw string) JobStatus {
	switch normalizeStatusToken(raw) {
	case "pending", "queued", "created":
		return JobStatusPending
	case "in_progress", "running", "started", "processing":
		return JobStatusInProgress
	case "completed", "complete", "success", "succeeded", "finished":
		return JobStatusCompleted
	case "failed", "failure", "error", "errored":
		return JobStatusFailed
	}
	return JobStatusUnknown
}

// WorkflowJob is an asynchronous workflow run handle returned by the engine.
// It is never persisted by this service; every poll re-fetches it by ID.
type WorkflowJob struct {
	ID        string `json:"id"`
	RawStatus string `json:"status"`
	Status    JobStatus
}

// TriggerOutcomeKind enumerates the ways a trigger response can be classified.
type TriggerOutcomeKind int

const (
	// TriggerBusinessZero means the engine answered with its recognized
	// "no data" error shape. This is a legitimate zero-balance state.
	TriggerBusinessZero TriggerOutcomeKind = iota
	// TriggerDirectValue means a balance was resolved inline from the
	// trigger response without any polling.
	TriggerDirectValue
	// TriggerAsyncJob means the engine accepted the request and returned a
	// job handle that must be polled to completion.
	TriggerAsyncJob
	// TriggerExtractionMiss means the response was successful but contained
	// no recognizable monetary shape anywhere.
	TriggerExtractionMiss
)

// TriggerOutcome is the classified result of one workflow trigger call.
type TriggerOutcome struct {
	Kind    TriggerOutcomeKind
	Balance string
	Job     *WorkflowJob
}

// PollResult is the caller-facing interpretation of one poll of a workflow run.
// Error is nil for non-terminal statuses and for a completed run that yielded a
// balance; every other terminal state carries a populated error message.
type PollResult struct {
	Status     JobStatus
	Balance    string
	Error      *string
	RawResult  any
	RawOutputs any
}

// BalanceResult is what a /balance request resolves to, whichever path
// (cache, direct, business-zero, or async handoff) produced it.
type BalanceResult struct {
	Email           string
	Balance         string
	Source          string // "default", "workflow" or "cache"
	Message         string
	WorkflowID      string
	Status          JobStatus
	CacheAgeSeconds *int
}

// BalanceResolution is one audit record of a terminal balance resolution.
// Audit rows are additive observability; they are never read back to answer a
// balance request.
type BalanceResolution struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Source     string    `json:"source"`
	Balance    string    `json:"balance"`
	WorkflowID *string   `json:"workflow_id,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

func normalizeStatusToken(raw string) string {
	token := strings.ToLower(strings.TrimSpace(raw))
	token = strings.ReplaceAll(token, "-", "_")
	return strings.ReplaceAll(token, " ", "_")
}
