/**
 * @description
 * This file contains the core business logic for the balance-service. The
 * `Service` struct bridges the synchronous /balance API to the asynchronous,
 * schema-inconsistent workflow engine: it resolves the caller identity,
 * consults the balance cache, triggers the engine, classifies the trigger
 * response, and interprets polled workflow runs.
 *
 * Key features:
 * - Cache-first resolution keyed by the caller's original email.
 * - Single-flight de-duplication so rapid repeated requests for one identity
 *   share a single engine trigger instead of starting parallel workflows.
 * - A poller that is stateless between calls; every poll re-fetches the run.
 * - Best-effort audit records of terminal resolutions.
 *
 * @dependencies
 * - context, errors, log, strings, time: Standard Go libraries.
 * - golang.org/x/sync/singleflight: Trigger de-duplication.
 * - internal/cache, internal/domain, internal/store: Cache, models, audit store.
 * - pkg/workflowclient: Engine transport types.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/fondeo/balance-service/internal/cache"
	"github.com/fondeo/balance-service/internal/domain"
	"github.com/fondeo/balance-service/internal/store"
	"github.com/fondeo/balance-service/pkg/workflowclient"
)

// noDataMarker is the substring the engine puts in its error-shaped body when
// the workflow found no data for the account. That answer is a legitimate
// zero-balance state, not a failure.
const noDataMarker = "parsing the JSON body"

const (
	SourceDefault  = "default"
	SourceWorkflow = "workflow"
	SourceCache    = "cache"
)

var (
	// ErrWorkflowNotConfigured is returned when the engine client has no
	// credentials. Surfaced as a server fault, never retried.
	ErrWorkflowNotConfigured = errors.New("workflow engine is not configured")
	// ErrAuditDisabled is returned by history lookups when no audit store is
	// configured.
	ErrAuditDisabled = errors.New("resolution audit store is not configured")
)

// WorkflowEngine is the slice of the workflow engine client the service needs.
type WorkflowEngine interface {
	TriggerBalanceWorkflow(ctx context.Context, email string) (*workflowclient.Response, error)
	GetWorkflowRun(ctx context.Context, runID string) (*workflowclient.Response, error)
	ListTransactions(ctx context.Context, email string) (*workflowclient.Response, error)
}

// CompanyDirectory resolves the optional company-level override email.
type CompanyDirectory interface {
	GetOverrideEmail(ctx context.Context, userID string) (string, error)
}

// Service provides the core balance resolution logic.
type Service struct {
	engine    WorkflowEngine
	directory CompanyDirectory
	cache     cache.BalanceCache
	repo      store.Repository

	triggerGroup singleflight.Group
}

// NewService creates a new balance service instance. The directory and
// repository are optional; a nil directory disables override lookups and a nil
// repository disables audit records.
func NewService(engine WorkflowEngine, directory CompanyDirectory, balanceCache cache.BalanceCache, repo store.Repository) *Service {
	return &Service{
		engine:    engine,
		directory: directory,
		cache:     balanceCache,
		repo:      repo,
	}
}

// ResolveIdentity normalizes the caller's verified email and substitutes the
// company-level override address when the directory has one. A failed or empty
// lookup simply defaults the resolution email to the caller's own: identity
// resolution has no failure modes of its own.
func (s *Service) ResolveIdentity(ctx context.Context, userID, verifiedEmail string) domain.Identity {
	original := strings.ToLower(strings.TrimSpace(verifiedEmail))
	identity := domain.Identity{OriginalEmail: original, ResolutionEmail: original}

	if s.directory == nil || userID == "" {
		return identity
	}

	override, err := s.directory.GetOverrideEmail(ctx, userID)
	if err != nil {
		log.Printf("level=warn component=balance msg=\"override lookup failed; using caller email\" user_id=%s err=%v", userID, err)
		return identity
	}
	if override = strings.ToLower(strings.TrimSpace(override)); override != "" {
		identity.ResolutionEmail = override
	}
	return identity
}

// ResolveBalance resolves the current balance for the caller. A fresh cache
// entry short-circuits; otherwise the engine is triggered (at most once per
// identity at a time) and the response classified into one of the trigger
// outcomes.
func (s *Service) ResolveBalance(ctx context.Context, userID, verifiedEmail string) (*domain.BalanceResult, error) {
	if s.engine == nil {
		return nil, ErrWorkflowNotConfigured
	}

	identity := s.ResolveIdentity(ctx, userID, verifiedEmail)

	if entry, ok := s.cache.Get(ctx, identity.OriginalEmail); ok && s.cache.IsFresh(entry) {
		age := int(entry.Age(time.Now()) / time.Second)
		log.Printf("level=info component=balance msg=\"cache hit\" email=%s age_seconds=%d", identity.OriginalEmail, age)
		return &domain.BalanceResult{
			Email:           identity.OriginalEmail,
			Balance:         entry.Balance,
			Source:          SourceCache,
			Message:         "balance served from cache",
			CacheAgeSeconds: &age,
		}, nil
	}

	// Concurrent requests for the same identity share one trigger; the engine
	// is fire-and-forget, so a duplicate trigger would start a second parallel
	// workflow with no way to cancel it.
	result, err, shared := s.triggerGroup.Do(identity.OriginalEmail, func() (any, error) {
		return s.triggerAndClassify(ctx, identity)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Printf("level=info component=balance msg=\"trigger shared with in-flight request\" email=%s", identity.OriginalEmail)
	}
	return result.(*domain.BalanceResult), nil
}

// triggerAndClassify performs one engine trigger and classifies the response.
func (s *Service) triggerAndClassify(ctx context.Context, identity domain.Identity) (*domain.BalanceResult, error) {
	resp, err := s.engine.TriggerBalanceWorkflow(ctx, identity.ResolutionEmail)
	if err != nil {
		var upstream *workflowclient.UpstreamError
		if errors.As(err, &upstream) && strings.Contains(upstream.Body, noDataMarker) {
			return s.businessZero(ctx, identity), nil
		}
		if errors.Is(err, workflowclient.ErrNotConfigured) {
			return nil, ErrWorkflowNotConfigured
		}
		log.Printf("level=warn component=balance msg=\"trigger failed\" email=%s err=%v", identity.OriginalEmail, err)
		return nil, err
	}

	outcome := classifyTrigger(resp)
	switch outcome.Kind {
	case domain.TriggerBusinessZero:
		return s.businessZero(ctx, identity), nil

	case domain.TriggerDirectValue:
		s.cache.Set(ctx, identity.OriginalEmail, outcome.Balance)
		s.recordResolution(ctx, identity.OriginalEmail, SourceWorkflow, outcome.Balance, nil, string(domain.JobStatusCompleted))
		log.Printf("level=info component=balance msg=\"balance resolved inline\" email=%s", identity.OriginalEmail)
		return &domain.BalanceResult{
			Email:   identity.OriginalEmail,
			Balance: outcome.Balance,
			Source:  SourceWorkflow,
			Message: "balance resolved",
		}, nil

	case domain.TriggerAsyncJob:
		// Async handles are returned to the caller, never cached: no value
		// has been resolved yet.
		log.Printf("level=info component=balance msg=\"workflow dispatched\" email=%s workflow_id=%s status=%s", identity.OriginalEmail, outcome.Job.ID, outcome.Job.Status)
		return &domain.BalanceResult{
			Email:      identity.OriginalEmail,
			Balance:    domain.ZeroBalance,
			Source:     SourceWorkflow,
			Message:    "balance workflow started; poll for completion",
			WorkflowID: outcome.Job.ID,
			Status:     outcome.Job.Status,
		}, nil
	}

	// Extraction miss: a successful response with no recognizable monetary
	// shape. Reported as zero with an explicit message, never cached.
	log.Printf("level=warn component=balance msg=\"no balance data in trigger response\" email=%s", identity.OriginalEmail)
	return &domain.BalanceResult{
		Email:   identity.OriginalEmail,
		Balance: domain.ZeroBalance,
		Source:  SourceDefault,
		Message: "no balance data available",
	}, nil
}

func (s *Service) businessZero(ctx context.Context, identity domain.Identity) *domain.BalanceResult {
	s.cache.Set(ctx, identity.OriginalEmail, domain.ZeroBalance)
	s.recordResolution(ctx, identity.OriginalEmail, SourceDefault, domain.ZeroBalance, nil, "no_data")
	log.Printf("level=info component=balance msg=\"engine reported no data for account\" email=%s", identity.OriginalEmail)
	return &domain.BalanceResult{
		Email:   identity.OriginalEmail,
		Balance: domain.ZeroBalance,
		Source:  SourceDefault,
		Message: "no balance data for account",
	}
}

// classifyTrigger maps a 2xx engine response onto a trigger outcome.
func classifyTrigger(resp *workflowclient.Response) domain.TriggerOutcome {
	payload, _ := resp.Payload.(map[string]any)

	if message, ok := payload["message"].(string); ok && strings.Contains(message, noDataMarker) {
		return domain.TriggerOutcome{Kind: domain.TriggerBusinessZero}
	}

	if run, ok := payload["workflow_run"].(map[string]any); ok {
		if id, ok := run["id"].(string); ok && id != "" {
			rawStatus, _ := run["status"].(string)
			job := &domain.WorkflowJob{ID: id, RawStatus: rawStatus}
			job.Status = domain.ClassifyJobStatus(rawStatus)
			// A run handle with an inline result is still a direct value.
			if _, found := ExtractBalance(resp.Payload); !found {
				return domain.TriggerOutcome{Kind: domain.TriggerAsyncJob, Job: job}
			}
		}
	}

	if balance, ok := ExtractBalance(resp.Payload); ok {
		return domain.TriggerOutcome{Kind: domain.TriggerDirectValue, Balance: balance}
	}
	return domain.TriggerOutcome{Kind: domain.TriggerExtractionMiss}
}

// PollWorkflow re-fetches a workflow run by id and interprets its status. The
// poller holds no state between calls and never retries; pacing is entirely
// the caller's responsibility. A completed run that yields a balance is
// written back to the cache keyed by the caller's original email, so pollers
// benefit from the cache the same way trigger-path resolutions do.
func (s *Service) PollWorkflow(ctx context.Context, verifiedEmail, workflowID string) (*domain.PollResult, error) {
	if s.engine == nil {
		return nil, ErrWorkflowNotConfigured
	}

	resp, err := s.engine.GetWorkflowRun(ctx, workflowID)
	if err != nil {
		if errors.Is(err, workflowclient.ErrNotConfigured) {
			return nil, ErrWorkflowNotConfigured
		}
		log.Printf("level=warn component=balance msg=\"workflow poll failed\" workflow_id=%s err=%v", workflowID, err)
		return nil, err
	}

	run := workflowRunObject(resp.Payload)
	rawStatus, _ := run["status"].(string)
	status := domain.ClassifyJobStatus(rawStatus)

	result := &domain.PollResult{
		Status:     status,
		Balance:    domain.ZeroBalance,
		RawResult:  run["result"],
		RawOutputs: run["outputs"],
	}

	switch status {
	case domain.JobStatusPending, domain.JobStatusInProgress:
		return result, nil

	case domain.JobStatusCompleted:
		if balance, ok := ExtractBalance(run); ok {
			result.Balance = balance
			email := strings.ToLower(strings.TrimSpace(verifiedEmail))
			if email != "" {
				s.cache.Set(ctx, email, balance)
			}
			s.recordResolution(ctx, email, SourceWorkflow, balance, &workflowID, string(status))
			return result, nil
		}
		result.Error = strPtr("no balance data available")
		return result, nil

	case domain.JobStatusFailed:
		result.Error = strPtr("execution failed")
		s.recordResolution(ctx, strings.ToLower(strings.TrimSpace(verifiedEmail)), SourceDefault, domain.ZeroBalance, &workflowID, string(status))
		return result, nil
	}

	// Unrecognized status strings are terminal: the anomaly is reported as a
	// completed run with an explicit error instead of keeping callers polling.
	log.Printf("level=warn component=balance msg=\"workflow run in unrecognized status\" workflow_id=%s status=%q", workflowID, rawStatus)
	result.Status = domain.JobStatusCompleted
	result.Error = strPtr("completed but no balance data found")
	return result, nil
}

// ListTransactions fetches the caller's raw movement records from the ledger
// and returns them normalized.
func (s *Service) ListTransactions(ctx context.Context, userID, verifiedEmail string) ([]domain.NormalizedTransaction, error) {
	if s.engine == nil {
		return nil, ErrWorkflowNotConfigured
	}

	identity := s.ResolveIdentity(ctx, userID, verifiedEmail)
	resp, err := s.engine.ListTransactions(ctx, identity.ResolutionEmail)
	if err != nil {
		if errors.Is(err, workflowclient.ErrNotConfigured) {
			return nil, ErrWorkflowNotConfigured
		}
		return nil, err
	}

	raw, err := decodeRawTransactions(resp.Body)
	if err != nil {
		log.Printf("level=error component=balance msg=\"transaction list unparseable\" email=%s err=%v", identity.OriginalEmail, err)
		return nil, workflowclient.ErrInvalidResponse
	}
	return NormalizeTransactions(raw), nil
}

// ResolutionHistory returns recent terminal resolutions for the caller from
// the audit store.
func (s *Service) ResolutionHistory(ctx context.Context, verifiedEmail string, limit int) ([]domain.BalanceResolution, error) {
	if s.repo == nil {
		return nil, ErrAuditDisabled
	}
	email := strings.ToLower(strings.TrimSpace(verifiedEmail))
	return s.repo.FindRecentResolutions(ctx, email, limit)
}

// InvalidateBalance drops the cached balance for an email. Wired to the
// ledger-event consumer so write-side flows can force a re-resolution.
func (s *Service) InvalidateBalance(ctx context.Context, email string) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return
	}
	s.cache.Invalidate(ctx, normalized)
	log.Printf("level=info component=balance msg=\"cache invalidated\" email=%s", normalized)
}

// recordResolution writes a best-effort audit row; failures are logged, never
// surfaced to the caller.
func (s *Service) recordResolution(ctx context.Context, email, source, balance string, workflowID *string, status string) {
	if s.repo == nil || email == "" {
		return
	}
	res := &domain.BalanceResolution{
		ID:         uuid.New(),
		Email:      email,
		Source:     source,
		Balance:    balance,
		WorkflowID: workflowID,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.RecordResolution(ctx, res); err != nil {
		log.Printf("level=warn component=balance msg=\"audit record failed\" email=%s err=%v", email, err)
	}
}

// workflowRunObject returns the workflow_run object from a poll response, or
// the payload itself when the engine answered with the run unwrapped.
func workflowRunObject(payload any) map[string]any {
	obj, ok := payload.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	if run, ok := obj["workflow_run"].(map[string]any); ok {
		return run
	}
	return obj
}

// decodeRawTransactions accepts either a bare array of records or an envelope
// with a data field.
func decodeRawTransactions(body []byte) ([]domain.RawTransaction, error) {
	var bare []domain.RawTransaction
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	var envelope struct {
		Data []domain.RawTransaction `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

func strPtr(s string) *string { return &s }
