package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fondeo/balance-service/internal/cache"
	"github.com/fondeo/balance-service/internal/domain"
	"github.com/fondeo/balance-service/pkg/workflowclient"
)

type engineStub struct {
	triggerResp  *workflowclient.Response
	triggerErr   error
	runResp      *workflowclient.Response
	runErr       error
	txResp       *workflowclient.Response
	txErr        error
	triggerCalls int
	triggeredFor []string
}

func (e *engineStub) TriggerBalanceWorkflow(ctx context.Context, email string) (*workflowclient.Response, error) {
	e.triggerCalls++
	e.triggeredFor = append(e.triggeredFor, email)
	return e.triggerResp, e.triggerErr
}

func (e *engineStub) GetWorkflowRun(ctx context.Context, runID string) (*workflowclient.Response, error) {
	return e.runResp, e.runErr
}

func (e *engineStub) ListTransactions(ctx context.Context, email string) (*workflowclient.Response, error) {
	return e.txResp, e.txErr
}

type directoryStub struct {
	override string
	err      error
}

func (d *directoryStub) GetOverrideEmail(ctx context.Context, userID string) (string, error) {
	return d.override, d.err
}

func engineResponse(t *testing.T, raw string) *workflowclient.Response {
	t.Helper()
	payload, err := workflowclient.DecodeJSON([]byte(raw))
	if err != nil {
		t.Fatalf("fixture unparseable: %v", err)
	}
	return &workflowclient.Response{Payload: payload, Body: []byte(raw)}
}

func newTestService(engine WorkflowEngine, directory CompanyDirectory) (*Service, *cache.MemoryCache) {
	mem := cache.NewMemoryCache(5 * time.Minute)
	return NewService(engine, directory, mem, nil), mem
}

func TestResolveIdentity_NormalizesAndDefaults(t *testing.T) {
	svc, _ := newTestService(&engineStub{}, nil)

	identity := svc.ResolveIdentity(context.Background(), "user_1", "  Ana@Empresa.COM ")
	if identity.OriginalEmail != "ana@empresa.com" {
		t.Fatalf("expected normalized original email, got %q", identity.OriginalEmail)
	}
	if identity.ResolutionEmail != "ana@empresa.com" {
		t.Fatalf("expected resolution email to default to original, got %q", identity.ResolutionEmail)
	}
}

func TestResolveIdentity_CompanyOverrideOnlyChangesResolutionEmail(t *testing.T) {
	svc, _ := newTestService(&engineStub{}, &directoryStub{override: "Finanzas@Empresa.com"})

	identity := svc.ResolveIdentity(context.Background(), "user_1", "ana@empresa.com")
	if identity.OriginalEmail != "ana@empresa.com" {
		t.Fatalf("expected original email untouched, got %q", identity.OriginalEmail)
	}
	if identity.ResolutionEmail != "finanzas@empresa.com" {
		t.Fatalf("expected override resolution email, got %q", identity.ResolutionEmail)
	}
}

func TestResolveIdentity_DirectoryFailureDefaults(t *testing.T) {
	svc, _ := newTestService(&engineStub{}, &directoryStub{err: errors.New("directory down")})

	identity := svc.ResolveIdentity(context.Background(), "user_1", "ana@empresa.com")
	if identity.ResolutionEmail != "ana@empresa.com" {
		t.Fatalf("expected fallback to original email, got %q", identity.ResolutionEmail)
	}
}

func TestResolveBalance_DirectValueWritesCache(t *testing.T) {
	engine := &engineStub{triggerResp: engineResponse(t, `{"data":[{"email":"a@b.com","balance":"33678.55"}]}`)}
	svc, mem := newTestService(engine, nil)

	result, err := svc.ResolveBalance(context.Background(), "user_1", "a@b.com")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Balance != "33678.55" {
		t.Fatalf("expected balance 33678.55, got %q", result.Balance)
	}
	if result.Source != SourceWorkflow {
		t.Fatalf("expected source workflow, got %q", result.Source)
	}

	entry, ok := mem.Get(context.Background(), "a@b.com")
	if !ok {
		t.Fatal("expected cache write for direct value")
	}
	if entry.Balance != "33678.55" {
		t.Fatalf("expected cached balance 33678.55, got %q", entry.Balance)
	}
}

func TestResolveBalance_BusinessZeroCachesAndDefaults(t *testing.T) {
	engine := &engineStub{triggerResp: engineResponse(t, `{"error":true,"message":"An error occurred parsing the JSON body of the request"}`)}
	svc, mem := newTestService(engine, nil)

	result, err := svc.ResolveBalance(context.Background(), "user_1", "a@b.com")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Balance != domain.ZeroBalance {
		t.Fatalf("expected 0.00 balance, got %q", result.Balance)
	}
	if result.Source != SourceDefault {
		t.Fatalf("expected source default, got %q", result.Source)
	}

	if _, ok := mem.Get(context.Background(), "a@b.com"); !ok {
		t.Fatal("expected cache write for business-zero outcome")
	}
}

func TestResolveBalance_BusinessZeroFromUpstreamErrorBody(t *testing.T) {
	engine := &engineStub{triggerErr: &workflowclient.UpstreamError{
		StatusCode: 500,
		Body:       `{"error":true,"message":"error parsing the JSON body"}`,
	}}
	svc, mem := newTestService(engine, nil)

	result, err := svc.ResolveBalance(context.Background(), "user_1", "a@b.com")
	if err != nil {
		t.Fatalf("expected business-zero, got error %v", err)
	}
	if result.Balance != domain.ZeroBalance || result.Source != SourceDefault {
		t.Fatalf("expected default zero result, got %+v", result)
	}
	if _, ok := mem.Get(context.Background(), "a@b.com"); !ok {
		t.Fatal("expected cache write for business-zero outcome")
	}
}

func TestResolveBalance_AsyncJobReturnsHandleWithoutCaching(t *testing.T) {
	engine := &engineStub{triggerResp: engineResponse(t, `{"success":true,"workflow_run":{"id":"wfr_123","status":"PENDING"}}`)}
	svc, mem := newTestService(engine, nil)

	result, err := svc.ResolveBalance(context.Background(), "user_1", "a@b.com")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.WorkflowID != "wfr_123" {
		t.Fatalf("expected workflow id wfr_123, got %q", result.WorkflowID)
	}
	if result.Status != domain.JobStatusPending {
		t.Fatalf("expected PENDING status, got %s", result.Status)
	}
	if result.Balance != domain.ZeroBalance {
		t.Fatalf("expected 0.00 balance for async handoff, got %q", result.Balance)
	}

	if _, ok := mem.Get(context.Background(), "a@b.com"); ok {
		t.Fatal("async job handles must not be cached")
	}
}

func TestResolveBalance_ExtractionMissIsExplicitAndUncached(t *testing.T) {
	engine := &engineStub{triggerResp: engineResponse(t, `{"data":{"email":"a@b.com"}}`)}
	svc, mem := newTestService(engine, nil)

	result, err := svc.ResolveBalance(context.Background(), "user_1", "a@b.com")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Balance != domain.ZeroBalance {
		t.Fatalf("expected 0.00, got %q", result.Balance)
	}
	if result.Message == "" {
		t.Fatal("extraction miss must carry an explicit message")
	}
	if _, ok := mem.Get(context.Background(), "a@b.com"); ok {
		t.Fatal("extraction miss must not be cached")
	}
}

func TestResolveBalance_FreshCacheShortCircuits(t *testing.T) {
	engine := &engineStub{triggerResp: engineResponse(t, `{"data":{"balance":"1.00"}}`)}
	svc, mem := newTestService(engine, nil)
	mem.Set(context.Background(), "a@b.com", "99.00")

	result, err := svc.ResolveBalance(context.Background(), "user_1", "a@b.com")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Source != SourceCache {
		t.Fatalf("expected cache hit, got source %q", result.Source)
	}
	if result.Balance != "99.00" {
		t.Fatalf("expected cached 99.00, got %q", result.Balance)
	}
	if result.CacheAgeSeconds == nil {
		t.Fatal("expected cache age on cache hits")
	}
	if engine.triggerCalls != 0 {
		t.Fatalf("fresh cache hit must not trigger the engine, got %d calls", engine.triggerCalls)
	}
}

func TestResolveBalance_StaleCacheTriggersEngine(t *testing.T) {
	engine := &engineStub{triggerResp: engineResponse(t, `{"data":{"balance":"1.00"}}`)}
	mem := cache.NewMemoryCache(time.Nanosecond)
	svc := NewService(engine, nil, mem, nil)
	mem.Set(context.Background(), "a@b.com", "99.00")
	time.Sleep(time.Millisecond)

	result, err := svc.ResolveBalance(context.Background(), "user_1", "a@b.com")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Source == SourceCache {
		t.Fatal("stale entries must never be returned as authoritative")
	}
	if engine.triggerCalls != 1 {
		t.Fatalf("expected one engine trigger, got %d", engine.triggerCalls)
	}
}

func TestResolveBalance_UsesResolutionEmailDownstream(t *testing.T) {
	engine := &engineStub{triggerResp: engineResponse(t, `{"data":{"balance":"5.00"}}`)}
	svc, mem := newTestService(engine, &directoryStub{override: "finanzas@empresa.com"})

	result, err := svc.ResolveBalance(context.Background(), "user_1", "ana@empresa.com")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(engine.triggeredFor) != 1 || engine.triggeredFor[0] != "finanzas@empresa.com" {
		t.Fatalf("expected trigger with resolution email, got %v", engine.triggeredFor)
	}
	if result.Email != "ana@empresa.com" {
		t.Fatalf("expected result keyed by original email, got %q", result.Email)
	}
	// The cache key is the original email, never the override.
	if _, ok := mem.Get(context.Background(), "ana@empresa.com"); !ok {
		t.Fatal("expected cache entry under original email")
	}
	if _, ok := mem.Get(context.Background(), "finanzas@empresa.com"); ok {
		t.Fatal("cache must never be keyed by the resolution email")
	}
}

func TestResolveBalance_UpstreamErrorPropagates(t *testing.T) {
	engine := &engineStub{triggerErr: &workflowclient.UpstreamError{StatusCode: 502, Body: "bad gateway"}}
	svc, _ := newTestService(engine, nil)

	_, err := svc.ResolveBalance(context.Background(), "user_1", "a@b.com")
	var upstream *workflowclient.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if upstream.StatusCode != 502 {
		t.Fatalf("expected original status code 502, got %d", upstream.StatusCode)
	}
}

func TestResolveBalance_NilEngineIsConfigurationError(t *testing.T) {
	svc, _ := newTestService(nil, nil)

	_, err := svc.ResolveBalance(context.Background(), "user_1", "a@b.com")
	if !errors.Is(err, ErrWorkflowNotConfigured) {
		t.Fatalf("expected ErrWorkflowNotConfigured, got %v", err)
	}
}

func TestPollWorkflow_NonTerminalStatesEchoAndStayQuiet(t *testing.T) {
	cases := []struct {
		raw  string
		want domain.JobStatus
	}{
		{`{"success":true,"workflow_run":{"id":"wfr_1","status":"PENDING"}}`, domain.JobStatusPending},
		{`{"success":true,"workflow_run":{"id":"wfr_1","status":"RUNNING"}}`, domain.JobStatusInProgress},
	}

	for _, tc := range cases {
		engine := &engineStub{runResp: engineResponse(t, tc.raw)}
		svc, _ := newTestService(engine, nil)

		result, err := svc.PollWorkflow(context.Background(), "a@b.com", "wfr_1")
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if result.Status != tc.want {
			t.Fatalf("expected status %s, got %s", tc.want, result.Status)
		}
		if result.Balance != domain.ZeroBalance {
			t.Fatalf("expected 0.00 while non-terminal, got %q", result.Balance)
		}
		if result.Error != nil {
			t.Fatalf("expected nil error field while non-terminal, got %q", *result.Error)
		}
	}
}

func TestPollWorkflow_CompletedExtractsAndWritesBack(t *testing.T) {
	engine := &engineStub{runResp: engineResponse(t, `{"success":true,"workflow_run":{"id":"wfr_1","status":"COMPLETED","outputs":[{"balance":"510.75"}]}}`)}
	svc, mem := newTestService(engine, nil)

	result, err := svc.PollWorkflow(context.Background(), "a@b.com", "wfr_1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Status != domain.JobStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", result.Status)
	}
	if result.Balance != "510.75" {
		t.Fatalf("expected 510.75, got %q", result.Balance)
	}
	if result.Error != nil {
		t.Fatalf("expected nil error, got %q", *result.Error)
	}

	entry, ok := mem.Get(context.Background(), "a@b.com")
	if !ok {
		t.Fatal("expected poll resolution written back to cache")
	}
	if entry.Balance != "510.75" {
		t.Fatalf("expected cached 510.75, got %q", entry.Balance)
	}
}

func TestPollWorkflow_CompletedWithoutDataFlagsMiss(t *testing.T) {
	engine := &engineStub{runResp: engineResponse(t, `{"success":true,"workflow_run":{"id":"wfr_1","status":"COMPLETED"}}`)}
	svc, _ := newTestService(engine, nil)

	result, err := svc.PollWorkflow(context.Background(), "a@b.com", "wfr_1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Status != domain.JobStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", result.Status)
	}
	if result.Balance != domain.ZeroBalance {
		t.Fatalf("expected 0.00, got %q", result.Balance)
	}
	if result.Error == nil || *result.Error != "no balance data available" {
		t.Fatalf("expected extraction-miss error, got %v", result.Error)
	}
}

func TestPollWorkflow_FailedYieldsZeroAndError(t *testing.T) {
	engine := &engineStub{runResp: engineResponse(t, `{"success":true,"workflow_run":{"id":"wfr_1","status":"FAILED"}}`)}
	svc, _ := newTestService(engine, nil)

	result, err := svc.PollWorkflow(context.Background(), "a@b.com", "wfr_1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Status != domain.JobStatusFailed {
		t.Fatalf("expected FAILED, got %s", result.Status)
	}
	if result.Balance != domain.ZeroBalance {
		t.Fatalf("expected 0.00, got %q", result.Balance)
	}
	if result.Error == nil || *result.Error != "execution failed" {
		t.Fatalf("expected execution failure error, got %v", result.Error)
	}
}

func TestPollWorkflow_UnknownStatusIsTerminalWithFlag(t *testing.T) {
	engine := &engineStub{runResp: engineResponse(t, `{"success":true,"workflow_run":{"id":"wfr_1","status":"SOMETHING_ELSE"}}`)}
	svc, _ := newTestService(engine, nil)

	result, err := svc.PollWorkflow(context.Background(), "a@b.com", "wfr_1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Status != domain.JobStatusCompleted {
		t.Fatalf("unknown status must be reported as COMPLETED, got %s", result.Status)
	}
	if result.Error == nil || *result.Error != "completed but no balance data found" {
		t.Fatalf("expected anomaly flag, got %v", result.Error)
	}
}

func TestPollWorkflow_EchoesRawResultAndOutputs(t *testing.T) {
	engine := &engineStub{runResp: engineResponse(t, `{"success":true,"workflow_run":{"id":"wfr_1","status":"COMPLETED","result":{"balance":"7.00"},"outputs":[{"balance":"7.00"}]}}`)}
	svc, _ := newTestService(engine, nil)

	result, err := svc.PollWorkflow(context.Background(), "a@b.com", "wfr_1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.RawResult == nil || result.RawOutputs == nil {
		t.Fatal("expected raw result and outputs echoed for terminal runs")
	}
}

func TestListTransactions_NormalizesRecords(t *testing.T) {
	engine := &engineStub{txResp: engineResponse(t, `{"data":[
		{"id_unico":"t1","fecha":"2025-01-02","tipo":"deposit","direccion":"in","estado":"processed","monto_usd":"10.00"},
		{"id_unico":"t2","fecha":"2025-01-03","tipo":"withdrawal","direccion":"out","estado":"awaitingPayment","monto_usd":"4.50"}
	]}`)}
	svc, _ := newTestService(engine, nil)

	transactions, err := svc.ListTransactions(context.Background(), "user_1", "a@b.com")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(transactions))
	}
	if transactions[0].Amount != 10.00 || transactions[0].Type != domain.TransactionCredit {
		t.Fatalf("expected credit 10.00, got %+v", transactions[0])
	}
	if transactions[1].Amount != -4.50 || transactions[1].Status != domain.TransactionAwaiting {
		t.Fatalf("expected awaiting debit -4.50, got %+v", transactions[1])
	}
}

func TestInvalidateBalance_DropsCacheEntry(t *testing.T) {
	svc, mem := newTestService(&engineStub{}, nil)
	mem.Set(context.Background(), "a@b.com", "12.00")

	svc.InvalidateBalance(context.Background(), " A@B.com ")

	if _, ok := mem.Get(context.Background(), "a@b.com"); ok {
		t.Fatal("expected cache entry dropped after invalidation")
	}
}

func TestResolutionHistory_WithoutStore(t *testing.T) {
	svc, _ := newTestService(&engineStub{}, nil)

	if _, err := svc.ResolutionHistory(context.Background(), "a@b.com", 10); !errors.Is(err, ErrAuditDisabled) {
		t.Fatalf("expected ErrAuditDisabled, got %v", err)
	}
}
