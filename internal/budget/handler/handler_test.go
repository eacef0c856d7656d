package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	activitymemory "caretrack/internal/activity/store/memory"
	"caretrack/internal/budget/service"
	budgetstore "caretrack/internal/budget/store/budget"
	transactionstore "caretrack/internal/budget/store/transaction"
	"caretrack/internal/guard"
	provisionservice "caretrack/internal/provision/service"
	provisionmemory "caretrack/internal/provision/store/memory"
	id "caretrack/pkg/domain"
	"caretrack/pkg/testutil"
)

type budgetTestEnv struct {
	router   http.Handler
	tenantID id.TenantID
	userID   id.UserID
	clientID id.ClientID
}

func newBudgetEnv(t *testing.T) *budgetTestEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	budgets := budgetstore.NewInMemory()
	txns := transactionstore.NewInMemory()
	activityLog := activitymemory.New()
	stores := service.TxStores{Budgets: budgets, Transactions: txns, Activity: activityLog}

	env := &budgetTestEnv{
		tenantID: id.NewTenantID(),
		userID:   id.NewUserID(),
		clientID: id.NewClientID(),
	}

	provision := provisionservice.NewService(provisionmemory.New(), logger, nil)
	if _, err := provision.EnsureBaseline(t.Context(), env.tenantID); err != nil {
		t.Fatalf("failed to provision baseline: %v", err)
	}

	svc := service.NewService(service.NewShardedTx(stores, 0), stores, provision, logger, nil)
	h := New(svc, guard.New(activityLog, logger, nil), logger)

	r := chi.NewRouter()
	h.Register(r)
	env.router = r
	return env
}

func (env *budgetTestEnv) do(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req = testutil.WithIdentity(req, env.tenantID, env.userID, id.RoleCoordinator)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func (env *budgetTestEnv) createBudget(t *testing.T, allocation string) id.BudgetID {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/budgets", map[string]any{
		"client_id":        env.clientID,
		"category":         "core_supports",
		"total_allocation": allocation,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating budget, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID id.BudgetID `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode budget response: %v", err)
	}
	return resp.ID
}

func TestCreateBudgetStampsSessionTenant(t *testing.T) {
	env := newBudgetEnv(t)

	rec := env.do(t, http.MethodPost, "/budgets", map[string]any{
		"client_id":        env.clientID,
		"category":         "core_supports",
		"total_allocation": "1000.00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		TenantID id.TenantID `json:"tenant_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.TenantID != env.tenantID {
		t.Fatalf("expected payload stamped with session tenant %s, got %s", env.tenantID, resp.TenantID)
	}
}

func TestCreateBudgetForeignTenantRejected(t *testing.T) {
	env := newBudgetEnv(t)

	rec := env.do(t, http.MethodPost, "/budgets", map[string]any{
		"tenant_id":        id.NewTenantID(),
		"client_id":        env.clientID,
		"category":         "core_supports",
		"total_allocation": "1000.00",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign tenant payload, got %d", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error != "tenant_boundary_violation" {
		t.Fatalf("expected tenant_boundary_violation, got %q", resp.Error)
	}
}

func TestDeductionFlowViaHandlers(t *testing.T) {
	env := newBudgetEnv(t)
	budgetID := env.createBudget(t, "1000.00")

	deduction := map[string]any{
		"client_id":       env.clientID,
		"category":        "core_supports",
		"source_event_id": "shift-2026-08-01-a",
		"hours":           "2",
		"rate":            "50.00",
	}
	rec := env.do(t, http.MethodPost, "/budgets/deductions", deduction)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 recording deduction, got %d: %s", rec.Code, rec.Body.String())
	}
	var txnResp struct {
		Amount decimal.Decimal `json:"amount"`
		Type   string          `json:"type"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&txnResp); err != nil {
		t.Fatalf("failed to decode transaction: %v", err)
	}
	if !txnResp.Amount.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected amount 100.00, got %s", txnResp.Amount)
	}

	// Same source event again: idempotency conflict, no double deduction.
	rec = env.do(t, http.MethodPost, "/budgets/deductions", deduction)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate source event, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/budgets/"+budgetID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching budget, got %d", rec.Code)
	}
	var budgetResp struct {
		CurrentSpent decimal.Decimal `json:"current_spent"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&budgetResp); err != nil {
		t.Fatalf("failed to decode budget: %v", err)
	}
	if !budgetResp.CurrentSpent.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected spent 100.00 after retry, got %s", budgetResp.CurrentSpent)
	}

	rec = env.do(t, http.MethodGet, "/budgets/"+budgetID.String()+"/transactions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing transactions, got %d", rec.Code)
	}
	var listResp struct {
		Transactions []json.RawMessage `json:"transactions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listResp); err != nil {
		t.Fatalf("failed to decode transactions: %v", err)
	}
	if len(listResp.Transactions) != 1 {
		t.Fatalf("expected exactly one ledger entry, got %d", len(listResp.Transactions))
	}
}

func TestDeductionWithRateCode(t *testing.T) {
	env := newBudgetEnv(t)
	env.createBudget(t, "1000.00")

	rec := env.do(t, http.MethodPost, "/budgets/deductions", map[string]any{
		"client_id":       env.clientID,
		"category":        "core_supports",
		"source_event_id": "shift-saturday",
		"hours":           "2",
		"rate":            "50.00",
		"rate_code":       "saturday",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	// 2h x 50.00 x saturday 1.50
	if !resp.Amount.Equal(decimal.RequireFromString("150.00")) {
		t.Fatalf("expected amount 150.00, got %s", resp.Amount)
	}
}

func TestRefundViaHandler(t *testing.T) {
	env := newBudgetEnv(t)
	env.createBudget(t, "1000.00")

	rec := env.do(t, http.MethodPost, "/budgets/deductions", map[string]any{
		"client_id":       env.clientID,
		"category":        "core_supports",
		"source_event_id": "shift-1",
		"hours":           "4",
		"rate":            "50.00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 recording deduction, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/budgets/refunds", map[string]any{
		"client_id":       env.clientID,
		"category":        "core_supports",
		"source_event_id": "refund-1",
		"amount":          "50.00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 recording refund, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode refund: %v", err)
	}
	if !resp.Amount.Equal(decimal.RequireFromString("-50.00")) {
		t.Fatalf("expected refund recorded as -50.00, got %s", resp.Amount)
	}
}

func TestListBudgetsRequiresClientID(t *testing.T) {
	env := newBudgetEnv(t)

	rec := env.do(t, http.MethodGet, "/budgets", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without client_id, got %d", rec.Code)
	}
}

func TestUnresolvedRequestRejected(t *testing.T) {
	env := newBudgetEnv(t)

	// No identity on the request context.
	req := httptest.NewRequest(http.MethodPost, "/budgets", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without tenant context, got %d", rec.Code)
	}
}
