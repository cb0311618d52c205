package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davidolu/cryptovest/internal/api"
	"github.com/davidolu/cryptovest/internal/api/middleware"
	"github.com/davidolu/cryptovest/internal/clock"
	"github.com/davidolu/cryptovest/internal/config"
	"github.com/davidolu/cryptovest/internal/domain"
	"github.com/davidolu/cryptovest/internal/idempotency"
	"github.com/davidolu/cryptovest/internal/models"
	"github.com/davidolu/cryptovest/internal/repository"
)

const (
	testJWTSecret   = "test-secret-0123456789-test-secret"
	testJWTIssuer   = "cryptovest-test"
	testJWTAudience = "cryptovest-api-test"
)

func TestMain(m *testing.M) {
	middleware.SetJWTSecret(testJWTSecret)
	middleware.SetJWTValidation(testJWTIssuer, testJWTAudience)
	os.Exit(m.Run())
}

type testAPI struct {
	router http.Handler
	store  *repository.MemoryStore
	clk    *clock.Fake
}

func setupAPI() *testAPI {
	store := repository.NewMemoryStore()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cfg := &config.Config{
		HTTPPort:           "0",
		JWTSecret:          testJWTSecret,
		JWTIssuer:          testJWTIssuer,
		JWTAudience:        testJWTAudience,
		MinWithdrawalUnits: 10,
		PublicRateLimitRPS: 1000,
		AuthRateLimitRPS:   1000,
		IdempotencyTTL:     time.Hour,
	}
	idemStore := idempotency.NewStore(nil, store, cfg.IdempotencyTTL)
	router := api.NewRouter(cfg, zap.NewNop(), nil, store, idemStore, nil).WithClock(clk).Routes()
	return &testAPI{router: router, store: store, clk: clk}
}

func generateTestToken(userID string) string {
	return generateTokenWithRole(userID, "user")
}

func generateTokenWithRole(userID, role string) string {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"iss":     testJWTIssuer,
		"aud":     testJWTAudience,
		"sub":     userID,
		"iat":     now.Unix(),
		"nbf":     now.Add(-30 * time.Second).Unix(),
		"exp":     now.Add(time.Hour).Unix(),
	})
	tokenString, _ := token.SignedString(middleware.JWTSecret())
	return tokenString
}

func (a *testAPI) do(t *testing.T, method, path, token string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// createAccount provisions an account over the API and returns it with the
// owner's token.
func (a *testAPI) createAccount(t *testing.T) (models.Account, string) {
	t.Helper()
	userID := uuid.New()
	token := generateTestToken(userID.String())

	w := a.do(t, "POST", "/v1/accounts", token, map[string]string{"user_id": userID.String()}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var account models.Account
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))
	return account, token
}

// fundAccount pushes a confirmed deposit through the API so the ledger and
// the balance stay in step.
func (a *testAPI) fundAccount(t *testing.T, account models.Account, token string, amountMicros int64) {
	t.Helper()
	w := a.do(t, "POST", "/v1/deposits", token, map[string]any{
		"account_id":    account.ID.String(),
		"amount_micros": amountMicros,
		"currency":      "USDT",
	}, map[string]string{"Idempotency-Key": uuid.New().String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var dep models.DepositRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dep))

	admin := generateTokenWithRole(uuid.New().String(), "admin")
	w = a.do(t, "POST", "/v1/admin/deposits/"+dep.ID.String()+"/resolve", admin,
		map[string]string{"decision": "confirmed"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (a *testAPI) balance(t *testing.T, account models.Account, token string) int64 {
	t.Helper()
	w := a.do(t, "GET", "/v1/accounts/"+account.ID.String()+"/balance", token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got models.Account
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got.Balance
}

func TestRFC7807ProblemDetails(t *testing.T) {
	a := setupAPI()

	accountID := uuid.New().String()
	w := a.do(t, "GET", "/v1/accounts/"+accountID+"/balance", "", nil, nil)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["type"])
	assert.Equal(t, float64(http.StatusUnauthorized), body["status"])
	assert.NotEmpty(t, body["title"])
	assert.NotEmpty(t, body["detail"])
	assert.Equal(t, "/v1/accounts/"+accountID+"/balance", body["instance"])
	assert.NotEmpty(t, body["request_id"])
}

func TestCreateAccount(t *testing.T) {
	a := setupAPI()
	userID := uuid.New()
	token := generateTestToken(userID.String())

	w := a.do(t, "POST", "/v1/accounts", token, map[string]string{"user_id": userID.String()}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var account models.Account
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))
	assert.Equal(t, userID, account.UserID)
	assert.Equal(t, int64(0), account.Balance)
}

func TestCreateAccountForAnotherUserForbidden(t *testing.T) {
	a := setupAPI()
	token := generateTestToken(uuid.New().String())

	w := a.do(t, "POST", "/v1/accounts", token, map[string]string{"user_id": uuid.New().String()}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetBalanceOwnerAndStranger(t *testing.T) {
	a := setupAPI()
	account, token := a.createAccount(t)

	assert.Equal(t, int64(0), a.balance(t, account, token))

	stranger := generateTestToken(uuid.New().String())
	w := a.do(t, "GET", "/v1/accounts/"+account.ID.String()+"/balance", stranger, nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := generateTokenWithRole(uuid.New().String(), "admin")
	w = a.do(t, "GET", "/v1/accounts/"+account.ID.String()+"/balance", admin, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDepositLifecycle(t *testing.T) {
	a := setupAPI()
	account, token := a.createAccount(t)

	w := a.do(t, "POST", "/v1/deposits", token, map[string]any{
		"account_id":    account.ID.String(),
		"amount_micros": domain.UnitsToMicros(250),
		"currency":      "BTC",
	}, map[string]string{"Idempotency-Key": uuid.New().String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var dep models.DepositRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dep))
	assert.Equal(t, domain.RequestStatusPending, dep.Status)

	// Pending deposit must not move the balance.
	assert.Equal(t, int64(0), a.balance(t, account, token))

	admin := generateTokenWithRole(uuid.New().String(), "admin")
	txHash := "0xabc123"
	w = a.do(t, "POST", "/v1/admin/deposits/"+dep.ID.String()+"/resolve", admin,
		map[string]any{"decision": "confirmed", "tx_hash": txHash}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resolved models.DepositRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resolved))
	assert.Equal(t, domain.RequestStatusConfirmed, resolved.Status)
	require.NotNil(t, resolved.TxHash)
	assert.Equal(t, txHash, *resolved.TxHash)

	assert.Equal(t, domain.UnitsToMicros(250), a.balance(t, account, token))

	// Second resolve of the same request is refused.
	w = a.do(t, "POST", "/v1/admin/deposits/"+dep.ID.String()+"/resolve", admin,
		map[string]string{"decision": "rejected"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.UnitsToMicros(250), a.balance(t, account, token))
}

func TestDepositIdempotentReplay(t *testing.T) {
	a := setupAPI()
	account, token := a.createAccount(t)

	key := uuid.New().String()
	payload := map[string]any{
		"account_id":    account.ID.String(),
		"amount_micros": domain.UnitsToMicros(100),
		"currency":      "USDT",
	}

	first := a.do(t, "POST", "/v1/deposits", token, payload, map[string]string{"Idempotency-Key": key})
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	replay := a.do(t, "POST", "/v1/deposits", token, payload, map[string]string{"Idempotency-Key": key})
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.NotEmpty(t, replay.Header().Get("X-Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), replay.Body.String())

	// Only one deposit request exists despite two successful responses.
	w := a.do(t, "GET", "/v1/accounts/"+account.ID.String()+"/deposits", token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var deposits []models.DepositRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &deposits))
	assert.Len(t, deposits, 1)

	// Re-using the key with a different body is a conflict.
	payload["amount_micros"] = domain.UnitsToMicros(200)
	w = a.do(t, "POST", "/v1/deposits", token, payload, map[string]string{"Idempotency-Key": key})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDepositRequiresIdempotencyKey(t *testing.T) {
	a := setupAPI()
	account, token := a.createAccount(t)

	w := a.do(t, "POST", "/v1/deposits", token, map[string]any{
		"account_id":    account.ID.String(),
		"amount_micros": domain.UnitsToMicros(50),
		"currency":      "USDT",
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["type"], "idempotency/missing-key")
}

func TestAdminRoutesRejectRegularUsers(t *testing.T) {
	a := setupAPI()
	token := generateTestToken(uuid.New().String())

	cases := []struct {
		method string
		path   string
		body   any
	}{
		{"GET", "/v1/admin/deposits/pending", nil},
		{"GET", "/v1/admin/withdrawals/pending", nil},
		{"POST", "/v1/admin/deposits/" + uuid.New().String() + "/resolve", map[string]string{"decision": "confirmed"}},
		{"POST", "/v1/admin/plans", map[string]any{"name": "x"}},
		{"DELETE", "/v1/admin/plans/" + uuid.New().String(), nil},
	}
	for _, tc := range cases {
		w := a.do(t, tc.method, tc.path, token, tc.body, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestWithdrawalFlow(t *testing.T) {
	a := setupAPI()
	account, token := a.createAccount(t)
	a.fundAccount(t, account, token, domain.UnitsToMicros(500))

	w := a.do(t, "POST", "/v1/withdrawals", token, map[string]any{
		"account_id":     account.ID.String(),
		"amount_micros":  domain.UnitsToMicros(200),
		"currency":       "USDT",
		"wallet_address": "TXYZuser-wallet",
	}, map[string]string{"Idempotency-Key": uuid.New().String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var wd models.WithdrawalRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &wd))
	assert.Equal(t, domain.RequestStatusPending, wd.Status)

	// Funds are held as soon as the request is accepted.
	assert.Equal(t, domain.UnitsToMicros(300), a.balance(t, account, token))

	admin := generateTokenWithRole(uuid.New().String(), "admin")
	w = a.do(t, "POST", "/v1/admin/withdrawals/"+wd.ID.String()+"/resolve", admin,
		map[string]string{"decision": "rejected"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Rejection refunds the hold.
	assert.Equal(t, domain.UnitsToMicros(500), a.balance(t, account, token))
}

func TestWithdrawalInsufficientFunds(t *testing.T) {
	a := setupAPI()
	account, token := a.createAccount(t)
	a.fundAccount(t, account, token, domain.UnitsToMicros(50))

	w := a.do(t, "POST", "/v1/withdrawals", token, map[string]any{
		"account_id":     account.ID.String(),
		"amount_micros":  domain.UnitsToMicros(100),
		"currency":       "USDT",
		"wallet_address": "TXYZuser-wallet",
	}, map[string]string{"Idempotency-Key": uuid.New().String()})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["type"], "ledger/insufficient-funds")

	assert.Equal(t, domain.UnitsToMicros(50), a.balance(t, account, token))
}

func TestWithdrawalBelowMinimum(t *testing.T) {
	a := setupAPI()
	account, token := a.createAccount(t)
	a.fundAccount(t, account, token, domain.UnitsToMicros(50))

	w := a.do(t, "POST", "/v1/withdrawals", token, map[string]any{
		"account_id":     account.ID.String(),
		"amount_micros":  domain.UnitsToMicros(5),
		"currency":       "USDT",
		"wallet_address": "TXYZuser-wallet",
	}, map[string]string{"Idempotency-Key": uuid.New().String()})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestPlanAdminCRUD(t *testing.T) {
	a := setupAPI()
	admin := generateTokenWithRole(uuid.New().String(), "admin")

	planBody := map[string]any{
		"name":              "Starter",
		"min_amount_micros": domain.UnitsToMicros(100),
		"max_amount_micros": domain.UnitsToMicros(10000),
		"roi_percent":       "12.5",
		"duration_hours":    24,
		"description":       "Entry level plan",
		"is_active":         true,
		"features":          []string{"daily compounding"},
	}
	w := a.do(t, "POST", "/v1/admin/plans", admin, planBody, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var plan models.InvestmentPlan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))
	assert.Equal(t, "Starter", plan.Name)

	user := generateTestToken(uuid.New().String())
	w = a.do(t, "GET", "/v1/plans", user, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var plans []models.InvestmentPlan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plans))
	require.Len(t, plans, 1)

	// Deactivating hides the plan from the public list.
	planBody["is_active"] = false
	w = a.do(t, "PUT", "/v1/admin/plans/"+plan.ID.String(), admin, planBody, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(t, "GET", "/v1/plans", user, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plans))
	assert.Empty(t, plans)

	w = a.do(t, "GET", "/v1/plans?include_inactive=true", admin, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plans))
	assert.Len(t, plans, 1)

	w = a.do(t, "DELETE", "/v1/admin/plans/"+plan.ID.String(), admin, nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = a.do(t, "GET", "/v1/plans/"+plan.ID.String(), user, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlanValidationOverAPI(t *testing.T) {
	a := setupAPI()
	admin := generateTokenWithRole(uuid.New().String(), "admin")

	w := a.do(t, "POST", "/v1/admin/plans", admin, map[string]any{
		"name":              "Broken",
		"min_amount_micros": domain.UnitsToMicros(100),
		"max_amount_micros": domain.UnitsToMicros(10),
		"roi_percent":       "12.5",
		"duration_hours":    24,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestInvestmentLifecycle(t *testing.T) {
	a := setupAPI()
	account, token := a.createAccount(t)
	a.fundAccount(t, account, token, domain.UnitsToMicros(1000))

	admin := generateTokenWithRole(uuid.New().String(), "admin")
	w := a.do(t, "POST", "/v1/admin/plans", admin, map[string]any{
		"name":              "Growth",
		"min_amount_micros": domain.UnitsToMicros(100),
		"max_amount_micros": domain.UnitsToMicros(5000),
		"roi_percent":       "10",
		"duration_hours":    48,
		"is_active":         true,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var plan models.InvestmentPlan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))

	w = a.do(t, "POST", "/v1/investments", token, map[string]any{
		"account_id":    account.ID.String(),
		"plan_id":       plan.ID.String(),
		"amount_micros": domain.UnitsToMicros(500),
	}, map[string]string{"Idempotency-Key": uuid.New().String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		models.Investment
		TotalReturn      int64   `json:"total_return_micros"`
		RemainingSeconds int64   `json:"remaining_seconds"`
		ProgressPercent  float64 `json:"progress_percent"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, domain.UnitsToMicros(50), created.ProfitAmount)
	assert.Equal(t, domain.UnitsToMicros(550), created.TotalReturn)
	assert.Equal(t, int64(48*3600), created.RemainingSeconds)
	assert.Equal(t, float64(0), created.ProgressPercent)

	// Principal is debited immediately.
	assert.Equal(t, domain.UnitsToMicros(500), a.balance(t, account, token))

	// Halfway through the term the progress view moves with the clock.
	a.clk.Advance(24 * time.Hour)
	w = a.do(t, "GET", "/v1/investments/"+created.ID.String(), token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, int64(24*3600), created.RemainingSeconds)
	assert.InDelta(t, 50.0, created.ProgressPercent, 0.01)

	w = a.do(t, "GET", "/v1/accounts/"+account.ID.String()+"/investments", token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestInvestmentAmountOutOfPlanRange(t *testing.T) {
	a := setupAPI()
	account, token := a.createAccount(t)
	a.fundAccount(t, account, token, domain.UnitsToMicros(1000))

	admin := generateTokenWithRole(uuid.New().String(), "admin")
	w := a.do(t, "POST", "/v1/admin/plans", admin, map[string]any{
		"name":              "Narrow",
		"min_amount_micros": domain.UnitsToMicros(100),
		"max_amount_micros": domain.UnitsToMicros(200),
		"roi_percent":       "5",
		"duration_hours":    24,
		"is_active":         true,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var plan models.InvestmentPlan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))

	w = a.do(t, "POST", "/v1/investments", token, map[string]any{
		"account_id":    account.ID.String(),
		"plan_id":       plan.ID.String(),
		"amount_micros": domain.UnitsToMicros(500),
	}, map[string]string{"Idempotency-Key": uuid.New().String()})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, domain.UnitsToMicros(1000), a.balance(t, account, token))
}

func TestStatementReflectsHistory(t *testing.T) {
	a := setupAPI()
	account, token := a.createAccount(t)
	a.fundAccount(t, account, token, domain.UnitsToMicros(300))

	w := a.do(t, "GET", "/v1/accounts/"+account.ID.String()+"/statement", token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var page struct {
		Entries    []models.LedgerEntry `json:"entries"`
		TotalCount int64                `json:"total_count"`
		Page       int32                `json:"page"`
		PageSize   int32                `json:"page_size"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Entries, 1)
	assert.Equal(t, int64(1), page.TotalCount)
	assert.Equal(t, int32(1), page.Page)
	assert.Equal(t, domain.EntryKindDeposit, page.Entries[0].Kind)
	assert.Equal(t, domain.EntryStatusCompleted, page.Entries[0].Status)
	assert.Equal(t, int64(0), page.Entries[0].BalanceBefore)
	assert.Equal(t, domain.UnitsToMicros(300), page.Entries[0].BalanceAfter)
}

func TestManualSweepPaysMaturedInvestment(t *testing.T) {
	a := setupAPI()
	account, token := a.createAccount(t)
	a.fundAccount(t, account, token, domain.UnitsToMicros(1000))

	admin := generateTokenWithRole(uuid.New().String(), "admin")
	w := a.do(t, "POST", "/v1/admin/plans", admin, map[string]any{
		"name":              "Sprint",
		"min_amount_micros": domain.UnitsToMicros(100),
		"max_amount_micros": domain.UnitsToMicros(5000),
		"roi_percent":       "10",
		"duration_hours":    24,
		"is_active":         true,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var plan models.InvestmentPlan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))

	w = a.do(t, "POST", "/v1/investments", token, map[string]any{
		"account_id":    account.ID.String(),
		"plan_id":       plan.ID.String(),
		"amount_micros": domain.UnitsToMicros(400),
	}, map[string]string{"Idempotency-Key": uuid.New().String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Sweeping is admin-only.
	w = a.do(t, "POST", "/v1/admin/sweep", token, nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	var result struct {
		Paid int `json:"paid"`
	}
	w = a.do(t, "POST", "/v1/admin/sweep", admin, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 0, result.Paid)

	a.clk.Advance(25 * time.Hour)
	w = a.do(t, "POST", "/v1/admin/sweep", admin, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Paid)

	// 1000 funded - 400 principal + 440 payout.
	assert.Equal(t, domain.UnitsToMicros(1040), a.balance(t, account, token))

	// A second sweep finds nothing left to pay.
	w = a.do(t, "POST", "/v1/admin/sweep", admin, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 0, result.Paid)
}

func TestHealthEndpoints(t *testing.T) {
	a := setupAPI()

	w := a.do(t, "GET", "/healthz", "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// No database or redis wired means readiness has nothing to probe.
	w = a.do(t, "GET", "/readyz", "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
