package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/token-lend/token_lend/internal/account"
	"github.com/token-lend/token_lend/internal/config"
	"github.com/token-lend/token_lend/internal/logging"
)

const (
	ownerSeed  = "sOwnerSeed4242"
	issuerSeed = "sIssuerSeed0001"
	dest       = "rDestination0000000000000000000001"
)

func newTestServer(t *testing.T, mutate func(*config.Config), cache *redis.Client) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.AppEnv = "test"
	cfg.RateLimitPerMinute = 0
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg, cache, logging.Discard())
	if err != nil {
		t.Fatalf("build server: %v", err)
	}
	return srv
}

func do(t *testing.T, app *fiber.App, method, path string, body any, headers map[string]string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, out
}

type resultEnvelope struct {
	Result map[string]any `json:"result"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Have  string `json:"have"`
	Need  string `json:"need"`
}

type balanceRow struct {
	Currency     string `json:"currency"`
	Value        string `json:"value"`
	Counterparty string `json:"counterparty"`
}

func balances(t *testing.T, app *fiber.App, address string) []balanceRow {
	t.Helper()
	status, body := do(t, app, fiber.MethodGet, "/balances/"+address, nil, nil)
	if status != fiber.StatusOK {
		t.Fatalf("balances status %d: %s", status, body)
	}
	var rows []balanceRow
	if err := json.Unmarshal(body, &rows); err != nil {
		t.Fatalf("decode balances %s: %v", body, err)
	}
	return rows
}

func valueOf(rows []balanceRow, currency string) string {
	for _, r := range rows {
		if r.Currency == currency {
			return r.Value
		}
	}
	return ""
}

func TestEscrowLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	app := srv.App()
	owner := (account.SumDeriver{}).Derive(ownerSeed)

	status, body := do(t, app, fiber.MethodPost, "/issue", fiber.Map{
		"seed": issuerSeed, "destination": owner, "currency": "RLUSD", "value": "100",
	}, nil)
	if status != fiber.StatusOK {
		t.Fatalf("issue status %d: %s", status, body)
	}
	var issued resultEnvelope
	if err := json.Unmarshal(body, &issued); err != nil {
		t.Fatalf("decode issue: %v", err)
	}
	if issued.Result["status"] != "success" || issued.Result["value"] != "100" || issued.Result["balance"] != "100" {
		t.Fatalf("unexpected issue result: %v", issued.Result)
	}
	if hash, _ := issued.Result["txHash"].(string); len(hash) != 14 || !strings.HasPrefix(hash, "TX") {
		t.Fatalf("unexpected tx hash %q", hash)
	}

	status, body = do(t, app, fiber.MethodPost, "/create-escrow", fiber.Map{
		"seed": ownerSeed, "destination": dest, "amount": 40, "currency": "RLUSD",
	}, nil)
	if status != fiber.StatusOK {
		t.Fatalf("create status %d: %s", status, body)
	}
	var created resultEnvelope
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	seq, ok := created.Result["escrowSequence"].(float64)
	if !ok || created.Result["owner"] != owner || created.Result["amount"] != "40" {
		t.Fatalf("unexpected create result: %v", created.Result)
	}
	if got := valueOf(balances(t, app, owner), "RLUSD"); got != "60" {
		t.Fatalf("expected owner RLUSD 60 after lock, got %q", got)
	}
	if pending := srv.Engine().Escrows(context.Background(), owner); len(pending) != 1 || pending[0].Sequence != int64(seq) {
		t.Fatalf("engine should hold the created escrow, got %+v", pending)
	}

	status, body = do(t, app, fiber.MethodGet, "/escrows?owner="+owner, nil, nil)
	if status != fiber.StatusOK || !strings.Contains(string(body), `"destination":"`+dest+`"`) {
		t.Fatalf("unexpected escrow listing %d: %s", status, body)
	}

	status, body = do(t, app, fiber.MethodPost, "/finish-escrow", fiber.Map{
		"seed": ownerSeed, "owner": owner, "offerSequence": int64(seq),
	}, nil)
	if status != fiber.StatusOK {
		t.Fatalf("finish status %d: %s", status, body)
	}
	rows := balances(t, app, dest)
	if len(rows) != 1 || rows[0].Value != "40" || rows[0].Counterparty != owner {
		t.Fatalf("unexpected destination balances: %+v", rows)
	}
	if pending := srv.Engine().Escrows(context.Background(), owner); len(pending) != 0 {
		t.Fatalf("finished escrow should leave the engine, got %+v", pending)
	}

	status, body = do(t, app, fiber.MethodPost, "/finish-escrow", fiber.Map{
		"seed": ownerSeed, "owner": owner, "offerSequence": int64(seq),
	}, nil)
	var errBody errorBody
	_ = json.Unmarshal(body, &errBody)
	if status != fiber.StatusNotFound || errBody.Code != "ESCROW_NOT_FOUND" {
		t.Fatalf("expected 404 ESCROW_NOT_FOUND on second finish, got %d %s", status, body)
	}
	if got := valueOf(balances(t, app, dest), "RLUSD"); got != "40" {
		t.Fatalf("second finish must not credit again, got %q", got)
	}
}

func TestCreateEscrowInsufficientFundsOverHTTP(t *testing.T) {
	app := newTestServer(t, nil, nil).App()
	owner := (account.SumDeriver{}).Derive(ownerSeed)

	do(t, app, fiber.MethodPost, "/issue", fiber.Map{
		"seed": issuerSeed, "destination": owner, "currency": "RLUSD", "value": "10",
	}, nil)

	status, body := do(t, app, fiber.MethodPost, "/create-escrow", fiber.Map{
		"seed": ownerSeed, "destination": dest, "amount": "25", "currency": "RLUSD",
	}, nil)
	var errBody errorBody
	if err := json.Unmarshal(body, &errBody); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if status != fiber.StatusBadRequest || errBody.Code != "INSUFFICIENT_FUNDS" || errBody.Have != "10" || errBody.Need != "25" {
		t.Fatalf("unexpected insufficient funds response %d: %s", status, body)
	}
	if got := valueOf(balances(t, app, owner), "RLUSD"); got != "10" {
		t.Fatalf("failed create must not change balance, got %q", got)
	}
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	app := newTestServer(t, nil, nil).App()

	cases := []struct {
		path string
		body fiber.Map
	}{
		{"/issue", fiber.Map{"seed": issuerSeed, "currency": "RLUSD", "value": "1"}},
		{"/create-escrow", fiber.Map{"seed": ownerSeed, "destination": dest, "currency": "RLUSD"}},
		{"/finish-escrow", fiber.Map{"seed": ownerSeed}},
		{"/did", fiber.Map{}},
		{"/trustline", fiber.Map{"seed": ownerSeed}},
	}
	for _, tc := range cases {
		status, body := do(t, app, fiber.MethodPost, tc.path, tc.body, nil)
		var errBody errorBody
		_ = json.Unmarshal(body, &errBody)
		if status != fiber.StatusBadRequest || errBody.Code != "VALIDATION_ERROR" {
			t.Fatalf("%s: expected 400 VALIDATION_ERROR, got %d %s", tc.path, status, body)
		}
	}
}

func TestEmptyAccountNativeDefault(t *testing.T) {
	app := newTestServer(t, nil, nil).App()
	rows := balances(t, app, "rNobody")
	if len(rows) != 1 || rows[0].Currency != "XRP" || rows[0].Value != "100" || rows[0].Counterparty != "Native" {
		t.Fatalf("unexpected default balances: %+v", rows)
	}

	empty := newTestServer(t, func(c *config.Config) { c.EmptyBalancePolicy = "empty" }, nil).App()
	if rows := balances(t, empty, "rNobody"); len(rows) != 0 {
		t.Fatalf("expected no balances under empty policy, got %+v", rows)
	}
}

func TestDIDAndTrustlineOverHTTP(t *testing.T) {
	app := newTestServer(t, nil, nil).App()

	status, body := do(t, app, fiber.MethodPost, "/did", fiber.Map{"seed": ownerSeed}, nil)
	if status != fiber.StatusOK || !strings.Contains(string(body), `"did":"did:xrpl:ed4242"`) {
		t.Fatalf("unexpected did response %d: %s", status, body)
	}
	if strings.Contains(string(body), ownerSeed) {
		t.Fatalf("seed must not be echoed: %s", body)
	}
	status, body = do(t, app, fiber.MethodGet, "/did/did:xrpl:ed4242", nil, nil)
	if status != fiber.StatusOK {
		t.Fatalf("resolve status %d: %s", status, body)
	}
	status, _ = do(t, app, fiber.MethodGet, "/did/did:xrpl:nothere", nil, nil)
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404 for unknown did, got %d", status)
	}

	status, body = do(t, app, fiber.MethodPost, "/trustline", fiber.Map{
		"seed": ownerSeed, "issuer": "rIssuer", "currency": "RLUSD", "limit": "500",
	}, nil)
	if status != fiber.StatusOK || !strings.Contains(string(body), "Trustline set successfully") {
		t.Fatalf("unexpected trustline response %d: %s", status, body)
	}
	owner := (account.SumDeriver{}).Derive(ownerSeed)
	status, body = do(t, app, fiber.MethodGet, "/trustlines/"+owner, nil, nil)
	if status != fiber.StatusOK || !strings.Contains(string(body), `"limit":"500"`) {
		t.Fatalf("unexpected trustline listing %d: %s", status, body)
	}
}

func TestBasePathAndOpsRoutes(t *testing.T) {
	app := newTestServer(t, func(c *config.Config) { c.BasePath = "/api" }, nil).App()

	if status, _ := do(t, app, fiber.MethodGet, "/api/balances/rX", nil, nil); status != fiber.StatusOK {
		t.Fatalf("expected balances under base path, got %d", status)
	}
	if status, _ := do(t, app, fiber.MethodGet, "/healthz", nil, nil); status != fiber.StatusOK {
		t.Fatalf("expected healthy, got %d", status)
	}

	owner := (account.SumDeriver{}).Derive(ownerSeed)
	do(t, app, fiber.MethodPost, "/api/issue", fiber.Map{
		"seed": issuerSeed, "destination": owner, "currency": "RLUSD", "value": "5",
	}, nil)
	status, body := do(t, app, fiber.MethodGet, "/metrics", nil, nil)
	if status != fiber.StatusOK || !strings.Contains(string(body), `ledger_operations_total{operation="issue",outcome="success"} 1`) {
		t.Fatalf("unexpected metrics %d: %s", status, body)
	}
}

func TestMetricsDisabled(t *testing.T) {
	app := newTestServer(t, func(c *config.Config) { c.MetricsEnabled = false }, nil).App()
	if status, _ := do(t, app, fiber.MethodGet, "/metrics", nil, nil); status != fiber.StatusNotFound {
		t.Fatalf("expected 404 with metrics disabled, got %d", status)
	}
}

func TestIdempotentIssueWithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	srv := newTestServer(t, nil, cache)
	app := srv.App()
	owner := (account.SumDeriver{}).Derive(ownerSeed)
	issue := fiber.Map{"seed": issuerSeed, "destination": owner, "currency": "RLUSD", "value": "30"}
	headers := map[string]string{"Idempotency-Key": "issue-1"}

	_, first := do(t, app, fiber.MethodPost, "/issue", issue, headers)
	_, second := do(t, app, fiber.MethodPost, "/issue", issue, headers)
	if string(first) != string(second) {
		t.Fatalf("expected replayed response, got %s then %s", first, second)
	}
	if got := valueOf(balances(t, app, owner), "RLUSD"); got != "30" {
		t.Fatalf("replay must not credit twice, got %q", got)
	}

	if status, body := do(t, app, fiber.MethodGet, "/healthz", nil, nil); status != fiber.StatusOK || !strings.Contains(string(body), `"redis":"ok"`) {
		t.Fatalf("unexpected health %d: %s", status, body)
	}
}

func TestNewRejectsBadLedgerConfig(t *testing.T) {
	cfg := config.Default()
	cfg.AccountDerivation = "sha1"
	if _, err := New(cfg, nil, logging.Discard()); err == nil {
		t.Fatalf("expected unknown derivation error")
	}
	cfg = config.Default()
	cfg.EmptyBalancePolicy = "zero"
	if _, err := New(cfg, nil, logging.Discard()); err == nil {
		t.Fatalf("expected unknown policy error")
	}
	cfg = config.Default()
	cfg.AppEnv = "production"
	if _, err := New(cfg, nil, logging.Discard()); err == nil {
		t.Fatalf("expected redis requirement in production")
	}
}
