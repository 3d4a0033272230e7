package server

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"

	"github.com/alephbunnies/bunny_token/internal/account"
	"github.com/alephbunnies/bunny_token/internal/config"
	"github.com/alephbunnies/bunny_token/internal/infra"
	"github.com/alephbunnies/bunny_token/internal/ledger"
	"github.com/alephbunnies/bunny_token/internal/logging"
	"github.com/alephbunnies/bunny_token/internal/middleware"
	"github.com/alephbunnies/bunny_token/internal/token"
	"github.com/alephbunnies/bunny_token/internal/vesting"
)

var (
	creator   = account.MustParse(strings.Repeat("0a", account.Size))
	marketing = account.MustParse(strings.Repeat("0b", account.Size))
	alice     = account.MustParse(strings.Repeat("0c", account.Size))
	bob       = account.MustParse(strings.Repeat("0d", account.Size))
)

func newTestServer(t *testing.T, cache *redis.Client) *fiber.App {
	t.Helper()
	tok, err := token.New(context.Background(), ledger.NewInMemory(), *uint256.NewInt(1_000_000), creator, marketing,
		token.WithLogger(logging.Discard()),
		token.WithClock(vesting.FixedClock(vesting.DefaultUnlockTime-1)),
	)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	cfg := config.Config{AppName: "test", AppEnv: "test", TrustCallerHeader: true, RateLimitPerMin: 1_000}
	srv, err := New(cfg, infra.Backends{Cache: cache}, tok, logging.Discard())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv.App()
}

func do(t *testing.T, app *fiber.App, method, path string, caller *account.ID, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if caller != nil {
		req.Header.Set(middleware.CallerHeader, caller.String())
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	payload := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, payload
}

func TestTokenInfo(t *testing.T) {
	app := newTestServer(t, nil)

	status, body := do(t, app, fiber.MethodGet, "/api/v1/token", nil, "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 got %d", status)
	}
	if body["symbol"] != "BUNNY" || body["total_supply"] != "1000000" || body["decimals"] != float64(6) {
		t.Fatalf("unexpected token info %v", body)
	}
	if body["disbursement_threshold"] != "1000000000000" {
		t.Fatalf("unexpected disbursement threshold %v", body["disbursement_threshold"])
	}
}

func TestTransferFlow(t *testing.T) {
	app := newTestServer(t, nil)

	status, _ := do(t, app, fiber.MethodPost, "/api/v1/airdrops", &creator,
		`{"account":"`+alice.String()+`","amount":"500"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("airdrop: expected 201 got %d", status)
	}

	// allocation is still locked
	status, body := do(t, app, fiber.MethodPost, "/api/v1/transfers", &alice,
		`{"to":"`+bob.String()+`","amount":"100"}`)
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("locked transfer: expected 422 got %d (%v)", status, body)
	}

	status, body = do(t, app, fiber.MethodPost, "/api/v1/transfers", &creator,
		`{"to":"`+alice.String()+`","amount":"1000"}`)
	if status != fiber.StatusCreated || body["fee"] != "0" {
		t.Fatalf("creator transfer: status %d body %v", status, body)
	}

	status, body = do(t, app, fiber.MethodPost, "/api/v1/transfers", &alice,
		`{"to":"`+bob.String()+`","amount":"1000"}`)
	if status != fiber.StatusCreated || body["fee"] != "70" || body["received"] != "930" {
		t.Fatalf("fee transfer: status %d body %v", status, body)
	}

	_, body = do(t, app, fiber.MethodGet, "/api/v1/accounts/"+alice.String()+"/balance", nil, "")
	if body["balance"] != "500" || body["spendable"] != "0" {
		t.Fatalf("unexpected alice balance %v", body)
	}
	_, body = do(t, app, fiber.MethodGet, "/api/v1/disbursement/pool", nil, "")
	if body["disbursement_pool"] != "70" || body["threshold"] != "1000000000000" {
		t.Fatalf("unexpected pool %v", body)
	}
	_, body = do(t, app, fiber.MethodGet, "/api/v1/supply/circulating", nil, "")
	if body["circulating_supply"] != "1500" {
		t.Fatalf("unexpected circulating supply %v", body)
	}
}

func TestCreatorOnlyEndpoints(t *testing.T) {
	app := newTestServer(t, nil)

	status, _ := do(t, app, fiber.MethodPost, "/api/v1/fee-exemptions", &alice, `{"account":"`+bob.String()+`"}`)
	if status != fiber.StatusForbidden {
		t.Fatalf("expected 403 got %d", status)
	}
	status, _ = do(t, app, fiber.MethodPost, "/api/v1/fee-exemptions", &creator, `{"account":"`+bob.String()+`"}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 got %d", status)
	}

	_, body := do(t, app, fiber.MethodGet, "/api/v1/privileged-accounts", nil, "")
	accounts, _ := body["accounts"].([]any)
	if len(accounts) != 3 || accounts[2] != bob.String() {
		t.Fatalf("unexpected privileged accounts %v", body)
	}
}

func TestCommandsRequireCaller(t *testing.T) {
	app := newTestServer(t, nil)
	status, _ := do(t, app, fiber.MethodPost, "/api/v1/transfers", nil, `{"to":"0x01","amount":"1"}`)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", status)
	}
	status, _ = do(t, app, fiber.MethodPost, "/api/v1/transfers", &creator, `{"to":"`+bob.String()+`","amount":"-1"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for invalid amount got %d", status)
	}
}

func signedTransfer(priv ed25519.PrivateKey, body string, ts time.Time, nonce, signedKey, sentKey string) *http.Request {
	signed := middleware.SignedRequest{
		Method:         fiber.MethodPost,
		Path:           "/api/v1/transfers",
		Timestamp:      ts.UnixMilli(),
		Nonce:          nonce,
		IdempotencyKey: signedKey,
		Body:           []byte(body),
	}
	req := httptest.NewRequest(fiber.MethodPost, signed.Path, bytes.NewReader(signed.Body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(middleware.CallerKeyHeader, hex.EncodeToString(priv.Public().(ed25519.PublicKey)))
	req.Header.Set(middleware.CallerSignatureHeader, hex.EncodeToString(ed25519.Sign(priv, middleware.SigningPayload(signed))))
	req.Header.Set(middleware.CallerTimestampHeader, strconv.FormatInt(signed.Timestamp, 10))
	req.Header.Set(middleware.CallerNonceHeader, nonce)
	req.Header.Set(middleware.IdempotencyKeyHeader, sentKey)
	return req
}

func TestSignedTransferCannotBeReplayed(t *testing.T) {
	app := newTestServer(t, nil)
	pub, priv, _ := ed25519.GenerateKey(nil)
	sender, err := account.FromPublicKey(pub)
	if err != nil {
		t.Fatalf("derive account: %v", err)
	}
	status, _ := do(t, app, fiber.MethodPost, "/api/v1/transfers", &creator,
		`{"to":"`+sender.String()+`","amount":"1000"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("funding: expected 201 got %d", status)
	}

	body := `{"to":"` + bob.String() + `","amount":"100"}`
	now := time.Now()
	for i, key := range []string{"k1", "k1", "attacker-2", "attacker-3"} {
		resp, err := app.Test(signedTransfer(priv, body, now, "n-1", "k1", key))
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		resp.Body.Close()
		want := fiber.StatusUnauthorized
		if i == 0 {
			want = fiber.StatusCreated
		}
		if resp.StatusCode != want {
			t.Fatalf("send %d with idempotency key %q: expected %d got %d", i, key, want, resp.StatusCode)
		}
	}

	_, balance := do(t, app, fiber.MethodGet, "/api/v1/accounts/"+bob.String()+"/balance", nil, "")
	if balance["balance"] != "93" {
		t.Fatalf("bob should be credited once, got %v", balance)
	}

	resp, err := app.Test(signedTransfer(priv, body, now.Add(-10*time.Minute), "n-2", "k2", "k2"))
	if err != nil {
		t.Fatalf("stale send: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("stale timestamp: expected 401 got %d", resp.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()
	app := newTestServer(t, cache)

	status, body := do(t, app, fiber.MethodGet, "/healthz", nil, "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 got %d (%v)", status, body)
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(string(raw), "bunny_token_privileged_accounts") {
		t.Fatalf("unexpected metrics response %d", resp.StatusCode)
	}
}
