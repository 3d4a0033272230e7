package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/alephbunnies/bunny_token/internal/account"
	"github.com/alephbunnies/bunny_token/internal/ledger"
	"github.com/alephbunnies/bunny_token/internal/middleware"
	"github.com/alephbunnies/bunny_token/internal/token"
)

func TestSignRequestVerifies(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, ed25519.SeedSize)
	priv := ed25519.NewKeyFromSeed(seed)
	req := middleware.SignedRequest{
		Method:         "post",
		Path:           "/api/v1/transfers",
		Timestamp:      1_700_000_000_000,
		Nonce:          "n-1",
		IdempotencyKey: "k1",
		Body:           []byte(`{"to":"0x01","amount":"10"}`),
	}

	headers := signRequest(priv, req)
	if len(headers) != 5 {
		t.Fatalf("expected five headers, got %v", headers)
	}
	want := []string{
		middleware.CallerTimestampHeader + ": 1700000000000",
		middleware.CallerNonceHeader + ": n-1",
		middleware.IdempotencyKeyHeader + ": k1",
	}
	for i, line := range want {
		if headers[i+2] != line {
			t.Fatalf("header %d: expected %q got %q", i+2, line, headers[i+2])
		}
	}

	sigHex := strings.TrimPrefix(headers[1], middleware.CallerSignatureHeader+": ")
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	pub := priv.Public().(ed25519.PublicKey)
	req.Method = "POST"
	if !ed25519.Verify(pub, middleware.SigningPayload(req), sig) {
		t.Fatalf("signature does not verify")
	}
	req.Nonce = "n-2"
	if ed25519.Verify(pub, middleware.SigningPayload(req), sig) {
		t.Fatalf("signature must cover the nonce")
	}
}

func TestSignRequestOmitsEmptyIdempotencyKey(t *testing.T) {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{1}, ed25519.SeedSize))
	headers := signRequest(priv, middleware.SignedRequest{Method: "POST", Path: "/x", Timestamp: 1, Nonce: "n"})
	if len(headers) != 4 {
		t.Fatalf("expected four headers, got %v", headers)
	}
}

func TestDecodeHexChecksSize(t *testing.T) {
	if _, err := decodeHex("0x0102", 3); err == nil {
		t.Fatalf("expected size error")
	}
	if b, err := decodeHex("0x010203", 3); err != nil || len(b) != 3 {
		t.Fatalf("unexpected result %v %v", b, err)
	}
}

func TestPrintKeyShowsDerivedAccount(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	var buf bytes.Buffer
	if err := printKey(&buf, pub, priv); err != nil {
		t.Fatalf("print key: %v", err)
	}
	id, _ := account.FromPublicKey(pub)
	if !strings.Contains(buf.String(), id.String()) {
		t.Fatalf("account missing from output: %s", buf.String())
	}
}

func TestPrintStatus(t *testing.T) {
	ctx := context.Background()
	creator := account.MustParse(strings.Repeat("0a", account.Size))
	marketing := account.MustParse(strings.Repeat("0b", account.Size))
	tok, err := token.New(ctx, ledger.NewInMemory(), *uint256.NewInt(5_000), creator, marketing)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	if err := printStatus(ctx, cmd, tok); err != nil {
		t.Fatalf("print status: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"total supply:       5000", "circulating supply: 0", creator.String(), marketing.String()} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}
