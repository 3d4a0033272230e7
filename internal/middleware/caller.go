package middleware

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/alephbunnies/bunny_token/internal/account"
)

const (
	CallerKeyHeader       = "X-Caller-Key"
	CallerSignatureHeader = "X-Caller-Signature"
	CallerTimestampHeader = "X-Caller-Timestamp"
	CallerNonceHeader     = "X-Caller-Nonce"
	CallerHeader          = "X-Caller"

	// DefaultMaxSkew bounds how far a signed timestamp may drift from the
	// server clock.
	DefaultMaxSkew = 5 * time.Minute

	maxNonceLength = 128
	callerLocal    = "caller"
)

// SignedRequest is the part of a request covered by the caller signature.
type SignedRequest struct {
	Method         string
	Path           string
	Timestamp      int64 // unix milliseconds
	Nonce          string
	IdempotencyKey string
	Body           []byte
}

// SigningPayload is the message a caller signs:
//
//	METHOD path
//	timestamp
//	nonce
//	idempotency key
//	body
func SigningPayload(r SignedRequest) []byte {
	ts := strconv.FormatInt(r.Timestamp, 10)
	out := make([]byte, 0, len(r.Method)+len(r.Path)+len(ts)+len(r.Nonce)+len(r.IdempotencyKey)+5+len(r.Body))
	out = append(out, strings.ToUpper(r.Method)...)
	out = append(out, ' ')
	out = append(out, r.Path...)
	out = append(out, '\n')
	out = append(out, ts...)
	out = append(out, '\n')
	out = append(out, r.Nonce...)
	out = append(out, '\n')
	out = append(out, r.IdempotencyKey...)
	out = append(out, '\n')
	return append(out, r.Body...)
}

// CallerAuthConfig configures CallerAuth.
type CallerAuthConfig struct {
	// TrustHeader accepts X-Caller verbatim. Development only.
	TrustHeader bool
	// MaxSkew defaults to DefaultMaxSkew.
	MaxSkew time.Duration
	// Nonces defaults to an in-process store sized for the skew window.
	Nonces NonceStore
	// Now defaults to time.Now.
	Now func() time.Time
}

// CallerAuth resolves the invoking account. Requests carry an ed25519 public
// key, a unix-millisecond timestamp, a nonce and a signature over
// SigningPayload; the caller is the account derived from that key. A
// timestamp outside MaxSkew or a nonce already used by the same caller is
// rejected, so a captured request cannot be submitted again.
func CallerAuth(cfg CallerAuthConfig) fiber.Handler {
	if cfg.MaxSkew <= 0 {
		cfg.MaxSkew = DefaultMaxSkew
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Nonces == nil {
		cfg.Nonces = NewMemoryNonceStore(defaultNonceCapacity, 2*cfg.MaxSkew)
	}

	return func(c *fiber.Ctx) error {
		if cfg.TrustHeader {
			if raw := c.Get(CallerHeader); raw != "" {
				id, err := account.Parse(raw)
				if err != nil {
					return fiber.NewError(http.StatusUnauthorized, "invalid caller")
				}
				c.Locals(callerLocal, id)
				return c.Next()
			}
		}

		key, err := hex.DecodeString(strings.TrimPrefix(c.Get(CallerKeyHeader), "0x"))
		if err != nil || len(key) != ed25519.PublicKeySize {
			return fiber.NewError(http.StatusUnauthorized, "missing or malformed caller key")
		}
		sig, err := hex.DecodeString(strings.TrimPrefix(c.Get(CallerSignatureHeader), "0x"))
		if err != nil || len(sig) != ed25519.SignatureSize {
			return fiber.NewError(http.StatusUnauthorized, "missing or malformed caller signature")
		}
		ts, err := strconv.ParseInt(c.Get(CallerTimestampHeader), 10, 64)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "missing or malformed caller timestamp")
		}
		nonce := c.Get(CallerNonceHeader)
		if nonce == "" || len(nonce) > maxNonceLength {
			return fiber.NewError(http.StatusUnauthorized, "missing or malformed caller nonce")
		}

		signed := SignedRequest{
			Method:         c.Method(),
			Path:           c.Path(),
			Timestamp:      ts,
			Nonce:          nonce,
			IdempotencyKey: c.Get(IdempotencyKeyHeader),
			Body:           c.Body(),
		}
		if !ed25519.Verify(key, SigningPayload(signed), sig) {
			return fiber.NewError(http.StatusUnauthorized, "invalid caller signature")
		}

		skew := cfg.Now().Sub(time.UnixMilli(ts))
		if skew > cfg.MaxSkew || skew < -cfg.MaxSkew {
			return fiber.NewError(http.StatusUnauthorized, "caller timestamp outside allowed window")
		}

		id, err := account.FromPublicKey(key)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		fresh, err := cfg.Nonces.Claim(ctx, id.String()+":"+nonce)
		if err != nil {
			return fiber.NewError(http.StatusServiceUnavailable, "nonce store unavailable")
		}
		if !fresh {
			return fiber.NewError(http.StatusUnauthorized, "caller nonce already used")
		}

		c.Locals(callerLocal, id)
		return c.Next()
	}
}

// Caller returns the account resolved by CallerAuth.
func Caller(c *fiber.Ctx) (account.ID, bool) {
	id, ok := c.Locals(callerLocal).(account.ID)
	return id, ok
}
