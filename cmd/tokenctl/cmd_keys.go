package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alephbunnies/bunny_token/internal/account"
	"github.com/alephbunnies/bunny_token/internal/middleware"
)

var cmdKeygen = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an ed25519 caller key",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		pub, priv, err := ed25519.GenerateKey(nil)
		check(err)
		check(printKey(cmd.OutOrStdout(), pub, priv))
	},
}

var cmdAccount = &cobra.Command{
	Use:   "account [public key]",
	Short: "Print the account derived from a public key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pub, err := decodeHex(args[0], ed25519.PublicKeySize)
		checkf(err, "public key")
		id, err := account.FromPublicKey(pub)
		check(err)
		fmt.Fprintln(cmd.OutOrStdout(), id)
	},
}

var cmdSign = &cobra.Command{
	Use:   "sign [method] [path]",
	Short: "Sign a request and print the caller headers, valid once within the skew window",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		seed, err := decodeHex(flagSign.Seed, ed25519.SeedSize)
		checkf(err, "seed")
		headers := signRequest(ed25519.NewKeyFromSeed(seed), middleware.SignedRequest{
			Method:         args[0],
			Path:           args[1],
			Timestamp:      time.Now().UnixMilli(),
			Nonce:          uuid.NewString(),
			IdempotencyKey: flagSign.IdempotencyKey,
			Body:           []byte(flagSign.Body),
		})
		for _, h := range headers {
			fmt.Fprintln(cmd.OutOrStdout(), h)
		}
	},
}

var flagSign struct {
	Seed           string
	Body           string
	IdempotencyKey string
}

func init() {
	cmdSign.Flags().StringVar(&flagSign.Seed, "seed", "", "Hex-encoded ed25519 seed")
	cmdSign.Flags().StringVar(&flagSign.Body, "body", "", "Exact request body to sign")
	cmdSign.Flags().StringVar(&flagSign.IdempotencyKey, "idempotency-key", "", "Idempotency-Key header to send (signed)")
	_ = cmdSign.MarkFlagRequired("seed")

	cmdMain.AddCommand(cmdKeygen, cmdAccount, cmdSign)
}

func printKey(w io.Writer, pub ed25519.PublicKey, priv ed25519.PrivateKey) error {
	id, err := account.FromPublicKey(pub)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "seed:       %x\n", priv.Seed())
	fmt.Fprintf(w, "public key: %x\n", []byte(pub))
	fmt.Fprintf(w, "account:    %s\n", id)
	return nil
}

// signRequest returns the header lines authenticating a request.
func signRequest(priv ed25519.PrivateKey, req middleware.SignedRequest) []string {
	pub := priv.Public().(ed25519.PublicKey)
	sig := ed25519.Sign(priv, middleware.SigningPayload(req))
	headers := []string{
		fmt.Sprintf("%s: %x", middleware.CallerKeyHeader, []byte(pub)),
		fmt.Sprintf("%s: %x", middleware.CallerSignatureHeader, sig),
		fmt.Sprintf("%s: %d", middleware.CallerTimestampHeader, req.Timestamp),
		fmt.Sprintf("%s: %s", middleware.CallerNonceHeader, req.Nonce),
	}
	if req.IdempotencyKey != "" {
		headers = append(headers, fmt.Sprintf("%s: %s", middleware.IdempotencyKeyHeader, req.IdempotencyKey))
	}
	return headers
}

func decodeHex(s string, size int) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, err
	}
	if len(b) != size {
		return nil, fmt.Errorf("expected %d bytes, got %d", size, len(b))
	}
	return b, nil
}
