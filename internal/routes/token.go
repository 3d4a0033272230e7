package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/alephbunnies/bunny_token/internal/token"
)

// RegisterTokenQueryRoutes wires the read-only token endpoints.
func RegisterTokenQueryRoutes(r fiber.Router, h *token.Handler) {
	r.Get("/token", h.Info)
	r.Get("/accounts/:account/balance", h.Balance)
	r.Get("/accounts/:account/airdrop", h.AirdropOf)
	r.Get("/airdrop/start-time", h.AirdropStart)
	r.Get("/supply/circulating", h.Circulating)
	r.Get("/privileged-accounts", h.Privileged)
	r.Get("/disbursement/pool", h.Pool)
}

// RegisterTokenCommandRoutes wires the state-changing endpoints behind guards,
// which must resolve the caller.
func RegisterTokenCommandRoutes(r fiber.Router, h *token.Handler, guards ...fiber.Handler) {
	with := func(final fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, guards...), final)
	}
	r.Post("/transfers", with(h.Transfer)...)
	r.Post("/fee-exemptions", with(h.ExcludeFromFees)...)
	r.Post("/airdrops", with(h.AddToAirdrop)...)
}
