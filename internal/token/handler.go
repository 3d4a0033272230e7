package token

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/holiman/uint256"

	"github.com/alephbunnies/bunny_token/internal/account"
	"github.com/alephbunnies/bunny_token/internal/ledger"
	"github.com/alephbunnies/bunny_token/internal/middleware"
)

// Handler exposes token endpoints.
type Handler struct {
	token *Token
}

// NewHandler constructs a token handler.
func NewHandler(token *Token) *Handler {
	return &Handler{token: token}
}

type transferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
	Data   []byte `json:"data"`
}

type accountRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// Info returns token metadata and global counters.
func (h *Handler) Info(c *fiber.Ctx) error {
	ctx := c.UserContext()
	supply, err := h.token.TotalSupply(ctx)
	if err != nil {
		return mapError(err)
	}
	threshold := h.token.DisbursementThreshold()
	return c.JSON(fiber.Map{
		"name":                   Name,
		"symbol":                 Symbol,
		"decimals":               Decimals,
		"total_supply":           supply.Dec(),
		"creator":                h.token.Creator().String(),
		"marketing_wallet":       h.token.MarketingWallet().String(),
		"airdrop_start_time":     uint64(h.token.AirdropStartTime()),
		"disbursement_threshold": threshold.Dec(),
	})
}

// Balance returns raw and spendable balances of an account.
func (h *Handler) Balance(c *fiber.Ctx) error {
	acct, err := account.Parse(c.Params("account"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ctx := c.UserContext()
	raw, err := h.token.BalanceOf(ctx, acct)
	if err != nil {
		return mapError(err)
	}
	spendable, err := h.token.SpendableBalance(ctx, acct)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"account":   acct.String(),
		"balance":   raw.Dec(),
		"spendable": spendable.Dec(),
	})
}

// AirdropOf returns an account's airdrop allocation.
func (h *Handler) AirdropOf(c *fiber.Ctx) error {
	acct, err := account.Parse(c.Params("account"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := h.token.Airdrop(c.UserContext(), acct)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"account": acct.String(), "airdrop": amount.Dec()})
}

// AirdropStart returns the unlock time in milliseconds since the epoch.
func (h *Handler) AirdropStart(c *fiber.Ctx) error {
	ts := h.token.AirdropStartTime()
	return c.JSON(fiber.Map{
		"airdrop_start_time": uint64(ts),
		"unlocks_at":         ts.Time().UTC(),
	})
}

// Circulating returns the circulating supply.
func (h *Handler) Circulating(c *fiber.Ctx) error {
	v, err := h.token.CirculatingSupply(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"circulating_supply": v.Dec()})
}

// Privileged lists fee-exempt accounts in insertion order.
func (h *Handler) Privileged(c *fiber.Ctx) error {
	accounts, err := h.token.PrivilegedAccounts(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.String())
	}
	return c.JSON(fiber.Map{"accounts": out})
}

// Pool returns the undisbursed fee pool.
func (h *Handler) Pool(c *fiber.Ctx) error {
	v, err := h.token.DisbursementPool(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	threshold := h.token.DisbursementThreshold()
	return c.JSON(fiber.Map{
		"disbursement_pool": v.Dec(),
		"threshold":         threshold.Dec(),
	})
}

// Transfer moves tokens out of the caller's account.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	to, err := account.Parse(req.To)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid recipient: "+err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}

	res, err := h.token.Transfer(c.UserContext(), caller, to, amount, req.Data)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"from":      res.From.String(),
		"to":        res.To.String(),
		"amount":    res.Amount.Dec(),
		"fee":       res.Fee.Dec(),
		"received":  res.Received.Dec(),
		"disbursed": res.Disbursed.Dec(),
	})
}

// ExcludeFromFees exempts an account from transfer fees. Creator only.
func (h *Handler) ExcludeFromFees(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req accountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acct, err := account.Parse(req.Account)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.token.ExcludeFromFees(c.UserContext(), caller, acct); err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"account": acct.String(), "exempt": true})
}

// AddToAirdrop allocates and funds a locked airdrop. Creator only.
func (h *Handler) AddToAirdrop(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req accountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acct, err := account.Parse(req.Account)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}
	if err := h.token.AddToAirdrop(c.UserContext(), caller, acct, amount); err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"account": acct.String(), "airdrop": amount.Dec()})
}

func parseAmount(s string) (uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return uint256.Int{}, fiber.NewError(http.StatusBadRequest, "invalid amount")
	}
	return *v, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrZeroSenderAddress),
		errors.Is(err, ErrZeroRecipientAddress):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrAllocationExceedsBalance),
		errors.Is(err, ledger.ErrBalanceOverflow):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
