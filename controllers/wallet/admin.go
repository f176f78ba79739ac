package wallet

import (
	"certipanel/database"
	"certipanel/helpers"
	"certipanel/wallet"

	"github.com/gofiber/fiber/v2"
)

type TopupRequest struct {
	UserID      uint   `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
	Note        string `json:"note"`
}

// Topup mints new funds into a wallet. Root only, enforced again in the store.
func Topup(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	var req TopupRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_REQUEST_BODY")
	}
	if req.UserID == 0 || req.AmountCents <= 0 {
		return helpers.JSONError(c, "USER_ID_AND_POSITIVE_AMOUNT_REQUIRED")
	}

	store := wallet.NewStore(database.DB)
	row, err := store.Topup(actor, req.UserID, req.AmountCents, req.Note)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}

	return helpers.JSONSuccess(c, "Topup completed successfully", fiber.Map{
		"tx_id": row.TxID,
		"row":   row,
	})
}

type SetBalanceRequest struct {
	UserID       uint   `json:"user_id"`
	DesiredCents int64  `json:"desired_cents"`
	Note         string `json:"note"`
}

// SetBalance adjusts a user's balance to an exact amount by transferring the
// difference against the user's parent.
func SetBalance(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	var req SetBalanceRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_REQUEST_BODY")
	}
	if req.UserID == 0 {
		return helpers.JSONError(c, "USER_ID_REQUIRED")
	}

	store := wallet.NewStore(database.DB)
	rows, err := store.SetBalanceViaParent(actor, req.UserID, req.DesiredCents, req.Note)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}

	return helpers.JSONSuccess(c, "Balance adjusted successfully", fiber.Map{
		"tx_id": rows[0].TxID,
		"rows":  rows,
	})
}

type DeactivateRequest struct {
	UserID uint   `json:"user_id"`
	Note   string `json:"note"`
}

// Deactivate disables a user's whole subtree and rolls its balances up to the
// acting user.
func Deactivate(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	var req DeactivateRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_REQUEST_BODY")
	}
	if req.UserID == 0 {
		return helpers.JSONError(c, "USER_ID_REQUIRED")
	}

	store := wallet.NewStore(database.DB)
	rollup, err := store.DeactivateSubtreeReturnBalance(actor, req.UserID, req.Note)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}

	return helpers.JSONSuccess(c, "Subtree deactivated successfully", rollup)
}
