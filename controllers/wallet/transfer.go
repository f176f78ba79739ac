package wallet

import (
	"certipanel/database"
	"certipanel/helpers"
	"certipanel/wallet"

	"github.com/gofiber/fiber/v2"
)

type TransferRequest struct {
	ChildUserID uint   `json:"child_user_id"`
	AmountCents int64  `json:"amount_cents"`
	Note        string `json:"note"`
}

// Transfer moves funds from the acting user to one of its direct children.
func Transfer(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_REQUEST_BODY")
	}
	if req.ChildUserID == 0 || req.AmountCents <= 0 {
		return helpers.JSONError(c, "CHILD_USER_ID_AND_POSITIVE_AMOUNT_REQUIRED")
	}

	store := wallet.NewStore(database.DB)
	rows, err := store.TransferToChild(actor, req.ChildUserID, req.AmountCents, req.Note)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}

	return helpers.JSONSuccess(c, "Transfer completed successfully", fiber.Map{
		"tx_id": rows[0].TxID,
		"rows":  rows,
	})
}
