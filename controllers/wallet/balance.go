package wallet

import (
	"strconv"
	"time"

	"certipanel/database"
	"certipanel/helpers"
	"certipanel/models"
	"certipanel/reporting"
	"certipanel/wallet"

	"github.com/gofiber/fiber/v2"
)

func actorFromCtx(c *fiber.Ctx) (models.User, bool) {
	actor, ok := c.Locals("actor").(models.User)
	return actor, ok
}

// targetUser resolves the user a scoped read is about: the actor itself, or
// a user_id query the actor is allowed to see (self, direct child, or root).
// On failure the response is already written and ok is false.
func targetUser(c *fiber.Ctx, actor models.User) (models.User, bool, error) {
	raw := c.Query("user_id")
	if raw == "" {
		return actor, true, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return models.User{}, false, helpers.JSONError(c, "INVALID_USER_ID")
	}
	var target models.User
	if err := database.DB.First(&target, uint(id)).Error; err != nil {
		return models.User{}, false, helpers.JSONErrorStatus(c, fiber.StatusNotFound, "USER_NOT_FOUND")
	}
	if !reporting.CanViewUser(actor, target) {
		return models.User{}, false, helpers.JSONErrorStatus(c, fiber.StatusForbidden, "SCOPE_DENIED")
	}
	return target, true, nil
}

func GetBalance(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	target, ok, resp := targetUser(c, actor)
	if !ok {
		return resp
	}

	store := wallet.NewStore(database.DB)
	acc, err := store.GetBalance(target.ID)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}

	return helpers.JSONSuccess(c, "Balance retrieved successfully", fiber.Map{
		"user_id":       acc.UserID,
		"balance_cents": acc.BalanceCents,
		"balance":       reporting.Money(acc.BalanceCents),
		"currency":      acc.Currency,
		"updated_at":    acc.UpdatedAt,
	})
}

func History(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	target, ok, resp := targetUser(c, actor)
	if !ok {
		return resp
	}

	filters := reporting.LedgerFilters{
		EntryKind: c.Query("entry_kind"),
		TxID:      c.Query("tx_id"),
		Limit:     c.QueryInt("limit", 50),
		Offset:    c.QueryInt("offset", 0),
	}
	if raw := c.Query("date_from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.DateFrom = &t
		}
	}
	if raw := c.Query("date_to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.DateTo = &t
		}
	}

	svc := reporting.NewService(database.DB)
	page, err := svc.ListLedger(target.ID, filters)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Balance history retrieved", page)
}

func TxDetails(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	target, ok, resp := targetUser(c, actor)
	if !ok {
		return resp
	}

	txID := c.Params("tx_id")
	if txID == "" {
		return helpers.JSONError(c, "TX_ID_REQUIRED")
	}

	svc := reporting.NewService(database.DB)
	rows, err := svc.TxDetails(target.ID, txID)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Transaction details retrieved", fiber.Map{
		"tx_id": txID,
		"rows":  rows,
	})
}
