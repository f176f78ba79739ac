package purchase

import (
	"certipanel/database"
	"certipanel/helpers"
	"certipanel/models"
	"certipanel/purchase"

	"github.com/gofiber/fiber/v2"
)

type PurchaseRequest struct {
	PlanID   uint   `json:"plan_id"`
	Quantity int    `json:"quantity"`
	Note     string `json:"note"`
}

// Purchase executes a plan purchase for the acting user: debits the buyer,
// distributes profit up the reseller chain, and issues the coupon codes.
func Purchase(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	var req PurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_REQUEST_BODY")
	}
	if req.PlanID == 0 {
		return helpers.JSONError(c, "PLAN_ID_REQUIRED")
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	orch := purchase.NewOrchestrator(database.DB)
	result, err := orch.Purchase(actor, req.PlanID, req.Quantity, req.Note)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}

	return helpers.JSONSuccess(c, "Purchase completed successfully", result)
}
