package pricing

import (
	"certipanel/database"
	"certipanel/helpers"
	"certipanel/models"
	"certipanel/pricing"

	"github.com/gofiber/fiber/v2"
)

type BasePriceRequest struct {
	PlanID     uint   `json:"plan_id"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency"`
}

// UpsertBasePrice sets the platform-wide base cost of a plan. Root only.
func UpsertBasePrice(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	var req BasePriceRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_REQUEST_BODY")
	}
	if req.PlanID == 0 || req.PriceCents <= 0 {
		return helpers.JSONError(c, "PLAN_ID_AND_POSITIVE_PRICE_REQUIRED")
	}

	resolver := pricing.NewResolver(database.DB)
	base, err := resolver.UpsertBasePrice(actor, req.PlanID, req.PriceCents, req.Currency)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Base price saved successfully", base)
}

type EdgeRequest struct {
	ParentUserID uint   `json:"parent_user_id"`
	ChildUserID  uint   `json:"child_user_id"`
	PlanID       uint   `json:"plan_id"`
	PriceCents   int64  `json:"price_cents"`
	Currency     string `json:"currency"`
}

// UpsertEdge sets the selling price a parent charges one direct child for a
// plan. Non-root callers may only price their own outgoing edges and never
// below their own cost.
func UpsertEdge(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	var req EdgeRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_REQUEST_BODY")
	}
	if req.ChildUserID == 0 || req.PlanID == 0 || req.PriceCents <= 0 {
		return helpers.JSONError(c, "CHILD_PLAN_AND_POSITIVE_PRICE_REQUIRED")
	}
	if req.ParentUserID == 0 {
		req.ParentUserID = actor.ID
	}

	resolver := pricing.NewResolver(database.DB)
	edge, err := resolver.UpsertEdge(actor, req.ParentUserID, req.ChildUserID, req.PlanID, req.PriceCents, req.Currency)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Price edge saved successfully", edge)
}

// ListEdges returns the acting user's outgoing price edges, optionally
// filtered by plan. Root may inspect any parent via parent_user_id.
func ListEdges(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	parentID := actor.ID
	if raw := c.QueryInt("parent_user_id", 0); raw > 0 {
		if uint(raw) != actor.ID && !actor.IsRoot() {
			return helpers.JSONErrorStatus(c, fiber.StatusForbidden, "SCOPE_DENIED")
		}
		parentID = uint(raw)
	}

	var planID *uint
	if raw := c.QueryInt("plan_id", 0); raw > 0 {
		id := uint(raw)
		planID = &id
	}

	resolver := pricing.NewResolver(database.DB)
	edges, err := resolver.ListEdgesForParent(parentID, planID)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Price edges retrieved", edges)
}
