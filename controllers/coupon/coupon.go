package coupon

import (
	"certipanel/coupons"
	"certipanel/database"
	"certipanel/helpers"
	"certipanel/models"

	"github.com/gofiber/fiber/v2"
)

type GenerateRequest struct {
	OwnerUserID uint   `json:"owner_user_id"`
	PlanID      uint   `json:"plan_id"`
	Quantity    int    `json:"quantity"`
	Note        string `json:"note"`
}

// Generate mints coupon codes for an owner without a purchase. Root may
// target anyone; a seller only itself or a direct child.
func Generate(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_REQUEST_BODY")
	}
	if req.PlanID == 0 {
		return helpers.JSONError(c, "PLAN_ID_REQUIRED")
	}
	if req.OwnerUserID == 0 {
		req.OwnerUserID = actor.ID
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	svc := coupons.NewService(database.DB)
	created, err := svc.GenerateForOwner(actor, req.OwnerUserID, req.PlanID, req.Quantity, req.Note)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Coupons generated successfully", created)
}

// List returns coupons owned by users inside the viewer's subtree.
func List(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	svc := coupons.NewService(database.DB)
	rows, err := svc.ListScoped(actor, c.Query("status"), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Coupons retrieved", rows)
}

type ReserveRequest struct {
	UDID string `json:"udid"`
}

func Reserve(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	var req ReserveRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_REQUEST_BODY")
	}

	svc := coupons.NewService(database.DB)
	cp, err := svc.Reserve(actor, c.Params("code"), req.UDID)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Coupon reserved", cp)
}

func Unreserve(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	svc := coupons.NewService(database.DB)
	cp, err := svc.Unreserve(actor, c.Params("code"))
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Coupon released", cp)
}

type MarkUsedRequest struct {
	UDID string `json:"udid"`
}

func MarkUsed(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	var req MarkUsedRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_REQUEST_BODY")
	}

	svc := coupons.NewService(database.DB)
	cp, err := svc.MarkUsed(actor, c.Params("code"), req.UDID)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Coupon marked used", cp)
}

func Void(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	svc := coupons.NewService(database.DB)
	cp, err := svc.Void(actor, c.Params("code"))
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Coupon voided", cp)
}

type MarkFailedRequest struct {
	Step   string `json:"step"`
	Reason string `json:"reason"`
}

func MarkFailed(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	var req MarkFailedRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_REQUEST_BODY")
	}

	svc := coupons.NewService(database.DB)
	cp, err := svc.MarkFailed(actor, c.Params("code"), req.Step, req.Reason)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Failure recorded", cp)
}

// Events returns a coupon's audit trail with actors bucketed to the viewer's
// direct children so deep-subtree identities stay hidden.
func Events(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	svc := coupons.NewService(database.DB)
	events, err := svc.EventsForCode(actor, c.Params("code"))
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Coupon events retrieved", fiber.Map{
		"coupon_code": c.Params("code"),
		"events":      events,
	})
}
