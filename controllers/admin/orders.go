package admin

import (
	"time"

	"certipanel/database"
	"certipanel/helpers"
	"certipanel/models"
	"certipanel/reporting"

	"github.com/gofiber/fiber/v2"
)

// ListOrders pages the acting user's subtree orders. Buyers deeper than one
// hop appear only as their direct-child bucket.
func ListOrders(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	filters := reporting.OrderFilters{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if raw := c.QueryInt("plan_id", 0); raw > 0 {
		id := uint(raw)
		filters.PlanID = &id
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
	page, err := svc.ListOrdersSubtree(actor, filters)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Orders retrieved", page)
}
