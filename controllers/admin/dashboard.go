package admin

import (
	"time"

	"certipanel/database"
	"certipanel/helpers"
	"certipanel/models"
	"certipanel/reporting"

	"github.com/gofiber/fiber/v2"
)

func parsePeriod(c *fiber.Ctx) (string, *time.Time, *time.Time) {
	period := c.Query("period", reporting.PeriodOverall)
	var from, to *time.Time
	if raw := c.Query("date_from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			from = &t
		}
	}
	if raw := c.Query("date_to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			to = &t
		}
	}
	return period, from, to
}

// Dashboard returns the acting user's subtree sales summary: balance, totals,
// top plans, and sales bucketed per direct child.
func Dashboard(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	period, from, to := parsePeriod(c)
	svc := reporting.NewService(database.DB)
	summary, err := svc.DashboardSummary(actor, period, from, to)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Dashboard retrieved", summary)
}

// SalesByPlan returns the subtree's per-plan sales totals.
func SalesByPlan(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	period, from, to := parsePeriod(c)
	limit := c.QueryInt("limit", 20)

	svc := reporting.NewService(database.DB)
	rows, err := svc.SalesByPlanSubtree(actor, period, from, to, limit)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Plan sales retrieved", rows)
}

// SalesByChild returns subtree sales aggregated to the actor's direct
// children, with the actor's own purchases counted against itself.
func SalesByChild(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	period, from, to := parsePeriod(c)
	svc := reporting.NewService(database.DB)
	rows, err := svc.SalesByChildBucket(actor, period, from, to)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Child sales retrieved", rows)
}
