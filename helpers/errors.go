package helpers

import (
	"errors"
	"log"

	"certipanel/coupons"
	"certipanel/hierarchy"
	"certipanel/pricing"
	"certipanel/purchase"
	"certipanel/wallet"

	"github.com/gofiber/fiber/v2"
)

// JSONEngineError maps engine errors onto the response envelope. Expected
// user errors surface with specific codes; integrity errors (broken trees,
// conservation or floor corruption) are logged loudly and returned as a
// generic failure so pricing internals never leak.
func JSONEngineError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, wallet.ErrInsufficientBalance):
		return JSONError(c, "INSUFFICIENT_BALANCE")
	case errors.Is(err, wallet.ErrUserNotFound), errors.Is(err, hierarchy.ErrUserNotFound):
		return JSONErrorStatus(c, fiber.StatusNotFound, "USER_NOT_FOUND")
	case errors.Is(err, wallet.ErrForbiddenTransfer):
		return JSONErrorStatus(c, fiber.StatusForbidden, "FORBIDDEN_TRANSFER")
	case errors.Is(err, pricing.ErrPricingMissing):
		return JSONError(c, "PRICING_MISSING")
	case errors.Is(err, pricing.ErrFloorViolation):
		return JSONError(c, "PRICE_BELOW_PARENT_COST")
	case errors.Is(err, pricing.ErrEdgeLocked):
		return JSONErrorStatus(c, fiber.StatusForbidden, "EDGE_OVERRIDDEN")
	case errors.Is(err, pricing.ErrForbidden), errors.Is(err, coupons.ErrForbidden):
		return JSONErrorStatus(c, fiber.StatusForbidden, "FORBIDDEN")
	case errors.Is(err, purchase.ErrPlanUnavailable):
		return JSONError(c, "PLAN_UNAVAILABLE")
	case errors.Is(err, coupons.ErrCouponNotFound):
		return JSONErrorStatus(c, fiber.StatusNotFound, "COUPON_NOT_FOUND")
	case errors.Is(err, coupons.ErrBadTransition):
		return JSONError(c, "INVALID_COUPON_STATUS")
	case errors.Is(err, wallet.ErrWallet):
		return JSONError(c, "INVALID_WALLET_OPERATION")
	case errors.Is(err, hierarchy.ErrBrokenHierarchy),
		errors.Is(err, purchase.ErrNegativePricing),
		errors.Is(err, purchase.ErrConservation),
		errors.Is(err, coupons.ErrCodeSpace):
		log.Printf("🔴 integrity error: %v", err)
		return JSONErrorStatus(c, fiber.StatusInternalServerError, "INTERNAL_ERROR")
	default:
		log.Printf("unhandled error: %v", err)
		return JSONErrorStatus(c, fiber.StatusInternalServerError, "INTERNAL_ERROR")
	}
}
