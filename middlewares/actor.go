package middlewares

import (
	"strconv"
	"time"

	"certipanel/database"
	"certipanel/helpers"
	"certipanel/models"

	"github.com/gofiber/fiber/v2"
)

// ActorAuth loads the authenticated actor into c.Locals("actor"). Sessions
// come from the auth layer (out of scope here); trusted service callers may
// pass X-Actor-ID directly.
func ActorAuth(c *fiber.Ctx) error {
	sid := c.Get("X-Session-ID")
	actorID := c.Get("X-Actor-ID")

	var user models.User

	switch {
	case sid != "":
		var session models.Session
		if err := database.DB.Where("sid = ? AND expires_at > ?", sid, time.Now()).First(&session).Error; err != nil {
			return helpers.JSONErrorStatus(c, fiber.StatusUnauthorized, "INVALID_SESSION")
		}
		if err := database.DB.First(&user, session.UserID).Error; err != nil {
			return helpers.JSONErrorStatus(c, fiber.StatusUnauthorized, "INVALID_SESSION")
		}
	case actorID != "":
		id, err := strconv.ParseUint(actorID, 10, 64)
		if err != nil {
			return helpers.JSONErrorStatus(c, fiber.StatusUnauthorized, "INVALID_ACTOR_ID")
		}
		if err := database.DB.First(&user, uint(id)).Error; err != nil {
			return helpers.JSONErrorStatus(c, fiber.StatusUnauthorized, "INVALID_ACTOR_ID")
		}
	default:
		return helpers.JSONErrorStatus(c, fiber.StatusUnauthorized, "SESSION_OR_ACTOR_REQUIRED")
	}

	if !user.IsActive {
		return helpers.JSONErrorStatus(c, fiber.StatusUnauthorized, "USER_INACTIVE")
	}

	c.Locals("actor", user)
	return c.Next()
}

// RequireRoot gates root-only routes. Must run after ActorAuth.
func RequireRoot(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok || !actor.IsRoot() {
		return helpers.JSONErrorStatus(c, fiber.StatusForbidden, "ROOT_ONLY")
	}
	return c.Next()
}
