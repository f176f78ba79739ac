package admin

import (
	"certipanel/database"
	"certipanel/helpers"
	"certipanel/hierarchy"
	"certipanel/models"

	"github.com/gofiber/fiber/v2"
)

type CreateUserRequest struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Role         string `json:"role"`
	ParentUserID uint   `json:"parent_user_id"`
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Country      string `json:"country"`
}

// CreateUser creates a new member of the reseller tree. Non-root actors may
// only create direct children under themselves.
func CreateUser(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_REQUEST_BODY")
	}
	if req.Username == "" || req.PasswordHash == "" {
		return helpers.JSONError(c, "USERNAME_AND_PASSWORD_REQUIRED")
	}

	parentID := req.ParentUserID
	if parentID == 0 {
		parentID = actor.ID
	}
	if parentID != actor.ID && !actor.IsRoot() {
		return helpers.JSONErrorStatus(c, fiber.StatusForbidden, "SCOPE_DENIED")
	}

	role := req.Role
	if role == "" {
		if actor.IsRoot() && parentID == actor.ID {
			role = models.RoleReseller
		} else {
			role = models.RoleSubReseller
		}
	}
	if role == models.RoleRoot {
		return helpers.JSONError(c, "CANNOT_CREATE_ROOT")
	}

	dir := hierarchy.NewDirectory(database.DB)
	user, err := dir.CreateUserUnderParent(hierarchy.NewUser{
		Username:     req.Username,
		PasswordHash: req.PasswordHash,
		Role:         role,
		ParentID:     &parentID,
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		Country:      req.Country,
	})
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}

	return helpers.JSONSuccess(c, "User created successfully", fiber.Map{
		"id":        user.ID,
		"username":  user.Username,
		"role":      user.Role,
		"parent_id": user.ParentID,
		"path":      user.Path,
		"depth":     user.Depth,
	})
}

// DirectChildren lists the acting user's direct children.
func DirectChildren(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	dir := hierarchy.NewDirectory(database.DB)
	children, err := dir.DirectChildren(actor.ID)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Children retrieved", children)
}

// Subtree lists every user under the actor, the actor included.
func Subtree(c *fiber.Ctx) error {
	actor, ok := c.Locals("actor").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_ACTOR_SESSION")
	}

	dir := hierarchy.NewDirectory(database.DB)
	users, err := dir.SubtreeUsers(actor)
	if err != nil {
		return helpers.JSONEngineError(c, err)
	}
	return helpers.JSONSuccess(c, "Subtree retrieved", users)
}
