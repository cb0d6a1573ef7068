package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/service"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// UsersHandler exposes the /users account endpoints.
type UsersHandler struct {
	accounts *service.AccountService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(accounts *service.AccountService) *UsersHandler {
	return &UsersHandler{accounts: accounts}
}

// CreateSuperuser handles POST /users/create_superuser.
func (h *UsersHandler) CreateSuperuser(c *fiber.Ctx) error {
	var req dto.CreateSuperuserRequest
	if err := c.QueryParser(&req); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}

	user, err := h.accounts.CreateSuperuser(c.UserContext(), req.Email, req.Username, req.PlainPassword)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Register handles POST /users/create.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}

	user, err := h.accounts.Register(c.UserContext(), req.ToRegistration())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// GetMe handles GET /users/get_me.
func (h *UsersHandler) GetMe(c *fiber.Ctx) error {
	identity, _ := auth.CurrentUser(c)
	user, err := h.accounts.GetSelf(identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// AdminOnly handles GET /users/admin-only/.
func (h *UsersHandler) AdminOnly(c *fiber.Ctx) error {
	identity, _ := auth.CurrentUser(c)
	probe, err := h.accounts.AdminOnlyProbe(identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": probe})
}

// GetByID handles GET /users/:user_id.
func (h *UsersHandler) GetByID(c *fiber.Ctx) error {
	userID, err := parseUserID(c.Params("user_id"))
	if err != nil {
		return err
	}
	identity, _ := auth.CurrentUser(c)

	user, err := h.accounts.GetByID(c.UserContext(), userID, identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// ChangePassword handles PUT /users/change_password?user_id=.
func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	userID, err := parseUserID(c.Query("user_id"))
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}
	identity, _ := auth.CurrentUser(c)

	if err := h.accounts.ChangePassword(c.UserContext(), userID, req.CurrentPassword, req.NewPassword, identity); err != nil {
		return err
	}
	c.Status(http.StatusOK)
	return nil
}

// UpdateUser handles PUT /users/update_user?user_id=&verify_password=.
func (h *UsersHandler) UpdateUser(c *fiber.Ctx) error {
	userID, err := parseUserID(c.Query("user_id"))
	if err != nil {
		return err
	}
	var req dto.UpdateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}
	identity, _ := auth.CurrentUser(c)

	user, err := h.accounts.UpdateProfile(c.UserContext(), userID, c.Query("verify_password"), req.ToProfileUpdate(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// parseUserID only checks the syntax; unknown ids, including zero and negatives, are a NotFound from the service.
func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError("user_id must be an integer", map[string]any{"user_id": raw})
	}
	return id, nil
}
