package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-booking/internal/api/dto"
	"github.com/gocomet/ride-booking/internal/api/middleware"
	"github.com/gocomet/ride-booking/internal/domain/driver"
	"github.com/gocomet/ride-booking/internal/domain/user"
	"github.com/gocomet/ride-booking/pkg/errors"
	"github.com/gocomet/ride-booking/pkg/logger"
	"github.com/gocomet/ride-booking/pkg/response"
	"github.com/google/uuid"
)

// Register creates a rider or driver account and returns the user with a
// signed token.
func (h *Handlers) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errors.ValidationFailed("Invalid registration payload", err))
		return
	}

	role := user.Role(req.Role)
	if !role.IsValid() || role == user.RoleAdmin {
		response.Error(c, errors.ValidationFailed("Role must be rider or driver", nil))
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		response.Error(c, errors.Internal("Failed to process password", err))
		return
	}

	u := &user.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}

	if err := h.users.Create(c.Request.Context(), u); err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.tokens.Issue(u)
	if err != nil {
		response.Error(c, errors.Internal("Failed to issue token", err))
		return
	}

	h.logger.Info("user registered",
		logger.String("user_id", u.ID.String()),
		logger.String("role", string(u.Role)))

	response.Created(c, "Registration successful", gin.H{
		"user":  u,
		"token": token,
	})
}

// RegisterDriver creates the driver profile for the authenticated
// driver-role user. The profile starts pending admin approval.
func (h *Handlers) RegisterDriver(c *gin.Context) {
	u := middleware.CurrentUser(c)

	var req dto.RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errors.ValidationFailed("Invalid driver registration payload", err))
		return
	}

	if _, err := h.drivers.GetByUserID(c.Request.Context(), u.ID); err == nil {
		response.Error(c, errors.ErrDuplicateDriver)
		return
	}

	inUse, err := h.drivers.LicenseOrPlateInUse(c.Request.Context(), req.LicenseNumber, req.Vehicle.PlateNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	if inUse {
		response.Error(c, errors.ErrDuplicateLicense)
		return
	}

	d := &driver.Driver{
		User:          *u,
		LicenseNumber: strings.TrimSpace(req.LicenseNumber),
		Vehicle: driver.Vehicle{
			Make:        req.Vehicle.Make,
			Model:       req.Vehicle.Model,
			Year:        req.Vehicle.Year,
			PlateNumber: strings.ToUpper(strings.TrimSpace(req.Vehicle.PlateNumber)),
			Color:       req.Vehicle.Color,
		},
	}

	if err := h.drivers.Create(c.Request.Context(), d); err != nil {
		response.Error(c, err)
		return
	}

	h.logger.Info("driver profile created",
		logger.String("user_id", u.ID.String()))

	response.Created(c, "Driver registration submitted for approval", d)
}

// Login authenticates by email and password.
func (h *Handlers) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errors.ValidationFailed("Invalid login payload", err))
		return
	}

	u, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Error(c, errors.ErrInvalidCredentials)
		return
	}
	if !h.hasher.Compare(u.PasswordHash, req.Password) {
		response.Error(c, errors.ErrInvalidCredentials)
		return
	}
	if !u.CanAuthenticate() {
		response.Error(c, errors.ErrAccountBlocked)
		return
	}

	token, err := h.tokens.Issue(u)
	if err != nil {
		response.Error(c, errors.Internal("Failed to issue token", err))
		return
	}

	response.Success(c, "Login successful", gin.H{
		"user":  u,
		"token": token,
	})
}

// Profile returns the authenticated account; drivers get the full driver
// variant.
func (h *Handlers) Profile(c *gin.Context) {
	u := middleware.CurrentUser(c)

	if u.Role == user.RoleDriver {
		d, err := h.drivers.GetByUserID(c.Request.Context(), u.ID)
		if err == nil {
			response.Success(c, "Profile retrieved", d)
			return
		}
		if err != errors.ErrDriverNotFound {
			response.Error(c, err)
			return
		}
		// Driver-role user without a profile yet falls through to the
		// plain account.
	}

	response.Success(c, "Profile retrieved", u)
}

// ChangePassword rotates the password after verifying the current one.
func (h *Handlers) ChangePassword(c *gin.Context) {
	u := middleware.CurrentUser(c)

	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errors.ValidationFailed("Invalid password payload", err))
		return
	}

	if !h.hasher.Compare(u.PasswordHash, req.CurrentPassword) {
		response.Error(c, errors.Unauthorized("Current password is incorrect", nil))
		return
	}

	hash, err := h.hasher.Hash(req.NewPassword)
	if err != nil {
		response.Error(c, errors.Internal("Failed to process password", err))
		return
	}

	if err := h.users.UpdatePassword(c.Request.Context(), u.ID, hash); err != nil {
		response.Error(c, err)
		return
	}

	h.logger.Info("password changed",
		logger.String("user_id", u.ID.String()))

	response.Success(c, "Password changed", nil)
}

// Deactivate turns the authenticated account off. The record stays; only the
// active flag flips, so an admin can restore it later.
func (h *Handlers) Deactivate(c *gin.Context) {
	u := middleware.CurrentUser(c)

	updated, err := h.users.SetActive(c.Request.Context(), u.ID, false)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logger.Info("account deactivated",
		logger.String("user_id", u.ID.String()))

	response.Success(c, "Account deactivated", updated)
}

// UpdateProfile changes name, email or phone with uniqueness checks.
func (h *Handlers) UpdateProfile(c *gin.Context) {
	u := middleware.CurrentUser(c)

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errors.ValidationFailed("Invalid profile payload", err))
		return
	}
	if req.Name == "" && req.Email == "" && req.Phone == "" {
		response.Error(c, errors.ValidationFailed("Nothing to update", nil))
		return
	}

	updated := *u
	if req.Name != "" {
		updated.Name = strings.TrimSpace(req.Name)
	}
	if req.Email != "" {
		updated.Email = strings.ToLower(strings.TrimSpace(req.Email))
	}
	if req.Phone != "" {
		updated.Phone = strings.TrimSpace(req.Phone)
	}

	if updated.Email != u.Email || updated.Phone != u.Phone {
		inUse, err := h.users.EmailOrPhoneInUse(c.Request.Context(), updated.Email, updated.Phone, u.ID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if inUse {
			response.Error(c, errors.ErrDuplicateUser)
			return
		}
	}

	if err := h.users.Update(c.Request.Context(), &updated); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, "Profile updated", &updated)
}
