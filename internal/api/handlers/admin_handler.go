package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-booking/internal/api/dto"
	"github.com/gocomet/ride-booking/internal/domain/driver"
	"github.com/gocomet/ride-booking/internal/domain/ride"
	"github.com/gocomet/ride-booking/internal/domain/user"
	"github.com/gocomet/ride-booking/pkg/errors"
	"github.com/gocomet/ride-booking/pkg/logger"
	"github.com/gocomet/ride-booking/pkg/response"
	"github.com/google/uuid"
)

// ListUsers returns a paginated user listing with role filter and search.
func (h *Handlers) ListUsers(c *gin.Context) {
	page, limit := pageParams(c)

	users, total, err := h.users.List(c.Request.Context(), user.ListFilter{
		Role:   user.Role(c.Query("role")),
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, "Users retrieved", paginated{
		Items: users,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetUser returns a single account; driver accounts include the driver
// profile when one exists.
func (h *Handlers) GetUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, errors.ValidationFailed("Invalid user id", err))
		return
	}

	u, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if u.Role == user.RoleDriver {
		if d, err := h.drivers.GetByUserID(c.Request.Context(), userID); err == nil {
			response.Success(c, "User retrieved", d)
			return
		}
	}

	response.Success(c, "User retrieved", u)
}

// GetRide returns a single ride with its full lifecycle record.
func (h *Handlers) GetRide(c *gin.Context) {
	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, errors.ValidationFailed("Invalid ride id", err))
		return
	}

	rd, err := h.rides.GetByID(c.Request.Context(), rideID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, "Ride retrieved", rd)
}

// ListDrivers returns a paginated driver listing with status and approval
// filters.
func (h *Handlers) ListDrivers(c *gin.Context) {
	page, limit := pageParams(c)

	drivers, total, err := h.drivers.List(c.Request.Context(), driver.ListFilter{
		Status:         driver.Status(c.Query("status")),
		ApprovalStatus: driver.ApprovalStatus(c.Query("approval_status")),
		Page:           page,
		Limit:          limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, "Drivers retrieved", paginated{
		Items: drivers,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// ListRides returns a paginated ride listing with status and date filters.
func (h *Handlers) ListRides(c *gin.Context) {
	page, limit := pageParams(c)

	filter := ride.AdminFilter{
		Status: ride.Status(c.Query("status")),
		Page:   page,
		Limit:  limit,
	}
	if v := c.Query("start_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			response.Error(c, errors.ValidationFailed("Invalid start_date", err))
			return
		}
		filter.StartDate = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			response.Error(c, errors.ValidationFailed("Invalid end_date", err))
			return
		}
		filter.EndDate = &t
	}

	rideList, total, err := h.rides.ListAll(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, "Rides retrieved", paginated{
		Items: rideList,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// ApproveDriver moves a pending or suspended driver to approved.
func (h *Handlers) ApproveDriver(c *gin.Context) {
	h.setDriverApproval(c, driver.ApprovalApproved, "Driver approved")
}

// SuspendDriver suspends a driver and forces them offline.
func (h *Handlers) SuspendDriver(c *gin.Context) {
	h.setDriverApproval(c, driver.ApprovalSuspended, "Driver suspended")
}

func (h *Handlers) setDriverApproval(c *gin.Context, status driver.ApprovalStatus, message string) {
	driverID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, errors.ValidationFailed("Invalid driver id", err))
		return
	}

	if _, err := h.drivers.GetByUserID(c.Request.Context(), driverID); err != nil {
		response.Error(c, err)
		return
	}

	d, err := h.drivers.SetApproval(c.Request.Context(), driverID, status)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logger.Info("driver approval changed",
		logger.String("driver_id", driverID.String()),
		logger.String("approval_status", string(status)))

	response.Success(c, message, d)
}

// BlockUser blocks an account with a reason. Blocking a driver also suspends
// the driver profile.
func (h *Handlers) BlockUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, errors.ValidationFailed("Invalid user id", err))
		return
	}

	var req dto.BlockUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errors.ValidationFailed("Invalid block payload", err))
		return
	}

	u, err := h.users.SetBlocked(c.Request.Context(), userID, true, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	if u.Role == user.RoleDriver {
		if _, err := h.drivers.SetApproval(c.Request.Context(), userID, driver.ApprovalSuspended); err != nil && err != errors.ErrDriverNotFound {
			h.logger.Warn("failed to suspend driver profile on block",
				logger.String("user_id", userID.String()),
				logger.Err(err))
		}
	}

	response.Success(c, "User blocked", u)
}

// UnblockUser lifts the block from an account.
func (h *Handlers) UnblockUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, errors.ValidationFailed("Invalid user id", err))
		return
	}

	u, err := h.users.SetBlocked(c.Request.Context(), userID, false, "")
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, "User unblocked", u)
}

// DashboardStats returns the admin platform snapshot.
func (h *Handlers) DashboardStats(c *gin.Context) {
	stats, err := h.reports.DashboardStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, "Dashboard stats retrieved", stats)
}
