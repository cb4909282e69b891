package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-booking/internal/api/dto"
	"github.com/gocomet/ride-booking/internal/api/middleware"
	"github.com/gocomet/ride-booking/internal/domain/driver"
	"github.com/gocomet/ride-booking/internal/domain/report"
	"github.com/gocomet/ride-booking/pkg/errors"
	"github.com/gocomet/ride-booking/pkg/logger"
	"github.com/gocomet/ride-booking/pkg/response"
	"github.com/redis/go-redis/v9"
)

const driverGeoKey = "drivers:locations"

// UpdateAvailability flips the authenticated driver online or offline,
// optionally recording a location when going online.
func (h *Handlers) UpdateAvailability(c *gin.Context) {
	u := middleware.CurrentUser(c)

	var req dto.AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errors.ValidationFailed("Invalid availability payload", err))
		return
	}

	status := driver.Status(req.Status)
	if (req.Latitude == nil) != (req.Longitude == nil) {
		response.Error(c, errors.ValidationFailed("Latitude and longitude must be set together", nil))
		return
	}

	d, err := h.drivers.SetAvailability(c.Request.Context(), u.ID, status, req.Latitude, req.Longitude)
	if err != nil {
		response.Error(c, err)
		return
	}

	if status == driver.StatusOnline && req.Latitude != nil {
		h.geoIndex(c, u.ID.String(), *req.Latitude, *req.Longitude)
	}

	response.Success(c, "Availability updated", d)
}

// UpdateLocation stores the driver's current position in Postgres and the
// Redis geo index.
func (h *Handlers) UpdateLocation(c *gin.Context) {
	u := middleware.CurrentUser(c)

	var req dto.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errors.ValidationFailed("Invalid location payload", err))
		return
	}

	if err := h.drivers.UpdateLocation(c.Request.Context(), u.ID, req.Latitude, req.Longitude); err != nil {
		response.Error(c, err)
		return
	}

	h.geoIndex(c, u.ID.String(), req.Latitude, req.Longitude)

	response.Success(c, "Location updated", gin.H{
		"latitude":  req.Latitude,
		"longitude": req.Longitude,
	})
}

// geoIndex mirrors the driver position into the Redis geo set, best effort.
func (h *Handlers) geoIndex(c *gin.Context, driverID string, lat, lng float64) {
	err := h.redis.GeoAdd(c.Request.Context(), driverGeoKey, &redis.GeoLocation{
		Name:      driverID,
		Latitude:  lat,
		Longitude: lng,
	}).Err()
	if err != nil {
		h.logger.Warn("failed to update driver geo index",
			logger.String("driver_id", driverID),
			logger.Err(err))
	}
}

// Earnings returns lifetime totals plus a period aggregation of completed
// rides.
func (h *Handlers) Earnings(c *gin.Context) {
	u := middleware.CurrentUser(c)

	filter := report.EarningsFilter{}
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
		t = t.Add(24*time.Hour - time.Nanosecond)
		filter.EndDate = &t
	}

	earnings, err := h.reports.DriverEarnings(c.Request.Context(), u.ID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, "Earnings retrieved", earnings)
}

// UpdateVehicle replaces the registered vehicle details.
func (h *Handlers) UpdateVehicle(c *gin.Context) {
	u := middleware.CurrentUser(c)

	var req dto.VehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errors.ValidationFailed("Invalid vehicle payload", err))
		return
	}

	d, err := h.drivers.UpdateVehicle(c.Request.Context(), u.ID, driver.Vehicle{
		Make:        req.Make,
		Model:       req.Model,
		Year:        req.Year,
		PlateNumber: req.PlateNumber,
		Color:       req.Color,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, "Vehicle updated", d)
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}
