package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-booking/internal/api/dto"
	"github.com/gocomet/ride-booking/internal/api/middleware"
	"github.com/gocomet/ride-booking/internal/domain/ride"
	"github.com/gocomet/ride-booking/internal/service/rides"
	"github.com/gocomet/ride-booking/pkg/errors"
	"github.com/gocomet/ride-booking/pkg/response"
	ws "github.com/gocomet/ride-booking/pkg/websocket"
	"github.com/google/uuid"
)

// RequestRide books a new ride for the authenticated rider.
func (h *Handlers) RequestRide(c *gin.Context) {
	u := middleware.CurrentUser(c)

	var req dto.RequestRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errors.ValidationFailed("Invalid ride request payload", err))
		return
	}

	rd, err := h.rideSvc.Request(c.Request.Context(), u.ID, rides.RequestInput{
		Pickup: ride.Location{
			Address:   req.Pickup.Address,
			Latitude:  req.Pickup.Latitude,
			Longitude: req.Pickup.Longitude,
		},
		Destination: ride.Location{
			Address:   req.Destination.Address,
			Latitude:  req.Destination.Latitude,
			Longitude: req.Destination.Longitude,
		},
		Type: ride.Type(req.RideType),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.nr.RecordRideRequested(string(rd.Type), rd.Fare, rd.DistanceKM)
	h.notifyUser(c.Request.Context(), u.ID.String(), ws.Event{Type: "ride:requested", Data: rd})

	response.Created(c, "Ride requested", rd)
}

// CancelRide cancels a requested or accepted ride on behalf of the rider or
// the assigned driver.
func (h *Handlers) CancelRide(c *gin.Context) {
	u := middleware.CurrentUser(c)

	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, errors.ValidationFailed("Invalid ride id", err))
		return
	}

	var req dto.CancelRideRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.Error(c, errors.ValidationFailed("Invalid cancellation payload", err))
		return
	}

	rd, err := h.rideSvc.Cancel(c.Request.Context(), u, rideID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.nr.RecordRideCancelled(rd.ID.String(), rd.CancelledBy)

	event := ws.Event{Type: "ride:cancelled", Data: rd}
	h.notifyUser(c.Request.Context(), rd.RiderID.String(), event)
	if rd.DriverID != nil {
		h.notifyUser(c.Request.Context(), rd.DriverID.String(), event)
	}

	response.Success(c, "Ride cancelled", rd)
}

// AvailableRides lists requested rides for an eligible driver, nearest first.
func (h *Handlers) AvailableRides(c *gin.Context) {
	u := middleware.CurrentUser(c)

	available, err := h.rideSvc.Available(c.Request.Context(), u.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, "Available rides retrieved", gin.H{
		"rides": available,
		"count": len(available),
	})
}

// AcceptRide assigns the authenticated driver to a requested ride. At most
// one concurrent driver wins.
func (h *Handlers) AcceptRide(c *gin.Context) {
	u := middleware.CurrentUser(c)

	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, errors.ValidationFailed("Invalid ride id", err))
		return
	}

	rd, err := h.rideSvc.Accept(c.Request.Context(), u.ID, rideID)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.notifyUser(c.Request.Context(), rd.RiderID.String(), ws.Event{Type: "ride:accepted", Data: rd})

	response.Success(c, "Ride accepted", rd)
}

// UpdateRideStatus moves the ride along its lifecycle on behalf of the
// assigned driver.
func (h *Handlers) UpdateRideStatus(c *gin.Context) {
	u := middleware.CurrentUser(c)

	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, errors.ValidationFailed("Invalid ride id", err))
		return
	}

	var req dto.UpdateRideStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errors.ValidationFailed("Invalid status payload", err))
		return
	}

	rd, err := h.rideSvc.UpdateStatus(c.Request.Context(), u.ID, rideID, ride.Status(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}

	if rd.Status == ride.StatusCompleted {
		duration := 0
		if rd.DurationMinutes != nil {
			duration = *rd.DurationMinutes
		}
		h.nr.RecordRideCompleted(rd.ID.String(), rd.Fare, duration)
	}

	h.notifyUser(c.Request.Context(), rd.RiderID.String(), ws.Event{Type: "ride:status", Data: rd})

	response.Success(c, "Ride status updated", rd)
}

// RateRide records the rider's one-time rating on a completed ride.
func (h *Handlers) RateRide(c *gin.Context) {
	u := middleware.CurrentUser(c)

	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, errors.ValidationFailed("Invalid ride id", err))
		return
	}

	var req dto.RateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errors.ValidationFailed("Invalid rating payload", err))
		return
	}

	rd, err := h.rideSvc.Rate(c.Request.Context(), u.ID, rideID, req.Rating, req.Feedback)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, "Ride rated", rd)
}

// RideHistory returns the user's rides, newest first.
func (h *Handlers) RideHistory(c *gin.Context) {
	u := middleware.CurrentUser(c)
	page, limit := pageParams(c)

	filter := ride.HistoryFilter{
		Status: ride.Status(c.Query("status")),
		Page:   page,
		Limit:  limit,
	}

	rideList, total, err := h.rideSvc.History(c.Request.Context(), u.ID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, "Ride history retrieved", paginated{
		Items: rideList,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// CurrentRide returns the user's active ride.
func (h *Handlers) CurrentRide(c *gin.Context) {
	u := middleware.CurrentUser(c)

	rd, err := h.rideSvc.Current(c.Request.Context(), u.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, "Current ride retrieved", rd)
}
