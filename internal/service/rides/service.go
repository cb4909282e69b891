package rides

import (
	"context"
	"sort"

	"github.com/gocomet/ride-booking/internal/domain/driver"
	"github.com/gocomet/ride-booking/internal/domain/ride"
	"github.com/gocomet/ride-booking/internal/domain/user"
	"github.com/gocomet/ride-booking/internal/service/pricing"
	"github.com/gocomet/ride-booking/pkg/errors"
	"github.com/gocomet/ride-booking/pkg/logger"
	"github.com/google/uuid"
)

const (
	requestedFetchLimit = 50
	availableListCap    = 20
)

// Service drives the ride lifecycle. Every state change goes through an
// atomic conditional update in the repository, so the service never holds a
// read-then-write window.
type Service struct {
	rides   ride.Repository
	drivers driver.Repository
	pricing *pricing.Service
	logger  *logger.Logger
}

// NewService creates the ride lifecycle service.
func NewService(rides ride.Repository, drivers driver.Repository, pricing *pricing.Service, log *logger.Logger) *Service {
	return &Service{
		rides:   rides,
		drivers: drivers,
		pricing: pricing,
		logger:  log,
	}
}

// RequestInput is the rider's booking request.
type RequestInput struct {
	Pickup      ride.Location
	Destination ride.Location
	Type        ride.Type
}

// AvailableRide is a requested ride offered to a driver, with the distance
// from the driver's last known position when it is known.
type AvailableRide struct {
	*ride.Ride
	DistanceFromDriver *float64 `json:"distance_from_driver,omitempty"`
}

// Request creates a new ride in requested state with an estimated fare.
func (s *Service) Request(ctx context.Context, riderID uuid.UUID, input RequestInput) (*ride.Ride, error) {
	if !input.Type.IsValid() {
		return nil, errors.ValidationFailed("Invalid ride type", nil)
	}

	active, err := s.rides.HasActiveRide(ctx, riderID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, errors.ErrActiveRideExists
	}

	distance := pricing.Distance(
		input.Pickup.Latitude, input.Pickup.Longitude,
		input.Destination.Latitude, input.Destination.Longitude,
	)
	fare := s.pricing.EstimateFare(input.Type, distance)

	rd := &ride.Ride{
		ID:          uuid.New(),
		RiderID:     riderID,
		Pickup:      input.Pickup,
		Destination: input.Destination,
		Type:        input.Type,
		Status:      ride.StatusRequested,
		Fare:        fare,
		DistanceKM:  distance,
	}
	if err := s.rides.Create(ctx, rd); err != nil {
		return nil, err
	}

	s.logger.Info("ride requested",
		logger.String("ride_id", rd.ID.String()),
		logger.String("rider_id", riderID.String()),
		logger.Float64("fare", fare),
		logger.Float64("distance_km", distance))

	return rd, nil
}

// Cancel cancels a requested or accepted ride on behalf of the rider or the
// assigned driver, releasing the driver when one was assigned.
func (s *Service) Cancel(ctx context.Context, actor *user.User, rideID uuid.UUID, reason string) (*ride.Ride, error) {
	rd, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !rd.Involves(actor.ID) && actor.Role != user.RoleAdmin {
		return nil, errors.Forbidden("You are not part of this ride", nil)
	}
	if !rd.CanCancel() {
		return nil, errors.InvalidTransition("Ride cannot be cancelled at this stage", nil)
	}

	cancelledBy := string(actor.Role)
	cancelled, err := s.rides.Cancel(ctx, rideID, cancelledBy, reason)
	if err != nil {
		return nil, err
	}

	// Release based on the row the conditional update returned, not the
	// earlier read: a driver may have accepted in between.
	if cancelled.DriverID != nil {
		if err := s.drivers.Release(ctx, *cancelled.DriverID); err != nil {
			s.logger.Warn("failed to release driver after cancellation",
				logger.String("driver_id", cancelled.DriverID.String()),
				logger.Err(err))
		}
	}

	return cancelled, nil
}

// Available lists requested rides for an eligible driver, nearest first when
// the driver has a known location.
func (s *Service) Available(ctx context.Context, driverID uuid.UUID) ([]*AvailableRide, error) {
	d, err := s.drivers.GetByUserID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if d.ApprovalStatus != driver.ApprovalApproved {
		return nil, errors.ErrDriverNotApproved
	}
	if d.Status != driver.StatusOnline {
		return nil, errors.ErrDriverOffline
	}

	active, err := s.rides.HasActiveRide(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, errors.ErrActiveRideExists
	}

	requested, err := s.rides.ListRequested(ctx, requestedFetchLimit)
	if err != nil {
		return nil, err
	}

	available := make([]*AvailableRide, 0, len(requested))
	for _, rd := range requested {
		ar := &AvailableRide{Ride: rd}
		if d.HasLocation() {
			dist := pricing.Distance(
				*d.CurrentLatitude, *d.CurrentLongitude,
				rd.Pickup.Latitude, rd.Pickup.Longitude,
			)
			ar.DistanceFromDriver = &dist
		}
		available = append(available, ar)
	}

	if d.HasLocation() {
		sort.SliceStable(available, func(i, j int) bool {
			return *available[i].DistanceFromDriver < *available[j].DistanceFromDriver
		})
	}
	if len(available) > availableListCap {
		available = available[:availableListCap]
	}

	return available, nil
}

// Accept assigns the driver to a requested ride. The driver is flipped
// online to busy first; if the ride claim then fails the flip is reverted.
func (s *Service) Accept(ctx context.Context, driverID, rideID uuid.UUID) (*ride.Ride, error) {
	d, err := s.drivers.GetByUserID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if d.ApprovalStatus != driver.ApprovalApproved {
		return nil, errors.ErrDriverNotApproved
	}

	claimed, err := s.drivers.ClaimBusy(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, errors.ErrDriverNotAvailable
	}

	rd, err := s.rides.Claim(ctx, rideID, driverID)
	if err != nil {
		if relErr := s.drivers.Release(ctx, driverID); relErr != nil {
			s.logger.Error("failed to release driver after lost claim",
				logger.String("driver_id", driverID.String()),
				logger.Err(relErr))
		}
		return nil, err
	}

	s.logger.Info("ride accepted",
		logger.String("ride_id", rd.ID.String()),
		logger.String("driver_id", driverID.String()))

	return rd, nil
}

// UpdateStatus applies a driver-side transition to the assigned ride.
// Completion settles the ride and the driver's totals; rejection returns the
// ride to requested and the driver to online.
func (s *Service) UpdateStatus(ctx context.Context, driverID, rideID uuid.UUID, to ride.Status) (*ride.Ride, error) {
	rd, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if rd.DriverID == nil || *rd.DriverID != driverID {
		return nil, errors.Forbidden("You are not assigned to this ride", nil)
	}
	if !ride.CanTransition(rd.Status, to) {
		return nil, errors.InvalidTransition(
			"Cannot change ride status from "+string(rd.Status)+" to "+string(to), nil)
	}

	switch to {
	case ride.StatusCompleted:
		return s.rides.Complete(ctx, rideID, driverID)

	case ride.StatusRejected:
		reverted, err := s.rides.Reject(ctx, rideID, driverID)
		if err != nil {
			return nil, err
		}
		if relErr := s.drivers.Release(ctx, driverID); relErr != nil {
			s.logger.Error("failed to release driver after rejection",
				logger.String("driver_id", driverID.String()),
				logger.Err(relErr))
		}
		return reverted, nil

	default:
		return s.rides.Transition(ctx, rideID, driverID, rd.Status, to)
	}
}

// Rate records the rider's one-time rating on a completed ride and recomputes
// the driver's average.
func (s *Service) Rate(ctx context.Context, riderID, rideID uuid.UUID, rating int, feedback string) (*ride.Ride, error) {
	if rating < 1 || rating > 5 {
		return nil, errors.ValidationFailed("Rating must be between 1 and 5", nil)
	}

	rd, err := s.rides.SetRating(ctx, rideID, riderID, rating, feedback)
	if err != nil {
		return nil, err
	}

	if rd.DriverID != nil {
		if _, err := s.drivers.RecalculateRating(ctx, *rd.DriverID); err != nil {
			s.logger.Warn("failed to recalculate driver rating",
				logger.String("driver_id", rd.DriverID.String()),
				logger.Err(err))
		}
	}

	return rd, nil
}

// History returns the user's rides, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, filter ride.HistoryFilter) ([]*ride.Ride, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.rides.ListByUser(ctx, userID, filter)
}

// Current returns the user's active ride.
func (s *Service) Current(ctx context.Context, userID uuid.UUID) (*ride.Ride, error) {
	return s.rides.GetActiveByUser(ctx, userID)
}
