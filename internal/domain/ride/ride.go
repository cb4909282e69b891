package ride

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status represents ride status
type Status string

const (
	StatusRequested Status = "requested"
	StatusAccepted  Status = "accepted"
	StatusPickedUp  Status = "picked_up"
	StatusInTransit Status = "in_transit"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"

	// StatusRejected is transient: a driver rejecting an accepted ride
	// returns it to requested in the same update, so it is never persisted
	// as a resting state.
	StatusRejected Status = "rejected"
)

// ActiveStatuses are the states that count against the one-active-ride rule.
var ActiveStatuses = []Status{StatusRequested, StatusAccepted, StatusPickedUp, StatusInTransit}

// IsActive reports whether the status counts as an active ride.
func (s Status) IsActive() bool {
	switch s {
	case StatusRequested, StatusAccepted, StatusPickedUp, StatusInTransit:
		return true
	}
	return false
}

// IsValid validates the status
func (s Status) IsValid() bool {
	switch s {
	case StatusRequested, StatusAccepted, StatusPickedUp, StatusInTransit,
		StatusCompleted, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// driverTransitions is the transition table enforced for driver-side status
// updates. Acceptance and cancellation have their own conditional paths.
var driverTransitions = map[Status][]Status{
	StatusAccepted:  {StatusPickedUp, StatusRejected},
	StatusPickedUp:  {StatusInTransit},
	StatusInTransit: {StatusCompleted},
}

// CanTransition reports whether a driver may move a ride from one status to
// another.
func CanTransition(from, to Status) bool {
	for _, allowed := range driverTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Type represents the requested ride class, which selects the fare rates.
type Type string

const (
	TypeEconomy Type = "economy"
	TypePremium Type = "premium"
	TypeLuxury  Type = "luxury"
)

// IsValid validates the ride type
func (t Type) IsValid() bool {
	switch t {
	case TypeEconomy, TypePremium, TypeLuxury:
		return true
	}
	return false
}

// Location is an address with coordinates
type Location struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Ride represents a ride through its whole lifecycle. Once completed or
// cancelled the record is immutable except for the post-hoc rating.
type Ride struct {
	ID                 uuid.UUID  `json:"id"`
	RiderID            uuid.UUID  `json:"rider_id"`
	DriverID           *uuid.UUID `json:"driver_id,omitempty"`
	Pickup             Location   `json:"pickup_location"`
	Destination        Location   `json:"destination"`
	Type               Type       `json:"ride_type"`
	Status             Status     `json:"status"`
	Fare               float64    `json:"fare"`
	DistanceKM         float64    `json:"distance_km"`
	DurationMinutes    *int       `json:"duration_minutes,omitempty"`
	Rating             *int       `json:"rating,omitempty"`
	Feedback           string     `json:"feedback,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancelledBy        string     `json:"cancelled_by,omitempty"`
	RequestedAt        time.Time  `json:"requested_at"`
	AcceptedAt         *time.Time `json:"accepted_at,omitempty"`
	PickedUpAt         *time.Time `json:"picked_up_at,omitempty"`
	InTransitAt        *time.Time `json:"in_transit_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// CanCancel reports whether the ride may still be cancelled.
func (r *Ride) CanCancel() bool {
	return r.Status == StatusRequested || r.Status == StatusAccepted
}

// Involves reports whether the user is the rider or the assigned driver.
func (r *Ride) Involves(userID uuid.UUID) bool {
	if r.RiderID == userID {
		return true
	}
	return r.DriverID != nil && *r.DriverID == userID
}

// HistoryFilter narrows ride history listings.
type HistoryFilter struct {
	Status Status
	Page   int
	Limit  int
}

// AdminFilter narrows admin ride listings.
type AdminFilter struct {
	Status    Status
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

// Repository defines the interface for ride data access. Every state change
// is an atomic conditional update scoped to the ride row: the statement
// matches on the expected current status so concurrent writers get zero rows
// instead of overwriting each other.
type Repository interface {
	Create(ctx context.Context, r *Ride) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ride, error)

	// GetActiveByUser returns the ride in an active status where the user is
	// rider or driver, or ErrNoActiveRide.
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*Ride, error)

	// HasActiveRide reports whether the user participates in any active ride.
	HasActiveRide(ctx context.Context, userID uuid.UUID) (bool, error)

	// ListRequested returns requested rides ordered by requested_at ascending.
	ListRequested(ctx context.Context, limit int) ([]*Ride, error)

	// Claim atomically assigns the driver to a still-requested ride. At most
	// one concurrent caller wins; losers get ErrRideAlreadyTaken.
	Claim(ctx context.Context, rideID, driverID uuid.UUID) (*Ride, error)

	// Transition moves a ride between adjacent driver-side states
	// (accepted to picked_up, picked_up to in_transit), matching on the
	// expected current status and assigned driver.
	Transition(ctx context.Context, rideID, driverID uuid.UUID, from, to Status) (*Ride, error)

	// Complete settles an in-transit ride and updates the driver's totals in
	// a single transaction: completion timestamp, duration from pickup,
	// total_rides and total_earnings increments, driver back online.
	Complete(ctx context.Context, rideID, driverID uuid.UUID) (*Ride, error)

	// Reject clears the driver from an accepted ride and returns it to
	// requested in one statement so it becomes claimable again.
	Reject(ctx context.Context, rideID, driverID uuid.UUID) (*Ride, error)

	// Cancel cancels a requested or accepted ride, recording actor and
	// reason. Zero matched rows surface as an invalid transition.
	Cancel(ctx context.Context, rideID uuid.UUID, cancelledBy, reason string) (*Ride, error)

	// SetRating records the one-time rider rating on a completed ride.
	SetRating(ctx context.Context, rideID, riderID uuid.UUID, rating int, feedback string) (*Ride, error)

	ListByUser(ctx context.Context, userID uuid.UUID, filter HistoryFilter) ([]*Ride, int, error)
	ListAll(ctx context.Context, filter AdminFilter) ([]*Ride, int, error)
}
