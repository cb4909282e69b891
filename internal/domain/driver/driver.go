package driver

import (
	"context"
	"time"

	"github.com/gocomet/ride-booking/internal/domain/user"
	"github.com/google/uuid"
)

// ApprovalStatus is the admin-controlled gate on a driver profile.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalSuspended ApprovalStatus = "suspended"
)

// Status represents driver availability
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusBusy    Status = "busy"
)

// IsValid validates the approval status
func (a ApprovalStatus) IsValid() bool {
	switch a {
	case ApprovalPending, ApprovalApproved, ApprovalSuspended:
		return true
	}
	return false
}

// IsValid validates the availability status
func (s Status) IsValid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusBusy:
		return true
	}
	return false
}

// Vehicle holds the registered vehicle details
type Vehicle struct {
	Make        string `json:"make"`
	Model       string `json:"model"`
	Year        int    `json:"year"`
	PlateNumber string `json:"plate_number"`
	Color       string `json:"color"`
}

// Driver is the driver variant of a user account: the shared identity fields
// plus the driver-only profile, selected by the role tag.
type Driver struct {
	user.User

	LicenseNumber    string         `json:"license_number"`
	Vehicle          Vehicle        `json:"vehicle"`
	ApprovalStatus   ApprovalStatus `json:"approval_status"`
	Status           Status         `json:"status"`
	Rating           float64        `json:"rating"`
	TotalRides       int            `json:"total_rides"`
	TotalEarnings    float64        `json:"total_earnings"`
	CurrentLatitude  *float64       `json:"current_latitude,omitempty"`
	CurrentLongitude *float64       `json:"current_longitude,omitempty"`
	ApprovedAt       *time.Time     `json:"approved_at,omitempty"`
}

// CanAcceptRides reports whether the driver may pick up new work.
func (d *Driver) CanAcceptRides() bool {
	return d.ApprovalStatus == ApprovalApproved && d.Status == StatusOnline
}

// HasLocation reports whether a current position is known.
func (d *Driver) HasLocation() bool {
	return d.CurrentLatitude != nil && d.CurrentLongitude != nil
}

// ListFilter narrows admin driver listings.
type ListFilter struct {
	Status         Status
	ApprovalStatus ApprovalStatus
	Page           int
	Limit          int
}

// Repository defines the interface for driver data access
type Repository interface {
	Create(ctx context.Context, d *Driver) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Driver, error)
	LicenseOrPlateInUse(ctx context.Context, license, plate string) (bool, error)
	UpdateVehicle(ctx context.Context, userID uuid.UUID, v Vehicle) (*Driver, error)

	// SetAvailability moves the driver between online and offline, recording
	// the location when going online with one. Busy drivers are not touched.
	SetAvailability(ctx context.Context, userID uuid.UUID, status Status, lat, lng *float64) (*Driver, error)

	// ClaimBusy atomically flips an approved online driver to busy. It
	// reports false when the driver was not online (already busy or offline),
	// which callers treat as losing the race.
	ClaimBusy(ctx context.Context, userID uuid.UUID) (bool, error)

	// Release returns a busy driver to online after completion, rejection or
	// cancellation of the assigned ride.
	Release(ctx context.Context, userID uuid.UUID) error

	UpdateLocation(ctx context.Context, userID uuid.UUID, lat, lng float64) error
	SetApproval(ctx context.Context, userID uuid.UUID, status ApprovalStatus) (*Driver, error)

	// RecalculateRating recomputes the average rating over rated rides and
	// stores it on the driver, returning the new value.
	RecalculateRating(ctx context.Context, userID uuid.UUID) (float64, error)

	List(ctx context.Context, filter ListFilter) ([]*Driver, int, error)
}
