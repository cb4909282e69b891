package report

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DashboardStats is the admin platform snapshot.
type DashboardStats struct {
	UsersByRole     map[string]int `json:"users_by_role"`
	RidesByStatus   map[string]int `json:"rides_by_status"`
	TotalRevenue    float64        `json:"total_revenue"`
	AverageFare     float64        `json:"average_fare"`
	PendingDrivers  int            `json:"pending_drivers"`
	ApprovedDrivers int            `json:"approved_drivers"`
	ActiveRides     int            `json:"active_rides"`
}

// Earnings summarizes a driver's completed rides, lifetime and for an
// optional period.
type Earnings struct {
	TotalEarnings  float64 `json:"total_earnings"`
	TotalRides     int     `json:"total_rides"`
	PeriodEarnings float64 `json:"period_earnings"`
	PeriodRides    int     `json:"period_rides"`
	Rating         float64 `json:"rating"`
}

// EarningsFilter bounds the period aggregation.
type EarningsFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
}

// Repository defines read-only aggregation queries.
type Repository interface {
	DashboardStats(ctx context.Context) (*DashboardStats, error)
	DriverEarnings(ctx context.Context, driverID uuid.UUID, filter EarningsFilter) (*Earnings, error)
}
