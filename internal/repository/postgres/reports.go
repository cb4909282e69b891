package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gocomet/ride-booking/internal/domain/report"
	"github.com/gocomet/ride-booking/pkg/errors"
	"github.com/google/uuid"
)

// ReportRepo implements report.Repository with aggregation queries.
type ReportRepo struct {
	db *sql.DB
}

// NewReportRepo constructs a ReportRepo.
func NewReportRepo(db *sql.DB) *ReportRepo {
	return &ReportRepo{db: db}
}

var _ report.Repository = (*ReportRepo)(nil)

// DashboardStats gathers the admin platform snapshot.
func (r *ReportRepo) DashboardStats(ctx context.Context) (*report.DashboardStats, error) {
	stats := &report.DashboardStats{
		UsersByRole:   map[string]int{},
		RidesByStatus: map[string]int{},
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var role string
		var count int
		if err := rows.Scan(&role, &count); err != nil {
			return nil, fmt.Errorf("scan user count: %w", err)
		}
		stats.UsersByRole[role] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	rideRows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM rides GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count rides by status: %w", err)
	}
	defer rideRows.Close()
	for rideRows.Next() {
		var status string
		var count int
		if err := rideRows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan ride count: %w", err)
		}
		stats.RidesByStatus[status] = count
	}
	if err := rideRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(fare), 0), COALESCE(ROUND(AVG(fare)::numeric, 2), 0)
		FROM rides WHERE status = 'completed'
	`).Scan(&stats.TotalRevenue, &stats.AverageFare)
	if err != nil {
		return nil, fmt.Errorf("revenue stats: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE approval_status = 'pending'),
			COUNT(*) FILTER (WHERE approval_status = 'approved')
		FROM drivers
	`).Scan(&stats.PendingDrivers, &stats.ApprovedDrivers)
	if err != nil {
		return nil, fmt.Errorf("driver stats: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rides WHERE status IN `+activeStatuses).Scan(&stats.ActiveRides)
	if err != nil {
		return nil, fmt.Errorf("active ride count: %w", err)
	}

	for _, status := range []string{"requested", "accepted", "picked_up", "in_transit", "completed", "cancelled"} {
		if _, ok := stats.RidesByStatus[status]; !ok {
			stats.RidesByStatus[status] = 0
		}
	}

	return stats, nil
}

// DriverEarnings returns the driver's lifetime totals plus a period
// aggregation over completed rides.
func (r *ReportRepo) DriverEarnings(ctx context.Context, driverID uuid.UUID, filter report.EarningsFilter) (*report.Earnings, error) {
	e := &report.Earnings{}

	err := r.db.QueryRowContext(ctx, `
		SELECT total_earnings, total_rides, rating FROM drivers WHERE user_id = $1
	`, driverID).Scan(&e.TotalEarnings, &e.TotalRides, &e.Rating)
	if err == sql.ErrNoRows {
		return nil, errors.ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("driver totals: %w", err)
	}

	where := []string{"driver_id = $1", "status = 'completed'"}
	args := []interface{}{driverID}

	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		where = append(where, fmt.Sprintf("completed_at >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		where = append(where, fmt.Sprintf("completed_at <= $%d", len(args)))
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(fare), 0), COUNT(*)
		FROM rides WHERE `+strings.Join(where, " AND "),
		args...).Scan(&e.PeriodEarnings, &e.PeriodRides)
	if err != nil {
		return nil, fmt.Errorf("period earnings: %w", err)
	}

	return e, nil
}
