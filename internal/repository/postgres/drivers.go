package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gocomet/ride-booking/internal/domain/driver"
	"github.com/gocomet/ride-booking/pkg/errors"
	"github.com/google/uuid"
)

const driverColumns = `
	u.id, u.name, u.email, u.phone, u.password_hash, u.role, u.is_active,
	u.is_blocked, COALESCE(u.block_reason, ''), u.created_at, u.updated_at,
	d.license_number, d.vehicle_make, d.vehicle_model, d.vehicle_year,
	d.vehicle_plate, d.vehicle_color, d.approval_status, d.status, d.rating,
	d.total_rides, d.total_earnings, d.current_latitude, d.current_longitude,
	d.approved_at`

// DriverRepo implements driver.Repository on PostgreSQL. The drivers table
// extends users one-to-one; reads join the two so callers always see the full
// driver variant.
type DriverRepo struct {
	db *sql.DB
}

// NewDriverRepo constructs a DriverRepo.
func NewDriverRepo(db *sql.DB) *DriverRepo {
	return &DriverRepo{db: db}
}

var _ driver.Repository = (*DriverRepo)(nil)

func scanDriver(row interface{ Scan(...interface{}) error }) (*driver.Driver, error) {
	var (
		d          driver.Driver
		lat, lng   sql.NullFloat64
		approvedAt sql.NullTime
	)
	err := row.Scan(
		&d.ID, &d.Name, &d.Email, &d.Phone, &d.PasswordHash, &d.Role,
		&d.IsActive, &d.IsBlocked, &d.BlockReason, &d.CreatedAt, &d.UpdatedAt,
		&d.LicenseNumber, &d.Vehicle.Make, &d.Vehicle.Model, &d.Vehicle.Year,
		&d.Vehicle.PlateNumber, &d.Vehicle.Color, &d.ApprovalStatus, &d.Status,
		&d.Rating, &d.TotalRides, &d.TotalEarnings, &lat, &lng, &approvedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		d.CurrentLatitude = &lat.Float64
		d.CurrentLongitude = &lng.Float64
	}
	if approvedAt.Valid {
		d.ApprovedAt = &approvedAt.Time
	}
	return &d, nil
}

// Create inserts the driver extension row for an existing user.
func (r *DriverRepo) Create(ctx context.Context, d *driver.Driver) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO drivers (
			user_id, license_number, vehicle_make, vehicle_model, vehicle_year,
			vehicle_plate, vehicle_color, approval_status, status, rating,
			total_rides, total_earnings
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', 'offline', 5.0, 0, 0)
	`, d.ID, d.LicenseNumber, d.Vehicle.Make, d.Vehicle.Model, d.Vehicle.Year,
		d.Vehicle.PlateNumber, d.Vehicle.Color)

	if isUniqueViolation(err) {
		return errors.ErrDuplicateDriver
	}
	if err != nil {
		return fmt.Errorf("insert driver: %w", err)
	}

	d.ApprovalStatus = driver.ApprovalPending
	d.Status = driver.StatusOffline
	d.Rating = 5.0
	return nil
}

// GetByUserID fetches the full driver variant by user id.
func (r *DriverRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*driver.Driver, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+driverColumns+`
		FROM drivers d
		JOIN users u ON u.id = d.user_id
		WHERE d.user_id = $1
	`, userID)

	d, err := scanDriver(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get driver: %w", err)
	}
	return d, nil
}

// LicenseOrPlateInUse reports whether the license or plate is already
// registered.
func (r *DriverRepo) LicenseOrPlateInUse(ctx context.Context, license, plate string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM drivers WHERE license_number = $1 OR vehicle_plate = $2
		)
	`, license, plate).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check license/plate: %w", err)
	}
	return exists, nil
}

// UpdateVehicle replaces the vehicle details.
func (r *DriverRepo) UpdateVehicle(ctx context.Context, userID uuid.UUID, v driver.Vehicle) (*driver.Driver, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE drivers
		SET vehicle_make = $2, vehicle_model = $3, vehicle_year = $4,
		    vehicle_plate = $5, vehicle_color = $6, updated_at = NOW()
		WHERE user_id = $1
	`, userID, v.Make, v.Model, v.Year, v.PlateNumber, v.Color)

	if isUniqueViolation(err) {
		return nil, errors.ErrDuplicatePlate
	}
	if err != nil {
		return nil, fmt.Errorf("update vehicle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errors.ErrDriverNotFound
	}

	return r.GetByUserID(ctx, userID)
}

// SetAvailability moves the driver between online and offline. A busy driver
// is left untouched; the caller surfaces that as a conflict.
func (r *DriverRepo) SetAvailability(ctx context.Context, userID uuid.UUID, status driver.Status, lat, lng *float64) (*driver.Driver, error) {
	var res sql.Result
	var err error

	if lat != nil && lng != nil {
		res, err = r.db.ExecContext(ctx, `
			UPDATE drivers
			SET status = $2, current_latitude = $3, current_longitude = $4, updated_at = NOW()
			WHERE user_id = $1 AND status <> 'busy'
		`, userID, status, *lat, *lng)
	} else {
		res, err = r.db.ExecContext(ctx, `
			UPDATE drivers
			SET status = $2, updated_at = NOW()
			WHERE user_id = $1 AND status <> 'busy'
		`, userID, status)
	}
	if err != nil {
		return nil, fmt.Errorf("set availability: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		// Either no profile or the driver is mid-ride.
		if _, getErr := r.GetByUserID(ctx, userID); getErr != nil {
			return nil, getErr
		}
		return nil, errors.ErrDriverNotAvailable
	}

	return r.GetByUserID(ctx, userID)
}

// ClaimBusy atomically flips an approved online driver to busy.
func (r *DriverRepo) ClaimBusy(ctx context.Context, userID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE drivers
		SET status = 'busy', updated_at = NOW()
		WHERE user_id = $1 AND status = 'online' AND approval_status = 'approved'
	`, userID)
	if err != nil {
		return false, fmt.Errorf("claim driver busy: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim driver busy: %w", err)
	}
	return n > 0, nil
}

// Release returns a busy driver to online.
func (r *DriverRepo) Release(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE drivers
		SET status = 'online', updated_at = NOW()
		WHERE user_id = $1 AND status = 'busy'
	`, userID)
	if err != nil {
		return fmt.Errorf("release driver: %w", err)
	}
	return nil
}

// UpdateLocation stores the driver's current position.
func (r *DriverRepo) UpdateLocation(ctx context.Context, userID uuid.UUID, lat, lng float64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE drivers
		SET current_latitude = $2, current_longitude = $3, updated_at = NOW()
		WHERE user_id = $1
	`, userID, lat, lng)
	if err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrDriverNotFound
	}
	return nil
}

// SetApproval updates the approval workflow state. Suspension also forces the
// driver offline so they drop out of matching immediately.
func (r *DriverRepo) SetApproval(ctx context.Context, userID uuid.UUID, status driver.ApprovalStatus) (*driver.Driver, error) {
	var err error
	switch status {
	case driver.ApprovalApproved:
		_, err = r.db.ExecContext(ctx, `
			UPDATE drivers
			SET approval_status = $2, approved_at = NOW(), updated_at = NOW()
			WHERE user_id = $1
		`, userID, status)
	case driver.ApprovalSuspended:
		_, err = r.db.ExecContext(ctx, `
			UPDATE drivers
			SET approval_status = $2, status = 'offline', updated_at = NOW()
			WHERE user_id = $1
		`, userID, status)
	default:
		_, err = r.db.ExecContext(ctx, `
			UPDATE drivers
			SET approval_status = $2, updated_at = NOW()
			WHERE user_id = $1
		`, userID, status)
	}
	if err != nil {
		return nil, fmt.Errorf("set approval: %w", err)
	}

	return r.GetByUserID(ctx, userID)
}

// RecalculateRating recomputes the average over rated rides, defaulting to
// 5.0 when the driver has none, and stores it to one decimal.
func (r *DriverRepo) RecalculateRating(ctx context.Context, userID uuid.UUID) (float64, error) {
	var rating float64
	err := r.db.QueryRowContext(ctx, `
		UPDATE drivers
		SET rating = ROUND(COALESCE(
			(SELECT AVG(rating)::numeric FROM rides WHERE driver_id = $1 AND rating IS NOT NULL),
			5.0), 1),
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING rating
	`, userID).Scan(&rating)

	if err == sql.ErrNoRows {
		return 0, errors.ErrDriverNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("recalculate rating: %w", err)
	}
	return rating, nil
}

// List returns a page of drivers with optional status and approval filters.
func (r *DriverRepo) List(ctx context.Context, filter driver.ListFilter) ([]*driver.Driver, int, error) {
	where := []string{"TRUE"}
	args := []interface{}{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("d.status = $%d", len(args)))
	}
	if filter.ApprovalStatus != "" {
		args = append(args, filter.ApprovalStatus)
		where = append(where, fmt.Sprintf("d.approval_status = $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM drivers d WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count drivers: %w", err)
	}

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query := fmt.Sprintf(`
		SELECT %s
		FROM drivers d
		JOIN users u ON u.id = d.user_id
		WHERE %s
		ORDER BY u.created_at DESC
		LIMIT $%d OFFSET $%d
	`, driverColumns, whereClause, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list drivers: %w", err)
	}
	defer rows.Close()

	var drivers []*driver.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan driver: %w", err)
		}
		drivers = append(drivers, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return drivers, total, nil
}
