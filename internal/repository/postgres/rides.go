package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gocomet/ride-booking/internal/domain/ride"
	"github.com/gocomet/ride-booking/pkg/errors"
	"github.com/google/uuid"
)

const rideColumns = `
	id, rider_id, driver_id,
	pickup_address, pickup_latitude, pickup_longitude,
	destination_address, destination_latitude, destination_longitude,
	ride_type, status, fare, distance_km, duration_minutes, rating,
	COALESCE(feedback, ''), COALESCE(cancellation_reason, ''), COALESCE(cancelled_by, ''),
	requested_at, accepted_at, picked_up_at, in_transit_at, completed_at, cancelled_at,
	created_at, updated_at`

const activeStatuses = `('requested', 'accepted', 'picked_up', 'in_transit')`

// RideRepo implements ride.Repository on PostgreSQL. All lifecycle writes
// are single conditional statements matching on the expected status, so
// concurrent writers lose cleanly instead of clobbering each other.
type RideRepo struct {
	db *sql.DB
}

// NewRideRepo constructs a RideRepo.
func NewRideRepo(db *sql.DB) *RideRepo {
	return &RideRepo{db: db}
}

var _ ride.Repository = (*RideRepo)(nil)

func scanRide(row interface{ Scan(...interface{}) error }) (*ride.Ride, error) {
	var (
		r        ride.Ride
		driverID uuid.NullUUID
		duration sql.NullInt64
		rating   sql.NullInt64

		acceptedAt, pickedUpAt, inTransitAt, completedAt, cancelledAt sql.NullTime
	)

	err := row.Scan(
		&r.ID, &r.RiderID, &driverID,
		&r.Pickup.Address, &r.Pickup.Latitude, &r.Pickup.Longitude,
		&r.Destination.Address, &r.Destination.Latitude, &r.Destination.Longitude,
		&r.Type, &r.Status, &r.Fare, &r.DistanceKM, &duration, &rating,
		&r.Feedback, &r.CancellationReason, &r.CancelledBy,
		&r.RequestedAt, &acceptedAt, &pickedUpAt, &inTransitAt, &completedAt, &cancelledAt,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		r.DriverID = &driverID.UUID
	}
	if duration.Valid {
		d := int(duration.Int64)
		r.DurationMinutes = &d
	}
	if rating.Valid {
		v := int(rating.Int64)
		r.Rating = &v
	}
	if acceptedAt.Valid {
		r.AcceptedAt = &acceptedAt.Time
	}
	if pickedUpAt.Valid {
		r.PickedUpAt = &pickedUpAt.Time
	}
	if inTransitAt.Valid {
		r.InTransitAt = &inTransitAt.Time
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	if cancelledAt.Valid {
		r.CancelledAt = &cancelledAt.Time
	}

	return &r, nil
}

// Create inserts a new ride in requested state.
func (r *RideRepo) Create(ctx context.Context, rd *ride.Ride) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO rides (
			id, rider_id, status, ride_type,
			pickup_address, pickup_latitude, pickup_longitude,
			destination_address, destination_latitude, destination_longitude,
			fare, distance_km, requested_at
		) VALUES ($1, $2, 'requested', $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING requested_at, created_at, updated_at
	`, rd.ID, rd.RiderID, rd.Type,
		rd.Pickup.Address, rd.Pickup.Latitude, rd.Pickup.Longitude,
		rd.Destination.Address, rd.Destination.Latitude, rd.Destination.Longitude,
		rd.Fare, rd.DistanceKM,
	).Scan(&rd.RequestedAt, &rd.CreatedAt, &rd.UpdatedAt)

	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	rd.Status = ride.StatusRequested
	return nil
}

// GetByID fetches a ride by primary key.
func (r *RideRepo) GetByID(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)

	rd, err := scanRide(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrRideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ride: %w", err)
	}
	return rd, nil
}

// GetActiveByUser returns the user's ride in an active status, as rider or
// driver.
func (r *RideRepo) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*ride.Ride, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE (rider_id = $1 OR driver_id = $1) AND status IN `+activeStatuses+`
		LIMIT 1
	`, userID)

	rd, err := scanRide(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNoActiveRide
	}
	if err != nil {
		return nil, fmt.Errorf("get active ride: %w", err)
	}
	return rd, nil
}

// HasActiveRide reports whether the user participates in any active ride.
func (r *RideRepo) HasActiveRide(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rides
			WHERE (rider_id = $1 OR driver_id = $1) AND status IN `+activeStatuses+`
		)
	`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active ride: %w", err)
	}
	return exists, nil
}

// ListRequested returns requested rides oldest first.
func (r *RideRepo) ListRequested(ctx context.Context, limit int) ([]*ride.Ride, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE status = 'requested'
		ORDER BY requested_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list requested rides: %w", err)
	}
	defer rows.Close()

	return collectRides(rows)
}

// Claim atomically assigns the driver to a still-requested ride. The WHERE
// clause on status and driver_id is what makes acceptance at-most-one-winner:
// the second driver matches zero rows.
func (r *RideRepo) Claim(ctx context.Context, rideID, driverID uuid.UUID) (*ride.Ride, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE rides
		SET driver_id = $2, status = 'accepted', accepted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'requested' AND driver_id IS NULL
		RETURNING `+rideColumns,
		rideID, driverID)

	rd, err := scanRide(row)
	if err == sql.ErrNoRows {
		// Distinguish a vanished ride from a lost race.
		if _, getErr := r.GetByID(ctx, rideID); getErr != nil {
			return nil, getErr
		}
		return nil, errors.ErrRideAlreadyTaken
	}
	if err != nil {
		return nil, fmt.Errorf("claim ride: %w", err)
	}
	return rd, nil
}

// Transition moves a ride between adjacent driver-side states, stamping the
// matching timestamp column.
func (r *RideRepo) Transition(ctx context.Context, rideID, driverID uuid.UUID, from, to ride.Status) (*ride.Ride, error) {
	var stampColumn string
	switch to {
	case ride.StatusPickedUp:
		stampColumn = "picked_up_at"
	case ride.StatusInTransit:
		stampColumn = "in_transit_at"
	default:
		return nil, errors.InvalidTransition(fmt.Sprintf("Cannot transition to %s", to), nil)
	}

	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE rides
		SET status = $4, %s = NOW(), updated_at = NOW()
		WHERE id = $1 AND driver_id = $2 AND status = $3
		RETURNING %s
	`, stampColumn, rideColumns),
		rideID, driverID, from, to)

	rd, err := scanRide(row)
	if err == sql.ErrNoRows {
		return nil, errors.Conflict("Ride status changed, please retry", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("transition ride: %w", err)
	}
	return rd, nil
}

// Complete settles an in-transit ride and the driver's aggregates in one
// transaction.
func (r *RideRepo) Complete(ctx context.Context, rideID, driverID uuid.UUID) (*ride.Ride, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin complete tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		UPDATE rides
		SET status = 'completed',
		    completed_at = NOW(),
		    duration_minutes = GREATEST(1, CEIL(EXTRACT(EPOCH FROM (NOW() - picked_up_at)) / 60))::int,
		    updated_at = NOW()
		WHERE id = $1 AND driver_id = $2 AND status = 'in_transit'
		RETURNING `+rideColumns,
		rideID, driverID)

	rd, err := scanRide(row)
	if err == sql.ErrNoRows {
		return nil, errors.Conflict("Ride status changed, please retry", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("complete ride: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE drivers
		SET status = 'online',
		    total_rides = total_rides + 1,
		    total_earnings = total_earnings + $2,
		    updated_at = NOW()
		WHERE user_id = $1
	`, driverID, rd.Fare)
	if err != nil {
		return nil, fmt.Errorf("update driver totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit complete tx: %w", err)
	}
	return rd, nil
}

// Reject clears the driver and returns the ride to requested in one
// statement so another driver can claim it.
func (r *RideRepo) Reject(ctx context.Context, rideID, driverID uuid.UUID) (*ride.Ride, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE rides
		SET status = 'requested', driver_id = NULL, accepted_at = NULL, updated_at = NOW()
		WHERE id = $1 AND driver_id = $2 AND status = 'accepted'
		RETURNING `+rideColumns,
		rideID, driverID)

	rd, err := scanRide(row)
	if err == sql.ErrNoRows {
		return nil, errors.Conflict("Ride status changed, please retry", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("reject ride: %w", err)
	}
	return rd, nil
}

// Cancel cancels a requested or accepted ride, recording actor and reason.
func (r *RideRepo) Cancel(ctx context.Context, rideID uuid.UUID, cancelledBy, reason string) (*ride.Ride, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE rides
		SET status = 'cancelled', cancelled_at = NOW(),
		    cancelled_by = $2, cancellation_reason = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1 AND status IN ('requested', 'accepted')
		RETURNING `+rideColumns,
		rideID, cancelledBy, reason)

	rd, err := scanRide(row)
	if err == sql.ErrNoRows {
		if _, getErr := r.GetByID(ctx, rideID); getErr != nil {
			return nil, getErr
		}
		return nil, errors.InvalidTransition("Ride cannot be cancelled at this stage", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("cancel ride: %w", err)
	}
	return rd, nil
}

// SetRating records the one-time rider rating on a completed ride. The
// rating IS NULL condition makes the second attempt fail.
func (r *RideRepo) SetRating(ctx context.Context, rideID, riderID uuid.UUID, rating int, feedback string) (*ride.Ride, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE rides
		SET rating = $3, feedback = NULLIF($4, ''), updated_at = NOW()
		WHERE id = $1 AND rider_id = $2 AND status = 'completed' AND rating IS NULL
		RETURNING `+rideColumns,
		rideID, riderID, rating, feedback)

	rd, err := scanRide(row)
	if err == sql.ErrNoRows {
		existing, getErr := r.GetByID(ctx, rideID)
		if getErr != nil {
			return nil, getErr
		}
		if existing.RiderID != riderID || existing.Status != ride.StatusCompleted {
			return nil, errors.NotFound("Ride not found or not eligible for rating", nil)
		}
		return nil, errors.ErrRideAlreadyRated
	}
	if err != nil {
		return nil, fmt.Errorf("rate ride: %w", err)
	}
	return rd, nil
}

// ListByUser returns a page of rides where the user was rider or driver,
// newest first.
func (r *RideRepo) ListByUser(ctx context.Context, userID uuid.UUID, filter ride.HistoryFilter) ([]*ride.Ride, int, error) {
	where := []string{"(rider_id = $1 OR driver_id = $1)"}
	args := []interface{}{userID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rides WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rides: %w", err)
	}

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query := fmt.Sprintf(
		`SELECT %s FROM rides WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		rideColumns, whereClause, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list rides: %w", err)
	}
	defer rows.Close()

	rides, err := collectRides(rows)
	if err != nil {
		return nil, 0, err
	}
	return rides, total, nil
}

// ListAll returns a page of rides for admin listings with status and date
// filters.
func (r *RideRepo) ListAll(ctx context.Context, filter ride.AdminFilter) ([]*ride.Ride, int, error) {
	where := []string{"TRUE"}
	args := []interface{}{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rides WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rides: %w", err)
	}

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query := fmt.Sprintf(
		`SELECT %s FROM rides WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		rideColumns, whereClause, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list rides: %w", err)
	}
	defer rows.Close()

	rides, err := collectRides(rows)
	if err != nil {
		return nil, 0, err
	}
	return rides, total, nil
}

func collectRides(rows *sql.Rows) ([]*ride.Ride, error) {
	var rides []*ride.Ride
	for rows.Next() {
		rd, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		rides = append(rides, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return rides, nil
}
