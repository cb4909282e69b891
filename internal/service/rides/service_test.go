package rides

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/gocomet/ride-booking/internal/domain/driver"
	"github.com/gocomet/ride-booking/internal/domain/ride"
	"github.com/gocomet/ride-booking/internal/domain/user"
	"github.com/gocomet/ride-booking/internal/service/pricing"
	"github.com/gocomet/ride-booking/pkg/errors"
	"github.com/gocomet/ride-booking/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// store is a mutex-guarded in-memory backend shared by the fake repositories.
// Conditional updates hold the lock for the whole check-and-set, mirroring
// the single-statement semantics of the SQL layer.
type store struct {
	mu      sync.Mutex
	rides   map[uuid.UUID]*ride.Ride
	drivers map[uuid.UUID]*driver.Driver
}

func newStore() *store {
	return &store{
		rides:   make(map[uuid.UUID]*ride.Ride),
		drivers: make(map[uuid.UUID]*driver.Driver),
	}
}

func cloneRide(r *ride.Ride) *ride.Ride {
	c := *r
	return &c
}

func cloneDriver(d *driver.Driver) *driver.Driver {
	c := *d
	return &c
}

type fakeRides struct{ s *store }

func (f *fakeRides) Create(_ context.Context, r *ride.Ride) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	now := time.Now()
	r.RequestedAt = now
	r.CreatedAt = now
	r.UpdatedAt = now
	f.s.rides[r.ID] = cloneRide(r)
	return nil
}

func (f *fakeRides) GetByID(_ context.Context, id uuid.UUID) (*ride.Ride, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.rides[id]
	if !ok {
		return nil, errors.ErrRideNotFound
	}
	return cloneRide(r), nil
}

func (f *fakeRides) GetActiveByUser(_ context.Context, userID uuid.UUID) (*ride.Ride, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, r := range f.s.rides {
		if r.Status.IsActive() && r.Involves(userID) {
			return cloneRide(r), nil
		}
	}
	return nil, errors.ErrNoActiveRide
}

func (f *fakeRides) HasActiveRide(_ context.Context, userID uuid.UUID) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, r := range f.s.rides {
		if r.Status.IsActive() && r.Involves(userID) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRides) ListRequested(_ context.Context, limit int) ([]*ride.Ride, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*ride.Ride
	for _, r := range f.s.rides {
		if r.Status == ride.StatusRequested {
			out = append(out, cloneRide(r))
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRides) Claim(_ context.Context, rideID, driverID uuid.UUID) (*ride.Ride, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.rides[rideID]
	if !ok {
		return nil, errors.ErrRideNotFound
	}
	if r.Status != ride.StatusRequested || r.DriverID != nil {
		return nil, errors.ErrRideAlreadyTaken
	}
	now := time.Now()
	r.DriverID = &driverID
	r.Status = ride.StatusAccepted
	r.AcceptedAt = &now
	return cloneRide(r), nil
}

func (f *fakeRides) Transition(_ context.Context, rideID, driverID uuid.UUID, from, to ride.Status) (*ride.Ride, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.rides[rideID]
	if !ok || r.DriverID == nil || *r.DriverID != driverID || r.Status != from {
		return nil, errors.Conflict("Ride status changed, please retry", nil)
	}
	now := time.Now()
	r.Status = to
	switch to {
	case ride.StatusPickedUp:
		r.PickedUpAt = &now
	case ride.StatusInTransit:
		r.InTransitAt = &now
	}
	return cloneRide(r), nil
}

func (f *fakeRides) Complete(_ context.Context, rideID, driverID uuid.UUID) (*ride.Ride, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.rides[rideID]
	if !ok || r.DriverID == nil || *r.DriverID != driverID || r.Status != ride.StatusInTransit {
		return nil, errors.Conflict("Ride status changed, please retry", nil)
	}
	now := time.Now()
	duration := 1
	if r.PickedUpAt != nil {
		if mins := int(now.Sub(*r.PickedUpAt).Minutes()); mins > duration {
			duration = mins
		}
	}
	r.Status = ride.StatusCompleted
	r.CompletedAt = &now
	r.DurationMinutes = &duration

	if d, ok := f.s.drivers[driverID]; ok {
		d.Status = driver.StatusOnline
		d.TotalRides++
		d.TotalEarnings += r.Fare
	}
	return cloneRide(r), nil
}

func (f *fakeRides) Reject(_ context.Context, rideID, driverID uuid.UUID) (*ride.Ride, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.rides[rideID]
	if !ok || r.DriverID == nil || *r.DriverID != driverID || r.Status != ride.StatusAccepted {
		return nil, errors.Conflict("Ride status changed, please retry", nil)
	}
	r.DriverID = nil
	r.Status = ride.StatusRequested
	r.AcceptedAt = nil
	return cloneRide(r), nil
}

func (f *fakeRides) Cancel(_ context.Context, rideID uuid.UUID, cancelledBy, reason string) (*ride.Ride, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.rides[rideID]
	if !ok {
		return nil, errors.ErrRideNotFound
	}
	if !r.CanCancel() {
		return nil, errors.InvalidTransition("Ride cannot be cancelled at this stage", nil)
	}
	now := time.Now()
	r.Status = ride.StatusCancelled
	r.CancelledAt = &now
	r.CancelledBy = cancelledBy
	r.CancellationReason = reason
	return cloneRide(r), nil
}

func (f *fakeRides) SetRating(_ context.Context, rideID, riderID uuid.UUID, rating int, feedback string) (*ride.Ride, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.rides[rideID]
	if !ok {
		return nil, errors.ErrRideNotFound
	}
	if r.RiderID != riderID || r.Status != ride.StatusCompleted {
		return nil, errors.NotFound("Ride not found or not eligible for rating", nil)
	}
	if r.Rating != nil {
		return nil, errors.ErrRideAlreadyRated
	}
	r.Rating = &rating
	r.Feedback = feedback
	return cloneRide(r), nil
}

func (f *fakeRides) ListByUser(_ context.Context, userID uuid.UUID, filter ride.HistoryFilter) ([]*ride.Ride, int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*ride.Ride
	for _, r := range f.s.rides {
		if !r.Involves(userID) {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, cloneRide(r))
	}
	return out, len(out), nil
}

func (f *fakeRides) ListAll(_ context.Context, filter ride.AdminFilter) ([]*ride.Ride, int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*ride.Ride
	for _, r := range f.s.rides {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, cloneRide(r))
	}
	return out, len(out), nil
}

type fakeDrivers struct{ s *store }

func (f *fakeDrivers) Create(_ context.Context, d *driver.Driver) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.drivers[d.ID] = cloneDriver(d)
	return nil
}

func (f *fakeDrivers) GetByUserID(_ context.Context, userID uuid.UUID) (*driver.Driver, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	d, ok := f.s.drivers[userID]
	if !ok {
		return nil, errors.ErrDriverNotFound
	}
	return cloneDriver(d), nil
}

func (f *fakeDrivers) LicenseOrPlateInUse(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func (f *fakeDrivers) UpdateVehicle(_ context.Context, userID uuid.UUID, v driver.Vehicle) (*driver.Driver, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	d, ok := f.s.drivers[userID]
	if !ok {
		return nil, errors.ErrDriverNotFound
	}
	d.Vehicle = v
	return cloneDriver(d), nil
}

func (f *fakeDrivers) SetAvailability(_ context.Context, userID uuid.UUID, status driver.Status, lat, lng *float64) (*driver.Driver, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	d, ok := f.s.drivers[userID]
	if !ok {
		return nil, errors.ErrDriverNotFound
	}
	if d.Status == driver.StatusBusy {
		return nil, errors.ErrDriverNotAvailable
	}
	d.Status = status
	if lat != nil && lng != nil {
		d.CurrentLatitude = lat
		d.CurrentLongitude = lng
	}
	return cloneDriver(d), nil
}

func (f *fakeDrivers) ClaimBusy(_ context.Context, userID uuid.UUID) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	d, ok := f.s.drivers[userID]
	if !ok || d.Status != driver.StatusOnline || d.ApprovalStatus != driver.ApprovalApproved {
		return false, nil
	}
	d.Status = driver.StatusBusy
	return true, nil
}

func (f *fakeDrivers) Release(_ context.Context, userID uuid.UUID) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if d, ok := f.s.drivers[userID]; ok && d.Status == driver.StatusBusy {
		d.Status = driver.StatusOnline
	}
	return nil
}

func (f *fakeDrivers) UpdateLocation(_ context.Context, userID uuid.UUID, lat, lng float64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	d, ok := f.s.drivers[userID]
	if !ok {
		return errors.ErrDriverNotFound
	}
	d.CurrentLatitude = &lat
	d.CurrentLongitude = &lng
	return nil
}

func (f *fakeDrivers) SetApproval(_ context.Context, userID uuid.UUID, status driver.ApprovalStatus) (*driver.Driver, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	d, ok := f.s.drivers[userID]
	if !ok {
		return nil, errors.ErrDriverNotFound
	}
	d.ApprovalStatus = status
	if status == driver.ApprovalSuspended {
		d.Status = driver.StatusOffline
	}
	return cloneDriver(d), nil
}

func (f *fakeDrivers) RecalculateRating(_ context.Context, userID uuid.UUID) (float64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	d, ok := f.s.drivers[userID]
	if !ok {
		return 0, errors.ErrDriverNotFound
	}
	sum, count := 0, 0
	for _, r := range f.s.rides {
		if r.DriverID != nil && *r.DriverID == userID && r.Rating != nil {
			sum += *r.Rating
			count++
		}
	}
	rating := 5.0
	if count > 0 {
		rating = math.Round(float64(sum)/float64(count)*10) / 10
	}
	d.Rating = rating
	return rating, nil
}

func (f *fakeDrivers) List(_ context.Context, _ driver.ListFilter) ([]*driver.Driver, int, error) {
	return nil, 0, nil
}

var _ ride.Repository = (*fakeRides)(nil)
var _ driver.Repository = (*fakeDrivers)(nil)

func newTestService(t *testing.T) (*Service, *store) {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)

	s := newStore()
	pricingSvc := pricing.NewService(pricing.Config{
		BaseFare: map[ride.Type]float64{
			ride.TypeEconomy: 50, ride.TypePremium: 100, ride.TypeLuxury: 200,
		},
		PerKMRate: map[ride.Type]float64{
			ride.TypeEconomy: 15, ride.TypePremium: 22, ride.TypeLuxury: 35,
		},
	})

	svc := NewService(&fakeRides{s}, &fakeDrivers{s}, pricingSvc, log)
	return svc, s
}

func seedDriver(s *store, approval driver.ApprovalStatus, status driver.Status) uuid.UUID {
	id := uuid.New()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[id] = &driver.Driver{
		User:           user.User{ID: id, Role: user.RoleDriver, IsActive: true},
		ApprovalStatus: approval,
		Status:         status,
		Rating:         5.0,
	}
	return id
}

func bangaloreTrip() RequestInput {
	return RequestInput{
		Pickup:      ride.Location{Address: "MG Road", Latitude: 12.9, Longitude: 77.6},
		Destination: ride.Location{Address: "Hebbal", Latitude: 13.0, Longitude: 77.7},
		Type:        ride.TypeEconomy,
	}
}

// TestRequest_CreatesRideWithEstimate tests the booking path end to end
func TestRequest_CreatesRideWithEstimate(t *testing.T) {
	svc, _ := newTestService(t)
	riderID := uuid.New()

	rd, err := svc.Request(context.Background(), riderID, bangaloreTrip())
	require.NoError(t, err)

	assert.Equal(t, ride.StatusRequested, rd.Status)
	assert.Equal(t, riderID, rd.RiderID)
	assert.Nil(t, rd.DriverID)
	assert.InDelta(t, 15.5, rd.DistanceKM, 0.3)
	// 50 base + ~15.5km * 15/km
	assert.InDelta(t, 283.0, rd.Fare, 6.0)
	assert.Greater(t, rd.Fare, 0.0)
}

// TestRequest_SecondActiveRideRejected tests the one-active-ride rule
func TestRequest_SecondActiveRideRejected(t *testing.T) {
	svc, _ := newTestService(t)
	riderID := uuid.New()

	_, err := svc.Request(context.Background(), riderID, bangaloreTrip())
	require.NoError(t, err)

	_, err = svc.Request(context.Background(), riderID, bangaloreTrip())
	assert.ErrorIs(t, err, errors.ErrActiveRideExists)
}

// TestRequest_InvalidType tests ride type validation
func TestRequest_InvalidType(t *testing.T) {
	svc, _ := newTestService(t)

	input := bangaloreTrip()
	input.Type = ride.Type("rickshaw")

	_, err := svc.Request(context.Background(), uuid.New(), input)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", errors.GetAppError(err).Code)
}

// TestAccept_AssignsDriverAndFlipsBusy tests the happy acceptance path
func TestAccept_AssignsDriverAndFlipsBusy(t *testing.T) {
	svc, s := newTestService(t)
	riderID := uuid.New()
	driverID := seedDriver(s, driver.ApprovalApproved, driver.StatusOnline)

	rd, err := svc.Request(context.Background(), riderID, bangaloreTrip())
	require.NoError(t, err)

	accepted, err := svc.Accept(context.Background(), driverID, rd.ID)
	require.NoError(t, err)

	assert.Equal(t, ride.StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.DriverID)
	assert.Equal(t, driverID, *accepted.DriverID)
	assert.NotNil(t, accepted.AcceptedAt)

	d, err := svc.drivers.GetByUserID(context.Background(), driverID)
	require.NoError(t, err)
	assert.Equal(t, driver.StatusBusy, d.Status)
}

// TestAccept_UnapprovedDriverRejected tests the approval gate
func TestAccept_UnapprovedDriverRejected(t *testing.T) {
	svc, s := newTestService(t)
	driverID := seedDriver(s, driver.ApprovalPending, driver.StatusOnline)

	rd, err := svc.Request(context.Background(), uuid.New(), bangaloreTrip())
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), driverID, rd.ID)
	assert.ErrorIs(t, err, errors.ErrDriverNotApproved)
}

// TestAccept_OfflineDriverRejected tests that an offline driver cannot claim
func TestAccept_OfflineDriverRejected(t *testing.T) {
	svc, s := newTestService(t)
	driverID := seedDriver(s, driver.ApprovalApproved, driver.StatusOffline)

	rd, err := svc.Request(context.Background(), uuid.New(), bangaloreTrip())
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), driverID, rd.ID)
	assert.ErrorIs(t, err, errors.ErrDriverNotAvailable)
}

// TestAccept_SecondDriverGetsConflict tests losing an already-decided race
func TestAccept_SecondDriverGetsConflict(t *testing.T) {
	svc, s := newTestService(t)
	first := seedDriver(s, driver.ApprovalApproved, driver.StatusOnline)
	second := seedDriver(s, driver.ApprovalApproved, driver.StatusOnline)

	rd, err := svc.Request(context.Background(), uuid.New(), bangaloreTrip())
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), first, rd.ID)
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), second, rd.ID)
	assert.ErrorIs(t, err, errors.ErrRideAlreadyTaken)

	// The loser must be back online, not stuck busy.
	d, err := svc.drivers.GetByUserID(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, driver.StatusOnline, d.Status)
}

// TestAccept_ConcurrentDriversOneWinner tests at-most-one-winner acceptance
// under real concurrency
func TestAccept_ConcurrentDriversOneWinner(t *testing.T) {
	svc, s := newTestService(t)

	rd, err := svc.Request(context.Background(), uuid.New(), bangaloreTrip())
	require.NoError(t, err)

	const contenders = 8
	driverIDs := make([]uuid.UUID, contenders)
	for i := range driverIDs {
		driverIDs[i] = seedDriver(s, driver.ApprovalApproved, driver.StatusOnline)
	}

	var wg sync.WaitGroup
	results := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Accept(context.Background(), driverIDs[i], rd.ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "Exactly one driver should win the ride")

	// Everyone except the winner is back online.
	busy := 0
	for _, id := range driverIDs {
		d, err := svc.drivers.GetByUserID(context.Background(), id)
		require.NoError(t, err)
		if d.Status == driver.StatusBusy {
			busy++
		}
	}
	assert.Equal(t, 1, busy)
}

// TestUpdateStatus_FullLifecycle tests the complete ride flow and driver
// settlement
func TestUpdateStatus_FullLifecycle(t *testing.T) {
	svc, s := newTestService(t)
	riderID := uuid.New()
	driverID := seedDriver(s, driver.ApprovalApproved, driver.StatusOnline)

	rd, err := svc.Request(context.Background(), riderID, bangaloreTrip())
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), driverID, rd.ID)
	require.NoError(t, err)

	rd, err = svc.UpdateStatus(context.Background(), driverID, rd.ID, ride.StatusPickedUp)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusPickedUp, rd.Status)
	assert.NotNil(t, rd.PickedUpAt)

	rd, err = svc.UpdateStatus(context.Background(), driverID, rd.ID, ride.StatusInTransit)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusInTransit, rd.Status)

	rd, err = svc.UpdateStatus(context.Background(), driverID, rd.ID, ride.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusCompleted, rd.Status)
	assert.NotNil(t, rd.CompletedAt)
	assert.NotNil(t, rd.DurationMinutes)

	d, err := svc.drivers.GetByUserID(context.Background(), driverID)
	require.NoError(t, err)
	assert.Equal(t, driver.StatusOnline, d.Status)
	assert.Equal(t, 1, d.TotalRides)
	assert.Equal(t, rd.Fare, d.TotalEarnings)
}

// TestUpdateStatus_IllegalJumpRejected tests skipping lifecycle steps
func TestUpdateStatus_IllegalJumpRejected(t *testing.T) {
	svc, s := newTestService(t)
	driverID := seedDriver(s, driver.ApprovalApproved, driver.StatusOnline)

	rd, err := svc.Request(context.Background(), uuid.New(), bangaloreTrip())
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), driverID, rd.ID)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), driverID, rd.ID, ride.StatusCompleted)
	require.Error(t, err)
	assert.Equal(t, "INVALID_TRANSITION", errors.GetAppError(err).Code)
}

// TestUpdateStatus_WrongDriverForbidden tests that only the assigned driver
// may move the ride
func TestUpdateStatus_WrongDriverForbidden(t *testing.T) {
	svc, s := newTestService(t)
	assigned := seedDriver(s, driver.ApprovalApproved, driver.StatusOnline)
	other := seedDriver(s, driver.ApprovalApproved, driver.StatusOnline)

	rd, err := svc.Request(context.Background(), uuid.New(), bangaloreTrip())
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), assigned, rd.ID)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), other, rd.ID, ride.StatusPickedUp)
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", errors.GetAppError(err).Code)
}

// TestUpdateStatus_RejectReturnsRideToPool tests driver rejection
func TestUpdateStatus_RejectReturnsRideToPool(t *testing.T) {
	svc, s := newTestService(t)
	driverID := seedDriver(s, driver.ApprovalApproved, driver.StatusOnline)

	rd, err := svc.Request(context.Background(), uuid.New(), bangaloreTrip())
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), driverID, rd.ID)
	require.NoError(t, err)

	rd, err = svc.UpdateStatus(context.Background(), driverID, rd.ID, ride.StatusRejected)
	require.NoError(t, err)

	// Rejection is transient: the ride rests as requested and claimable.
	assert.Equal(t, ride.StatusRequested, rd.Status)
	assert.Nil(t, rd.DriverID)
	assert.Nil(t, rd.AcceptedAt)

	d, err := svc.drivers.GetByUserID(context.Background(), driverID)
	require.NoError(t, err)
	assert.Equal(t, driver.StatusOnline, d.Status)

	// Another driver can now take it.
	second := seedDriver(s, driver.ApprovalApproved, driver.StatusOnline)
	_, err = svc.Accept(context.Background(), second, rd.ID)
	assert.NoError(t, err)
}

// TestCancel_ByRiderBeforePickup tests rider cancellation windows
func TestCancel_ByRiderBeforePickup(t *testing.T) {
	svc, s := newTestService(t)
	driverID := seedDriver(s, driver.ApprovalApproved, driver.StatusOnline)
	rider := &user.User{ID: uuid.New(), Role: user.RoleRider, IsActive: true}

	rd, err := svc.Request(context.Background(), rider.ID, bangaloreTrip())
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), driverID, rd.ID)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), rider, rd.ID, "changed my mind")
	require.NoError(t, err)

	assert.Equal(t, ride.StatusCancelled, cancelled.Status)
	assert.Equal(t, "rider", cancelled.CancelledBy)
	assert.Equal(t, "changed my mind", cancelled.CancellationReason)

	d, err := svc.drivers.GetByUserID(context.Background(), driverID)
	require.NoError(t, err)
	assert.Equal(t, driver.StatusOnline, d.Status)
}

// raceAcceptOnCancel injects a driver acceptance between the service's
// pre-cancel read and the conditional cancel update.
type raceAcceptOnCancel struct {
	ride.Repository
	drivers  driver.Repository
	driverID uuid.UUID
	once     sync.Once
}

func (r *raceAcceptOnCancel) Cancel(ctx context.Context, rideID uuid.UUID, cancelledBy, reason string) (*ride.Ride, error) {
	r.once.Do(func() {
		if ok, _ := r.drivers.ClaimBusy(ctx, r.driverID); ok {
			_, _ = r.Repository.Claim(ctx, rideID, r.driverID)
		}
	})
	return r.Repository.Cancel(ctx, rideID, cancelledBy, reason)
}

// TestCancel_DriverAcceptingMidCancelIsReleased tests that a driver who
// accepts after the cancel decision was made is still released
func TestCancel_DriverAcceptingMidCancelIsReleased(t *testing.T) {
	log, err := logger.New(logger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)

	s := newStore()
	driverID := seedDriver(s, driver.ApprovalApproved, driver.StatusOnline)
	rider := &user.User{ID: uuid.New(), Role: user.RoleRider, IsActive: true}

	fakeDriverRepo := &fakeDrivers{s}
	rideRepo := &raceAcceptOnCancel{
		Repository: &fakeRides{s},
		drivers:    fakeDriverRepo,
		driverID:   driverID,
	}
	pricingSvc := pricing.NewService(pricing.Config{
		BaseFare:  map[ride.Type]float64{ride.TypeEconomy: 50},
		PerKMRate: map[ride.Type]float64{ride.TypeEconomy: 15},
	})
	svc := NewService(rideRepo, fakeDriverRepo, pricingSvc, log)

	rd, err := svc.Request(context.Background(), rider.ID, bangaloreTrip())
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), rider, rd.ID, "")
	require.NoError(t, err)

	assert.Equal(t, ride.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.DriverID, "The late acceptance should be visible on the cancelled row")
	assert.Equal(t, driverID, *cancelled.DriverID)

	d, err := fakeDriverRepo.GetByUserID(context.Background(), driverID)
	require.NoError(t, err)
	assert.Equal(t, driver.StatusOnline, d.Status, "Driver must not stay busy after the ride was cancelled")
}

// TestCancel_AfterPickupRejected tests that in-progress rides cannot be
// cancelled
func TestCancel_AfterPickupRejected(t *testing.T) {
	svc, s := newTestService(t)
	driverID := seedDriver(s, driver.ApprovalApproved, driver.StatusOnline)
	rider := &user.User{ID: uuid.New(), Role: user.RoleRider, IsActive: true}

	rd, err := svc.Request(context.Background(), rider.ID, bangaloreTrip())
	require.NoError(t, err)
	_, err = svc.Accept(context.Background(), driverID, rd.ID)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), driverID, rd.ID, ride.StatusPickedUp)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), rider, rd.ID, "")
	require.Error(t, err)
	assert.Equal(t, "INVALID_TRANSITION", errors.GetAppError(err).Code)
}

// TestCancel_StrangerForbidden tests that outsiders cannot cancel
func TestCancel_StrangerForbidden(t *testing.T) {
	svc, _ := newTestService(t)
	stranger := &user.User{ID: uuid.New(), Role: user.RoleRider, IsActive: true}

	rd, err := svc.Request(context.Background(), uuid.New(), bangaloreTrip())
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), stranger, rd.ID, "")
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", errors.GetAppError(err).Code)
}

// completeRide drives a fresh ride through its full lifecycle.
func completeRide(t *testing.T, svc *Service, riderID, driverID uuid.UUID) *ride.Ride {
	t.Helper()

	rd, err := svc.Request(context.Background(), riderID, bangaloreTrip())
	require.NoError(t, err)
	_, err = svc.Accept(context.Background(), driverID, rd.ID)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), driverID, rd.ID, ride.StatusPickedUp)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), driverID, rd.ID, ride.StatusInTransit)
	require.NoError(t, err)
	rd, err = svc.UpdateStatus(context.Background(), driverID, rd.ID, ride.StatusCompleted)
	require.NoError(t, err)
	return rd
}

// TestRate_OnceAndDriverAverage tests one-time rating and the driver average
func TestRate_OnceAndDriverAverage(t *testing.T) {
	svc, s := newTestService(t)
	driverID := seedDriver(s, driver.ApprovalApproved, driver.StatusOnline)
	riderA := uuid.New()
	riderB := uuid.New()

	first := completeRide(t, svc, riderA, driverID)
	second := completeRide(t, svc, riderB, driverID)

	rated, err := svc.Rate(context.Background(), riderA, first.ID, 4, "good ride")
	require.NoError(t, err)
	require.NotNil(t, rated.Rating)
	assert.Equal(t, 4, *rated.Rating)

	_, err = svc.Rate(context.Background(), riderB, second.ID, 5, "")
	require.NoError(t, err)

	d, err := svc.drivers.GetByUserID(context.Background(), driverID)
	require.NoError(t, err)
	assert.Equal(t, 4.5, d.Rating, "Driver rating should be the arithmetic mean")

	// Second attempt on the same ride fails.
	_, err = svc.Rate(context.Background(), riderA, first.ID, 1, "")
	assert.ErrorIs(t, err, errors.ErrRideAlreadyRated)
}

// TestRate_BoundsChecked tests rating validation
func TestRate_BoundsChecked(t *testing.T) {
	svc, _ := newTestService(t)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.Rate(context.Background(), uuid.New(), uuid.New(), rating, "")
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_FAILED", errors.GetAppError(err).Code)
	}
}

// TestAvailable_RequiresOnlineApprovedDriver tests the eligibility gates
func TestAvailable_RequiresOnlineApprovedDriver(t *testing.T) {
	svc, s := newTestService(t)

	offline := seedDriver(s, driver.ApprovalApproved, driver.StatusOffline)
	_, err := svc.Available(context.Background(), offline)
	assert.ErrorIs(t, err, errors.ErrDriverOffline)

	pending := seedDriver(s, driver.ApprovalPending, driver.StatusOnline)
	_, err = svc.Available(context.Background(), pending)
	assert.ErrorIs(t, err, errors.ErrDriverNotApproved)
}

// TestAvailable_SortedByDistance tests nearest-first ordering for a located
// driver
func TestAvailable_SortedByDistance(t *testing.T) {
	svc, s := newTestService(t)
	driverID := seedDriver(s, driver.ApprovalApproved, driver.StatusOnline)

	lat, lng := 12.90, 77.60
	s.mu.Lock()
	s.drivers[driverID].CurrentLatitude = &lat
	s.drivers[driverID].CurrentLongitude = &lng
	s.mu.Unlock()

	near := bangaloreTrip()
	far := RequestInput{
		Pickup:      ride.Location{Address: "Airport", Latitude: 13.2, Longitude: 77.7},
		Destination: ride.Location{Address: "City", Latitude: 12.9, Longitude: 77.6},
		Type:        ride.TypeEconomy,
	}

	farRide, err := svc.Request(context.Background(), uuid.New(), far)
	require.NoError(t, err)
	nearRide, err := svc.Request(context.Background(), uuid.New(), near)
	require.NoError(t, err)

	available, err := svc.Available(context.Background(), driverID)
	require.NoError(t, err)
	require.Len(t, available, 2)

	assert.Equal(t, nearRide.ID, available[0].ID)
	assert.Equal(t, farRide.ID, available[1].ID)
	require.NotNil(t, available[0].DistanceFromDriver)
	require.NotNil(t, available[1].DistanceFromDriver)
	assert.Less(t, *available[0].DistanceFromDriver, *available[1].DistanceFromDriver)
}

// TestCurrent_ReturnsActiveRide tests current-ride lookup for both parties
func TestCurrent_ReturnsActiveRide(t *testing.T) {
	svc, s := newTestService(t)
	riderID := uuid.New()
	driverID := seedDriver(s, driver.ApprovalApproved, driver.StatusOnline)

	_, err := svc.Current(context.Background(), riderID)
	assert.ErrorIs(t, err, errors.ErrNoActiveRide)

	rd, err := svc.Request(context.Background(), riderID, bangaloreTrip())
	require.NoError(t, err)
	_, err = svc.Accept(context.Background(), driverID, rd.ID)
	require.NoError(t, err)

	forRider, err := svc.Current(context.Background(), riderID)
	require.NoError(t, err)
	assert.Equal(t, rd.ID, forRider.ID)

	forDriver, err := svc.Current(context.Background(), driverID)
	require.NoError(t, err)
	assert.Equal(t, rd.ID, forDriver.ID)
}
