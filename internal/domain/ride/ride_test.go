package ride

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestCanTransition_AllowedMoves tests every legal driver-side transition
func TestCanTransition_AllowedMoves(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
	}{
		{"accepted to picked_up", StatusAccepted, StatusPickedUp},
		{"accepted to rejected", StatusAccepted, StatusRejected},
		{"picked_up to in_transit", StatusPickedUp, StatusInTransit},
		{"in_transit to completed", StatusInTransit, StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, CanTransition(tt.from, tt.to))
		})
	}
}

// TestCanTransition_IllegalMoves tests that out-of-order moves are rejected
func TestCanTransition_IllegalMoves(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
	}{
		{"requested to picked_up", StatusRequested, StatusPickedUp},
		{"requested to completed", StatusRequested, StatusCompleted},
		{"accepted to completed", StatusAccepted, StatusCompleted},
		{"accepted to in_transit", StatusAccepted, StatusInTransit},
		{"picked_up to completed", StatusPickedUp, StatusCompleted},
		{"picked_up to rejected", StatusPickedUp, StatusRejected},
		{"in_transit to picked_up", StatusInTransit, StatusPickedUp},
		{"completed to in_transit", StatusCompleted, StatusInTransit},
		{"cancelled to accepted", StatusCancelled, StatusAccepted},
		{"backwards picked_up to accepted", StatusPickedUp, StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, CanTransition(tt.from, tt.to))
		})
	}
}

// TestStatusIsActive tests which statuses count toward the one-active-ride
// rule
func TestStatusIsActive(t *testing.T) {
	assert.True(t, StatusRequested.IsActive())
	assert.True(t, StatusAccepted.IsActive())
	assert.True(t, StatusPickedUp.IsActive())
	assert.True(t, StatusInTransit.IsActive())

	assert.False(t, StatusCompleted.IsActive())
	assert.False(t, StatusCancelled.IsActive())
}

// TestCanCancel tests cancellation windows
func TestCanCancel(t *testing.T) {
	tests := []struct {
		status   Status
		expected bool
	}{
		{StatusRequested, true},
		{StatusAccepted, true},
		{StatusPickedUp, false},
		{StatusInTransit, false},
		{StatusCompleted, false},
		{StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			r := &Ride{Status: tt.status}
			assert.Equal(t, tt.expected, r.CanCancel())
		})
	}
}

// TestInvolves tests participant checks
func TestInvolves(t *testing.T) {
	riderID := uuid.New()
	driverID := uuid.New()
	strangerID := uuid.New()

	r := &Ride{RiderID: riderID, DriverID: &driverID}

	assert.True(t, r.Involves(riderID))
	assert.True(t, r.Involves(driverID))
	assert.False(t, r.Involves(strangerID))

	unassigned := &Ride{RiderID: riderID}
	assert.True(t, unassigned.Involves(riderID))
	assert.False(t, unassigned.Involves(driverID))
}

// TestTypeIsValid tests ride type validation
func TestTypeIsValid(t *testing.T) {
	assert.True(t, TypeEconomy.IsValid())
	assert.True(t, TypePremium.IsValid())
	assert.True(t, TypeLuxury.IsValid())
	assert.False(t, Type("bicycle").IsValid())
	assert.False(t, Type("").IsValid())
}
