package monitoring

import (
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// Config holds New Relic configuration
type Config struct {
	LicenseKey string
	AppName    string
	Enabled    bool
}

// NewRelicApp wraps the New Relic application
type NewRelicApp struct {
	*newrelic.Application
	enabled bool
}

// New creates a new New Relic application. Without a license key the wrapper
// is a no-op so handlers never have to nil-check.
func New(cfg Config) (*NewRelicApp, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return &NewRelicApp{nil, false}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigAppLogForwardingEnabled(true),
		newrelic.ConfigDistributedTracerEnabled(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create New Relic application: %w", err)
	}

	return &NewRelicApp{app, true}, nil
}

// RecordCustomEvent records a custom event
func (nr *NewRelicApp) RecordCustomEvent(eventType string, params map[string]interface{}) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.RecordCustomEvent(eventType, params)
}

// Shutdown gracefully shuts down the New Relic application
func (nr *NewRelicApp) Shutdown(timeout time.Duration) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.Shutdown(timeout)
}

// IsEnabled returns whether New Relic is enabled
func (nr *NewRelicApp) IsEnabled() bool {
	return nr.enabled
}

// RecordRideRequested records ride creation with its estimate
func (nr *NewRelicApp) RecordRideRequested(rideType string, estimatedFare, distanceKM float64) {
	nr.RecordCustomEvent("RideRequested", map[string]interface{}{
		"ride_type":      rideType,
		"estimated_fare": estimatedFare,
		"distance_km":    distanceKM,
	})
}

// RecordRideCompleted records ride completion
func (nr *NewRelicApp) RecordRideCompleted(rideID string, fare float64, durationMinutes int) {
	nr.RecordCustomEvent("RideCompleted", map[string]interface{}{
		"ride_id":          rideID,
		"fare":             fare,
		"duration_minutes": durationMinutes,
	})
}

// RecordRideCancelled records ride cancellation with the acting party
func (nr *NewRelicApp) RecordRideCancelled(rideID, cancelledBy string) {
	nr.RecordCustomEvent("RideCancelled", map[string]interface{}{
		"ride_id":      rideID,
		"cancelled_by": cancelledBy,
	})
}
