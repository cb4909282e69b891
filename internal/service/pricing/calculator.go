package pricing

import (
	"math"

	"github.com/gocomet/ride-booking/internal/domain/ride"
)

// Config holds per-ride-type fare parameters
type Config struct {
	BaseFare  map[ride.Type]float64
	PerKMRate map[ride.Type]float64
}

// ConfigFromMaps builds a Config from string-keyed maps (the env config form).
func ConfigFromMaps(baseFare, perKM map[string]float64) Config {
	cfg := Config{
		BaseFare:  make(map[ride.Type]float64, len(baseFare)),
		PerKMRate: make(map[ride.Type]float64, len(perKM)),
	}
	for k, v := range baseFare {
		cfg.BaseFare[ride.Type(k)] = v
	}
	for k, v := range perKM {
		cfg.PerKMRate[ride.Type(k)] = v
	}
	return cfg
}

// Service computes distances and fare estimates
type Service struct {
	config Config
}

// NewService creates a new pricing service
func NewService(config Config) *Service {
	return &Service{config: config}
}

// EstimateFare computes base fare plus distance at the per-km rate for the
// ride type. The estimate is deterministic for a fixed input and never
// negative.
func (s *Service) EstimateFare(rideType ride.Type, distanceKM float64) float64 {
	if distanceKM < 0 {
		distanceKM = 0
	}
	baseFare := s.config.BaseFare[rideType]
	perKM := s.config.PerKMRate[rideType]

	fare := baseFare + distanceKM*perKM
	return math.Round(fare*100) / 100
}

// Distance returns the haversine distance in kilometers between two points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKM = 6371

	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKM * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
