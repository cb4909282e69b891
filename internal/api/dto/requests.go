package dto

// RegisterRequest creates a user account
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Phone    string `json:"phone" binding:"required,min=7,max=20"`
	Role     string `json:"role" binding:"required,oneof=rider driver"`
}

// LoginRequest authenticates by email and password
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest changes profile fields; zero values are left untouched
type UpdateProfileRequest struct {
	Name  string `json:"name" binding:"omitempty,min=2,max=100"`
	Email string `json:"email" binding:"omitempty,email"`
	Phone string `json:"phone" binding:"omitempty,min=7,max=20"`
}

// ChangePasswordRequest rotates the account password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// VehicleRequest holds vehicle details for driver registration and updates
type VehicleRequest struct {
	Make        string `json:"make" binding:"required"`
	Model       string `json:"model" binding:"required"`
	Year        int    `json:"year" binding:"required,min=1990,max=2100"`
	PlateNumber string `json:"plate_number" binding:"required"`
	Color       string `json:"color" binding:"required"`
}

// RegisterDriverRequest creates the driver profile for a driver-role user
type RegisterDriverRequest struct {
	LicenseNumber string         `json:"license_number" binding:"required"`
	Vehicle       VehicleRequest `json:"vehicle" binding:"required"`
}

// LocationRequest is an address with coordinates
type LocationRequest struct {
	Address   string  `json:"address" binding:"required"`
	Latitude  float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude float64 `json:"longitude" binding:"required,min=-180,max=180"`
}

// RequestRideRequest books a new ride
type RequestRideRequest struct {
	Pickup      LocationRequest `json:"pickup_location" binding:"required"`
	Destination LocationRequest `json:"destination" binding:"required"`
	RideType    string          `json:"ride_type" binding:"required,oneof=economy premium luxury"`
}

// CancelRideRequest cancels a ride with an optional reason
type CancelRideRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// UpdateRideStatusRequest moves a ride along its lifecycle
type UpdateRideStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=picked_up in_transit completed rejected"`
}

// RateRideRequest records the rider's rating on a completed ride
type RateRideRequest struct {
	Rating   int    `json:"rating" binding:"required,min=1,max=5"`
	Feedback string `json:"feedback" binding:"omitempty,max=1000"`
}

// AvailabilityRequest flips a driver online or offline
type AvailabilityRequest struct {
	Status    string   `json:"status" binding:"required,oneof=online offline"`
	Latitude  *float64 `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude" binding:"omitempty,min=-180,max=180"`
}

// UpdateLocationRequest updates the driver's current position
type UpdateLocationRequest struct {
	Latitude  float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude float64 `json:"longitude" binding:"min=-180,max=180"`
}

// BlockUserRequest blocks an account with a reason
type BlockUserRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}
