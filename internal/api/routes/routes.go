package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-booking/internal/api/handlers"
	"github.com/gocomet/ride-booking/internal/api/middleware"
	"github.com/gocomet/ride-booking/internal/config"
	"github.com/gocomet/ride-booking/internal/domain/user"
	"github.com/gocomet/ride-booking/pkg/logger"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
)

// Setup configures all API routes and middleware.
func Setup(
	r *gin.Engine,
	h *handlers.Handlers,
	auth *middleware.Auth,
	cfg *config.Config,
	redisClient *redis.Client,
	log *logger.Logger,
	nrApp *newrelic.Application,
) {
	if nrApp != nil {
		r.Use(nrgin.Middleware(nrApp))
	}

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORS.AllowedOrigins) == 1 && cfg.CORS.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	r.Use(cors.New(corsConfig))

	r.Use(middleware.RateLimit(redisClient, cfg.RateLimit, log))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	v1 := r.Group("/api/v1")
	{
		// WebSocket connection (token authenticated via query parameter)
		v1.GET("/ws", h.HandleWebSocket)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", h.Register)
			authGroup.POST("/login", h.Login)

			authGroup.POST("/register/driver",
				auth.Authenticate(), auth.RequireRole(user.RoleDriver), h.RegisterDriver)
			authGroup.GET("/profile", auth.Authenticate(), h.Profile)
			authGroup.PATCH("/profile", auth.Authenticate(), h.UpdateProfile)
			authGroup.PATCH("/change-password", auth.Authenticate(), h.ChangePassword)
			authGroup.PATCH("/deactivate", auth.Authenticate(), h.Deactivate)
		}

		rides := v1.Group("/rides", auth.Authenticate())
		{
			rides.POST("/request", auth.RequireRole(user.RoleRider), h.RequestRide)
			rides.GET("/available",
				auth.RequireRole(user.RoleDriver), auth.RequireApprovedDriver(), h.AvailableRides)
			rides.POST("/:id/accept",
				auth.RequireRole(user.RoleDriver), auth.RequireApprovedDriver(), h.AcceptRide)
			rides.PATCH("/:id/status",
				auth.RequireRole(user.RoleDriver), auth.RequireApprovedDriver(), h.UpdateRideStatus)
			rides.POST("/:id/cancel", h.CancelRide)
			rides.POST("/:id/rate", auth.RequireRole(user.RoleRider), h.RateRide)
			rides.GET("/history", h.RideHistory)
			rides.GET("/current", h.CurrentRide)
		}

		drivers := v1.Group("/drivers",
			auth.Authenticate(), auth.RequireRole(user.RoleDriver), auth.RequireApprovedDriver())
		{
			drivers.PATCH("/availability", h.UpdateAvailability)
			drivers.PATCH("/location", h.UpdateLocation)
			drivers.GET("/earnings", h.Earnings)
			drivers.PATCH("/vehicle", h.UpdateVehicle)
		}

		admin := v1.Group("/admin", auth.Authenticate(), auth.RequireRole(user.RoleAdmin))
		{
			admin.GET("/users", h.ListUsers)
			admin.GET("/users/:id", h.GetUser)
			admin.GET("/drivers", h.ListDrivers)
			admin.GET("/rides", h.ListRides)
			admin.GET("/rides/:id", h.GetRide)
			admin.PATCH("/drivers/:id/approve", h.ApproveDriver)
			admin.PATCH("/drivers/:id/suspend", h.SuspendDriver)
			admin.PATCH("/users/:id/block", h.BlockUser)
			admin.PATCH("/users/:id/unblock", h.UnblockUser)
			admin.GET("/dashboard/stats", h.DashboardStats)
		}
	}
}
