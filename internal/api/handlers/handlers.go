package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-booking/internal/auth"
	"github.com/gocomet/ride-booking/internal/config"
	"github.com/gocomet/ride-booking/internal/domain/driver"
	"github.com/gocomet/ride-booking/internal/domain/report"
	"github.com/gocomet/ride-booking/internal/domain/ride"
	"github.com/gocomet/ride-booking/internal/domain/user"
	"github.com/gocomet/ride-booking/internal/service/rides"
	"github.com/gocomet/ride-booking/pkg/cache"
	"github.com/gocomet/ride-booking/pkg/logger"
	"github.com/gocomet/ride-booking/pkg/monitoring"
	ws "github.com/gocomet/ride-booking/pkg/websocket"
	"github.com/redis/go-redis/v9"
)

// Deps bundles everything the HTTP layer needs, built once in main.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	Users   user.Repository
	Drivers driver.Repository
	Rides   ride.Repository
	Reports report.Repository
	RideSvc *rides.Service
	Tokens  *auth.TokenManager
	Hasher  *auth.PasswordHasher
	Redis   *redis.Client
	Hub     *ws.Hub
	NewRel  *monitoring.NewRelicApp
}

// Handlers holds all HTTP handler dependencies.
type Handlers struct {
	cfg     *config.Config
	logger  *logger.Logger
	users   user.Repository
	drivers driver.Repository
	rides   ride.Repository
	reports report.Repository
	rideSvc *rides.Service
	tokens  *auth.TokenManager
	hasher  *auth.PasswordHasher
	redis   *redis.Client
	hub     *ws.Hub
	nr      *monitoring.NewRelicApp
}

// New creates a new Handlers instance.
func New(d Deps) *Handlers {
	return &Handlers{
		cfg:     d.Config,
		logger:  d.Logger,
		users:   d.Users,
		drivers: d.Drivers,
		rides:   d.Rides,
		reports: d.Reports,
		rideSvc: d.RideSvc,
		tokens:  d.Tokens,
		hasher:  d.Hasher,
		redis:   d.Redis,
		hub:     d.Hub,
		nr:      d.NewRel,
	}
}

// notifyUser pushes an event over the hub and mirrors it on the per-user
// Redis channel. Fire and forget on both legs.
func (h *Handlers) notifyUser(ctx context.Context, userID string, event ws.Event) {
	h.hub.SendToUser(userID, event)
	if err := cache.PublishUserEvent(ctx, h.redis, userID, event); err != nil {
		h.logger.Warn("failed to publish user event",
			logger.String("user_id", userID),
			logger.String("event_type", event.Type),
			logger.Err(err))
	}
}

// pageParams reads page/limit query parameters with sane bounds.
func pageParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// paginated is the list payload shape.
type paginated struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}
