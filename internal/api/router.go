package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"parking-gate-backend/internal/mw"
)

// RouterOptions tunes the HTTP middleware.
type RouterOptions struct {
	// RateLimit is requests per second per client IP; zero disables limiting.
	RateLimit float64
	Burst     int
	// CacheTTL is how long listing responses are cached; zero disables caching.
	CacheTTL time.Duration
}

// NewRouter creates and configures a new Gin router.
func NewRouter(d Deps, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), mw.RequestID())

	var responses *cache.Cache
	var caching gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if opts.CacheTTL > 0 {
		responses = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
		caching = mw.Cache(responses, opts.CacheTTL)
	}
	handler := NewHandler(d, responses)

	r.GET("/healthz", handler.Health)

	api := r.Group("/api/v1")
	// Gate devices share addresses behind NAT, so detections are not limited
	// per IP.
	api.POST("/events/plate-detected", handler.PlateDetected)

	limited := api.Group("")
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limited.Use(mw.RateLimiter(rate.Limit(opts.RateLimit), burst))
	}
	{
		limited.POST("/gates/register", handler.RegisterGate)
		limited.GET("/gates", caching, handler.ListGates)
		limited.POST("/vehicles", handler.RegisterVehicle)
		limited.GET("/vehicles", caching, handler.ListVehicles)

		limited.GET("/sessions/open", handler.OpenSessions)
		limited.GET("/sessions/history", handler.SessionHistory)
		limited.GET("/parking-lots/:lotId/sessions/current/:plateNumber", handler.CurrentSession)

		limited.GET("/subscriptions", handler.GetSubscription)
		limited.PUT("/subscriptions", handler.PutSubscription)
		limited.DELETE("/subscriptions", handler.DeleteSubscription)
		limited.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
