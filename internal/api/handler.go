package api

import (
	"log"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"

	"parking-gate-backend/internal/decision"
	"parking-gate-backend/internal/registry"
	"parking-gate-backend/internal/session"
	"parking-gate-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	engine   *decision.Engine
	registry *registry.Service
	sessions *session.Service
	webpush  *webpush.Options
	cache    *cache.Cache
	logger   *log.Logger
}

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Store    store.Store
	Engine   *decision.Engine
	Registry *registry.Service
	Sessions *session.Service
	WebPush  *webpush.Options
	Logger   *log.Logger
}

// NewHandler creates a new API handler. responses is the GET response cache
// that registrations invalidate; it may be nil.
func NewHandler(d Deps, responses *cache.Cache) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		store:    d.Store,
		engine:   d.Engine,
		registry: d.Registry,
		sessions: d.Sessions,
		webpush:  d.WebPush,
		cache:    responses,
		logger:   logger,
	}
}
