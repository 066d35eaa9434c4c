package store

import (
	"context"
	"errors"
	"time"

	"parking-gate-backend/internal/model"
)

var (
	// ErrNotFound is returned by lookups that must resolve to exactly one row.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a unique registration key is already taken.
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrOpenSessionExists is returned by OpenNew when the plate already has an open session.
	ErrOpenSessionExists = errors.New("store: open session already exists")
	// ErrSessionNotOpen is returned by CloseOpen when the session is no longer open.
	ErrSessionNotOpen = errors.New("store: session is not open")
)

// GateDirectory resolves device credentials to registered gates.
type GateDirectory interface {
	ResolveGate(ctx context.Context, deviceKey string) (model.GateDevice, error)
}

// GateRegistry is the read-write side of the gate directory.
type GateRegistry interface {
	GateDirectory
	CreateGate(ctx context.Context, gate *model.GateDevice) error
	ListGates(ctx context.Context, lotID int64) ([]model.GateDevice, error)
}

// VehicleRegistry holds vehicles registered to a lot.
type VehicleRegistry interface {
	// LookupVehicle returns nil, nil when the plate is not registered.
	LookupVehicle(ctx context.Context, lotID int64, plateNumber string) (*model.Vehicle, error)
	CreateVehicle(ctx context.Context, vehicle *model.Vehicle) error
	ListVehicles(ctx context.Context, lotID int64) ([]model.Vehicle, error)
}

// NewSession carries the fields of a session about to be opened.
type NewSession struct {
	LotID       int64
	PlateNumber string
	VehicleID   *int64
	GateID      int64
	EnteredAt   time.Time
}

// SessionStore owns the parking session lifecycle.
//
// Implementations enforce that at most one session per (lot, plate) is OPEN:
// OpenNew fails with ErrOpenSessionExists instead of superseding the existing
// session, and CloseOpen fails with ErrSessionNotOpen when the session was
// already closed.
type SessionStore interface {
	FindOpen(ctx context.Context, lotID int64, plateNumber string) (*model.ParkingSession, error)
	FindLatest(ctx context.Context, lotID int64, plateNumber string) (*model.ParkingSession, error)
	OpenNew(ctx context.Context, s NewSession) (model.ParkingSession, error)
	CloseOpen(ctx context.Context, session model.ParkingSession, gateID int64, at time.Time) (model.ParkingSession, error)
	ListOpen(ctx context.Context, lotID int64) ([]model.ParkingSession, error)
	// ListByDateRange returns sessions entered within [from, to), oldest first.
	ListByDateRange(ctx context.Context, lotID int64, from, to time.Time) ([]model.ParkingSession, error)
}

// EventLog is the append-only audit trail of processed detections.
type EventLog interface {
	AppendEvent(ctx context.Context, deviceKey, plateNumber string, action model.ParkingAction) (model.ParkingEvent, error)
}

// SubscriptionStore persists web push subscriptions and the lots they follow.
type SubscriptionStore interface {
	PutSubscription(ctx context.Context, sub model.PushSubscription, lotIDs []int64) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	// GetSubscription returns ErrNotFound for unknown endpoints.
	GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	SubscriptionsForLot(ctx context.Context, lotID int64) ([]model.PushSubscription, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	GateRegistry
	VehicleRegistry
	SessionStore
	EventLog
	SubscriptionStore
	Ping(ctx context.Context) error
}
