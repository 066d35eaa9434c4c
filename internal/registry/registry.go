// Package registry registers gates and vehicles to parking lots.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"parking-gate-backend/internal/model"
	"parking-gate-backend/internal/plate"
	"parking-gate-backend/internal/store"
)

var (
	// ErrDuplicate is returned when the device key or (lot, plate) is already registered.
	ErrDuplicate = errors.New("already registered")
	// ErrInvalid is returned for malformed registration requests.
	ErrInvalid = errors.New("invalid registration")
)

// GateRequest describes a gate to register.
type GateRequest struct {
	LotID     int64               `json:"parkingLotId"`
	Name      string              `json:"name"`
	DeviceKey string              `json:"deviceKey"`
	Direction model.GateDirection `json:"direction"`
}

// VehicleRequest describes a vehicle to register. PlateNumber may contain
// whitespace; it is normalized before storage.
type VehicleRequest struct {
	LotID       int64                 `json:"parkingLotId"`
	PlateNumber string                `json:"plateNumber"`
	Label       string                `json:"label"`
	Category    model.VehicleCategory `json:"category"`
	Memo        *string               `json:"memo"`
}

// Service validates registrations and writes them to the store.
type Service struct {
	gates    store.GateRegistry
	vehicles store.VehicleRegistry
}

func NewService(gates store.GateRegistry, vehicles store.VehicleRegistry) *Service {
	return &Service{gates: gates, vehicles: vehicles}
}

func (s *Service) RegisterGate(ctx context.Context, req GateRequest) (model.GateDevice, error) {
	name := strings.TrimSpace(req.Name)
	deviceKey := strings.TrimSpace(req.DeviceKey)
	switch {
	case req.LotID <= 0:
		return model.GateDevice{}, fmt.Errorf("%w: parkingLotId must be positive", ErrInvalid)
	case name == "":
		return model.GateDevice{}, fmt.Errorf("%w: name is required", ErrInvalid)
	case deviceKey == "":
		return model.GateDevice{}, fmt.Errorf("%w: deviceKey is required", ErrInvalid)
	case !req.Direction.Valid():
		return model.GateDevice{}, fmt.Errorf("%w: unknown direction %q", ErrInvalid, req.Direction)
	}

	gate := model.GateDevice{
		LotID:     req.LotID,
		Name:      name,
		DeviceKey: deviceKey,
		Direction: req.Direction,
	}
	if err := s.gates.CreateGate(ctx, &gate); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return model.GateDevice{}, fmt.Errorf("%w: gate deviceKey %s", ErrDuplicate, deviceKey)
		}
		return model.GateDevice{}, err
	}
	return gate, nil
}

func (s *Service) ListGates(ctx context.Context, lotID int64) ([]model.GateDevice, error) {
	return s.gates.ListGates(ctx, lotID)
}

func (s *Service) RegisterVehicle(ctx context.Context, req VehicleRequest) (model.Vehicle, error) {
	plateNumber := plate.Normalize(req.PlateNumber)
	label := strings.TrimSpace(req.Label)
	switch {
	case req.LotID <= 0:
		return model.Vehicle{}, fmt.Errorf("%w: parkingLotId must be positive", ErrInvalid)
	case plateNumber == "":
		return model.Vehicle{}, fmt.Errorf("%w: plateNumber is required", ErrInvalid)
	case label == "":
		return model.Vehicle{}, fmt.Errorf("%w: label is required", ErrInvalid)
	case !req.Category.Valid():
		return model.Vehicle{}, fmt.Errorf("%w: unknown category %q", ErrInvalid, req.Category)
	}

	vehicle := model.Vehicle{
		LotID:       req.LotID,
		PlateNumber: plateNumber,
		Label:       label,
		Category:    req.Category,
		Memo:        req.Memo,
	}
	if err := s.vehicles.CreateVehicle(ctx, &vehicle); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return model.Vehicle{}, fmt.Errorf("%w: vehicle %s in lot %d", ErrDuplicate, plateNumber, req.LotID)
		}
		return model.Vehicle{}, err
	}
	return vehicle, nil
}

func (s *Service) ListVehicles(ctx context.Context, lotID int64) ([]model.Vehicle, error) {
	return s.vehicles.ListVehicles(ctx, lotID)
}
