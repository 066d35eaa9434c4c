// Package memory is an in-process Store backend for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"parking-gate-backend/internal/model"
	"parking-gate-backend/internal/store"
)

// Store keeps every table in maps and slices guarded by a single RWMutex.
// Sessions live in an arena slice; a session's ID is its index + 1.
type Store struct {
	mu sync.RWMutex

	gates    []model.GateDevice
	gateKeys map[string]int

	vehicles    []model.Vehicle
	vehicleKeys map[string]int

	sessions []model.ParkingSession
	openIdx  map[string]int

	events []model.ParkingEvent

	subs    map[string]model.PushSubscription
	subLots map[string][]int64
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		gateKeys:    make(map[string]int),
		vehicleKeys: make(map[string]int),
		openIdx:     make(map[string]int),
		subs:        make(map[string]model.PushSubscription),
		subLots:     make(map[string][]int64),
	}
}

func (s *Store) Ping(_ context.Context) error { return nil }

// --- Gates ---

func (s *Store) ResolveGate(_ context.Context, deviceKey string) (model.GateDevice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.gateKeys[deviceKey]
	if !ok {
		return model.GateDevice{}, store.ErrNotFound
	}
	return s.gates[i], nil
}

func (s *Store) CreateGate(_ context.Context, gate *model.GateDevice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.gateKeys[gate.DeviceKey]; ok {
		return store.ErrDuplicate
	}
	gate.ID = int64(len(s.gates) + 1)
	if gate.CreatedAt.IsZero() {
		gate.CreatedAt = time.Now().UTC()
	}
	s.gateKeys[gate.DeviceKey] = len(s.gates)
	s.gates = append(s.gates, *gate)
	return nil
}

func (s *Store) ListGates(_ context.Context, lotID int64) ([]model.GateDevice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.GateDevice{}
	for _, g := range s.gates {
		if g.LotID == lotID {
			out = append(out, g)
		}
	}
	return out, nil
}

// --- Vehicles ---

func (s *Store) LookupVehicle(_ context.Context, lotID int64, plateNumber string) (*model.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.vehicleKeys[model.OpenKeyFor(lotID, plateNumber)]
	if !ok {
		return nil, nil
	}
	v := s.vehicles[i]
	return &v, nil
}

func (s *Store) CreateVehicle(_ context.Context, vehicle *model.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.OpenKeyFor(vehicle.LotID, vehicle.PlateNumber)
	if _, ok := s.vehicleKeys[key]; ok {
		return store.ErrDuplicate
	}
	vehicle.ID = int64(len(s.vehicles) + 1)
	if vehicle.CreatedAt.IsZero() {
		vehicle.CreatedAt = time.Now().UTC()
	}
	s.vehicleKeys[key] = len(s.vehicles)
	s.vehicles = append(s.vehicles, *vehicle)
	return nil
}

func (s *Store) ListVehicles(_ context.Context, lotID int64) ([]model.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Vehicle{}
	for _, v := range s.vehicles {
		if v.LotID == lotID {
			out = append(out, v)
		}
	}
	return out, nil
}

// --- Sessions ---

func (s *Store) FindOpen(_ context.Context, lotID int64, plateNumber string) (*model.ParkingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.openIdx[model.OpenKeyFor(lotID, plateNumber)]
	if !ok {
		return nil, nil
	}
	sess := s.sessions[i]
	return &sess, nil
}

func (s *Store) FindLatest(_ context.Context, lotID int64, plateNumber string) (*model.ParkingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.sessions) - 1; i >= 0; i-- {
		sess := s.sessions[i]
		if sess.LotID == lotID && sess.PlateNumber == plateNumber {
			return &sess, nil
		}
	}
	return nil, nil
}

func (s *Store) OpenNew(_ context.Context, ns store.NewSession) (model.ParkingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.OpenKeyFor(ns.LotID, ns.PlateNumber)
	if _, ok := s.openIdx[key]; ok {
		return model.ParkingSession{}, store.ErrOpenSessionExists
	}

	sess := model.ParkingSession{
		ID:          int64(len(s.sessions) + 1),
		LotID:       ns.LotID,
		PlateNumber: ns.PlateNumber,
		VehicleID:   ns.VehicleID,
		EnterGateID: ns.GateID,
		EnteredAt:   ns.EnteredAt.UTC(),
		Status:      model.SessionOpen,
		OpenKey:     &key,
		UpdatedAt:   time.Now().UTC(),
	}
	s.openIdx[key] = len(s.sessions)
	s.sessions = append(s.sessions, sess)
	return sess, nil
}

func (s *Store) CloseOpen(_ context.Context, session model.ParkingSession, gateID int64, at time.Time) (model.ParkingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := int(session.ID) - 1
	if i < 0 || i >= len(s.sessions) || s.sessions[i].Status != model.SessionOpen {
		return model.ParkingSession{}, store.ErrSessionNotOpen
	}

	at = at.UTC()
	sess := s.sessions[i]
	delete(s.openIdx, model.OpenKeyFor(sess.LotID, sess.PlateNumber))
	sess.Status = model.SessionClosed
	sess.ExitGateID = &gateID
	sess.ExitedAt = &at
	sess.OpenKey = nil
	sess.UpdatedAt = time.Now().UTC()
	s.sessions[i] = sess
	return sess, nil
}

func (s *Store) ListOpen(_ context.Context, lotID int64) ([]model.ParkingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.ParkingSession{}
	for _, i := range s.openIdx {
		if s.sessions[i].LotID == lotID {
			out = append(out, s.sessions[i])
		}
	}
	sortSessions(out)
	return out, nil
}

func (s *Store) ListByDateRange(_ context.Context, lotID int64, from, to time.Time) ([]model.ParkingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.ParkingSession{}
	for _, sess := range s.sessions {
		if sess.LotID != lotID {
			continue
		}
		if sess.EnteredAt.Before(from) || !sess.EnteredAt.Before(to) {
			continue
		}
		out = append(out, sess)
	}
	sortSessions(out)
	return out, nil
}

func sortSessions(sessions []model.ParkingSession) {
	sort.SliceStable(sessions, func(a, b int) bool {
		if !sessions[a].EnteredAt.Equal(sessions[b].EnteredAt) {
			return sessions[a].EnteredAt.Before(sessions[b].EnteredAt)
		}
		return sessions[a].ID < sessions[b].ID
	})
}

// --- Events ---

func (s *Store) AppendEvent(_ context.Context, deviceKey, plateNumber string, action model.ParkingAction) (model.ParkingEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := model.ParkingEvent{
		ID:          int64(len(s.events) + 1),
		DeviceKey:   deviceKey,
		PlateNumber: plateNumber,
		Action:      action,
		CreatedAt:   time.Now().UTC(),
	}
	s.events = append(s.events, ev)
	return ev, nil
}

// Events returns a copy of all recorded events. Test-only helper.
func (s *Store) Events() []model.ParkingEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ParkingEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Sessions returns a copy of every session, open and closed. Test-only helper.
func (s *Store) Sessions() []model.ParkingSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ParkingSession, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// --- Subscriptions ---

func (s *Store) PutSubscription(_ context.Context, sub model.PushSubscription, lotIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.subs[sub.Endpoint]; ok {
		sub.CreatedAt = existing.CreatedAt
	} else if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	sub.Lots = nil
	s.subs[sub.Endpoint] = sub

	seen := make(map[int64]struct{}, len(lotIDs))
	lots := make([]int64, 0, len(lotIDs))
	for _, id := range lotIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		lots = append(lots, id)
	}
	s.subLots[sub.Endpoint] = lots
	return nil
}

func (s *Store) DeleteSubscription(_ context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, endpoint)
	delete(s.subLots, endpoint)
	return nil
}

func (s *Store) GetSubscription(_ context.Context, endpoint string) (model.PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[endpoint]
	if !ok {
		return model.PushSubscription{}, store.ErrNotFound
	}
	for _, id := range s.subLots[endpoint] {
		sub.Lots = append(sub.Lots, model.SubscriptionLot{Endpoint: endpoint, LotID: id})
	}
	return sub, nil
}

func (s *Store) SubscriptionsForLot(_ context.Context, lotID int64) ([]model.PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.PushSubscription
	for endpoint, lots := range s.subLots {
		for _, id := range lots {
			if id == lotID {
				out = append(out, s.subs[endpoint])
				break
			}
		}
	}
	return out, nil
}
