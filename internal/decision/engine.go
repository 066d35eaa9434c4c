// Package decision turns plate detections at gates into authoritative ENTER
// and EXIT transitions.
//
// For every (lot, plate) pair at most one parking session is OPEN at any
// instant. Decide serializes detections for the same pair with an in-process
// keyed lock and relies on the SessionStore's insert-if-absent and
// close-if-open operations when several processes share one store.
package decision

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"parking-gate-backend/internal/model"
	"parking-gate-backend/internal/notification"
	"parking-gate-backend/internal/plate"
	"parking-gate-backend/internal/store"
)

const (
	msgExitWithoutSession = "cannot exit through an entry-only gate with no active session"
	msgEnterWhileInside   = "cannot enter through an exit-only gate while a session is active"

	defaultEventTimeout = 2 * time.Second
)

// Notifier receives a notice for every applied transition.
type Notifier interface {
	Dispatch(n notification.Notice)
}

// Options tunes an Engine. The zero value is usable.
type Options struct {
	// DuplicateWindow suppresses repeated detections of a plate at the gate
	// that applied its last transition. It only applies where the gate
	// allows the next transition, so one-way gates still reject mismatched
	// detections. Zero disables suppression.
	DuplicateWindow time.Duration

	// EventTimeout bounds the event log append. Defaults to 2s.
	EventTimeout time.Duration

	Logger   *log.Logger
	Notifier Notifier

	// Now is the clock used when a detection has no capture time.
	Now func() time.Time
}

// Detection is a single plate read reported by a gate device.
type Detection struct {
	DeviceKey   string
	PlateNumber string
	// CapturedAt defaults to the time Decide is called.
	CapturedAt time.Time
}

// Outcome is the result of a successful detection.
type Outcome struct {
	Action          model.ParkingAction   `json:"action"`
	SessionID       int64                 `json:"sessionId"`
	PlateNumber     string                `json:"plateNumber"`
	IsRegistered    bool                  `json:"isRegistered"`
	VehicleLabel    string                `json:"vehicleLabel,omitempty"`
	VehicleCategory model.VehicleCategory `json:"vehicleCategory,omitempty"`
	// Duplicate is set when the detection repeated the last transition and
	// nothing was changed.
	Duplicate bool `json:"duplicate,omitempty"`

	LotID  int64 `json:"-"`
	GateID int64 `json:"-"`
}

// Engine is safe for concurrent use.
type Engine struct {
	gates    store.GateDirectory
	vehicles store.VehicleRegistry
	sessions store.SessionStore
	events   store.EventLog

	locks *keyLocks
	opts  Options
	log   *log.Logger
}

// New creates an Engine over the given collaborators.
func New(gates store.GateDirectory, vehicles store.VehicleRegistry, sessions store.SessionStore, events store.EventLog, opts Options) *Engine {
	if opts.EventTimeout <= 0 {
		opts.EventTimeout = defaultEventTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		gates:    gates,
		vehicles: vehicles,
		sessions: sessions,
		events:   events,
		locks:    newKeyLocks(),
		opts:     opts,
		log:      logger,
	}
}

// Decide applies a detection and returns the transition it produced.
//
// Errors are always *Error; use KindOf to branch on them.
func (e *Engine) Decide(ctx context.Context, d Detection) (Outcome, error) {
	deviceKey := strings.TrimSpace(d.DeviceKey)
	plateNumber := plate.Normalize(d.PlateNumber)
	if deviceKey == "" {
		return Outcome{}, &Error{Kind: KindInvalidInput, Message: "deviceKey is required", PlateNumber: plateNumber}
	}
	if plateNumber == "" {
		return Outcome{}, &Error{Kind: KindInvalidInput, Message: "plateNumber is required", DeviceKey: deviceKey}
	}
	at := d.CapturedAt
	if at.IsZero() {
		at = e.opts.Now()
	}

	gate, err := e.gates.ResolveGate(ctx, deviceKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Outcome{}, &Error{Kind: KindNotFound, Message: "gate not found: " + deviceKey, DeviceKey: deviceKey, PlateNumber: plateNumber}
		}
		return Outcome{}, &Error{Kind: KindStorageUnavailable, Message: "failed to resolve gate", DeviceKey: deviceKey, PlateNumber: plateNumber, Err: err}
	}

	unlock := e.locks.lock(model.OpenKeyFor(gate.LotID, plateNumber))
	out, err := e.decideWithRetry(ctx, gate, plateNumber, at)
	unlock()

	if err != nil {
		de := asError(err, gate, plateNumber)
		if de.Kind == KindInvariantViolation {
			e.log.Printf("INVARIANT VIOLATION: %v", de)
		}
		return Outcome{}, de
	}
	if out.Duplicate {
		return out, nil
	}

	e.recordEvent(ctx, deviceKey, out)
	e.notify(out, at)
	return out, nil
}

// decideWithRetry runs the read-decide-write step. A lost compare-and-swap
// means another writer decided first, so the step is re-run once against the
// fresh state.
func (e *Engine) decideWithRetry(ctx context.Context, gate model.GateDevice, plateNumber string, at time.Time) (Outcome, error) {
	out, err := e.decideOnce(ctx, gate, plateNumber, at)
	if !isConflict(err) {
		return out, err
	}
	e.log.Printf("Concurrent update for %s in lot %d, re-reading: %v", plateNumber, gate.LotID, err)

	out, err = e.decideOnce(ctx, gate, plateNumber, at)
	if isConflict(err) {
		return Outcome{}, &Error{Kind: KindStorageUnavailable, Message: "session changed concurrently, retry the detection", Err: err}
	}
	return out, err
}

func (e *Engine) decideOnce(ctx context.Context, gate model.GateDevice, plateNumber string, at time.Time) (Outcome, error) {
	open, err := e.sessions.FindOpen(ctx, gate.LotID, plateNumber)
	if err != nil {
		return Outcome{}, &Error{Kind: KindStorageUnavailable, Message: "failed to read open session", Err: err}
	}

	vehicle, err := e.vehicles.LookupVehicle(ctx, gate.LotID, plateNumber)
	if err != nil {
		return Outcome{}, &Error{Kind: KindStorageUnavailable, Message: "failed to look up vehicle", Err: err}
	}
	out := Outcome{PlateNumber: plateNumber, LotID: gate.LotID, GateID: gate.ID}
	if vehicle != nil {
		out.IsRegistered = true
		out.VehicleLabel = vehicle.Label
		out.VehicleCategory = vehicle.Category
	}

	// Only a detection the gate could act on is a candidate duplicate; a
	// one-way gate always gets its direction check.
	applicable := (open == nil && gate.Direction.AllowsEnter()) || (open != nil && gate.Direction.AllowsExit())
	if e.opts.DuplicateWindow > 0 && applicable {
		latest := open
		if latest == nil {
			if latest, err = e.sessions.FindLatest(ctx, gate.LotID, plateNumber); err != nil {
				return Outcome{}, &Error{Kind: KindStorageUnavailable, Message: "failed to read latest session", Err: err}
			}
		}
		if latest != nil && e.isDuplicate(*latest, gate.ID, at) {
			out.Action = model.ActionEnter
			if latest.Status == model.SessionClosed {
				out.Action = model.ActionExit
			}
			out.SessionID = latest.ID
			out.Duplicate = true
			return out, nil
		}
	}

	switch {
	case open == nil && gate.Direction.AllowsEnter():
		var vehicleID *int64
		if vehicle != nil {
			vehicleID = &vehicle.ID
		}
		session, err := e.sessions.OpenNew(ctx, store.NewSession{
			LotID:       gate.LotID,
			PlateNumber: plateNumber,
			VehicleID:   vehicleID,
			GateID:      gate.ID,
			EnteredAt:   at,
		})
		if err != nil {
			return Outcome{}, storageError(err, model.ActionEnter, "failed to open session")
		}
		out.Action = model.ActionEnter
		out.SessionID = session.ID
		return out, nil

	case open != nil && gate.Direction.AllowsExit():
		session, err := e.sessions.CloseOpen(ctx, *open, gate.ID, at)
		if err != nil {
			return Outcome{}, storageError(err, model.ActionExit, "failed to close session")
		}
		out.Action = model.ActionExit
		out.SessionID = session.ID
		return out, nil

	case open == nil && gate.Direction == model.DirectionExit:
		return Outcome{}, &Error{Kind: KindInvalidDirection, Message: msgExitWithoutSession, Action: model.ActionExit}

	case open != nil && gate.Direction == model.DirectionEnter:
		return Outcome{}, &Error{Kind: KindInvalidDirection, Message: msgEnterWhileInside, Action: model.ActionEnter}

	default:
		return Outcome{}, &Error{Kind: KindInvariantViolation, Message: "unhandled gate direction " + string(gate.Direction) + " for session state"}
	}
}

// isDuplicate reports whether a detection at gateID repeats the last
// transition of session within the duplicate window.
func (e *Engine) isDuplicate(session model.ParkingSession, gateID int64, at time.Time) bool {
	lastGate, lastAt := session.LastTransition()
	if lastGate != gateID {
		return false
	}
	d := at.Sub(lastAt)
	if d < 0 {
		d = -d
	}
	return d <= e.opts.DuplicateWindow
}

// recordEvent appends to the event log. It outlives request cancellation and
// never fails the detection.
func (e *Engine) recordEvent(ctx context.Context, deviceKey string, out Outcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.EventTimeout)
	defer cancel()

	if _, err := e.events.AppendEvent(ctx, deviceKey, out.PlateNumber, out.Action); err != nil {
		e.log.Printf("Failed to append %s event for %s at %s: %v", out.Action, out.PlateNumber, deviceKey, err)
	}
}

func (e *Engine) notify(out Outcome, at time.Time) {
	if e.opts.Notifier == nil {
		return
	}
	e.opts.Notifier.Dispatch(notification.Notice{
		LotID:        out.LotID,
		Action:       out.Action,
		SessionID:    out.SessionID,
		PlateNumber:  out.PlateNumber,
		VehicleLabel: out.VehicleLabel,
		At:           at,
	})
}

func isConflict(err error) bool {
	return errors.Is(err, store.ErrOpenSessionExists) || errors.Is(err, store.ErrSessionNotOpen)
}

// storageError keeps the conflict sentinels visible to decideWithRetry.
func storageError(err error, action model.ParkingAction, msg string) error {
	if isConflict(err) {
		return err
	}
	return &Error{Kind: KindStorageUnavailable, Message: msg, Action: action, Err: err}
}

// asError fills in the detection context on err.
func asError(err error, gate model.GateDevice, plateNumber string) *Error {
	var de *Error
	if !errors.As(err, &de) {
		de = &Error{Kind: KindStorageUnavailable, Message: "unexpected storage error", Err: err}
	}
	if de.DeviceKey == "" {
		de.DeviceKey = gate.DeviceKey
	}
	de.LotID = gate.LotID
	de.PlateNumber = plateNumber
	return de
}
