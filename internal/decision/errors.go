package decision

import (
	"errors"
	"fmt"
	"strings"

	"parking-gate-backend/internal/model"
)

// Kind categorizes decision failures. Callers branch on Kind, never on message text.
type Kind string

const (
	// KindNotFound indicates the device key is not registered to any gate.
	KindNotFound Kind = "GATE_NOT_FOUND"

	// KindInvalidDirection indicates the gate does not permit the transition
	// the plate's current state requires.
	KindInvalidDirection Kind = "INVALID_DIRECTION"

	// KindInvalidInput indicates a detection with an empty device key or plate.
	KindInvalidInput Kind = "BAD_REQUEST"

	// KindInvariantViolation is the unreachable branch of the decision table.
	// It always indicates a bug.
	KindInvariantViolation Kind = "INVARIANT_VIOLATION"

	// KindStorageUnavailable indicates a transient storage failure. It is the
	// only kind a caller may retry.
	KindStorageUnavailable Kind = "STORAGE_UNAVAILABLE"
)

// Error is returned by Engine.Decide for every failed detection.
//
// It carries enough context to reconstruct the decision that was attempted.
type Error struct {
	Kind    Kind
	Message string

	DeviceKey   string
	LotID       int64
	PlateNumber string
	// Action is the transition that was attempted, empty if none was chosen yet.
	Action model.ParkingAction

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)

	var ctx []string
	if e.DeviceKey != "" {
		ctx = append(ctx, "device="+e.DeviceKey)
	}
	if e.LotID != 0 {
		ctx = append(ctx, fmt.Sprintf("lot=%d", e.LotID))
	}
	if e.PlateNumber != "" {
		ctx = append(ctx, "plate="+e.PlateNumber)
	}
	if e.Action != "" {
		ctx = append(ctx, "action="+string(e.Action))
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or "" if err is not a *Error.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsRetryable reports whether the caller may retry the detection.
func IsRetryable(err error) bool {
	return KindOf(err) == KindStorageUnavailable
}
