package model

import (
	"strconv"
	"time"
)

// SessionStatus is the lifecycle state of a parking session.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "OPEN"
	SessionClosed SessionStatus = "CLOSED"
)

// ParkingSession is one visit of a plate to a lot, from entry to exit.
//
// OpenKey is set to OpenKeyFor(LotID, PlateNumber) while the session is OPEN and
// cleared when it closes. Its unique index is what keeps a second open session
// for the same plate out of the table.
type ParkingSession struct {
	ID          int64  `gorm:"primaryKey"`
	LotID       int64  `gorm:"index:idx_sessions_lot_entered;not null"`
	PlateNumber string `gorm:"index;size:32;not null"`
	VehicleID   *int64
	EnterGateID int64 `gorm:"not null"`
	ExitGateID  *int64
	EnteredAt   time.Time `gorm:"index:idx_sessions_lot_entered;not null"`
	ExitedAt    *time.Time
	Status      SessionStatus `gorm:"size:8;index;not null"`
	OpenKey     *string       `gorm:"uniqueIndex;size:64"`
	UpdatedAt   time.Time
}

// OpenKeyFor returns the uniqueness key held by the open session of a plate.
func OpenKeyFor(lotID int64, plate string) string {
	return strconv.FormatInt(lotID, 10) + ":" + plate
}

// LastTransition returns the gate and time of the most recent ENTER or EXIT
// applied to the session.
func (s ParkingSession) LastTransition() (int64, time.Time) {
	if s.Status == SessionClosed && s.ExitGateID != nil && s.ExitedAt != nil {
		return *s.ExitGateID, *s.ExitedAt
	}
	return s.EnterGateID, s.EnteredAt
}
