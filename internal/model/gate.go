package model

import "time"

// GateDirection is the set of transitions a gate is allowed to trigger.
type GateDirection string

const (
	DirectionEnter GateDirection = "ENTER"
	DirectionExit  GateDirection = "EXIT"
	DirectionBoth  GateDirection = "BOTH"
)

// Valid reports whether d is one of the known directions.
func (d GateDirection) Valid() bool {
	switch d {
	case DirectionEnter, DirectionExit, DirectionBoth:
		return true
	}
	return false
}

// AllowsEnter reports whether the gate may open a session.
func (d GateDirection) AllowsEnter() bool {
	return d == DirectionEnter || d == DirectionBoth
}

// AllowsExit reports whether the gate may close a session.
func (d GateDirection) AllowsExit() bool {
	return d == DirectionExit || d == DirectionBoth
}

// GateDevice is a registered camera/sensor at a lot entrance or exit.
type GateDevice struct {
	ID        int64         `gorm:"primaryKey" json:"id"`
	LotID     int64         `gorm:"index;not null" json:"parkingLotId"`
	Name      string        `gorm:"size:128;not null" json:"name"`
	DeviceKey string        `gorm:"uniqueIndex;size:128;not null" json:"deviceKey"`
	Direction GateDirection `gorm:"size:8;not null" json:"direction"`
	CreatedAt time.Time     `gorm:"not null" json:"-"`
}
