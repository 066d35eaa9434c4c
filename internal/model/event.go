package model

import "time"

// ParkingAction is the transition the decision engine applied.
type ParkingAction string

const (
	ActionEnter ParkingAction = "ENTER"
	ActionExit  ParkingAction = "EXIT"
)

// ParkingEvent is an audit row written for every processed detection.
type ParkingEvent struct {
	ID          int64         `gorm:"primaryKey"`
	DeviceKey   string        `gorm:"index;size:128;not null"`
	PlateNumber string        `gorm:"size:32;not null"`
	Action      ParkingAction `gorm:"size:8;not null"`
	CreatedAt   time.Time     `gorm:"not null"`
}
