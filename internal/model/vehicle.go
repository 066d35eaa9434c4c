package model

import "time"

// VehicleCategory classifies a registered vehicle.
type VehicleCategory string

const (
	CategoryResident VehicleCategory = "RESIDENT"
	CategoryEmployee VehicleCategory = "EMPLOYEE"
	CategoryDelivery VehicleCategory = "DELIVERY"
	CategoryVisitor  VehicleCategory = "VISITOR"
)

// Valid reports whether c is one of the known categories.
func (c VehicleCategory) Valid() bool {
	switch c {
	case CategoryResident, CategoryEmployee, CategoryDelivery, CategoryVisitor:
		return true
	}
	return false
}

// Vehicle is a plate registered to a lot. PlateNumber is always normalized.
type Vehicle struct {
	ID          int64           `gorm:"primaryKey" json:"id"`
	LotID       int64           `gorm:"uniqueIndex:idx_vehicles_lot_plate;not null" json:"parkingLotId"`
	PlateNumber string          `gorm:"uniqueIndex:idx_vehicles_lot_plate;size:32;not null" json:"plateNumber"`
	Label       string          `gorm:"size:128;not null" json:"label"`
	Category    VehicleCategory `gorm:"size:16;not null" json:"category"`
	Memo        *string         `gorm:"size:512" json:"memo"`
	CreatedAt   time.Time       `gorm:"not null" json:"-"`
}
