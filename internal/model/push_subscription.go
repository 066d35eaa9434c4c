package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Lots []SubscriptionLot `gorm:"foreignKey:Endpoint;references:Endpoint;constraint:OnDelete:CASCADE"`
}

// SubscriptionLot links a subscription to a lot whose gate activity it follows.
type SubscriptionLot struct {
	Endpoint string `gorm:"primaryKey"`
	LotID    int64  `gorm:"primaryKey;index"`
}
