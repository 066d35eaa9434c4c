package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-gate-backend/internal/model"
)

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// --- Gates ---

func (s *gormStore) ResolveGate(ctx context.Context, deviceKey string) (model.GateDevice, error) {
	var gate model.GateDevice
	err := s.db.WithContext(ctx).Where("device_key = ?", deviceKey).First(&gate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.GateDevice{}, ErrNotFound
	}
	if err != nil {
		return model.GateDevice{}, fmt.Errorf("failed to resolve gate %q: %w", deviceKey, err)
	}
	return gate, nil
}

func (s *gormStore) CreateGate(ctx context.Context, gate *model.GateDevice) error {
	if gate.CreatedAt.IsZero() {
		gate.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(gate).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		if _, findErr := s.ResolveGate(ctx, gate.DeviceKey); findErr == nil {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create gate %q: %w", gate.DeviceKey, err)
	}
	return nil
}

func (s *gormStore) ListGates(ctx context.Context, lotID int64) ([]model.GateDevice, error) {
	gates := []model.GateDevice{}
	if err := s.db.WithContext(ctx).Where("lot_id = ?", lotID).Order("id").Find(&gates).Error; err != nil {
		return nil, fmt.Errorf("failed to list gates for lot %d: %w", lotID, err)
	}
	return gates, nil
}

// --- Vehicles ---

func (s *gormStore) LookupVehicle(ctx context.Context, lotID int64, plateNumber string) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	err := s.db.WithContext(ctx).Where("lot_id = ? AND plate_number = ?", lotID, plateNumber).First(&vehicle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up vehicle %s in lot %d: %w", plateNumber, lotID, err)
	}
	return &vehicle, nil
}

func (s *gormStore) CreateVehicle(ctx context.Context, vehicle *model.Vehicle) error {
	if vehicle.CreatedAt.IsZero() {
		vehicle.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(vehicle).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		if existing, findErr := s.LookupVehicle(ctx, vehicle.LotID, vehicle.PlateNumber); findErr == nil && existing != nil {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create vehicle %s in lot %d: %w", vehicle.PlateNumber, vehicle.LotID, err)
	}
	return nil
}

func (s *gormStore) ListVehicles(ctx context.Context, lotID int64) ([]model.Vehicle, error) {
	vehicles := []model.Vehicle{}
	if err := s.db.WithContext(ctx).Where("lot_id = ?", lotID).Order("id").Find(&vehicles).Error; err != nil {
		return nil, fmt.Errorf("failed to list vehicles for lot %d: %w", lotID, err)
	}
	return vehicles, nil
}

// --- Events ---

func (s *gormStore) AppendEvent(ctx context.Context, deviceKey, plateNumber string, action model.ParkingAction) (model.ParkingEvent, error) {
	event := model.ParkingEvent{
		DeviceKey:   deviceKey,
		PlateNumber: plateNumber,
		Action:      action,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return model.ParkingEvent{}, fmt.Errorf("failed to append %s event for %s: %w", action, plateNumber, err)
	}
	return event, nil
}

// --- Subscriptions ---

func (s *gormStore) PutSubscription(ctx context.Context, sub model.PushSubscription, lotIDs []int64) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	sub.Lots = nil

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(&sub).Error; err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}

		if err := tx.Where("endpoint = ?", sub.Endpoint).Delete(&model.SubscriptionLot{}).Error; err != nil {
			return fmt.Errorf("failed to clear subscribed lots: %w", err)
		}

		if len(lotIDs) == 0 {
			return nil
		}
		links := make([]model.SubscriptionLot, 0, len(lotIDs))
		seen := make(map[int64]struct{}, len(lotIDs))
		for _, id := range lotIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			links = append(links, model.SubscriptionLot{Endpoint: sub.Endpoint, LotID: id})
		}
		if err := tx.Create(&links).Error; err != nil {
			return fmt.Errorf("failed to save subscribed lots: %w", err)
		}
		return nil
	})
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("endpoint = ?", endpoint).Delete(&model.SubscriptionLot{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.PushSubscription{Endpoint: endpoint}).Error
	})
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Preload("Lots").First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PushSubscription{}, ErrNotFound
	}
	if err != nil {
		return model.PushSubscription{}, err
	}
	return sub, nil
}

func (s *gormStore) SubscriptionsForLot(ctx context.Context, lotID int64) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_lots sl ON sl.endpoint = push_subscriptions.endpoint").
		Where("sl.lot_id = ?", lotID).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for lot %d: %w", lotID, err)
	}
	return subs, nil
}
