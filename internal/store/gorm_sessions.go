package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"parking-gate-backend/internal/model"
)

func (s *gormStore) FindOpen(ctx context.Context, lotID int64, plateNumber string) (*model.ParkingSession, error) {
	var session model.ParkingSession
	err := s.db.WithContext(ctx).
		Where("lot_id = ? AND plate_number = ? AND status = ?", lotID, plateNumber, model.SessionOpen).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open session for %s in lot %d: %w", plateNumber, lotID, err)
	}
	return &session, nil
}

func (s *gormStore) FindLatest(ctx context.Context, lotID int64, plateNumber string) (*model.ParkingSession, error) {
	var session model.ParkingSession
	err := s.db.WithContext(ctx).
		Where("lot_id = ? AND plate_number = ?", lotID, plateNumber).
		Order("entered_at DESC").Order("id DESC").
		Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest session for %s in lot %d: %w", plateNumber, lotID, err)
	}
	return &session, nil
}

// OpenNew inserts an OPEN session. The unique open_key column turns a racing
// second insert for the same plate into a constraint failure, reported as
// ErrOpenSessionExists.
func (s *gormStore) OpenNew(ctx context.Context, ns NewSession) (model.ParkingSession, error) {
	key := model.OpenKeyFor(ns.LotID, ns.PlateNumber)
	session := model.ParkingSession{
		LotID:       ns.LotID,
		PlateNumber: ns.PlateNumber,
		VehicleID:   ns.VehicleID,
		EnterGateID: ns.GateID,
		EnteredAt:   ns.EnteredAt.UTC(),
		Status:      model.SessionOpen,
		OpenKey:     &key,
	}

	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return model.ParkingSession{}, ErrOpenSessionExists
		}
		// Not every driver translates constraint errors; check for the winner directly.
		if existing, findErr := s.FindOpen(ctx, ns.LotID, ns.PlateNumber); findErr == nil && existing != nil {
			return model.ParkingSession{}, ErrOpenSessionExists
		}
		return model.ParkingSession{}, fmt.Errorf("failed to open session for %s in lot %d: %w", ns.PlateNumber, ns.LotID, err)
	}
	return session, nil
}

// CloseOpen moves an OPEN session to CLOSED. The status guard in the WHERE
// clause makes the update a compare-and-swap.
func (s *gormStore) CloseOpen(ctx context.Context, session model.ParkingSession, gateID int64, at time.Time) (model.ParkingSession, error) {
	at = at.UTC()
	res := s.db.WithContext(ctx).
		Model(&model.ParkingSession{}).
		Where("id = ? AND status = ?", session.ID, model.SessionOpen).
		Updates(map[string]any{
			"status":       model.SessionClosed,
			"exit_gate_id": gateID,
			"exited_at":    at,
			"open_key":     nil,
		})
	if res.Error != nil {
		return model.ParkingSession{}, fmt.Errorf("failed to close session %d: %w", session.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ParkingSession{}, ErrSessionNotOpen
	}

	session.Status = model.SessionClosed
	session.ExitGateID = &gateID
	session.ExitedAt = &at
	session.OpenKey = nil
	return session, nil
}

func (s *gormStore) ListOpen(ctx context.Context, lotID int64) ([]model.ParkingSession, error) {
	sessions := []model.ParkingSession{}
	err := s.db.WithContext(ctx).
		Where("lot_id = ? AND status = ?", lotID, model.SessionOpen).
		Order("entered_at").Order("id").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open sessions for lot %d: %w", lotID, err)
	}
	return sessions, nil
}

func (s *gormStore) ListByDateRange(ctx context.Context, lotID int64, from, to time.Time) ([]model.ParkingSession, error) {
	sessions := []model.ParkingSession{}
	err := s.db.WithContext(ctx).
		Where("lot_id = ? AND entered_at >= ? AND entered_at < ?", lotID, from.UTC(), to.UTC()).
		Order("entered_at").Order("id").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions for lot %d: %w", lotID, err)
	}
	return sessions, nil
}
