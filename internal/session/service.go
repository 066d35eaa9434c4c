// Package session reports on parking sessions: what is inside a lot now,
// what happened on a given day, and where a plate currently is.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parking-gate-backend/internal/model"
	"parking-gate-backend/internal/plate"
	"parking-gate-backend/internal/store"
)

const dateLayout = "2006-01-02"

var (
	// ErrInvalidDate is returned when a history date is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date, use YYYY-MM-DD")
	// ErrNoSession is returned by Current when the plate has no open session.
	ErrNoSession = errors.New("no open session")
)

// View is a session decorated for API responses. Times are RFC3339 in the
// service's zone.
type View struct {
	ID              int64                  `json:"id"`
	LotID           int64                  `json:"parkingLotId"`
	PlateNumber     string                 `json:"plateNumber"`
	VehicleID       *int64                 `json:"vehicleId"`
	VehicleLabel    *string                `json:"vehicleLabel"`
	VehicleCategory *model.VehicleCategory `json:"vehicleCategory"`
	EnterGateID     int64                  `json:"enterGateId"`
	ExitGateID      *int64                 `json:"exitGateId"`
	EnteredAt       string                 `json:"enteredAt"`
	ExitedAt        *string                `json:"exitedAt"`
	Status          model.SessionStatus    `json:"status"`
}

type Service struct {
	sessions store.SessionStore
	vehicles store.VehicleRegistry
	loc      *time.Location
}

// NewService returns a reporting service. loc decides calendar days and the
// offset of rendered timestamps; nil means UTC.
func NewService(sessions store.SessionStore, vehicles store.VehicleRegistry, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{sessions: sessions, vehicles: vehicles, loc: loc}
}

func (s *Service) OpenSessions(ctx context.Context, lotID int64) ([]View, error) {
	sessions, err := s.sessions.ListOpen(ctx, lotID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, sessions)
}

// History returns the sessions that entered the lot on date, a calendar day
// in the service's zone.
func (s *Service) History(ctx context.Context, lotID int64, date string) ([]View, error) {
	from, err := time.ParseInLocation(dateLayout, date, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	to := from.AddDate(0, 0, 1)

	sessions, err := s.sessions.ListByDateRange(ctx, lotID, from, to)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, sessions)
}

// Current returns the open session of a plate. rawPlate is normalized first.
func (s *Service) Current(ctx context.Context, lotID int64, rawPlate string) (View, error) {
	plateNumber := plate.Normalize(rawPlate)
	open, err := s.sessions.FindOpen(ctx, lotID, plateNumber)
	if err != nil {
		return View{}, err
	}
	if open == nil {
		return View{}, fmt.Errorf("%w for %s in lot %d", ErrNoSession, plateNumber, lotID)
	}
	vs, err := s.views(ctx, []model.ParkingSession{*open})
	if err != nil {
		return View{}, err
	}
	return vs[0], nil
}

func (s *Service) views(ctx context.Context, sessions []model.ParkingSession) ([]View, error) {
	vehicles := make(map[string]*model.Vehicle)
	out := make([]View, 0, len(sessions))
	for _, sess := range sessions {
		v := View{
			ID:          sess.ID,
			LotID:       sess.LotID,
			PlateNumber: sess.PlateNumber,
			VehicleID:   sess.VehicleID,
			EnterGateID: sess.EnterGateID,
			ExitGateID:  sess.ExitGateID,
			EnteredAt:   s.format(sess.EnteredAt),
			Status:      sess.Status,
		}
		if sess.ExitedAt != nil {
			exited := s.format(*sess.ExitedAt)
			v.ExitedAt = &exited
		}

		if sess.VehicleID != nil {
			key := model.OpenKeyFor(sess.LotID, sess.PlateNumber)
			vehicle, seen := vehicles[key]
			if !seen {
				var err error
				vehicle, err = s.vehicles.LookupVehicle(ctx, sess.LotID, sess.PlateNumber)
				if err != nil {
					return nil, err
				}
				vehicles[key] = vehicle
			}
			if vehicle != nil {
				label, category := vehicle.Label, vehicle.Category
				v.VehicleLabel = &label
				v.VehicleCategory = &category
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) format(t time.Time) string {
	return t.In(s.loc).Format(time.RFC3339)
}
