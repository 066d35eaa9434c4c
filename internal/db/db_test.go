package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-gate-backend/config"
	"parking-gate-backend/internal/model"
)

func TestInit_SQLite(t *testing.T) {
	gormDB, err := Init(&config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)

	for _, table := range []any{
		&model.GateDevice{}, &model.Vehicle{}, &model.ParkingSession{},
		&model.ParkingEvent{}, &model.PushSubscription{}, &model.SubscriptionLot{},
	} {
		assert.True(t, gormDB.Migrator().HasTable(table))
	}
}

func TestOpen_MemoryDriverHasNoConnection(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "memory"})
	assert.Error(t, err)
}
