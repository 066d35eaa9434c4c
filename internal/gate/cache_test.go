package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-gate-backend/internal/model"
	"parking-gate-backend/internal/store"
)

type countingDirectory struct {
	gates map[string]model.GateDevice
	calls int
}

func (d *countingDirectory) ResolveGate(_ context.Context, deviceKey string) (model.GateDevice, error) {
	d.calls++
	g, ok := d.gates[deviceKey]
	if !ok {
		return model.GateDevice{}, store.ErrNotFound
	}
	return g, nil
}

func TestCachedDirectory_ResolveGate(t *testing.T) {
	next := &countingDirectory{gates: map[string]model.GateDevice{
		"gate-n": {ID: 1, LotID: 1, DeviceKey: "gate-n", Direction: model.DirectionBoth},
	}}
	d := NewCachedDirectory(next, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		g, err := d.ResolveGate(ctx, "gate-n")
		require.NoError(t, err)
		assert.Equal(t, int64(1), g.ID)
	}
	assert.Equal(t, 1, next.calls)
}

func TestCachedDirectory_EntriesExpire(t *testing.T) {
	next := &countingDirectory{gates: map[string]model.GateDevice{
		"gate-n": {ID: 1, LotID: 1, DeviceKey: "gate-n", Direction: model.DirectionBoth},
	}}
	d := NewCachedDirectory(next, 20*time.Millisecond)
	ctx := context.Background()

	_, err := d.ResolveGate(ctx, "gate-n")
	require.NoError(t, err)

	next.gates["gate-n"] = model.GateDevice{ID: 1, LotID: 1, DeviceKey: "gate-n", Direction: model.DirectionExit}
	time.Sleep(50 * time.Millisecond)

	g, err := d.ResolveGate(ctx, "gate-n")
	require.NoError(t, err)
	assert.Equal(t, model.DirectionExit, g.Direction)
	assert.Equal(t, 2, next.calls)
}

func TestCachedDirectory_UnknownKeyNotCached(t *testing.T) {
	next := &countingDirectory{gates: map[string]model.GateDevice{}}
	d := NewCachedDirectory(next, time.Minute)
	ctx := context.Background()

	_, err := d.ResolveGate(ctx, "gate-s")
	assert.ErrorIs(t, err, store.ErrNotFound)

	next.gates["gate-s"] = model.GateDevice{ID: 2, DeviceKey: "gate-s", Direction: model.DirectionExit}
	g, err := d.ResolveGate(ctx, "gate-s")
	require.NoError(t, err)
	assert.Equal(t, model.DirectionExit, g.Direction)
	assert.Equal(t, 2, next.calls)
}
