package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackendCopiesRecords(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()

	rec := Record{"id": "1", "status": "available"}
	require.NoError(t, m.Save(ctx, Snapshot{Entity: Slots, Fields: []string{"id", "status"}, Records: []Record{rec}}))
	rec["status"] = "booked"

	loaded, err := m.Load(ctx, Slots)
	require.NoError(t, err)
	assert.Equal(t, "available", loaded[0]["status"])
	assert.Equal(t, []string{"id", "status"}, m.Fields(Slots))
}

func TestMemoryBackendFailOnLeavesEverythingUntouched(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, Snapshot{Entity: Appointments, Records: []Record{{"id": "1"}}}))

	boom := errors.New("disk full")
	m.FailOn = map[Entity]error{Slots: boom}

	err := m.Save(ctx,
		Snapshot{Entity: Appointments, Records: []Record{{"id": "1"}, {"id": "2"}}},
		Snapshot{Entity: Slots, Records: []Record{{"id": "9"}}},
	)
	assert.ErrorIs(t, err, boom)

	loaded, err := m.Load(ctx, Appointments)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}
