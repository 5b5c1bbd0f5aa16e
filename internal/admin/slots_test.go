package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/gp-clinic-console/internal/appointment"
	"github.com/hackgods/gp-clinic-console/internal/store"
)

func TestSlotsFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	all, err := f.svc.Slots(ctx, SlotQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byGP, err := f.svc.Slots(ctx, SlotQuery{DoctorID: "1"})
	require.NoError(t, err)
	assert.Len(t, byGP, 2)

	bySuburb, err := f.svc.Slots(ctx, SlotQuery{Suburb: "melbourne cbd"})
	require.NoError(t, err)
	require.Len(t, bySuburb, 1)
	assert.Equal(t, "3", bySuburb[0].Slot.ID)

	suburbs, err := f.svc.Suburbs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Brighton", "Clayton", "Melbourne CBD"}, suburbs)
}

func TestAddSlotsReportsConflictsAndInvalidTimes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.AddSlots(ctx, SlotBatch{
		DoctorID: "1",
		ClinicID: "1",
		Date:     "2025-01-10",
		Duration: 40,
		Times:    []string{"09:00", "10:00", "ten", "10:00", " 11:00 "},
	})
	require.NoError(t, err)

	require.Len(t, res.Added, 2)
	assert.Equal(t, "4", res.Added[0].ID)
	assert.Equal(t, "5", res.Added[1].ID)
	assert.Equal(t, "11:00", res.Added[1].Time)
	assert.Equal(t, appointment.SlotAvailable, res.Added[0].Status)
	assert.Equal(t, []string{"09:00", "10:00"}, res.Conflicts)
	assert.Equal(t, []string{"ten"}, res.Invalid)

	slots := f.records(t, store.Slots)
	require.Len(t, slots, 5)
	assert.Equal(t, "40", slots[3]["duration"])
}

func TestAddSlotsMatchesUnpaddedHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	save(t, f.backend, store.Slots, appointment.SlotFields,
		store.Record{"id": "1", "doctor_id": "1", "clinic_id": "1", "date": "2025-01-10", "time": "9:00", "duration": "15", "status": "available"},
	)

	res, err := f.svc.AddSlots(ctx, SlotBatch{
		DoctorID: "1",
		ClinicID: "1",
		Date:     "2025-01-10",
		Duration: 15,
		Times:    []string{"09:00", "8:30"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, res.Conflicts)
	require.Len(t, res.Added, 1)
	assert.Equal(t, "08:30", res.Added[0].Time)

	updated, err := f.svc.UpdateSlotDuration(ctx, "1", "2025-01-10", "09:00", 25)
	require.NoError(t, err)
	assert.Equal(t, "1", updated.ID)
	assert.Equal(t, 25, updated.Duration)
}

func TestAddSlotsValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddSlots(ctx, SlotBatch{DoctorID: "1", ClinicID: "1", Date: "2025-01-10", Duration: 30, Times: []string{"12:00"}})
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = f.svc.AddSlots(ctx, SlotBatch{DoctorID: "9", ClinicID: "1", Date: "2025-01-10", Duration: 15})
	assert.ErrorIs(t, err, appointment.ErrDoctorNotFound)

	_, err = f.svc.AddSlots(ctx, SlotBatch{DoctorID: "1", ClinicID: "9", Date: "2025-01-10", Duration: 15})
	assert.ErrorIs(t, err, appointment.ErrClinicNotFound)

	res, err := f.svc.AddSlots(ctx, SlotBatch{DoctorID: "1", ClinicID: "1", Date: "2025-01-10", Duration: 15, Times: []string{"09:00"}})
	require.NoError(t, err)
	assert.Empty(t, res.Added)
}

func TestUpdateSlotDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sl, err := f.svc.UpdateSlotDuration(ctx, "1", "2025-01-10", "09:15", 60)
	require.NoError(t, err)
	assert.Equal(t, "2", sl.ID)
	assert.Equal(t, "60", f.records(t, store.Slots)[1]["duration"])

	_, err = f.svc.UpdateSlotDuration(ctx, "1", "2025-01-10", "13:00", 60)
	assert.ErrorIs(t, err, appointment.ErrSlotNotFound)

	_, err = f.svc.UpdateSlotDuration(ctx, "1", "2025-01-10", "09:15", 45)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)

	stats, err := f.svc.Statistics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []SlotStat{
		{Name: "Dr. Alice Smith", Total: 2, Available: 1, Booked: 1},
		{Name: "Dr. Bob Nguyen", Total: 1, Available: 1},
	}, stats.ByGP)
	assert.Equal(t, []SlotStat{
		{Name: "Clayton", Total: 2, Available: 1, Booked: 1},
		{Name: "Melbourne CBD", Total: 1, Available: 1},
	}, stats.BySuburb)
}
