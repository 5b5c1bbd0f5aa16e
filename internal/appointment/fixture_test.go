package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hackgods/gp-clinic-console/internal/config"
	redisclient "github.com/hackgods/gp-clinic-console/internal/redis"
	"github.com/hackgods/gp-clinic-console/internal/store"
	"github.com/hackgods/gp-clinic-console/pkg/logging"
)

const patientEmail = "jane.doe@student.monash.edu"

// fixedNow is 2025-01-09 09:00 UTC.
var fixedNow = time.Date(2025, 1, 9, 9, 0, 0, 0, time.UTC)

type fixture struct {
	backend *store.MemoryBackend
	repo    *Repository
	svc     *Service
}

func testConfig() config.Config {
	return config.Config{
		CancellationFeeCents:   2000,
		FreeCancellationWindow: 24 * time.Hour,
	}
}

func seed[T any](t *testing.T, b store.Backend, entity store.Entity, fields []string, encode func(T) store.Record, rows ...T) {
	t.Helper()
	records := make([]store.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, encode(r))
	}
	require.NoError(t, b.Save(context.Background(), store.Snapshot{Entity: entity, Fields: fields, Records: records}))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := store.NewMemoryBackend()

	seed(t, b, store.Users, UserFields, encodeUser,
		User{Email: patientEmail, Password: "Secret123", Role: RolePatient, FirstName: "Jane", LastName: "Doe"},
		User{Email: "other@student.monash.edu", Password: "Secret123", Role: RolePatient, FirstName: "Sam", LastName: "Lee"},
		User{Email: "admin@monash.edu", Password: "Admin123", Role: RoleAdmin},
	)
	seed(t, b, store.Clinics, ClinicFields, encodeClinic,
		Clinic{ID: "1", Name: "Monash Medical", Location: "Clayton, VIC 3168", Services: "General", OperatingHours: "8-6"},
		Clinic{ID: "2", Name: "City Health", Location: "Melbourne CBD, VIC 3000", Services: "General", OperatingHours: "9-5"},
	)
	seed(t, b, store.Doctors, DoctorFields, encodeDoctor,
		Doctor{ID: "1", FullName: "Dr. Alice Smith", Email: "alice@monash.edu", ClinicID: "1", Specialty: "General Practice"},
		Doctor{ID: "2", FullName: "Dr. Bob Nguyen", Email: "bob@monash.edu", ClinicID: "2", Specialty: "Family Medicine"},
	)
	seed(t, b, store.Slots, SlotFields, encodeSlot,
		Slot{ID: "1", DoctorID: "1", ClinicID: "1", Date: "2025-01-10", Time: "09:00", Duration: 15, Status: SlotAvailable},
		Slot{ID: "2", DoctorID: "1", ClinicID: "1", Date: "2025-01-10", Time: "08:30", Duration: 15, Status: SlotAvailable},
		Slot{ID: "3", DoctorID: "2", ClinicID: "2", Date: "2025-01-09", Time: "12:00", Duration: 25, Status: SlotAvailable},
		Slot{ID: "4", DoctorID: "2", ClinicID: "2", Date: "2025-01-08", Time: "09:00", Duration: 25, Status: SlotBooked},
	)
	seed(t, b, store.Appointments, AppointmentFields, encodeAppointment,
		Appointment{ID: "1", PatientEmail: patientEmail, DoctorID: "2", ClinicID: "2", Date: "2025-01-08", Time: "09:00", Duration: 25, Reason: "flu", Status: StatusConfirmed},
	)

	repo := NewRepository(b, logging.Discard())
	svc := NewService(repo, redisclient.NewLocalSlotLocker(), testConfig(), logging.Discard())
	svc.SetClock(func() time.Time { return fixedNow })

	return &fixture{backend: b, repo: repo, svc: svc}
}

func (f *fixture) slot(t *testing.T, id string) Slot {
	t.Helper()
	slots, err := f.repo.Slots(context.Background())
	require.NoError(t, err)
	s, ok := slots.Get(id)
	require.True(t, ok, "slot %s", id)
	return s
}

func (f *fixture) appointment(t *testing.T, id string) Appointment {
	t.Helper()
	appts, err := f.repo.Appointments(context.Background())
	require.NoError(t, err)
	a, ok := appts.Get(id)
	require.True(t, ok, "appointment %s", id)
	return a
}

type busyLocker struct{}

func (busyLocker) WithSlotLock(context.Context, string, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}
