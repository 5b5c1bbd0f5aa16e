package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/gp-clinic-console/internal/store"
	"github.com/hackgods/gp-clinic-console/pkg/logging"
)

func TestBookAppointmentConfirmsAndBooksSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, patientEmail, "1", "checkup")
	require.NoError(t, err)

	assert.Equal(t, "2", appt.ID)
	assert.Equal(t, StatusConfirmed, appt.Status)
	assert.Equal(t, patientEmail, appt.PatientEmail)
	assert.Equal(t, "checkup", appt.Reason)
	assert.Equal(t, "1", appt.DoctorID)
	assert.Equal(t, "2025-01-10", appt.Date)
	assert.Equal(t, "09:00", appt.Time)
	assert.Equal(t, 15, appt.Duration)

	assert.Equal(t, SlotBooked, f.slot(t, "1").Status)
	assert.Equal(t, *appt, f.appointment(t, "2"))

	available, err := f.svc.AvailableSlots(ctx, SlotFilter{})
	require.NoError(t, err)
	for _, v := range available {
		assert.NotEqual(t, "1", v.Slot.ID)
	}

	_, err = f.svc.BookAppointment(ctx, "other@student.monash.edu", "1", "second try")
	assert.ErrorIs(t, err, ErrSlotNotAvailable)
}

func TestBookAppointmentRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("empty reason", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.BookAppointment(ctx, patientEmail, "1", "   ")
		assert.ErrorIs(t, err, ErrReasonRequired)
	})

	t.Run("unknown slot", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.BookAppointment(ctx, patientEmail, "99", "checkup")
		assert.ErrorIs(t, err, ErrSlotNotFound)
	})

	t.Run("unknown patient", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.BookAppointment(ctx, "ghost@student.monash.edu", "1", "checkup")
		assert.ErrorIs(t, err, ErrPatientNotFound)
	})

	t.Run("admin cannot book", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.BookAppointment(ctx, "admin@monash.edu", "1", "checkup")
		assert.ErrorIs(t, err, ErrPatientNotFound)
	})

	t.Run("slot locked elsewhere", func(t *testing.T) {
		f := newFixture(t)
		svc := NewService(f.repo, busyLocker{}, testConfig(), logging.Discard())
		_, err := svc.BookAppointment(ctx, patientEmail, "1", "checkup")
		assert.ErrorIs(t, err, ErrSlotBeingBooked)
	})

	t.Run("active appointment on available slot", func(t *testing.T) {
		f := newFixture(t)
		seed(t, f.backend, store.Appointments, AppointmentFields, encodeAppointment,
			Appointment{ID: "5", PatientEmail: "other@student.monash.edu", DoctorID: "1", ClinicID: "1", Date: "2025-01-10", Time: "09:00", Status: StatusConfirmed},
		)
		_, err := f.svc.BookAppointment(ctx, patientEmail, "1", "checkup")
		assert.ErrorIs(t, err, ErrSlotAlreadyBooked)
		assert.Equal(t, SlotAvailable, f.slot(t, "1").Status)
	})
}

func TestBookAppointmentSaveFailureLeavesFilesUntouched(t *testing.T) {
	f := newFixture(t)
	f.backend.FailOn = map[store.Entity]error{store.Slots: errors.New("disk full")}

	_, err := f.svc.BookAppointment(context.Background(), patientEmail, "1", "checkup")
	require.Error(t, err)

	f.backend.FailOn = nil
	assert.Equal(t, SlotAvailable, f.slot(t, "1").Status)
	appts, err := f.repo.Appointments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, appts.Len())
}

func TestAvailableSlotsFilterAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	all, err := f.svc.AvailableSlots(ctx, SlotFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"3", "2", "1"}, []string{all[0].Slot.ID, all[1].Slot.ID, all[2].Slot.ID})
	assert.Equal(t, "Dr. Bob Nguyen", all[0].Doctor.FullName)
	assert.Equal(t, "City Health", all[0].Clinic.Name)

	byDoctor, err := f.svc.AvailableSlots(ctx, SlotFilter{By: FilterDoctor, Value: "1"})
	require.NoError(t, err)
	assert.Len(t, byDoctor, 2)

	byDate, err := f.svc.AvailableSlots(ctx, SlotFilter{By: FilterDate, Value: "2025-01-09"})
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, "3", byDate[0].Slot.ID)

	byClinic, err := f.svc.AvailableSlots(ctx, SlotFilter{By: FilterClinic, Value: "2"})
	require.NoError(t, err)
	require.Len(t, byClinic, 1)

	none, err := f.svc.AvailableSlots(ctx, SlotFilter{By: FilterClinic, Value: "9"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPatientCancellationFeeBoundary(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		slotID string
		free   bool
		fee    int
	}{
		{name: "exactly 24h is free", slotID: "1", free: true},
		{name: "23h30m is charged", slotID: "2", free: false, fee: 2000},
		{name: "same day is charged", slotID: "3", free: false, fee: 2000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			appt, err := f.svc.BookAppointment(ctx, patientEmail, tc.slotID, "checkup")
			require.NoError(t, err)

			preview, err := f.svc.PreviewCancellation(ctx, appt.ID, PatientActor(patientEmail))
			require.NoError(t, err)
			assert.Equal(t, tc.free, preview.FreeCancellation)
			assert.Equal(t, StatusConfirmed, f.appointment(t, appt.ID).Status)

			res, err := f.svc.CancelAppointment(ctx, appt.ID, PatientActor(patientEmail))
			require.NoError(t, err)
			assert.Equal(t, tc.free, res.FreeCancellation)
			assert.Equal(t, tc.fee, res.FeeCents)
			assert.True(t, res.SlotReleased)
			assert.False(t, res.NotificationSent)

			assert.Equal(t, StatusCancelledByPatient, f.appointment(t, appt.ID).Status)
			assert.Equal(t, SlotAvailable, f.slot(t, tc.slotID).Status)

			_, err = f.svc.CancelAppointment(ctx, appt.ID, PatientActor(patientEmail))
			assert.ErrorIs(t, err, ErrNotCancellable)
		})
	}
}

func TestCancelReleasesSlotWithUnpaddedHour(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seed(t, f.backend, store.Slots, SlotFields, func(r store.Record) store.Record { return r },
		store.Record{"id": "1", "doctor_id": "1", "clinic_id": "1", "date": "2025-01-12", "time": "9:00", "duration": "15", "status": "booked"},
	)
	seed(t, f.backend, store.Appointments, AppointmentFields, encodeAppointment,
		Appointment{ID: "1", PatientEmail: patientEmail, DoctorID: "1", ClinicID: "1", Date: "2025-01-12", Time: "09:00", Duration: 15, Reason: "checkup", Status: StatusConfirmed},
	)

	res, err := f.svc.CancelAppointment(ctx, "1", PatientActor(patientEmail))
	require.NoError(t, err)
	assert.True(t, res.SlotReleased)
	assert.Equal(t, SlotAvailable, f.slot(t, "1").Status)
	assert.Equal(t, "09:00", f.slot(t, "1").Time)
}

func TestClinicCancellationNotifiesPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, patientEmail, "3", "checkup")
	require.NoError(t, err)

	res, err := f.svc.CancelAppointment(ctx, appt.ID, ClinicActor())
	require.NoError(t, err)
	assert.True(t, res.FreeCancellation)
	assert.Zero(t, res.FeeCents)
	assert.True(t, res.NotificationSent)

	assert.Equal(t, StatusCancelledByClinic, f.appointment(t, appt.ID).Status)
	assert.Equal(t, SlotAvailable, f.slot(t, "3").Status)

	records, err := f.backend.Load(ctx, store.Notifications)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, store.Record{
		"user_id":   patientEmail,
		"message":   "Your appointment 2025-01-09 12:00 has been canceled by clinic",
		"timestamp": "2025-01-09 09:00",
		"read":      "False",
	}, records[0])
}

func TestCancelRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, patientEmail, "1", "checkup")
	require.NoError(t, err)

	_, err = f.svc.CancelAppointment(ctx, appt.ID, PatientActor("other@student.monash.edu"))
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = f.svc.CancelAppointment(ctx, "404", ClinicActor())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	// appointment 1 is in the past
	_, err = f.svc.CancelAppointment(ctx, "1", PatientActor(patientEmail))
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestCancelSaveFailureKeepsAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, patientEmail, "1", "checkup")
	require.NoError(t, err)

	f.backend.FailOn = map[store.Entity]error{store.Notifications: errors.New("read-only")}
	_, err = f.svc.CancelAppointment(ctx, appt.ID, ClinicActor())
	require.Error(t, err)

	f.backend.FailOn = nil
	assert.Equal(t, StatusConfirmed, f.appointment(t, appt.ID).Status)
	assert.Equal(t, SlotBooked, f.slot(t, "1").Status)
}

func TestCancellableAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BookAppointment(ctx, patientEmail, "1", "checkup")
	require.NoError(t, err)
	_, err = f.svc.BookAppointment(ctx, "other@student.monash.edu", "3", "rash")
	require.NoError(t, err)

	mine, err := f.svc.CancellableAppointments(ctx, PatientActor(patientEmail))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "2", mine[0].Appointment.ID)

	all, err := f.svc.CancellableAppointments(ctx, ClinicActor())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "3", all[0].Appointment.ID, "earliest first")
}

func TestPatientAppointmentsMarksPastAsAttendedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	views, err := f.svc.PatientAppointments(ctx, patientEmail)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, StatusAttended, views[0].Appointment.Status)
	assert.Equal(t, StatusAttended, f.appointment(t, "1").Status)

	// Nothing left to change, so no save is attempted.
	f.backend.FailOn = map[store.Entity]error{store.Appointments: errors.New("must not save")}
	views, err = f.svc.PatientAppointments(ctx, patientEmail)
	require.NoError(t, err)
	assert.Equal(t, StatusAttended, views[0].Appointment.Status)
}

func TestRefreshAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed(t, f.backend, store.Appointments, AppointmentFields, encodeAppointment,
		Appointment{ID: "1", PatientEmail: patientEmail, DoctorID: "2", ClinicID: "2", Date: "2025-01-08", Time: "09:00", Status: StatusConfirmed},
		Appointment{ID: "2", PatientEmail: "other@student.monash.edu", DoctorID: "2", ClinicID: "2", Date: "2025-01-09", Time: "08:59", Status: StatusConfirmed},
		Appointment{ID: "3", PatientEmail: "other@student.monash.edu", DoctorID: "1", ClinicID: "1", Date: "2025-01-09", Time: "09:00", Status: StatusConfirmed},
		Appointment{ID: "4", PatientEmail: patientEmail, DoctorID: "1", ClinicID: "1", Date: "2025-01-07", Time: "09:00", Status: StatusCancelledByPatient},
	)

	n, err := f.svc.RefreshAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, StatusAttended, f.appointment(t, "1").Status)
	assert.Equal(t, StatusAttended, f.appointment(t, "2").Status)
	assert.Equal(t, StatusConfirmed, f.appointment(t, "3").Status, "starting now is not past")
	assert.Equal(t, StatusCancelledByPatient, f.appointment(t, "4").Status)

	n, err = f.svc.RefreshAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFilterAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BookAppointment(ctx, patientEmail, "1", "checkup")
	require.NoError(t, err)
	_, err = f.svc.BookAppointment(ctx, patientEmail, "3", "rash")
	require.NoError(t, err)

	views, err := f.svc.PatientAppointments(ctx, patientEmail)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, []string{"1", "3", "2"}, []string{views[0].Appointment.ID, views[1].Appointment.ID, views[2].Appointment.ID})
	assert.Equal(t, 24*time.Hour, views[2].StartsIn)
	assert.Zero(t, views[0].StartsIn)

	ids := func(vs []AppointmentView) []string {
		var out []string
		for _, v := range vs {
			out = append(out, v.Appointment.ID)
		}
		return out
	}

	assert.Equal(t, []string{"3", "2"}, ids(FilterAppointments(views, ViewQuery{Mode: ViewUpcoming}, fixedNow)))
	assert.Equal(t, []string{"1"}, ids(FilterAppointments(views, ViewQuery{Mode: ViewPast}, fixedNow)))
	assert.Equal(t, []string{"3"}, ids(FilterAppointments(views, ViewQuery{Date: "2025-01-09"}, fixedNow)))
	assert.Equal(t, []string{"2"}, ids(FilterAppointments(views, ViewQuery{GPName: "alice"}, fixedNow)))
	assert.Equal(t, []string{"1", "3"}, ids(FilterAppointments(views, ViewQuery{Suburb: "melbourne"}, fixedNow)))
	assert.Empty(t, FilterAppointments(views, ViewQuery{Mode: ViewPast, GPName: "alice"}, fixedNow))
}

func TestNotificationsMarkedRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed(t, f.backend, store.Notifications, NotificationFields, encodeNotification,
		Notification{UserID: patientEmail, Message: "first", Timestamp: "2025-01-08 10:00"},
		Notification{UserID: "other@student.monash.edu", Message: "not mine", Timestamp: "2025-01-08 11:00"},
		Notification{UserID: patientEmail, Message: "old", Timestamp: "2025-01-01 10:00", Read: true},
	)

	unread, err := f.svc.UnreadNotifications(ctx, patientEmail)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	notes, err := f.svc.Notifications(ctx, patientEmail)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.False(t, notes[0].Read, "returned as it was before viewing")
	assert.True(t, notes[1].Read)

	unread, err = f.svc.UnreadNotifications(ctx, patientEmail)
	require.NoError(t, err)
	assert.Zero(t, unread)

	other, err := f.svc.UnreadNotifications(ctx, "other@student.monash.edu")
	require.NoError(t, err)
	assert.Equal(t, 1, other)
}
