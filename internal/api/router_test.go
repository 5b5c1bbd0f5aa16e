package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/gp-clinic-console/internal/appointment"
	"github.com/hackgods/gp-clinic-console/internal/config"
	redisclient "github.com/hackgods/gp-clinic-console/internal/redis"
	"github.com/hackgods/gp-clinic-console/internal/report"
	"github.com/hackgods/gp-clinic-console/internal/store"
	"github.com/hackgods/gp-clinic-console/pkg/logging"
)

type testServer struct {
	backend *store.MemoryBackend
	handler http.Handler
}

func save(t *testing.T, b store.Backend, entity store.Entity, fields []string, rows ...store.Record) {
	t.Helper()
	require.NoError(t, b.Save(context.Background(), store.Snapshot{Entity: entity, Fields: fields, Records: rows}))
}

func newTestServer(t *testing.T, rdb *redis.Client) *testServer {
	t.Helper()
	b := store.NewMemoryBackend()
	save(t, b, store.Users, appointment.UserFields,
		store.Record{"email": "jane@student.monash.edu", "password": "Secret123", "role": "patient"},
		store.Record{"email": "admin@monash.edu", "password": "Admin123", "role": "admin"},
	)
	save(t, b, store.Clinics, appointment.ClinicFields,
		store.Record{"id": "1", "name": "Monash Medical", "location": "Clayton, VIC 3168"},
		store.Record{"id": "2", "name": "City Health", "location": "Melbourne CBD, VIC 3000"},
	)
	save(t, b, store.Doctors, appointment.DoctorFields,
		store.Record{"id": "1", "full_name": "Dr. Alice Smith", "email": "alice@monash.edu", "clinic_id": "1"},
		store.Record{"id": "2", "full_name": "Dr. Bob Nguyen", "email": "bob@monash.edu", "clinic_id": "2"},
	)
	save(t, b, store.Slots, appointment.SlotFields,
		store.Record{"id": "1", "doctor_id": "1", "clinic_id": "1", "date": "2025-01-11", "time": "09:00", "duration": "15", "status": "available"},
		store.Record{"id": "2", "doctor_id": "2", "clinic_id": "2", "date": "2025-01-10", "time": "10:00", "duration": "25", "status": "available"},
		store.Record{"id": "3", "doctor_id": "1", "clinic_id": "1", "date": "2025-01-09", "time": "20:00", "duration": "15", "status": "booked"},
	)
	save(t, b, store.Appointments, appointment.AppointmentFields,
		store.Record{"id": "1", "patient_email": "jane@student.monash.edu", "doctor_id": "1", "clinic_id": "1", "date": "2025-01-09", "time": "20:00", "duration": "15", "reason": "checkup", "status": "confirmed"},
	)

	logger := logging.Discard()
	repo := appointment.NewRepository(b, logger)
	appts := appointment.NewService(repo, redisclient.NewLocalSlotLocker(), config.Config{
		CancellationFeeCents:   2000,
		FreeCancellationWindow: 24 * time.Hour,
	}, logger)
	appts.SetClock(func() time.Time { return time.Date(2025, 1, 9, 9, 0, 0, 0, time.UTC) })

	return &testServer{
		backend: b,
		handler: NewRouter(RouterConfig{
			Appointments: appts,
			Reports:      report.NewGenerator(repo, time.UTC, logger),
			Backend:      b,
			Redis:        rdb,
			Logger:       logger,
			Env:          "test",
			Version:      "v0",
		}),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestLivenessSetsRequestID(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "ok", decode[LivenessResponse](t, rec).Status)
}

func TestReadinessReportsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := newTestServer(t, rdb)
	rec := s.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]string{"store": "ok", "redis": "ok"}, resp.Dependencies)

	mr.Close()
	rec = s.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decode[ReadinessResponse](t, rec).Status)
}

func TestReadinessFailsWhenStoreDown(t *testing.T) {
	s := newTestServer(t, nil)
	s.handler = NewRouter(RouterConfig{Backend: failingBackend{}, Logger: logging.Discard()})

	rec := s.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "down", decode[ReadinessResponse](t, rec).Dependencies["store"])
}

type failingBackend struct{}

func (failingBackend) Load(context.Context, store.Entity) ([]store.Record, error) {
	return nil, errors.New("disk gone")
}

func (failingBackend) Save(context.Context, ...store.Snapshot) error {
	return errors.New("disk gone")
}

func TestListSlots(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/slots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	slots := decode[[]SlotResponse](t, rec)
	require.Len(t, slots, 2)
	assert.Equal(t, "2", slots[0].ID, "ordered by start")
	assert.Equal(t, "Melbourne CBD", slots[0].Suburb)

	rec = s.do(t, http.MethodGet, "/slots?doctor_id=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	slots = decode[[]SlotResponse](t, rec)
	require.Len(t, slots, 1)
	assert.Equal(t, "Dr. Alice Smith", slots[0].Doctor)

	rec = s.do(t, http.MethodGet, "/slots?doctor_id=1&date=2025-01-11", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/slots?date=11/01/2025", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookAppointment(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		SlotID: "1", PatientEmail: "jane@student.monash.edu", Reason: "flu shot",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	appt := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "2", appt.ID)
	assert.Equal(t, "confirmed", appt.Status)
	assert.Equal(t, "2025-01-11", appt.Date)

	rec = s.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		SlotID: "1", PatientEmail: "jane@student.monash.edu", Reason: "again",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_not_available", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `gpclinic_appointments_bookings_total{outcome="booked"} 1`)
	assert.Contains(t, body, `gpclinic_appointments_bookings_total{outcome="slot_not_available"} 1`)
	assert.Contains(t, body, `gpclinic_http_requests_total{method="POST",route="/appointments",status="201"} 1`)
}

func TestBookAppointmentRejections(t *testing.T) {
	s := newTestServer(t, nil)

	cases := []struct {
		name string
		req  BookAppointmentRequest
		code int
		err  string
	}{
		{"missing slot", BookAppointmentRequest{PatientEmail: "jane@student.monash.edu", Reason: "x"}, http.StatusBadRequest, "missing_fields"},
		{"blank reason", BookAppointmentRequest{SlotID: "1", PatientEmail: "jane@student.monash.edu", Reason: "  "}, http.StatusBadRequest, "reason_required"},
		{"unknown slot", BookAppointmentRequest{SlotID: "99", PatientEmail: "jane@student.monash.edu", Reason: "x"}, http.StatusNotFound, "slot_not_found"},
		{"admin cannot book", BookAppointmentRequest{SlotID: "1", PatientEmail: "admin@monash.edu", Reason: "x"}, http.StatusNotFound, "patient_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/appointments", tc.req)
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.err, decode[ErrorResponse](t, rec).Error)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatientCancelWithinWindowCarriesFee(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/appointments/1/cancel", CancelAppointmentRequest{PatientEmail: "someone@student.monash.edu"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/appointments/1/cancel", CancelAppointmentRequest{PatientEmail: "jane@student.monash.edu"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[CancellationResponse](t, rec)
	assert.False(t, resp.FreeCancellation)
	assert.Equal(t, 2000, resp.FeeCents)
	assert.InDelta(t, 11.0, resp.NoticeHours, 0.001)
	assert.True(t, resp.SlotReleased)
	assert.False(t, resp.NotificationSent)
	assert.Equal(t, "cancelled by patient", resp.Appointment.Status)

	rec = s.do(t, http.MethodPost, "/appointments/1/cancel", CancelAppointmentRequest{PatientEmail: "jane@student.monash.edu"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestClinicCancelNotifiesPatient(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/appointments/1/cancel", CancelAppointmentRequest{Clinic: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[CancellationResponse](t, rec).NotificationSent)

	rec = s.do(t, http.MethodGet, "/patients/jane@student.monash.edu/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decode[[]notificationResponse](t, rec)
	require.Len(t, notes, 1)
	assert.Equal(t, "Your appointment 2025-01-09 20:00 has been canceled by clinic", notes[0].Message)
	assert.False(t, notes[0].Read)

	rec = s.do(t, http.MethodGet, "/patients/jane@student.monash.edu/notifications", nil)
	assert.True(t, decode[[]notificationResponse](t, rec)[0].Read)

	rec = s.do(t, http.MethodPost, "/appointments/404/cancel", CancelAppointmentRequest{Clinic: true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatientAppointments(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/patients/jane@student.monash.edu/appointments?view=upcoming", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	appts := decode[[]AppointmentResponse](t, rec)
	require.Len(t, appts, 1)
	assert.Equal(t, "Dr. Alice Smith", appts[0].Doctor)
	assert.Equal(t, "Monash Medical", appts[0].Clinic)

	rec = s.do(t, http.MethodGet, "/patients/jane@student.monash.edu/appointments?view=past", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]AppointmentResponse](t, rec))

	rec = s.do(t, http.MethodGet, "/patients/jane@student.monash.edu/appointments?view=soon", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReports(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/reports/clinics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rep := decode[ReportResponse](t, rec)
	assert.Equal(t, "clinic", rep.Kind)
	require.Len(t, rep.Groups, 1)
	assert.Equal(t, "Monash Medical", rep.Groups[0].Name)
	assert.Equal(t, 1, rep.Groups[0].Total)
	assert.Equal(t, []CountResponse{{Name: "checkup", Count: 1}}, rep.Groups[0].Reasons)

	rec = s.do(t, http.MethodGet, "/reports/doctors?start=2025-01-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rep = decode[ReportResponse](t, rec)
	assert.Equal(t, "gp", rep.Kind)
	assert.Equal(t, "2025-01-10", rep.Start)
	assert.Empty(t, rep.Groups)

	rec = s.do(t, http.MethodGet, "/reports/doctors?start=2025-02-01&end=2025-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
