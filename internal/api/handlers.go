package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/gp-clinic-console/internal/appointment"
	"github.com/hackgods/gp-clinic-console/internal/observability/metrics"
	redisclient "github.com/hackgods/gp-clinic-console/internal/redis"
	"github.com/hackgods/gp-clinic-console/internal/report"
	"github.com/hackgods/gp-clinic-console/internal/validate"
)

func listSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := slotFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), filter)
		if err != nil {
			handleError(w, err)
			return
		}
		resp := make([]SlotResponse, 0, len(slots))
		for _, v := range slots {
			resp = append(resp, slotResponse(v))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// slotFilter accepts at most one of doctor_id, date and clinic_id.
func slotFilter(r *http.Request) (appointment.SlotFilter, error) {
	q := r.URL.Query()
	var filters []appointment.SlotFilter
	if v := q.Get("doctor_id"); v != "" {
		filters = append(filters, appointment.SlotFilter{By: appointment.FilterDoctor, Value: v})
	}
	if v := q.Get("date"); v != "" {
		if !validate.Date(v) {
			return appointment.SlotFilter{}, errors.New("date must be YYYY-MM-DD")
		}
		filters = append(filters, appointment.SlotFilter{By: appointment.FilterDate, Value: v})
	}
	if v := q.Get("clinic_id"); v != "" {
		filters = append(filters, appointment.SlotFilter{By: appointment.FilterClinic, Value: v})
	}
	switch len(filters) {
	case 0:
		return appointment.SlotFilter{}, nil
	case 1:
		return filters[0], nil
	}
	return appointment.SlotFilter{}, errors.New("use only one of doctor_id, date or clinic_id")
}

func bookAppointmentHandler(svc *appointment.Service, m *metrics.APIMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.SlotID == "" || req.PatientEmail == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "slot_id and patient_email are required")
			return
		}

		appt, err := svc.BookAppointment(r.Context(), req.PatientEmail, req.SlotID, req.Reason)
		if err != nil {
			m.ObserveBooking(handleError(w, err))
			return
		}
		m.ObserveBooking("booked")
		writeJSON(w, http.StatusCreated, appointmentResponse(*appt))
	}
}

func cancelAppointmentHandler(svc *appointment.Service, m *metrics.APIMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req CancelAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		actor := appointment.ClinicActor()
		if !req.Clinic {
			if req.PatientEmail == "" {
				writeError(w, http.StatusBadRequest, "missing_fields", "patient_email is required unless clinic is set")
				return
			}
			actor = appointment.PatientActor(req.PatientEmail)
		}

		res, err := svc.CancelAppointment(r.Context(), id, actor)
		if err != nil {
			handleError(w, err)
			return
		}
		who := "patient"
		if actor.IsClinic() {
			who = "clinic"
		}
		m.ObserveCancellation(who, !res.FreeCancellation)
		writeJSON(w, http.StatusOK, CancellationResponse{
			Appointment:      appointmentResponse(res.Appointment),
			NoticeHours:      res.Notice.Hours(),
			FreeCancellation: res.FreeCancellation,
			FeeCents:         res.FeeCents,
			SlotReleased:     res.SlotReleased,
			NotificationSent: res.NotificationSent,
		})
	}
}

func patientAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := chi.URLParam(r, "email")
		q := r.URL.Query()

		query := appointment.ViewQuery{
			Date:   q.Get("date"),
			GPName: q.Get("gp"),
			Suburb: q.Get("suburb"),
		}
		switch strings.ToLower(q.Get("view")) {
		case "", "all":
			query.Mode = appointment.ViewAll
		case "upcoming":
			query.Mode = appointment.ViewUpcoming
		case "past":
			query.Mode = appointment.ViewPast
		default:
			writeError(w, http.StatusBadRequest, "invalid_view", "view must be all, upcoming or past")
			return
		}

		views, err := svc.PatientAppointments(r.Context(), email)
		if err != nil {
			handleError(w, err)
			return
		}
		views = appointment.FilterAppointments(views, query, svc.Now())

		resp := make([]AppointmentResponse, 0, len(views))
		for _, v := range views {
			resp = append(resp, appointmentViewResponse(v))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type notificationResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
}

// patientNotificationsHandler returns the patient's notifications as they
// were before this read and marks them all read.
func patientNotificationsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notes, err := svc.Notifications(r.Context(), chi.URLParam(r, "email"))
		if err != nil {
			handleError(w, err)
			return
		}
		resp := make([]notificationResponse, 0, len(notes))
		for _, n := range notes {
			resp = append(resp, notificationResponse{Message: n.Message, Timestamp: n.Timestamp, Read: n.Read})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func reportHandler(gen *report.Generator, kind report.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rng, err := report.ParseRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"), gen.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
			return
		}
		rep, err := gen.Build(r.Context(), kind, rng)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reportResponse(rep))
	}
}

// handleError writes the response for err and returns the error code used.
func handleError(w http.ResponseWriter, err error) string {
	status, code, details := classify(err)
	writeError(w, status, code, details)
	return code
}

func classify(err error) (int, string, string) {
	var ve *validate.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "invalid_" + ve.Field, ve.Message
	case errors.Is(err, appointment.ErrReasonRequired):
		return http.StatusBadRequest, "reason_required", err.Error()
	case errors.Is(err, appointment.ErrUserNotFound), errors.Is(err, appointment.ErrPatientNotFound):
		return http.StatusNotFound, "patient_not_found", err.Error()
	case errors.Is(err, appointment.ErrSlotNotFound):
		return http.StatusNotFound, "slot_not_found", err.Error()
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		return http.StatusNotFound, "appointment_not_found", err.Error()
	case errors.Is(err, appointment.ErrNotOwner):
		return http.StatusForbidden, "not_owner", err.Error()
	case errors.Is(err, appointment.ErrSlotNotAvailable):
		return http.StatusConflict, "slot_not_available", err.Error()
	case errors.Is(err, appointment.ErrSlotAlreadyBooked):
		return http.StatusConflict, "slot_already_booked", err.Error()
	case errors.Is(err, appointment.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		return http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly"
	case errors.Is(err, appointment.ErrNotCancellable):
		return http.StatusConflict, "not_cancellable", err.Error()
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		return http.StatusConflict, "invalid_status_transition", err.Error()
	}
	return http.StatusInternalServerError, "internal_error", err.Error()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
