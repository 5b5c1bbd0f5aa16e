package api

import (
	"github.com/hackgods/gp-clinic-console/internal/appointment"
	"github.com/hackgods/gp-clinic-console/internal/report"
)

type BookAppointmentRequest struct {
	SlotID       string `json:"slot_id"`
	PatientEmail string `json:"patient_email"`
	Reason       string `json:"reason"`
}

// CancelAppointmentRequest cancels on behalf of a patient, or of the clinic
// when Clinic is set.
type CancelAppointmentRequest struct {
	PatientEmail string `json:"patient_email,omitempty"`
	Clinic       bool   `json:"clinic,omitempty"`
}

type SlotResponse struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Duration int    `json:"duration"`
	Status   string `json:"status"`
	DoctorID string `json:"doctor_id"`
	Doctor   string `json:"doctor"`
	ClinicID string `json:"clinic_id"`
	Clinic   string `json:"clinic"`
	Suburb   string `json:"suburb"`
}

type AppointmentResponse struct {
	ID           string `json:"id"`
	PatientEmail string `json:"patient_email"`
	DoctorID     string `json:"doctor_id"`
	Doctor       string `json:"doctor,omitempty"`
	ClinicID     string `json:"clinic_id"`
	Clinic       string `json:"clinic,omitempty"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Duration     int    `json:"duration"`
	Reason       string `json:"reason"`
	Status       string `json:"status"`
}

type CancellationResponse struct {
	Appointment      AppointmentResponse `json:"appointment"`
	NoticeHours      float64             `json:"notice_hours"`
	FreeCancellation bool                `json:"free_cancellation"`
	FeeCents         int                 `json:"fee_cents"`
	SlotReleased     bool                `json:"slot_released"`
	NotificationSent bool                `json:"notification_sent"`
}

type CountResponse struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type GroupResponse struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Total   int             `json:"total"`
	Sub     []CountResponse `json:"sub"`
	Reasons []CountResponse `json:"reasons"`
}

type ReportResponse struct {
	Kind    string          `json:"kind"`
	Start   string          `json:"start,omitempty"`
	End     string          `json:"end,omitempty"`
	Groups  []GroupResponse `json:"groups"`
	Skipped int             `json:"skipped"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func slotResponse(v appointment.SlotView) SlotResponse {
	return SlotResponse{
		ID:       v.Slot.ID,
		Date:     v.Slot.Date,
		Time:     v.Slot.Time,
		Duration: v.Slot.Duration,
		Status:   v.Slot.Status.String(),
		DoctorID: v.Slot.DoctorID,
		Doctor:   v.Doctor.FullName,
		ClinicID: v.Slot.ClinicID,
		Clinic:   v.Clinic.Name,
		Suburb:   v.Clinic.Suburb(),
	}
}

func appointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		PatientEmail: a.PatientEmail,
		DoctorID:     a.DoctorID,
		ClinicID:     a.ClinicID,
		Date:         a.Date,
		Time:         a.Time,
		Duration:     a.Duration,
		Reason:       a.Reason,
		Status:       a.Status.String(),
	}
}

func appointmentViewResponse(v appointment.AppointmentView) AppointmentResponse {
	resp := appointmentResponse(v.Appointment)
	resp.Doctor = v.Doctor.FullName
	resp.Clinic = v.Clinic.Name
	return resp
}

func counts(in []report.Count) []CountResponse {
	out := make([]CountResponse, 0, len(in))
	for _, c := range in {
		out = append(out, CountResponse{Name: c.Name, Count: c.Count})
	}
	return out
}

func reportResponse(r *report.Report) ReportResponse {
	resp := ReportResponse{
		Kind:    r.Kind.String(),
		Groups:  make([]GroupResponse, 0, len(r.Groups)),
		Skipped: r.Skipped,
	}
	if r.Range.Start != nil {
		resp.Start = r.Range.Start.Format(appointment.DateLayout)
	}
	if r.Range.End != nil {
		resp.End = r.Range.End.Format(appointment.DateLayout)
	}
	for _, g := range r.Groups {
		resp.Groups = append(resp.Groups, GroupResponse{
			ID:      g.ID,
			Name:    g.Name,
			Total:   g.Total,
			Sub:     counts(g.Sub),
			Reasons: counts(g.Reasons),
		})
	}
	return resp
}
