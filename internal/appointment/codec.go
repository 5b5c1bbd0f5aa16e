package appointment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hackgods/gp-clinic-console/internal/store"
)

var (
	UserFields         = []string{"email", "password", "role", "first_name", "last_name", "dob", "gender", "mobile", "address"}
	ClinicFields       = []string{"id", "name", "location", "services", "operating_hours"}
	DoctorFields       = []string{"id", "full_name", "email", "clinic_id", "specialty", "availability"}
	SlotFields         = []string{"id", "doctor_id", "clinic_id", "date", "time", "duration", "status"}
	AppointmentFields  = []string{"id", "patient_email", "doctor_id", "clinic_id", "date", "time", "duration", "reason", "status"}
	NotificationFields = []string{"user_id", "message", "timestamp", "read"}
	LoginEventFields   = []string{"email", "timestamp", "ip_address"}
)

func decodeClinic(r store.Record) (Clinic, error) {
	return Clinic{
		ID:             r["id"],
		Name:           r["name"],
		Location:       r["location"],
		Services:       r["services"],
		OperatingHours: r["operating_hours"],
	}, nil
}

func encodeClinic(c Clinic) store.Record {
	return store.Record{
		"id":              c.ID,
		"name":            c.Name,
		"location":        c.Location,
		"services":        c.Services,
		"operating_hours": c.OperatingHours,
	}
}

func decodeDoctor(r store.Record) (Doctor, error) {
	return Doctor{
		ID:           r["id"],
		FullName:     r["full_name"],
		Email:        r["email"],
		ClinicID:     r["clinic_id"],
		Specialty:    r["specialty"],
		Availability: r["availability"],
	}, nil
}

func encodeDoctor(d Doctor) store.Record {
	return store.Record{
		"id":           d.ID,
		"full_name":    d.FullName,
		"email":        d.Email,
		"clinic_id":    d.ClinicID,
		"specialty":    d.Specialty,
		"availability": d.Availability,
	}
}

func decodeSlot(r store.Record) (Slot, error) {
	status, err := ParseSlotStatus(r["status"])
	if err != nil {
		return Slot{}, fmt.Errorf("slot %s: %w", r["id"], err)
	}
	duration, err := parseDuration(r["duration"])
	if err != nil {
		return Slot{}, fmt.Errorf("slot %s: %w", r["id"], err)
	}
	return Slot{
		ID:       r["id"],
		DoctorID: r["doctor_id"],
		ClinicID: r["clinic_id"],
		Date:     r["date"],
		Time:     NormalizeClock(r["time"]),
		Duration: duration,
		Status:   status,
	}, nil
}

func encodeSlot(s Slot) store.Record {
	return store.Record{
		"id":        s.ID,
		"doctor_id": s.DoctorID,
		"clinic_id": s.ClinicID,
		"date":      s.Date,
		"time":      s.Time,
		"duration":  strconv.Itoa(s.Duration),
		"status":    s.Status.String(),
	}
}

func decodeAppointment(r store.Record) (Appointment, error) {
	status, err := ParseAppointmentStatus(r["status"])
	if err != nil {
		return Appointment{}, fmt.Errorf("appointment %s: %w", r["id"], err)
	}
	duration, err := parseDuration(r["duration"])
	if err != nil {
		return Appointment{}, fmt.Errorf("appointment %s: %w", r["id"], err)
	}
	return Appointment{
		ID:           r["id"],
		PatientEmail: r["patient_email"],
		DoctorID:     r["doctor_id"],
		ClinicID:     r["clinic_id"],
		Date:         r["date"],
		Time:         NormalizeClock(r["time"]),
		Duration:     duration,
		Reason:       r["reason"],
		Status:       status,
	}, nil
}

func encodeAppointment(a Appointment) store.Record {
	return store.Record{
		"id":            a.ID,
		"patient_email": a.PatientEmail,
		"doctor_id":     a.DoctorID,
		"clinic_id":     a.ClinicID,
		"date":          a.Date,
		"time":          a.Time,
		"duration":      strconv.Itoa(a.Duration),
		"reason":        a.Reason,
		"status":        a.Status.String(),
	}
}

func decodeUser(r store.Record) (User, error) {
	role, err := ParseRole(r["role"])
	if err != nil {
		return User{}, fmt.Errorf("user %s: %w", r["email"], err)
	}
	return User{
		Email:     r["email"],
		Password:  r["password"],
		Role:      role,
		FirstName: r["first_name"],
		LastName:  r["last_name"],
		DOB:       r["dob"],
		Gender:    r["gender"],
		Mobile:    r["mobile"],
		Address:   r["address"],
	}, nil
}

func encodeUser(u User) store.Record {
	return store.Record{
		"email":      u.Email,
		"password":   u.Password,
		"role":       string(u.Role),
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"dob":        u.DOB,
		"gender":     u.Gender,
		"mobile":     u.Mobile,
		"address":    u.Address,
	}
}

func decodeNotification(r store.Record) (Notification, error) {
	return Notification{
		UserID:    r["user_id"],
		Message:   r["message"],
		Timestamp: r["timestamp"],
		Read:      strings.EqualFold(strings.TrimSpace(r["read"]), "true"),
	}, nil
}

func encodeNotification(n Notification) store.Record {
	read := "False"
	if n.Read {
		read = "True"
	}
	return store.Record{
		"user_id":   n.UserID,
		"message":   n.Message,
		"timestamp": n.Timestamp,
		"read":      read,
	}
}

func decodeLoginEvent(r store.Record) (LoginEvent, error) {
	return LoginEvent{Email: r["email"], Timestamp: r["timestamp"], IPAddress: r["ip_address"]}, nil
}

func encodeLoginEvent(e LoginEvent) store.Record {
	return store.Record{"email": e.Email, "timestamp": e.Timestamp, "ip_address": e.IPAddress}
}

func parseDuration(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: duration %q", ErrInvalidRecord, raw)
	}
	return n, nil
}
