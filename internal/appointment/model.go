package appointment

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04"
	DateTimeLayout  = DateLayout + " " + TimeLayout
	TimestampLayout = "2006-01-02 15:04"
)

// SlotStatus is the booking state of a slot.
type SlotStatus int

const (
	SlotAvailable SlotStatus = iota + 1
	SlotBooked
)

func ParseSlotStatus(s string) (SlotStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available":
		return SlotAvailable, nil
	case "booked":
		return SlotBooked, nil
	}
	return 0, fmt.Errorf("%w: slot status %q", ErrInvalidRecord, s)
}

func (s SlotStatus) String() string {
	switch s {
	case SlotAvailable:
		return "available"
	case SlotBooked:
		return "booked"
	}
	return "unknown"
}

// AppointmentStatus is the lifecycle state of an appointment. Confirmed is the
// only non-terminal state.
type AppointmentStatus int

const (
	StatusConfirmed AppointmentStatus = iota + 1
	StatusAttended
	StatusCancelledByPatient
	StatusCancelledByClinic
)

func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "confirmed":
		return StatusConfirmed, nil
	case "attended":
		return StatusAttended, nil
	case "cancelled by patient":
		return StatusCancelledByPatient, nil
	case "cancelled by clinic", "cancelled":
		return StatusCancelledByClinic, nil
	}
	return 0, fmt.Errorf("%w: appointment status %q", ErrInvalidRecord, s)
}

func (s AppointmentStatus) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusAttended:
		return "attended"
	case StatusCancelledByPatient:
		return "cancelled by patient"
	case StatusCancelledByClinic:
		return "cancelled by clinic"
	}
	return "unknown"
}

// Label is the display form shown in appointment lists.
func (s AppointmentStatus) Label() string {
	switch s {
	case StatusConfirmed:
		return "Confirmed"
	case StatusAttended:
		return "Attended"
	case StatusCancelledByPatient:
		return "Cancelled by Patient"
	case StatusCancelledByClinic:
		return "Cancelled by Clinic"
	}
	return "Unknown"
}

func (s AppointmentStatus) Terminal() bool {
	switch s {
	case StatusConfirmed:
		return false
	case StatusAttended, StatusCancelledByPatient, StatusCancelledByClinic:
		return true
	}
	return true
}

func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	switch s {
	case StatusConfirmed:
		return next == StatusAttended || next == StatusCancelledByPatient || next == StatusCancelledByClinic
	case StatusAttended, StatusCancelledByPatient, StatusCancelledByClinic:
		return false
	}
	return false
}

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleDoctor, RolePatient:
		return r, nil
	}
	return "", fmt.Errorf("%w: role %q", ErrInvalidRecord, s)
}

type Clinic struct {
	ID             string
	Name           string
	Location       string
	Services       string
	OperatingHours string
}

// Suburb is the part of the location before the first comma.
func (c Clinic) Suburb() string {
	return Suburb(c.Location)
}

func Suburb(location string) string {
	if i := strings.Index(location, ","); i >= 0 {
		return strings.TrimSpace(location[:i])
	}
	return strings.TrimSpace(location)
}

type Doctor struct {
	ID           string
	FullName     string
	Email        string
	ClinicID     string
	Specialty    string
	Availability string
}

type Slot struct {
	ID       string
	DoctorID string
	ClinicID string
	Date     string
	Time     string
	Duration int // minutes
	Status   SlotStatus
}

func (s Slot) StartsAt(loc *time.Location) (time.Time, error) {
	return ParseDateTime(s.Date, s.Time, loc)
}

// Book marks an available slot as booked.
func (s *Slot) Book() error {
	if s.Status != SlotAvailable {
		return ErrSlotNotAvailable
	}
	s.Status = SlotBooked
	return nil
}

// Release makes the slot available again.
func (s *Slot) Release() {
	s.Status = SlotAvailable
}

type Appointment struct {
	ID           string
	PatientEmail string
	DoctorID     string
	ClinicID     string
	Date         string
	Time         string
	Duration     int
	Reason       string
	Status       AppointmentStatus
}

func (a Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	return ParseDateTime(a.Date, a.Time, loc)
}

// Transition moves the appointment to next if the lifecycle allows it.
func (a *Appointment) Transition(next AppointmentStatus) error {
	if !a.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, a.Status, next)
	}
	a.Status = next
	return nil
}

// PairsWith reports whether the slot is the one this appointment occupies.
func (a Appointment) PairsWith(s Slot) bool {
	return a.DoctorID == s.DoctorID && a.Date == s.Date && SameClock(a.Time, s.Time)
}

// NormalizeClock rewrites an H:MM or HH:MM time as HH:MM. Anything else is
// returned trimmed.
func NormalizeClock(clock string) string {
	clock = strings.TrimSpace(clock)
	t, err := time.Parse(TimeLayout, clock)
	if err != nil {
		return clock
	}
	return t.Format(TimeLayout)
}

func SameClock(a, b string) bool {
	return NormalizeClock(a) == NormalizeClock(b)
}

type User struct {
	Email     string
	Password  string
	Role      Role
	FirstName string
	LastName  string
	DOB       string
	Gender    string
	Mobile    string
	Address   string
}

type Notification struct {
	UserID    string
	Message   string
	Timestamp string
	Read      bool
}

type LoginEvent struct {
	Email     string
	Timestamp string
	IPAddress string
}

// ParseDateTime parses a YYYY-MM-DD date and an HH:MM time in loc.
func ParseDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateTimeLayout, strings.TrimSpace(date)+" "+strings.TrimSpace(clock), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse appointment time %q %q: %w", date, clock, err)
	}
	return t, nil
}
