package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hackgods/gp-clinic-console/internal/config"
	redisclient "github.com/hackgods/gp-clinic-console/internal/redis"
	"github.com/hackgods/gp-clinic-console/pkg/logging"
)

var (
	ErrSlotNotAvailable        = errors.New("slot is not available")
	ErrSlotAlreadyBooked       = errors.New("slot already has a confirmed appointment")
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrReasonRequired          = errors.New("reason for the appointment is required")
	ErrNotCancellable          = errors.New("appointment cannot be cancelled")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrNotOwner                = errors.New("appointment belongs to another patient")
)

type Service struct {
	repo   *Repository
	locker redisclient.Locker
	cfg    config.Config
	logger *logging.Logger
	now    func() time.Time
	loc    *time.Location
}

func NewService(repo *Repository, locker redisclient.Locker, cfg config.Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if locker == nil {
		locker = redisclient.NewLocalSlotLocker()
	}
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		loc:    time.Local,
	}
}

// SetClock replaces the wall clock. Stored dates are read in the clock's
// location.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.loc = now().Location()
}

func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) Repository() *Repository {
	return s.repo
}

// SlotFilterKind selects which attribute AvailableSlots narrows on.
type SlotFilterKind int

const (
	FilterNone SlotFilterKind = iota
	FilterDoctor
	FilterDate
	FilterClinic
)

type SlotFilter struct {
	By    SlotFilterKind
	Value string
}

func (f SlotFilter) matches(slot Slot) bool {
	v := strings.TrimSpace(f.Value)
	if v == "" {
		return true
	}
	switch f.By {
	case FilterDoctor:
		return slot.DoctorID == v
	case FilterDate:
		return slot.Date == v
	case FilterClinic:
		return slot.ClinicID == v
	case FilterNone:
		return true
	}
	return true
}

// SlotView is a slot joined with its doctor and clinic.
type SlotView struct {
	Slot   Slot
	Doctor Doctor
	Clinic Clinic
}

// AvailableSlots lists available slots matching the filter, ordered by start.
func (s *Service) AvailableSlots(ctx context.Context, filter SlotFilter) ([]SlotView, error) {
	slots, err := s.repo.Slots(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := s.repo.Directory(ctx)
	if err != nil {
		return nil, err
	}

	var out []SlotView
	for _, slot := range slots.All() {
		if slot.Status != SlotAvailable || !filter.matches(slot) {
			continue
		}
		out = append(out, SlotView{Slot: slot, Doctor: dir.Doctor(slot.DoctorID), Clinic: dir.Clinic(slot.ClinicID)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return s.before(out[i].Slot.Date, out[i].Slot.Time, out[j].Slot.Date, out[j].Slot.Time)
	})
	return out, nil
}

// SlotDetail returns one slot with its doctor and clinic.
func (s *Service) SlotDetail(ctx context.Context, slotID string) (*SlotView, error) {
	slots, err := s.repo.Slots(ctx)
	if err != nil {
		return nil, err
	}
	slot, ok := slots.Get(slotID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSlotNotFound, slotID)
	}
	dir, err := s.repo.Directory(ctx)
	if err != nil {
		return nil, err
	}
	return &SlotView{Slot: slot, Doctor: dir.Doctor(slot.DoctorID), Clinic: dir.Clinic(slot.ClinicID)}, nil
}

// BookAppointment reserves a slot for a patient.
// It runs under the slot lock so that concurrent requests for the same slot
// cannot both create a confirmed appointment, and inside Repository.Mutate so
// bookings of different slots do not overwrite each other's saves.
func (s *Service) BookAppointment(ctx context.Context, patientEmail, slotID, reason string) (*Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	users, err := s.repo.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	patient, ok := users.Get(patientEmail)
	if !ok || patient.Role != RolePatient {
		return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, patientEmail)
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		// Re-read inside the critical section
		return s.repo.Mutate(lockCtx, func(lockCtx context.Context) error {
			slots, err := s.repo.Slots(lockCtx)
			if err != nil {
				return err
			}
			slot, ok := slots.Get(slotID)
			if !ok {
				return fmt.Errorf("%w: %s", ErrSlotNotFound, slotID)
			}
			if slot.Status != SlotAvailable {
				return ErrSlotNotAvailable
			}

			appts, err := s.repo.Appointments(lockCtx)
			if err != nil {
				return err
			}
			for _, a := range appts.All() {
				if a.Status == StatusConfirmed && a.PairsWith(slot) {
					return ErrSlotAlreadyBooked
				}
			}

			appt := Appointment{
				ID:           appts.NextID(),
				PatientEmail: patient.Email,
				DoctorID:     slot.DoctorID,
				ClinicID:     slot.ClinicID,
				Date:         slot.Date,
				Time:         slot.Time,
				Duration:     slot.Duration,
				Reason:       reason,
				Status:       StatusConfirmed,
			}
			if err := appts.Insert(appt); err != nil {
				return err
			}
			if err := slot.Book(); err != nil {
				return err
			}
			slots.Put(slot)

			if err := s.repo.Commit(lockCtx, appts, slots); err != nil {
				return fmt.Errorf("save booking: %w", err)
			}
			created = &appt
			return nil
		})
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.logger.Info("appointment booked",
		"appointment_id", created.ID,
		"slot_id", slotID,
		"patient", created.PatientEmail,
	)
	return created, nil
}

// Actor is whoever requests a cancellation.
type Actor struct {
	clinic bool
	email  string
}

func PatientActor(email string) Actor {
	return Actor{email: strings.TrimSpace(email)}
}

func ClinicActor() Actor {
	return Actor{clinic: true}
}

func (a Actor) IsClinic() bool {
	return a.clinic
}

func (a Actor) cancelledStatus() AppointmentStatus {
	if a.clinic {
		return StatusCancelledByClinic
	}
	return StatusCancelledByPatient
}

func (a Actor) owns(appt Appointment) bool {
	return a.clinic || strings.EqualFold(appt.PatientEmail, a.email)
}

// Cancellation describes the outcome, or the prospective outcome, of
// cancelling an appointment.
type Cancellation struct {
	Appointment      Appointment
	Notice           time.Duration
	FreeCancellation bool
	FeeCents         int
	SlotReleased     bool
	NotificationSent bool
}

// CancellationMessage is the text of the notification sent to a patient when
// the clinic cancels.
func CancellationMessage(a Appointment) string {
	return fmt.Sprintf("Your appointment %s %s has been canceled by clinic", a.Date, a.Time)
}

func (s *Service) checkCancellable(appt Appointment, actor Actor, now time.Time) (time.Duration, error) {
	if !actor.owns(appt) {
		return 0, ErrNotOwner
	}
	if appt.Status != StatusConfirmed {
		return 0, fmt.Errorf("%w: status is %s", ErrNotCancellable, appt.Status)
	}
	start, err := appt.StartsAt(s.loc)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotCancellable, err)
	}
	if !start.After(now) {
		return 0, fmt.Errorf("%w: appointment has already started", ErrNotCancellable)
	}
	return start.Sub(now), nil
}

func (s *Service) terms(appt Appointment, actor Actor, notice time.Duration) *Cancellation {
	c := &Cancellation{Appointment: appt, Notice: notice, FreeCancellation: true}
	if !actor.clinic && notice < s.cfg.FreeCancellationWindow {
		c.FreeCancellation = false
		c.FeeCents = s.cfg.CancellationFeeCents
	}
	return c
}

// PreviewCancellation reports the fee terms without changing anything.
func (s *Service) PreviewCancellation(ctx context.Context, appointmentID string, actor Actor) (*Cancellation, error) {
	appts, err := s.repo.Appointments(ctx)
	if err != nil {
		return nil, err
	}
	appt, ok := appts.Get(appointmentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAppointmentNotFound, appointmentID)
	}
	notice, err := s.checkCancellable(appt, actor, s.now())
	if err != nil {
		return nil, err
	}
	return s.terms(appt, actor, notice), nil
}

// CancelAppointment cancels a confirmed future appointment and frees its slot.
// Appointment, slot and notification changes are saved together.
func (s *Service) CancelAppointment(ctx context.Context, appointmentID string, actor Actor) (*Cancellation, error) {
	return MutateResult(ctx, s.repo, func(ctx context.Context) (*Cancellation, error) {
		appts, err := s.repo.Appointments(ctx)
		if err != nil {
			return nil, err
		}
		appt, ok := appts.Get(appointmentID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrAppointmentNotFound, appointmentID)
		}
		now := s.now()
		notice, err := s.checkCancellable(appt, actor, now)
		if err != nil {
			return nil, err
		}
		if err := appt.Transition(actor.cancelledStatus()); err != nil {
			return nil, err
		}
		appts.Put(appt)

		result := s.terms(appt, actor, notice)

		slots, err := s.repo.Slots(ctx)
		if err != nil {
			return nil, err
		}
		released := slots.Update(func(slot *Slot) bool {
			if !appt.PairsWith(*slot) || slot.Status == SlotAvailable {
				return false
			}
			slot.Release()
			return true
		})
		result.SlotReleased = released > 0

		tables := []Snapshotter{appts, slots}
		if actor.clinic {
			notes, err := s.repo.Notifications(ctx)
			if err != nil {
				return nil, err
			}
			notes.Put(Notification{
				UserID:    appt.PatientEmail,
				Message:   CancellationMessage(appt),
				Timestamp: now.Format(TimestampLayout),
				Read:      false,
			})
			tables = append(tables, notes)
			result.NotificationSent = true
		}

		if err := s.repo.Commit(ctx, tables...); err != nil {
			return nil, fmt.Errorf("save cancellation: %w", err)
		}

		if !result.SlotReleased {
			s.logger.Warn("no booked slot paired with cancelled appointment", "appointment_id", appt.ID)
		}
		s.logger.Info("appointment cancelled",
			"appointment_id", appt.ID,
			"status", appt.Status.String(),
			"free", result.FreeCancellation,
		)
		return result, nil
	})
}

// CancellableAppointments lists the confirmed future appointments the actor
// may cancel, ordered by start.
func (s *Service) CancellableAppointments(ctx context.Context, actor Actor) ([]AppointmentView, error) {
	appts, err := s.repo.Appointments(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := s.repo.Directory(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var out []AppointmentView
	for _, a := range appts.All() {
		if _, err := s.checkCancellable(a, actor, now); err != nil {
			continue
		}
		out = append(out, s.view(a, dir, now))
	}
	s.sortViews(out)
	return out, nil
}

// refresh marks every past confirmed appointment accepted by match as
// attended and reports how many changed.
func (s *Service) refresh(appts *Table[Appointment], match func(Appointment) bool) int {
	now := s.now()
	return appts.Update(func(a *Appointment) bool {
		if a.Status != StatusConfirmed || !match(*a) {
			return false
		}
		start, err := a.StartsAt(s.loc)
		if err != nil || !start.Before(now) {
			return false
		}
		return a.Transition(StatusAttended) == nil
	})
}

// RefreshAll marks every past confirmed appointment as attended.
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	return MutateResult(ctx, s.repo, func(ctx context.Context) (int, error) {
		appts, err := s.repo.Appointments(ctx)
		if err != nil {
			return 0, err
		}
		changed := s.refresh(appts, func(Appointment) bool { return true })
		if changed == 0 {
			return 0, nil
		}
		if err := s.repo.Commit(ctx, appts); err != nil {
			return 0, fmt.Errorf("save attended appointments: %w", err)
		}
		s.logger.Info("appointments marked attended", "count", changed)
		return changed, nil
	})
}

// AppointmentView is an appointment joined with its doctor and clinic.
type AppointmentView struct {
	Appointment Appointment
	Doctor      Doctor
	Clinic      Clinic
	Suburb      string
	// StartsIn is zero when the start has passed or cannot be parsed.
	StartsIn time.Duration
	parsed   bool
	start    time.Time
}

func (v AppointmentView) Upcoming(now time.Time) bool {
	if v.Appointment.Status != StatusConfirmed {
		return false
	}
	return !v.parsed || v.start.After(now)
}

func (v AppointmentView) Past(now time.Time) bool {
	if v.Appointment.Status.Terminal() {
		return true
	}
	return v.parsed && !v.start.After(now)
}

func (s *Service) view(a Appointment, dir *Directory, now time.Time) AppointmentView {
	clinic := dir.Clinic(a.ClinicID)
	v := AppointmentView{
		Appointment: a,
		Doctor:      dir.Doctor(a.DoctorID),
		Clinic:      clinic,
		Suburb:      clinic.Suburb(),
	}
	if start, err := a.StartsAt(s.loc); err == nil {
		v.parsed = true
		v.start = start
		if start.After(now) {
			v.StartsIn = start.Sub(now)
		}
	}
	return v
}

// PatientAppointments returns every appointment of the patient. Past
// confirmed appointments are marked attended first; the file is only
// rewritten when something changed.
func (s *Service) PatientAppointments(ctx context.Context, email string) ([]AppointmentView, error) {
	return MutateResult(ctx, s.repo, func(ctx context.Context) ([]AppointmentView, error) {
		appts, err := s.repo.Appointments(ctx)
		if err != nil {
			return nil, err
		}
		mine := func(a Appointment) bool { return strings.EqualFold(a.PatientEmail, email) }

		if changed := s.refresh(appts, mine); changed > 0 {
			if err := s.repo.Commit(ctx, appts); err != nil {
				return nil, fmt.Errorf("save attended appointments: %w", err)
			}
			s.logger.Info("appointments marked attended", "patient", email, "count", changed)
		}

		dir, err := s.repo.Directory(ctx)
		if err != nil {
			return nil, err
		}
		now := s.now()
		var out []AppointmentView
		for _, a := range appts.All() {
			if mine(a) {
				out = append(out, s.view(a, dir, now))
			}
		}
		s.sortViews(out)
		return out, nil
	})
}

type ViewMode int

const (
	ViewAll ViewMode = iota
	ViewUpcoming
	ViewPast
)

func (m ViewMode) String() string {
	switch m {
	case ViewUpcoming:
		return "Upcoming appointments"
	case ViewPast:
		return "Past appointments"
	}
	return "All appointments"
}

// ViewQuery narrows a list of appointment views. Empty fields match anything.
type ViewQuery struct {
	Mode   ViewMode
	Date   string
	GPName string
	Suburb string
}

func (q ViewQuery) Filtered() bool {
	return q.Date != "" || q.GPName != "" || q.Suburb != ""
}

// FilterAppointments applies q to views, keeping their order.
func FilterAppointments(views []AppointmentView, q ViewQuery, now time.Time) []AppointmentView {
	gp := strings.ToLower(strings.TrimSpace(q.GPName))
	suburb := strings.ToLower(strings.TrimSpace(q.Suburb))
	date := strings.TrimSpace(q.Date)

	var out []AppointmentView
	for _, v := range views {
		switch q.Mode {
		case ViewUpcoming:
			if !v.Upcoming(now) {
				continue
			}
		case ViewPast:
			if !v.Past(now) {
				continue
			}
		case ViewAll:
		}
		if date != "" && v.Appointment.Date != date {
			continue
		}
		if gp != "" && !strings.Contains(strings.ToLower(v.Doctor.FullName), gp) {
			continue
		}
		if suburb != "" && !strings.Contains(strings.ToLower(v.Suburb), suburb) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Notifications returns the user's notifications and marks them read.
func (s *Service) Notifications(ctx context.Context, email string) ([]Notification, error) {
	return MutateResult(ctx, s.repo, func(ctx context.Context) ([]Notification, error) {
		notes, err := s.repo.Notifications(ctx)
		if err != nil {
			return nil, err
		}
		var mine []Notification
		notes.Update(func(n *Notification) bool {
			if !strings.EqualFold(n.UserID, email) {
				return false
			}
			mine = append(mine, *n)
			if n.Read {
				return false
			}
			n.Read = true
			return true
		})

		unread := 0
		for _, n := range mine {
			if !n.Read {
				unread++
			}
		}
		if unread > 0 {
			if err := s.repo.Commit(ctx, notes); err != nil {
				return nil, fmt.Errorf("mark notifications read: %w", err)
			}
		}
		return mine, nil
	})
}

// UnreadNotifications counts unread notifications without marking them.
func (s *Service) UnreadNotifications(ctx context.Context, email string) (int, error) {
	notes, err := s.repo.Notifications(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, note := range notes.All() {
		if strings.EqualFold(note.UserID, email) && !note.Read {
			n++
		}
	}
	return n, nil
}

func (s *Service) sortViews(views []AppointmentView) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i].Appointment, views[j].Appointment
		return s.before(a.Date, a.Time, b.Date, b.Time)
	})
}

// before orders by parsed start, falling back to the raw strings when either
// side does not parse.
func (s *Service) before(d1, t1, d2, t2 string) bool {
	a, errA := ParseDateTime(d1, t1, s.loc)
	b, errB := ParseDateTime(d2, t2, s.loc)
	if errA == nil && errB == nil {
		return a.Before(b)
	}
	if d1 != d2 {
		return d1 < d2
	}
	return t1 < t2
}
