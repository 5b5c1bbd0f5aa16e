// Package admin implements clinic, GP and slot management.
package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hackgods/gp-clinic-console/internal/appointment"
	"github.com/hackgods/gp-clinic-console/internal/validate"
	"github.com/hackgods/gp-clinic-console/pkg/logging"
)

var (
	ErrClinicInUse     = errors.New("clinic still has doctors assigned")
	ErrDuplicateEmail  = errors.New("email already in use by another doctor")
	ErrInvalidDuration = errors.New("slot duration must be 15, 25, 40 or 60 minutes")
	ErrNoClinics       = errors.New("no clinics available, add a clinic first")
)

// SlotDurations lists the accepted slot lengths in minutes.
var SlotDurations = []int{15, 25, 40, 60}

func ValidDuration(minutes int) bool {
	for _, d := range SlotDurations {
		if d == minutes {
			return true
		}
	}
	return false
}

type Service struct {
	repo   *appointment.Repository
	appts  *appointment.Service
	logger *logging.Logger
}

func NewService(repo *appointment.Repository, appts *appointment.Service, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, appts: appts, logger: logger}
}

// ClinicInput carries clinic fields. On update a blank field keeps the
// current value.
type ClinicInput struct {
	ID             string
	Name           string
	Location       string
	Services       string
	OperatingHours string
}

func (s *Service) Clinics(ctx context.Context) ([]appointment.Clinic, error) {
	t, err := s.repo.Clinics(ctx)
	if err != nil {
		return nil, err
	}
	return t.All(), nil
}

func (s *Service) AddClinic(ctx context.Context, in ClinicInput) (*appointment.Clinic, error) {
	return appointment.MutateResult(ctx, s.repo, func(ctx context.Context) (*appointment.Clinic, error) {
		switch {
		case !validate.NotBlank(in.Name):
			return nil, validate.Invalid("name", "clinic name cannot be empty")
		case !validate.NotBlank(in.Location):
			return nil, validate.Invalid("location", "location cannot be empty")
		case !validate.NotBlank(in.OperatingHours):
			return nil, validate.Invalid("operating_hours", "operating hours cannot be empty")
		}

		clinics, err := s.repo.Clinics(ctx)
		if err != nil {
			return nil, err
		}
		c := appointment.Clinic{
			ID:             clinics.NextID(),
			Name:           strings.TrimSpace(in.Name),
			Location:       strings.TrimSpace(in.Location),
			Services:       strings.TrimSpace(in.Services),
			OperatingHours: strings.TrimSpace(in.OperatingHours),
		}
		if err := clinics.Insert(c); err != nil {
			return nil, err
		}
		if err := s.repo.Commit(ctx, clinics); err != nil {
			return nil, fmt.Errorf("save clinic: %w", err)
		}
		s.logger.Info("clinic added", "clinic_id", c.ID)
		return &c, nil
	})
}

// ClinicChange is the result of a clinic update, including how many
// referencing rows followed an id change.
type ClinicChange struct {
	Clinic       appointment.Clinic
	PreviousID   string
	Doctors      int
	Slots        int
	Appointments int
}

func (c ClinicChange) IDChanged() bool {
	return c.Clinic.ID != c.PreviousID
}

// UpdateClinic edits a clinic. When the id changes, doctors, slots and
// appointments pointing at the old id are moved in the same save.
func (s *Service) UpdateClinic(ctx context.Context, id string, in ClinicInput) (*ClinicChange, error) {
	return appointment.MutateResult(ctx, s.repo, func(ctx context.Context) (*ClinicChange, error) {
		clinics, err := s.repo.Clinics(ctx)
		if err != nil {
			return nil, err
		}
		c, ok := clinics.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", appointment.ErrClinicNotFound, id)
		}
		oldID := c.ID

		c.ID = keep(c.ID, in.ID)
		c.Name = keep(c.Name, in.Name)
		c.Location = keep(c.Location, in.Location)
		c.Services = keep(c.Services, in.Services)
		c.OperatingHours = keep(c.OperatingHours, in.OperatingHours)

		if err := clinics.Replace(oldID, c); err != nil {
			if errors.Is(err, appointment.ErrDuplicateKey) {
				return nil, validate.Invalid("id", "clinic id %s is already used", c.ID)
			}
			return nil, err
		}

		change := &ClinicChange{Clinic: c, PreviousID: oldID}
		tables := []appointment.Snapshotter{clinics}

		if change.IDChanged() {
			doctors, err := s.repo.Doctors(ctx)
			if err != nil {
				return nil, err
			}
			slots, err := s.repo.Slots(ctx)
			if err != nil {
				return nil, err
			}
			appts, err := s.repo.Appointments(ctx)
			if err != nil {
				return nil, err
			}
			change.Doctors = doctors.Update(func(d *appointment.Doctor) bool {
				return moveClinic(&d.ClinicID, oldID, c.ID)
			})
			change.Slots = slots.Update(func(sl *appointment.Slot) bool {
				return moveClinic(&sl.ClinicID, oldID, c.ID)
			})
			change.Appointments = appts.Update(func(a *appointment.Appointment) bool {
				return moveClinic(&a.ClinicID, oldID, c.ID)
			})
			tables = append(tables, doctors, slots, appts)
		}

		if err := s.repo.Commit(ctx, tables...); err != nil {
			return nil, fmt.Errorf("save clinic: %w", err)
		}
		s.logger.Info("clinic updated", "clinic_id", c.ID, "previous_id", oldID)
		return change, nil
	})
}

// DeleteClinic removes a clinic that no doctor references.
func (s *Service) DeleteClinic(ctx context.Context, id string) error {
	return s.repo.Mutate(ctx, func(ctx context.Context) error {
		clinics, err := s.repo.Clinics(ctx)
		if err != nil {
			return err
		}
		if _, ok := clinics.Get(id); !ok {
			return fmt.Errorf("%w: %s", appointment.ErrClinicNotFound, id)
		}
		doctors, err := s.repo.Doctors(ctx)
		if err != nil {
			return err
		}
		assigned := 0
		for _, d := range doctors.All() {
			if d.ClinicID == id {
				assigned++
			}
		}
		if assigned > 0 {
			return fmt.Errorf("%w: %d doctors assigned", ErrClinicInUse, assigned)
		}

		clinics.Delete(id)
		if err := s.repo.Commit(ctx, clinics); err != nil {
			return fmt.Errorf("delete clinic: %w", err)
		}
		s.logger.Info("clinic deleted", "clinic_id", id)
		return nil
	})
}

// DoctorInput carries doctor fields. On update a blank field keeps the
// current value.
type DoctorInput struct {
	FullName     string
	Email        string
	ClinicID     string
	Specialty    string
	Availability string
}

func (s *Service) Doctors(ctx context.Context) ([]appointment.Doctor, error) {
	t, err := s.repo.Doctors(ctx)
	if err != nil {
		return nil, err
	}
	return t.All(), nil
}

func (s *Service) validateDoctor(d appointment.Doctor, doctors *appointment.Table[appointment.Doctor], clinics *appointment.Table[appointment.Clinic]) error {
	if !strings.HasPrefix(strings.TrimSpace(d.FullName), "Dr.") {
		return validate.Invalid("full_name", "name must start with 'Dr.'")
	}
	if !validate.Email(d.Email) {
		return validate.Invalid("email", "please enter a valid email address")
	}
	for _, other := range doctors.All() {
		if other.ID != d.ID && strings.EqualFold(other.Email, d.Email) {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, d.Email)
		}
	}
	if _, ok := clinics.Get(d.ClinicID); !ok {
		return fmt.Errorf("%w: %s", appointment.ErrClinicNotFound, d.ClinicID)
	}
	if !validate.NotBlank(d.Specialty) {
		return validate.Invalid("specialty", "specialty cannot be empty")
	}
	if !validate.NotBlank(d.Availability) {
		return validate.Invalid("availability", "availability cannot be empty")
	}
	return nil
}

func (s *Service) AddDoctor(ctx context.Context, in DoctorInput) (*appointment.Doctor, error) {
	return appointment.MutateResult(ctx, s.repo, func(ctx context.Context) (*appointment.Doctor, error) {
		clinics, err := s.repo.Clinics(ctx)
		if err != nil {
			return nil, err
		}
		if clinics.Len() == 0 {
			return nil, ErrNoClinics
		}
		doctors, err := s.repo.Doctors(ctx)
		if err != nil {
			return nil, err
		}

		d := appointment.Doctor{
			ID:           doctors.NextID(),
			FullName:     strings.TrimSpace(in.FullName),
			Email:        strings.TrimSpace(in.Email),
			ClinicID:     strings.TrimSpace(in.ClinicID),
			Specialty:    strings.TrimSpace(in.Specialty),
			Availability: strings.TrimSpace(in.Availability),
		}
		if err := s.validateDoctor(d, doctors, clinics); err != nil {
			return nil, err
		}
		if err := doctors.Insert(d); err != nil {
			return nil, err
		}
		if err := s.repo.Commit(ctx, doctors); err != nil {
			return nil, fmt.Errorf("save doctor: %w", err)
		}
		s.logger.Info("doctor added", "doctor_id", d.ID)
		return &d, nil
	})
}

// DoctorChange is the result of a doctor update.
type DoctorChange struct {
	Doctor       appointment.Doctor
	Slots        int
	Appointments int
}

// UpdateDoctor edits a doctor and moves the doctor's slots and appointments
// to the doctor's clinic in the same save.
func (s *Service) UpdateDoctor(ctx context.Context, id string, in DoctorInput) (*DoctorChange, error) {
	return appointment.MutateResult(ctx, s.repo, func(ctx context.Context) (*DoctorChange, error) {
		doctors, err := s.repo.Doctors(ctx)
		if err != nil {
			return nil, err
		}
		d, ok := doctors.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", appointment.ErrDoctorNotFound, id)
		}
		clinics, err := s.repo.Clinics(ctx)
		if err != nil {
			return nil, err
		}

		d.FullName = keep(d.FullName, in.FullName)
		d.Email = keep(d.Email, in.Email)
		d.ClinicID = keep(d.ClinicID, in.ClinicID)
		d.Specialty = keep(d.Specialty, in.Specialty)
		d.Availability = keep(d.Availability, in.Availability)

		if err := s.validateDoctor(d, doctors, clinics); err != nil {
			return nil, err
		}
		doctors.Put(d)

		slots, err := s.repo.Slots(ctx)
		if err != nil {
			return nil, err
		}
		appts, err := s.repo.Appointments(ctx)
		if err != nil {
			return nil, err
		}
		change := &DoctorChange{Doctor: d}
		change.Slots = slots.Update(func(sl *appointment.Slot) bool {
			if sl.DoctorID != d.ID || sl.ClinicID == d.ClinicID {
				return false
			}
			sl.ClinicID = d.ClinicID
			return true
		})
		change.Appointments = appts.Update(func(a *appointment.Appointment) bool {
			if a.DoctorID != d.ID || a.ClinicID == d.ClinicID {
				return false
			}
			a.ClinicID = d.ClinicID
			return true
		})

		if err := s.repo.Commit(ctx, doctors, slots, appts); err != nil {
			return nil, fmt.Errorf("save doctor: %w", err)
		}
		s.logger.Info("doctor updated", "doctor_id", d.ID, "slots", change.Slots, "appointments", change.Appointments)
		return change, nil
	})
}

// DeleteDoctor removes a doctor. Slots and appointments are left in place and
// show the doctor as Unknown.
func (s *Service) DeleteDoctor(ctx context.Context, id string) error {
	return s.repo.Mutate(ctx, func(ctx context.Context) error {
		doctors, err := s.repo.Doctors(ctx)
		if err != nil {
			return err
		}
		if !doctors.Delete(id) {
			return fmt.Errorf("%w: %s", appointment.ErrDoctorNotFound, id)
		}
		if err := s.repo.Commit(ctx, doctors); err != nil {
			return fmt.Errorf("delete doctor: %w", err)
		}
		s.logger.Info("doctor deleted", "doctor_id", id)
		return nil
	})
}

// UpcomingAppointments lists confirmed future appointments across all patients.
func (s *Service) UpcomingAppointments(ctx context.Context) ([]appointment.AppointmentView, error) {
	return s.appts.CancellableAppointments(ctx, appointment.ClinicActor())
}

// CancelAppointment cancels on behalf of the clinic and notifies the patient.
func (s *Service) CancelAppointment(ctx context.Context, id string) (*appointment.Cancellation, error) {
	return s.appts.CancelAppointment(ctx, id, appointment.ClinicActor())
}

func keep(current, next string) string {
	if next = strings.TrimSpace(next); next != "" {
		return next
	}
	return current
}

func moveClinic(field *string, from, to string) bool {
	if *field != from {
		return false
	}
	*field = to
	return true
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
