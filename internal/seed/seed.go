// Package seed fills a store with plausible clinics, GPs, slots, patients
// and appointments for demos and load runs.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/gp-clinic-console/internal/appointment"
	"github.com/hackgods/gp-clinic-console/internal/validate"
	"github.com/hackgods/gp-clinic-console/pkg/logging"
)

// DefaultPassword is given to every generated account.
const DefaultPassword = "Welcome123"

const AdminEmail = "admin@monash.edu"

var (
	specialties = []string{
		"General Practice",
		"Family Medicine",
		"Women's Health",
		"Men's Health",
		"Paediatrics",
		"Sports Medicine",
		"Skin Checks",
		"Mental Health",
	}
	reasons = []string{
		"General check-up",
		"Vaccination",
		"Prescription renewal",
		"Blood test results",
		"Skin check",
		"Cold and flu",
		"Mental health plan",
	}
	suburbs = []string{
		"Clayton, VIC 3168",
		"Caulfield East, VIC 3145",
		"Melbourne CBD, VIC 3000",
		"Box Hill, VIC 3128",
		"Frankston, VIC 3199",
		"Parkville, VIC 3052",
		"Brighton, VIC 3186",
	}
	slotTimes = []string{"09:00", "09:30", "10:00", "10:30", "11:00", "13:00", "13:30", "14:00", "15:00", "16:00"}
)

type Options struct {
	Clinics          int
	DoctorsPerClinic int
	Patients         int
	Days             int // days of slots generated from Start
	SlotsPerDay      int // per doctor, capped at the number of slot times
	BookingRatio     float64
	Start            time.Time
	Domain           string // email domain of generated patients
	Seed             uint64 // 0 picks a random seed
}

func DefaultOptions(now time.Time) Options {
	return Options{
		Clinics:          3,
		DoctorsPerClinic: 2,
		Patients:         20,
		Days:             7,
		SlotsPerDay:      4,
		BookingRatio:     0.3,
		Start:            now.AddDate(0, 0, -3),
		Domain:           "student.monash.edu",
	}
}

type Summary struct {
	Users        int
	Clinics      int
	Doctors      int
	Slots        int
	Appointments int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d users, %d clinics, %d doctors, %d slots, %d appointments",
		s.Users, s.Clinics, s.Doctors, s.Slots, s.Appointments)
}

// Run appends generated rows to whatever the store already holds and commits
// everything at once. An admin account is added when none exists.
func Run(ctx context.Context, repo *appointment.Repository, opts Options, logger *logging.Logger) (*Summary, error) {
	return appointment.MutateResult(ctx, repo, func(ctx context.Context) (*Summary, error) {
		return run(ctx, repo, opts, logger)
	})
}

func run(ctx context.Context, repo *appointment.Repository, opts Options, logger *logging.Logger) (*Summary, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if opts.Domain == "" {
		opts.Domain = "student.monash.edu"
	}
	f := gofakeit.New(opts.Seed)

	users, err := repo.Users(ctx)
	if err != nil {
		return nil, err
	}
	clinics, err := repo.Clinics(ctx)
	if err != nil {
		return nil, err
	}
	doctors, err := repo.Doctors(ctx)
	if err != nil {
		return nil, err
	}
	slots, err := repo.Slots(ctx)
	if err != nil {
		return nil, err
	}
	appts, err := repo.Appointments(ctx)
	if err != nil {
		return nil, err
	}

	var sum Summary

	if _, ok := users.Get(AdminEmail); !ok {
		users.Put(appointment.User{Email: AdminEmail, Password: "Admin123", Role: appointment.RoleAdmin, FirstName: "Clinic", LastName: "Admin"})
		sum.Users++
	}

	var patients []appointment.User
	for i := 0; i < opts.Patients; i++ {
		first, last := lettersOnly(f.FirstName()), lettersOnly(f.LastName())
		email := fmt.Sprintf("%s.%s%d@%s", strings.ToLower(first), strings.ToLower(last), f.Number(10, 99), opts.Domain)
		if _, taken := users.Get(email); taken {
			continue
		}
		u := appointment.User{
			Email:     email,
			Password:  DefaultPassword,
			Role:      appointment.RolePatient,
			FirstName: first,
			LastName:  last,
			DOB:       f.DateRange(time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2005, 12, 31, 0, 0, 0, 0, time.UTC)).Format(validate.DOBLayout),
			Gender:    f.Gender(),
			Mobile:    fmt.Sprintf("04%08d", f.Number(0, 99999999)),
			Address:   fmt.Sprintf("%d %s, %s", f.Number(1, 200), f.StreetName(), f.City()),
		}
		users.Put(u)
		patients = append(patients, u)
		sum.Users++
	}

	for c := 0; c < opts.Clinics; c++ {
		location := f.RandomString(suburbs)
		clinic := appointment.Clinic{
			ID:             clinics.NextID(),
			Name:           fmt.Sprintf("%s Medical Centre", appointment.Suburb(location)),
			Location:       location,
			Services:       strings.Join([]string{f.RandomString(specialties), f.RandomString(specialties)}, ", "),
			OperatingHours: "Mon-Fri 8:00-18:00",
		}
		if err := clinics.Insert(clinic); err != nil {
			return nil, err
		}
		sum.Clinics++

		for d := 0; d < opts.DoctorsPerClinic; d++ {
			first, last := lettersOnly(f.FirstName()), lettersOnly(f.LastName())
			doc := appointment.Doctor{
				ID:           doctors.NextID(),
				FullName:     fmt.Sprintf("Dr. %s %s", first, last),
				Email:        fmt.Sprintf("%s.%s%d@monash.edu", strings.ToLower(first), strings.ToLower(last), f.Number(100, 999)),
				ClinicID:     clinic.ID,
				Specialty:    f.RandomString(specialties),
				Availability: f.RandomString([]string{"Mon-Fri", "Mon-Wed", "Wed-Fri", "Tue-Thu"}),
			}
			if err := doctors.Insert(doc); err != nil {
				return nil, err
			}
			sum.Doctors++

			added, booked, err := seedSlots(f, doc, slots, appts, patients, opts)
			if err != nil {
				return nil, err
			}
			sum.Slots += added
			sum.Appointments += booked
		}
	}

	if err := repo.Commit(ctx, users, clinics, doctors, slots, appts); err != nil {
		return nil, fmt.Errorf("save seed data: %w", err)
	}
	logger.Info("seed complete", "summary", sum.String())
	return &sum, nil
}

// seedSlots creates the doctor's slots and books a share of them. Booked
// slots before Start+3 days are left confirmed so the lifecycle refresh has
// something to mark attended.
func seedSlots(f *gofakeit.Faker, doc appointment.Doctor, slots *appointment.Table[appointment.Slot], appts *appointment.Table[appointment.Appointment], patients []appointment.User, opts Options) (int, int, error) {
	perDay := opts.SlotsPerDay
	if perDay > len(slotTimes) {
		perDay = len(slotTimes)
	}
	added, booked := 0, 0
	for day := 0; day < opts.Days; day++ {
		date := opts.Start.AddDate(0, 0, day).Format(appointment.DateLayout)
		for i := 0; i < perDay; i++ {
			slot := appointment.Slot{
				ID:       slots.NextID(),
				DoctorID: doc.ID,
				ClinicID: doc.ClinicID,
				Date:     date,
				Time:     slotTimes[i],
				Duration: f.RandomInt([]int{15, 15, 25, 40}),
				Status:   appointment.SlotAvailable,
			}
			if len(patients) > 0 && f.Float64Range(0, 1) < opts.BookingRatio {
				p := patients[f.Number(0, len(patients)-1)]
				appt := appointment.Appointment{
					ID:           appts.NextID(),
					PatientEmail: p.Email,
					DoctorID:     doc.ID,
					ClinicID:     doc.ClinicID,
					Date:         slot.Date,
					Time:         slot.Time,
					Duration:     slot.Duration,
					Reason:       f.RandomString(reasons),
					Status:       appointment.StatusConfirmed,
				}
				if err := appts.Insert(appt); err != nil {
					return 0, 0, err
				}
				slot.Status = appointment.SlotBooked
				booked++
			}
			if err := slots.Insert(slot); err != nil {
				return 0, 0, err
			}
			added++
		}
	}
	return added, booked, nil
}

// lettersOnly strips anything the name validation would reject, such as
// apostrophes or spaces in generated surnames.
func lettersOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "Sam"
	}
	return b.String()
}
