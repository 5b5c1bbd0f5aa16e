package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/hackgods/gp-clinic-console/internal/appointment"
	"github.com/hackgods/gp-clinic-console/internal/validate"
)

// SlotQuery narrows the admin slot list. Empty fields match anything.
type SlotQuery struct {
	DoctorID string
	Suburb   string
}

// Slots lists slots in file order with their doctor and clinic.
func (s *Service) Slots(ctx context.Context, q SlotQuery) ([]appointment.SlotView, error) {
	slots, err := s.repo.Slots(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := s.repo.Directory(ctx)
	if err != nil {
		return nil, err
	}

	suburb := strings.ToLower(strings.TrimSpace(q.Suburb))
	var out []appointment.SlotView
	for _, sl := range slots.All() {
		if q.DoctorID != "" && sl.DoctorID != q.DoctorID {
			continue
		}
		clinic := dir.Clinic(sl.ClinicID)
		if suburb != "" {
			if _, known := dir.Clinics.Get(sl.ClinicID); !known || !strings.Contains(strings.ToLower(clinic.Location), suburb) {
				continue
			}
		}
		out = append(out, appointment.SlotView{Slot: sl, Doctor: dir.Doctor(sl.DoctorID), Clinic: clinic})
	}
	return out, nil
}

// Suburbs returns the distinct clinic suburbs in alphabetical order.
func (s *Service) Suburbs(ctx context.Context) ([]string, error) {
	clinics, err := s.repo.Clinics(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, c := range clinics.All() {
		set[c.Suburb()] = struct{}{}
	}
	return sortedKeys(set), nil
}

// SlotBatch describes slots to create for one doctor on one day.
type SlotBatch struct {
	DoctorID string
	ClinicID string
	Date     string
	Duration int
	Times    []string
}

type SlotBatchResult struct {
	Added     []appointment.Slot
	Conflicts []string // times that already had a slot for the doctor
	Invalid   []string // times that are not HH:MM
}

// AddSlots creates available slots for every valid, non-conflicting time in
// the batch. Conflicts and malformed times are reported, not fatal.
func (s *Service) AddSlots(ctx context.Context, b SlotBatch) (*SlotBatchResult, error) {
	return appointment.MutateResult(ctx, s.repo, func(ctx context.Context) (*SlotBatchResult, error) {
		doctors, err := s.repo.Doctors(ctx)
		if err != nil {
			return nil, err
		}
		if _, ok := doctors.Get(b.DoctorID); !ok {
			return nil, fmt.Errorf("%w: %s", appointment.ErrDoctorNotFound, b.DoctorID)
		}
		clinics, err := s.repo.Clinics(ctx)
		if err != nil {
			return nil, err
		}
		if _, ok := clinics.Get(b.ClinicID); !ok {
			return nil, fmt.Errorf("%w: %s", appointment.ErrClinicNotFound, b.ClinicID)
		}
		if !validate.Date(b.Date) {
			return nil, validate.Invalid("date", "please enter a valid date (YYYY-MM-DD)")
		}
		if !ValidDuration(b.Duration) {
			return nil, ErrInvalidDuration
		}

		slots, err := s.repo.Slots(ctx)
		if err != nil {
			return nil, err
		}

		res := &SlotBatchResult{}
		for _, raw := range b.Times {
			clock := strings.TrimSpace(raw)
			if clock == "" {
				continue
			}
			if !validate.Clock(clock) {
				res.Invalid = append(res.Invalid, clock)
				continue
			}
			clock = appointment.NormalizeClock(clock)
			if hasSlot(slots, b.DoctorID, b.Date, clock) {
				res.Conflicts = append(res.Conflicts, clock)
				continue
			}
			sl := appointment.Slot{
				ID:       slots.NextID(),
				DoctorID: b.DoctorID,
				ClinicID: b.ClinicID,
				Date:     b.Date,
				Time:     clock,
				Duration: b.Duration,
				Status:   appointment.SlotAvailable,
			}
			if err := slots.Insert(sl); err != nil {
				return nil, err
			}
			res.Added = append(res.Added, sl)
		}

		if len(res.Added) == 0 {
			return res, nil
		}
		if err := s.repo.Commit(ctx, slots); err != nil {
			return nil, fmt.Errorf("save slots: %w", err)
		}
		s.logger.Info("slots added", "doctor_id", b.DoctorID, "date", b.Date, "count", len(res.Added))
		return res, nil
	})
}

func hasSlot(slots *appointment.Table[appointment.Slot], doctorID, date, clock string) bool {
	for _, sl := range slots.All() {
		if sl.DoctorID == doctorID && sl.Date == date && appointment.SameClock(sl.Time, clock) {
			return true
		}
	}
	return false
}

// UpdateSlotDuration changes the length of the doctor's slot at date and time.
func (s *Service) UpdateSlotDuration(ctx context.Context, doctorID, date, clock string, minutes int) (*appointment.Slot, error) {
	return appointment.MutateResult(ctx, s.repo, func(ctx context.Context) (*appointment.Slot, error) {
		if !ValidDuration(minutes) {
			return nil, ErrInvalidDuration
		}
		slots, err := s.repo.Slots(ctx)
		if err != nil {
			return nil, err
		}

		var updated *appointment.Slot
		for _, sl := range slots.All() {
			if sl.DoctorID == doctorID && sl.Date == date && appointment.SameClock(sl.Time, clock) {
				sl.Duration = minutes
				slots.Put(sl)
				updated = &sl
				break
			}
		}
		if updated == nil {
			return nil, fmt.Errorf("%w: doctor %s at %s %s", appointment.ErrSlotNotFound, doctorID, date, clock)
		}
		if err := s.repo.Commit(ctx, slots); err != nil {
			return nil, fmt.Errorf("save slot: %w", err)
		}
		s.logger.Info("slot duration updated", "slot_id", updated.ID, "duration", minutes)
		return updated, nil
	})
}

// SlotStat counts slots for one GP or one suburb.
type SlotStat struct {
	Name      string
	Total     int
	Available int
	Booked    int
}

type SlotStatistics struct {
	ByGP     []SlotStat
	BySuburb []SlotStat
}

// Statistics counts slots per GP and per clinic suburb, in order of first
// appearance.
func (s *Service) Statistics(ctx context.Context) (*SlotStatistics, error) {
	slots, err := s.repo.Slots(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := s.repo.Directory(ctx)
	if err != nil {
		return nil, err
	}

	byGP := newCounter()
	bySuburb := newCounter()
	for _, sl := range slots.All() {
		byGP.add(sl.DoctorID, dir.Doctor(sl.DoctorID).FullName, sl.Status)

		suburb := ""
		if c, ok := dir.Clinics.Get(sl.ClinicID); ok {
			suburb = c.Suburb()
		}
		bySuburb.add(suburb, suburb, sl.Status)
	}
	return &SlotStatistics{ByGP: byGP.stats, BySuburb: bySuburb.stats}, nil
}

type counter struct {
	index map[string]int
	stats []SlotStat
}

func newCounter() *counter {
	return &counter{index: make(map[string]int)}
}

func (c *counter) add(key, name string, status appointment.SlotStatus) {
	i, ok := c.index[key]
	if !ok {
		i = len(c.stats)
		c.index[key] = i
		c.stats = append(c.stats, SlotStat{Name: name})
	}
	c.stats[i].Total++
	if status == appointment.SlotAvailable {
		c.stats[i].Available++
	} else {
		c.stats[i].Booked++
	}
}
