package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hackgods/gp-clinic-console/internal/admin"
	"github.com/hackgods/gp-clinic-console/internal/appointment"
	"github.com/hackgods/gp-clinic-console/internal/validate"
)

func (a *App) manageSlots(ctx context.Context) error {
	for {
		choice, err := a.p.Menu("Manage GP Appointment Slots", []string{
			"View GP Slots",
			"Add New Slots",
			"Update Slot Duration",
			"View Slot Statistics",
		})
		if err != nil {
			return err
		}
		switch choice {
		case 1:
			err = a.viewSlots(ctx)
		case 2:
			err = a.addSlots(ctx)
		case 3:
			err = a.updateSlotDuration(ctx)
		case 4:
			err = a.slotStatistics(ctx)
		case 5:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (a *App) doctorIDs(ctx context.Context) (map[string]bool, error) {
	doctors, err := a.admin.Doctors(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(doctors))
	a.p.Println("\nAvailable GPs:")
	for _, d := range doctors {
		ids[d.ID] = true
		a.p.Printf("%s: %s\n", d.ID, d.FullName)
	}
	return ids, nil
}

func (a *App) viewSlots(ctx context.Context) error {
	a.p.Title("View GP Appointment Slots")
	a.p.Println("\nFilter Options:")
	a.p.Println("1. Filter by GP")
	a.p.Println("2. Filter by Clinic Suburb")
	a.p.Println("3. Show all slots")
	a.p.Println("4. Return to previous menu")

	choice, err := a.p.Validated("\nEnter your choice (1-4): ", oneOf("1", "2", "3", "4"))
	if err != nil {
		return err
	}

	var q admin.SlotQuery
	switch choice {
	case "1":
		ids, err := a.doctorIDs(ctx)
		if err != nil {
			a.fail("Could not load GPs", err)
			return a.p.Pause()
		}
		if q.DoctorID, err = a.p.Validated("\nEnter GP ID: ", func(s string) error {
			if !ids[s] {
				return errors.New("please enter a valid GP ID")
			}
			return nil
		}); err != nil {
			return err
		}
	case "2":
		suburbs, err := a.admin.Suburbs(ctx)
		if err != nil {
			a.fail("Could not load clinics", err)
			return a.p.Pause()
		}
		if len(suburbs) == 0 {
			a.p.Println("No clinics found.")
			return a.p.Pause()
		}
		a.p.Println("\nAvailable Clinic Suburbs:")
		for i, s := range suburbs {
			a.p.Printf("%d. %s\n", i+1, s)
		}
		i, err := a.p.Pick("\nEnter suburb number: ", len(suburbs))
		if errors.Is(err, ErrCancelled) {
			return nil
		}
		if err != nil {
			return err
		}
		q.Suburb = suburbs[i]
	case "4":
		return nil
	}

	slots, err := a.admin.Slots(ctx, q)
	if err != nil {
		a.fail("Could not load slots", err)
		return a.p.Pause()
	}
	if len(slots) == 0 {
		a.p.Println("\nNo slots found matching your criteria.")
		return a.p.Pause()
	}
	rows := make([][]string, 0, len(slots))
	for _, v := range slots {
		rows = append(rows, []string{
			v.Slot.Date, v.Slot.Time, fmt.Sprintf("%dmin", v.Slot.Duration),
			v.Doctor.FullName, v.Clinic.Name, v.Slot.Status.String(),
		})
	}
	a.p.Table([]string{"Date", "Time", "Duration", "GP", "Clinic", "Status"}, rows)
	return a.p.Pause()
}

func (a *App) chooseDuration(prompt string) (int, error) {
	a.p.Println("\nAvailable slot durations:")
	choices := make([]string, 0, len(admin.SlotDurations))
	for i, d := range admin.SlotDurations {
		a.p.Printf("%d. %d minutes\n", i+1, d)
		choices = append(choices, strconv.Itoa(i+1))
	}
	answer, err := a.p.Validated(prompt, oneOf(choices...))
	if err != nil {
		return 0, err
	}
	i, _ := strconv.Atoi(answer)
	return admin.SlotDurations[i-1], nil
}

func (a *App) addSlots(ctx context.Context) error {
	a.p.Title("Add New Appointment Slots")

	ids, err := a.doctorIDs(ctx)
	if err != nil {
		a.fail("Could not load GPs", err)
		return a.p.Pause()
	}
	doctorID, err := a.p.Validated("\nEnter GP ID (or input 'return' to exit): ", func(s string) error {
		if s != "return" && !ids[s] {
			return errors.New("please enter a valid GP ID or input 'return' to exit")
		}
		return nil
	})
	if err != nil || doctorID == "return" {
		return err
	}

	clinics, err := a.admin.Clinics(ctx)
	if err != nil {
		a.fail("Could not load clinics", err)
		return a.p.Pause()
	}
	clinicIDs := make(map[string]bool, len(clinics))
	a.p.Println("\nAvailable Clinics:")
	for _, c := range clinics {
		clinicIDs[c.ID] = true
		a.p.Printf("%s: %s (%s)\n", c.ID, c.Name, c.Location)
	}
	clinicID, err := a.p.Validated("\nEnter Clinic ID: ", func(s string) error {
		if !clinicIDs[s] {
			return errors.New("please enter a valid clinic ID")
		}
		return nil
	})
	if err != nil {
		return err
	}

	date, err := a.p.Validated("\nEnter date (YYYY-MM-DD): ", dateCheck)
	if err != nil {
		return err
	}
	duration, err := a.chooseDuration("\nSelect duration (1-4): ")
	if err != nil {
		return err
	}

	a.p.Println("\nEnter time slots (24-hour format, e.g. 09:00, 10:00).")
	a.p.Println("Enter times separated by commas, or 'done' to finish.")
	var times []string
	for {
		line, err := a.p.Line("\nEnter time (or 'done'): ")
		if err != nil {
			return err
		}
		if strings.EqualFold(line, "done") {
			break
		}
		times = append(times, strings.Split(line, ",")...)
	}

	res, err := a.admin.AddSlots(ctx, admin.SlotBatch{
		DoctorID: doctorID,
		ClinicID: clinicID,
		Date:     date,
		Duration: duration,
		Times:    times,
	})
	if err != nil {
		a.fail("Failed to add slots", err)
		return a.p.Pause()
	}
	for _, t := range res.Invalid {
		a.p.Printf("Invalid time format: %s. Please use HH:MM format.\n", t)
	}
	for _, t := range res.Conflicts {
		a.p.Printf("Conflict: Slot already exists at %s\n", t)
	}
	if len(res.Added) == 0 {
		a.p.Println("\nNo new slots were added.")
	} else {
		a.p.Printf("\nSuccessfully added %d new slots!\n", len(res.Added))
	}
	return a.p.Pause()
}

func (a *App) updateSlotDuration(ctx context.Context) error {
	a.p.Title("Update Slot Duration")

	ids, err := a.doctorIDs(ctx)
	if err != nil {
		a.fail("Could not load GPs", err)
		return a.p.Pause()
	}
	doctorID, err := a.p.Validated("\nEnter GP ID (or input 'return' to exit): ", func(s string) error {
		if s != "return" && !ids[s] {
			return errors.New("please enter a valid GP ID or input 'return' to exit")
		}
		return nil
	})
	if err != nil || doctorID == "return" {
		return err
	}

	slots, err := a.admin.Slots(ctx, admin.SlotQuery{DoctorID: doctorID})
	if err != nil {
		a.fail("Could not load slots", err)
		return a.p.Pause()
	}
	if len(slots) == 0 {
		a.p.Println("\nNo slots found for this GP.")
		return a.p.Pause()
	}
	rows := make([][]string, 0, len(slots))
	for _, v := range slots {
		rows = append(rows, []string{v.Slot.Date, v.Slot.Time, fmt.Sprintf("%dmin", v.Slot.Duration), v.Slot.Status.String()})
	}
	a.p.Table([]string{"Date", "Time", "Current Duration", "Status"}, rows)

	date, err := a.p.Validated("\nEnter date to update (YYYY-MM-DD): ", dateCheck)
	if err != nil {
		return err
	}
	clock, err := a.p.Validated("\nEnter time to update (HH:MM): ", func(s string) error {
		if !validate.Clock(s) {
			return errors.New("please enter a valid time (HH:MM)")
		}
		return nil
	})
	if err != nil {
		return err
	}
	duration, err := a.chooseDuration("\nSelect new duration (1-4): ")
	if err != nil {
		return err
	}

	if _, err := a.admin.UpdateSlotDuration(ctx, doctorID, date, clock, duration); err != nil {
		if errors.Is(err, appointment.ErrSlotNotFound) {
			a.p.Println("\nNo matching slot found.")
		} else {
			a.fail("Failed to update slot duration", err)
		}
		return a.p.Pause()
	}
	a.p.Println("\nSlot duration updated successfully!")
	return a.p.Pause()
}

func (a *App) slotStatistics(ctx context.Context) error {
	a.p.Title("Slot Statistics")
	stats, err := a.admin.Statistics(ctx)
	if err != nil {
		a.fail("Could not load slots", err)
		return a.p.Pause()
	}

	statRows := func(in []admin.SlotStat) [][]string {
		rows := make([][]string, 0, len(in))
		for _, s := range in {
			rows = append(rows, []string{s.Name, strconv.Itoa(s.Total), strconv.Itoa(s.Available), strconv.Itoa(s.Booked)})
		}
		return rows
	}
	a.p.Println("\nStatistics by GP:")
	a.p.Table([]string{"GP Name", "Total Slots", "Available", "Booked"}, statRows(stats.ByGP))
	a.p.Println("\nStatistics by Clinic Suburb:")
	a.p.Table([]string{"Suburb", "Total Slots", "Available", "Booked"}, statRows(stats.BySuburb))
	return a.p.Pause()
}

func oneOf(options ...string) func(string) error {
	return func(s string) error {
		for _, o := range options {
			if s == o {
				return nil
			}
		}
		return fmt.Errorf("please enter one of %s", strings.Join(options, ", "))
	}
}

func dateCheck(s string) error {
	if !validate.Date(s) {
		return errors.New("please enter a valid date (YYYY-MM-DD)")
	}
	return nil
}
