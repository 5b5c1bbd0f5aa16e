package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hackgods/gp-clinic-console/internal/account"
	"github.com/hackgods/gp-clinic-console/internal/appointment"
	"github.com/hackgods/gp-clinic-console/internal/validate"
)

func (a *App) patientMenu(ctx context.Context, email string) error {
	for {
		notifications := "View Notifications"
		if n, err := a.appts.UnreadNotifications(ctx, email); err == nil && n > 0 {
			notifications = fmt.Sprintf("View Notifications (%d new)", n)
		}

		choice, err := a.p.MenuWithExit("Patient Menu", []string{
			"Book Appointment",
			"View My Appointments",
			"Edit Profile",
			notifications,
		}, "Logout")
		if err != nil {
			return err
		}

		switch choice {
		case 1:
			err = a.bookAppointment(ctx, email)
		case 2:
			err = a.viewAppointments(ctx, email)
		case 3:
			err = a.editProfile(ctx, email)
		case 4:
			err = a.viewNotifications(ctx, email)
		case 5:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (a *App) chooseSlotFilter(ctx context.Context) (appointment.SlotFilter, error) {
	a.p.Title("Book New Appointment")
	a.p.Println("\n--- Choose Filter Method ---")
	a.p.Println("1. Filter by GP")
	a.p.Println("2. Filter by Date")
	a.p.Println("3. Filter by Clinic")
	a.p.Println("4. No filters (show all)")

	choice, err := a.p.Line("\nEnter your choice (1-4): ")
	if err != nil {
		return appointment.SlotFilter{}, err
	}

	all, err := a.appts.AvailableSlots(ctx, appointment.SlotFilter{})
	if err != nil {
		return appointment.SlotFilter{}, err
	}

	switch choice {
	case "1":
		a.p.Println("\nAvailable GPs:")
		seen := map[string]bool{}
		for _, v := range all {
			if !seen[v.Doctor.ID] {
				seen[v.Doctor.ID] = true
				a.p.Printf("%s: %s (%s)\n", v.Doctor.ID, v.Doctor.FullName, v.Doctor.Specialty)
			}
		}
		id, err := a.p.Line("\nEnter GP ID (or press Enter for all): ")
		return appointment.SlotFilter{By: appointment.FilterDoctor, Value: id}, err
	case "2":
		date, err := a.p.Line("\nEnter date (YYYY-MM-DD): ")
		if err != nil {
			return appointment.SlotFilter{}, err
		}
		if date != "" && !validate.Date(date) {
			a.p.Println("Invalid date format. Showing all dates.")
			date = ""
		}
		return appointment.SlotFilter{By: appointment.FilterDate, Value: date}, nil
	case "3":
		a.p.Println("\nAvailable Clinic Suburbs:")
		seen := map[string]bool{}
		for _, v := range all {
			if !seen[v.Clinic.ID] {
				seen[v.Clinic.ID] = true
				a.p.Printf("%s: %s\n", v.Clinic.ID, v.Clinic.Suburb())
			}
		}
		id, err := a.p.Line("\nEnter Clinic ID: ")
		return appointment.SlotFilter{By: appointment.FilterClinic, Value: id}, err
	case "4":
		return appointment.SlotFilter{}, nil
	}
	a.p.Println("Invalid choice. Showing all available slots.")
	return appointment.SlotFilter{}, nil
}

func (a *App) slotTable(slots []appointment.SlotView) {
	rows := make([][]string, 0, len(slots))
	for i, v := range slots {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			v.Slot.Date,
			v.Slot.Time,
			fmt.Sprintf("%dmin", v.Slot.Duration),
			v.Doctor.FullName,
			v.Clinic.Name,
		})
	}
	a.p.Table([]string{"#", "Date", "Time", "Duration", "Doctor", "Clinic"}, rows)
}

func (a *App) bookAppointment(ctx context.Context, email string) error {
	available, err := a.appts.AvailableSlots(ctx, appointment.SlotFilter{})
	if err != nil {
		a.fail("Could not load slots", err)
		return a.p.Pause()
	}
	if len(available) == 0 {
		a.p.Println("No available appointment slots found.")
		return a.p.Pause()
	}

	filter, err := a.chooseSlotFilter(ctx)
	if err != nil {
		return err
	}
	slots, err := a.appts.AvailableSlots(ctx, filter)
	if err != nil {
		a.fail("Could not load slots", err)
		return a.p.Pause()
	}
	if len(slots) == 0 {
		a.p.Println("\nNo slots match your filter criteria.")
		return a.p.Pause()
	}

	for {
		a.p.Title("Available Appointment Slots")
		a.slotTable(slots)

		i, err := a.p.Pick("\nEnter slot number to view details (or 'c' to cancel): ", len(slots))
		if errors.Is(err, ErrCancelled) {
			return nil
		}
		if err != nil {
			return err
		}

		selected := slots[i]
		a.slotDetails(selected)
		book, err := a.p.Confirm("\nWould you like to book this appointment?")
		if err != nil {
			return err
		}
		if book {
			return a.confirmBooking(ctx, email, selected)
		}
	}
}

func (a *App) slotDetails(v appointment.SlotView) {
	a.p.Title("Appointment Details")
	a.p.Printf("Date: %s\n", v.Slot.Date)
	a.p.Printf("Time: %s\n", v.Slot.Time)
	a.p.Printf("Duration: %d minutes\n", v.Slot.Duration)
	a.p.Printf("Doctor: %s\n", v.Doctor.FullName)
	a.p.Printf("Specialty: %s\n", v.Doctor.Specialty)
	a.p.Printf("\nClinic: %s\n", v.Clinic.Name)
	a.p.Printf("Address: %s\n", v.Clinic.Location)
	a.p.Printf("Services: %s\n", v.Clinic.Services)
	a.p.Printf("Operating Hours: %s\n", v.Clinic.OperatingHours)
	a.p.Printf("\nCancellation Policy: Appointments can be cancelled at no charge up to %s before the scheduled time.\n", formatWindow(a.window))
}

func (a *App) confirmBooking(ctx context.Context, email string, v appointment.SlotView) error {
	reason, err := a.p.Validated("\nPlease enter the reason for your appointment: ", notBlank("reason"))
	if err != nil {
		return err
	}

	a.p.Title("Appointment Confirmation")
	a.p.Println("\nPlease review your appointment details:")
	a.p.Printf("Date: %s\nTime: %s\nDuration: %d minutes\n", v.Slot.Date, v.Slot.Time, v.Slot.Duration)
	a.p.Printf("Doctor: %s\nSpecialty: %s\n", v.Doctor.FullName, v.Doctor.Specialty)
	a.p.Printf("Clinic: %s\nAddress: %s\nReason: %s\n", v.Clinic.Name, v.Clinic.Location, reason)

	ok, err := a.p.Confirm("\nConfirm booking?")
	if err != nil {
		return err
	}
	if !ok {
		a.p.Println("\nBooking cancelled.")
		return a.p.Pause()
	}

	if _, err := a.appts.BookAppointment(ctx, email, v.Slot.ID, reason); err != nil {
		a.fail("Failed to book appointment", err)
		return a.p.Pause()
	}
	a.p.Println("\nAppointment booked successfully!")

	view, err := a.p.Confirm("\nWould you like to view your appointments?")
	if err != nil {
		return err
	}
	if view {
		return a.viewAppointments(ctx, email)
	}
	return nil
}

func (a *App) viewAppointments(ctx context.Context, email string) error {
	q := appointment.ViewQuery{}
	filterLabel := ""

	for {
		views, err := a.appts.PatientAppointments(ctx, email)
		if err != nil {
			a.fail("Could not load appointments", err)
			return a.p.Pause()
		}
		if len(views) == 0 {
			a.p.Println("You have no appointments.")
			return a.p.Pause()
		}

		now := a.appts.Now()
		current := appointment.FilterAppointments(views, q, now)

		a.p.Title("My Appointments")
		a.p.Printf("Viewing: %s\n", q.Mode)
		if q.Filtered() {
			a.p.Printf("Filter: %s\n", filterLabel)
		}
		a.p.Println()
		if len(current) == 0 {
			a.p.Println("No appointments found matching your criteria.")
		} else {
			rows := make([][]string, 0, len(current))
			for i, v := range current {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					v.Doctor.FullName,
					v.Appointment.Date,
					v.Appointment.Time,
					v.Suburb,
					v.Appointment.Status.Label(),
				})
			}
			a.p.Table([]string{"#", "GP Name", "Date", "Time", "Clinic Suburb", "Status"}, rows)
		}

		a.p.Println("\nOptions:")
		a.p.Println("1. View appointment details")
		a.p.Println("2. Cancel an appointment")
		a.p.Println("3. View upcoming appointments")
		a.p.Println("4. View past appointments")
		a.p.Println("5. Filter by date")
		a.p.Println("6. Filter by GP")
		a.p.Println("7. Filter by clinic suburb")
		a.p.Println("8. Clear filters")
		a.p.Println("0. Return to main menu")

		choice, err := a.p.Line("\nEnter your choice: ")
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			if len(current) == 0 {
				a.p.Println("\nNo appointments to view.")
				if err := a.p.Pause(); err != nil {
					return err
				}
				continue
			}
			i, err := a.p.Pick("\nEnter appointment number to view details (or 'c' to cancel): ", len(current))
			if errors.Is(err, ErrCancelled) {
				continue
			}
			if err != nil {
				return err
			}
			a.appointmentDetails(current[i], now)
			if err := a.p.Pause(); err != nil {
				return err
			}
		case "2":
			if err := a.patientCancel(ctx, email); err != nil {
				return err
			}
		case "3":
			q.Mode = appointment.ViewUpcoming
		case "4":
			q.Mode = appointment.ViewPast
		case "5":
			date, err := a.p.Validated("Enter date (YYYY-MM-DD): ", func(s string) error {
				if !validate.Date(s) {
					return errors.New("please enter a valid date (YYYY-MM-DD)")
				}
				return nil
			})
			if err != nil {
				return err
			}
			q = appointment.ViewQuery{Date: date}
			filterLabel = "Date: " + date
		case "6":
			gp, err := a.p.Line("Enter GP name (partial name is OK): ")
			if err != nil {
				return err
			}
			q = appointment.ViewQuery{GPName: gp}
			filterLabel = "GP: " + gp
		case "7":
			suburb, err := a.p.Line("Enter clinic suburb: ")
			if err != nil {
				return err
			}
			q = appointment.ViewQuery{Suburb: suburb}
			filterLabel = "Suburb: " + suburb
		case "8":
			q = appointment.ViewQuery{}
			filterLabel = ""
		case "0":
			return nil
		default:
			a.p.Println("Invalid choice.")
		}
	}
}

func (a *App) appointmentDetails(v appointment.AppointmentView, now time.Time) {
	a.p.Title("Appointment Details")
	a.p.Printf("\nDate: %s\nTime: %s\nDuration: %d minutes\n", v.Appointment.Date, v.Appointment.Time, v.Appointment.Duration)
	a.p.Printf("\nGP Information:\nName: %s\nSpecialty: %s\n", v.Doctor.FullName, v.Doctor.Specialty)
	a.p.Printf("\nClinic Information:\nName: %s\nAddress: %s\n", v.Clinic.Name, v.Clinic.Location)
	a.p.Printf("\nAppointment Information:\nReason: %s\nStatus: %s\n", v.Appointment.Reason, v.Appointment.Status.Label())

	switch {
	case v.StartsIn > 0:
		days := int(v.StartsIn / (24 * time.Hour))
		hours := int((v.StartsIn % (24 * time.Hour)) / time.Hour)
		a.p.Println("\nThis appointment is in the future.")
		a.p.Printf("Time until appointment: %d days and %d hours\n", days, hours)
	case v.Past(now):
		a.p.Println("\nThis appointment is in the past.")
	}
}

func (a *App) patientCancel(ctx context.Context, email string) error {
	actor := appointment.PatientActor(email)
	active, err := a.appts.CancellableAppointments(ctx, actor)
	if err != nil {
		a.fail("Could not load appointments", err)
		return a.p.Pause()
	}
	if len(active) == 0 {
		a.p.Println("\nYou have no upcoming confirmed appointments to cancel.")
		return a.p.Pause()
	}

	a.p.Title("Cancel Appointment")
	a.p.Println("\nYour upcoming appointments:")
	rows := make([][]string, 0, len(active))
	for i, v := range active {
		rows = append(rows, []string{strconv.Itoa(i + 1), v.Doctor.FullName, v.Appointment.Date, v.Appointment.Time, v.Suburb})
	}
	a.p.Table([]string{"#", "GP Name", "Date", "Time", "Clinic Suburb"}, rows)

	i, err := a.p.Pick("\nEnter the number of the appointment to cancel (or 'c' to cancel): ", len(active))
	if errors.Is(err, ErrCancelled) {
		return nil
	}
	if err != nil {
		return err
	}
	selected := active[i]

	terms, err := a.appts.PreviewCancellation(ctx, selected.Appointment.ID, actor)
	if err != nil {
		a.fail("Cannot cancel", err)
		return a.p.Pause()
	}

	a.p.Title("Cancel Appointment")
	a.p.Printf("\nDate: %s\nTime: %s\nDoctor: %s\nClinic: %s\n",
		selected.Appointment.Date, selected.Appointment.Time, selected.Doctor.FullName, selected.Clinic.Name)
	if terms.FreeCancellation {
		a.p.Printf("\nFree cancellation available (%s or more before the appointment)\n", formatWindow(a.window))
	} else {
		a.p.Printf("\nLate cancellation fee applies (less than %s notice)\n", formatWindow(a.window))
		a.p.Printf("Hours until appointment: %.1f hours\n", terms.Notice.Hours())
		a.p.Printf("A %s cancellation fee may be charged to your account.\n", formatCents(terms.FeeCents))
	}

	ok, err := a.p.Confirm("\nAre you sure you want to cancel this appointment?")
	if err != nil {
		return err
	}
	if !ok {
		a.p.Println("\nCancellation aborted.")
		return a.p.Pause()
	}

	res, err := a.appts.CancelAppointment(ctx, selected.Appointment.ID, actor)
	if err != nil {
		a.fail("Failed to cancel appointment", err)
		return a.p.Pause()
	}

	a.p.Title("Appointment Cancellation Confirmation")
	a.p.Println("\nYour appointment has been successfully cancelled.")
	if !res.FreeCancellation {
		a.p.Printf("\nNote: A late cancellation fee of %s may apply to your account.\n", formatCents(res.FeeCents))
		a.p.Println("Please contact the clinic for any billing inquiries.")
	}
	a.p.Printf("\nCancellation Details:\nDate: %s\nTime: %s\nDoctor: %s\nClinic: %s\n",
		selected.Appointment.Date, selected.Appointment.Time, selected.Doctor.FullName, selected.Clinic.Name)
	return a.p.Pause()
}

func (a *App) editProfile(ctx context.Context, email string) error {
	u, err := a.accounts.Profile(ctx, email)
	if err != nil {
		a.fail("Could not load profile", err)
		return a.p.Pause()
	}

	a.p.Title("Edit Profile")
	a.p.Printf("First Name: %s\nLast Name: %s\nMobile Number: %s\nAddress: %s\n", u.FirstName, u.LastName, u.Mobile, u.Address)
	a.p.Println("\nPress Enter to keep the current value.")

	var upd account.ProfileUpdate
	if upd.FirstName, err = a.p.Optional(fmt.Sprintf("First Name [%s]: ", u.FirstName), func(s string) error {
		return account.CheckName("first name", s)
	}); err != nil {
		return err
	}
	if upd.LastName, err = a.p.Optional(fmt.Sprintf("Last Name [%s]: ", u.LastName), func(s string) error {
		return account.CheckName("last name", s)
	}); err != nil {
		return err
	}
	if upd.Mobile, err = a.p.Optional(fmt.Sprintf("Mobile Number [%s]: ", u.Mobile), account.CheckProfileMobile); err != nil {
		return err
	}
	if upd.Address, err = a.p.Line(fmt.Sprintf("Address [%s]: ", u.Address)); err != nil {
		return err
	}

	if upd.Empty() {
		a.p.Println("No changes made.")
		return a.p.Pause()
	}
	ok, err := a.p.Confirm("\nSave these changes?")
	if err != nil {
		return err
	}
	if !ok {
		a.p.Println("\nChanges cancelled.")
		return a.p.Pause()
	}
	if _, err := a.accounts.UpdateProfile(ctx, email, upd); err != nil {
		a.fail("Failed to update profile", err)
		return a.p.Pause()
	}
	a.p.Println("\nProfile updated successfully!")
	return a.p.Pause()
}

func (a *App) viewNotifications(ctx context.Context, email string) error {
	notes, err := a.appts.Notifications(ctx, email)
	if err != nil {
		a.fail("Could not load notifications", err)
		return a.p.Pause()
	}
	if len(notes) == 0 {
		a.p.Println("\nYou have no notifications.")
		return a.p.Pause()
	}
	a.p.Title("Your Notifications")
	for _, n := range notes {
		marker := ""
		if !n.Read {
			marker = " (new)"
		}
		a.p.Printf("[%s] %s%s\n", n.Timestamp, n.Message, marker)
	}
	return a.p.Pause()
}
