package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hackgods/gp-clinic-console/internal/admin"
	"github.com/hackgods/gp-clinic-console/internal/appointment"
	"github.com/hackgods/gp-clinic-console/internal/report"
	"github.com/hackgods/gp-clinic-console/internal/validate"
)

func (a *App) adminMenu(ctx context.Context) error {
	for {
		choice, err := a.p.MenuWithExit("Administrator Menu", []string{
			"Manage Clinics",
			"Manage GPs",
			"Manage GP Appointment Slots",
			"Generate Clinic Report",
			"Generate GP Report",
			"Cancel Appointment",
		}, "Logout")
		if err != nil {
			return err
		}

		switch choice {
		case 1:
			err = a.manageClinics(ctx)
		case 2:
			err = a.manageDoctors(ctx)
		case 3:
			err = a.manageSlots(ctx)
		case 4:
			err = a.generateReport(ctx, report.ByClinic)
		case 5:
			err = a.generateReport(ctx, report.ByDoctor)
		case 6:
			err = a.adminCancel(ctx)
		case 7:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (a *App) manageClinics(ctx context.Context) error {
	for {
		choice, err := a.p.Menu("Clinic Management", []string{
			"View All Clinics",
			"Add New Clinic",
			"Update Clinic",
			"Delete Clinic",
		})
		if err != nil {
			return err
		}
		switch choice {
		case 1:
			if _, err := a.listClinics(ctx); err != nil {
				return err
			}
			err = a.p.Pause()
		case 2:
			err = a.addClinic(ctx)
		case 3:
			err = a.updateClinic(ctx)
		case 4:
			err = a.deleteClinic(ctx)
		case 5:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// listClinics prints the clinic table and returns the number shown.
func (a *App) listClinics(ctx context.Context) (int, error) {
	clinics, err := a.admin.Clinics(ctx)
	if err != nil {
		a.fail("Could not load clinics", err)
		return 0, nil
	}
	if len(clinics) == 0 {
		a.p.Println("No clinics found.")
		return 0, nil
	}
	rows := make([][]string, 0, len(clinics))
	for _, c := range clinics {
		rows = append(rows, []string{c.ID, c.Name, c.Location, c.Services, c.OperatingHours})
	}
	a.p.Table([]string{"ID", "Name", "Location", "Services", "Hours"}, rows)
	return len(clinics), nil
}

func (a *App) addClinic(ctx context.Context) error {
	a.p.Title("Add New Clinic")
	var in admin.ClinicInput
	var err error
	if in.Name, err = a.p.Validated("Enter clinic name: ", notBlank("clinic name")); err != nil {
		return err
	}
	if in.Location, err = a.p.Validated("Enter clinic location: ", notBlank("location")); err != nil {
		return err
	}
	if in.Services, err = a.p.Line("Enter services offered (comma separated): "); err != nil {
		return err
	}
	if in.OperatingHours, err = a.p.Validated("Enter operating hours: ", notBlank("operating hours")); err != nil {
		return err
	}
	c, err := a.admin.AddClinic(ctx, in)
	if err != nil {
		a.fail("Failed to add clinic", err)
		return a.p.Pause()
	}
	a.p.Printf("\nClinic added successfully with ID %s!\n", c.ID)
	return a.p.Pause()
}

func (a *App) updateClinic(ctx context.Context) error {
	a.p.Title("Update Clinic")
	n, err := a.listClinics(ctx)
	if err != nil || n == 0 {
		return a.pauseOr(err)
	}
	id, err := a.p.Line("\nEnter the ID of the clinic to update (or 'c' to cancel): ")
	if err != nil || strings.EqualFold(id, "c") {
		return err
	}
	clinics, err := a.admin.Clinics(ctx)
	if err != nil {
		a.fail("Could not load clinics", err)
		return a.p.Pause()
	}
	var current *appointment.Clinic
	for i := range clinics {
		if clinics[i].ID == id {
			current = &clinics[i]
		}
	}
	if current == nil {
		a.p.Println("\nClinic not found.")
		return a.p.Pause()
	}

	a.p.Printf("\nUpdating clinic: %s\n", current.Name)
	var in admin.ClinicInput
	fields := []struct {
		label string
		value string
		dst   *string
	}{
		{"ID", current.ID, &in.ID},
		{"name", current.Name, &in.Name},
		{"location", current.Location, &in.Location},
		{"services", current.Services, &in.Services},
		{"operating hours", current.OperatingHours, &in.OperatingHours},
	}
	for _, f := range fields {
		v, err := a.p.Line(fmt.Sprintf("Enter new %s (current: %s) or press Enter to keep current: ", f.label, f.value))
		if err != nil {
			return err
		}
		*f.dst = v
	}

	change, err := a.admin.UpdateClinic(ctx, id, in)
	if err != nil {
		a.fail("Failed to update clinic", err)
		return a.p.Pause()
	}
	a.p.Println("\nClinic updated successfully!")
	if change.IDChanged() {
		a.p.Printf("  %d doctors, %d slots and %d appointments moved to clinic %s.\n",
			change.Doctors, change.Slots, change.Appointments, change.Clinic.ID)
	}
	return a.p.Pause()
}

func (a *App) deleteClinic(ctx context.Context) error {
	a.p.Title("Delete Clinic")
	n, err := a.listClinics(ctx)
	if err != nil || n == 0 {
		return a.pauseOr(err)
	}
	id, err := a.p.Line("\nEnter the ID of the clinic to delete (or 'c' to cancel): ")
	if err != nil || strings.EqualFold(id, "c") {
		return err
	}
	answer, err := a.p.Line(fmt.Sprintf("Are you sure you want to delete clinic %s? Type 'yes' to confirm: ", id))
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "yes") {
		a.p.Println("\nDeletion cancelled.")
		return a.p.Pause()
	}
	if err := a.admin.DeleteClinic(ctx, id); err != nil {
		a.fail("Cannot delete clinic", err)
		return a.p.Pause()
	}
	a.p.Println("\nClinic deleted successfully!")
	return a.p.Pause()
}

func (a *App) manageDoctors(ctx context.Context) error {
	for {
		choice, err := a.p.Menu("GP Management", []string{
			"View All GPs",
			"Add New GP",
			"Update GP",
			"Delete GP",
		})
		if err != nil {
			return err
		}
		switch choice {
		case 1:
			if _, err := a.listDoctors(ctx); err != nil {
				return err
			}
			err = a.p.Pause()
		case 2:
			err = a.addDoctor(ctx)
		case 3:
			err = a.updateDoctor(ctx)
		case 4:
			err = a.deleteDoctor(ctx)
		case 5:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (a *App) listDoctors(ctx context.Context) (int, error) {
	dir, err := a.appts.Repository().Directory(ctx)
	if err != nil {
		a.fail("Could not load GPs", err)
		return 0, nil
	}
	doctors := dir.Doctors.All()
	if len(doctors) == 0 {
		a.p.Println("No GPs found.")
		return 0, nil
	}
	rows := make([][]string, 0, len(doctors))
	for _, d := range doctors {
		rows = append(rows, []string{d.ID, d.FullName, d.Email, dir.Clinic(d.ClinicID).Name, d.Specialty, d.Availability})
	}
	a.p.Table([]string{"ID", "Name", "Email", "Clinic", "Specialty", "Availability"}, rows)
	return len(doctors), nil
}

func (a *App) doctorFields(ctx context.Context, current *appointment.Doctor) (admin.DoctorInput, error) {
	var in admin.DoctorInput
	var err error
	keep := current != nil
	prompt := func(label, value string) string {
		if keep {
			return fmt.Sprintf("Enter new %s (current: %s) or press Enter to keep current: ", label, value)
		}
		return fmt.Sprintf("Enter %s: ", label)
	}
	ask := func(label, value string, check func(string) error) (string, error) {
		if keep {
			return a.p.Optional(prompt(label, value), check)
		}
		return a.p.Validated(prompt(label, value), check)
	}
	cur := appointment.Doctor{}
	if current != nil {
		cur = *current
	}

	if in.FullName, err = ask("full name (with title, e.g. Dr. John Smith)", cur.FullName, func(s string) error {
		if !strings.HasPrefix(s, "Dr.") {
			return errors.New("name must start with 'Dr.' and cannot be empty")
		}
		return nil
	}); err != nil {
		return in, err
	}
	if in.Email, err = ask("email", cur.Email, func(s string) error {
		if !validate.Email(s) {
			return errors.New("please enter a valid email address")
		}
		return nil
	}); err != nil {
		return in, err
	}

	a.p.Println("\nAvailable Clinics:")
	if _, err := a.listClinics(ctx); err != nil {
		return in, err
	}
	if in.ClinicID, err = ask("clinic ID", cur.ClinicID, notBlank("clinic ID")); err != nil {
		return in, err
	}
	if in.Specialty, err = ask("specialty", cur.Specialty, notBlank("specialty")); err != nil {
		return in, err
	}
	if in.Availability, err = ask("availability (e.g. Mon,Tue,Wed: 9am-5pm)", cur.Availability, notBlank("availability")); err != nil {
		return in, err
	}
	return in, nil
}

func (a *App) addDoctor(ctx context.Context) error {
	a.p.Title("Add New GP")
	in, err := a.doctorFields(ctx, nil)
	if err != nil {
		return err
	}
	d, err := a.admin.AddDoctor(ctx, in)
	if err != nil {
		a.fail("Failed to add GP", err)
		return a.p.Pause()
	}
	a.p.Printf("\nGP added successfully with ID %s!\n", d.ID)
	return a.p.Pause()
}

func (a *App) updateDoctor(ctx context.Context) error {
	a.p.Title("Update GP")
	n, err := a.listDoctors(ctx)
	if err != nil || n == 0 {
		return a.pauseOr(err)
	}
	id, err := a.p.Line("\nEnter the ID of the GP to update (or 'c' to cancel): ")
	if err != nil || strings.EqualFold(id, "c") {
		return err
	}
	doctors, err := a.admin.Doctors(ctx)
	if err != nil {
		a.fail("Could not load GPs", err)
		return a.p.Pause()
	}
	var current *appointment.Doctor
	for i := range doctors {
		if doctors[i].ID == id {
			current = &doctors[i]
		}
	}
	if current == nil {
		a.p.Println("\nGP not found.")
		return a.p.Pause()
	}

	a.p.Printf("\nUpdating GP: %s\n", current.FullName)
	in, err := a.doctorFields(ctx, current)
	if err != nil {
		return err
	}
	change, err := a.admin.UpdateDoctor(ctx, id, in)
	if err != nil {
		a.fail("Failed to update GP", err)
		return a.p.Pause()
	}
	a.p.Println("\nGP updated successfully!")
	if change.Slots+change.Appointments > 0 {
		a.p.Printf("  %d slots and %d appointments moved to clinic %s.\n", change.Slots, change.Appointments, change.Doctor.ClinicID)
	}
	return a.p.Pause()
}

func (a *App) deleteDoctor(ctx context.Context) error {
	a.p.Title("Delete GP")
	n, err := a.listDoctors(ctx)
	if err != nil || n == 0 {
		return a.pauseOr(err)
	}
	id, err := a.p.Line("\nEnter the ID of the GP to delete (or 'c' to cancel): ")
	if err != nil || strings.EqualFold(id, "c") {
		return err
	}
	answer, err := a.p.Line(fmt.Sprintf("Are you sure you want to delete GP %s? Type 'yes' to confirm: ", id))
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "yes") {
		a.p.Println("\nDeletion cancelled.")
		return a.p.Pause()
	}
	if err := a.admin.DeleteDoctor(ctx, id); err != nil {
		a.fail("Failed to delete GP", err)
		return a.p.Pause()
	}
	a.p.Println("\nGP deleted successfully!")
	return a.p.Pause()
}

func (a *App) adminCancel(ctx context.Context) error {
	a.p.Title("Admin: Cancel Appointment")
	upcoming, err := a.admin.UpcomingAppointments(ctx)
	if err != nil {
		a.fail("Could not load appointments", err)
		return a.p.Pause()
	}
	if len(upcoming) == 0 {
		a.p.Println("No upcoming confirmed appointments to cancel.")
		return a.p.Pause()
	}
	rows := make([][]string, 0, len(upcoming))
	for i, v := range upcoming {
		rows = append(rows, []string{strconv.Itoa(i + 1), v.Appointment.PatientEmail, v.Doctor.FullName, v.Appointment.Date, v.Appointment.Time, v.Clinic.Name})
	}
	a.p.Table([]string{"#", "Patient", "GP", "Date", "Time", "Clinic"}, rows)

	i, err := a.p.Pick("\nEnter number to cancel (or 'c' to abort): ", len(upcoming))
	if errors.Is(err, ErrCancelled) {
		return nil
	}
	if err != nil {
		return err
	}
	ok, err := a.p.Confirm("Confirm cancel this appointment?")
	if err != nil {
		return err
	}
	if !ok {
		a.p.Println("Cancellation aborted.")
		return a.p.Pause()
	}

	selected := upcoming[i]
	if _, err := a.admin.CancelAppointment(ctx, selected.Appointment.ID); err != nil {
		a.fail("Failed to cancel appointment", err)
		return a.p.Pause()
	}
	a.p.Printf("\nNotification sent to patient %s\n", selected.Appointment.PatientEmail)
	a.p.Printf("\nCancellation Details:\nGP     : %s\nDate   : %s\nTime   : %s\nClinic : %s\n",
		selected.Doctor.FullName, selected.Appointment.Date, selected.Appointment.Time, selected.Clinic.Name)
	return a.p.Pause()
}

func (a *App) generateReport(ctx context.Context, kind report.Kind) error {
	title := "Clinic Report"
	if kind == report.ByDoctor {
		title = "GP Report"
	}
	a.p.Title(title)

	var rng report.Range
	for {
		a.p.Println("\nEnter date range for the report (YYYY-MM-DD). Leave blank for no limit.")
		a.p.Println("Type 'back' to return to the main menu.")
		start, err := a.p.Line("Start date: ")
		if err != nil || strings.EqualFold(start, "back") {
			return err
		}
		end, err := a.p.Line("End date: ")
		if err != nil || strings.EqualFold(end, "back") {
			return err
		}
		rng, err = report.ParseRange(start, end, a.reports.Location())
		if err == nil {
			break
		}
		a.p.Println("Invalid date range. Please try again.")
	}

	rep, err := a.reports.Build(ctx, kind, rng)
	if err != nil {
		a.fail("Could not build report", err)
		return a.p.Pause()
	}

	groupLabel, subLabel := "Clinic", "GP"
	if kind == report.ByDoctor {
		groupLabel, subLabel = "GP", "Clinic"
	}
	if len(rep.Groups) == 0 {
		a.p.Println("\nNo appointments in this range.")
	}
	for _, g := range rep.Groups {
		a.p.Printf("\n%s: %s  (Total patients: %d)\n", groupLabel, g.Name, g.Total)
		a.p.Printf(" * Appointments per %s:\n", subLabel)
		for _, s := range g.Sub {
			a.p.Printf("    - %s: %d\n", s.Name, s.Count)
		}
		a.p.Println(" * Breakdown by type:")
		for _, r := range g.Reasons {
			a.p.Printf("    - %s: %d\n", r.Name, r.Count)
		}
	}
	if rep.Skipped > 0 {
		a.p.Printf("\n%d appointments with unreadable dates were left out.\n", rep.Skipped)
	}

	choice, err := a.p.Line("\nExport report? (1) CSV  (2) Text  (Enter to skip): ")
	if err != nil {
		return err
	}
	var format report.Format
	switch choice {
	case "1":
		format = report.FormatCSV
	case "2":
		format = report.FormatText
	default:
		return a.p.Pause()
	}
	path, err := report.Export(a.reportDir, rep, format)
	if err != nil {
		a.fail("Export failed", err)
		return a.p.Pause()
	}
	a.p.Printf("\nReport exported to %s\n", path)
	return a.p.Pause()
}

// pauseOr returns err if set, otherwise waits for Enter.
func (a *App) pauseOr(err error) error {
	if err != nil {
		return err
	}
	return a.p.Pause()
}
