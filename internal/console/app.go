package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hackgods/gp-clinic-console/internal/account"
	"github.com/hackgods/gp-clinic-console/internal/admin"
	"github.com/hackgods/gp-clinic-console/internal/appointment"
	"github.com/hackgods/gp-clinic-console/internal/report"
	"github.com/hackgods/gp-clinic-console/internal/validate"
	"github.com/hackgods/gp-clinic-console/pkg/logging"
)

const loginAttempts = 3

// App wires the menus to the services.
type App struct {
	p         *Prompter
	accounts  *account.Service
	appts     *appointment.Service
	admin     *admin.Service
	reports   *report.Generator
	reportDir string
	feeCents  int
	window    time.Duration
	logger    *logging.Logger
}

type Deps struct {
	Accounts     *account.Service
	Appointments *appointment.Service
	Admin        *admin.Service
	Reports      *report.Generator
	ReportDir    string
	FeeCents     int
	FreeWindow   time.Duration // free cancellation notice, 24h when zero
	Logger       *logging.Logger
}

func New(in io.Reader, out io.Writer, d Deps) *App {
	logger := d.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	window := d.FreeWindow
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &App{
		p:         NewPrompter(in, out),
		accounts:  d.Accounts,
		appts:     d.Appointments,
		admin:     d.Admin,
		reports:   d.Reports,
		reportDir: d.ReportDir,
		feeCents:  d.FeeCents,
		window:    window,
		logger:    logger,
	}
}

// Run shows the main menu until the user exits or input ends.
func (a *App) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		choice, err := a.p.MenuWithExit("GP Clinic Management System", []string{
			"Login",
			"Register (Patient only)",
			"Reset Password",
		}, "Exit")
		if err != nil {
			return quiet(err)
		}

		switch choice {
		case 1:
			err = a.login(ctx)
		case 2:
			err = a.register(ctx)
		case 3:
			err = a.resetPassword(ctx)
		case 4:
			a.p.Println("\nThank you for using the GP Clinic Management System.")
			return nil
		}
		if err != nil {
			return quiet(err)
		}
	}
}

// quiet treats end of input as a normal exit.
func quiet(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (a *App) login(ctx context.Context) error {
	a.p.Title("Login")
	for attempt := 0; attempt < loginAttempts; attempt++ {
		email, err := a.p.Line("Email: ")
		if err != nil {
			return err
		}
		password, err := a.p.Line("Password: ")
		if err != nil {
			return err
		}

		user, err := a.accounts.Login(ctx, email, password)
		if errors.Is(err, account.ErrInvalidCredentials) {
			a.p.Println("Incorrect email or password.")
			continue
		}
		if err != nil {
			a.fail("Login failed", err)
			return a.p.Pause()
		}

		a.p.Printf("\nLogin successful! Welcome, %s!\n", user.Role)
		switch user.Role {
		case appointment.RoleAdmin:
			return a.adminMenu(ctx)
		case appointment.RolePatient:
			return a.patientMenu(ctx, user.Email)
		case appointment.RoleDoctor:
			a.p.Println("\nDoctor interface is currently under development.")
			return a.p.Pause()
		}
		return nil
	}
	a.p.Println("Too many failed attempts. Returning to main menu.")
	return a.p.Pause()
}

func (a *App) register(ctx context.Context) error {
	a.p.Title("Patient Registration")

	var r account.Registration
	var err error

	domains := strings.Join(a.accounts.AllowedDomains(), " or @")
	if r.Email, err = a.p.Validated(fmt.Sprintf("Enter email (@%s): ", domains), a.accounts.CheckEmail); err != nil {
		return err
	}
	registered, err := a.accounts.IsRegistered(ctx, r.Email)
	if err != nil {
		a.fail("Could not read users", err)
		return a.p.Pause()
	}
	if registered {
		a.p.Println("\nEmail already registered.")
		return a.p.Pause()
	}
	if r.Password, err = a.p.Validated("Enter password (8+ chars, 1 uppercase, 1 number): ", account.CheckPassword); err != nil {
		return err
	}
	if r.FirstName, err = a.p.Validated("Enter first name: ", notBlank("first name")); err != nil {
		return err
	}
	if r.LastName, err = a.p.Validated("Enter last name: ", notBlank("last name")); err != nil {
		return err
	}
	if r.DOB, err = a.p.Validated("Enter date of birth (dd/mm/yyyy): ", a.accounts.CheckDOB); err != nil {
		return err
	}
	if r.Gender, err = a.p.Line("Enter gender (optional): "); err != nil {
		return err
	}
	if r.Mobile, err = a.p.Validated("Enter Australian mobile number (starts with 04, 10 digits): ", account.CheckRegistrationMobile); err != nil {
		return err
	}
	if r.Address, err = a.p.Line("Enter address (optional): "); err != nil {
		return err
	}

	if _, err := a.accounts.Register(ctx, r); err != nil {
		a.fail("Registration failed", err)
		return a.p.Pause()
	}
	a.p.Println("\nRegistration successful! Please return to the main menu to log in.")
	return a.p.Pause()
}

func (a *App) resetPassword(ctx context.Context) error {
	a.p.Title("Password Reset")
	email, err := a.p.Validated("Enter registered email: ", func(s string) error {
		if !validate.Email(s) {
			return errors.New("invalid email, please try again")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if _, err := a.accounts.Profile(ctx, email); err != nil {
		a.fail("Password reset failed", err)
		return a.p.Pause()
	}
	pw, err := a.p.Validated("Enter new password (8+ chars, 1 uppercase, 1 number): ", account.CheckPassword)
	if err != nil {
		return err
	}
	if err := a.accounts.ResetPassword(ctx, email, pw); err != nil {
		a.fail("Password reset failed", err)
		return a.p.Pause()
	}
	a.p.Println("\nPassword reset successful!")
	return a.p.Pause()
}

// fail prints a user-facing message for err and logs it.
func (a *App) fail(action string, err error) {
	a.logger.Error(action, "error", err)
	a.p.Printf("\n%s: %s\n", action, describe(err))
}

func describe(err error) string {
	var ve *validate.ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, appointment.ErrUserNotFound):
		return "email not found"
	case errors.Is(err, appointment.ErrSlotNotAvailable), errors.Is(err, appointment.ErrSlotAlreadyBooked):
		return "that slot has just been booked by someone else"
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		return "that slot is being booked right now, please try again"
	case errors.Is(err, appointment.ErrNotCancellable):
		return "only upcoming confirmed appointments can be cancelled"
	case errors.Is(err, admin.ErrClinicInUse):
		return "there are doctors assigned to this clinic, reassign or delete them first"
	case errors.Is(err, admin.ErrDuplicateEmail), errors.Is(err, account.ErrDuplicateEmail):
		return "this email is already in use"
	}
	return err.Error()
}

func notBlank(field string) func(string) error {
	return func(s string) error {
		if !validate.NotBlank(s) {
			return fmt.Errorf("%s cannot be empty", field)
		}
		return nil
	}
}

func formatCents(c int) string {
	return fmt.Sprintf("$%d.%02d", c/100, c%100)
}

// formatWindow renders a notice period the way the policy text reads it.
func formatWindow(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d == time.Minute:
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", int(d.Round(time.Minute)/time.Minute))
}
