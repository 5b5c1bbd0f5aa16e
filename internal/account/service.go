// Package account handles registration, login, password reset and profile
// edits for users stored in users.csv.
package account

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hackgods/gp-clinic-console/internal/appointment"
	"github.com/hackgods/gp-clinic-console/internal/validate"
	"github.com/hackgods/gp-clinic-console/pkg/logging"
)

// LoginTimestampLayout is the timestamp format of login_logs.csv.
const LoginTimestampLayout = "2006-01-02 15:04:05"

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrNoChanges          = errors.New("no changes made")
)

type Service struct {
	repo    *appointment.Repository
	domains []string
	logger  *logging.Logger
	now     func() time.Time
	ip      func() string
}

func NewService(repo *appointment.Repository, allowedDomains []string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		domains: allowedDomains,
		logger:  logger,
		now:     time.Now,
		ip:      hostIP,
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// AllowedDomains returns the email domains accepted at registration.
func (s *Service) AllowedDomains() []string {
	return append([]string(nil), s.domains...)
}

// Registration is the input of Register. Gender and Address are optional.
type Registration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	DOB       string
	Gender    string
	Mobile    string
	Address   string
}

// Field checks, exported so the console can validate each prompt as it is
// answered.

func (s *Service) CheckEmail(email string) error {
	if !validate.EmailInDomains(email, s.domains) {
		return validate.Invalid("email", "must be a valid address at %s", strings.Join(s.domains, " or "))
	}
	return nil
}

func CheckPassword(pw string) error {
	if !validate.Password(pw) {
		return validate.Invalid("password", "needs at least 8 characters, an upper case letter and a number")
	}
	return nil
}

func (s *Service) CheckDOB(dob string) error {
	if !validate.DOB(dob, s.now()) {
		return validate.Invalid("dob", "use dd/mm/yyyy and make sure it is not a future date")
	}
	return nil
}

func CheckRegistrationMobile(m string) error {
	if !validate.Mobile(m, "04") {
		return validate.Invalid("mobile", "must start with 04 and be 10 digits")
	}
	return nil
}

func CheckProfileMobile(m string) error {
	if !validate.Mobile(m, "04", "05") {
		return validate.Invalid("mobile", "must be a 10 digit number starting with 04 or 05")
	}
	return nil
}

func CheckName(field, name string) error {
	if !validate.Name(name) {
		return validate.Invalid(field, "letters only")
	}
	return nil
}

// IsRegistered reports whether email already has an account.
func (s *Service) IsRegistered(ctx context.Context, email string) (bool, error) {
	users, err := s.repo.Users(ctx)
	if err != nil {
		return false, err
	}
	_, ok := users.Get(email)
	return ok, nil
}

// Register creates a patient account.
func (s *Service) Register(ctx context.Context, r Registration) (*appointment.User, error) {
	return appointment.MutateResult(ctx, s.repo, func(ctx context.Context) (*appointment.User, error) {
		r.Email = strings.TrimSpace(r.Email)
		if err := s.CheckEmail(r.Email); err != nil {
			return nil, err
		}
		if err := CheckPassword(r.Password); err != nil {
			return nil, err
		}
		if !validate.NotBlank(r.FirstName) {
			return nil, validate.Invalid("first_name", "cannot be empty")
		}
		if !validate.NotBlank(r.LastName) {
			return nil, validate.Invalid("last_name", "cannot be empty")
		}
		if err := s.CheckDOB(r.DOB); err != nil {
			return nil, err
		}
		if err := CheckRegistrationMobile(r.Mobile); err != nil {
			return nil, err
		}

		users, err := s.repo.Users(ctx)
		if err != nil {
			return nil, err
		}
		u := appointment.User{
			Email:     r.Email,
			Password:  r.Password,
			Role:      appointment.RolePatient,
			FirstName: strings.TrimSpace(r.FirstName),
			LastName:  strings.TrimSpace(r.LastName),
			DOB:       r.DOB,
			Gender:    strings.TrimSpace(r.Gender),
			Mobile:    r.Mobile,
			Address:   strings.TrimSpace(r.Address),
		}
		if err := users.Insert(u); err != nil {
			if errors.Is(err, appointment.ErrDuplicateKey) {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateEmail, r.Email)
			}
			return nil, err
		}
		if err := s.repo.Commit(ctx, users); err != nil {
			return nil, fmt.Errorf("save user: %w", err)
		}
		s.logger.Info("patient registered", "email", u.Email)
		return &u, nil
	})
}

// Login matches the email case-insensitively and the password exactly. A
// successful login is appended to the login log.
func (s *Service) Login(ctx context.Context, email, password string) (*appointment.User, error) {
	return appointment.MutateResult(ctx, s.repo, func(ctx context.Context) (*appointment.User, error) {
		users, err := s.repo.Users(ctx)
		if err != nil {
			return nil, err
		}
		u, ok := users.Get(email)
		if !ok || u.Password != password {
			s.logger.Warn("login failed", "email", email)
			return nil, ErrInvalidCredentials
		}

		events, err := s.repo.LoginEvents(ctx)
		if err != nil {
			return nil, err
		}
		events.Put(appointment.LoginEvent{
			Email:     strings.TrimSpace(email),
			Timestamp: s.now().Format(LoginTimestampLayout),
			IPAddress: s.ip(),
		})
		if err := s.repo.Commit(ctx, events); err != nil {
			// The user is still authenticated; only the audit line is lost.
			s.logger.Error("write login log", "error", err, "email", u.Email)
		}
		s.logger.Info("login", "email", u.Email, "role", string(u.Role))
		return &u, nil
	})
}

// ResetPassword sets a new password for a registered email.
func (s *Service) ResetPassword(ctx context.Context, email, password string) error {
	return s.repo.Mutate(ctx, func(ctx context.Context) error {
		if err := CheckPassword(password); err != nil {
			return err
		}
		users, err := s.repo.Users(ctx)
		if err != nil {
			return err
		}
		u, ok := users.Get(email)
		if !ok {
			return fmt.Errorf("%w: %s", appointment.ErrUserNotFound, email)
		}
		u.Password = password
		users.Put(u)
		if err := s.repo.Commit(ctx, users); err != nil {
			return fmt.Errorf("save password: %w", err)
		}
		s.logger.Info("password reset", "email", u.Email)
		return nil
	})
}

// Profile returns the stored user for email.
func (s *Service) Profile(ctx context.Context, email string) (*appointment.User, error) {
	users, err := s.repo.Users(ctx)
	if err != nil {
		return nil, err
	}
	u, ok := users.Get(email)
	if !ok {
		return nil, fmt.Errorf("%w: %s", appointment.ErrUserNotFound, email)
	}
	return &u, nil
}

// ProfileUpdate carries editable profile fields. Blank keeps the current value.
type ProfileUpdate struct {
	FirstName string
	LastName  string
	Mobile    string
	Address   string
}

func (p ProfileUpdate) Empty() bool {
	return p.FirstName == "" && p.LastName == "" && p.Mobile == "" && p.Address == ""
}

func (s *Service) UpdateProfile(ctx context.Context, email string, p ProfileUpdate) (*appointment.User, error) {
	return appointment.MutateResult(ctx, s.repo, func(ctx context.Context) (*appointment.User, error) {
		p = ProfileUpdate{
			FirstName: strings.TrimSpace(p.FirstName),
			LastName:  strings.TrimSpace(p.LastName),
			Mobile:    strings.TrimSpace(p.Mobile),
			Address:   strings.TrimSpace(p.Address),
		}
		if p.Empty() {
			return nil, ErrNoChanges
		}
		if p.FirstName != "" {
			if err := CheckName("first_name", p.FirstName); err != nil {
				return nil, err
			}
		}
		if p.LastName != "" {
			if err := CheckName("last_name", p.LastName); err != nil {
				return nil, err
			}
		}
		if p.Mobile != "" {
			if err := CheckProfileMobile(p.Mobile); err != nil {
				return nil, err
			}
		}

		users, err := s.repo.Users(ctx)
		if err != nil {
			return nil, err
		}
		u, ok := users.Get(email)
		if !ok {
			return nil, fmt.Errorf("%w: %s", appointment.ErrUserNotFound, email)
		}
		if p.FirstName != "" {
			u.FirstName = p.FirstName
		}
		if p.LastName != "" {
			u.LastName = p.LastName
		}
		if p.Mobile != "" {
			u.Mobile = p.Mobile
		}
		if p.Address != "" {
			u.Address = p.Address
		}
		users.Put(u)
		if err := s.repo.Commit(ctx, users); err != nil {
			return nil, fmt.Errorf("save profile: %w", err)
		}
		s.logger.Info("profile updated", "email", u.Email)
		return &u, nil
	})
}

// hostIP resolves the local host name to an IPv4 address, or "unknown".
func hostIP() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	addrs, err := net.LookupIP(host)
	if err != nil {
		return "unknown"
	}
	for _, a := range addrs {
		if v4 := a.To4(); v4 != nil {
			return v4.String()
		}
	}
	return "unknown"
}
