package session

import (
	"errors"
	"sync"

	"schoolattend/internal/registry"
)

// Role names the three login paths.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// User is the authenticated principal for a session. It is transient
// and never persisted. QRCode is set only for student principals.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	QRCode string `json:"qrCode,omitempty"`
}

// ErrInvalidCredentials is returned for every failed login, without
// saying which part was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Config carries the injected credential placeholders. The fixed admin
// pair and the shared student secret come from configuration so a real
// deployment can swap in verified credential storage without touching
// the login flow.
type Config struct {
	AdminName     string
	AdminEmail    string
	AdminPassword string
	StudentSecret string
}

const minPasswordLen = 6

// Resolver decides whether a claimed role/email/secret triple may
// establish a principal. The admin password is a process-wide value
// held here; teacher passwords live in the registry.
type Resolver struct {
	reg *registry.Registry

	mu            sync.RWMutex
	adminName     string
	adminEmail    string
	adminPassword string
	studentSecret string
}

// NewResolver creates a resolver over the registry with the injected
// credential configuration.
func NewResolver(reg *registry.Registry, cfg Config) *Resolver {
	return &Resolver{
		reg:           reg,
		adminName:     cfg.AdminName,
		adminEmail:    cfg.AdminEmail,
		adminPassword: cfg.AdminPassword,
		studentSecret: cfg.StudentSecret,
	}
}

// Login authenticates a principal for the claimed role.
//
// Admin logins match the fixed credential pair. Teachers are looked up
// by email and checked against their stored password. Students are
// looked up by email and checked against the shared demo secret; a
// student principal carries the resolved QR code.
func (r *Resolver) Login(role Role, email, secret string) (User, error) {
	switch role {
	case RoleAdmin:
		r.mu.RLock()
		ok := email == r.adminEmail && secret == r.adminPassword
		name := r.adminName
		r.mu.RUnlock()
		if !ok {
			return User{}, ErrInvalidCredentials
		}
		return User{ID: "admin", Name: name, Email: email, Role: RoleAdmin}, nil

	case RoleTeacher:
		t, err := r.reg.TeacherByEmail(email)
		if err != nil || t.Password != secret {
			return User{}, ErrInvalidCredentials
		}
		return User{ID: t.ID, Name: t.Name, Email: t.Email, Role: RoleTeacher}, nil

	case RoleStudent:
		s, err := r.reg.StudentByEmail(email)
		if err != nil || secret != r.studentSecret {
			return User{}, ErrInvalidCredentials
		}
		return User{ID: s.ID, Name: s.Name, Email: s.Email, Role: RoleStudent, QRCode: s.QRCode}, nil
	}
	return User{}, ErrInvalidCredentials
}

func validateNewPassword(current, next string) error {
	if next == "" {
		return &registry.ValidationError{Field: "newPassword", Message: "new password is required"}
	}
	if len(next) < minPasswordLen {
		return &registry.ValidationError{Field: "newPassword", Message: "password must be at least 6 characters"}
	}
	if next == current {
		return &registry.ValidationError{Field: "newPassword", Message: "new password must be different from current password"}
	}
	return nil
}

// ChangeTeacherPassword updates a teacher's password after checking
// the current one. On success the default-password flag is cleared.
func (r *Resolver) ChangeTeacherPassword(teacherID, current, next string) error {
	t, err := r.reg.TeacherByID(teacherID)
	if err != nil {
		return err
	}
	if t.Password != current {
		return ErrInvalidCredentials
	}
	if err := validateNewPassword(t.Password, next); err != nil {
		return err
	}
	return r.reg.SetTeacherPassword(teacherID, next)
}

// ChangeAdminPassword updates the process-wide admin password after
// checking the current one. Where the new value is persisted is the
// host's concern.
func (r *Resolver) ChangeAdminPassword(current, next string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current != r.adminPassword {
		return ErrInvalidCredentials
	}
	if err := validateNewPassword(r.adminPassword, next); err != nil {
		return err
	}
	r.adminPassword = next
	return nil
}
