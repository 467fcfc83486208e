package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/juju/errors"
	"golang.org/x/crypto/bcrypt"

	"canteen/internal/database"
	"canteen/internal/model"
)

type AuthService struct {
	db *database.DB
}

func NewAuthService(db *database.DB) *AuthService {
	return &AuthService{db: db}
}

// Authenticate looks the user up by email, then by roll number, and checks
// the password.
func (s *AuthService) Authenticate(ctx context.Context, req model.LoginRequest) (*model.User, error) {
	if req.Email == "" && req.RollNumber == "" {
		return nil, errors.NewBadRequest(nil, "Email or roll number required")
	}

	var rec *database.UserRecord
	_ = s.db.View(func(t *database.Tables) error {
		if req.Email != "" {
			rec = findUser(t, func(u *database.UserRecord) bool {
				return u.Email != nil && strings.EqualFold(*u.Email, req.Email)
			})
		}
		if rec == nil && req.RollNumber != "" {
			rec = findUser(t, func(u *database.UserRecord) bool {
				return u.RollNumber != nil && *u.RollNumber == req.RollNumber
			})
		}
		if rec != nil {
			copied := *rec
			rec = &copied
		}
		return nil
	})
	if rec == nil {
		return nil, errors.NewUnauthorized(nil, "Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(req.Password)); err != nil {
		return nil, errors.NewUnauthorized(nil, "Invalid credentials")
	}
	return &rec.User, nil
}

func findUser(t *database.Tables, match func(*database.UserRecord) bool) *database.UserRecord {
	for _, u := range t.Users {
		if match(u) {
			return u
		}
	}
	return nil
}

func (s *AuthService) User(ctx context.Context, id int64) (*model.User, error) {
	var out *model.User
	err := s.db.View(func(t *database.Tables) error {
		rec, ok := t.Users[id]
		if !ok {
			return errors.NewNotFound(nil, "User not found")
		}
		u := rec.User
		out = &u
		return nil
	})
	return out, err
}

func (s *AuthService) UpdateProfile(ctx context.Context, id int64, upd model.ProfileUpdate) (*model.User, error) {
	if err := upd.Validate(); err != nil {
		return nil, errors.NewNotValid(nil, err.Error())
	}
	var out *model.User
	err := s.db.Update(func(t *database.Tables) error {
		rec, ok := t.Users[id]
		if !ok {
			return errors.NewNotFound(nil, "User not found")
		}
		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			rec.Name = &name
		}
		if upd.PhoneNumber != nil {
			phone := *upd.PhoneNumber
			rec.PhoneNumber = &phone
		}
		if upd.HostelName != nil {
			hostel := *upd.HostelName
			rec.HostelName = &hostel
		}
		u := rec.User
		out = &u
		return nil
	})
	return out, err
}

func (s *AuthService) ChangePassword(ctx context.Context, id int64, req model.PasswordChange) error {
	if err := req.Validate(); err != nil {
		return errors.NewNotValid(nil, err.Error())
	}
	var current []byte
	err := s.db.View(func(t *database.Tables) error {
		rec, ok := t.Users[id]
		if !ok {
			return errors.NewNotFound(nil, "User not found")
		}
		current = rec.PasswordHash
		return nil
	})
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword(current, []byte(req.CurrentPassword)); err != nil {
		return errors.NewBadRequest(nil, "Current password is incorrect")
	}

	hash, err := s.db.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.db.Update(func(t *database.Tables) error {
		rec, ok := t.Users[id]
		if !ok {
			return errors.NewNotFound(nil, "User not found")
		}
		rec.PasswordHash = hash
		return nil
	})
}

// CampusAdminRegistration is the one-time setup request for the campus
// admin account.
type CampusAdminRegistration struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	SetupKey    string `json:"setup_key"`
}

// RegisterCampusAdmin creates the campus admin when none exists yet.
// setupKey is what the caller must present.
func (s *AuthService) RegisterCampusAdmin(ctx context.Context, req CampusAdminRegistration, setupKey string) (*model.User, error) {
	if req.SetupKey != setupKey {
		return nil, errors.NewForbidden(nil, "Invalid setup key")
	}
	if strings.TrimSpace(req.Email) == "" || len(req.Password) < 6 {
		return nil, errors.NewNotValid(nil, "email and a password of at least 6 characters are required")
	}
	hash, err := s.db.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var out *model.User
	err = s.db.Update(func(t *database.Tables) error {
		if findUser(t, func(u *database.UserRecord) bool { return u.Role == model.RoleCampusAdmin }) != nil {
			return errors.NewBadRequest(nil, "Campus admin already exists. Contact support to reset.")
		}
		if findUser(t, func(u *database.UserRecord) bool { return u.Email != nil && strings.EqualFold(*u.Email, req.Email) }) != nil {
			return errors.NewBadRequest(nil, "Email already registered")
		}
		email, name, phone := req.Email, req.Name, req.PhoneNumber
		rec := &database.UserRecord{
			User: model.User{
				ID:          t.NextID("users"),
				Role:        model.RoleCampusAdmin,
				Email:       &email,
				Name:        &name,
				PhoneNumber: &phone,
			},
			PasswordHash: hash,
		}
		t.Users[rec.ID] = rec
		u := rec.User
		out = &u
		return nil
	})
	return out, err
}
