package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"assetmgt/auth"
	"assetmgt/models"
	"assetmgt/store"
)

type RegisterInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Photo       string `json:"photo,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Role        string `json:"role"`
	CompanyName string `json:"companyName,omitempty"`
	CompanyLogo string `json:"companyLogo,omitempty"`
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Register creates an employee or HR account. HR accounts start on the basic
// package with no managed employees.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	user, err := e.register(ctx, in)
	observe("register", err)
	return user, err
}

func (e *Engine) register(ctx context.Context, in RegisterInput) (models.User, error) {
	email := NormalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return models.User{}, fmt.Errorf("email %q: %w", in.Email, ErrInvalidInput)
	}
	if strings.TrimSpace(in.Name) == "" {
		return models.User{}, fmt.Errorf("name is required: %w", ErrInvalidInput)
	}
	role, ok := auth.ParseRole(in.Role)
	if !ok {
		return models.User{}, fmt.Errorf("role %q: %w", in.Role, ErrInvalidInput)
	}

	user := models.User{
		Name:        strings.TrimSpace(in.Name),
		Email:       email,
		Photo:       in.Photo,
		DateOfBirth: in.DateOfBirth,
		Role:        role.String(),
		CreatedAt:   e.now(),
	}
	if role == auth.RoleHR {
		if strings.TrimSpace(in.CompanyName) == "" {
			return models.User{}, fmt.Errorf("companyName is required for hr: %w", ErrInvalidInput)
		}
		user.CompanyName = strings.TrimSpace(in.CompanyName)
		user.CompanyLogo = in.CompanyLogo
		user.Subscription = "basic"
		user.PackageLimit = e.defaultLimit
	}

	if err := e.store.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.User{}, fmt.Errorf("user %s already exists: %w", email, ErrConflict)
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	e.log.Infow("user registered", "email", email, "role", user.Role)
	return user, nil
}
