// Package auth signs users up and in, either against Supabase Auth or,
// in demo mode, against the in-process profile store.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/farmhand/marketplace/internal/profile"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrUnauthenticated    = errors.New("not signed in")
	ErrEmailTaken         = errors.New("email already registered")
)

type User struct {
	ID       string       `json:"id"`
	Email    string       `json:"email"`
	FullName string       `json:"full_name"`
	Role     profile.Role `json:"role"`
}

type Session struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token,omitempty"`
}

// Result is returned by sign-up and sign-in. Session is nil when Supabase
// holds the account until the email is confirmed.
type Result struct {
	User    *User    `json:"user"`
	Session *Session `json:"session"`
}

type SignUpRequest struct {
	Email    string       `json:"email" validate:"required,email"`
	Password string       `json:"password" validate:"required,min=6"`
	FullName string       `json:"full_name" validate:"required"`
	Role     profile.Role `json:"role" validate:"required,oneof=farmer labourer"`
	Phone    string       `json:"phone,omitempty"`
	Location string       `json:"location,omitempty"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Gateway is the identity service used by the HTTP layer.
type Gateway interface {
	SignUp(ctx context.Context, req SignUpRequest) (*Result, error)
	SignIn(ctx context.Context, req SignInRequest) (*Result, error)
	SignOut(ctx context.Context, accessToken string) error
	CurrentUser(ctx context.Context, accessToken string) (*User, error)
}

// newProfile is the profile row written at sign-up.
func newProfile(id string, req SignUpRequest) *profile.Profile {
	return &profile.Profile{
		ID:        id,
		Email:     req.Email,
		FullName:  req.FullName,
		Role:      req.Role,
		Phone:     req.Phone,
		Location:  req.Location,
		CreatedAt: time.Now().UTC(),
	}
}

// createRoleRecord writes the farmers or labourers row with its defaults.
func createRoleRecord(ctx context.Context, store profile.Store, id string, role profile.Role) error {
	if role == profile.RoleFarmer {
		return store.UpsertFarmer(ctx, profile.NewFarmer(id))
	}
	return store.UpsertLabourer(ctx, profile.NewLabourer(id))
}
