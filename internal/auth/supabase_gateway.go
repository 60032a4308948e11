package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/farmhand/marketplace/internal/profile"
	"github.com/farmhand/marketplace/internal/supabase"
	"github.com/farmhand/marketplace/internal/validate"
)

// SupabaseGateway signs users in with Supabase Auth and keeps the
// profiles and role tables in step at sign-up.
type SupabaseGateway struct {
	client   *supabase.Client
	profiles profile.Store
	// tokens verifies access tokens locally when the project JWT secret
	// is known; otherwise every check is a round trip to /auth/v1/user.
	tokens *Tokens
	log    logrus.FieldLogger
}

func NewSupabaseGateway(client *supabase.Client, profiles profile.Store, jwtSecret string, log logrus.FieldLogger) *SupabaseGateway {
	g := &SupabaseGateway{client: client, profiles: profiles, log: log.WithField("component", "auth")}
	if jwtSecret != "" {
		g.tokens = NewTokens(jwtSecret, 0)
	}
	return g
}

func (g *SupabaseGateway) SignUp(ctx context.Context, req SignUpRequest) (*Result, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	sbUser, sbSession, err := g.client.Auth().SignUp(ctx, supabase.SignUpRequest{
		Email:    req.Email,
		Password: req.Password,
		Data: map[string]any{
			"full_name": req.FullName,
			"role":      string(req.Role),
		},
	})
	if err != nil {
		g.log.WithError(err).WithField("email", req.Email).Error("sign up")
		if supabase.IsConflict(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	res := &Result{User: userFromSupabase(sbUser), Session: sessionFromSupabase(sbSession)}
	if sbUser.ID == "" {
		return res, nil
	}

	// Row-level security lets a user write their own rows only.
	if res.Session != nil {
		ctx = supabase.WithAccessToken(ctx, res.Session.AccessToken)
	}
	if err := g.profiles.Upsert(ctx, newProfile(sbUser.ID, req)); err != nil {
		g.log.WithError(err).WithField("user_id", sbUser.ID).Error("profile creation")
	}
	if err := createRoleRecord(ctx, g.profiles, sbUser.ID, req.Role); err != nil {
		g.log.WithError(err).WithField("user_id", sbUser.ID).Error("role record creation")
	}
	return res, nil
}

func (g *SupabaseGateway) SignIn(ctx context.Context, req SignInRequest) (*Result, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	sbSession, err := g.client.Auth().SignInWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		g.log.WithError(err).WithField("email", req.Email).Error("sign in")
		var apiErr *supabase.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusUnauthorized) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Message)
		}
		return nil, err
	}
	return &Result{User: userFromSupabase(sbSession.User), Session: sessionFromSupabase(sbSession)}, nil
}

func (g *SupabaseGateway) SignOut(ctx context.Context, accessToken string) error {
	if err := g.client.Auth().SignOut(ctx, accessToken); err != nil {
		g.log.WithError(err).Error("sign out")
		return err
	}
	return nil
}

func (g *SupabaseGateway) CurrentUser(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, ErrUnauthenticated
	}
	if g.tokens != nil {
		return g.tokens.Verify(accessToken)
	}

	sbUser, err := g.client.Auth().GetUser(ctx, accessToken)
	if supabase.IsUnauthorized(err) {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if err != nil {
		return nil, err
	}
	return userFromSupabase(sbUser), nil
}

func userFromSupabase(u *supabase.User) *User {
	if u == nil {
		return nil
	}
	out := &User{ID: u.ID, Email: u.Email}
	if name, ok := u.UserMetadata["full_name"].(string); ok {
		out.FullName = name
	}
	if role, ok := u.UserMetadata["role"].(string); ok {
		out.Role = profile.Role(role)
	}
	return out
}

func sessionFromSupabase(s *supabase.Session) *Session {
	if s == nil || s.AccessToken == "" {
		return nil
	}
	exp := time.Unix(s.ExpiresAt, 0).UTC()
	if s.ExpiresAt == 0 {
		exp = time.Now().UTC().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return &Session{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		ExpiresAt:    exp,
		RefreshToken: s.RefreshToken,
	}
}
