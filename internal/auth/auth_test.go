package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/farmhand/marketplace/internal/logging"
	"github.com/farmhand/marketplace/internal/profile"
	"github.com/farmhand/marketplace/internal/supabase"
	"github.com/farmhand/marketplace/internal/validate"
)

func init() {
	passwordCost = bcrypt.MinCost
}

func TestTokens_IssueAndVerify(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	session, err := tokens.Issue(&User{ID: "u1", Email: "a@b.c", FullName: "Asha", Role: profile.RoleLabourer})
	require.NoError(t, err)
	assert.Equal(t, "bearer", session.TokenType)

	u, err := tokens.Verify(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "Asha", u.FullName)
	assert.Equal(t, profile.RoleLabourer, u.Role)

	_, err = NewTokens("other", time.Hour).Verify(session.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = tokens.Verify("garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokens_Expired(t *testing.T) {
	tokens := NewTokens("secret", time.Minute)
	tokens.now = func() time.Time { return time.Now().Add(-time.Hour) }
	session, err := tokens.Issue(&User{ID: "u1"})
	require.NoError(t, err)

	tokens.now = time.Now
	_, err = tokens.Verify(session.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokens_RejectsUnsignedToken(t *testing.T) {
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokens("secret", time.Hour).Verify(unsigned)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func newMock() (*MockGateway, *profile.MemoryStore) {
	profiles := profile.NewMemoryStore()
	return NewMockGateway(profiles, NewTokens("demo", time.Hour), logging.Discard()), profiles
}

func TestMockGateway_SignUpCreatesProfileAndRoleRecord(t *testing.T) {
	g, profiles := newMock()
	ctx := context.Background()

	res, err := g.SignUp(ctx, SignUpRequest{Email: "ravi@farm.in", Password: "secret1", FullName: "Ravi", Role: profile.RoleFarmer})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.User.ID, "demo-"))
	require.NotNil(t, res.Session)

	p, err := profiles.Get(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ravi", p.FullName)

	f, err := profiles.Farmer(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Zero(t, f.TotalJobsPosted)

	u, err := g.CurrentUser(ctx, res.Session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, u.ID)
	assert.Equal(t, profile.RoleFarmer, u.Role)

	_, err = g.SignUp(ctx, SignUpRequest{Email: "RAVI@farm.in", Password: "secret1", FullName: "R", Role: profile.RoleFarmer})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestMockGateway_IDsAreUnique(t *testing.T) {
	g, _ := newMock()
	fixed := time.UnixMilli(1700000000000)
	g.now = func() time.Time { return fixed }

	a, err := g.SignUp(context.Background(), SignUpRequest{Email: "a@x.in", Password: "secret1", FullName: "A", Role: profile.RoleLabourer})
	require.NoError(t, err)
	b, err := g.SignUp(context.Background(), SignUpRequest{Email: "b@x.in", Password: "secret1", FullName: "B", Role: profile.RoleLabourer})
	require.NoError(t, err)

	assert.Equal(t, "demo-1700000000000", a.User.ID)
	assert.Equal(t, "demo-1700000000001", b.User.ID)
}

func TestMockGateway_SignIn(t *testing.T) {
	g, profiles := newMock()
	ctx := context.Background()
	_, err := g.SignUp(ctx, SignUpRequest{Email: "lab@x.in", Password: "secret1", FullName: "Mohan", Role: profile.RoleLabourer})
	require.NoError(t, err)

	res, err := g.SignIn(ctx, SignInRequest{Email: "lab@x.in", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "Mohan", res.User.FullName)
	assert.Equal(t, profile.RoleLabourer, res.User.Role)

	_, err = g.SignIn(ctx, SignInRequest{Email: "lab@x.in", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err = g.SignIn(ctx, SignInRequest{Email: "someone@else.in", Password: "anything"})
	require.NoError(t, err)
	assert.Equal(t, DemoUserID, res.User.ID)
	assert.Equal(t, DemoUserName, res.User.FullName)
	assert.Equal(t, profile.RoleFarmer, res.User.Role)
	_, err = profiles.Farmer(ctx, DemoUserID)
	assert.NoError(t, err)

	_, err = g.SignIn(ctx, SignInRequest{Email: "someone@else.in"})
	assert.True(t, validate.IsValidation(err))
}

func TestMockGateway_SignUpValidation(t *testing.T) {
	g, _ := newMock()
	tests := []struct {
		name string
		req  SignUpRequest
	}{
		{"missing name", SignUpRequest{Email: "a@b.c", Password: "secret1", Role: profile.RoleFarmer}},
		{"bad role", SignUpRequest{Email: "a@b.c", Password: "secret1", FullName: "A", Role: "admin"}},
		{"bad email", SignUpRequest{Email: "nope", Password: "secret1", FullName: "A", Role: profile.RoleFarmer}},
		{"short password", SignUpRequest{Email: "a@b.c", Password: "123", FullName: "A", Role: profile.RoleFarmer}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.SignUp(context.Background(), tt.req)
			assert.True(t, validate.IsValidation(err), "got %v", err)
		})
	}
}

func TestMockGateway_CurrentUserWithoutToken(t *testing.T) {
	g, _ := newMock()
	_, err := g.CurrentUser(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.NoError(t, g.SignOut(context.Background(), "whatever"))
}

func newSupabaseGateway(t *testing.T, jwtSecret string, handler http.HandlerFunc) (*SupabaseGateway, *profile.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := supabase.New(supabase.Config{ProjectURL: srv.URL, AnonKey: "anon"})
	require.NoError(t, err)
	profiles := profile.NewMemoryStore()
	return NewSupabaseGateway(client, profiles, jwtSecret, logging.Discard()), profiles
}

func TestSupabaseGateway_SignUpWritesProfile(t *testing.T) {
	g, profiles := newSupabaseGateway(t, "", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/v1/signup", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		data := body["data"].(map[string]any)
		assert.Equal(t, "labourer", data["role"])
		assert.Equal(t, "Mohan", data["full_name"])

		w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600,
			"user":{"id":"u-9","email":"m@x.in","user_metadata":{"full_name":"Mohan","role":"labourer"}}}`))
	})

	ctx := context.Background()
	res, err := g.SignUp(ctx, SignUpRequest{Email: "m@x.in", Password: "secret1", FullName: "Mohan", Role: profile.RoleLabourer, Location: "Guntur"})
	require.NoError(t, err)
	assert.Equal(t, "u-9", res.User.ID)
	require.NotNil(t, res.Session)
	assert.Equal(t, "tok", res.Session.AccessToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), res.Session.ExpiresAt, time.Minute)

	p, err := profiles.Get(ctx, "u-9")
	require.NoError(t, err)
	assert.Equal(t, "Guntur", p.Location)
	l, err := profiles.Labourer(ctx, "u-9")
	require.NoError(t, err)
	assert.True(t, l.Availability)
}

func TestSupabaseGateway_SignInErrors(t *testing.T) {
	g, _ := newSupabaseGateway(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}`))
	})

	_, err := g.SignIn(context.Background(), SignInRequest{Email: "a@b.c", Password: "x"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSupabaseGateway_CurrentUser(t *testing.T) {
	t.Run("remote lookup", func(t *testing.T) {
		g, _ := newSupabaseGateway(t, "", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer good" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"msg":"invalid JWT"}`))
				return
			}
			w.Write([]byte(`{"id":"u1","email":"a@b.c","user_metadata":{"role":"farmer","full_name":"Asha"}}`))
		})

		u, err := g.CurrentUser(context.Background(), "good")
		require.NoError(t, err)
		assert.Equal(t, profile.RoleFarmer, u.Role)

		_, err = g.CurrentUser(context.Background(), "bad")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("local verification", func(t *testing.T) {
		g, _ := newSupabaseGateway(t, "project-secret", func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("unexpected request to %s", r.URL.Path)
		})
		session, err := NewTokens("project-secret", time.Hour).Issue(&User{ID: "u2", Role: profile.RoleLabourer})
		require.NoError(t, err)

		u, err := g.CurrentUser(context.Background(), session.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "u2", u.ID)
	})
}
