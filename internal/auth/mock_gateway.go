package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/farmhand/marketplace/internal/profile"
	"github.com/farmhand/marketplace/internal/validate"
)

const (
	DemoUserID   = "demo-user"
	DemoUserName = "Demo User"
)

var passwordCost = bcrypt.DefaultCost

type account struct {
	userID string
	hash   []byte
}

// MockGateway is the demo-mode identity service. Accounts live in memory,
// profiles in the configured profile store, and sessions are tokens signed
// with the demo secret.
type MockGateway struct {
	mu       sync.Mutex
	accounts map[string]account // by lower-cased email
	ids      map[string]bool

	profiles profile.Store
	tokens   *Tokens
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewMockGateway(profiles profile.Store, tokens *Tokens, log logrus.FieldLogger) *MockGateway {
	return &MockGateway{
		accounts: make(map[string]account),
		ids:      make(map[string]bool),
		profiles: profiles,
		tokens:   tokens,
		log:      log.WithField("component", "auth"),
		now:      time.Now,
	}
}

// nextID returns demo-<unix millis>, bumped until unused.
func (g *MockGateway) nextID() string {
	ms := g.now().UnixMilli()
	for {
		id := fmt.Sprintf("demo-%d", ms)
		if !g.ids[id] {
			g.ids[id] = true
			return id
		}
		ms++
	}
}

func (g *MockGateway) SignUp(ctx context.Context, req SignUpRequest) (*Result, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), passwordCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	key := strings.ToLower(req.Email)
	g.mu.Lock()
	if _, ok := g.accounts[key]; ok {
		g.mu.Unlock()
		return nil, ErrEmailTaken
	}
	id := g.nextID()
	g.accounts[key] = account{userID: id, hash: hash}
	g.mu.Unlock()

	if err := g.profiles.Upsert(ctx, newProfile(id, req)); err != nil {
		g.log.WithError(err).WithField("user_id", id).Error("profile creation")
	}
	if err := createRoleRecord(ctx, g.profiles, id, req.Role); err != nil {
		g.log.WithError(err).WithField("user_id", id).Error("role record creation")
	}

	user := &User{ID: id, Email: req.Email, FullName: req.FullName, Role: req.Role}
	session, err := g.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	g.log.WithFields(logrus.Fields{"user_id": id, "role": req.Role}).Info("demo account created")
	return &Result{User: user, Session: session}, nil
}

// SignIn checks the password of a registered demo account. Any other email
// signs in as the shared demo farmer.
func (g *MockGateway) SignIn(ctx context.Context, req SignInRequest) (*Result, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	g.mu.Lock()
	acct, ok := g.accounts[strings.ToLower(req.Email)]
	g.mu.Unlock()

	var user *User
	if ok {
		if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(req.Password)); err != nil {
			return nil, ErrInvalidCredentials
		}
		user = &User{ID: acct.userID, Email: req.Email}
		if p, err := g.profiles.Get(ctx, acct.userID); err == nil {
			user.FullName = p.FullName
			user.Role = p.Role
		}
	} else {
		user = &User{ID: DemoUserID, Email: req.Email, FullName: DemoUserName, Role: profile.RoleFarmer}
		g.ensureDemoUser(ctx, user)
	}

	session, err := g.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Result{User: user, Session: session}, nil
}

// ensureDemoUser gives the shared demo account a profile so listings and
// the dashboard can resolve it.
func (g *MockGateway) ensureDemoUser(ctx context.Context, u *User) {
	if _, err := g.profiles.Get(ctx, u.ID); err == nil {
		return
	}
	p := &profile.Profile{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role, CreatedAt: g.now().UTC()}
	if err := g.profiles.Upsert(ctx, p); err != nil {
		g.log.WithError(err).Warn("demo profile")
		return
	}
	if err := createRoleRecord(ctx, g.profiles, u.ID, u.Role); err != nil {
		g.log.WithError(err).Warn("demo role record")
	}
}

// SignOut is a no-op; demo tokens simply expire.
func (g *MockGateway) SignOut(context.Context, string) error {
	return nil
}

func (g *MockGateway) CurrentUser(_ context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, ErrUnauthenticated
	}
	return g.tokens.Verify(accessToken)
}
