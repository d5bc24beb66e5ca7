package vfm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vfm-go/internal/model"
)

// DefaultSessionTTL is how long a session lasts when no TTL is configured.
const DefaultSessionTTL = 30 * 24 * time.Hour

// Identity is what the external identity provider tells us about a user
// who has signed in. Credentials are never seen here.
type Identity struct {
	UserID   string
	Email    string
	Name     string
	Provider model.Provider
}

// Accounts records users the first time they sign in and tracks their
// sessions.
type Accounts struct {
	store  MetadataStore
	logger Logger
	clock  Clock
	idgen  IDGenerator
}

func NewAccounts(store MetadataStore, logger Logger, clock Clock, idgen IDGenerator) *Accounts {
	return &Accounts{store: store, logger: logger, clock: clock, idgen: idgen}
}

// SyncOnLogin returns the stored user for id.Email, creating it on first
// sight. An existing user is returned untouched. The account id is the
// normalized email.
func (a *Accounts) SyncOnLogin(ctx context.Context, id Identity) (*model.User, error) {
	email := NormalizeEmail(id.Email)
	if email == "" {
		return nil, newError(ErrInvalidInput, "Email is required")
	}

	existing, err := a.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	user := &model.User{
		ID:        id.UserID,
		Name:      id.Name,
		Email:     email,
		Provider:  id.Provider,
		AccountID: email,
	}
	if user.ID == "" {
		user.ID = a.idgen.New()
	}
	if user.Provider == "" {
		user.Provider = model.ProviderCredentials
	}

	if err := a.store.Users().Add(ctx, user); err != nil {
		if !errors.Is(err, ErrDuplicateKey) {
			return nil, fmt.Errorf("creating user: %w", err)
		}
		// Another login for the same email won the insert.
		winner, err := a.UserByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if winner == nil {
			return nil, fmt.Errorf("creating user %s: id already taken by another email", user.ID)
		}
		return winner, nil
	}

	a.logger.Info("user registered", "id", user.ID, "email", email, "provider", string(user.Provider))
	return user, nil
}

// UserByEmail returns the user registered with email, or nil.
func (a *Accounts) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	users, err := a.store.Users().GetByIndex(ctx, IndexEmail, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

// User returns the user with the given id, or nil.
func (a *Accounts) User(ctx context.Context, userID string) (*model.User, error) {
	u, err := a.store.Users().Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// CreateSession opens a session for an existing user. A ttl of zero means
// DefaultSessionTTL.
func (a *Accounts) CreateSession(ctx context.Context, userID string, ttl time.Duration) (*model.Session, error) {
	user, err := a.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound("User")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	session := &model.Session{
		ID:           a.idgen.New(),
		SessionToken: a.idgen.New(),
		UserID:       user.ID,
		AccountID:    user.AccountID,
		Expires:      a.clock.Now().Add(ttl),
	}
	if err := a.store.Sessions().Add(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	a.logger.Info("session created", "user", user.ID, "expires", session.Expires.UTC().Format(time.RFC3339))
	return session, nil
}

// SessionByToken returns the live session for token, or nil when there is
// none or it has expired.
func (a *Accounts) SessionByToken(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, nil
	}
	sessions, err := a.store.Sessions().GetByIndex(ctx, IndexSessionToken, token)
	if err != nil {
		return nil, fmt.Errorf("finding session: %w", err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	s := sessions[0]
	if !a.clock.Now().Before(s.Expires) {
		return nil, nil
	}
	return s, nil
}

// Identify resolves a session token to its user. It returns nil, nil when
// the token does not name a live session of an existing user.
func (a *Accounts) Identify(ctx context.Context, token string) (*model.User, error) {
	s, err := a.SessionByToken(ctx, token)
	if err != nil || s == nil {
		return nil, err
	}
	return a.User(ctx, s.UserID)
}

// EndSession deletes the session for token. Unknown tokens are ignored.
func (a *Accounts) EndSession(ctx context.Context, token string) error {
	sessions, err := a.store.Sessions().GetByIndex(ctx, IndexSessionToken, token)
	if err != nil {
		return fmt.Errorf("finding session: %w", err)
	}
	for _, s := range sessions {
		if err := a.store.Sessions().Delete(ctx, s.ID); err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
	}
	return nil
}

// ClearExpiredSessions deletes every expired session and returns how many
// it removed.
func (a *Accounts) ClearExpiredSessions(ctx context.Context) (int, error) {
	sessions, err := a.store.Sessions().GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing sessions: %w", err)
	}

	now := a.clock.Now()
	removed := 0
	for _, s := range sessions {
		if now.Before(s.Expires) {
			continue
		}
		if err := a.store.Sessions().Delete(ctx, s.ID); err != nil {
			return removed, fmt.Errorf("deleting session %s: %w", s.ID, err)
		}
		removed++
	}

	if removed > 0 {
		a.logger.Info("expired sessions cleared", "count", removed)
	}
	return removed, nil
}
