package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docvault.org/internal/obs"
)

const notifyTimeout = 10 * time.Second

// Notifier delivers account emails. Delivery is best-effort: the service
// logs failures and never lets them fail the operation that triggered them.
type Notifier interface {
	SendWelcome(ctx context.Context, user User) error
	SendDeactivation(ctx context.Context, user User) error
}

// Service implements the account lifecycle: registration, login, token
// refresh, profile mutation, and deactivation.
type Service struct {
	store    Store
	tokens   *TokenService
	notifier Notifier
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithNotifier wires an email sender into the lifecycle operations.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the lifecycle service.
func NewService(store Store, tokens *TokenService, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	svc := &Service{store: store, tokens: tokens, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// EnsureBuiltins makes sure the seed permission catalog exists. Called once
// at process start, never inside request handlers.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.EnsurePermissions(ctx, BuiltinPermissions)
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RegisterResult is the public outcome of a successful registration.
type RegisterResult struct {
	User        User
	AccessToken string
}

// Register creates a user with a hashed password, assigns the default role
// if one is configured, sends a best-effort welcome email, and issues an
// access token. A duplicate email yields ErrConflict; the insert's
// unique-constraint mapping is the authoritative guard, the lookup below is
// only the friendly fast path.
func (s *Service) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return RegisterResult{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Password) == "" {
		return RegisterResult{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	if first == "" || last == "" {
		return RegisterResult{}, fmt.Errorf("%w: first_name and last_name are required", ErrInvalidInput)
	}

	if _, err := s.store.UserByEmail(ctx, email); err == nil {
		return RegisterResult{}, fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return RegisterResult{}, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return RegisterResult{}, err
	}
	user, err := s.store.CreateUser(ctx, NewUser{
		Email:        email,
		PasswordHash: hash,
		FirstName:    first,
		LastName:     last,
	})
	if err != nil {
		return RegisterResult{}, err
	}

	// Missing default role is a configuration choice, not an error.
	role, err := s.store.DefaultRole(ctx)
	switch {
	case err == nil:
		if err := s.store.AssignRole(ctx, user.ID, role.ID); err != nil {
			return RegisterResult{}, err
		}
	case errors.Is(err, ErrNotFound):
	default:
		return RegisterResult{}, err
	}

	s.notify(user, "welcome", func(ctx context.Context) error {
		return s.notifier.SendWelcome(ctx, user)
	})

	token, _, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return RegisterResult{}, err
	}
	return RegisterResult{User: user, AccessToken: token}, nil
}

// LoginResult is the public outcome of a successful login.
type LoginResult struct {
	User   User
	Tokens TokenPair
}

// Login verifies credentials and issues a token pair. Unknown email, wrong
// password, and inactive account all collapse into ErrUnauthenticated so the
// response cannot be used to enumerate accounts.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return LoginResult{}, ErrUnauthenticated
	}
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LoginResult{}, ErrUnauthenticated
		}
		return LoginResult{}, err
	}
	if !user.IsActive {
		return LoginResult{}, ErrUnauthenticated
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return LoginResult{}, ErrUnauthenticated
	}

	if err := s.store.TouchLastLogin(ctx, user.ID); err != nil {
		return LoginResult{}, err
	}
	roles, err := s.store.RolesForUser(ctx, user.ID)
	if err != nil {
		return LoginResult{}, err
	}
	user.Roles = roles

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: user, Tokens: pair}, nil
}

// Refresh verifies a refresh token, re-resolves the subject and its active
// flag, and issues a new access token only. Verification is type-blind (see
// Claims), so a still-valid access token is accepted here too.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return "", time.Time{}, ErrUnauthenticated
	}
	user, err := s.store.UserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", time.Time{}, ErrUnauthenticated
		}
		return "", time.Time{}, err
	}
	if !user.IsActive {
		return "", time.Time{}, ErrUnauthenticated
	}
	return s.tokens.IssueAccess(user.ID)
}

// Authenticate resolves a bearer token into a principal with the flattened
// permission set. The user's active flag is re-checked on every call, which
// is the enforcement point for deactivation.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	principal, err := s.Principal(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnauthenticated
		}
		return Principal{}, err
	}
	if !principal.User.IsActive {
		return Principal{}, ErrUnauthenticated
	}
	return principal, nil
}

// Principal loads a user eagerly with roles and flattened permissions.
func (s *Service) Principal(ctx context.Context, userID string) (Principal, error) {
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	roles, err := s.store.RolesForUser(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	user.Roles = roles
	perms, err := s.store.PermissionNamesForUser(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	return NewPrincipal(user, roles, perms), nil
}

// ProfileUpdate applies only the supplied fields.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Password  *string
}

// UpdateProfile mutates the caller's own profile. A supplied password is
// re-hashed before storage; no re-authentication challenge is required for
// an in-session password change.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	update := UserUpdate{}
	if upd.FirstName != nil {
		first := strings.TrimSpace(*upd.FirstName)
		if first == "" {
			return User{}, fmt.Errorf("%w: first_name must not be empty", ErrInvalidInput)
		}
		update.FirstName = &first
	}
	if upd.LastName != nil {
		last := strings.TrimSpace(*upd.LastName)
		if last == "" {
			return User{}, fmt.Errorf("%w: last_name must not be empty", ErrInvalidInput)
		}
		update.LastName = &last
	}
	if upd.Password != nil {
		if strings.TrimSpace(*upd.Password) == "" {
			return User{}, fmt.Errorf("%w: password must not be empty", ErrInvalidInput)
		}
		hash, err := HashPassword(*upd.Password)
		if err != nil {
			return User{}, err
		}
		update.PasswordHash = &hash
	}
	return s.store.UpdateUser(ctx, userID, update)
}

// Deactivate flips the active flag off and sends a best-effort notice.
// Outstanding tokens stay cryptographically valid until expiry; the
// Authenticate lookup rejects them from the next request on.
func (s *Service) Deactivate(ctx context.Context, userID string) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	inactive := false
	user, err := s.store.UpdateUser(ctx, userID, UserUpdate{IsActive: &inactive})
	if err != nil {
		return User{}, err
	}
	s.notify(user, "deactivation", func(ctx context.Context) error {
		return s.notifier.SendDeactivation(ctx, user)
	})
	return user, nil
}

// ListUsers returns a page of users with their roles, newest first.
func (s *Service) ListUsers(ctx context.Context, page, limit int) ([]User, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return s.store.ListUsers(ctx, page, limit)
}

// notify runs a mail callback with a bounded timeout, isolated from the
// caller: a failed or missing sender never fails the triggering operation.
func (s *Service) notify(user User, kind string, send func(context.Context) error) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := send(ctx); err != nil {
		obs.LogError("notification delivery failed", map[string]any{
			"kind":    kind,
			"user_id": user.ID,
			"error":   err.Error(),
		})
	}
}
