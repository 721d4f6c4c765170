package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer     = "docvault"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims are the signed assertions carried by both token kinds. The subject
// is the user id. There is no token_type claim: verification cannot tell an
// access token from a refresh token, so callers are trusted to route the
// right token to the right endpoint.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 tokens with a single process-wide
// secret. Rotating the secret invalidates every outstanding token at once.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService)

// WithIssuer overrides the iss claim.
func WithIssuer(issuer string) TokenOption {
	return func(t *TokenService) {
		if s := strings.TrimSpace(issuer); s != "" {
			t.issuer = s
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(t *TokenService) {
		if ttl > 0 {
			t.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(t *TokenService) {
		if ttl > 0 {
			t.refreshTTL = ttl
		}
	}
}

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(t *TokenService) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTokenService constructs a TokenService. The secret is required.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: token secret is not configured")
	}
	svc := &TokenService{
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// IssueAccess signs a short-lived access token for the subject.
func (t *TokenService) IssueAccess(subjectID string) (string, time.Time, error) {
	return t.sign(subjectID, t.accessTTL)
}

// IssueRefresh signs a long-lived refresh token for the subject.
func (t *TokenService) IssueRefresh(subjectID string) (string, time.Time, error) {
	return t.sign(subjectID, t.refreshTTL)
}

// IssuePair issues an access and refresh token for the subject.
func (t *TokenService) IssuePair(subjectID string) (TokenPair, error) {
	access, accessExp, err := t.IssueAccess(subjectID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := t.IssueRefresh(subjectID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (t *TokenService) sign(subjectID string, ttl time.Duration) (string, time.Time, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return "", time.Time{}, errors.New("auth: subject is required")
	}
	now := t.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks the signature and expiry and returns the claims. Every
// failure collapses into ErrInvalidToken.
func (t *TokenService) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrInvalidToken
	}
	return *claims, nil
}
