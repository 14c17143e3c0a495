package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var (
	ErrMissingToken = errors.New("missing authorization header")
	ErrBadHeader    = errors.New("bad auth header")
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token revoked")
)

const bearerPrefix = "bearer "

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// NewClaims builds the claims of a fresh token for user, valid for ttl from now.
func NewClaims(user User, ttl time.Duration, now time.Time) Claims {
	return Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

// Issue signs claims with HS256.
func Issue(secret []byte, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verifier validates bearer tokens either against a shared HS256 secret
// or against RS256 keys fetched from a JWKS endpoint.
type Verifier struct {
	secret   []byte
	jwks     *keyfunc.JWKS
	audience string
	issuer   string
	parser   *jwt.Parser
	now      func() time.Time

	mtx     sync.Mutex
	revoked map[string]time.Time
}

type Option func(*Verifier)

func WithAudience(audience string) Option {
	return func(v *Verifier) { v.audience = audience }
}

func WithIssuer(issuer string) Option {
	return func(v *Verifier) { v.issuer = issuer }
}

func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func NewHS256(secret []byte, opts ...Option) *Verifier {
	v := newVerifier(opts)
	v.secret = secret
	v.parser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	return v
}

func NewJWKS(jwks *keyfunc.JWKS, opts ...Option) *Verifier {
	v := newVerifier(opts)
	v.jwks = jwks
	v.parser = jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	return v
}

func newVerifier(opts []Option) *Verifier {
	v := &Verifier{
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// BearerToken extracts the raw token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", ErrBadHeader
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if strings.Count(token, ".") != 2 {
		return "", ErrBadHeader
	}
	return token, nil
}

// Verify parses and validates token and returns the user it was issued for.
func (v *Verifier) Verify(token string) (*User, *Claims, error) {
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, v.key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, nil, ErrInvalidToken
	}

	if claims.ExpiresAt == nil {
		return nil, nil, fmt.Errorf("%w: missing exp", ErrInvalidToken)
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return nil, nil, fmt.Errorf("%w: invalid audience", ErrInvalidToken)
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, nil, fmt.Errorf("%w: invalid issuer", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return nil, nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	if v.isRevoked(claims.ID) {
		return nil, nil, ErrRevokedToken
	}

	return &User{ID: claims.Subject, Email: claims.Email}, claims, nil
}

func (v *Verifier) key(t *jwt.Token) (any, error) {
	if v.jwks != nil {
		return v.jwks.Keyfunc(t)
	}
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("invalid signing method")
	}
	return v.secret, nil
}

// Revoke rejects the token with these claims until it expires on its own.
// Tokens without a jti cannot be revoked individually.
func (v *Verifier) Revoke(claims *Claims) {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return
	}

	v.mtx.Lock()
	defer v.mtx.Unlock()

	now := v.now()
	for id, until := range v.revoked {
		if !until.After(now) {
			delete(v.revoked, id)
		}
	}
	v.revoked[claims.ID] = claims.ExpiresAt.Time
}

func (v *Verifier) isRevoked(id string) bool {
	if id == "" {
		return false
	}
	v.mtx.Lock()
	defer v.mtx.Unlock()

	until, ok := v.revoked[id]
	return ok && until.After(v.now())
}

type contextKey struct{}

type session struct {
	user   *User
	claims *Claims
}

func WithUser(ctx context.Context, user *User, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, session{user: user, claims: claims})
}

func UserFromContext(ctx context.Context) (*User, bool) {
	s, ok := ctx.Value(contextKey{}).(session)
	if !ok || s.user == nil {
		return nil, false
	}
	return s.user, true
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	s, ok := ctx.Value(contextKey{}).(session)
	if !ok || s.claims == nil {
		return nil, false
	}
	return s.claims, true
}

// Identity resolves the signed-in user from the request context.
type Identity struct {
	verifier *Verifier
}

func NewIdentity(verifier *Verifier) *Identity {
	return &Identity{verifier: verifier}
}

// CurrentUser returns nil without an error when nobody is signed in.
func (i *Identity) CurrentUser(ctx context.Context) (*User, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return nil, nil
	}
	return user, nil
}

func (i *Identity) SignOut(ctx context.Context) error {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return ErrMissingToken
	}
	i.verifier.Revoke(claims)
	return nil
}
