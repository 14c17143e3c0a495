package auth_test

import (
	"context"
	"testing"
	"time"

	"taskBoard/internal/auth"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func issue(t *testing.T, mutate func(*auth.Claims)) string {
	t.Helper()
	claims := auth.NewClaims(auth.User{ID: "user-1", Email: "a@example.com"}, 5*time.Minute, time.Now())
	if mutate != nil {
		mutate(&claims)
	}
	token, err := auth.Issue(secret, claims)
	require.NoError(t, err)
	return token
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "valid", header: "Bearer a.b.c", want: "a.b.c"},
		{name: "lowercase scheme", header: "bearer a.b.c", want: "a.b.c"},
		{name: "padded", header: "  Bearer a.b.c  ", want: "a.b.c"},
		{name: "empty", header: "", wantErr: auth.ErrMissingToken},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantErr: auth.ErrBadHeader},
		{name: "not a jwt", header: "Bearer abc", wantErr: auth.ErrBadHeader},
		{name: "prefix only", header: "Bearer ", wantErr: auth.ErrBadHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.BearerToken(tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifier_HS256(t *testing.T) {
	v := auth.NewHS256(secret)

	user, claims, err := v.Verify(issue(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "a@example.com", user.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestVerifier_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		verifier *auth.Verifier
		token    func(t *testing.T) string
	}{
		{
			name:     "wrong secret",
			verifier: auth.NewHS256([]byte("other")),
			token:    func(t *testing.T) string { return issue(t, nil) },
		},
		{
			name:     "expired",
			verifier: auth.NewHS256(secret),
			token: func(t *testing.T) string {
				return issue(t, func(c *auth.Claims) {
					c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
				})
			},
		},
		{
			name:     "missing exp",
			verifier: auth.NewHS256(secret),
			token: func(t *testing.T) string {
				return issue(t, func(c *auth.Claims) { c.ExpiresAt = nil })
			},
		},
		{
			name:     "missing subject",
			verifier: auth.NewHS256(secret),
			token: func(t *testing.T) string {
				return issue(t, func(c *auth.Claims) { c.Subject = "" })
			},
		},
		{
			name:     "wrong audience",
			verifier: auth.NewHS256(secret, auth.WithAudience("taskboard")),
			token: func(t *testing.T) string {
				return issue(t, func(c *auth.Claims) { c.Audience = jwt.ClaimStrings{"other"} })
			},
		},
		{
			name:     "wrong issuer",
			verifier: auth.NewHS256(secret, auth.WithIssuer("https://issuer/")),
			token: func(t *testing.T) string {
				return issue(t, func(c *auth.Claims) { c.Issuer = "https://elsewhere/" })
			},
		},
		{
			name:     "garbage",
			verifier: auth.NewHS256(secret),
			token:    func(t *testing.T) string { return "a.b.c" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.verifier.Verify(tt.token(t))
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestVerifier_AudienceAndIssuerAccepted(t *testing.T) {
	v := auth.NewHS256(secret, auth.WithAudience("taskboard"), auth.WithIssuer("https://issuer/"))
	token := issue(t, func(c *auth.Claims) {
		c.Audience = jwt.ClaimStrings{"taskboard"}
		c.Issuer = "https://issuer/"
	})

	_, _, err := v.Verify(token)
	assert.NoError(t, err)
}

func TestVerifier_Revoke(t *testing.T) {
	v := auth.NewHS256(secret)
	token := issue(t, nil)

	_, claims, err := v.Verify(token)
	require.NoError(t, err)

	v.Revoke(claims)

	_, _, err = v.Verify(token)
	assert.ErrorIs(t, err, auth.ErrRevokedToken)

	// other tokens of the same user still work
	_, _, err = v.Verify(issue(t, nil))
	assert.NoError(t, err)
}

func TestVerifier_RevocationExpires(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	v := auth.NewHS256(secret, auth.WithClock(clock))
	token := issue(t, nil)

	_, claims, err := v.Verify(token)
	require.NoError(t, err)
	v.Revoke(claims)

	_, _, err = v.Verify(token)
	assert.ErrorIs(t, err, auth.ErrRevokedToken)

	// past the token's own expiry the revocation entry lapses
	now = now.Add(10 * time.Minute)
	_, _, err = v.Verify(token)
	assert.NoError(t, err)
}

func TestIdentity(t *testing.T) {
	v := auth.NewHS256(secret)
	identity := auth.NewIdentity(v)
	token := issue(t, nil)

	user, err := identity.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.ErrorIs(t, identity.SignOut(context.Background()), auth.ErrMissingToken)

	verified, claims, err := v.Verify(token)
	require.NoError(t, err)
	ctx := auth.WithUser(context.Background(), verified, claims)

	user, err = identity.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)

	require.NoError(t, identity.SignOut(ctx))
	_, _, err = v.Verify(token)
	assert.ErrorIs(t, err, auth.ErrRevokedToken)
}
