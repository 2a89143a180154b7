package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mcp-protocol/authorization"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestService_Namespace(t *testing.T) {
	svc := New()
	testCases := []struct {
		description string
		value       any
		expect      string
	}{
		{description: "no token", value: nil, expect: "default"},
		{description: "email claim", value: signedToken(t, jwt.MapClaims{"email": "ada@example.com", "sub": "s1"}), expect: "ada@example.com"},
		{description: "subject fallback", value: signedToken(t, jwt.MapClaims{"sub": "s1"}), expect: "s1"},
		{description: "token struct", value: &authorization.Token{Token: signedToken(t, jwt.MapClaims{"preferred_username": "ada"})}, expect: "ada"},
		{description: "unparseable", value: "not-a-jwt", expect: "default"},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			ctx := context.Background()
			if tc.value != nil {
				ctx = context.WithValue(ctx, authorization.TokenKey, tc.value)
			}
			ns, err := svc.Namespace(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.expect, ns)
		})
	}
}

func TestService_Namespace_UnsupportedType(t *testing.T) {
	ctx := context.WithValue(context.Background(), authorization.TokenKey, 42)
	_, err := New().Namespace(ctx)
	assert.Error(t, err)
}

func TestService_Namespace_NilService(t *testing.T) {
	var svc *Service
	ns, err := svc.Namespace(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "default", ns)
}
