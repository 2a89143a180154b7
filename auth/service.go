package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/viant/mcp-protocol/authorization"
)

// Service derives the caller namespace from a JWT carried in context.
// Credentials and sessions are partitioned by this namespace.
type Service struct {
	// DefaultNamespace is returned when no token is present or extraction fails.
	DefaultNamespace string
	// Parse turns a token string into claims (unverified parse by default).
	Parse func(token string) (jwt.MapClaims, error)
	// Extract returns the namespace from claims; bool indicates success.
	Extract func(jwt.MapClaims) (string, bool)
}

// Namespace returns the email or subject of the token placed in context by
// the MCP auth middleware.
func (s *Service) Namespace(ctx context.Context) (string, error) {
	if s == nil {
		return "default", nil
	}
	var token string
	switch tv := ctx.Value(authorization.TokenKey).(type) {
	case nil:
		return s.DefaultNamespace, nil
	case string:
		token = tv
	case *authorization.Token:
		if tv == nil {
			return s.DefaultNamespace, nil
		}
		token = tv.Token
	default:
		return "", fmt.Errorf("unsupported token type %T", tv)
	}
	if s.Parse == nil || s.Extract == nil {
		return s.DefaultNamespace, nil
	}
	claims, err := s.Parse(token)
	if err != nil {
		return s.DefaultNamespace, nil
	}
	if ns, ok := s.Extract(claims); ok && ns != "" {
		return ns, nil
	}
	return s.DefaultNamespace, nil
}

// New returns a Service that extracts "email", "preferred_username" or "sub"
// without verifying the token.
func New() *Service {
	return &Service{
		DefaultNamespace: "default",
		Parse: func(token string) (jwt.MapClaims, error) {
			claims := jwt.MapClaims{}
			_, _, err := jwt.NewParser().ParseUnverified(token, claims)
			return claims, err
		},
		Extract: func(mc jwt.MapClaims) (string, bool) {
			for _, key := range []string{"email", "preferred_username", "sub"} {
				if v, _ := mc[key].(string); v != "" {
					return v, true
				}
			}
			return "", false
		},
	}
}
