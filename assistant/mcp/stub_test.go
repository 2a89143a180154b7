package mcp

import (
	"context"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/viant/mcp-protocol/authorization"
)

// stubLogin drives device logins offline.
type stubLogin struct {
	needs   bool
	refuse  bool
	finish  func(onComplete func(error))
	prompts map[string]string

	mu      sync.Mutex
	started int
}

func (s *stubLogin) NeedsInteractive(context.Context, string, string, []string) bool {
	return s.needs
}

func (s *stubLogin) StartDeviceLogin(_ context.Context, _, _ string, _ []string, onComplete func(error)) bool {
	if s.refuse {
		return false
	}
	s.mu.Lock()
	s.started++
	s.mu.Unlock()
	if s.finish != nil {
		s.finish(onComplete)
	}
	return true
}

func (s *stubLogin) DevicePrompt(ns, alias string) string {
	return s.prompts[ns+"|"+alias]
}

func (s *stubLogin) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func userContext(t *testing.T, email string) context.Context {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": email}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return context.WithValue(context.Background(), authorization.TokenKey, token)
}
