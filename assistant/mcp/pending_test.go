package mcp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingAuths(t *testing.T) {
	p := NewPendingAuths()
	a := NewPendingAuth("u1", "work", "t1", "ns1")
	b := NewPendingAuth("u2", "home", "t1", "")
	p.Put(a)
	p.Put(b)

	got, ok := p.Get("u1")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, "default", b.Namespace)

	found, ok := p.Find("ns1", "work")
	require.True(t, ok)
	assert.Equal(t, "u1", found.UUID)
	_, ok = p.Find("ns1", "home")
	assert.False(t, ok)

	p.Complete("u1", nil)
	select {
	case <-a.Done():
	default:
		t.Fatal("expected done to be closed after Complete")
	}
	assert.NoError(t, a.Err())
	_, ok = p.Get("u1")
	assert.False(t, ok)
	assert.Empty(t, p.ListNamespace("ns1"))

	// completing twice is a no-op
	p.Complete("u1", errors.New("late"))
	assert.NoError(t, a.Err())

	p.Complete("u2", errors.New("denied"))
	<-b.Done()
	assert.EqualError(t, b.Err(), "denied")
}

func TestPendingAuths_ClearNamespace(t *testing.T) {
	p := NewPendingAuths()
	a := NewPendingAuth("u1", "work", "", "ns1")
	b := NewPendingAuth("u2", "home", "", "ns1")
	c := NewPendingAuth("u3", "work", "", "ns2")
	p.Put(a)
	p.Put(b)
	p.Put(c)

	cleared := p.ClearNamespace("ns1")
	assert.ElementsMatch(t, []string{"u1", "u2"}, cleared)
	for _, x := range []*PendingAuth{a, b} {
		select {
		case <-x.Done():
		default:
			t.Fatalf("expected %s to be released", x.UUID)
		}
		assert.ErrorIs(t, x.Err(), ErrLoginCancelled)
	}
	assert.Len(t, p.ListNamespace("ns2"), 1)
	_, ok := p.Get("u2")
	assert.False(t, ok)
}

func TestPendingAuths_PutInitializesDone(t *testing.T) {
	p := NewPendingAuths()
	x := &PendingAuth{UUID: "u1", Alias: "a"}
	p.Put(x)
	require.NotNil(t, x.Done())
	p.Complete("u1", nil)
	<-x.Done()
}
