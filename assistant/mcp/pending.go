package mcp

import (
	"errors"
	"sync"
)

// ErrLoginCancelled is reported by pending logins cleared before they finished.
var ErrLoginCancelled = errors.New("device login cancelled")

// PendingAuth tracks one out-of-band device login.
type PendingAuth struct {
	UUID      string
	Alias     string
	TenantID  string
	Namespace string
	done      chan struct{}
	err       error
}

// NewPendingAuth returns a pending login ready to be registered.
func NewPendingAuth(uuid, alias, tenantID, namespace string) *PendingAuth {
	return &PendingAuth{UUID: uuid, Alias: alias, TenantID: tenantID, Namespace: namespace, done: make(chan struct{})}
}

// Done is closed once the login completes or is cancelled.
func (p *PendingAuth) Done() <-chan struct{} { return p.done }

// Err returns the login outcome; it is only meaningful once Done is closed.
func (p *PendingAuth) Err() error { return p.err }

type PendingAuths struct {
	mu   sync.RWMutex
	byID map[string]*PendingAuth
	byNS map[string]map[string]*PendingAuth // ns -> uuid -> pending
}

func NewPendingAuths() *PendingAuths {
	return &PendingAuths{byID: make(map[string]*PendingAuth), byNS: make(map[string]map[string]*PendingAuth)}
}

func (p *PendingAuths) Put(x *PendingAuth) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if x.Namespace == "" {
		x.Namespace = "default"
	}
	if x.done == nil {
		x.done = make(chan struct{})
	}
	p.byID[x.UUID] = x
	m, ok := p.byNS[x.Namespace]
	if !ok {
		m = map[string]*PendingAuth{}
		p.byNS[x.Namespace] = m
	}
	m[x.UUID] = x
}

func (p *PendingAuths) Get(uuid string) (*PendingAuth, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	x, ok := p.byID[uuid]
	return x, ok
}

// Complete removes the pending login, records err and releases its waiters.
func (p *PendingAuths) Complete(uuid string, err error) {
	p.mu.Lock()
	x, ok := p.byID[uuid]
	if ok {
		x.err = err
		delete(p.byID, uuid)
		if m, ok2 := p.byNS[x.Namespace]; ok2 {
			delete(m, uuid)
			if len(m) == 0 {
				delete(p.byNS, x.Namespace)
			}
		}
	}
	p.mu.Unlock()
	if ok {
		close(x.done)
	}
}

// ListNamespace returns a snapshot of pending auths for a namespace.
func (p *PendingAuths) ListNamespace(ns string) []*PendingAuth {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m := p.byNS[ns]
	out := make([]*PendingAuth, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// ClearNamespace removes all pending auths for a namespace and returns cleared UUIDs.
func (p *PendingAuths) ClearNamespace(ns string) []string {
	p.mu.Lock()
	m := p.byNS[ns]
	delete(p.byNS, ns)
	ids := make([]string, 0, len(m))
	for id, x := range m {
		delete(p.byID, id)
		ids = append(ids, id)
		x.err = ErrLoginCancelled
		close(x.done)
	}
	p.mu.Unlock()
	return ids
}

// Find returns a pending login for alias within namespace.
func (p *PendingAuths) Find(ns, alias string) (*PendingAuth, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, v := range p.byNS[ns] {
		if v.Alias == alias {
			return v, true
		}
	}
	return nil, false
}
