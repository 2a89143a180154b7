package graph

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/samber/oops"
	"golang.org/x/sync/singleflight"
)

// DefaultClientTag is the client version requested from the session factory.
const DefaultClientTag = "3"

// Accessor issues Graph queries through a lazily acquired session and
// shapes the responses into view records.
type Accessor struct {
	factory   SessionFactory
	clientTag string
	logger    *slog.Logger

	mu      sync.RWMutex
	session Session
	group   singleflight.Group
}

// Option configures an Accessor.
type Option func(*Accessor)

// WithLogger sets the diagnostics logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Accessor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClientTag overrides the tag passed to SessionFactory.GetClient.
func WithClientTag(tag string) Option {
	return func(a *Accessor) {
		if tag != "" {
			a.clientTag = tag
		}
	}
}

// NewAccessor returns an accessor over factory. A nil factory yields an
// accessor whose every call fails with ErrSessionUnavailable.
func NewAccessor(factory SessionFactory, opts ...Option) *Accessor {
	a := &Accessor{factory: factory, clientTag: DefaultClientTag, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// EnsureSession returns the accessor's session, acquiring it on first use.
// Concurrent first callers share one factory call.
func (a *Accessor) EnsureSession(ctx context.Context) (Session, error) {
	if a.factory == nil {
		return nil, ErrSessionUnavailable
	}
	if s := a.cached(); s != nil {
		return s, nil
	}
	v, err, _ := a.group.Do("session", func() (any, error) {
		if s := a.cached(); s != nil {
			return s, nil
		}
		s, err := a.factory.GetClient(ctx, a.clientTag)
		if err != nil {
			return nil, err
		}
		if s == nil {
			return nil, ErrSessionUnavailable
		}
		a.mu.Lock()
		a.session = s
		a.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Session), nil
}

func (a *Accessor) cached() Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

type verbHandler func(ctx context.Context, q Query, content string, cb Callback)

var verbHandlers = map[Verb]verbHandler{
	Get:    func(ctx context.Context, q Query, _ string, cb Callback) { q.Get(ctx, cb) },
	Post:   func(ctx context.Context, q Query, content string, cb Callback) { q.Post(ctx, content, cb) },
	Patch:  func(ctx context.Context, q Query, content string, cb Callback) { q.Patch(ctx, content, cb) },
	Delete: func(ctx context.Context, q Query, _ string, cb Callback) { q.Delete(ctx, cb) },
}

// Dispatch builds, executes and waits for one query. Errors reported by the
// session are logged and returned unchanged.
func (a *Accessor) Dispatch(ctx context.Context, d QueryDescriptor) (json.RawMessage, error) {
	handler, ok := verbHandlers[d.Verb]
	if !ok {
		return nil, oops.With("verb", int(d.Verb)).Wrap(ErrUnsupportedVerb)
	}
	session, err := a.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}
	version := d.Version
	if version == "" {
		version = V1
	}
	query := session.API(d.Path).Version(version)

	var content string
	if d.Verb.carriesBody() {
		if content, err = encodePayload(d.Payload); err != nil {
			return nil, oops.With("path", d.Path).Wrapf(err, "encode payload")
		}
	}
	if len(d.Select) > 0 {
		query = query.Select(d.Select...)
	}
	if d.Filter != "" {
		query = query.Filter(d.Filter)
	}
	if len(d.Expand) > 0 {
		query = query.Expand(d.Expand...)
	}
	if d.Count {
		query = query.Count(true)
	}

	c := newCompletion()
	handler(ctx, query, content, c.callback())
	response, err := c.wait(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "error calling Microsoft Graph API: "+err.Error(),
			"verb", d.Verb.String(), "path", d.Path, "version", string(version))
		return nil, err
	}
	return response, nil
}

func encodePayload(payload any) (string, error) {
	switch p := payload.(type) {
	case nil:
		return "", nil
	case string:
		return p, nil
	case []byte:
		return string(p), nil
	case json.RawMessage:
		return string(p), nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
