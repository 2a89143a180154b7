package graph

import (
	"context"
	"encoding/json"
	"sync"
)

// stubSession answers every query with a canned response keyed by path.
type stubSession struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	queries   []*stubQuery
}

func newStubSession() *stubSession {
	return &stubSession{responses: map[string]string{}, errs: map[string]error{}}
}

func (s *stubSession) API(path string) Query {
	q := &stubQuery{session: s, path: path}
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
	return q
}

func (s *stubSession) last() *stubQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return nil
	}
	return s.queries[len(s.queries)-1]
}

type stubQuery struct {
	session   *stubSession
	path      string
	version   Version
	modifiers []string
	selects   []string
	expands   []string
	filter    string
	count     bool
	verb      string
	content   string
	// repeat fires the callback a second time with a different outcome.
	repeat bool
}

func (q *stubQuery) Version(v Version) Query {
	q.version = v
	return q
}

func (q *stubQuery) Select(fields ...string) Query {
	q.modifiers = append(q.modifiers, "select")
	q.selects = fields
	return q
}

func (q *stubQuery) Filter(expr string) Query {
	q.modifiers = append(q.modifiers, "filter")
	q.filter = expr
	return q
}

func (q *stubQuery) Expand(fields ...string) Query {
	q.modifiers = append(q.modifiers, "expand")
	q.expands = fields
	return q
}

func (q *stubQuery) Count(enabled bool) Query {
	q.modifiers = append(q.modifiers, "count")
	q.count = enabled
	return q
}

func (q *stubQuery) Get(_ context.Context, cb Callback) { q.respond("get", "", cb) }

func (q *stubQuery) Post(_ context.Context, content string, cb Callback) {
	q.respond("post", content, cb)
}

func (q *stubQuery) Patch(_ context.Context, content string, cb Callback) {
	q.respond("patch", content, cb)
}

func (q *stubQuery) Delete(_ context.Context, cb Callback) { q.respond("delete", "", cb) }

func (q *stubQuery) respond(verb, content string, cb Callback) {
	q.verb = verb
	q.content = content
	q.session.mu.Lock()
	err := q.session.errs[q.path]
	body := q.session.responses[q.path]
	q.session.mu.Unlock()
	if err != nil {
		cb(err, nil)
	} else {
		cb(nil, json.RawMessage(body))
	}
	if q.repeat {
		cb(nil, json.RawMessage(`{"late":true}`))
	}
}
