package graph

import (
	"context"
	"encoding/json"
)

// Version is a Graph API version tag.
type Version string

const (
	V1   Version = "v1.0"
	Beta Version = "beta"
)

// Verb selects which query method executes a request.
type Verb int

const (
	Get Verb = iota
	Post
	Patch
	Delete
)

func (v Verb) String() string {
	switch v {
	case Get:
		return "get"
	case Post:
		return "post"
	case Patch:
		return "patch"
	case Delete:
		return "delete"
	}
	return "unknown"
}

// carriesBody reports whether the verb sends a payload.
func (v Verb) carriesBody() bool { return v == Post || v == Patch }

// Callback receives the outcome of a query execution.
type Callback func(err error, response json.RawMessage)

// Query is a fluent request builder scoped to one resource path.
// Modifiers return the same query; verb methods report through cb.
type Query interface {
	Version(v Version) Query
	Select(fields ...string) Query
	Filter(expr string) Query
	Expand(fields ...string) Query
	Count(enabled bool) Query

	Get(ctx context.Context, cb Callback)
	Post(ctx context.Context, content string, cb Callback)
	Patch(ctx context.Context, content string, cb Callback)
	Delete(ctx context.Context, cb Callback)
}

// Session is an authenticated handle used to issue queries.
type Session interface {
	API(path string) Query
}

// SessionFactory hands out sessions; it is supplied by the host.
type SessionFactory interface {
	GetClient(ctx context.Context, tag string) (Session, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(ctx context.Context, tag string) (Session, error)

func (f SessionFactoryFunc) GetClient(ctx context.Context, tag string) (Session, error) {
	return f(ctx, tag)
}

// QueryDescriptor describes a single request.
type QueryDescriptor struct {
	Verb    Verb
	Path    string
	Version Version
	// Payload is sent with Post and Patch only. Non-string values are JSON
	// encoded; a nil Payload sends no body rather than "null".
	Payload any
	Select  []string
	Expand  []string
	Filter  string
	Count   bool
}

// Record is an untyped Graph entity.
type Record map[string]any

// Task is a simplified planner task.
type Task struct {
	Title           string `json:"title"`
	Start           string `json:"start,omitempty"`
	End             string `json:"end,omitempty"`
	PercentComplete int32  `json:"percentComplete"`
}

// EmailAddress names a mailbox.
type EmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

// Attendee is an event participant as returned by Graph.
type Attendee struct {
	Type         string       `json:"type,omitempty"`
	EmailAddress EmailAddress `json:"emailAddress"`
	Status       *struct {
		Response string `json:"response,omitempty"`
		Time     string `json:"time,omitempty"`
	} `json:"status,omitempty"`
}

// Location is an event location as returned by Graph.
type Location struct {
	DisplayName  string `json:"displayName,omitempty"`
	LocationType string `json:"locationType,omitempty"`
	UniqueID     string `json:"uniqueId,omitempty"`
}

// Event is a simplified calendar event.
type Event struct {
	Title     string     `json:"title"`
	Start     string     `json:"start"`
	End       string     `json:"end"`
	Attendees []Attendee `json:"attendees,omitempty"`
	Location  *Location  `json:"location,omitempty"`
}

// Account identifies a stored account for tool input.
type Account struct {
	// Alias identifies a stored account (e.g. "work", "personal").
	Alias    string `json:"alias" description:"account name"`
	TenantID string `json:"-" internal:"true"`
}
