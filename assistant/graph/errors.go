package graph

import "github.com/samber/oops"

var (
	// ErrSessionUnavailable is returned when the accessor has no session factory.
	ErrSessionUnavailable = oops.Code("SESSION_UNAVAILABLE").Errorf("graph: session unavailable")
	// ErrShapeMismatch is wrapped when a response lacks a field the shaper needs.
	ErrShapeMismatch = oops.Code("SHAPE_MISMATCH").Errorf("graph: unexpected response shape")
	// ErrUnsupportedVerb is returned for verbs outside the dispatch table.
	ErrUnsupportedVerb = oops.Code("UNSUPPORTED_VERB").Errorf("graph: unsupported verb")
)

func missingField(resource, field string) error {
	return oops.Code("SHAPE_MISMATCH").
		With("resource", resource).
		With("field", field).
		Wrapf(ErrShapeMismatch, "missing field %q", field)
}
