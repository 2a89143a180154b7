package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newShaperAccessor(t *testing.T, path, body string) (*Accessor, *stubSession) {
	t.Helper()
	session := newStubSession()
	session.responses[path] = body
	var calls int32
	return NewAccessor(countingFactory(session, &calls)), session
}

func TestAccessor_GetMyDetails(t *testing.T) {
	const body = `{"displayName":"Ada Lovelace","mail":"ada@example.com"}`
	testCases := []struct {
		description string
		nameOnly    bool
		expect      Record
	}{
		{
			description: "name only",
			nameOnly:    true,
			expect:      Record{"displayName": "Ada Lovelace"},
		},
		{
			description: "full record",
			nameOnly:    false,
			expect:      Record{"displayName": "Ada Lovelace", "mail": "ada@example.com"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			a, session := newShaperAccessor(t, "/me", body)
			actual, err := a.GetMyDetails(context.Background(), tc.nameOnly)
			require.NoError(t, err)
			assert.Equal(t, tc.expect, actual)

			q := session.last()
			assert.Equal(t, "get", q.verb)
			assert.Equal(t, V1, q.version)
			assert.Empty(t, q.modifiers)
		})
	}
}

func TestAccessor_GetMyDetails_NullBody(t *testing.T) {
	a, _ := newShaperAccessor(t, "/me", `null`)
	_, err := a.GetMyDetails(context.Background(), true)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestAccessor_GetMyTasks(t *testing.T) {
	const body = `{"value":[{"title":"T1","startDateTime":"2024-01-01","dueDateTime":"2024-01-05","percentComplete":50}]}`
	expect := []Task{{Title: "T1", Start: "2024-01-01", End: "2024-01-05", PercentComplete: 50}}

	// the flag does not alter the request or the result
	for _, incompleteOnly := range []bool{true, false} {
		a, session := newShaperAccessor(t, "/me/planner/tasks", body)
		actual, err := a.GetMyTasks(context.Background(), incompleteOnly)
		require.NoError(t, err)
		assert.Equal(t, expect, actual)

		q := session.last()
		assert.Equal(t, "get", q.verb)
		assert.Equal(t, V1, q.version)
		assert.Equal(t, []string{"title", "startDateTime", "dueDateTime", "percentComplete"}, q.selects)
		assert.Equal(t, "percentComplete ne 100", q.filter)
		assert.Equal(t, []string{"select", "filter"}, q.modifiers)
	}
}

func TestAccessor_GetMyTasks_MissingValue(t *testing.T) {
	a, _ := newShaperAccessor(t, "/me/planner/tasks", `{"@odata.context":"x"}`)
	_, err := a.GetMyTasks(context.Background(), false)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestAccessor_GetMyTasks_Empty(t *testing.T) {
	a, _ := newShaperAccessor(t, "/me/planner/tasks", `{"value":[]}`)
	actual, err := a.GetMyTasks(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, actual)
}

func TestAccessor_GetMyEvents(t *testing.T) {
	const body = `{"value":[{
		"subject":"Standup",
		"start":{"dateTime":"2024-02-01T10:00","timeZone":"UTC"},
		"end":{"dateTime":"2024-02-01T11:00","timeZone":"UTC"},
		"attendees":[{"type":"required","emailAddress":{"name":"Ada","address":"ada@example.com"}}],
		"location":{"displayName":"Room 1"}
	}]}`
	for _, futureOnly := range []bool{false, true} {
		a, session := newShaperAccessor(t, "/me/events", body)
		actual, err := a.GetMyEvents(context.Background(), futureOnly)
		require.NoError(t, err)
		require.Len(t, actual, 1)

		ev := actual[0]
		assert.Equal(t, "Standup", ev.Title)
		assert.Equal(t, "2024-02-01T10:00", ev.Start)
		assert.Equal(t, "2024-02-01T11:00", ev.End)
		require.Len(t, ev.Attendees, 1)
		assert.Equal(t, "ada@example.com", ev.Attendees[0].EmailAddress.Address)
		require.NotNil(t, ev.Location)
		assert.Equal(t, "Room 1", ev.Location.DisplayName)

		q := session.last()
		assert.Equal(t, []string{"subject", "start", "end", "attendees", "location"}, q.selects)
		assert.Empty(t, q.filter)
		assert.Equal(t, []string{"select"}, q.modifiers)
	}
}

func TestAccessor_GetMyEvents_MissingStart(t *testing.T) {
	a, _ := newShaperAccessor(t, "/me/events", `{"value":[{"subject":"x","end":{"dateTime":"2024-02-01T11:00"}}]}`)
	_, err := a.GetMyEvents(context.Background(), false)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
