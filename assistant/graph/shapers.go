package graph

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/samber/oops"
)

const (
	mePath       = "/me"
	myTasksPath  = "/me/planner/tasks"
	myEventsPath = "/me/events"

	incompleteTasksFilter = "percentComplete ne 100"
)

var (
	taskFields  = []string{"title", "startDateTime", "dueDateTime", "percentComplete"}
	eventFields = []string{"subject", "start", "end", "attendees", "location"}
)

// GetMyDetails returns the signed-in user's profile. With nameOnly only
// displayName is kept.
func (a *Accessor) GetMyDetails(ctx context.Context, nameOnly bool) (Record, error) {
	data, err := a.Dispatch(ctx, QueryDescriptor{Verb: Get, Path: mePath, Version: V1})
	if err != nil {
		return nil, err
	}
	var user Record
	if err := decode(mePath, data, &user); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, missingField(mePath, "displayName")
	}
	if nameOnly {
		return Record{"displayName": user["displayName"]}, nil
	}
	return user, nil
}

// GetMyTasks returns the user's planner tasks that are not complete.
// The incompleteOnly flag does not change the request yet; the
// percentComplete filter is always applied.
func (a *Accessor) GetMyTasks(ctx context.Context, incompleteOnly bool) ([]Task, error) {
	if incompleteOnly {
		a.logger.DebugContext(ctx, "incomplete tasks only requested", "path", myTasksPath)
	}
	data, err := a.Dispatch(ctx, QueryDescriptor{
		Verb:    Get,
		Path:    myTasksPath,
		Version: V1,
		Select:  taskFields,
		Filter:  incompleteTasksFilter,
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Value []struct {
			Title           string `json:"title"`
			StartDateTime   string `json:"startDateTime"`
			DueDateTime     string `json:"dueDateTime"`
			PercentComplete int32  `json:"percentComplete"`
		} `json:"value"`
	}
	if err := decode(myTasksPath, data, &payload); err != nil {
		return nil, err
	}
	if payload.Value == nil {
		return nil, missingField(myTasksPath, "value")
	}
	out := make([]Task, 0, len(payload.Value))
	for _, t := range payload.Value {
		out = append(out, Task{Title: t.Title, Start: t.StartDateTime, End: t.DueDateTime, PercentComplete: t.PercentComplete})
	}
	return out, nil
}

// GetMyEvents returns the user's calendar events with start and end
// flattened to their dateTime values. futureOnly is accepted but not applied.
func (a *Accessor) GetMyEvents(ctx context.Context, futureOnly bool) ([]Event, error) {
	if futureOnly {
		a.logger.DebugContext(ctx, "future events only requested", "path", myEventsPath)
	}
	data, err := a.Dispatch(ctx, QueryDescriptor{
		Verb:    Get,
		Path:    myEventsPath,
		Version: V1,
		Select:  eventFields,
	})
	if err != nil {
		return nil, err
	}
	type dateTime struct {
		DateTime string `json:"dateTime"`
	}
	var payload struct {
		Value []struct {
			Subject   string     `json:"subject"`
			Start     *dateTime  `json:"start"`
			End       *dateTime  `json:"end"`
			Attendees []Attendee `json:"attendees"`
			Location  *Location  `json:"location"`
		} `json:"value"`
	}
	if err := decode(myEventsPath, data, &payload); err != nil {
		return nil, err
	}
	if payload.Value == nil {
		return nil, missingField(myEventsPath, "value")
	}
	out := make([]Event, 0, len(payload.Value))
	for _, ev := range payload.Value {
		if ev.Start == nil {
			return nil, missingField(myEventsPath, "start")
		}
		if ev.End == nil {
			return nil, missingField(myEventsPath, "end")
		}
		out = append(out, Event{
			Title:     ev.Subject,
			Start:     ev.Start.DateTime,
			End:       ev.End.DateTime,
			Attendees: ev.Attendees,
			Location:  ev.Location,
		})
	}
	return out, nil
}

func decode(resource string, data json.RawMessage, target any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return missingField(resource, "body")
	}
	if err := json.Unmarshal(data, target); err != nil {
		return oops.Code("SHAPE_MISMATCH").With("resource", resource).Wrapf(err, "decode %s", resource)
	}
	return nil
}
