package mcp

import "github.com/viant/graph-assistant/assistant/graph"

type MyDetailsInput struct {
	Account  graph.Account `json:"account"`
	NameOnly bool          `json:"nameOnly,omitempty" description:"return only displayName"`
}

type MyDetailsOutput struct {
	Details graph.Record `json:"details"`
}

type MyTasksInput struct {
	Account        graph.Account `json:"account"`
	IncompleteOnly bool          `json:"incompleteOnly,omitempty" description:"reserved; incomplete tasks are always returned"`
}

type MyTasksOutput struct {
	Tasks []graph.Task `json:"tasks"`
}

type MyEventsInput struct {
	Account    graph.Account `json:"account"`
	FutureOnly bool          `json:"futureOnly,omitempty" description:"reserved; currently ignored"`
}

type MyEventsOutput struct {
	Events []graph.Event `json:"events"`
}
