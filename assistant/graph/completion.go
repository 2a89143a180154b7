package graph

import (
	"context"
	"encoding/json"
	"sync"
)

type outcome struct {
	response json.RawMessage
	err      error
}

// completion turns a Callback into a value that can be waited on.
// Only the first callback invocation is observed.
type completion struct {
	once sync.Once
	done chan outcome
}

func newCompletion() *completion {
	return &completion{done: make(chan outcome, 1)}
}

func (c *completion) callback() Callback {
	return func(err error, response json.RawMessage) {
		c.once.Do(func() {
			c.done <- outcome{response: response, err: err}
		})
	}
}

// wait blocks until the callback fires or ctx is done.
func (c *completion) wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case o := <-c.done:
		if o.err != nil {
			return nil, o.err
		}
		return o.response, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
