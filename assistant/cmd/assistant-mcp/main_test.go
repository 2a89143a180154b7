package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptions_Validate(t *testing.T) {
	testCases := []struct {
		description string
		opts        Options
		errContains string
	}{
		{description: "server", opts: Options{ClientID: "c", HTTPAddr: ":7788"}},
		{description: "one-shot query", opts: Options{AzureRef: "~/.secret/azure.json", Query: "tasks"}},
		{description: "no client", opts: Options{HTTPAddr: ":7788"}, errContains: "missing --client-id"},
		{description: "nothing to run", opts: Options{ClientID: "c"}, errContains: "nothing to run"},
	}
	for _, tc := range testCases {
		err := tc.opts.validate()
		if tc.errContains == "" {
			assert.NoError(t, err, tc.description)
			continue
		}
		if assert.Error(t, err, tc.description) {
			assert.Contains(t, err.Error(), tc.errContains, tc.description)
		}
	}
}
