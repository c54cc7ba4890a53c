package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"bare invocation serves", []string{"recall"}, []string{"recall", "serve"}},
		{"short version flag", []string{"recall", "-v"}, []string{"recall", "version"}},
		{"long version flag", []string{"recall", "-version"}, []string{"recall", "version"}},
		{"double-dash version flag", []string{"recall", "--version"}, []string{"recall", "version"}},
		{"subcommand untouched", []string{"recall", "ingest", "./docs"}, []string{"recall", "ingest", "./docs"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeArgs(tt.in))
		})
	}
}
