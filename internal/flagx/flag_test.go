package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-q", "rpc_queue", "-h", "localhost"},
			allowedFlags: []string{"-q", "--queue"},
			want:         []string{"-q", "rpc_queue"},
		},
		{
			name:         "long flag with equals",
			args:         []string{"--queue=jobs", "-h", "localhost"},
			allowedFlags: []string{"-q", "--queue"},
			want:         []string{"--queue=jobs"},
		},
		{
			name:         "unknown flags ignored",
			args:         []string{"-x", "1", "--y=2", "positional"},
			allowedFlags: []string{"-q", "--queue"},
			want:         []string{},
		},
		{
			name:         "flag without value at end is kept as-is",
			args:         []string{"-q"},
			allowedFlags: []string{"-q"},
			want:         []string{"-q"},
		},
		{
			name:         "flag followed by another flag has no value",
			args:         []string{"-q", "-notvalue"},
			allowedFlags: []string{"-q"},
			want:         []string{"-q"},
		},
		{
			name:         "multiple allowed flags kept in order",
			args:         []string{"-h", "localhost:5672", "-q", "rpc_queue", "--other", "x"},
			allowedFlags: []string{"-q", "-h"},
			want:         []string{"-h", "localhost:5672", "-q", "rpc_queue"},
		},
		{
			name:         "empty args",
			args:         []string{},
			allowedFlags: []string{"-q"},
			want:         []string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FilterArgs(tc.args, tc.allowedFlags)
			assert.Equal(t, tc.want, got)
		})
	}
}
