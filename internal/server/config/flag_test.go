package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {

	tests := []struct {
		name        string
		args        []string
		expectPanic bool
		check       func(t *testing.T, c *Config)
	}{
		{
			name: "all recognized flags",
			args: []string{"cmd",
				"-q", "speed_jobs", "-r", "rabbit", "-p", "5673",
				"-b", "bucket", "-e", "http://endpoint", "-m", "7",
				"-u", "http://reports:8010", "-l", "debug",
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "speed_jobs", c.QueueName)
				assert.Equal(t, "rabbit", c.RabbitHost)
				assert.Equal(t, 5673, c.RabbitPort)
				assert.Equal(t, "bucket", c.S3Bucket)
				assert.Equal(t, "http://endpoint", c.S3BaseEndpoint)
				assert.Equal(t, uint64(7), c.UploadMaxAttempts)
				assert.Equal(t, "http://reports:8010", c.ReportBaseURL)
				assert.Equal(t, "debug", c.LogLevel)
			},
		},
		{
			name: "unknown flags are filtered out",
			args: []string{"cmd", "-q", "speed_jobs", "-zzz", "whatever"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "speed_jobs", c.QueueName)
			},
		},
		{
			name: "non-numeric port panics",
			args: []string{"cmd", "-p", "lots"},

			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()
			os.Args = tt.args

			config := &Config{}
			config.LoadDefaults()

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config) })
				return
			}

			require.NotPanics(t, func() { parseFlags(config) })
			tt.check(t, config)
		})
	}
}
