package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = append([]string{"cmd"}, args...)
}

func TestParseJson_OverlaysValuesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"rabbit_host": "rabbit.internal",
		"rabbit_port": 5673,
		"queue_name": "speed_jobs",
		"upload_max_attempts": 4,
		"admin_chat_id": 99,
		"log_level": "warn"
	}`), 0o600))

	withArgs(t, "-c", path)

	c := &Config{}
	c.LoadDefaults()
	parseJson(c)

	assert.Equal(t, "rabbit.internal", c.RabbitHost)
	assert.Equal(t, 5673, c.RabbitPort)
	assert.Equal(t, "speed_jobs", c.QueueName)
	assert.Equal(t, uint64(4), c.UploadMaxAttempts)
	assert.Equal(t, int64(99), c.AdminChatID)
	assert.Equal(t, "warn", c.LogLevel)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, "guest", c.RabbitUser)
	assert.Equal(t, "reports", c.S3Bucket)
}

func TestParseJson_NoFlagMeansNoFile(t *testing.T) {
	withArgs(t)

	c := &Config{}
	c.LoadDefaults()
	parseJson(c)

	assert.Equal(t, "rpc_queue", c.QueueName)
}

func TestParseJson_MissingFilePanics(t *testing.T) {
	withArgs(t, "-config", filepath.Join(t.TempDir(), "absent.json"))

	c := &Config{}
	require.Panics(t, func() { parseJson(c) })
}

func TestParseJson_InvalidJsonPanics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	withArgs(t, "-c", path)

	c := &Config{}
	require.Panics(t, func() { parseJson(c) })
}
