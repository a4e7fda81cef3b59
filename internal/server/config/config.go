// Package config handles configuration for the speed worker daemon,
// including defaults, environment variables, JSON overlay, and command-line
// flags.
package config

import "time"

// Config holds runtime settings for the worker.
//
// Fields:
//   - RabbitUser/RabbitPassword/RabbitHost/RabbitPort: broker credentials.
//   - QueueName: the durable request queue the server owns.
//   - PublishAttempts / PublishBaseDelay: bounded retry for broker publishes.
//   - S3User / S3Password / S3Bucket / S3Region / S3BaseEndpoint: object
//     storage settings for the upload pipeline.
//   - UploadMaxAttempts: retry budget for one upload job.
//   - ReportBaseURL / ReportPath: companion HTTP surface the worker fetches
//     rendered reports from.
//   - TelegramToken / AdminChatID: administrative notification target; when
//     the token is empty, notifications go to the log.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	RabbitUser     string
	RabbitPassword string
	RabbitHost     string
	RabbitPort     int

	QueueName        string
	PublishAttempts  uint64
	PublishBaseDelay time.Duration

	S3User            string
	S3Password        string
	S3Bucket          string
	S3Region          string
	S3BaseEndpoint    string
	UploadMaxAttempts uint64

	ReportBaseURL string
	ReportPath    string

	TelegramToken string
	AdminChatID   int64

	LogLevel string
}

// LoadDefaults populates Config with development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.RabbitUser = "guest"
	c.RabbitPassword = "guest"
	c.RabbitHost = "127.0.0.1"
	c.RabbitPort = 5672
	c.QueueName = "rpc_queue"
	c.PublishAttempts = 5
	c.PublishBaseDelay = 200 * time.Millisecond
	c.S3User = "admin"
	c.S3Password = "secretpassword"
	c.S3Bucket = "reports"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.UploadMaxAttempts = 10
	c.ReportBaseURL = "http://127.0.0.1:8010"
	c.ReportPath = "/api/v1/report"
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from environment variables (including an optional .env file), an optional
// JSON file, and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
