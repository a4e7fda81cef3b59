package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables. A .env file in
// the working directory is loaded first, if present; real environment
// variables win over file values.
//
// Variables: RABBIT_USER, RABBIT_PASSWORD, RABBIT_HOST, RABBIT_PORT,
// RPC_QUEUE_NAME, S3_USER, S3_PASSWORD, S3_BUCKET, S3_REGION,
// S3_BASE_ENDPOINT, UPLOAD_MAX_ATTEMPTS, REPORT_BASE_URL, REPORT_PATH,
// TELEGRAM_TOKEN, ADMIN_CHAT_ID, LOG_LEVEL.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	setString := func(key string, target *string) {
		if v, ok := os.LookupEnv(key); ok {
			*target = v
		}
	}

	setString("RABBIT_USER", &config.RabbitUser)
	setString("RABBIT_PASSWORD", &config.RabbitPassword)
	setString("RABBIT_HOST", &config.RabbitHost)
	setString("RPC_QUEUE_NAME", &config.QueueName)
	setString("S3_USER", &config.S3User)
	setString("S3_PASSWORD", &config.S3Password)
	setString("S3_BUCKET", &config.S3Bucket)
	setString("S3_REGION", &config.S3Region)
	setString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	setString("REPORT_BASE_URL", &config.ReportBaseURL)
	setString("REPORT_PATH", &config.ReportPath)
	setString("TELEGRAM_TOKEN", &config.TelegramToken)
	setString("LOG_LEVEL", &config.LogLevel)

	if v, ok := os.LookupEnv("RABBIT_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			config.RabbitPort = port
		}
	}
	if v, ok := os.LookupEnv("UPLOAD_MAX_ATTEMPTS"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.UploadMaxAttempts = n
		}
	}
	if v, ok := os.LookupEnv("ADMIN_CHAT_ID"); ok {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.AdminChatID = id
		}
	}
}
