package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/speedrpc/internal/flagx"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, non-zero fields are copied into the runtime
// Config.
type JsonConfig struct {
	RabbitUser        string `json:"rabbit_user"`
	RabbitPassword    string `json:"rabbit_password"`
	RabbitHost        string `json:"rabbit_host"`
	RabbitPort        int    `json:"rabbit_port"`
	QueueName         string `json:"queue_name"`
	S3User            string `json:"s3_user"`
	S3Password        string `json:"s3_password"`
	S3Bucket          string `json:"s3_bucket"`
	S3Region          string `json:"s3_region"`
	S3BaseEndpoint    string `json:"s3_base_endpoint"`
	UploadMaxAttempts uint64 `json:"upload_max_attempts"`
	ReportBaseURL     string `json:"report_base_url"`
	ReportPath        string `json:"report_path"`
	TelegramToken     string `json:"telegram_token"`
	AdminChatID       int64  `json:"admin_chat_id"`
	LogLevel          string `json:"log_level"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path is taken from the -c or -config flags; when
// neither is present, no file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString := func(v string, target *string) {
		if v != "" {
			*target = v
		}
	}

	setString(c.RabbitUser, &config.RabbitUser)
	setString(c.RabbitPassword, &config.RabbitPassword)
	setString(c.RabbitHost, &config.RabbitHost)
	setString(c.QueueName, &config.QueueName)
	setString(c.S3User, &config.S3User)
	setString(c.S3Password, &config.S3Password)
	setString(c.S3Bucket, &config.S3Bucket)
	setString(c.S3Region, &config.S3Region)
	setString(c.S3BaseEndpoint, &config.S3BaseEndpoint)
	setString(c.ReportBaseURL, &config.ReportBaseURL)
	setString(c.ReportPath, &config.ReportPath)
	setString(c.TelegramToken, &config.TelegramToken)
	setString(c.LogLevel, &config.LogLevel)

	if c.RabbitPort != 0 {
		config.RabbitPort = c.RabbitPort
	}
	if c.UploadMaxAttempts != 0 {
		config.UploadMaxAttempts = c.UploadMaxAttempts
	}
	if c.AdminChatID != 0 {
		config.AdminChatID = c.AdminChatID
	}
}
