package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/speedrpc/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-q string   request queue name
//	-r string   broker host
//	-p int      broker port
//	-b string   S3 bucket name
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-m int      max upload attempts
//	-u string   report base URL
//	-l string   log level
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-q", "-r", "-p", "-b", "-e", "-m", "-u", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.QueueName, "q", config.QueueName, "request queue name")
	fs.StringVar(&config.RabbitHost, "r", config.RabbitHost, "broker host")
	rabbitPort := fs.Int("p", config.RabbitPort, "broker port")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	maxAttempts := fs.Int("m", int(config.UploadMaxAttempts), "max upload attempts")
	fs.StringVar(&config.ReportBaseURL, "u", config.ReportBaseURL, "report base URL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.RabbitPort = *rabbitPort
	if *maxAttempts > 0 {
		config.UploadMaxAttempts = uint64(*maxAttempts)
	}
}
