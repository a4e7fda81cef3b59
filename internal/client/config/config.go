// Package config handles configuration for the one-shot RPC caller:
// defaults, environment variables, and command-line flags.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/speedrpc/internal/flagx"
)

// Config holds caller-side settings: broker credentials, the request queue
// name, and the per-call timeout.
type Config struct {
	RabbitUser     string
	RabbitPassword string
	RabbitHost     string
	RabbitPort     int

	QueueName string
	Timeout   time.Duration

	LogLevel string
}

func (c *Config) LoadDefaults() {
	c.RabbitUser = "guest"
	c.RabbitPassword = "guest"
	c.RabbitHost = "127.0.0.1"
	c.RabbitPort = 5672
	c.QueueName = "rpc_queue"
	c.Timeout = 30 * time.Second
	c.LogLevel = "info"
}

// LoadConfig builds a Config from defaults, environment variables (including
// an optional .env file), and command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

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
	setString("LOG_LEVEL", &config.LogLevel)

	if v, ok := os.LookupEnv("RABBIT_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			config.RabbitPort = port
		}
	}
	if v, ok := os.LookupEnv("RPC_CALL_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			config.Timeout = d
		}
	}
}

// parseFlags populates Config from command-line flags:
//
//	-q string   request queue name
//	-r string   broker host
//	-p int      broker port
//	-w int      call timeout, seconds
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-q", "-r", "-p", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.QueueName, "q", config.QueueName, "request queue name")
	fs.StringVar(&config.RabbitHost, "r", config.RabbitHost, "broker host")
	rabbitPort := fs.Int("p", config.RabbitPort, "broker port")
	timeoutSec := fs.Int("w", int(config.Timeout.Seconds()), "call timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.RabbitPort = *rabbitPort
	config.Timeout = time.Duration(*timeoutSec) * time.Second
}
