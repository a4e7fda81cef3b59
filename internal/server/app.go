// Package server initializes and runs the speed worker daemon. It connects
// the broker transport, the upload pipeline, the report worker and the admin
// notification channel, and handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/speedrpc/internal/admin"
	"github.com/dmitrijs2005/speedrpc/internal/logging"
	"github.com/dmitrijs2005/speedrpc/internal/report"
	rpcserver "github.com/dmitrijs2005/speedrpc/internal/rpc/server"
	"github.com/dmitrijs2005/speedrpc/internal/server/config"
	"github.com/dmitrijs2005/speedrpc/internal/transport"
	"github.com/dmitrijs2005/speedrpc/internal/upload"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	ch       *transport.Channel
	notifier *admin.Coalescer
	srv      *rpcserver.RPCServer
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, logging.ParseLevel(cfg.LogLevel))

	var base admin.Notifier
	if cfg.TelegramToken != "" && cfg.AdminChatID != 0 {
		base = admin.NewTelegramNotifier(cfg.TelegramToken, cfg.AdminChatID, "")
	} else {
		base = &admin.LogNotifier{Logger: logger}
	}
	notifier := admin.NewCoalescer(base, logger)

	ch, err := dialBroker(ctx, cfg, notifier, logger)
	if err != nil {
		return nil, err
	}

	uploader, err := upload.New(ctx, upload.Options{
		User:         cfg.S3User,
		Password:     cfg.S3Password,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
		MaxAttempts:  cfg.UploadMaxAttempts,
	}, logger)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("upload pipeline init error: %w", err)
	}

	worker := report.NewService(cfg.ReportBaseURL, cfg.ReportPath, logger)

	srv := rpcserver.New(ch, cfg.QueueName, worker, uploader, notifier, logger)

	return &App{config: cfg, logger: logger, ch: ch, notifier: notifier, srv: srv}, nil
}

// dialBroker connects to the broker, retrying with backoff. A connection that
// stays down long enough to exhaust the retries is a systemic outage and is
// reported to the admin channel once.
func dialBroker(ctx context.Context, cfg *config.Config, notifier *admin.Coalescer, logger logging.Logger) (*transport.Channel, error) {
	url := transport.URL(cfg.RabbitUser, cfg.RabbitPassword, cfg.RabbitHost, cfg.RabbitPort)

	var ch *transport.Channel

	backoff := retry.WithMaxRetries(5, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		ch, err = transport.Dial(url, cfg.PublishAttempts, cfg.PublishBaseDelay, logger)
		if err != nil {
			logger.Warn(ctx, "broker dial failed, will retry", "host", cfg.RabbitHost, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		notifier.Fail(ctx, rpcserver.OutageBrokerPublish, fmt.Sprintf("broker unreachable at %s:%d: %v", cfg.RabbitHost, cfg.RabbitPort, err))
		return nil, err
	}
	notifier.Recover(rpcserver.OutageBrokerPublish)

	return ch, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting worker", "queue", app.config.QueueName)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.srv.Serve(ctx); err != nil {
			app.logger.Error(ctx, "serve stopped", "error", err)
			app.notifier.Fail(ctx, rpcserver.OutageBrokerPublish, fmt.Sprintf("rpc server stopped: %v", err))
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.ch.Close(); err != nil {
		app.logger.Error(ctx, "transport close error", "error", err)
	}

	app.logger.Info(ctx, "worker stopped")
}
