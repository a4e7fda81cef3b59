// Package upload persists computed results to S3-compatible object storage
// with bounded, classified retries and returns a resolvable reference.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/speedrpc/internal/common"
	"github.com/dmitrijs2005/speedrpc/internal/logging"
)

// Options configures an Uploader.
//
// MaxAttempts bounds the total number of upload attempts for one job.
// BaseDelay is the first backoff interval; subsequent delays grow
// exponentially with jitter. AttemptTimeout bounds each individual attempt.
type Options struct {
	User         string
	Password     string
	Bucket       string
	Region       string
	BaseEndpoint string

	MaxAttempts    uint64
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
	PresignExpiry  time.Duration
}

// Reference is an immutable, externally resolvable locator for an uploaded
// object.
type Reference struct {
	Key string
	URL string
}

// Uploader is the retrying upload pipeline.
type Uploader struct {
	client  *s3.Client
	presign *s3.PresignClient
	opts    Options
	logger  logging.Logger
}

// New builds an Uploader for an S3-compatible backend using static
// credentials and a custom base endpoint. The SDK's own retryer is disabled:
// the pipeline owns the retry budget.
func New(ctx context.Context, opts Options, logger logging.Logger) (*Uploader, error) {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 10
	}
	if opts.BaseDelay == 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.AttemptTimeout == 0 {
		opts.AttemptTimeout = 30 * time.Second
	}
	if opts.PresignExpiry == 0 {
		opts.PresignExpiry = 24 * time.Hour
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.User,
			opts.Password,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		o.UsePathStyle = true
		o.RetryMaxAttempts = 1
	})

	return &Uploader{
		client:  client,
		presign: s3.NewPresignClient(client),
		opts:    opts,
		logger:  logger,
	}, nil
}

// Upload writes content to the given destination key and returns a presigned
// reference to it.
//
// Idempotence policy: a destination key maps to exactly one object. Uploading
// to the same key again overwrites it deterministically, so a redelivered
// request converges on the same artifact instead of producing divergent
// copies.
//
// Retryable failures (network, throttling, 5xx) are retried with exponential
// backoff and jitter up to MaxAttempts. Validation failures are terminal and
// do not consume the retry budget.
func (u *Uploader) Upload(ctx context.Context, content []byte, destination string) (*Reference, error) {
	backoff := retry.NewExponential(u.opts.BaseDelay)
	backoff = retry.WithJitter(u.opts.BaseDelay/2, backoff)
	backoff = retry.WithMaxRetries(u.opts.MaxAttempts-1, backoff)

	attempts := 0

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, u.opts.AttemptTimeout)
		defer cancel()

		_, err := u.client.PutObject(attemptCtx, &s3.PutObjectInput{
			Bucket: aws.String(u.opts.Bucket),
			Key:    aws.String(destination),
			Body:   bytes.NewReader(content),
		})
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			u.logger.Warn(ctx, "upload attempt failed", "destination", destination, "attempt", attempts, "error", err)
			return retry.RetryableError(err)
		}
		return fmt.Errorf("%w: %v", common.ErrContentRejected, err)
	})
	if err != nil {
		if errors.Is(err, common.ErrContentRejected) {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %d attempts: %v", common.ErrStorageExhausted, attempts, err)
	}

	u.logger.Info(ctx, "uploaded", "destination", destination, "attempts", attempts)

	url, err := u.presignedGetURL(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("%w: presign: %v", common.ErrStorageExhausted, err)
	}

	return &Reference{Key: destination, URL: url}, nil
}

func (u *Uploader) presignedGetURL(ctx context.Context, key string) (string, error) {
	req, err := u.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.opts.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(u.opts.PresignExpiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
