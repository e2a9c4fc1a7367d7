// Package retry re-runs store transactions that lost an optimistic commit race.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	pkgerrors "ontology/pkg/errors"
)

// Config defines retry behavior configuration
type Config struct {
	MaxAttempts   int           // total attempts, the first one included
	BaseDelay     time.Duration // delay before the second attempt
	MaxDelay      time.Duration // cap on any single delay
	BackoffFactor float64       // exponential backoff multiplier
	JitterFactor  float64       // fraction of the delay randomized in both directions
}

// DefaultConfig returns the retry configuration used for node transactions
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   5,
		BaseDelay:     50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// IsRetryable reports whether a failed attempt may be run again: commit conflicts
// and throttling by DynamoDB.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if pkgerrors.IsConcurrentModification(err) {
		return true
	}
	return isAWSRetryableError(err)
}

func isAWSRetryableError(err error) bool {
	var throughput *types.ProvisionedThroughputExceededException
	var limit *types.RequestLimitExceeded
	var internal *types.InternalServerError
	var conflict *types.TransactionConflictException
	var inProgress *types.TransactionInProgressException
	switch {
	case errors.As(err, &throughput), errors.As(err, &limit), errors.As(err, &internal),
		errors.As(err, &conflict), errors.As(err, &inProgress):
		return true
	}

	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		switch coded.ErrorCode() {
		case "ServiceUnavailable", "Throttling", "ThrottlingException", "RequestTimeout":
			return true
		}
	}
	return false
}

// Operation is one attempt; attempt counts from 1.
type Operation func(attempt int) error

// Do runs op until it succeeds, fails with a non-retryable error, or the attempt
// budget runs out. An exhausted budget is reported as ErrTransactionFailed wrapping
// the last error.
func Do(ctx context.Context, cfg Config, op Operation) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(attempt + 1)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(cfg.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return pkgerrors.ErrTransactionFailed.
		WithCause(lastErr).
		WithDetail("attempts", cfg.MaxAttempts)
}

func (c Config) delay(attempt int) time.Duration {
	backoff := float64(c.BaseDelay) * math.Pow(c.BackoffFactor, float64(attempt))
	jitter := backoff * c.JitterFactor * (rand.Float64() - 0.5) * 2
	d := time.Duration(backoff + jitter)
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	if d < 0 {
		d = 0
	}
	return d
}
