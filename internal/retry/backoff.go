package retry

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/skillgrid/internal/logging"
)

// RetryConfig configures retry behavior with exponential backoff
type RetryConfig struct {
	MaxRetries int           `json:"max_retries" koanf:"max_retries"`
	BaseDelay  time.Duration `json:"base_delay" koanf:"base_delay"`
	MaxDelay   time.Duration `json:"max_delay" koanf:"max_delay"`
	Multiplier float64       `json:"multiplier" koanf:"multiplier"`
	Jitter     bool          `json:"jitter" koanf:"jitter"`
	LogRetries bool          `json:"log_retries" koanf:"log_retries"`

	// ShouldRetry decides whether a failure is worth another attempt.
	// Nil retries every error.
	ShouldRetry func(error) bool `json:"-" koanf:"-"`
}

// RetryResult describes how an operation fared across attempts.
type RetryResult struct {
	Attempts      int           `json:"attempts"`
	TotalDuration time.Duration `json:"total_duration"`
	LastError     error         `json:"-"`
	Success       bool          `json:"success"`
	RetryReasons  []string      `json:"retry_reasons"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
		LogRetries: true,
	}
}

// LLMRetryConfig is tuned for inference calls and only retries transient
// failures.
func LLMRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2.5,
		Jitter:      true,
		LogRetries:  true,
		ShouldRetry: IsRetryableError,
	}
}

// RetryWithBackoff executes an operation with exponential backoff retry logic
func RetryWithBackoff(ctx context.Context, config RetryConfig, operation func() error, logger *logging.RunLogger) RetryResult {
	return RetryWithBackoffAndReason(ctx, config, func() (error, string) {
		err := operation()
		reason := "unknown_error"
		if err != nil {
			reason = err.Error()
		}
		return err, reason
	}, logger)
}

// RetryWithBackoffAndReason is RetryWithBackoff with a caller-supplied reason
// recorded for each failed attempt.
func RetryWithBackoffAndReason(ctx context.Context, config RetryConfig, operation func() (error, string), logger *logging.RunLogger) RetryResult {
	start := time.Now()
	result := RetryResult{RetryReasons: make([]string, 0)}
	logf := func(format string, args ...any) {
		if config.LogRetries {
			logger.Log(format, args...)
		}
	}
	finish := func(err error) RetryResult {
		result.LastError = err
		result.TotalDuration = time.Since(start)
		return result
	}

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result.Attempts = attempt + 1
		if err := ctx.Err(); err != nil {
			logf("Operation cancelled before attempt %d: %v", attempt+1, err)
			return finish(err)
		}

		err, reason := operation()
		if err == nil {
			result.Success = true
			if attempt > 0 {
				logf("Operation succeeded after %d retries (total duration: %v)", attempt, time.Since(start))
			}
			return finish(nil)
		}
		result.RetryReasons = append(result.RetryReasons, reason)

		if config.ShouldRetry != nil && !config.ShouldRetry(err) {
			logf("Operation failed with non-retryable error: %v", err)
			return finish(err)
		}
		if attempt >= config.MaxRetries {
			logf("Operation failed after %d attempts (total duration: %v): %v", result.Attempts, time.Since(start), err)
			return finish(err)
		}

		delay := calculateDelay(config, attempt)
		logf("Operation failed (attempt %d/%d): %v; waiting %v", attempt+1, config.MaxRetries+1, err, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			logf("Operation cancelled during backoff delay: %v", ctx.Err())
			return finish(ctx.Err())
		case <-timer.C:
		}
	}
	return finish(result.LastError)
}

// calculateDelay returns BaseDelay * Multiplier^attempt capped at MaxDelay,
// with up to ±10% jitter.
func calculateDelay(config RetryConfig, attempt int) time.Duration {
	delay := float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	if config.Jitter {
		jitterRange := delay * 0.1
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
		if delay < 0 {
			delay = float64(config.BaseDelay)
		}
	}
	return time.Duration(delay)
}

var retryableErrors = []string{
	"connection refused",
	"connection reset",
	"connection timeout",
	"timeout",
	"temporary failure",
	"service unavailable",
	"too many requests",
	"rate limit",
	"resource exhausted",
	"overloaded",
	"429",
	"500",
	"502",
	"503",
	"504",
	"529",
	"dns lookup failed",
	"no such host",
	"network unreachable",
	"broken pipe",
	"eof",
	"context deadline exceeded",
}

// IsRetryableError reports whether err looks like a transient transport or
// provider failure.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableErrors {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
