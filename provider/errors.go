package provider

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net"
	"time"

	"google.golang.org/api/googleapi"
)

// ErrorClass represents whether a fetch should be retried or not.
type ErrorClass int

const (
	// ErrorClassRetryable indicates the fetch should be retried (transient errors).
	ErrorClassRetryable ErrorClass = iota
	// ErrorClassFatal indicates the fetch should not be retried (permanent errors).
	ErrorClassFatal
)

func (ec ErrorClass) String() string {
	if ec == ErrorClassFatal {
		return "fatal"
	}
	return "retryable"
}

type statusCoder interface{ StatusCode() int }

// ClassifyError sorts fetch errors into retryable and fatal.
//
// Fatal: missing media, unsupported autoplay, unknown providers, 4xx other than 408/429, and
// undecodable payloads. Retryable: network errors, timeouts, 408, 429 and 5xx. Context
// cancellation is fatal because retrying cannot succeed.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassFatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassFatal
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAutoplayUnsupported) ||
		errors.Is(err, ErrUnknownProvider) || errors.Is(err, ErrNoMedia) {
		return ErrorClassFatal
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return classifyStatus(sc.StatusCode())
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return classifyStatus(gerr.Code)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassRetryable
	}
	return ErrorClassFatal
}

func classifyStatus(code int) ErrorClass {
	if code == 408 || code == 429 || code >= 500 {
		return ErrorClassRetryable
	}
	return ErrorClassFatal
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool { return ClassifyError(err) == ErrorClassRetryable }

// retry runs fn up to attempts times with exponential backoff and jitter while the error stays
// retryable.
func retry[T any](ctx context.Context, attempts int, base time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := base * time.Duration(1<<attempt)
			if base > 0 {
				backoff += time.Duration(rand.Int64N(int64(base)))
			}
			slog.Warn("retrying fetch", slog.String("op", op), slog.Int("attempt", attempt), slog.Duration("backoff", backoff), slog.Any("err", err))
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
		}
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if !IsRetryable(err) {
			return zero, err
		}
	}
	return zero, err
}
