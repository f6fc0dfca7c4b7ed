package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds the time a single lookup may take: at most Attempts
// tries, each under its own Timeout, separated by exponential backoff.
type RetryPolicy struct {
	Attempts  int           `json:"attempts" yaml:"attempts"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`
	MaxDelay  time.Duration `json:"max_delay" yaml:"max_delay"`
}

// DefaultRetryPolicy returns the policy used when nothing is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		Timeout:   10 * time.Second,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  8 * time.Second,
	}
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	return retry.WithMaxRetries(uint64(p.attempts()-1), b) //nolint:gosec // G115: attempts is at least 1
}

func (p RetryPolicy) attempts() int { return max(1, p.Attempts) }

// NetworkError is returned once a transient failure persisted through every
// attempt. It matches ErrNetworkFailure.
type NetworkError struct {
	Provider ProviderName
	Attempts int
	Cause    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("provider %s: giving up after %d attempt(s): %v", e.Provider, e.Attempts, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// Is lets errors.Is match ErrNetworkFailure.
func (e *NetworkError) Is(target error) bool { return target == ErrNetworkFailure }

// Retry runs fn under policy. Before every attempt it waits on the
// provider's rate limiter using ctx, so queueing does not eat into the
// attempt timeout. Transient failures are retried; anything else is
// returned at once. When attempts run out the last failure comes back
// wrapped in a *NetworkError.
func Retry[T any](ctx context.Context, limiter *RateLimiterMap, name ProviderName, policy RetryPolicy, logger *slog.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		result T
		tries  int
		last   error
	)
	total := policy.attempts()

	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		tries++
		if limiter != nil {
			if err := limiter.Wait(ctx, name); err != nil {
				last = &ErrProviderUnavailable{Provider: name, Cause: fmt.Errorf("rate limiter: %w", err)}
				return last
			}
		}

		attemptCtx := ctx
		if policy.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
			defer cancel()
		}

		v, err := fn(attemptCtx)
		if err == nil {
			result = v
			return nil
		}
		last = err
		if ctx.Err() != nil || !IsTransient(err) {
			return err
		}

		logger.Debug("transient provider failure",
			slog.String("provider", string(name)),
			slog.Int("attempt", tries),
			slog.Int("attempts", total),
			slog.String("error", err.Error()))

		var unavailable *ErrProviderUnavailable
		if tries < total && errors.As(err, &unavailable) && unavailable.RetryAfter > 0 {
			wait := unavailable.RetryAfter
			if policy.MaxDelay > 0 {
				wait = min(wait, policy.MaxDelay)
			}
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return err
			case <-t.C:
			}
		}
		return retry.RetryableError(err)
	})
	if err == nil {
		return result, nil
	}

	var zero T
	if last != nil && IsTransient(last) {
		return zero, &NetworkError{Provider: name, Attempts: tries, Cause: last}
	}
	if last != nil {
		return zero, last
	}
	return zero, err
}

// IsTransient reports whether err is worth retrying: provider unavailability
// (timeouts, connection errors, 429 and 5xx responses) or a network error.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var unavailable *ErrProviderUnavailable
	if errors.As(err, &unavailable) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
