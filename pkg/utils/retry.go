package utils

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// StatusError is returned by HTTP backends for non-2xx responses so that
// retry classification does not depend on error strings.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, Truncate(strings.TrimSpace(e.Body), 200))
}

// NewStatusError builds a StatusError from a response, reading Retry-After.
func NewStatusError(service string, resp *http.Response, body []byte) *StatusError {
	se := &StatusError{Service: service, StatusCode: resp.StatusCode, Body: string(body)}
	if d, ok := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
		se.RetryAfter = d
	}
	return se
}

type RetryReason string

const (
	RetryReasonNone      RetryReason = ""
	RetryReasonTimeout   RetryReason = "timeout"
	RetryReasonRateLimit RetryReason = "rate_limit"
	RetryReasonServer    RetryReason = "server_error"
	RetryReasonPermanent RetryReason = "permanent"
)

// RetryDecision captures whether an upstream error should be retried.
type RetryDecision struct {
	Retryable  bool
	Reason     RetryReason
	Status     int
	RetryAfter time.Duration
}

// RetryNotice is emitted before waiting for the next retry attempt.
type RetryNotice struct {
	Attempt  int // failed attempt number, starts at 1
	Total    int
	Decision RetryDecision
	Delay    time.Duration
	Err      error
}

type RetryNotifyFunc func(RetryNotice)
type RetrySleepFunc func(context.Context, time.Duration) error
type RetryJitterFunc func(time.Duration) time.Duration

// RetryPolicy defines per-attempt timeouts and backoffs for retry execution.
// One attempt is made per entry in AttemptTimeouts.
type RetryPolicy struct {
	AttemptTimeouts []time.Duration
	Backoffs        []time.Duration
	MaxElapsed      time.Duration
	MaxJitter       time.Duration
	Notify          RetryNotifyFunc
	Sleep           RetrySleepFunc
	Jitter          RetryJitterFunc
}

// NewRetryPolicy builds a policy of attempts tries with a fixed per-attempt
// timeout and an exponential backoff starting at backoff.
func NewRetryPolicy(attempts int, attemptTimeout, backoff, maxElapsed time.Duration) RetryPolicy {
	if attempts < 1 {
		attempts = 1
	}
	p := RetryPolicy{
		AttemptTimeouts: make([]time.Duration, attempts),
		Backoffs:        make([]time.Duration, 0, attempts-1),
		MaxElapsed:      maxElapsed,
		MaxJitter:       backoff / 4,
	}
	for i := range p.AttemptTimeouts {
		p.AttemptTimeouts[i] = attemptTimeout
	}
	for i := 0; i < attempts-1; i++ {
		p.Backoffs = append(p.Backoffs, backoff<<i)
	}
	return p
}

// ClassifyRetryDecision decides retryability: timeouts, 408, 429 and 5xx are
// transient; everything else (auth, quota, malformed input) is permanent.
func ClassifyRetryDecision(err error) RetryDecision {
	if err == nil {
		return RetryDecision{}
	}

	var se *StatusError
	if errors.As(err, &se) {
		d := RetryDecision{Status: se.StatusCode, RetryAfter: se.RetryAfter}
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			d.Retryable, d.Reason = true, RetryReasonRateLimit
		case se.StatusCode == http.StatusRequestTimeout:
			d.Retryable, d.Reason = true, RetryReasonTimeout
		case se.StatusCode >= 500:
			d.Retryable, d.Reason = true, RetryReasonServer
		default:
			d.Reason = RetryReasonPermanent
		}
		return d
	}

	if errors.Is(err, context.Canceled) {
		return RetryDecision{Reason: RetryReasonPermanent}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return RetryDecision{Retryable: true, Reason: RetryReasonTimeout}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return RetryDecision{Retryable: true, Reason: RetryReasonTimeout}
	}

	return RetryDecision{Reason: RetryReasonPermanent}
}

// DoWithRetry executes fn with retry according to policy.
func DoWithRetry[T any](ctx context.Context, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if len(policy.AttemptTimeouts) == 0 {
		return fn(ctx)
	}

	runCtx := ctx
	cancelRun := func() {}
	if policy.MaxElapsed > 0 {
		runCtx, cancelRun = context.WithTimeout(ctx, policy.MaxElapsed)
	}
	defer cancelRun()

	sleepFn := policy.Sleep
	if sleepFn == nil {
		sleepFn = sleepWithCtx
	}
	jitterFn := policy.Jitter
	if jitterFn == nil {
		jitterFn = defaultJitter
	}

	var lastErr error
	total := len(policy.AttemptTimeouts)
	for attempt := 0; attempt < total; attempt++ {
		if err := runCtx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		attemptCtx := runCtx
		cancelAttempt := func() {}
		if timeout := policy.AttemptTimeouts[attempt]; timeout > 0 {
			attemptCtx, cancelAttempt = context.WithTimeout(runCtx, timeout)
		}

		val, err := fn(attemptCtx)
		cancelAttempt()
		if err == nil {
			return val, nil
		}
		lastErr = err

		if attempt == total-1 {
			break
		}
		// The parent giving up is not a reason to try again.
		if ctx.Err() != nil {
			break
		}

		decision := ClassifyRetryDecision(err)
		if !decision.Retryable {
			break
		}

		delay := retryDelay(policy, attempt, decision, jitterFn)
		if policy.Notify != nil {
			policy.Notify(RetryNotice{
				Attempt:  attempt + 1,
				Total:    total,
				Decision: decision,
				Delay:    delay,
				Err:      err,
			})
		}

		if delay > 0 {
			if err := sleepFn(runCtx, delay); err != nil {
				return zero, err
			}
		}
	}

	return zero, lastErr
}

func retryDelay(policy RetryPolicy, attempt int, decision RetryDecision, jitterFn RetryJitterFunc) time.Duration {
	if decision.RetryAfter > 0 {
		return decision.RetryAfter
	}
	if attempt < 0 || attempt >= len(policy.Backoffs) {
		return 0
	}

	base := policy.Backoffs[attempt]
	if base <= 0 || policy.MaxJitter <= 0 {
		return base
	}

	jitter := jitterFn(policy.MaxJitter)
	if jitter < 0 {
		jitter = 0
	}
	if jitter > policy.MaxJitter {
		jitter = policy.MaxJitter
	}
	return base + jitter
}

func sleepWithCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func defaultJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	//nolint:gosec // Used only for retry backoff jitter.
	return time.Duration(rand.Int63n(int64(max) + 1))
}

func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d, true
		}
	}
	return 0, false
}
