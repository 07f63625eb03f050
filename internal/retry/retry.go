// Package retry applies exponential backoff to transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aminsmd/multimodal-transcription/internal/config"
	"github.com/aminsmd/multimodal-transcription/internal/services"
)

// Policy describes how many times an operation runs and how long to wait
// between attempts. Delay before retry n (1-based) is
// min(BaseDelay * Factor^(n-1), MaxDelay).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
	MaxDelay    time.Duration
}

// FromConfig converts the retry configuration section into a Policy.
func FromConfig(cfg config.Retry) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   time.Duration(cfg.BaseDelayMS) * time.Millisecond,
		Factor:      cfg.BackoffFactor,
		MaxDelay:    time.Duration(cfg.MaxDelaySeconds) * time.Second,
	}
}

// Delay returns the wait before retry number attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(factor, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// RetryAfterHinter is implemented by errors that carry a server-requested delay.
type RetryAfterHinter interface {
	RetryAfter() time.Duration
}

// Notify is invoked before each wait with the failed attempt number.
type Notify func(err error, attempt int, delay time.Duration)

type options struct {
	classify func(error) bool
	notify   Notify
	sleeper  func(time.Duration)
}

// Option customizes Do.
type Option func(*options)

// WithClassifier overrides which errors are retried (defaults to services.IsRetryable).
func WithClassifier(fn func(error) bool) Option {
	return func(o *options) {
		if fn != nil {
			o.classify = fn
		}
	}
}

// WithNotify registers a callback fired before every retry wait.
func WithNotify(fn Notify) Option {
	return func(o *options) {
		o.notify = fn
	}
}

// WithSleeper replaces real timers (useful for tests).
func WithSleeper(fn func(time.Duration)) Option {
	return func(o *options) {
		o.sleeper = fn
	}
}

// Do runs op until it succeeds, fails with a non-retryable error, exhausts the
// policy, or ctx is cancelled. The last error is returned unchanged when it is
// not retryable; exhaustion wraps it with the attempt count.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error, opts ...Option) error {
	o := options{classify: services.IsRetryable}
	for _, opt := range opts {
		opt(&o)
	}
	attempts := policy.attempts()
	hinted := &hintBackOff{delegate: exponential(policy), max: policy.MaxDelay}
	b := backoff.WithContext(backoff.WithMaxRetries(hinted, uint64(attempts-1)), ctx)

	attempt := 0
	var lastRetryable error
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !o.classify(err) {
			return backoff.Permanent(err)
		}
		var hint RetryAfterHinter
		if errors.As(err, &hint) {
			hinted.hint = hint.RetryAfter()
		}
		lastRetryable = err
		return err
	}
	notify := func(err error, delay time.Duration) {
		if o.notify != nil {
			o.notify(err, attempt, delay)
		}
	}

	var err error
	if o.sleeper != nil {
		err = backoff.RetryNotifyWithTimer(operation, b, notify, &sleeperTimer{sleep: o.sleeper})
	} else {
		err = backoff.RetryNotify(operation, b, notify)
	}
	if err == nil {
		return nil
	}
	if lastRetryable != nil && errors.Is(err, lastRetryable) && attempt >= attempts {
		return fmt.Errorf("failed after %d attempts: %w", attempt, err)
	}
	return err
}

func exponential(p Policy) *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseDelay
	eb.Multiplier = p.Factor
	if eb.Multiplier < 1 {
		eb.Multiplier = 1
	}
	eb.RandomizationFactor = 0
	eb.MaxInterval = p.MaxDelay
	if eb.MaxInterval <= 0 {
		eb.MaxInterval = time.Duration(math.MaxInt64)
	}
	eb.MaxElapsedTime = 0
	eb.Reset()
	return eb
}

// hintBackOff substitutes a Retry-After hint for the computed delay once.
type hintBackOff struct {
	delegate backoff.BackOff
	max      time.Duration
	hint     time.Duration
}

func (h *hintBackOff) NextBackOff() time.Duration {
	next := h.delegate.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if h.hint > 0 {
		next = h.hint
		h.hint = 0
		if h.max > 0 && next > h.max {
			next = h.max
		}
	}
	return next
}

func (h *hintBackOff) Reset() {
	h.hint = 0
	h.delegate.Reset()
}

type sleeperTimer struct {
	sleep func(time.Duration)
	c     chan time.Time
}

func (t *sleeperTimer) Start(d time.Duration) {
	t.sleep(d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *sleeperTimer) Stop() {}

func (t *sleeperTimer) C() <-chan time.Time {
	return t.c
}
