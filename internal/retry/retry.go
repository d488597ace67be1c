// Package retry implements the RetryPolicy interface and its
// deadline-bounded default (spec §4.5).
//
// Grounded on internal/ratelimit/distributed.go's shape: a small
// interface (there, Limiter; here, Policy) with one production
// implementation selected by config, each call taking a (ctx, key)-like
// tuple and returning a decision.
package retry

import (
	"math/rand"
	"time"

	colerrors "github.com/rat-data/colstore/internal/errors"
)

// Decision is what a Policy returns for one failed attempt.
type Decision struct {
	Retry      bool
	RetryAfter time.Duration
}

// stop is the zero-value-friendly "do not retry" decision.
var stop = Decision{}

// Policy decides whether a failed API call should be retried (spec
// §4.5: "receives (api, error, attempt_no, elapsed) and returns either
// 'stop' or 'retry after duration'").
type Policy interface {
	Decide(api string, err *colerrors.Error, attemptNo int, elapsed time.Duration) Decision
}

// Config configures DeadlineBoundedPolicy.
type Config struct {
	Deadline   time.Duration // default 10s
	BaseDelay  time.Duration // default 10ms
	MaxDelay   time.Duration // default 1s
}

// DefaultConfig returns spec §4.5's defaults: a 10s deadline with
// exponentially jittered backoff bounded by a small maximum.
func DefaultConfig() Config {
	return Config{Deadline: 10 * time.Second, BaseDelay: 10 * time.Millisecond, MaxDelay: 1 * time.Second}
}

// DeadlineBoundedPolicy retries while total elapsed time is below
// Deadline and the error is temporary, backing off exponentially with
// full jitter bounded by MaxDelay (spec §4.5).
type DeadlineBoundedPolicy struct {
	cfg Config
	rng *rand.Rand
}

// NewDeadlineBoundedPolicy creates the default policy. A zero Config
// uses DefaultConfig's values.
func NewDeadlineBoundedPolicy(cfg Config) *DeadlineBoundedPolicy {
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultConfig().Deadline
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig().BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig().MaxDelay
	}
	return &DeadlineBoundedPolicy{cfg: cfg, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (p *DeadlineBoundedPolicy) Decide(api string, err *colerrors.Error, attemptNo int, elapsed time.Duration) Decision {
	if err == nil || !err.IsTemporary() {
		return stop
	}
	if elapsed >= p.cfg.Deadline {
		return stop
	}
	delay := p.backoff(attemptNo)
	if elapsed+delay > p.cfg.Deadline {
		delay = p.cfg.Deadline - elapsed
	}
	return Decision{Retry: true, RetryAfter: delay}
}

// backoff computes exponential backoff with full jitter: a uniform
// random duration in [0, min(MaxDelay, BaseDelay*2^attemptNo)).
func (p *DeadlineBoundedPolicy) backoff(attemptNo int) time.Duration {
	cap := p.cfg.MaxDelay
	shifted := p.cfg.BaseDelay
	for i := 0; i < attemptNo && shifted < cap; i++ {
		shifted *= 2
	}
	if shifted > cap {
		shifted = cap
	}
	if shifted <= 0 {
		return 0
	}
	return time.Duration(p.rng.Int63n(int64(shifted)))
}

// NoRetryPolicy never retries, useful for tests and for callers that
// want to handle retries themselves.
type NoRetryPolicy struct{}

func (NoRetryPolicy) Decide(api string, err *colerrors.Error, attemptNo int, elapsed time.Duration) Decision {
	return stop
}
