package retry

import (
	"context"
	"math/rand"
	"time"
)

type Operation = func() error

type Config struct {
	MaxRetries    int
	BackoffFactor float64
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Jitter        time.Duration
	// Retryable reports whether err is worth another attempt. Nil retries everything.
	Retryable func(err error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// NewDefaultConfig gives 3 retries starting at one second.
func NewDefaultConfig() *Config {
	return &Config{
		MaxRetries:    3,
		BackoffFactor: 2,
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		Jitter:        100 * time.Millisecond,
	}
}

type Retrier struct {
	config *Config
}

func NewRetrier(config *Config) *Retrier {
	return &Retrier{
		config: config,
	}
}

func NewDefaultRetrier() *Retrier {
	return NewRetrier(NewDefaultConfig())
}

func (r *Retrier) Do(ctx context.Context, op Operation) error {
	var err error
	delay := r.config.InitialDelay
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}

		if attempt == r.config.MaxRetries {
			return err
		}
		if r.config.Retryable != nil && !r.config.Retryable(err) {
			return err
		}

		var jitter time.Duration
		if r.config.Jitter > 0 {
			jitter = time.Duration(rnd.Float64() * float64(r.config.Jitter))
		}
		nextDelay := delay + jitter
		if nextDelay > r.config.MaxDelay {
			nextDelay = r.config.MaxDelay + jitter
		}

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt+1, nextDelay, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(nextDelay):
		}

		delay = time.Duration(float64(delay) * r.config.BackoffFactor)
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}
	return err
}

// DoValue is Do for operations that produce a result.
func DoValue[T any](ctx context.Context, r *Retrier, op func() (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func() error {
		v, err := op()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
