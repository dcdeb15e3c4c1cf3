package util

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/spf13/viper"
	"github.com/tilinna/clock"
)

const (
	paramRetryPolicy   = "retry-policy"
	paramRetryInterval = "retry-interval"
	paramRetryMaxCount = "retry-max-count"
	paramRetryMaxTime  = "retry-max-time"
)

// RetryPolicy names how the wait between attempts evolves.
type RetryPolicy string

const (
	RetryDisabled    RetryPolicy = "disabled"
	RetryConstant    RetryPolicy = "constant"
	RetryExponential RetryPolicy = "exponential"
)

// RetryConfig describes how a failing operation is retried.
type RetryConfig struct {
	Policy RetryPolicy
	// Interval between attempts. Only used by RetryConstant, exponential starts from
	// backoff.DefaultInitialInterval.
	Interval time.Duration
	// MaxCount limits the number of retries, 0 is unlimited.
	MaxCount int64
	// MaxTime limits the total time spent retrying.
	MaxTime time.Duration
}

// DefaultRetryConfig is used for any setting absent from configuration.
var DefaultRetryConfig = RetryConfig{
	Policy:   RetryExponential,
	Interval: time.Second,
	MaxTime:  15 * time.Second,
}

type BackoffFactory func() backoff.BackOff

// NewBackoffFactory returns a factory of randomized exponential backoffs. A multiplier
// of 1 keeps the interval constant while still honouring maxElapsedTime.
func NewBackoffFactory(multiplier float64, maxElapsedTime, interval time.Duration, maxRetries uint64) BackoffFactory {
	return func() backoff.BackOff {
		bo := backoff.NewExponentialBackOff()
		bo.Multiplier = multiplier
		bo.MaxElapsedTime = maxElapsedTime
		bo.InitialInterval = interval
		bo.Reset() // picks up InitialInterval
		if maxRetries == 0 {
			return bo
		}
		return backoff.WithMaxRetries(bo, maxRetries)
	}
}

// ReadRetryConfig reads the retry-* keys of v, falling back to DefaultRetryConfig.
func ReadRetryConfig(v *viper.Viper) (RetryConfig, error) {
	v.SetDefault(paramRetryPolicy, string(DefaultRetryConfig.Policy))
	v.SetDefault(paramRetryInterval, DefaultRetryConfig.Interval)
	v.SetDefault(paramRetryMaxCount, DefaultRetryConfig.MaxCount)
	v.SetDefault(paramRetryMaxTime, DefaultRetryConfig.MaxTime)

	rc := RetryConfig{
		Policy:   RetryPolicy(v.GetString(paramRetryPolicy)),
		Interval: v.GetDuration(paramRetryInterval),
		MaxCount: v.GetInt64(paramRetryMaxCount),
		MaxTime:  v.GetDuration(paramRetryMaxTime),
	}
	if err := rc.Validate(); err != nil {
		return RetryConfig{}, err
	}
	return rc, nil
}

func (rc RetryConfig) Validate() error {
	switch {
	case rc.Interval <= 0:
		return fmt.Errorf("%s must be positive, got %v", paramRetryInterval, rc.Interval)
	case rc.MaxCount < 0:
		return fmt.Errorf("%s must not be negative, got %d", paramRetryMaxCount, rc.MaxCount)
	case rc.MaxTime <= 0:
		return fmt.Errorf("%s must be positive, got %v", paramRetryMaxTime, rc.MaxTime)
	}
	switch rc.Policy {
	case RetryDisabled, RetryConstant, RetryExponential:
		return nil
	}
	return fmt.Errorf("unknown %s %q, want %s, %s or %s", paramRetryPolicy, rc.Policy, RetryDisabled, RetryConstant, RetryExponential)
}

// Factory returns a BackoffFactory for the policy. The config must be valid.
func (rc RetryConfig) Factory() BackoffFactory {
	switch rc.Policy {
	case RetryDisabled:
		return func() backoff.BackOff { return &backoff.StopBackOff{} }
	case RetryConstant:
		return NewBackoffFactory(1, rc.MaxTime, rc.Interval, uint64(rc.MaxCount))
	default:
		return NewBackoffFactory(backoff.DefaultMultiplier, rc.MaxTime, backoff.DefaultInitialInterval, uint64(rc.MaxCount))
	}
}

// Retry calls op until it succeeds, the backoff gives up or ctx is done. Waits use the clock from ctx.
// notify, if not nil, is called after each failure that will be retried.
func Retry(ctx context.Context, bo backoff.BackOff, op func() error, notify func(err error, next time.Duration)) error {
	for {
		err := op()
		if err == nil {
			return nil
		}

		next := bo.NextBackOff()
		if next == backoff.Stop {
			return err
		}
		if notify != nil {
			notify(err, next)
		}

		timer := clock.NewTimer(ctx, next)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
