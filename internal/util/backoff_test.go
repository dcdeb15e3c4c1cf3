package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRetryConfigDefaults(t *testing.T) {
	t.Parallel()
	rc, err := ReadRetryConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, DefaultRetryConfig, rc)
}

func TestReadRetryConfig(t *testing.T) {
	t.Parallel()
	v := viper.New()
	v.Set(paramRetryPolicy, "constant")
	v.Set(paramRetryInterval, "250ms")
	v.Set(paramRetryMaxCount, 3)
	rc, err := ReadRetryConfig(v)
	require.NoError(t, err)
	assert.Equal(t, RetryConfig{
		Policy:   RetryConstant,
		Interval: 250 * time.Millisecond,
		MaxCount: 3,
		MaxTime:  DefaultRetryConfig.MaxTime,
	}, rc)
}

func TestRetryConfigValidate(t *testing.T) {
	t.Parallel()
	valid := RetryConfig{Policy: RetryConstant, Interval: time.Second, MaxTime: time.Second}
	tests := map[string]struct {
		mutate func(*RetryConfig)
		param  string
	}{
		"negative interval": {func(rc *RetryConfig) { rc.Interval = -time.Second }, paramRetryInterval},
		"zero interval":     {func(rc *RetryConfig) { rc.Interval = 0 }, paramRetryInterval},
		"negative count":    {func(rc *RetryConfig) { rc.MaxCount = -1 }, paramRetryMaxCount},
		"negative max time": {func(rc *RetryConfig) { rc.MaxTime = -time.Second }, paramRetryMaxTime},
		"unknown policy":    {func(rc *RetryConfig) { rc.Policy = "sometimes" }, paramRetryPolicy},
	}
	require.NoError(t, valid.Validate())
	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			rc := valid
			tc.mutate(&rc)
			err := rc.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.param)
		})
	}
}

func TestDisabledPolicyStopsImmediately(t *testing.T) {
	t.Parallel()
	bo := RetryConfig{Policy: RetryDisabled, Interval: time.Second, MaxTime: time.Second}.Factory()()
	assert.Equal(t, backoff.Stop, bo.NextBackOff())
}

func TestConstantPolicyHonoursMaxCount(t *testing.T) {
	t.Parallel()
	rc := RetryConfig{Policy: RetryConstant, Interval: time.Second, MaxCount: 4, MaxTime: time.Minute}
	bo := rc.Factory()()
	for i := 0; i < 4; i++ {
		// randomization keeps each wait within half of the interval
		d := bo.NextBackOff()
		assert.GreaterOrEqual(t, int64(d), int64(time.Second/2))
		assert.LessOrEqual(t, int64(d), int64(3*time.Second/2))
	}
	assert.Equal(t, backoff.Stop, bo.NextBackOff())
}

func TestExponentialPolicyGrows(t *testing.T) {
	t.Parallel()
	rc := RetryConfig{Policy: RetryExponential, Interval: time.Second, MaxTime: time.Hour}
	bo := rc.Factory()()
	first := bo.NextBackOff()
	var last time.Duration
	for i := 0; i < 8; i++ {
		last = bo.NextBackOff()
	}
	assert.Greater(t, int64(last), int64(first))
}

func TestRetrySucceeds(t *testing.T) {
	t.Parallel()
	bo := NewBackoffFactory(1.0, time.Second, time.Millisecond, 5)()
	attempts := 0
	var notified []error
	err := Retry(context.Background(), bo, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("dial failed")
		}
		return nil
	}, func(err error, next time.Duration) {
		notified = append(notified, err)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, notified, 2)
}

func TestRetryGivesUp(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	attempts := 0
	err := Retry(context.Background(), &backoff.StopBackOff{}, func() error {
		attempts++
		return boom
	}, nil)
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryStopsOnContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bo := NewBackoffFactory(1.0, time.Minute, time.Minute, 0)()
	err := Retry(ctx, bo, func() error { return errors.New("boom") }, nil)
	assert.Equal(t, context.Canceled, err)
}
