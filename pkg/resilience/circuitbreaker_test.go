package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewBreaker("redis", BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Second})
	b.now = func() time.Time { return now }
	boom := errors.New("boom")
	fail := func() error { return boom }
	ok := func() error { return nil }

	assert.ErrorIs(t, b.Do(fail), boom)
	assert.Equal(t, StateClosed, b.State())
	assert.ErrorIs(t, b.Do(fail), boom)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(time.Second)
	assert.ErrorIs(t, b.Do(fail), boom)
	assert.Equal(t, StateOpen, b.State())

	now = now.Add(time.Second)
	assert.NoError(t, b.Do(ok))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("redis", BreakerConfig{FailureThreshold: 2})
	boom := errors.New("boom")
	_ = b.Do(func() error { return boom })
	_ = b.Do(func() error { return nil })
	_ = b.Do(func() error { return boom })
	assert.Equal(t, StateClosed, b.State())
}
