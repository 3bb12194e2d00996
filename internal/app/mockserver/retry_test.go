package mockserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryForGivesUpAfterDuration(t *testing.T) {
	done := make(chan bool, 1)
	attempts := 0
	go func() {
		done <- retryFor(context.Background(), func(time.Duration) bool {
			attempts++
			return false
		}, 10*time.Millisecond, 50*time.Millisecond)
	}()

	select {
	case met := <-done:
		assert.False(t, met)
		assert.Greater(t, attempts, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("retryFor did not stop after its duration")
	}
}

func TestRetryForSucceeds(t *testing.T) {
	attempts := 0
	met := retryFor(context.Background(), func(time.Duration) bool {
		attempts++
		return attempts == 3
	}, time.Millisecond, time.Second)

	assert.True(t, met)
	assert.Equal(t, 3, attempts)
}

func TestRetryForStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	met := retryFor(ctx, func(time.Duration) bool { return false }, 5*time.Millisecond, time.Minute)

	assert.False(t, met)
	assert.Less(t, time.Since(start), 5*time.Second)
}
