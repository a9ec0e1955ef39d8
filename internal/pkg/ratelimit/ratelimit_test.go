package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		PerMinute:  5,
		PerHour:    100,
		PerDay:     1000,
		RetryAfter: 10 * time.Millisecond,
	}
}

func TestAllowAdmitsUpToMinuteCeiling(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := New(testConfig())
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(), "request %d should be admitted", i+1)
	}
	assert.False(t, l.Allow(), "6th request in the same minute must be denied")
}

func TestAdmissionResumesAfterWindowRollsOver(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := New(testConfig())
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow())
	}
	require.False(t, l.Allow())

	now = now.Add(61 * time.Second)
	assert.True(t, l.Allow(), "admission must resume once the minute window rolls over")
}

func TestDenialLeavesStateUntouched(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := New(testConfig())
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow())
	}
	require.False(t, l.Allow())
	require.False(t, l.Allow())

	usage := l.Usage()
	assert.Equal(t, 5, usage.Minute, "denied attempts must not be recorded")
}

func TestHourCeilingIndependentOfMinute(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := New(Config{PerMinute: 10, PerHour: 12, PerDay: 1000})
	l.now = func() time.Time { return now }

	// Two bursts a minute apart fit the minute ceiling but hit the hour one.
	for i := 0; i < 10; i++ {
		require.True(t, l.Allow())
	}
	now = now.Add(61 * time.Second)
	require.True(t, l.Allow())
	require.True(t, l.Allow())
	assert.False(t, l.Allow(), "13th request within the hour must be denied")
}

func TestPruningBoundsLogLength(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := New(Config{PerMinute: 3, PerHour: 10000, PerDay: 10000})
	l.now = func() time.Time { return now }

	// Saturate and roll the minute window many times; stale entries must
	// never accumulate beyond the ceiling.
	for round := 0; round < 50; round++ {
		for i := 0; i < 3; i++ {
			require.True(t, l.Allow())
		}
		require.False(t, l.Allow())
		assert.LessOrEqual(t, len(l.minute), 3)
		now = now.Add(2 * time.Minute)
	}
}

func TestZeroCeilingPermanentlyDenies(t *testing.T) {
	l := New(Config{PerMinute: 0, PerHour: 10, PerDay: 10})
	assert.False(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestWaitAdmitsAfterRetrySleep(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := New(Config{PerMinute: 1, PerHour: 10, PerDay: 10, RetryAfter: time.Second})
	l.now = func() time.Time { return now }

	var slept []time.Duration
	l.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		now = now.Add(61 * time.Second) // window rolls over during the sleep
		return nil
	}

	require.True(t, l.Allow())
	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, []time.Duration{time.Second}, slept)
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	l := New(Config{PerMinute: 0, PerHour: 0, PerDay: 0, RetryAfter: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentAllowNeverOveradmits(t *testing.T) {
	l := New(Config{PerMinute: 20, PerHour: 20, PerDay: 20})

	var wg sync.WaitGroup
	admitted := make(chan struct{}, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow() {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	count := 0
	for range admitted {
		count++
	}
	assert.Equal(t, 20, count)
}

func TestUsageReportsAllWindows(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := New(testConfig())
	l.now = func() time.Time { return now }

	require.True(t, l.Allow())
	require.True(t, l.Allow())
	now = now.Add(2 * time.Minute)
	require.True(t, l.Allow())

	usage := l.Usage()
	assert.Equal(t, 1, usage.Minute)
	assert.Equal(t, 3, usage.Hour)
	assert.Equal(t, 3, usage.Day)
}
