package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_BackoffPolicy_Delay(t *testing.T) {
	policy := BackoffPolicy{
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 5,
	}

	require.Equal(t, time.Second, policy.Delay(0))
	require.Equal(t, 2*time.Second, policy.Delay(1))
	require.Equal(t, 4*time.Second, policy.Delay(2))
	require.Equal(t, 8*time.Second, policy.Delay(3))
	require.Equal(t, 16*time.Second, policy.Delay(4))

	// Capped, not unbounded.
	require.Equal(t, 30*time.Second, policy.Delay(5))
	require.Equal(t, 30*time.Second, policy.Delay(20))
}

func Test_BackoffPolicy_MonotonicallyNonDecreasing(t *testing.T) {
	policy := BackoffPolicy{
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		MaxAttempts: 5,
	}

	prev := time.Duration(0)
	for attempt := 0; attempt < 10; attempt++ {
		delay := policy.Delay(attempt)
		require.GreaterOrEqual(t, delay, prev)
		prev = delay
	}
}

func Test_BackoffPolicy_Exhausted(t *testing.T) {
	policy := BackoffPolicy{
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 5,
	}

	for attempt := 0; attempt < 5; attempt++ {
		require.False(t, policy.Exhausted(attempt))
	}
	require.True(t, policy.Exhausted(5))
	require.True(t, policy.Exhausted(6))
}
