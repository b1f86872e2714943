package execshell

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryPolicyValidate(testInstance *testing.T) {
	require.NoError(testInstance, RetryPolicy{MaxAttempts: 1}.Validate())
	require.NoError(testInstance, RetryPolicy{MaxAttempts: 4, BaseDelay: time.Second}.Validate())
	require.ErrorIs(testInstance, RetryPolicy{MaxAttempts: 0}.Validate(), ErrInvalidRetryPolicy)
	require.ErrorIs(testInstance, RetryPolicy{MaxAttempts: -1}.Validate(), ErrInvalidRetryPolicy)
	require.ErrorIs(testInstance, RetryPolicy{MaxAttempts: 2, BaseDelay: -time.Millisecond}.Validate(), ErrInvalidRetryPolicy)
}

func TestDefaultRetryPolicyRunsOnceWithDefaultBase(testInstance *testing.T) {
	policy := DefaultRetryPolicy()
	require.Equal(testInstance, 1, policy.MaxAttempts)
	require.Equal(testInstance, DefaultBaseDelay, policy.BaseDelay)
}

func TestBackoffDelayDoublesFromFourTimesBase(testInstance *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second}

	require.Equal(testInstance, 4*time.Second, policy.backoffDelay(1))
	require.Equal(testInstance, 8*time.Second, policy.backoffDelay(2))
	require.Equal(testInstance, 16*time.Second, policy.backoffDelay(3))
}

func TestBackoffDelayAppliesDefaultBaseWhenUnset(testInstance *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2}

	require.Equal(testInstance, 20*time.Second, policy.backoffDelay(1))
}

func TestBackoffDelayClampsInsteadOfOverflowing(testInstance *testing.T) {
	policy := RetryPolicy{MaxAttempts: math.MaxInt, BaseDelay: time.Second}

	require.Equal(testInstance, time.Duration(math.MaxInt64), policy.backoffDelay(80))
	require.Equal(testInstance, time.Duration(math.MaxInt64), policy.backoffDelay(40))
}

func TestSystemSleeperHonorsCancelledContext(testInstance *testing.T) {
	cancelledContext, cancelFunction := context.WithCancel(context.Background())
	cancelFunction()

	sleepError := systemSleeper{}.Sleep(cancelledContext, time.Hour)

	require.ErrorIs(testInstance, sleepError, context.Canceled)
}

func TestSystemSleeperCompletesShortWaits(testInstance *testing.T) {
	require.NoError(testInstance, systemSleeper{}.Sleep(context.Background(), time.Millisecond))
	require.NoError(testInstance, systemSleeper{}.Sleep(context.Background(), 0))
	require.NoError(testInstance, systemSleeper{}.Sleep(context.Background(), -time.Second))
}
