package execshell

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultBaseDelay is the backoff base applied when a policy leaves BaseDelay
// unset.
const DefaultBaseDelay = 5 * time.Second

const (
	invalidRetryPolicyMessageConstant   = "retry policy is invalid"
	maxAttemptsBelowOneTemplateConstant = "%w: MaxAttempts must be at least 1, got %d"
	negativeBaseDelayTemplateConstant   = "%w: BaseDelay must not be negative, got %s"
	maximumBackoffShiftConstant         = 62
	firstRetryExponentOffsetConstant    = 1
)

// ErrInvalidRetryPolicy reports a retry policy that failed validation before
// any command attempt was made.
var ErrInvalidRetryPolicy = errors.New(invalidRetryPolicyMessageConstant)

// RetryPolicy bounds how often a command is attempted and how long the
// executor waits between attempts. The wait after the n-th failed attempt is
// BaseDelay doubled n+1 times, so the first retry waits BaseDelay*4 and each
// later retry waits twice as long as the previous one.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first. It
	// must be at least 1.
	MaxAttempts int
	// BaseDelay is the exponential backoff base; zero selects
	// DefaultBaseDelay.
	BaseDelay time.Duration
}

// DefaultRetryPolicy returns the single-attempt policy used when callers do
// not ask for retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, BaseDelay: DefaultBaseDelay}
}

// Validate reports whether the policy can drive an execution.
func (policy RetryPolicy) Validate() error {
	if policy.MaxAttempts < 1 {
		return fmt.Errorf(maxAttemptsBelowOneTemplateConstant, ErrInvalidRetryPolicy, policy.MaxAttempts)
	}
	if policy.BaseDelay < 0 {
		return fmt.Errorf(negativeBaseDelayTemplateConstant, ErrInvalidRetryPolicy, policy.BaseDelay)
	}
	return nil
}

func (policy RetryPolicy) effectiveBaseDelay() time.Duration {
	if policy.BaseDelay == 0 {
		return DefaultBaseDelay
	}
	return policy.BaseDelay
}

// backoffDelay computes the wait after the given failed attempt, clamping at
// the representable maximum instead of overflowing.
func (policy RetryPolicy) backoffDelay(failedAttempt int) time.Duration {
	baseDelay := policy.effectiveBaseDelay()
	shiftAmount := uint(failedAttempt + firstRetryExponentOffsetConstant)
	if shiftAmount > maximumBackoffShiftConstant {
		return time.Duration(math.MaxInt64)
	}
	shiftedDelay := baseDelay << shiftAmount
	if shiftedDelay < 0 || shiftedDelay>>shiftAmount != baseDelay {
		return time.Duration(math.MaxInt64)
	}
	return shiftedDelay
}

// Sleeper waits between retry attempts. Implementations must return early
// with the context error when the context ends.
type Sleeper interface {
	Sleep(executionContext context.Context, duration time.Duration) error
}

// systemSleeper waits on the wall clock.
type systemSleeper struct{}

func (systemSleeper) Sleep(executionContext context.Context, duration time.Duration) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	if duration <= 0 {
		return nil
	}

	waitTimer := time.NewTimer(duration)
	defer waitTimer.Stop()
	select {
	case <-executionContext.Done():
		return executionContext.Err()
	case <-waitTimer.C:
		return nil
	}
}
