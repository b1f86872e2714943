package memoize_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/rex/internal/memoize"
)

func TestDoComputesOncePerKey(testInstance *testing.T) {
	cache := memoize.NewCache()
	computeCallCount := 0
	compute := func() (any, error) {
		computeCallCount++
		return "resolved", nil
	}

	firstValue, firstError := cache.Do("lookup", compute)
	require.NoError(testInstance, firstError)
	require.Equal(testInstance, "resolved", firstValue)

	secondValue, secondError := cache.Do("lookup", compute)
	require.NoError(testInstance, secondError)
	require.Equal(testInstance, "resolved", secondValue)

	require.Equal(testInstance, 1, computeCallCount)
	require.Equal(testInstance, 1, cache.Len())
}

func TestDoDistinguishesKeys(testInstance *testing.T) {
	cache := memoize.NewCache()

	firstValue, firstError := cache.Do(memoize.Key("resolve", "curl"), func() (any, error) {
		return "/usr/bin/curl", nil
	})
	require.NoError(testInstance, firstError)
	require.Equal(testInstance, "/usr/bin/curl", firstValue)

	secondValue, secondError := cache.Do(memoize.Key("resolve", "git"), func() (any, error) {
		return "/usr/bin/git", nil
	})
	require.NoError(testInstance, secondError)
	require.Equal(testInstance, "/usr/bin/git", secondValue)

	require.Equal(testInstance, 2, cache.Len())
}

func TestDoDoesNotCacheFailures(testInstance *testing.T) {
	cache := memoize.NewCache()
	computeCallCount := 0
	lookupFailure := errors.New("lookup failed")

	_, firstError := cache.Do("lookup", func() (any, error) {
		computeCallCount++
		return nil, lookupFailure
	})
	require.ErrorIs(testInstance, firstError, lookupFailure)
	require.Equal(testInstance, 0, cache.Len())

	recoveredValue, secondError := cache.Do("lookup", func() (any, error) {
		computeCallCount++
		return "recovered", nil
	})
	require.NoError(testInstance, secondError)
	require.Equal(testInstance, "recovered", recoveredValue)
	require.Equal(testInstance, 2, computeCallCount)
}

func TestDoRequiresComputeFunction(testInstance *testing.T) {
	cache := memoize.NewCache()

	_, doError := cache.Do("lookup", nil)

	require.ErrorIs(testInstance, doError, memoize.ErrComputeFunctionRequired)
}

func TestForgetAllowsRecomputation(testInstance *testing.T) {
	cache := memoize.NewCache()
	computeCallCount := 0
	compute := func() (any, error) {
		computeCallCount++
		return computeCallCount, nil
	}

	firstValue, _ := cache.Do("lookup", compute)
	cache.Forget("lookup")
	secondValue, _ := cache.Do("lookup", compute)

	require.Equal(testInstance, 1, firstValue)
	require.Equal(testInstance, 2, secondValue)
}

func TestLookupReportsOnlyStoredEntries(testInstance *testing.T) {
	cache := memoize.NewCache()

	_, present := cache.Lookup("lookup")
	require.False(testInstance, present)

	_, doError := cache.Do("lookup", func() (any, error) { return 42, nil })
	require.NoError(testInstance, doError)

	storedValue, present := cache.Lookup("lookup")
	require.True(testInstance, present)
	require.Equal(testInstance, 42, storedValue)
}

func TestConcurrentCallersObserveOneStoredValue(testInstance *testing.T) {
	cache := memoize.NewCache()
	const callerCount = 16

	var waitGroup sync.WaitGroup
	observedValues := make([]any, callerCount)
	for callerIndex := 0; callerIndex < callerCount; callerIndex++ {
		waitGroup.Add(1)
		go func(slot int) {
			defer waitGroup.Done()
			value, doError := cache.Do("lookup", func() (any, error) { return slot, nil })
			require.NoError(testInstance, doError)
			observedValues[slot] = value
		}(callerIndex)
	}
	waitGroup.Wait()

	storedValue, present := cache.Lookup("lookup")
	require.True(testInstance, present)
	for _, observedValue := range observedValues {
		require.Equal(testInstance, storedValue, observedValue)
	}
	require.Equal(testInstance, 1, cache.Len())
}

func TestKeyRendersStableDistinctKeys(testInstance *testing.T) {
	require.Equal(testInstance, memoize.Key("resolve", "curl"), memoize.Key("resolve", "curl"))
	require.NotEqual(testInstance, memoize.Key("resolve", "curl"), memoize.Key("resolve", "git"))
	require.NotEqual(testInstance, memoize.Key("ab"), memoize.Key("a", "b"))
}
