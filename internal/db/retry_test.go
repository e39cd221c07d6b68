package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithRetries_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := WithRetries(func() error {
		calls++
		return nil
	}, 3, func(error) bool { return true })
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetries_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	retryable := errors.New("retry me")
	err := WithRetries(func() error {
		calls++
		if calls < 3 {
			return retryable
		}
		return nil
	}, 3, func(err error) bool { return errors.Is(err, retryable) })
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetries_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	fatal := errors.New("fatal")
	err := WithRetries(func() error {
		calls++
		return fatal
	}, 3, func(error) bool { return false })
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestWithRetries_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	flaky := errors.New("still failing")
	err := WithRetries(func() error {
		calls++
		return flaky
	}, 2, func(error) bool { return true })
	assert.ErrorIs(t, err, flaky)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
}

func TestIsDuplicateKeyError_PlainError(t *testing.T) {
	assert.False(t, IsDuplicateKeyError(errors.New("nope")))
	assert.False(t, IsDuplicateKeyError(nil))
}

func TestIsTransient_NilAndPlain(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("business error")))
}
