package db

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a function that performs a store action and may fail.
type Operation func() error

// RetryableFunc decides whether a failed attempt is worth retrying.
type RetryableFunc func(err error) bool

const DefaultMaxRetries = 3

// Try executes an operation, retrying duplicate-key failures. Inserts
// that generate their own IDs regenerate them inside op on each attempt.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsDuplicateKeyError)
}

// WithRetries runs op up to maxRetries+1 times, with a short incremental
// backoff between attempts. Non-retryable errors return immediately.
func WithRetries(op Operation, maxRetries int, retryable RetryableFunc) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries || !retryable(err) {
			break
		}
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
	}
	return err
}

// IsDuplicateKeyError checks if an error from MongoDB is a duplicate key
// error (code 11000).
func IsDuplicateKeyError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}

// IsTransient reports whether err looks like a temporary store failure
// (timeouts, network). Callers surface these as Unavailable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}
	return false
}
