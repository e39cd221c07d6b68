package services

import (
	"fmt"

	"tradenest/marketplace/internal/apperr"
	"tradenest/marketplace/internal/db"
)

// wrapStoreErr turns a raw store error into an Unavailable error when it
// looks transient, and a wrapped internal error otherwise. Business-rule
// outcomes never pass through here; services classify those themselves.
func wrapStoreErr(err error, format string, args ...interface{}) error {
	if db.IsTransient(err) {
		return apperr.Unavailable(err, format, args...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
