package repositories

import (
	"context"
	"errors"
	"strings"

	"github.com/atrium-collab/atrium/internal/chaterr"
	"gorm.io/gorm"
)

// classify maps storage errors onto the error kinds callers act on.
// Deadlocks, lock timeouts and deadline overruns are transient and may
// be retried by the hub inside the per-chat queue.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *chaterr.Error
	if errors.As(err, &ce) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return chaterr.Wrap(chaterr.NotFound, op+": not found", err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return chaterr.Wrap(chaterr.Conflict, op+": duplicate", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return chaterr.Wrap(chaterr.Transient, op+": deadline exceeded", err)
	case isRetryable(err):
		return chaterr.Wrap(chaterr.Transient, op+": retryable storage failure", err)
	}
	return chaterr.Wrap(chaterr.Internal, op+": storage failure", err)
}

func isRetryable(err error) bool {
	msg := err.Error()
	// MySQL 1213 (deadlock), 1205 (lock wait timeout); sqlite busy in tests.
	return strings.Contains(msg, "Deadlock found") ||
		strings.Contains(msg, "Lock wait timeout") ||
		strings.Contains(msg, "database is locked")
}
