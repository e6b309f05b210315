package database

import (
	"context"
	"strings"
	"time"

	"nfl-pickem/models"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/mongo"
)

// Common timeout durations for database operations
const (
	// ShortTimeout for single document reads and writes
	ShortTimeout = 5 * time.Second

	// MediumTimeout for multi-document queries
	MediumTimeout = 10 * time.Second

	// LongTimeout for bulk writes and index builds
	LongTimeout = 30 * time.Second
)

// ContextWithTimeout creates a context with timeout and cancel function
func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// WithShortTimeout creates a context with ShortTimeout (5 seconds)
func WithShortTimeout() (context.Context, context.CancelFunc) {
	return ContextWithTimeout(ShortTimeout)
}

// WithMediumTimeout creates a context with MediumTimeout (10 seconds)
func WithMediumTimeout() (context.Context, context.CancelFunc) {
	return ContextWithTimeout(MediumTimeout)
}

// WithLongTimeout creates a context with LongTimeout (30 seconds)
func WithLongTimeout() (context.Context, context.CancelFunc) {
	return ContextWithTimeout(LongTimeout)
}

// writeConflictCode is the server code for WriteConflict
const writeConflictCode = 112

// classifyWriteError maps a driver error into the domain taxonomy. claimIndexes
// maps a unique index name to the payload field it protects.
func classifyWriteError(op string, err error, claimIndexes map[string]claimField) error {
	if err == nil {
		return nil
	}

	if mongo.IsDuplicateKeyError(err) {
		msg := err.Error()
		for index, claim := range claimIndexes {
			if strings.Contains(msg, index) {
				return models.NewClaimedError(claim.field, claim.value)
			}
		}
		// A duplicate on the document key itself means two first writes for the
		// same user raced; the retry will land as an update.
		return &models.TransientStoreError{Op: op, Err: err}
	}

	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) && (serverErr.HasErrorCode(writeConflictCode) || serverErr.HasErrorLabel("TransientTransactionError")) {
		return &models.TransientStoreError{Op: op, Err: err}
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) || errors.Is(err, context.DeadlineExceeded) {
		return &models.TransientStoreError{Op: op, Err: err}
	}

	return errors.Wrapf(err, "failed to %s", op)
}

type claimField struct {
	field string
	value string
}

func toInts(values []interface{}) []int {
	out := make([]int, 0, len(values))
	for _, v := range values {
		switch n := v.(type) {
		case int32:
			out = append(out, int(n))
		case int64:
			out = append(out, int(n))
		case int:
			out = append(out, n)
		case float64:
			out = append(out, int(n))
		}
	}
	return out
}
