package retrieval

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyInput reports empty or whitespace-only text where content is
// required (queries, documents, embedding input).
var ErrEmptyInput = errors.New("input text is empty")

// InputError marks a failure caused by the caller's input. It is never
// retried and is surfaced immediately.
type InputError struct {
	Msg string
	Err error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *InputError) Unwrap() error { return e.Err }

// NewInputError wraps err as a caller-fault input error.
func NewInputError(msg string, err error) *InputError {
	return &InputError{Msg: msg, Err: err}
}

// IsInputError reports whether err is caused by invalid caller input.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// SchemaConflictError reports a dimensionality mismatch between an existing
// collection and the vectors being written or declared.
//
// It is fatal to the operation: the pipeline must never silently truncate or
// embed into the wrong vector space.
type SchemaConflictError struct {
	Collection string
	Want       int
	Got        int
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("collection %s holds %d-dimensional vectors, got %d", e.Collection, e.Want, e.Got)
}

// TransientError wraps a backend failure (network, timeout, overload) that is
// safe to retry with backoff. Upsert, search and delete are idempotent, so a
// retry cannot duplicate data.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient backend error: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable backend failure. Context
// deadline expiry counts as transient: no partial mutation is left behind by
// the idempotent store operations, so a retry is always safe.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// CorruptPayloadError reports a stored point whose payload is missing an
// expected field at read time. The retriever skips such points per-item and
// logs them; a corrupt point never fails the whole retrieval.
type CorruptPayloadError struct {
	PointID string
	Field   string
}

func (e *CorruptPayloadError) Error() string {
	return fmt.Sprintf("point %s: payload missing field %q", e.PointID, e.Field)
}
