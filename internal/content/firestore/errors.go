package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"finitefield.org/consultants-web/internal/content"
)

// Error annotates a Firestore failure with the operation that produced it.
type Error struct {
	op          string
	err         error
	unavailable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.err }

// IsUnavailable reports whether the error represents a transient backend outage.
func (e *Error) IsUnavailable() bool { return e != nil && e.unavailable }

// wrapError maps gRPC status codes onto content semantics. Context errors pass through untouched.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", op, content.ErrNotFound)
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		return &Error{op: op, err: err, unavailable: true}
	}
	return &Error{op: op, err: err}
}
