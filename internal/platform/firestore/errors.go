package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errorKind uint8

const (
	kindOther errorKind = iota
	kindNotFound
	kindAlreadyExists
	kindConflict
	kindUnavailable
)

func classify(code codes.Code) errorKind {
	switch code {
	case codes.NotFound:
		return kindNotFound
	case codes.AlreadyExists:
		return kindAlreadyExists
	case codes.FailedPrecondition, codes.Aborted, codes.OutOfRange:
		return kindConflict
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		return kindUnavailable
	}
	return kindOther
}

// Error carries repository semantics for a failed Firestore call and satisfies
// repositories.RepositoryError.
type Error struct {
	Op   string
	kind errorKind
	err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// IsNotFound reports a missing document.
func (e *Error) IsNotFound() bool { return e != nil && e.kind == kindNotFound }

// IsAlreadyExists reports a create against an existing document.
func (e *Error) IsAlreadyExists() bool { return e != nil && e.kind == kindAlreadyExists }

// IsConflict reports contention or a failed precondition. An existing document on create counts.
func (e *Error) IsConflict() bool {
	return e != nil && (e.kind == kindConflict || e.kind == kindAlreadyExists)
}

// IsUnavailable reports a transient backend failure.
func (e *Error) IsUnavailable() bool { return e != nil && e.kind == kindUnavailable }

// WrapError attaches op and a classification to err. gRPC cancellation codes become the
// matching context errors so callers can test them with errors.Is.
func WrapError(op string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	code := status.Code(err)
	switch code {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}

	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op == "" {
			existing.Op = op
		}
		return existing
	}
	return &Error{Op: op, kind: classify(code), err: err}
}

// IsNotFound matches any error exposing IsNotFound, or a raw NotFound status.
func IsNotFound(err error) bool {
	var nf interface{ IsNotFound() bool }
	if errors.As(err, &nf) {
		return nf.IsNotFound()
	}
	return status.Code(err) == codes.NotFound
}

// IsAlreadyExists matches a wrapped or raw AlreadyExists status.
func IsAlreadyExists(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.IsAlreadyExists()
	}
	return status.Code(err) == codes.AlreadyExists
}
