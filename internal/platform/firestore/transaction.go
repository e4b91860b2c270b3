package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/status"
)

// TxFunc runs inside a Firestore transaction and may be retried on contention. Its ctx carries
// tx, so repositories called with ctx join the transaction.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption customises a transaction run.
type TxOption func(*txSettings)

type txSettings struct {
	attempts int
	timeout  time.Duration
}

func newTxSettings(opts []TxOption) txSettings {
	s := txSettings{attempts: 5, timeout: 15 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// WithTxAttempts caps the commit attempts. Non-positive values are ignored.
func WithTxAttempts(n int) TxOption {
	return func(s *txSettings) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithTxTimeout bounds the whole run, retries included. Non-positive values are ignored.
func WithTxTimeout(d time.Duration) TxOption {
	return func(s *txSettings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

type txKey struct{}

// WithTransaction binds tx to ctx.
func WithTransaction(ctx context.Context, tx *firestore.Transaction) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TransactionFromContext returns the transaction bound to ctx.
func TransactionFromContext(ctx context.Context) (*firestore.Transaction, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, _ := ctx.Value(txKey{}).(*firestore.Transaction)
	return tx, tx != nil
}

// RunTransaction runs fn in a transaction on client. Errors returned by fn come back
// untouched; only gRPC failures from Firestore are wrapped.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	switch {
	case client == nil:
		return WrapError("transaction", errors.New("firestore: client is nil"))
	case fn == nil:
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}
	s := newTxSettings(opts)

	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > s.timeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	err := client.RunTransaction(ctx, func(txCtx context.Context, tx *firestore.Transaction) error {
		return fn(WithTransaction(txCtx, tx), tx)
	}, firestore.MaxAttempts(s.attempts))
	if _, isStatus := status.FromError(err); err != nil && isStatus {
		return WrapError("transaction", err)
	}
	return err
}
