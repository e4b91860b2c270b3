package firestore

import (
	"context"
	"errors"
	"sync"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/order-admin/internal/domain"
	pfirestore "github.com/hanko-field/order-admin/internal/platform/firestore"
	"github.com/hanko-field/order-admin/internal/repositories"
)

// UnitOfWork runs repository calls inside one Firestore transaction.
type UnitOfWork struct {
	provider *pfirestore.Provider
	opts     []pfirestore.TxOption
}

// NewUnitOfWork constructs a transaction runner over provider.
func NewUnitOfWork(provider *pfirestore.Provider, opts ...pfirestore.TxOption) (*UnitOfWork, error) {
	if provider == nil {
		return nil, errors.New("unit of work requires firestore provider")
	}
	return &UnitOfWork{provider: provider, opts: opts}, nil
}

var _ repositories.UnitOfWork = (*UnitOfWork)(nil)

// RunInTx executes fn in a transaction. Each attempt gets a fresh read set.
func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("unit of work: fn is nil")
	}
	return u.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		return fn(withReadSet(txCtx))
	}, u.opts...)
}

// readSet remembers order statuses read earlier in the running transaction. Firestore rejects
// reads once the transaction has buffered a write, so a status check that follows stock writes
// must rely on the locked read made at the start of the transaction.
type readSet struct {
	mu     sync.Mutex
	orders map[string]domain.OrderStatus
}

type readSetKey struct{}

func withReadSet(ctx context.Context) context.Context {
	return context.WithValue(ctx, readSetKey{}, &readSet{orders: make(map[string]domain.OrderStatus)})
}

func readSetFrom(ctx context.Context) *readSet {
	rs, _ := ctx.Value(readSetKey{}).(*readSet)
	return rs
}

func (rs *readSet) recordOrder(id string, status domain.OrderStatus) {
	if rs == nil {
		return
	}
	rs.mu.Lock()
	rs.orders[id] = status
	rs.mu.Unlock()
}

func (rs *readSet) orderStatus(id string) (domain.OrderStatus, bool) {
	if rs == nil {
		return "", false
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	status, ok := rs.orders[id]
	return status, ok
}
