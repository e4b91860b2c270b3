package services

import (
	"context"

	"github.com/hanko-field/order-admin/internal/repositories"
)

type afterCommitKey struct{}

// commitHooks holds side effects queued by one unit-of-work attempt.
type commitHooks struct {
	fns []func(context.Context)
}

// afterCommit queues fn until the surrounding unit of work commits. Outside runInTx it runs
// immediately.
func afterCommit(ctx context.Context, fn func(context.Context)) {
	if hooks, ok := ctx.Value(afterCommitKey{}).(*commitHooks); ok {
		hooks.fns = append(hooks.fns, fn)
		return
	}
	fn(ctx)
}

// runInTx runs fn in uow and fires the hooks of the attempt that committed. Hooks of retried or
// rolled back attempts are dropped.
func runInTx(ctx context.Context, uow repositories.UnitOfWork, fn func(context.Context) error) error {
	var committed *commitHooks
	err := uow.RunInTx(ctx, func(txCtx context.Context) error {
		hooks := &commitHooks{}
		committed = hooks
		return fn(context.WithValue(txCtx, afterCommitKey{}, hooks))
	})
	if err != nil || committed == nil {
		return err
	}
	for _, hook := range committed.fns {
		hook(ctx)
	}
	return nil
}
