package service

import "context"

// passthroughTx is the runner for stores whose individual operations are
// already atomic, such as the in-memory store.
type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
