// Package txn runs multi-document writes in a MongoDB transaction when the
// deployment supports it and falls back to plain sequential writes when it
// does not (standalone servers used in development).
package txn

import (
	"context"
	"errors"

	"github.com/dalemusser/circlehub/internal/app/system/apperrors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Server error codes returned when transactions are unavailable.
const (
	codeIllegalOperation                   = 20
	codeNoReplicationEnabled               = 51
	codeOperationNotSupportedInTransaction = 263
)

// IsNotSupported reports whether err means the server cannot run
// transactions (as opposed to the transaction body failing). Only server
// error codes count; typed circle errors never do, whatever their text.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ae *apperrors.Error
	if errors.As(err, &ae) {
		return false
	}
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	for _, code := range []int{codeIllegalOperation, codeNoReplicationEnabled, codeOperationNotSupportedInTransaction} {
		if se.HasErrorCode(code) {
			return true
		}
	}
	return false
}

// Active reports whether ctx carries a session with a running transaction.
// Callers use it to tell a rolled-back failure from a partial one.
func Active(ctx context.Context) bool {
	return mongo.SessionFromContext(ctx) != nil
}

// Runner executes fn inside a transaction on client when possible.
type Runner struct {
	client *mongo.Client
	log    *zap.Logger
}

// New returns a Runner. A nil client always runs fn without a transaction.
func New(client *mongo.Client, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{client: client, log: log}
}

// Run calls fn within a transaction. If the server rejects transactions,
// fn is run again directly with ctx; fn must therefore be safe to retry
// from the start.
func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.client == nil {
		return fn(ctx)
	}
	sess, err := r.client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		r.log.Debug("transactions unavailable; running writes without one", zap.Error(err))
		return fn(ctx)
	}
	return err
}
