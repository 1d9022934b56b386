package utils

import (
	"context"
	"fmt"

	"github.com/crm-electoral/app-crm/internal/logging"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"
)

// ExecuteWithTransaction runs fn inside a MongoDB transaction. The driver
// retries fn on transient errors such as write conflicts, so fn must only
// touch the database through sessCtx and must be safe to run again.
func ExecuteWithTransaction(ctx context.Context, client *mongo.Client, name string, fn func(sessCtx mongo.SessionContext) error) error {
	logger := logging.Logger.With(zap.String("operation", "database_transaction"), zap.String("transaction", name))

	session, err := client.StartSession()
	if err != nil {
		logger.Error("failed to start database session", zap.Error(err))
		return fmt.Errorf("failed to start database session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	}, txnOpts)
	if err != nil {
		logger.Debug("transaction aborted", zap.Error(err))
		return err
	}

	logger.Debug("transaction committed")
	return nil
}
