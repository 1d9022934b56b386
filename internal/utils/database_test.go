package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/crm-electoral/app-crm/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestExecuteWithTransaction(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	coll := env.MongoDB.Collection("tx_test")

	t.Run("commits", func(t *testing.T) {
		err := ExecuteWithTransaction(ctx, env.MongoClient, "commit", func(sessCtx mongo.SessionContext) error {
			_, err := coll.InsertOne(sessCtx, bson.M{"_id": "a"})
			return err
		})
		require.NoError(t, err)

		count, err := coll.CountDocuments(ctx, bson.M{"_id": "a"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("aborts on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := ExecuteWithTransaction(ctx, env.MongoClient, "abort", func(sessCtx mongo.SessionContext) error {
			if _, err := coll.InsertOne(sessCtx, bson.M{"_id": "b"}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		count, err := coll.CountDocuments(ctx, bson.M{"_id": "b"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}
