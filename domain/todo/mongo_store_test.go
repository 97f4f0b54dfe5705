package todo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMongoStore connects to MONGO_URI and skips when no server is reachable.
func setupMongoStore(t *testing.T) *MongoStore {
	t.Helper()

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping MongoDB tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := ConnectMongo(ctx, uri, "todo_api_test", fmt.Sprintf("todos_%d", time.Now().UnixNano()))
	if err != nil {
		t.Skipf("MongoDB not available at %s: %v", uri, err)
	}

	t.Cleanup(func() {
		_ = store.collection.Drop(context.Background())
		_ = store.Close(context.Background())
	})
	return store
}

func TestMongoStore_Lifecycle(t *testing.T) {
	store := setupMongoStore(t)
	ctx := context.Background()

	created, err := store.Insert(ctx, Draft{Title: "Buy milk", Description: "2%"})
	require.NoError(t, err)
	assert.Len(t, created.ID, 24)
	assert.Equal(t, StatusOngoing, created.Status)

	found, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	updated, err := store.UpdateByID(ctx, created.ID, Patch{Status: StatusPtr(StatusCompleted)})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)
	assert.Equal(t, "Buy milk", updated.Title)

	all, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, store.DeleteByID(ctx, created.ID))
	_, err = store.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMongoStore_MalformedID(t *testing.T) {
	store := setupMongoStore(t)
	ctx := context.Background()

	_, err := store.FindByID(ctx, "not-an-object-id")
	op, ok := PersistenceOp(err)
	require.True(t, ok, "expected PersistenceError, got %v", err)
	assert.Equal(t, OpRead, op)

	_, err = store.UpdateByID(ctx, "not-an-object-id", Patch{})
	op, ok = PersistenceOp(err)
	require.True(t, ok)
	assert.Equal(t, OpWrite, op)
}

func TestObjectID(t *testing.T) {
	_, err := objectID("507f1f77bcf86cd799439011", OpRead)
	assert.NoError(t, err)

	_, err = objectID("xyz", OpWrite)
	op, ok := PersistenceOp(err)
	require.True(t, ok)
	assert.Equal(t, OpWrite, op)
}
