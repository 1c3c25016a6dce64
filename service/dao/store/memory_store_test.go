package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/opsgate/service/dao"
)

type record struct {
	ID          string
	RequesterID string
	Status      string
}

func newStore() *MemoryStore[string, record] {
	return NewMemoryStore[string, record](func(r *record) string { return r.ID })
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	assert.ErrorIs(t, store.Save(ctx, nil), dao.ErrNilEntity)

	require.NoError(t, store.Save(ctx, &record{ID: "r1", RequesterID: "alice"}))
	loaded, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.RequesterID)

	_, err = store.Load(ctx, "absent")
	assert.ErrorIs(t, err, dao.ErrNotFound)

	require.NoError(t, store.Delete(ctx, "r1"))
	_, err = store.Load(ctx, "r1")
	assert.ErrorIs(t, err, dao.ErrNotFound)

	// deleting an absent key is a no-op
	assert.NoError(t, store.Delete(ctx, "r1"))
}

func TestMemoryStoreListWithParameters(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	require.NoError(t, store.Save(ctx, &record{ID: "r1", RequesterID: "alice", Status: "pending"}))
	require.NoError(t, store.Save(ctx, &record{ID: "r2", RequesterID: "bob", Status: "pending"}))
	require.NoError(t, store.Save(ctx, &record{ID: "r3", RequesterID: "alice", Status: "done"}))

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := store.List(ctx, dao.NewParameter("RequesterID", "alice"))
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	// parameters compose conjunctively
	pending, err := store.List(ctx, dao.NewParameter("RequesterID", "alice"), dao.NewParameter("Status", "pending"))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "r1", pending[0].ID)

	// multiple values per parameter are a union
	either, err := store.List(ctx, dao.NewParameter("RequesterID", "alice", "bob"))
	require.NoError(t, err)
	assert.Len(t, either, 3)

	// an unknown field never matches
	none, err := store.List(ctx, dao.NewParameter("Missing", "x"))
	require.NoError(t, err)
	assert.Empty(t, none)
}
