package history

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varkai/chatflow/types"
)

func sampleTranscript() []types.ChatMessage {
	return []types.ChatMessage{
		{ID: "m1", Type: types.MessageTypeHuman, Name: "user", Content: "hello"},
		{ID: "m2", Type: types.MessageTypeAI, Name: "planner", Content: "Hi there"},
		{ID: "m3", Type: types.MessageTypeTool, Name: "search", ToolOutput: `{"x":1}`},
	}
}

// exerciseStore runs the shared contract against any Store implementation.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Load(ctx, "th-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "th-1", sampleTranscript()))

	msgs, err := store.Load(ctx, "th-1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "Hi there", msgs[1].Content)
	assert.Equal(t, `{"x":1}`, msgs[2].ToolOutput)

	// Saving again replaces the snapshot.
	require.NoError(t, store.Save(ctx, "th-1", msgs[:1]))
	msgs, err = store.Load(ctx, "th-1")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	ids, err := store.Threads(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "th-1")

	require.NoError(t, store.Delete(ctx, "th-1"))
	_, err = store.Load(ctx, "th-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing snapshot is not an error.
	assert.NoError(t, store.Delete(ctx, "th-1"))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	exerciseStore(t, store)
}

func TestMemoryStore_SnapshotIsolated(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	orig := sampleTranscript()
	require.NoError(t, store.Save(ctx, "th-1", orig))
	orig[0].Content = "mutated"

	msgs, err := store.Load(ctx, "th-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", msgs[0].Content, "stored snapshot must not alias caller memory")
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(t.TempDir() + "/history.db")
	require.NoError(t, err)
	defer store.Close()
	exerciseStore(t, store)
}

func TestSQLiteStore_ThreadsOrderedByRecency(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "th-old", sampleTranscript()))
	require.NoError(t, store.Save(ctx, "th-new", sampleTranscript()))

	ids, err := store.Threads(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 2)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer store.Close()
	exerciseStore(t, store)
}

func TestRedisStore_ConnectFailure(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}

func TestFactory(t *testing.T) {
	store, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
	store.Close()

	store, err = New(Config{Backend: BackendSQLite, Path: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	store.Close()

	_, err = New(Config{Backend: BackendSQLite})
	assert.Error(t, err, "sqlite requires a path")

	_, err = New(Config{Backend: "dynamodb"})
	assert.Error(t, err)
}
