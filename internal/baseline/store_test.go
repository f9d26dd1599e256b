package baseline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsEmptyBaseline(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "baseline.json"))

	base, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, base)
}

func TestLoadCorruptFileFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "baseline.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestCommitPersistReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "baseline.json")
	ctx := context.Background()

	store := NewFileStore(path)
	_, err := store.Load(ctx)
	require.NoError(t, err)

	store.Commit("AACT", "2026.08.01")
	store.Commit("DrugBank", "5.1.13")
	require.NoError(t, store.Persist(ctx))

	reloaded := NewFileStore(path)
	base, err := reloaded.Load(ctx)
	require.NoError(t, err)

	require.Len(t, base, 2)
	assert.Equal(t, "2026.08.01", base["AACT"].Signature)
	assert.Equal(t, "5.1.13", base["DrugBank"].Signature)
	assert.False(t, base["AACT"].ConfirmedAt.IsZero())
}

func TestCommitIsLastWriteWins(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "baseline.json"))
	store.Commit("src", "1.0")
	store.Commit("src", "1.0")
	store.Commit("src", "2.0")

	require.NoError(t, store.Persist(context.Background()))

	base, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.0", base["src"].Signature)
}

func TestPersistLeavesNoTempFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "baseline.json")
	store := NewFileStore(path)
	store.Commit("src", "1.0")

	require.NoError(t, store.Persist(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "baseline.json", entries[0].Name())
}

func TestPersistOverwritesAtomically(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "baseline.json")
	ctx := context.Background()

	first := NewFileStore(path)
	first.Commit("src", "1.0")
	require.NoError(t, first.Persist(ctx))

	second := NewFileStore(path)
	_, err := second.Load(ctx)
	require.NoError(t, err)
	second.Commit("src", "2.0")
	require.NoError(t, second.Persist(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var base Baseline
	require.NoError(t, json.Unmarshal(data, &base))
	assert.Equal(t, "2.0", base["src"].Signature)
}

func TestCommitIsSafeUnderConcurrency(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "baseline.json"))
	store.now = func() time.Time { return time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC) }

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.Commit("src", "1.0")
			store.Commit("other", "2.0")
		}(i)
	}
	wg.Wait()

	require.NoError(t, store.Persist(context.Background()))

	base, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, base, 2)
}
