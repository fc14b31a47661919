package kvstore_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/attachly/go-attach-client/kvstore"
)

func TestKeyPrefixesNames(t *testing.T) {
	require.Equal(t, "attachly.access_token", kvstore.Key("access_token"))
}

func TestMemorySetGetDelete(t *testing.T) {
	store := kvstore.NewMemory()

	require.NoError(t, store.SetMany(map[string]string{"a": "1", "b": "2"}))

	v, ok, err := store.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)

	require.NoError(t, store.DeleteMany("a"))
	_, ok, err = store.Get("a")
	require.NoError(t, err)
	require.False(t, ok)

	v, ok, err = store.Get("b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", v)
}

func TestMemoryNotifiesOnlyChangedKeys(t *testing.T) {
	store := kvstore.NewMemory()
	require.NoError(t, store.SetMany(map[string]string{"a": "1"}))

	var mu sync.Mutex
	var seen []string
	cancel := store.Subscribe(func(key string) {
		mu.Lock()
		seen = append(seen, key)
		mu.Unlock()
	})
	defer cancel()

	// "a" keeps its value, so only "b" counts as a change.
	require.NoError(t, store.SetMany(map[string]string{"a": "1", "b": "2"}))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"b"}, seen)
}

func TestMemoryCancelledSubscriptionStopsFiring(t *testing.T) {
	store := kvstore.NewMemory()

	fired := 0
	cancel := store.Subscribe(func(string) { fired++ })
	require.NoError(t, store.SetMany(map[string]string{"a": "1"}))
	cancel()
	require.NoError(t, store.SetMany(map[string]string{"a": "2"}))

	require.Equal(t, 1, fired)
}

func TestFilePersistsAcrossInstances(t *testing.T) {
	folder := t.TempDir()

	first, err := kvstore.NewFile(folder)
	require.NoError(t, err)
	require.NoError(t, first.SetMany(map[string]string{"token": "abc"}))
	require.NoError(t, first.Close())

	second, err := kvstore.NewFile(folder)
	require.NoError(t, err)
	defer second.Close()

	v, ok, err := second.Get("token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc", v)
}

func TestFileGetSeesWritesFromOtherInstance(t *testing.T) {
	folder := t.TempDir()

	writer, err := kvstore.NewFile(folder)
	require.NoError(t, err)
	defer writer.Close()
	reader, err := kvstore.NewFile(folder)
	require.NoError(t, err)
	defer reader.Close()

	require.NoError(t, writer.SetMany(map[string]string{"token": "abc"}))

	// Get re-reads the file, so the value is visible without waiting for
	// the watcher tick.
	v, ok, err := reader.Get("token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc", v)
}

func TestFileWatcherNotifiesExternalChanges(t *testing.T) {
	folder := t.TempDir()

	writer, err := kvstore.NewFile(folder)
	require.NoError(t, err)
	defer writer.Close()
	watcher, err := kvstore.NewFile(folder, kvstore.WithWatchInterval(10*time.Millisecond))
	require.NoError(t, err)
	defer watcher.Close()

	var mu sync.Mutex
	var seen []string
	cancel := watcher.Subscribe(func(key string) {
		mu.Lock()
		seen = append(seen, key)
		mu.Unlock()
	})
	defer cancel()

	require.NoError(t, writer.SetMany(map[string]string{"token": "abc"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0] == "token"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFileOwnWritesDoNotNotify(t *testing.T) {
	folder := t.TempDir()

	store, err := kvstore.NewFile(folder, kvstore.WithWatchInterval(10*time.Millisecond))
	require.NoError(t, err)
	defer store.Close()

	var mu sync.Mutex
	fired := false
	cancel := store.Subscribe(func(string) {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	defer cancel()

	require.NoError(t, store.SetMany(map[string]string{"token": "abc"}))
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.False(t, fired)
}

func TestFileDeleteManyRemovesAtomically(t *testing.T) {
	folder := t.TempDir()

	store, err := kvstore.NewFile(folder)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SetMany(map[string]string{"a": "1", "b": "2", "c": "3"}))
	require.NoError(t, store.DeleteMany("a", "b"))

	_, ok, err := store.Get("a")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = store.Get("b")
	require.NoError(t, err)
	require.False(t, ok)
	v, ok, err := store.Get("c")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "3", v)
}

func TestFileClosedStoreRejectsOperations(t *testing.T) {
	folder := t.TempDir()

	store, err := kvstore.NewFile(folder)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, _, err = store.Get("a")
	require.Error(t, err)
	require.Error(t, store.SetMany(map[string]string{"a": "1"}))
}
