package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ImageStore {
	t.Helper()
	store, err := NewImageStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestImageStoreSaveBytes(t *testing.T) {
	store := newTestStore(t)
	data := []byte("fake png bytes")

	name, err := store.SaveBytes(data)
	require.NoError(t, err)
	assert.Regexp(t, `^[a-f0-9]{64}\.png$`, name)

	path, err := store.Path(name)
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	t.Run("same bytes dedupe to the same name", func(t *testing.T) {
		again, err := store.SaveBytes(data)
		require.NoError(t, err)
		assert.Equal(t, name, again)
	})

	t.Run("empty data rejected", func(t *testing.T) {
		_, err := store.SaveBytes(nil)
		assert.Error(t, err)
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "capture-*.tmp"))
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestImageStoreSaveFromURL(t *testing.T) {
	data := []byte("downloaded png")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	store := newTestStore(t)
	name, err := store.SaveFromURL(context.Background(), srv.URL)
	require.NoError(t, err)

	path, err := store.Path(name)
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	t.Run("non-200 response", func(t *testing.T) {
		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer failing.Close()

		_, err := store.SaveFromURL(context.Background(), failing.URL)
		assert.Error(t, err)
	})
}

func TestImageStorePathGuard(t *testing.T) {
	store := newTestStore(t)

	tests := []string{
		"../../etc/passwd",
		"shot.png",
		"ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789.png",
		"d2a84f4b8b650937ec8f73cd8be2c74add5a911ba64df27458ed8229da804a26.jpg",
		"",
	}
	for _, name := range tests {
		_, err := store.Path(name)
		assert.ErrorIs(t, err, ErrInvalidImageName, "name %q should be rejected", name)
	}

	t.Run("well-formed but missing name", func(t *testing.T) {
		_, err := store.Path("d2a84f4b8b650937ec8f73cd8be2c74add5a911ba64df27458ed8229da804a26.png")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidImageName)
	})
}
