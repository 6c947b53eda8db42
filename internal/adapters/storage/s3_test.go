// internal/adapters/storage/s3_test.go
package storage_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/resell-stock/internal/adapters/storage"
	"github.com/ammerola/resell-stock/test/helpers"
)

// fakeS3 answers the bucket and object HEAD/DELETE calls a MinIO would.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]bool
	calls   []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	switch {
	case r.Method == http.MethodHead && r.URL.Path == "/stock-test":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead && f.objects[r.URL.Path]:
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func TestS3Storage_CustomEndpoint(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string]bool{"/stock-test/backups/user-1/a.json": true}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	store, err := storage.NewS3Storage(ctx, &storage.S3Config{
		Region:          "eu-west-3",
		Bucket:          "stock-test",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Endpoint:        srv.URL,
		UsePathStyle:    true,
	}, helpers.TestLogger())
	require.NoError(t, err)

	ok, err := store.Exists(ctx, "backups/user-1/a.json")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, "backups/user-1/missing.json")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, "backups/user-1/a.json"))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "HEAD /stock-test", fake.calls[0], "requests go to the configured endpoint")
	assert.Contains(t, fake.calls, "DELETE /stock-test/backups/user-1/a.json")
	assert.Empty(t, fake.objects)
}
