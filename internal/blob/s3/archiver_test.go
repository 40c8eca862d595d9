package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outcomelabs/marketd/internal/domain"
	"github.com/outcomelabs/marketd/internal/store/memory"
)

type fakeBlobStore struct {
	objects map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (f *fakeBlobStore) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[path] = b
	return nil
}

func (f *fakeBlobStore) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return f.Put(ctx, path, data, "application/octet-stream")
}

func (f *fakeBlobStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := f.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeBlobStore) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	for path, b := range f.objects {
		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			infos = append(infos, domain.BlobInfo{Path: path, Size: int64(len(b))})
		}
	}
	return infos, nil
}

func (f *fakeBlobStore) Exists(_ context.Context, path string) (bool, error) {
	_, ok := f.objects[path]
	return ok, nil
}

func putMarket(t *testing.T, store domain.Store, m domain.Market) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Update(ctx, func(tx domain.Tx) error {
		return tx.PutMarket(ctx, m)
	}))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArchiveMarket(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	defer store.Close()
	blobs := newFakeBlobStore()

	outcome := true
	putMarket(t, store, domain.Market{
		ID: 7, Question: "settled?", Comparator: domain.ComparatorGE,
		Resolved: true, Outcome: &outcome,
		Vault: 5000, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	})

	a := NewMarketArchiver(store, blobs, blobs, testLogger())
	path, err := a.ArchiveMarket(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "archive/markets/7.json", path)

	var snap marketSnapshot
	require.NoError(t, json.Unmarshal(blobs.objects[path], &snap))
	require.Equal(t, uint64(7), snap.Market.ID)
	require.Equal(t, uint64(5000), snap.Market.Vault)
	require.NotNil(t, snap.Market.Outcome)
	require.True(t, *snap.Market.Outcome)
	require.False(t, snap.ArchivedAt.IsZero())
}

func TestArchiveMarketRejectsOpen(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	defer store.Close()
	blobs := newFakeBlobStore()

	putMarket(t, store, domain.Market{ID: 1, Question: "open", Comparator: domain.ComparatorGE})

	a := NewMarketArchiver(store, blobs, blobs, testLogger())
	_, err := a.ArchiveMarket(ctx, 1)
	require.ErrorIs(t, err, domain.ErrState)

	_, err = a.ArchiveMarket(ctx, 404)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestArchiveTerminalSkipsArchived(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	defer store.Close()
	blobs := newFakeBlobStore()

	outcome := false
	putMarket(t, store, domain.Market{ID: 1, Question: "open", Comparator: domain.ComparatorGE})
	putMarket(t, store, domain.Market{ID: 2, Question: "resolved", Comparator: domain.ComparatorGE, Resolved: true, Outcome: &outcome})
	putMarket(t, store, domain.Market{ID: 3, Question: "cancelled", Comparator: domain.ComparatorGE, Cancelled: true})

	a := NewMarketArchiver(store, blobs, blobs, testLogger())

	count, err := a.ArchiveTerminal(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
	require.Contains(t, blobs.objects, "archive/markets/2.json")
	require.Contains(t, blobs.objects, "archive/markets/3.json")
	require.NotContains(t, blobs.objects, "archive/markets/1.json")

	// A second sweep uploads nothing.
	count, err = a.ArchiveTerminal(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestExportTerminal(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	defer store.Close()
	blobs := newFakeBlobStore()

	outcome := true
	putMarket(t, store, domain.Market{ID: 1, Question: "open", Comparator: domain.ComparatorGE})
	putMarket(t, store, domain.Market{ID: 2, Question: "resolved", Comparator: domain.ComparatorGE, Resolved: true, Outcome: &outcome})
	putMarket(t, store, domain.Market{ID: 3, Question: "cancelled", Comparator: domain.ComparatorGE, Cancelled: true})

	a := NewMarketArchiver(store, blobs, blobs, testLogger())

	path, err := a.ExportTerminal(ctx)
	require.NoError(t, err)
	require.Contains(t, path, "archive/exports/")

	lines := bytes.Split(bytes.TrimSpace(blobs.objects[path]), []byte("\n"))
	require.Len(t, lines, 2)

	ids := map[uint64]bool{}
	for _, line := range lines {
		var snap marketSnapshot
		require.NoError(t, json.Unmarshal(line, &snap))
		ids[snap.Market.ID] = true
	}
	require.True(t, ids[2])
	require.True(t, ids[3])
}
