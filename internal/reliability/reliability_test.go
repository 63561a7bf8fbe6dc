package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/papertrade/internal/database"
	testutil "github.com/finsight/papertrade/internal/testing"
)

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Upload(_ context.Context, key string, body io.Reader) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{Key: key, SizeBytes: int64(len(data))})
		}
	}
	return out, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := map[string][]byte{}
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[header.Name] = content
	}
	return files
}

func TestBackupService_CreateAndUploadBackup(t *testing.T) {
	portfolioDB, cleanup := testutil.NewTestDB(t, database.NamePortfolio)
	defer cleanup()
	ledgerDB, cleanupLedger := testutil.NewTestDB(t, database.NameLedger)
	defer cleanupLedger()

	store := newMemoryStore()
	service := NewBackupService(store, []*database.DB{portfolioDB, ledgerDB}, t.TempDir(), "backups/", zerolog.Nop())
	service.SetClock(func() time.Time { return time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC) })

	key, err := service.CreateAndUploadBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "backups/papertrade-backup-2026-03-02-033000.tar.gz", key)

	files := readArchive(t, store.objects[key])
	assert.Contains(t, files, "portfolio.db")
	assert.Contains(t, files, "ledger.db")
	require.Contains(t, files, "backup-metadata.json")

	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(files["backup-metadata.json"], &metadata))
	require.Len(t, metadata.Databases, 2)
	assert.Equal(t, "portfolio", metadata.Databases[0].Name)
	assert.True(t, strings.HasPrefix(metadata.Databases[0].Checksum, "sha256:"))
	assert.Equal(t, int64(len(files["portfolio.db"])), metadata.Databases[0].SizeBytes)
}

func TestBackupService_UploadFailure(t *testing.T) {
	ledgerDB, cleanup := testutil.NewTestDB(t, database.NameLedger)
	defer cleanup()

	store := newMemoryStore()
	store.uploadErr = errors.New("bucket unreachable")
	service := NewBackupService(store, []*database.DB{ledgerDB}, t.TempDir(), "", zerolog.Nop())

	_, err := service.CreateAndUploadBackup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unreachable")
}

func TestBackupService_RotateOldBackups(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	for _, day := range []int{1, 2, 3, 4, 25, 30} {
		ts := time.Date(2026, 3, day, 3, 30, 0, 0, time.UTC)
		store.objects["b/papertrade-backup-"+ts.Format(archiveTimestamp)+".tar.gz"] = []byte("x")
	}
	store.objects["b/unrelated.txt"] = []byte("x")

	service := NewBackupService(store, nil, t.TempDir(), "b/", zerolog.Nop())
	service.SetClock(func() time.Time { return now })

	deleted, err := service.RotateOldBackups(context.Background(), 7)
	require.NoError(t, err)

	// Newest three are kept (30, 25, 4), older than the cutoff (1, 2, 3) go
	assert.Equal(t, 3, deleted)
	assert.Equal(t, []string{
		"b/papertrade-backup-2026-03-04-033000.tar.gz",
		"b/papertrade-backup-2026-03-25-033000.tar.gz",
		"b/papertrade-backup-2026-03-30-033000.tar.gz",
		"b/unrelated.txt",
	}, store.keys())
}

func TestBackupService_RotateKeepsMinimum(t *testing.T) {
	store := newMemoryStore()
	store.objects["papertrade-backup-2020-01-01-000000.tar.gz"] = []byte("x")
	store.objects["papertrade-backup-2020-01-02-000000.tar.gz"] = []byte("x")

	service := NewBackupService(store, nil, t.TempDir(), "", zerolog.Nop())

	deleted, err := service.RotateOldBackups(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, store.keys(), 2)
}

func TestBackupService_ListBackupsNewestFirst(t *testing.T) {
	store := newMemoryStore()
	store.objects["papertrade-backup-2026-01-01-000000.tar.gz"] = []byte("x")
	store.objects["papertrade-backup-2026-02-01-000000.tar.gz"] = []byte("xy")
	store.objects["papertrade-backup-garbage.tar.gz"] = []byte("x")

	service := NewBackupService(store, nil, t.TempDir(), "", zerolog.Nop())

	backups, err := service.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, "papertrade-backup-2026-02-01-000000.tar.gz", backups[0].Key)
	assert.Equal(t, int64(2), backups[0].SizeBytes)
}

func TestBackupJob_Run(t *testing.T) {
	ledgerDB, cleanup := testutil.NewTestDB(t, database.NameLedger)
	defer cleanup()

	store := newMemoryStore()
	service := NewBackupService(store, []*database.DB{ledgerDB}, t.TempDir(), "", zerolog.Nop())
	job := NewBackupJob(service, 30, zerolog.Nop())

	assert.Equal(t, "backup", job.Name())
	require.NoError(t, job.Run())
	assert.Len(t, store.keys(), 1)
}

func TestMaintenanceJob_Run(t *testing.T) {
	portfolioDB, cleanup := testutil.NewTestDB(t, database.NamePortfolio)
	defer cleanup()
	cacheDB, cleanupCache := testutil.NewTestDB(t, database.NameClientData)
	defer cleanupCache()

	job := NewMaintenanceJob([]*database.DB{portfolioDB, cacheDB}, t.TempDir(), zerolog.Nop())
	job.freeSpace = func(string) (uint64, error) { return 50 << 30, nil }

	assert.Equal(t, "maintenance", job.Name())
	assert.NoError(t, job.Run())
}

func TestMaintenanceJob_DiskFull(t *testing.T) {
	job := NewMaintenanceJob(nil, t.TempDir(), zerolog.Nop())
	job.freeSpace = func(string) (uint64, error) { return 10 << 20, nil }

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MB free")
}
