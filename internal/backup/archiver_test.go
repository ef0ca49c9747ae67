package backup

import (
	"archive/tar"
	"context"
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archiverTestConfig(t *testing.T) *Config {
	t.Helper()

	cfg := &Config{}
	cfg.SetDefaults()
	cfg.Paths.BackupDir = t.TempDir()
	return cfg
}

// seedChain lays out a base folder with one incremental under the backup
// root, the state SealAndRotate operates on.
func seedChain(t *testing.T, cfg *Config) {
	t.Helper()

	root := cfg.BackupRoot()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "base"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "inc_0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "base", "ibdata1"), []byte("base pages"), 0o640))
	require.NoError(t, os.WriteFile(filepath.Join(root, "base", "xtrabackup_checkpoints"), []byte("backup_type = full-backuped"), 0o640))
	require.NoError(t, os.WriteFile(filepath.Join(root, "inc_0", "ibdata1.delta"), []byte("delta pages"), 0o640))
}

// readArchiveNames walks a sealed archive through its codec and returns the
// tar entry names in order.
func readArchiveNames(t *testing.T, path, format string) []string {
	t.Helper()

	codec, err := defaultCodecRegistry.Get(format)
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	reader, err := codec.Decompress(file)
	require.NoError(t, err)
	defer reader.Close()

	var names []string
	tr := tar.NewReader(reader)
	for {
		header, rerr := tr.Next()
		if rerr == io.EOF {
			break
		}
		require.NoError(t, rerr)
		names = append(names, header.Name)
	}
	return names
}

func TestArchiver_SealAndRotate(t *testing.T) {
	cfg := archiverTestConfig(t)
	seedChain(t, cfg)

	archiver, err := NewArchiver(cfg, nil)
	require.NoError(t, err)
	archiver.now = func() time.Time {
		return time.Date(2026, 3, 15, 6, 0, 0, 0, time.UTC)
	}

	info, err := archiver.SealAndRotate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.Equal(t, "database_backup_03_15_2026__06_00_00.tar.gz", filepath.Base(info.Path))
	assert.Equal(t, "tar.gz", info.Format)
	assert.False(t, info.Encrypted)
	assert.Greater(t, info.SizeBytes, int64(0))
	assert.Equal(t, time.Date(2026, 3, 15, 6, 0, 0, 0, time.UTC), info.SealedAt)

	names := readArchiveNames(t, info.Path, "tar.gz")
	assert.Contains(t, names, "mysql/")
	assert.Contains(t, names, "mysql/base/ibdata1")
	assert.Contains(t, names, "mysql/inc_0/ibdata1.delta")
	for _, name := range names {
		assert.True(t, name == "mysql/" || filepath.Dir(name) != ".", "entry %s not rooted at the backup folder", name)
	}

	// The backup root is reset to an empty folder.
	entries, err := os.ReadDir(cfg.BackupRoot())
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Exactly the new archive remains, no staging leftovers.
	archiveEntries, err := os.ReadDir(cfg.ArchiveRoot())
	require.NoError(t, err)
	require.Len(t, archiveEntries, 1)
	assert.Equal(t, filepath.Base(info.Path), archiveEntries[0].Name())
}

func TestArchiver_SealAndRotate_MissingBackupRoot(t *testing.T) {
	cfg := archiverTestConfig(t)

	archiver, err := NewArchiver(cfg, nil)
	require.NoError(t, err)

	_, err = archiver.SealAndRotate(context.Background())
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, CycleErrorTypeArchive, cycleErr.Type)
}

func TestArchiver_SealAndRotate_Encrypted(t *testing.T) {
	cfg := archiverTestConfig(t)
	seedChain(t, cfg)

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	cfg.Encryption.Enabled = true
	cfg.Encryption.KeyRetriever = func() ([]byte, error) {
		return key, nil
	}

	archiver, err := NewArchiver(cfg, nil)
	require.NoError(t, err)

	info, err := archiver.SealAndRotate(context.Background())
	require.NoError(t, err)

	assert.True(t, info.Encrypted)
	assert.Equal(t, ".enc", filepath.Ext(info.Path))

	// Decrypting the sealed archive yields a readable tar stream.
	decrypted := filepath.Join(t.TempDir(), "restored.tar.gz")
	crypto := NewArchiveEncryption(&cfg.Encryption)
	require.NoError(t, crypto.DecryptFile(info.Path, decrypted))

	names := readArchiveNames(t, decrypted, "tar.gz")
	assert.Contains(t, names, "mysql/base/ibdata1")
}

func TestArchiver_SealAndRotate_AppliesRetention(t *testing.T) {
	cfg := archiverTestConfig(t)
	cfg.Archive.RetentionCount = 1
	seedChain(t, cfg)

	require.NoError(t, os.MkdirAll(cfg.ArchiveRoot(), 0o755))
	old := []string{
		"database_backup_01_01_2020__00_00_00.tar.gz",
		"database_backup_06_15_2021__12_30_00.tar.gz",
	}
	for _, name := range old {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.ArchiveRoot(), name), []byte("old"), 0o640))
	}

	archiver, err := NewArchiver(cfg, nil)
	require.NoError(t, err)

	info, err := archiver.SealAndRotate(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(cfg.ArchiveRoot())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(info.Path), entries[0].Name())
}

func TestArchiver_SealAndRotate_ZstdFormat(t *testing.T) {
	cfg := archiverTestConfig(t)
	cfg.Archive.Format = "tar.zst"
	seedChain(t, cfg)

	archiver, err := NewArchiver(cfg, nil)
	require.NoError(t, err)

	info, err := archiver.SealAndRotate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tar.zst", info.Format)
	assert.Contains(t, readArchiveNames(t, info.Path, "tar.zst"), "mysql/base/ibdata1")
}

func TestNewArchiver_UnsupportedFormat(t *testing.T) {
	cfg := archiverTestConfig(t)
	cfg.Archive.Format = "7z"

	_, err := NewArchiver(cfg, nil)
	require.Error(t, err)
}

func TestResetBackupRoot(t *testing.T) {
	cfg := archiverTestConfig(t)
	seedChain(t, cfg)

	require.NoError(t, ResetBackupRoot(cfg))

	entries, err := os.ReadDir(cfg.BackupRoot())
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Resetting an already-missing root recreates it.
	require.NoError(t, os.RemoveAll(cfg.BackupRoot()))
	require.NoError(t, ResetBackupRoot(cfg))
	_, err = os.Stat(cfg.BackupRoot())
	assert.NoError(t, err)
}

func TestRemoveWithin(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "victim")
	require.NoError(t, os.MkdirAll(inside, 0o755))

	require.NoError(t, removeWithin(root, inside))
	_, err := os.Stat(inside)
	assert.True(t, os.IsNotExist(err))

	outside := t.TempDir()
	err = removeWithin(root, outside)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to remove")

	err = removeWithin(root, root)
	require.Error(t, err)

	// A sibling path sharing the root as a string prefix is still outside.
	sibling := root + "-sibling"
	require.NoError(t, os.MkdirAll(sibling, 0o755))
	defer os.RemoveAll(sibling)
	err = removeWithin(root, sibling)
	require.Error(t, err)
	_, statErr := os.Stat(sibling)
	assert.NoError(t, statErr)
}
