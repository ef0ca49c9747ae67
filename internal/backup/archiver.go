package backup

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"xtrabackup-runner/internal/logging"
)

// ArchiveTimestampLayout is the timestamp format embedded in sealed archive
// names. Existing installations already carry archives in this layout, so it
// never changes; retention ordering depends on parsing it back out.
const ArchiveTimestampLayout = "01_02_2006__15_04_05"

const (
	partialSuffix   = ".partial"
	encryptedSuffix = ".enc"
)

// Archiver seals the working backup chain into a single compressed tar
// archive under the archive root and rotates old archives afterwards.
type Archiver struct {
	cfg       *Config
	codec     ArchiveCodec
	crypto    *ArchiveEncryption
	retention *RetentionManager
	logger    *logging.Logger

	now func() time.Time
}

// NewArchiver creates an archiver for the configured format. The format must
// be registered with the codec registry.
func NewArchiver(cfg *Config, logger *logging.Logger) (*Archiver, error) {
	codec, err := defaultCodecRegistry.Get(cfg.Archive.Format)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &Archiver{
		cfg:       cfg,
		codec:     codec,
		crypto:    NewArchiveEncryption(&cfg.Encryption),
		retention: NewRetentionManager(cfg, logger),
		logger:    logger,
		now:       time.Now,
	}, nil
}

// SealAndRotate archives the entire backup root into
// <archive_prefix><utc-timestamp><ext>, clears the backup root, and applies
// the retention policy. The archive is written under a temporary name,
// verified readable, optionally encrypted, and only then renamed into place,
// so a failure partway through leaves the backup root untouched and no
// half-written file that could be mistaken for a valid archive.
//
// When an error occurs after the archive has already been finalized, the
// returned ArchiveInfo is non-nil alongside the error.
func (a *Archiver) SealAndRotate(ctx context.Context) (*ArchiveInfo, error) {
	start := time.Now()

	root := a.cfg.BackupRoot()
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, NewArchiveError("backup root does not exist, nothing to seal", err)
		}
		return nil, NewIOError("failed to stat backup root", err)
	}

	archiveRoot := a.cfg.ArchiveRoot()
	if err := os.MkdirAll(archiveRoot, 0o755); err != nil {
		return nil, NewIOError("failed to create archive root", err)
	}

	sealedAt := a.now().UTC()
	finalName := a.cfg.Naming.ArchivePrefix + sealedAt.Format(ArchiveTimestampLayout) + a.codec.Extension()
	stagePath := filepath.Join(archiveRoot, finalName+partialSuffix)

	a.logger.Debugf("Sealing %s into %s", root, finalName)

	if err := a.writeArchive(ctx, root, stagePath); err != nil {
		os.Remove(stagePath)
		a.logger.LogArchiveSeal(stagePath, 0, time.Since(start), err)
		return nil, err
	}

	entries, err := a.verifyArchive(stagePath)
	if err != nil {
		os.Remove(stagePath)
		a.logger.LogArchiveSeal(stagePath, 0, time.Since(start), err)
		return nil, err
	}
	a.logger.Debugf("Archive verified: %d entries", entries)

	encrypted := false
	if a.crypto.IsEnabled() {
		encStagePath := filepath.Join(archiveRoot, finalName+encryptedSuffix+partialSuffix)
		if _, err := a.crypto.EncryptFile(stagePath, encStagePath); err != nil {
			os.Remove(stagePath)
			os.Remove(encStagePath)
			a.logger.LogArchiveSeal(stagePath, 0, time.Since(start), err)
			return nil, err
		}
		os.Remove(stagePath)
		stagePath = encStagePath
		finalName += encryptedSuffix
		encrypted = true
	}

	finalPath := filepath.Join(archiveRoot, finalName)
	if err := os.Rename(stagePath, finalPath); err != nil {
		os.Remove(stagePath)
		return nil, NewArchiveError("failed to finalize archive", err)
	}

	var sizeBytes int64
	if fi, serr := os.Stat(finalPath); serr == nil {
		sizeBytes = fi.Size()
	}

	info := &ArchiveInfo{
		Path:      finalPath,
		SizeBytes: sizeBytes,
		Format:    a.cfg.Archive.Format,
		Encrypted: encrypted,
		SealedAt:  sealedAt,
	}

	a.logger.LogArchiveSeal(finalPath, sizeBytes, time.Since(start), nil)

	if err := ResetBackupRoot(a.cfg); err != nil {
		return info, err
	}

	if _, err := a.retention.Sweep(ctx); err != nil {
		// The archive already landed and the chain is reset; a rotation
		// failure must not turn the sealed cycle into a failed one.
		a.logger.Warnf("Archive rotation failed: %v", err)
	}

	return info, nil
}

// writeArchive streams the tree rooted at root into dest through the
// configured codec. Tar entry names are rooted at the base name of root, so
// an archive of /data/backups/mysql unpacks into mysql/.
func (a *Archiver) writeArchive(ctx context.Context, root, dest string) (err error) {
	out, err := os.Create(dest)
	if err != nil {
		return NewArchiveError("failed to create archive file", err)
	}

	closers := []io.Closer{out}
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i].Close(); cerr != nil && err == nil {
				err = NewArchiveError("failed to flush archive writers", cerr)
			}
		}
	}()

	compressed, err := a.codec.Compress(out)
	if err != nil {
		return NewArchiveError("failed to initialize compression", err)
	}
	closers = append(closers, compressed)

	tw := tar.NewWriter(compressed)
	closers = append(closers, tw)

	base := filepath.Base(root)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}

		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		name := base
		if rel != "." {
			name = base + "/" + filepath.ToSlash(rel)
		}

		info, ierr := d.Info()
		if ierr != nil {
			return ierr
		}

		link := ""
		if info.Mode()&fs.ModeSymlink != 0 {
			link, ierr = os.Readlink(path)
			if ierr != nil {
				return ierr
			}
		}

		header, herr := tar.FileInfoHeader(info, link)
		if herr != nil {
			return herr
		}
		header.Name = name
		if info.IsDir() {
			header.Name += "/"
		}

		if werr := tw.WriteHeader(header); werr != nil {
			return werr
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		file, oerr := os.Open(path)
		if oerr != nil {
			return oerr
		}
		_, cerr := io.Copy(tw, file)
		file.Close()
		return cerr
	})
	if walkErr != nil {
		return NewArchiveError("failed to stream backup tree into archive", walkErr)
	}

	return nil
}

// verifyArchive re-reads the staged archive end to end through the codec and
// returns the number of tar entries it holds. An archive that cannot be
// walked back to EOF is never renamed into place.
func (a *Archiver) verifyArchive(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, NewArchiveError("failed to open staged archive for verification", err)
	}
	defer file.Close()

	reader, err := a.codec.Decompress(file)
	if err != nil {
		return 0, NewArchiveError("failed to initialize decompression for verification", err)
	}
	defer reader.Close()

	entries := 0
	tr := tar.NewReader(reader)
	for {
		_, rerr := tr.Next()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return entries, NewArchiveError("archive verification failed", rerr)
		}
		if _, cerr := io.Copy(io.Discard, tr); cerr != nil {
			return entries, NewArchiveError("archive verification failed", cerr)
		}
		entries++
	}
	if entries == 0 {
		return 0, NewArchiveError("archive verification failed: archive is empty", nil)
	}

	return entries, nil
}

// ResetBackupRoot removes the backup root and recreates it empty, so the next
// cycle starts from a clean slate. The root must sit inside the configured
// base directory.
func ResetBackupRoot(cfg *Config) error {
	root := cfg.BackupRoot()
	if err := removeWithin(cfg.Paths.BackupDir, root); err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return NewIOError("failed to recreate backup root", err)
	}
	return nil
}

// removeWithin deletes path recursively, but only when path sits strictly
// inside root. A path that escapes root is never touched.
func removeWithin(root, path string) error {
	cleanRoot := filepath.Clean(root)
	cleanPath := filepath.Clean(path)
	if cleanPath == cleanRoot || !strings.HasPrefix(cleanPath, cleanRoot+string(filepath.Separator)) {
		return NewIOError(fmt.Sprintf("refusing to remove %s: outside %s", path, root), nil)
	}
	if err := os.RemoveAll(cleanPath); err != nil {
		return NewIOError(fmt.Sprintf("failed to remove %s", path), err)
	}
	return nil
}
