package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalOffsiteTarget copies archives to another mounted path (NFS share,
// second disk). The copy goes to a temporary name and is renamed into place
// so a torn copy is never mistaken for a replica.
type LocalOffsiteTarget struct {
	path        string
	permissions os.FileMode
}

// NewLocalOffsiteTarget creates a local-path offsite target.
func NewLocalOffsiteTarget(config *LocalTarget) (*LocalOffsiteTarget, error) {
	if config == nil || config.Path == "" {
		return nil, NewConfigError("local offsite target requires a path", nil)
	}

	permissions := config.Permissions
	if permissions == 0 {
		permissions = 0o755
	}

	if err := os.MkdirAll(config.Path, permissions); err != nil {
		return nil, NewIOError("failed to create offsite target directory", err)
	}

	return &LocalOffsiteTarget{
		path:        config.Path,
		permissions: permissions,
	}, nil
}

// Upload copies the archive into the target directory.
func (lt *LocalOffsiteTarget) Upload(ctx context.Context, localPath, name string) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive for replication: %w", err)
	}
	defer src.Close()

	finalPath := filepath.Join(lt.path, name)
	stagePath := finalPath + partialSuffix

	dst, err := os.OpenFile(stagePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create replica file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(stagePath)
		return "", fmt.Errorf("failed to copy archive: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(stagePath)
		return "", fmt.Errorf("failed to flush replica file: %w", err)
	}

	if err := os.Rename(stagePath, finalPath); err != nil {
		os.Remove(stagePath)
		return "", fmt.Errorf("failed to finalize replica: %w", err)
	}

	return finalPath, nil
}

// GetType returns the provider type.
func (lt *LocalOffsiteTarget) GetType() OffsiteProvider {
	return OffsiteProviderLocal
}
