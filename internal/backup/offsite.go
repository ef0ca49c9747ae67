package backup

import (
	"context"
	"fmt"
	"path/filepath"

	apperrors "xtrabackup-runner/internal/errors"
	"xtrabackup-runner/internal/logging"
)

// OffsiteTarget uploads a sealed archive to one remote location.
type OffsiteTarget interface {
	// Upload streams the local archive file to the target and returns the
	// remote location it landed at.
	Upload(ctx context.Context, localPath, name string) (string, error)
	GetType() OffsiteProvider
}

// NewOffsiteTarget creates the configured provider.
func NewOffsiteTarget(ctx context.Context, cfg *OffsiteConfig) (OffsiteTarget, error) {
	switch cfg.Provider {
	case OffsiteProviderLocal:
		return NewLocalOffsiteTarget(cfg.Local)
	case OffsiteProviderS3:
		return NewS3OffsiteTarget(cfg.S3)
	case OffsiteProviderAzure:
		return NewAzureOffsiteTarget(cfg.Azure)
	case OffsiteProviderGCS:
		return NewGCSOffsiteTarget(ctx, cfg.GCS)
	default:
		return nil, NewConfigError(fmt.Sprintf("unsupported offsite provider: %s", cfg.Provider), nil)
	}
}

// OffsiteReplicator copies sealed archives to the configured offsite target
// after a successful seal. Replication is best-effort: the local archive and
// the retention sweep stay authoritative, so upload failures are warnings,
// never cycle failures.
type OffsiteReplicator struct {
	cfg    *OffsiteConfig
	logger *logging.Logger
	retry  *apperrors.RetryHandler

	// target is lazily constructed so a cycle that never seals does not
	// touch cloud credentials. Overridable in tests.
	target OffsiteTarget
}

// NewOffsiteReplicator creates a replicator for the configured target.
func NewOffsiteReplicator(cfg *OffsiteConfig, logger *logging.Logger) *OffsiteReplicator {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	retryCfg := apperrors.DefaultRetryConfig()
	if cfg.RetryAttempts > 0 {
		retryCfg.MaxAttempts = cfg.RetryAttempts
	}

	return &OffsiteReplicator{
		cfg:    cfg,
		logger: logger,
		retry:  apperrors.NewRetryHandler(retryCfg),
	}
}

// Replicate uploads the archive and records the remote location on it.
// All failures are logged warnings; the returned error is informational.
func (or *OffsiteReplicator) Replicate(ctx context.Context, info *ArchiveInfo) error {
	if !or.cfg.Enabled || info == nil {
		return nil
	}

	if or.target == nil {
		target, err := NewOffsiteTarget(ctx, or.cfg)
		if err != nil {
			or.logger.Warnf("Offsite replication skipped: %v", err)
			return err
		}
		or.target = target
	}

	name := filepath.Base(info.Path)

	var location string
	err := or.retry.Retry(ctx, func() error {
		loc, uerr := or.target.Upload(ctx, info.Path, name)
		if uerr != nil {
			return apperrors.NewRecoverableError(apperrors.ErrorTypeStorage,
				fmt.Sprintf("offsite upload of %s failed", name), uerr)
		}
		location = loc
		return nil
	})
	if err != nil {
		or.logger.Warnf("Offsite replication failed for %s: %v", name, err)
		return err
	}

	info.Replicas = append(info.Replicas, location)
	or.logger.WithFields(map[string]interface{}{
		"operation": "offsite_replication",
		"provider":  string(or.target.GetType()),
		"archive":   name,
		"location":  location,
	}).Info("Archive replicated offsite")

	return nil
}
