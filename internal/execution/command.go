package execution

import (
	"io"
	"strings"
	"time"
)

// BackupKind distinguishes the two xtrabackup invocations.
type BackupKind string

const (
	// KindBase takes a full backup into the target directory.
	KindBase BackupKind = "base"
	// KindIncremental captures changes since the basedir backup.
	KindIncremental BackupKind = "incremental"
)

// Request describes one backup the engine wants taken. The supervisor turns
// it into an argv and supervises the run.
type Request struct {
	Kind      BackupKind
	TargetDir string
	// BasedirPath is the prior backup an incremental builds on. Ignored
	// for base backups.
	BasedirPath string

	Username string
	Password string
	Host     string
	Port     string

	Binary  string
	UseSudo bool
	// ExtraParams are configured tool flags without their leading dashes;
	// blank entries are skipped.
	ExtraParams []string

	HandshakeTimeout time.Duration
	Mirror           io.Writer
}

// BuildCommand assembles the supervised command for a request. The password
// never appears in the argv; the bare --password flag makes the tool prompt
// on its terminal, and the supervisor answers the prompt on stdin.
func BuildCommand(req Request) Command {
	var path string
	var args []string

	if req.UseSudo {
		path = "sudo"
		args = append(args, req.Binary)
	} else {
		path = req.Binary
	}

	args = append(args,
		"--user="+req.Username,
		"--password",
		"--host="+req.Host,
		"--port="+req.Port,
		"--backup",
		"--target-dir="+req.TargetDir,
	)

	if req.Kind == KindIncremental && req.BasedirPath != "" {
		args = append(args, "--incremental-basedir="+req.BasedirPath)
	}

	for _, param := range req.ExtraParams {
		param = strings.TrimSpace(param)
		if param == "" {
			continue
		}
		args = append(args, "--"+param)
	}

	return Command{
		Path:             path,
		Args:             args,
		Password:         req.Password,
		HandshakeTimeout: req.HandshakeTimeout,
		Mirror:           req.Mirror,
	}
}
