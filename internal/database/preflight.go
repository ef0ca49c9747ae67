// Package database provides the optional pre-cycle connectivity check.
// The backup tool authenticates on its own; this check only exists to
// fail fast with a clear message before a long backup is attempted.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"xtrabackup-runner/internal/backup"
	"xtrabackup-runner/internal/logging"
)

// mysqlAccessDenied is the server errno for rejected credentials.
const mysqlAccessDenied = 1045

// Preflight pings the MySQL server with the configured backup credentials.
type Preflight struct {
	conn   backup.ConnectionConfig
	cfg    backup.PreflightConfig
	logger *logging.Logger

	// open is swapped in tests for a mock database.
	open func(dsn string) (*sql.DB, error)
}

// NewPreflight creates a preflight checker from the cycle configuration.
func NewPreflight(cfg *backup.Config, logger *logging.Logger) *Preflight {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Preflight{
		conn:   cfg.Connection,
		cfg:    cfg.Preflight,
		logger: logger,
		open: func(dsn string) (*sql.DB, error) {
			return sql.Open("mysql", dsn)
		},
	}
}

// Check pings the server. Rejected credentials always fail; an unreachable
// server fails only when configured to, and is logged as a warning
// otherwise.
func (p *Preflight) Check(ctx context.Context) error {
	if !p.cfg.Enabled {
		return nil
	}

	start := time.Now()
	err := p.ping(ctx)
	p.logger.LogDatabaseConnection(p.conn.Host, p.conn.Port, err == nil, time.Since(start), err)

	if err == nil {
		return nil
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlAccessDenied {
		return backup.NewAuthRejectedError("preflight ping rejected the backup credentials", err).
			WithContext("host", p.conn.Host).
			WithContext("port", p.conn.Port)
	}

	if p.cfg.FailOnUnreachable {
		return backup.NewIOError(
			fmt.Sprintf("database %s:%s unreachable", p.conn.Host, p.conn.Port), err)
	}

	p.logger.Warnf("Preflight ping failed, continuing anyway: %v", err)
	return nil
}

func (p *Preflight) ping(ctx context.Context) error {
	db, err := p.open(p.dsn())
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.PingTimeoutSeconds)*time.Second)
	defer cancel()

	return db.PingContext(ctx)
}

func (p *Preflight) dsn() string {
	dsn := mysql.Config{
		User:                 p.conn.Username,
		Passwd:               p.conn.Password,
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%s", p.conn.Host, p.conn.Port),
		Timeout:              time.Duration(p.cfg.PingTimeoutSeconds) * time.Second,
		AllowNativePasswords: true,
	}
	return dsn.FormatDSN()
}
