package backup

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCycleErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *CycleError
		want string
	}{
		{
			name: "without cause",
			err:  NewConfigError("retention count is negative", nil),
			want: "CONFIG_ERROR: retention count is negative",
		},
		{
			name: "with cause",
			err:  NewIOError("cannot clear backup root", errors.New("permission denied")),
			want: "IO_ERROR: cannot clear backup root (caused by: permission denied)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCycleErrorUnwrap(t *testing.T) {
	cause := errors.New("exit status 3")
	err := NewToolExecutionError("xtrabackup failed", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause through Unwrap")
	}
}

func TestCycleErrorWithContext(t *testing.T) {
	err := NewTimeoutError("backup exceeded deadline", nil).
		WithContext("target_dir", "/data/backups/mysql/inc_2").
		WithContext("timeout_seconds", 30)

	if err.Context["target_dir"] != "/data/backups/mysql/inc_2" {
		t.Errorf("unexpected context: %v", err.Context)
	}
	if err.Context["timeout_seconds"] != 30 {
		t.Errorf("unexpected context: %v", err.Context)
	}
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		authRejected bool
		timeout      bool
		retryable    bool
		permanent    bool
	}{
		{
			name:         "auth rejection",
			err:          NewAuthRejectedError("access denied for user", nil),
			authRejected: true,
			permanent:    true,
		},
		{
			name:    "timeout",
			err:     NewTimeoutError("no prompt before deadline", nil),
			timeout: true,
		},
		{
			name:      "io error is retryable",
			err:       NewIOError("upload failed", nil),
			retryable: true,
		},
		{
			name:      "config error is permanent",
			err:       NewConfigError("empty backup root", nil),
			permanent: true,
		},
		{
			name: "plain error matches nothing",
			err:  errors.New("boom"),
		},
		{
			name:         "wrapped auth rejection still detected",
			err:          fmt.Errorf("cycle failed: %w", NewAuthRejectedError("access denied for user", nil)),
			authRejected: true,
			permanent:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthRejected(tt.err); got != tt.authRejected {
				t.Errorf("IsAuthRejected() = %v, want %v", got, tt.authRejected)
			}
			if got := IsTimeout(tt.err); got != tt.timeout {
				t.Errorf("IsTimeout() = %v, want %v", got, tt.timeout)
			}
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
			if got := IsPermanent(tt.err); got != tt.permanent {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.permanent)
			}
		})
	}
}

func TestLockAndEncryptionErrorFamilies(t *testing.T) {
	lockErr := NewLockError("lock held by another process", nil)
	if lockErr.Type != CycleErrorTypeIO {
		t.Errorf("lock error type = %v, want %v", lockErr.Type, CycleErrorTypeIO)
	}
	if lockErr.Context["subsystem"] != "lock" {
		t.Errorf("lock error context = %v", lockErr.Context)
	}

	encErr := NewEncryptionError("key file unreadable", nil)
	if encErr.Type != CycleErrorTypeArchive {
		t.Errorf("encryption error type = %v, want %v", encErr.Type, CycleErrorTypeArchive)
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors

	if errs.HasErrors() {
		t.Error("empty collection should have no errors")
	}

	errs.Add("archive.retention_count", "must not be negative", -1)
	errs.Add("general.command_timeout_seconds", "must be positive", 0)

	if !errs.HasErrors() {
		t.Error("expected errors after Add")
	}
	if len(errs) != 2 {
		t.Errorf("len = %d, want 2", len(errs))
	}
	if !strings.Contains(errs.Error(), "2 validation errors") {
		t.Errorf("unexpected message: %s", errs.Error())
	}
	if !strings.Contains(errs[0].Error(), "archive.retention_count") {
		t.Errorf("unexpected field message: %s", errs[0].Error())
	}
}
