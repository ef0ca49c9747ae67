package execution

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"xtrabackup-runner/internal/errors"
	"xtrabackup-runner/internal/logging"
)

// Outcome classifies how a supervised backup command finished.
type Outcome string

const (
	// OutcomeSuccess means the command exited zero and reported completion.
	OutcomeSuccess Outcome = "success"
	// OutcomeTimeout means the password prompt never arrived within the
	// handshake timeout and the process was killed.
	OutcomeTimeout Outcome = "timeout"
	// OutcomeNonZeroExit means the command ran but did not succeed.
	OutcomeNonZeroExit Outcome = "non_zero_exit"
	// OutcomeAuthRejected means the server refused the configured
	// credentials.
	OutcomeAuthRejected Outcome = "auth_rejected"
)

// Markers scanned for on the combined stdout/stderr stream. xtrabackup asks
// for the password on its terminal, prints "completed OK!" as the last line
// of a successful run, and relays the server's "Access denied" message when
// credentials are wrong.
const (
	passwordPrompt    = "Enter password"
	successMarker     = "completed OK!"
	authFailureMarker = "Access denied for user"
)

// outputTailLimit bounds how much combined output a Result retains for
// diagnostics.
const outputTailLimit = 32 * 1024

// killGrace is how long the supervisor waits for the output stream to drain
// after killing the child before force-closing the pipe.
const killGrace = 5 * time.Second

// Command describes one supervised invocation.
type Command struct {
	// Path is the program to run; Args are its arguments, sudo included
	// when configured.
	Path string
	Args []string
	// Password is written to the child's stdin once the password prompt
	// appears on its combined output.
	Password string
	// HandshakeTimeout bounds the wait for the password prompt. Once the
	// password has been delivered, the run is waited on without a
	// deadline; backups take as long as they take.
	HandshakeTimeout time.Duration
	// Mirror receives a live copy of the child's combined output. Nil
	// discards it.
	Mirror io.Writer
}

// Result describes a finished supervised run.
type Result struct {
	Outcome  Outcome
	ExitCode int
	Duration time.Duration
	// OutputTail is the end of the child's combined output, kept for
	// error reporting.
	OutputTail string
}

// Runner runs supervised backup commands. The engine depends on this
// interface so tests can substitute the real tool.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Supervisor runs the backup tool, answers its password prompt, and
// classifies how it finished.
type Supervisor struct {
	logger *logging.Logger
}

// NewSupervisor creates a supervisor.
func NewSupervisor(logger *logging.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &Supervisor{logger: logger}
}

// Run starts the command and supervises it to completion. Classification
// failures (timeout, auth rejection, non-zero exit) are reported through the
// Result, not the error; the error covers setup problems only.
func (s *Supervisor) Run(ctx context.Context, spec Command) (*Result, error) {
	start := time.Now()

	cmd := exec.Command(spec.Path, spec.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.WrapError(err, "failed to open stdin pipe")
	}

	// stdout and stderr share one pipe so prompt and error markers are
	// seen no matter which stream the tool writes them to.
	pr, pw, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, errors.WrapError(err, "failed to open output pipe")
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	s.logger.Debugf("Starting supervised command: %s", strings.Join(logging.SanitizeArgs(append([]string{spec.Path}, spec.Args...)), " "))

	if err := cmd.Start(); err != nil {
		stdin.Close()
		pw.Close()
		pr.Close()
		return nil, errors.WrapError(err, "failed to start backup command")
	}
	// The child holds its own copy of the write end.
	pw.Close()

	scan := newOutputScan(spec.Mirror)
	scanDone := make(chan struct{})
	go func() {
		scan.consume(pr)
		close(scanDone)
	}()

	handshake := time.NewTimer(spec.HandshakeTimeout)
	defer handshake.Stop()

	select {
	case <-scan.prompted:
		if _, werr := io.WriteString(stdin, spec.Password+"\n"); werr != nil {
			s.logger.Warnf("Failed to deliver password: %v", werr)
		}
		stdin.Close()
	case <-scanDone:
		// The child finished without ever prompting. Nothing to
		// deliver; classification happens below.
		stdin.Close()
	case <-handshake.C:
		stdin.Close()
		s.abort(cmd, pr, scanDone)
		cmd.Wait()
		return &Result{
			Outcome:    OutcomeTimeout,
			ExitCode:   -1,
			Duration:   time.Since(start),
			OutputTail: scan.tail(),
		}, nil
	case <-ctx.Done():
		stdin.Close()
		s.abort(cmd, pr, scanDone)
		cmd.Wait()
		return &Result{
			Outcome:    OutcomeNonZeroExit,
			ExitCode:   -1,
			Duration:   time.Since(start),
			OutputTail: scan.tail(),
		}, nil
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-ctx.Done():
		s.abort(cmd, pr, scanDone)
		waitErr = <-waitCh
	}

	select {
	case <-scanDone:
	case <-time.After(killGrace):
		pr.Close()
		<-scanDone
	}

	exitCode := 0
	if waitErr != nil {
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			return nil, errors.WrapError(waitErr, "failed to wait for backup command")
		}
		exitCode = exitErr.ExitCode()
	}

	result := &Result{
		ExitCode:   exitCode,
		Duration:   time.Since(start),
		OutputTail: scan.tail(),
	}

	switch {
	case scan.sawAuthFailure():
		result.Outcome = OutcomeAuthRejected
	case exitCode != 0:
		result.Outcome = OutcomeNonZeroExit
	case !scan.sawSuccess():
		// A zero exit without the completion marker is not trusted.
		result.Outcome = OutcomeNonZeroExit
	default:
		result.Outcome = OutcomeSuccess
	}

	s.logger.Debugf("Supervised command finished: outcome=%s exit=%d duration=%s",
		result.Outcome, result.ExitCode, result.Duration)

	return result, nil
}

// abort kills the child and drains the output stream, force-closing the pipe
// if a grandchild keeps it open past the grace period.
func (s *Supervisor) abort(cmd *exec.Cmd, pr *os.File, scanDone chan struct{}) {
	if cmd.Process != nil {
		cmd.Process.Kill()
	}
	select {
	case <-scanDone:
	case <-time.After(killGrace):
		pr.Close()
		<-scanDone
	}
}

// outputScan consumes the child's combined output, watching for the password
// prompt and the completion/auth markers while keeping a bounded tail.
type outputScan struct {
	mirror io.Writer

	prompted chan struct{}

	mu          sync.Mutex
	window      string
	tailBuf     []byte
	success     bool
	authFailure bool
}

func newOutputScan(mirror io.Writer) *outputScan {
	return &outputScan{
		mirror:   mirror,
		prompted: make(chan struct{}),
	}
}

// consume reads r until EOF. The prompt marker can arrive without a trailing
// newline, so matching works on raw chunks with a carry-over window rather
// than on lines.
func (o *outputScan) consume(r io.Reader) {
	// Window large enough that a marker split across two reads still
	// matches.
	const windowCarry = 64

	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if o.mirror != nil {
				o.mirror.Write(chunk)
			}

			o.mu.Lock()
			o.window += string(chunk)
			if strings.Contains(o.window, passwordPrompt) {
				select {
				case <-o.prompted:
				default:
					close(o.prompted)
				}
			}
			if strings.Contains(o.window, successMarker) {
				o.success = true
			}
			if strings.Contains(o.window, authFailureMarker) {
				o.authFailure = true
			}
			if len(o.window) > windowCarry {
				o.window = o.window[len(o.window)-windowCarry:]
			}

			o.tailBuf = append(o.tailBuf, chunk...)
			if len(o.tailBuf) > outputTailLimit {
				o.tailBuf = o.tailBuf[len(o.tailBuf)-outputTailLimit:]
			}
			o.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (o *outputScan) sawSuccess() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.success
}

func (o *outputScan) sawAuthFailure() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.authFailure
}

func (o *outputScan) tail() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return string(o.tailBuf)
}
