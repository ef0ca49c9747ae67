package display

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// spinnerFrames is the frame sequence for terminal spinners.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// spinnerHandle implements SpinnerHandle
type spinnerHandle struct {
	id     string
	mu     sync.Mutex
	active bool
	done   chan struct{}
}

func (h *spinnerHandle) ID() string {
	return h.id
}

func (h *spinnerHandle) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

func (h *spinnerHandle) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active {
		h.active = false
		close(h.done)
	}
}

// Spinner animates a message while a long phase runs. When animation is
// disabled it prints the message once and stays silent.
type Spinner struct {
	writer  io.Writer
	animate bool
}

// NewSpinner creates a spinner writing to w
func NewSpinner(w io.Writer, animate bool) *Spinner {
	return &Spinner{writer: w, animate: animate}
}

// Start begins the spinner animation and returns its handle
func (s *Spinner) Start(message string) SpinnerHandle {
	handle := &spinnerHandle{
		id:     uuid.New().String()[:8],
		active: true,
		done:   make(chan struct{}),
	}

	if !s.animate {
		fmt.Fprintf(s.writer, "%s...\n", message)
		return handle
	}

	go func() {
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		frame := 0
		for {
			select {
			case <-handle.done:
				fmt.Fprint(s.writer, "\r\033[K")
				return
			case <-ticker.C:
				fmt.Fprintf(s.writer, "\r%s %s", spinnerFrames[frame%len(spinnerFrames)], message)
				frame++
			}
		}
	}()

	return handle
}

// Stop ends the animation and prints the final message
func (s *Spinner) Stop(handle SpinnerHandle, finalMessage string) {
	if h, ok := handle.(*spinnerHandle); ok {
		h.stop()
	}
	if finalMessage != "" {
		// Give the animation goroutine a tick to clear its line.
		if s.animate {
			time.Sleep(10 * time.Millisecond)
		}
		fmt.Fprintln(s.writer, finalMessage)
	}
}
