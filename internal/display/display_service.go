package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Service implements DisplayService
type Service struct {
	mu          sync.Mutex
	config      *DisplayConfig
	colorSystem ColorSystem
	iconSystem  IconSystem
	spinner     *Spinner
}

// NewService creates a display service from the given configuration.
// A nil config gets the defaults with terminal detection applied.
func NewService(config *DisplayConfig) *Service {
	if config == nil {
		config = DefaultDisplayConfig()
		config.ApplyEnvironment()
	}
	if config.Writer == nil {
		config.Writer = DefaultDisplayConfig().Writer
	}

	theme := GetThemeByName(config.Theme)
	if !config.ColorEnabled {
		theme = PlainTextTheme()
	}

	return &Service{
		config:      config,
		colorSystem: NewColorSystem(theme),
		iconSystem:  NewIconSystem(),
		spinner:     NewSpinner(config.Writer, config.ShowProgress),
	}
}

// Success prints a success message
func (s *Service) Success(message string) {
	s.printStatus("success", message, s.colorSystem.GetTheme().Success)
}

// Warning prints a warning message
func (s *Service) Warning(message string) {
	s.printStatus("warning", message, s.colorSystem.GetTheme().Warning)
}

// Error prints an error message. Errors print even in quiet mode.
func (s *Service) Error(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	icon := s.icon("error")
	fmt.Fprintln(s.config.Writer, strings.TrimLeft(icon+" ", " ")+s.colorSystem.Colorize(message, s.colorSystem.GetTheme().Error))
}

// Info prints an informational message
func (s *Service) Info(message string) {
	s.printStatus("info", message, s.colorSystem.GetTheme().Info)
}

func (s *Service) printStatus(iconName, message string, clr Color) {
	if s.config.QuietMode {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	icon := s.icon(iconName)
	fmt.Fprintln(s.config.Writer, strings.TrimLeft(icon+" ", " ")+s.colorSystem.Colorize(message, clr))
}

func (s *Service) icon(name string) string {
	if !s.config.UseIcons {
		return ""
	}
	return s.iconSystem.RenderIconWithColor(name, s.colorSystem)
}

// PrintHeader prints a section header with an underline
func (s *Service) PrintHeader(title string) {
	if s.config.QuietMode {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.config.Writer)
	fmt.Fprintln(s.config.Writer, s.colorSystem.Colorize(title, s.colorSystem.GetTheme().Highlight))
	fmt.Fprintln(s.config.Writer, strings.Repeat("=", len(title)))
}

// PrintKeyValue prints one aligned key/value line
func (s *Service) PrintKeyValue(key, value string) {
	if s.config.QuietMode {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.config.Writer, "  %-24s %s\n",
		s.colorSystem.Colorize(key+":", s.colorSystem.GetTheme().Muted), value)
}

// PrintTable renders an aligned table
func (s *Service) PrintTable(headers []string, rows [][]string) {
	if s.config.QuietMode {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.config.Writer, NewTableFormatter(s.colorSystem).FormatTable(headers, rows))
}

// StartSpinner begins a progress spinner
func (s *Service) StartSpinner(message string) SpinnerHandle {
	return s.spinner.Start(message)
}

// StopSpinner ends a spinner with a final message
func (s *Service) StopSpinner(handle SpinnerHandle, finalMessage string) {
	s.spinner.Stop(handle, finalMessage)
}

// RenderIcon renders a named icon without color
func (s *Service) RenderIcon(name string) string {
	if !s.config.UseIcons {
		return ""
	}
	return s.iconSystem.RenderIcon(name)
}

// RenderIconWithColor renders a named icon with its color
func (s *Service) RenderIconWithColor(name string) string {
	return s.icon(name)
}

// SetOutput redirects all output to the given writer
func (s *Service) SetOutput(writer io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.Writer = writer
	s.spinner = NewSpinner(writer, s.config.ShowProgress)
}

// GetConfig returns the active display configuration
func (s *Service) GetConfig() *DisplayConfig {
	return s.config
}
