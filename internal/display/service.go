package display

import (
	"io"
)

// DisplayService provides formatting and terminal output for the CLI
type DisplayService interface {
	// Status messages
	Success(message string)
	Warning(message string)
	Error(message string)
	Info(message string)

	// Structured output
	PrintHeader(title string)
	PrintKeyValue(key, value string)
	PrintTable(headers []string, rows [][]string)

	// Progress indicators
	StartSpinner(message string) SpinnerHandle
	StopSpinner(handle SpinnerHandle, finalMessage string)

	// Icon rendering
	RenderIcon(name string) string
	RenderIconWithColor(name string) string

	// Configuration
	SetOutput(writer io.Writer)
	GetConfig() *DisplayConfig
}

// Color represents terminal color options
type Color int

const (
	ColorReset Color = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorWhite
	ColorBrightRed
	ColorBrightGreen
	ColorBrightYellow
	ColorBrightBlue
	ColorBrightCyan
	ColorBrightWhite
)

// ColorTheme defines the color scheme for different message types
type ColorTheme struct {
	Primary   Color
	Success   Color
	Warning   Color
	Error     Color
	Info      Color
	Muted     Color
	Highlight Color
}

// DefaultColorTheme returns a default color theme
func DefaultColorTheme() ColorTheme {
	return ColorTheme{
		Primary:   ColorBlue,
		Success:   ColorGreen,
		Warning:   ColorYellow,
		Error:     ColorRed,
		Info:      ColorCyan,
		Muted:     ColorWhite,
		Highlight: ColorBrightBlue,
	}
}

// SpinnerHandle represents a handle to a running spinner
type SpinnerHandle interface {
	ID() string
	IsActive() bool
}
