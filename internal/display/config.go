package display

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// DisplayConfig holds configuration for visual display options
type DisplayConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled" yaml:"color_enabled"`
	Theme        string `mapstructure:"theme" yaml:"theme"`
	UseIcons     bool   `mapstructure:"use_icons" yaml:"use_icons"`
	ShowProgress bool   `mapstructure:"show_progress" yaml:"show_progress"`
	QuietMode    bool   `mapstructure:"quiet" yaml:"quiet"`

	// Writer receives all output; defaults to stdout.
	Writer io.Writer `mapstructure:"-" yaml:"-"`
}

// ThemeName represents available color themes
type ThemeName string

const (
	ThemeDark  ThemeName = "dark"
	ThemeLight ThemeName = "light"
	ThemePlain ThemeName = "plain"
	ThemeAuto  ThemeName = "auto"
)

// DefaultDisplayConfig returns a default display configuration
func DefaultDisplayConfig() *DisplayConfig {
	return &DisplayConfig{
		ColorEnabled: true,
		Theme:        string(ThemeDark),
		UseIcons:     true,
		ShowProgress: true,
		QuietMode:    false,
		Writer:       os.Stdout,
	}
}

// Validate validates the display configuration
func (dc *DisplayConfig) Validate() error {
	switch ThemeName(dc.Theme) {
	case ThemeDark, ThemeLight, ThemePlain, ThemeAuto:
		return nil
	default:
		return fmt.Errorf("invalid theme %q, must be one of: dark, light, plain, auto", dc.Theme)
	}
}

// ApplyEnvironment adjusts the configuration from the terminal environment.
// Non-terminal output disables color, icons and progress so piped output
// stays machine-readable.
func (dc *DisplayConfig) ApplyEnvironment() {
	if f, ok := dc.Writer.(*os.File); ok {
		if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
			dc.ColorEnabled = false
			dc.UseIcons = false
			dc.ShowProgress = false
		}
	}

	if os.Getenv("NO_COLOR") != "" {
		dc.ColorEnabled = false
	}
}
