package display

import (
	"os"

	"github.com/mattn/go-isatty"
)

// Icon represents a visual icon with Unicode and ASCII fallbacks
type Icon struct {
	Unicode string
	ASCII   string
	Color   Color
}

// IconSystem handles icon rendering with fallbacks
type IconSystem interface {
	GetIcon(name string) Icon
	RenderIcon(name string) string
	RenderIconWithColor(name string, colorSystem ColorSystem) string
	IsUnicodeSupported() bool
}

type iconSystem struct {
	unicodeSupported bool
	icons            map[string]Icon
}

// NewIconSystem creates a new icon system with Unicode detection
func NewIconSystem() IconSystem {
	is := &iconSystem{
		unicodeSupported: detectUnicodeSupport(),
	}

	is.initializeIcons()
	return is
}

// detectUnicodeSupport checks if the terminal supports Unicode characters
func detectUnicodeSupport() bool {
	if os.Getenv("FORCE_UNICODE") != "" {
		return true
	}

	if os.Getenv("NO_UNICODE") != "" {
		return false
	}

	if os.Getenv("LANG") == "C" || os.Getenv("LC_ALL") == "C" {
		return false
	}

	term := os.Getenv("TERM")
	if term == "dumb" || term == "vt100" {
		return false
	}

	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return false
	}

	return true
}

func (is *iconSystem) initializeIcons() {
	is.icons = map[string]Icon{
		// Chain entries
		"base": {
			Unicode: "\U0001F4E6",
			ASCII:   "[B]",
			Color:   ColorBlue,
		},
		"incremental": {
			Unicode: "\U0001F4C4",
			ASCII:   "[I]",
			Color:   ColorCyan,
		},
		"archive": {
			Unicode: "\U0001F5C4",
			ASCII:   "[A]",
			Color:   ColorMagenta,
		},

		// Cycle state
		"database": {
			Unicode: "\U0001F5C3",
			ASCII:   "[DB]",
			Color:   ColorBlue,
		},
		"lock": {
			Unicode: "\U0001F512",
			ASCII:   "[L]",
			Color:   ColorYellow,
		},
		"clock": {
			Unicode: "\U0001F552",
			ASCII:   "[T]",
			Color:   ColorYellow,
		},
		"upload": {
			Unicode: "☁",
			ASCII:   "[^]",
			Color:   ColorCyan,
		},

		// Status
		"success": {
			Unicode: "✅",
			ASCII:   "[OK]",
			Color:   ColorGreen,
		},
		"warning": {
			Unicode: "⚠",
			ASCII:   "[!]",
			Color:   ColorYellow,
		},
		"error": {
			Unicode: "❌",
			ASCII:   "[ERR]",
			Color:   ColorRed,
		},
		"info": {
			Unicode: "ℹ",
			ASCII:   "[i]",
			Color:   ColorCyan,
		},
	}
}

// GetIcon returns the icon definition for a name
func (is *iconSystem) GetIcon(name string) Icon {
	if icon, exists := is.icons[name]; exists {
		return icon
	}
	return Icon{Unicode: "?", ASCII: "?", Color: ColorWhite}
}

// RenderIcon renders an icon as plain text, honoring Unicode support
func (is *iconSystem) RenderIcon(name string) string {
	icon := is.GetIcon(name)
	if is.unicodeSupported {
		return icon.Unicode
	}
	return icon.ASCII
}

// RenderIconWithColor renders an icon with its associated color
func (is *iconSystem) RenderIconWithColor(name string, colorSystem ColorSystem) string {
	icon := is.GetIcon(name)
	text := icon.ASCII
	if is.unicodeSupported {
		text = icon.Unicode
	}
	if colorSystem == nil {
		return text
	}
	return colorSystem.Colorize(text, icon.Color)
}

// IsUnicodeSupported returns whether Unicode icons are rendered
func (is *iconSystem) IsUnicodeSupported() bool {
	return is.unicodeSupported
}
