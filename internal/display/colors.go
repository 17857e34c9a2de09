package display

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

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
)

// ColorTheme maps semantic roles to colors
type ColorTheme struct {
	Primary   Color
	Success   Color
	Warning   Color
	Error     Color
	Info      Color
	Muted     Color
	Highlight Color
}

// DefaultColorTheme returns the default color theme
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

// ColorSystem handles color application and terminal detection
type ColorSystem struct {
	theme          ColorTheme
	colorSupported bool
	profile        termenv.Profile
	colorMap       map[Color]*color.Color
}

// NewColorSystem creates a color system with terminal detection
func NewColorSystem(theme ColorTheme) *ColorSystem {
	cs := &ColorSystem{
		theme:          theme,
		colorSupported: detectColorSupport(),
		profile:        termenv.ColorProfile(),
	}

	cs.colorMap = map[Color]*color.Color{
		ColorReset:        color.New(color.Reset),
		ColorRed:          color.New(color.FgRed),
		ColorGreen:        color.New(color.FgGreen),
		ColorYellow:       color.New(color.FgYellow),
		ColorBlue:         color.New(color.FgBlue),
		ColorMagenta:      color.New(color.FgMagenta),
		ColorCyan:         color.New(color.FgCyan),
		ColorWhite:        color.New(color.FgWhite),
		ColorBrightRed:    color.New(color.FgHiRed),
		ColorBrightGreen:  color.New(color.FgHiGreen),
		ColorBrightYellow: color.New(color.FgHiYellow),
		ColorBrightBlue:   color.New(color.FgHiBlue),
	}

	if !cs.colorSupported {
		color.NoColor = true
	}

	return cs
}

// DisableColors turns off all color output for the process, regardless of
// terminal detection.
func DisableColors() {
	color.NoColor = true
}

// detectColorSupport checks if the terminal supports colors
func detectColorSupport() bool {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return false
	}

	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}

	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}

	return true
}

// Colorize applies color to text if color is supported
func (cs *ColorSystem) Colorize(text string, clr Color) string {
	if !cs.colorSupported {
		return text
	}

	if colorFunc, exists := cs.colorMap[clr]; exists {
		return colorFunc.Sprint(text)
	}

	return text
}

// Sprintf formats and colorizes in one step
func (cs *ColorSystem) Sprintf(clr Color, format string, args ...interface{}) string {
	return cs.Colorize(fmt.Sprintf(format, args...), clr)
}

// IsColorSupported reports whether the terminal supports colors
func (cs *ColorSystem) IsColorSupported() bool {
	return cs.colorSupported
}

// Theme returns the active theme
func (cs *ColorSystem) Theme() ColorTheme {
	return cs.theme
}
