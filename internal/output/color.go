package output

import (
	"os"

	"github.com/bimmerbailey/cyro/internal/config"
	"golang.org/x/term"
)

// ANSI color codes
const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorGray    = "\033[90m"
	colorBold    = "\033[1m"
)

// ColorMode determines when to use colored output.
type ColorMode int

const (
	ColorAuto   ColorMode = iota // Auto-detect based on TTY
	ColorAlways                  // Always use colors
	ColorNever                   // Never use colors
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ShouldColorize determines if output to w should be colorized based on mode
// and TTY detection.
func ShouldColorize(mode ColorMode, w interface{}) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	case ColorAuto:
		if f, ok := w.(*os.File); ok {
			return isTerminal(f)
		}
		return false
	}
	return false
}

// ColorizeLine applies color to an entire log line based on its severity.
func ColorizeLine(level config.Level, line string) string {
	switch level {
	case config.LevelDebug, config.LevelTrace:
		return colorGray + line + colorReset
	case config.LevelWarn:
		return colorYellow + line + colorReset
	case config.LevelError:
		return colorRed + line + colorReset
	case config.LevelCritical:
		return colorBold + colorRed + line + colorReset
	default:
		return line // INFO and UNKNOWN use default color
	}
}

// noveltyColor maps novelty in [0,1) to a green→yellow→red gradient, so the
// most surprising alerts stand out at a glance.
func noveltyColor(novelty float64) string {
	switch {
	case novelty < 0.6:
		return colorGreen
	case novelty < 0.9:
		return colorYellow
	default:
		return colorRed
	}
}

func paint(color, text string, colorize bool) string {
	if !colorize {
		return text
	}
	return color + text + colorReset
}
