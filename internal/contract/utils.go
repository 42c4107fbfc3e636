package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/cfpscan/schema"
)

// Color variables for console output.
var (
	DenseColor    = color.New(color.FgRed, color.Bold)     // DenseColor marks movement-heavy code.
	HighColor     = color.New(color.FgMagenta, color.Bold) // HighColor marks above-average density.
	ModerateColor = color.New(color.FgYellow)              // ModerateColor marks typical density, not bold.
	SparseColor   = color.New(color.FgCyan)                // SparseColor marks few movements per line.
)

// GetPlainLabel returns a plain text density label for a cfp_per_kloc value.
// This is the core logic used for CSV, JSON, and table printing.
func GetPlainLabel(cfpPerKLOC float64) string {
	return string(schema.GetDensityBand(cfpPerKLOC))
}

// GetColorLabel returns a colored text label for console output (table).
// It uses GetPlainLabel to determine the string, and then applies the appropriate color.
func GetColorLabel(cfpPerKLOC float64) string {
	text := GetPlainLabel(cfpPerKLOC)

	switch schema.DensityBand(text) {
	case schema.DenseBand:
		return DenseColor.Sprint(text)
	case schema.HighBand:
		return HighColor.Sprint(text)
	case schema.ModerateBand:
		return ModerateColor.Sprint(text)
	default: // "Sparse"
		return SparseColor.Sprint(text)
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path or "-" selects os.Stdout. Missing parent
// directories are created.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" || filePath == StdoutMarker {
		return os.Stdout, nil
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetCacheDBFilePath returns the path to the SQLite DB file for the scan cache.
func GetCacheDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".cfpscan_cache.db"
	}
	return filepath.Join(homeDir, ".cfpscan_cache.db")
}

// GetAnalysisDBFilePath returns the path to the SQLite DB file for run tracking.
func GetAnalysisDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".cfpscan_analysis.db"
	}
	return filepath.Join(homeDir, ".cfpscan_analysis.db")
}

// TruncatePath truncates a path to a maximum width with ellipsis prefix.
// Requires maxWidth > 3 so there is room for "..." and one character.
func TruncatePath(path string, maxWidth int) string {
	runes := []rune(path)
	if len(runes) > maxWidth && maxWidth > 3 {
		return "..." + string(runes[len(runes)-maxWidth+3:])
	}
	return path
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
