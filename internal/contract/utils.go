package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

// Quality gate level constants.
const (
	LevelOK    = "OK"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Color variables for console output.
var (
	ErrorColor = color.New(color.FgRed, color.Bold) // failed quality gate
	WarnColor  = color.New(color.FgYellow)          // warning quality gate
	OKColor    = color.New(color.FgGreen)           // passed quality gate
	EventColor = color.New(color.FgCyan)            // event annotations
	GapColor   = color.New(color.Faint)             // missing samples
)

// GetColorLevel returns a colored quality gate level for console output (table).
// Unknown levels are returned unchanged.
func GetColorLevel(level string) string {
	switch strings.ToUpper(level) {
	case LevelError:
		return ErrorColor.Sprint(level)
	case LevelWarn:
		return WarnColor.Sprint(level)
	case LevelOK:
		return OKColor.Sprint(level)
	default:
		return level
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path selects os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
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

// GetCacheDBFilePath returns the path to the SQLite DB file for the fetch cache.
func GetCacheDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".activity_cache.db"
	}
	return filepath.Join(homeDir, ".activity_cache.db")
}

// GetHistoryDBFilePath returns the path to the SQLite DB file for history storage.
func GetHistoryDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".activity_history.db"
	}
	return filepath.Join(homeDir, ".activity_history.db")
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

// TruncateString shortens s to maxWidth runes with a trailing ellipsis.
func TruncateString(s string, maxWidth int) string {
	runes := []rune(s)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return s
}

// ParseMetricList splits a comma separated metric list, dropping blanks.
func ParseMetricList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
