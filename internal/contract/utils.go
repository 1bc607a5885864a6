package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/apigrade/schema"
)

// Color variables for console output.
var (
	PassColor    = color.New(color.FgGreen, color.Bold) // PassColor marks a perfect rating.
	PartialColor = color.New(color.FgYellow)            // PartialColor marks a rating with some credit.
	FailColor    = color.New(color.FgRed, color.Bold)   // FailColor marks a zero rating or aborted run.
	MutedColor   = color.New(color.FgHiBlack)           // MutedColor is used for secondary details.
)

// GetPlainLabel returns a plain text label for a rating. This is the core
// logic used for CSV, JSON, and table printing.
func GetPlainLabel(rating float64) string {
	return string(schema.GetRatingLabel(rating))
}

// GetColorLabel returns a colored text label for console output (table).
func GetColorLabel(rating float64) string {
	text := GetPlainLabel(rating)

	switch schema.RatingLabel(text) {
	case schema.PassLabel:
		return PassColor.Sprint(text)
	case schema.PartialLabel:
		return PartialColor.Sprint(text)
	default:
		return FailColor.Sprint(text)
	}
}

// GetCheckMark returns a short pass/fail marker for a check row.
func GetCheckMark(passed, useColors bool) string {
	text := "FAIL"
	c := FailColor
	if passed {
		text = "ok"
		c = PassColor
	}
	if !useColors {
		return text
	}
	return c.Sprint(text)
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. It falls back to os.Stdout when no path is given.
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

// GetRunsDBFilePath returns the path to the SQLite DB file for run history.
func GetRunsDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".apigrade_runs.db"
	}
	return filepath.Join(homeDir, ".apigrade_runs.db")
}

// GetWorkDirPath returns the default directory where target repositories are checked out.
func GetWorkDirPath() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "apigrade")
	}
	return filepath.Join(cacheDir, "apigrade")
}

// TruncateText truncates text to a maximum width with an ellipsis suffix.
// Requires maxWidth > 3 so there is room for "..." and at least one character.
func TruncateText(text string, maxWidth int) string {
	runes := []rune(text)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return text
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

// ParseKeyValues turns "k=v" pairs into a map. A key given more than once
// collects its values into a list, in order.
func ParseKeyValues(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", pair)
		}
		switch prev := out[key].(type) {
		case nil:
			out[key] = value
		case string:
			out[key] = []any{prev, value}
		case []any:
			out[key] = append(prev, value)
		}
	}
	return out, nil
}
