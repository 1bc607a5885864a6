package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/huangsam/apigrade/internal/contract"
	"github.com/huangsam/apigrade/schema"
)

// PrintCallResult outputs one call result, dispatching based on the output format configured.
func PrintCallResult(result *schema.CallResult, cfg *contract.Config) error {
	if result == nil {
		return fmt.Errorf("no call result to print")
	}
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, result)
		}, "Wrote JSON")
	case schema.YAMLOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeYAML(w, result)
		}, "Wrote YAML")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVCall(w, result)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCallText(w, result, cfg)
		}, "Wrote text")
	}
}

// writeCallText prints the status line, headers and an indented body.
func writeCallText(w io.Writer, result *schema.CallResult, cfg *contract.Config) error {
	status := strconv.Itoa(result.StatusCode)
	if cfg.UseColors {
		if result.IsSuccess() {
			status = contract.PassColor.Sprint(status)
		} else {
			status = contract.FailColor.Sprint(status)
		}
	}
	if _, err := fmt.Fprintf(w, "%s %s -> %s (%v)\n", result.Method, result.URL, status, result.Duration.Round(time.Millisecond)); err != nil {
		return err
	}

	names := make([]string, 0, len(result.Headers))
	for name := range result.Headers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%s\n", contract.MutedColor.Sprintf("%s: %s", name, result.Headers[name])); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	switch body := result.Body.(type) {
	case nil:
		return nil
	case string:
		_, err := fmt.Fprintln(w, body)
		return err
	default:
		return writeJSON(w, body)
	}
}

func writeCSVCall(w io.Writer, result *schema.CallResult) error {
	body, err := json.Marshal(result.Body)
	if err != nil {
		return fmt.Errorf("failed to encode body: %w", err)
	}
	header := []string{"operation_id", "method", "url", "status_code", "duration_ms", "body"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		return cw.Write([]string{
			result.OperationID,
			result.Method,
			result.URL,
			strconv.Itoa(result.StatusCode),
			strconv.FormatInt(result.Duration.Milliseconds(), 10),
			string(body),
		})
	})
}
