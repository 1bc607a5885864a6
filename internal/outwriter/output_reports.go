package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/apigrade/internal/contract"
	"github.com/huangsam/apigrade/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintReports outputs graded run reports, dispatching based on the output format configured.
func PrintReports(reports []schema.RunReport, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, fmtPercent := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, buildReportsRenderModel(reports))
		}, "Wrote JSON")
	case schema.YAMLOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeYAML(w, buildReportsRenderModel(reports))
		}, "Wrote YAML")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVReports(w, reports, fmtFloat)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeReportsTable(w, reports, cfg, fmtFloat, fmtPercent, duration)
		}, "Wrote table")
	}
}

// reportView is the serialized form of a report with its label resolved.
type reportView struct {
	Label string `json:"label" yaml:"label"`
	schema.RunReport `yaml:",inline"`
}

// buildReportsRenderModel attaches labels and keeps errors non-nil for encoders.
func buildReportsRenderModel(reports []schema.RunReport) []reportView {
	out := make([]reportView, len(reports))
	for i, r := range reports {
		if r.Errors == nil {
			r.Errors = []string{}
		}
		out[i] = reportView{Label: contract.GetPlainLabel(r.Rating), RunReport: r}
	}
	return out
}

// writeReportsTable writes the summary table, then one check table per report.
func writeReportsTable(w io.Writer, reports []schema.RunReport, cfg *contract.Config, fmtFloat, fmtPercent func(float64) string, duration time.Duration) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Name", "Project", "Rating", "Label", "Points", "Errors"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	nameWidth := getMaxMessageWidth(cfg, 50)
	var data [][]string
	for _, r := range reports {
		data = append(data, []string{
			contract.TruncateText(r.Name, nameWidth),
			r.ProjectID,
			fmtPercent(r.Rating),
			contract.GetColorLabel(r.Rating),
			fmt.Sprintf("%s/%s", fmtFloat(r.Achieved), fmtFloat(r.Total)),
			strconv.Itoa(len(r.Errors)),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	for _, r := range reports {
		if err := writeReportDetail(w, r, cfg, fmtFloat); err != nil {
			return err
		}
	}

	passed := 0
	for _, r := range reports {
		if r.Rating >= 1 {
			passed++
		}
	}
	if _, err := fmt.Fprintf(w, "\nGraded %d targets (%d passed) in %v with %d workers. Runs backend: %s\n",
		len(reports), passed, duration.Round(time.Millisecond), cfg.Workers, cfg.RunsBackend); err != nil {
		return err
	}
	return nil
}

// writeReportDetail lists the checks and errors of one report.
func writeReportDetail(w io.Writer, r schema.RunReport, cfg *contract.Config, fmtFloat func(float64) string) error {
	if _, err := fmt.Fprintf(w, "\n%s (%s)\n", r.Name, contract.MutedColor.Sprint(r.RunID)); err != nil {
		return err
	}

	if len(r.Checks) > 0 {
		table := tablewriter.NewWriter(w)
		table.Header([]string{"#", "Step", "Operation", "HTTP", "Weight", "Expect", "Result"})
		var data [][]string
		for i, c := range r.Checks {
			expect := "pass"
			if !c.ExpectPass {
				expect = "fail"
			}
			status := "-"
			if c.StatusCode > 0 {
				status = strconv.Itoa(c.StatusCode)
			}
			data = append(data, []string{
				strconv.Itoa(i + 1),
				c.Step,
				c.OperationID,
				status,
				fmtFloat(c.Weight),
				expect,
				contract.GetCheckMark(c.Passed, cfg.UseColors),
			})
		}
		if err := table.Bulk(data); err != nil {
			return err
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	msgWidth := getMaxMessageWidth(cfg, 4)
	for _, e := range r.Errors {
		if _, err := fmt.Fprintf(w, "  - %s\n", contract.TruncateText(e, msgWidth)); err != nil {
			return err
		}
	}
	return nil
}

// writeCSVReports writes one row per report; errors are joined with "|".
func writeCSVReports(w io.Writer, reports []schema.RunReport, fmtFloat func(float64) string) error {
	header := []string{"run_id", "name", "project_id", "scenario", "rating", "label", "achieved", "total", "aborted", "errors"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range reports {
			rec := []string{
				r.RunID,
				r.Name,
				r.ProjectID,
				r.Scenario,
				fmtFloat(r.Rating),
				contract.GetPlainLabel(r.Rating),
				fmtFloat(r.Achieved),
				fmtFloat(r.Total),
				strconv.FormatBool(r.Aborted),
				strings.Join(r.Errors, "|"),
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}
