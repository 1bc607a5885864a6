package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/huangsam/apigrade/internal/contract"
	"github.com/huangsam/apigrade/schema"
	"github.com/olekukonko/tablewriter"
)

// PrintCatalog outputs the operations of a document, dispatching based on the output format configured.
func PrintCatalog(model schema.CatalogRenderModel, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, model)
		}, "Wrote JSON")
	case schema.YAMLOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeYAML(w, model)
		}, "Wrote YAML")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVCatalog(w, model)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCatalogTable(w, model, cfg)
		}, "Wrote table")
	}
}

// formatParams renders parameters as name@location, required ones marked with "*".
func formatParams(t schema.OperationTemplate) string {
	parts := make([]string, 0, len(t.Parameters))
	for _, p := range t.Parameters {
		s := fmt.Sprintf("%s@%s", p.Name, p.In)
		if p.Required {
			s += "*"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// formatBody describes the request body of an operation.
func formatBody(t schema.OperationTemplate) string {
	switch {
	case t.BodyRequired:
		return "required"
	case t.HasBody:
		return "optional"
	default:
		return "-"
	}
}

func writeCatalogTable(w io.Writer, model schema.CatalogRenderModel, cfg *contract.Config) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Operation", "Method", "Path", "Params", "Body"})

	pathWidth := getMaxMessageWidth(cfg, 60)
	var data [][]string
	for _, t := range model.Operations {
		data = append(data, []string{
			t.ID,
			t.Method,
			contract.TruncateText(t.PathPattern, pathWidth),
			formatParams(t),
			formatBody(t),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%d operations from %s\n", len(model.Operations), model.Source)
	return err
}

func writeCSVCatalog(w io.Writer, model schema.CatalogRenderModel) error {
	header := []string{"operation_id", "method", "path", "params", "body"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, t := range model.Operations {
			if err := cw.Write([]string{t.ID, t.Method, t.PathPattern, formatParams(t), formatBody(t)}); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}
