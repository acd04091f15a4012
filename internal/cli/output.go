package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

type printer struct {
	w      io.Writer
	format string
}

// print renders v as json or yaml, or calls table for the human format.
func (p printer) print(v any, table func(w io.Writer)) error {
	switch p.format {
	case "json":
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}

func (p printer) message(format string, args ...any) error {
	if p.format != "table" {
		return p.print(map[string]string{"message": fmt.Sprintf(format, args...)}, nil)
	}
	_, err := fmt.Fprintf(p.w, format+"\n", args...)
	return err
}

func pageFooter(w io.Writer, current, total, count int) {
	if total > 1 {
		fmt.Fprintf(w, "\nPage %d of %d (%d total)\n", current, total, count)
	}
}
