package reconcile

import (
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// WriteSummary renders one row per pair.
func WriteSummary(w io.Writer, r *Result) error {
	table := tablewriter.NewWriter(w)
	table.Header("PROJECT", "PROVIDER", "MODE", "STATUS", "DURATION", "ERROR")

	for _, p := range r.Pairs {
		status, msg := "OK", ""
		if p.Err != nil {
			status = "FAIL"
			msg = firstLine(p.Err.Error())
		}
		if err := table.Append(p.Project, p.Provider, string(p.Mode), status, p.Duration.Round(time.Millisecond).String(), msg); err != nil {
			return err
		}
	}

	return table.Render()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
