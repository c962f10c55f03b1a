package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/citizen-alerts-service/internal/domain"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeAlertTable(w io.Writer, alerts []domain.Alert) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tTYPE\tTITLE\tLOCATION\tREPORTED\tVERIFIED\tID")
	for _, a := range alerts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			a.Severity,
			a.Type.Label(),
			truncate(a.Title, 48),
			locationLabel(a.Location),
			a.CreatedAt.Format(time.RFC3339),
			a.IsVerified,
			a.ID,
		)
	}
	return tw.Flush()
}

func locationLabel(l domain.Location) string {
	if l.Address != "" {
		return truncate(l.Address, 32)
	}
	return fmt.Sprintf("%.4f,%.4f", l.Latitude, l.Longitude)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
