package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/citizen-alerts-service/internal/domain"
	"github.com/couchcryptid/citizen-alerts-service/internal/observability"
)

type normalizeOptions struct {
	file   string
	output string
}

// normalizeSummary describes one offline normalization run.
type normalizeSummary struct {
	Received   int                      `json:"received"`
	Normalized int                      `json:"normalized"`
	Skipped    map[string]int           `json:"skipped"`
	ByType     map[domain.AlertType]int `json:"byType"`
	BySeverity map[domain.Severity]int  `json:"bySeverity"`
	Verified   int                      `json:"verified"`
}

func newNormalizeCmd(root *rootOptions) *cobra.Command {
	o := &normalizeOptions{}
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize a saved incidents response without contacting the backend",
		Long: `Read a JSON array of incidents (as returned by GET /api/incidents),
run it through normalization, and print type, severity and skip statistics.
Use --file - to read from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			logger := observability.NewLoggerTo(os.Stderr, cfg)

			raws, err := readIncidents(o.file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			result := domain.NormalizeAll(raws, logger)
			summary := summarize(len(raws), result)
			logger.Info("normalization complete",
				"received", summary.Received,
				"normalized", summary.Normalized,
				"skipped", result.SkippedTotal(),
			)

			switch o.output {
			case "alerts":
				return writeJSON(cmd.OutOrStdout(), result.Alerts)
			case "json":
				return writeJSON(cmd.OutOrStdout(), summary)
			default:
				return writeSummary(cmd.OutOrStdout(), summary)
			}
		},
	}
	cmd.Flags().StringVarP(&o.file, "file", "f", "", "incidents JSON file, or - for stdin")
	cmd.Flags().StringVarP(&o.output, "output", "o", "text", "output: text, json (summary) or alerts")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readIncidents(path string, stdin io.Reader) ([]domain.RawIncident, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open incidents file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var raws []domain.RawIncident
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, fmt.Errorf("decode incidents: %w", err)
	}
	if raws == nil {
		return nil, errors.New("decode incidents: expected a JSON array")
	}
	return raws, nil
}

func summarize(received int, result domain.NormalizeResult) normalizeSummary {
	s := normalizeSummary{
		Received:   received,
		Normalized: len(result.Alerts),
		Skipped:    make(map[string]int, len(result.Skipped)),
		ByType:     make(map[domain.AlertType]int),
		BySeverity: make(map[domain.Severity]int),
	}
	for reason, n := range result.Skipped {
		s.Skipped[reason] = n
	}
	for _, a := range result.Alerts {
		s.ByType[a.Type]++
		s.BySeverity[a.Severity]++
		if a.IsVerified {
			s.Verified++
		}
	}
	return s
}

func writeSummary(w io.Writer, s normalizeSummary) error {
	fmt.Fprintf(w, "received:   %d\n", s.Received)
	fmt.Fprintf(w, "normalized: %d (%d verified)\n", s.Normalized, s.Verified)

	fmt.Fprintln(w, "\nby type:")
	for _, t := range domain.AlertTypes() {
		if n := s.ByType[t]; n > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", t.Label(), n)
		}
	}

	fmt.Fprintln(w, "\nby severity:")
	for _, sev := range domain.Severities() {
		fmt.Fprintf(w, "  %-14s %d\n", sev, s.BySeverity[sev])
	}

	if len(s.Skipped) > 0 {
		reasons := make([]string, 0, len(s.Skipped))
		for r := range s.Skipped {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)

		fmt.Fprintln(w, "\nskipped:")
		for _, r := range reasons {
			fmt.Fprintf(w, "  %-22s %d\n", r, s.Skipped[r])
		}
	}
	return nil
}
