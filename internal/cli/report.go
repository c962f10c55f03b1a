package cli

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/citizen-alerts-service/internal/domain"
	"github.com/couchcryptid/citizen-alerts-service/internal/observability"
)

type reportOptions struct {
	alertType           string
	title               string
	description         string
	lat                 float64
	lon                 float64
	address             string
	locationDescription string
	severity            string
	anonymity           string
	reporterID          string
	incidentID          int64
}

func newReportCmd(root *rootOptions) *cobra.Command {
	o := &reportOptions{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Submit a user report to the incidents service",
		Long: `Submit a user report. Without --lat/--lon the report is placed at
DEFAULT_LAT/DEFAULT_LON. With --incident-id the report corroborates an
existing incident instead of opening a new one.`,
		Example: `  citizen-alerts report --type fire --severity high --lat 22.2819 --lon 114.1577 \
    --title "Smoke from rooftop" --address "Central"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			logger := observability.NewLoggerTo(os.Stderr, cfg)

			in, err := o.input(cmd)
			if err != nil {
				return err
			}
			var existing *int64
			if cmd.Flags().Changed("incident-id") {
				id := o.incidentID
				existing = &id
			}

			a := newApp(cfg, logger, newMetrics())
			defer a.Close()

			alert, err := a.pipeline.Submit(cmd.Context(), in, existing)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), alert)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&o.alertType, "type", "other", "alert type (slug or label)")
	fl.StringVar(&o.title, "title", "", "short title (default: the type label)")
	fl.StringVar(&o.description, "description", "", "what happened")
	fl.Float64Var(&o.lat, "lat", 0, "latitude")
	fl.Float64Var(&o.lon, "lon", 0, "longitude")
	fl.StringVar(&o.address, "address", "", "street address of the location")
	fl.StringVar(&o.locationDescription, "location-description", "", "free-text location description (default: --address)")
	fl.StringVar(&o.severity, "severity", "medium", "low, medium, high or critical")
	fl.StringVar(&o.anonymity, "anonymity", "anonymous", "anonymous, nickname or verified")
	fl.StringVar(&o.reporterID, "reporter", "", "reporter identifier, attached unless anonymous")
	fl.Int64Var(&o.incidentID, "incident-id", 0, "attach the report to this existing incident")
	return cmd
}

func (o *reportOptions) input(cmd *cobra.Command) (domain.UserReportInput, error) {
	t, ok := domain.ParseAlertType(o.alertType)
	if !ok {
		return domain.UserReportInput{}, errors.New("unknown alert type " + strconv.Quote(o.alertType))
	}
	sev, ok := domain.ParseSeverity(o.severity)
	if !ok {
		return domain.UserReportInput{}, errors.New("unknown severity " + strconv.Quote(o.severity))
	}
	anon := domain.Anonymity(strings.ToLower(o.anonymity))
	if !anon.Valid() {
		return domain.UserReportInput{}, errors.New("unknown anonymity " + strconv.Quote(o.anonymity))
	}

	in := domain.UserReportInput{
		Type:                t,
		Title:               o.title,
		Description:         o.description,
		LocationDescription: o.locationDescription,
		Severity:            sev,
		Anonymity:           anon,
		ReporterID:          o.reporterID,
	}

	latSet, lonSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon")
	if latSet != lonSet {
		return in, errors.New("--lat and --lon must be given together")
	}
	if latSet {
		in.Location = &domain.Location{Latitude: o.lat, Longitude: o.lon, Address: o.address}
	}
	return in, nil
}
