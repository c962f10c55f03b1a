package cli

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/citizen-alerts-service/internal/domain"
	"github.com/couchcryptid/citizen-alerts-service/internal/observability"
	"github.com/couchcryptid/citizen-alerts-service/internal/store"
)

type alertsOptions struct {
	alertType string
	text      string
	radiusKm  float64
	lat       float64
	lon       float64
	sort      string
	ongoing   string
	output    string
}

func newAlertsCmd(root *rootOptions) *cobra.Command {
	o := &alertsOptions{}
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Fetch incidents once and print the resulting alerts",
		Example: `  citizen-alerts alerts --type fire --sort severity
  citizen-alerts alerts --radius 2 --lat 22.2819 --lon 114.1577 --sort distance -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			logger := observability.NewLoggerTo(os.Stderr, cfg)

			f, key, err := o.query(cmd)
			if err != nil {
				return err
			}
			ongoing := cfg.FetchOngoing
			if cmd.Flags().Changed("ongoing") {
				if ongoing, err = parseOngoingFlag(o.ongoing); err != nil {
					return err
				}
			}

			a := newApp(cfg, logger, newMetrics())
			defer a.Close()

			if err := a.pipeline.Fetch(cmd.Context(), ongoing); err != nil {
				return err
			}
			alerts := a.pipeline.Query(f, key)

			if o.output == "json" {
				return writeJSON(cmd.OutOrStdout(), alerts)
			}
			return writeAlertTable(cmd.OutOrStdout(), alerts)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&o.alertType, "type", "", "only show this alert type (slug or label)")
	fl.StringVar(&o.text, "text", "", "only show alerts whose title or description contains this text")
	fl.Float64Var(&o.radiusKm, "radius", 0, "only show alerts within this many km of --lat/--lon or DEFAULT_LAT/DEFAULT_LON")
	fl.Float64Var(&o.lat, "lat", 0, "reference latitude")
	fl.Float64Var(&o.lon, "lon", 0, "reference longitude")
	fl.StringVar(&o.sort, "sort", "recency", "sort order: recency, distance or severity")
	fl.StringVar(&o.ongoing, "ongoing", "", "isOngoing filter: true, false or any (default: FETCH_ONGOING)")
	fl.StringVarP(&o.output, "output", "o", "table", "output format: table or json")
	return cmd
}

func (o *alertsOptions) query(cmd *cobra.Command) (store.Filter, store.SortKey, error) {
	var f store.Filter
	if o.alertType != "" {
		t, ok := domain.ParseAlertType(o.alertType)
		if !ok {
			return f, "", errors.New("unknown alert type " + strconv.Quote(o.alertType))
		}
		f.Type = t
	}
	f.Text = o.text

	latSet, lonSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon")
	if latSet != lonSet {
		return f, "", errors.New("--lat and --lon must be given together")
	}
	if latSet {
		if !domain.ValidCoordinates(o.lat, o.lon) {
			return f, "", errors.New("--lat/--lon out of range")
		}
		f.Center = &domain.Location{Latitude: o.lat, Longitude: o.lon}
	}
	if cmd.Flags().Changed("radius") {
		if o.radiusKm < 0 {
			return f, "", errors.New("--radius must not be negative")
		}
		r := o.radiusKm
		f.RadiusKm = &r
	}

	key, err := store.ParseSortKey(o.sort)
	if err != nil {
		return f, "", err
	}
	switch o.output {
	case "table", "json":
	default:
		return f, "", errors.New("--output must be table or json")
	}
	return f, key, nil
}

func parseOngoingFlag(s string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, errors.New("--ongoing must be true, false or any")
	}
	return &b, nil
}
