package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/i474232898/airbot/internal/airquality"
	"github.com/i474232898/airbot/internal/airquality/providers"
	"github.com/i474232898/airbot/internal/config"
	"github.com/i474232898/airbot/internal/geo"
	"github.com/i474232898/airbot/internal/observability"
	"github.com/i474232898/airbot/internal/report"
	"github.com/i474232898/airbot/internal/store"
)

var outputJSON bool

var rootCmd = &cobra.Command{
	Use:          "airbot",
	Short:        "Air quality around a location from Airly and GIOS sensors",
	Long:         `Finds the Airly sensors and GIOS stations near a reference point and reports their current readings.`,
	SilenceUsage: true,
}

var airlyCmd = &cobra.Command{
	Use:   "airly",
	Short: "Print current readings of nearby Airly sensors",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runReport(cmd.Context(), airquality.SourceAirly)
	},
}

var giosCmd = &cobra.Command{
	Use:   "gios",
	Short: "Print latest values and 24h averages of nearby GIOS stations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runReport(cmd.Context(), airquality.SourceGIOS)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Refresh reports periodically and serve them over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	airlyCmd.Flags().BoolVar(&outputJSON, "json", false, "Output the report as JSON")
	giosCmd.Flags().BoolVar(&outputJSON, "json", false, "Output the report as JSON")

	rootCmd.AddCommand(airlyCmd, giosCmd, serveCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// app holds the wired components shared by every command.
type app struct {
	cfg     *config.AppConfig
	logger  *slog.Logger
	metrics *observability.Metrics
	store   *store.MemoryStore
	service *airquality.Service
}

func bootstrap(ctx context.Context, metrics *observability.Metrics) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	reference, err := resolveReference(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	settings := cfg.Settings(reference)
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	var airly airquality.AirlySource
	if cfg.AirlyAPIKey != "" {
		airly = providers.NewAirlyProvider(httpClient, cfg.AirlyBaseURL, cfg.AirlyAPIKey, metrics)
	} else {
		logger.Warn("AIRLY_API_KEY is not set; Airly reports are disabled")
	}
	gios := providers.NewGIOSProvider(httpClient, cfg.GIOSBaseURL, metrics)

	service := airquality.NewService(settings, memStore, airly, gios).
		WithLogger(logger).
		WithMetrics(metrics)

	logger.Info("configured",
		"reference", reference,
		"radius_deg", settings.RadiusDegrees,
		"max_distance_km", settings.MaxDistanceKm,
		"sources", service.Sources(),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		store:   memStore,
		service: service,
	}, nil
}

// resolveReference returns the configured coordinates, geocoding the
// configured address when none are set.
func resolveReference(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (geo.Coordinate, error) {
	if cfg.HasCoordinates() {
		return geo.Coordinate{Lat: *cfg.Latitude, Lon: *cfg.Longitude}, nil
	}
	if cfg.GeocoderAPIKey == "" {
		return geo.Coordinate{}, fmt.Errorf("GEOCODER_API_KEY is required to resolve %s, %s, %s",
			cfg.Address.Street, cfg.Address.City, cfg.Address.Country)
	}

	c, err := providers.NewGoogleGeocoder(cfg.GeocoderAPIKey).
		Resolve(ctx, cfg.Address.Street, cfg.Address.City, cfg.Address.Country)
	if err != nil {
		return geo.Coordinate{}, err
	}
	logger.Info("reference geocoded", "city", cfg.Address.City, "reference", c)
	return c, nil
}

func runReport(ctx context.Context, source airquality.Source) error {
	// One-shot reports are not scraped; metrics stay disabled.
	a, err := bootstrap(ctx, nil)
	if err != nil {
		return err
	}

	snap, err := a.service.Build(ctx, source)
	if err != nil {
		a.logger.Error("report failed", "source", source, "error", err)
		return err
	}

	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return report.Write(os.Stdout, snap)
}
