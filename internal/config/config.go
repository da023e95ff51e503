package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/airbot/internal/airquality"
	"github.com/i474232898/airbot/internal/geo"
)

var validate = validator.New()

// ErrNoReference is returned when neither coordinates nor an address to
// geocode are configured.
var ErrNoReference = errors.New("LATITUDE/LONGITUDE or a LOCATION_* address must be set")

// defaultNorms are the 24h reference levels used to express averages as a
// percentage.
var defaultNorms = map[string]float64{
	"PM2.5": 25,
	"PM10":  50,
	"O3":    120,
	"NO2":   40,
	"CO":    10000,
	"C6H6":  5,
	"SO2":   125,
}

// Address is the street address geocoded when coordinates are not configured.
type Address struct {
	Street  string
	City    string
	Country string
}

func (a Address) IsZero() bool {
	return a.Street == "" && a.City == "" && a.Country == ""
}

type AppConfig struct {
	AirlyAPIKey  string
	AirlyBaseURL string `validate:"omitempty,url"`
	GIOSBaseURL  string `validate:"omitempty,url"`

	// Reference point; Latitude and Longitude are nil when not set.
	Latitude  *float64 `validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `validate:"omitempty,gte=-180,lte=180"`
	Address   Address
	// GeocoderAPIKey is the Google API key used to resolve Address.
	GeocoderAPIKey string

	DistanceKm      float64 `validate:"gte=0"`
	DistanceDeg     float64 `validate:"gt=0,lte=90"`
	GIOSDistanceDeg float64 `validate:"gte=0,lte=90"`
	Norms           map[string]float64

	HTTPTimeout time.Duration `validate:"gt=0"`

	// FetchInterval controls how often every source is refreshed in serve mode.
	FetchInterval time.Duration `validate:"gt=0"`

	// In-memory store retention.
	StoreMaxHistory int           `validate:"gte=0"` // max number of snapshots per source (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0"` // max age of snapshots (0 = unlimited)

	Port      string `validate:"required,numeric"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`
}

// Load reads configuration from .env and the environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}

	cfg.AirlyAPIKey = os.Getenv("AIRLY_API_KEY")
	cfg.AirlyBaseURL = os.Getenv("AIRLY_BASE_URL")
	cfg.GIOSBaseURL = os.Getenv("GIOS_BASE_URL")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	var err error
	if cfg.Latitude, err = getenvOptionalFloat("LATITUDE"); err != nil {
		return nil, err
	}
	if cfg.Longitude, err = getenvOptionalFloat("LONGITUDE"); err != nil {
		return nil, err
	}
	if (cfg.Latitude == nil) != (cfg.Longitude == nil) {
		return nil, errors.New("LATITUDE and LONGITUDE must be set together")
	}
	cfg.Address = Address{
		Street:  os.Getenv("LOCATION_STREET"),
		City:    os.Getenv("LOCATION_CITY"),
		Country: os.Getenv("LOCATION_COUNTRY"),
	}
	if !cfg.HasCoordinates() && cfg.Address.IsZero() {
		return nil, ErrNoReference
	}

	if cfg.DistanceKm, err = getenvFloat("DISTANCE_KM", 0); err != nil {
		return nil, err
	}
	if cfg.DistanceDeg, err = getenvFloat("DISTANCE_DG", 0.1); err != nil {
		return nil, err
	}
	if cfg.GIOSDistanceDeg, err = getenvFloat("GIOS_DISTANCE_DG", 0); err != nil {
		return nil, err
	}

	cfg.Norms = make(map[string]float64, len(defaultNorms))
	for code, def := range defaultNorms {
		if cfg.Norms[code], err = getenvFloat(normKey(code), def); err != nil {
			return nil, err
		}
	}

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	// Scheduler interval: default 15 minutes.
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "15m"); err != nil {
		return nil, err
	}

	// Store retention.
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // roughly 24h at 15-minute intervals
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "text")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// HasCoordinates reports whether the reference point was given directly.
func (c *AppConfig) HasCoordinates() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// Settings assembles the service settings around reference.
func (c *AppConfig) Settings(reference geo.Coordinate) airquality.Settings {
	return airquality.Settings{
		Reference:         reference,
		RadiusDegrees:     c.DistanceDeg,
		GIOSRadiusDegrees: c.GIOSDistanceDeg,
		MaxDistanceKm:     c.DistanceKm,
		Norms:             airquality.Norms(c.Norms),
	}
}

// normKey maps a pollutant code to its environment key, PM2.5 -> NORM_PM25.
func normKey(code string) string {
	key := []byte("NORM_")
	for i := 0; i < len(code); i++ {
		if code[i] != '.' {
			key = append(key, code[i])
		}
	}
	return string(key)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvOptionalFloat(key string) (*float64, error) {
	if os.Getenv(key) == "" {
		return nil, nil
	}
	f, err := getenvFloat(key, 0)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
