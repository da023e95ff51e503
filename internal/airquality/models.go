package airquality

import (
	"errors"
	"math"
	"time"

	"github.com/i474232898/airbot/internal/geo"
)

var (
	// ErrMissingField is returned when a required field is absent from an API payload.
	ErrMissingField = errors.New("missing field")
	// ErrNoMeasurements is returned when a sensor reports an empty measurement set.
	ErrNoMeasurements = errors.New("no measurements")
	// ErrInsufficientData is returned when a series is too short for a 24h average.
	ErrInsufficientData = errors.New("not enough data")
	// ErrSourceNotConfigured is returned when a report is requested for a source without a client.
	ErrSourceNotConfigured = errors.New("source not configured")
)

// Source identifies the network a report was built from.
type Source string

const (
	SourceAirly Source = "airly"
	SourceGIOS  Source = "gios"
)

// Sensor is an Airly sensor as listed by the area query.
type Sensor struct {
	ID       int            `json:"id"`
	Name     string         `json:"name,omitempty"`
	Route    string         `json:"route"`
	Locality string         `json:"locality,omitempty"`
	Location geo.Coordinate `json:"location"`
}

func (s Sensor) Position() geo.Coordinate {
	return s.Location
}

// Reading holds Airly current measurements. Point (interpolated) readings do
// not carry PollutionLevel or AirQualityIndex.
type Reading struct {
	PollutionLevel  float64 `json:"pollutionLevel,omitempty"`
	AirQualityIndex float64 `json:"airQualityIndex,omitempty"`
	Temperature     float64 `json:"temperatureC"`
	Humidity        float64 `json:"humidityPercent"`
	PressureHpa     float64 `json:"pressureHpa"`
	PM25            float64 `json:"pm25"`
	PM10            float64 `json:"pm10"`
}

// Station is a GIOS measuring station.
type Station struct {
	ID       int            `json:"id"`
	Name     string         `json:"name"`
	Street   string         `json:"street,omitempty"`
	City     string         `json:"city,omitempty"`
	Location geo.Coordinate `json:"location"`
}

func (s Station) Position() geo.Coordinate {
	return s.Location
}

// StationSensor is one measured parameter of a GIOS station.
type StationSensor struct {
	ID        int    `json:"id"`
	StationID int    `json:"stationId"`
	ParamName string `json:"paramName"`
	ParamCode string `json:"paramCode"`
}

// Value is a single hourly measurement; Value is nil when the station did not
// report one.
type Value struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// Series is the hourly history of one GIOS sensor, newest first.
type Series struct {
	Key    string  `json:"key"`
	Values []Value `json:"values"`
}

// Norms maps a pollutant code (PM2.5, PM10, O3, NO2, CO, C6H6, SO2) to its
// reference threshold.
type Norms map[string]float64

// Percent returns value as a rounded percentage of the norm for code.
func (n Norms) Percent(code string, value float64) (float64, bool) {
	norm, ok := n[code]
	if !ok || norm <= 0 {
		return 0, false
	}
	return math.Round(value * 100 / norm), true
}

// Settings is the explicit per-run configuration of the service.
type Settings struct {
	Reference geo.Coordinate
	// RadiusDegrees is the bounding-box half-size around Reference.
	RadiusDegrees float64
	// GIOSRadiusDegrees overrides RadiusDegrees for GIOS when positive.
	GIOSRadiusDegrees float64
	// MaxDistanceKm drops selected entries farther than this; 0 keeps the box result.
	MaxDistanceKm float64
	Norms         Norms
}

// Validate checks the reference point and radii.
func (s Settings) Validate() error {
	if err := s.Reference.Validate(); err != nil {
		return err
	}
	if err := geo.ValidateRadius(s.RadiusDegrees); err != nil {
		return err
	}
	return geo.ValidateRadius(s.GIOSRadiusDegrees)
}

func (s Settings) giosRadius() float64 {
	if s.GIOSRadiusDegrees > 0 {
		return s.GIOSRadiusDegrees
	}
	return s.RadiusDegrees
}

// SensorReport is one Airly sensor with its latest reading. Error is set
// instead of Reading when the measurements were incomplete or unavailable.
type SensorReport struct {
	Sensor     Sensor   `json:"sensor"`
	DistanceKm float64  `json:"distanceKm"`
	Reading    *Reading `json:"reading,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// AirlyReport lists the nearby Airly sensors and the interpolated reading at
// the reference point.
type AirlyReport struct {
	Sensors       []SensorReport `json:"sensors"`
	Location      *Reading       `json:"location,omitempty"`
	LocationError string         `json:"locationError,omitempty"`
}

// PollutantReport summarises one GIOS sensor.
type PollutantReport struct {
	SensorID    int      `json:"sensorId"`
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Latest      *Value   `json:"latest,omitempty"`
	Average24h  *float64 `json:"average24h,omitempty"`
	NormPercent *float64 `json:"normPercent,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// StationReport is one nearby GIOS station with its pollutants ordered by code.
type StationReport struct {
	Station    Station           `json:"station"`
	DistanceKm float64           `json:"distanceKm"`
	Pollutants []PollutantReport `json:"pollutants"`
	Error      string            `json:"error,omitempty"`
}

// GIOSReport lists the nearby GIOS stations.
type GIOSReport struct {
	Stations []StationReport `json:"stations"`
}

// Snapshot is one generated report. Exactly one of Airly and GIOS is set,
// matching Source.
type Snapshot struct {
	ID          string         `json:"id"`
	Source      Source         `json:"source"`
	GeneratedAt time.Time      `json:"generatedAt"` // always UTC
	Reference   geo.Coordinate `json:"reference"`
	Airly       *AirlyReport   `json:"airly,omitempty"`
	GIOS        *GIOSReport    `json:"gios,omitempty"`
}
