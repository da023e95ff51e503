package airquality

import (
	"context"
	"time"

	"github.com/i474232898/airbot/internal/geo"
)

// AirlySource abstracts the Airly sensor network API.
type AirlySource interface {
	Name() string
	SensorsInArea(ctx context.Context, box geo.BoundingBox) ([]Sensor, error)
	// SensorMeasurements returns ErrNoMeasurements for an empty set and
	// ErrMissingField when a required value is absent.
	SensorMeasurements(ctx context.Context, sensorID int) (Reading, error)
	// PointMeasurements returns measurements interpolated at an arbitrary point.
	PointMeasurements(ctx context.Context, at geo.Coordinate) (Reading, error)
}

// GIOSSource abstracts the GIOS station network API.
type GIOSSource interface {
	Name() string
	Stations(ctx context.Context) ([]Station, error)
	StationSensors(ctx context.Context, stationID int) ([]StationSensor, error)
	SensorData(ctx context.Context, sensorID int) (Series, error)
}

// Store is the contract the in-memory snapshot store must satisfy.
type Store interface {
	SaveSnapshot(snapshot Snapshot)
	GetLatest(source Source) (Snapshot, error)
	GetRange(source Source, from, to time.Time) ([]Snapshot, error)
}
