package airquality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/airbot/internal/geo"
	"github.com/i474232898/airbot/internal/observability"
)

// Service builds reports from the sensor networks around the configured
// reference point and keeps them in the store.
type Service struct {
	settings Settings
	store    Store
	airly    AirlySource
	gios     GIOSSource

	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewService creates a new Service. A nil source disables that network.
func NewService(settings Settings, store Store, airly AirlySource, gios GIOSSource) *Service {
	return &Service{
		settings: settings,
		store:    store,
		airly:    airly,
		gios:     gios,
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
	}
}

// WithClock swaps the time source used to stamp snapshots.
func (s *Service) WithClock(c clockwork.Clock) *Service {
	s.clock = c
	return s
}

func (s *Service) WithLogger(l *slog.Logger) *Service {
	s.logger = l
	return s
}

func (s *Service) WithMetrics(m *observability.Metrics) *Service {
	s.metrics = m
	return s
}

// Settings returns the configuration reports are built with.
func (s *Service) Settings() Settings {
	return s.settings
}

// Sources lists the networks that have a client configured.
func (s *Service) Sources() []Source {
	var out []Source
	if s.airly != nil {
		out = append(out, SourceAirly)
	}
	if s.gios != nil {
		out = append(out, SourceGIOS)
	}
	return out
}

// Build fetches a fresh report for source. API calls are made one at a time.
func (s *Service) Build(ctx context.Context, source Source) (Snapshot, error) {
	snap := Snapshot{
		ID:        uuid.NewString(),
		Source:    source,
		Reference: s.settings.Reference,
	}

	var (
		selected int
		err      error
	)
	switch source {
	case SourceAirly:
		if s.airly == nil {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrSourceNotConfigured, source)
		}
		var r AirlyReport
		r, err = s.buildAirly(ctx)
		snap.Airly = &r
		selected = len(r.Sensors)
	case SourceGIOS:
		if s.gios == nil {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrSourceNotConfigured, source)
		}
		var r GIOSReport
		r, err = s.buildGIOS(ctx)
		snap.GIOS = &r
		selected = len(r.Stations)
	default:
		return Snapshot{}, fmt.Errorf("unknown source %q", source)
	}

	if err != nil {
		s.metrics.ObserveReport(string(source), "error", 0)
		return Snapshot{}, fmt.Errorf("%s report: %w", source, err)
	}
	s.metrics.ObserveReport(string(source), "success", selected)

	snap.GeneratedAt = s.clock.Now().UTC()
	return snap, nil
}

// Refresh builds a report for source and stores it. On failure the last good
// snapshot is kept.
func (s *Service) Refresh(ctx context.Context, source Source) error {
	snap, err := s.Build(ctx, source)
	if err != nil {
		return err
	}
	s.store.SaveSnapshot(snap)
	s.logger.Info("report stored", "source", source, "id", snap.ID)
	return nil
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(source Source) (Snapshot, error) {
	return s.store.GetLatest(source)
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(source Source, from, to time.Time) ([]Snapshot, error) {
	return s.store.GetRange(source, from, to)
}

func (s *Service) buildAirly(ctx context.Context) (AirlyReport, error) {
	ref := s.settings.Reference
	box := geo.NewBoundingBox(ref, s.settings.RadiusDegrees)

	s.logger.Debug("fetching sensor list", "provider", s.airly.Name(), "box", box)
	sensors, err := s.airly.SensorsInArea(ctx, box)
	if err != nil {
		return AirlyReport{}, fmt.Errorf("list sensors: %w", err)
	}

	nearby, err := geo.SelectNearby(ref, s.settings.RadiusDegrees, sensors)
	if err != nil {
		return AirlyReport{}, err
	}
	nearby = geo.WithinRadius(nearby, s.settings.MaxDistanceKm)
	s.logger.Debug("sensors selected", "listed", len(sensors), "selected", len(nearby))

	report := AirlyReport{Sensors: make([]SensorReport, 0, len(nearby))}
	for _, n := range nearby {
		if err := ctx.Err(); err != nil {
			return AirlyReport{}, err
		}

		reading, err := s.airly.SensorMeasurements(ctx, n.Item.ID)
		if errors.Is(err, ErrNoMeasurements) {
			s.logger.Debug("sensor has no current measurements", "sensor_id", n.Item.ID)
			continue
		}

		sr := SensorReport{Sensor: n.Item, DistanceKm: n.DistanceKm}
		if err != nil {
			s.logger.Warn("sensor measurements unavailable", "sensor_id", n.Item.ID, "error", err)
			sr.Error = err.Error()
		} else {
			sr.Reading = &reading
		}
		report.Sensors = append(report.Sensors, sr)
	}

	point, err := s.airly.PointMeasurements(ctx, ref)
	if err != nil {
		s.logger.Warn("point measurements unavailable", "reference", ref, "error", err)
		report.LocationError = err.Error()
	} else {
		report.Location = &point
	}

	return report, nil
}

func (s *Service) buildGIOS(ctx context.Context) (GIOSReport, error) {
	ref := s.settings.Reference

	stations, err := s.gios.Stations(ctx)
	if err != nil {
		return GIOSReport{}, fmt.Errorf("list stations: %w", err)
	}

	index, err := geo.NewIndex(stations)
	if err != nil {
		return GIOSReport{}, err
	}
	nearby, err := index.Nearby(ref, s.settings.giosRadius())
	if err != nil {
		return GIOSReport{}, err
	}
	nearby = geo.WithinRadius(nearby, s.settings.MaxDistanceKm)
	s.logger.Debug("stations selected", "listed", index.Len(), "selected", len(nearby))

	report := GIOSReport{Stations: make([]StationReport, 0, len(nearby))}
	for _, n := range nearby {
		if err := ctx.Err(); err != nil {
			return GIOSReport{}, err
		}
		report.Stations = append(report.Stations, s.stationReport(ctx, n))
	}
	return report, nil
}

func (s *Service) stationReport(ctx context.Context, n geo.Annotated[Station]) StationReport {
	sr := StationReport{Station: n.Item, DistanceKm: n.DistanceKm, Pollutants: []PollutantReport{}}

	sensors, err := s.gios.StationSensors(ctx, n.Item.ID)
	if err != nil {
		s.logger.Warn("station sensors unavailable", "station_id", n.Item.ID, "error", err)
		sr.Error = err.Error()
		return sr
	}
	sort.SliceStable(sensors, func(i, j int) bool {
		return sensors[i].ParamCode < sensors[j].ParamCode
	})

	for _, sensor := range sensors {
		sr.Pollutants = append(sr.Pollutants, s.pollutantReport(ctx, sensor))
	}
	return sr
}

func (s *Service) pollutantReport(ctx context.Context, sensor StationSensor) PollutantReport {
	pr := PollutantReport{SensorID: sensor.ID, Code: sensor.ParamCode, Name: sensor.ParamName}

	series, err := s.gios.SensorData(ctx, sensor.ID)
	if err != nil {
		s.logger.Warn("sensor data unavailable", "sensor_id", sensor.ID, "error", err)
		pr.Error = err.Error()
		return pr
	}
	if series.Key != sensor.ParamCode {
		pr.Error = fmt.Sprintf("station code %s does not match reading key %s", sensor.ParamCode, series.Key)
		return pr
	}

	if latest, ok := series.Latest(); ok {
		pr.Latest = &latest
	}

	avg, err := series.Average24h()
	if err != nil {
		s.logger.Debug("no 24h average", "sensor_id", sensor.ID, "error", err)
		return pr
	}
	pr.Average24h = &avg
	if pct, ok := s.settings.Norms.Percent(sensor.ParamCode, avg); ok {
		pr.NormPercent = &pct
	}
	return pr
}
