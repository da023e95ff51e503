package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/i474232898/airbot/internal/airquality"
	"github.com/i474232898/airbot/internal/geo"
	"github.com/i474232898/airbot/internal/observability"
)

// DefaultAirlyURL is the public Airly API root.
const DefaultAirlyURL = "https://airapi.airly.eu"

// AirlyProvider implements airquality.AirlySource for the Airly v1 API.
type AirlyProvider struct {
	client
	apiKey string
}

func NewAirlyProvider(httpClient *http.Client, baseURL, apiKey string, metrics *observability.Metrics) *AirlyProvider {
	if baseURL == "" {
		baseURL = DefaultAirlyURL
	}
	return &AirlyProvider{
		client: client{
			name:    "airly",
			baseURL: baseURL,
			http:    httpClient,
			circuit: newCircuitBreaker("airly"),
			metrics: metrics,
		},
		apiKey: apiKey,
	}
}

func (p *AirlyProvider) Name() string {
	return p.name
}

// SensorsInArea lists the sensors the API reports inside box.
func (p *AirlyProvider) SensorsInArea(ctx context.Context, box geo.BoundingBox) ([]airquality.Sensor, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("airly api key is not configured")
	}

	values := url.Values{}
	values.Set("southwestLat", formatDegrees(box.South))
	values.Set("southwestLong", formatDegrees(box.West))
	values.Set("northeastLat", formatDegrees(box.North))
	values.Set("northeastLong", formatDegrees(box.East))

	var payload []struct {
		ID       *int   `json:"id"`
		Name     string `json:"name"`
		Location *struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		} `json:"location"`
		Address struct {
			Route    string `json:"route"`
			Locality string `json:"locality"`
		} `json:"address"`
	}

	u := fmt.Sprintf("%s/v1/sensorsWithWios/current?%s", p.baseURL, values.Encode())
	if err := p.getJSON(ctx, newGet(u, p.header()), &payload); err != nil {
		return nil, err
	}

	sensors := make([]airquality.Sensor, 0, len(payload))
	for i, item := range payload {
		if item.ID == nil {
			return nil, fmt.Errorf("sensor %d: %w: id", i, airquality.ErrMissingField)
		}
		if item.Location == nil || item.Location.Latitude == nil || item.Location.Longitude == nil {
			return nil, fmt.Errorf("sensor %d: %w: location", *item.ID, airquality.ErrMissingField)
		}

		loc := geo.Coordinate{Lat: *item.Location.Latitude, Lon: *item.Location.Longitude}
		if err := loc.Validate(); err != nil {
			return nil, fmt.Errorf("sensor %d: %w", *item.ID, err)
		}

		sensors = append(sensors, airquality.Sensor{
			ID:       *item.ID,
			Name:     item.Name,
			Route:    item.Address.Route,
			Locality: item.Address.Locality,
			Location: loc,
		})
	}
	return sensors, nil
}

// SensorMeasurements returns the current measurements of one sensor.
func (p *AirlyProvider) SensorMeasurements(ctx context.Context, sensorID int) (airquality.Reading, error) {
	values := url.Values{}
	values.Set("sensorId", strconv.Itoa(sensorID))

	m, err := p.measurements(ctx, "/v1/sensor/measurements", values)
	if err != nil {
		return airquality.Reading{}, err
	}
	return m.reading(true)
}

// PointMeasurements returns measurements interpolated at an arbitrary point.
func (p *AirlyProvider) PointMeasurements(ctx context.Context, at geo.Coordinate) (airquality.Reading, error) {
	values := url.Values{}
	values.Set("latitude", formatDegrees(at.Lat))
	values.Set("longitude", formatDegrees(at.Lon))

	m, err := p.measurements(ctx, "/v1/mapPoint/measurements", values)
	if err != nil {
		return airquality.Reading{}, err
	}
	return m.reading(false)
}

func (p *AirlyProvider) measurements(ctx context.Context, path string, values url.Values) (airlyMeasurements, error) {
	if p.apiKey == "" {
		return airlyMeasurements{}, fmt.Errorf("airly api key is not configured")
	}

	var payload struct {
		CurrentMeasurements airlyMeasurements `json:"currentMeasurements"`
	}

	u := fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
	if err := p.getJSON(ctx, newGet(u, p.header()), &payload); err != nil {
		return airlyMeasurements{}, err
	}
	return payload.CurrentMeasurements, nil
}

func (p *AirlyProvider) header() http.Header {
	h := http.Header{}
	h.Set("apikey", p.apiKey)
	return h
}

type airlyMeasurements struct {
	PollutionLevel  *float64 `json:"pollutionLevel"`
	AirQualityIndex *float64 `json:"airQualityIndex"`
	Temperature     *float64 `json:"temperature"`
	Humidity        *float64 `json:"humidity"`
	Pressure        *float64 `json:"pressure"` // Pa
	PM25            *float64 `json:"pm25"`
	PM10            *float64 `json:"pm10"`
}

// reading validates the payload. withIndex requires the sensor-only fields.
func (m airlyMeasurements) reading(withIndex bool) (airquality.Reading, error) {
	fields := []struct {
		name string
		v    *float64
	}{
		{"pollutionLevel", m.PollutionLevel},
		{"airQualityIndex", m.AirQualityIndex},
		{"temperature", m.Temperature},
		{"humidity", m.Humidity},
		{"pressure", m.Pressure},
		{"pm25", m.PM25},
		{"pm10", m.PM10},
	}

	empty := true
	for _, f := range fields {
		if f.v != nil {
			empty = false
			break
		}
	}
	if empty {
		return airquality.Reading{}, airquality.ErrNoMeasurements
	}

	required := fields[2:]
	if withIndex {
		required = fields
	}
	for _, f := range required {
		if f.v == nil {
			return airquality.Reading{}, fmt.Errorf("%w: %s", airquality.ErrMissingField, f.name)
		}
	}

	r := airquality.Reading{
		Temperature: *m.Temperature,
		Humidity:    *m.Humidity,
		PressureHpa: *m.Pressure / 100,
		PM25:        *m.PM25,
		PM10:        *m.PM10,
	}
	if m.PollutionLevel != nil {
		r.PollutionLevel = *m.PollutionLevel
	}
	if m.AirQualityIndex != nil {
		r.AirQualityIndex = *m.AirQualityIndex
	}
	return r, nil
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
