package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/i474232898/airbot/internal/airquality"
	"github.com/i474232898/airbot/internal/geo"
	"github.com/i474232898/airbot/internal/observability"
)

// DefaultGIOSURL is the public GIOS air quality API root.
const DefaultGIOSURL = "https://api.gios.gov.pl/pjp-api/rest"

// GIOSProvider implements airquality.GIOSSource. The API needs no key.
type GIOSProvider struct {
	client
}

func NewGIOSProvider(httpClient *http.Client, baseURL string, metrics *observability.Metrics) *GIOSProvider {
	if baseURL == "" {
		baseURL = DefaultGIOSURL
	}
	return &GIOSProvider{
		client: client{
			name:    "gios",
			baseURL: baseURL,
			http:    httpClient,
			circuit: newCircuitBreaker("gios"),
			metrics: metrics,
		},
	}
}

func (p *GIOSProvider) Name() string {
	return p.name
}

// Stations returns the full station directory.
func (p *GIOSProvider) Stations(ctx context.Context) ([]airquality.Station, error) {
	var payload []struct {
		ID          *int       `json:"id"`
		StationName string     `json:"stationName"`
		GegrLat     *flexFloat `json:"gegrLat"`
		GegrLon     *flexFloat `json:"gegrLon"`
		City        *struct {
			Name string `json:"name"`
		} `json:"city"`
		AddressStreet *string `json:"addressStreet"`
	}

	if err := p.getJSON(ctx, newGet(p.baseURL+"/station/findAll", nil), &payload); err != nil {
		return nil, err
	}

	stations := make([]airquality.Station, 0, len(payload))
	for i, item := range payload {
		if item.ID == nil {
			return nil, fmt.Errorf("station %d: %w: id", i, airquality.ErrMissingField)
		}
		if item.GegrLat == nil || item.GegrLon == nil {
			return nil, fmt.Errorf("station %d: %w: gegrLat/gegrLon", *item.ID, airquality.ErrMissingField)
		}

		loc := geo.Coordinate{Lat: float64(*item.GegrLat), Lon: float64(*item.GegrLon)}
		if err := loc.Validate(); err != nil {
			return nil, fmt.Errorf("station %d: %w", *item.ID, err)
		}

		st := airquality.Station{
			ID:       *item.ID,
			Name:     item.StationName,
			Location: loc,
		}
		if item.AddressStreet != nil {
			st.Street = *item.AddressStreet
		}
		if item.City != nil {
			st.City = item.City.Name
		}
		stations = append(stations, st)
	}
	return stations, nil
}

// StationSensors lists the parameters measured at a station.
func (p *GIOSProvider) StationSensors(ctx context.Context, stationID int) ([]airquality.StationSensor, error) {
	var payload []struct {
		ID        *int `json:"id"`
		StationID int  `json:"stationId"`
		Param     *struct {
			ParamName string `json:"paramName"`
			ParamCode string `json:"paramCode"`
		} `json:"param"`
	}

	u := fmt.Sprintf("%s/station/sensors/%d", p.baseURL, stationID)
	if err := p.getJSON(ctx, newGet(u, nil), &payload); err != nil {
		return nil, err
	}

	sensors := make([]airquality.StationSensor, 0, len(payload))
	for i, item := range payload {
		if item.ID == nil {
			return nil, fmt.Errorf("station %d sensor %d: %w: id", stationID, i, airquality.ErrMissingField)
		}
		if item.Param == nil || item.Param.ParamCode == "" {
			return nil, fmt.Errorf("station %d sensor %d: %w: param.paramCode", stationID, *item.ID, airquality.ErrMissingField)
		}
		sensors = append(sensors, airquality.StationSensor{
			ID:        *item.ID,
			StationID: item.StationID,
			ParamName: item.Param.ParamName,
			ParamCode: item.Param.ParamCode,
		})
	}
	return sensors, nil
}

// SensorData returns the hourly series of one sensor, newest first.
func (p *GIOSProvider) SensorData(ctx context.Context, sensorID int) (airquality.Series, error) {
	var payload struct {
		Key    *string            `json:"key"`
		Values []airquality.Value `json:"values"`
	}

	u := fmt.Sprintf("%s/data/getData/%d", p.baseURL, sensorID)
	if err := p.getJSON(ctx, newGet(u, nil), &payload); err != nil {
		return airquality.Series{}, err
	}
	if payload.Key == nil {
		return airquality.Series{}, fmt.Errorf("sensor %d: %w: key", sensorID, airquality.ErrMissingField)
	}

	return airquality.Series{Key: *payload.Key, Values: payload.Values}, nil
}

// flexFloat accepts both JSON numbers and numeric strings; GIOS sends
// coordinates as strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("%w: null coordinate", geo.ErrInvalidCoordinate)
	}

	s := string(data)
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not a number", geo.ErrInvalidCoordinate, s)
	}
	*f = flexFloat(v)
	return nil
}
