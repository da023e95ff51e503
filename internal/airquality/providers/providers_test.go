package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/airbot/internal/airquality"
	"github.com/i474232898/airbot/internal/geo"
	"github.com/i474232898/airbot/internal/observability"
)

const (
	testAPIKey        = "test-key"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func jsonServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testHTTPClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}

// --- Airly ---

func TestAirly_SensorsInArea(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sensorsWithWios/current", r.URL.Path)
		assert.Equal(t, testAPIKey, r.Header.Get("apikey"))
		q := r.URL.Query()
		assert.Equal(t, "51.5", q.Get("southwestLat"))
		assert.Equal(t, "20.5", q.Get("southwestLong"))
		assert.Equal(t, "52.5", q.Get("northeastLat"))
		assert.Equal(t, "21.5", q.Get("northeastLong"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`[
			{"id": 204, "name": "Airly sensor", "vendor": "AIRLY",
			 "location": {"latitude": 52.23, "longitude": 21.01},
			 "address": {"route": "Marszałkowska", "locality": "Warszawa", "streetNumber": "1"}},
			{"id": 205, "location": {"latitude": 52.1, "longitude": 21.2}, "address": {}}
		]`))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	p := NewAirlyProvider(testHTTPClient(), srv.URL, testAPIKey, metrics)

	sensors, err := p.SensorsInArea(context.Background(), geo.NewBoundingBox(geo.Coordinate{Lat: 52, Lon: 21}, 0.5))
	require.NoError(t, err)
	require.Len(t, sensors, 2)

	assert.Equal(t, airquality.Sensor{
		ID:       204,
		Name:     "Airly sensor",
		Route:    "Marszałkowska",
		Locality: "Warszawa",
		Location: geo.Coordinate{Lat: 52.23, Lon: 21.01},
	}, sensors[0])
	assert.Empty(t, sensors[1].Route)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.APIRequests.WithLabelValues("airly", "success")))
}

func TestAirly_SensorsInArea_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"missing location", `[{"id": 1, "address": {}}]`, airquality.ErrMissingField},
		{"missing id", `[{"location": {"latitude": 52, "longitude": 21}}]`, airquality.ErrMissingField},
		{"missing longitude", `[{"id": 1, "location": {"latitude": 52}}]`, airquality.ErrMissingField},
		{"out of range", `[{"id": 1, "location": {"latitude": 152, "longitude": 21}}]`, geo.ErrInvalidCoordinate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := jsonServer(t, map[string]string{"/v1/sensorsWithWios/current": tt.body})
			p := NewAirlyProvider(testHTTPClient(), srv.URL, testAPIKey, nil)

			_, err := p.SensorsInArea(context.Background(), geo.BoundingBox{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAirly_SensorMeasurements(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sensor/measurements", r.URL.Path)
		assert.Equal(t, "204", r.URL.Query().Get("sensorId"))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"currentMeasurements": {
			"airQualityIndex": 43.2, "humidity": 81.4, "pm1": 10, "pm10": 25.77,
			"pm25": 15.123, "pollutionLevel": 2, "pressure": 101325, "temperature": 3.46}}`))
	}))
	defer srv.Close()

	p := NewAirlyProvider(testHTTPClient(), srv.URL, testAPIKey, nil)

	r, err := p.SensorMeasurements(context.Background(), 204)
	require.NoError(t, err)

	assert.Equal(t, airquality.Reading{
		PollutionLevel:  2,
		AirQualityIndex: 43.2,
		Temperature:     3.46,
		Humidity:        81.4,
		PressureHpa:     1013.25,
		PM25:            15.123,
		PM10:            25.77,
	}, r)
}

func TestAirly_SensorMeasurements_EmptyAndPartial(t *testing.T) {
	srv := jsonServer(t, map[string]string{
		"/v1/sensor/measurements": `{"currentMeasurements": {}}`,
	})
	p := NewAirlyProvider(testHTTPClient(), srv.URL, testAPIKey, nil)

	_, err := p.SensorMeasurements(context.Background(), 1)
	assert.ErrorIs(t, err, airquality.ErrNoMeasurements)

	srv = jsonServer(t, map[string]string{
		"/v1/sensor/measurements": `{"currentMeasurements": {"temperature": 3, "humidity": 80, "pressure": 100000, "pm10": 20, "pm25": 10}}`,
	})
	p = NewAirlyProvider(testHTTPClient(), srv.URL, testAPIKey, nil)

	_, err = p.SensorMeasurements(context.Background(), 1)
	require.ErrorIs(t, err, airquality.ErrMissingField)
	assert.Contains(t, err.Error(), "pollutionLevel")
}

func TestAirly_PointMeasurements(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/mapPoint/measurements", r.URL.Path)
		assert.Equal(t, "52.2297", r.URL.Query().Get("latitude"))
		assert.Equal(t, "21.0122", r.URL.Query().Get("longitude"))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"currentMeasurements": {"humidity": 70, "pm10": 30, "pm25": 20, "pressure": 99000, "temperature": -1.5}}`))
	}))
	defer srv.Close()

	p := NewAirlyProvider(testHTTPClient(), srv.URL, testAPIKey, nil)

	r, err := p.PointMeasurements(context.Background(), geo.Coordinate{Lat: 52.2297, Lon: 21.0122})
	require.NoError(t, err)
	assert.Equal(t, -1.5, r.Temperature)
	assert.Equal(t, 990.0, r.PressureHpa)
	assert.Zero(t, r.AirQualityIndex)
}

func TestAirly_MissingAPIKey(t *testing.T) {
	p := NewAirlyProvider(testHTTPClient(), "http://127.0.0.1:1", "", nil)

	_, err := p.SensorsInArea(context.Background(), geo.BoundingBox{})
	assert.Error(t, err)
	_, err = p.SensorMeasurements(context.Background(), 1)
	assert.Error(t, err)
}

// --- GIOS ---

func TestGIOS_Stations(t *testing.T) {
	srv := jsonServer(t, map[string]string{
		"/station/findAll": `[
			{"id": 114, "stationName": "Wrocław - Bartnicza", "gegrLat": "51.115933", "gegrLon": "17.141125",
			 "city": {"id": 1064, "name": "Wrocław"}, "addressStreet": "ul. Bartnicza"},
			{"id": 117, "stationName": "Wrocław - Korzeniowskiego", "gegrLat": 51.129378, "gegrLon": 17.029250,
			 "city": null, "addressStreet": null}
		]`,
	})
	p := NewGIOSProvider(testHTTPClient(), srv.URL, nil)

	stations, err := p.Stations(context.Background())
	require.NoError(t, err)
	require.Len(t, stations, 2)

	assert.Equal(t, airquality.Station{
		ID:       114,
		Name:     "Wrocław - Bartnicza",
		Street:   "ul. Bartnicza",
		City:     "Wrocław",
		Location: geo.Coordinate{Lat: 51.115933, Lon: 17.141125},
	}, stations[0])
	assert.Equal(t, 51.129378, stations[1].Location.Lat)
	assert.Empty(t, stations[1].Street)
}

func TestGIOS_Stations_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"not a number", `[{"id": 1, "gegrLat": "north", "gegrLon": "17.1"}]`, geo.ErrInvalidCoordinate},
		{"out of range", `[{"id": 1, "gegrLat": "51.1", "gegrLon": "217.1"}]`, geo.ErrInvalidCoordinate},
		{"nan", `[{"id": 1, "gegrLat": "NaN", "gegrLon": "17.1"}]`, geo.ErrInvalidCoordinate},
		{"missing", `[{"id": 1, "gegrLat": "51.1"}]`, airquality.ErrMissingField},
		{"null", `[{"id": 1, "gegrLat": null, "gegrLon": "17.1"}]`, airquality.ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := jsonServer(t, map[string]string{"/station/findAll": tt.body})
			p := NewGIOSProvider(testHTTPClient(), srv.URL, nil)

			_, err := p.Stations(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGIOS_StationSensors(t *testing.T) {
	srv := jsonServer(t, map[string]string{
		"/station/sensors/114": `[
			{"id": 642, "stationId": 114, "param": {"paramName": "dwutlenek azotu", "paramFormula": "NO2", "paramCode": "NO2", "idParam": 6}},
			{"id": 644, "stationId": 114, "param": {"paramName": "ozon", "paramFormula": "O3", "paramCode": "O3", "idParam": 5}}
		]`,
		"/station/sensors/115": `[{"id": 1, "stationId": 115}]`,
	})
	p := NewGIOSProvider(testHTTPClient(), srv.URL, nil)

	sensors, err := p.StationSensors(context.Background(), 114)
	require.NoError(t, err)
	assert.Equal(t, []airquality.StationSensor{
		{ID: 642, StationID: 114, ParamName: "dwutlenek azotu", ParamCode: "NO2"},
		{ID: 644, StationID: 114, ParamName: "ozon", ParamCode: "O3"},
	}, sensors)

	_, err = p.StationSensors(context.Background(), 115)
	assert.ErrorIs(t, err, airquality.ErrMissingField)

	_, err = p.StationSensors(context.Background(), 116)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUnexpected))
}

func TestGIOS_SensorData(t *testing.T) {
	srv := jsonServer(t, map[string]string{
		"/data/getData/642": `{"key": "NO2", "values": [
			{"date": "2024-03-01 12:00:00", "value": null},
			{"date": "2024-03-01 11:00:00", "value": 30.3018}
		]}`,
		"/data/getData/643": `{"values": []}`,
	})
	p := NewGIOSProvider(testHTTPClient(), srv.URL, nil)

	series, err := p.SensorData(context.Background(), 642)
	require.NoError(t, err)
	assert.Equal(t, "NO2", series.Key)
	require.Len(t, series.Values, 2)
	assert.Nil(t, series.Values[0].Value)
	assert.Equal(t, 30.3018, *series.Values[1].Value)

	_, err = p.SensorData(context.Background(), 643)
	assert.ErrorIs(t, err, airquality.ErrMissingField)
}

// --- shared client behaviour ---

func TestClient_StatusClassification(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	p := NewGIOSProvider(testHTTPClient(), srv.URL, metrics)

	_, err := p.Stations(context.Background())
	assert.ErrorIs(t, err, errRateLimited)

	status = http.StatusBadGateway
	_, err = p.Stations(context.Background())
	assert.ErrorIs(t, err, errServerError)

	status = http.StatusForbidden
	_, err = p.Stations(context.Background())
	assert.ErrorIs(t, err, errUnexpected)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.APIRequests.WithLabelValues("gios", "error")))
}

func TestClient_NoRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewGIOSProvider(testHTTPClient(), srv.URL, nil)

	_, err := p.Stations(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestClient_CircuitOpens(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	p := NewGIOSProvider(testHTTPClient(), srv.URL, metrics)

	// gobreaker trips after more than 5 consecutive failures
	for i := 0; i < 6; i++ {
		_, err := p.Stations(context.Background())
		require.ErrorIs(t, err, errServerError)
	}

	_, err := p.Stations(context.Background())
	assert.ErrorIs(t, err, errCircuitOpen)
	assert.Equal(t, 6, calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.APIRequests.WithLabelValues("gios", "circuit_open")))
}

func TestClient_BadJSON(t *testing.T) {
	srv := jsonServer(t, map[string]string{"/station/findAll": `{"not": "a list"}`})
	p := NewGIOSProvider(testHTTPClient(), srv.URL, nil)

	_, err := p.Stations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestClient_NoHTTPClient(t *testing.T) {
	p := NewGIOSProvider(nil, "http://127.0.0.1:1", nil)

	_, err := p.Stations(context.Background())
	assert.ErrorIs(t, err, errNoHTTPClient)
}

// --- geocoder ---

func TestGoogleGeocoder_Resolve(t *testing.T) {
	var got geocoder.Address
	g := &GoogleGeocoder{lookup: func(a geocoder.Address) (geocoder.Location, error) {
		got = a
		return geocoder.Location{Latitude: 52.2297, Longitude: 21.0122}, nil
	}}

	c, err := g.Resolve(context.Background(), "Plac Defilad 1", "Warszawa", "Poland")
	require.NoError(t, err)

	assert.Equal(t, geo.Coordinate{Lat: 52.2297, Lon: 21.0122}, c)
	assert.Equal(t, "Plac Defilad 1", got.Street)
	assert.Equal(t, "Warszawa", got.City)
	assert.Equal(t, "Poland", got.Country)
}

func TestGoogleGeocoder_Errors(t *testing.T) {
	g := &GoogleGeocoder{lookup: func(geocoder.Address) (geocoder.Location, error) {
		return geocoder.Location{}, errors.New("ZERO_RESULTS")
	}}

	_, err := g.Resolve(context.Background(), "", " ", "")
	assert.ErrorIs(t, err, errEmptyAddress)

	_, err = g.Resolve(context.Background(), "", "Nowhere", "")
	assert.ErrorContains(t, err, "ZERO_RESULTS")

	g.lookup = func(geocoder.Address) (geocoder.Location, error) {
		return geocoder.Location{Latitude: 200}, nil
	}
	_, err = g.Resolve(context.Background(), "", "Somewhere", "")
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}
