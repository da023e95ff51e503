// Package report renders snapshots as the plain text console report.
package report

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/i474232898/airbot/internal/airquality"
)

// Write renders snap to w. Errors from w are returned once rendering ends.
func Write(w io.Writer, snap airquality.Snapshot) error {
	bw := bufio.NewWriter(w)

	switch {
	case snap.Airly != nil:
		writeAirly(bw, *snap.Airly)
	case snap.GIOS != nil:
		writeGIOS(bw, *snap.GIOS)
	default:
		return fmt.Errorf("snapshot %s has no %s report", snap.ID, snap.Source)
	}

	return bw.Flush()
}

// String renders snap and returns the text.
func String(snap airquality.Snapshot) (string, error) {
	var sb strings.Builder
	if err := Write(&sb, snap); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeAirly(w *bufio.Writer, r airquality.AirlyReport) {
	for _, s := range r.Sensors {
		fmt.Fprintf(w, "%s (%.1f km, id %d)\n", s.Sensor.Route, s.DistanceKm, s.Sensor.ID)
		if s.Reading == nil {
			fmt.Fprint(w, "\tCouldn't get data for sensor\n\n")
			continue
		}
		m := s.Reading
		fmt.Fprintf(w, " Pollution level: %s Temperature: %.1f Humidity: %.0f Pressure: %.0f AQI: %.0f PM2.5: %s PM10: %s\n\n",
			number(m.PollutionLevel), m.Temperature, m.Humidity, m.PressureHpa, m.AirQualityIndex,
			number(round2(m.PM25)), number(round2(m.PM10)))
	}

	fmt.Fprintln(w, "Current extrapolated data for location:")
	if r.Location == nil {
		fmt.Fprintf(w, "\tCouldn't get data for location: %s\n", r.LocationError)
		return
	}
	m := r.Location
	fmt.Fprintf(w, "Temperature: %.1f Humidity: %.0f Pressure: %.0f PM2.5: %s PM10: %s\n",
		m.Temperature, m.Humidity, m.PressureHpa, number(round2(m.PM25)), number(round2(m.PM10)))
}

func writeGIOS(w *bufio.Writer, r airquality.GIOSReport) {
	for _, st := range r.Stations {
		fmt.Fprintf(w, "%s: %s (%s km, id %d)\n", st.Station.Name, st.Station.Street, number(round2(st.DistanceKm)), st.Station.ID)
		if st.Error != "" {
			fmt.Fprintf(w, "\tCouldn't get sensors for station: %s\n", st.Error)
			continue
		}
		for _, p := range st.Pollutants {
			writePollutant(w, p)
		}
	}
}

func writePollutant(w *bufio.Writer, p airquality.PollutantReport) {
	if p.Error != "" {
		fmt.Fprintf(w, "\t%s: %s\n", p.Code, p.Error)
		return
	}

	latest := "no recent value"
	if p.Latest != nil && p.Latest.Value != nil {
		latest = fmt.Sprintf("%s (measured at %s)", number(*p.Latest.Value), p.Latest.Date)
	}

	if p.Average24h == nil {
		fmt.Fprintf(w, "\t%s: %s, 24h average: not enough data\n", p.Code, latest)
		return
	}

	norm := "no norm"
	if p.NormPercent != nil {
		norm = fmt.Sprintf("%.0f%% norm", *p.NormPercent)
	}
	fmt.Fprintf(w, "\t%s: %s, 24h average: %s (%s)\n", p.Code, latest, number(*p.Average24h), norm)
}

// number prints v with the fewest digits that represent it.
func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
