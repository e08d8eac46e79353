package sodafake

import (
	"fmt"
	"strings"
	"time"

	"github.com/beachwatch/beachwatch/internal/beachweather"
	"github.com/beachwatch/beachwatch/internal/beachweather/socrata"
)

// BeachWeatherColumns is the schema of the beach weather dataset.
var BeachWeatherColumns = []string{
	"station_name",
	"measurement_timestamp",
	"air_temperature",
	"wet_bulb_temperature",
	"humidity",
	"rain_intensity",
	"interval_rain",
	"total_rain",
	"precipitation_type",
	"wind_direction",
	"wind_speed",
	"maximum_wind_speed",
	"barometric_pressure",
	"solar_radiation",
	"heading",
	"battery_life",
	"measurement_timestamp_label",
	"measurement_id",
}

// BeachWeatherStations are the stations present in generated datasets.
var BeachWeatherStations = []string{
	beachweather.Station63rdStreet,
	beachweather.StationFosterBeach,
	beachweather.StationOakStreet,
}

// NewBeachWeatherDataset generates perStation hourly records for every
// station, starting at 2019-01-01 00:00. Values are deterministic.
func NewBeachWeatherDataset(perStation int) *Dataset {
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]Row, 0, perStation*len(BeachWeatherStations))

	// Interleave stations the way the live dataset does, by timestamp first.
	for i := 0; i < perStation; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		for s, station := range BeachWeatherStations {
			rows = append(rows, newRow(station, ts, i+s))
		}
	}

	return &Dataset{
		ID:      socrata.DefaultDataset,
		Columns: BeachWeatherColumns,
		Rows:    rows,
	}
}

func newRow(station string, ts time.Time, seed int) Row {
	return Row{
		"station_name":                station,
		"measurement_timestamp":       ts.Format("2006-01-02T15:04:05.000"),
		"air_temperature":             fmt.Sprintf("%.1f", -5+float64(seed%30)),
		"wet_bulb_temperature":        fmt.Sprintf("%.1f", -7+float64(seed%28)),
		"humidity":                    fmt.Sprintf("%d", 40+seed%55),
		"rain_intensity":              "0",
		"interval_rain":               "0",
		"total_rain":                  fmt.Sprintf("%.1f", float64(seed%40)/10),
		"precipitation_type":          "0",
		"wind_direction":              fmt.Sprintf("%d", (seed*37)%360),
		"wind_speed":                  fmt.Sprintf("%.1f", float64(seed%90)/10),
		"maximum_wind_speed":          fmt.Sprintf("%.1f", float64(seed%120)/10),
		"barometric_pressure":         fmt.Sprintf("%.1f", 990+float64(seed%25)),
		"solar_radiation":             fmt.Sprintf("%d", (seed*13)%800),
		"heading":                     fmt.Sprintf("%d", 350+seed%10),
		"battery_life":                fmt.Sprintf("%.1f", 11.5+float64(seed%6)/10),
		"measurement_timestamp_label": ts.Format("01/02/2006 3:04 PM"),
		"measurement_id":              MeasurementID(station, ts),
	}
}

// MeasurementID builds an id the way the live dataset does: the station name
// without spaces followed by the timestamp as yyyyMMddHHmm.
func MeasurementID(station string, ts time.Time) string {
	return strings.ReplaceAll(station, " ", "") + ts.Format("200601021504")
}
