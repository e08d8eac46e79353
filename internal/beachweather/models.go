// Package beachweather models the Chicago beach weather station sensor dataset.
package beachweather

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Errors returned by dataset clients.
var (
	// ErrQueryRejected is matched by errors describing a query the server refused to compile.
	ErrQueryRejected = errors.New("query rejected by server")

	// ErrUnexpectedStatus is returned when the server answers with a status that carries no error body.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// Well-known station names in the dataset.
const (
	StationOakStreet   = "Oak Street Weather Station"
	Station63rdStreet  = "63rd Street Weather Station"
	StationFosterBeach = "Foster Weather Station"
)

// Field names used in queries against the dataset.
const (
	FieldStationName   = "station_name"
	FieldMeasurementID = "measurement_id"
	FieldBatteryLife   = "battery_life"
	FieldTimestamp     = "measurement_timestamp"
)

// Measurement is one sensor record.
type Measurement struct {
	StationName               string    `json:"station_name"`
	MeasurementTimestamp      Timestamp `json:"measurement_timestamp"`
	AirTemperature            Reading   `json:"air_temperature"`
	WetBulbTemperature        Reading   `json:"wet_bulb_temperature"`
	Humidity                  Reading   `json:"humidity"`
	RainIntensity             Reading   `json:"rain_intensity"`
	IntervalRain              Reading   `json:"interval_rain"`
	TotalRain                 Reading   `json:"total_rain"`
	PrecipitationType         Reading   `json:"precipitation_type"`
	WindDirection             Reading   `json:"wind_direction"`
	WindSpeed                 Reading   `json:"wind_speed"`
	MaximumWindSpeed          Reading   `json:"maximum_wind_speed"`
	BarometricPressure        Reading   `json:"barometric_pressure"`
	SolarRadiation            Reading   `json:"solar_radiation"`
	Heading                   Reading   `json:"heading"`
	BatteryLife               Reading   `json:"battery_life"`
	MeasurementTimestampLabel string    `json:"measurement_timestamp_label"`
	MeasurementID             string    `json:"measurement_id"`
}

// Reading is a numeric sensor value. The API encodes numbers as JSON strings
// and leaves fields empty when a sensor did not report.
type Reading struct {
	Value float64
	Valid bool
}

// UnmarshalJSON accepts a JSON number, a numeric string, an empty string or null.
func (r *Reading) UnmarshalJSON(data []byte) error {
	*r = Reading{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			return nil
		}
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("parse reading %q: %w", raw, err)
	}
	r.Value = v
	r.Valid = true
	return nil
}

// MarshalJSON writes the value the way the API does: a string, or null when absent.
func (r Reading) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(strconv.FormatFloat(r.Value, 'f', -1, 64))
}

// floatingTimestampLayouts are the forms the API uses for floating (zone-less) timestamps.
var floatingTimestampLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Timestamp is a floating timestamp without zone information, interpreted as UTC.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON parses a floating timestamp string.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range floatingTimestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q: unsupported format", s)
}

// MarshalJSON writes the timestamp in the API's floating format.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(floatingTimestampLayouts[0]))
}
