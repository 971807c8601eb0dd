// Package ambient gathers peripheral context for the downstream prompt:
// current weather, upcoming calendar events, and open todos. Each
// gatherer is a simple fetch-and-format utility; a failed fetch is
// recovered by the caller omitting that one element, never by failing
// the whole job.
package ambient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// fetchTimeout bounds every outbound ambient request.
const fetchTimeout = 10 * time.Second

// WeatherConfig locates the forecast point.
type WeatherConfig struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Timezone  string  `yaml:"timezone"`
}

// wmoConditions maps WMO weather codes to display descriptions.
var wmoConditions = map[int]string{
	0:  "Clear",
	1:  "Mostly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Freezing fog",
	51: "Light drizzle",
	53: "Drizzle",
	55: "Heavy drizzle",
	61: "Light rain",
	63: "Rain",
	65: "Heavy rain",
	66: "Freezing rain",
	71: "Light snow",
	73: "Snow",
	75: "Heavy snow",
	80: "Light showers",
	81: "Showers",
	82: "Heavy showers",
	95: "Thunderstorm",
	96: "Thunderstorm with hail",
	99: "Severe thunderstorm",
}

type weatherResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		Apparent    float64 `json:"apparent_temperature"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WeatherCode int     `json:"weather_code"`
		WindSpeed   float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Daily struct {
		TempMax []float64 `json:"temperature_2m_max"`
		TempMin []float64 `json:"temperature_2m_min"`
		Sunrise []string  `json:"sunrise"`
		Sunset  []string  `json:"sunset"`
	} `json:"daily"`
}

// FetchWeather queries Open-Meteo (free, no credential) and formats the
// current conditions for display.
func FetchWeather(ctx context.Context, client *http.Client, cfg WeatherConfig) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	query := url.Values{
		"latitude":         {strconv.FormatFloat(cfg.Latitude, 'f', 4, 64)},
		"longitude":        {strconv.FormatFloat(cfg.Longitude, 'f', 4, 64)},
		"current":          {"temperature_2m,relative_humidity_2m,apparent_temperature,weather_code,wind_speed_10m"},
		"daily":            {"temperature_2m_max,temperature_2m_min,sunrise,sunset"},
		"temperature_unit": {"fahrenheit"},
		"wind_speed_unit":  {"mph"},
		"timezone":         {cfg.Timezone},
		"forecast_days":    {"1"},
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://api.open-meteo.com/v1/forecast?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("ambient: build weather request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ambient: fetch weather: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ambient: weather API returned %d", resp.StatusCode)
	}

	var data weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("ambient: decode weather: %w", err)
	}

	return formatWeather(cfg.Name, data), nil
}

func formatWeather(name string, data weatherResponse) string {
	condition, ok := wmoConditions[data.Current.WeatherCode]
	if !ok {
		condition = "Unknown"
	}

	line := fmt.Sprintf("**Weather** (%s): %s, %.0f°F (feels %.0f°F), humidity %.0f%%, wind %.0f mph",
		name, condition,
		data.Current.Temperature, data.Current.Apparent,
		data.Current.Humidity, data.Current.WindSpeed,
	)

	if len(data.Daily.TempMax) > 0 && len(data.Daily.TempMin) > 0 {
		line += fmt.Sprintf("\nHigh %.0f°F / Low %.0f°F", data.Daily.TempMax[0], data.Daily.TempMin[0])
	}
	return line
}
