package models

import "fmt"

// ForecastDays is the number of daily samples carried by a WeatherReport
const ForecastDays = 5

// Place identifies where a report was produced for
type Place struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// CurrentConditions represents the weather at the first forecast slot
type CurrentConditions struct {
	Place        Place  `json:"place"`
	TemperatureC int    `json:"temperatureC"`
	Description  string `json:"description"`
	IconCode     string `json:"iconCode"`
	HumidityPct  int    `json:"humidityPct"`
	WindSpeedMps int    `json:"windSpeedMps"`
}

// ForecastDay is one daily sample of the forecast
type ForecastDay struct {
	Date         string `json:"date"` // short weekday label, e.g. "Mon"
	TemperatureC int    `json:"temperatureC"`
	Description  string `json:"description"`
	IconCode     string `json:"iconCode"`
}

// WeatherReport combines the current conditions with the daily forecast
type WeatherReport struct {
	Current  CurrentConditions `json:"current"`
	Forecast []ForecastDay     `json:"forecast"` // chronological, ForecastDays entries
}

// IconURL returns the provider-hosted image for an icon code.
func IconURL(code string, large bool) string {
	if large {
		return fmt.Sprintf("https://openweathermap.org/img/wn/%s@2x.png", code)
	}
	return fmt.Sprintf("https://openweathermap.org/img/wn/%s.png", code)
}
