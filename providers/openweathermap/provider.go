package openweathermap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"weather-dashboard/datasource"
	"weather-dashboard/models"
)

// DefaultBaseURL is the public OpenWeatherMap API host
const DefaultBaseURL = "https://api.openweathermap.org"

// Client fetches 5-day/3-hour forecasts from OpenWeatherMap and reshapes them into reports
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// Ensure Client implements datasource.WeatherSource
var _ datasource.WeatherSource = (*Client)(nil)

// NewClient creates a new OpenWeatherMap client. An empty baseURL selects DefaultBaseURL.
func NewClient(apiKey, baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Name returns the provider name
func (o *Client) Name() string {
	return "OpenWeatherMap"
}

// FetchReport gets the current conditions and daily forecast for a coordinate
func (o *Client) FetchReport(ctx context.Context, coord models.Coordinate) (models.WeatherReport, error) {
	if o.apiKey == "" {
		return models.WeatherReport{}, datasource.ErrMissingAPIKey
	}

	params := url.Values{}
	params.Add("lat", strconv.FormatFloat(coord.Latitude, 'f', -1, 64))
	params.Add("lon", strconv.FormatFloat(coord.Longitude, 'f', -1, 64))
	params.Add("appid", o.apiKey)
	params.Add("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/data/2.5/forecast?"+params.Encode(), nil)
	if err != nil {
		return models.WeatherReport{}, fmt.Errorf("failed to create request: %w", err)
	}

	o.logger.Debug("requesting forecast", zap.Stringer("coordinate", coord))

	resp, err := o.client.Do(req)
	if err != nil {
		return models.WeatherReport{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	rawData, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.WeatherReport{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return models.WeatherReport{}, &datasource.APIError{
			Provider:   o.Name(),
			StatusCode: resp.StatusCode,
			Body:       string(rawData),
		}
	}

	report, err := ParseForecast(rawData)
	if err != nil {
		return models.WeatherReport{}, fmt.Errorf("failed to parse API response: %w", err)
	}
	return report, nil
}
