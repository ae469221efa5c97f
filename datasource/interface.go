package datasource

import (
	"context"

	"weather-dashboard/models"
)

// WeatherSource defines the interface for providers that turn a position into a report
type WeatherSource interface {
	Name() string
	FetchReport(ctx context.Context, coord models.Coordinate) (models.WeatherReport, error)
}

// Geocoder defines the interface for providers that resolve free text into candidate locations
type Geocoder interface {
	Name() string
	Search(ctx context.Context, query string) ([]models.LocationCandidate, error)
}
