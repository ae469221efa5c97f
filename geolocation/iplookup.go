package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"weather-dashboard/models"
)

// DefaultIPLookupURL is the ip-api.com endpoint host
const DefaultIPLookupURL = "http://ip-api.com"

// IPLookup is a Platform that approximates the position of an IP address
type IPLookup struct {
	baseURL string
	addr    string
	client  *http.Client
}

// NewIPLookup creates a platform for addr. An empty addr locates the caller's own public address.
func NewIPLookup(baseURL, addr string) *IPLookup {
	if baseURL == "" {
		baseURL = DefaultIPLookupURL
	}
	return &IPLookup{
		baseURL: baseURL,
		addr:    addr,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type ipLookupResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// CurrentPosition queries the lookup service
func (p *IPLookup) CurrentPosition(ctx context.Context) (models.Coordinate, error) {
	endpoint := p.baseURL + "/json/" + p.addr + "?fields=status,message,lat,lon"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.Coordinate{}, fmt.Errorf("%w: lookup returned %d", ErrUnavailable, resp.StatusCode)
	}

	var r ipLookupResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return models.Coordinate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if r.Status != "success" || r.Lat == nil || r.Lon == nil {
		return models.Coordinate{}, fmt.Errorf("%w: %s", ErrUnavailable, r.Message)
	}
	return models.Coordinate{Latitude: *r.Lat, Longitude: *r.Lon}, nil
}
