package opencage

import (
	"context"
	"encoding/json"
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

// DefaultBaseURL is the public OpenCage API host
const DefaultBaseURL = "https://api.opencagedata.com"

// DefaultLimit is the number of candidates requested per query
const DefaultLimit = 5

// Client resolves free-text place names through the OpenCage forward geocoding API
type Client struct {
	apiKey  string
	baseURL string
	limit   int
	client  *http.Client
	logger  *zap.Logger
}

// Ensure Client implements datasource.Geocoder
var _ datasource.Geocoder = (*Client)(nil)

// NewClient creates a new OpenCage client. Zero values select the defaults.
func NewClient(apiKey, baseURL string, limit int, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		limit:   limit,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return "OpenCage"
}

// GeocodeResponse represents the API response structure
type GeocodeResponse struct {
	Results []struct {
		Formatted *string `json:"formatted"`
		Geometry  *struct {
			Lat *float64 `json:"lat"`
			Lng *float64 `json:"lng"`
		} `json:"geometry"`
	} `json:"results"`
}

// Search returns the candidates matching query in provider order
func (c *Client) Search(ctx context.Context, query string) ([]models.LocationCandidate, error) {
	if c.apiKey == "" {
		return nil, datasource.ErrMissingAPIKey
	}

	params := url.Values{}
	params.Add("q", query)
	params.Add("key", c.apiKey)
	params.Add("limit", strconv.Itoa(c.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/geocode/v1/json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug("geocoding", zap.String("query", query))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	rawData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &datasource.APIError{
			Provider:   c.Name(),
			StatusCode: resp.StatusCode,
			Body:       string(rawData),
		}
	}

	candidates, err := ParseCandidates(rawData, c.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}
	return candidates, nil
}

// ParseCandidates reshapes a geocoding payload into at most limit candidates
func ParseCandidates(data []byte, limit int) ([]models.LocationCandidate, error) {
	var resp GeocodeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", datasource.ErrMalformedPayload, err)
	}
	if resp.Results == nil {
		return nil, datasource.Malformed("results")
	}

	results := resp.Results
	if len(results) > limit {
		results = results[:limit]
	}

	candidates := make([]models.LocationCandidate, 0, len(results))
	for i, r := range results {
		if r.Formatted == nil {
			return nil, datasource.Malformed(fmt.Sprintf("results[%d].formatted", i))
		}
		if r.Geometry == nil || r.Geometry.Lat == nil || r.Geometry.Lng == nil {
			return nil, datasource.Malformed(fmt.Sprintf("results[%d].geometry", i))
		}
		candidates = append(candidates, models.LocationCandidate{
			Coordinate: models.Coordinate{
				Latitude:  *r.Geometry.Lat,
				Longitude: *r.Geometry.Lng,
			},
			DisplayName: *r.Formatted,
		})
	}
	return candidates, nil
}
