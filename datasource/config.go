package datasource

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"weather-dashboard/models"
)

// Config represents the application configuration
type Config struct {
	Port int `json:"port"`

	OpenWeatherMap struct {
		APIKey  string `json:"apiKey"`
		BaseURL string `json:"baseURL"`
	} `json:"openWeatherMap"`

	OpenCage struct {
		APIKey  string `json:"apiKey"`
		BaseURL string `json:"baseURL"`
		Limit   int    `json:"limit"`
	} `json:"openCage"`

	Geolocation struct {
		BaseURL        string `json:"baseURL"`
		TimeoutSeconds int    `json:"timeoutSeconds"`
	} `json:"geolocation"`

	// Position shown when geolocation fails
	DefaultLocation models.Coordinate `json:"defaultLocation"`

	Search struct {
		DebounceMillis int `json:"debounceMillis"`
	} `json:"search"`

	Sessions struct {
		MaxIdleMinutes int `json:"maxIdleMinutes"`
	} `json:"sessions"`

	Log struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"log"`
}

// DefaultConfig creates a default configuration
func DefaultConfig() *Config {
	config := &Config{Port: 8080}
	config.OpenWeatherMap.BaseURL = "https://api.openweathermap.org"
	config.OpenCage.BaseURL = "https://api.opencagedata.com"
	config.OpenCage.Limit = 5
	config.Geolocation.BaseURL = "http://ip-api.com"
	config.Geolocation.TimeoutSeconds = 10
	config.DefaultLocation = models.Coordinate{Latitude: 51.5074, Longitude: -0.1278} // London
	config.Search.DebounceMillis = 200
	config.Sessions.MaxIdleMinutes = 60
	config.Log.Level = "info"
	config.Log.Format = "json"
	return config
}

// LoadConfig loads configuration from a JSON file on top of the defaults.
// A missing file is not an error. Environment variables override file values.
func LoadConfig(filename string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.Open(filename)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(config); err != nil {
			return nil, err
		}
	}

	config.applyEnv()
	return config, nil
}

func (c *Config) applyEnv() {
	c.OpenWeatherMap.APIKey = getEnv("OPENWEATHERMAP_API_KEY", c.OpenWeatherMap.APIKey)
	c.OpenCage.APIKey = getEnv("OPENCAGE_API_KEY", c.OpenCage.APIKey)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
}

// DebounceDelay returns the quiet period before a search lookup fires
func (c *Config) DebounceDelay() time.Duration {
	return time.Duration(c.Search.DebounceMillis) * time.Millisecond
}

// GeolocationTimeout returns how long a position request may take
func (c *Config) GeolocationTimeout() time.Duration {
	return time.Duration(c.Geolocation.TimeoutSeconds) * time.Second
}

// SessionMaxIdle returns the idle age after which sessions are pruned
func (c *Config) SessionMaxIdle() time.Duration {
	return time.Duration(c.Sessions.MaxIdleMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
