package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"weather-dashboard/api"
	"weather-dashboard/datasource"
	"weather-dashboard/logging"
	"weather-dashboard/providers/opencage"
	"weather-dashboard/providers/openweathermap"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	port := flag.Int("port", 0, "Port to run the server on (overrides config)")
	configFile := flag.String("config", "config.json", "Path to configuration file")
	flag.Parse()

	config, err := datasource.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		config.Port = *port
	}

	logger, err := logging.New(config.Log.Level, config.Log.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(config, logger); err != nil {
		logger.Fatal("service stopped", zap.Error(err))
	}
}

func run(config *datasource.Config, logger *zap.Logger) error {
	// Requests fail with ErrMissingAPIKey until a key is configured
	if config.OpenWeatherMap.APIKey == "" {
		logger.Warn("OPENWEATHERMAP_API_KEY is not set; weather requests will fail")
	}
	if config.OpenCage.APIKey == "" {
		logger.Warn("OPENCAGE_API_KEY is not set; location search will fail")
	}

	weather := openweathermap.NewClient(config.OpenWeatherMap.APIKey, config.OpenWeatherMap.BaseURL, logger)
	geocoder := opencage.NewClient(config.OpenCage.APIKey, config.OpenCage.BaseURL, config.OpenCage.Limit, logger)

	sessions := api.NewSessionStore(api.SessionConfig{
		Weather:            weather,
		Geocoder:           geocoder,
		Fallback:           config.DefaultLocation,
		Debounce:           config.DebounceDelay(),
		GeolocationTimeout: config.GeolocationTimeout(),
		Logger:             logger,
	})
	defer sessions.Close()

	server := api.NewServer(sessions, config.Geolocation.BaseURL, config.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Periodically drop sessions nobody has looked at
	g.Go(func() error {
		maxIdle := config.SessionMaxIdle()
		if maxIdle <= 0 {
			return nil
		}
		ticker := time.NewTicker(maxIdle / 4)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sessions.PruneIdle(maxIdle)
			case <-ctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
