package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	geocodeTimeout = 5 * time.Second
	matrixTimeout  = 10 * time.Second
)

// GoogleMapsService implements GeoProvider against the Google Maps
// Geocoding and Distance Matrix APIs
type GoogleMapsService struct {
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// GoogleGeocodeResponse represents the Google Maps Geocoding API response
type GoogleGeocodeResponse struct {
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location Coordinates `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	Status string `json:"status"`
}

// GoogleDistanceMatrixResponse represents the Distance Matrix API response
type GoogleDistanceMatrixResponse struct {
	Rows []struct {
		Elements []struct {
			Status   string `json:"status"`
			Duration struct {
				Value int `json:"value"` // seconds
			} `json:"duration"`
			Distance struct {
				Value int `json:"value"` // meters
			} `json:"distance"`
		} `json:"elements"`
	} `json:"rows"`
	Status string `json:"status"`
}

// NewGoogleMapsService creates the provider from GOOGLE_MAPS_API_KEY.
// Returns nil when no key is configured; the dispatch path treats that as
// a permanently degraded provider and relies on straight-line fallbacks.
func NewGoogleMapsService() *GoogleMapsService {
	apiKey := os.Getenv("GOOGLE_MAPS_API_KEY")
	if apiKey == "" {
		log.Println("⚠️ GOOGLE_MAPS_API_KEY not set - geocoding and drive times disabled")
		return nil
	}

	return &GoogleMapsService{
		apiKey: apiKey,
		client: &http.Client{},
		// Keeps bursts of route builds under the Maps API quota
		limiter: rate.NewLimiter(rate.Limit(10), 10),
	}
}

// Geocode converts an address string to coordinates
func (s *GoogleMapsService) Geocode(ctx context.Context, address string) (Coordinates, error) {
	if s == nil {
		return Coordinates{}, ErrGeoUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return Coordinates{}, ErrGeoUnavailable
	}

	baseURL := "https://maps.googleapis.com/maps/api/geocode/json"

	params := url.Values{}
	params.Add("address", address)
	params.Add("key", s.apiKey)

	fullURL := fmt.Sprintf("%s?%s", baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Coordinates{}, fmt.Errorf("failed to build geocode request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("⚠️ Geocode request failed for %q: %v", address, err)
		return Coordinates{}, ErrGeoUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("⚠️ Geocode API returned status code %d for %q", resp.StatusCode, address)
		return Coordinates{}, ErrGeoUnavailable
	}

	var result GoogleGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Coordinates{}, fmt.Errorf("failed to decode geocode response: %w", err)
	}

	if result.Status != "OK" || len(result.Results) == 0 {
		log.Printf("⚠️ Geocoding returned no result for %q: status=%s", address, result.Status)
		return Coordinates{}, ErrGeoUnavailable
	}

	return result.Results[0].Geometry.Location, nil
}

// DriveTimeMatrix returns estimated drive minutes from the origin to each
// destination in one batched Distance Matrix call. The result always has
// one entry per destination; entries the API could not resolve are -1 and
// callers substitute the straight-line fallback.
func (s *GoogleMapsService) DriveTimeMatrix(ctx context.Context, origin Coordinates, destinations []Coordinates) ([]float64, error) {
	if s == nil {
		return nil, ErrGeoUnavailable
	}
	if len(destinations) == 0 {
		return []float64{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, matrixTimeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, ErrGeoUnavailable
	}

	dests := make([]string, len(destinations))
	for i, d := range destinations {
		dests[i] = fmt.Sprintf("%f,%f", d.Lat, d.Lng)
	}

	baseURL := "https://maps.googleapis.com/maps/api/distancematrix/json"

	params := url.Values{}
	params.Add("origins", fmt.Sprintf("%f,%f", origin.Lat, origin.Lng))
	params.Add("destinations", strings.Join(dests, "|"))
	params.Add("departure_time", "now")
	params.Add("key", s.apiKey)

	fullURL := fmt.Sprintf("%s?%s", baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build distance matrix request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("⚠️ Distance matrix request failed: %v", err)
		return nil, ErrGeoUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("⚠️ Distance matrix API returned status code %d", resp.StatusCode)
		return nil, ErrGeoUnavailable
	}

	var result GoogleDistanceMatrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode distance matrix response: %w", err)
	}

	if result.Status != "OK" || len(result.Rows) == 0 {
		log.Printf("⚠️ Distance matrix returned status=%s", result.Status)
		return nil, ErrGeoUnavailable
	}

	elements := result.Rows[0].Elements
	minutes := make([]float64, len(destinations))
	for i := range minutes {
		if i >= len(elements) || elements[i].Status != "OK" {
			minutes[i] = -1
			continue
		}
		minutes[i] = float64(elements[i].Duration.Value) / 60.0
	}

	return minutes, nil
}
