// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/siteselect/internal/models"
)

var (
	// ErrUnavailable means no coordinates could be obtained: the provider
	// failed on every attempt, the breaker is open, or the address is unknown
	// to the provider. Callers treat it as non-fatal.
	ErrUnavailable = errors.New("geocoding unavailable")

	// ErrNotFound is returned by a Geocoder when the address has no match.
	// It is not retried.
	ErrNotFound = errors.New("address not found")
)

// Geocoder converts a free-form address to coordinates.
// Implementations can call a web service or read a local gazetteer.
type Geocoder interface {
	// Geocode returns coordinates for address, ErrNotFound when the provider
	// has no match, or another error when the call itself failed.
	Geocode(ctx context.Context, address string) (models.Coordinates, error)

	// Name returns the provider name for logging and metrics.
	Name() string
}

// maxErrorBodySize limits how much of an error response is read.
const maxErrorBodySize = 4 * 1024

// DefaultNominatimURL is the public OpenStreetMap endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// Nominatim implements Geocoder against an OpenStreetMap Nominatim server.
// The public instance requires a descriptive User-Agent and at most one
// request per second; the throttle lives in Resolver, not here.
type Nominatim struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// nominatimResult is one element of the /search response array.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatim creates a client. timeout bounds each HTTP call; an empty
// baseURL selects the public endpoint.
func NewNominatim(baseURL, userAgent string, timeout time.Duration) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Nominatim{
		client:    &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
	}
}

// Name implements Geocoder.
func (n *Nominatim) Name() string { return "nominatim" }

// Geocode implements Geocoder.
func (n *Nominatim) Geocode(ctx context.Context, address string) (models.Coordinates, error) {
	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", "1")
	reqURL := n.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("create request: %w", err)
	}
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return models.Coordinates{}, fmt.Errorf("nominatim returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return models.Coordinates{}, fmt.Errorf("decode nominatim response: %w", err)
	}
	if len(results) == 0 {
		return models.Coordinates{}, ErrNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("parse latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("parse longitude %q: %w", results[0].Lon, err)
	}

	c := models.Coordinates{Latitude: lat, Longitude: lon}
	if !c.Valid() {
		return models.Coordinates{}, fmt.Errorf("nominatim returned out-of-range coordinates %v,%v", lat, lon)
	}
	return c, nil
}

// Func adapts a plain function to Geocoder.
type Func func(ctx context.Context, address string) (models.Coordinates, error)

// Geocode implements Geocoder.
func (f Func) Geocode(ctx context.Context, address string) (models.Coordinates, error) {
	return f(ctx, address)
}

// Name implements Geocoder.
func (f Func) Name() string { return "func" }
