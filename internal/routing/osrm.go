// Package routing resolves driving routes through an OSRM instance.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shiva/ridepool/internal/model"
	"github.com/shiva/ridepool/internal/service"
)

// OSRMClient queries the OSRM HTTP API for driving routes. It implements
// service.RouteProvider.
type OSRMClient struct {
	endpoint string
	client   *http.Client
}

// NewOSRMClient creates a client against the given OSRM base URL, e.g.
// "https://router.project-osrm.org".
func NewOSRMClient(endpoint string, timeout time.Duration) *OSRMClient {
	return &OSRMClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"` // [lng, lat]
		} `json:"geometry"`
	} `json:"routes"`
}

// Route resolves the driving route from → to. OSRM speaks lng,lat order and
// GeoJSON geometry; the result is converted to lat/lng locations.
func (c *OSRMClient) Route(ctx context.Context, from, to model.Location) (*service.RoutePlan, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=full&geometries=geojson",
		c.endpoint, from.Lng, from.Lat, to.Lng, to.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("osrm request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("osrm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("osrm status %d: %s", resp.StatusCode, body)
	}

	var parsed osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("osrm decode: %w", err)
	}
	if parsed.Code != "Ok" || len(parsed.Routes) == 0 {
		return nil, fmt.Errorf("osrm: no route (code %q)", parsed.Code)
	}

	route := parsed.Routes[0]
	geometry := make([]model.Location, 0, len(route.Geometry.Coordinates))
	for _, c := range route.Geometry.Coordinates {
		if len(c) < 2 {
			continue
		}
		geometry = append(geometry, model.Location{Lat: c[1], Lng: c[0]})
	}

	return &service.RoutePlan{
		Geometry:   geometry,
		DistanceKm: route.Distance / 1000,
		Duration:   time.Duration(route.Duration * float64(time.Second)),
	}, nil
}
