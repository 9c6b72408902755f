package httpapi

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/ports/secondary"
)

// RouteService implements secondary.RouteService via GET /api/geo/route.
type RouteService struct {
	client *Client
}

// NewRouteService creates a route adapter.
func NewRouteService(client *Client) *RouteService {
	return &RouteService{client: client}
}

type routeResponse struct {
	DistanceKm *flexFloat `json:"distance_km"`
	EtaMinutes *flexFloat `json:"eta_minutes"`
}

// Routes queries one route per candidate. Candidates without coordinates or
// without a usable answer are omitted. It fails only when every query failed.
func (r *RouteService) Routes(ctx context.Context, origin secondary.Location, candidates []dispatch.Candidate) (map[string]dispatch.RouteInfo, error) {
	routes := make(map[string]dispatch.RouteInfo, len(candidates))
	var lastErr error
	tried := 0

	for _, c := range candidates {
		if c.Lat == 0 && c.Lon == 0 {
			continue
		}
		tried++

		q := url.Values{}
		q.Set("origin_lat", formatCoord(origin.Lat))
		q.Set("origin_lon", formatCoord(origin.Lon))
		q.Set("dest_lat", formatCoord(c.Lat))
		q.Set("dest_lon", formatCoord(c.Lon))

		var resp routeResponse
		if err := r.client.do(ctx, http.MethodGet, "/api/geo/route?"+q.Encode(), nil, &resp); err != nil {
			lastErr = err
			continue
		}
		if resp.DistanceKm == nil || resp.EtaMinutes == nil {
			continue
		}
		routes[c.HospitalID] = dispatch.RouteInfo{
			DistanceKm: float64(*resp.DistanceKm),
			EtaMinutes: int(math.Round(float64(*resp.EtaMinutes))),
		}
	}

	if tried > 0 && len(routes) == 0 && lastErr != nil {
		return nil, fmt.Errorf("failed to fetch routes: %w", lastErr)
	}
	return routes, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var _ secondary.RouteService = (*RouteService)(nil)
