// Package statsapi calls the remote raster statistics service that samples
// vegetation indices at grid points.
package statsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

// ExtractPath is the statistics endpoint of the deployed service.
const ExtractPath = "/api/extract-point-stats"

const maxResponseBytes = 32 << 20

// Client implements ports.StatsProvider over HTTP/JSON.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the service at baseURL. A zero timeout leaves the
// transport default in place.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type pointPayload struct {
	ID  int     `json:"id"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type extractRequest struct {
	Points   []pointPayload  `json:"points"`
	Geometry json.RawMessage `json:"geometry"`
}

// statRecord uses pointers so absent fields can be told apart from zeros.
type statRecord struct {
	ID       *int     `json:"id"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	NDVIMean *float64 `json:"ndvi_mean"`
	EVIMean  *float64 `json:"evi_mean"`
}

type extractResponse struct {
	Stats *[]statRecord `json:"stats"`
}

// ExtractStats sends points and the ROI to the service and maps the reply
// onto point statistics. It never retries.
func (c *Client) ExtractStats(ctx context.Context, points []domain.SamplePoint, roi json.RawMessage) ([]domain.PointStatistic, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("extract stats: %w", domain.ErrNoPoints)
	}

	ctx, span := otel.Tracer("geosampler/statsapi").Start(ctx, "statsapi.ExtractStats")
	defer span.End()
	span.SetAttributes(attribute.Int("grid.points", len(points)))

	stats, err := c.extract(ctx, points, roi)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return stats, nil
}

func (c *Client) extract(ctx context.Context, points []domain.SamplePoint, roi json.RawMessage) ([]domain.PointStatistic, error) {
	payload := extractRequest{
		Points:   make([]pointPayload, len(points)),
		Geometry: roi,
	}
	for i, p := range points {
		payload.Points[i] = pointPayload{ID: p.ID, Lat: p.Lat, Lng: p.Lng}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", domain.ErrExtractionFailed, err)
	}

	url := c.baseURL + ExtractPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrExtractionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: POST %s: %v", domain.ErrExtractionFailed, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrExtractionFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", domain.ErrExtractionFailed, resp.StatusCode, upstreamMessage(data))
	}

	var out extractResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrExtractionFailed, err)
	}
	if out.Stats == nil {
		return nil, fmt.Errorf("%w: response has no stats field", domain.ErrExtractionFailed)
	}

	stats := make([]domain.PointStatistic, len(*out.Stats))
	for i, r := range *out.Stats {
		if missing := r.missingField(); missing != "" {
			return nil, fmt.Errorf("%w: stats[%d] missing %s", domain.ErrExtractionFailed, i, missing)
		}
		stats[i] = domain.PointStatistic{
			ID:       *r.ID,
			Lat:      *r.Lat,
			Lng:      *r.Lng,
			NDVIMean: *r.NDVIMean,
			EVIMean:  *r.EVIMean,
		}
	}
	return stats, nil
}

func (r statRecord) missingField() string {
	switch {
	case r.ID == nil:
		return "id"
	case r.Lat == nil:
		return "lat"
	case r.Lng == nil:
		return "lng"
	case r.NDVIMean == nil:
		return "ndvi_mean"
	case r.EVIMean == nil:
		return "evi_mean"
	}
	return ""
}

// upstreamMessage prefers the "error" field of a JSON error body.
func upstreamMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response"
	}
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}
