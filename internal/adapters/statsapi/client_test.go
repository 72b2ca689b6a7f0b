package statsapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samirrijal/geosampler/internal/adapters/statsapi"
	"github.com/samirrijal/geosampler/internal/core/domain"
)

var roi = json.RawMessage(`{"type":"Polygon","coordinates":[[[0,0],[0,0.01],[0.01,0.01],[0.01,0],[0,0]]]}`)

var points = []domain.SamplePoint{
	{ID: 1, Lat: 0.001, Lng: 0.002},
	{ID: 2, Lat: 0.001, Lng: 0.003},
}

func TestExtractStats_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != statsapi.ExtractPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}

		var body struct {
			Points []struct {
				ID  int     `json:"id"`
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"points"`
			Geometry map[string]any `json:"geometry"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(body.Points) != 2 || body.Points[1].ID != 2 || body.Points[1].Lng != 0.003 {
			t.Errorf("unexpected points payload: %+v", body.Points)
		}
		if body.Geometry["type"] != "Polygon" {
			t.Errorf("expected Polygon geometry, got %v", body.Geometry["type"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"stats":[
			{"id":1,"lat":0.001,"lng":0.002,"ndvi_mean":0.61,"evi_mean":0.33},
			{"id":2,"lat":0.001,"lng":0.003,"ndvi_mean":0.58,"evi_mean":0.29}
		]}`))
	}))
	defer srv.Close()

	stats, err := statsapi.New(srv.URL+"/", 5*time.Second).ExtractStats(context.Background(), points, roi)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 stats, got %d", len(stats))
	}
	want := domain.PointStatistic{ID: 2, Lat: 0.001, Lng: 0.003, NDVIMean: 0.58, EVIMean: 0.29}
	if stats[1] != want {
		t.Errorf("expected %+v, got %+v", want, stats[1])
	}
}

func TestExtractStats_EmptyPointsSkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	_, err := statsapi.New(srv.URL, 0).ExtractStats(context.Background(), nil, roi)
	if !errors.Is(err, domain.ErrNoPoints) {
		t.Fatalf("expected ErrNoPoints, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("no request must be sent without points")
	}
}

func TestExtractStats_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"upstream error", 500, `{"error":"Erro interno do servidor"}`, "Erro interno do servidor"},
		{"plain text error", 404, "Nenhuma imagem Sentinel-2 encontrada", "Nenhuma imagem Sentinel-2 encontrada"},
		{"not json", 200, "<html>", "decode response"},
		{"no stats field", 200, `{"data":[]}`, "no stats field"},
		{"missing mean", 200, `{"stats":[{"id":1,"lat":0,"lng":0,"ndvi_mean":0.5}]}`, "missing evi_mean"},
		{"null mean", 200, `{"stats":[{"id":1,"lat":0,"lng":0,"ndvi_mean":null,"evi_mean":0.1}]}`, "missing ndvi_mean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := statsapi.New(srv.URL, 5*time.Second).ExtractStats(context.Background(), points, roi)
			if !errors.Is(err, domain.ErrExtractionFailed) {
				t.Fatalf("expected ErrExtractionFailed, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected message to contain %q, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestExtractStats_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := statsapi.New(url, time.Second).ExtractStats(context.Background(), points, roi)
	if !errors.Is(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}
