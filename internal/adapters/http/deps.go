package http

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geosampler/internal/core/usecases"
)

// Pinger is a backing service that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GridLimits bounds client-supplied grid spacing, in meters.
type GridLimits struct {
	DefaultSpacing  float64
	FallbackSpacing float64
	MinSpacing      float64
	MaxSpacing      float64
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions   *usecases.SessionService
	Extraction *usecases.ExtractionService
	Exports    *usecases.ExportService
	Grid       GridLimits
	// ExtractTimeout bounds the synchronous extract call; zero uses the request default.
	ExtractTimeout time.Duration
	NATS           *nats.Conn
	DB             Pinger
	Cache          Pinger
}
