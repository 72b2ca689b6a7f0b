package domain

import "errors"

var (
	// ErrInvalidGeometry reports a malformed or degenerate polygon.
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrUnsupportedGeometryType reports a non-Polygon input to the grid generator.
	ErrUnsupportedGeometryType = errors.New("unsupported geometry type")
	// ErrInvalidSpacing reports a non-positive or non-finite grid spacing.
	ErrInvalidSpacing = errors.New("invalid grid spacing")
	// ErrExtractionFailed wraps upstream, network and parse failures of the statistics service.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrStaleStatistics is returned when statistics no longer match the session's grid.
	ErrStaleStatistics = errors.New("stale statistics")
	// ErrNoData is returned when exporting before a successful extraction.
	ErrNoData = errors.New("no data")
	// ErrNoPoints is returned when extraction is requested without sample points.
	ErrNoPoints = errors.New("no sample points")
	// ErrNoActiveRaster is returned when no raster layer has been rendered for the session.
	ErrNoActiveRaster = errors.New("no active raster")
	// ErrSessionNotFound is returned when no session exists under the given id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrConcurrentUpdate is returned by repositories when the stored generation moved.
	ErrConcurrentUpdate = errors.New("concurrent session update")
	// ErrNotConfigured is returned by optional features (async extraction, export archive) left unwired.
	ErrNotConfigured = errors.New("feature not configured")
)
