package http

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geosampler/internal/core/domain"
	"github.com/samirrijal/geosampler/internal/report"
)

// SessionSummary is the lightweight view of a session returned by most routes.
// Points and statistics are fetched through the grid and table routes.
type SessionSummary struct {
	ID            string          `json:"id"`
	GeometryType  string          `json:"geometry_type"`
	ROI           json.RawMessage `json:"roi"`
	AreaHectares  float64         `json:"area_ha"`
	SpacingMeters float64         `json:"spacing_m,omitempty"`
	RasterLayer   string          `json:"raster_layer,omitempty"`
	RasterReady   bool            `json:"raster_ready"`
	Generation    int64           `json:"generation"`
	Points        int             `json:"points"`
	Stats         int             `json:"stats"`
	Density       float64         `json:"density_per_ha"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func summarize(s *domain.GridSession) SessionSummary {
	return SessionSummary{
		ID:            s.ID,
		GeometryType:  s.GeometryType,
		ROI:           s.ROI,
		AreaHectares:  s.AreaHectares,
		SpacingMeters: s.SpacingMeters,
		RasterLayer:   s.RasterLayer,
		RasterReady:   s.RasterReady(),
		Generation:    s.Generation,
		Points:        len(s.Points),
		Stats:         len(s.Stats),
		Density:       s.Density(),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// GridView is the generated point set with its density.
type GridView struct {
	SessionID     string               `json:"session_id"`
	Generation    int64                `json:"generation"`
	SpacingMeters float64              `json:"spacing_m"`
	Requested     float64              `json:"requested_spacing_m,omitempty"`
	FallbackUsed  bool                 `json:"fallback_used,omitempty"`
	Count         int                  `json:"count"`
	Density       float64              `json:"density_per_ha"`
	Points        []domain.SamplePoint `json:"points"`
	Message       string               `json:"message,omitempty"`
}

func gridView(s *domain.GridSession) GridView {
	points := s.Points
	if points == nil {
		points = []domain.SamplePoint{}
	}
	return GridView{
		SessionID:     s.ID,
		Generation:    s.Generation,
		SpacingMeters: s.SpacingMeters,
		Count:         len(points),
		Density:       s.Density(),
		Points:        points,
	}
}

type geometryRequest struct {
	Geometry json.RawMessage `json:"geometry"`
}

func parseGeometry(c *fiber.Ctx) ([]byte, error) {
	var req geometryRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if len(req.Geometry) == 0 || string(req.Geometry) == "null" {
		return nil, fmt.Errorf("geometry is required")
	}
	return req.Geometry, nil
}

// CreateSessionHandler registers a drawn ROI and returns the new session.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roi, err := parseGeometry(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		session, err := deps.Sessions.Create(c.UserContext(), roi)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Location("/v1/sessions/" + session.ID)
		return c.Status(fiber.StatusCreated).JSON(summarize(session))
	}
}

// GetSessionHandler returns a session summary.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := deps.Sessions.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(summarize(session))
	}
}

// ReplaceROIHandler swaps the session's ROI, discarding grid, stats and raster.
func ReplaceROIHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roi, err := parseGeometry(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		session, err := deps.Sessions.ReplaceROI(c.UserContext(), c.Params("id"), roi)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(summarize(session))
	}
}

// DeleteSessionHandler removes a session.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Delete(c.UserContext(), c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// MarkRasterHandler records which raster layer the map has rendered for the ROI.
func MarkRasterHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Layer string `json:"layer"`
		}
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		layer := strings.ToLower(strings.TrimSpace(req.Layer))
		if layer == "" || len(layer) > 32 {
			return errBadRequest(c, "layer is required (max 32 characters)")
		}

		session, err := deps.Sessions.MarkRasterReady(c.UserContext(), c.Params("id"), layer)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(summarize(session))
	}
}

// checkSpacing enforces the configured spacing bounds on client input.
func checkSpacing(deps *Dependencies, spacing float64) error {
	if math.IsNaN(spacing) || math.IsInf(spacing, 0) {
		return fmt.Errorf("spacing must be a finite number")
	}
	if spacing < deps.Grid.MinSpacing || spacing > deps.Grid.MaxSpacing {
		return fmt.Errorf("spacing must be between %g and %g meters", deps.Grid.MinSpacing, deps.Grid.MaxSpacing)
	}
	return nil
}

// GenerateGridHandler builds the sample grid. A missing fallback_spacing uses
// the configured default; an explicit 0 disables the retry.
func GenerateGridHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Spacing         *float64 `json:"spacing"`
			FallbackSpacing *float64 `json:"fallback_spacing"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid JSON body")
			}
		}

		spacing := deps.Grid.DefaultSpacing
		if req.Spacing != nil {
			spacing = *req.Spacing
		}
		if err := checkSpacing(deps, spacing); err != nil {
			return errBadRequest(c, err.Error())
		}

		fallback := deps.Grid.FallbackSpacing
		if req.FallbackSpacing != nil {
			fallback = *req.FallbackSpacing
			if fallback != 0 {
				if err := checkSpacing(deps, fallback); err != nil {
					return errBadRequest(c, "fallback_"+err.Error())
				}
			}
		}

		session, err := deps.Sessions.GenerateGrid(c.UserContext(), c.Params("id"), spacing, fallback)
		if err != nil {
			return errFromDomain(c, err)
		}

		view := gridView(session)
		view.Requested = spacing
		view.FallbackUsed = view.Count > 0 && session.SpacingMeters != spacing
		if view.Count == 0 {
			view.Message = "no grid points fall inside the region; try a smaller spacing"
		}
		return c.JSON(view)
	}
}

// GetGridHandler returns the current point set.
func GetGridHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := deps.Sessions.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(gridView(session))
	}
}

// ClearGridHandler empties points and statistics.
func ClearGridHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := deps.Sessions.ClearGrid(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(summarize(session))
	}
}

// EstimateGridHandler compares the area-based estimate with the real lattice size.
func EstimateGridHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		spacing := deps.Grid.DefaultSpacing
		if raw := c.Query("spacing"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return errBadRequest(c, "spacing must be a number")
			}
			spacing = v
		}
		if err := checkSpacing(deps, spacing); err != nil {
			return errBadRequest(c, err.Error())
		}

		est, err := deps.Sessions.EstimateGrid(c.UserContext(), c.Params("id"), spacing)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(est)
	}
}

// NearestPointHandler finds the sample point closest to a clicked map location.
func NearestPointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			return errBadRequest(c, "lat and lng query parameters are required")
		}
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			return errBadRequest(c, "lat must be within [-90, 90] and lng within [-180, 180]")
		}

		match, err := deps.Sessions.NearestPoint(c.UserContext(), c.Params("id"), lat, lng)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(match)
	}
}

// ExtractHandler fetches statistics for the current grid. With ?async=true the
// request is handed to the extraction workflow and 202 is returned at once.
func ExtractHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		if c.QueryBool("async", false) {
			workflowID, err := deps.Extraction.StartAsync(c.UserContext(), id)
			if err != nil {
				return errFromDomain(c, err)
			}
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
				"session_id":  id,
				"workflow_id": workflowID,
			})
		}

		session, err := deps.Extraction.Extract(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{
			"session_id": session.ID,
			"generation": session.Generation,
			"count":      len(session.Stats),
			"stats":      session.Stats,
		})
	}
}

// TableHandler returns the statistics table, paginated by rows.
func TableHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		table, err := deps.Exports.Table(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}

		pg := parsePagination(c)
		pg.Total = len(table.Rows)
		start, end := pg.window()
		table.Rows = table.Rows[start:end]

		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: table, Pagination: pg})
	}
}

// ExportHandler streams the statistics as a CSV, XLSX or PDF download.
// With ?archive=true a copy is also stored and its location returned in
// the X-Archive-Location header.
func ExportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		format, err := report.ParseFormat(strings.ToLower(c.Query("format")))
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		id := c.Params("id")
		file, err := deps.Exports.Export(c.UserContext(), id, format)
		if err != nil {
			return errFromDomain(c, err)
		}

		if c.QueryBool("archive", false) {
			location, err := deps.Exports.Archive(c.UserContext(), id, file)
			if err != nil {
				return errFromDomain(c, err)
			}
			c.Set("X-Archive-Location", location)
		}

		c.Attachment(file.Name)
		c.Set(fiber.HeaderContentType, file.ContentType)
		return c.Send(file.Data)
	}
}
