package usecases

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/samirrijal/geosampler/internal/core/domain"
	"github.com/samirrijal/geosampler/internal/core/ports"
	"github.com/samirrijal/geosampler/internal/report"
)

// ExportFile is a rendered statistics report.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ExportService renders a session's statistics for display and download.
type ExportService struct {
	sessions ports.SessionRepository
	archiver ports.ExportArchiver
	prefix   string
	now      func() time.Time
}

// NewExportService creates a new ExportService. archiver may be nil.
func NewExportService(sessions ports.SessionRepository, archiver ports.ExportArchiver, prefix string) *ExportService {
	return &ExportService{sessions: sessions, archiver: archiver, prefix: prefix, now: time.Now}
}

// Table returns the statistics table shown in the UI.
func (s *ExportService) Table(ctx context.Context, sessionID string) (report.Table, error) {
	session, err := s.statsSession(ctx, sessionID)
	if err != nil {
		return report.Table{}, err
	}
	return report.ToTable(session.Stats), nil
}

// Export renders the statistics in the requested format.
func (s *ExportService) Export(ctx context.Context, sessionID string, format report.Format) (*ExportFile, error) {
	session, err := s.statsSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var data []byte
	switch format {
	case report.FormatCSV:
		data, err = report.ToFlatFile(session.Stats)
	case report.FormatXLSX:
		data, err = report.ToXLSX(session.Stats)
	case report.FormatPDF:
		data, err = report.ToPDF(session.Stats, report.Meta{
			SessionID:     session.ID,
			SpacingMeters: session.SpacingMeters,
			Density:       session.Density(),
			GeneratedAt:   now,
		})
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", format, err)
	}

	return &ExportFile{
		Name:        format.Filename(now),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

// Archive stores a rendered file under <prefix><session>/<name> and returns its location.
func (s *ExportService) Archive(ctx context.Context, sessionID string, file *ExportFile) (string, error) {
	if s.archiver == nil {
		return "", fmt.Errorf("export archive: %w", domain.ErrNotConfigured)
	}
	key := s.prefix + sessionID + "/" + file.Name
	loc, err := s.archiver.Put(ctx, key, file.ContentType, bytes.NewReader(file.Data))
	if err != nil {
		return "", fmt.Errorf("archive export: %w", err)
	}
	return loc, nil
}

func (s *ExportService) statsSession(ctx context.Context, sessionID string) (*domain.GridSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(session.Stats) == 0 {
		return nil, fmt.Errorf("export: %w", domain.ErrNoData)
	}
	return session, nil
}
