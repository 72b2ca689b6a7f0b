package usecases_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/samirrijal/geosampler/internal/core/domain"
	"github.com/samirrijal/geosampler/internal/core/usecases"
	"github.com/samirrijal/geosampler/internal/report"
)

func sessionWithStats() *domain.GridSession {
	s := sessionWithGrid(3)
	s.SpacingMeters = 100
	s.Stats = echoStats(s.Points)
	return s
}

func TestExportService_Table(t *testing.T) {
	repo, _ := storedRepo(sessionWithStats())
	svc := usecases.NewExportService(repo, nil, "")

	table, err := svc.Table(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(table.Rows))
	}
	if table.Rows[0][3] != "0.5000" {
		t.Errorf("expected ndvi 0.5000, got %s", table.Rows[0][3])
	}
}

func TestExportService_NoData(t *testing.T) {
	repo, _ := storedRepo(sessionWithGrid(3))
	svc := usecases.NewExportService(repo, nil, "")

	if _, err := svc.Table(context.Background(), "s1"); !errors.Is(err, domain.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
	for _, f := range []report.Format{report.FormatCSV, report.FormatXLSX, report.FormatPDF} {
		if _, err := svc.Export(context.Background(), "s1", f); !errors.Is(err, domain.ErrNoData) {
			t.Errorf("%s: expected ErrNoData, got %v", f, err)
		}
	}
}

func TestExportService_Export(t *testing.T) {
	repo, _ := storedRepo(sessionWithStats())
	svc := usecases.NewExportService(repo, nil, "")

	tests := []struct {
		format report.Format
		prefix []byte
	}{
		{report.FormatCSV, []byte("id,lat,lng,ndvi_mean,evi_mean\n")},
		{report.FormatXLSX, []byte("PK")},
		{report.FormatPDF, []byte("%PDF-")},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			file, err := svc.Export(context.Background(), "s1", tt.format)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.HasPrefix(file.Data, tt.prefix) {
				t.Errorf("unexpected content start %q", file.Data[:min(len(file.Data), 16)])
			}
			if !strings.HasSuffix(file.Name, "."+string(tt.format)) || !strings.HasPrefix(file.Name, "point_stats_") {
				t.Errorf("unexpected file name %s", file.Name)
			}
			if file.ContentType != tt.format.ContentType() {
				t.Errorf("unexpected content type %s", file.ContentType)
			}
		})
	}
}

func TestExportService_Archive(t *testing.T) {
	repo, _ := storedRepo(sessionWithStats())
	file := &usecases.ExportFile{Name: "point_stats_2026-01-02.csv", ContentType: "text/csv", Data: []byte("id\n")}

	if _, err := usecases.NewExportService(repo, nil, "").Archive(context.Background(), "s1", file); !errors.Is(err, domain.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}

	archiver := &mockArchiver{}
	loc, err := usecases.NewExportService(repo, archiver, "exports/").Archive(context.Background(), "s1", file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if archiver.key != "exports/s1/point_stats_2026-01-02.csv" {
		t.Errorf("unexpected key %s", archiver.key)
	}
	if loc != "s3://exports/exports/s1/point_stats_2026-01-02.csv" {
		t.Errorf("unexpected location %s", loc)
	}
	if string(archiver.body) != "id\n" || archiver.contentType != "text/csv" {
		t.Errorf("unexpected upload %q %s", archiver.body, archiver.contentType)
	}
}
