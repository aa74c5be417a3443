package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/event-calendar-api/internal/dto"
	"github.com/noah-isme/event-calendar-api/internal/models"
	appErrors "github.com/noah-isme/event-calendar-api/pkg/errors"
	"github.com/noah-isme/event-calendar-api/pkg/export"
)

type occurrenceLister interface {
	ListOccurrences(ctx context.Context, q dto.OccurrenceQuery, viewer *models.JWTClaims) (*dto.OccurrenceList, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportFile is a rendered agenda document.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders materialized occurrences as CSV or PDF agendas.
type ExportService struct {
	occurrences occurrenceLister
	renderers   map[string]datasetRenderer
	location    *time.Location
	logger      *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the
// pkg/export defaults.
func NewExportService(occurrences occurrenceLister, location *time.Location, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		occurrences: occurrences,
		renderers:   map[string]datasetRenderer{"csv": csv, "pdf": pdf},
		location:    location,
		logger:      logger,
	}
}

// Agenda renders the occurrences selected by q.
func (s *ExportService) Agenda(ctx context.Context, q dto.ExportQuery, viewer *models.JWTClaims) (*ExportFile, error) {
	format := strings.ToLower(strings.TrimSpace(q.Format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	list, err := s.occurrences.ListOccurrences(ctx, q.OccurrenceQuery, viewer)
	if err != nil {
		return nil, err
	}

	body, err := renderer.Render(s.agendaDataset(list, q.Start, q.End))
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to render agenda")
	}
	s.logger.Info("agenda exported",
		zap.String("format", format),
		zap.Int("occurrences", len(list.Items)),
		zap.Bool("truncated", list.Truncated))

	return &ExportFile{
		Filename:    fmt.Sprintf("agenda_%s_%s.%s", q.Start.In(s.location).Format("20060102"), q.End.In(s.location).Format("20060102"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func (s *ExportService) agendaDataset(list *dto.OccurrenceList, start, end time.Time) export.Dataset {
	data := export.Dataset{
		Title:    "Agenda",
		Subtitle: fmt.Sprintf("%s - %s (%s)", start.In(s.location).Format("02 Jan 2006"), end.In(s.location).Format("02 Jan 2006"), s.location.String()),
		Headers:  []string{"Date", "Start", "End", "Summary", "Location", "Status", "Notes"},
		Widths:   []float64{1.2, 0.8, 0.8, 3, 2, 1, 2.5},
	}
	if list.Truncated {
		data.Subtitle += ", truncated"
	}
	for _, occ := range list.Items {
		startAt, endAt := occ.Start.In(s.location), occ.End.In(s.location)
		row := map[string]string{
			"Date":     occ.OccurrenceDate,
			"Start":    startAt.Format("15:04"),
			"End":      endAt.Format("15:04"),
			"Summary":  occ.Summary,
			"Location": derefString(occ.Location),
			"Status":   string(occ.Status),
			"Notes":    derefString(occ.Notes),
		}
		if occ.AllDay {
			row["Start"], row["End"] = "all day", ""
		}
		if occ.IsExcluded {
			row["Status"] = "excluded"
		}
		data.Rows = append(data.Rows, row)
	}
	return data
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
