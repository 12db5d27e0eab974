package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flowstudio/studio-api/internal/models"
	"github.com/flowstudio/studio-api/pkg/export"
	appErrors "github.com/flowstudio/studio-api/pkg/errors"
)

// ExportFormat identifies a supported roster file format.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportFile is a rendered roster ready to stream to the client.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

type exportBookingRepo interface {
	ListByClass(ctx context.Context, classID string) ([]models.BookingDetail, error)
}

type exportClassRepo interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders class rosters as downloadable CSV or PDF files.
type ExportService struct {
	bookings exportBookingRepo
	classes  exportClassRepo
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(bookings exportBookingRepo, classes exportClassRepo, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{bookings: bookings, classes: classes, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// Roster renders the booking roster for a class in the requested format.
func (s *ExportService) Roster(ctx context.Context, classID string, format ExportFormat) (*ExportFile, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	bookings, err := s.bookings.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class bookings")
	}

	dataset := rosterDataset(bookings)
	base := rosterFilename(class.Title, s.now())

	switch format {
	case ExportFormatCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv roster")
		}
		return &ExportFile{Filename: base + ".csv", ContentType: "text/csv", Payload: payload}, nil
	case ExportFormatPDF:
		payload, err := s.pdf.Render(dataset, fmt.Sprintf("Lista de reservas - %s", class.Title))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf roster")
		}
		return &ExportFile{Filename: base + ".pdf", ContentType: "application/pdf", Payload: payload}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func rosterDataset(bookings []models.BookingDetail) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"#", "Email", "Reservado"},
	}
	for i, booking := range bookings {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"#":         strconv.Itoa(i + 1),
			"Email":     booking.UserEmail,
			"Reservado": booking.CreatedAt.Format(time.RFC3339),
		})
	}
	return dataset
}

func rosterFilename(title string, now time.Time) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "clase"
	}
	return fmt.Sprintf("roster-%s-%s", slug, now.Format("20060102"))
}
