package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gw-connect/connect-api/internal/dto"
	"github.com/gw-connect/connect-api/internal/models"
	appErrors "github.com/gw-connect/connect-api/pkg/errors"
	"github.com/gw-connect/connect-api/pkg/export"
	"github.com/gw-connect/connect-api/pkg/storage"
)

type exportAppointmentReader interface {
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentRequest, int, error)
}

type exportPersonReader interface {
	FindByID(ctx context.Context, id string) (*models.Person, error)
	FindByUserID(ctx context.Context, userID string) (*models.Person, error)
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportServiceConfig tunes rendered export retention.
type ExportServiceConfig struct {
	CleanupTTL time.Duration
}

// ExportService renders a person's confirmed agenda as CSV or PDF, stores the
// artifact and hands back a signed download reference.
type ExportService struct {
	appointments exportAppointmentReader
	people       exportPersonReader
	csv          *export.CSVExporter
	pdf          *export.PDFExporter
	store        exportStorage
	signer       *storage.SignedURLSigner
	logger       *zap.Logger
	cfg          ExportServiceConfig
}

// NewExportService constructs an ExportService.
func NewExportService(appointments exportAppointmentReader, people exportPersonReader, store exportStorage, signer *storage.SignedURLSigner, logger *zap.Logger, cfg ExportServiceConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CleanupTTL <= 0 {
		cfg.CleanupTTL = 24 * time.Hour
	}
	return &ExportService{
		appointments: appointments,
		people:       people,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		store:        store,
		signer:       signer,
		logger:       logger,
		cfg:          cfg,
	}
}

var agendaHeaders = []string{"Date", "Start", "End", "Format", "Topic", "Status"}

// Agenda renders the confirmed agenda of the acting user's own person record
// between the given dates in the requested format ("csv" or "pdf").
func (s *ExportService) Agenda(ctx context.Context, actorUserID, format string, from, to time.Time) (*dto.ExportResult, error) {
	person, err := s.people.FindByUserID(ctx, actorUserID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no bookable profile for this user")
	}

	status := models.AppointmentConfirmed
	reqs, _, err := s.appointments.List(ctx, models.AppointmentFilter{
		PersonID: person.ID,
		Status:   &status,
		DateFrom: &from,
		DateTo:   &to,
		PageSize: 100,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load agenda")
	}

	dataset := export.Dataset{Headers: agendaHeaders}
	for _, appt := range reqs {
		dataset.Append(
			appt.Date.Format("2006-01-02"),
			FormatMinute(appt.StartMinute),
			FormatMinute(appt.EndMinute),
			string(appt.Format),
			appt.Topic,
			string(appt.Status),
		)
	}

	var payload []byte
	var ext string
	switch strings.ToLower(format) {
	case "csv":
		payload, err = s.csv.Render(dataset)
		ext = "csv"
	case "pdf":
		title := fmt.Sprintf("Agenda %s", person.Name)
		payload, err = s.pdf.Render(dataset, title)
		ext = "pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	id := uuid.NewString()
	fileName := fmt.Sprintf("agenda-%s-%s.%s", from.Format("20060102"), to.Format("20060102"), ext)
	relPath := filepath.Join("exports", id+"."+ext)
	if _, err := s.store.Save(relPath, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export download")
	}

	return &dto.ExportResult{
		FileName:  fileName,
		Format:    ext,
		SizeBytes: len(payload),
		Download:  fmt.Sprintf("/api/v1/exports/download/%s", token),
		ExpiresAt: expiresAt,
	}, nil
}

// ResolveToken validates an export download token and returns the stored path
// and a file name for the response headers.
func (s *ExportService) ResolveToken(token string) (relPath, fileName string, err error) {
	_, relPath, _, err = s.signer.Parse(token, false)
	if err != nil {
		return "", "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	return relPath, filepath.Base(relPath), nil
}

// Cleanup removes stored exports older than the retention TTL. Intended to
// run periodically from main.
func (s *ExportService) Cleanup() {
	deleted, err := s.store.CleanupOlderThan(s.cfg.CleanupTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("removed stale exports", zap.Int("count", len(deleted)))
	}
}
