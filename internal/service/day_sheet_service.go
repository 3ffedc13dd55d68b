package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dockwise/dockwise-api/internal/models"
	"github.com/dockwise/dockwise-api/internal/repository"
	appErrors "github.com/dockwise/dockwise-api/pkg/errors"
	"github.com/dockwise/dockwise-api/pkg/export"
	"github.com/dockwise/dockwise-api/pkg/jobs"
	"github.com/dockwise/dockwise-api/pkg/storage"
	"github.com/dockwise/dockwise-api/pkg/walltime"
)

type daySheetStore interface {
	Create(ctx context.Context, job *models.DaySheetJob) error
	GetByID(ctx context.Context, id string) (*models.DaySheetJob, error)
	Update(ctx context.Context, id string, params repository.UpdateDaySheetJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.DaySheetJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.DaySheetJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type dayBookingLister interface {
	ListForDay(ctx context.Context, facilityID string, appointmentTypeID *string, dayStart, dayEnd time.Time) ([]models.Booking, error)
}

type daySheetFacilityReader interface {
	FindByID(ctx context.Context, id string) (*models.Facility, error)
	ListAppointmentTypes(ctx context.Context, facilityID string) ([]models.AppointmentType, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

// DaySheetConfig governs result retention and queue recovery.
type DaySheetConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// DaySheetDownload aggregates resolved download data.
type DaySheetDownload struct {
	File      *os.File
	Filename  string
	Format    models.DaySheetFormat
	ExpiresAt time.Time
}

// DaySheetService owns the printable day-schedule export lifecycle: job
// rows, async generation, signed downloads, and retention cleanup.
type DaySheetService struct {
	repo       daySheetStore
	facilities daySheetFacilityReader
	bookings   dayBookingLister
	queue      jobDispatcher
	storage    fileStorage
	signer     *storage.SignedURLSigner
	csv        csvRenderer
	pdf        pdfRenderer
	logger     *zap.Logger
	cfg        DaySheetConfig
}

// NewDaySheetService constructs the service.
func NewDaySheetService(
	repo daySheetStore,
	facilities daySheetFacilityReader,
	bookings dayBookingLister,
	queue jobDispatcher,
	store fileStorage,
	signer *storage.SignedURLSigner,
	logger *zap.Logger,
	cfg DaySheetConfig,
) *DaySheetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &DaySheetService{
		repo:       repo,
		facilities: facilities,
		bookings:   bookings,
		queue:      queue,
		storage:    store,
		signer:     signer,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		logger:     logger,
		cfg:        cfg,
	}
}

// CreateDaySheetRequest describes an export request.
type CreateDaySheetRequest struct {
	FacilityID        string
	Date              string
	AppointmentTypeID *string
	Format            models.DaySheetFormat
	CreatedBy         string
}

// DaySheetJobResponse is the enqueue/status payload.
type DaySheetJobResponse struct {
	ID        string                `json:"id"`
	Status    models.DaySheetStatus `json:"status"`
	Progress  int                   `json:"progress"`
	ResultURL *string               `json:"result_url,omitempty"`
	Error     *string               `json:"error,omitempty"`
}

// CreateJob validates the request, persists the job row, and enqueues
// generation.
func (s *DaySheetService) CreateJob(ctx context.Context, req CreateDaySheetRequest) (*DaySheetJobResponse, error) {
	if req.Format != models.DaySheetFormatCSV && req.Format != models.DaySheetFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported day sheet format")
	}
	if _, err := walltime.ParseDate(req.Date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}
	facility, err := s.facilities.FindByID(ctx, req.FacilityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "facility not found")
		}
		return nil, fmt.Errorf("find facility: %w", err)
	}

	job := &models.DaySheetJob{
		FacilityID: facility.ID,
		Params: models.DaySheetParams{
			Date:              req.Date,
			AppointmentTypeID: req.AppointmentTypeID,
			Timezone:          facility.Timezone,
			Format:            req.Format,
		},
		Status:    models.DaySheetStatusQueued,
		CreatedBy: req.CreatedBy,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create day sheet job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "day_sheet"}); err != nil {
		status := models.DaySheetStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		progress := 100
		_ = s.repo.Update(ctx, job.ID, repository.UpdateDaySheetJobParams{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue day sheet job")
	}
	return &DaySheetJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata to clients.
func (s *DaySheetService) GetStatus(ctx context.Context, id string) (*DaySheetJobResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load day sheet job")
	}
	resp := &DaySheetJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}
	if job.ResultURL != nil {
		resp.ResultURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates the token and opens the stored file.
func (s *DaySheetService) ResolveDownload(ctx context.Context, token string) (*DaySheetDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load day sheet job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.DaySheetStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "day sheet not ready")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open day sheet file")
	}
	return &DaySheetDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// Generate renders the day sheet for a job and stores the file. Called by
// the worker, not by handlers.
func (s *DaySheetService) Generate(ctx context.Context, job *models.DaySheetJob) (string, error) {
	facility, err := s.facilities.FindByID(ctx, job.FacilityID)
	if err != nil {
		return "", fmt.Errorf("find facility: %w", err)
	}
	date, err := walltime.ParseDate(job.Params.Date)
	if err != nil {
		return "", err
	}
	loc, err := walltime.LoadLocation(facility.Timezone)
	if err != nil {
		return "", err
	}

	dayStart := walltime.Instant(date, walltime.TimeOfDay{}, loc)
	dayEnd := time.Date(date.Year, date.Month, date.Day+1, 0, 0, 0, 0, loc)
	bookings, err := s.bookings.ListForDay(ctx, facility.ID, job.Params.AppointmentTypeID, dayStart, dayEnd)
	if err != nil {
		return "", err
	}
	types, err := s.facilities.ListAppointmentTypes(ctx, facility.ID)
	if err != nil {
		return "", err
	}
	typeNames := make(map[string]string, len(types))
	for _, t := range types {
		typeNames[t.ID] = t.Name
	}

	headers := []string{"Start", "End", "Reference", "Carrier", "Type", "Status"}
	rows := make([]map[string]string, 0, len(bookings))
	for _, b := range bookings {
		_, start, _ := walltime.Clock(b.StartsAt, loc)
		_, end, _ := walltime.Clock(b.EndsAt, loc)
		name := typeNames[b.AppointmentTypeID]
		if name == "" {
			name = b.AppointmentTypeID
		}
		rows = append(rows, map[string]string{
			"Start":     start.String(),
			"End":       end.String(),
			"Reference": b.Reference,
			"Carrier":   b.CarrierName,
			"Type":      name,
			"Status":    string(b.Status),
		})
	}
	dataset := export.Dataset{Headers: headers, Rows: rows}

	var payload []byte
	switch job.Params.Format {
	case models.DaySheetFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.DaySheetFormatPDF:
		subtitle := fmt.Sprintf("%s — %s (%s)", facility.Name, date.String(), facility.Timezone)
		payload, err = s.pdf.Render(dataset, "Dock Day Sheet", subtitle)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("daysheet_%s_%s_%s.%s",
		sanitizeFilename(facility.ID), date.String(), time.Now().UTC().Format("20060102_150405"), job.Params.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return "", err
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return "", err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/export/%s", prefix, token), nil
}

// RecoverPendingJobs replays queued jobs after a process restart.
func (s *DaySheetService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued day sheet jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "day_sheet"}); err != nil {
			s.logger.Warn("failed to requeue pending job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *DaySheetService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *DaySheetService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	finished, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Warn("cleanup list failed", zap.Error(err))
		return
	}
	for _, job := range finished {
		if job.ResultURL == nil {
			continue
		}
		parts := strings.Split(*job.ResultURL, "/")
		token := parts[len(parts)-1]
		_, relPath, _, err := s.signer.Parse(token, true)
		if err != nil {
			continue
		}
		if err := s.storage.Delete(relPath); err != nil {
			s.logger.Warn("cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if _, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("filesystem cleanup failed", zap.Error(err))
	}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// DaySheetWorker bridges queue jobs to generation.
type DaySheetWorker struct {
	repo       daySheetStore
	sheets     *DaySheetService
	logger     *zap.Logger
	maxRetries int
}

// NewDaySheetWorker constructs a worker.
func NewDaySheetWorker(repo daySheetStore, sheets *DaySheetService, maxRetries int, logger *zap.Logger) *DaySheetWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &DaySheetWorker{repo: repo, sheets: sheets, logger: logger, maxRetries: maxRetries}
}

// Handle processes a queue job.
func (w *DaySheetWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.DaySheetStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.UpdateDaySheetJobParams{
		Status:   &processing,
		Progress: &progress,
	}); err != nil {
		return err
	}

	resultURL, err := w.sheets.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			failed := models.DaySheetStatusFailed
			progress = 100
			now := time.Now().UTC()
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateDaySheetJobParams{
				Status:       &failed,
				Progress:     &progress,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				w.logger.Warn("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		} else {
			queued := models.DaySheetStatusQueued
			reset := 0
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateDaySheetJobParams{
				Status:       &queued,
				Progress:     &reset,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Warn("failed to mark job queued", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		}
		return err
	}

	finished := models.DaySheetStatusFinished
	progress = 100
	now := time.Now().UTC()
	noError := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateDaySheetJobParams{
		Status:       &finished,
		Progress:     &progress,
		ResultURL:    &resultURL,
		ErrorMessage: &noError,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark job finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	return nil
}
