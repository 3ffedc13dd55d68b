package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dockwise/dockwise-api/internal/models"
	"github.com/dockwise/dockwise-api/internal/repository"
	appErrors "github.com/dockwise/dockwise-api/pkg/errors"
	"github.com/dockwise/dockwise-api/pkg/jobs"
	"github.com/dockwise/dockwise-api/pkg/storage"
)

type daySheetRepoStub struct {
	jobs map[string]*models.DaySheetJob
}

func newDaySheetRepoStub() *daySheetRepoStub {
	return &daySheetRepoStub{jobs: map[string]*models.DaySheetJob{}}
}

func (r *daySheetRepoStub) Create(ctx context.Context, job *models.DaySheetJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.CreatedAt = time.Now().UTC()
	r.jobs[job.ID] = job
	return nil
}

func (r *daySheetRepoStub) GetByID(ctx context.Context, id string) (*models.DaySheetJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (r *daySheetRepoStub) Update(ctx context.Context, id string, params repository.UpdateDaySheetJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *daySheetRepoStub) ListQueued(ctx context.Context, limit int) ([]models.DaySheetJob, error) {
	var queued []models.DaySheetJob
	for _, job := range r.jobs {
		if job.Status == models.DaySheetStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *daySheetRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.DaySheetJob, error) {
	return nil, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type daySheetBookingsStub struct {
	bookings []models.Booking
	err      error
}

func (s *daySheetBookingsStub) ListForDay(ctx context.Context, facilityID string, appointmentTypeID *string, dayStart, dayEnd time.Time) ([]models.Booking, error) {
	return s.bookings, s.err
}

func newDaySheetServiceForTest(t *testing.T, facilities *facilityRepoStub, bookings *daySheetBookingsStub, queue *queueStub) (*DaySheetService, *daySheetRepoStub) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	repo := newDaySheetRepoStub()
	svc := NewDaySheetService(repo, facilities, bookings, queue, store, signer, nil, DaySheetConfig{
		APIPrefix:  "/api/v1",
		ResultTTL:  time.Hour,
		MaxRetries: 3,
	})
	return svc, repo
}

func daySheetBookings() []models.Booking {
	return []models.Booking{
		{
			ID:                "booking-1",
			FacilityID:        "fac-1",
			AppointmentTypeID: "type-1",
			Reference:         "PO-12345",
			CarrierName:       "Acme Freight",
			StartsAt:          time.Date(2025, 6, 9, 13, 0, 0, 0, time.UTC),
			EndsAt:            time.Date(2025, 6, 9, 13, 30, 0, 0, time.UTC),
			Status:            models.BookingStatusConfirmed,
		},
	}
}

func TestDaySheetServiceCreateJob(t *testing.T) {
	queue := &queueStub{}
	svc, repo := newDaySheetServiceForTest(t, testFacilityRepo(), &daySheetBookingsStub{}, queue)

	resp, err := svc.CreateJob(context.Background(), CreateDaySheetRequest{
		FacilityID: "fac-1",
		Date:       "2025-06-09",
		Format:     models.DaySheetFormatCSV,
		CreatedBy:  "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DaySheetStatusQueued, resp.Status)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, resp.ID, queue.jobs[0].ID)

	stored, err := repo.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", stored.Params.Timezone)
}

func TestDaySheetServiceCreateJobRejectsFormat(t *testing.T) {
	svc, _ := newDaySheetServiceForTest(t, testFacilityRepo(), &daySheetBookingsStub{}, &queueStub{})

	_, err := svc.CreateJob(context.Background(), CreateDaySheetRequest{
		FacilityID: "fac-1",
		Date:       "2025-06-09",
		Format:     models.DaySheetFormat("xlsx"),
	})
	require.Error(t, err)
}

func TestDaySheetServiceCreateJobRejectsBadDate(t *testing.T) {
	svc, _ := newDaySheetServiceForTest(t, testFacilityRepo(), &daySheetBookingsStub{}, &queueStub{})

	_, err := svc.CreateJob(context.Background(), CreateDaySheetRequest{
		FacilityID: "fac-1",
		Date:       "June 9th",
		Format:     models.DaySheetFormatCSV,
	})
	require.Error(t, err)
}

func TestDaySheetServiceCreateJobMarksFailedWhenEnqueueFails(t *testing.T) {
	queue := &queueStub{err: assert.AnError}
	svc, repo := newDaySheetServiceForTest(t, testFacilityRepo(), &daySheetBookingsStub{}, queue)

	_, err := svc.CreateJob(context.Background(), CreateDaySheetRequest{
		FacilityID: "fac-1",
		Date:       "2025-06-09",
		Format:     models.DaySheetFormatCSV,
	})
	require.Error(t, err)

	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.DaySheetStatusFailed, job.Status)
	}
}

func TestDaySheetWorkerGeneratesCSV(t *testing.T) {
	queue := &queueStub{}
	bookings := &daySheetBookingsStub{bookings: daySheetBookings()}
	svc, repo := newDaySheetServiceForTest(t, testFacilityRepo(), bookings, queue)
	worker := NewDaySheetWorker(repo, svc, 3, nil)

	resp, err := svc.CreateJob(context.Background(), CreateDaySheetRequest{
		FacilityID: "fac-1",
		Date:       "2025-06-09",
		Format:     models.DaySheetFormatCSV,
	})
	require.NoError(t, err)

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: resp.ID}))

	job, err := repo.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DaySheetStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	require.Contains(t, *job.ResultURL, "/api/v1/export/")
	require.NotNil(t, job.FinishedAt)

	parts := strings.Split(*job.ResultURL, "/")
	token := parts[len(parts)-1]

	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()

	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	// Instants render in facility wall clock: 13:00 UTC is 09:00 EDT.
	assert.Contains(t, string(content), "09:00")
	assert.Contains(t, string(content), "PO-12345")
	assert.Contains(t, string(content), "Live Load")
}

func TestDaySheetWorkerRequeuesOnFailure(t *testing.T) {
	queue := &queueStub{}
	bookings := &daySheetBookingsStub{err: assert.AnError}
	svc, repo := newDaySheetServiceForTest(t, testFacilityRepo(), bookings, queue)
	worker := NewDaySheetWorker(repo, svc, 3, nil)

	resp, err := svc.CreateJob(context.Background(), CreateDaySheetRequest{
		FacilityID: "fac-1",
		Date:       "2025-06-09",
		Format:     models.DaySheetFormatPDF,
	})
	require.NoError(t, err)

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: resp.ID, Attempt: 0}))
	job, _ := repo.GetByID(context.Background(), resp.ID)
	assert.Equal(t, models.DaySheetStatusQueued, job.Status)

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: resp.ID, Attempt: 3}))
	job, _ = repo.GetByID(context.Background(), resp.ID)
	assert.Equal(t, models.DaySheetStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
}

func TestDaySheetServiceResolveDownloadRejectsBadToken(t *testing.T) {
	svc, _ := newDaySheetServiceForTest(t, testFacilityRepo(), &daySheetBookingsStub{}, &queueStub{})

	_, err := svc.ResolveDownload(context.Background(), "not-a-token")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestDaySheetServiceRecoverPendingJobs(t *testing.T) {
	queue := &queueStub{}
	svc, repo := newDaySheetServiceForTest(t, testFacilityRepo(), &daySheetBookingsStub{}, queue)

	job := &models.DaySheetJob{
		FacilityID: "fac-1",
		Params:     models.DaySheetParams{Date: "2025-06-09", Format: models.DaySheetFormatCSV},
		Status:     models.DaySheetStatusQueued,
	}
	require.NoError(t, repo.Create(context.Background(), job))

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, job.ID, queue.jobs[0].ID)
}
