package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/uni-plan/timetable-api/internal/models"
	appErrors "github.com/uni-plan/timetable-api/pkg/errors"
	"github.com/uni-plan/timetable-api/pkg/export"
	"github.com/uni-plan/timetable-api/pkg/jobs"
)

// ExportJobType routes timetable render jobs on the background queue.
const ExportJobType = "timetable_export"

type exportRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	UpdateResult(ctx context.Context, id string, status models.ExportJobStatus, filePath, errMessage *string) error
}

type exportQueue interface {
	Enqueue(job jobs.Job) error
}

type artifactStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type downloadSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

// ExportService renders timetables to CSV or PDF asynchronously. Requests
// create a pending job row and a queue entry; workers call HandleJob, store
// the artifact and record the outcome. Downloads go through HMAC-signed
// tokens so artifacts need no authenticated session.
type ExportService struct {
	repo          exportRepository
	timetables    entryTimetableRepository
	entries       poolEntryRepository
	queue         exportQueue
	storage       artifactStorage
	signer        downloadSigner
	csv           *export.CSVExporter
	pdf           *export.PDFExporter
	logger        *zap.Logger
	onlineMinutes int
}

// NewExportService constructs ExportService.
func NewExportService(repo exportRepository, timetables entryTimetableRepository, entries poolEntryRepository, queue exportQueue, storage artifactStorage, signer downloadSigner, logger *zap.Logger, onlineMinutes int) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onlineMinutes <= 0 {
		onlineMinutes = models.DefaultOnlineMinutes
	}
	return &ExportService{
		repo:          repo,
		timetables:    timetables,
		entries:       entries,
		queue:         queue,
		storage:       storage,
		signer:        signer,
		csv:           export.NewCSVExporter(),
		pdf:           export.NewPDFExporter(),
		logger:        logger,
		onlineMinutes: onlineMinutes,
	}
}

// Enqueue registers a pending export job and pushes it onto the queue.
func (s *ExportService) Enqueue(ctx context.Context, timetableID string, format models.ExportFormat, requestedBy *string) (*models.ExportJob, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if _, err := s.timetables.FindByID(ctx, timetableID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	job := &models.ExportJob{
		TimetableID: timetableID,
		Format:      format,
		Status:      models.ExportJobStatusPending,
		RequestedBy: requestedBy,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: ExportJobType, Payload: job.ID}); err != nil {
		message := err.Error()
		if updateErr := s.repo.UpdateResult(ctx, job.ID, models.ExportJobStatusFailed, nil, &message); updateErr != nil {
			s.logger.Error("failed to mark unqueued export job", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return job, nil
}

// Get returns an export job's current state.
func (s *ExportService) Get(ctx context.Context, id string) (*models.ExportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return job, nil
}

// HandleJob is the queue handler: it renders the artifact, stores it and
// records the outcome on the job row.
func (s *ExportService) HandleJob(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok || jobID == "" {
		s.logger.Error("export job with malformed payload", zap.String("queue_job_id", job.ID))
		return nil
	}

	record, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", jobID, err)
	}

	data, filename, renderErr := s.render(ctx, record)
	if renderErr != nil {
		message := renderErr.Error()
		if err := s.repo.UpdateResult(ctx, jobID, models.ExportJobStatusFailed, nil, &message); err != nil {
			return fmt.Errorf("mark export job failed: %w", err)
		}
		s.logger.Error("export render failed", zap.String("job_id", jobID), zap.Error(renderErr))
		return nil
	}

	path, err := s.storage.Save(filename, data)
	if err != nil {
		message := err.Error()
		if updateErr := s.repo.UpdateResult(ctx, jobID, models.ExportJobStatusFailed, nil, &message); updateErr != nil {
			return fmt.Errorf("mark export job failed: %w", updateErr)
		}
		return nil
	}

	if err := s.repo.UpdateResult(ctx, jobID, models.ExportJobStatusCompleted, &path, nil); err != nil {
		return fmt.Errorf("mark export job completed: %w", err)
	}
	s.logger.Info("export rendered", zap.String("job_id", jobID), zap.String("file", path))
	return nil
}

// DownloadToken issues a signed token for a completed job's artifact.
func (s *ExportService) DownloadToken(ctx context.Context, jobID string) (string, time.Time, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return "", time.Time{}, err
	}
	if job.Status != models.ExportJobStatusCompleted || job.FilePath == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, "export job is not completed")
	}
	token, expires, err := s.signer.Generate(job.ID, *job.FilePath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download URL")
	}
	return token, expires, nil
}

// ResolveDownload validates a signed token and opens the stored artifact.
// The caller owns the returned file handle.
func (s *ExportService) ResolveDownload(token string) (string, *os.File, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return "", nil, appErrors.Clone(appErrors.ErrNotFound, "export artifact not found")
	}
	return jobID, file, nil
}

func (s *ExportService) render(ctx context.Context, job *models.ExportJob) ([]byte, string, error) {
	timetable, err := s.timetables.FindByID(ctx, job.TimetableID)
	if err != nil {
		return nil, "", fmt.Errorf("load timetable: %w", err)
	}
	entries, err := s.entries.ListByTimetable(ctx, job.TimetableID)
	if err != nil {
		return nil, "", fmt.Errorf("list entries: %w", err)
	}

	dataset := s.buildDataset(entries)
	filename := fmt.Sprintf("%s/%s.%s", timetable.ID, job.ID, job.Format)

	switch job.Format {
	case models.ExportFormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", err
		}
		return data, filename, nil
	case models.ExportFormatPDF:
		data, err := s.pdf.Render(dataset, timetable.Name)
		if err != nil {
			return nil, "", err
		}
		return data, filename, nil
	default:
		return nil, "", fmt.Errorf("unsupported export format %q", job.Format)
	}
}

// buildDataset flattens entries into printable rows. Online-format sessions
// are shortened to the online duration in the printed time range only; the
// stored placement keeps the standard slot length.
func (s *ExportService) buildDataset(entries []models.ScheduleEntry) export.Dataset {
	headers := []string{"Day", "Time", "Subject", "Type", "Lecturer", "Room", "Groups", "Dates"}
	rows := make([]map[string]string, 0, len(entries))
	for i := range entries {
		entry := &entries[i]
		end := entry.EndTime
		if entry.Format != nil && *entry.Format == models.EntryFormatOnline {
			if online, err := models.AddMinutes(entry.StartTime, s.onlineMinutes); err == nil {
				end = online
			}
		}
		dates := "weekly"
		if !entry.Weekly() {
			dates = strings.Join(entry.Dates, ", ")
		}
		rows = append(rows, map[string]string{
			"Day":      entry.DayOfWeek,
			"Time":     fmt.Sprintf("%s - %s", entry.StartTime, end),
			"Subject":  entry.SubjectName,
			"Type":     entry.SessionType,
			"Lecturer": entry.LecturerName,
			"Room":     entry.RoomName,
			"Groups":   strings.Join(entry.GroupNames, ", "),
			"Dates":    dates,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
