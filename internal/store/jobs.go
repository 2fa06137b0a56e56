package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/local/marginalia/internal/models"
)

// CreateJob inserts a pending job for a stored upload.
func (d *DB) CreateJob(ctx context.Context, filename, filePath string, pageCount int) (*models.ProcessingJob, error) {
	job := &models.ProcessingJob{
		Filename:  filename,
		FilePath:  filePath,
		Status:    models.StatusPending,
		PageCount: pageCount,
	}
	if err := d.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	d.mirrorJob(ctx, job)
	return job, nil
}

// GetJob loads a job by id.
func (d *DB) GetJob(ctx context.Context, id uint) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	err := d.db.WithContext(ctx).First(&job, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return &job, nil
}

// StartProcessing moves a pending job to processing.
func (d *DB) StartProcessing(ctx context.Context, id uint) error {
	return d.transition(ctx, id, models.StatusPending, models.StatusProcessing, map[string]any{"progress": 10})
}

// Complete moves a processing job to completed.
func (d *DB) Complete(ctx context.Context, id uint) error {
	now := time.Now().UTC()
	return d.transition(ctx, id, models.StatusProcessing, models.StatusCompleted, map[string]any{
		"progress":     100,
		"completed_at": &now,
	})
}

// Fail moves a processing job to failed and records the message.
func (d *DB) Fail(ctx context.Context, id uint, message string) error {
	return d.transition(ctx, id, models.StatusProcessing, models.StatusFailed, map[string]any{"error_message": message})
}

// UpdateProgress sets progress on a job that is still processing.
func (d *DB) UpdateProgress(ctx context.Context, id uint, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	res := d.db.WithContext(ctx).Model(&models.ProcessingJob{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Update("progress", progress)
	if res.Error != nil {
		return fmt.Errorf("update progress %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return d.missingOr(ctx, id, ErrInvalidTransition)
	}
	d.mirrorByID(ctx, id)
	return nil
}

// FailStale marks jobs that have been processing since before olderThan ago
// as failed. Processing is bound to a request, so such jobs were interrupted
// by a restart and can never finish.
func (d *DB) FailStale(ctx context.Context, olderThan time.Duration, message string) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	var ids []uint
	if err := d.db.WithContext(ctx).Model(&models.ProcessingJob{}).
		Where("status = ? AND updated_at < ?", models.StatusProcessing, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("find stale jobs: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := d.db.WithContext(ctx).Model(&models.ProcessingJob{}).
		Where("id IN ? AND status = ?", ids, models.StatusProcessing).
		Updates(map[string]any{"status": models.StatusFailed, "error_message": message})
	if res.Error != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", res.Error)
	}
	for _, id := range ids {
		d.mirrorByID(ctx, id)
	}
	if res.RowsAffected > 0 {
		log.Warn().Int64("jobs", res.RowsAffected).Msg("marked interrupted jobs as failed")
	}
	return res.RowsAffected, nil
}

// Status returns the polled view of a job, preferring the mirror.
func (d *DB) Status(ctx context.Context, id uint) (Snapshot, error) {
	if d.mirror != nil {
		st, ok, err := d.mirror.Get(ctx, id)
		if err != nil {
			log.Warn().Err(err).Uint("job_id", id).Msg("status mirror read failed")
		} else if ok {
			return st, nil
		}
	}
	job, err := d.GetJob(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotOf(job), nil
}

func (d *DB) transition(ctx context.Context, id uint, from, to models.JobStatus, updates map[string]any) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	updates["status"] = to
	res := d.db.WithContext(ctx).Model(&models.ProcessingJob{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("job %d %s -> %s: %w", id, from, to, res.Error)
	}
	if res.RowsAffected == 0 {
		return d.missingOr(ctx, id, fmt.Errorf("%w: job %d is not %s", ErrInvalidTransition, id, from))
	}
	log.Debug().Uint("job_id", id).Str("from", from.String()).Str("to", to.String()).Msg("job transition")
	d.mirrorByID(ctx, id)
	return nil
}

func (d *DB) missingOr(ctx context.Context, id uint, err error) error {
	var n int64
	if cerr := d.db.WithContext(ctx).Model(&models.ProcessingJob{}).Where("id = ?", id).Count(&n).Error; cerr != nil {
		return cerr
	}
	if n == 0 {
		return ErrNotFound
	}
	return err
}

func (d *DB) mirrorByID(ctx context.Context, id uint) {
	if d.mirror == nil {
		return
	}
	job, err := d.GetJob(ctx, id)
	if err != nil {
		d.dropMirror(ctx, id)
		return
	}
	d.mirrorJob(ctx, job)
}

// mirrorJob copies job into the mirror. A failed write drops the key so
// reads fall back to the database instead of an older snapshot.
func (d *DB) mirrorJob(ctx context.Context, job *models.ProcessingJob) {
	if d.mirror == nil {
		return
	}
	if err := d.mirror.Set(ctx, job.ID, snapshotOf(job)); err != nil {
		log.Warn().Err(err).Uint("job_id", job.ID).Msg("status mirror write failed")
		d.dropMirror(ctx, job.ID)
	}
}

func (d *DB) dropMirror(ctx context.Context, id uint) {
	if err := d.mirror.Delete(ctx, id); err != nil {
		log.Error().Err(err).Uint("job_id", id).Msg("status mirror delete failed, polls may be stale until the key expires")
	}
}

func snapshotOf(job *models.ProcessingJob) Snapshot {
	return Snapshot{
		Status:       job.Status,
		Progress:     job.Progress,
		ErrorMessage: job.ErrorMessage,
		UpdatedAt:    job.UpdatedAt,
	}
}
