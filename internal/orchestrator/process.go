package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/marginalia/internal/layout"
	"github.com/local/marginalia/internal/metrics"
	"github.com/local/marginalia/internal/models"
)

const (
	progressExtracted = 30
	progressAnalyzed  = 50
	progressPagesSpan = 40
)

// Submit creates the job for an accepted upload and processes it in-line.
// The returned job reflects the final stored state. A non-nil job with a
// non-nil error means processing failed and the failure was recorded.
func (o *Orchestrator) Submit(ctx context.Context, up *Upload) (*models.ProcessingJob, error) {
	job, err := o.deps.DB.CreateJob(ctx, up.Filename, up.Stored.Path, up.PageCount)
	if err != nil {
		return nil, err
	}
	log.Info().Uint("job_id", job.ID).Str("file", up.Filename).Int("pages", up.PageCount).Msg("job created")

	perr := o.Process(ctx, job)

	final, err := o.deps.DB.GetJob(context.WithoutCancel(ctx), job.ID)
	if err != nil {
		return job, err
	}
	return final, perr
}

// Process runs extraction, analysis and persistence for a pending job.
// Any failure after the job starts is recorded on the job and returned.
func (o *Orchestrator) Process(ctx context.Context, job *models.ProcessingJob) error {
	start := time.Now()
	if err := o.deps.DB.StartProcessing(ctx, job.ID); err != nil {
		return fmt.Errorf("start processing: %w", err)
	}

	if err := o.run(ctx, job); err != nil {
		log.Error().Err(err).Uint("job_id", job.ID).Msg("job failed")
		if ferr := o.deps.DB.Fail(context.WithoutCancel(ctx), job.ID, err.Error()); ferr != nil {
			log.Error().Err(ferr).Uint("job_id", job.ID).Msg("failed to record job failure")
		}
		metrics.ObserveJob("failed", time.Since(start))
		return err
	}

	if err := o.deps.DB.Complete(ctx, job.ID); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	metrics.ObserveJob("completed", time.Since(start))
	log.Info().Uint("job_id", job.ID).Dur("took", time.Since(start)).Msg("job completed")
	return nil
}

func (o *Orchestrator) run(ctx context.Context, job *models.ProcessingJob) error {
	doc, err := o.deps.Extractor.Extract(ctx, job.FilePath)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if len(doc.Pages) != doc.PageCount {
		return fmt.Errorf("extracted %d pages but document has %d", len(doc.Pages), doc.PageCount)
	}
	if job.PageCount > 0 && doc.PageCount != job.PageCount {
		return fmt.Errorf("extracted %d pages but upload had %d", doc.PageCount, job.PageCount)
	}
	o.progress(ctx, job.ID, progressExtracted)

	texts := make([]string, len(doc.Pages))
	for i, p := range doc.Pages {
		texts[i] = p.Text
	}
	analysis := o.deps.Analyzer.AnalyzeDocument(ctx, strings.Join(texts, " "))
	o.progress(ctx, job.ID, progressAnalyzed)

	total := len(doc.Pages)
	pages := make([]models.BookPage, 0, total)
	for i, p := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Debug().Uint("job_id", job.ID).Int("page", p.Number).Int("of", total).Msg("processing page")

		pa := o.deps.Analyzer.AnalyzePage(ctx, p.Text, analysis.Genre)
		page := models.BookPage{
			PageNumber:     i + 1,
			TextContent:    p.Text,
			TextBlocks:     p.Blocks,
			Mood:           pa.Mood,
			DominantThemes: pa.Themes,
		}
		if strings.TrimSpace(p.Text) != "" {
			for j, img := range o.deps.Analyzer.GenerateMarginalia(ctx, p.Text, analysis.Genre, pa.Mood, pa.Themes) {
				pos := layout.Place(p.Blocks, j)
				page.Marginalia = append(page.Marginalia, models.Marginalia{
					ImageURL:   img.ImageURL,
					PositionX:  pos.X,
					PositionY:  pos.Y,
					Width:      img.Width,
					Height:     img.Height,
					PromptUsed: img.Prompt,
					Theme:      img.Theme,
					Side:       pos.Side,
				})
				metrics.AddMarginalia(img.Source, 1)
			}
		}
		pages = append(pages, page)
		metrics.IncPages()
		o.progress(ctx, job.ID, pageProgress(i, total))
	}

	title := analysis.Title
	if title == "" {
		title = job.Filename
	}
	book := &models.BookAnalysis{
		Genre:       analysis.Genre,
		Themes:      analysis.Themes,
		OverallMood: analysis.Mood,
		TotalPages:  total,
		Title:       title,
	}
	if err := o.deps.DB.SaveBook(ctx, job.ID, book, pages); err != nil {
		return fmt.Errorf("save book: %w", err)
	}
	return nil
}

// pageProgress is the progress after page i (0-based) of total.
func pageProgress(i, total int) int {
	return progressAnalyzed + (i+1)*progressPagesSpan/total
}

func (o *Orchestrator) progress(ctx context.Context, id uint, p int) {
	if err := o.deps.DB.UpdateProgress(ctx, id, p); err != nil {
		log.Warn().Err(err).Uint("job_id", id).Int("progress", p).Msg("progress update failed")
	}
}
