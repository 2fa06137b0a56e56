package orchestrator

import (
	"context"
	"errors"

	"github.com/local/marginalia/internal/models"
)

// ErrNotCompleted is returned for book data of a job that has not completed.
var ErrNotCompleted = errors.New("job not completed")

type MarginaliaData struct {
	ImageURL  string  `json:"image_url"`
	PositionX float64 `json:"position_x"`
	PositionY float64 `json:"position_y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Theme     string  `json:"theme"`
	Side      string  `json:"side"`
}

type PageData struct {
	PageNumber  int                `json:"page_number"`
	TextContent string             `json:"text_content"`
	TextBlocks  []models.TextBlock `json:"text_blocks"`
	Mood        string             `json:"mood"`
	Themes      []string           `json:"themes"`
	Marginalia  []MarginaliaData   `json:"marginalia"`
}

// BookData is what the reader renders.
type BookData struct {
	Title       string     `json:"title"`
	Genre       string     `json:"genre"`
	Themes      []string   `json:"themes"`
	OverallMood string     `json:"overall_mood"`
	TotalPages  int        `json:"total_pages"`
	Pages       []PageData `json:"pages"`
}

// Book loads the reader view of a job. The job is returned even when it is
// not completed, together with ErrNotCompleted.
func (o *Orchestrator) Book(ctx context.Context, id uint) (*models.ProcessingJob, *BookData, error) {
	job, err := o.deps.DB.GetJob(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != models.StatusCompleted {
		return job, nil, ErrNotCompleted
	}
	analysis, pages, err := o.deps.DB.LoadBook(ctx, id)
	if err != nil {
		return job, nil, err
	}
	return job, buildBook(job, analysis, pages), nil
}

func buildBook(job *models.ProcessingJob, analysis *models.BookAnalysis, pages []models.BookPage) *BookData {
	book := &BookData{
		Title:       job.Filename,
		Genre:       "Unknown",
		Themes:      []string{},
		OverallMood: "neutral",
		TotalPages:  len(pages),
		Pages:       make([]PageData, 0, len(pages)),
	}
	if analysis != nil {
		book.Title = analysis.Title
		book.Genre = analysis.Genre
		book.Themes = orEmpty(analysis.Themes)
		book.OverallMood = analysis.OverallMood
	}

	for _, p := range pages {
		pd := PageData{
			PageNumber:  p.PageNumber,
			TextContent: p.TextContent,
			TextBlocks:  p.TextBlocks,
			Mood:        p.Mood,
			Themes:      orEmpty(p.DominantThemes),
			Marginalia:  make([]MarginaliaData, 0, len(p.Marginalia)),
		}
		if pd.TextBlocks == nil {
			pd.TextBlocks = []models.TextBlock{}
		}
		for _, m := range p.Marginalia {
			pd.Marginalia = append(pd.Marginalia, MarginaliaData{
				ImageURL:  m.ImageURL,
				PositionX: m.PositionX,
				PositionY: m.PositionY,
				Width:     m.Width,
				Height:    m.Height,
				Theme:     m.Theme,
				Side:      m.Side,
			})
		}
		book.Pages = append(book.Pages, pd)
	}
	return book
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
