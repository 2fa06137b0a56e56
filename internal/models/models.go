package models

import "time"

// ProcessingJob tracks one upload from creation to a terminal status.
type ProcessingJob struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	Filename     string     `gorm:"size:255;not null" json:"filename"`
	FilePath     string     `gorm:"size:500;not null" json:"file_path"`
	Status       JobStatus  `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Progress     int        `gorm:"not null;default:0" json:"progress"` // 0-100
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	PageCount    int        `json:"page_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	Analysis *BookAnalysis `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"analysis,omitempty"`
	Pages    []BookPage    `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"pages,omitempty"`
}

// BookAnalysis holds document-level labels. One per job.
type BookAnalysis struct {
	ID          uint     `gorm:"primarykey" json:"id"`
	JobID       uint     `gorm:"not null;uniqueIndex" json:"job_id"`
	Genre       string   `gorm:"size:100" json:"genre"`
	Themes      []string `gorm:"type:text;serializer:json" json:"themes"`
	OverallMood string   `gorm:"size:50" json:"overall_mood"`
	TotalPages  int      `json:"total_pages"`
	Title       string   `gorm:"size:500" json:"title"`
}

// BookPage is the extracted content of one PDF page.
type BookPage struct {
	ID             uint        `gorm:"primarykey" json:"id"`
	JobID          uint        `gorm:"not null;index:idx_job_page,priority:1" json:"job_id"`
	PageNumber     int         `gorm:"not null;index:idx_job_page,priority:2" json:"page_number"`
	TextContent    string      `gorm:"type:text" json:"text_content"`
	TextBlocks     []TextBlock `gorm:"type:text;serializer:json" json:"text_blocks"`
	Mood           string      `gorm:"size:50" json:"mood"`
	DominantThemes []string    `gorm:"type:text;serializer:json" json:"themes"`

	Marginalia []Marginalia `gorm:"foreignKey:PageID;constraint:OnDelete:CASCADE" json:"marginalia"`
}

// Marginalia is a decorative image placed in a page margin.
// Positions are percentages of the page; width and height are pixels.
type Marginalia struct {
	ID         uint    `gorm:"primarykey" json:"id"`
	PageID     uint    `gorm:"not null;index" json:"page_id"`
	ImageURL   string  `gorm:"type:text" json:"image_url"`
	PositionX  float64 `json:"position_x"`
	PositionY  float64 `json:"position_y"`
	Width      float64 `gorm:"default:80" json:"width"`
	Height     float64 `gorm:"default:80" json:"height"`
	PromptUsed string  `gorm:"type:text" json:"prompt_used,omitempty"`
	Theme      string  `gorm:"size:100" json:"theme"`
	Side       string  `gorm:"size:10;default:'right'" json:"side"`
}

// TextBlock is a run of text with its page coordinates.
type TextBlock struct {
	Text             string     `json:"text"`
	BBox             [4]float64 `json:"bbox"` // x0, y0, x1, y1 in points
	RelativePosition Rect       `json:"relative_position"`
}

// Rect is expressed in percent of the page.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
