package model

import (
	"time"

	"github.com/google/uuid"
)

// Paper represents an exam definition with its ordered questions and
// per-institute availability windows.
type Paper struct {
	ID        uuid.UUID      `json:"id"`
	Title     string         `json:"title"`
	Subject   string         `json:"subject"`
	Year      string         `json:"year"`
	Category  string         `json:"category"`
	CreatedAt time.Time      `json:"created_at"`
	Questions []Question     `json:"questions"`
	Windows   []Availability `json:"availability"`
}

// Question belongs to exactly one paper. CorrectAnswer is an option
// index in 0..4.
type Question struct {
	ID            uuid.UUID `json:"id"`
	PaperID       uuid.UUID `json:"paper_id"`
	Position      int       `json:"position"`
	CorrectAnswer int       `json:"correct_answer"`
	Category      string    `json:"category"`
	Subcategory   *string   `json:"subcategory,omitempty"`
}

// Availability is one (institute, startTime, endTime) window governing
// when the paper is attemptable for that institute's students.
type Availability struct {
	ID          uuid.UUID `json:"id"`
	PaperID     uuid.UUID `json:"paper_id"`
	InstituteID uuid.UUID `json:"institute_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// LatestEndTime returns the latest window end across all institutes,
// or the zero time if the paper has no windows.
func (p *Paper) LatestEndTime() time.Time {
	var latest time.Time
	for _, w := range p.Windows {
		if w.EndTime.After(latest) {
			latest = w.EndTime
		}
	}
	return latest
}
