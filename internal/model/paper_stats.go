package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionStat is the per-question incorrect-answer tally. Every question
// of the paper appears, even with zero incorrect answers.
type QuestionStat struct {
	QuestionID     uuid.UUID `json:"question_id"`
	TotalIncorrect int       `json:"total_incorrect"`
}

// InstituteStat holds descriptive statistics for one institute's
// submissions plus references to its top-scoring submissions.
type InstituteStat struct {
	InstituteID   uuid.UUID   `json:"institute_id"`
	TotalStudents int         `json:"total_students"`
	AverageMarks  float64     `json:"average_marks"`
	MaxMarks      int         `json:"max_marks"`
	MinMarks      int         `json:"min_marks"`
	TopStudents   []uuid.UUID `json:"top_students"`
}

// PaperStats is the single stats document per paper. Regeneration fully
// replaces both arrays so the document is always internally consistent
// with one aggregation pass.
type PaperStats struct {
	PaperID         uuid.UUID       `json:"paper_id"`
	QuestionResults []QuestionStat  `json:"question_results"`
	InstituteStats  []InstituteStat `json:"institute_stats"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
