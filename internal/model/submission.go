package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus enumerates submission states.
type SubmissionStatus string

const (
	SubmissionStatusInProgress SubmissionStatus = "in-progress"
	SubmissionStatusDone       SubmissionStatus = "done"
)

// QuestionResult is one graded answer within a submission. Reviewed is
// set to true for correctly-answered questions at grading time; incorrect
// ones stay false until the student reviews them.
type QuestionResult struct {
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedAnswer int       `json:"selected_answer"`
	IsCorrect      bool      `json:"is_correct"`
	Reviewed       bool      `json:"reviewed"`
}

// Submission is the graded artifact produced by the grading worker.
// The two rank fields start null and are filled in by the ranking engine;
// they are the only fields mutated after creation.
type Submission struct {
	ID            uuid.UUID        `json:"id"`
	StudentID     uuid.UUID        `json:"student_id"`
	PaperID       uuid.UUID        `json:"paper_id"`
	InstituteID   uuid.UUID        `json:"institute_id"`
	Answers       []QuestionResult `json:"answers"`
	Status        SubmissionStatus `json:"status"`
	SubmittedAt   time.Time        `json:"submitted_at"`
	Score         *int             `json:"score,omitempty"`
	GlobalRank    *int             `json:"global_rank,omitempty"`
	InstituteRank *int             `json:"institute_rank,omitempty"`
}

// SubmissionAnswer is one selected option index in an ingress payload.
type SubmissionAnswer struct {
	Answer int `json:"answer" binding:"answer_option"`
}

// CreateSubmissionRequest is the payload for submitting answers. Grading
// is always asynchronous; the response carries a job id for polling.
type CreateSubmissionRequest struct {
	StudentID   uuid.UUID          `json:"student_id" binding:"required"`
	PaperID     uuid.UUID          `json:"paper_id" binding:"required"`
	InstituteID uuid.UUID          `json:"institute_id" binding:"required"`
	Answers     []SubmissionAnswer `json:"answers" binding:"required,min=1,dive"`
}

// EffectiveScore returns the stored score when present, otherwise the
// count of correct answers recomputed from the answer list. Submissions
// written without a score still rank correctly.
func (s *Submission) EffectiveScore() int {
	if s.Score != nil {
		return *s.Score
	}
	n := 0
	for _, a := range s.Answers {
		if a.IsCorrect {
			n++
		}
	}
	return n
}
