package session

import (
	"context"
	"fmt"
)

// Progress is the draft/submission status for one (student, material) pair.
type Progress struct {
	AlreadySubmitted bool
	SubmissionID     string
	Draft            *Draft
}

// Draft is a snapshot of in-progress answers. StartTime is epoch millis.
type Draft struct {
	Answers   map[string]string
	StartTime int64
}

// DraftSave is the payload for a debounced draft save or beacon flush.
type DraftSave struct {
	StudentID  int
	MaterialID string
	QuizID     string
	Answers    map[string]string
	StartTime  int64
}

// Submission is the payload for the terminal submit.
type Submission struct {
	StudentID  int
	MaterialID string
	QuizID     string
	Answers    map[string]string
}

// SubmitResult carries the identifier of the accepted submission.
type SubmitResult struct {
	SubmissionID string
}

// ConflictError is returned by SubmitQuiz when the server already holds a
// submission for this (student, material). It is a terminal
// success-equivalent, not a retryable failure.
type ConflictError struct {
	SubmissionID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("quiz already submitted (submission %s)", e.SubmissionID)
}

// API is the remote progress endpoint surface the controller drives.
// Implementations translate these calls into whatever transport the host
// application uses; HTTPAPI speaks the JSON endpoints directly.
type API interface {
	GetProgress(ctx context.Context, studentID int, materialID string) (*Progress, error)
	SaveDraft(ctx context.Context, save *DraftSave) error
	DeleteDraft(ctx context.Context, studentID int, materialID string) error
	SubmitQuiz(ctx context.Context, sub *Submission) (*SubmitResult, error)
}
