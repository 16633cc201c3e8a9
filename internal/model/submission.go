package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus enumerates quiz submission states. Grading happens
// asynchronously, so a submission starts as SUBMITTED and becomes GRADED
// once the scoring worker has persisted the score.
type SubmissionStatus string

const (
	SubmissionStatusSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionStatusGraded    SubmissionStatus = "GRADED"
)

// QuizSubmission is a student's terminal submission for one quiz material.
// At most one submission exists per (student, material).
type QuizSubmission struct {
	ID          uuid.UUID         `json:"id"`
	StudentID   int               `json:"student_id"`
	MaterialID  uuid.UUID         `json:"material_id"`
	QuizID      uuid.UUID         `json:"quiz_id"`
	Answers     map[string]string `json:"answers"`
	Score       *float64          `json:"score,omitempty"`
	Status      SubmissionStatus  `json:"status"`
	SubmittedAt time.Time         `json:"submitted_at"`
	GradedAt    *time.Time        `json:"graded_at,omitempty"`
}

// SubmitQuizRequest is the payload for the terminal quiz submission.
type SubmitQuizRequest struct {
	StudentID  int               `json:"student_id" binding:"required"`
	MaterialID uuid.UUID         `json:"material_id" binding:"required"`
	QuizID     uuid.UUID         `json:"quiz_id" binding:"required"`
	Answers    map[string]string `json:"answers" binding:"required"`
}
