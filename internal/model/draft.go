package model

import (
	"time"

	"github.com/google/uuid"
)

// QuizDraft is the server-persisted, not-yet-submitted snapshot of a
// student's in-progress answers for one quiz material. At most one draft
// exists per (student, material); StartedAt is set on first save and
// never advanced afterwards.
type QuizDraft struct {
	ID         uuid.UUID         `json:"id"`
	StudentID  int               `json:"student_id"`
	MaterialID uuid.UUID         `json:"material_id"`
	QuizID     uuid.UUID         `json:"quiz_id"`
	Answers    map[string]string `json:"answers"`
	StartedAt  time.Time         `json:"started_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// SaveDraftRequest is the payload for the debounced draft save and the
// unload beacon flush. StartTime is epoch milliseconds, matching what the
// client caches locally.
type SaveDraftRequest struct {
	StudentID  int               `json:"student_id" binding:"required"`
	MaterialID uuid.UUID         `json:"material_id" binding:"required"`
	QuizID     uuid.UUID         `json:"quiz_id" binding:"required"`
	Answers    map[string]string `json:"answers" binding:"required"`
	StartTime  int64             `json:"start_time" binding:"omitempty,min=0"`
}

// DraftSnapshot is the draft portion of a progress status response.
type DraftSnapshot struct {
	Answers   map[string]string `json:"answers"`
	StartTime int64             `json:"start_time"` // epoch millis
}

// ProgressStatus is the response for the draft/submission status lookup.
// Exactly one of the already-submitted pair or Draft is meaningful:
// a final submission always takes priority over any draft.
type ProgressStatus struct {
	AlreadySubmitted bool           `json:"already_submitted"`
	SubmissionID     *uuid.UUID     `json:"submission_id,omitempty"`
	Draft            *DraftSnapshot `json:"draft,omitempty"`
	// TimeLimitMinutes rides along so a rejoining client can rebuild its
	// countdown without refetching the quiz payload. Nil when uncached.
	TimeLimitMinutes *int `json:"time_limit,omitempty"`
}
