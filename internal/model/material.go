package model

import (
	"time"

	"github.com/google/uuid"
)

// MaterialType enumerates the kinds of assignable units within a class.
type MaterialType string

const (
	MaterialTypeQuiz       MaterialType = "quiz"
	MaterialTypeAssignment MaterialType = "assignment"
)

// MaterialStatus enumerates the possible states of a material.
type MaterialStatus string

const (
	MaterialStatusDraft     MaterialStatus = "DRAFT"
	MaterialStatusPublished MaterialStatus = "PUBLISHED"
	MaterialStatusClosed    MaterialStatus = "CLOSED"
)

// Material represents an assignable unit (quiz or assignment) within a class.
// TimeLimitMinutes of zero means the material is untimed.
type Material struct {
	ID               uuid.UUID      `json:"id"`
	ClassID          int            `json:"class_id"`
	TeacherID        int            `json:"teacher_id"`
	Title            string         `json:"title"`
	Type             MaterialType   `json:"type"`
	QuizID           *uuid.UUID     `json:"quiz_id,omitempty"`
	TimeLimitMinutes int            `json:"time_limit"`
	DueDate          *time.Time     `json:"due_date,omitempty"`
	Status           MaterialStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// CreateMaterialRequest is the payload for creating a new material.
type CreateMaterialRequest struct {
	ClassID          int          `json:"class_id" binding:"required"`
	Title            string       `json:"title" binding:"required,min=3,max=255"`
	Type             MaterialType `json:"type" binding:"required,oneof=quiz assignment"`
	QuizID           *uuid.UUID   `json:"quiz_id" binding:"omitempty"`
	TimeLimitMinutes int          `json:"time_limit" binding:"omitempty,min=0,max=480"`
	DueDate          *time.Time   `json:"due_date" binding:"omitempty"`
}

// UpdateMaterialRequest is the payload for updating an existing material.
type UpdateMaterialRequest struct {
	Title            string     `json:"title" binding:"omitempty,min=3,max=255"`
	QuizID           *uuid.UUID `json:"quiz_id" binding:"omitempty"`
	TimeLimitMinutes *int       `json:"time_limit" binding:"omitempty,min=0,max=480"`
	DueDate          *time.Time `json:"due_date" binding:"omitempty"`
}
