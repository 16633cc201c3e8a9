package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates supported question kinds.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
)

// Quiz represents a reusable set of questions authored by a teacher.
type Quiz struct {
	ID        uuid.UUID `json:"id"`
	TeacherID int       `json:"teacher_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuizQuestion represents a single question, including the answer key.
type QuizQuestion struct {
	ID            uuid.UUID       `json:"id"`
	QuizID        uuid.UUID       `json:"quiz_id"`
	QuestionText  string          `json:"question_text"`
	QuestionType  QuestionType    `json:"question_type"`
	Options       json.RawMessage `json:"options,omitempty"`
	CorrectAnswer string          `json:"correct_answer"`
	Points        int             `json:"points"`
	OrderNum      int             `json:"order_num"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	QuestionType QuestionType    `json:"question_type"`
	Options      json.RawMessage `json:"options,omitempty"`
	Points       int             `json:"points"`
	OrderNum     int             `json:"order_num"`
}

// QuizPayload is the Redis-cached quiz sent to students (no correct answers).
type QuizPayload struct {
	QuizID        uuid.UUID            `json:"quiz_id"`
	Title         string               `json:"title"`
	QuizQuestions []QuestionForStudent `json:"quiz_questions"`
}

// CreateQuizRequest is the payload for creating a new quiz.
type CreateQuizRequest struct {
	Title string `json:"title" binding:"required,min=3,max=255"`
}

// QuestionInput is a single question in an authoring request.
type QuestionInput struct {
	QuestionText  string          `json:"question_text" binding:"required,min=1"`
	QuestionType  QuestionType    `json:"question_type" binding:"required,oneof=multiple_choice short_answer"`
	Options       json.RawMessage `json:"options" binding:"omitempty"`
	CorrectAnswer string          `json:"correct_answer" binding:"required"`
	Points        int             `json:"points" binding:"required,min=1,max=100"`
}

// ReplaceQuestionsRequest replaces a quiz's full question list atomically.
type ReplaceQuestionsRequest struct {
	Questions []QuestionInput `json:"questions" binding:"required,min=1,dive"`
}
