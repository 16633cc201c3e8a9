package model

import "github.com/google/uuid"

// MonitorEventType enumerates live monitor event kinds.
type MonitorEventType string

const (
	MonitorEventProgress  MonitorEventType = "progress"
	MonitorEventSubmitted MonitorEventType = "submitted"
)

// MonitorEvent is published on a material's Redis channel whenever a student
// saves a draft or submits, and forwarded to watching teachers over WebSocket.
type MonitorEvent struct {
	Type          MonitorEventType `json:"type"`
	StudentID     int              `json:"student_id"`
	AnsweredCount int              `json:"answered_count,omitempty"`
	SubmissionID  *uuid.UUID       `json:"submission_id,omitempty"`
}

// MonitorRow is one student's live progress in the initial monitor snapshot.
type MonitorRow struct {
	StudentID     int    `json:"student_id"`
	Name          string `json:"name"`
	AnsweredCount int    `json:"answered_count"`
	Submitted     bool   `json:"submitted"`
}
