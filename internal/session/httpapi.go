package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPAPI implements API against the student quiz-progress JSON endpoints.
// Paths are built relative to BaseURL, e.g.
// {base}/api/v1/student/materials/{materialID}/quiz-progress.
type HTTPAPI struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewHTTPAPI creates an HTTPAPI using http.DefaultClient unless a client
// is provided later.
func NewHTTPAPI(baseURL, token string) *HTTPAPI {
	return &HTTPAPI{
		BaseURL: baseURL,
		Token:   token,
		Client:  http.DefaultClient,
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type progressPayload struct {
	AlreadySubmitted bool   `json:"already_submitted"`
	SubmissionID     string `json:"submission_id"`
	Draft            *struct {
		Answers   map[string]string `json:"answers"`
		StartTime int64             `json:"start_time"`
	} `json:"draft"`
}

type draftSavePayload struct {
	StudentID  int               `json:"student_id"`
	MaterialID string            `json:"material_id"`
	QuizID     string            `json:"quiz_id"`
	Answers    map[string]string `json:"answers"`
	StartTime  int64             `json:"start_time"`
}

type submitPayload struct {
	StudentID  int               `json:"student_id"`
	MaterialID string            `json:"material_id"`
	QuizID     string            `json:"quiz_id"`
	Answers    map[string]string `json:"answers"`
}

type submissionPayload struct {
	Submission struct {
		ID string `json:"id"`
	} `json:"submission"`
}

// GetProgress fetches the draft or submission status for a material.
func (a *HTTPAPI) GetProgress(ctx context.Context, studentID int, materialID string) (*Progress, error) {
	body, _, err := a.do(ctx, http.MethodGet, a.progressPath(materialID), nil)
	if err != nil {
		return nil, err
	}

	var payload progressPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}

	progress := &Progress{
		AlreadySubmitted: payload.AlreadySubmitted,
		SubmissionID:     payload.SubmissionID,
	}
	if payload.Draft != nil {
		progress.Draft = &Draft{
			Answers:   payload.Draft.Answers,
			StartTime: payload.Draft.StartTime,
		}
	}
	return progress, nil
}

// SaveDraft pushes the full answer set to the draft endpoint.
func (a *HTTPAPI) SaveDraft(ctx context.Context, save *DraftSave) error {
	payload := draftSavePayload{
		StudentID:  save.StudentID,
		MaterialID: save.MaterialID,
		QuizID:     save.QuizID,
		Answers:    save.Answers,
		StartTime:  save.StartTime,
	}
	_, _, err := a.do(ctx, http.MethodPost, a.progressPath(save.MaterialID), payload)
	return err
}

// DeleteDraft removes the remote draft. Callers treat failures here as
// non-critical.
func (a *HTTPAPI) DeleteDraft(ctx context.Context, studentID int, materialID string) error {
	_, _, err := a.do(ctx, http.MethodDelete, a.progressPath(materialID), nil)
	return err
}

// SubmitQuiz performs the terminal submission. An HTTP 409 is translated
// into a ConflictError carrying the winning submission's id.
func (a *HTTPAPI) SubmitQuiz(ctx context.Context, sub *Submission) (*SubmitResult, error) {
	payload := submitPayload{
		StudentID:  sub.StudentID,
		MaterialID: sub.MaterialID,
		QuizID:     sub.QuizID,
		Answers:    sub.Answers,
	}

	path := fmt.Sprintf("/api/v1/student/materials/%s/submit-quiz", sub.MaterialID)
	body, status, err := a.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		if status == http.StatusConflict {
			var data submissionPayload
			_ = json.Unmarshal(body, &data)
			return nil, &ConflictError{SubmissionID: data.Submission.ID}
		}
		return nil, err
	}

	var data submissionPayload
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode submission: %w", err)
	}
	return &SubmitResult{SubmissionID: data.Submission.ID}, nil
}

func (a *HTTPAPI) progressPath(materialID string) string {
	return fmt.Sprintf("/api/v1/student/materials/%s/quiz-progress", materialID)
}

// do issues one request and unwraps the response envelope. It returns the
// raw data payload, the HTTP status, and an error for non-2xx statuses.
func (a *HTTPAPI) do(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, int, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reqBody)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
		return nil, resp.StatusCode, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("request failed with status %d", resp.StatusCode)
		if env.Error != nil {
			msg = fmt.Sprintf("%s (%s)", env.Error.Message, env.Error.Code)
		}
		return env.Data, resp.StatusCode, fmt.Errorf("%s", msg)
	}

	return env.Data, resp.StatusCode, nil
}
