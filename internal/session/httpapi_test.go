package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPAPIGetProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/v1/student/materials/mat-1/quiz-progress" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"already_submitted": false,
				"draft": map[string]interface{}{
					"answers":    map[string]string{"q1": "a"},
					"start_time": 1740000000000,
				},
			},
		})
	}))
	defer srv.Close()

	api := NewHTTPAPI(srv.URL, "tok")
	progress, err := api.GetProgress(context.Background(), 7, "mat-1")
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if progress.AlreadySubmitted {
		t.Error("already_submitted should be false")
	}
	if progress.Draft == nil || progress.Draft.Answers["q1"] != "a" {
		t.Errorf("draft = %+v", progress.Draft)
	}
	if progress.Draft.StartTime != 1740000000000 {
		t.Errorf("start_time = %d", progress.Draft.StartTime)
	}
}

func TestHTTPAPISaveDraftBody(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{}})
	}))
	defer srv.Close()

	api := NewHTTPAPI(srv.URL, "tok")
	err := api.SaveDraft(context.Background(), &DraftSave{
		StudentID:  7,
		MaterialID: "mat-1",
		QuizID:     "quiz-1",
		Answers:    map[string]string{"q1": "a"},
		StartTime:  1740000000000,
	})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	if body["student_id"].(float64) != 7 {
		t.Errorf("student_id = %v", body["student_id"])
	}
	if body["material_id"] != "mat-1" || body["quiz_id"] != "quiz-1" {
		t.Errorf("identifiers = %v / %v", body["material_id"], body["quiz_id"])
	}
	if body["start_time"].(float64) != 1740000000000 {
		t.Errorf("start_time = %v", body["start_time"])
	}
}

func TestHTTPAPISubmitConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"submission": map[string]string{"id": "sub-99"},
			},
			"error": map[string]string{
				"code":    "ALREADY_SUBMITTED",
				"message": "Kuis sudah pernah dikumpulkan.",
			},
		})
	}))
	defer srv.Close()

	api := NewHTTPAPI(srv.URL, "tok")
	_, err := api.SubmitQuiz(context.Background(), &Submission{
		StudentID:  7,
		MaterialID: "mat-1",
		QuizID:     "quiz-1",
		Answers:    map[string]string{"q1": "a"},
	})

	var conflict *ConflictError
	if err == nil || !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if conflict.SubmissionID != "sub-99" {
		t.Errorf("conflict submission id = %s, want sub-99", conflict.SubmissionID)
	}
}

func TestHTTPAPISubmitSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/student/materials/mat-1/submit-quiz" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"submission": map[string]string{"id": "sub-5"},
			},
		})
	}))
	defer srv.Close()

	api := NewHTTPAPI(srv.URL, "tok")
	result, err := api.SubmitQuiz(context.Background(), &Submission{
		StudentID:  7,
		MaterialID: "mat-1",
		QuizID:     "quiz-1",
		Answers:    map[string]string{},
	})
	if err != nil {
		t.Fatalf("SubmitQuiz: %v", err)
	}
	if result.SubmissionID != "sub-5" {
		t.Errorf("submission id = %s, want sub-5", result.SubmissionID)
	}
}
