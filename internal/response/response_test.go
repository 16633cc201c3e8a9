package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(handler gin.HandlerFunc, withRequestID bool) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := gin.New()
	if withRequestID {
		r.Use(RequestIDMiddleware())
	}
	r.GET("/", handler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp
}

func TestSuccessEnvelope(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Success(c, http.StatusOK, gin.H{"hello": "dunia"})
	}, true)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode(t, w)
	if resp.Error != nil {
		t.Errorf("error should be omitted, got %+v", resp.Error)
	}
	if resp.Metadata.RequestID == "" {
		t.Error("metadata.request_id missing")
	}
	if resp.Metadata.Timestamp == "" {
		t.Error("metadata.timestamp missing")
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok || data["hello"] != "dunia" {
		t.Errorf("data = %v", resp.Data)
	}
}

func TestFailEnvelope(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Fail(c, http.StatusNotFound, ErrMaterialNotFound)
	}, true)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode(t, w)
	if resp.Error == nil {
		t.Fatal("error body missing")
	}
	if resp.Error.Code != ErrMaterialNotFound {
		t.Errorf("code = %s", resp.Error.Code)
	}
	if resp.Error.Message != GetMessage(ErrMaterialNotFound) {
		t.Errorf("message = %q", resp.Error.Message)
	}
	if resp.Data != nil {
		t.Errorf("data should be null, got %v", resp.Data)
	}
}

func TestFailWithDataCarriesPayload(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		FailWithData(c, http.StatusConflict, ErrAlreadySubmitted, gin.H{
			"submission": gin.H{"id": "sub-1"},
		})
	}, true)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode(t, w)
	if resp.Error == nil || resp.Error.Code != ErrAlreadySubmitted {
		t.Fatalf("error = %+v", resp.Error)
	}
	data, _ := resp.Data.(map[string]interface{})
	sub, _ := data["submission"].(map[string]interface{})
	if sub["id"] != "sub-1" {
		t.Errorf("submission id missing from conflict payload: %v", resp.Data)
	}
}

func TestFailWithFields(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		FailWithFields(c, http.StatusBadRequest, ErrValidation, map[string]string{
			"answers": "wajib diisi",
		})
	}, true)

	resp := decode(t, w)
	if resp.Error == nil || resp.Error.Fields["answers"] != "wajib diisi" {
		t.Errorf("fields = %+v", resp.Error)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	w := httptest.NewRecorder()
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		Success(c, http.StatusOK, gin.H{})
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-abc" {
		t.Errorf("response header = %q", got)
	}
	resp := decode(t, w)
	if resp.Metadata.RequestID != "req-abc" {
		t.Errorf("metadata request id = %q", resp.Metadata.RequestID)
	}
}

func TestGetMessageUnknownCode(t *testing.T) {
	if msg := GetMessage(ErrCode("NO_SUCH_CODE")); msg == "" {
		t.Error("unknown codes must still produce a message")
	}
}
