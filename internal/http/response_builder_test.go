package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestJSONResponseBuilder_Success(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Count(2).
		Data([]string{"a", "b"}).
		Message("done").
		Header("X-Test", "1").
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("X-Test") != "1" {
		t.Error("custom header not set")
	}

	body := decodeEnvelope(t, w)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	if body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}
	if body["message"] != "done" {
		t.Errorf("message = %v", body["message"])
	}
	if _, ok := body["error"]; ok {
		t.Error("error field must be absent on success")
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		builder *JSONResponseBuilder
		status  int
		message string
	}{
		{"bad request", BadRequestError("Please add a title"), http.StatusBadRequest, "Please add a title"},
		{"unauthorized", UnauthorizedError("Not authorized, no token"), http.StatusUnauthorized, "Not authorized, no token"},
		{"not found", NotFoundError("Expense not found"), http.StatusNotFound, "Expense not found"},
		{"too many", TooManyRequestsError("slow down"), http.StatusTooManyRequests, "slow down"},
		{"internal", InternalServerError(), http.StatusInternalServerError, "Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.status {
				t.Errorf("Status code = %d, want %d", w.Code, tt.status)
			}
			body := decodeEnvelope(t, w)
			if body["success"] != false {
				t.Errorf("success = %v, want false", body["success"])
			}
			if body["error"] != tt.message {
				t.Errorf("error = %v, want %q", body["error"], tt.message)
			}
		})
	}
}
