package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"caller id kept", "req-42_a.b:c", true},
		{"missing", "", false},
		{"too long", strings.Repeat("a", maxRequestIDLength+1), false},
		{"log injection", "abc\nlevel=error", false},
		{"spaces", "a b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestIDMiddleware())
			r.GET("/", func(c *gin.Context) { Success(c, http.StatusOK, nil) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(headerRequestID, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(headerRequestID)
			if tt.keep && got != tt.header {
				t.Errorf("request id = %q, want %q", got, tt.header)
			}
			if !tt.keep && (got == "" || got == tt.header) {
				t.Errorf("request id = %q, want a generated one", got)
			}

			var body Response
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Metadata.RequestID != got {
				t.Errorf("metadata request_id = %q, header %q", body.Metadata.RequestID, got)
			}
			if body.Metadata.ServerTime.IsZero() {
				t.Error("server_time missing")
			}
		})
	}
}

func TestFailWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	FailWithFields(c, http.StatusBadRequest, ErrValidation, map[string]string{"title": "required"})

	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error == nil || body.Error.Code != ErrValidation || body.Error.Fields["title"] != "required" {
		t.Fatalf("error = %+v", body.Error)
	}
	if body.Error.Message != GetMessage(ErrValidation) {
		t.Errorf("message = %q", body.Error.Message)
	}
	if body.Metadata.RequestID == "" {
		t.Error("request id missing")
	}
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		page, perPage, total, pages int
	}{
		{1, 20, 0, 0},
		{1, 20, 20, 1},
		{2, 2, 5, 3},
		{1, 100, 101, 2},
	}
	for _, tt := range tests {
		p := NewPagination(tt.page, tt.perPage, tt.total)
		if p.TotalPages != tt.pages || p.Page != tt.page || p.TotalItems != tt.total {
			t.Errorf("NewPagination(%d, %d, %d) = %+v, want %d pages", tt.page, tt.perPage, tt.total, *p, tt.pages)
		}
	}
}
