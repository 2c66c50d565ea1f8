package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequireRole(t *testing.T) {
	auth := service.NewAuthService(&config.Config{JWTSecret: "s3cret"})
	student := uuid.New()
	studentTok, _ := auth.IssueToken(student, service.RoleStudent, time.Hour)
	teacherTok, _ := auth.IssueToken(uuid.New(), service.RoleTeacher, time.Hour)
	expiredTok, _ := auth.IssueToken(student, service.RoleStudent, -time.Minute)

	var seen uuid.UUID
	r := gin.New()
	r.GET("/student", RequireStudentJWT(auth), func(c *gin.Context) {
		seen = GetUserID(c)
		c.Status(http.StatusNoContent)
	})
	r.GET("/teacher", RequireTeacherJWT(auth), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/ws", RequireStudentWSAuth(auth), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name     string
		path     string
		header   string
		want     int
		wantCode string
	}{
		{"student ok", "/student", "Bearer " + studentTok, http.StatusNoContent, ""},
		{"lowercase scheme", "/student", "bearer " + studentTok, http.StatusNoContent, ""},
		{"missing token", "/student", "", http.StatusUnauthorized, "TOKEN_REQUIRED"},
		{"expired", "/student", "Bearer " + expiredTok, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"garbage", "/student", "Bearer abc.def.ghi", http.StatusUnauthorized, "TOKEN_INVALID"},
		{"teacher on student route", "/student", "Bearer " + teacherTok, http.StatusForbidden, "STUDENT_ACCESS_ONLY"},
		{"student on teacher route", "/teacher", "Bearer " + studentTok, http.StatusForbidden, "TEACHER_ACCESS_ONLY"},
		{"ws query token", "/ws?token=" + studentTok, "", http.StatusNoContent, ""},
		{"ws ignores header", "/ws", "Bearer " + studentTok, http.StatusUnauthorized, "TOKEN_REQUIRED"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.want, w.Body.String())
			}
			if tc.wantCode != "" && !strings.Contains(w.Body.String(), tc.wantCode) {
				t.Errorf("body %s missing %s", w.Body.String(), tc.wantCode)
			}
		})
	}

	if seen != student {
		t.Errorf("user id in context = %s, want %s", seen, student)
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(ctx, 2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("first two requests must pass")
	}
	if rl.allow("a") {
		t.Fatal("third request within the interval must be limited")
	}
	if !rl.allow("b") {
		t.Fatal("buckets are per client")
	}

	now = now.Add(time.Minute)
	if !rl.allow("a") {
		t.Fatal("bucket must refill after the interval")
	}

	now = now.Add(10 * time.Minute)
	rl.cleanup()
	if len(rl.visitors) != 0 {
		t.Errorf("stale visitors kept: %d", len(rl.visitors))
	}
}

func TestBrotli(t *testing.T) {
	big := strings.Repeat("quiz ", 1000)
	r := gin.New()
	r.Use(BrotliWithConfig(BrotliConfig{MinLength: 1024, SkipPaths: []string{"/metrics"}}))
	r.GET("/big", func(c *gin.Context) { c.String(http.StatusOK, big) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, big) })

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", "gzip, br")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get("/big")
	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("large body not compressed")
	}
	var out bytes.Buffer
	if _, err := out.ReadFrom(brotli.NewReader(w.Body)); err != nil {
		t.Fatal(err)
	}
	if out.String() != big {
		t.Errorf("round trip mismatch: %d bytes", out.Len())
	}

	if w := get("/small"); w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
		t.Errorf("small body altered: %q", w.Body.String())
	}
	if w := get("/metrics"); w.Header().Get("Content-Encoding") != "" {
		t.Errorf("skipped path compressed")
	}
}
