package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/huangang/projecthub/backend/internal/utils"
	"github.com/huangang/projecthub/backend/internal/workflow"
	"github.com/huangang/projecthub/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-middleware-testing")
}

func TestAuthRequired_NoHeader(t *testing.T) {
	router := gin.New()
	router.Use(AuthRequired())
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_RejectsWithEnvelope(t *testing.T) {
	router := gin.New()
	router.Use(AuthRequired(), AdminRequired())
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	router.ServeHTTP(w, req)

	var body response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != 401 || body.Message != "authorization header required" {
		t.Errorf("unexpected body %+v", body)
	}

	token, err := utils.GenerateToken("u-1", "Alice", "alice@school.test", "student", 1)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	body = response.Response{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if w.Code != http.StatusForbidden || body.Code != 403 {
		t.Errorf("expected 403 envelope, got %d %+v", w.Code, body)
	}
}

func TestAuthRequired_InvalidFormat(t *testing.T) {
	router := gin.New()
	router.Use(AuthRequired())
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	testCases := []string{
		"InvalidToken",
		"Basic token123",
		"Bearer",
	}

	for _, authHeader := range testCases {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", authHeader)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status %d, got %d", authHeader, http.StatusUnauthorized, w.Code)
		}
	}
}

func TestAuthRequired_InvalidToken(t *testing.T) {
	router := gin.New()
	router.Use(AuthRequired())
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer invalid.jwt.token")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_ValidToken(t *testing.T) {
	token, err := utils.GenerateToken("u-1", "Alice", "Alice@School.test", "student", 24)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	router := gin.New()
	router.Use(AuthRequired())
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, GetActor(c))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var actor workflow.Actor
	if err := json.Unmarshal(w.Body.Bytes(), &actor); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if actor.ID != "u-1" || actor.Name != "Alice" {
		t.Errorf("unexpected actor %+v", actor)
	}
	if actor.Email != "alice@school.test" {
		t.Errorf("email should be normalized, got %q", actor.Email)
	}
	if actor.Role != workflow.RoleStudent {
		t.Errorf("role = %q, expected student", actor.Role)
	}
}

func TestAdminRequired(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		expected int
	}{
		{"no role", "", http.StatusForbidden},
		{"student", "student", http.StatusForbidden},
		{"admin", "admin", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(func(c *gin.Context) {
				if tt.role != "" {
					c.Set(ContextRole, tt.role)
				}
				c.Next()
			})
			router.Use(AdminRequired())
			router.GET("/admin", func(c *gin.Context) {
				c.JSON(200, gin.H{"status": "ok"})
			})

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/admin", nil)
			router.ServeHTTP(w, req)

			if w.Code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, w.Code)
			}
		})
	}
}

func TestGetActor_UnknownRoleIsStudent(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if actor := GetActor(c); actor.ID != "" || actor.Role != workflow.RoleStudent {
		t.Errorf("unexpected actor for empty context: %+v", actor)
	}

	c.Set(ContextUserID, "u-9")
	c.Set(ContextRole, "superuser")
	if actor := GetActor(c); actor.ID != "u-9" || actor.IsAdmin() {
		t.Errorf("unknown roles must not grant admin: %+v", actor)
	}
}

type fakeTracker struct {
	seen []workflow.Actor
	err  error
}

func (f *fakeTracker) Touch(_ context.Context, actor workflow.Actor) error {
	f.seen = append(f.seen, actor)
	return f.err
}

func TestTrackUser(t *testing.T) {
	tracker := &fakeTracker{err: errors.New("db down")}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserID, "u-1")
		c.Set(ContextEmail, "a@b.test")
		c.Next()
	})
	router.Use(TrackUser(tracker))
	router.GET("/me", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/me", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("tracking failure must not block the request, got %d", w.Code)
	}
	if len(tracker.seen) != 1 || tracker.seen[0].Email != "a@b.test" {
		t.Errorf("unexpected tracked actors: %+v", tracker.seen)
	}
}

func TestContextConstants(t *testing.T) {
	if ContextUserID != "user_id" {
		t.Errorf("ContextUserID = %q, expected %q", ContextUserID, "user_id")
	}
	if ContextRole != "role" {
		t.Errorf("ContextRole = %q, expected %q", ContextRole, "role")
	}
}
