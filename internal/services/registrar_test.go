package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/huangang/projecthub/backend/internal/config"
	"github.com/huangang/projecthub/backend/internal/models"
	"github.com/huangang/projecthub/backend/internal/workflow"
)

func TestNewRegistrar_EmptyURL(t *testing.T) {
	if r := NewRegistrar(config.RegistrarConfig{}, time.Second); r != nil {
		t.Error("expected nil registrar without a URL")
	}

	// a typed nil must not be treated as a configured registrar
	d := NewDispatcher(nil, nil, NewRegistrar(config.RegistrarConfig{}, time.Second), "", 0)
	if d.registrar != nil {
		t.Error("dispatcher kept a nil registrar")
	}
}

func TestHTTPRegistrar_Register(t *testing.T) {
	var got map[string]interface{}
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"registrationId":"r-1","ok":true}`)
	}))
	defer server.Close()

	r := NewRegistrar(config.RegistrarConfig{URL: server.URL, APIKey: "k"}, time.Second)
	resp, err := r.Register(context.Background(), RegistrationPayload{
		ProjectID:    "p-1",
		Name:         "Robot",
		Technologies: []string{"Go"},
		StudentCount: 1,
		SubmittedBy:  PersonRef{Name: "Alice", Email: "alice@school.test"},
		ApprovedAt:   time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if auth != "Bearer k" {
		t.Errorf("Authorization = %q", auth)
	}
	if got["projectId"] != "p-1" || got["studentCount"] != float64(1) {
		t.Errorf("unexpected payload: %v", got)
	}
	if sb, ok := got["submittedBy"].(map[string]interface{}); !ok || sb["email"] != "alice@school.test" {
		t.Errorf("submittedBy = %v", got["submittedBy"])
	}
	if resp["registrationId"] != "r-1" {
		t.Errorf("response = %v", resp)
	}
}

func TestHTTPRegistrar_ResponseShapes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantErr  bool
		wantKey  string
		wantJSON interface{}
	}{
		{name: "empty body", status: http.StatusCreated, body: "", wantKey: "status", wantJSON: float64(201)},
		{name: "array body", status: http.StatusOK, body: `[1,2]`, wantKey: "data"},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantErr: true},
		{name: "invalid json", status: http.StatusOK, body: "not json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			r := NewRegistrar(config.RegistrarConfig{URL: server.URL}, time.Second)
			resp, err := r.Register(context.Background(), RegistrationPayload{ProjectID: "p"})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Register: %v", err)
			}
			v, ok := resp[tt.wantKey]
			if !ok {
				t.Fatalf("response %v lacks %q", resp, tt.wantKey)
			}
			if tt.wantJSON != nil {
				// the status is an int in memory; compare through JSON
				b, _ := json.Marshal(v)
				if strings.TrimSpace(string(b)) != "201" {
					t.Errorf("%s = %v", tt.wantKey, v)
				}
			}
		})
	}
}

func TestHTTPRegistrar_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	r := NewRegistrar(config.RegistrarConfig{URL: server.URL}, 20*time.Millisecond)
	if _, err := r.Register(context.Background(), RegistrationPayload{}); err == nil {
		t.Error("expected timeout error")
	}
}

func TestRegistrationPayload_UsesLastApproval(t *testing.T) {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	p := &models.Project{Name: "Robot", Technologies: []string{"Go"}}
	p.ID = "p-1"
	p.MemberCount = 3
	p.Submitter = workflow.Identity{Name: "Alice", Email: "alice@school.test"}
	p.Review = &workflow.Review{ReviewerName: "Prof", Comments: "ok"}
	p.ChangeHistory = []workflow.HistoryEntry{
		{Status: workflow.StatusApproved, Date: first},
		{Status: workflow.StatusPendingChanges, Date: first.Add(time.Hour)},
		{Status: workflow.StatusApproved, Date: second},
	}

	payload := registrationPayload(p, time.Now())
	if !payload.ApprovedAt.Equal(second) {
		t.Errorf("ApprovedAt = %v, expected %v", payload.ApprovedAt, second)
	}
	if payload.StudentCount != 3 {
		t.Errorf("StudentCount = %d, expected 3", payload.StudentCount)
	}
	if payload.ApprovedBy.Name != "Prof" || payload.ApprovedBy.Comments != "ok" {
		t.Errorf("ApprovedBy = %+v", payload.ApprovedBy)
	}
}
