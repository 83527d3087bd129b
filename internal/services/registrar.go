package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/huangang/projecthub/backend/internal/config"
)

// RegistrationPayload is what the external registrar receives for an approved
// project. Field names follow the registrar's JSON contract.
type RegistrationPayload struct {
	ProjectID    string      `json:"projectId"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Objectives   string      `json:"objectives"`
	Technologies []string    `json:"technologies"`
	StudentCount int         `json:"studentCount"`
	SubmittedBy  PersonRef   `json:"submittedBy"`
	ApprovedBy   ApproverRef `json:"approvedBy"`
	ApprovedAt   time.Time   `json:"approvedAt"`
}

type PersonRef struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ApproverRef struct {
	Name     string `json:"name"`
	Comments string `json:"comments"`
}

// Registrar registers approved projects with a third-party system.
type Registrar interface {
	Register(ctx context.Context, payload RegistrationPayload) (map[string]any, error)
}

type HTTPRegistrar struct {
	url    string
	apiKey string
	client *http.Client
}

// NewRegistrar returns nil when no registrar URL is configured.
func NewRegistrar(cfg config.RegistrarConfig, timeout time.Duration) *HTTPRegistrar {
	if cfg.URL == "" {
		return nil
	}
	return &HTTPRegistrar{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (r *HTTPRegistrar) Register(ctx context.Context, payload RegistrationPayload) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 300 {
		snippet := string(respBody)
		if len(snippet) > 500 {
			snippet = snippet[:500] + "..."
		}
		return nil, fmt.Errorf("registrar returned status %d: %s", resp.StatusCode, snippet)
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return map[string]any{"status": resp.StatusCode}, nil
	}

	var decoded any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("registrar returned invalid JSON: %w", err)
	}
	if obj, ok := decoded.(map[string]any); ok {
		return obj, nil
	}
	return map[string]any{"data": decoded}, nil
}
