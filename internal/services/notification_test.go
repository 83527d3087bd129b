package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mail "github.com/go-mail/mail/v2"
	"github.com/huangang/projecthub/backend/internal/config"
	"github.com/huangang/projecthub/backend/internal/workflow"
)

func sampleSummary() workflow.Summary {
	return workflow.Summary{
		Kind:             workflow.KindProject,
		Title:            "Robot <autonome>",
		Description:      "Un robot",
		ReviewerComments: "Bien joué\n<b>bravo</b>",
		ExtraFields: map[string]string{
			"technologies":  "Go, C",
			"student_count": "2",
			"credits":       "",
		},
	}
}

func TestRenderMessage_Subjects(t *testing.T) {
	tests := []struct {
		key      workflow.TemplateKey
		kind     workflow.Kind
		expected string
	}{
		{workflow.TemplateApproved, workflow.KindProject, "Projet approuvé : T"},
		{workflow.TemplateRejected, workflow.KindProject, "Projet refusé : T"},
		{workflow.TemplatePendingChanges, workflow.KindWorkshop, "Modifications requises : T"},
		{workflow.TemplateCompleted, workflow.KindWorkshop, "Workshop terminé : T"},
		{workflow.TemplateOther, workflow.KindProject, "Mise à jour du projet : T"},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			m := RenderMessage(tt.key, workflow.Summary{Kind: tt.kind, Title: "T"}, "")
			if m.Subject != tt.expected {
				t.Errorf("Subject = %q, expected %q", m.Subject, tt.expected)
			}
		})
	}
}

func TestRenderMessage_DetailsSkipEmptyFields(t *testing.T) {
	m := RenderMessage(workflow.TemplateApproved, sampleSummary(), "https://hub.test/dashboard")

	if len(m.Details) != 3 {
		t.Fatalf("expected 3 detail rows, got %d: %v", len(m.Details), m.Details)
	}
	if m.Details[0][0] != "Description" {
		t.Errorf("first row = %q, expected Description", m.Details[0][0])
	}
	// extra fields are sorted by key: student_count before technologies
	if m.Details[1][0] != "Nombre d'étudiants" || m.Details[2][0] != "Technologies" {
		t.Errorf("unexpected detail order: %v", m.Details)
	}
}

func TestMessageHTML_EscapesValues(t *testing.T) {
	body := RenderMessage(workflow.TemplateApproved, sampleSummary(), "https://hub.test/dashboard").HTML()

	if strings.Contains(body, "<autonome>") || strings.Contains(body, "<b>bravo</b>") {
		t.Error("user content must be escaped")
	}
	if !strings.Contains(body, "Robot &lt;autonome&gt;") {
		t.Error("escaped title missing")
	}
	if !strings.Contains(body, "Bien joué<br>&lt;b&gt;bravo&lt;/b&gt;") {
		t.Error("comments should keep line breaks")
	}
	if !strings.Contains(body, `href="https://hub.test/dashboard"`) {
		t.Error("dashboard link missing")
	}
	if !strings.Contains(body, "L&#39;équipe Hub Projets") {
		t.Error("sign-off missing")
	}
}

func TestMessageHTML_NoCommentsBlock(t *testing.T) {
	s := sampleSummary()
	s.ReviewerComments = ""
	body := RenderMessage(workflow.TemplateRejected, s, "").HTML()

	if strings.Contains(body, "Commentaires") {
		t.Error("comments block should be omitted when there are no comments")
	}
	if strings.Contains(body, "tableau de bord") {
		t.Error("dashboard sentence should be omitted without a link")
	}
}

type stubNotifier struct {
	id  string
	err error
}

func (s stubNotifier) Send(context.Context, []string, workflow.TemplateKey, workflow.Summary, string) (string, error) {
	return s.id, s.err
}

func TestMultiNotifier(t *testing.T) {
	ctx := context.Background()

	id, err := MultiNotifier{stubNotifier{id: "a"}, stubNotifier{err: errors.New("down")}}.
		Send(ctx, []string{"x@y.test"}, workflow.TemplateApproved, sampleSummary(), "")
	if err != nil {
		t.Fatalf("partial failure should not fail: %v", err)
	}
	if id != "a" {
		t.Errorf("id = %q, expected %q", id, "a")
	}

	_, err = MultiNotifier{stubNotifier{err: errors.New("one")}, stubNotifier{err: errors.New("two")}}.
		Send(ctx, []string{"x@y.test"}, workflow.TemplateApproved, sampleSummary(), "")
	if err == nil {
		t.Fatal("expected error when every sender fails")
	}
}

func TestNewNotifier(t *testing.T) {
	cfg := config.DefaultConfig()
	if n := NewNotifier(cfg); n != nil {
		t.Errorf("expected nil notifier with nothing enabled, got %T", n)
	}

	cfg.Email = config.EmailConfig{Enabled: true, Host: "smtp.test", Port: 587, From: "hub@test"}
	if _, ok := NewNotifier(cfg).(*EmailNotifier); !ok {
		t.Error("expected a single EmailNotifier")
	}

	cfg.Webhook = config.WebhookConfig{Enabled: true, URL: "https://hooks.test/x", Platform: "generic"}
	if _, ok := NewNotifier(cfg).(MultiNotifier); !ok {
		t.Error("expected a MultiNotifier when both senders are enabled")
	}
}

func TestWebhookNotifier_Generic(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(config.WebhookConfig{Platform: "generic", URL: server.URL}, time.Second)
	id, err := n.Send(context.Background(), []string{"a@b.test"}, workflow.TemplateApproved, sampleSummary(), "https://hub.test/dashboard")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id == "" || got["delivery_id"] != id {
		t.Errorf("delivery id mismatch: returned %q, posted %v", id, got["delivery_id"])
	}
	if got["template"] != string(workflow.TemplateApproved) {
		t.Errorf("template = %v", got["template"])
	}
	if got["subject"] != "Projet approuvé : Robot <autonome>" {
		t.Errorf("subject = %v", got["subject"])
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream down")
	}))
	defer server.Close()

	n := NewWebhookNotifier(config.WebhookConfig{Platform: "slack", URL: server.URL}, time.Second)
	_, err := n.Send(context.Background(), []string{"a@b.test"}, workflow.TemplateRejected, sampleSummary(), "")
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestWebhookNotifier_DingTalkSignsURL(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
	}))
	defer server.Close()

	n := NewWebhookNotifier(config.WebhookConfig{Platform: "dingtalk", URL: server.URL + "/robot/send?access_token=t", Secret: "s3cret"}, time.Second)
	if _, err := n.Send(context.Background(), nil, workflow.TemplateCompleted, sampleSummary(), ""); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(query, "timestamp=") || !strings.Contains(query, "sign=") {
		t.Errorf("expected signed query, got %q", query)
	}
}

func TestEmailNotifier_BuildsMessage(t *testing.T) {
	n := NewEmailNotifier(config.EmailConfig{Host: "smtp.test", Port: 587, From: "hub@school.test"}, time.Second)

	var sent *mail.Message
	n.send = func(m *mail.Message) error {
		sent = m
		return nil
	}

	id, err := n.Send(context.Background(), []string{"a@school.test", "b@school.test"}, workflow.TemplateApproved, sampleSummary(), "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id == "" {
		t.Error("expected a delivery id")
	}
	if sent == nil {
		t.Fatal("message was not sent")
	}
	if to := sent.GetHeader("To"); len(to) != 2 {
		t.Errorf("To = %v, expected 2 recipients", to)
	}
	got := sent.GetHeader("Subject")
	if len(got) != 1 {
		t.Fatalf("Subject = %v", got)
	}
	subject, err := new(mime.WordDecoder).DecodeHeader(got[0])
	if err != nil {
		t.Fatalf("decode subject %q: %v", got[0], err)
	}
	if subject != "Projet approuvé : Robot <autonome>" {
		t.Errorf("Subject = %q", subject)
	}
	if mid := sent.GetHeader("Message-ID"); len(mid) != 1 || !strings.Contains(mid[0], id) {
		t.Errorf("Message-ID = %v, expected it to carry %q", mid, id)
	}
}

func TestEmailNotifier_Errors(t *testing.T) {
	n := NewEmailNotifier(config.EmailConfig{}, time.Second)
	if _, err := n.Send(context.Background(), []string{"a@b.test"}, workflow.TemplateApproved, sampleSummary(), ""); err == nil {
		t.Error("expected error when smtp is not configured")
	}

	n = NewEmailNotifier(config.EmailConfig{Host: "smtp.test", From: "hub@test"}, time.Second)
	block := make(chan struct{})
	defer close(block)
	n.send = func(*mail.Message) error {
		<-block
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := n.Send(ctx, []string{"a@b.test"}, workflow.TemplateApproved, sampleSummary(), ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
