package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huangang/projecthub/backend/internal/config"
	"github.com/huangang/projecthub/backend/internal/workflow"
	"github.com/huangang/projecthub/backend/pkg/logger"
)

// Notifier delivers a status-change message to the interested parties and
// returns a delivery id.
type Notifier interface {
	Send(ctx context.Context, recipients []string, key workflow.TemplateKey, summary workflow.Summary, dashboardLink string) (string, error)
}

// Message is a rendered status-change notification.
type Message struct {
	Subject  string
	Heading  string
	Lead     string
	Details  [][2]string
	Comments string
	Link     string
}

const signOff = "L'équipe Hub Projets"

var fieldLabels = map[string]string{
	"objectives":       "Objectifs",
	"technologies":     "Technologies",
	"student_count":    "Nombre d'étudiants",
	"credits":          "Crédits",
	"instructor_count": "Nombre d'intervenants",
	"github":           "GitHub",
	"presentation":     "Présentation",
}

// RenderMessage builds the French message for a status change.
func RenderMessage(key workflow.TemplateKey, s workflow.Summary, dashboardLink string) Message {
	noun := "projet"
	if s.Kind == workflow.KindWorkshop {
		noun = "workshop"
	}
	title := strings.ToUpper(noun[:1]) + noun[1:]

	m := Message{Comments: s.ReviewerComments, Link: dashboardLink}

	switch key {
	case workflow.TemplateApproved:
		m.Subject = fmt.Sprintf("%s approuvé : %s", title, s.Title)
		m.Heading = title + " approuvé"
		m.Lead = fmt.Sprintf("Félicitations ! Votre %s %s a été approuvé.", noun, s.Title)
	case workflow.TemplateRejected:
		m.Subject = fmt.Sprintf("%s refusé : %s", title, s.Title)
		m.Heading = title + " refusé"
		m.Lead = fmt.Sprintf("Nous regrettons de vous informer que votre %s %s a été refusé.", noun, s.Title)
	case workflow.TemplatePendingChanges:
		m.Subject = fmt.Sprintf("Modifications requises : %s", s.Title)
		m.Heading = "Modifications requises"
		m.Lead = fmt.Sprintf("Des modifications sont requises pour votre %s %s.", noun, s.Title)
	case workflow.TemplateCompleted:
		m.Subject = fmt.Sprintf("%s terminé : %s", title, s.Title)
		m.Heading = title + " terminé"
		m.Lead = fmt.Sprintf("Votre %s %s a été marqué comme terminé.", noun, s.Title)
	default:
		m.Subject = fmt.Sprintf("Mise à jour du %s : %s", noun, s.Title)
		m.Heading = "Mise à jour du " + noun
		m.Lead = fmt.Sprintf("Le statut de votre %s %s a été mis à jour.", noun, s.Title)
	}

	if s.Description != "" {
		m.Details = append(m.Details, [2]string{"Description", s.Description})
	}
	keys := make([]string, 0, len(s.ExtraFields))
	for k := range s.ExtraFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := s.ExtraFields[k]
		if v == "" {
			continue
		}
		label, ok := fieldLabels[k]
		if !ok {
			label = k
		}
		m.Details = append(m.Details, [2]string{label, v})
	}
	return m
}

// HTML renders the message as an email body. All values are escaped.
func (m Message) HTML() string {
	var sb strings.Builder

	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString("<h1>" + html.EscapeString(m.Heading) + "</h1>")
	sb.WriteString("<p>" + html.EscapeString(m.Lead) + "</p>")

	if len(m.Details) > 0 {
		sb.WriteString("<table style=\"border-collapse: collapse; margin-bottom: 20px;\">")
		for _, d := range m.Details {
			sb.WriteString(fmt.Sprintf("<tr><td style=\"padding: 8px; border: 1px solid #ddd; font-weight: bold;\">%s</td><td style=\"padding: 8px; border: 1px solid #ddd;\">%s</td></tr>",
				html.EscapeString(d[0]), html.EscapeString(d[1])))
		}
		sb.WriteString("</table>")
	}

	if m.Comments != "" {
		comments := strings.ReplaceAll(html.EscapeString(m.Comments), "\n", "<br>")
		sb.WriteString("<div style=\"background-color: #f5f5f5; padding: 15px; border-left: 4px solid #0066cc; margin: 20px 0;\">")
		sb.WriteString("<h3>Commentaires de l'évaluateur :</h3>")
		sb.WriteString("<p>" + comments + "</p>")
		sb.WriteString("</div>")
	}

	if m.Link != "" {
		sb.WriteString(fmt.Sprintf("<p>Vous pouvez consulter les détails sur <a href=\"%s\">votre tableau de bord</a>.</p>", html.EscapeString(m.Link)))
	}
	sb.WriteString("<p>Cordialement,<br>" + html.EscapeString(signOff) + "</p>")
	sb.WriteString("</body></html>")
	return sb.String()
}

// Markdown renders the message for chat webhooks.
func (m Message) Markdown() string {
	var sb strings.Builder
	sb.WriteString("**" + m.Subject + "**\n\n")
	sb.WriteString(m.Lead + "\n")
	for _, d := range m.Details {
		sb.WriteString(fmt.Sprintf("\n**%s**: %s", d[0], d[1]))
	}
	if m.Comments != "" {
		sb.WriteString("\n\n> " + strings.ReplaceAll(m.Comments, "\n", "\n> "))
	}
	if m.Link != "" {
		sb.WriteString(fmt.Sprintf("\n\n[Tableau de bord](%s)", m.Link))
	}
	return sb.String()
}

// MultiNotifier fans a message out to several senders. It fails only when
// every sender failed.
type MultiNotifier []Notifier

func (mn MultiNotifier) Send(ctx context.Context, recipients []string, key workflow.TemplateKey, summary workflow.Summary, dashboardLink string) (string, error) {
	var ids []string
	var errs []error
	for _, n := range mn {
		id, err := n.Send(ctx, recipients, key, summary, dashboardLink)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 && len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	if len(errs) > 0 {
		logger.Warn().Err(errors.Join(errs...)).Msg("[Notification] some senders failed")
	}
	return strings.Join(ids, ","), nil
}

// NewNotifier builds the configured senders, or returns nil when none is enabled.
func NewNotifier(cfg *config.Config) Notifier {
	var senders MultiNotifier
	if cfg.Email.Enabled && cfg.Email.Host != "" {
		senders = append(senders, NewEmailNotifier(cfg.Email, cfg.SideEffectTimeout()))
	}
	if cfg.Webhook.Enabled && cfg.Webhook.URL != "" {
		senders = append(senders, NewWebhookNotifier(cfg.Webhook, cfg.SideEffectTimeout()))
	}
	switch len(senders) {
	case 0:
		return nil
	case 1:
		return senders[0]
	}
	return senders
}

// WebhookNotifier posts the message to a chat webhook.
type WebhookNotifier struct {
	platform string
	url      string
	secret   string
	client   *http.Client
}

func NewWebhookNotifier(cfg config.WebhookConfig, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		platform: cfg.Platform,
		url:      cfg.URL,
		secret:   cfg.Secret,
		client:   &http.Client{Timeout: timeout},
	}
}

func (n *WebhookNotifier) Send(ctx context.Context, recipients []string, key workflow.TemplateKey, summary workflow.Summary, dashboardLink string) (string, error) {
	msg := RenderMessage(key, summary, dashboardLink)
	deliveryID := uuid.NewString()

	var err error
	switch n.platform {
	case "wechat_work":
		err = n.postJSON(ctx, n.url, map[string]interface{}{
			"msgtype":  "markdown",
			"markdown": map[string]string{"content": msg.Markdown()},
		})
	case "dingtalk":
		webhookURL := n.url
		if n.secret != "" {
			timestamp := time.Now().UnixMilli()
			webhookURL = fmt.Sprintf("%s&timestamp=%d&sign=%s", n.url, timestamp, url.QueryEscape(n.dingTalkSign(timestamp)))
		}
		err = n.postJSON(ctx, webhookURL, map[string]interface{}{
			"msgtype": "markdown",
			"markdown": map[string]string{
				"title": msg.Subject,
				"text":  msg.Markdown(),
			},
		})
	case "feishu":
		payload := map[string]interface{}{
			"msg_type": "text",
			"content":  map[string]string{"text": msg.Markdown()},
		}
		if n.secret != "" {
			timestamp := time.Now().Unix()
			payload["timestamp"] = fmt.Sprintf("%d", timestamp)
			payload["sign"] = n.feishuSign(timestamp)
		}
		err = n.postJSON(ctx, n.url, payload)
	case "slack":
		err = n.postJSON(ctx, n.url, map[string]interface{}{
			"text": msg.Subject,
			"blocks": []map[string]interface{}{
				{
					"type": "section",
					"text": map[string]string{"type": "mrkdwn", "text": msg.Markdown()},
				},
			},
		})
	default:
		err = n.postJSON(ctx, n.url, map[string]interface{}{
			"delivery_id":    deliveryID,
			"template":       key,
			"subject":        msg.Subject,
			"recipients":     recipients,
			"submission":     summary,
			"dashboard_link": dashboardLink,
		})
	}
	if err != nil {
		return "", err
	}
	return deliveryID, nil
}

func (n *WebhookNotifier) dingTalkSign(timestamp int64) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, n.secret)
	h := hmac.New(sha256.New, []byte(n.secret))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (n *WebhookNotifier) feishuSign(timestamp int64) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, n.secret)
	h := hmac.New(sha256.New, []byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (n *WebhookNotifier) postJSON(ctx context.Context, webhookURL string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	logger.Debug().Int("status", resp.StatusCode).Int("payload_bytes", len(body)).Msg("[Notification] webhook response")

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
