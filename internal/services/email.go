package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	mail "github.com/go-mail/mail/v2"
	"github.com/google/uuid"
	"github.com/huangang/projecthub/backend/internal/config"
	"github.com/huangang/projecthub/backend/internal/workflow"
	"github.com/huangang/projecthub/backend/pkg/logger"
)

// EmailNotifier sends status-change messages over SMTP.
type EmailNotifier struct {
	cfg     config.EmailConfig
	timeout time.Duration
	send    func(m *mail.Message) error
}

func NewEmailNotifier(cfg config.EmailConfig, timeout time.Duration) *EmailNotifier {
	n := &EmailNotifier{cfg: cfg, timeout: timeout}
	n.send = n.dialAndSend
	return n
}

func (n *EmailNotifier) Send(ctx context.Context, recipients []string, key workflow.TemplateKey, summary workflow.Summary, dashboardLink string) (string, error) {
	if len(recipients) == 0 {
		return "", nil
	}
	if n.cfg.Host == "" || n.cfg.From == "" {
		return "", fmt.Errorf("smtp not configured (host/from)")
	}

	deliveryID := uuid.NewString()
	m := n.buildMessage(deliveryID, recipients, RenderMessage(key, summary, dashboardLink))

	done := make(chan error, 1)
	go func() { done <- n.send(m) }()

	select {
	case err := <-done:
		if err != nil {
			return "", err
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}

	logger.Info().Str("delivery_id", deliveryID).Int("recipients", len(recipients)).Msg("[Email] notification sent")
	return deliveryID, nil
}

func (n *EmailNotifier) buildMessage(deliveryID string, recipients []string, msg Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@projecthub>", deliveryID))
	m.SetBody("text/html", msg.HTML())
	return m
}

func (n *EmailNotifier) dialAndSend(m *mail.Message) error {
	d := mail.NewDialer(n.cfg.Host, n.cfg.Port, n.cfg.Username, n.cfg.Password)
	d.Timeout = n.timeout

	// Credentials never go out over a plaintext connection.
	if n.cfg.Username != "" && !d.SSL {
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}

	d.TLSConfig = &tls.Config{
		ServerName:         n.cfg.Host,
		InsecureSkipVerify: n.cfg.SkipTLSVerify,
	}

	return d.DialAndSend(m)
}
