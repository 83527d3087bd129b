package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangang/projecthub/backend/internal/models"
	"github.com/huangang/projecthub/backend/internal/workflow"
	"github.com/huangang/projecthub/backend/pkg/logger"
)

// Dispatcher runs the best-effort side effects of a committed transition.
// Failures are logged and recorded in the system log, never returned.
type Dispatcher struct {
	store       SubmissionStore
	notifier    Notifier
	registrar   Registrar
	frontendURL string
	timeout     time.Duration
	now         func() time.Time
}

// NewDispatcher accepts a nil notifier or registrar; the matching side effect
// is then skipped.
func NewDispatcher(store SubmissionStore, notifier Notifier, registrar Registrar, frontendURL string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d := &Dispatcher{
		store:       store,
		notifier:    notifier,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		timeout:     timeout,
		now:         time.Now,
	}
	// A typed nil would defeat the nil check in register.
	if r, ok := registrar.(*HTTPRegistrar); !ok || r != nil {
		d.registrar = registrar
	}
	return d
}

// Process is the TaskProcessor for side-effect tasks.
func (d *Dispatcher) Process(ctx context.Context, task *SideEffectTask) error {
	sub, err := d.store.FindByID(ctx, task.Kind, task.SubmissionID)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			logger.Warn().Str("kind", string(task.Kind)).Str("submission_id", task.SubmissionID).
				Msg("[Dispatcher] submission vanished before side effects ran")
			return nil
		}
		return err
	}

	if task.Notify {
		d.notify(ctx, sub, task.Status)
	}
	if task.Register {
		if p, ok := sub.(*models.Project); ok {
			d.register(ctx, p)
		}
	}
	return nil
}

// DashboardLink is where recipients can follow the submission.
func (d *Dispatcher) DashboardLink(kind workflow.Kind) string {
	if kind == workflow.KindWorkshop {
		return d.frontendURL + "/workshops/dashboard"
	}
	return d.frontendURL + "/dashboard"
}

func (d *Dispatcher) notify(ctx context.Context, sub models.Submission, status workflow.Status) {
	base := sub.Base()
	log := logger.Submission(string(sub.Kind()), base.ID)

	if d.notifier == nil {
		log.Debug().Msg("[Dispatcher] no notifier configured, skipping notification")
		return
	}

	recipients := workflow.InterestedParties(base.Roster, base.MemberEmails, base.Submitter.Email)
	if len(recipients) == 0 {
		log.Debug().Msg("[Dispatcher] no recipients, skipping notification")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	deliveryID, err := d.notifier.Send(ctx, recipients, workflow.TemplateFor(status), sub.Summary(), d.DashboardLink(sub.Kind()))
	if err != nil {
		d.failed(sub, "Notify", fmt.Errorf("%w: notify: %v", workflow.ErrSideEffect, err))
		return
	}

	log.Info().Str("status", string(status)).Str("delivery_id", deliveryID).
		Int("recipients", len(recipients)).Msg("[Dispatcher] notification sent")
	LogInfo(LogEntry{
		Module:   "Notification",
		Action:   "Notify",
		Message:  fmt.Sprintf("Status %s sent to %d recipients", status, len(recipients)),
		TargetID: base.ID,
		Extra:    map[string]interface{}{"delivery_id": deliveryID, "kind": sub.Kind()},
	})
}

func (d *Dispatcher) register(ctx context.Context, p *models.Project) {
	log := logger.Submission(string(p.Kind()), p.ID)

	if d.registrar == nil {
		log.Warn().Msg("[Dispatcher] no registrar configured, skipping registration")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	now := d.now()
	resp, err := d.registrar.Register(ctx, registrationPayload(p, now))
	if err != nil {
		d.failed(p, "Register", fmt.Errorf("%w: register: %v", workflow.ErrSideEffect, err))
		if p.Registered() {
			return
		}
		record := &models.ExternalRequest{Sent: false, SentAt: now, Error: err.Error()}
		if err := d.store.RecordExternalRequest(context.WithoutCancel(ctx), p.ID, record); err != nil {
			log.Error().Err(err).Msg("[Dispatcher] failed to record registration failure")
		}
		return
	}

	record := &models.ExternalRequest{Sent: true, SentAt: now, Response: resp}
	if err := d.store.RecordExternalRequest(context.WithoutCancel(ctx), p.ID, record); err != nil {
		d.failed(p, "Register", fmt.Errorf("%w: store registration: %v", workflow.ErrSideEffect, err))
		return
	}

	log.Info().Msg("[Dispatcher] project registered externally")
	LogInfo(LogEntry{
		Module:   "Registrar",
		Action:   "Register",
		Message:  fmt.Sprintf("Project %s registered", p.Name),
		TargetID: p.ID,
	})
}

func (d *Dispatcher) failed(sub models.Submission, action string, err error) {
	base := sub.Base()
	logger.Error().Err(err).Str("kind", string(sub.Kind())).Str("submission_id", base.ID).
		Str("status", string(base.Status)).Msgf("[Dispatcher] %s failed", strings.ToLower(action))

	module := "Notification"
	if action == "Register" {
		module = "Registrar"
	}
	LogError(LogEntry{
		Module:   module,
		Action:   action,
		Message:  err.Error(),
		TargetID: base.ID,
		Extra:    map[string]interface{}{"kind": sub.Kind(), "status": base.Status},
	})
}

func registrationPayload(p *models.Project, now time.Time) RegistrationPayload {
	approvedAt := now
	for i := len(p.ChangeHistory) - 1; i >= 0; i-- {
		if p.ChangeHistory[i].Status == workflow.StatusApproved {
			approvedAt = p.ChangeHistory[i].Date
			break
		}
	}

	var approver ApproverRef
	if p.Review != nil {
		approver = ApproverRef{Name: p.Review.ReviewerName, Comments: p.Review.Comments}
	}

	return RegistrationPayload{
		ProjectID:    p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Objectives:   p.Objectives,
		Technologies: p.Technologies,
		StudentCount: p.MemberCount,
		SubmittedBy:  PersonRef{Name: p.Submitter.Name, Email: p.Submitter.Email},
		ApprovedBy:   approver,
		ApprovedAt:   approvedAt,
	}
}
