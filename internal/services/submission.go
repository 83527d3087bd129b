package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangang/projecthub/backend/internal/models"
	"github.com/huangang/projecthub/backend/internal/workflow"
	"github.com/huangang/projecthub/backend/pkg/logger"
)

const (
	defaultChangesComment = "Des modifications sont requises."
	resubmissionNoteDate  = "02/01/2006"
)

// SubmissionService applies the review workflow to projects and workshops.
type SubmissionService struct {
	store    SubmissionStore
	resolver MembershipResolver
	queue    TaskQueue
	now      func() time.Time
}

func NewSubmissionService(store SubmissionStore, resolver MembershipResolver, queue TaskQueue) *SubmissionService {
	return &SubmissionService{
		store:    store,
		resolver: resolver,
		queue:    queue,
		now:      time.Now,
	}
}

// SubmissionView is a submission plus the caller-relative flags.
type SubmissionView struct {
	Submission models.Submission `json:"submission"`
	IsCreator  bool              `json:"is_creator"`
	IsMember   bool              `json:"is_member"`
}

func view(actor workflow.Actor, sub models.Submission) SubmissionView {
	subj := sub.Base().Subject(sub.Kind())
	return SubmissionView{
		Submission: sub,
		IsCreator:  subj.IsOwner(actor),
		IsMember:   subj.IsMember(actor),
	}
}

func (s *SubmissionService) Create(ctx context.Context, actor workflow.Actor, in ContentInput) (models.Submission, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	roster, err := s.buildRoster(ctx, actor, in.Emails())
	if err != nil {
		return nil, err
	}

	now := s.now()
	sub := models.NewSubmission(in.Kind())
	in.apply(sub)

	base := sub.Base()
	base.Status = workflow.StatusPending
	base.Submitter = workflow.Identity{UserID: actor.ID, Name: actor.Name, Email: workflow.NormalizeEmail(actor.Email)}
	base.Roster = roster
	base.MemberEmails = in.Emails()
	base.MemberCount = in.Count()
	base.ChangeHistory = []workflow.HistoryEntry{}
	base.Version = 1
	base.CreatedAt = now
	base.UpdatedAt = now

	if err := s.store.Create(ctx, sub); err != nil {
		return nil, err
	}

	logger.Submission(string(sub.Kind()), base.ID).Info().Str("submitter", actor.ID).Msg("submission created")
	return sub, nil
}

func (s *SubmissionService) Get(ctx context.Context, actor workflow.Actor, kind workflow.Kind, id string) (*SubmissionView, error) {
	sub, err := s.store.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := workflow.Authorize(actor, sub.Base().Subject(kind), workflow.OpView, ""); err != nil {
		return nil, err
	}
	v := view(actor, sub)
	return &v, nil
}

// ListMine lists submissions the caller submitted or belongs to, newest first.
func (s *SubmissionService) ListMine(ctx context.Context, actor workflow.Actor, kind workflow.Kind) ([]SubmissionView, error) {
	subs, err := s.store.FindByParticipant(ctx, kind, actor.ID, actor.Email)
	if err != nil {
		return nil, err
	}
	out := make([]SubmissionView, 0, len(subs))
	for _, sub := range subs {
		out = append(out, view(actor, sub))
	}
	return out, nil
}

// ListAll lists every submission of a kind, optionally filtered by status.
func (s *SubmissionService) ListAll(ctx context.Context, actor workflow.Actor, kind workflow.Kind, status string) ([]models.Submission, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: reviewer role required", workflow.ErrForbidden)
	}

	var filter workflow.Status
	if status != "" {
		st, ok := workflow.ParseStatus(status)
		if !ok {
			return nil, fmt.Errorf("%w: %q", workflow.ErrInvalidStatus, status)
		}
		filter = st
	}
	return s.store.FindByStatus(ctx, kind, filter)
}

// Review records a reviewer decision. Validation order: requested status,
// existence, permission and state, then credits.
func (s *SubmissionService) Review(ctx context.Context, actor workflow.Actor, kind workflow.Kind, id string, in ReviewInput) (models.Submission, error) {
	if !workflow.IsReviewTarget(in.Status) {
		return nil, fmt.Errorf("%w: %q", workflow.ErrInvalidStatus, in.Status)
	}

	sub, err := s.store.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	base := sub.Base()

	if err := workflow.Authorize(actor, base.Subject(kind), workflow.OpReview, in.Status); err != nil {
		return nil, err
	}

	project, isProject := sub.(*models.Project)
	if isProject && in.Status == workflow.StatusApproved {
		if in.Credits == nil {
			return nil, fmt.Errorf("%w: credits are required to approve a project", workflow.ErrValidation)
		}
		if *in.Credits < 0 {
			return nil, fmt.Errorf("%w: credits cannot be negative", workflow.ErrValidation)
		}
	}

	oldStatus := base.Status
	now := s.now()

	base.Review = &workflow.Review{ReviewerID: actor.ID, ReviewerName: actor.Name, Comments: in.Comments}
	base.Status = in.Status
	base.AppendHistory(in.Status, in.Comments, workflow.Reviewer{ID: actor.ID, Name: actor.Name}, now)
	if isProject && in.Status == workflow.StatusApproved {
		credits := *in.Credits
		project.Credits = &credits
	}

	if err := s.store.Save(ctx, sub); err != nil {
		return nil, err
	}

	changed := oldStatus != in.Status
	logger.Submission(string(kind), id).Info().
		Str("from", string(oldStatus)).Str("to", string(in.Status)).
		Str("reviewer", actor.ID).Bool("changed", changed).Msg("submission reviewed")

	task := &SideEffectTask{
		Kind:         kind,
		SubmissionID: base.ID,
		Status:       in.Status,
		ActorID:      actor.ID,
		Notify:       changed || in.Force,
		Register:     isProject && in.Status == workflow.StatusApproved && (in.Force || !project.Registered()),
		Force:        in.Force,
	}
	return s.dispatch(ctx, sub, task), nil
}

// RequestChanges is a review to pending_changes with a default comment.
func (s *SubmissionService) RequestChanges(ctx context.Context, actor workflow.Actor, kind workflow.Kind, id, comments string) (models.Submission, error) {
	if comments == "" {
		comments = defaultChangesComment
	}
	return s.Review(ctx, actor, kind, id, ReviewInput{Status: workflow.StatusPendingChanges, Comments: comments})
}

// Complete moves an approved submission to completed.
func (s *SubmissionService) Complete(ctx context.Context, actor workflow.Actor, kind workflow.Kind, id, comments string) (models.Submission, error) {
	sub, err := s.store.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	base := sub.Base()

	if err := workflow.Authorize(actor, base.Subject(kind), workflow.OpComplete, workflow.StatusCompleted); err != nil {
		return nil, err
	}

	historyComment := comments
	if historyComment == "" {
		historyComment = completedComment(kind)
	}

	if comments != "" {
		if base.Review == nil {
			base.Review = &workflow.Review{ReviewerID: actor.ID, ReviewerName: actor.Name}
		}
		base.Review.Comments = comments
	}
	base.Status = workflow.StatusCompleted
	base.AppendHistory(workflow.StatusCompleted, historyComment, workflow.Reviewer{ID: actor.ID, Name: actor.Name}, s.now())

	if err := s.store.Save(ctx, sub); err != nil {
		return nil, err
	}

	logger.Submission(string(kind), id).Info().Str("reviewer", actor.ID).Msg("submission completed")

	return s.dispatch(ctx, sub, &SideEffectTask{
		Kind:         kind,
		SubmissionID: base.ID,
		Status:       workflow.StatusCompleted,
		ActorID:      actor.ID,
		Notify:       true,
	}), nil
}

// Update replaces the content of an editable submission. A submission waiting
// for changes goes back to pending.
func (s *SubmissionService) Update(ctx context.Context, actor workflow.Actor, id string, in ContentInput) (models.Submission, error) {
	kind := in.Kind()
	sub, err := s.store.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	base := sub.Base()

	if err := workflow.Authorize(actor, base.Subject(kind), workflow.OpUpdate, ""); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	roster, err := s.buildRoster(ctx, workflow.Actor{ID: base.Submitter.UserID, Name: base.Submitter.Name, Email: base.Submitter.Email}, in.Emails())
	if err != nil {
		return nil, err
	}

	in.apply(sub)
	base.Roster = roster
	base.MemberEmails = in.Emails()
	base.MemberCount = in.Count()

	resubmitted := base.Status == workflow.StatusPendingChanges
	if resubmitted {
		now := s.now()
		note := fmt.Sprintf("[Modifications effectuées par %s le %s]", resubmitterLabel(kind), now.Format(resubmissionNoteDate))
		if base.Review == nil {
			base.Review = &workflow.Review{Comments: note}
		} else if base.Review.Comments == "" {
			base.Review.Comments = note
		} else {
			base.Review.Comments += "\n\n" + note
		}
		base.Status = workflow.StatusPending
		base.AppendHistory(workflow.StatusPending, "Modifications effectuées par "+resubmitterLabel(kind),
			workflow.Reviewer{ID: actor.ID, Name: actor.Name}, now)
	}

	if err := s.store.Save(ctx, sub); err != nil {
		return nil, err
	}

	logger.Submission(string(kind), id).Info().Bool("resubmitted", resubmitted).Msg("submission updated")
	return sub, nil
}

// Delete physically removes a submission.
func (s *SubmissionService) Delete(ctx context.Context, actor workflow.Actor, kind workflow.Kind, id string) error {
	sub, err := s.store.FindByID(ctx, kind, id)
	if err != nil {
		return err
	}
	if err := workflow.Authorize(actor, sub.Base().Subject(kind), workflow.OpDelete, ""); err != nil {
		return err
	}
	if err := s.store.DeleteByID(ctx, kind, id); err != nil {
		return err
	}

	logger.Submission(string(kind), id).Info().Str("actor", actor.ID).Msg("submission deleted")
	return nil
}

// Leave removes the caller from the roster without touching the status.
func (s *SubmissionService) Leave(ctx context.Context, actor workflow.Actor, kind workflow.Kind, id string) (models.Submission, error) {
	sub, err := s.store.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	base := sub.Base()

	if err := workflow.Authorize(actor, base.Subject(kind), workflow.OpLeave, ""); err != nil {
		return nil, err
	}

	email := workflow.NormalizeEmail(actor.Email)
	base.Roster, base.MemberEmails = workflow.RemoveMember(base.Roster, base.MemberEmails, email)
	base.MemberCount = len(base.Roster)

	name := actor.Name
	if name == "" {
		name = email
	}
	base.AppendHistory(base.Status, fmt.Sprintf("%s (%s) a quitté le %s", name, email, kind),
		workflow.Reviewer{ID: actor.ID, Name: actor.Name}, s.now())

	if err := s.store.Save(ctx, sub); err != nil {
		return nil, err
	}

	logger.Submission(string(kind), id).Info().Str("member", email).Msg("member left submission")
	return sub, nil
}

// UpdateAdditionalInfo patches the post-approval info of a project.
func (s *SubmissionService) UpdateAdditionalInfo(ctx context.Context, actor workflow.Actor, id string, in AdditionalInfoInput) (*models.Project, error) {
	sub, err := s.store.FindByID(ctx, workflow.KindProject, id)
	if err != nil {
		return nil, err
	}
	project := sub.(*models.Project)

	if err := workflow.Authorize(actor, project.Subject(workflow.KindProject), workflow.OpAdditionalInfo, ""); err != nil {
		return nil, err
	}

	project.AdditionalInfo = &models.AdditionalInfo{
		PersonalGithub: in.PersonalGithub,
		ProjectGithub:  in.ProjectGithub,
		Documents:      in.Documents,
	}
	if err := s.store.Save(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// Resend re-runs the side effects of the current status, forced.
func (s *SubmissionService) Resend(ctx context.Context, kind workflow.Kind, id string) (models.Submission, error) {
	sub, err := s.store.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	base := sub.Base()

	_, isProject := sub.(*models.Project)
	return s.dispatch(ctx, sub, &SideEffectTask{
		Kind:         kind,
		SubmissionID: base.ID,
		Status:       base.Status,
		Notify:       true,
		Register:     isProject && base.Status == workflow.StatusApproved,
		Force:        true,
	}), nil
}

// dispatch hands side effects to the queue after the write has committed.
// Errors are logged only. With an inline queue the stored document may have
// changed (registration outcome), so it is reloaded.
func (s *SubmissionService) dispatch(ctx context.Context, sub models.Submission, task *SideEffectTask) models.Submission {
	if s.queue == nil || (!task.Notify && !task.Register) {
		return sub
	}

	if err := s.queue.Enqueue(ctx, task); err != nil {
		logger.Submission(string(task.Kind), task.SubmissionID).Error().
			Err(fmt.Errorf("%w: %v", workflow.ErrSideEffect, err)).Msg("side effects could not be dispatched")
		return sub
	}

	if s.queue.IsAsync() {
		return sub
	}
	fresh, err := s.store.FindByID(ctx, task.Kind, task.SubmissionID)
	if err != nil {
		if !errors.Is(err, workflow.ErrNotFound) {
			logger.Warn().Err(err).Str("submission_id", task.SubmissionID).Msg("reload after side effects failed")
		}
		return sub
	}
	return fresh
}

func (s *SubmissionService) buildRoster(ctx context.Context, submitter workflow.Actor, emails []string) ([]workflow.Member, error) {
	var lookup workflow.LookupFunc
	if s.resolver != nil {
		resolved, err := s.resolver.Resolve(ctx, emails)
		if err != nil {
			return nil, err
		}
		lookup = lookupFrom(resolved)
	}
	identity := workflow.Identity{UserID: submitter.ID, Name: submitter.Name, Email: submitter.Email}
	return workflow.BuildRoster(identity, emails, lookup), nil
}

func completedComment(kind workflow.Kind) string {
	if kind == workflow.KindWorkshop {
		return "Workshop marqué comme terminé"
	}
	return "Projet marqué comme terminé"
}

func resubmitterLabel(kind workflow.Kind) string {
	if kind == workflow.KindWorkshop {
		return "l'intervenant"
	}
	return "l'étudiant"
}
