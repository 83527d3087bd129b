package workflow

import (
	"fmt"
	"strings"
)

// Operation names a mutating or reading action on a submission.
type Operation string

const (
	OpView           Operation = "view"
	OpReview         Operation = "review"
	OpComplete       Operation = "complete"
	OpUpdate         Operation = "update"
	OpDelete         Operation = "delete"
	OpLeave          Operation = "leave"
	OpAdditionalInfo Operation = "additional_info"
)

// Subject is the part of a submission the policy needs to decide.
type Subject struct {
	Kind      Kind
	Status    Status
	Submitter Identity
	Roster    []Member
}

func (s Subject) IsOwner(a Actor) bool {
	return a.ID != "" && a.ID == s.Submitter.UserID
}

func (s Subject) IsMember(a Actor) bool {
	email := NormalizeEmail(a.Email)
	if email == "" {
		return false
	}
	for _, m := range s.Roster {
		if m.Email == email {
			return true
		}
	}
	return false
}

type transition struct {
	from, to Status
}

// reviewerTransitions and submitterTransitions are the complete transition
// table. Anything not listed here is rejected.
var reviewerTransitions = map[transition]bool{
	{StatusPending, StatusApproved}:              true,
	{StatusPending, StatusRejected}:              true,
	{StatusPending, StatusPendingChanges}:        true,
	{StatusPendingChanges, StatusApproved}:       true,
	{StatusPendingChanges, StatusRejected}:       true,
	{StatusPendingChanges, StatusPendingChanges}: true,
	{StatusApproved, StatusCompleted}:            true,
}

var submitterTransitions = map[transition]bool{
	{StatusPendingChanges, StatusPending}: true,
}

// CanTransition decides whether actor may move subj from one status to another.
// A reviewer repeating the current review status is accepted so the decision
// can be re-recorded.
func CanTransition(actor Actor, subj Subject, from, to Status) error {
	t := transition{from, to}

	if actor.IsAdmin() {
		if reviewerTransitions[t] || (from == to && IsReviewTarget(to)) {
			return nil
		}
		if submitterTransitions[t] && subj.IsOwner(actor) {
			return nil
		}
		return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, from, to)
	}

	if submitterTransitions[t] {
		if !subj.IsOwner(actor) {
			return fmt.Errorf("%w: only the submitter can resubmit", ErrForbidden)
		}
		return nil
	}

	if reviewerTransitions[t] || IsReviewTarget(to) || to == StatusCompleted {
		return fmt.Errorf("%w: reviewer role required", ErrForbidden)
	}
	return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, from, to)
}

// Authorize is the single permission check consulted by every operation.
// For OpReview and OpComplete, to is the requested status; it is ignored by the
// other operations.
func Authorize(actor Actor, subj Subject, op Operation, to Status) error {
	switch op {
	case OpView:
		if actor.IsAdmin() || subj.IsOwner(actor) || subj.IsMember(actor) {
			return nil
		}
		return fmt.Errorf("%w: not a participant", ErrForbidden)

	case OpReview:
		if !IsReviewTarget(to) {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
		}
		return CanTransition(actor, subj, subj.Status, to)

	case OpComplete:
		if !actor.IsAdmin() {
			return fmt.Errorf("%w: reviewer role required", ErrForbidden)
		}
		if subj.Status != StatusApproved {
			return fmt.Errorf("%w: only approved submissions can be completed", ErrInvalidState)
		}
		return CanTransition(actor, subj, subj.Status, StatusCompleted)

	case OpUpdate:
		if !subj.IsOwner(actor) {
			return fmt.Errorf("%w: only the submitter can edit", ErrForbidden)
		}
		if !subj.Status.Editable() {
			return fmt.Errorf("%w: %s submissions cannot be edited", ErrInvalidState, subj.Status)
		}
		if subj.Status == StatusPendingChanges {
			return CanTransition(actor, subj, StatusPendingChanges, StatusPending)
		}
		return nil

	case OpDelete:
		if actor.IsAdmin() {
			return nil
		}
		if !subj.IsOwner(actor) {
			return fmt.Errorf("%w: only the submitter or an administrator can delete", ErrForbidden)
		}
		if !subj.Status.Editable() {
			return fmt.Errorf("%w: %s submissions cannot be deleted", ErrInvalidState, subj.Status)
		}
		return nil

	case OpLeave:
		email := NormalizeEmail(actor.Email)
		for _, m := range subj.Roster {
			if m.Email != email {
				continue
			}
			if m.IsPrimary {
				return fmt.Errorf("%w: the submitter cannot leave", ErrInvalidState)
			}
			return nil
		}
		if strings.EqualFold(email, subj.Submitter.Email) {
			return fmt.Errorf("%w: the submitter cannot leave", ErrInvalidState)
		}
		return ErrNotAMember

	case OpAdditionalInfo:
		if subj.Kind != KindProject {
			return fmt.Errorf("%w: additional info only applies to projects", ErrValidation)
		}
		if !subj.IsOwner(actor) {
			return fmt.Errorf("%w: only the submitter can add information", ErrForbidden)
		}
		if subj.Status != StatusApproved {
			return fmt.Errorf("%w: additional info requires an approved project", ErrInvalidState)
		}
		return nil
	}

	return fmt.Errorf("%w: unknown operation %q", ErrForbidden, op)
}
