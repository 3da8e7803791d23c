package relay

import (
	"context"
	"errors"
	"time"

	redlock "github.com/outboundlabs/relay/internal/lock"
	"github.com/outboundlabs/relay/internal/notification"
	"github.com/outboundlabs/relay/internal/resilience"
	"github.com/sirupsen/logrus"

	"github.com/outboundlabs/relay/config"
	"github.com/outboundlabs/relay/model"
)

const (
	StatusPendingApproval = model.DraftStatusPendingApproval
	StatusApproved        = model.DraftStatusApproved
	StatusRejected        = model.DraftStatusRejected
	StatusSent            = model.DraftStatusSent
)

const sendLockTimeout = 5 * time.Minute

// CreateDraft validates and persists a new outbound draft. A body shorter
// than the minimum is rejected immediately and returned as a terminal
// REJECTED draft, not as an error. Otherwise the draft lands in
// PENDING_APPROVAL, or directly in APPROVED when the approval policy does
// not require a human.
func (r *Relay) CreateDraft(ctx context.Context, req model.NewDraftRequest) (*model.Draft, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	draft := &model.Draft{
		DraftID:   model.GenerateUUIDWithSuffix("drf"),
		Recipient: model.NormalizeEmail(req.Recipient),
		Subject:   req.Subject,
		Body:      req.Body,
		BodyHTML:  req.BodyHTML,
		MetaData:  req.MetaData,
		CreatedAt: time.Now(),
	}

	switch {
	case len(req.Body) < model.MinDraftBodyLength:
		draft.Status = StatusRejected
		draft.RejectedReason = "message too short"
	case cnf.Approval.Required:
		draft.Status = StatusPendingApproval
	default:
		draft.Status = StatusApproved
		draft.ApprovedAt = time.Now()
		draft.ApprovedBy = cnf.Approval.AutoApprover
	}

	draft, err = r.datasource.RecordDraft(ctx, draft)
	if err != nil {
		return nil, err
	}

	r.postDraftEvent("draft.created", draft)
	return draft, nil
}

// ApproveDraft moves a pending draft to APPROVED. Any other current state
// yields an InvalidTransitionError and leaves the draft untouched. Two
// concurrent approvals race on the conditional update; exactly one wins.
func (r *Relay) ApproveDraft(ctx context.Context, id, approverID string) (*model.Draft, error) {
	draft, err := r.datasource.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if !draft.CanTransition(StatusApproved) {
		return nil, &InvalidTransitionError{DraftID: id, FromStatus: draft.Status, ToStatus: StatusApproved}
	}

	observed := draft.Status
	draft.Status = StatusApproved
	draft.ApprovedAt = time.Now()
	draft.ApprovedBy = approverID

	ok, err := r.datasource.UpdateDraft(ctx, draft, observed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &InvalidTransitionError{DraftID: id, FromStatus: observed, ToStatus: StatusApproved}
	}

	r.postDraftEvent("draft.approved", draft)
	return draft, nil
}

// RejectDraft terminally rejects a draft. Valid from PENDING_APPROVAL
// (human rejection) and from APPROVED (the automatic safety rejection path
// inside SendDraft).
func (r *Relay) RejectDraft(ctx context.Context, id, reason, actorID string) (*model.Draft, error) {
	draft, err := r.datasource.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if !draft.CanTransition(StatusRejected) {
		return nil, &InvalidTransitionError{DraftID: id, FromStatus: draft.Status, ToStatus: StatusRejected}
	}

	observed := draft.Status
	draft.Status = StatusRejected
	draft.RejectedReason = reason
	draft.EnsureMetaData()
	draft.MetaData["relay_rejected_by"] = actorID

	ok, err := r.datasource.UpdateDraft(ctx, draft, observed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &InvalidTransitionError{DraftID: id, FromStatus: observed, ToStatus: StatusRejected}
	}

	r.postDraftEvent("draft.rejected", draft)
	return draft, nil
}

// SendDraft dispatches an approved draft: quota check, safety validation,
// then the resilient call to the content dispatcher. A quota block or a
// transient dispatch failure leaves the draft APPROVED for a later retry; a
// safety violation terminally rejects it. The quota counters are recorded
// exactly once, only after the provider confirmed the send.
func (r *Relay) SendDraft(ctx context.Context, id, actorID string) (*model.Draft, error) {
	draft, err := r.datasource.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft.Status != StatusApproved {
		return nil, &InvalidTransitionError{DraftID: id, FromStatus: draft.Status, ToStatus: StatusSent}
	}

	// Serialize sends per draft and per recipient. The recipient lease is
	// what keeps two concurrent sends from both squeezing past the final
	// unit of the per-recipient quota.
	draftLock := redlock.NewLocker(r.redis, "relay:send:draft:"+draft.DraftID, model.GenerateUUIDWithSuffix("loc"))
	if err := draftLock.Lock(ctx, sendLockTimeout); err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			return nil, &SendInProgressError{DraftID: id}
		}
		return nil, err
	}
	defer func(ctx context.Context) {
		if err := draftLock.Unlock(ctx); err != nil {
			logrus.Error("lock error", err)
		}
	}(ctx)

	recipientLock := redlock.NewLocker(r.redis, "relay:send:rcpt:"+draft.Recipient, model.GenerateUUIDWithSuffix("loc"))
	if err := recipientLock.WaitLock(ctx, sendLockTimeout, 10*time.Second); err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			return nil, &SendInProgressError{DraftID: id}
		}
		return nil, err
	}
	defer func(ctx context.Context) {
		if err := recipientLock.Unlock(ctx); err != nil {
			logrus.Error("lock error", err)
		}
	}(ctx)

	// (a) quota: a block is retryable later, the draft stays APPROVED.
	violation, err := r.quota.violated(ctx, draft.Recipient)
	if err != nil {
		return nil, err
	}
	if violation != nil {
		return draft, violation
	}

	// (b) safety: a violation terminally rejects the approved draft.
	report, err := r.safety.Validate(ctx, draft.Recipient, draft.Subject, draft.Body, draft.BodyHTML)
	if err != nil {
		return nil, err
	}
	if !report.Safe {
		rejected, rejectErr := r.rejectForSafety(ctx, draft, report.Violations)
		if rejectErr != nil {
			return nil, rejectErr
		}
		return rejected, &SafetyViolationError{DraftID: id, Violations: report.Violations}
	}

	// (c) dispatch through retry + circuit breaker. No fallback: an open
	// breaker surfaces as a fast dispatch failure.
	result, err := r.executor.Protect(ctx, r.breaker, func(ctx context.Context) (any, error) {
		return r.executor.Call(ctx, "content dispatch", func(ctx context.Context) (any, error) {
			return r.dispatcher.Send(ctx, draft.Recipient, draft.Subject, draft.Body, draft.BodyHTML)
		})
	}, nil)
	if err != nil {
		return r.recordDispatchFailure(ctx, draft, err)
	}

	receipt, ok := result.(*DispatchReceipt)
	if !ok || receipt == nil {
		receipt = &DispatchReceipt{}
	}

	draft.Status = StatusSent
	draft.ExternalMessageID = receipt.ExternalMessageID
	draft.ExternalThreadID = receipt.ExternalThreadID
	draft.EnsureMetaData()
	draft.MetaData["relay_sent_by"] = actorID

	updated, err := r.datasource.UpdateDraft(ctx, draft, StatusApproved)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, &InvalidTransitionError{DraftID: id, FromStatus: StatusApproved, ToStatus: StatusSent}
	}

	if err := r.quota.RecordSend(ctx, draft.Recipient); err != nil {
		// The message left the building; a counter failure must not undo
		// that. Flag it loudly instead.
		notification.NotifyError(err)
	}

	r.postDraftEvent("draft.sent", draft)
	return draft, nil
}

func (r *Relay) GetDraft(ctx context.Context, id string) (*model.Draft, error) {
	return r.datasource.GetDraft(ctx, id)
}

// ListPendingDrafts returns drafts awaiting approval in creation order.
func (r *Relay) ListPendingDrafts(ctx context.Context, limit, offset int) ([]model.Draft, error) {
	return r.datasource.GetDraftsByStatus(ctx, StatusPendingApproval, limit, offset)
}

// rejectForSafety is the one APPROVED -> REJECTED edge: the safety
// validator flagged the content at send time.
func (r *Relay) rejectForSafety(ctx context.Context, draft *model.Draft, violations []string) (*model.Draft, error) {
	draft.Status = StatusRejected
	draft.RejectedReason = "safety validation failed"
	draft.EnsureMetaData()
	draft.MetaData["relay_safety_violations"] = violations

	ok, err := r.datasource.UpdateDraft(ctx, draft, StatusApproved)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &InvalidTransitionError{DraftID: draft.DraftID, FromStatus: StatusApproved, ToStatus: StatusRejected}
	}

	r.postDraftEvent("draft.rejected", draft)
	return draft, nil
}

// recordDispatchFailure keeps the draft APPROVED and writes the failure
// into metadata so an operator or a later scheduled pass can retry it.
func (r *Relay) recordDispatchFailure(ctx context.Context, draft *model.Draft, dispatchErr error) (*model.Draft, error) {
	attempts := 0
	var exhausted *resilience.RetriesExhaustedError
	if errors.As(dispatchErr, &exhausted) {
		attempts = exhausted.Attempts
	}

	draft.EnsureMetaData()
	draft.MetaData["relay_last_dispatch_error"] = dispatchErr.Error()
	draft.MetaData["relay_last_dispatch_attempts"] = attempts
	draft.MetaData["relay_dispatch_failed_at"] = time.Now().UTC().Format(time.RFC3339)

	if _, err := r.datasource.UpdateDraft(ctx, draft, StatusApproved); err != nil {
		logrus.Errorf("failed to record dispatch failure for draft %s: %v", draft.DraftID, err)
	}

	return draft, &DispatchFailureError{DraftID: draft.DraftID, Attempts: attempts, LastErr: dispatchErr}
}
