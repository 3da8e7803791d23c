package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/outboundlabs/relay/model"
)

func (d Datasource) RecordDraft(ctx context.Context, draft *model.Draft) (*model.Draft, error) {
	metaDataJSON, err := json.Marshal(draft.MetaData)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal draft metadata")
	}

	_, err = d.Conn.ExecContext(ctx,
		`INSERT INTO drafts(draft_id,recipient,subject,body,body_html,status,rejected_reason,approved_by,approved_at,external_message_id,external_thread_id,created_at,meta_data)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		draft.DraftID, draft.Recipient, draft.Subject, draft.Body, draft.BodyHTML, draft.Status,
		nullString(draft.RejectedReason), nullString(draft.ApprovedBy), nullTime(draft.ApprovedAt),
		nullString(draft.ExternalMessageID), nullString(draft.ExternalThreadID), draft.CreatedAt, metaDataJSON,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to record draft")
	}

	return draft, nil
}

func (d Datasource) GetDraft(ctx context.Context, id string) (*model.Draft, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT draft_id, recipient, subject, body, body_html, status, rejected_reason, approved_by, approved_at, external_message_id, external_thread_id, created_at, meta_data
		FROM drafts
		WHERE draft_id = $1
	`, id)

	return scanDraft(row)
}

// GetDraftsByStatus returns drafts in creation order, oldest first.
func (d Datasource) GetDraftsByStatus(ctx context.Context, status string, limit, offset int) ([]model.Draft, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT draft_id, recipient, subject, body, body_html, status, rejected_reason, approved_by, approved_at, external_message_id, external_thread_id, created_at, meta_data
		FROM drafts
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list drafts by status")
	}
	defer func() {
		_ = rows.Close()
	}()

	var drafts []model.Draft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, *draft)
	}
	return drafts, rows.Err()
}

// UpdateDraft writes the mutable draft fields, but only while the stored
// status still matches expectedStatus. Returning false means another caller
// transitioned the draft first; nothing was changed.
func (d Datasource) UpdateDraft(ctx context.Context, draft *model.Draft, expectedStatus string) (bool, error) {
	metaDataJSON, err := json.Marshal(draft.MetaData)
	if err != nil {
		return false, errors.Wrap(err, "failed to marshal draft metadata")
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE drafts
		SET status = $1, rejected_reason = $2, approved_by = $3, approved_at = $4,
		    external_message_id = $5, external_thread_id = $6, meta_data = $7
		WHERE draft_id = $8 AND status = $9
	`, draft.Status, nullString(draft.RejectedReason), nullString(draft.ApprovedBy), nullTime(draft.ApprovedAt),
		nullString(draft.ExternalMessageID), nullString(draft.ExternalThreadID), metaDataJSON,
		draft.DraftID, expectedStatus)
	if err != nil {
		return false, errors.Wrap(err, "failed to update draft")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read update result")
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDraft(row rowScanner) (*model.Draft, error) {
	draft := &model.Draft{}
	var metaDataJSON []byte
	var bodyHTML, rejectedReason, approvedBy, externalMessageID, externalThreadID sql.NullString
	var approvedAt sql.NullTime

	err := row.Scan(&draft.DraftID, &draft.Recipient, &draft.Subject, &draft.Body, &bodyHTML, &draft.Status,
		&rejectedReason, &approvedBy, &approvedAt, &externalMessageID, &externalThreadID, &draft.CreatedAt, &metaDataJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(err, "draft not found")
		}
		return nil, errors.Wrap(err, "failed to retrieve draft")
	}

	draft.BodyHTML = bodyHTML.String
	draft.RejectedReason = rejectedReason.String
	draft.ApprovedBy = approvedBy.String
	draft.ExternalMessageID = externalMessageID.String
	draft.ExternalThreadID = externalThreadID.String
	if approvedAt.Valid {
		draft.ApprovedAt = approvedAt.Time
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &draft.MetaData); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal draft metadata")
		}
	}

	return draft, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
