package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/outboundlabs/relay/model"
)

func (d Datasource) RecordQueuedContact(ctx context.Context, c *model.QueuedContact) (*model.QueuedContact, error) {
	_, err := d.Conn.ExecContext(ctx,
		`INSERT INTO queued_contacts(contact_id,email,name,company,job_title,source,static_priority_score,status,queued_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ContactID, c.Email, nullString(c.Name), nullString(c.Company), nullString(c.JobTitle),
		nullString(c.Source), c.StaticPriorityScore, c.Status, c.QueuedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to record queued contact")
	}
	return c, nil
}

// QueuedEmailExists checks backlog membership case-insensitively, only
// counting entries that are still live.
func (d Datasource) QueuedEmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM queued_contacts
			WHERE LOWER(email) = LOWER($1)
			AND status IN ('QUEUED', 'PROCESSING')
		)
	`, email).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check queued email")
	}
	return exists, nil
}

// GetNextQueuedContact returns the highest-priority QUEUED entry, ties
// broken by arrival order. Returns nil without error when the backlog is
// empty.
func (d Datasource) GetNextQueuedContact(ctx context.Context) (*model.QueuedContact, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT contact_id, email, name, company, job_title, source, static_priority_score, status, queued_at, processed_at, error_message
		FROM queued_contacts
		WHERE status = 'QUEUED'
		ORDER BY static_priority_score DESC, queued_at ASC, id ASC
		LIMIT 1
	`)

	contact := &model.QueuedContact{}
	var name, company, jobTitle, source, errorMessage sql.NullString
	var processedAt sql.NullTime

	err := row.Scan(&contact.ContactID, &contact.Email, &name, &company, &jobTitle, &source,
		&contact.StaticPriorityScore, &contact.Status, &contact.QueuedAt, &processedAt, &errorMessage)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to retrieve next queued contact")
	}

	contact.Name = name.String
	contact.Company = company.String
	contact.JobTitle = jobTitle.String
	contact.Source = source.String
	contact.ErrorMessage = errorMessage.String
	if processedAt.Valid {
		contact.ProcessedAt = processedAt.Time
	}
	return contact, nil
}

// UpdateContactStatus transitions a contact, guarded by the expected
// current status. Terminal transitions stamp processed_at so a restart
// never reprocesses a completed entry.
func (d Datasource) UpdateContactStatus(ctx context.Context, id, fromStatus, toStatus, errorMessage string) (bool, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE queued_contacts
		SET status = $1,
		    error_message = $2,
		    processed_at = CASE WHEN $1 IN ('COMPLETED', 'FAILED') THEN NOW() ELSE processed_at END
		WHERE contact_id = $3 AND status = $4
	`, toStatus, nullString(errorMessage), id, fromStatus)
	if err != nil {
		return false, errors.Wrap(err, "failed to update contact status")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read update result")
	}
	return affected > 0, nil
}

func (d Datasource) CountContactsByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM queued_contacts GROUP BY status
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count contacts")
	}
	defer func() {
		_ = rows.Close()
	}()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan contact count")
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
