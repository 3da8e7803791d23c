package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/outboundlabs/relay/model"
)

func draftColumns() []string {
	return []string{"draft_id", "recipient", "subject", "body", "body_html", "status",
		"rejected_reason", "approved_by", "approved_at", "external_message_id", "external_thread_id",
		"created_at", "meta_data"}
}

func TestRecordDraft_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	draft := &model.Draft{
		DraftID:   "drf_1",
		Recipient: "jane@acme.com",
		Subject:   "Hello",
		Body:      "A body long enough to matter for this test case.",
		Status:    model.DraftStatusPendingApproval,
		MetaData:  map[string]interface{}{"campaign": "spring"},
		CreatedAt: time.Now(),
	}
	metaDataJSON, err := json.Marshal(draft.MetaData)
	assert.NoError(t, err)

	mock.ExpectExec("INSERT INTO drafts").
		WithArgs(draft.DraftID, draft.Recipient, draft.Subject, draft.Body, draft.BodyHTML, draft.Status,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), metaDataJSON).
		WillReturnResult(sqlmock.NewResult(1, 1))

	recorded, err := ds.RecordDraft(context.Background(), draft)
	assert.NoError(t, err)
	assert.Equal(t, "drf_1", recorded.DraftID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDraft_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()
	metaDataJSON, _ := json.Marshal(map[string]interface{}{"campaign": "spring"})

	mock.ExpectQuery("SELECT draft_id, recipient, subject, body").
		WithArgs("drf_1").
		WillReturnRows(sqlmock.NewRows(draftColumns()).
			AddRow("drf_1", "jane@acme.com", "Hello", "body text", nil, model.DraftStatusApproved,
				nil, "ops@acme.com", now, nil, nil, now, metaDataJSON))

	draft, err := ds.GetDraft(context.Background(), "drf_1")
	assert.NoError(t, err)
	assert.Equal(t, model.DraftStatusApproved, draft.Status)
	assert.Equal(t, "ops@acme.com", draft.ApprovedBy)
	assert.Equal(t, "spring", draft.MetaData["campaign"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDraft_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT draft_id, recipient, subject, body").
		WithArgs("drf_missing").
		WillReturnRows(sqlmock.NewRows(draftColumns()))

	_, err = ds.GetDraft(context.Background(), "drf_missing")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestGetDraftsByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	mock.ExpectQuery("SELECT draft_id, recipient, subject, body").
		WithArgs(model.DraftStatusPendingApproval, 10, 0).
		WillReturnRows(sqlmock.NewRows(draftColumns()).
			AddRow("drf_1", "a@x.com", "First", "body", nil, model.DraftStatusPendingApproval, nil, nil, nil, nil, nil, now, nil).
			AddRow("drf_2", "b@x.com", "Second", "body", nil, model.DraftStatusPendingApproval, nil, nil, nil, nil, nil, now, nil))

	drafts, err := ds.GetDraftsByStatus(context.Background(), model.DraftStatusPendingApproval, 10, 0)
	assert.NoError(t, err)
	assert.Len(t, drafts, 2)
	assert.Equal(t, "drf_1", drafts[0].DraftID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDraft_GuardedByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	draft := &model.Draft{
		DraftID: "drf_1",
		Status:  model.DraftStatusApproved,
	}

	mock.ExpectExec("UPDATE drafts").
		WithArgs(draft.Status, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), draft.DraftID, model.DraftStatusPendingApproval).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := ds.UpdateDraft(context.Background(), draft, model.DraftStatusPendingApproval)
	assert.NoError(t, err)
	assert.True(t, ok)

	// Concurrent transition already moved the draft: zero rows affected.
	mock.ExpectExec("UPDATE drafts").
		WithArgs(draft.Status, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), draft.DraftID, model.DraftStatusPendingApproval).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = ds.UpdateDraft(context.Background(), draft, model.DraftStatusPendingApproval)
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}
