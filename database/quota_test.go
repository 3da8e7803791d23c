package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/outboundlabs/relay/model"
)

func TestIncrementQuotaCounters(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO quota_counters").
		WithArgs(DimensionGlobalDaily, model.DayBucket(now)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO quota_counters").
		WithArgs(DimensionGlobalWeekly, model.WeekBucket(now)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO quota_counters").
		WithArgs(DimensionRecipientWeekly, model.RecipientWeekBucket("jane@acme.com", now)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = ds.IncrementQuotaCounters(context.Background(), "jane@acme.com", now)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementQuotaCounters_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO quota_counters").
		WithArgs(DimensionGlobalDaily, model.DayBucket(now)).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err = ds.IncrementQuotaCounters(context.Background(), "jane@acme.com", now)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetQuotaCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT count FROM quota_counters").
		WithArgs(DimensionGlobalDaily, model.DayBucket(now)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery("SELECT count FROM quota_counters").
		WithArgs(DimensionGlobalWeekly, model.WeekBucket(now)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	// No row for the recipient this week: reads as zero.
	mock.ExpectQuery("SELECT count FROM quota_counters").
		WithArgs(DimensionRecipientWeekly, model.RecipientWeekBucket("jane@acme.com", now)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}))

	daily, weekly, recipientWeekly, err := ds.GetQuotaCounts(context.Background(), "jane@acme.com", now)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), daily)
	assert.Equal(t, int64(12), weekly)
	assert.Equal(t, int64(0), recipientWeekly)

	assert.NoError(t, mock.ExpectationsWereMet())
}
