package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/outboundlabs/relay/model"
)

// Quota dimension names as stored in quota_counters.
const (
	DimensionGlobalDaily     = "global_daily"
	DimensionGlobalWeekly    = "global_weekly"
	DimensionRecipientWeekly = "recipient_weekly"
)

const upsertCounterSQL = `
	INSERT INTO quota_counters (dimension, bucket_key, count, updated_at)
	VALUES ($1, $2, 1, NOW())
	ON CONFLICT (dimension, bucket_key)
	DO UPDATE SET count = quota_counters.count + 1, updated_at = NOW()
`

// IncrementQuotaCounters bumps all three quota dimensions for the current
// buckets in a single transaction. Counters only ever increase within a
// bucket; a fresh bucket key starts from zero implicitly.
func (d Datasource) IncrementQuotaCounters(ctx context.Context, recipient string, now time.Time) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin quota transaction")
	}

	increments := [][2]string{
		{DimensionGlobalDaily, model.DayBucket(now)},
		{DimensionGlobalWeekly, model.WeekBucket(now)},
		{DimensionRecipientWeekly, model.RecipientWeekBucket(recipient, now)},
	}
	for _, inc := range increments {
		if _, err := tx.ExecContext(ctx, upsertCounterSQL, inc[0], inc[1]); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "failed to increment %s counter", inc[0])
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit quota transaction")
	}
	return nil
}

// GetQuotaCounts reads the current bucket counters for all three
// dimensions. A missing counter row reads as zero.
func (d Datasource) GetQuotaCounts(ctx context.Context, recipient string, now time.Time) (daily, weekly, recipientWeekly int64, err error) {
	daily, err = d.getCounter(ctx, DimensionGlobalDaily, model.DayBucket(now))
	if err != nil {
		return 0, 0, 0, err
	}
	weekly, err = d.getCounter(ctx, DimensionGlobalWeekly, model.WeekBucket(now))
	if err != nil {
		return 0, 0, 0, err
	}
	recipientWeekly, err = d.getCounter(ctx, DimensionRecipientWeekly, model.RecipientWeekBucket(recipient, now))
	if err != nil {
		return 0, 0, 0, err
	}
	return daily, weekly, recipientWeekly, nil
}

func (d Datasource) getCounter(ctx context.Context, dimension, bucketKey string) (int64, error) {
	var count int64
	err := d.Conn.QueryRowContext(ctx, `
		SELECT count FROM quota_counters WHERE dimension = $1 AND bucket_key = $2
	`, dimension, bucketKey).Scan(&count)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to read quota counter")
	}
	return count, nil
}
