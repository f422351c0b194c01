package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	batchdomain "github.com/smallbiznis/renewly/internal/batch/domain"
	"github.com/smallbiznis/renewly/internal/calendar"
	"github.com/smallbiznis/renewly/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() batchdomain.Repository {
	return &repo{}
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, batch *batchdomain.Batch) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO batches (
			id, tenant_id, batch_id, source_label, reference_date, total_rows, member_count, tier_counts, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batch.ID,
		batch.TenantID,
		batch.BatchID,
		batch.SourceLabel,
		batch.ReferenceDate,
		batch.TotalRows,
		batch.MemberCount,
		batch.TierCounts,
		batch.CreatedAt,
	).Error
}

func (r *repo) InsertSubscriptions(ctx context.Context, db *gorm.DB, subs []*batchdomain.Subscription) error {
	return repository.ProvideStore[batchdomain.Subscription](db).BatchCreate(ctx, subs)
}

func (r *repo) InsertMessages(ctx context.Context, db *gorm.DB, msgs []*batchdomain.Message) error {
	return repository.ProvideStore[batchdomain.Message](db).BatchCreate(ctx, msgs)
}

func (r *repo) FindBatch(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, batchID string) (*batchdomain.Batch, error) {
	var batch batchdomain.Batch
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, batch_id, source_label, reference_date, total_rows, member_count, tier_counts, created_at
		 FROM batches
		 WHERE tenant_id = ? AND batch_id = ?`,
		tenantID,
		batchID,
	).Scan(&batch).Error
	if err != nil {
		return nil, err
	}
	if batch.ID == 0 {
		return nil, nil
	}
	batch.ReferenceDate = normalizeDate(batch.ReferenceDate)
	return &batch, nil
}

func (r *repo) FindLatestBatch(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (*batchdomain.Batch, error) {
	var batch batchdomain.Batch
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, batch_id, source_label, reference_date, total_rows, member_count, tier_counts, created_at
		 FROM batches
		 WHERE tenant_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		tenantID,
	).Scan(&batch).Error
	if err != nil {
		return nil, err
	}
	if batch.ID == 0 {
		return nil, nil
	}
	batch.ReferenceDate = normalizeDate(batch.ReferenceDate)
	return &batch, nil
}

type messageRow struct {
	ID             snowflake.ID
	SubscriptionID snowflake.ID
	CustomerName   string
	PhoneNumber    string
	EndDate        time.Time
	DaysRemaining  int
	Tier           int
	MessageText    string
}

func (r *repo) ListMessages(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, batchID string, tier *int) ([]batchdomain.OutboundMessage, error) {
	stmt := db.WithContext(ctx).
		Table("batch_messages").
		Select("id, subscription_id, customer_name, phone_number, end_date, days_remaining, tier, message_text").
		Where("tenant_id = ? AND batch_id = ?", tenantID, batchID)
	if tier != nil {
		stmt = stmt.Where("tier = ?", *tier)
	}

	var rows []messageRow
	if err := stmt.Order("tier ASC, days_remaining ASC, id ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]batchdomain.OutboundMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, batchdomain.OutboundMessage{
			ID:             row.ID,
			SubscriptionID: row.SubscriptionID,
			CustomerName:   row.CustomerName,
			PhoneNumber:    row.PhoneNumber,
			EndDate:        normalizeDate(row.EndDate),
			DaysRemaining:  row.DaysRemaining,
			Tier:           calendar.Tier(row.Tier),
			MessageText:    row.MessageText,
		})
	}
	return out, nil
}

func (r *repo) CountByTier(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, batchID string) ([]batchdomain.TierCount, error) {
	var counts []batchdomain.TierCount
	err := db.WithContext(ctx).Raw(
		`SELECT tier, COUNT(*) AS count
		 FROM batch_messages
		 WHERE tenant_id = ? AND batch_id = ?
		 GROUP BY tier`,
		tenantID,
		batchID,
	).Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// Drivers hand DATE columns back at midnight in differing zones; keep the Y-M-D as read.
func normalizeDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return calendar.CivilDate(t)
}
