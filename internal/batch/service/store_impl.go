package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	batchdomain "github.com/smallbiznis/renewly/internal/batch/domain"
	"github.com/smallbiznis/renewly/internal/calendar"
	"github.com/smallbiznis/renewly/internal/clock"
	pkgdb "github.com/smallbiznis/renewly/pkg/db"
	"github.com/smallbiznis/renewly/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  batchdomain.Repository
}

type Store struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  batchdomain.Repository
}

func NewStore(p Params) batchdomain.Store {
	return &Store{
		db:    p.DB,
		log:   p.Log.Named("batch.store"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// SaveSubscriptions inserts subs in one transaction; either all rows land or none do.
func (s *Store) SaveSubscriptions(ctx context.Context, subs []batchdomain.Subscription) (int, error) {
	if len(subs) == 0 {
		return 0, nil
	}
	rows := make([]*batchdomain.Subscription, 0, len(subs))
	for i := range subs {
		sub := subs[i]
		if err := s.prepareSubscription(&sub); err != nil {
			return 0, err
		}
		rows = append(rows, &sub)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.InsertSubscriptions(ctx, tx, rows)
	})
	if err != nil {
		return 0, fmt.Errorf("save subscriptions: %w", err)
	}
	return len(rows), nil
}

// SaveMessages inserts msgs in one transaction. Each message must name its subscription row.
func (s *Store) SaveMessages(ctx context.Context, msgs []batchdomain.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	rows := make([]*batchdomain.Message, 0, len(msgs))
	for i := range msgs {
		msg := msgs[i]
		if err := s.prepareMessage(&msg); err != nil {
			return 0, err
		}
		rows = append(rows, &msg)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.InsertMessages(ctx, tx, rows)
	})
	if err != nil {
		return 0, fmt.Errorf("save messages: %w", err)
	}
	return len(rows), nil
}

// SaveBatch writes the batch row, its subscriptions and its messages in one
// transaction. Readers never observe a partially written batch.
func (s *Store) SaveBatch(ctx context.Context, record batchdomain.Record) error {
	batch := record.Batch
	if batch.TenantID == 0 {
		return batchdomain.ErrInvalidTenant
	}
	if strings.TrimSpace(batch.BatchID) == "" {
		return fmt.Errorf("%w: batch id is empty", batchdomain.ErrInvalidRecord)
	}
	if batch.ID == 0 {
		batch.ID = s.genID.Generate()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = s.clock.Now()
	}
	if batch.MemberCount != len(record.Subscriptions) {
		return fmt.Errorf("%w: member count %d does not match %d subscriptions",
			batchdomain.ErrInvalidRecord, batch.MemberCount, len(record.Subscriptions))
	}
	if len(record.Messages) != len(record.Subscriptions) {
		return fmt.Errorf("%w: %d messages for %d subscriptions",
			batchdomain.ErrInvalidRecord, len(record.Messages), len(record.Subscriptions))
	}

	subs := make([]*batchdomain.Subscription, 0, len(record.Subscriptions))
	known := make(map[snowflake.ID]struct{}, len(record.Subscriptions))
	for i := range record.Subscriptions {
		sub := record.Subscriptions[i]
		sub.TenantID = batch.TenantID
		sub.BatchID = batch.BatchID
		if sub.CreatedAt.IsZero() {
			sub.CreatedAt = batch.CreatedAt
		}
		if err := s.prepareSubscription(&sub); err != nil {
			return err
		}
		known[sub.ID] = struct{}{}
		subs = append(subs, &sub)
	}

	msgs := make([]*batchdomain.Message, 0, len(record.Messages))
	linked := make(map[snowflake.ID]struct{}, len(record.Messages))
	for i := range record.Messages {
		msg := record.Messages[i]
		msg.TenantID = batch.TenantID
		msg.BatchID = batch.BatchID
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = batch.CreatedAt
		}
		if err := s.prepareMessage(&msg); err != nil {
			return err
		}
		if _, ok := known[msg.SubscriptionID]; !ok {
			return fmt.Errorf("%w: message %s references unknown subscription %s",
				batchdomain.ErrInvalidRecord, msg.ID, msg.SubscriptionID)
		}
		if _, dup := linked[msg.SubscriptionID]; dup {
			return fmt.Errorf("%w: subscription %s has more than one message",
				batchdomain.ErrInvalidRecord, msg.SubscriptionID)
		}
		linked[msg.SubscriptionID] = struct{}{}
		msgs = append(msgs, &msg)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, batch.TenantID); err != nil {
			return err
		}
		if err := s.repo.InsertBatch(ctx, tx, &batch); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return batchdomain.ErrBatchExists
			}
			return err
		}
		if err := s.repo.InsertSubscriptions(ctx, tx, subs); err != nil {
			return err
		}
		return s.repo.InsertMessages(ctx, tx, msgs)
	})
	if err != nil {
		if errors.Is(err, batchdomain.ErrBatchExists) {
			return err
		}
		return fmt.Errorf("save batch %s: %w", batch.BatchID, err)
	}

	s.log.Debug("batch saved",
		zap.String("tenant_id", batch.TenantID.String()),
		zap.String("batch_id", batch.BatchID),
		zap.Int("member_count", batch.MemberCount),
	)
	return nil
}

func (s *Store) GetBatch(ctx context.Context, tenantID snowflake.ID, batchID string) (*batchdomain.Batch, error) {
	if tenantID == 0 {
		return nil, batchdomain.ErrInvalidTenant
	}
	batch, err := s.repo.FindBatch(ctx, s.db, tenantID, strings.TrimSpace(batchID))
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, batchdomain.ErrBatchNotFound
	}
	return batch, nil
}

// GetByBatch returns the batch's messages ordered by tier, then days remaining.
func (s *Store) GetByBatch(ctx context.Context, tenantID snowflake.ID, batchID string) ([]batchdomain.OutboundMessage, error) {
	if _, err := s.GetBatch(ctx, tenantID, batchID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, s.db, tenantID, strings.TrimSpace(batchID), nil)
}

func (s *Store) ListByTier(ctx context.Context, tenantID snowflake.ID, batchID string, tier calendar.Tier) ([]batchdomain.OutboundMessage, error) {
	if !tier.Valid() {
		return nil, batchdomain.ErrInvalidTier
	}
	if _, err := s.GetBatch(ctx, tenantID, batchID); err != nil {
		return nil, err
	}
	value := int(tier)
	return s.repo.ListMessages(ctx, s.db, tenantID, strings.TrimSpace(batchID), &value)
}

func (s *Store) GetLatestBatchID(ctx context.Context, tenantID snowflake.ID) (string, bool, error) {
	if tenantID == 0 {
		return "", false, batchdomain.ErrInvalidTenant
	}
	batch, err := s.repo.FindLatestBatch(ctx, s.db, tenantID)
	if err != nil {
		return "", false, err
	}
	if batch == nil {
		return "", false, nil
	}
	return batch.BatchID, true, nil
}

// GetTierCounts tallies persisted messages per tier; tiers without rows report zero.
func (s *Store) GetTierCounts(ctx context.Context, tenantID snowflake.ID, batchID string) (calendar.TierCounts, error) {
	if _, err := s.GetBatch(ctx, tenantID, batchID); err != nil {
		return nil, err
	}
	rows, err := s.repo.CountByTier(ctx, s.db, tenantID, strings.TrimSpace(batchID))
	if err != nil {
		return nil, err
	}
	counts := calendar.NewTierCounts()
	for _, row := range rows {
		counts[calendar.Tier(row.Tier)] = row.Count
	}
	return counts, nil
}

func (s *Store) prepareSubscription(sub *batchdomain.Subscription) error {
	if sub.ID == 0 || sub.TenantID == 0 || strings.TrimSpace(sub.BatchID) == "" {
		return fmt.Errorf("%w: subscription is missing identifiers", batchdomain.ErrInvalidRecord)
	}
	if !calendar.Tier(sub.Tier).Valid() {
		return fmt.Errorf("%w: subscription %s has tier %d", batchdomain.ErrInvalidTier, sub.ID, sub.Tier)
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.clock.Now()
	}
	sub.StartDate = calendar.CivilDate(sub.StartDate)
	sub.EndDate = calendar.CivilDate(sub.EndDate)
	return nil
}

func (s *Store) prepareMessage(msg *batchdomain.Message) error {
	if msg.ID == 0 || msg.TenantID == 0 || msg.SubscriptionID == 0 || strings.TrimSpace(msg.BatchID) == "" {
		return fmt.Errorf("%w: message is missing identifiers", batchdomain.ErrInvalidRecord)
	}
	if !calendar.Tier(msg.Tier).Valid() {
		return fmt.Errorf("%w: message %s has tier %d", batchdomain.ErrInvalidTier, msg.ID, msg.Tier)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.clock.Now()
	}
	msg.EndDate = calendar.CivilDate(msg.EndDate)
	return nil
}
