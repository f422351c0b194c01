// Package pipeline turns a tenant's member records into a persisted batch of
// renewal reminders: compute remaining days, classify and filter, render, persist.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	batchdomain "github.com/smallbiznis/renewly/internal/batch/domain"
	"github.com/smallbiznis/renewly/internal/calendar"
	"github.com/smallbiznis/renewly/internal/clock"
	historydomain "github.com/smallbiznis/renewly/internal/history/domain"
	messagedomain "github.com/smallbiznis/renewly/internal/message/domain"
	obscontext "github.com/smallbiznis/renewly/internal/observability/context"
	obslogger "github.com/smallbiznis/renewly/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/renewly/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	GenID     *snowflake.Node
	Store     batchdomain.Store
	Templates messagedomain.Service
	History   historydomain.Recorder
	Config    Config                      `optional:"true"`
	Metrics   *obsmetrics.PipelineMetrics `optional:"true"`
	Events    *obsmetrics.Metrics         `optional:"true"`
	NewID     func() string               `name:"batch_id_generator" optional:"true"`
}

type Pipeline struct {
	log       *zap.Logger
	cfg       Config
	clock     clock.Clock
	genID     *snowflake.Node
	store     batchdomain.Store
	templates messagedomain.Service
	history   historydomain.Recorder
	metrics   *obsmetrics.PipelineMetrics
	events    *obsmetrics.Metrics
	newID     func() string
	tracer    trace.Tracer
}

func New(p Params) (*Pipeline, error) {
	if p.Log == nil || p.Clock == nil || p.GenID == nil || p.Store == nil || p.Templates == nil || p.History == nil {
		return nil, ErrInvalidConfig
	}
	newID := p.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Pipeline{
		log:       p.Log.Named("pipeline").With(zap.String("component", "pipeline")),
		cfg:       p.Config.withDefaults(),
		clock:     p.Clock,
		genID:     p.GenID,
		store:     p.Store,
		templates: p.Templates,
		history:   p.History,
		metrics:   p.Metrics,
		events:    p.Events,
		newID:     newID,
		tracer:    otel.Tracer("renewly/pipeline"),
	}, nil
}

// Run executes the four stages in order. On error nothing was persisted and the
// error is a *RunError naming the failed stage.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (*Result, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.Int("pipeline.total_rows", len(req.Members)),
	))
	defer span.End()

	res, err := p.run(ctx, req)
	if err != nil {
		stage := StageOf(err)
		p.metrics.IncStageError(stage, err)
		p.metrics.ObserveRun(obsmetrics.RunOutcomeFailure, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		obslogger.WithContext(ctx, p.log).Warn("pipeline run failed",
			zap.String("stage", stage),
			zap.Int("total_rows", len(req.Members)),
			zap.Error(err),
		)
		return nil, err
	}

	p.metrics.ObserveRun(obsmetrics.RunOutcomeSuccess, time.Since(start))
	p.metrics.AddExcluded(res.Excluded)
	for _, tier := range calendar.Tiers {
		p.metrics.AddMembers(tier.String(), res.TierCounts[tier])
		p.events.RecordMessagesRendered(ctx, tier.String(), res.TierCounts[tier])
	}
	span.SetAttributes(
		attribute.String("batch_id", res.BatchID),
		attribute.Int("pipeline.member_count", res.MemberCount),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, req RunRequest) (*Result, error) {
	tenant := Tenant{ID: req.Tenant.ID, Name: strings.TrimSpace(req.Tenant.Name)}
	if tenant.ID == 0 || tenant.Name == "" {
		return nil, &RunError{Stage: StageValidate, Err: ErrInvalidTenant}
	}
	sourceLabel := strings.TrimSpace(req.SourceLabel)

	// Resolved once; every record in the run is classified against the same day.
	reference := calendar.ReferenceDate(p.clock.Now(), p.cfg.Location)
	batchID := p.newID()
	ctx = obscontext.WithBatchID(ctx, batchID)
	log := obslogger.WithContext(ctx, p.log).With(zap.String("tenant_id", tenant.ID.String()))

	var remaining []remainingMember
	err := p.stage(ctx, StageComputeRemaining, func(context.Context) error {
		var err error
		remaining, err = computeRemaining(req.Members, reference)
		return err
	})
	if err != nil {
		return nil, err
	}

	var (
		classified []ClassifiedMember
		counts     calendar.TierCounts
		excluded   int
	)
	err = p.stage(ctx, StageClassifyAndFilter, func(context.Context) error {
		classified, counts, excluded = classifyAndFilter(remaining)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var messages []batchdomain.OutboundMessage
	err = p.stage(ctx, StageGenerateMessages, func(ctx context.Context) error {
		engine, err := p.templates.EngineFor(ctx, tenant.ID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTemplates, err)
		}
		messages, err = generateMessages(classified, engine, tenant.Name)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, StagePersist, func(ctx context.Context) error {
		record, err := p.buildRecord(tenant, batchID, sourceLabel, reference, len(req.Members), classified, messages, counts)
		if err != nil {
			return err
		}
		if err := p.store.SaveBatch(ctx, record); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.events.RecordBatchPersisted(ctx, sourceKind(sourceLabel))

	res := &Result{
		BatchID:       batchID,
		ReferenceDate: reference,
		TotalRows:     len(req.Members),
		MemberCount:   len(classified),
		Excluded:      excluded,
		TierCounts:    counts,
		Messages:      messages,
	}
	res.HistoryRecorded = p.recordHistory(ctx, tenant, res, sourceLabel)

	log.Info("pipeline run completed",
		zap.String("reference_date", calendar.FormatISODate(reference)),
		zap.Int("total_rows", res.TotalRows),
		zap.Int("member_count", res.MemberCount),
		zap.Int("excluded", res.Excluded),
		zap.Bool("history_recorded", res.HistoryRecorded),
	)
	return res, nil
}

// stage runs fn inside a child span and tags any error with the stage name.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	obslogger.WithContext(ctx, p.log).Debug("pipeline stage finished",
		zap.String("stage", name),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Bool("ok", err == nil),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name)
		return &RunError{Stage: name, Err: err}
	}
	return nil
}

// buildRecord links each message to its subscription row by generated id and
// fills the ids back into messages so the result matches what was stored.
func (p *Pipeline) buildRecord(
	tenant Tenant,
	batchID, sourceLabel string,
	reference time.Time,
	totalRows int,
	classified []ClassifiedMember,
	messages []batchdomain.OutboundMessage,
	counts calendar.TierCounts,
) (batchdomain.Record, error) {
	snapshot, err := tierCountsJSON(counts)
	if err != nil {
		return batchdomain.Record{}, err
	}
	now := p.clock.Now()

	record := batchdomain.Record{
		Batch: batchdomain.Batch{
			ID:            p.genID.Generate(),
			TenantID:      tenant.ID,
			BatchID:       batchID,
			SourceLabel:   sourceLabel,
			ReferenceDate: reference,
			TotalRows:     totalRows,
			MemberCount:   len(classified),
			TierCounts:    snapshot,
			CreatedAt:     now,
		},
		Subscriptions: make([]batchdomain.Subscription, 0, len(classified)),
		Messages:      make([]batchdomain.Message, 0, len(messages)),
	}
	for i, m := range classified {
		subID := p.genID.Generate()
		msgID := p.genID.Generate()
		record.Subscriptions = append(record.Subscriptions, batchdomain.Subscription{
			ID:            subID,
			TenantID:      tenant.ID,
			BatchID:       batchID,
			CustomerName:  m.CustomerName,
			PhoneNumber:   m.PhoneNumber,
			StartDate:     calendar.CivilDate(m.StartDate),
			EndDate:       calendar.CivilDate(m.EndDate),
			DaysRemaining: m.DaysRemaining,
			Tier:          int(m.Tier),
			CreatedAt:     now,
		})
		msg := &messages[i]
		msg.ID = msgID
		msg.SubscriptionID = subID
		record.Messages = append(record.Messages, batchdomain.Message{
			ID:             msgID,
			TenantID:       tenant.ID,
			BatchID:        batchID,
			SubscriptionID: subID,
			CustomerName:   msg.CustomerName,
			PhoneNumber:    msg.PhoneNumber,
			EndDate:        msg.EndDate,
			DaysRemaining:  msg.DaysRemaining,
			Tier:           int(msg.Tier),
			MessageText:    msg.MessageText,
			CreatedAt:      now,
		})
	}
	return record, nil
}

// recordHistory is best effort: the batch is already committed, so a failure
// is logged, counted and reported on the result instead of failing the run.
func (p *Pipeline) recordHistory(ctx context.Context, tenant Tenant, res *Result, sourceLabel string) bool {
	err := p.history.RecordUpload(ctx, historydomain.RecordUploadRequest{
		TenantID:      tenant.ID,
		BatchID:       res.BatchID,
		SourceLabel:   sourceLabel,
		TotalRows:     res.TotalRows,
		ProcessedRows: res.MemberCount,
	})
	if err == nil {
		return true
	}
	p.metrics.IncHistoryFailure()
	obslogger.WithContext(ctx, p.log).Warn("upload history not recorded",
		zap.String("tenant_id", tenant.ID.String()),
		zap.Error(err),
	)
	return false
}

func tierCountsJSON(counts calendar.TierCounts) (datatypes.JSON, error) {
	byKey := make(map[string]int, len(counts))
	for tier, n := range counts {
		byKey[tier.String()] = n
	}
	b, err := json.Marshal(byKey)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// sourceKind keeps the metric label bounded to the file extension.
func sourceKind(label string) string {
	idx := strings.LastIndex(label, ".")
	if idx < 0 || idx == len(label)-1 {
		return "none"
	}
	ext := strings.ToLower(label[idx+1:])
	switch ext {
	case "xlsx", "xls", "csv", "json":
		return ext
	default:
		return "other"
	}
}
