package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/metrics"
	"github.com/angelmondragon/settlement-engine/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxIdleBackoff        = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	InsertDLQTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// outcome is what happened to one outbox row during a drain.
type outcome string

const (
	outcomePublished    outcome = "published"
	outcomeRetrying     outcome = "retrying"
	outcomeDeadLettered outcome = "dead_lettered"
	outcomeHeld         outcome = "held"
)

type RelayParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         txRunner
	PubSub     topicClient
	Store      outboxStore
	Registry   eventResolver
	Metrics    *metrics.SettlementMetrics
	Publishers func(topic string) topicPublisher
	Now        func() time.Time
}

// Relay moves committed outbox rows onto their Pub/Sub topics.
type Relay struct {
	logg       *logger.Logger
	db         txRunner
	pubsub     topicClient
	store      outboxStore
	registry   eventResolver
	metrics    *metrics.SettlementMetrics
	publishers func(topic string) topicPublisher
	policies   policyBook
	batchSize  int
	interval   time.Duration
	now        func() time.Time
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Store == nil:
		return nil, errors.New("outbox store is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	r := &Relay{
		logg:       params.Logger,
		db:         params.DB,
		pubsub:     params.PubSub,
		store:      params.Store,
		registry:   params.Registry,
		metrics:    params.Metrics,
		publishers: params.Publishers,
		policies:   newPolicyBook(params.Config.Outbox.MaxAttempts),
		batchSize:  params.Config.Outbox.BatchSize,
		interval:   time.Duration(params.Config.Outbox.PollIntervalMS) * time.Millisecond,
		now:        params.Now,
	}
	if r.publishers == nil {
		r.publishers = func(topic string) topicPublisher {
			if p := params.PubSub.Publisher(topic); p != nil {
				return gcpTopic{p}
			}
			return nil
		}
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.interval <= 0 {
		r.interval = defaultPollInterval
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Run drains the outbox until ctx ends. A full, clean batch is followed by another
// drain right away; otherwise the relay waits one interval, doubling up to
// maxIdleBackoff while drains fail or rows keep bouncing.
func (r *Relay) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": r.db.Ping, "pubsub": r.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			r.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	wait := r.interval
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		stats, err := r.drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox drain failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case stats.retrying > 0 || stats.held > 0:
			wait = min(wait*2, maxIdleBackoff)
		case stats.fetched >= r.batchSize:
			wait = r.interval
			continue
		default:
			wait = r.interval
		}
		if err := pause(ctx, wait+rand.N(jitterWindow)); err != nil {
			return err
		}
	}
}

type drainStats struct {
	fetched  int
	retrying int
	held     int
}

// drain publishes one batch inside the transaction that holds the row locks.
func (r *Relay) drain(ctx context.Context) (drainStats, error) {
	var stats drainStats
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		stats = drainStats{}
		rows, err := r.store.FetchUnpublishedForPublish(tx, r.batchSize, r.policies.ceiling())
		if err != nil {
			return err
		}
		stats.fetched = len(rows)

		blocked := map[string]bool{}
		for _, row := range rows {
			result, err := r.deliver(ctx, tx, row, blocked)
			if err != nil {
				return err
			}
			switch result {
			case outcomeHeld:
				stats.held++
				continue
			case outcomeRetrying:
				stats.retrying++
			}
			r.metrics.IncOutbox(string(row.EventType), string(result))
		}
		return nil
	})
	return stats, err
}

func (r *Relay) deliver(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, blocked map[string]bool) (outcome, error) {
	policy := r.policies.forEvent(row.EventType)
	key := streamKey(row)
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	})

	if policy.sequenced && blocked[key] {
		r.logg.Info(ctx, "outbox row held behind an earlier failure")
		return outcomeHeld, nil
	}

	resolved, err := r.registry.Resolve(row)
	if err != nil {
		return r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	}
	ctx = r.logg.WithFields(ctx, map[string]any{
		"event_id": resolved.Envelope.EventID,
		"topic":    resolved.Descriptor.Topic,
	})

	pubErr := r.publish(ctx, row, resolved, key)
	if pubErr == nil {
		if err := r.store.MarkPublishedTx(tx, row.ID); err != nil {
			return "", fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		r.logg.Info(ctx, "outbox event published")
		return outcomePublished, nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(pubErr, &nonRetryable) {
		return r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, pubErr)
	}
	if policy.sequenced && key != "" {
		blocked[key] = true
	}
	if row.AttemptCount+1 >= policy.attempts {
		return r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", policy.attempts, pubErr))
	}

	r.logg.Warn(r.logg.WithField(ctx, "error", pubErr.Error()), "outbox publish failed, will retry")
	if err := r.store.MarkFailedTx(tx, row.ID, pubErr); err != nil {
		return "", fmt.Errorf("mark failed %s: %w", row.ID, err)
	}
	return outcomeRetrying, nil
}

func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent, key string) error {
	topic := resolved.Descriptor.Topic
	pub := r.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	res := pub.Publish(ctx, &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
		OrderingKey: key,
	})
	if res == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher for topic %s returned no result", topic))
	}
	if _, err := res.Get(ctx); err != nil {
		// An ordering key stays paused after a failure until it is resumed.
		if rp, ok := pub.(interface{ ResumePublish(string) }); ok && key != "" {
			rp.ResumePublish(key)
		}
		return err
	}
	return nil
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) (outcome, error) {
	ctx = r.logg.WithFields(ctx, map[string]any{"error_reason": string(reason), "error": cause.Error()})
	r.logg.Warn(ctx, "outbox event dead-lettered")

	msg := cause.Error()
	if err := r.store.InsertDLQTx(tx, models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      r.now().UTC(),
	}); err != nil {
		return "", fmt.Errorf("dead-letter %s: %w", row.ID, err)
	}
	if err := r.store.MarkTerminalTx(tx, row.ID, cause, r.policies.ceiling()); err != nil {
		return "", fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	return outcomeDeadLettered, nil
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type gcpTopic struct {
	p *gcppubsub.Publisher
}

func (t gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return t.p.Publish(ctx, msg)
}

func (t gcpTopic) ResumePublish(key string) {
	t.p.ResumePublish(key)
}
