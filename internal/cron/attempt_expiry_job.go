package cron

import (
	"context"
	"fmt"
	"time"
)

const defaultAttemptTTL = 2 * time.Hour

type attemptExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// AttemptExpiryJobParams configure the abandoned payment cleanup.
type AttemptExpiryJobParams struct {
	Payments  attemptExpirer
	TTL       time.Duration
	BatchSize int
	Now       func() time.Time
}

// NewAttemptExpiryJob builds the job that closes online payment attempts the
// buyer never finished.
func NewAttemptExpiryJob(params AttemptExpiryJobParams) (Job, error) {
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultAttemptTTL
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &attemptExpiryJob{payments: params.Payments, ttl: ttl, batch: params.BatchSize, now: now}, nil
}

type attemptExpiryJob struct {
	payments attemptExpirer
	ttl      time.Duration
	batch    int
	now      func() time.Time
}

func (j *attemptExpiryJob) Name() string { return "payment-attempt-expiry" }

func (j *attemptExpiryJob) Run(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.payments.ExpireStale(ctx, cutoff, j.batch)
	if err != nil {
		return expired, fmt.Errorf("payment attempt expiry: %w", err)
	}
	return expired, nil
}
