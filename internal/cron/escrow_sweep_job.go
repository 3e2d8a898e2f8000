package cron

import (
	"context"
	"fmt"
	"time"
)

const defaultSweepBatch = 200

type escrowSweeper interface {
	SweepDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// EscrowSweepJobParams configure the hold period sweeper.
type EscrowSweepJobParams struct {
	Escrow    escrowSweeper
	BatchSize int
	Now       func() time.Time
}

// NewEscrowSweepJob builds the job that requests admin approval for held
// records whose hold period has passed.
func NewEscrowSweepJob(params EscrowSweepJobParams) (Job, error) {
	if params.Escrow == nil {
		return nil, fmt.Errorf("escrow service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &escrowSweepJob{escrow: params.Escrow, batch: batch, now: now}, nil
}

type escrowSweepJob struct {
	escrow escrowSweeper
	batch  int
	now    func() time.Time
}

func (j *escrowSweepJob) Name() string { return "escrow-approval-sweep" }

func (j *escrowSweepJob) Run(ctx context.Context) (int, error) {
	moved, err := j.escrow.SweepDue(ctx, j.now().UTC(), j.batch)
	if err != nil {
		return moved, fmt.Errorf("escrow sweep: %w", err)
	}
	return moved, nil
}
