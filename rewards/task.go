package rewards

import (
	"errors"
	"time"
)

// AccrualTask adapts the engine to the scheduler. The engine's own
// idempotency makes overlapping runs harmless, so an already-accrued
// period is simply not an error here.
type AccrualTask struct {
	Engine *Engine
}

func (t *AccrualTask) Name() string {
	return "daily-reward-accrual"
}

func (t *AccrualTask) Run() error {
	_, err := t.Engine.AccruePeriod(PeriodFor(time.Now()))
	if errors.Is(err, ErrAlreadyAccrued) {
		return nil
	}
	return err
}
