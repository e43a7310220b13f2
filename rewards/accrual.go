package rewards

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"nodemint/logger"
	"nodemint/models"
	"nodemint/repository"
	"nodemint/tiers"
)

var ErrAlreadyAccrued = errors.New("period already accrued")

// yearlyDecay shrinks the daily pool by 10% per elapsed program year.
var yearlyDecay = decimal.RequireFromString("0.9")

var oneHundred = decimal.NewFromInt(100)

// Engine computes each holder's share of the decaying daily pool and
// persists one reward record per live NFT per accounting period.
type Engine struct {
	registry       *tiers.Registry
	repo           repository.RewardRepositoryInterface
	basePool       decimal.Decimal
	launch         time.Time
	communityBonus decimal.Decimal // additive %, applied to every NFT
}

func NewEngine(registry *tiers.Registry, repo repository.RewardRepositoryInterface,
	basePool decimal.Decimal, launch time.Time, communityBonus decimal.Decimal) *Engine {
	return &Engine{
		registry:       registry,
		repo:           repo,
		basePool:       basePool,
		launch:         launch,
		communityBonus: communityBonus,
	}
}

// PeriodFor names the accounting period containing t. Periods are UTC days.
func PeriodFor(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DailyPool returns the pool for a period: basePool × 0.9^(yearIndex-1),
// where yearIndex counts whole program years elapsed at that period.
func (e *Engine) DailyPool(period string) (decimal.Decimal, error) {
	day, err := time.ParseInLocation("2006-01-02", period, time.UTC)
	if err != nil {
		return decimal.Zero, err
	}
	yearIndex := 1
	for t := e.launch.AddDate(1, 0, 0); !day.Before(t); t = t.AddDate(1, 0, 0) {
		yearIndex++
	}
	return e.basePool.Mul(yearlyDecay.Pow(decimal.NewFromInt(int64(yearIndex - 1)))), nil
}

// AccruePeriod runs the distribution for one period. Idempotent: a period
// that already carries an accrual marker fails with ErrAlreadyAccrued and
// writes nothing. Records and marker land in a single atomic write.
func (e *Engine) AccruePeriod(period string) (*models.AccrualMarker, error) {
	done, err := e.repo.HasAccrual(period)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, ErrAlreadyAccrued
	}

	pool, err := e.DailyPool(period)
	if err != nil {
		return nil, err
	}

	nfts, err := e.repo.LiveNftRecords()
	if err != nil {
		return nil, err
	}

	// total network weight: Σ tierWeight × stageMultiplier over live NFTs,
	// each NFT at the stage frozen when it was reserved
	totalWeight := decimal.Zero
	weights := make([]decimal.Decimal, len(nfts))
	for i, nft := range nfts {
		tier, err := e.registry.Get(nft.TierID)
		if err != nil {
			return nil, err
		}
		weights[i] = tier.Weight.Mul(tiers.MultiplierFor(nft.Stage))
		totalWeight = totalWeight.Add(weights[i])
	}

	now := time.Now().UnixMilli()
	marker := &models.AccrualMarker{
		Period:      period,
		Pool:        pool,
		TotalWeight: totalWeight,
		AccruedAt:   now,
	}

	if totalWeight.IsZero() {
		// nothing live yet; still mark the period so re-runs stay no-ops
		if err := e.repo.SaveAccrual(nil, marker); err != nil {
			return nil, err
		}
		return marker, nil
	}

	records := make([]*models.RewardRecord, 0, len(nfts))
	distributed := decimal.Zero
	for i, nft := range nfts {
		tier, _ := e.registry.Get(nft.TierID)

		// base share, rounded down so a period's payouts never sum past the pool
		base := weights[i].Mul(pool).Div(totalWeight)

		// bonuses stack additively on the base, never compounding
		bonus := tier.BonusPercent.Add(e.communityBonus)
		amount := base.Mul(decimal.NewFromInt(1).Add(bonus.Div(oneHundred))).RoundDown(8)

		distributed = distributed.Add(amount)
		records = append(records, &models.RewardRecord{
			GlobalTokenID:  nft.GlobalTokenID,
			TierID:         nft.TierID,
			Owner:          nft.Owner,
			Period:         period,
			PoolSnapshot:   pool,
			WeightSnapshot: totalWeight,
			Amount:         amount,
		})
	}

	marker.RecordCount = len(records)
	marker.TotalDistributed = distributed
	if err := e.repo.SaveAccrual(records, marker); err != nil {
		return nil, err
	}

	logger.Logger.Info("Accrued reward period",
		zap.String("period", period),
		zap.Int("records", len(records)),
		zap.String("pool", pool.String()),
		zap.String("total_weight", totalWeight.String()),
		zap.String("distributed", distributed.String()))

	return marker, nil
}
