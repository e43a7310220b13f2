package ledger

import (
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"nodemint/logger"
	"nodemint/models"
	"nodemint/repository"
	"nodemint/tiers"
)

// Errors reported to callers. None of these are retried internally.
var (
	ErrSoldOut             = errors.New("tier is sold out")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationExpired  = errors.New("reservation lease expired")
	ErrDuplicateMint       = errors.New("chain token already registered")
	ErrUnauthorizedCancel  = errors.New("caller does not own the reservation")
)

// tierBand spaces the per-tier id ranges apart, so per-tier monotonic
// sequences yield globally unique token ids without a cross-tier lock.
const tierBand = 1_000_000

// Ledger leases globally unique token ids per tier and reconciles them
// against on-chain mint outcomes. The count-then-allocate step serializes
// on a per-tier mutex.
type Ledger struct {
	registry *tiers.Registry
	repo     repository.LedgerRepositoryInterface
	lease    time.Duration

	mu    sync.Mutex
	tierL map[int]*sync.Mutex
}

func NewLedger(registry *tiers.Registry, repo repository.LedgerRepositoryInterface, lease time.Duration) *Ledger {
	return &Ledger{
		registry: registry,
		repo:     repo,
		lease:    lease,
		tierL:    make(map[int]*sync.Mutex),
	}
}

func (l *Ledger) tierLock(tierID int) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.tierL[tierID]
	if !ok {
		m = &sync.Mutex{}
		l.tierL[tierID] = m
	}
	return m
}

// Reserve leases the next unused global token id for a tier. Expired leases
// are swept first; the remaining minted + live-reserved count is checked
// against max supply before allocating. The id is never reused, even after
// release, so a delayed on-chain mint of an expired id cannot collide.
func (l *Ledger) Reserve(tierID int, chainID uint64, candidate string) (*models.Reservation, error) {
	tier, err := l.registry.Get(tierID)
	if err != nil {
		return nil, err
	}

	lock := l.tierLock(tierID)
	lock.Lock()
	defer lock.Unlock()

	reservations, err := l.repo.ReservationsByTier(tierID)
	if err != nil {
		return nil, err
	}

	now := nowMillis()
	liveReserved := 0
	for _, res := range reservations {
		if res.Status != models.StatusReserved {
			continue
		}
		if res.ExpiresAt <= now {
			// lazy expiry sweep; harmless to repeat
			res.Status = models.StatusReleased
			res.Reason = models.ReasonLeaseExpired
			if err := l.repo.PutReservation(res); err != nil {
				logger.Logger.Warn("Failed releasing expired reservation",
					zap.Uint64("global_token_id", res.GlobalTokenID), zap.Error(err))
			}
			continue
		}
		liveReserved++
	}

	minted, err := l.repo.CountMintedByTier(tierID)
	if err != nil {
		return nil, err
	}
	if minted+liveReserved >= tier.MaxSupply {
		return nil, ErrSoldOut
	}

	seq, err := l.repo.NextTokenSequence(tierID)
	if err != nil {
		return nil, err
	}

	res := &models.Reservation{
		GlobalTokenID:    uint64(tierID)*tierBand + seq,
		TierID:           tierID,
		ChainID:          chainID,
		Candidate:        candidate,
		Status:           models.StatusReserved,
		Stage:            tiers.StageFor(minted, tier.MaxSupply),
		CumulativeMinted: minted,
		CreatedAt:        now,
		ExpiresAt:        now + l.lease.Milliseconds(),
	}
	if err := l.repo.PutReservation(res); err != nil {
		return nil, err
	}

	logger.Logger.Info("Reserved token",
		zap.Uint64("global_token_id", res.GlobalTokenID),
		zap.Int("tier_id", tierID),
		zap.Int("stage", res.Stage),
		zap.String("candidate", candidate))

	return res, nil
}

// ConfirmMint transitions a reservation to its minted state and creates the
// registry row. The on-chain contract already enforced chain-local
// uniqueness; the duplicate check here guards the registry itself.
func (l *Ledger) ConfirmMint(globalTokenID, chainTokenID, chainID uint64, txHash string) (*models.GlobalNftRecord, error) {
	res, err := l.repo.GetReservation(globalTokenID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrReservationNotFound
	}

	lock := l.tierLock(res.TierID)
	lock.Lock()
	defer lock.Unlock()

	// re-read under the tier lock; a concurrent confirm or sweep may have
	// moved the row since the unlocked read
	res, err = l.repo.GetReservation(globalTokenID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrReservationNotFound
	}

	switch res.Status {
	case models.StatusReserved:
		if res.ExpiresAt <= nowMillis() {
			res.Status = models.StatusReleased
			res.Reason = models.ReasonLeaseExpired
			if err := l.repo.PutReservation(res); err != nil {
				return nil, err
			}
			return nil, ErrReservationExpired
		}
	case models.StatusReleased:
		if res.Reason == models.ReasonLeaseExpired {
			return nil, ErrReservationExpired
		}
		return nil, ErrReservationNotFound
	default:
		return nil, ErrReservationNotFound
	}

	existing, err := l.repo.GetNftByChainToken(chainID, chainTokenID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateMint
	}

	tier, err := l.registry.Get(res.TierID)
	if err != nil {
		return nil, err
	}

	res.Status = models.StatusMinted
	rec := &models.GlobalNftRecord{
		GlobalTokenID: res.GlobalTokenID,
		ChainID:       chainID,
		ChainTokenID:  chainTokenID,
		TierID:        res.TierID,
		Owner:         res.Candidate,
		MintTxHash:    txHash,
		MintPrice:     tier.Price,
		PaymentToken:  "USDT",
		Stage:         res.Stage,
		MintedAt:      nowMillis(),
	}
	if err := l.repo.ConfirmMint(res, rec); err != nil {
		return nil, err
	}

	logger.Logger.Info("Confirmed mint",
		zap.Uint64("global_token_id", globalTokenID),
		zap.Uint64("chain_id", chainID),
		zap.String("tx_hash", txHash))

	return rec, nil
}

// MarkFailed releases a reservation after a failed on-chain mint. The count
// against max supply is freed immediately; the id stays consumed.
func (l *Ledger) MarkFailed(globalTokenID uint64, reason string) error {
	return l.release(globalTokenID, models.StatusFailed, reason, "")
}

// Cancel releases a reservation on the candidate's request. Only the
// reservation's own candidate may cancel it.
func (l *Ledger) Cancel(globalTokenID uint64, caller string) error {
	return l.release(globalTokenID, models.StatusReleased, "cancelled by owner", caller)
}

func (l *Ledger) release(globalTokenID uint64, status, reason, caller string) error {
	res, err := l.repo.GetReservation(globalTokenID)
	if err != nil {
		return err
	}
	if res == nil {
		return ErrReservationNotFound
	}

	lock := l.tierLock(res.TierID)
	lock.Lock()
	defer lock.Unlock()

	res, err = l.repo.GetReservation(globalTokenID)
	if err != nil {
		return err
	}
	if res == nil || res.Status != models.StatusReserved {
		return ErrReservationNotFound
	}
	if caller != "" && !strings.EqualFold(caller, res.Candidate) {
		return ErrUnauthorizedCancel
	}

	res.Status = status
	res.Reason = reason
	return l.repo.PutReservation(res)
}

// MarkBurned flags a registry row as burned; burned NFTs keep their history
// but stop earning rewards.
func (l *Ledger) MarkBurned(globalTokenID uint64) error {
	return l.repo.MarkBurned(globalTokenID)
}

// Availability reports the tier-wide aggregate plus the current display
// stage for new buyers. The display stage is recomputed from the live
// minted count and is unrelated to any minted NFT's frozen stage.
func (l *Ledger) Availability(tierID int) (*models.Availability, error) {
	tier, err := l.registry.Get(tierID)
	if err != nil {
		return nil, err
	}

	lock := l.tierLock(tierID)
	lock.Lock()
	defer lock.Unlock()

	reservations, err := l.repo.ReservationsByTier(tierID)
	if err != nil {
		return nil, err
	}
	now := nowMillis()
	reserved := 0
	for _, res := range reservations {
		if res.Status == models.StatusReserved && res.ExpiresAt > now {
			reserved++
		}
	}
	minted, err := l.repo.CountMintedByTier(tierID)
	if err != nil {
		return nil, err
	}

	stage := tiers.StageFor(minted, tier.MaxSupply)
	return &models.Availability{
		TierID:       tierID,
		Minted:       minted,
		Reserved:     reserved,
		Available:    tier.MaxSupply - minted - reserved,
		CurrentStage: stage,
		Multiplier:   tiers.MultiplierFor(stage),
	}, nil
}

// nowMillis returns current time in milliseconds
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
