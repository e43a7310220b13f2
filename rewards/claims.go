package rewards

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"nodemint/authorizer"
	"nodemint/logger"
	"nodemint/models"
	"nodemint/repository"
)

var (
	ErrNoPendingRewards = errors.New("no pending rewards")
	ErrUnknownClaim     = errors.New("unknown claim nonce")
	ErrNonceReused      = errors.New("claim nonce already settled")
	ErrAmountMismatch   = errors.New("amount does not match the authorized snapshot")
)

// Settlement aggregates a holder's unclaimed rewards into a signed claim and
// later marks exactly that snapshot as paid. Authorize and settle serialize
// on a per-holder mutex so two concurrent claims can never both capture and
// settle the same record.
type Settlement struct {
	repo repository.RewardRepositoryInterface
	auth *authorizer.Authorizer

	mu      sync.Mutex
	holderL map[string]*sync.Mutex
}

func NewSettlement(repo repository.RewardRepositoryInterface, auth *authorizer.Authorizer) *Settlement {
	return &Settlement{
		repo:    repo,
		auth:    auth,
		holderL: make(map[string]*sync.Mutex),
	}
}

func (s *Settlement) holderLock(address string) *sync.Mutex {
	key := strings.ToLower(address)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.holderL[key]
	if !ok {
		m = &sync.Mutex{}
		s.holderL[key] = m
	}
	return m
}

// Pending sums a holder's unclaimed reward records. Read-only.
func (s *Settlement) Pending(address string) (decimal.Decimal, []*models.RewardRecord, error) {
	records, err := s.repo.UnclaimedByOwner(address)
	if err != nil {
		return decimal.Zero, nil, err
	}
	total := decimal.Zero
	for _, rec := range records {
		total = total.Add(rec.Amount)
	}
	return total, records, nil
}

// AuthorizeClaim snapshots the current unclaimed set, persists it under a
// fresh nonce and returns the signed claim. Records accrued after this call
// are untouched by the eventual settlement.
func (s *Settlement) AuthorizeClaim(address string) (*models.ClaimAuthorization, error) {
	lock := s.holderLock(address)
	lock.Lock()
	defer lock.Unlock()

	records, err := s.repo.UnclaimedByOwner(address)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoPendingRewards
	}

	total := decimal.Zero
	keys := make([]string, 0, len(records))
	for _, rec := range records {
		total = total.Add(rec.Amount)
		keys = append(keys, repository.RewardKey(rec.Owner, rec.Period, rec.GlobalTokenID))
	}

	nonce := uuid.NewString()
	deadline := time.Now().Add(s.auth.Window()).Unix()

	snap := &models.ClaimSnapshot{
		Nonce:      nonce,
		Address:    address,
		RecordKeys: keys,
		Amount:     total,
		Deadline:   deadline,
		CreatedAt:  time.Now().UnixMilli(),
	}
	if err := s.repo.PutClaimSnapshot(snap); err != nil {
		return nil, err
	}

	sig, err := s.auth.AuthorizeClaim(common.HexToAddress(address), total, nonce, deadline)
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Authorized claim",
		zap.String("address", address),
		zap.String("amount", total.String()),
		zap.String("nonce", nonce),
		zap.Int("records", len(records)))

	return &models.ClaimAuthorization{
		Address:   address,
		Amount:    total,
		Nonce:     nonce,
		Deadline:  deadline,
		Signature: sig,
	}, nil
}

// Settle marks exactly the snapshotted records as claimed once the caller
// supplies the on-chain confirmation. All-or-nothing; a used nonce or a
// mismatched amount fails the whole attempt and the caller must re-run
// AuthorizeClaim for a fresh snapshot.
func (s *Settlement) Settle(address string, amount decimal.Decimal, nonce, txHash string) error {
	lock := s.holderLock(address)
	lock.Lock()
	defer lock.Unlock()

	snap, err := s.repo.GetClaimSnapshot(nonce)
	if err != nil {
		return err
	}
	if snap == nil || !strings.EqualFold(snap.Address, address) {
		return ErrUnknownClaim
	}
	if snap.Settled {
		return ErrNonceReused
	}
	if !amount.Equal(snap.Amount) {
		return ErrAmountMismatch
	}

	// a record paid out under another nonce makes this snapshot stale;
	// settling it anyway would double-claim
	unclaimed, err := s.repo.UnclaimedByOwner(address)
	if err != nil {
		return err
	}
	live := make(map[string]bool, len(unclaimed))
	for _, rec := range unclaimed {
		live[repository.RewardKey(rec.Owner, rec.Period, rec.GlobalTokenID)] = true
	}
	for _, key := range snap.RecordKeys {
		if !live[key] {
			return ErrNonceReused
		}
	}

	if err := s.repo.SettleClaim(snap, txHash, time.Now().UnixMilli()); err != nil {
		return err
	}

	logger.Logger.Info("Settled claim",
		zap.String("address", address),
		zap.String("amount", amount.String()),
		zap.String("nonce", nonce),
		zap.String("tx_hash", txHash))

	return nil
}
