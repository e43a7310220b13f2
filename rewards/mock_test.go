package rewards_test

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"nodemint/models"
	"nodemint/repository"
)

// mockRewardRepo is an in-memory stand-in for the LevelDB reward repository,
// keyed the same way so claim snapshots stay interchangeable.
type mockRewardRepo struct {
	mu        sync.Mutex
	nfts      []*models.GlobalNftRecord
	rewards   map[string]*models.RewardRecord
	markers   map[string]*models.AccrualMarker
	snapshots map[string]*models.ClaimSnapshot
}

func newMockRewardRepo() *mockRewardRepo {
	return &mockRewardRepo{
		rewards:   make(map[string]*models.RewardRecord),
		markers:   make(map[string]*models.AccrualMarker),
		snapshots: make(map[string]*models.ClaimSnapshot),
	}
}

func (m *mockRewardRepo) addNft(globalTokenID uint64, tierID, stage int, owner string, burned bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nfts = append(m.nfts, &models.GlobalNftRecord{
		GlobalTokenID: globalTokenID,
		TierID:        tierID,
		Stage:         stage,
		Owner:         owner,
		Burned:        burned,
	})
}

func (m *mockRewardRepo) addReward(owner, period string, globalTokenID uint64, amount string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := &models.RewardRecord{
		GlobalTokenID: globalTokenID,
		Owner:         owner,
		Period:        period,
		Amount:        decimal.RequireFromString(amount),
	}
	m.rewards[repository.RewardKey(owner, period, globalTokenID)] = rec
}

func (m *mockRewardRepo) LiveNftRecords() ([]*models.GlobalNftRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.GlobalNftRecord
	for _, rec := range m.nfts {
		if !rec.Burned {
			copy := *rec
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (m *mockRewardRepo) HasAccrual(period string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.markers[period]
	return ok, nil
}

func (m *mockRewardRepo) SaveAccrual(records []*models.RewardRecord, marker *models.AccrualMarker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		copy := *rec
		m.rewards[repository.RewardKey(rec.Owner, rec.Period, rec.GlobalTokenID)] = &copy
	}
	markerCopy := *marker
	m.markers[marker.Period] = &markerCopy
	return nil
}

func (m *mockRewardRepo) UnclaimedByOwner(owner string) ([]*models.RewardRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.RewardRecord
	for _, rec := range m.rewards {
		if strings.EqualFold(rec.Owner, owner) && !rec.Claimed {
			copy := *rec
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (m *mockRewardRepo) PutClaimSnapshot(s *models.ClaimSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *s
	m.snapshots[s.Nonce] = &copy
	return nil
}

func (m *mockRewardRepo) GetClaimSnapshot(nonce string) (*models.ClaimSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[nonce]
	if !ok {
		return nil, nil
	}
	copy := *s
	return &copy, nil
}

func (m *mockRewardRepo) SettleClaim(s *models.ClaimSnapshot, txHash string, settledAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range s.RecordKeys {
		rec, ok := m.rewards[key]
		if !ok {
			return fmt.Errorf("snapshot record %s missing", key)
		}
		rec.Claimed = true
		rec.ClaimedAt = settledAt
		rec.SettleTxHash = txHash
	}
	s.Settled = true
	s.SettledAt = settledAt
	s.TxHash = txHash
	copy := *s
	m.snapshots[s.Nonce] = &copy
	return nil
}
