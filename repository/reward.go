package repository

import (
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"nodemint/db"
	"nodemint/models"
)

// It abstracts the storage layer from the accrual engine and claim settlement
type RewardRepositoryInterface interface {
	LiveNftRecords() ([]*models.GlobalNftRecord, error)
	HasAccrual(period string) (bool, error)
	SaveAccrual(records []*models.RewardRecord, marker *models.AccrualMarker) error
	UnclaimedByOwner(owner string) ([]*models.RewardRecord, error)
	PutClaimSnapshot(s *models.ClaimSnapshot) error
	GetClaimSnapshot(nonce string) (*models.ClaimSnapshot, error)
	SettleClaim(s *models.ClaimSnapshot, txHash string, settledAt int64) error
}

// RewardRepository implements the RewardRepositoryInterface using LevelDB as
// the storage backend
type RewardRepository struct {
	db *db.LevelDB
}

// NewRewardRepository creates and returns a new RewardRepository instance
func NewRewardRepository(db *db.LevelDB) *RewardRepository {
	return &RewardRepository{db: db}
}

// LiveNftRecords retrieves every non-burned registry row
func (r *RewardRepository) LiveNftRecords() ([]*models.GlobalNftRecord, error) {
	iter := r.db.NewPrefixIterator([]byte(nftGlobalPrefix))
	defer iter.Release()

	var out []*models.GlobalNftRecord
	for iter.Next() {
		var rec models.GlobalNftRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, err
		}
		if !rec.Burned {
			out = append(out, &rec)
		}
	}
	return out, iter.Error()
}

// HasAccrual reports whether a period was already accrued
func (r *RewardRepository) HasAccrual(period string) (bool, error) {
	return r.db.Has(accrualKey(period))
}

// SaveAccrual writes a period's reward records and its marker in one batch,
// so a crash never leaves a half-accrued period behind
func (r *RewardRepository) SaveAccrual(records []*models.RewardRecord, marker *models.AccrualMarker) error {
	batch := new(leveldb.Batch)
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		batch.Put([]byte(RewardKey(rec.Owner, rec.Period, rec.GlobalTokenID)), data)
	}
	markerData, err := json.Marshal(marker)
	if err != nil {
		return err
	}
	batch.Put(accrualKey(marker.Period), markerData)
	return r.db.WriteBatch(batch)
}

// UnclaimedByOwner retrieves every unclaimed reward record for one holder
func (r *RewardRepository) UnclaimedByOwner(owner string) ([]*models.RewardRecord, error) {
	iter := r.db.NewPrefixIterator(rewardOwnerPrefix(owner))
	defer iter.Release()

	var out []*models.RewardRecord
	for iter.Next() {
		var rec models.RewardRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, err
		}
		if !rec.Claimed {
			out = append(out, &rec)
		}
	}
	return out, iter.Error()
}

// PutClaimSnapshot stores a claim snapshot keyed by its nonce
func (r *RewardRepository) PutClaimSnapshot(s *models.ClaimSnapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.db.Put(snapshotKey(s.Nonce), data)
}

// GetClaimSnapshot retrieves a claim snapshot by nonce.
// Returns (nil, nil) when the nonce is unknown.
func (r *RewardRepository) GetClaimSnapshot(nonce string) (*models.ClaimSnapshot, error) {
	data, err := r.db.Get(snapshotKey(nonce))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var s models.ClaimSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SettleClaim marks every record in the snapshot as claimed and the snapshot
// as settled, all in one batch. All-or-nothing: a failure leaves every
// record unclaimed and the nonce live.
func (r *RewardRepository) SettleClaim(s *models.ClaimSnapshot, txHash string, settledAt int64) error {
	batch := new(leveldb.Batch)
	for _, key := range s.RecordKeys {
		data, err := r.db.Get([]byte(key))
		if err != nil {
			return fmt.Errorf("snapshot record %s: %w", key, err)
		}
		var rec models.RewardRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		rec.Claimed = true
		rec.ClaimedAt = settledAt
		rec.SettleTxHash = txHash
		updated, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		batch.Put([]byte(key), updated)
	}
	s.Settled = true
	s.SettledAt = settledAt
	s.TxHash = txHash
	snapData, err := json.Marshal(s)
	if err != nil {
		return err
	}
	batch.Put(snapshotKey(s.Nonce), snapData)
	return r.db.WriteBatch(batch)
}
