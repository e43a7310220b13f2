package repository

import (
	"encoding/json"
	"strconv"

	"github.com/syndtr/goleveldb/leveldb"

	"nodemint/db"
	"nodemint/models"
)

// It abstracts the storage layer from the reservation ledger
type LedgerRepositoryInterface interface {
	PutReservation(r *models.Reservation) error
	GetReservation(globalTokenID uint64) (*models.Reservation, error)
	ReservationsByTier(tierID int) ([]*models.Reservation, error)
	NextTokenSequence(tierID int) (uint64, error)
	ConfirmMint(r *models.Reservation, rec *models.GlobalNftRecord) error
	GetNftByChainToken(chainID, chainTokenID uint64) (*models.GlobalNftRecord, error)
	GetNftByGlobalID(globalTokenID uint64) (*models.GlobalNftRecord, error)
	CountMintedByTier(tierID int) (int, error)
	MarkBurned(globalTokenID uint64) error
}

// LedgerRepository implements the LedgerRepositoryInterface using LevelDB as
// the storage backend
type LedgerRepository struct {
	db *db.LevelDB
}

// NewLedgerRepository creates and returns a new LedgerRepository instance
func NewLedgerRepository(db *db.LevelDB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// PutReservation stores a reservation row
func (r *LedgerRepository) PutReservation(res *models.Reservation) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return r.db.Put(reservationKey(res.GlobalTokenID), data)
}

// GetReservation retrieves a reservation by global token id.
// Returns (nil, nil) when no such reservation exists.
func (r *LedgerRepository) GetReservation(globalTokenID uint64) (*models.Reservation, error) {
	data, err := r.db.Get(reservationKey(globalTokenID))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var res models.Reservation
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReservationsByTier retrieves all reservation rows for one tier
func (r *LedgerRepository) ReservationsByTier(tierID int) ([]*models.Reservation, error) {
	iter := r.db.NewPrefixIterator([]byte(reservationPrefix))
	defer iter.Release()

	var out []*models.Reservation
	for iter.Next() {
		var res models.Reservation
		if err := json.Unmarshal(iter.Value(), &res); err != nil {
			return nil, err
		}
		if res.TierID == tierID {
			out = append(out, &res)
		}
	}
	return out, iter.Error()
}

// NextTokenSequence increments and persists the per-tier allocation counter.
// The counter only ever moves forward, so released ids are never reused.
func (r *LedgerRepository) NextTokenSequence(tierID int) (uint64, error) {
	key := sequenceKey(tierID)
	var seq uint64
	data, err := r.db.Get(key)
	if err != nil {
		if !db.IsNotFound(err) {
			return 0, err
		}
	} else {
		seq, err = strconv.ParseUint(string(data), 10, 64)
		if err != nil {
			return 0, err
		}
	}
	seq++
	if err := r.db.Put(key, []byte(strconv.FormatUint(seq, 10))); err != nil {
		return 0, err
	}
	return seq, nil
}

// ConfirmMint atomically flips the reservation to its minted state and
// writes the registry row under both its chain-local and global keys
func (r *LedgerRepository) ConfirmMint(res *models.Reservation, rec *models.GlobalNftRecord) error {
	resData, err := json.Marshal(res)
	if err != nil {
		return err
	}
	recData, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Put(reservationKey(res.GlobalTokenID), resData)
	batch.Put(nftChainKey(rec.ChainID, rec.ChainTokenID), recData)
	batch.Put(nftGlobalKey(rec.GlobalTokenID), recData)
	return r.db.WriteBatch(batch)
}

// GetNftByChainToken retrieves a registry row by its chain-local identity.
// Returns (nil, nil) when the chain-local token is unknown.
func (r *LedgerRepository) GetNftByChainToken(chainID, chainTokenID uint64) (*models.GlobalNftRecord, error) {
	data, err := r.db.Get(nftChainKey(chainID, chainTokenID))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var rec models.GlobalNftRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetNftByGlobalID retrieves a registry row by global token id
func (r *LedgerRepository) GetNftByGlobalID(globalTokenID uint64) (*models.GlobalNftRecord, error) {
	data, err := r.db.Get(nftGlobalKey(globalTokenID))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var rec models.GlobalNftRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountMintedByTier counts registry rows for a tier, burned included
// (a burned NFT still consumed supply)
func (r *LedgerRepository) CountMintedByTier(tierID int) (int, error) {
	iter := r.db.NewPrefixIterator([]byte(nftGlobalPrefix))
	defer iter.Release()

	count := 0
	for iter.Next() {
		var rec models.GlobalNftRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return 0, err
		}
		if rec.TierID == tierID {
			count++
		}
	}
	return count, iter.Error()
}

// MarkBurned sets the burned flag on both copies of a registry row
func (r *LedgerRepository) MarkBurned(globalTokenID uint64) error {
	rec, err := r.GetNftByGlobalID(globalTokenID)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	rec.Burned = true
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Put(nftGlobalKey(rec.GlobalTokenID), data)
	batch.Put(nftChainKey(rec.ChainID, rec.ChainTokenID), data)
	return r.db.WriteBatch(batch)
}
