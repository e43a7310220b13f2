package repository_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"nodemint/db"
	"nodemint/models"
	"nodemint/repository"
)

func openDB(t *testing.T) *db.LevelDB {
	t.Helper()
	ldb, err := db.NewLevelDB(t.TempDir() + "/leveldb")
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	t.Cleanup(func() { ldb.Close() })
	return ldb
}

func TestTokenSequence_MonotonicPerTier(t *testing.T) {
	repo := repository.NewLedgerRepository(openDB(t))

	for want := uint64(1); want <= 5; want++ {
		got, err := repo.NextTokenSequence(6)
		if err != nil {
			t.Fatalf("sequence: %v", err)
		}
		if got != want {
			t.Fatalf("expected sequence %d, got %d", want, got)
		}
	}

	// independent per tier
	got, err := repo.NextTokenSequence(1)
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected tier 1 sequence to start at 1, got %d", got)
	}
}

func TestReservationRoundTrip(t *testing.T) {
	repo := repository.NewLedgerRepository(openDB(t))

	res := &models.Reservation{
		GlobalTokenID: 6_000_001,
		TierID:        6,
		ChainID:       56,
		Candidate:     "0x1111111111111111111111111111111111111111",
		Status:        models.StatusReserved,
		Stage:         4,
		CreatedAt:     1000,
		ExpiresAt:     2000,
	}
	if err := repo.PutReservation(res); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := repo.GetReservation(6_000_001)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Stage != 4 || got.Status != models.StatusReserved {
		t.Fatalf("unexpected reservation: %+v", got)
	}

	missing, err := repo.GetReservation(999)
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for missing row, got %+v, %v", missing, err)
	}

	byTier, err := repo.ReservationsByTier(6)
	if err != nil || len(byTier) != 1 {
		t.Fatalf("expected 1 reservation for tier 6, got %d, %v", len(byTier), err)
	}
	if other, _ := repo.ReservationsByTier(1); len(other) != 0 {
		t.Fatalf("expected no reservations for tier 1, got %d", len(other))
	}
}

func TestConfirmMint_WritesBothKeys(t *testing.T) {
	repo := repository.NewLedgerRepository(openDB(t))

	res := &models.Reservation{GlobalTokenID: 6_000_001, TierID: 6, Status: models.StatusMinted}
	rec := &models.GlobalNftRecord{
		GlobalTokenID: 6_000_001,
		ChainID:       56,
		ChainTokenID:  7,
		TierID:        6,
		Owner:         "0x1111111111111111111111111111111111111111",
		Stage:         4,
	}
	if err := repo.ConfirmMint(res, rec); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	byChain, err := repo.GetNftByChainToken(56, 7)
	if err != nil || byChain == nil || byChain.GlobalTokenID != 6_000_001 {
		t.Fatalf("chain-key lookup failed: %+v, %v", byChain, err)
	}
	byGlobal, err := repo.GetNftByGlobalID(6_000_001)
	if err != nil || byGlobal == nil || byGlobal.ChainTokenID != 7 {
		t.Fatalf("global-key lookup failed: %+v, %v", byGlobal, err)
	}
	count, err := repo.CountMintedByTier(6)
	if err != nil || count != 1 {
		t.Fatalf("expected tier count 1, got %d, %v", count, err)
	}
}

func TestMarkBurned_UpdatesBothCopies(t *testing.T) {
	ldb := openDB(t)
	legRepo := repository.NewLedgerRepository(ldb)
	rwdRepo := repository.NewRewardRepository(ldb)

	res := &models.Reservation{GlobalTokenID: 6_000_001, TierID: 6, Status: models.StatusMinted}
	rec := &models.GlobalNftRecord{GlobalTokenID: 6_000_001, ChainID: 56, ChainTokenID: 7, TierID: 6}
	if err := legRepo.ConfirmMint(res, rec); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if err := legRepo.MarkBurned(6_000_001); err != nil {
		t.Fatalf("burn: %v", err)
	}

	byChain, _ := legRepo.GetNftByChainToken(56, 7)
	if !byChain.Burned {
		t.Fatal("chain copy not burned")
	}
	live, err := rwdRepo.LiveNftRecords()
	if err != nil || len(live) != 0 {
		t.Fatalf("expected no live records after burn, got %d, %v", len(live), err)
	}
}

func TestSettleClaim_AtomicBatch(t *testing.T) {
	repo := repository.NewRewardRepository(openDB(t))
	owner := "0x1111111111111111111111111111111111111111"

	records := []*models.RewardRecord{
		{GlobalTokenID: 6_000_001, Owner: owner, Period: "2026-08-28", Amount: decimal.RequireFromString("2.0")},
		{GlobalTokenID: 6_000_001, Owner: owner, Period: "2026-08-29", Amount: decimal.RequireFromString("3.5")},
	}
	marker := &models.AccrualMarker{Period: "2026-08-29"}
	if err := repo.SaveAccrual(records, marker); err != nil {
		t.Fatalf("save accrual: %v", err)
	}

	done, err := repo.HasAccrual("2026-08-29")
	if err != nil || !done {
		t.Fatalf("expected accrual marker, got %v, %v", done, err)
	}

	snap := &models.ClaimSnapshot{
		Nonce:   "nonce-1",
		Address: owner,
		RecordKeys: []string{
			repository.RewardKey(owner, "2026-08-28", 6_000_001),
			repository.RewardKey(owner, "2026-08-29", 6_000_001),
		},
		Amount: decimal.RequireFromString("5.5"),
	}
	if err := repo.PutClaimSnapshot(snap); err != nil {
		t.Fatalf("put snapshot: %v", err)
	}
	if err := repo.SettleClaim(snap, "0xtx", 5000); err != nil {
		t.Fatalf("settle: %v", err)
	}

	unclaimed, err := repo.UnclaimedByOwner(owner)
	if err != nil || len(unclaimed) != 0 {
		t.Fatalf("expected no unclaimed records, got %d, %v", len(unclaimed), err)
	}
	stored, err := repo.GetClaimSnapshot("nonce-1")
	if err != nil || stored == nil || !stored.Settled || stored.TxHash != "0xtx" {
		t.Fatalf("unexpected snapshot: %+v, %v", stored, err)
	}
}

func TestSettleClaim_MissingRecordLeavesStateUntouched(t *testing.T) {
	repo := repository.NewRewardRepository(openDB(t))
	owner := "0x1111111111111111111111111111111111111111"

	records := []*models.RewardRecord{
		{GlobalTokenID: 6_000_001, Owner: owner, Period: "2026-08-28", Amount: decimal.RequireFromString("2.0")},
	}
	if err := repo.SaveAccrual(records, &models.AccrualMarker{Period: "2026-08-28"}); err != nil {
		t.Fatalf("save accrual: %v", err)
	}

	snap := &models.ClaimSnapshot{
		Nonce:   "nonce-2",
		Address: owner,
		RecordKeys: []string{
			repository.RewardKey(owner, "2026-08-28", 6_000_001),
			repository.RewardKey(owner, "2026-08-29", 6_000_099), // never accrued
		},
	}
	if err := repo.SettleClaim(snap, "0xtx", 5000); err == nil {
		t.Fatal("expected settle to fail on a missing record")
	}

	// the partial batch was never applied
	unclaimed, err := repo.UnclaimedByOwner(owner)
	if err != nil || len(unclaimed) != 1 {
		t.Fatalf("expected the record to stay unclaimed, got %d, %v", len(unclaimed), err)
	}
	if unclaimed[0].Claimed {
		t.Fatal("record must not be claimed after a failed settle")
	}
}

func TestUnclaimedByOwner_FiltersClaimedAndOthers(t *testing.T) {
	repo := repository.NewRewardRepository(openDB(t))
	alice := "0x1111111111111111111111111111111111111111"
	bob := "0x2222222222222222222222222222222222222222"

	records := []*models.RewardRecord{
		{GlobalTokenID: 1, Owner: alice, Period: "2026-08-28", Amount: decimal.New(1, 0)},
		{GlobalTokenID: 2, Owner: alice, Period: "2026-08-28", Amount: decimal.New(2, 0), Claimed: true},
		{GlobalTokenID: 3, Owner: bob, Period: "2026-08-28", Amount: decimal.New(3, 0)},
	}
	if err := repo.SaveAccrual(records, &models.AccrualMarker{Period: "2026-08-28"}); err != nil {
		t.Fatalf("save accrual: %v", err)
	}

	got, err := repo.UnclaimedByOwner(alice)
	if err != nil {
		t.Fatalf("unclaimed: %v", err)
	}
	if len(got) != 1 || got[0].GlobalTokenID != 1 {
		t.Fatalf("unexpected unclaimed set: %+v", got)
	}

	// address lookup is case-insensitive
	upper, err := repo.UnclaimedByOwner("0X1111111111111111111111111111111111111111")
	if err != nil || len(upper) != 1 {
		t.Fatalf("expected case-insensitive lookup, got %d, %v", len(upper), err)
	}
}
