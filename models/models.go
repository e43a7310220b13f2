package models

import "github.com/shopspring/decimal"

// Reservation lifecycle statuses.
const (
	StatusReserved = "RESERVED"
	StatusMinted   = "MINTED"
	StatusReleased = "RELEASED"
	StatusFailed   = "FAILED"
)

// ReasonLeaseExpired marks a reservation released by the expiry sweep,
// as opposed to an explicit cancel.
const ReasonLeaseExpired = "lease expired"

// Tier is a priced NFT class. Weight and max supply are fixed at launch.
type Tier struct {
	ID           int             `json:"id"`
	Name         string          `json:"name"`
	Weight       decimal.Decimal `json:"weight"`
	Price        decimal.Decimal `json:"price"`
	MaxSupply    int             `json:"max_supply"`
	BaseReward   decimal.Decimal `json:"base_daily_reward"`
	BonusPercent decimal.Decimal `json:"bonus_percent"` // additive % on top of the base reward
}

// Reservation is a time-bounded hold on a global token id.
type Reservation struct {
	GlobalTokenID    uint64 `json:"global_token_id"` // unique, never reused
	TierID           int    `json:"tier_id"`
	ChainID          uint64 `json:"chain_id"`
	Candidate        string `json:"candidate"` // checksummed owner address
	Status           string `json:"status"`
	Reason           string `json:"reason,omitempty"`
	Stage            int    `json:"stage"` // frozen at reservation time
	CumulativeMinted int    `json:"cumulative_minted"`
	CreatedAt        int64  `json:"created_at"` // unix timestamp in ms
	ExpiresAt        int64  `json:"expires_at"` // unix timestamp in ms
}

// GlobalNftRecord is the registry row created when a reservation is minted.
// Immutable except for the burned flag.
type GlobalNftRecord struct {
	GlobalTokenID uint64          `json:"global_token_id"`
	ChainID       uint64          `json:"chain_id"`
	ChainTokenID  uint64          `json:"chain_token_id"`
	TierID        int             `json:"tier_id"`
	Owner         string          `json:"owner"`
	MintTxHash    string          `json:"mint_tx_hash"`
	MintPrice     decimal.Decimal `json:"mint_price"`
	PaymentToken  string          `json:"payment_token"`
	Stage         int             `json:"stage"` // copied from the reservation, never recomputed
	MintedAt      int64           `json:"minted_at"`
	Burned        bool            `json:"burned"`
}

// RewardRecord is one holder's share of one accounting period. Snapshots of
// the pool and total weight are kept for auditability. Never deleted.
type RewardRecord struct {
	GlobalTokenID  uint64          `json:"global_token_id"`
	TierID         int             `json:"tier_id"`
	Owner          string          `json:"owner"`
	Period         string          `json:"period"` // UTC day, YYYY-MM-DD
	PoolSnapshot   decimal.Decimal `json:"pool_snapshot"`
	WeightSnapshot decimal.Decimal `json:"total_weight_snapshot"`
	Amount         decimal.Decimal `json:"amount"`
	Claimed        bool            `json:"claimed"`
	ClaimedAt      int64           `json:"claimed_at,omitempty"`
	SettleTxHash   string          `json:"settle_tx_hash,omitempty"`
}

// AccrualMarker records that a period has been accrued, making AccruePeriod
// idempotent across restarts.
type AccrualMarker struct {
	Period           string          `json:"period"`
	Pool             decimal.Decimal `json:"pool"`
	TotalWeight      decimal.Decimal `json:"total_weight"`
	RecordCount      int             `json:"record_count"`
	AccruedAt        int64           `json:"accrued_at"`
	TotalDistributed decimal.Decimal `json:"total_distributed"`
}

// ClaimSnapshot pins the exact set of reward records an authorization covers,
// so settlement claims that set and nothing else.
type ClaimSnapshot struct {
	Nonce      string          `json:"nonce"`
	Address    string          `json:"address"`
	RecordKeys []string        `json:"record_keys"`
	Amount     decimal.Decimal `json:"amount"`
	Deadline   int64           `json:"deadline"` // unix seconds
	CreatedAt  int64           `json:"created_at"`
	Settled    bool            `json:"settled"`
	SettledAt  int64           `json:"settled_at,omitempty"`
	TxHash     string          `json:"tx_hash,omitempty"`
}

// ClaimAuthorization is the signed payload handed to the holder. Ephemeral:
// only the snapshot it references is persisted.
type ClaimAuthorization struct {
	Address   string          `json:"address"`
	Amount    decimal.Decimal `json:"amount"`
	Nonce     string          `json:"nonce"`
	Deadline  int64           `json:"deadline"`
	Signature string          `json:"signature"`
}

// Availability is the read-only per-tier aggregate. Stage here is the tier's
// current display stage for new buyers, not any minted NFT's frozen stage.
type Availability struct {
	TierID       int             `json:"tier_id"`
	Minted       int             `json:"minted"`
	Reserved     int             `json:"reserved"`
	Available    int             `json:"available"`
	CurrentStage int             `json:"current_stage"`
	Multiplier   decimal.Decimal `json:"multiplier"`
}
