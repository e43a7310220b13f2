package repository

import (
	"fmt"
	"strings"
)

// Key layout inside the shared LevelDB instance. Every entity gets one
// canonical key; reservation and reward keys embed enough of the identity
// for prefix scans.
const (
	seqPrefix         = "seq:"
	reservationPrefix = "rsv:"
	nftChainPrefix    = "nft:"
	nftGlobalPrefix   = "nftg:"
	rewardPrefix      = "rwd:"
	accrualPrefix     = "acc:"
	snapshotPrefix    = "snap:"
)

func sequenceKey(tierID int) []byte {
	return []byte(fmt.Sprintf("%s%d", seqPrefix, tierID))
}

func reservationKey(globalTokenID uint64) []byte {
	return []byte(fmt.Sprintf("%s%012d", reservationPrefix, globalTokenID))
}

func nftChainKey(chainID, chainTokenID uint64) []byte {
	return []byte(fmt.Sprintf("%s%d:%012d", nftChainPrefix, chainID, chainTokenID))
}

func nftGlobalKey(globalTokenID uint64) []byte {
	return []byte(fmt.Sprintf("%s%012d", nftGlobalPrefix, globalTokenID))
}

// RewardKey is the canonical reward-record key. Exported because claim
// snapshots persist these keys to pin the exact record set they cover.
func RewardKey(owner, period string, globalTokenID uint64) string {
	return fmt.Sprintf("%s%s:%s:%012d", rewardPrefix, strings.ToLower(owner), period, globalTokenID)
}

func rewardOwnerPrefix(owner string) []byte {
	return []byte(rewardPrefix + strings.ToLower(owner) + ":")
}

func accrualKey(period string) []byte {
	return []byte(accrualPrefix + period)
}

func snapshotKey(nonce string) []byte {
	return []byte(snapshotPrefix + nonce)
}
