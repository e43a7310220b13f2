package authorizer

import (
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

var ErrExpiredAuthorization = errors.New("reservation lease already expired")

// Domain prefixes keep mint and claim signatures from ever validating
// against each other's contract entry points.
const (
	mintDomain  = "NODEMINT_MINT"
	claimDomain = "NODEMINT_CLAIM"
)

// Authorizer signs deadline-bound mint and claim authorizations with the
// platform key. Stateless: the on-chain contract is the enforcement point,
// it recovers the signer address from the digest and rejects anything not
// signed over the exact bound tuple.
type Authorizer struct {
	key    *ecdsa.PrivateKey
	window time.Duration
}

// MintAuthorization is the signed payload a candidate submits on-chain.
type MintAuthorization struct {
	Deadline  int64  `json:"deadline"` // unix seconds
	Signature string `json:"signature"`
}

// New parses a hex-encoded secp256k1 private key.
func New(hexKey string, window time.Duration) (*Authorizer, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, err
	}
	return &Authorizer{key: key, window: window}, nil
}

// SignerAddress is the address contracts verify recovered signatures against.
func (a *Authorizer) SignerAddress() common.Address {
	return crypto.PubkeyToAddress(a.key.PublicKey)
}

// AuthorizeMint binds a reservation to a one-time on-chain mint call.
// reservationExpiry is the lease expiry in unix milliseconds; a lapsed lease
// is refused rather than signed.
func (a *Authorizer) AuthorizeMint(candidate common.Address, globalTokenID uint64, tierID int,
	cumulativeMinted int, chainID uint64, contract common.Address, reservationExpiry int64) (*MintAuthorization, error) {

	if reservationExpiry <= time.Now().UnixMilli() {
		return nil, ErrExpiredAuthorization
	}

	deadline := time.Now().Add(a.window).Unix()
	digest := MintDigest(chainID, contract, candidate, globalTokenID, tierID, cumulativeMinted, deadline)
	sig, err := crypto.Sign(digest, a.key)
	if err != nil {
		return nil, err
	}
	return &MintAuthorization{
		Deadline:  deadline,
		Signature: hexutil.Encode(sig),
	}, nil
}

// MintDigest derives the 32-byte message a mint signature covers. Every
// field of the tuple is bound: altering any of them yields a different
// digest and an unrecoverable signature.
func MintDigest(chainID uint64, contract, candidate common.Address, globalTokenID uint64,
	tierID, cumulativeMinted int, deadline int64) []byte {

	buf := make([]byte, 0, len(mintDomain)+2*common.AddressLength+5*8)
	buf = append(buf, mintDomain...)
	buf = appendUint64(buf, chainID)
	buf = append(buf, contract.Bytes()...)
	buf = append(buf, candidate.Bytes()...)
	buf = appendUint64(buf, globalTokenID)
	buf = appendUint64(buf, uint64(tierID))
	buf = appendUint64(buf, uint64(cumulativeMinted))
	buf = appendUint64(buf, uint64(deadline))
	return crypto.Keccak256(buf)
}

// AuthorizeClaim signs an aggregated claim for a holder. The nonce ties the
// signature to one persisted snapshot; consuming it twice is refused at
// settlement, not here.
func (a *Authorizer) AuthorizeClaim(holder common.Address, amount decimal.Decimal, nonce string, deadline int64) (string, error) {
	digest := ClaimDigest(holder, amount, nonce, deadline)
	sig, err := crypto.Sign(digest, a.key)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// ClaimDigest derives the 32-byte message a claim signature covers.
func ClaimDigest(holder common.Address, amount decimal.Decimal, nonce string, deadline int64) []byte {
	buf := make([]byte, 0, len(claimDomain)+common.AddressLength+len(nonce)+16)
	buf = append(buf, claimDomain...)
	buf = append(buf, holder.Bytes()...)
	buf = append(buf, amount.String()...)
	buf = append(buf, nonce...)
	buf = appendUint64(buf, uint64(deadline))
	return crypto.Keccak256(buf)
}

// Window is the authorization validity period.
func (a *Authorizer) Window() time.Duration {
	return a.window
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}
