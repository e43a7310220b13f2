package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"nodemint/authorizer"
	"nodemint/ledger"
	"nodemint/logger"
	"nodemint/rewards"
	"nodemint/tiers"
)

// Handler contains the HTTP handlers for the minting and reward API endpoints
type Handler struct {
	Ledger     *ledger.Ledger
	Authorizer *authorizer.Authorizer
	Settlement *rewards.Settlement
	Contracts  map[uint64]string // chain id -> mint contract address
}

// NewHandler creates and returns a new Handler instance
func NewHandler(l *ledger.Ledger, a *authorizer.Authorizer, s *rewards.Settlement, contracts map[uint64]string) *Handler {
	return &Handler{Ledger: l, Authorizer: a, Settlement: s, Contracts: contracts}
}

type requestMintPayload struct {
	Address string `json:"address"`
	TierID  int    `json:"tier_id"`
	ChainID uint64 `json:"chain_id"`
}

type confirmMintPayload struct {
	GlobalTokenID uint64 `json:"global_token_id"`
	ChainTokenID  uint64 `json:"chain_token_id"`
	ChainID       uint64 `json:"chain_id"`
	TxHash        string `json:"tx_hash"`
}

type markFailedPayload struct {
	GlobalTokenID uint64 `json:"global_token_id"`
	Reason        string `json:"reason"`
}

type cancelPayload struct {
	GlobalTokenID uint64 `json:"global_token_id"`
	Address       string `json:"address"`
}

type claimPayload struct {
	Address string `json:"address"`
}

type settlePayload struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
	Nonce   string `json:"nonce"`
	TxHash  string `json:"tx_hash"`
}

// RequestMint handles POST requests to reserve a token id and issue the
// signed mint authorization for it
func (h *Handler) RequestMint(w http.ResponseWriter, r *http.Request) {
	var req requestMintPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if !common.IsHexAddress(req.Address) {
		writeError(w, http.StatusBadRequest, "Invalid address")
		return
	}
	contract, ok := h.Contracts[req.ChainID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unsupported chain")
		return
	}

	res, err := h.Ledger.Reserve(req.TierID, req.ChainID, common.HexToAddress(req.Address).Hex())
	if err != nil {
		logger.Logger.Error("Failed to reserve token", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	auth, err := h.Authorizer.AuthorizeMint(common.HexToAddress(req.Address), res.GlobalTokenID,
		res.TierID, res.CumulativeMinted, req.ChainID, common.HexToAddress(contract), res.ExpiresAt)
	if err != nil {
		// free the seat again; the id itself stays consumed
		if ferr := h.Ledger.MarkFailed(res.GlobalTokenID, "authorization failed"); ferr != nil {
			logger.Logger.Warn("Failed releasing reservation after authorization error",
				zap.Uint64("global_token_id", res.GlobalTokenID), zap.Error(ferr))
		}
		logger.Logger.Error("Failed to authorize mint", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"global_token_id":  res.GlobalTokenID,
		"stage":            res.Stage,
		"deadline":         auth.Deadline,
		"signature":        auth.Signature,
		"contract_address": contract,
	})
}

// ConfirmMint handles POST requests reconciling a successful on-chain mint
func (h *Handler) ConfirmMint(w http.ResponseWriter, r *http.Request) {
	var req confirmMintPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	rec, err := h.Ledger.ConfirmMint(req.GlobalTokenID, req.ChainTokenID, req.ChainID, req.TxHash)
	if err != nil {
		logger.Logger.Error("Failed to confirm mint", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Mint confirmed",
		"nft":     rec,
	})
}

// MarkFailed handles POST requests reconciling a failed on-chain mint
func (h *Handler) MarkFailed(w http.ResponseWriter, r *http.Request) {
	var req markFailedPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.Ledger.MarkFailed(req.GlobalTokenID, req.Reason); err != nil {
		logger.Logger.Error("Failed to mark reservation failed", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Reservation marked failed"})
}

// CancelReservation handles POST requests from a candidate giving up a lease
func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	var req cancelPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.Ledger.Cancel(req.GlobalTokenID, req.Address); err != nil {
		logger.Logger.Error("Failed to cancel reservation", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Reservation cancelled"})
}

// GetAvailability handles GET requests for a tier's supply aggregate
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tierID, err := strconv.Atoi(vars["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid tier id")
		return
	}

	info, err := h.Ledger.Availability(tierID)
	if err != nil {
		logger.Logger.Error("Failed to read availability", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// GetPendingReward handles GET requests for a holder's unclaimed total
func (h *Handler) GetPendingReward(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	address := vars["address"]
	if !common.IsHexAddress(address) {
		writeError(w, http.StatusBadRequest, "Invalid address")
		return
	}

	total, records, err := h.Settlement.Pending(address)
	if err != nil {
		logger.Logger.Error("Failed to read pending rewards", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address":   address,
		"amount":    total,
		"breakdown": records,
	})
}

// Claim handles POST requests producing a signed claim authorization
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if !common.IsHexAddress(req.Address) {
		writeError(w, http.StatusBadRequest, "Invalid address")
		return
	}

	auth, err := h.Settlement.AuthorizeClaim(req.Address)
	if err != nil {
		logger.Logger.Error("Failed to authorize claim", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, auth)
}

// SettleClaim handles POST requests reconciling an on-chain claim payout
func (h *Handler) SettleClaim(w http.ResponseWriter, r *http.Request) {
	var req settlePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	if err := h.Settlement.Settle(req.Address, amount, req.Nonce, req.TxHash); err != nil {
		logger.Logger.Error("Failed to settle claim", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Claim settled"})
}

// statusFor maps the core error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrSoldOut),
		errors.Is(err, ledger.ErrDuplicateMint),
		errors.Is(err, rewards.ErrNonceReused),
		errors.Is(err, rewards.ErrAmountMismatch):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrReservationNotFound),
		errors.Is(err, rewards.ErrNoPendingRewards),
		errors.Is(err, rewards.ErrUnknownClaim),
		errors.Is(err, tiers.ErrUnknownTier):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrReservationExpired),
		errors.Is(err, authorizer.ErrExpiredAuthorization):
		return http.StatusGone
	case errors.Is(err, ledger.ErrUnauthorizedCancel):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
