package routers

import (
	"nodemint/handlers"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up all the HTTP routes for the minting and reward API
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {

	// Reserves a token id and returns the signed mint authorization
	r.HandleFunc("/mint/request", h.RequestMint).Methods("POST")

	// Reconciles a successful on-chain mint into the global registry
	r.HandleFunc("/mint/confirm", h.ConfirmMint).Methods("POST")

	// Reconciles a failed on-chain mint, freeing the tier seat
	r.HandleFunc("/mint/failed", h.MarkFailed).Methods("POST")

	// Lets the candidate give up a lease before it expires
	r.HandleFunc("/mint/cancel", h.CancelReservation).Methods("POST")

	// Supply, reservation and current-stage aggregate per tier
	r.HandleFunc("/tiers/{id}/availability", h.GetAvailability).Methods("GET")

	// Unclaimed reward total and per-record breakdown for a holder
	r.HandleFunc("/rewards/pending/{address}", h.GetPendingReward).Methods("GET")

	// Snapshots the unclaimed set and returns a signed claim authorization
	r.HandleFunc("/rewards/claim", h.Claim).Methods("POST")

	// Marks the snapshotted records as paid after on-chain confirmation
	r.HandleFunc("/rewards/settle", h.SettleClaim).Methods("POST")
}
