package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/fund-ledger/internal/chain"
	"github.com/fund-ledger/internal/types"
)

// handleDecodeTransaction decodes one transaction and returns the
// enriched result. Decode failures surface as status=error in the body,
// not as HTTP errors; only a malformed hash is a 400.
func (s *Server) handleDecodeTransaction(w http.ResponseWriter, r *http.Request) {
	txHash := mux.Vars(r)["txHash"]
	if !chain.ValidateTxHash(txHash) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid transaction hash", map[string]interface{}{
			"txHash": txHash,
		})
		return
	}

	dt, err := s.decodeSvc.DecodeTransaction(r.Context(), txHash)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dt)
}

// handleGetStats returns the registry's running decode counters.
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.decodeSvc.GetStats())
}

// handleGetAllPositions returns a snapshot of every tracked position.
func (s *Server) handleGetAllPositions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"positions": s.positionSvc.GetAllPositions(),
	})
}

// handleGetPosition returns one (fund, wallet, asset) position.
func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	position := s.positionSvc.GetPosition(vars["fundId"], vars["walletId"], vars["asset"])
	respondJSON(w, http.StatusOK, position)
}

// handleGetDisposals returns the disposal history in recording order.
func (s *Server) handleGetDisposals(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"disposals": s.positionSvc.Disposals(),
	})
}

// handleListEntries returns persisted journal entries by posting status.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	if s.journalRepo == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "journal store not configured", nil)
		return
	}

	status := types.PostingStatus(r.URL.Query().Get("status"))
	switch status {
	case types.PostingAutoReady, types.PostingReviewQueue, types.PostingPosted:
	case "":
		status = types.PostingReviewQueue
	default:
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid posting status", map[string]interface{}{
			"status": string(status),
		})
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 1000 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be between 1 and 1000", nil)
			return
		}
		limit = parsed
	}

	entries, err := s.journalRepo.ListByStatus(r.Context(), status, limit)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  string(status),
		"entries": entries,
	})
}

// handlePostEntry commits a reviewed entry to the ledger.
func (s *Server) handlePostEntry(w http.ResponseWriter, r *http.Request) {
	if s.journalRepo == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "journal store not configured", nil)
		return
	}

	entryID := mux.Vars(r)["entryId"]
	if err := s.journalRepo.UpdatePostingStatus(r.Context(), entryID, types.PostingPosted); err != nil {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, err.Error(), nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"entryId": entryID,
		"status":  string(types.PostingPosted),
	})
}

// handleGetEntriesByTx returns the persisted entries for one transaction.
func (s *Server) handleGetEntriesByTx(w http.ResponseWriter, r *http.Request) {
	if s.journalRepo == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "journal store not configured", nil)
		return
	}

	txHash := mux.Vars(r)["txHash"]
	if !chain.ValidateTxHash(txHash) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid transaction hash", nil)
		return
	}

	entries, err := s.journalRepo.GetByTxHash(r.Context(), txHash)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"txHash":  txHash,
		"entries": entries,
	})
}
