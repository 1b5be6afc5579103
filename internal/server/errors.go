package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sheikh-saqib/commitment-savings-ledger/internal/ledger"
	"go.uber.org/zap"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Code    string `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type businessError struct {
	err    error
	status int
	code   string
	title  string
}

var businessErrors = []businessError{
	{ledger.ErrAccountNotFound, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account Not Found"},
	{ledger.ErrNotAccountOwner, http.StatusForbidden, "NOT_ACCOUNT_OWNER", "Not Account Owner"},
	{ledger.ErrNotLedgerOwner, http.StatusForbidden, "NOT_LEDGER_OWNER", "Not Ledger Operator"},
	{ledger.ErrAccountNotActive, http.StatusConflict, "ACCOUNT_NOT_ACTIVE", "Account Not Active"},
	{ledger.ErrAssetMismatch, http.StatusUnprocessableEntity, "ASSET_MISMATCH", "Asset Mismatch"},
	{ledger.ErrGoalNotReached, http.StatusConflict, "GOAL_NOT_REACHED", "Goal Not Reached"},
	{ledger.ErrNothingToCollect, http.StatusConflict, "NOTHING_TO_COLLECT", "Nothing To Collect"},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT", "Invalid Amount"},
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	for _, be := range businessErrors {
		if errors.Is(err, be.err) {
			writeJSON(w, be.status, errorResponse{Code: be.code, Title: be.title, Message: err.Error()})
			return
		}
	}

	s.logger.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Code:    "INTERNAL_ERROR",
		Title:   "Internal Error",
		Message: "the ledger could not complete the request",
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Title: "Bad Request", Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
