package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/ledger"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models"
	"github.com/shopspring/decimal"
)

type callerKey struct{}

// requireCaller rejects requests without an identity and stores it in the context.
func requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := r.Header.Get(CallerHeader)
		if caller == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{
				Code:    "MISSING_IDENTITY",
				Title:   "Missing Identity",
				Message: CallerHeader + " header is required",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

func callerFrom(r *http.Request) string {
	caller, _ := r.Context().Value(callerKey{}).(string)
	return caller
}

// accountID parses the {accountID} path parameter. Unparseable ids can name
// no account.
func accountID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil || id > ledger.MaxAccountID {
		return 0, ledger.ErrAccountNotFound
	}
	return id, nil
}

type accountResponse struct {
	models.Account
	RoutingTag string `json:"routing_tag"`
}

func toAccountResponse(a models.Account) accountResponse {
	return accountResponse{Account: a, RoutingTag: ledger.FormatRoutingTag(a.ID)}
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string          `json:"name"`
		Description   string          `json:"description"`
		AssetID       string          `json:"asset_id"`
		TargetAmount  decimal.Decimal `json:"target_amount"`
		MonthlyPledge decimal.Decimal `json:"monthly_pledge"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.AssetID == "" {
		writeBadRequest(w, "asset_id is a mandatory field")
		return
	}

	account, err := s.ledger.CreateAccount(r.Context(), callerFrom(r), ledger.AccountRequest{
		Name:          req.Name,
		Description:   req.Description,
		AssetID:       req.AssetID,
		TargetAmount:  req.TargetAmount,
		MonthlyPledge: req.MonthlyPledge,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.ledger.ListAccounts(r.Context(), callerFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIsOwner(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	owner, err := s.ledger.IsOwner(r.Context(), id, callerFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account_id": id, "is_owner": owner})
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.Disable(r.Context(), id, callerFrom(r)); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account_id": id, "status": models.AccountStatusDisabled})
}

func (s *Server) handleListDeposits(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	deposits, err := s.ledger.ListDeposits(r.Context(), id, callerFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deposits)
}

func (s *Server) handleValuation(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	value, err := s.ledger.CurrentValuation(r.Context(), id, callerFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		AccountID uint64          `json:"account_id"`
		Valuation decimal.Decimal `json:"valuation"`
	}{id, value})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	paid, err := s.ledger.Withdraw(r.Context(), id, callerFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		AccountID uint64          `json:"account_id"`
		Amount    decimal.Decimal `json:"amount"`
	}{id, paid})
}

func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssetID    string          `json:"asset_id"`
		Sender     string          `json:"sender"`
		Amount     decimal.Decimal `json:"amount"`
		RoutingTag string          `json:"routing_tag"`
		TransferID string          `json:"transfer_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	// Only the asset can vouch that its units arrived.
	if callerFrom(r) != req.AssetID {
		writeJSON(w, http.StatusForbidden, errorResponse{
			Code:    "UNTRUSTED_RECEIPT",
			Title:   "Untrusted Receipt",
			Message: "receipts must be delivered by the asset they credit",
		})
		return
	}
	tag, err := ledger.ParseRoutingTag(req.RoutingTag)
	if err != nil {
		writeBadRequest(w, "routing_tag must be hex")
		return
	}

	deposit, replayed, err := s.ledger.OnAssetReceived(r.Context(), models.Receipt{
		AssetID:    req.AssetID,
		Sender:     req.Sender,
		Amount:     req.Amount,
		RoutingTag: tag,
		TransferID: req.TransferID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, deposit)
}

func (s *Server) handleIsOperator(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"is_operator": s.ledger.IsOperator(callerFrom(r))})
}

func (s *Server) handleCollectable(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	due, err := s.ledger.CollectableAmount(r.Context(), assetID, callerFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		AssetID     string          `json:"asset_id"`
		Collectable decimal.Decimal `json:"collectable"`
	}{assetID, due})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	paid, err := s.ledger.Collect(r.Context(), assetID, callerFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		AssetID string          `json:"asset_id"`
		Amount  decimal.Decimal `json:"amount"`
	}{assetID, paid})
}
