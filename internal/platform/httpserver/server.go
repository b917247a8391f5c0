package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	settlementengine "folio/contexts/finance-core/settlement-engine"
	settlementerrors "folio/contexts/finance-core/settlement-engine/domain/errors"
	settlementhttp "folio/contexts/finance-core/settlement-engine/transport/http"
	registryservice "folio/contexts/publishing-core/registry-service"
	registryerrors "folio/contexts/publishing-core/registry-service/domain/errors"
	registryhttp "folio/contexts/publishing-core/registry-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "folio/internal/platform/httpserver/docs"
)

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	registry   registryservice.Module
	settlement settlementengine.Module
}

func New(
	registry registryservice.Module,
	settlement settlementengine.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		registry:   registry,
		settlement: settlement,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/authority/v1/init", s.handleInitAuthority)
	s.mux.HandleFunc("POST /api/capabilities/v1/mint", s.handleMintCapability)
	s.mux.HandleFunc("GET /api/capabilities/v1/pending", s.handleGetPendingCapability)

	s.mux.HandleFunc("POST /api/papers/v1/publish", s.handlePublishPaper)
	s.mux.HandleFunc("GET /api/papers/v1", s.handleListPapers)
	s.mux.HandleFunc("GET /api/papers/v1/{paper_id}", s.handleGetPaper)
	s.mux.HandleFunc("POST /api/papers/v1/{paper_id}/purchase", s.handlePurchasePaper)

	s.mux.HandleFunc("GET /api/settlements/v1/{settlement_id}", s.handleGetSettlement)
	s.mux.HandleFunc("POST /api/ledger/v1/accounts/{account_id}/deposit", s.handleDeposit)
	s.mux.HandleFunc("POST /api/ledger/v1/accounts/{account_id}/withdraw", s.handleWithdraw)
	s.mux.HandleFunc("GET /api/ledger/v1/accounts/{account_id}/balance", s.handleBalance)
}

func (s *Server) handleInitAuthority(w http.ResponseWriter, r *http.Request) {
	var req registryhttp.InitAuthorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRegistryError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.registry.Handler.InitAuthorityHandler(r.Context(), req)
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMintCapability(w http.ResponseWriter, r *http.Request) {
	callerAccount := resolveAccountID(r)
	if callerAccount == "" {
		writeRegistryError(w, http.StatusUnauthorized, "missing_account", "X-Account-Id header is required")
		return
	}

	var req registryhttp.MintCapabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRegistryError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.registry.Handler.MintCapabilityHandler(r.Context(), callerAccount, req)
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPendingCapability(w http.ResponseWriter, r *http.Request) {
	callerAccount := resolveAccountID(r)
	if callerAccount == "" {
		writeRegistryError(w, http.StatusUnauthorized, "missing_account", "X-Account-Id header is required")
		return
	}

	resp, err := s.registry.Handler.GetCapabilityHandler(r.Context(), callerAccount)
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePublishPaper(w http.ResponseWriter, r *http.Request) {
	callerAccount := resolveAccountID(r)
	if callerAccount == "" {
		writeRegistryError(w, http.StatusUnauthorized, "missing_account", "X-Account-Id header is required")
		return
	}

	var req registryhttp.PublishPaperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRegistryError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.registry.Handler.PublishPaperHandler(r.Context(), callerAccount, req)
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetPaper(w http.ResponseWriter, r *http.Request) {
	resp, err := s.registry.Handler.GetPaperHandler(r.Context(), r.PathValue("paper_id"))
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListPapers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := registryhttp.ListPapersRequest{
		Author: query.Get("author"),
		Cursor: query.Get("cursor"),
	}

	if limitRaw := query.Get("limit"); limitRaw != "" {
		limit, err := strconv.Atoi(limitRaw)
		if err != nil {
			writeRegistryError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		req.Limit = limit
	}

	resp, err := s.registry.Handler.ListPapersHandler(r.Context(), req)
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePurchasePaper(w http.ResponseWriter, r *http.Request) {
	var req settlementhttp.PurchasePaperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSettlementError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.BuyerAccount) == "" {
		req.BuyerAccount = resolveAccountID(r)
	}

	resp, err := s.settlement.Handler.PurchasePaperHandler(
		r.Context(),
		r.Header.Get("Idempotency-Key"),
		r.PathValue("paper_id"),
		req,
	)
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSettlement(w http.ResponseWriter, r *http.Request) {
	resp, err := s.settlement.Handler.GetSettlementHandler(r.Context(), r.PathValue("settlement_id"))
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req settlementhttp.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSettlementError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.settlement.Handler.DepositHandler(r.Context(), r.PathValue("account_id"), req)
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req settlementhttp.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSettlementError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.settlement.Handler.WithdrawHandler(r.Context(), r.PathValue("account_id"), req)
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	resp, err := s.settlement.Handler.BalanceHandler(r.Context(), r.PathValue("account_id"))
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeRegistryDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registryerrors.ErrAlreadyInitialized):
		writeRegistryError(w, http.StatusConflict, "already_initialized", err.Error())
	case errors.Is(err, registryerrors.ErrAuthorityNotInitialized):
		writeRegistryError(w, http.StatusServiceUnavailable, "authority_not_initialized", err.Error())
	case errors.Is(err, registryerrors.ErrNotAuthorized):
		writeRegistryError(w, http.StatusUnauthorized, "not_authorized", err.Error())
	case errors.Is(err, registryerrors.ErrInvalidRecipient):
		writeRegistryError(w, http.StatusForbidden, "invalid_recipient", err.Error())
	case errors.Is(err, registryerrors.ErrExpired):
		writeRegistryError(w, http.StatusGone, "authorization_expired", err.Error())
	case errors.Is(err, registryerrors.ErrCapabilityPending):
		writeRegistryError(w, http.StatusConflict, "capability_pending", err.Error())
	case errors.Is(err, registryerrors.ErrCapabilityNotFound):
		writeRegistryError(w, http.StatusNotFound, "capability_not_found", err.Error())
	case errors.Is(err, registryerrors.ErrAlreadyPublished):
		writeRegistryError(w, http.StatusConflict, "already_published", err.Error())
	case errors.Is(err, registryerrors.ErrPaperNotFound):
		writeRegistryError(w, http.StatusNotFound, "paper_not_found", err.Error())
	case errors.Is(err, registryerrors.ErrInvalidAuthorityKey),
		errors.Is(err, registryerrors.ErrInvalidPrice),
		errors.Is(err, registryerrors.ErrInvalidAuthors),
		errors.Is(err, registryerrors.ErrInvalidRequest):
		writeRegistryError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeRegistryError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeSettlementDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settlementerrors.ErrPaperNotFound):
		writeSettlementError(w, http.StatusNotFound, "paper_not_found", err.Error())
	case errors.Is(err, settlementerrors.ErrSettlementNotFound):
		writeSettlementError(w, http.StatusNotFound, "settlement_not_found", err.Error())
	case errors.Is(err, settlementerrors.ErrAccountNotFound):
		writeSettlementError(w, http.StatusNotFound, "account_not_found", err.Error())
	case errors.Is(err, settlementerrors.ErrAmountMismatch):
		writeSettlementError(w, http.StatusBadRequest, "amount_mismatch", err.Error())
	case errors.Is(err, settlementerrors.ErrInsufficientFunds):
		writeSettlementError(w, http.StatusPaymentRequired, "insufficient_funds", err.Error())
	case errors.Is(err, settlementerrors.ErrIdempotencyKeyMissing):
		writeSettlementError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	case errors.Is(err, settlementerrors.ErrIdempotencyConflict):
		writeSettlementError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, settlementerrors.ErrInvalidInput):
		writeSettlementError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeSettlementError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeRegistryError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, registryhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeSettlementError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, settlementhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func resolveAccountID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Account-Id"))
}
