package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	nftmarketplace "nftmarket/contexts/trading/nft-marketplace"
	"nftmarket/contexts/trading/nft-marketplace/application"
	marketplacedomainerrors "nftmarket/contexts/trading/nft-marketplace/domain/errors"
	marketplacehttp "nftmarket/contexts/trading/nft-marketplace/transport/http"
	"nftmarket/internal/platform/ratelimit"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "nftmarket/internal/platform/httpserver/docs"
)

const callerHeader = "X-Caller-Address"

type Server struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	addr        string
	marketplace nftmarketplace.Module
	limiter     *ratelimit.KeyedLimiter
	metrics     http.Handler
	now         func() time.Time
}

// New builds the API mux. A nil limiter disables rate limiting and a nil
// metrics handler leaves /metrics unregistered.
func New(
	marketplace nftmarketplace.Module,
	limiter *ratelimit.KeyedLimiter,
	metrics http.Handler,
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
		mux:         http.NewServeMux(),
		logger:      logger,
		addr:        addr,
		marketplace: marketplace,
		limiter:     limiter,
		metrics:     metrics,
		now:         time.Now,
	}
	s.registerRoutes()
	return s
}

// Start serves until ctx is canceled and then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}

	s.mux.HandleFunc("POST /v1/listings/{asset}/{item_id}", s.limited(s.handleListItem))
	s.mux.HandleFunc("PATCH /v1/listings/{asset}/{item_id}", s.limited(s.handleUpdateListing))
	s.mux.HandleFunc("DELETE /v1/listings/{asset}/{item_id}", s.limited(s.handleCancelListing))
	s.mux.HandleFunc("POST /v1/listings/{asset}/{item_id}/buy", s.limited(s.handleBuyItem))
	s.mux.HandleFunc("GET /v1/listings/{asset}/{item_id}", s.handleGetListing)

	s.mux.HandleFunc("POST /v1/proceeds/withdraw", s.limited(s.handleWithdrawProceeds))
	s.mux.HandleFunc("GET /v1/proceeds/{seller}", s.handleGetProceeds)
	s.mux.HandleFunc("GET /v1/proceeds/{seller}/payouts", s.handleListPayouts)
}

func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(callerHeader))
		if key == "" {
			key = resolveClientIP(r)
		}
		if !s.limiter.Allow(key, s.now()) {
			s.logger.Warn("request rate limited",
				"event", "http_rate_limited",
				"module", "internal/platform/httpserver",
				"layer", "platform",
				"caller", key,
				"path", r.URL.Path,
			)
			writeMarketplaceError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req marketplacehttp.ListItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMarketplaceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.marketplace.Handler.ListItemHandler(r.Context(), caller, r.PathValue("asset"), r.PathValue("item_id"), req)
	if err != nil {
		writeMarketplaceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleUpdateListing(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req marketplacehttp.UpdateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMarketplaceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.marketplace.Handler.UpdateListingHandler(r.Context(), caller, r.PathValue("asset"), r.PathValue("item_id"), req)
	if err != nil {
		writeMarketplaceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelListing(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	if err := s.marketplace.Handler.CancelListingHandler(r.Context(), caller, r.PathValue("asset"), r.PathValue("item_id")); err != nil {
		writeMarketplaceDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBuyItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req marketplacehttp.BuyItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMarketplaceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.marketplace.Handler.BuyItemHandler(r.Context(), caller, r.PathValue("asset"), r.PathValue("item_id"), req)
	if err != nil {
		writeMarketplaceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	resp, err := s.marketplace.Handler.GetListingHandler(r.Context(), r.PathValue("asset"), r.PathValue("item_id"))
	if err != nil {
		writeMarketplaceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProceeds(w http.ResponseWriter, r *http.Request) {
	resp, err := s.marketplace.Handler.GetProceedsHandler(r.Context(), r.PathValue("seller"))
	if err != nil {
		writeMarketplaceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWithdrawProceeds(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	resp, err := s.marketplace.Handler.WithdrawProceedsHandler(r.Context(), caller)
	if err != nil {
		writeMarketplaceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListPayouts(w http.ResponseWriter, r *http.Request) {
	resp, err := s.marketplace.Handler.ListPayoutsHandler(r.Context(), r.PathValue("seller"))
	if err != nil {
		writeMarketplaceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := strings.TrimSpace(r.Header.Get(callerHeader))
	if caller == "" {
		writeMarketplaceError(w, http.StatusUnauthorized, "missing_caller", callerHeader+" header is required")
		return "", false
	}
	return caller, true
}

func writeMarketplaceDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, marketplacedomainerrors.ErrInvalidRequest):
		writeMarketplaceError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, marketplacedomainerrors.ErrPriceMustBeAboveZero):
		writeMarketplaceError(w, http.StatusBadRequest, "price_must_be_above_zero", err.Error())
	case errors.Is(err, marketplacedomainerrors.ErrNotOwner):
		writeMarketplaceError(w, http.StatusForbidden, "not_owner", err.Error())
	case errors.Is(err, marketplacedomainerrors.ErrNotApprovedForMarketplace):
		writeMarketplaceError(w, http.StatusForbidden, "not_approved_for_marketplace", err.Error())
	case errors.Is(err, marketplacedomainerrors.ErrNotListed):
		writeMarketplaceError(w, http.StatusNotFound, "not_listed", err.Error())
	case errors.Is(err, marketplacedomainerrors.ErrNoProceeds):
		writeMarketplaceError(w, http.StatusNotFound, "no_proceeds", err.Error())
	case errors.Is(err, marketplacedomainerrors.ErrAlreadyListed):
		writeMarketplaceError(w, http.StatusConflict, "already_listed", err.Error())
	case errors.Is(err, marketplacedomainerrors.ErrPriceNotMet):
		writeMarketplaceError(w, http.StatusPaymentRequired, "price_not_met", err.Error())
	case errors.Is(err, marketplacedomainerrors.ErrOverflow):
		writeMarketplaceError(w, http.StatusUnprocessableEntity, "overflow", err.Error())
	case errors.Is(err, marketplacedomainerrors.ErrReconciliationRequired):
		writeMarketplaceError(w, http.StatusInternalServerError, "reconciliation_required", "transfer failed and the ledger needs reconciliation")
	case errors.Is(err, marketplacedomainerrors.ErrTransferFailed):
		resp := marketplacehttp.ErrorResponse{Code: "transfer_failed", Message: err.Error()}
		var failure *application.TransferFailedError
		if errors.As(err, &failure) {
			resp.PayoutID = failure.PayoutID
		}
		writeJSON(w, http.StatusBadGateway, resp)
	default:
		writeMarketplaceError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeMarketplaceError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, marketplacehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func resolveClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return r.RemoteAddr
}
