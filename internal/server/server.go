// Package server exposes the brokerage over HTTP: interactive orders,
// rewards, limit-order management, and account queries.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-brokerage/internal/executor"
	"github.com/rxtech-lab/argo-brokerage/internal/logger"
	"github.com/rxtech-lab/argo-brokerage/internal/oracle"
	"github.com/rxtech-lab/argo-brokerage/internal/repository"
	"github.com/rxtech-lab/argo-brokerage/internal/types"
	"github.com/rxtech-lab/argo-brokerage/pkg/errors"
)

// Server is the HTTP front of the brokerage. Market orders are priced
// at intake from the oracle and converted into the base currency before
// they reach the executor.
type Server struct {
	repo   repository.Repository
	exec   *executor.Executor
	src    oracle.Source
	logger *logger.Logger

	baseCurrency       string
	defaultCreditLimit int64

	httpServer *http.Server
}

// NewServer builds the HTTP server and its routes.
func NewServer(repo repository.Repository, exec *executor.Executor, src oracle.Source, baseCurrency string, defaultCreditLimit int64, addr string, log *logger.Logger) *Server {
	s := &Server{
		repo:               repo,
		exec:               exec,
		src:                src,
		logger:             log,
		baseCurrency:       baseCurrency,
		defaultCreditLimit: defaultCreditLimit,
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Router builds the API routes.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{uid}", s.handleGetAccount).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{uid}/portfolio", s.handleGetPortfolio).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{uid}/transactions", s.handleListTransactions).Methods(http.MethodGet)

	api.HandleFunc("/orders/buy", s.handleBuy).Methods(http.MethodPost)
	api.HandleFunc("/orders/sell", s.handleSell).Methods(http.MethodPost)
	api.HandleFunc("/rewards", s.handleReward).Methods(http.MethodPost)

	api.HandleFunc("/limit-orders", s.handleCreateLimitOrder).Methods(http.MethodPost)
	api.HandleFunc("/limit-orders", s.handleListLimitOrders).Methods(http.MethodGet).Queries("uid", "{uid}")
	api.HandleFunc("/limit-orders/{id}", s.handleCancelLimitOrder).Methods(http.MethodDelete)

	return router
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type createAccountRequest struct {
	UID         string `json:"uid"`
	Balance     int64  `json:"balance"`
	CreditLimit *int64 `json:"credit_limit,omitempty"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid request body", err))

		return
	}

	if req.UID == "" {
		s.writeError(w, errors.New(errors.ErrCodeInvalidParameter, "uid is required"))

		return
	}

	if req.Balance < 0 {
		s.writeError(w, errors.New(errors.ErrCodeInvalidParameter, "balance must be non-negative"))

		return
	}

	creditLimit := s.defaultCreditLimit
	if req.CreditLimit != nil {
		creditLimit = *req.CreditLimit
	}

	account := types.Account{
		UID:         req.UID,
		Balance:     req.Balance,
		CreditLimit: creditLimit,
	}

	if err := s.repo.CreateAccount(r.Context(), account); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, account)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]

	account, err := s.repo.GetAccount(r.Context(), uid)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, account)
}

type portfolioResponse struct {
	Account   types.Account    `json:"account"`
	Positions []types.Position `json:"positions"`
	Equity    int64            `json:"equity"`
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]

	account, err := s.repo.GetAccount(r.Context(), uid)
	if err != nil {
		s.writeError(w, err)

		return
	}

	positions, err := s.repo.ListPositions(r.Context(), uid)
	if err != nil {
		s.writeError(w, err)

		return
	}

	symbols := make([]string, 0, len(positions))
	for _, position := range positions {
		symbols = append(symbols, position.Symbol)
	}

	snapshot, err := oracle.TakeSnapshot(r.Context(), s.src, s.baseCurrency, symbols)
	if err != nil {
		s.writeError(w, err)

		return
	}

	prices := snapshot.Prices()

	for i := range positions {
		if price, ok := prices[positions[i].Symbol]; ok {
			positions[i].CurrentPrice = price
			positions[i].Valuation = types.FloorMul(price, positions[i].AbsQuantity())
		}
	}

	s.writeJSON(w, http.StatusOK, portfolioResponse{
		Account:   account,
		Positions: positions,
		Equity:    types.AccountEquity(account, positions, prices),
	})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]

	limit := 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, errors.New(errors.ErrCodeInvalidParameter, "limit must be a non-negative integer"))

			return
		}

		limit = parsed
	}

	transactions, err := s.repo.ListTransactions(r.Context(), uid, limit)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, transactions)
}

type orderRequest struct {
	UID      string `json:"uid"`
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
}

type orderResponse struct {
	Symbol   string  `json:"symbol"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
	Amount   int64   `json:"amount"`
}

// priceOrder resolves the order's symbol through the oracle and returns
// an executor request priced in the base currency.
func (s *Server) priceOrder(ctx context.Context, req orderRequest) (types.OrderRequest, error) {
	quoteOpt, err := s.src.Lookup(ctx, req.Symbol)
	if err != nil {
		return types.OrderRequest{}, err
	}

	if quoteOpt.IsNone() {
		return types.OrderRequest{}, errors.Newf(errors.ErrCodePriceUnavailable, "no price for symbol %s", req.Symbol)
	}

	quote := quoteOpt.Unwrap()

	price := quote.Price

	if quote.Currency != s.baseCurrency {
		rateOpt, err := s.src.ExchangeRate(ctx, quote.Currency)
		if err != nil {
			return types.OrderRequest{}, err
		}

		if rateOpt.IsNone() {
			return types.OrderRequest{}, errors.Newf(errors.ErrCodeRateUnavailable, "no exchange rate for %s", quote.Currency)
		}

		price = types.FloorConvert(quote.Price, rateOpt.Unwrap())
	}

	return types.OrderRequest{
		UID:       req.UID,
		Symbol:    req.Symbol,
		Name:      quote.Name,
		Price:     price,
		Quantity:  req.Quantity,
		OrderType: types.OrderTypeMarket,
	}, nil
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid request body", err))

		return
	}

	order, err := s.priceOrder(r.Context(), req)
	if err != nil {
		s.writeError(w, err)

		return
	}

	cost, err := s.exec.ExecuteBuy(r.Context(), order)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, orderResponse{
		Symbol:   order.Symbol,
		Quantity: order.Quantity,
		Price:    order.Price,
		Amount:   cost,
	})
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid request body", err))

		return
	}

	order, err := s.priceOrder(r.Context(), req)
	if err != nil {
		s.writeError(w, err)

		return
	}

	proceeds, err := s.exec.ExecuteSell(r.Context(), order)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, orderResponse{
		Symbol:   order.Symbol,
		Quantity: order.Quantity,
		Price:    order.Price,
		Amount:   proceeds,
	})
}

type rewardRequest struct {
	UID    string `json:"uid"`
	Amount int64  `json:"amount"`
	Note   string `json:"note"`
}

func (s *Server) handleReward(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid request body", err))

		return
	}

	if err := s.exec.GrantReward(r.Context(), req.UID, req.Amount, req.Note); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int64{"amount": req.Amount})
}

type createLimitOrderRequest struct {
	UID         string  `json:"uid"`
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	Side        string  `json:"side"`
	TargetPrice float64 `json:"target_price"`
	Currency    string  `json:"currency"`
	Quantity    int64   `json:"quantity"`
}

func (s *Server) handleCreateLimitOrder(w http.ResponseWriter, r *http.Request) {
	var req createLimitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid request body", err))

		return
	}

	side := types.PurchaseType(req.Side)
	if side != types.PurchaseTypeBuy && side != types.PurchaseTypeSell {
		s.writeError(w, errors.New(errors.ErrCodeInvalidOrder, "side must be BUY or SELL"))

		return
	}

	if req.Quantity <= 0 {
		s.writeError(w, errors.New(errors.ErrCodeInvalidQuantity, "quantity must be positive"))

		return
	}

	if req.TargetPrice <= 0 {
		s.writeError(w, errors.New(errors.ErrCodeInvalidPrice, "target price must be positive"))

		return
	}

	// The owning account must exist before a standing order is accepted
	if _, err := s.repo.GetAccount(r.Context(), req.UID); err != nil {
		s.writeError(w, err)

		return
	}

	currency := req.Currency
	if currency == "" {
		currency = s.baseCurrency
	}

	now := time.Now()
	order := types.LimitOrder{
		ID:          uuid.New().String(),
		UID:         req.UID,
		Symbol:      req.Symbol,
		Name:        req.Name,
		Side:        side,
		TargetPrice: req.TargetPrice,
		Currency:    currency,
		Quantity:    req.Quantity,
		Status:      types.LimitOrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateLimitOrder(r.Context(), order); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleListLimitOrders(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")

	orders, err := s.repo.ListLimitOrders(r.Context(), uid)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleCancelLimitOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	uid := r.URL.Query().Get("uid")

	if uid == "" {
		s.writeError(w, errors.New(errors.ErrCodeInvalidParameter, "uid is required"))

		return
	}

	if err := s.repo.CancelLimitOrder(r.Context(), id, uid); err != nil {
		s.writeError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)

	s.writeJSON(w, httpStatus(code), errorResponse{
		Code:    int(code),
		Message: err.Error(),
	})
}

// httpStatus maps ledger error codes onto HTTP statuses.
func httpStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidQuantity,
		errors.ErrCodeInvalidPrice,
		errors.ErrCodeInvalidOrder,
		errors.ErrCodeInvalidParameter,
		errors.ErrCodeInvalidConfiguration:
		return http.StatusBadRequest
	case errors.ErrCodeUserNotFound, errors.ErrCodeOrderNotFound:
		return http.StatusNotFound
	case errors.ErrCodeAccountExists,
		errors.ErrCodeOrderNotPending,
		errors.ErrCodeConcurrentModification:
		return http.StatusConflict
	case errors.ErrCodeInsufficientFunds, errors.ErrCodeInsufficientCredit:
		return http.StatusUnprocessableEntity
	case errors.ErrCodePriceUnavailable, errors.ErrCodeRateUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
