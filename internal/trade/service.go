// Package trade provides the HTTP handlers for account signup, quote
// queries, trade execution, portfolio/history reads, watchlist toggling,
// and the profitability leaderboard.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/catalog"
	"github.com/papertrade/engine/internal/ledger"
	"github.com/papertrade/engine/internal/metrics"
	"github.com/papertrade/engine/internal/model"
	"github.com/papertrade/engine/internal/rank"
	"github.com/papertrade/engine/internal/store"
)

// Service handles portfolio operations. Uses a mutex for serialized trade
// execution (single-instance); together with the store's whole-record
// write this gives each trade its atomic commit.
type Service struct {
	store           store.Store
	catalog         *catalog.Catalog
	startingBalance decimal.Decimal
	mu              sync.Mutex
	wsHub           *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, cat *catalog.Catalog, startingBalance decimal.Decimal, hub *WSHub) *Service {
	return &Service{
		store:           st,
		catalog:         cat,
		startingBalance: startingBalance,
		wsHub:           hub,
	}
}

// --- Request/Response types ---

// CreateAccountRequest is the JSON body for signup.
type CreateAccountRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TradeRequest is the JSON body for POST /trade.
type TradeRequest struct {
	AccountID string          `json:"account_id"`
	StockID   int64           `json:"stock_id"`
	Kind      model.TradeKind `json:"kind"`     // "buy" or "sell"
	Quantity  int64           `json:"quantity"` // whole shares
}

// PositionSummary is the position snapshot included in trade responses.
// A zero Quantity means the trade closed the position.
type PositionSummary struct {
	Quantity    int64           `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

// TradeResponse is the JSON body returned from POST /trade.
type TradeResponse struct {
	Transaction model.Transaction `json:"transaction"`
	Balance     decimal.Decimal   `json:"balance"`
	Position    PositionSummary   `json:"position"`
}

// Holding is one row of the portfolio view: the stored position enriched
// with the current quote.
type Holding struct {
	model.Position
	CurrentPrice  decimal.Decimal `json:"current_price"`
	Invested      decimal.Decimal `json:"invested"`     // averageCost × quantity
	MarketValue   decimal.Decimal `json:"market_value"` // currentPrice × quantity
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// PortfolioResponse is the JSON body for GET portfolio.
type PortfolioResponse struct {
	AccountID     string          `json:"account_id"`
	Balance       decimal.Decimal `json:"balance"`
	Holdings      []Holding       `json:"holdings"`
	Invested      decimal.Decimal `json:"invested"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// WatchlistResponse is the JSON body returned from the watchlist toggle.
type WatchlistResponse struct {
	InstrumentID int64 `json:"instrument_id"`
	Watching     bool  `json:"watching"`
}

// --- Account handlers ---

// CreateAccount handles POST /api/v1/accounts
func (s *Service) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, "name and a valid email are required", http.StatusBadRequest)
		return
	}

	acct := &model.Account{
		ID:              uuid.New().String(),
		Name:            req.Name,
		Email:           req.Email,
		Balance:         s.startingBalance,
		StartingBalance: s.startingBalance,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.store.CreateAccount(r.Context(), acct); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, "email already registered", http.StatusConflict)
			return
		}
		writeError(w, "failed to create account", http.StatusInternalServerError)
		return
	}

	metrics.AccountsCreated.Inc()
	slog.Info("account created", "id", acct.ID, "email", acct.Email, "balance", acct.Balance.String())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(acct)
}

// LookupAccount handles GET /api/v1/accounts/lookup?email=
// Email-keyed lookup backing the login flow: returning users identify
// themselves by the email they signed up with.
func (s *Service) LookupAccount(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email")))
	if email == "" {
		writeError(w, "email is required", http.StatusBadRequest)
		return
	}

	acct, err := s.store.GetAccountByEmail(r.Context(), email)
	if err != nil {
		writeError(w, "account not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(acct)
}

// GetAccount handles GET /api/v1/accounts/{accountID}
func (s *Service) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.loadAccount(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(acct)
}

// --- Quote handlers ---

// ListStocks handles GET /api/v1/stocks
func (s *Service) ListStocks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.catalog.List())
}

// GetStock handles GET /api/v1/stocks/{symbol}
func (s *Service) GetStock(w http.ResponseWriter, r *http.Request) {
	inst, err := s.catalog.GetBySymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, "stock not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(inst)
}

// GetStockHistory handles GET /api/v1/stocks/{symbol}/history?range=day|month|year
func (s *Service) GetStockHistory(w http.ResponseWriter, r *http.Request) {
	rng := catalog.Range(r.URL.Query().Get("range"))
	if rng == "" {
		rng = catalog.RangeDay
	}

	series, err := s.catalog.History(chi.URLParam(r, "symbol"), rng)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownRange) {
			writeError(w, "range must be day, month, or year", http.StatusBadRequest)
			return
		}
		writeError(w, "stock not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(series)
}

// --- Trade execution ---

// ExecuteTrade handles POST /api/v1/trade
// Validates, applies the mutation to a clone of the account record, and
// commits it as one write. A rejected trade leaves no partial state; a
// failed write discards the clone so memory and store never diverge.
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.AccountID == "" {
		writeError(w, "account_id is required", http.StatusBadRequest)
		return
	}
	if !req.Kind.Valid() {
		writeError(w, "kind must be buy or sell", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	// Serialize trade execution.
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, err := s.catalog.Get(req.StockID)
	if err != nil {
		writeError(w, "stock not found", http.StatusNotFound)
		return
	}

	stored, err := s.store.GetAccount(ctx, req.AccountID)
	if err != nil {
		writeError(w, "account not found", http.StatusNotFound)
		return
	}

	// Mutate a clone; the stored record stays valid until the save lands.
	acct := stored.Clone()
	now := time.Now().UTC()

	var tx model.Transaction
	switch req.Kind {
	case model.Buy:
		tx, err = ledger.ApplyBuy(acct, inst, req.Quantity, now)
	case model.Sell:
		tx, err = ledger.ApplySell(acct, inst, req.Quantity, now)
	}
	if err != nil {
		writeTradeError(w, err)
		return
	}

	if err := s.store.SaveAccount(ctx, acct); err != nil {
		slog.Error("trade persistence failed", "account", acct.ID, "err", err)
		writeError(w, "failed to record trade", http.StatusInternalServerError)
		return
	}

	metrics.TradesTotal.WithLabelValues(string(req.Kind)).Inc()

	var posSummary PositionSummary
	if pos := acct.Position(inst.ID); pos != nil {
		posSummary = PositionSummary{Quantity: pos.Quantity, AverageCost: pos.AverageCost}
	}

	slog.Info("trade executed",
		"trade_id", tx.ID,
		"account", acct.ID,
		"symbol", inst.Symbol,
		"kind", string(req.Kind),
		"qty", req.Quantity,
		"price", tx.Price.String(),
		"total", tx.Total.String(),
		"balance", acct.Balance.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:      "trade_executed",
			Symbol:    inst.Symbol,
			Kind:      string(req.Kind),
			Quantity:  req.Quantity,
			Price:     tx.Price.String(),
			AccountID: acct.ID,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TradeResponse{
		Transaction: tx,
		Balance:     acct.Balance,
		Position:    posSummary,
	})
}

// --- Portfolio / history reads ---

// GetPortfolio handles GET /api/v1/accounts/{accountID}/portfolio
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.loadAccount(w, r)
	if !ok {
		return
	}

	resp := PortfolioResponse{
		AccountID: acct.ID,
		Balance:   acct.Balance,
		Holdings:  make([]Holding, 0, len(acct.Positions)),
	}

	for _, pos := range acct.Positions {
		price := pos.LastPrice
		if inst, err := s.catalog.Get(pos.InstrumentID); err == nil {
			price = inst.Price
		}
		qty := decimal.NewFromInt(pos.Quantity)
		h := Holding{
			Position:     pos,
			CurrentPrice: price,
			Invested:     pos.AverageCost.Mul(qty),
			MarketValue:  price.Mul(qty),
		}
		h.UnrealizedPnL = h.MarketValue.Sub(h.Invested)

		resp.Holdings = append(resp.Holdings, h)
		resp.Invested = resp.Invested.Add(h.Invested)
		resp.MarketValue = resp.MarketValue.Add(h.MarketValue)
		resp.UnrealizedPnL = resp.UnrealizedPnL.Add(h.UnrealizedPnL)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetTransactions handles GET /api/v1/accounts/{accountID}/transactions
func (s *Service) GetTransactions(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.loadAccount(w, r)
	if !ok {
		return
	}
	txs := acct.Transactions
	if txs == nil {
		txs = []model.Transaction{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txs)
}

// --- Watchlist ---

// GetWatchlist handles GET /api/v1/accounts/{accountID}/watchlist
// Returns the watched instruments with their current quotes.
func (s *Service) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.loadAccount(w, r)
	if !ok {
		return
	}

	watched := make([]model.Instrument, 0, len(acct.Watchlist))
	for _, id := range acct.Watchlist {
		if inst, err := s.catalog.Get(id); err == nil {
			watched = append(watched, inst)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(watched)
}

// ToggleWatchlist handles POST /api/v1/accounts/{accountID}/watchlist/{stockID}
// Adding a present id or removing an absent one is a no-op; the toggle
// flips membership and reports the resulting state.
func (s *Service) ToggleWatchlist(w http.ResponseWriter, r *http.Request) {
	stockID, err := strconv.ParseInt(chi.URLParam(r, "stockID"), 10, 64)
	if err != nil {
		writeError(w, "invalid stock id", http.StatusBadRequest)
		return
	}
	if _, err := s.catalog.Get(stockID); err != nil {
		writeError(w, "stock not found", http.StatusNotFound)
		return
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.store.GetAccount(ctx, chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, "account not found", http.StatusNotFound)
		return
	}

	acct := stored.Clone()
	watching := ledger.ToggleWatch(acct, stockID)

	if err := s.store.SaveAccount(ctx, acct); err != nil {
		slog.Error("watchlist persistence failed", "account", acct.ID, "err", err)
		writeError(w, "failed to update watchlist", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(WatchlistResponse{InstrumentID: stockID, Watching: watching})
}

// --- Leaderboard ---

// GetLeaderboard handles GET /api/v1/leaderboard
// Runs the ranking engine over all persisted accounts.
func (s *Service) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		writeError(w, "failed to load accounts", http.StatusInternalServerError)
		return
	}

	entries := rank.Standings(accounts)
	if entries == nil {
		entries = []rank.Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// --- News ---

// GetNews handles GET /api/v1/news?category=
func (s *Service) GetNews(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(catalog.News(r.URL.Query().Get("category")))
}

// --- Helpers ---

// loadAccount fetches the account named by the accountID route parameter,
// writing a 404 and returning ok=false when it does not exist.
func (s *Service) loadAccount(w http.ResponseWriter, r *http.Request) (*model.Account, bool) {
	acct, err := s.store.GetAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, "account not found", http.StatusNotFound)
		return nil, false
	}
	return acct, true
}

// writeTradeError maps ledger validation errors to HTTP statuses and
// records the rejection.
func writeTradeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity):
		metrics.TradeRejections.WithLabelValues("invalid_quantity").Inc()
		writeError(w, "quantity must be a positive whole number", http.StatusBadRequest)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		metrics.TradeRejections.WithLabelValues("insufficient_funds").Inc()
		writeError(w, "insufficient funds", http.StatusConflict)
	case errors.Is(err, ledger.ErrInsufficientShares):
		metrics.TradeRejections.WithLabelValues("insufficient_shares").Inc()
		writeError(w, "insufficient shares", http.StatusConflict)
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
