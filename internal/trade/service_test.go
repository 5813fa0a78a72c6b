package trade_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/catalog"
	"github.com/papertrade/engine/internal/model"
	"github.com/papertrade/engine/internal/rank"
	"github.com/papertrade/engine/internal/store"
	"github.com/papertrade/engine/internal/trade"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	router := newRouter(trade.NewService(ms, catalog.New(), d("100000"), nil))
	return ms, router
}

func newRouter(svc *trade.Service) chi.Router {
	r := chi.NewRouter()
	r.Post("/api/v1/accounts", svc.CreateAccount)
	r.Get("/api/v1/accounts/lookup", svc.LookupAccount)
	r.Get("/api/v1/accounts/{accountID}", svc.GetAccount)
	r.Get("/api/v1/accounts/{accountID}/portfolio", svc.GetPortfolio)
	r.Get("/api/v1/accounts/{accountID}/transactions", svc.GetTransactions)
	r.Get("/api/v1/accounts/{accountID}/watchlist", svc.GetWatchlist)
	r.Post("/api/v1/accounts/{accountID}/watchlist/{stockID}", svc.ToggleWatchlist)
	r.Get("/api/v1/stocks", svc.ListStocks)
	r.Get("/api/v1/stocks/{symbol}", svc.GetStock)
	r.Get("/api/v1/stocks/{symbol}/history", svc.GetStockHistory)
	r.Post("/api/v1/trade", svc.ExecuteTrade)
	r.Get("/api/v1/leaderboard", svc.GetLeaderboard)
	r.Get("/api/v1/news", svc.GetNews)
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// signup creates an account through the API and returns it.
func signup(t *testing.T, router chi.Router, name, email string) model.Account {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/v1/accounts", trade.CreateAccountRequest{Name: name, Email: email})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d %s", w.Code, w.Body.String())
	}
	var acct model.Account
	json.Unmarshal(w.Body.Bytes(), &acct)
	return acct
}

func doTrade(t *testing.T, router chi.Router, req trade.TradeRequest) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, router, "POST", "/api/v1/trade", req)
}

// --- Account tests ---

func TestCreateAccount_StartsWithSeedBalance(t *testing.T) {
	_, router := newTestEnv(t)

	acct := signup(t, router, "Asha", "asha@example.com")
	if acct.ID == "" {
		t.Error("expected generated account id")
	}
	if !acct.Balance.Equal(d("100000")) {
		t.Errorf("expected starting balance 100000, got %s", acct.Balance)
	}
	if !acct.StartingBalance.Equal(acct.Balance) {
		t.Error("starting balance should equal initial balance")
	}
}

func TestCreateAccount_DuplicateEmail(t *testing.T) {
	_, router := newTestEnv(t)
	signup(t, router, "Asha", "asha@example.com")

	w := doJSON(t, router, "POST", "/api/v1/accounts", trade.CreateAccountRequest{Name: "Other", Email: "asha@example.com"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", w.Code)
	}
}

func TestCreateAccount_MissingFields(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/accounts", trade.CreateAccountRequest{Name: "", Email: "no-at-sign"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestLookupAccount_ByEmail(t *testing.T) {
	_, router := newTestEnv(t)
	acct := signup(t, router, "Asha", "asha@example.com")

	// Lookup is case-insensitive on the email, like signup.
	w := doJSON(t, router, "GET", "/api/v1/accounts/lookup?email=Asha@Example.com", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("lookup failed: %d %s", w.Code, w.Body.String())
	}
	var got model.Account
	json.Unmarshal(w.Body.Bytes(), &got)
	if got.ID != acct.ID {
		t.Errorf("expected account %s, got %s", acct.ID, got.ID)
	}

	w = doJSON(t, router, "GET", "/api/v1/accounts/lookup?email=ghost@example.com", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown email, got %d", w.Code)
	}

	w = doJSON(t, router, "GET", "/api/v1/accounts/lookup", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing email, got %d", w.Code)
	}
}

// --- Trade execution tests ---

func TestExecuteTrade_BuyThenSell(t *testing.T) {
	_, router := newTestEnv(t)
	acct := signup(t, router, "Asha", "asha@example.com")

	// Buy 10 RELIANCE @ 2870.45.
	w := doTrade(t, router, trade.TradeRequest{
		AccountID: acct.ID, StockID: 1, Kind: model.Buy, Quantity: 10,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("buy failed: %d %s", w.Code, w.Body.String())
	}

	var resp trade.TradeResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Balance.Equal(d("71295.50")) {
		t.Errorf("expected balance 71295.50, got %s", resp.Balance)
	}
	if resp.Position.Quantity != 10 {
		t.Errorf("expected position quantity 10, got %d", resp.Position.Quantity)
	}
	if !resp.Position.AverageCost.Equal(d("2870.45")) {
		t.Errorf("expected average cost 2870.45, got %s", resp.Position.AverageCost)
	}
	if !resp.Transaction.Total.Equal(d("28704.50")) {
		t.Errorf("expected total 28704.50, got %s", resp.Transaction.Total)
	}
	if resp.Transaction.Timestamp.IsZero() {
		t.Error("expected non-zero timestamp")
	}

	// Sell 4 back at the same quoted price.
	w = doTrade(t, router, trade.TradeRequest{
		AccountID: acct.ID, StockID: 1, Kind: model.Sell, Quantity: 4,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("sell failed: %d %s", w.Code, w.Body.String())
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Position.Quantity != 6 {
		t.Errorf("expected remaining quantity 6, got %d", resp.Position.Quantity)
	}
	if !resp.Position.AverageCost.Equal(d("2870.45")) {
		t.Errorf("sell must not change average cost, got %s", resp.Position.AverageCost)
	}
}

func TestExecuteTrade_InsufficientFunds(t *testing.T) {
	ms, router := newTestEnv(t)
	acct := signup(t, router, "Asha", "asha@example.com")

	// 100 TCS @ 3540.60 = 354060 > 100000.
	w := doTrade(t, router, trade.TradeRequest{
		AccountID: acct.ID, StockID: 2, Kind: model.Buy, Quantity: 100,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}

	// Nothing changed.
	stored, _ := ms.GetAccount(context.Background(), acct.ID)
	if !stored.Balance.Equal(d("100000")) {
		t.Errorf("rejected buy must not change balance, got %s", stored.Balance)
	}
	if len(stored.Positions) != 0 || len(stored.Transactions) != 0 {
		t.Error("rejected buy must not leave positions or transactions")
	}
}

func TestExecuteTrade_InsufficientShares(t *testing.T) {
	_, router := newTestEnv(t)
	acct := signup(t, router, "Asha", "asha@example.com")

	w := doTrade(t, router, trade.TradeRequest{
		AccountID: acct.ID, StockID: 1, Kind: model.Sell, Quantity: 5,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for sell with no holding, got %d", w.Code)
	}
}

func TestExecuteTrade_InvalidQuantity(t *testing.T) {
	_, router := newTestEnv(t)
	acct := signup(t, router, "Asha", "asha@example.com")

	for _, qty := range []int64{0, -2} {
		w := doTrade(t, router, trade.TradeRequest{
			AccountID: acct.ID, StockID: 1, Kind: model.Buy, Quantity: qty,
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("qty=%d: expected 400, got %d", qty, w.Code)
		}
	}
}

func TestExecuteTrade_InvalidKind(t *testing.T) {
	_, router := newTestEnv(t)
	acct := signup(t, router, "Asha", "asha@example.com")

	w := doTrade(t, router, trade.TradeRequest{
		AccountID: acct.ID, StockID: 1, Kind: "short", Quantity: 1,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid kind, got %d", w.Code)
	}
}

func TestExecuteTrade_UnknownStockAndAccount(t *testing.T) {
	_, router := newTestEnv(t)
	acct := signup(t, router, "Asha", "asha@example.com")

	w := doTrade(t, router, trade.TradeRequest{AccountID: acct.ID, StockID: 999, Kind: model.Buy, Quantity: 1})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown stock, got %d", w.Code)
	}

	w = doTrade(t, router, trade.TradeRequest{AccountID: "ghost", StockID: 1, Kind: model.Buy, Quantity: 1})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown account, got %d", w.Code)
	}
}

// failingSaveStore wraps a Store and fails every SaveAccount, modelling a
// storage outage after the in-memory mutation.
type failingSaveStore struct {
	store.Store
}

func (f *failingSaveStore) SaveAccount(context.Context, *model.Account) error {
	return errors.New("disk full")
}

func TestExecuteTrade_PersistenceFailureLeavesStateIntact(t *testing.T) {
	ms := store.NewMemoryStore()
	router := newRouter(trade.NewService(&failingSaveStore{Store: ms}, catalog.New(), d("100000"), nil))

	acct := signup(t, router, "Asha", "asha@example.com")

	w := doTrade(t, router, trade.TradeRequest{
		AccountID: acct.ID, StockID: 1, Kind: model.Buy, Quantity: 1,
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on persistence failure, got %d", w.Code)
	}

	// The stored record never saw the mutation.
	stored, _ := ms.GetAccount(context.Background(), acct.ID)
	if !stored.Balance.Equal(d("100000")) {
		t.Errorf("persisted balance diverged: %s", stored.Balance)
	}
	if len(stored.Positions) != 0 || len(stored.Transactions) != 0 {
		t.Error("persisted record gained partial trade state")
	}
}

// --- Portfolio / history tests ---

func TestGetPortfolio_EnrichesHoldings(t *testing.T) {
	_, router := newTestEnv(t)
	acct := signup(t, router, "Asha", "asha@example.com")

	doTrade(t, router, trade.TradeRequest{AccountID: acct.ID, StockID: 6, Kind: model.Buy, Quantity: 10})

	w := doJSON(t, router, "GET", "/api/v1/accounts/"+acct.ID+"/portfolio", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp trade.PortfolioResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if len(resp.Holdings) != 1 {
		t.Fatalf("expected 1 holding, got %d", len(resp.Holdings))
	}
	h := resp.Holdings[0]
	if h.Symbol != "ITC" {
		t.Errorf("expected ITC, got %s", h.Symbol)
	}
	// 10 × 435.20, bought and valued at the same quote.
	if !h.Invested.Equal(d("4352.00")) {
		t.Errorf("expected invested 4352.00, got %s", h.Invested)
	}
	if !h.MarketValue.Equal(d("4352.00")) {
		t.Errorf("expected market value 4352.00, got %s", h.MarketValue)
	}
	if !h.UnrealizedPnL.IsZero() {
		t.Errorf("expected zero PnL at unchanged quote, got %s", h.UnrealizedPnL)
	}
	if !resp.Balance.Equal(d("95648.00")) {
		t.Errorf("expected balance 95648.00, got %s", resp.Balance)
	}
}

func TestGetTransactions_OrderedLog(t *testing.T) {
	_, router := newTestEnv(t)
	acct := signup(t, router, "Asha", "asha@example.com")

	doTrade(t, router, trade.TradeRequest{AccountID: acct.ID, StockID: 6, Kind: model.Buy, Quantity: 3})
	doTrade(t, router, trade.TradeRequest{AccountID: acct.ID, StockID: 6, Kind: model.Sell, Quantity: 1})

	w := doJSON(t, router, "GET", "/api/v1/accounts/"+acct.ID+"/transactions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var txs []model.Transaction
	json.Unmarshal(w.Body.Bytes(), &txs)
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].Kind != model.Buy || txs[1].Kind != model.Sell {
		t.Errorf("unexpected order: %s, %s", txs[0].Kind, txs[1].Kind)
	}
	if txs[1].Timestamp.Before(txs[0].Timestamp) {
		t.Error("transaction log must be time ordered")
	}
}

func TestGetStockHistory_RangePoints(t *testing.T) {
	_, router := newTestEnv(t)

	for rng, want := range map[string]int{"day": 24, "month": 30, "year": 12} {
		w := doJSON(t, router, "GET", "/api/v1/stocks/INFY/history?range="+rng, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("range %s: expected 200, got %d", rng, w.Code)
		}
		var series []catalog.PricePoint
		json.Unmarshal(w.Body.Bytes(), &series)
		if len(series) != want {
			t.Errorf("range %s: expected %d points, got %d", rng, want, len(series))
		}
	}

	w := doJSON(t, router, "GET", "/api/v1/stocks/INFY/history?range=week", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown range, got %d", w.Code)
	}
}

// --- Watchlist tests ---

func TestToggleWatchlist_RoundTrip(t *testing.T) {
	_, router := newTestEnv(t)
	acct := signup(t, router, "Asha", "asha@example.com")
	path := fmt.Sprintf("/api/v1/accounts/%s/watchlist/3", acct.ID)

	w := doJSON(t, router, "POST", path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle failed: %d %s", w.Code, w.Body.String())
	}
	var resp trade.WatchlistResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Watching {
		t.Error("first toggle should add the stock")
	}

	// The watchlist read returns live quotes for the watched ids.
	w = doJSON(t, router, "GET", "/api/v1/accounts/"+acct.ID+"/watchlist", nil)
	var watched []model.Instrument
	json.Unmarshal(w.Body.Bytes(), &watched)
	if len(watched) != 1 || watched[0].Symbol != "HDFCBANK" {
		t.Fatalf("expected HDFCBANK watched, got %+v", watched)
	}

	w = doJSON(t, router, "POST", path, nil)
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Watching {
		t.Error("second toggle should remove the stock")
	}
}

func TestToggleWatchlist_UnknownStock(t *testing.T) {
	_, router := newTestEnv(t)
	acct := signup(t, router, "Asha", "asha@example.com")

	w := doJSON(t, router, "POST", fmt.Sprintf("/api/v1/accounts/%s/watchlist/999", acct.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown stock, got %d", w.Code)
	}
}

// --- Leaderboard tests ---

func TestGetLeaderboard_RanksByProfitPercent(t *testing.T) {
	ms, router := newTestEnv(t)

	a := signup(t, router, "A", "a@example.com")
	b := signup(t, router, "B", "b@example.com")
	c := signup(t, router, "C", "c@example.com")

	// Shape the balances directly: A +20%, B −10%, C +20%.
	ctx := context.Background()
	for id, balance := range map[string]string{a.ID: "120000", b.ID: "90000", c.ID: "120000"} {
		acct, _ := ms.GetAccount(ctx, id)
		acct.Balance = d(balance)
		if err := ms.SaveAccount(ctx, acct); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	w := doJSON(t, router, "GET", "/api/v1/leaderboard", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var entries []rank.Entry
	json.Unmarshal(w.Body.Bytes(), &entries)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	// Signup order breaks the A/C tie; B is last.
	if entries[0].AccountID != a.ID || entries[1].AccountID != c.ID || entries[2].AccountID != b.ID {
		t.Errorf("unexpected order: %s %s %s", entries[0].AccountID, entries[1].AccountID, entries[2].AccountID)
	}
	if !entries[0].ProfitPercent.Equal(d("20")) || !entries[2].ProfitPercent.Equal(d("-10")) {
		t.Errorf("unexpected profit%%: %s … %s", entries[0].ProfitPercent, entries[2].ProfitPercent)
	}
	for i, e := range entries {
		if e.Rank != i+1 {
			t.Errorf("entry %d: expected rank %d, got %d", i, i+1, e.Rank)
		}
	}
}

func TestGetLeaderboard_Empty(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, "GET", "/api/v1/leaderboard", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var entries []rank.Entry
	json.Unmarshal(w.Body.Bytes(), &entries)
	if len(entries) != 0 {
		t.Errorf("expected empty leaderboard, got %d entries", len(entries))
	}
}

// --- News ---

func TestGetNews_Filtered(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, "GET", "/api/v1/news?category=earnings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var items []model.NewsItem
	json.Unmarshal(w.Body.Bytes(), &items)
	if len(items) == 0 {
		t.Fatal("expected earnings items")
	}
	for _, item := range items {
		if item.Category != "earnings" {
			t.Errorf("filter leaked category %s", item.Category)
		}
	}
}

// --- End-to-end scenario from the simulator's accounting contract ---

func TestEndToEnd_BuyThenSellAtNewQuote(t *testing.T) {
	// A catalog under test control so the sell executes at a moved price.
	cat := catalog.NewWith([]model.Instrument{
		{ID: 1, Symbol: "RELIANCE", Name: "Reliance Industries", Price: d("2870.45")},
	})
	ms := store.NewMemoryStore()
	router := newRouter(trade.NewService(ms, cat, d("100000"), nil))

	acct := signup(t, router, "Asha", "asha@example.com")

	w := doTrade(t, router, trade.TradeRequest{AccountID: acct.ID, StockID: 1, Kind: model.Buy, Quantity: 10})
	if w.Code != http.StatusOK {
		t.Fatalf("buy failed: %d %s", w.Code, w.Body.String())
	}
	var resp trade.TradeResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Balance.Equal(d("71295.50")) {
		t.Fatalf("expected balance 71295.50 after buy, got %s", resp.Balance)
	}

	// Quote moves to 2900.00; sell 4.
	cat2 := catalog.NewWith([]model.Instrument{
		{ID: 1, Symbol: "RELIANCE", Name: "Reliance Industries", Price: d("2900.00")},
	})
	router2 := newRouter(trade.NewService(ms, cat2, d("100000"), nil))

	w = doJSON(t, router2, "POST", "/api/v1/trade", trade.TradeRequest{
		AccountID: acct.ID, StockID: 1, Kind: model.Sell, Quantity: 4,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("sell failed: %d %s", w.Code, w.Body.String())
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if !resp.Balance.Equal(d("82895.50")) {
		t.Errorf("expected balance 82895.50, got %s", resp.Balance)
	}
	if resp.Position.Quantity != 6 {
		t.Errorf("expected 6 shares left, got %d", resp.Position.Quantity)
	}
	if !resp.Position.AverageCost.Equal(d("2870.45")) {
		t.Errorf("expected cost basis unchanged at 2870.45, got %s", resp.Position.AverageCost)
	}
	if !resp.Transaction.Total.Equal(d("11600.00")) {
		t.Errorf("expected sell total 11600.00, got %s", resp.Transaction.Total)
	}

	stored, _ := ms.GetAccount(context.Background(), acct.ID)
	if len(stored.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(stored.Transactions))
	}
}
