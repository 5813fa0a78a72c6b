// Package model defines the core domain types shared across the trading engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeKind discriminates buy and sell transactions.
type TradeKind string

const (
	Buy  TradeKind = "buy"
	Sell TradeKind = "sell"
)

// Valid reports whether k is a recognized trade kind.
func (k TradeKind) Valid() bool {
	return k == Buy || k == Sell
}

// Instrument is one tradable equity in the quote catalog. The catalog seeds
// these at startup; prices may be refreshed externally, but a trade always
// executes against the price snapshot it was handed.
type Instrument struct {
	ID            int64           `json:"id" db:"id"`
	Symbol        string          `json:"symbol" db:"symbol"`
	Name          string          `json:"name" db:"name"`
	Price         decimal.Decimal `json:"price" db:"price"`
	ChangePercent decimal.Decimal `json:"change_percent" db:"change_percent"`
	Volume        int64           `json:"volume" db:"volume"`
	MarketCap     decimal.Decimal `json:"market_cap" db:"market_cap"`
}

// Position is a held quantity of one instrument for one account.
// A position with quantity zero must never exist — it is deleted instead.
type Position struct {
	InstrumentID int64           `json:"instrument_id" db:"instrument_id"`
	Symbol       string          `json:"symbol" db:"symbol"`
	Name         string          `json:"name" db:"name"`
	Quantity     int64           `json:"quantity" db:"quantity"`
	AverageCost  decimal.Decimal `json:"average_cost" db:"average_cost"`
	LastPrice    decimal.Decimal `json:"last_price" db:"last_price"` // price seen at the most recent trade
}

// Transaction is an immutable record of one executed trade.
// Once created, these are never modified or deleted.
type Transaction struct {
	ID           string          `json:"id" db:"id"`
	InstrumentID int64           `json:"instrument_id" db:"instrument_id"`
	Symbol       string          `json:"symbol" db:"symbol"`
	Name         string          `json:"name" db:"name"`
	Quantity     int64           `json:"quantity" db:"quantity"`
	Price        decimal.Decimal `json:"price" db:"price"` // execution price snapshot
	Total        decimal.Decimal `json:"total" db:"total"` // quantity × price
	Kind         TradeKind       `json:"kind" db:"kind"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}

// Account is one registered user together with everything the engine
// persists for them. The whole record is written back as a single unit
// after every mutation — that ordering is what makes a trade atomic.
type Account struct {
	ID              string          `json:"id" db:"id"`
	Name            string          `json:"name" db:"name"`
	Email           string          `json:"email" db:"email"`
	Balance         decimal.Decimal `json:"balance" db:"balance"`
	StartingBalance decimal.Decimal `json:"starting_balance" db:"starting_balance"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`

	Positions    []Position    `json:"positions"`
	Transactions []Transaction `json:"transactions"`
	Watchlist    []int64       `json:"watchlist"`
}

// Clone returns a deep copy of the account. Mutations are applied to a
// clone and only become visible once the clone is saved, so a failed save
// leaves both the caller and the store untouched.
func (a *Account) Clone() *Account {
	c := *a
	c.Positions = append([]Position(nil), a.Positions...)
	c.Transactions = append([]Transaction(nil), a.Transactions...)
	c.Watchlist = append([]int64(nil), a.Watchlist...)
	return &c
}

// Position returns a pointer to the account's position in the given
// instrument, or nil if none is held.
func (a *Account) Position(instrumentID int64) *Position {
	for i := range a.Positions {
		if a.Positions[i].InstrumentID == instrumentID {
			return &a.Positions[i]
		}
	}
	return nil
}

// Watching reports whether the instrument is on the account's watchlist.
func (a *Account) Watching(instrumentID int64) bool {
	for _, id := range a.Watchlist {
		if id == instrumentID {
			return true
		}
	}
	return false
}

// NewsItem is one entry of the static market-news feed.
type NewsItem struct {
	ID       int64  `json:"id"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Source   string `json:"source"`
	Category string `json:"category"`
	TimeAgo  string `json:"time_ago"`
}
