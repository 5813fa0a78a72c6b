// Package rank derives the cross-user profitability leaderboard.
//
// Standings is a pure function over the full set of accounts: it never
// mutates its input and returns a freshly ordered slice.
package rank

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Entry is one leaderboard row.
type Entry struct {
	AccountID     string          `json:"account_id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Balance       decimal.Decimal `json:"balance"`
	Profit        decimal.Decimal `json:"profit"`
	ProfitPercent decimal.Decimal `json:"profit_percent"`
	Rank          int             `json:"rank"`
}

// Standings computes profit and profit% for every account, sorts
// descending by profit%, and assigns 1-based ranks. The sort is stable:
// accounts with identical profit% keep their input order. An account with
// a zero starting balance gets profit% 0 by convention rather than
// dividing by zero.
func Standings(accounts []model.Account) []Entry {
	entries := make([]Entry, 0, len(accounts))
	for _, a := range accounts {
		profit := a.Balance.Sub(a.StartingBalance)
		pct := decimal.Zero
		if !a.StartingBalance.IsZero() {
			pct = profit.Div(a.StartingBalance).Mul(hundred)
		}
		entries = append(entries, Entry{
			AccountID:     a.ID,
			Name:          a.Name,
			Email:         a.Email,
			Balance:       a.Balance,
			Profit:        profit,
			ProfitPercent: pct,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ProfitPercent.GreaterThan(entries[j].ProfitPercent)
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
