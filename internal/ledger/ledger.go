// Package ledger implements the portfolio accounting engine: the cash
// ledger, the holdings book with weighted-average cost basis, the
// append-only transaction log, and the watchlist set.
//
// Every function here mutates a single *model.Account in memory and
// performs no I/O. Callers apply a mutation to a clone of the stored
// record and persist the whole clone as one write; a validation error
// means the account was not touched at all.
//
// All monetary values use shopspring/decimal — never float64 for money.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/model"
)

var (
	// ErrInvalidQuantity is returned when a trade quantity is not a
	// positive whole number of shares.
	ErrInvalidQuantity = errors.New("ledger: quantity must be a positive whole number")

	// ErrInsufficientFunds is returned when a buy costs more than the
	// account's cash balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrInsufficientShares is returned when a sell exceeds the held
	// quantity of the instrument.
	ErrInsufficientShares = errors.New("ledger: insufficient shares")

	// ErrInvalidAmount is returned when a credit or debit amount is not
	// strictly positive.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
)

// Credit adds amount to the account's cash balance.
// Amounts are validated sale proceeds upstream, so the only failure is a
// non-positive amount, which indicates a programming error in the caller.
func Credit(acct *model.Account, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	acct.Balance = acct.Balance.Add(amount)
	return nil
}

// Debit removes amount from the account's cash balance. Fails with
// ErrInsufficientFunds when the balance cannot cover it, leaving the
// account unchanged. The balance never goes negative.
func Debit(acct *model.Account, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if acct.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	acct.Balance = acct.Balance.Sub(amount)
	return nil
}

// ApplyBuy executes a market buy of qty shares at the instrument's current
// price: debits cost, creates or re-averages the position, and appends a
// buy transaction. On any error the account is left exactly as it was.
//
// Average cost after a buy of an existing position is
//
//	(oldAvg×oldQty + cost) / (oldQty + qty)
//
// the weighted-average method — the only policy consistent with a single
// scalar average-cost field.
func ApplyBuy(acct *model.Account, inst model.Instrument, qty int64, now time.Time) (model.Transaction, error) {
	if qty <= 0 {
		return model.Transaction{}, ErrInvalidQuantity
	}

	cost := inst.Price.Mul(decimal.NewFromInt(qty))
	if err := Debit(acct, cost); err != nil {
		return model.Transaction{}, err
	}

	if pos := acct.Position(inst.ID); pos != nil {
		oldQty := decimal.NewFromInt(pos.Quantity)
		newQty := decimal.NewFromInt(pos.Quantity + qty)
		pos.AverageCost = pos.AverageCost.Mul(oldQty).Add(cost).Div(newQty)
		pos.Quantity += qty
		pos.LastPrice = inst.Price
	} else {
		acct.Positions = append(acct.Positions, model.Position{
			InstrumentID: inst.ID,
			Symbol:       inst.Symbol,
			Name:         inst.Name,
			Quantity:     qty,
			AverageCost:  inst.Price,
			LastPrice:    inst.Price,
		})
	}

	tx := appendTransaction(acct, inst, qty, cost, model.Buy, now)
	return tx, nil
}

// ApplySell executes a market sell of qty shares at the instrument's
// current price: credits the proceeds, shrinks or removes the position,
// and appends a sell transaction. Selling does not alter the average cost
// of the remaining shares; selling the full holding removes the position
// entirely (a zero-quantity position is never retained).
func ApplySell(acct *model.Account, inst model.Instrument, qty int64, now time.Time) (model.Transaction, error) {
	if qty <= 0 {
		return model.Transaction{}, ErrInvalidQuantity
	}

	pos := acct.Position(inst.ID)
	if pos == nil || pos.Quantity < qty {
		return model.Transaction{}, ErrInsufficientShares
	}

	proceeds := inst.Price.Mul(decimal.NewFromInt(qty))
	if err := Credit(acct, proceeds); err != nil {
		return model.Transaction{}, err
	}

	if pos.Quantity == qty {
		removePosition(acct, inst.ID)
	} else {
		pos.Quantity -= qty
		pos.LastPrice = inst.Price
	}

	tx := appendTransaction(acct, inst, qty, proceeds, model.Sell, now)
	return tx, nil
}

// AddWatch inserts the instrument into the watchlist. Reports whether the
// set changed; adding an already-present id is a no-op.
func AddWatch(acct *model.Account, instrumentID int64) bool {
	if acct.Watching(instrumentID) {
		return false
	}
	acct.Watchlist = append(acct.Watchlist, instrumentID)
	return true
}

// RemoveWatch removes the instrument from the watchlist. Reports whether
// the set changed; removing an absent id is a no-op.
func RemoveWatch(acct *model.Account, instrumentID int64) bool {
	for i, id := range acct.Watchlist {
		if id == instrumentID {
			acct.Watchlist = append(acct.Watchlist[:i], acct.Watchlist[i+1:]...)
			return true
		}
	}
	return false
}

// ToggleWatch flips watchlist membership and reports whether the
// instrument is watched afterwards.
func ToggleWatch(acct *model.Account, instrumentID int64) bool {
	if RemoveWatch(acct, instrumentID) {
		return false
	}
	AddWatch(acct, instrumentID)
	return true
}

// appendTransaction records an executed trade on the account's append-only
// log. Timestamps are clamped to be non-decreasing per account so the log
// stays ordered even if the wall clock steps backwards.
func appendTransaction(acct *model.Account, inst model.Instrument, qty int64, total decimal.Decimal, kind model.TradeKind, now time.Time) model.Transaction {
	if n := len(acct.Transactions); n > 0 {
		if last := acct.Transactions[n-1].Timestamp; now.Before(last) {
			now = last
		}
	}
	tx := model.Transaction{
		ID:           uuid.New().String(),
		InstrumentID: inst.ID,
		Symbol:       inst.Symbol,
		Name:         inst.Name,
		Quantity:     qty,
		Price:        inst.Price,
		Total:        total,
		Kind:         kind,
		Timestamp:    now,
	}
	acct.Transactions = append(acct.Transactions, tx)
	return tx
}

func removePosition(acct *model.Account, instrumentID int64) {
	for i := range acct.Positions {
		if acct.Positions[i].InstrumentID == instrumentID {
			acct.Positions = append(acct.Positions[:i], acct.Positions[i+1:]...)
			return
		}
	}
}
