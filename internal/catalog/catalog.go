// Package catalog holds the fixed set of tradable instruments: seed data,
// symbol lookup, an externally driven price refresh, and the mock
// historical-series generator backing the charts.
//
// The accounting engine treats the catalog as read-only; Tick is the one
// mutation point and is driven by the server's refresh loop.
package catalog

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/model"
)

var (
	// ErrUnknownInstrument is returned for lookups of ids or symbols not
	// in the catalog.
	ErrUnknownInstrument = errors.New("catalog: unknown instrument")

	// ErrUnknownRange is returned for history ranges other than
	// day, month, or year.
	ErrUnknownRange = errors.New("catalog: unknown history range")
)

// tickVolatility bounds a single refresh step to ±2% of the current price.
var tickVolatility = decimal.NewFromFloat(0.02)

// Range selects the resolution of a historical series.
type Range string

const (
	RangeDay   Range = "day"   // 24 hourly points
	RangeMonth Range = "month" // 30 daily points
	RangeYear  Range = "year"  // 12 monthly points
)

// Points returns the number of samples in a series of this range,
// or 0 for an unknown range.
func (r Range) Points() int {
	switch r {
	case RangeDay:
		return 24
	case RangeMonth:
		return 30
	case RangeYear:
		return 12
	default:
		return 0
	}
}

// PricePoint is one sample of a historical series.
type PricePoint struct {
	Label string          `json:"label"`
	Price decimal.Decimal `json:"price"`
}

// Catalog is the in-memory instrument set. Reads take an RLock; Tick takes
// the write lock.
type Catalog struct {
	mu       sync.RWMutex
	byID     map[int64]*model.Instrument
	bySymbol map[string]*model.Instrument
	order    []int64
	rnd      *rand.Rand
}

// New creates a catalog seeded with the default instrument set.
func New() *Catalog {
	return NewWith(seedInstruments())
}

// NewWith creates a catalog from an explicit instrument list. Used by
// tests and by deployments that load their own seed.
func NewWith(instruments []model.Instrument) *Catalog {
	c := &Catalog{
		byID:     make(map[int64]*model.Instrument, len(instruments)),
		bySymbol: make(map[string]*model.Instrument, len(instruments)),
		rnd:      rand.New(rand.NewSource(rand.Int63())),
	}
	for i := range instruments {
		inst := instruments[i]
		c.byID[inst.ID] = &inst
		c.bySymbol[inst.Symbol] = &inst
		c.order = append(c.order, inst.ID)
	}
	return c
}

// Get returns the instrument with the given id.
func (c *Catalog) Get(id int64) (model.Instrument, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	inst, ok := c.byID[id]
	if !ok {
		return model.Instrument{}, ErrUnknownInstrument
	}
	return *inst, nil
}

// GetBySymbol returns the instrument with the given ticker symbol.
func (c *Catalog) GetBySymbol(symbol string) (model.Instrument, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	inst, ok := c.bySymbol[symbol]
	if !ok {
		return model.Instrument{}, ErrUnknownInstrument
	}
	return *inst, nil
}

// List returns all instruments in seed order.
func (c *Catalog) List() []model.Instrument {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.Instrument, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.byID[id])
	}
	return out
}

// Tick applies one random-walk refresh step to every instrument: each
// price moves by at most ±2% and the change percent is updated to the
// step's move. Returns the refreshed instruments in seed order.
func (c *Catalog) Tick() []model.Instrument {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.Instrument, 0, len(c.order))
	for _, id := range c.order {
		inst := c.byID[id]

		step := decimal.NewFromFloat(c.rnd.Float64()*2 - 1).Mul(tickVolatility)
		inst.Price = inst.Price.Mul(decimal.NewFromInt(1).Add(step)).Round(2)
		inst.ChangePercent = step.Mul(decimal.NewFromInt(100)).Round(2)

		out = append(out, *inst)
	}
	return out
}

// History generates the mock historical series for a symbol: samples
// scattered around the instrument's current price with 2% volatility,
// widening with distance from the series start. The series is
// deterministic for a given symbol, range, and base price.
func (c *Catalog) History(symbol string, r Range) ([]PricePoint, error) {
	points := r.Points()
	if points == 0 {
		return nil, ErrUnknownRange
	}

	inst, err := c.GetBySymbol(symbol)
	if err != nil {
		return nil, err
	}

	rnd := rand.New(rand.NewSource(historySeed(symbol, r, inst.Price)))
	base := inst.Price

	series := make([]PricePoint, 0, points)
	for i := 0; i < points; i++ {
		step := decimal.NewFromFloat(rnd.Float64() - 0.5).Mul(tickVolatility).Mul(base)
		price := base.Add(step.Mul(decimal.NewFromInt(int64(i + 1)))).Round(2)
		if price.LessThanOrEqual(decimal.Zero) {
			price = base // never emit a non-positive mock price
		}
		series = append(series, PricePoint{Label: historyLabel(r, i), Price: price})
	}
	return series, nil
}

func historySeed(symbol string, r Range, base decimal.Decimal) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	h.Write([]byte(r))
	h.Write([]byte(base.String()))
	return int64(h.Sum64())
}

func historyLabel(r Range, i int) string {
	switch r {
	case RangeDay:
		return fmt.Sprintf("%d:00", i)
	case RangeMonth:
		return fmt.Sprintf("Day %d", i+1)
	default:
		return fmt.Sprintf("Month %d", i+1)
	}
}
