package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/model"
)

func p(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// seedInstruments returns the default tradable universe: ten large-cap
// NSE equities with their launch prices.
func seedInstruments() []model.Instrument {
	return []model.Instrument{
		{ID: 1, Name: "Reliance Industries", Symbol: "RELIANCE", Price: p("2870.45"), ChangePercent: p("2.5"), Volume: 123456, MarketCap: p("1824500")},
		{ID: 2, Name: "Tata Consultancy Services", Symbol: "TCS", Price: p("3540.60"), ChangePercent: p("0.5"), Volume: 98765, MarketCap: p("1298700")},
		{ID: 3, Name: "HDFC Bank", Symbol: "HDFCBANK", Price: p("1690.30"), ChangePercent: p("1.2"), Volume: 154832, MarketCap: p("942800")},
		{ID: 4, Name: "Infosys", Symbol: "INFY", Price: p("1450.75"), ChangePercent: p("-0.8"), Volume: 112435, MarketCap: p("624300")},
		{ID: 5, Name: "Bharti Airtel", Symbol: "BHARTIARTL", Price: p("920.15"), ChangePercent: p("-1.3"), Volume: 87245, MarketCap: p("523600")},
		{ID: 6, Name: "ITC Limited", Symbol: "ITC", Price: p("435.20"), ChangePercent: p("0.2"), Volume: 198723, MarketCap: p("543200")},
		{ID: 7, Name: "Hindustan Unilever", Symbol: "HINDUNILVR", Price: p("2580.40"), ChangePercent: p("-0.3"), Volume: 76543, MarketCap: p("607500")},
		{ID: 8, Name: "ICICI Bank", Symbol: "ICICIBANK", Price: p("945.65"), ChangePercent: p("1.7"), Volume: 143256, MarketCap: p("662800")},
		{ID: 9, Name: "State Bank of India", Symbol: "SBIN", Price: p("625.30"), ChangePercent: p("0.8"), Volume: 165432, MarketCap: p("558700")},
		{ID: 10, Name: "Larsen & Toubro", Symbol: "LT", Price: p("2780.90"), ChangePercent: p("2.1"), Volume: 87654, MarketCap: p("391500")},
	}
}
