package catalog

import "github.com/papertrade/engine/internal/model"

// newsSeed is the static market-news fixture served by the news endpoint.
var newsSeed = []model.NewsItem{
	{
		ID:       1,
		Headline: "RBI announces new regulations for fintech companies",
		Summary:  "The Reserve Bank of India (RBI) has introduced new regulations for fintech companies operating in the country. The guidelines aim to enhance customer protection and data security while promoting innovation in the financial sector.",
		Source:   "Economic Times",
		Category: "banking",
		TimeAgo:  "3 hours ago",
	},
	{
		ID:       2,
		Headline: "Reliance Industries posts record quarterly profit",
		Summary:  "Reliance Industries Limited (RIL) announced its highest-ever quarterly profit, beating market expectations. Strong performance in retail and digital services offset weakness in the petrochemical business.",
		Source:   "Business Standard",
		Category: "earnings",
		TimeAgo:  "5 hours ago",
	},
	{
		ID:       3,
		Headline: "Government plans to reduce import duties on electronic components",
		Summary:  "The Indian government is considering a reduction in import duties on electronic components to boost local manufacturing. The move is expected to benefit companies in the electronics and semiconductor sectors.",
		Source:   "Mint",
		Category: "policy",
		TimeAgo:  "8 hours ago",
	},
	{
		ID:       4,
		Headline: "Infosys wins major contract with European banking client",
		Summary:  "Infosys has secured a significant multi-year contract with a leading European bank for digital transformation services. The deal is valued at over $200 million and will involve modernizing the bank's IT infrastructure.",
		Source:   "Financial Express",
		Category: "technology",
		TimeAgo:  "1 day ago",
	},
	{
		ID:       5,
		Headline: "SEBI tightens rules for mutual fund investments",
		Summary:  "The Securities and Exchange Board of India (SEBI) has announced stricter regulations for mutual fund investments in unlisted securities. The move aims to protect investor interests and enhance transparency in the mutual fund industry.",
		Source:   "Livemint",
		Category: "policy",
		TimeAgo:  "1 day ago",
	},
	{
		ID:       6,
		Headline: "Tata Steel reports strong domestic sales growth",
		Summary:  "Tata Steel has reported robust growth in domestic sales for the quarter, despite challenging global market conditions. The company's focus on value-added products and cost optimization has helped maintain profitability.",
		Source:   "Economic Times",
		Category: "earnings",
		TimeAgo:  "2 days ago",
	},
}

// News returns the news feed, optionally filtered by category.
// The empty category returns everything. The result is never nil, so it
// always serializes as a JSON array.
func News(category string) []model.NewsItem {
	if category == "" {
		return append([]model.NewsItem(nil), newsSeed...)
	}
	out := make([]model.NewsItem, 0, len(newsSeed))
	for _, item := range newsSeed {
		if item.Category == category {
			out = append(out, item)
		}
	}
	return out
}
