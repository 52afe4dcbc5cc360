package models

// Currency identifies one of the five in-game denominations.
type Currency string

const (
	CurrencyDiamonds Currency = "diamonds"
	CurrencyDollars  Currency = "dollars"
	CurrencyPounds   Currency = "pounds"
	CurrencyEuros    Currency = "euros"
	CurrencyYen      Currency = "yen"
)

// currencyInfo holds immutable reference data for a currency.
type currencyInfo struct {
	Symbol string
	Name   string
}

var currencyCatalog = map[Currency]currencyInfo{
	CurrencyDiamonds: {Symbol: "\U0001F48E", Name: "Diamonds"},
	CurrencyDollars:  {Symbol: "\U0001F4B5", Name: "Dollars"},
	CurrencyPounds:   {Symbol: "\U0001F4B7", Name: "Pounds"},
	CurrencyEuros:    {Symbol: "\U0001F4B6", Name: "Euros"},
	CurrencyYen:      {Symbol: "\U0001F4B4", Name: "Yen"},
}

// AllCurrencies lists every known currency in display order.
var AllCurrencies = []Currency{
	CurrencyDiamonds,
	CurrencyDollars,
	CurrencyPounds,
	CurrencyEuros,
	CurrencyYen,
}

// IsValid reports whether the currency is one of the five known denominations.
func (c Currency) IsValid() bool {
	_, ok := currencyCatalog[c]
	return ok
}

// Symbol returns the display symbol for the currency ("" for unknown).
func (c Currency) Symbol() string {
	return currencyCatalog[c].Symbol
}

// DisplayName returns the human-readable currency name ("" for unknown).
func (c Currency) DisplayName() string {
	return currencyCatalog[c].Name
}

// IsPremium reports whether the currency is the premium denomination.
// Diamonds are the only currency accepted for custom (premium) choices.
func (c Currency) IsPremium() bool {
	return c == CurrencyDiamonds
}

// CostTuple maps currencies to non-negative amounts. A debit of a tuple is
// all-or-nothing: either every currency in it is decremented or none is.
type CostTuple map[Currency]int64

// Clone returns an independent copy of the tuple.
func (t CostTuple) Clone() CostTuple {
	out := make(CostTuple, len(t))
	for cur, amount := range t {
		out[cur] = amount
	}
	return out
}

// IsZero reports whether the tuple carries no positive amounts.
func (t CostTuple) IsZero() bool {
	for _, amount := range t {
		if amount > 0 {
			return false
		}
	}
	return true
}

// StartingBalances is the standard issue for a newly seeded wallet.
var StartingBalances = map[Currency]int64{
	CurrencyDiamonds: 50,
	CurrencyDollars:  50,
	CurrencyPounds:   40,
	CurrencyEuros:    45,
	CurrencyYen:      500,
}

// CustomChoiceCost is the fixed diamond price of a custom (player-written)
// choice, resolved at selection time rather than at generation time.
var CustomChoiceCost = CostTuple{CurrencyDiamonds: 1}

// tierPrices holds the per-currency price table for each paid tier. A generated
// choice is priced in exactly one non-premium currency drawn from its tier.
var tierPrices = map[ChoiceTier]map[Currency]int64{
	TierLow: {
		CurrencyDollars: 5,
		CurrencyPounds:  4,
		CurrencyEuros:   4,
		CurrencyYen:     50,
	},
	TierMedium: {
		CurrencyDollars: 15,
		CurrencyPounds:  12,
		CurrencyEuros:   13,
		CurrencyYen:     150,
	},
	TierHigh: {
		CurrencyDollars: 25,
		CurrencyPounds:  20,
		CurrencyEuros:   22,
		CurrencyYen:     250,
	},
}

// TierCost returns the cost tuple for a tier priced in the given currency.
// Custom tier always prices in diamonds regardless of the requested currency.
// Unknown tier/currency combinations fall back to the medium dollar price so a
// mispriced choice is still playable rather than free.
func TierCost(tier ChoiceTier, currency Currency) CostTuple {
	if tier == TierCustom {
		return CustomChoiceCost.Clone()
	}
	prices, ok := tierPrices[tier]
	if !ok {
		prices = tierPrices[TierMedium]
	}
	amount, ok := prices[currency]
	if !ok {
		return CostTuple{CurrencyDollars: prices[CurrencyDollars]}
	}
	return CostTuple{currency: amount}
}

// TierCurrencies lists the currencies a paid tier can price in, in stable
// order, for callers that pick one at node-creation time.
func TierCurrencies(tier ChoiceTier) []Currency {
	prices, ok := tierPrices[tier]
	if !ok {
		return nil
	}
	out := make([]Currency, 0, len(prices))
	for _, cur := range AllCurrencies {
		if _, found := prices[cur]; found {
			out = append(out, cur)
		}
	}
	return out
}
