package model

import (
	"strings"
	"time"
)

// PricePoint is one observation in a price history. Price is the close.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Volume    float64   `json:"volume"`
}

// Quote is the spot view of a pair returned by a market data source.
type Quote struct {
	Pair      string    `json:"pair"`
	Price     float64   `json:"price"`
	High24h   float64   `json:"high_24h"`
	Low24h    float64   `json:"low_24h"`
	Change24h float64   `json:"change_24h"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Snapshot is a quote plus its history and, once computed, its indicators.
type Snapshot struct {
	Quote
	History    []PricePoint  `json:"-"`
	Indicators *IndicatorSet `json:"technical_indicators"`
}

// SymbolOf returns the base asset of a pair: "BTC/USD" -> "BTC".
func SymbolOf(pair string) string {
	if i := strings.Index(pair, "/"); i >= 0 {
		return strings.ToUpper(strings.TrimSpace(pair[:i]))
	}
	return strings.ToUpper(strings.TrimSpace(pair))
}
