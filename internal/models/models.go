// Package models provides domain models for the market data manager.
package models

import (
	"strings"
	"time"
)

// Category classifies a tracked asset.
type Category string

const (
	CategoryStock     Category = "stock"
	CategoryCrypto    Category = "crypto"
	CategoryIndex     Category = "index"
	CategoryCommodity Category = "commodity"
	CategoryCustom    Category = "custom"
)

// ValidCategory reports whether c is a known asset category.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryStock, CategoryCrypto, CategoryIndex, CategoryCommodity, CategoryCustom:
		return true
	}
	return false
}

// Interval is the bar interval used when fetching history.
type Interval string

const (
	IntervalDaily   Interval = "1d"
	IntervalWeekly  Interval = "1wk"
	IntervalMonthly Interval = "1mo"
)

// ValidInterval reports whether i is a supported fetch interval.
func ValidInterval(i Interval) bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
		return true
	}
	return false
}

// Asset represents a tracked financial instrument.
type Asset struct {
	ID        int64     `json:"id"`
	Ticker    string    `json:"ticker"`
	Name      string    `json:"name"`
	Category  Category  `json:"category"`
	Sector    string    `json:"sector,omitempty"`
	Interval  Interval  `json:"interval"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PricePoint is one OHLCV record for an asset on one date.
// Date has day granularity and is stored timezone-naive, semantically UTC.
// Volume and AdjClose are nil when the provider did not report them.
type PricePoint struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   *float64  `json:"volume,omitempty"`
	AdjClose *float64  `json:"adj_close,omitempty"`
}

// Setting is one global key/value configuration entry.
type Setting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AssetMeta holds provider metadata for a symbol. Fields the provider does
// not report are left zero.
type AssetMeta struct {
	Symbol   string   `json:"symbol"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Sector   string   `json:"sector,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Exchange string   `json:"exchange,omitempty"`
}

// SearchMatch is a single candidate from a provider symbol search.
type SearchMatch struct {
	Symbol   string   `json:"symbol"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Exchange string   `json:"exchange,omitempty"`
}

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Day truncates t to day granularity in UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
