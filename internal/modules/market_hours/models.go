// Package market_hours answers market calendar questions: session hours,
// weekends, exchange holidays and trading-day arithmetic. It backs the
// Clock dependency injected into the quote cache and the reconstruction
// engine.
package market_hours

import "time"

// CalendarType represents the calendar system used for Easter calculation
type CalendarType int

const (
	// Gregorian calendar (Western/Catholic)
	Gregorian CalendarType = iota
	// Julian calendar (Orthodox)
	Julian
)

// TradingHours represents regular trading hours for an exchange
type TradingHours struct {
	OpenHour    int // Hour (0-23)
	OpenMinute  int // Minute (0-59)
	CloseHour   int // Hour (0-23)
	CloseMinute int // Minute (0-59)
}

// EarlyCloseRule represents a rule for early market closure
type EarlyCloseRule struct {
	Name        string
	CloseHour   int
	CloseMinute int
	// DatePattern reports whether t (already in market timezone) is an
	// early close day.
	DatePattern func(t time.Time) bool
}

// HolidayRuleSet defines holidays for an exchange
type HolidayRuleSet struct {
	// Fixed date holidays (with observance rules)
	FixedDateHolidays []FixedDateHoliday
	// Rule-based holidays (nth weekday, etc.)
	RuleBasedHolidays []RuleBasedHoliday
	// Easter-based holidays
	EasterBasedHolidays []EasterBasedHoliday
}

// FixedDateHoliday represents a holiday on a fixed date
type FixedDateHoliday struct {
	Month int // 1-12
	Day   int // 1-31
	// If true, observe on nearest weekday if falls on weekend
	ObserveOnWeekday bool
}

// RuleBasedHoliday represents a holiday calculated by rule
// (nth weekday of a month, -1 = last)
type RuleBasedHoliday struct {
	Month   int
	Weekday time.Weekday
	N       int
}

// EasterBasedHoliday represents a holiday relative to Easter
type EasterBasedHoliday struct {
	DaysOffset int // Days from Easter (negative = before, positive = after)
}

// ExchangeConfig represents configuration for a single exchange
type ExchangeConfig struct {
	Code            string
	Name            string
	TradingHours    TradingHours
	Timezone        *time.Location
	EasterType      CalendarType
	EarlyCloseRules []EarlyCloseRule
	HolidayRules    HolidayRuleSet
}

// MarketStatus represents the current status of a market
type MarketStatus struct {
	Open      bool   `json:"open"`
	Exchange  string `json:"exchange"`
	Timezone  string `json:"timezone"`
	ClosesAt  string `json:"closes_at,omitempty"`  // Time when market closes (if open)
	OpensAt   string `json:"opens_at,omitempty"`   // Time when market opens (if closed)
	OpensDate string `json:"opens_date,omitempty"` // Date when market opens (if not today)
}
