package market_hours

import (
	"strings"
	"time"
)

// Exchange name aliases accepted in configuration and API input.
var exchangeNameToCode = map[string]string{
	"NYSE":      "XNYS",
	"New York":  "XNYS",
	"NASDAQ":    "XNAS",
	"NasdaqCM":  "XNAS",
	"NasdaqGS":  "XNAS",
	"LSE":       "XLON",
	"London":    "XLON",
	"XETRA":     "XETR",
	"Frankfurt": "XETR",
}

// GetExchangeCode normalizes an exchange name or code to a known code.
// Unknown names fall back to XNYS (fail-safe).
func GetExchangeCode(name string) string {
	normalized := strings.TrimSpace(name)

	if _, exists := exchangeConfigs[normalized]; exists {
		return normalized
	}

	if code, ok := exchangeNameToCode[normalized]; ok {
		return code
	}

	for alias, code := range exchangeNameToCode {
		if strings.EqualFold(normalized, alias) {
			return code
		}
	}

	return "XNYS"
}

// getExchangeConfig returns the configuration for an exchange code,
// defaulting to XNYS when the code is unknown.
func getExchangeConfig(exchangeCode string) *ExchangeConfig {
	if config, ok := exchangeConfigs[exchangeCode]; ok {
		return &config
	}
	if config, ok := exchangeConfigs["XNYS"]; ok {
		return &config
	}
	return nil
}

// usEarlyCloseRules are shared by XNYS and XNAS: half days before
// Thanksgiving, before Christmas, and before a Friday July 4th.
func usEarlyCloseRules() []EarlyCloseRule {
	return []EarlyCloseRule{
		{
			Name:        "Day before Thanksgiving",
			CloseHour:   13,
			CloseMinute: 0,
			DatePattern: func(t time.Time) bool {
				thanksgiving := findNthWeekday(t.Year(), 11, time.Thursday, 4)
				dayBefore := thanksgiving.AddDate(0, 0, -1)
				return t.Month() == dayBefore.Month() && t.Day() == dayBefore.Day()
			},
		},
		{
			Name:        "Christmas Eve",
			CloseHour:   13,
			CloseMinute: 0,
			DatePattern: func(t time.Time) bool {
				return t.Month() == 12 && t.Day() == 24
			},
		},
		{
			Name:        "July 3rd before a Friday 4th",
			CloseHour:   13,
			CloseMinute: 0,
			DatePattern: func(t time.Time) bool {
				if t.Month() == 7 && t.Day() == 3 {
					july4 := time.Date(t.Year(), 7, 4, 0, 0, 0, 0, t.Location())
					return july4.Weekday() == time.Friday
				}
				return false
			},
		},
	}
}

// usHolidayRules are the NYSE/NASDAQ holiday rules.
func usHolidayRules() HolidayRuleSet {
	return HolidayRuleSet{
		FixedDateHolidays: []FixedDateHoliday{
			{Month: 1, Day: 1, ObserveOnWeekday: true},   // New Year's Day
			{Month: 6, Day: 19, ObserveOnWeekday: true},  // Juneteenth
			{Month: 7, Day: 4, ObserveOnWeekday: true},   // Independence Day
			{Month: 12, Day: 25, ObserveOnWeekday: true}, // Christmas
		},
		RuleBasedHolidays: []RuleBasedHoliday{
			{Month: 1, Weekday: time.Monday, N: 3},    // MLK Day
			{Month: 2, Weekday: time.Monday, N: 3},    // Presidents Day
			{Month: 5, Weekday: time.Monday, N: -1},   // Memorial Day (last)
			{Month: 9, Weekday: time.Monday, N: 1},    // Labor Day
			{Month: 11, Weekday: time.Thursday, N: 4}, // Thanksgiving
		},
		EasterBasedHolidays: []EasterBasedHoliday{
			{DaysOffset: -2}, // Good Friday
		},
	}
}

// exchangeConfigs contains all supported exchange configurations
var exchangeConfigs = map[string]ExchangeConfig{
	"XNYS": {
		Code: "XNYS",
		Name: "New York Stock Exchange",
		TradingHours: TradingHours{
			OpenHour:    9,
			OpenMinute:  30,
			CloseHour:   16,
			CloseMinute: 0,
		},
		Timezone:        mustLoadLocation("America/New_York"),
		EasterType:      Gregorian,
		EarlyCloseRules: usEarlyCloseRules(),
		HolidayRules:    usHolidayRules(),
	},
	"XNAS": {
		Code: "XNAS",
		Name: "NASDAQ",
		TradingHours: TradingHours{
			OpenHour:    9,
			OpenMinute:  30,
			CloseHour:   16,
			CloseMinute: 0,
		},
		Timezone:        mustLoadLocation("America/New_York"),
		EasterType:      Gregorian,
		EarlyCloseRules: usEarlyCloseRules(),
		HolidayRules:    usHolidayRules(),
	},
	"XLON": {
		Code: "XLON",
		Name: "London Stock Exchange",
		TradingHours: TradingHours{
			OpenHour:    8,
			OpenMinute:  0,
			CloseHour:   16,
			CloseMinute: 30,
		},
		Timezone:   mustLoadLocation("Europe/London"),
		EasterType: Gregorian,
		HolidayRules: HolidayRuleSet{
			FixedDateHolidays: []FixedDateHoliday{
				{Month: 1, Day: 1},   // New Year's Day
				{Month: 12, Day: 25}, // Christmas
				{Month: 12, Day: 26}, // Boxing Day
			},
			RuleBasedHolidays: []RuleBasedHoliday{
				{Month: 5, Weekday: time.Monday, N: 1},  // Early May Bank Holiday
				{Month: 5, Weekday: time.Monday, N: -1}, // Spring Bank Holiday
				{Month: 8, Weekday: time.Monday, N: -1}, // Summer Bank Holiday
			},
			EasterBasedHolidays: []EasterBasedHoliday{
				{DaysOffset: -2}, // Good Friday
				{DaysOffset: 1},  // Easter Monday
			},
		},
	},
	"XETR": {
		Code: "XETR",
		Name: "XETRA (Frankfurt)",
		TradingHours: TradingHours{
			OpenHour:    9,
			OpenMinute:  0,
			CloseHour:   17,
			CloseMinute: 30,
		},
		Timezone:   mustLoadLocation("Europe/Berlin"),
		EasterType: Gregorian,
		HolidayRules: HolidayRuleSet{
			FixedDateHolidays: []FixedDateHoliday{
				{Month: 1, Day: 1},   // New Year's Day
				{Month: 5, Day: 1},   // Labor Day
				{Month: 10, Day: 3},  // German Unity Day
				{Month: 12, Day: 25}, // Christmas
				{Month: 12, Day: 26}, // Boxing Day
			},
			EasterBasedHolidays: []EasterBasedHoliday{
				{DaysOffset: -2}, // Good Friday
				{DaysOffset: 1},  // Easter Monday
			},
		},
	},
}

// mustLoadLocation loads a timezone or panics. Exchange configs are static;
// a missing tzdata entry is a build environment problem, not a runtime one.
func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("market_hours: cannot load timezone " + name + ": " + err.Error())
	}
	return loc
}
