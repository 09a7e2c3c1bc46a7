package market_hours

import (
	"sync"
	"time"

	"github.com/castlegate/networth/internal/domain"
)

// Service answers calendar questions for a single configured exchange.
// It implements domain.Clock. Safe for concurrent readers: the holiday
// cache is guarded, everything else is immutable after construction.
type Service struct {
	config *ExchangeConfig
	nowFn  func() time.Time

	mu           sync.RWMutex
	holidayCache map[int][]time.Time // Holidays by year
}

// Option customizes a Service.
type Option func(*Service)

// WithNow injects the time source. Tests use this to simulate open and
// closed markets deterministically.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.nowFn = now }
}

// New creates a calendar service for the given exchange name or code.
// Unknown exchanges fall back to XNYS.
func New(exchange string, opts ...Option) *Service {
	s := &Service{
		config:       getExchangeConfig(GetExchangeCode(exchange)),
		nowFn:        time.Now,
		holidayCache: make(map[int][]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exchange returns the configured exchange code.
func (s *Service) Exchange() string { return s.config.Code }

// Now returns the current time from the injected source.
func (s *Service) Now() time.Time { return s.nowFn() }

// IsMarketOpen checks if the market is open for trading at t, accounting
// for weekends, holidays, session hours and early closes.
func (s *Service) IsMarketOpen(t time.Time) bool {
	marketTime := t.In(s.config.Timezone)

	if marketTime.Weekday() == time.Saturday || marketTime.Weekday() == time.Sunday {
		return false
	}
	if s.isHoliday(marketTime) {
		return false
	}

	openTime := time.Date(marketTime.Year(), marketTime.Month(), marketTime.Day(),
		s.config.TradingHours.OpenHour, s.config.TradingHours.OpenMinute, 0, 0, s.config.Timezone)
	closeTime := s.sessionClose(marketTime)

	if marketTime.Before(openTime) || !marketTime.Before(closeTime) {
		return false
	}
	return true
}

// IsTradingDay reports whether d falls on a trading day. d is treated as a
// calendar date (its own year/month/day), not converted between timezones,
// so UTC-midnight dates classify as the day they name.
func (s *Service) IsTradingDay(d time.Time) bool {
	if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		return false
	}
	return !s.isHoliday(d)
}

// LastTradingDayBefore returns the most recent trading day strictly before
// d, at UTC midnight.
func (s *Service) LastTradingDayBefore(d time.Time) time.Time {
	day := domain.Day(d).AddDate(0, 0, -1)
	for !s.IsTradingDay(day) {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// sessionClose returns the closing time for the session containing
// marketTime, honoring early close rules.
func (s *Service) sessionClose(marketTime time.Time) time.Time {
	closeTime := time.Date(marketTime.Year(), marketTime.Month(), marketTime.Day(),
		s.config.TradingHours.CloseHour, s.config.TradingHours.CloseMinute, 0, 0, s.config.Timezone)

	for _, rule := range s.config.EarlyCloseRules {
		if rule.DatePattern != nil && rule.DatePattern(marketTime) {
			closeTime = time.Date(marketTime.Year(), marketTime.Month(), marketTime.Day(),
				rule.CloseHour, rule.CloseMinute, 0, 0, s.config.Timezone)
			break
		}
	}
	return closeTime
}

// isHoliday checks if a date is an exchange holiday. Comparison is by
// calendar date string, so the caller's timezone does not matter.
func (s *Service) isHoliday(date time.Time) bool {
	holidays := s.holidaysForYear(date.Year())

	dateStr := date.Format("2006-01-02")
	for _, holiday := range holidays {
		if holiday.Format("2006-01-02") == dateStr {
			return true
		}
	}
	return false
}

// holidaysForYear calculates (and caches) all holidays for a year.
func (s *Service) holidaysForYear(year int) []time.Time {
	s.mu.RLock()
	if holidays, ok := s.holidayCache[year]; ok {
		s.mu.RUnlock()
		return holidays
	}
	s.mu.RUnlock()

	holidays := make([]time.Time, 0)

	for _, h := range s.config.HolidayRules.FixedDateHolidays {
		date := time.Date(year, time.Month(h.Month), h.Day, 0, 0, 0, 0, s.config.Timezone)
		if h.ObserveOnWeekday {
			date = observeOnWeekday(date)
		}
		holidays = append(holidays, date)
	}

	for _, h := range s.config.HolidayRules.RuleBasedHolidays {
		var date time.Time
		if h.N == -1 {
			date = findLastWeekday(year, h.Month, h.Weekday)
		} else {
			date = findNthWeekday(year, h.Month, h.Weekday, h.N)
		}
		holidays = append(holidays, date)
	}

	for _, h := range s.config.HolidayRules.EasterBasedHolidays {
		easter := CalculateEaster(year, s.config.EasterType)
		holidays = append(holidays, easter.AddDate(0, 0, h.DaysOffset))
	}

	s.mu.Lock()
	s.holidayCache[year] = holidays
	s.mu.Unlock()

	return holidays
}

// Status returns the current market status, including the next session
// open when the market is closed.
func (s *Service) Status(t time.Time) *MarketStatus {
	marketTime := t.In(s.config.Timezone)
	isOpen := s.IsMarketOpen(t)

	status := &MarketStatus{
		Open:     isOpen,
		Exchange: s.config.Code,
		Timezone: s.config.Timezone.String(),
	}

	if isOpen {
		status.ClosesAt = s.sessionClose(marketTime).Format("15:04")
		return status
	}

	if nextOpen := s.nextTradingSession(marketTime); nextOpen != nil {
		status.OpensAt = nextOpen.Format("15:04")
		if nextOpen.Day() != marketTime.Day() || nextOpen.Month() != marketTime.Month() {
			status.OpensDate = nextOpen.Format("2006-01-02")
		}
	}
	return status
}

// nextTradingSession finds the next market open, up to 14 days ahead.
func (s *Service) nextTradingSession(marketTime time.Time) *time.Time {
	for i := 0; i < 14; i++ {
		day := marketTime.AddDate(0, 0, i)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday || s.isHoliday(day) {
			continue
		}
		openTime := time.Date(day.Year(), day.Month(), day.Day(),
			s.config.TradingHours.OpenHour, s.config.TradingHours.OpenMinute, 0, 0, s.config.Timezone)
		if i == 0 && !marketTime.Before(openTime) {
			continue
		}
		return &openTime
	}
	return nil
}
