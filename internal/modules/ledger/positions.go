package ledger

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/castlegate/networth/internal/domain"
)

// quantityEpsilon absorbs float accumulation noise so a replay that sells
// exactly what was bought does not register a violation.
const quantityEpsilon = 1e-9

// positionStep is one point of a symbol's quantity/cost step function.
// Between steps both values are constant.
type positionStep struct {
	date      time.Time
	quantity  float64
	costBasis float64
}

// PositionSeries is the per-symbol quantity and cost-basis step function
// derived by replaying a user's ordered transactions. Positions are never
// stored; they are always recomputed from the ledger.
//
// A replay that would drive a quantity negative is a ledger integrity
// violation: the quantity is clamped to zero from that date forward and the
// violation is recorded so valuations can flag affected days as degraded.
type PositionSeries struct {
	userID     string
	steps      map[string][]positionStep
	violations map[string]time.Time // symbol -> first violation date
}

// NewPositionSeries replays transactions into per-symbol step functions.
// Transactions are ordered by date with ties broken by recording order; the
// input is re-sorted defensively with a stable sort so the tie-break holds.
func NewPositionSeries(userID string, txs []domain.Transaction, log zerolog.Logger) *PositionSeries {
	ordered := make([]domain.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		di, dj := domain.Day(ordered[i].Date), domain.Day(ordered[j].Date)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return ordered[i].RecordedAt.Before(ordered[j].RecordedAt)
	})

	s := &PositionSeries{
		userID:     userID,
		steps:      make(map[string][]positionStep),
		violations: make(map[string]time.Time),
	}

	qty := make(map[string]float64)
	cost := make(map[string]float64)

	for _, tx := range ordered {
		day := domain.Day(tx.Date)

		switch tx.Type {
		case domain.TransactionBuy:
			qty[tx.Symbol] += tx.Quantity
			cost[tx.Symbol] += tx.Quantity * tx.PricePerShare
		case domain.TransactionSell:
			prev := qty[tx.Symbol]
			remaining := prev - tx.Quantity
			if remaining < -quantityEpsilon {
				if _, seen := s.violations[tx.Symbol]; !seen {
					s.violations[tx.Symbol] = day
					verr := &domain.LedgerIntegrityError{UserID: userID, Symbol: tx.Symbol, Date: day}
					log.Warn().Err(verr).Msg("Ledger replay produced negative quantity, clamping to zero")
				}
				remaining = 0
			}
			if remaining <= quantityEpsilon {
				remaining = 0
				cost[tx.Symbol] = 0
			} else {
				// Average-cost basis shrinks proportionally with the sale.
				cost[tx.Symbol] *= remaining / prev
			}
			qty[tx.Symbol] = remaining
		}

		s.appendStep(tx.Symbol, positionStep{date: day, quantity: qty[tx.Symbol], costBasis: cost[tx.Symbol]})
	}

	return s
}

// appendStep records the post-transaction state for a day, collapsing
// multiple same-day transactions into the day's final step.
func (s *PositionSeries) appendStep(symbol string, step positionStep) {
	steps := s.steps[symbol]
	if n := len(steps); n > 0 && steps[n-1].date.Equal(step.date) {
		steps[n-1] = step
	} else {
		steps = append(steps, step)
	}
	s.steps[symbol] = steps
}

// Symbols returns the symbols the series has ever held, sorted.
func (s *PositionSeries) Symbols() []string {
	symbols := make([]string, 0, len(s.steps))
	for symbol := range s.steps {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// stepOn returns the last step at or before date, if any.
func (s *PositionSeries) stepOn(symbol string, date time.Time) (positionStep, bool) {
	steps := s.steps[symbol]
	day := domain.Day(date)
	// First step after day; the one before it is in effect.
	i := sort.Search(len(steps), func(i int) bool {
		return steps[i].date.After(day)
	})
	if i == 0 {
		return positionStep{}, false
	}
	return steps[i-1], true
}

// QuantityOn returns the held quantity of symbol at end of the given day.
// Zero before the first transaction.
func (s *PositionSeries) QuantityOn(symbol string, date time.Time) float64 {
	step, ok := s.stepOn(symbol, date)
	if !ok {
		return 0
	}
	return step.quantity
}

// Holdings returns the non-zero positions at end of the given day, with
// average-cost basis, sorted by symbol.
func (s *PositionSeries) Holdings(asOf time.Time) []domain.Holding {
	var holdings []domain.Holding
	for _, symbol := range s.Symbols() {
		step, ok := s.stepOn(symbol, asOf)
		if !ok || step.quantity <= 0 {
			continue
		}
		holdings = append(holdings, domain.Holding{
			UserID:    s.userID,
			Symbol:    symbol,
			Quantity:  step.quantity,
			CostBasis: step.costBasis,
		})
	}
	return holdings
}

// Violations returns the recorded integrity violations, one per affected
// symbol, sorted by symbol.
func (s *PositionSeries) Violations() []*domain.LedgerIntegrityError {
	var errs []*domain.LedgerIntegrityError
	for _, symbol := range s.Symbols() {
		if date, ok := s.violations[symbol]; ok {
			errs = append(errs, &domain.LedgerIntegrityError{UserID: s.userID, Symbol: symbol, Date: date})
		}
	}
	return errs
}

// ViolatedBy reports whether symbol had an integrity violation on or
// before the given day. Such days value the symbol as degraded.
func (s *PositionSeries) ViolatedBy(symbol string, date time.Time) bool {
	first, ok := s.violations[symbol]
	if !ok {
		return false
	}
	return !domain.Day(date).Before(first)
}
