// Package discount decides whether a discount applies to a subtotal and by how much.
package discount

import (
	"math"
	"time"

	"github.com/maryannartillero/POS-namon/internal/domain"
)

// Evaluator computes discount amounts. It holds no state besides policy.
type Evaluator struct {
	// ClampFixed caps fixed discounts at the subtotal so totals never go negative.
	ClampFixed bool
	// Location is the calendar used to compare now against the validity window.
	Location *time.Location
}

func NewEvaluator(clampFixed bool, loc *time.Location) Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	return Evaluator{ClampFixed: clampFixed, Location: loc}
}

// IsValid reports whether d is active and now falls inside [StartDate, EndDate]
// by calendar day, both ends inclusive.
func (e Evaluator) IsValid(d domain.Discount, now time.Time) bool {
	if !d.Active {
		return false
	}
	today := dateKey(now, e.location())
	return dateKey(d.StartDate, time.UTC) <= today && today <= dateKey(d.EndDate, time.UTC)
}

// Evaluate returns the reduction in cents for subtotalCents, never negative.
func (e Evaluator) Evaluate(d domain.Discount, subtotalCents int64, now time.Time) int64 {
	if subtotalCents <= 0 || !e.IsValid(d, now) {
		return 0
	}
	if d.MinimumCents > 0 && subtotalCents < d.MinimumCents {
		return 0
	}

	var amount int64
	switch d.Type {
	case domain.DiscountPercentage:
		amount = int64(math.Round(float64(subtotalCents) * d.Percent / 100))
	case domain.DiscountFixed:
		amount = d.AmountCents
		if e.ClampFixed && amount > subtotalCents {
			amount = subtotalCents
		}
	}
	if amount < 0 {
		return 0
	}
	return amount
}

func (e Evaluator) location() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

// dateKey maps t to yyyymmdd in loc so dates compare as integers.
func dateKey(t time.Time, loc *time.Location) int {
	y, m, d := t.In(loc).Date()
	return y*10000 + int(m)*100 + d
}
