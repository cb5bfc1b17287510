package discount

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maryannartillero/POS-namon/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func percentOff(pct float64) domain.Discount {
	return domain.Discount{
		ID:        "dsc-1",
		Type:      domain.DiscountPercentage,
		Percent:   pct,
		StartDate: day(2026, 1, 1),
		EndDate:   day(2026, 12, 31),
		Active:    true,
	}
}

func TestEvaluatePercentage(t *testing.T) {
	e := NewEvaluator(true, time.UTC)
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(1000), e.Evaluate(percentOff(10), 10000, now))
	assert.Equal(t, int64(125), e.Evaluate(percentOff(12.5), 1000, now))
}

func TestEvaluateWindowIsInclusive(t *testing.T) {
	e := NewEvaluator(true, time.UTC)
	d := percentOff(10)

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, int64(100), e.Evaluate(d, 1000, first))
	assert.Equal(t, int64(100), e.Evaluate(d, 1000, last))

	assert.Zero(t, e.Evaluate(d, 1000, day(2025, 12, 31)))
	assert.Zero(t, e.Evaluate(d, 1000, day(2027, 1, 1)))
}

func TestEvaluateRespectsTimezone(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	e := NewEvaluator(true, jakarta)
	d := percentOff(10)
	d.EndDate = day(2026, 6, 15)

	// 2026-06-15 18:00 UTC is already 2026-06-16 in UTC+7.
	now := time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)
	assert.Zero(t, e.Evaluate(d, 1000, now))
}

func TestEvaluateInactiveOrBelowMinimum(t *testing.T) {
	e := NewEvaluator(true, time.UTC)
	now := day(2026, 3, 3)

	inactive := percentOff(10)
	inactive.Active = false
	assert.Zero(t, e.Evaluate(inactive, 10000, now))

	minimum := percentOff(10)
	minimum.MinimumCents = 5000
	assert.Zero(t, e.Evaluate(minimum, 4999, now))
	assert.Equal(t, int64(500), e.Evaluate(minimum, 5000, now))
}

func TestEvaluateNeverPositiveOutsideWindowForAnySubtotal(t *testing.T) {
	e := NewEvaluator(false, time.UTC)
	fixed := domain.Discount{Type: domain.DiscountFixed, AmountCents: 700, StartDate: day(2026, 1, 1), EndDate: day(2026, 1, 31), Active: true}
	for _, subtotal := range []int64{0, 1, 699, 700, 10000, 1 << 40} {
		require.Zero(t, e.Evaluate(fixed, subtotal, day(2026, 2, 1)), "subtotal %d", subtotal)
		require.Zero(t, e.Evaluate(percentOff(50), subtotal, day(2027, 2, 1)), "subtotal %d", subtotal)
	}
}

func TestEvaluateFixedClampPolicy(t *testing.T) {
	now := day(2026, 1, 10)
	fixed := domain.Discount{Type: domain.DiscountFixed, AmountCents: 5000, StartDate: day(2026, 1, 1), EndDate: day(2026, 1, 31), Active: true}

	assert.Equal(t, int64(3000), NewEvaluator(true, time.UTC).Evaluate(fixed, 3000, now))
	assert.Equal(t, int64(5000), NewEvaluator(false, time.UTC).Evaluate(fixed, 3000, now))
}
