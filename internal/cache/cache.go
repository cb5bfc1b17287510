// Package cache stores finished sales reports. Only periods that have fully
// elapsed are cached, so an entry never goes stale.
package cache

import (
	"context"
	"time"

	"github.com/maryannartillero/POS-namon/internal/domain"
)

type ReportCache interface {
	GetDaily(ctx context.Context, date string) (*domain.DailyReport, bool, error)
	SetDaily(ctx context.Context, report *domain.DailyReport, ttl time.Duration) error
	GetMonthly(ctx context.Context, year int, month int) (*domain.MonthlyReport, bool, error)
	SetMonthly(ctx context.Context, report *domain.MonthlyReport, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) GetDaily(_ context.Context, _ string) (*domain.DailyReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) SetDaily(_ context.Context, _ *domain.DailyReport, _ time.Duration) error {
	return nil
}

func (NoopReportCache) GetMonthly(_ context.Context, _ int, _ int) (*domain.MonthlyReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) SetMonthly(_ context.Context, _ *domain.MonthlyReport, _ time.Duration) error {
	return nil
}
