package service

import (
	"context"
	"time"

	"github.com/maryannartillero/POS-namon/internal/domain"
)

// DailyReport summarises completed sales for one calendar day in the service
// location; a zero day means today. Days before today are served from the
// report cache when possible.
func (s *Service) DailyReport(ctx context.Context, day time.Time) (domain.DailyReport, error) {
	if day.IsZero() {
		day = s.now()
	}
	start, end := s.dayBounds(day)
	date := start.Format(time.DateOnly)
	closed := start.Before(s.today())

	if closed {
		cached, ok, err := s.reports.GetDaily(ctx, date)
		if err != nil {
			s.log.WarnContext(ctx, "report cache read failed", "date", date, "error", err)
		}
		s.recorder.ReportCacheLookup(ok)
		if ok {
			return *cached, nil
		}
	}

	summary, err := s.repo.SalesSummary(ctx, start, end)
	if err != nil {
		return domain.DailyReport{}, s.persistence(ctx, "daily sales summary", err)
	}
	top, err := s.repo.TopProducts(ctx, start, end, s.topProducts)
	if err != nil {
		return domain.DailyReport{}, s.persistence(ctx, "top products", err)
	}
	if top == nil {
		top = []domain.ProductSales{}
	}

	rep := domain.DailyReport{Date: date, Summary: summary, TopProducts: top}
	if closed {
		if err := s.reports.SetDaily(ctx, &rep, s.reportTTL); err != nil {
			s.log.WarnContext(ctx, "report cache write failed", "date", date, "error", err)
		}
	}
	return rep, nil
}

// MonthlyReport returns the per-day series and the aggregate for one month.
// Only months that ended before today are cached.
func (s *Service) MonthlyReport(ctx context.Context, year int, month time.Month) (domain.MonthlyReport, error) {
	if month < time.January || month > time.December {
		return domain.MonthlyReport{}, domain.NewValidationError("month", "must be between 1 and 12")
	}
	if year < 1970 || year > 9999 {
		return domain.MonthlyReport{}, domain.NewValidationError("year", "is out of range")
	}

	start := time.Date(year, month, 1, 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 1, 0)
	closed := !end.After(s.today())

	if closed {
		cached, ok, err := s.reports.GetMonthly(ctx, year, int(month))
		if err != nil {
			s.log.WarnContext(ctx, "report cache read failed", "year", year, "month", int(month), "error", err)
		}
		s.recorder.ReportCacheLookup(ok)
		if ok {
			return *cached, nil
		}
	}

	points, err := s.repo.DailySales(ctx, start, end, s.loc)
	if err != nil {
		return domain.MonthlyReport{}, s.persistence(ctx, "daily sales", err)
	}
	if points == nil {
		points = []domain.DailySalesPoint{}
	}
	summary, err := s.repo.SalesSummary(ctx, start, end)
	if err != nil {
		return domain.MonthlyReport{}, s.persistence(ctx, "monthly sales summary", err)
	}

	rep := domain.MonthlyReport{Month: int(month), Year: year, DailySales: points, Summary: summary}
	if closed {
		if err := s.reports.SetMonthly(ctx, &rep, s.reportTTL); err != nil {
			s.log.WarnContext(ctx, "report cache write failed", "year", year, "month", int(month), "error", err)
		}
	}
	return rep, nil
}
