package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/maryannartillero/POS-namon/internal/cache"
	"github.com/maryannartillero/POS-namon/internal/discount"
	"github.com/maryannartillero/POS-namon/internal/domain"
	"github.com/maryannartillero/POS-namon/internal/inventory"
	"github.com/maryannartillero/POS-namon/internal/notify"
	"github.com/maryannartillero/POS-namon/internal/store"
)

// Recorder receives domain counters. *metrics.Metrics satisfies it.
type Recorder interface {
	SaleOutcome(outcome string)
	StockAdjusted(kind string)
	ReportCacheLookup(hit bool)
}

type nopRecorder struct{}

func (nopRecorder) SaleOutcome(string)     {}
func (nopRecorder) StockAdjusted(string)   {}
func (nopRecorder) ReportCacheLookup(bool) {}

type Options struct {
	TaxRatePercent     float64
	OutPolicy          inventory.OutPolicy
	ClampFixedDiscount bool
	Location           *time.Location
	Notifier           notify.Notifier
	ReportCache        cache.ReportCache
	ReportCacheTTL     time.Duration
	Recorder           Recorder
	Logger             *slog.Logger
	TopProducts        int
	RecentComments     int
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

func DefaultOptions() Options {
	return Options{
		TaxRatePercent:     8,
		OutPolicy:          inventory.OutClamp,
		ClampFixedDiscount: true,
		Location:           time.UTC,
		TopProducts:        5,
		RecentComments:     10,
		ReportCacheTTL:     24 * time.Hour,
	}
}

type Service struct {
	repo      store.Repository
	ledger    *inventory.Ledger
	discounts discount.Evaluator
	notifier  notify.Notifier
	reports   cache.ReportCache
	recorder  Recorder
	log       *slog.Logger

	taxRatePercent float64
	loc            *time.Location
	reportTTL      time.Duration
	topProducts    int
	recentComments int
	now            func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Noop{}
	}
	if opts.ReportCache == nil {
		opts.ReportCache = cache.NoopReportCache{}
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.TopProducts < 1 {
		opts.TopProducts = 5
	}
	if opts.RecentComments < 1 {
		opts.RecentComments = 10
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		repo:           repo,
		ledger:         inventory.NewLedger(repo, opts.OutPolicy),
		discounts:      discount.NewEvaluator(opts.ClampFixedDiscount, opts.Location),
		notifier:       opts.Notifier,
		reports:        opts.ReportCache,
		recorder:       opts.Recorder,
		log:            opts.Logger,
		taxRatePercent: opts.TaxRatePercent,
		loc:            opts.Location,
		reportTTL:      opts.ReportCacheTTL,
		topProducts:    opts.TopProducts,
		recentComments: opts.RecentComments,
		now:            opts.Now,
	}
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// IsBusinessError reports whether err is a rule or input failure that should be
// shown to the caller as-is.
func IsBusinessError(err error) bool {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return true
	}
	for _, target := range []error{
		domain.ErrProductNotFound,
		domain.ErrInsufficientStock,
		domain.ErrDiscountNotFound,
		domain.ErrInsufficientPayment,
		domain.ErrDuplicateFeedback,
		domain.ErrInvalidQuantity,
		domain.ErrTransactionNotFound,
		domain.ErrFeedbackNotFound,
		domain.ErrFarewellNotFound,
		domain.ErrUnauthenticated,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// persistence passes business errors through and wraps anything else in
// domain.ErrPersistence after logging the detail.
func (s *Service) persistence(ctx context.Context, op string, err error) error {
	if err == nil || IsBusinessError(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.log.ErrorContext(ctx, "storage failure", "op", op, "error", err)
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}

// dayBounds returns [start of day, start of next day) in the service location.
func (s *Service) dayBounds(day time.Time) (time.Time, time.Time) {
	local := day.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

// Today is the start of the current day in the service location.
func (s *Service) Today() time.Time {
	return s.today()
}

func (s *Service) today() time.Time {
	start, _ := s.dayBounds(s.now())
	return start
}
