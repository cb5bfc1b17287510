package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maryannartillero/POS-namon/internal/domain"
	"github.com/maryannartillero/POS-namon/internal/notify"
	"github.com/maryannartillero/POS-namon/internal/report"
	"github.com/maryannartillero/POS-namon/internal/store"
	"github.com/maryannartillero/POS-namon/internal/validation"
	"github.com/maryannartillero/POS-namon/internal/xid"
)

const defaultAnalyticsWindowDays = 30

// SubmitFeedback stores the single allowed feedback entry for a transaction.
func (s *Service) SubmitFeedback(ctx context.Context, req domain.FeedbackRequest) (domain.FeedbackResponse, error) {
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	req.Comments = strings.TrimSpace(req.Comments)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	if err := validation.Struct(req); err != nil {
		return domain.FeedbackResponse{}, err
	}

	if _, err := s.GetTransaction(ctx, req.TransactionID); err != nil {
		return domain.FeedbackResponse{}, err
	}

	_, err := s.repo.GetFeedbackByTransaction(ctx, req.TransactionID)
	switch {
	case err == nil:
		return domain.FeedbackResponse{}, domain.ErrDuplicateFeedback
	case !errors.Is(err, store.ErrNotFound):
		return domain.FeedbackResponse{}, s.persistence(ctx, "get feedback", err)
	}

	created, err := s.repo.CreateFeedback(ctx, domain.CustomerFeedback{
		ID:            xid.New("fbk"),
		TransactionID: req.TransactionID,
		Rating:        req.Rating,
		Comments:      req.Comments,
		CustomerEmail: req.CustomerEmail,
		CreatedAt:     s.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			// lost a race with a concurrent submission
			return domain.FeedbackResponse{}, domain.ErrDuplicateFeedback
		case errors.Is(err, store.ErrNotFound):
			return domain.FeedbackResponse{}, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, req.TransactionID)
		}
		return domain.FeedbackResponse{}, s.persistence(ctx, "create feedback", err)
	}

	s.notifier.Notify(ctx, notify.EventCustomerFeedback, feedbackPayload{
		FeedbackID:    created.ID,
		TransactionID: created.TransactionID,
		Rating:        created.Rating,
		Comments:      created.Comments,
		CustomerEmail: created.CustomerEmail,
		CreatedAt:     created.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	})

	return domain.FeedbackResponse{Message: "Thank you for your feedback!", Feedback: *created}, nil
}

// ListFeedback pages through feedback newest first. Rating 0 means any rating.
func (s *Service) ListFeedback(ctx context.Context, filter domain.FeedbackFilter) ([]domain.CustomerFeedback, error) {
	if filter.Rating < 0 || filter.Rating > 5 {
		return nil, domain.NewValidationError("rating", "must be between 1 and 5")
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 15
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, domain.NewValidationError("date_to", "must be after date_from")
	}

	feedback, err := s.repo.ListFeedback(ctx, filter)
	if err != nil {
		return nil, s.persistence(ctx, "list feedback", err)
	}
	return feedback, nil
}

// GetFeedback returns one entry together with the transaction it rates.
func (s *Service) GetFeedback(ctx context.Context, id string) (domain.FeedbackDetail, error) {
	id = strings.TrimSpace(id)
	fb, err := s.repo.GetFeedback(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.FeedbackDetail{}, fmt.Errorf("%w: %s", domain.ErrFeedbackNotFound, id)
		}
		return domain.FeedbackDetail{}, s.persistence(ctx, "get feedback", err)
	}

	detail := domain.FeedbackDetail{CustomerFeedback: *fb}
	tx, err := s.GetTransaction(ctx, fb.TransactionID)
	switch {
	case err == nil:
		tx.Feedback = nil
		detail.Transaction = &tx
	case !errors.Is(err, domain.ErrTransactionNotFound):
		return domain.FeedbackDetail{}, err
	}
	return detail, nil
}

type feedbackPayload struct {
	FeedbackID    string `json:"feedback_id"`
	TransactionID string `json:"transaction_id"`
	Rating        int    `json:"rating"`
	Comments      string `json:"comments,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// FeedbackAnalytics aggregates feedback created between the two dates,
// both inclusive. Missing bounds default to the last 30 days.
func (s *Service) FeedbackAnalytics(ctx context.Context, from *time.Time, to *time.Time) (domain.FeedbackAnalytics, error) {
	today := s.today()
	end := today.AddDate(0, 0, 1)
	if to != nil {
		_, end = s.dayBounds(*to)
	}
	start := end.AddDate(0, 0, -defaultAnalyticsWindowDays)
	if from != nil {
		start, _ = s.dayBounds(*from)
	}
	if !start.Before(end) {
		return domain.FeedbackAnalytics{}, domain.NewValidationError("date_from", "must be on or before date_to")
	}

	counts, err := s.repo.FeedbackRatingCounts(ctx, start, end)
	if err != nil {
		return domain.FeedbackAnalytics{}, s.persistence(ctx, "feedback rating counts", err)
	}
	comments, err := s.repo.ListRecentFeedbackComments(ctx, start, end, s.recentComments)
	if err != nil {
		return domain.FeedbackAnalytics{}, s.persistence(ctx, "recent feedback comments", err)
	}

	stats, buckets, score := report.SummarizeRatings(counts)
	return domain.FeedbackAnalytics{
		Period: domain.Period{
			From: start.Format(time.DateOnly),
			To:   end.AddDate(0, 0, -1).Format(time.DateOnly),
		},
		Analytics:          stats,
		SatisfactionScore:  score,
		RatingDistribution: buckets,
		RecentComments:     comments,
		Suggestions:        report.Suggestions(stats, score),
	}, nil
}
