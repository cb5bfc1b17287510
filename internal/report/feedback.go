// Package report holds the pure parts of reporting: feedback scoring and the
// improvement advisory table.
package report

import (
	"math"
	"slices"

	"github.com/maryannartillero/POS-namon/internal/domain"
)

const (
	positiveFrom = 4
	negativeUpTo = 2
)

// SummarizeRatings turns a rating histogram into totals, the distribution
// sorted by rating, and the satisfaction score (percentage of 4 and 5 ratings,
// two decimals).
func SummarizeRatings(counts map[int]int64) (domain.FeedbackStats, []domain.RatingBucket, float64) {
	var stats domain.FeedbackStats
	var ratingSum int64
	buckets := make([]domain.RatingBucket, 0, len(counts))

	for rating, count := range counts {
		if count <= 0 {
			continue
		}
		stats.TotalFeedback += count
		ratingSum += int64(rating) * count
		if rating >= positiveFrom {
			stats.PositiveFeedback += count
		}
		if rating <= negativeUpTo {
			stats.NegativeFeedback += count
		}
		buckets = append(buckets, domain.RatingBucket{Rating: rating, Count: count})
	}
	slices.SortFunc(buckets, func(a, b domain.RatingBucket) int { return a.Rating - b.Rating })

	if stats.TotalFeedback == 0 {
		return stats, buckets, 0
	}
	stats.AverageRating = round2(float64(ratingSum) / float64(stats.TotalFeedback))
	score := round2(float64(stats.PositiveFeedback) / float64(stats.TotalFeedback) * 100)
	return stats, buckets, score
}

// Suggestions evaluates the advisory table in a fixed order. Every matching
// rule contributes one entry; when none match a single maintenance entry is
// returned.
func Suggestions(stats domain.FeedbackStats, satisfaction float64) []domain.Suggestion {
	out := make([]domain.Suggestion, 0, 4)

	if satisfaction < 70 {
		out = append(out, domain.Suggestion{
			Priority:   "high",
			Category:   "Customer Satisfaction",
			Suggestion: "Customer satisfaction is below 70%. Consider reviewing service quality and product offerings.",
			Action:     "Conduct staff training and review customer complaints",
		})
	}
	if stats.AverageRating < 3.5 {
		out = append(out, domain.Suggestion{
			Priority:   "high",
			Category:   "Service Quality",
			Suggestion: "Average rating is below 3.5. Focus on improving customer service and product quality.",
			Action:     "Implement quality control measures and customer service training",
		})
	}
	if float64(stats.NegativeFeedback) > float64(stats.TotalFeedback)*0.2 {
		out = append(out, domain.Suggestion{
			Priority:   "medium",
			Category:   "Negative Feedback",
			Suggestion: "High percentage of negative feedback. Investigate common issues and address them.",
			Action:     "Analyze negative feedback patterns and implement corrective measures",
		})
	}
	if stats.TotalFeedback < 10 {
		out = append(out, domain.Suggestion{
			Priority:   "low",
			Category:   "Feedback Collection",
			Suggestion: "Low feedback volume. Encourage more customers to provide feedback.",
			Action:     "Implement feedback incentives and make the process more accessible",
		})
	}

	if len(out) == 0 {
		out = append(out, domain.Suggestion{
			Priority:   "low",
			Category:   "Maintenance",
			Suggestion: "Great job! Customer satisfaction is good. Continue maintaining quality service.",
			Action:     "Keep monitoring feedback and maintain current service standards",
		})
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
