package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maryannartillero/POS-namon/internal/domain"
)

func categories(s []domain.Suggestion) []string {
	out := make([]string, 0, len(s))
	for _, item := range s {
		out = append(out, item.Category)
	}
	return out
}

func TestSummarizeRatings(t *testing.T) {
	stats, buckets, score := SummarizeRatings(map[int]int64{5: 6, 4: 2, 3: 1, 1: 1})

	assert.Equal(t, int64(10), stats.TotalFeedback)
	assert.Equal(t, int64(8), stats.PositiveFeedback)
	assert.Equal(t, int64(1), stats.NegativeFeedback)
	assert.Equal(t, 4.2, stats.AverageRating)
	assert.Equal(t, 80.0, score)
	assert.Equal(t, []domain.RatingBucket{
		{Rating: 1, Count: 1},
		{Rating: 3, Count: 1},
		{Rating: 4, Count: 2},
		{Rating: 5, Count: 6},
	}, buckets)
}

func TestSummarizeRatingsEmpty(t *testing.T) {
	stats, buckets, score := SummarizeRatings(nil)
	assert.Zero(t, stats.TotalFeedback)
	assert.Empty(t, buckets)
	assert.Zero(t, score)
}

func TestSatisfactionScoreRoundsToTwoDecimals(t *testing.T) {
	_, _, score := SummarizeRatings(map[int]int64{5: 2, 3: 1})
	assert.Equal(t, 66.67, score)
}

func TestSuggestionsDecisionTable(t *testing.T) {
	tests := []struct {
		name   string
		counts map[int]int64
		want   []string
	}{
		{
			name:   "healthy volume and ratings",
			counts: map[int]int64{5: 8, 4: 3, 3: 1},
			want:   []string{"Maintenance"},
		},
		{
			name:   "low volume only",
			counts: map[int]int64{5: 3},
			want:   []string{"Feedback Collection"},
		},
		{
			name:   "unhappy customers",
			counts: map[int]int64{1: 6, 2: 2, 5: 4},
			want:   []string{"Customer Satisfaction", "Service Quality", "Negative Feedback"},
		},
		{
			name:   "no feedback at all",
			counts: map[int]int64{},
			want:   []string{"Customer Satisfaction", "Service Quality", "Feedback Collection"},
		},
		{
			name:   "negative share exactly twenty percent",
			counts: map[int]int64{1: 2, 5: 8},
			want:   []string{"Maintenance"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, _, score := SummarizeRatings(tt.counts)
			assert.Equal(t, tt.want, categories(Suggestions(stats, score)))
		})
	}
}

func TestSuggestionPriorities(t *testing.T) {
	stats, _, score := SummarizeRatings(map[int]int64{1: 6, 2: 2, 5: 4})
	got := Suggestions(stats, score)
	assert.Equal(t, "high", got[0].Priority)
	assert.Equal(t, "high", got[1].Priority)
	assert.Equal(t, "medium", got[2].Priority)
}
