package domain

type SalesSummary struct {
	Transactions       int64 `json:"total_transactions"`
	TotalSalesCents    int64 `json:"total_sales_cents"`
	TotalDiscountCents int64 `json:"total_discounts_cents"`
	AverageSaleCents   int64 `json:"average_sale_cents"`
}

type ProductSales struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	TotalQuantity int64  `json:"total_quantity"`
	RevenueCents  int64  `json:"total_revenue_cents"`
}

type DailySalesPoint struct {
	Date         string `json:"date"`
	Transactions int64  `json:"transactions"`
	SalesCents   int64  `json:"sales_cents"`
}

type DailyReport struct {
	Date        string         `json:"date"`
	Summary     SalesSummary   `json:"sales_summary"`
	TopProducts []ProductSales `json:"top_products"`
}

type MonthlyReport struct {
	Month      int               `json:"month"`
	Year       int               `json:"year"`
	DailySales []DailySalesPoint `json:"daily_sales"`
	Summary    SalesSummary      `json:"monthly_summary"`
}

type RatingBucket struct {
	Rating int   `json:"rating"`
	Count  int64 `json:"count"`
}

type Suggestion struct {
	Priority   string `json:"priority"`
	Category   string `json:"category"`
	Suggestion string `json:"suggestion"`
	Action     string `json:"action"`
}

type FeedbackStats struct {
	TotalFeedback    int64   `json:"total_feedback"`
	AverageRating    float64 `json:"average_rating"`
	PositiveFeedback int64   `json:"positive_feedback"`
	NegativeFeedback int64   `json:"negative_feedback"`
}

type Period struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type FeedbackAnalytics struct {
	Period             Period             `json:"period"`
	Analytics          FeedbackStats      `json:"analytics"`
	SatisfactionScore  float64            `json:"satisfaction_score"`
	RatingDistribution []RatingBucket     `json:"rating_distribution"`
	RecentComments     []CustomerFeedback `json:"recent_comments"`
	Suggestions        []Suggestion       `json:"improvement_suggestions"`
}
