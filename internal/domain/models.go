package domain

import "time"

type Product struct {
	ID          string    `json:"id"`
	SKU         string    `json:"sku"`
	Barcode     string    `json:"barcode,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CategoryID  string    `json:"category_id,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	CostCents   int64     `json:"cost_cents"`
	Stock       int       `json:"stock_quantity"`
	MinStock    int       `json:"min_stock_level"`
	Active      bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p Product) LowStock() bool {
	return p.Stock <= p.MinStock
}

type ProductFilter struct {
	CategoryID string
	Search     string
	LowStock   bool
	// IncludeInactive lists deactivated products as well.
	IncludeInactive bool
}

type ProductCreateRequest struct {
	SKU          string `json:"sku" validate:"required,max=64"`
	Barcode      string `json:"barcode,omitempty" validate:"omitempty,max=64"`
	Name         string `json:"name" validate:"required,max=255"`
	Description  string `json:"description,omitempty" validate:"omitempty,max=2000"`
	CategoryID   string `json:"category_id,omitempty" validate:"omitempty,max=64"`
	PriceCents   int64  `json:"price_cents" validate:"gte=0"`
	CostCents    int64  `json:"cost_cents" validate:"gte=0"`
	InitialStock int    `json:"stock_quantity" validate:"gte=0"`
	MinStock     int    `json:"min_stock_level" validate:"gte=0"`
}

// ProductUpdateRequest edits catalog metadata only. Stock is owned by the ledger.
type ProductUpdateRequest struct {
	SKU         *string `json:"sku,omitempty" validate:"omitempty,min=1,max=64"`
	Barcode     *string `json:"barcode,omitempty" validate:"omitempty,max=64"`
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	CategoryID  *string `json:"category_id,omitempty" validate:"omitempty,max=64"`
	PriceCents  *int64  `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
	CostCents   *int64  `json:"cost_cents,omitempty" validate:"omitempty,gte=0"`
	MinStock    *int    `json:"min_stock_level,omitempty" validate:"omitempty,gte=0"`
	Active      *bool   `json:"is_active,omitempty"`
}

type MovementKind string

const (
	MovementIn         MovementKind = "in"
	MovementOut        MovementKind = "out"
	MovementAdjustment MovementKind = "adjustment"
)

func (k MovementKind) Valid() bool {
	switch k {
	case MovementIn, MovementOut, MovementAdjustment:
		return true
	default:
		return false
	}
}

// InventoryMovement is one immutable ledger entry.
type InventoryMovement struct {
	ID              string       `json:"id"`
	ProductID       string       `json:"product_id"`
	ActorID         string       `json:"user_id"`
	Kind            MovementKind `json:"type"`
	Quantity        int          `json:"quantity"`
	PreviousStock   int          `json:"previous_stock"`
	NewStock        int          `json:"new_stock"`
	Reason          string       `json:"reason"`
	ReferenceNumber string       `json:"reference_number,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

type StockAdjustmentRequest struct {
	Kind            MovementKind `json:"type" validate:"required,oneof=in out adjustment"`
	Quantity        int          `json:"quantity" validate:"required,gte=1"`
	Reason          string       `json:"reason" validate:"required,max=255"`
	ReferenceNumber string       `json:"reference_number,omitempty" validate:"omitempty,max=255"`
}

type StockAdjustmentResponse struct {
	Product  Product           `json:"product"`
	Movement InventoryMovement `json:"movement"`
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Discount struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Type        DiscountType `json:"type"`
	// Percent is used by percentage discounts, AmountCents by fixed ones.
	Percent      float64   `json:"percent,omitempty"`
	AmountCents  int64     `json:"amount_cents,omitempty"`
	MinimumCents int64     `json:"minimum_amount_cents,omitempty"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type DiscountRequest struct {
	Name         string       `json:"name" validate:"required,max=255"`
	Description  string       `json:"description,omitempty" validate:"omitempty,max=1000"`
	Type         DiscountType `json:"type" validate:"required,oneof=percentage fixed"`
	Percent      float64      `json:"percent,omitempty" validate:"gte=0,lte=100"`
	AmountCents  int64        `json:"amount_cents,omitempty" validate:"gte=0"`
	MinimumCents int64        `json:"minimum_amount_cents,omitempty" validate:"gte=0"`
	StartDate    string       `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string       `json:"end_date" validate:"required,datetime=2006-01-02"`
	Active       *bool        `json:"is_active,omitempty"`
}

type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "cash"
	PaymentCard          PaymentMethod = "card"
	PaymentDigitalWallet PaymentMethod = "digital_wallet"
)

const TxStatusCompleted = "completed"

type CartLine struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

type SaleRequest struct {
	CustomerName    string        `json:"customer_name,omitempty" validate:"omitempty,max=255"`
	CustomerEmail   string        `json:"customer_email,omitempty" validate:"omitempty,email"`
	Items           []CartLine    `json:"items" validate:"required,min=1,dive"`
	PaymentMethod   PaymentMethod `json:"payment_method" validate:"required,oneof=cash card digital_wallet"`
	AmountPaidCents *int64        `json:"amount_paid_cents" validate:"required,gte=0"`
	DiscountID      string        `json:"discount_id,omitempty"`
}

type TransactionItem struct {
	ID             string `json:"id"`
	TransactionID  string `json:"transaction_id"`
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_price_cents"`
}

// Transaction is a completed sale. It is never updated after insert.
type Transaction struct {
	ID              string            `json:"id"`
	Number          string            `json:"transaction_number"`
	CashierID       string            `json:"user_id"`
	CustomerName    string            `json:"customer_name,omitempty"`
	CustomerEmail   string            `json:"customer_email,omitempty"`
	SubtotalCents   int64             `json:"subtotal_cents"`
	DiscountCents   int64             `json:"discount_amount_cents"`
	TaxCents        int64             `json:"tax_amount_cents"`
	TotalCents      int64             `json:"total_amount_cents"`
	AmountPaidCents int64             `json:"amount_paid_cents"`
	ChangeCents     int64             `json:"change_amount_cents"`
	PaymentMethod   PaymentMethod     `json:"payment_method"`
	DiscountID      string            `json:"discount_id,omitempty"`
	Status          string            `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	Items           []TransactionItem `json:"items"`
	Feedback        *CustomerFeedback `json:"feedback,omitempty"`
}

type TransactionFilter struct {
	From      *time.Time
	To        *time.Time
	CashierID string
	Status    string
	Limit     int
	Offset    int
}

type SaleResponse struct {
	Message         string      `json:"message"`
	Transaction     Transaction `json:"transaction"`
	FarewellMessage *string     `json:"farewell_message"`
}

type CustomerFeedback struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	Rating        int       `json:"rating"`
	Comments      string    `json:"comments,omitempty"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type FeedbackRequest struct {
	TransactionID string `json:"transaction_id" validate:"required"`
	Rating        int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comments      string `json:"comments,omitempty" validate:"omitempty,max=1000"`
	CustomerEmail string `json:"customer_email,omitempty" validate:"omitempty,email"`
}

type FeedbackFilter struct {
	Rating int
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// FeedbackDetail is one feedback entry with the sale it rates.
type FeedbackDetail struct {
	CustomerFeedback
	Transaction *Transaction `json:"transaction,omitempty"`
}

type FeedbackResponse struct {
	Message  string           `json:"message"`
	Feedback CustomerFeedback `json:"feedback"`
}

type FarewellMessage struct {
	ID           string    `json:"id"`
	Message      string    `json:"message"`
	Active       bool      `json:"is_active"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
}

type FarewellMessageRequest struct {
	Message      string `json:"message" validate:"required,max=500"`
	Active       *bool  `json:"is_active,omitempty"`
	DisplayOrder int    `json:"display_order" validate:"gte=0"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the user on whose behalf a ledger or sale operation runs.
type Actor struct {
	ID       string
	Username string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	ID        string
	Username  string
	Password  string
	FullName  string
	Active    bool
	CreatedAt time.Time
}
