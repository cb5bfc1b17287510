package store

import (
	"context"
	"errors"
	"time"

	"github.com/maryannartillero/POS-namon/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a unique constraint violation (sku, barcode, feedback per transaction).
	ErrConflict = errors.New("conflict")
)

// Tx is one atomic unit of work. Everything written through a Tx becomes
// visible together when the enclosing WithinTx returns nil, or not at all.
type Tx interface {
	// LockProduct reads a product and holds an exclusive lock on it until the unit ends.
	LockProduct(ctx context.Context, id string) (*domain.Product, error)
	SetProductStock(ctx context.Context, id string, qty int) error
	AppendMovement(ctx context.Context, movement domain.InventoryMovement) error
	// NextDailySequence atomically increments and returns the sale counter for day.
	NextDailySequence(ctx context.Context, day time.Time) (int, error)
	InsertTransaction(ctx context.Context, tx domain.Transaction) error
	InsertProduct(ctx context.Context, product domain.Product) error
}

type Repository interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	// UpdateProductDetails persists catalog metadata. The stock column is never written.
	UpdateProductDetails(ctx context.Context, product domain.Product) (*domain.Product, error)
	ListMovements(ctx context.Context, productID string, limit int) ([]domain.InventoryMovement, error)

	CreateDiscount(ctx context.Context, discount domain.Discount) (*domain.Discount, error)
	UpdateDiscount(ctx context.Context, discount domain.Discount) (*domain.Discount, error)
	GetDiscount(ctx context.Context, id string) (*domain.Discount, error)
	ListDiscounts(ctx context.Context) ([]domain.Discount, error)

	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)

	CreateFeedback(ctx context.Context, feedback domain.CustomerFeedback) (*domain.CustomerFeedback, error)
	GetFeedbackByTransaction(ctx context.Context, transactionID string) (*domain.CustomerFeedback, error)
	GetFeedback(ctx context.Context, id string) (*domain.CustomerFeedback, error)
	// ListFeedback returns matching entries newest first.
	ListFeedback(ctx context.Context, filter domain.FeedbackFilter) ([]domain.CustomerFeedback, error)
	FeedbackRatingCounts(ctx context.Context, from time.Time, to time.Time) (map[int]int64, error)
	ListRecentFeedbackComments(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.CustomerFeedback, error)

	SalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error)
	TopProducts(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.ProductSales, error)
	DailySales(ctx context.Context, from time.Time, to time.Time, loc *time.Location) ([]domain.DailySalesPoint, error)

	CreateFarewellMessage(ctx context.Context, message domain.FarewellMessage) (*domain.FarewellMessage, error)
	GetFarewellMessage(ctx context.Context, id string) (*domain.FarewellMessage, error)
	UpdateFarewellMessage(ctx context.Context, message domain.FarewellMessage) (*domain.FarewellMessage, error)
	ListFarewellMessages(ctx context.Context, activeOnly bool) ([]domain.FarewellMessage, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
}
