package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/maryannartillero/POS-namon/internal/domain"
	"github.com/maryannartillero/POS-namon/internal/store"
)

const transactionColumns = `id, transaction_number, user_id, customer_name, customer_email,
	subtotal_cents, discount_amount_cents, tax_amount_cents, total_amount_cents,
	amount_paid_cents, change_amount_cents, payment_method, discount_id, status, created_at`

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var tx domain.Transaction
	var method string
	err := row.Scan(&tx.ID, &tx.Number, &tx.CashierID, &tx.CustomerName, &tx.CustomerEmail,
		&tx.SubtotalCents, &tx.DiscountCents, &tx.TaxCents, &tx.TotalCents,
		&tx.AmountPaidCents, &tx.ChangeCents, &method, &tx.DiscountID, &tx.Status, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, store.ErrNotFound
		}
		return domain.Transaction{}, err
	}
	tx.PaymentMethod = domain.PaymentMethod(method)
	return tx, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	tx, err := scanTransaction(s.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	items, err := s.itemsFor(ctx, []string{tx.ID})
	if err != nil {
		return nil, err
	}
	tx.Items = items[tx.ID]
	if tx.Items == nil {
		tx.Items = []domain.TransactionItem{}
	}

	fb, err := s.GetFeedbackByTransaction(ctx, tx.ID)
	switch {
	case err == nil:
		tx.Feedback = fb
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}
	return &tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 6)
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if filter.CashierID != "" {
		args = append(args, filter.CashierID)
		clauses = append(clauses, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	transactions := make([]domain.Transaction, 0, 32)
	ids := make([]string, 0, 32)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		transactions = append(transactions, tx)
		ids = append(ids, tx.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := s.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range transactions {
		transactions[i].Items = items[transactions[i].ID]
		if transactions[i].Items == nil {
			transactions[i].Items = []domain.TransactionItem{}
		}
	}
	return transactions, nil
}

func (s *Store) itemsFor(ctx context.Context, transactionIDs []string) (map[string][]domain.TransactionItem, error) {
	result := make(map[string][]domain.TransactionItem, len(transactionIDs))
	if len(transactionIDs) == 0 {
		return result, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT ti.id, ti.transaction_id, ti.product_id, COALESCE(NULLIF(ti.product_name, ''), p.name),
			ti.quantity, ti.unit_price_cents, ti.total_price_cents
		FROM transaction_items ti
		JOIN products p ON p.id = ti.product_id
		WHERE ti.transaction_id = ANY($1)
		ORDER BY ti.transaction_id, ti.id
	`, transactionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.TransactionItem
		if err := rows.Scan(&item.ID, &item.TransactionID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPriceCents, &item.TotalCents); err != nil {
			return nil, err
		}
		result[item.TransactionID] = append(result[item.TransactionID], item)
	}
	return result, rows.Err()
}

func (s *Store) CreateFeedback(ctx context.Context, fb domain.CustomerFeedback) (*domain.CustomerFeedback, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO customer_feedback (id, transaction_id, rating, comments, customer_email, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, fb.ID, fb.TransactionID, fb.Rating, fb.Comments, fb.CustomerEmail, fb.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &fb, nil
}

func (s *Store) GetFeedbackByTransaction(ctx context.Context, transactionID string) (*domain.CustomerFeedback, error) {
	fb, err := scanFeedback(s.pool.QueryRow(ctx, `SELECT `+feedbackColumns+` FROM customer_feedback WHERE transaction_id = $1`, transactionID))
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

const feedbackColumns = `id, transaction_id, rating, comments, customer_email, created_at`

func scanFeedback(row pgx.Row) (domain.CustomerFeedback, error) {
	var fb domain.CustomerFeedback
	err := row.Scan(&fb.ID, &fb.TransactionID, &fb.Rating, &fb.Comments, &fb.CustomerEmail, &fb.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CustomerFeedback{}, store.ErrNotFound
	}
	return fb, err
}

func (s *Store) GetFeedback(ctx context.Context, id string) (*domain.CustomerFeedback, error) {
	fb, err := scanFeedback(s.pool.QueryRow(ctx, `SELECT `+feedbackColumns+` FROM customer_feedback WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

func (s *Store) ListFeedback(ctx context.Context, filter domain.FeedbackFilter) ([]domain.CustomerFeedback, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 5)
	if filter.Rating != 0 {
		args = append(args, filter.Rating)
		where = append(where, fmt.Sprintf("rating = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := `SELECT ` + feedbackColumns + ` FROM customer_feedback`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.CustomerFeedback, 0, filter.Limit)
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, fb)
	}
	return result, rows.Err()
}

func (s *Store) FeedbackRatingCounts(ctx context.Context, from time.Time, to time.Time) (map[int]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT rating, COUNT(*)
		FROM customer_feedback
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY rating
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64, 5)
	for rows.Next() {
		var rating int
		var count int64
		if err := rows.Scan(&rating, &count); err != nil {
			return nil, err
		}
		counts[rating] = count
	}
	return counts, rows.Err()
}

func (s *Store) ListRecentFeedbackComments(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.CustomerFeedback, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, transaction_id, rating, comments, customer_email, created_at
		FROM customer_feedback
		WHERE created_at >= $1 AND created_at < $2 AND BTRIM(comments) <> ''
		ORDER BY created_at DESC, id
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.CustomerFeedback, 0, limit)
	for rows.Next() {
		var fb domain.CustomerFeedback
		if err := rows.Scan(&fb.ID, &fb.TransactionID, &fb.Rating, &fb.Comments, &fb.CustomerEmail, &fb.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, fb)
	}
	return result, rows.Err()
}

func (s *Store) SalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	var summary domain.SalesSummary
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_amount_cents), 0)::BIGINT, COALESCE(SUM(discount_amount_cents), 0)::BIGINT
		FROM transactions
		WHERE status = $1 AND created_at >= $2 AND created_at < $3
	`, domain.TxStatusCompleted, from, to).Scan(&summary.Transactions, &summary.TotalSalesCents, &summary.TotalDiscountCents)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	if summary.Transactions > 0 {
		summary.AverageSaleCents = int64(math.Round(float64(summary.TotalSalesCents) / float64(summary.Transactions)))
	}
	return summary, nil
}

func (s *Store) TopProducts(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.ProductSales, error) {
	if limit < 1 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.name, SUM(ti.quantity) AS total_quantity, SUM(ti.total_price_cents)::BIGINT AS total_revenue
		FROM transaction_items ti
		JOIN transactions t ON t.id = ti.transaction_id
		JOIN products p ON p.id = ti.product_id
		WHERE t.status = $1 AND t.created_at >= $2 AND t.created_at < $3
		GROUP BY p.id, p.name
		ORDER BY total_quantity DESC, total_revenue DESC, p.name
		LIMIT $4
	`, domain.TxStatusCompleted, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.ProductSales, 0, limit)
	for rows.Next() {
		var row domain.ProductSales
		if err := rows.Scan(&row.ProductID, &row.Name, &row.TotalQuantity, &row.RevenueCents); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (s *Store) DailySales(ctx context.Context, from time.Time, to time.Time, loc *time.Location) ([]domain.DailySalesPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT TO_CHAR(created_at AT TIME ZONE $4, 'YYYY-MM-DD') AS day,
			COUNT(*), COALESCE(SUM(total_amount_cents), 0)::BIGINT
		FROM transactions
		WHERE status = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY day
		ORDER BY day
	`, domain.TxStatusCompleted, from, to, locationName(loc))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]domain.DailySalesPoint, 0, 31)
	for rows.Next() {
		var p domain.DailySalesPoint
		if err := rows.Scan(&p.Date, &p.Transactions, &p.SalesCents); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
