package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maryannartillero/POS-namon/internal/domain"
	"github.com/maryannartillero/POS-namon/internal/store"
)

// maxTxAttempts bounds how often a unit of work is replayed after a
// serialization failure or deadlock.
const maxTxAttempts = 4

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = 30
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WithinTx runs fn in a serializable transaction. Row locks are taken with
// FOR UPDATE; when the database still aborts the unit with a serialization
// failure, fn is replayed from scratch against fresh state.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}

		backoff := time.Duration(attempt*attempt) * 10 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(tx store.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = pgTx.Rollback(ctx) }()

	if err := fn(&txStore{tx: pgTx}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) LockProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *txStore) SetProductStock(ctx context.Context, id string, qty int) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE products
		SET stock_quantity = $2, updated_at = NOW()
		WHERE id = $1
	`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *txStore) AppendMovement(ctx context.Context, m domain.InventoryMovement) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO inventory_movements (
			id, product_id, user_id, movement_type, quantity,
			previous_stock, new_stock, reason, reference_number, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, m.ID, m.ProductID, m.ActorID, string(m.Kind), m.Quantity,
		m.PreviousStock, m.NewStock, m.Reason, m.ReferenceNumber, m.CreatedAt)
	return err
}

func (t *txStore) NextDailySequence(ctx context.Context, day time.Time) (int, error) {
	var seq int
	err := t.tx.QueryRow(ctx, `
		INSERT INTO transaction_sequences (day, last_seq)
		VALUES ($1::date, 1)
		ON CONFLICT (day) DO UPDATE SET last_seq = transaction_sequences.last_seq + 1
		RETURNING last_seq
	`, day.Format("2006-01-02")).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (t *txStore) InsertTransaction(ctx context.Context, tx domain.Transaction) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO transactions (
			id, transaction_number, user_id, customer_name, customer_email,
			subtotal_cents, discount_amount_cents, tax_amount_cents, total_amount_cents,
			amount_paid_cents, change_amount_cents, payment_method, discount_id, status, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, tx.ID, tx.Number, tx.CashierID, tx.CustomerName, tx.CustomerEmail,
		tx.SubtotalCents, tx.DiscountCents, tx.TaxCents, tx.TotalCents,
		tx.AmountPaidCents, tx.ChangeCents, string(tx.PaymentMethod), tx.DiscountID, tx.Status, tx.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}

	batch := &pgx.Batch{}
	for _, item := range tx.Items {
		batch.Queue(`
			INSERT INTO transaction_items (
				id, transaction_id, product_id, product_name, quantity, unit_price_cents, total_price_cents
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, item.ID, tx.ID, item.ProductID, item.ProductName, item.Quantity, item.UnitPriceCents, item.TotalCents)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *txStore) InsertProduct(ctx context.Context, p domain.Product) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO products (
			id, sku, barcode, name, description, category_id, price_cents, cost_cents,
			stock_quantity, min_stock_level, is_active, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, p.ID, p.SKU, nullIfEmpty(p.Barcode), p.Name, p.Description, p.CategoryID, p.PriceCents, p.CostCents,
		p.Stock, p.MinStock, p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

const productColumns = `id, sku, COALESCE(barcode, ''), name, description, category_id, price_cents, cost_cents,
	stock_quantity, min_stock_level, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Barcode, &p.Name, &p.Description, &p.CategoryID, &p.PriceCents, &p.CostCents,
		&p.Stock, &p.MinStock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, store.ErrNotFound
		}
		return domain.Product{}, err
	}
	return p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

// isRetryable matches serialization_failure and deadlock_detected.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func locationName(loc *time.Location) string {
	if loc == nil || loc.String() == "Local" {
		return "UTC"
	}
	return loc.String()
}
