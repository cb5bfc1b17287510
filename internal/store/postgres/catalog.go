package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/maryannartillero/POS-namon/internal/domain"
	"github.com/maryannartillero/POS-namon/internal/store"
)

func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if !filter.IncludeInactive {
		clauses = append(clauses, "is_active = TRUE")
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.LowStock {
		clauses = append(clauses, "stock_quantity <= min_stock_level")
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, containsPattern(search))
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			`(LOWER(name) LIKE $%[1]d ESCAPE '\' OR LOWER(sku) LIKE $%[1]d ESCAPE '\' OR LOWER(barcode) LIKE $%[1]d ESCAPE '\')`, n))
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a case-insensitive substring LIKE pattern with the
// wildcard characters of term escaped.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpdateProductDetails(ctx context.Context, p domain.Product) (*domain.Product, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE products
		SET sku = $2, barcode = $3, name = $4, description = $5, category_id = $6,
			price_cents = $7, cost_cents = $8, min_stock_level = $9, is_active = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.SKU, nullIfEmpty(p.Barcode), p.Name, p.Description, p.CategoryID,
		p.PriceCents, p.CostCents, p.MinStock, p.Active)
	updated, err := scanProduct(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) ListMovements(ctx context.Context, productID string, limit int) ([]domain.InventoryMovement, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, user_id, movement_type, quantity, previous_stock, new_stock,
			reason, reference_number, created_at
		FROM inventory_movements
		WHERE product_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.InventoryMovement, 0, limit)
	for rows.Next() {
		var m domain.InventoryMovement
		var kind string
		if err := rows.Scan(&m.ID, &m.ProductID, &m.ActorID, &kind, &m.Quantity, &m.PreviousStock, &m.NewStock,
			&m.Reason, &m.ReferenceNumber, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Kind = domain.MovementKind(kind)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

const discountColumns = `id, name, description, discount_type, percent, amount_cents, minimum_amount_cents,
	start_date, end_date, is_active, created_at, updated_at`

func scanDiscount(row pgx.Row) (domain.Discount, error) {
	var d domain.Discount
	var kind string
	err := row.Scan(&d.ID, &d.Name, &d.Description, &kind, &d.Percent, &d.AmountCents, &d.MinimumCents,
		&d.StartDate, &d.EndDate, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Discount{}, store.ErrNotFound
		}
		return domain.Discount{}, err
	}
	d.Type = domain.DiscountType(kind)
	return d, nil
}

func (s *Store) CreateDiscount(ctx context.Context, d domain.Discount) (*domain.Discount, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO discounts (
			id, name, description, discount_type, percent, amount_cents, minimum_amount_cents,
			start_date, end_date, is_active, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8::date,$9::date,$10,$11,$12)
		RETURNING `+discountColumns,
		d.ID, d.Name, d.Description, string(d.Type), d.Percent, d.AmountCents, d.MinimumCents,
		d.StartDate.Format("2006-01-02"), d.EndDate.Format("2006-01-02"), d.Active, d.CreatedAt, d.UpdatedAt)
	created, err := scanDiscount(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &created, nil
}

func (s *Store) UpdateDiscount(ctx context.Context, d domain.Discount) (*domain.Discount, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE discounts
		SET name = $2, description = $3, discount_type = $4, percent = $5, amount_cents = $6,
			minimum_amount_cents = $7, start_date = $8::date, end_date = $9::date, is_active = $10,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+discountColumns,
		d.ID, d.Name, d.Description, string(d.Type), d.Percent, d.AmountCents, d.MinimumCents,
		d.StartDate.Format("2006-01-02"), d.EndDate.Format("2006-01-02"), d.Active)
	updated, err := scanDiscount(row)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) GetDiscount(ctx context.Context, id string) (*domain.Discount, error) {
	d, err := scanDiscount(s.pool.QueryRow(ctx, `SELECT `+discountColumns+` FROM discounts WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) ListDiscounts(ctx context.Context) ([]domain.Discount, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+discountColumns+` FROM discounts ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	discounts := make([]domain.Discount, 0, 16)
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, err
		}
		discounts = append(discounts, d)
	}
	return discounts, rows.Err()
}

func (s *Store) CreateFarewellMessage(ctx context.Context, m domain.FarewellMessage) (*domain.FarewellMessage, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO farewell_messages (id, message, is_active, display_order, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, m.ID, m.Message, m.Active, m.DisplayOrder, m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &m, nil
}

func (s *Store) GetFarewellMessage(ctx context.Context, id string) (*domain.FarewellMessage, error) {
	var m domain.FarewellMessage
	err := s.pool.QueryRow(ctx, `
		SELECT id, message, is_active, display_order, created_at
		FROM farewell_messages
		WHERE id = $1
	`, id).Scan(&m.ID, &m.Message, &m.Active, &m.DisplayOrder, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *Store) UpdateFarewellMessage(ctx context.Context, m domain.FarewellMessage) (*domain.FarewellMessage, error) {
	err := s.pool.QueryRow(ctx, `
		UPDATE farewell_messages
		SET message = $2, is_active = $3, display_order = $4
		WHERE id = $1
		RETURNING created_at
	`, m.ID, m.Message, m.Active, m.DisplayOrder).Scan(&m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListFarewellMessages(ctx context.Context, activeOnly bool) ([]domain.FarewellMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, message, is_active, display_order, created_at
		FROM farewell_messages
		WHERE ($1 = FALSE OR is_active = TRUE)
		ORDER BY display_order, created_at
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]domain.FarewellMessage, 0, 8)
	for rows.Next() {
		var m domain.FarewellMessage
		if err := rows.Scan(&m.ID, &m.Message, &m.Active, &m.DisplayOrder, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, full_name, is_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, user.ID, user.Username, user.Password, user.FullName, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, full_name, is_active, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &user.Password, &user.FullName, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
