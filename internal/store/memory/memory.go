package memory

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/maryannartillero/POS-namon/internal/domain"
	"github.com/maryannartillero/POS-namon/internal/store"
)

// Store keeps everything in process memory. A single mutex serializes units of
// work, so stock checks and sequence allocation never interleave.
type Store struct {
	mu               sync.RWMutex
	products         map[string]domain.Product
	movements        []domain.InventoryMovement
	discounts        map[string]domain.Discount
	transactions     []domain.Transaction
	transactionIndex map[string]int
	sequences        map[string]int
	feedbackByTx     map[string]domain.CustomerFeedback
	farewells        []domain.FarewellMessage
	usersByUsername  map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:         make(map[string]domain.Product),
		movements:        make([]domain.InventoryMovement, 0, 128),
		discounts:        make(map[string]domain.Discount),
		transactions:     make([]domain.Transaction, 0, 128),
		transactionIndex: make(map[string]int),
		sequences:        make(map[string]int),
		feedbackByTx:     make(map[string]domain.CustomerFeedback),
		farewells:        make([]domain.FarewellMessage, 0, 8),
		usersByUsername:  make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store with a demo catalog, discounts, farewell messages
// and two accounts. Passwords come from SEED_ADMIN_PASSWORD and
// SEED_CASHIER_PASSWORD, with dev defaults when unset.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	products := []domain.Product{
		{ID: "prd-0001", SKU: "BEV-COFFEE-250", Barcode: "8991001000011", Name: "Ground Coffee 250g", CategoryID: "beverages", PriceCents: 899, CostCents: 520, Stock: 120, MinStock: 20},
		{ID: "prd-0002", SKU: "BEV-TEA-100", Barcode: "8991001000028", Name: "Black Tea 100 bags", CategoryID: "beverages", PriceCents: 549, CostCents: 300, Stock: 80, MinStock: 15},
		{ID: "prd-0003", SKU: "DRY-MILK-1L", Barcode: "8991001000035", Name: "UHT Milk 1L", CategoryID: "dairy", PriceCents: 249, CostCents: 170, Stock: 200, MinStock: 40},
		{ID: "prd-0004", SKU: "BAK-BREAD-WHT", Barcode: "8991001000042", Name: "White Bread Loaf", CategoryID: "bakery", PriceCents: 329, CostCents: 190, Stock: 45, MinStock: 10},
		{ID: "prd-0005", SKU: "SNK-CHIPS-150", Barcode: "8991001000059", Name: "Potato Chips 150g", CategoryID: "snacks", PriceCents: 299, CostCents: 160, Stock: 90, MinStock: 20},
		{ID: "prd-0006", SKU: "HOU-SOAP-3PK", Barcode: "8991001000066", Name: "Bar Soap 3-pack", CategoryID: "household", PriceCents: 459, CostCents: 250, Stock: 8, MinStock: 10},
	}
	for _, p := range products {
		p.Active = true
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
		s.movements = append(s.movements, domain.InventoryMovement{
			ID:            "mov-seed-" + p.ID,
			ProductID:     p.ID,
			ActorID:       "usr-admin",
			Kind:          domain.MovementIn,
			Quantity:      p.Stock,
			PreviousStock: 0,
			NewStock:      p.Stock,
			Reason:        "Initial stock",
			CreatedAt:     now,
		})
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	s.discounts["dsc-0001"] = domain.Discount{
		ID: "dsc-0001", Name: "Member 10%", Type: domain.DiscountPercentage, Percent: 10,
		StartDate: today.AddDate(0, 0, -30), EndDate: today.AddDate(1, 0, 0), Active: true,
		CreatedAt: now, UpdatedAt: now,
	}
	s.discounts["dsc-0002"] = domain.Discount{
		ID: "dsc-0002", Name: "5 off above 50", Type: domain.DiscountFixed, AmountCents: 500, MinimumCents: 5000,
		StartDate: today.AddDate(0, 0, -30), EndDate: today.AddDate(1, 0, 0), Active: true,
		CreatedAt: now, UpdatedAt: now,
	}

	for i, msg := range []string{
		"Thank you for shopping with us!",
		"Have a wonderful day!",
		"See you again soon!",
	} {
		s.farewells = append(s.farewells, domain.FarewellMessage{
			ID: fmt.Sprintf("fwm-%04d", i+1), Message: msg, Active: true, DisplayOrder: i, CreatedAt: now,
		})
	}

	s.usersByUsername = seedUsers(now)
	return s
}

func seedUsers(now time.Time) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		slog.Warn("memory store is using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	users := make(map[string]domain.UserAccount, 2)
	for _, u := range []struct {
		id       string
		username string
		password string
		fullName string
	}{
		{"usr-admin", "admin", adminPwd, "Store Administrator"},
		{"usr-cashier", "cashier", cashierPwd, "Front Cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			panic(fmt.Sprintf("memory store: hash seed password for %s: %v", u.username, err))
		}
		users[u.username] = domain.UserAccount{
			ID:        u.id,
			Username:  u.username,
			Password:  string(hash),
			FullName:  u.fullName,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// WithinTx runs fn while holding the store lock. If fn fails, every write it
// made is undone in reverse order before the lock is released.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type memTx struct {
	s    *Store
	undo []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) LockProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := t.s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (t *memTx) SetProductStock(_ context.Context, id string, qty int) error {
	p, ok := t.s.products[id]
	if !ok {
		return store.ErrNotFound
	}
	if qty < 0 {
		return fmt.Errorf("stock for %s would become negative", id)
	}
	previous := p
	p.Stock = qty
	p.UpdatedAt = time.Now().UTC()
	t.s.products[id] = p
	t.undo = append(t.undo, func() { t.s.products[id] = previous })
	return nil
}

func (t *memTx) AppendMovement(_ context.Context, movement domain.InventoryMovement) error {
	n := len(t.s.movements)
	t.s.movements = append(t.s.movements, movement)
	t.undo = append(t.undo, func() { t.s.movements = t.s.movements[:n] })
	return nil
}

func (t *memTx) NextDailySequence(_ context.Context, day time.Time) (int, error) {
	key := day.Format("20060102")
	previous := t.s.sequences[key]
	t.s.sequences[key] = previous + 1
	t.undo = append(t.undo, func() { t.s.sequences[key] = previous })
	return previous + 1, nil
}

func (t *memTx) InsertTransaction(_ context.Context, tx domain.Transaction) error {
	if _, exists := t.s.transactionIndex[tx.ID]; exists {
		return store.ErrConflict
	}
	for _, existing := range t.s.transactions {
		if existing.Number == tx.Number {
			return store.ErrConflict
		}
	}

	tx.Items = slices.Clone(tx.Items)
	tx.Feedback = nil
	n := len(t.s.transactions)
	t.s.transactions = append(t.s.transactions, tx)
	t.s.transactionIndex[tx.ID] = n
	t.undo = append(t.undo, func() {
		t.s.transactions = t.s.transactions[:n]
		delete(t.s.transactionIndex, tx.ID)
	})
	return nil
}

func (t *memTx) InsertProduct(_ context.Context, product domain.Product) error {
	if _, exists := t.s.products[product.ID]; exists {
		return store.ErrConflict
	}
	if t.s.identityTaken(product, "") {
		return store.ErrConflict
	}
	t.s.products[product.ID] = product
	t.undo = append(t.undo, func() { delete(t.s.products, product.ID) })
	return nil
}

// identityTaken reports whether another product (other than skipID) already
// uses the sku or the barcode of p.
func (s *Store) identityTaken(p domain.Product, skipID string) bool {
	for id, existing := range s.products {
		if id == skipID {
			continue
		}
		if strings.EqualFold(existing.SKU, p.SKU) {
			return true
		}
		if p.Barcode != "" && existing.Barcode == p.Barcode {
			return true
		}
	}
	return false
}

func (s *Store) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active && !filter.IncludeInactive {
			continue
		}
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		if filter.LowStock && !p.LowStock() {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.SKU), search) &&
			!strings.Contains(p.Barcode, search) {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) UpdateProductDetails(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if s.identityTaken(product, product.ID) {
		return nil, store.ErrConflict
	}

	product.Stock = existing.Stock
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) ListMovements(_ context.Context, productID string, limit int) ([]domain.InventoryMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 50
	}
	result := make([]domain.InventoryMovement, 0, limit)
	for i := len(s.movements) - 1; i >= 0 && len(result) < limit; i-- {
		if s.movements[i].ProductID == productID {
			result = append(result, s.movements[i])
		}
	}
	return result, nil
}

func (s *Store) CreateDiscount(_ context.Context, discount domain.Discount) (*domain.Discount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.discounts[discount.ID]; exists {
		return nil, store.ErrConflict
	}
	s.discounts[discount.ID] = discount
	return &discount, nil
}

func (s *Store) UpdateDiscount(_ context.Context, discount domain.Discount) (*domain.Discount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.discounts[discount.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	discount.CreatedAt = existing.CreatedAt
	s.discounts[discount.ID] = discount
	return &discount, nil
}

func (s *Store) GetDiscount(_ context.Context, id string) (*domain.Discount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.discounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &d, nil
}

func (s *Store) ListDiscounts(_ context.Context) ([]domain.Discount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Discount, 0, len(s.discounts))
	for _, d := range s.discounts {
		result = append(result, d)
	}
	slices.SortFunc(result, func(a, b domain.Discount) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return result, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.transactionIndex[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	tx := s.hydrate(s.transactions[idx])
	if fb, ok := s.feedbackByTx[id]; ok {
		tx.Feedback = &fb
	}
	return &tx, nil
}

func (s *Store) ListTransactions(_ context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Transaction, 0, 32)
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		if filter.From != nil && tx.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !tx.CreatedAt.Before(*filter.To) {
			continue
		}
		if filter.CashierID != "" && tx.CashierID != filter.CashierID {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		matched = append(matched, tx)
	}
	slices.SortStableFunc(matched, func(a, b domain.Transaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if filter.Offset >= len(matched) {
		return []domain.Transaction{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	result := make([]domain.Transaction, 0, len(matched))
	for _, tx := range matched {
		result = append(result, s.hydrate(tx))
	}
	return result, nil
}

// hydrate copies tx and fills missing item names from the catalog.
func (s *Store) hydrate(tx domain.Transaction) domain.Transaction {
	items := make([]domain.TransactionItem, len(tx.Items))
	for i, item := range tx.Items {
		if p, ok := s.products[item.ProductID]; ok && item.ProductName == "" {
			item.ProductName = p.Name
		}
		items[i] = item
	}
	tx.Items = items
	return tx
}

func (s *Store) CreateFeedback(_ context.Context, feedback domain.CustomerFeedback) (*domain.CustomerFeedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactionIndex[feedback.TransactionID]; !ok {
		return nil, store.ErrNotFound
	}
	if _, exists := s.feedbackByTx[feedback.TransactionID]; exists {
		return nil, store.ErrConflict
	}
	s.feedbackByTx[feedback.TransactionID] = feedback
	return &feedback, nil
}

func (s *Store) GetFeedbackByTransaction(_ context.Context, transactionID string) (*domain.CustomerFeedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fb, ok := s.feedbackByTx[transactionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &fb, nil
}

func (s *Store) GetFeedback(_ context.Context, id string) (*domain.CustomerFeedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, fb := range s.feedbackByTx {
		if fb.ID == id {
			return &fb, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListFeedback(_ context.Context, filter domain.FeedbackFilter) ([]domain.CustomerFeedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.CustomerFeedback, 0, len(s.feedbackByTx))
	for _, fb := range s.feedbackByTx {
		if filter.Rating != 0 && fb.Rating != filter.Rating {
			continue
		}
		if filter.From != nil && fb.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !fb.CreatedAt.Before(*filter.To) {
			continue
		}
		matched = append(matched, fb)
	}
	slices.SortFunc(matched, func(a, b domain.CustomerFeedback) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	if filter.Offset >= len(matched) {
		return []domain.CustomerFeedback{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (s *Store) FeedbackRatingCounts(_ context.Context, from time.Time, to time.Time) (map[int]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int]int64, 5)
	for _, fb := range s.feedbackByTx {
		if inRange(fb.CreatedAt, from, to) {
			counts[fb.Rating]++
		}
	}
	return counts, nil
}

func (s *Store) ListRecentFeedbackComments(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.CustomerFeedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CustomerFeedback, 0, limit)
	for _, fb := range s.feedbackByTx {
		if strings.TrimSpace(fb.Comments) == "" || !inRange(fb.CreatedAt, from, to) {
			continue
		}
		result = append(result, fb)
	}
	slices.SortFunc(result, func(a, b domain.CustomerFeedback) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) SalesSummary(_ context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summary domain.SalesSummary
	for _, tx := range s.transactions {
		if tx.Status != domain.TxStatusCompleted || !inRange(tx.CreatedAt, from, to) {
			continue
		}
		summary.Transactions++
		summary.TotalSalesCents += tx.TotalCents
		summary.TotalDiscountCents += tx.DiscountCents
	}
	if summary.Transactions > 0 {
		summary.AverageSaleCents = int64(math.Round(float64(summary.TotalSalesCents) / float64(summary.Transactions)))
	}
	return summary, nil
}

func (s *Store) TopProducts(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.ProductSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byProduct := make(map[string]*domain.ProductSales)
	for _, tx := range s.transactions {
		if tx.Status != domain.TxStatusCompleted || !inRange(tx.CreatedAt, from, to) {
			continue
		}
		for _, item := range tx.Items {
			row, ok := byProduct[item.ProductID]
			if !ok {
				row = &domain.ProductSales{ProductID: item.ProductID, Name: s.products[item.ProductID].Name}
				byProduct[item.ProductID] = row
			}
			row.TotalQuantity += int64(item.Quantity)
			row.RevenueCents += item.TotalCents
		}
	}

	result := make([]domain.ProductSales, 0, len(byProduct))
	for _, row := range byProduct {
		result = append(result, *row)
	}
	slices.SortFunc(result, func(a, b domain.ProductSales) int {
		return cmp.Or(
			cmp.Compare(b.TotalQuantity, a.TotalQuantity),
			cmp.Compare(b.RevenueCents, a.RevenueCents),
			cmp.Compare(a.Name, b.Name),
		)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) DailySales(_ context.Context, from time.Time, to time.Time, loc *time.Location) ([]domain.DailySalesPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if loc == nil {
		loc = time.UTC
	}
	byDate := make(map[string]*domain.DailySalesPoint)
	for _, tx := range s.transactions {
		if tx.Status != domain.TxStatusCompleted || !inRange(tx.CreatedAt, from, to) {
			continue
		}
		date := tx.CreatedAt.In(loc).Format("2006-01-02")
		point, ok := byDate[date]
		if !ok {
			point = &domain.DailySalesPoint{Date: date}
			byDate[date] = point
		}
		point.Transactions++
		point.SalesCents += tx.TotalCents
	}

	result := make([]domain.DailySalesPoint, 0, len(byDate))
	for _, point := range byDate {
		result = append(result, *point)
	}
	slices.SortFunc(result, func(a, b domain.DailySalesPoint) int {
		return cmp.Compare(a.Date, b.Date)
	})
	return result, nil
}

func (s *Store) CreateFarewellMessage(_ context.Context, message domain.FarewellMessage) (*domain.FarewellMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.farewells = append(s.farewells, message)
	return &message, nil
}

func (s *Store) GetFarewellMessage(_ context.Context, id string) (*domain.FarewellMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.farewells {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateFarewellMessage(_ context.Context, message domain.FarewellMessage) (*domain.FarewellMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.farewells {
		if s.farewells[i].ID != message.ID {
			continue
		}
		message.CreatedAt = s.farewells[i].CreatedAt
		s.farewells[i] = message
		return &message, nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListFarewellMessages(_ context.Context, activeOnly bool) ([]domain.FarewellMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.FarewellMessage, 0, len(s.farewells))
	for _, m := range s.farewells {
		if activeOnly && !m.Active {
			continue
		}
		result = append(result, m)
	}
	slices.SortStableFunc(result, func(a, b domain.FarewellMessage) int {
		return cmp.Compare(a.DisplayOrder, b.DisplayOrder)
	})
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrConflict
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func inRange(t time.Time, from time.Time, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
