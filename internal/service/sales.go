package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/maryannartillero/POS-namon/internal/domain"
	"github.com/maryannartillero/POS-namon/internal/inventory"
	"github.com/maryannartillero/POS-namon/internal/notify"
	"github.com/maryannartillero/POS-namon/internal/store"
	"github.com/maryannartillero/POS-namon/internal/validation"
	"github.com/maryannartillero/POS-namon/internal/xid"
)

const saleReason = "Sale transaction"

// CreateSale validates the cart, prices it, and commits the transaction, its
// items and one "out" movement per product as a single unit. Notifications and
// the farewell message are handled after commit and never fail the sale.
func (s *Service) CreateSale(ctx context.Context, actor domain.Actor, req domain.SaleRequest) (domain.SaleResponse, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	req.DiscountID = strings.TrimSpace(req.DiscountID)

	if err := validation.Struct(req); err != nil {
		s.recorder.SaleOutcome("invalid")
		return domain.SaleResponse{}, err
	}

	paid := *req.AmountPaidCents
	lines := mergeLines(req.Items)

	// Discounts are not touched by sales, so they are read before the unit
	// starts. A lookup failure is reported only after the stock checks.
	var selected *domain.Discount
	var discountErr error
	if req.DiscountID != "" {
		d, err := s.repo.GetDiscount(ctx, req.DiscountID)
		switch {
		case err == nil:
			selected = d
		case errors.Is(err, store.ErrNotFound):
			discountErr = fmt.Errorf("%w: %s", domain.ErrDiscountNotFound, req.DiscountID)
		default:
			discountErr = err
		}
	}

	var sale domain.Transaction
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		now := s.now()

		products := make(map[string]*domain.Product, len(lines))
		for _, id := range lockOrder(lines) {
			p, err := tx.LockProduct(ctx, id)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
				}
				return err
			}
			if !p.Active {
				return fmt.Errorf("%w: %s is inactive", domain.ErrProductNotFound, id)
			}
			products[id] = p
		}

		var subtotal int64
		txID := xid.New("txn")
		items := make([]domain.TransactionItem, 0, len(lines))
		for _, line := range lines {
			p := products[line.ProductID]
			if line.Quantity > p.Stock {
				return fmt.Errorf("%w for product %s: have %d, requested %d", domain.ErrInsufficientStock, p.Name, p.Stock, line.Quantity)
			}
			lineTotal := p.PriceCents * int64(line.Quantity)
			subtotal += lineTotal
			items = append(items, domain.TransactionItem{
				ID:             xid.New("txi"),
				TransactionID:  txID,
				ProductID:      p.ID,
				ProductName:    p.Name,
				Quantity:       line.Quantity,
				UnitPriceCents: p.PriceCents,
				TotalCents:     lineTotal,
			})
		}

		if discountErr != nil {
			return discountErr
		}
		var discountCents int64
		if selected != nil {
			discountCents = s.discounts.Evaluate(*selected, subtotal, now)
		}

		taxCents := s.taxFor(subtotal - discountCents)
		total := subtotal - discountCents + taxCents
		if paid < total {
			return fmt.Errorf("%w: total is %d, paid %d", domain.ErrInsufficientPayment, total, paid)
		}

		day, _ := s.dayBounds(now)
		seq, err := tx.NextDailySequence(ctx, day)
		if err != nil {
			return err
		}

		sale = domain.Transaction{
			ID:              txID,
			Number:          transactionNumber(day, seq),
			CashierID:       actor.ID,
			CustomerName:    req.CustomerName,
			CustomerEmail:   req.CustomerEmail,
			SubtotalCents:   subtotal,
			DiscountCents:   discountCents,
			TaxCents:        taxCents,
			TotalCents:      total,
			AmountPaidCents: paid,
			ChangeCents:     paid - total,
			PaymentMethod:   req.PaymentMethod,
			Status:          domain.TxStatusCompleted,
			CreatedAt:       now,
			Items:           items,
		}
		if selected != nil {
			sale.DiscountID = selected.ID
		}
		if err := tx.InsertTransaction(ctx, sale); err != nil {
			return err
		}

		for _, line := range lines {
			_, err := s.ledger.AdjustInTx(ctx, tx, inventory.Adjustment{
				ProductID:       line.ProductID,
				Kind:            domain.MovementOut,
				Quantity:        line.Quantity,
				Reason:          saleReason,
				ReferenceNumber: sale.Number,
				Actor:           actor,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.recorder.SaleOutcome(saleOutcome(err))
		return domain.SaleResponse{}, s.persistence(ctx, "create sale", err)
	}

	s.recorder.SaleOutcome("completed")
	for range lines {
		s.recorder.StockAdjusted(string(domain.MovementOut))
	}
	s.log.InfoContext(ctx, "sale completed", "transaction_number", sale.Number, "total_cents", sale.TotalCents, "user_id", actor.ID)

	if sale.CustomerEmail != "" {
		s.notifier.Notify(ctx, notify.EventEmailReceipt, receiptPayload(sale))
	}

	return domain.SaleResponse{
		Message:         "Transaction completed successfully",
		Transaction:     sale,
		FarewellMessage: s.randomFarewell(ctx),
	}, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Transaction{}, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
		}
		return domain.Transaction{}, s.persistence(ctx, "get transaction", err)
	}
	return *tx, nil
}

func (s *Service) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	if filter.Limit < 1 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, domain.NewValidationError("date_to", "must be after date_from")
	}

	txs, err := s.repo.ListTransactions(ctx, filter)
	if err != nil {
		return nil, s.persistence(ctx, "list transactions", err)
	}
	return txs, nil
}

// taxFor applies the configured rate to the post-discount base, rounding to
// the nearest cent.
func (s *Service) taxFor(baseCents int64) int64 {
	return int64(math.Round(float64(baseCents) * s.taxRatePercent / 100))
}

func (s *Service) randomFarewell(ctx context.Context) *string {
	messages, err := s.repo.ListFarewellMessages(ctx, true)
	if err != nil {
		s.log.WarnContext(ctx, "farewell message lookup failed", "error", err)
		return nil
	}
	if len(messages) == 0 {
		return nil
	}
	msg := messages[rand.IntN(len(messages))].Message
	return &msg
}

func transactionNumber(day time.Time, seq int) string {
	return fmt.Sprintf("TXN-%s-%04d", day.Format("20060102"), seq)
}

// mergeLines folds repeated product ids into one line, keeping first-seen order.
func mergeLines(items []domain.CartLine) []domain.CartLine {
	merged := make([]domain.CartLine, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ProductID)
		if i, ok := index[id]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[id] = len(merged)
		merged = append(merged, domain.CartLine{ProductID: id, Quantity: item.Quantity})
	}
	return merged
}

// lockOrder returns product ids sorted so concurrent sales lock rows in the
// same order.
func lockOrder(lines []domain.CartLine) []string {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	slices.Sort(ids)
	return ids
}

func saleOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrDiscountNotFound):
		return "discount_not_found"
	case errors.Is(err, domain.ErrInsufficientPayment):
		return "insufficient_payment"
	default:
		return "error"
	}
}

type receiptItem struct {
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_price_cents"`
}

type receipt struct {
	TransactionID     string        `json:"transaction_id"`
	TransactionNumber string        `json:"transaction_number"`
	CustomerName      string        `json:"customer_name,omitempty"`
	CustomerEmail     string        `json:"customer_email"`
	TotalCents        int64         `json:"total_amount_cents"`
	Items             []receiptItem `json:"items"`
	CreatedAt         string        `json:"created_at"`
}

func receiptPayload(tx domain.Transaction) receipt {
	items := make([]receiptItem, 0, len(tx.Items))
	for _, item := range tx.Items {
		items = append(items, receiptItem{
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		})
	}
	return receipt{
		TransactionID:     tx.ID,
		TransactionNumber: tx.Number,
		CustomerName:      tx.CustomerName,
		CustomerEmail:     tx.CustomerEmail,
		TotalCents:        tx.TotalCents,
		Items:             items,
		CreatedAt:         tx.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}
