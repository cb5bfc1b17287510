// Package inventory owns product stock levels and their append-only movement history.
//
// Every stock change goes through Ledger: the product row is locked, the new level
// is computed, and the stock write plus exactly one InventoryMovement are issued
// inside the same store.Tx.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maryannartillero/POS-namon/internal/domain"
	"github.com/maryannartillero/POS-namon/internal/store"
	"github.com/maryannartillero/POS-namon/internal/xid"
)

// OutPolicy decides what an "out" movement larger than the current stock does.
type OutPolicy string

const (
	// OutClamp floors the resulting stock at zero.
	OutClamp OutPolicy = "clamp"
	// OutReject fails with domain.ErrInsufficientStock.
	OutReject OutPolicy = "reject"
)

func ParseOutPolicy(raw string) (OutPolicy, error) {
	switch OutPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", OutClamp:
		return OutClamp, nil
	case OutReject:
		return OutReject, nil
	default:
		return "", fmt.Errorf("unknown stock out policy %q", raw)
	}
}

type Adjustment struct {
	ProductID       string
	Kind            domain.MovementKind
	Quantity        int
	Reason          string
	ReferenceNumber string
	Actor           domain.Actor
}

type Result struct {
	Product  domain.Product
	Movement domain.InventoryMovement
}

func (r Result) PreviousStock() int { return r.Movement.PreviousStock }
func (r Result) NewStock() int      { return r.Movement.NewStock }

type Ledger struct {
	repo   store.Repository
	policy OutPolicy
	now    func() time.Time
}

func NewLedger(repo store.Repository, policy OutPolicy) *Ledger {
	if policy == "" {
		policy = OutClamp
	}
	return &Ledger{
		repo:   repo,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *Ledger) Policy() OutPolicy {
	return l.policy
}

// Adjust applies one stock change in its own atomic unit.
func (l *Ledger) Adjust(ctx context.Context, adj Adjustment) (Result, error) {
	if err := l.check(adj); err != nil {
		return Result{}, err
	}

	var result Result
	err := l.repo.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		result, err = l.AdjustInTx(ctx, tx, adj)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// AdjustInTx applies one stock change inside a unit owned by the caller.
func (l *Ledger) AdjustInTx(ctx context.Context, tx store.Tx, adj Adjustment) (Result, error) {
	if err := l.check(adj); err != nil {
		return Result{}, err
	}

	product, err := tx.LockProduct(ctx, adj.ProductID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, adj.ProductID)
		}
		return Result{}, err
	}

	newStock, delta, err := Apply(adj.Kind, product.Stock, adj.Quantity, l.policy)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			return Result{}, fmt.Errorf("%w for product %s: have %d, requested %d", domain.ErrInsufficientStock, product.Name, product.Stock, adj.Quantity)
		}
		return Result{}, err
	}

	movement := domain.InventoryMovement{
		ID:              xid.New("mov"),
		ProductID:       product.ID,
		ActorID:         adj.Actor.ID,
		Kind:            adj.Kind,
		Quantity:        delta,
		PreviousStock:   product.Stock,
		NewStock:        newStock,
		Reason:          strings.TrimSpace(adj.Reason),
		ReferenceNumber: strings.TrimSpace(adj.ReferenceNumber),
		CreatedAt:       l.now(),
	}

	if err := tx.SetProductStock(ctx, product.ID, newStock); err != nil {
		return Result{}, err
	}
	if err := tx.AppendMovement(ctx, movement); err != nil {
		return Result{}, err
	}

	updated := *product
	updated.Stock = newStock
	updated.UpdatedAt = movement.CreatedAt
	return Result{Product: updated, Movement: movement}, nil
}

func (l *Ledger) check(adj Adjustment) error {
	if adj.Quantity < 1 {
		return domain.ErrInvalidQuantity
	}
	if !adj.Kind.Valid() {
		return domain.NewValidationError("type", "must be one of in, out, adjustment")
	}
	if strings.TrimSpace(adj.ProductID) == "" {
		return domain.NewValidationError("product_id", "is required")
	}
	return nil
}

// Apply computes the stock level after a movement and the absolute quantity
// recorded on the ledger entry. For adjustment, quantity is the target level.
func Apply(kind domain.MovementKind, previous int, quantity int, policy OutPolicy) (newStock int, delta int, err error) {
	if quantity < 1 {
		return previous, 0, domain.ErrInvalidQuantity
	}

	switch kind {
	case domain.MovementIn:
		return previous + quantity, quantity, nil
	case domain.MovementOut:
		if quantity > previous {
			if policy == OutReject {
				return previous, 0, domain.ErrInsufficientStock
			}
			return 0, quantity, nil
		}
		return previous - quantity, quantity, nil
	case domain.MovementAdjustment:
		delta = quantity - previous
		if delta < 0 {
			delta = -delta
		}
		return quantity, delta, nil
	default:
		return previous, 0, fmt.Errorf("unknown movement kind %q", kind)
	}
}
