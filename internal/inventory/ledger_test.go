package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maryannartillero/POS-namon/internal/domain"
	"github.com/maryannartillero/POS-namon/internal/inventory"
	"github.com/maryannartillero/POS-namon/internal/store"
	"github.com/maryannartillero/POS-namon/internal/store/memory"
)

func seedProduct(t *testing.T, repo *memory.Store, id string, stock int) {
	t.Helper()
	now := time.Now().UTC()
	err := repo.WithinTx(context.Background(), func(tx store.Tx) error {
		return tx.InsertProduct(context.Background(), domain.Product{
			ID: id, SKU: "SKU-" + id, Name: "Product " + id, PriceCents: 500,
			Stock: stock, Active: true, CreatedAt: now, UpdatedAt: now,
		})
	})
	require.NoError(t, err)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name      string
		kind      domain.MovementKind
		previous  int
		quantity  int
		policy    inventory.OutPolicy
		wantStock int
		wantDelta int
		wantErr   error
	}{
		{name: "in", kind: domain.MovementIn, previous: 5, quantity: 3, wantStock: 8, wantDelta: 3},
		{name: "out", kind: domain.MovementOut, previous: 10, quantity: 3, wantStock: 7, wantDelta: 3},
		{name: "out to zero", kind: domain.MovementOut, previous: 3, quantity: 3, wantStock: 0, wantDelta: 3},
		{name: "out clamps", kind: domain.MovementOut, previous: 2, quantity: 5, policy: inventory.OutClamp, wantStock: 0, wantDelta: 5},
		{name: "out rejects", kind: domain.MovementOut, previous: 2, quantity: 5, policy: inventory.OutReject, wantStock: 2, wantErr: domain.ErrInsufficientStock},
		{name: "adjust down", kind: domain.MovementAdjustment, previous: 10, quantity: 4, wantStock: 4, wantDelta: 6},
		{name: "adjust up", kind: domain.MovementAdjustment, previous: 4, quantity: 10, wantStock: 10, wantDelta: 6},
		{name: "adjust same", kind: domain.MovementAdjustment, previous: 7, quantity: 7, wantStock: 7, wantDelta: 0},
		{name: "zero quantity", kind: domain.MovementIn, previous: 7, quantity: 0, wantStock: 7, wantErr: domain.ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := tt.policy
			if policy == "" {
				policy = inventory.OutClamp
			}
			stock, delta, err := inventory.Apply(tt.kind, tt.previous, tt.quantity, policy)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantDelta, delta)
			}
			assert.Equal(t, tt.wantStock, stock)
		})
	}
}

func TestNewLedgerPolicy(t *testing.T) {
	assert.Equal(t, inventory.OutClamp, inventory.NewLedger(nil, "").Policy())
	assert.Equal(t, inventory.OutReject, inventory.NewLedger(nil, inventory.OutReject).Policy())
}

func TestParseOutPolicy(t *testing.T) {
	p, err := inventory.ParseOutPolicy("")
	require.NoError(t, err)
	assert.Equal(t, inventory.OutClamp, p)

	p, err = inventory.ParseOutPolicy(" Reject ")
	require.NoError(t, err)
	assert.Equal(t, inventory.OutReject, p)

	_, err = inventory.ParseOutPolicy("ignore")
	require.Error(t, err)
}

func TestAdjustRecordsOneMovement(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	seedProduct(t, repo, "prd-a", 10)
	ledger := inventory.NewLedger(repo, inventory.OutClamp)

	result, err := ledger.Adjust(ctx, inventory.Adjustment{
		ProductID:       "prd-a",
		Kind:            domain.MovementOut,
		Quantity:        3,
		Reason:          "Sale transaction",
		ReferenceNumber: "TXN-20260101-0001",
		Actor:           domain.Actor{ID: "usr-1", Username: "cashier"},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, result.PreviousStock())
	assert.Equal(t, 7, result.NewStock())
	assert.Equal(t, 7, result.Product.Stock)

	product, err := repo.GetProduct(ctx, "prd-a")
	require.NoError(t, err)
	assert.Equal(t, 7, product.Stock)

	movements, err := repo.ListMovements(ctx, "prd-a", 10)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	m := movements[0]
	assert.Equal(t, domain.MovementOut, m.Kind)
	assert.Equal(t, 3, m.Quantity)
	assert.Equal(t, 10, m.PreviousStock)
	assert.Equal(t, 7, m.NewStock)
	assert.Equal(t, "usr-1", m.ActorID)
	assert.Equal(t, "TXN-20260101-0001", m.ReferenceNumber)
}

func TestAdjustRejectLeavesStockUntouched(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	seedProduct(t, repo, "prd-a", 2)
	ledger := inventory.NewLedger(repo, inventory.OutReject)

	_, err := ledger.Adjust(ctx, inventory.Adjustment{ProductID: "prd-a", Kind: domain.MovementOut, Quantity: 5, Reason: "damaged"})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	product, err := repo.GetProduct(ctx, "prd-a")
	require.NoError(t, err)
	assert.Equal(t, 2, product.Stock)

	movements, err := repo.ListMovements(ctx, "prd-a", 10)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestAdjustUnknownProduct(t *testing.T) {
	ledger := inventory.NewLedger(memory.New(), inventory.OutClamp)
	_, err := ledger.Adjust(context.Background(), inventory.Adjustment{ProductID: "missing", Kind: domain.MovementIn, Quantity: 1, Reason: "restock"})
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestAdjustValidatesInput(t *testing.T) {
	ledger := inventory.NewLedger(memory.New(), inventory.OutClamp)

	_, err := ledger.Adjust(context.Background(), inventory.Adjustment{ProductID: "prd-a", Kind: domain.MovementIn, Quantity: 0})
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = ledger.Adjust(context.Background(), inventory.Adjustment{ProductID: "prd-a", Kind: "transfer", Quantity: 1})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "type")
}

func TestAdjustInTxRollsBackWithCaller(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	seedProduct(t, repo, "prd-a", 10)
	ledger := inventory.NewLedger(repo, inventory.OutClamp)
	boom := errors.New("later step failed")

	err := repo.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := ledger.AdjustInTx(ctx, tx, inventory.Adjustment{ProductID: "prd-a", Kind: domain.MovementOut, Quantity: 4, Reason: "sale"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	product, err := repo.GetProduct(ctx, "prd-a")
	require.NoError(t, err)
	assert.Equal(t, 10, product.Stock)
	movements, err := repo.ListMovements(ctx, "prd-a", 10)
	require.NoError(t, err)
	assert.Empty(t, movements)
}
