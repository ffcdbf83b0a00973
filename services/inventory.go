package services

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Inventory adjusts product stock as orders ship.
type Inventory struct {
	stock StockStore
}

func NewInventory(stock StockStore) *Inventory {
	return &Inventory{stock: stock}
}

// Decrement removes qty units from the product's stock, stopping at zero.
// A product that no longer exists is skipped.
func (inv *Inventory) Decrement(ctx context.Context, productID primitive.ObjectID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, qty)
	}
	found, err := inv.stock.DecrementStock(ctx, productID, qty)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if !found {
		slog.WarnContext(ctx, "stock decrement skipped, product not found", "product", productID.Hex(), "quantity", qty)
	}
	return nil
}
