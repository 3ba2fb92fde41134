package inventory

import (
	"context"
	"fmt"
	"sort"
)

// Ledger owns the stock and sold counters of products. Reserve and Release
// are single conditional writes so concurrent callers cannot oversell.
type Ledger interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	UpsertProduct(ctx context.Context, p Product) (Product, error)
	Reserve(ctx context.Context, productID string, quantity int) error
	Release(ctx context.Context, productID string, quantity int) error
	Restock(ctx context.Context, productID string, quantity int) (Product, error)
}

// ReserveAll reserves every line in product order and stops at the first
// failure. The caller's transaction must roll back on error.
func ReserveAll(ctx context.Context, l Ledger, lines []Line) error {
	for _, line := range normalize(lines) {
		if err := l.Reserve(ctx, line.ProductID, line.Quantity); err != nil {
			return fmt.Errorf("reserve %s: %w", line.ProductID, err)
		}
	}
	return nil
}

// ReleaseAll returns the stock of every line, in product order.
func ReleaseAll(ctx context.Context, l Ledger, lines []Line) error {
	for _, line := range normalize(lines) {
		if err := l.Release(ctx, line.ProductID, line.Quantity); err != nil {
			return fmt.Errorf("release %s: %w", line.ProductID, err)
		}
	}
	return nil
}

// normalize folds duplicate products together and sorts by product id so
// concurrent transactions lock product rows in the same order.
func normalize(lines []Line) []Line {
	byProduct := make(map[string]int, len(lines))
	order := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, seen := byProduct[l.ProductID]; !seen {
			order = append(order, l.ProductID)
		}
		byProduct[l.ProductID] += l.Quantity
	}
	sort.Strings(order)

	out := make([]Line, 0, len(order))
	for _, id := range order {
		out = append(out, Line{ProductID: id, Quantity: byProduct[id]})
	}
	return out
}
