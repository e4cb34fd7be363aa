package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DataSource is the engine's read boundary to the surrounding inventory
// application: product/stock/price/lead-time lookups and demand history.
// The engine only ever reads through this interface.
type DataSource interface {
	// DemandHistory returns consumption records for a product since the
	// given time, oldest first.
	DemandHistory(ctx context.Context, productID int, since time.Time) ([]DemandSample, error)
	// CurrentStock returns the product's on-hand quantity.
	CurrentStock(ctx context.Context, productID int) (int, error)
	// UnitPrice returns the product's current unit price.
	UnitPrice(ctx context.Context, productID int) (decimal.Decimal, error)
	// SupplierLeadTime returns a supplier's lead time in days.
	SupplierLeadTime(ctx context.Context, supplierID int) (int, error)
	// Product returns one active product with its supplier lead time joined in.
	Product(ctx context.Context, productID int) (*Product, error)
	// ProductsInScope enumerates the active products an analysis scope covers.
	ProductsInScope(ctx context.Context, scope JobScope, targetID *int) ([]Product, error)
}

type pgDataSource struct {
	pool *pgxpool.Pool
}

func NewDataSource(pool *pgxpool.Pool) DataSource {
	return &pgDataSource{pool: pool}
}

func (d *pgDataSource) DemandHistory(ctx context.Context, productID int, since time.Time) ([]DemandSample, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT product_id, recorded_at, quantity
		FROM demand_history
		WHERE product_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at`,
		productID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("query demand history for product %d: %w", productID, err)
	}
	defer rows.Close()

	var samples []DemandSample
	for rows.Next() {
		var s DemandSample
		if err := rows.Scan(&s.ProductID, &s.RecordedAt, &s.Quantity); err != nil {
			return nil, fmt.Errorf("scan demand sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

func (d *pgDataSource) CurrentStock(ctx context.Context, productID int) (int, error) {
	var stock int
	if err := d.pool.QueryRow(ctx,
		"SELECT current_stock FROM products WHERE id = $1", productID,
	).Scan(&stock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		return 0, fmt.Errorf("read stock for product %d: %w", productID, err)
	}
	return stock, nil
}

func (d *pgDataSource) UnitPrice(ctx context.Context, productID int) (decimal.Decimal, error) {
	var price decimal.Decimal
	if err := d.pool.QueryRow(ctx,
		"SELECT unit_price FROM products WHERE id = $1", productID,
	).Scan(&price); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		return decimal.Zero, fmt.Errorf("read unit price for product %d: %w", productID, err)
	}
	return price, nil
}

func (d *pgDataSource) SupplierLeadTime(ctx context.Context, supplierID int) (int, error) {
	var days int
	if err := d.pool.QueryRow(ctx,
		"SELECT lead_time_days FROM suppliers WHERE id = $1", supplierID,
	).Scan(&days); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("supplier %d: %w", supplierID, ErrNotFound)
		}
		return 0, fmt.Errorf("read lead time for supplier %d: %w", supplierID, err)
	}
	return days, nil
}

const productColumns = `p.id, p.code, p.name, p.category_id, p.supplier_id,
       p.unit_price, p.current_stock, COALESCE(s.lead_time_days, 0)`

func (d *pgDataSource) Product(ctx context.Context, productID int) (*Product, error) {
	var p Product
	err := d.pool.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN suppliers s ON s.id = p.supplier_id
		WHERE p.id = $1 AND p.is_active`,
		productID,
	).Scan(&p.ID, &p.Code, &p.Name, &p.CategoryID, &p.SupplierID,
		&p.UnitPrice, &p.CurrentStock, &p.LeadTimeDays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		return nil, fmt.Errorf("read product %d: %w", productID, err)
	}
	return &p, nil
}

func (d *pgDataSource) ProductsInScope(ctx context.Context, scope JobScope, targetID *int) ([]Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN suppliers s ON s.id = p.supplier_id
		WHERE p.is_active`
	args := []any{}

	switch scope {
	case JobScopeAll:
	case JobScopeCategory:
		query += " AND p.category_id = $1"
		args = append(args, targetID)
	case JobScopeSupplier:
		query += " AND p.supplier_id = $1"
		args = append(args, targetID)
	case JobScopeProduct:
		query += " AND p.id = $1"
		args = append(args, targetID)
	default:
		return nil, fmt.Errorf("unknown analysis scope %q", scope)
	}
	query += " ORDER BY p.id"

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("enumerate products for scope %s: %w", scope, err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.CategoryID, &p.SupplierID,
			&p.UnitPrice, &p.CurrentStock, &p.LeadTimeDays); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
