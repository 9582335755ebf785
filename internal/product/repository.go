package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const productColumns = `product_id, name, description, price, category, stock_quantity, image_url, featured, created_at, updated_at`

// Repository reads and writes catalog rows. Reads only ever return
// active products; deletion flips the status instead of removing the
// row.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE status = 'active'
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (r *Repository) CountActive(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM products WHERE status = 'active'
	`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}

	return total, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (Product, bool, error) {
	var p Product
	err := r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE product_id = $1 AND status = 'active'
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Stock, &p.ImageURL, &p.Featured, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, false, nil
		}
		return Product{}, false, fmt.Errorf("query product by id: %w", err)
	}

	return p, true, nil
}

func (r *Repository) Search(ctx context.Context, query string, limit, offset int) ([]Product, error) {
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE (name ILIKE $1 OR description ILIKE $1) AND status = 'active'
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (r *Repository) ByCategory(ctx context.Context, category string, limit, offset int) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE category = $1 AND status = 'active'
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, category, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query products by category: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// Categories lists the distinct categories that currently have active
// products, alphabetically.
func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT category
		FROM products
		WHERE status = 'active'
		ORDER BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]string, 0)
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	return categories, nil
}

func (r *Repository) Featured(ctx context.Context, limit int) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE featured = TRUE AND status = 'active'
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query featured products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (r *Repository) Create(ctx context.Context, input ProductInput) (Product, error) {
	now := time.Now().UTC()
	p := Product{
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Category:    input.Category,
		Stock:       input.Stock,
		ImageURL:    input.ImageURL,
		Featured:    input.Featured,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO products (name, description, price, category, stock_quantity, image_url, featured, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'active', $8, $8)
		RETURNING product_id
	`, p.Name, p.Description, p.Price, p.Category, p.Stock, p.ImageURL, p.Featured, now).Scan(&p.ID)
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}

	return p, nil
}

func (r *Repository) Update(ctx context.Context, id int64, input ProductInput) (Product, error) {
	var p Product
	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, category = $5, stock_quantity = $6, image_url = $7, featured = $8, updated_at = $9
		WHERE product_id = $1 AND status = 'active'
		RETURNING `+productColumns+`
	`, id, input.Name, input.Description, input.Price, input.Category, input.Stock, input.ImageURL, input.Featured, time.Now().UTC()).
		Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Stock, &p.ImageURL, &p.Featured, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, err
		}
		return Product{}, fmt.Errorf("update product: %w", err)
	}

	return p, nil
}

// Delete retires a product from the catalog. The row stays for order
// history; readers never see it again.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET status = 'inactive', updated_at = $2
		WHERE product_id = $1 AND status = 'active'
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func scanProducts(rows *sql.Rows) ([]Product, error) {
	products := make([]Product, 0)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Stock, &p.ImageURL, &p.Featured, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}
