package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/modestmuse/museshop/internal/model"
)

const productColumns = `id, name, slug, description, price, compare_at_price, category,
	image, is_published, variants, ratings_average, ratings_count, created_at`

func scanProduct(row orderScanner) (*model.Product, error) {
	var (
		p        model.Product
		variants []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.CompareAtPrice,
		&p.Category, &p.Image, &p.Published, &variants, &p.RatingsAverage, &p.RatingsCount,
		&p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(variants, &p.Variants); err != nil {
		return nil, fmt.Errorf("unmarshal variants: %w", err)
	}
	return &p, nil
}

// SearchProducts runs a relevance-ranked full-text search over published
// products only.
func (r *PostgresRepository) SearchProducts(ctx context.Context, query string, limit int) ([]model.Product, error) {
	if limit < 1 {
		limit = 4
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE is_published AND search @@ websearch_to_tsquery('english', $1)
		 ORDER BY ts_rank(search, websearch_to_tsquery('english', $1)) DESC
		 LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// GetProductByID returns a single product.
func (r *PostgresRepository) GetProductByID(ctx context.Context, id string) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// recalcRatings recomputes the product aggregates from the current review
// set, inside the caller's transaction. The aggregates therefore always
// equal the count and mean of the reviews that exist.
func recalcRatings(ctx context.Context, tx pgx.Tx, productID string) error {
	_, err := tx.Exec(ctx,
		`UPDATE products SET
			ratings_average = COALESCE((SELECT ROUND(AVG(rating)::numeric, 2) FROM reviews WHERE product_id = $1), 0),
			ratings_count = (SELECT COUNT(*) FROM reviews WHERE product_id = $1)
		 WHERE id = $1`,
		productID,
	)
	if err != nil {
		return fmt.Errorf("recalculate ratings: %w", err)
	}
	return nil
}

// CreateReview inserts a review and updates the product aggregates in the
// same transaction.
func (r *PostgresRepository) CreateReview(ctx context.Context, rev *model.Review) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx,
			`INSERT INTO reviews (id, product_id, user_id, rating, title, body)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING created_at`,
			rev.ID, rev.ProductID, rev.UserID, rev.Rating, rev.Title, rev.Body,
		).Scan(&rev.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				switch pgErr.Code {
				case pgerrcode.UniqueViolation:
					return ErrDuplicateReview
				case pgerrcode.ForeignKeyViolation:
					return ErrProductNotFound
				}
			}
			return fmt.Errorf("insert review: %w", err)
		}

		if err := recalcRatings(ctx, tx, rev.ProductID); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
}

// GetReviewByID returns a single review.
func (r *PostgresRepository) GetReviewByID(ctx context.Context, id string) (*model.Review, error) {
	var rev model.Review
	err := r.pool.QueryRow(ctx,
		`SELECT id, product_id, user_id, rating, title, body, created_at
		 FROM reviews WHERE id = $1`, id,
	).Scan(&rev.ID, &rev.ProductID, &rev.UserID, &rev.Rating, &rev.Title, &rev.Body, &rev.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return &rev, nil
}

// DeleteReview removes a review and updates the product aggregates in the
// same transaction.
func (r *PostgresRepository) DeleteReview(ctx context.Context, id string) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var productID string
		err = tx.QueryRow(ctx,
			`DELETE FROM reviews WHERE id = $1 RETURNING product_id`, id,
		).Scan(&productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrReviewNotFound
			}
			return fmt.Errorf("delete review: %w", err)
		}

		if err := recalcRatings(ctx, tx, productID); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
}

// AdjustVariantStock changes the stock of one variant by delta. Stock is
// managed manually by admins; order placement never touches it. The row is
// locked so concurrent adjustments of the same product serialize.
func (r *PostgresRepository) AdjustVariantStock(ctx context.Context, productID, sku string, delta int) (*model.Product, error) {
	var updated *model.Product

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var variants []byte
		err = tx.QueryRow(ctx,
			`SELECT variants FROM products WHERE id = $1 FOR UPDATE`, productID,
		).Scan(&variants)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProductNotFound
			}
			return fmt.Errorf("lock product: %w", err)
		}

		var vs []model.Variant
		if err := json.Unmarshal(variants, &vs); err != nil {
			return fmt.Errorf("unmarshal variants: %w", err)
		}

		found := false
		for i := range vs {
			if vs[i].SKU != sku {
				continue
			}
			next := vs[i].Stock + delta
			if next < 0 {
				next = 0
			}
			vs[i].Stock = next
			found = true
			break
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrVariantNotFound, sku)
		}

		payload, err := json.Marshal(vs)
		if err != nil {
			return fmt.Errorf("marshal variants: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE products SET variants = $2 WHERE id = $1`, productID, payload); err != nil {
			return fmt.Errorf("update variants: %w", err)
		}

		row := tx.QueryRow(ctx,
			`SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
		updated, err = scanProduct(row)
		if err != nil {
			return fmt.Errorf("reload product: %w", err)
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}
