package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/modestmuse/museshop/internal/model"
)

const orderColumns = `id, order_number, user_id, guest_email, items, shipping_address,
	payment_method, payment_result, items_price, shipping_price, tax_price, total_price,
	status, is_paid, paid_at, is_delivered, delivered_at, created_at`

// formatOrderNumber renders a sequence value as an external order number.
// Short values are zero-padded to five digits; longer values keep every
// digit, so numbers past 99999 never collide with earlier ones.
func formatOrderNumber(n int64) string {
	return fmt.Sprintf("MMS-%05d", n)
}

// CreateOrder persists a new order under the next sequential order number.
// The number comes from a dedicated sequence, so concurrent checkouts can
// never collide.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	var paymentResult []byte
	if o.PaymentResult != nil {
		paymentResult, err = json.Marshal(o.PaymentResult)
		if err != nil {
			return fmt.Errorf("marshal payment result: %w", err)
		}
	}

	var userID, guestEmail *string
	if o.UserID != "" {
		userID = &o.UserID
	}
	if o.GuestEmail != "" {
		guestEmail = &o.GuestEmail
	}

	var seq int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('order_numbers')`).Scan(&seq); err != nil {
		return fmt.Errorf("next order number: %w", err)
	}
	o.Number = formatOrderNumber(seq)

	err = r.pool.QueryRow(ctx,
		`INSERT INTO orders (id, order_number, user_id, guest_email, items, shipping_address,
			payment_method, payment_result, items_price, shipping_price, tax_price, total_price, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING created_at`,
		o.ID, o.Number, userID, guestEmail, items, address,
		string(o.PaymentMethod), paymentResult,
		o.ItemsPrice, o.ShippingPrice, o.TaxPrice, o.TotalPrice, string(o.Status),
	).Scan(&o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func prefixColumns(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

type orderScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row orderScanner) (*model.Order, error) {
	var (
		o             model.Order
		userID        *string
		guestEmail    *string
		items         []byte
		address       []byte
		paymentResult []byte
		method        string
		status        string
	)

	err := row.Scan(&o.ID, &o.Number, &userID, &guestEmail, &items, &address,
		&method, &paymentResult, &o.ItemsPrice, &o.ShippingPrice, &o.TaxPrice, &o.TotalPrice,
		&status, &o.IsPaid, &o.PaidAt, &o.IsDelivered, &o.DeliveredAt, &o.CreatedAt)
	if err != nil {
		return nil, err
	}

	if userID != nil {
		o.UserID = *userID
	}
	if guestEmail != nil {
		o.GuestEmail = *guestEmail
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if paymentResult != nil {
		var pr model.PaymentResult
		if err := json.Unmarshal(paymentResult, &pr); err != nil {
			return nil, fmt.Errorf("unmarshal payment result: %w", err)
		}
		o.PaymentResult = &pr
	}
	o.PaymentMethod = model.PaymentMethod(method)
	o.Status = model.OrderStatus(status)

	return &o, nil
}

// GetOrderByID returns a single order.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, id string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// GetOrderByNumber returns a single order by its external number.
func (r *PostgresRepository) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by number: %w", err)
	}
	return o, nil
}

// GetOrderForTracking returns the order with the given number together
// with the email it belongs to: the guest email, or the email of the
// linked account.
func (r *PostgresRepository) GetOrderForTracking(ctx context.Context, number string) (*model.Order, string, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+prefixColumns("o", orderColumns)+`, COALESCE(o.guest_email, u.email, '')
		 FROM orders o
		 LEFT JOIN users u ON u.id = o.user_id
		 WHERE o.order_number = $1`, number)

	var (
		o             model.Order
		userID        *string
		guestEmail    *string
		items         []byte
		address       []byte
		paymentResult []byte
		method        string
		status        string
		ownerEmail    string
	)

	err := row.Scan(&o.ID, &o.Number, &userID, &guestEmail, &items, &address,
		&method, &paymentResult, &o.ItemsPrice, &o.ShippingPrice, &o.TaxPrice, &o.TotalPrice,
		&status, &o.IsPaid, &o.PaidAt, &o.IsDelivered, &o.DeliveredAt, &o.CreatedAt,
		&ownerEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrOrderNotFound
		}
		return nil, "", fmt.Errorf("get order for tracking: %w", err)
	}

	if userID != nil {
		o.UserID = *userID
	}
	if guestEmail != nil {
		o.GuestEmail = *guestEmail
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, "", fmt.Errorf("unmarshal items: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, "", fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if paymentResult != nil {
		var pr model.PaymentResult
		if err := json.Unmarshal(paymentResult, &pr); err != nil {
			return nil, "", fmt.Errorf("unmarshal payment result: %w", err)
		}
		o.PaymentResult = &pr
	}
	o.PaymentMethod = model.PaymentMethod(method)
	o.Status = model.OrderStatus(status)

	return &o, ownerEmail, nil
}

// ListOrdersByUser returns a page of the user's orders, newest first, and
// the total count. The page and the count are fetched concurrently.
func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID string, page, limit int) ([]model.Order, int64, error) {
	return r.listOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1`,
		[]any{userID}, page, limit)
}

// ListOrders returns a page of all orders, optionally filtered by status.
func (r *PostgresRepository) ListOrders(ctx context.Context, status model.OrderStatus, page, limit int) ([]model.Order, int64, error) {
	if status == "" {
		return r.listOrders(ctx,
			`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			`SELECT COUNT(*) FROM orders`,
			nil, page, limit)
	}
	return r.listOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		`SELECT COUNT(*) FROM orders WHERE status = $1`,
		[]any{string(status)}, page, limit)
}

func (r *PostgresRepository) listOrders(ctx context.Context, pageQuery, countQuery string, args []any, page, limit int) ([]model.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	offset := (page - 1) * limit

	var (
		orders []model.Order
		total  int64
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := r.pool.Query(gctx, pageQuery, append(append([]any{}, args...), limit, offset)...)
		if err != nil {
			return fmt.Errorf("select orders: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return fmt.Errorf("scan order: %w", err)
			}
			orders = append(orders, *o)
		}
		return rows.Err()
	})

	g.Go(func() error {
		if err := r.pool.QueryRow(gctx, countQuery, args...).Scan(&total); err != nil {
			return fmt.Errorf("count orders: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// ConfirmOrderPayment marks the order paid with the given receipt and
// advances pending orders to processing. The update is conditional on the
// order being unpaid, which makes webhook redelivery a no-op: a repeat
// call with the receipt already stored succeeds without any effect, while
// a different receipt on a paid order is a conflict.
func (r *PostgresRepository) ConfirmOrderPayment(ctx context.Context, orderID string, receipt model.PaymentResult, paidAt time.Time) error {
	payload, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	return r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE orders
			 SET is_paid = TRUE,
				 paid_at = $2,
				 payment_result = $3,
				 status = CASE WHEN status = 'pending' THEN 'processing' ELSE status END
			 WHERE id = $1 AND is_paid = FALSE`,
			orderID, paidAt, payload,
		)
		if err != nil {
			return fmt.Errorf("confirm payment: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return nil
		}

		var storedReceiptID *string
		err = r.pool.QueryRow(ctx,
			`SELECT payment_result->>'id' FROM orders WHERE id = $1 AND is_paid = TRUE`,
			orderID,
		).Scan(&storedReceiptID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("check existing receipt: %w", err)
		}

		if storedReceiptID != nil && *storedReceiptID == receipt.ID {
			return nil
		}
		return ErrPaymentConflict
	})
}

// SetOrderStatus applies an administrative status change. The current row
// is locked so a concurrent payment confirmation cannot be overwritten by
// a stale update, and the move is validated against the transition table.
// Setting delivered also stamps the delivery pair.
func (r *PostgresRepository) SetOrderStatus(ctx context.Context, orderID string, next model.OrderStatus, now time.Time) (*model.Order, error) {
	var updated *model.Order

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var current string
		err = tx.QueryRow(ctx,
			`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID,
		).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if !model.OrderStatus(current).CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, next)
		}

		if next == model.OrderStatusDelivered {
			_, err = tx.Exec(ctx,
				`UPDATE orders SET status = $2, is_delivered = TRUE, delivered_at = $3 WHERE id = $1`,
				orderID, string(next), now)
		} else {
			_, err = tx.Exec(ctx,
				`UPDATE orders SET status = $2 WHERE id = $1`,
				orderID, string(next))
		}
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		row := tx.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
		updated, err = scanOrder(row)
		if err != nil {
			return fmt.Errorf("reload order: %w", err)
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}
