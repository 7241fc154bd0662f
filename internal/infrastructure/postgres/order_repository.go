package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/pharmaracks/stockledger/internal/domain/cart"
	"github.com/pharmaracks/stockledger/internal/domain/order"
)

const orderColumns = `id, number, user_id, status, subtotal_cents, tax_cents,
	delivery_fee_cents, total_cents, delivery_address, phone_number,
	payment_method, delivered_at, created_at, updated_at`

type orderRepo struct{ q pgx.Tx }

func (r *orderRepo) Create(ctx context.Context, o *order.Order) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID, o.Number, o.UserID, string(o.Status), o.SubtotalCents, o.TaxCents,
		o.DeliveryFeeCents, o.TotalCents, o.DeliveryAddress, o.PhoneNumber,
		o.PaymentMethod, o.DeliveredAt, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		_, err = r.q.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price_cents)
			VALUES ($1,$2,$3,$4)`,
			o.ID, it.ProductID, it.Quantity, it.PriceCents)
		if err != nil {
			return err
		}
	}
	for _, ch := range o.History {
		if err := r.appendHistory(ctx, o.ID, ch); err != nil {
			return err
		}
	}
	return nil
}

func (r *orderRepo) Get(ctx context.Context, id string) (*order.Order, error) {
	row := r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateStatus writes the mutable order fields and the new history row in
// the enclosing transaction; both land or neither does.
func (r *orderRepo) UpdateStatus(ctx context.Context, o *order.Order, change order.StatusChange) error {
	ct, err := r.q.Exec(ctx, `
		UPDATE orders SET status=$2, delivered_at=$3, updated_at=$4 WHERE id=$1`,
		o.ID, string(o.Status), o.DeliveredAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return r.appendHistory(ctx, o.ID, change)
}

func (r *orderRepo) List(ctx context.Context) ([]*order.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id`)
}

func (r *orderRepo) ListByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY id`, userID)
}

func (r *orderRepo) ListByStatus(ctx context.Context, status order.Status) ([]*order.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE status=$1 ORDER BY id`, string(status))
}

func (r *orderRepo) list(ctx context.Context, query string, args ...any) ([]*order.Order, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}
	for _, o := range out {
		if err := r.loadChildren(ctx, o); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *orderRepo) appendHistory(ctx context.Context, orderID string, ch order.StatusChange) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO order_status_history (order_id, status, notes, actor_id, at)
		VALUES ($1,$2,$3,$4,$5)`,
		orderID, string(ch.Status), ch.Notes, ch.ActorID, ch.At)
	return err
}

func (r *orderRepo) loadChildren(ctx context.Context, o *order.Order) error {
	rows, err := r.q.Query(ctx, `
		SELECT product_id, quantity, price_cents
		FROM order_items WHERE order_id=$1 ORDER BY product_id`, o.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var it order.Item
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.PriceCents); err != nil {
			rows.Close()
			return err
		}
		o.Items = append(o.Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.q.Query(ctx, `
		SELECT status, notes, actor_id, at
		FROM order_status_history WHERE order_id=$1 ORDER BY id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var ch order.StatusChange
		var status string
		if err := rows.Scan(&status, &ch.Notes, &ch.ActorID, &ch.At); err != nil {
			return err
		}
		ch.Status = order.Status(status)
		o.History = append(o.History, ch)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	var status string
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &status, &o.SubtotalCents, &o.TaxCents,
		&o.DeliveryFeeCents, &o.TotalCents, &o.DeliveryAddress, &o.PhoneNumber,
		&o.PaymentMethod, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	return &o, nil
}

func scanOrders(rows pgx.Rows) ([]*order.Order, error) {
	defer rows.Close()
	var out []*order.Order
	for rows.Next() {
		var o order.Order
		var status string
		if err := rows.Scan(&o.ID, &o.Number, &o.UserID, &status, &o.SubtotalCents, &o.TaxCents,
			&o.DeliveryFeeCents, &o.TotalCents, &o.DeliveryAddress, &o.PhoneNumber,
			&o.PaymentMethod, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Status = order.Status(status)
		out = append(out, &o)
	}
	return out, rows.Err()
}

type cartRepo struct{ q pgx.Tx }

func (r *cartRepo) GetByUser(ctx context.Context, userID string) (*cart.Cart, error) {
	var c cart.Cart
	err := r.q.QueryRow(ctx, `
		SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id=$1`,
		userID).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, `
		SELECT product_id, quantity, added_at, updated_at
		FROM cart_items WHERE cart_id=$1 ORDER BY product_id`, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it cart.Item
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.AddedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, it)
	}
	return &c, rows.Err()
}

// Save rewrites the whole aggregate: upsert the cart row, replace its items.
// On a user_id conflict the stored row keeps its original id, so the item
// rewrite must use the id RETURNING reports, not the caller's.
func (r *cartRepo) Save(ctx context.Context, c *cart.Cart) error {
	var cartID string
	err := r.q.QueryRow(ctx, `
		INSERT INTO carts (id, user_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id) DO UPDATE SET updated_at=EXCLUDED.updated_at
		RETURNING id`,
		c.ID, c.UserID, c.CreatedAt, c.UpdatedAt).Scan(&cartID)
	if err != nil {
		return err
	}
	c.ID = cartID
	if _, err := r.q.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID); err != nil {
		return err
	}
	for _, it := range c.Items {
		_, err = r.q.Exec(ctx, `
			INSERT INTO cart_items (cart_id, product_id, quantity, added_at, updated_at)
			VALUES ($1,$2,$3,$4,$5)`,
			cartID, it.ProductID, it.Quantity, it.AddedAt, it.UpdatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}
