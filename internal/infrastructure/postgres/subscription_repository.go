package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/pharmaracks/stockledger/internal/domain/subscription"
)

const subscriptionColumns = `id, user_id, product_id, quantity, frequency,
	next_delivery, active, reserved_stock, created_at, updated_at`

type subscriptionRepo struct{ q pgx.Tx }

func (r *subscriptionRepo) Create(ctx context.Context, s *subscription.Subscription) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		s.ID, s.UserID, s.ProductID, s.Quantity, string(s.Frequency),
		s.NextDelivery, s.Active, s.ReservedStock, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *subscriptionRepo) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	row := r.q.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id=$1`, id)
	return scanSubscription(row)
}

func (r *subscriptionRepo) Update(ctx context.Context, s *subscription.Subscription) error {
	ct, err := r.q.Exec(ctx, `
		UPDATE subscriptions
		SET quantity=$2, frequency=$3, next_delivery=$4, active=$5,
			reserved_stock=$6, updated_at=$7
		WHERE id=$1`,
		s.ID, s.Quantity, string(s.Frequency), s.NextDelivery, s.Active,
		s.ReservedStock, s.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) Delete(ctx context.Context, id string) error {
	ct, err := r.q.Exec(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, userID string) ([]*subscription.Subscription, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id=$1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return scanSubscriptions(rows)
}

func (r *subscriptionRepo) ListActiveByProduct(ctx context.Context, productID string) ([]*subscription.Subscription, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE product_id=$1 AND active ORDER BY id`, productID)
	if err != nil {
		return nil, err
	}
	return scanSubscriptions(rows)
}

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var s subscription.Subscription
	var freq string
	err := row.Scan(&s.ID, &s.UserID, &s.ProductID, &s.Quantity, &freq,
		&s.NextDelivery, &s.Active, &s.ReservedStock, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subscription.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Frequency = subscription.Frequency(freq)
	return &s, nil
}

func scanSubscriptions(rows pgx.Rows) ([]*subscription.Subscription, error) {
	defer rows.Close()
	var out []*subscription.Subscription
	for rows.Next() {
		var s subscription.Subscription
		var freq string
		if err := rows.Scan(&s.ID, &s.UserID, &s.ProductID, &s.Quantity, &freq,
			&s.NextDelivery, &s.Active, &s.ReservedStock, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Frequency = subscription.Frequency(freq)
		out = append(out, &s)
	}
	return out, rows.Err()
}
