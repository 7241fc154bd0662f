package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/pharmaracks/stockledger/internal/domain/product"
)

const productColumns = `id, name, brand, price_cents, on_hand, reserved,
	low_stock_threshold, expiry_date, active, created_at, updated_at`

type productRepo struct{ q pgx.Tx }

func (r *productRepo) Create(ctx context.Context, p *product.Product) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.Name, p.Brand, p.PriceCents, p.OnHand, p.Reserved,
		p.LowStockThreshold, p.ExpiryDate, p.Active, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *productRepo) Get(ctx context.Context, id string) (*product.Product, error) {
	row := r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	return scanProduct(row)
}

func (r *productRepo) GetForUpdate(ctx context.Context, id string) (*product.Product, error) {
	row := r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id)
	return scanProduct(row)
}

func (r *productRepo) Update(ctx context.Context, p *product.Product) error {
	ct, err := r.q.Exec(ctx, `
		UPDATE products
		SET name=$2, brand=$3, price_cents=$4, on_hand=$5, reserved=$6,
			low_stock_threshold=$7, expiry_date=$8, active=$9, updated_at=$10
		WHERE id=$1`,
		p.ID, p.Name, p.Brand, p.PriceCents, p.OnHand, p.Reserved,
		p.LowStockThreshold, p.ExpiryDate, p.Active, p.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (r *productRepo) List(ctx context.Context) ([]*product.Product, error) {
	rows, err := r.q.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanProducts(rows)
}

func (r *productRepo) ListActive(ctx context.Context) ([]*product.Product, error) {
	rows, err := r.q.Query(ctx, `SELECT `+productColumns+` FROM products WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanProducts(rows)
}

func scanProduct(row pgx.Row) (*product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.PriceCents, &p.OnHand, &p.Reserved,
		&p.LowStockThreshold, &p.ExpiryDate, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, product.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProducts(rows pgx.Rows) ([]*product.Product, error) {
	defer rows.Close()
	var out []*product.Product
	for rows.Next() {
		var p product.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.PriceCents, &p.OnHand, &p.Reserved,
			&p.LowStockThreshold, &p.ExpiryDate, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

type refillRepo struct{ q pgx.Tx }

// Upsert inserts only when the (user, product) pair is new; an existing
// suggestion keeps its original date.
func (r *refillRepo) Upsert(ctx context.Context, s *product.RefillSuggestion) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO refill_suggestions (user_id, product_id, suggested_date, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (user_id, product_id) DO NOTHING`,
		s.UserID, s.ProductID, s.SuggestedDate, s.Active, s.CreatedAt)
	return err
}

func (r *refillRepo) ListByUser(ctx context.Context, userID string) ([]*product.RefillSuggestion, error) {
	rows, err := r.q.Query(ctx, `
		SELECT user_id, product_id, suggested_date, active, created_at
		FROM refill_suggestions WHERE user_id=$1 ORDER BY product_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*product.RefillSuggestion
	for rows.Next() {
		var s product.RefillSuggestion
		if err := rows.Scan(&s.UserID, &s.ProductID, &s.SuggestedDate, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

type alertRepo struct{ q pgx.Tx }

func (r *alertRepo) Append(ctx context.Context, a *product.InventoryAlert) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO inventory_alerts (id, product_id, type, message, resolved, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		a.ID, a.ProductID, string(a.Type), a.Message, a.Resolved, a.CreatedAt)
	return err
}

func (r *alertRepo) ListUnresolved(ctx context.Context) ([]*product.InventoryAlert, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, product_id, type, message, resolved, created_at
		FROM inventory_alerts WHERE NOT resolved ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*product.InventoryAlert
	for rows.Next() {
		var a product.InventoryAlert
		var typ string
		if err := rows.Scan(&a.ID, &a.ProductID, &typ, &a.Message, &a.Resolved, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Type = product.AlertType(typ)
		out = append(out, &a)
	}
	return out, rows.Err()
}
