package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/taskflow/backend/internal/models"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

func (r *PaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *models.Payment) error {
	return tx.QueryRow(ctx, `
		INSERT INTO payments (id, buyer_id, coins, price, provider, provider_ref)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		RETURNING created_at
	`, p.ID, p.BuyerID, p.Coins, p.Price.StringFixed(2), p.Provider, p.ProviderRef).Scan(&p.CreatedAt)
}

func (r *PaymentRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, buyer_id, coins, price::text, provider, provider_ref, created_at
		FROM payments WHERE buyer_id = $1 ORDER BY created_at DESC
	`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Payment
	for rows.Next() {
		var p models.Payment
		var price string
		if err := rows.Scan(&p.ID, &p.BuyerID, &p.Coins, &price, &p.Provider, &p.ProviderRef, &p.CreatedAt); err != nil {
			return nil, err
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}
