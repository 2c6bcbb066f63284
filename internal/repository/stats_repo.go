package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type AdminStats struct {
	TotalWorkers  int             `json:"total_workers"`
	TotalBuyers   int             `json:"total_buyers"`
	TotalTasks    int             `json:"total_tasks"`
	TotalCoins    int             `json:"total_coins"`
	TotalPayments decimal.Decimal `json:"total_payments"`
}

type WorkerStats struct {
	TotalSubmissions    int `json:"total_submissions"`
	PendingSubmissions  int `json:"pending_submissions"`
	ApprovedSubmissions int `json:"approved_submissions"`
	TotalEarnings       int `json:"total_earnings"`
}

type BuyerStats struct {
	TotalTasks     int `json:"total_tasks"`
	PendingReviews int `json:"pending_reviews"`
	TotalPayment   int `json:"total_payment"`
}

type PublicStats struct {
	TotalUsers     int `json:"total_users"`
	TotalTasks     int `json:"total_tasks"`
	CompletedTasks int `json:"completed_tasks"`
}

type StatsRepo struct {
	pool *pgxpool.Pool
}

func NewStatsRepo(pool *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{pool: pool}
}

func (r *StatsRepo) Admin(ctx context.Context) (*AdminStats, error) {
	var s AdminStats
	var payments string
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM users WHERE role = 'worker'),
			(SELECT count(*) FROM users WHERE role = 'buyer'),
			(SELECT count(*) FROM tasks),
			(SELECT COALESCE(SUM(coins), 0) FROM users),
			(SELECT COALESCE(SUM(cash_amount), 0)::text FROM withdrawals WHERE status = 'approved')
	`).Scan(&s.TotalWorkers, &s.TotalBuyers, &s.TotalTasks, &s.TotalCoins, &payments)
	if err != nil {
		return nil, err
	}
	if s.TotalPayments, err = decimal.NewFromString(payments); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StatsRepo) Worker(ctx context.Context, workerID uuid.UUID) (*WorkerStats, error) {
	var s WorkerStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'approved'),
			COALESCE(SUM(payable_amount) FILTER (WHERE status = 'approved'), 0)
		FROM submissions WHERE worker_id = $1
	`, workerID).Scan(&s.TotalSubmissions, &s.PendingSubmissions, &s.ApprovedSubmissions, &s.TotalEarnings)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StatsRepo) Buyer(ctx context.Context, buyerID uuid.UUID) (*BuyerStats, error) {
	var s BuyerStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM tasks WHERE buyer_id = $1),
			(SELECT count(*) FROM submissions WHERE buyer_id = $1 AND status = 'pending'),
			(SELECT COALESCE(SUM(payable_amount), 0) FROM submissions WHERE buyer_id = $1 AND status = 'approved')
	`, buyerID).Scan(&s.TotalTasks, &s.PendingReviews, &s.TotalPayment)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StatsRepo) Public(ctx context.Context) (*PublicStats, error) {
	var s PublicStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM users),
			(SELECT count(*) FROM tasks),
			(SELECT count(*) FROM submissions WHERE status = 'approved')
	`).Scan(&s.TotalUsers, &s.TotalTasks, &s.CompletedTasks)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
