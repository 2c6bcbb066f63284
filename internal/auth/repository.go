package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskflow/backend/internal/models"
	"github.com/taskflow/backend/internal/repository"
)

// Store is what registration and login need from persistence.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateUser(ctx context.Context, tx pgx.Tx, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type Repository struct {
	pool  *pgxpool.Pool
	users *repository.UserRepo
}

func NewRepository(pool *pgxpool.Pool, users *repository.UserRepo) *Repository {
	return &Repository{pool: pool, users: users}
}

var _ Store = (*Repository)(nil)

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) CreateUser(ctx context.Context, tx pgx.Tx, u *models.User) error {
	return r.users.CreateTx(ctx, tx, u)
}

// GetByEmail returns pgx.ErrNoRows when no user has the email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.users.GetByEmail(ctx, email)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.users.GetByID(ctx, id)
}
