package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskflow/backend/internal/ledger"
	"github.com/taskflow/backend/internal/models"
	"github.com/taskflow/backend/internal/services"
)

var (
	// ErrDuplicateEmail is returned when registering with an email that already exists.
	ErrDuplicateEmail     = fmt.Errorf("%w: email already registered", services.ErrInvalidInput)
	ErrInvalidRole        = fmt.Errorf("%w: role must be worker or buyer", services.ErrInvalidInput)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", services.ErrUnauthenticated)
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", services.ErrUnauthenticated)
)

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	PhotoURL string
}

type Service interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	Me(ctx context.Context, userID uuid.UUID) (*models.User, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, string, error)
	EnsureAdmin(ctx context.Context, email, password string) error
}

type service struct {
	store  Store
	ledger ledger.Service
	tokens *TokenManager
	log    *slog.Logger
}

func NewService(store Store, l ledger.Service, tokens *TokenManager, log *slog.Logger) *service {
	if log == nil {
		log = slog.Default()
	}
	return &service{store: store, ledger: l, tokens: tokens, log: log}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

// Register creates a worker or buyer and credits the role's starting coins
// through the ledger in the same transaction.
func (s *service) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	if in.Role != models.RoleWorker && in.Role != models.RoleBuyer {
		return nil, "", ErrInvalidRole
	}
	u, err := s.create(ctx, in)
	if err != nil {
		return nil, "", err
	}
	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *service) create(ctx context.Context, in RegisterInput) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		Role:         in.Role,
		PhotoURL:     in.PhotoURL,
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("register: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.store.CreateUser(ctx, tx, u); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("register: insert: %w", err)
	}
	balance, err := s.ledger.Credit(ctx, tx, u.ID, models.StartingCoins(u.Role), models.CoinEntrySignupBonus, ledger.Ref{})
	if err != nil {
		return nil, fmt.Errorf("register: starting coins: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("register: commit: %w", err)
	}
	u.Coins = balance
	s.log.Info("user registered", "user_id", u.ID, "role", u.Role, "coins", balance)
	return u, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	u, err := s.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *service) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	u, err := s.store.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrUserNotFound
	}
	return u, err
}

func (s *service) ValidateToken(_ context.Context, token string) (uuid.UUID, string, error) {
	return s.tokens.Parse(token)
}

// EnsureAdmin creates the admin account on first start. An existing user
// with the email is left untouched.
func (s *service) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" {
		return nil
	}
	_, err := s.store.GetByEmail(ctx, strings.ToLower(email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	_, err = s.create(ctx, RegisterInput{Name: "Admin", Email: email, Password: password, Role: models.RoleAdmin})
	if errors.Is(err, ErrDuplicateEmail) {
		return nil
	}
	return err
}
