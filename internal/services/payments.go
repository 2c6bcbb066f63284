package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taskflow/backend/internal/ledger"
	"github.com/taskflow/backend/internal/models"
)

// PaymentProvider charges a buyer real money for a coin package.
type PaymentProvider interface {
	Name() string
	Charge(ctx context.Context, buyerID uuid.UUID, amount decimal.Decimal) (ref string, err error)
}

// StubProvider accepts every charge. There is no real processor behind it.
type StubProvider struct{}

func (StubProvider) Name() string { return "stripe" }

func (StubProvider) Charge(_ context.Context, _ uuid.UUID, _ decimal.Decimal) (string, error) {
	return "stub_" + uuid.NewString(), nil
}

// PaymentService sells coin packages to buyers.
type PaymentService struct {
	DB       TxBeginner
	Payments PaymentStore
	Ledger   ledger.Service
	Provider PaymentProvider
	Logger   *slog.Logger
}

func NewPaymentService(db TxBeginner, payments PaymentStore, l ledger.Service, provider PaymentProvider, logger *slog.Logger) *PaymentService {
	if provider == nil {
		provider = StubProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentService{DB: db, Payments: payments, Ledger: l, Provider: provider, Logger: logger}
}

// PurchaseCoins charges the provider for a known package, then records the
// payment and credits the buyer in one transaction.
func (s *PaymentService) PurchaseCoins(ctx context.Context, actor models.Actor, coins int) (*models.Payment, error) {
	if !actor.Is(models.RoleBuyer) {
		return nil, ErrUnauthorized
	}
	pkg, ok := models.PackageFor(coins)
	if !ok {
		return nil, invalidf("no coin package of %d coins", coins)
	}

	ref, err := s.Provider.Charge(ctx, actor.UserID, pkg.Price)
	if err != nil {
		return nil, fmt.Errorf("purchase coins: charge: %w", err)
	}

	p := &models.Payment{
		ID:          uuid.New(),
		BuyerID:     actor.UserID,
		Coins:       pkg.Coins,
		Price:       pkg.Price,
		Provider:    s.Provider.Name(),
		ProviderRef: ref,
	}
	if err := s.record(ctx, p); err != nil {
		// The charge went through; keep the reference for reconciliation.
		s.Logger.Error("payment charged but not recorded", "provider", p.Provider, "provider_ref", ref, "buyer_id", actor.UserID, "error", err)
		return nil, err
	}
	s.Logger.Info("coins purchased", "payment_id", p.ID, "buyer_id", actor.UserID, "coins", p.Coins, "price", p.Price.StringFixed(2))
	return p, nil
}

func (s *PaymentService) record(ctx context.Context, p *models.Payment) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("purchase coins: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.Payments.Create(ctx, tx, p); err != nil {
		return fmt.Errorf("purchase coins: insert: %w", err)
	}
	if _, err := s.Ledger.Credit(ctx, tx, p.BuyerID, p.Coins, models.CoinEntryCoinPurchase, ledger.Ref{PaymentID: &p.ID}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("purchase coins: commit: %w", err)
	}
	return nil
}

func (s *PaymentService) ListPayments(ctx context.Context, actor models.Actor) ([]*models.Payment, error) {
	if !actor.Is(models.RoleBuyer) {
		return nil, ErrUnauthorized
	}
	return s.Payments.ListByBuyer(ctx, actor.UserID)
}
