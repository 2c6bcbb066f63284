package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CoinPackage is a purchasable bundle of coins.
type CoinPackage struct {
	Coins int             `json:"coins"`
	Price decimal.Decimal `json:"price"`
}

// CoinPackages lists the bundles a buyer can purchase.
var CoinPackages = []CoinPackage{
	{Coins: 10, Price: decimal.NewFromInt(1)},
	{Coins: 150, Price: decimal.NewFromInt(10)},
	{Coins: 500, Price: decimal.NewFromInt(20)},
	{Coins: 1000, Price: decimal.NewFromInt(35)},
}

// PackageFor returns the package with exactly the given coin count.
func PackageFor(coins int) (CoinPackage, bool) {
	for _, p := range CoinPackages {
		if p.Coins == coins {
			return p, true
		}
	}
	return CoinPackage{}, false
}

// Payment records a completed coin purchase.
type Payment struct {
	ID          uuid.UUID       `json:"id"`
	BuyerID     uuid.UUID       `json:"buyer_id"`
	Coins       int             `json:"coins"`
	Price       decimal.Decimal `json:"amount"`
	Provider    string          `json:"provider"`
	ProviderRef string          `json:"provider_ref"`
	CreatedAt   time.Time       `json:"date"`
}
