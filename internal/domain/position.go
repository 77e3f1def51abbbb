// Package domain defines the core types, error taxonomy, and the store and
// cache interfaces of the liquidity-mining reward engine. Concrete
// implementations live in internal/store, internal/cache, internal/session,
// and internal/chain.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a liquidity position a user contributes to the incentivized
// pool. LiquidityValueUSD is refreshed by an external price/liquidity oracle;
// the engine treats it as read-only.
type Position struct {
	ID                string          `json:"positionId"`
	UserID            string          `json:"userId"`
	PoolAddress       string          `json:"poolAddress"`
	LiquidityValueUSD decimal.Decimal `json:"liquidityValueUsd"`
	PriceLower        decimal.Decimal `json:"priceLower"`
	PriceUpper        decimal.Decimal `json:"priceUpper"`
	InRange           bool            `json:"isInRange"`
	FullRange         bool            `json:"isFullRange"`
	Active            bool            `json:"isActive"`
	CreatedThroughApp bool            `json:"createdThroughApp"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// DaysActive returns the fractional number of days since the position was
// created, never negative.
func (p Position) DaysActive(now time.Time) float64 {
	d := now.Sub(p.CreatedAt).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}
