// Package models contains the domain models for the AssetVision API.
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// User represents a registered account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	Email        string    `json:"email,omitempty"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasRole returns true if the user carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Session represents an issued bearer token.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Asset represents a tradable instrument. LastPrice is quoted in Currency.
type Asset struct {
	ID            int64           `json:"-"`
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	LastPrice     decimal.Decimal `json:"last_price"`
	Currency      string          `json:"currency,omitempty"`
	AssetClass    *string         `json:"asset_class,omitempty"`
	GeoZone       *string         `json:"geo_zone,omitempty"`
	Industry      *string         `json:"industry,omitempty"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	LastUpdatedBy string          `json:"last_updated_by,omitempty"`
	LastUpdatedAt time.Time       `json:"last_updated_at"`
}

// ExchangeRate represents a directed FX conversion factor. LastRate is quoted
// as target units per one base unit, and its symbol is the concatenation of
// the two 3-letter currency codes (e.g. "USDEUR").
type ExchangeRate struct {
	ID             int64           `json:"-"`
	Symbol         string          `json:"symbol"`
	BaseCurrency   string          `json:"base_currency"`
	TargetCurrency string          `json:"target_currency"`
	LastRate       decimal.Decimal `json:"last_rate"`
	CreatedBy      string          `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	LastUpdatedBy  string          `json:"last_updated_by,omitempty"`
	LastUpdatedAt  time.Time       `json:"last_updated_at"`
}

// InverseSymbol returns the symbol of the paired inverse rate.
func (r *ExchangeRate) InverseSymbol() string {
	return r.TargetCurrency + r.BaseCurrency
}

// PairSymbol builds an FX pair symbol from two currency codes.
func PairSymbol(base, target string) string {
	return strings.ToUpper(base) + strings.ToUpper(target)
}

// SplitPairSymbol splits a 6-letter FX pair symbol into base and target
// currency codes. Returns false if the symbol is malformed.
func SplitPairSymbol(symbol string) (base, target string, ok bool) {
	if len(symbol) != 6 {
		return "", "", false
	}
	return symbol[:3], symbol[3:], true
}

// Holding represents one position inside a portfolio: a quantity of a single
// asset and its weighted-average acquisition price. RealizedPnL is present
// only once a sale has occurred.
type Holding struct {
	ID          int64            `json:"-"`
	PortfolioID int64            `json:"-"`
	AssetSymbol string           `json:"asset_symbol"`
	Quantity    decimal.Decimal  `json:"quantity"`
	CostPrice   decimal.Decimal  `json:"cost_price"`
	RealizedPnL *decimal.Decimal `json:"realized_pnl,omitempty"`
	Version     int64            `json:"-"`
}

// Portfolio represents a named collection of holdings owned by one user.
// All derived metrics are reported in PortfolioCurrency.
type Portfolio struct {
	ID                int64      `json:"-"`
	Owner             string     `json:"owner"`
	Name              string     `json:"name"`
	PortfolioCurrency string     `json:"portfolio_currency"`
	Holdings          []*Holding `json:"holdings"`
	CreatedAt         time.Time  `json:"created_at"`
	LastUpdatedAt     time.Time  `json:"last_updated_at"`
}

// AssetPatch enumerates the mutable asset fields for partial updates.
// Unknown payload fields are rejected at decode time.
type AssetPatch struct {
	Name       *string          `json:"name,omitempty"`
	LastPrice  *decimal.Decimal `json:"last_price,omitempty"`
	Currency   *string          `json:"currency,omitempty"`
	AssetClass *string          `json:"asset_class,omitempty"`
	GeoZone    *string          `json:"geo_zone,omitempty"`
	Industry   *string          `json:"industry,omitempty"`
}

// Empty returns true if the patch sets no fields.
func (p *AssetPatch) Empty() bool {
	return p.Name == nil && p.LastPrice == nil && p.Currency == nil &&
		p.AssetClass == nil && p.GeoZone == nil && p.Industry == nil
}

// RatePatch enumerates the mutable exchange-rate fields for partial updates.
type RatePatch struct {
	LastRate *decimal.Decimal `json:"last_rate,omitempty"`
}

// Empty returns true if the patch sets no fields.
func (p *RatePatch) Empty() bool {
	return p.LastRate == nil
}

// UserPatch enumerates the mutable user fields for partial updates.
type UserPatch struct {
	Email    *string   `json:"email,omitempty"`
	Password *string   `json:"password,omitempty"`
	Roles    *[]string `json:"roles,omitempty"`
}

// Empty returns true if the patch sets no fields.
func (p *UserPatch) Empty() bool {
	return p.Email == nil && p.Password == nil && p.Roles == nil
}
