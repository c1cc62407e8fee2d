// Package ledger applies buy and sell trade events to portfolio holdings.
//
// A buy blends the trade into the holding's weighted-average cost basis; a
// sell clamps to the held quantity and accumulates realized P&L without
// re-basing the remainder's cost. Each trade is persisted as a single
// conditional update against one (portfolio, symbol) row, retried under
// optimistic concurrency so concurrent trades on the same holding cannot
// lose an update.
package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "assetvision/internal/errors"
	"assetvision/internal/models"
)

// maxAttempts bounds the compare-and-swap retry loop.
const maxAttempts = 5

// Trade sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// PortfolioStore is the persistence surface the ledger needs: portfolio
// resolution plus single-holding reads and conditional writes.
// A nil record without error means not found.
type PortfolioStore interface {
	GetByOwnerAndName(owner, name string) (*models.Portfolio, error)
	GetHolding(portfolioID int64, symbol string) (*models.Holding, error)
	InsertHolding(portfolioID int64, h *models.Holding) error
	UpdateHolding(portfolioID int64, symbol string, version int64, quantity, costPrice decimal.Decimal, realizedPnL *decimal.Decimal) (bool, error)
}

// AssetSource resolves assets by symbol.
type AssetSource interface {
	GetBySymbol(symbol string) (*models.Asset, error)
}

// Ledger applies trade events to portfolios.
type Ledger struct {
	portfolios PortfolioStore
	assets     AssetSource
}

// New creates a new position ledger.
func New(portfolios PortfolioStore, assets AssetSource) *Ledger {
	return &Ledger{
		portfolios: portfolios,
		assets:     assets,
	}
}

// TradeResult reports the outcome of one applied trade.
//
// For sells, ExecutedQuantity may be smaller than RequestedQuantity: sells
// clamp to the held quantity rather than going negative, and both figures
// are reported so the clamp is visible to the caller. Held is false when a
// sell targeted a symbol the portfolio does not hold; that is an
// informational no-op, not an error.
type TradeResult struct {
	TradeID           string           `json:"trade_id"`
	Portfolio         string           `json:"portfolio"`
	Owner             string           `json:"owner"`
	Symbol            string           `json:"symbol"`
	Side              string           `json:"side"`
	RequestedQuantity decimal.Decimal  `json:"requested_quantity"`
	ExecutedQuantity  decimal.Decimal  `json:"executed_quantity"`
	Quantity          decimal.Decimal  `json:"quantity"`
	CostPrice         decimal.Decimal  `json:"cost_price"`
	RealizedPnL       *decimal.Decimal `json:"realized_pnl,omitempty"`
	Held              bool             `json:"held"`
	Message           string           `json:"message,omitempty"`
}

// Buy applies a buy of quantity units at price to the named portfolio.
//
// A first buy of a symbol appends a new holding with cost_price = price; the
// symbol must exist in the asset catalog. A buy into an existing holding
// blends the weighted-average cost basis:
//
//	c1 = (c0*q0 + price*quantity) / (q0 + quantity)
//
// The blend is undefined when the resulting quantity is zero (a buy exactly
// offsetting a negative position); that case is rejected with an Undefined
// error rather than divided through.
func (l *Ledger) Buy(owner, name, symbol string, quantity, price decimal.Decimal) (*TradeResult, error) {
	p, err := l.portfolios.GetByOwnerAndName(owner, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperrors.NotFoundf("portfolio %s not found for %s", name, owner)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		h, err := l.portfolios.GetHolding(p.ID, symbol)
		if err != nil {
			return nil, err
		}

		if h == nil {
			asset, err := l.assets.GetBySymbol(symbol)
			if err != nil {
				return nil, err
			}
			if asset == nil {
				return nil, apperrors.NotFoundf("asset %s not found", symbol)
			}

			holding := &models.Holding{
				AssetSymbol: symbol,
				Quantity:    quantity,
				CostPrice:   price,
			}
			if err := l.portfolios.InsertHolding(p.ID, holding); err != nil {
				if apperrors.IsConflict(err) {
					// Lost the insert race; re-read and blend.
					continue
				}
				return nil, err
			}
			return l.result(p, symbol, SideBuy, quantity, quantity, holding), nil
		}

		newQuantity := h.Quantity.Add(quantity)
		if newQuantity.IsZero() {
			return nil, apperrors.Undefined(fmt.Sprintf(
				"buy of %s %s leaves a zero position; weighted-average cost is undefined", quantity, symbol))
		}
		newCost := h.CostPrice.Mul(h.Quantity).Add(price.Mul(quantity)).Div(newQuantity)

		ok, err := l.portfolios.UpdateHolding(p.ID, symbol, h.Version, newQuantity, newCost, h.RealizedPnL)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Version moved under us; retry with fresh state.
			continue
		}

		updated := &models.Holding{
			AssetSymbol: symbol,
			Quantity:    newQuantity,
			CostPrice:   newCost,
			RealizedPnL: h.RealizedPnL,
		}
		return l.result(p, symbol, SideBuy, quantity, quantity, updated), nil
	}

	return nil, apperrors.Conflict(fmt.Sprintf("buy of %s did not settle after %d attempts", symbol, maxAttempts))
}

// Sell applies a sell of quantity units at price to the named portfolio.
//
// The executed quantity is clamped to the held quantity; an over-sell never
// drives the position negative, and the excess is dropped. Realized P&L
// accumulates as (price - cost_price) * |executed|; the remaining position's
// cost basis is left untouched. Selling a symbol the portfolio does not hold
// is a no-op result, not an error.
func (l *Ledger) Sell(owner, name, symbol string, quantity, price decimal.Decimal) (*TradeResult, error) {
	p, err := l.portfolios.GetByOwnerAndName(owner, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperrors.NotFoundf("portfolio %s not found for %s", name, owner)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		h, err := l.portfolios.GetHolding(p.ID, symbol)
		if err != nil {
			return nil, err
		}

		if h == nil {
			return &TradeResult{
				TradeID:           uuid.New().String(),
				Portfolio:         p.Name,
				Owner:             p.Owner,
				Symbol:            symbol,
				Side:              SideSell,
				RequestedQuantity: quantity,
				ExecutedQuantity:  decimal.Zero,
				Held:              false,
				Message:           fmt.Sprintf("asset %s is not held in portfolio %s", symbol, p.Name),
			}, nil
		}

		executed := decimal.Min(quantity, h.Quantity)
		remaining := h.Quantity.Sub(executed)

		pnl := decimal.Zero
		if h.RealizedPnL != nil {
			pnl = *h.RealizedPnL
		}
		pnl = pnl.Add(price.Sub(h.CostPrice).Mul(executed.Abs()))

		ok, err := l.portfolios.UpdateHolding(p.ID, symbol, h.Version, remaining, h.CostPrice, &pnl)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		updated := &models.Holding{
			AssetSymbol: symbol,
			Quantity:    remaining,
			CostPrice:   h.CostPrice,
			RealizedPnL: &pnl,
		}
		result := l.result(p, symbol, SideSell, quantity, executed, updated)
		if executed.LessThan(quantity) {
			result.Message = fmt.Sprintf("sell clamped to held quantity %s", executed)
		}
		return result, nil
	}

	return nil, apperrors.Conflict(fmt.Sprintf("sell of %s did not settle after %d attempts", symbol, maxAttempts))
}

// result assembles a TradeResult for a settled trade.
func (l *Ledger) result(p *models.Portfolio, symbol, side string, requested, executed decimal.Decimal, h *models.Holding) *TradeResult {
	return &TradeResult{
		TradeID:           uuid.New().String(),
		Portfolio:         p.Name,
		Owner:             p.Owner,
		Symbol:            symbol,
		Side:              side,
		RequestedQuantity: requested,
		ExecutedQuantity:  executed,
		Quantity:          h.Quantity,
		CostPrice:         h.CostPrice,
		RealizedPnL:       h.RealizedPnL,
		Held:              true,
	}
}
