// Package valuation computes read-only financial metrics for portfolios:
// currency-converted market value, cost basis, total return, and return
// grouped by an asset attribute.
//
// All arithmetic uses shopspring/decimal, never float64 for money. The
// engine never mutates stored records; it operates on whatever snapshot the
// injected sources return at call time.
package valuation

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "assetvision/internal/errors"
	"assetvision/internal/models"
)

// PortfolioSource resolves portfolios by (owner, name).
// A nil result without error means not found.
type PortfolioSource interface {
	GetByOwnerAndName(owner, name string) (*models.Portfolio, error)
}

// AssetSource resolves assets by symbol.
type AssetSource interface {
	GetBySymbol(symbol string) (*models.Asset, error)
}

// RateSource resolves exchange rates by concatenated pair symbol.
type RateSource interface {
	GetBySymbol(symbol string) (*models.ExchangeRate, error)
}

// GroupBy selects the asset attribute used to partition grouped returns.
type GroupBy string

const (
	// GroupByAssetClass partitions by the asset_class attribute.
	GroupByAssetClass GroupBy = "asset_class"
	// GroupByGeoZone partitions by the geo_zone attribute.
	GroupByGeoZone GroupBy = "geo_zone"
)

// Engine computes portfolio valuations from injected record sources.
type Engine struct {
	portfolios PortfolioSource
	assets     AssetSource
	rates      RateSource
}

// NewEngine creates a new valuation engine.
func NewEngine(portfolios PortfolioSource, assets AssetSource, rates RateSource) *Engine {
	return &Engine{
		portfolios: portfolios,
		assets:     assets,
		rates:      rates,
	}
}

// ValueResult is the converted market value of a portfolio.
type ValueResult struct {
	Name     string          `json:"name"`
	Owner    string          `json:"owner"`
	Currency string          `json:"currency"`
	Value    decimal.Decimal `json:"value"`
}

// CostResult is the converted cost basis of a portfolio.
type CostResult struct {
	Name     string          `json:"name"`
	Owner    string          `json:"owner"`
	Currency string          `json:"currency"`
	Cost     decimal.Decimal `json:"cost"`
}

// ReturnResult is the total return of a portfolio alongside the value and
// cost it is derived from.
type ReturnResult struct {
	Name        string          `json:"name"`
	Owner       string          `json:"owner"`
	Currency    string          `json:"currency"`
	Value       decimal.Decimal `json:"value"`
	Cost        decimal.Decimal `json:"cost"`
	TotalReturn decimal.Decimal `json:"total_return"`
}

// GroupReturn is the metrics row for one group of a grouped return query.
// Group is nil for holdings whose asset has no value for the grouping
// attribute; TotalReturn is nil when the group's cost basis is zero.
type GroupReturn struct {
	Group       *string          `json:"group"`
	Value       decimal.Decimal  `json:"value"`
	Cost        decimal.Decimal  `json:"cost"`
	TotalReturn *decimal.Decimal `json:"total_return"`
}

// GroupedReturnResult is the outcome of a grouped return query. Groups are
// an unordered set; no cross-group ordering is guaranteed.
type GroupedReturnResult struct {
	Name     string        `json:"name"`
	Owner    string        `json:"owner"`
	Currency string        `json:"currency"`
	GroupBy  GroupBy       `json:"group_by"`
	Groups   []GroupReturn `json:"groups"`
}

// AssetLine is one row of the unconverted per-holding assets view.
type AssetLine struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	CostPrice decimal.Decimal `json:"cost_price"`
	LastPrice decimal.Decimal `json:"last_price"`
}

// AssetsResult is the display projection of a portfolio's holdings, without
// currency conversion.
type AssetsResult struct {
	Name   string      `json:"name"`
	Owner  string      `json:"owner"`
	Assets []AssetLine `json:"assets"`
}

// line is one holding joined with its asset and converted amounts.
type line struct {
	holding     *models.Holding
	asset       *models.Asset
	marketValue decimal.Decimal
	costValue   decimal.Decimal
}

// resolve runs the shared join: portfolio by (owner, name), each holding's
// asset by symbol, and the FX rate keyed by asset currency concatenated with
// the portfolio currency. Any missing record is a hard NotFound: a dangling
// reference is a defined failure, not a skip. An asset quoted in the
// portfolio currency still needs an explicit self-pair rate row (e.g.
// "EUREUR" at 1.0).
func (e *Engine) resolve(owner, name string) (*models.Portfolio, []line, error) {
	p, err := e.portfolios.GetByOwnerAndName(owner, name)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, apperrors.NotFoundf("portfolio %s not found for %s", name, owner)
	}

	lines := make([]line, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		asset, err := e.assets.GetBySymbol(h.AssetSymbol)
		if err != nil {
			return nil, nil, err
		}
		if asset == nil {
			return nil, nil, apperrors.NotFoundf("asset %s not found", h.AssetSymbol)
		}

		pairSymbol := asset.Currency + p.PortfolioCurrency
		rate, err := e.rates.GetBySymbol(pairSymbol)
		if err != nil {
			return nil, nil, err
		}
		if rate == nil {
			return nil, nil, apperrors.NotFoundf("rate %s not found", pairSymbol)
		}

		lines = append(lines, line{
			holding:     h,
			asset:       asset,
			marketValue: asset.LastPrice.Mul(rate.LastRate).Mul(h.Quantity),
			costValue:   h.CostPrice.Mul(rate.LastRate).Mul(h.Quantity),
		})
	}

	return p, lines, nil
}

// Value computes the converted market value of a portfolio.
func (e *Engine) Value(owner, name string) (*ValueResult, error) {
	p, lines, err := e.resolve(owner, name)
	if err != nil {
		return nil, err
	}

	value := decimal.Zero
	for _, l := range lines {
		value = value.Add(l.marketValue)
	}

	return &ValueResult{
		Name:     p.Name,
		Owner:    p.Owner,
		Currency: p.PortfolioCurrency,
		Value:    value,
	}, nil
}

// Cost computes the converted cost basis of a portfolio.
func (e *Engine) Cost(owner, name string) (*CostResult, error) {
	p, lines, err := e.resolve(owner, name)
	if err != nil {
		return nil, err
	}

	cost := decimal.Zero
	for _, l := range lines {
		cost = cost.Add(l.costValue)
	}

	return &CostResult{
		Name:     p.Name,
		Owner:    p.Owner,
		Currency: p.PortfolioCurrency,
		Cost:     cost,
	}, nil
}

// TotalReturn computes (value - cost) / cost over the whole portfolio.
// Returns an Undefined error when the cost basis sums to exactly zero.
func (e *Engine) TotalReturn(owner, name string) (*ReturnResult, error) {
	p, lines, err := e.resolve(owner, name)
	if err != nil {
		return nil, err
	}

	value := decimal.Zero
	cost := decimal.Zero
	for _, l := range lines {
		value = value.Add(l.marketValue)
		cost = cost.Add(l.costValue)
	}

	if cost.IsZero() {
		return nil, apperrors.Undefined(fmt.Sprintf("total return of %s is undefined: cost basis is zero", name))
	}

	return &ReturnResult{
		Name:        p.Name,
		Owner:       p.Owner,
		Currency:    p.PortfolioCurrency,
		Value:       value,
		Cost:        cost,
		TotalReturn: value.Sub(cost).Div(cost),
	}, nil
}

// ReturnBy computes per-group value, cost, and return partitioned by the
// chosen asset attribute. Holdings whose asset lacks the attribute form
// their own nil group. A group with zero cost basis reports a nil return
// instead of failing the whole query.
func (e *Engine) ReturnBy(owner, name string, groupBy GroupBy) (*GroupedReturnResult, error) {
	if groupBy != GroupByAssetClass && groupBy != GroupByGeoZone {
		return nil, apperrors.ValidationField("group_by", fmt.Sprintf("unsupported grouping attribute %q", groupBy))
	}

	p, lines, err := e.resolve(owner, name)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		group *string
		value decimal.Decimal
		cost  decimal.Decimal
	}

	// A missing attribute keys under ""; present values carry a "v:"
	// prefix so an empty-string attribute stays a separate group.
	buckets := make(map[string]*bucket)
	order := make([]string, 0)
	for _, l := range lines {
		var group *string
		switch groupBy {
		case GroupByAssetClass:
			group = l.asset.AssetClass
		case GroupByGeoZone:
			group = l.asset.GeoZone
		}

		key := ""
		if group != nil {
			key = "v:" + *group
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{group: group, value: decimal.Zero, cost: decimal.Zero}
			buckets[key] = b
			order = append(order, key)
		}
		b.value = b.value.Add(l.marketValue)
		b.cost = b.cost.Add(l.costValue)
	}

	groups := make([]GroupReturn, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		row := GroupReturn{
			Group: b.group,
			Value: b.value,
			Cost:  b.cost,
		}
		if !b.cost.IsZero() {
			ret := b.value.Sub(b.cost).Div(b.cost)
			row.TotalReturn = &ret
		}
		groups = append(groups, row)
	}

	return &GroupedReturnResult{
		Name:     p.Name,
		Owner:    p.Owner,
		Currency: p.PortfolioCurrency,
		GroupBy:  groupBy,
		Groups:   groups,
	}, nil
}

// Assets produces the unconverted per-holding projection of a portfolio.
// No FX rates are involved, so a portfolio with missing rate rows can still
// be inspected here.
func (e *Engine) Assets(owner, name string) (*AssetsResult, error) {
	p, err := e.portfolios.GetByOwnerAndName(owner, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperrors.NotFoundf("portfolio %s not found for %s", name, owner)
	}

	assets := make([]AssetLine, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		asset, err := e.assets.GetBySymbol(h.AssetSymbol)
		if err != nil {
			return nil, err
		}
		if asset == nil {
			return nil, apperrors.NotFoundf("asset %s not found", h.AssetSymbol)
		}
		assets = append(assets, AssetLine{
			Symbol:    asset.Symbol,
			Name:      asset.Name,
			Quantity:  h.Quantity,
			CostPrice: h.CostPrice,
			LastPrice: asset.LastPrice,
		})
	}

	return &AssetsResult{
		Name:   p.Name,
		Owner:  p.Owner,
		Assets: assets,
	}, nil
}
