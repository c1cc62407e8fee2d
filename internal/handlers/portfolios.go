package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "assetvision/internal/errors"
	"assetvision/internal/ledger"
	"assetvision/internal/metrics"
	"assetvision/internal/middleware"
	"assetvision/internal/models"
	"assetvision/internal/repository"
	"assetvision/internal/valuation"
)

// PortfolioHandler handles portfolio CRUD, valuation reads, and trades.
type PortfolioHandler struct {
	portfolioRepo *repository.PortfolioRepository
	assetRepo     *repository.AssetRepository
	engine        *valuation.Engine
	ledger        *ledger.Ledger
	log           zerolog.Logger
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(
	portfolioRepo *repository.PortfolioRepository,
	assetRepo *repository.AssetRepository,
	engine *valuation.Engine,
	l *ledger.Ledger,
	log zerolog.Logger,
) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioRepo: portfolioRepo,
		assetRepo:     assetRepo,
		engine:        engine,
		ledger:        l,
		log:           log.With().Str("handler", "portfolios").Logger(),
	}
}

// createPortfolioRequest is the portfolio creation payload. Shares and cost
// prices are parallel to asset_symbols; short arrays are padded with zeros.
type createPortfolioRequest struct {
	Name              string            `json:"name"`
	AssetSymbols      []string          `json:"asset_symbols"`
	Shares            []decimal.Decimal `json:"shares"`
	CostPrices        []decimal.Decimal `json:"cost_prices"`
	PortfolioCurrency string            `json:"portfolio_currency"`
}

// Create builds a portfolio for the caller from parallel holding arrays.
func (h *PortfolioHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPortfolioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, h.log, apperrors.ValidationField("name", "name is required"))
		return
	}
	if len(req.PortfolioCurrency) != 3 {
		writeError(w, h.log, apperrors.ValidationField("portfolio_currency", "portfolio_currency must be a 3-letter code"))
		return
	}
	if len(req.Shares) > len(req.AssetSymbols) || len(req.CostPrices) > len(req.AssetSymbols) {
		writeError(w, h.log, apperrors.Validation("shares and cost_prices cannot be longer than asset_symbols"))
		return
	}

	caller := middleware.GetUser(r)
	holdings := make([]*models.Holding, 0, len(req.AssetSymbols))
	for i, symbol := range req.AssetSymbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))

		asset, err := h.assetRepo.GetBySymbol(symbol)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		if asset == nil {
			writeError(w, h.log, apperrors.NotFoundf("asset %s not found", symbol))
			return
		}

		quantity := decimal.Zero
		if i < len(req.Shares) {
			quantity = req.Shares[i]
		}
		costPrice := decimal.Zero
		if i < len(req.CostPrices) {
			costPrice = req.CostPrices[i]
		}
		holdings = append(holdings, &models.Holding{
			AssetSymbol: symbol,
			Quantity:    quantity,
			CostPrice:   costPrice,
		})
	}

	p := &models.Portfolio{
		Owner:             caller.Username,
		Name:              req.Name,
		PortfolioCurrency: strings.ToUpper(req.PortfolioCurrency),
		Holdings:          holdings,
	}
	if _, err := h.portfolioRepo.Create(p); err != nil {
		writeError(w, h.log, err)
		return
	}

	h.log.Info().Str("owner", p.Owner).Str("name", p.Name).Int("holdings", len(holdings)).Msg("portfolio created")
	writeJSON(w, http.StatusCreated, p)
}

// Get returns one portfolio document.
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, name := h.target(r)

	p, err := h.portfolioRepo.GetByOwnerAndName(owner, name)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if p == nil {
		writeError(w, h.log, apperrors.NotFoundf("portfolio %s not found for %s", name, owner))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// List returns the caller's portfolios.
func (h *PortfolioHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetUser(r)

	portfolios, err := h.portfolioRepo.GetByOwner(caller.Username)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, portfolios)
}

// Delete removes one of the caller's portfolios.
func (h *PortfolioHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetUser(r)
	name := chi.URLParam(r, "name")

	if err := h.portfolioRepo.Delete(caller.Username, name); err != nil {
		writeError(w, h.log, err)
		return
	}

	h.log.Info().Str("owner", caller.Username).Str("name", name).Msg("portfolio deleted")
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

// Value returns the converted market value of a portfolio.
func (h *PortfolioHandler) Value(w http.ResponseWriter, r *http.Request) {
	owner, name := h.target(r)

	result, err := h.engine.Value(owner, name)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	metrics.ValuationsTotal.WithLabelValues("value").Inc()
	writeJSON(w, http.StatusOK, result)
}

// Cost returns the converted cost basis of a portfolio.
func (h *PortfolioHandler) Cost(w http.ResponseWriter, r *http.Request) {
	owner, name := h.target(r)

	result, err := h.engine.Cost(owner, name)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	metrics.ValuationsTotal.WithLabelValues("cost").Inc()
	writeJSON(w, http.StatusOK, result)
}

// TotalReturn returns the total return of a portfolio.
func (h *PortfolioHandler) TotalReturn(w http.ResponseWriter, r *http.Request) {
	owner, name := h.target(r)

	result, err := h.engine.TotalReturn(owner, name)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	metrics.ValuationsTotal.WithLabelValues("return").Inc()
	writeJSON(w, http.StatusOK, result)
}

// ReturnByClass returns the per-asset-class return breakdown.
func (h *PortfolioHandler) ReturnByClass(w http.ResponseWriter, r *http.Request) {
	h.returnBy(w, r, valuation.GroupByAssetClass)
}

// ReturnByZone returns the per-geo-zone return breakdown.
func (h *PortfolioHandler) ReturnByZone(w http.ResponseWriter, r *http.Request) {
	h.returnBy(w, r, valuation.GroupByGeoZone)
}

func (h *PortfolioHandler) returnBy(w http.ResponseWriter, r *http.Request, groupBy valuation.GroupBy) {
	owner, name := h.target(r)

	result, err := h.engine.ReturnBy(owner, name, groupBy)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	metrics.ValuationsTotal.WithLabelValues("return_by_" + string(groupBy)).Inc()
	writeJSON(w, http.StatusOK, result)
}

// Assets returns the unconverted per-holding projection of a portfolio.
func (h *PortfolioHandler) Assets(w http.ResponseWriter, r *http.Request) {
	owner, name := h.target(r)

	result, err := h.engine.Assets(owner, name)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	metrics.ValuationsTotal.WithLabelValues("assets").Inc()
	writeJSON(w, http.StatusOK, result)
}

// tradeRequest is the buy/sell payload.
type tradeRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (h *PortfolioHandler) decodeTrade(r *http.Request) (*tradeRequest, error) {
	var req tradeRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}

	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		return nil, apperrors.ValidationField("symbol", "symbol is required")
	}
	if !req.Quantity.IsPositive() {
		return nil, apperrors.ValidationField("quantity", "quantity must be positive")
	}
	if req.Price.IsNegative() {
		return nil, apperrors.ValidationField("price", "price cannot be negative")
	}
	return &req, nil
}

// Buy applies a buy trade to one of the caller's portfolios.
func (h *PortfolioHandler) Buy(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetUser(r)
	name := chi.URLParam(r, "name")

	req, err := h.decodeTrade(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	result, err := h.ledger.Buy(caller.Username, name, req.Symbol, req.Quantity, req.Price)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	metrics.TradesTotal.WithLabelValues(ledger.SideBuy).Inc()
	h.log.Info().
		Str("trade_id", result.TradeID).
		Str("portfolio", name).
		Str("symbol", req.Symbol).
		Str("quantity", req.Quantity.String()).
		Msg("buy settled")
	writeJSON(w, http.StatusOK, result)
}

// Sell applies a sell trade to one of the caller's portfolios.
func (h *PortfolioHandler) Sell(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetUser(r)
	name := chi.URLParam(r, "name")

	req, err := h.decodeTrade(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	result, err := h.ledger.Sell(caller.Username, name, req.Symbol, req.Quantity, req.Price)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	metrics.TradesTotal.WithLabelValues(ledger.SideSell).Inc()
	h.log.Info().
		Str("trade_id", result.TradeID).
		Str("portfolio", name).
		Str("symbol", req.Symbol).
		Str("executed", result.ExecutedQuantity.String()).
		Msg("sell settled")
	writeJSON(w, http.StatusOK, result)
}

// target resolves the (owner, name) pair for read endpoints: name from the
// URL, owner from the query string, defaulting to the caller.
func (h *PortfolioHandler) target(r *http.Request) (owner, name string) {
	name = chi.URLParam(r, "name")
	owner = r.URL.Query().Get("owner")
	if owner == "" {
		owner = middleware.GetUser(r).Username
	}
	return owner, name
}
