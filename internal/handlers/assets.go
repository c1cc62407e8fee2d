package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "assetvision/internal/errors"
	"assetvision/internal/middleware"
	"assetvision/internal/models"
	"assetvision/internal/repository"
)

// AssetHandler handles asset catalog CRUD.
type AssetHandler struct {
	assetRepo *repository.AssetRepository
	log       zerolog.Logger
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assetRepo *repository.AssetRepository, log zerolog.Logger) *AssetHandler {
	return &AssetHandler{
		assetRepo: assetRepo,
		log:       log.With().Str("handler", "assets").Logger(),
	}
}

// createAssetRequest is the asset creation payload.
type createAssetRequest struct {
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name"`
	LastPrice  decimal.Decimal `json:"last_price"`
	Currency   string          `json:"currency"`
	AssetClass *string         `json:"asset_class,omitempty"`
	GeoZone    *string         `json:"geo_zone,omitempty"`
	Industry   *string         `json:"industry,omitempty"`
}

// Create adds an asset to the catalog.
func (h *AssetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		writeError(w, h.log, apperrors.ValidationField("symbol", "symbol is required"))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, h.log, apperrors.ValidationField("name", "name is required"))
		return
	}
	if req.LastPrice.IsNegative() {
		writeError(w, h.log, apperrors.ValidationField("last_price", "last_price cannot be negative"))
		return
	}
	if len(req.Currency) != 3 {
		writeError(w, h.log, apperrors.ValidationField("currency", "currency must be a 3-letter code"))
		return
	}

	caller := middleware.GetUser(r)
	asset := &models.Asset{
		Symbol:        req.Symbol,
		Name:          strings.TrimSpace(req.Name),
		LastPrice:     req.LastPrice,
		Currency:      strings.ToUpper(req.Currency),
		AssetClass:    req.AssetClass,
		GeoZone:       req.GeoZone,
		Industry:      req.Industry,
		CreatedBy:     caller.Username,
		LastUpdatedBy: caller.Username,
	}
	if _, err := h.assetRepo.Create(asset); err != nil {
		writeError(w, h.log, err)
		return
	}

	h.log.Info().Str("symbol", asset.Symbol).Msg("asset created")
	writeJSON(w, http.StatusCreated, asset)
}

// Get returns one asset by symbol.
func (h *AssetHandler) Get(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	asset, err := h.assetRepo.GetBySymbol(symbol)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if asset == nil {
		writeError(w, h.log, apperrors.NotFoundf("asset %s not found", symbol))
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// List returns all assets.
func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	assets, err := h.assetRepo.GetAll()
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

// Update applies a partial update to an asset.
func (h *AssetHandler) Update(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	var patch models.AssetPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, h.log, err)
		return
	}
	if patch.Empty() {
		writeError(w, h.log, apperrors.Validation("no fields to update"))
		return
	}
	if patch.LastPrice != nil && patch.LastPrice.IsNegative() {
		writeError(w, h.log, apperrors.ValidationField("last_price", "last_price cannot be negative"))
		return
	}

	caller := middleware.GetUser(r)
	asset, err := h.assetRepo.Update(symbol, &patch, caller.Username)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	h.log.Info().Str("symbol", symbol).Msg("asset updated")
	writeJSON(w, http.StatusOK, asset)
}

// Delete removes an asset from the catalog.
func (h *AssetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	if err := h.assetRepo.Delete(symbol); err != nil {
		writeError(w, h.log, err)
		return
	}

	h.log.Info().Str("symbol", symbol).Msg("asset deleted")
	writeJSON(w, http.StatusOK, map[string]string{"deleted": symbol})
}
