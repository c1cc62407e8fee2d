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

// RateHandler handles exchange-rate CRUD. Creates and updates always touch
// the forward and inverse rows together.
type RateHandler struct {
	rateRepo *repository.RateRepository
	log      zerolog.Logger
}

// NewRateHandler creates a new RateHandler.
func NewRateHandler(rateRepo *repository.RateRepository, log zerolog.Logger) *RateHandler {
	return &RateHandler{
		rateRepo: rateRepo,
		log:      log.With().Str("handler", "rates").Logger(),
	}
}

// createRateRequest is the rate creation payload. The symbol is the two
// concatenated 3-letter currency codes, e.g. "USDEUR".
type createRateRequest struct {
	Symbol   string          `json:"symbol"`
	LastRate decimal.Decimal `json:"last_rate"`
}

// ratePairResponse reports both rows of a written pair.
type ratePairResponse struct {
	Rate    *models.ExchangeRate `json:"rate"`
	Inverse *models.ExchangeRate `json:"inverse"`
}

// Create writes a rate and its derived inverse in one transaction.
func (h *RateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	base, target, ok := models.SplitPairSymbol(symbol)
	if !ok {
		writeError(w, h.log, apperrors.ValidationField("symbol", "symbol must be two concatenated 3-letter currency codes"))
		return
	}

	caller := middleware.GetUser(r)
	rate := &models.ExchangeRate{
		Symbol:         symbol,
		BaseCurrency:   base,
		TargetCurrency: target,
		LastRate:       req.LastRate,
		CreatedBy:      caller.Username,
		LastUpdatedBy:  caller.Username,
	}
	if err := h.rateRepo.CreatePair(rate); err != nil {
		writeError(w, h.log, err)
		return
	}

	inverse, err := h.rateRepo.GetBySymbol(rate.InverseSymbol())
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	h.log.Info().Str("symbol", symbol).Str("rate", rate.LastRate.String()).Msg("rate pair created")
	writeJSON(w, http.StatusCreated, ratePairResponse{Rate: rate, Inverse: inverse})
}

// Get returns one rate by symbol.
func (h *RateHandler) Get(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	rate, err := h.rateRepo.GetBySymbol(symbol)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if rate == nil {
		writeError(w, h.log, apperrors.NotFoundf("rate %s not found", symbol))
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

// List returns all rates.
func (h *RateHandler) List(w http.ResponseWriter, r *http.Request) {
	rates, err := h.rateRepo.GetAll()
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rates)
}

// Update sets a rate's value and rederives its inverse in one transaction.
func (h *RateHandler) Update(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	var patch models.RatePatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, h.log, err)
		return
	}
	if patch.Empty() {
		writeError(w, h.log, apperrors.Validation("no fields to update"))
		return
	}

	caller := middleware.GetUser(r)
	rate, inverse, err := h.rateRepo.UpdateLastRate(symbol, *patch.LastRate, caller.Username)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	h.log.Info().Str("symbol", symbol).Str("rate", rate.LastRate.String()).Msg("rate pair updated")
	writeJSON(w, http.StatusOK, ratePairResponse{Rate: rate, Inverse: inverse})
}

// Delete removes a single rate row.
func (h *RateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	if err := h.rateRepo.Delete(symbol); err != nil {
		writeError(w, h.log, err)
		return
	}

	h.log.Info().Str("symbol", symbol).Msg("rate deleted")
	writeJSON(w, http.StatusOK, map[string]string{"deleted": symbol})
}
