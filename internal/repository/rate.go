package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"assetvision/internal/database"
	apperrors "assetvision/internal/errors"
	"assetvision/internal/models"
)

// one is the decimal constant used for rate inversion.
var one = decimal.NewFromInt(1)

// RateRepository handles exchange-rate data operations.
//
// Every rate row has a paired inverse row (symbol reversed, rate inverted);
// the pair is always written inside a single transaction.
type RateRepository struct {
	db *database.DB
}

// NewRateRepository creates a new RateRepository.
func NewRateRepository(db *database.DB) *RateRepository {
	return &RateRepository{db: db}
}

// CreatePair inserts a rate and its inverse in one transaction. A self pair
// such as EUREUR is its own inverse and stores a single row.
// Returns a Validation error when last_rate is zero and a Conflict error when
// either symbol already exists; in both cases nothing is written.
func (r *RateRepository) CreatePair(rate *models.ExchangeRate) error {
	if rate.LastRate.IsZero() {
		return apperrors.ValidationField("last_rate", "last_rate must be non-zero")
	}

	inverseRate := one.Div(rate.LastRate)
	now := time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO rates (symbol, base_currency, target_currency, last_rate,
		                   created_by, created_at, last_updated_by, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(query,
		rate.Symbol, rate.BaseCurrency, rate.TargetCurrency, rate.LastRate.String(),
		rate.CreatedBy, now, rate.CreatedBy, now,
	)
	if err == nil && rate.InverseSymbol() != rate.Symbol {
		_, err = tx.Exec(query,
			rate.InverseSymbol(), rate.TargetCurrency, rate.BaseCurrency, inverseRate.String(),
			rate.CreatedBy, now, rate.CreatedBy, now,
		)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict(fmt.Sprintf("rate %s already exists", rate.Symbol))
		}
		return fmt.Errorf("creating rate pair: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rate pair: %w", err)
	}
	return nil
}

// GetBySymbol retrieves a rate by pair symbol. Returns nil if not found.
func (r *RateRepository) GetBySymbol(symbol string) (*models.ExchangeRate, error) {
	row := r.db.QueryRow(`
		SELECT id, symbol, base_currency, target_currency, last_rate,
		       COALESCE(created_by, ''), created_at, COALESCE(last_updated_by, ''), last_updated_at
		FROM rates
		WHERE symbol = ?
	`, symbol)

	rate, err := scanRateRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rate, err
}

// GetAll retrieves all rates ordered by symbol.
func (r *RateRepository) GetAll() ([]*models.ExchangeRate, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol, base_currency, target_currency, last_rate,
		       COALESCE(created_by, ''), created_at, COALESCE(last_updated_by, ''), last_updated_at
		FROM rates
		ORDER BY symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("getting all rates: %w", err)
	}
	defer rows.Close()

	rates := make([]*models.ExchangeRate, 0)
	for rows.Next() {
		rate, err := scanRateRow(rows)
		if err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}

	return rates, rows.Err()
}

// UpdateLastRate sets a new rate and re-derives the paired inverse inside one
// transaction. A self pair has no separate inverse row and is returned in
// both positions. Returns the updated rate and its inverse (nil when no
// inverse row exists; the reconciliation job reports such orphans).
func (r *RateRepository) UpdateLastRate(symbol string, newRate decimal.Decimal, updatedBy string) (*models.ExchangeRate, *models.ExchangeRate, error) {
	if newRate.IsZero() {
		return nil, nil, apperrors.ValidationField("last_rate", "last_rate must be non-zero")
	}

	rate, err := r.GetBySymbol(symbol)
	if err != nil {
		return nil, nil, err
	}
	if rate == nil {
		return nil, nil, apperrors.NotFoundf("rate %s not found", symbol)
	}

	now := time.Now()
	inverse := one.Div(newRate)

	tx, err := r.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE rates
		SET last_rate = ?, last_updated_by = ?, last_updated_at = ?
		WHERE symbol = ?
	`
	if _, err := tx.Exec(query, newRate.String(), updatedBy, now, symbol); err != nil {
		return nil, nil, fmt.Errorf("updating rate: %w", err)
	}
	if rate.InverseSymbol() != symbol {
		if _, err := tx.Exec(query, inverse.String(), updatedBy, now, rate.InverseSymbol()); err != nil {
			return nil, nil, fmt.Errorf("updating inverse rate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing rate update: %w", err)
	}

	updated, err := r.GetBySymbol(symbol)
	if err != nil {
		return nil, nil, err
	}
	updatedInverse, err := r.GetBySymbol(rate.InverseSymbol())
	if err != nil {
		return nil, nil, err
	}
	return updated, updatedInverse, nil
}

// Delete removes a single rate row by symbol. The paired inverse is left in
// place; the reconciliation job flags the resulting orphan.
func (r *RateRepository) Delete(symbol string) error {
	result, err := r.db.Exec(`DELETE FROM rates WHERE symbol = ?`, symbol)
	if err != nil {
		return fmt.Errorf("deleting rate: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFoundf("rate %s not found", symbol)
	}
	return nil
}

func scanRateRow(s scanner) (*models.ExchangeRate, error) {
	rate := &models.ExchangeRate{}
	var lastRate string

	err := s.Scan(
		&rate.ID,
		&rate.Symbol,
		&rate.BaseCurrency,
		&rate.TargetCurrency,
		&lastRate,
		&rate.CreatedBy,
		&rate.CreatedAt,
		&rate.LastUpdatedBy,
		&rate.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rate.LastRate, err = parseDecimal(lastRate)
	if err != nil {
		return nil, fmt.Errorf("parsing last_rate for %s: %w", rate.Symbol, err)
	}

	return rate, nil
}
