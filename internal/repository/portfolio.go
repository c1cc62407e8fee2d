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

// PortfolioRepository handles portfolio and holding data operations.
//
// Holdings live in their own table keyed (portfolio_id, asset_symbol), so a
// trade touches exactly one row. UpdateHolding is a compare-and-swap on the
// row version, which closes the read-modify-write race between concurrent
// trades on the same holding.
type PortfolioRepository struct {
	db *database.DB
}

// NewPortfolioRepository creates a new PortfolioRepository.
func NewPortfolioRepository(db *database.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// Create inserts a portfolio and its initial holdings in one transaction.
// Returns a Conflict error when the (owner, name) pair already exists.
func (r *PortfolioRepository) Create(p *models.Portfolio) (int64, error) {
	now := time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO portfolios (owner, name, portfolio_currency, created_at, last_updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.Owner, p.Name, p.PortfolioCurrency, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperrors.Conflict(fmt.Sprintf("portfolio %s already exists for %s", p.Name, p.Owner))
		}
		return 0, fmt.Errorf("creating portfolio: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	for _, h := range p.Holdings {
		var pnl any
		if h.RealizedPnL != nil {
			pnl = h.RealizedPnL.String()
		}
		_, err := tx.Exec(`
			INSERT INTO holdings (portfolio_id, asset_symbol, quantity, cost_price, realized_pnl, version)
			VALUES (?, ?, ?, ?, ?, 1)
		`, id, h.AssetSymbol, h.Quantity.String(), h.CostPrice.String(), pnl)
		if err != nil {
			if isUniqueViolation(err) {
				return 0, apperrors.Conflict(fmt.Sprintf("duplicate holding %s in portfolio %s", h.AssetSymbol, p.Name))
			}
			return 0, fmt.Errorf("creating holding %s: %w", h.AssetSymbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing portfolio: %w", err)
	}
	return id, nil
}

// GetByOwnerAndName retrieves a portfolio with its holdings.
// Returns nil if not found.
func (r *PortfolioRepository) GetByOwnerAndName(owner, name string) (*models.Portfolio, error) {
	p := &models.Portfolio{}
	err := r.db.QueryRow(`
		SELECT id, owner, name, portfolio_currency, created_at, last_updated_at
		FROM portfolios
		WHERE owner = ? AND name = ?
	`, owner, name).Scan(
		&p.ID,
		&p.Owner,
		&p.Name,
		&p.PortfolioCurrency,
		&p.CreatedAt,
		&p.LastUpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting portfolio: %w", err)
	}

	p.Holdings, err = r.getHoldings(p.ID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByOwner retrieves all portfolios of one owner, without holdings.
func (r *PortfolioRepository) GetByOwner(owner string) ([]*models.Portfolio, error) {
	rows, err := r.db.Query(`
		SELECT id, owner, name, portfolio_currency, created_at, last_updated_at
		FROM portfolios
		WHERE owner = ?
		ORDER BY name ASC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("getting portfolios: %w", err)
	}
	defer rows.Close()

	portfolios := make([]*models.Portfolio, 0)
	for rows.Next() {
		p := &models.Portfolio{}
		err := rows.Scan(&p.ID, &p.Owner, &p.Name, &p.PortfolioCurrency, &p.CreatedAt, &p.LastUpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}

	return portfolios, rows.Err()
}

// GetHolding retrieves one holding by portfolio and symbol.
// Returns nil if not found.
func (r *PortfolioRepository) GetHolding(portfolioID int64, symbol string) (*models.Holding, error) {
	row := r.db.QueryRow(`
		SELECT id, portfolio_id, asset_symbol, quantity, cost_price, realized_pnl, version
		FROM holdings
		WHERE portfolio_id = ? AND asset_symbol = ?
	`, portfolioID, symbol)

	h, err := scanHoldingRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return h, err
}

// InsertHolding appends a new holding to a portfolio and bumps the
// portfolio's last_updated_at. Returns a Conflict error when a holding for
// the symbol already exists.
func (r *PortfolioRepository) InsertHolding(portfolioID int64, h *models.Holding) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var pnl any
	if h.RealizedPnL != nil {
		pnl = h.RealizedPnL.String()
	}
	_, err = tx.Exec(`
		INSERT INTO holdings (portfolio_id, asset_symbol, quantity, cost_price, realized_pnl, version)
		VALUES (?, ?, ?, ?, ?, 1)
	`, portfolioID, h.AssetSymbol, h.Quantity.String(), h.CostPrice.String(), pnl)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict(fmt.Sprintf("holding %s already exists", h.AssetSymbol))
		}
		return fmt.Errorf("inserting holding: %w", err)
	}

	if _, err := tx.Exec(`UPDATE portfolios SET last_updated_at = ? WHERE id = ?`, time.Now(), portfolioID); err != nil {
		return fmt.Errorf("touching portfolio: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing holding insert: %w", err)
	}
	return nil
}

// UpdateHolding conditionally updates one holding if its version still
// matches, bumping the row version and the portfolio's last_updated_at.
// Returns false without error when the version check fails (concurrent
// writer won); the caller re-reads and retries.
func (r *PortfolioRepository) UpdateHolding(portfolioID int64, symbol string, version int64, quantity, costPrice decimal.Decimal, realizedPnL *decimal.Decimal) (bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var pnl any
	if realizedPnL != nil {
		pnl = realizedPnL.String()
	}
	result, err := tx.Exec(`
		UPDATE holdings
		SET quantity = ?, cost_price = ?, realized_pnl = ?, version = version + 1
		WHERE portfolio_id = ? AND asset_symbol = ? AND version = ?
	`, quantity.String(), costPrice.String(), pnl, portfolioID, symbol, version)
	if err != nil {
		return false, fmt.Errorf("updating holding: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := tx.Exec(`UPDATE portfolios SET last_updated_at = ? WHERE id = ?`, time.Now(), portfolioID); err != nil {
		return false, fmt.Errorf("touching portfolio: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing holding update: %w", err)
	}
	return true, nil
}

// Delete removes a portfolio and its holdings.
func (r *PortfolioRepository) Delete(owner, name string) error {
	result, err := r.db.Exec(`DELETE FROM portfolios WHERE owner = ? AND name = ?`, owner, name)
	if err != nil {
		return fmt.Errorf("deleting portfolio: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFoundf("portfolio %s not found", name)
	}
	return nil
}

// getHoldings loads all holdings of a portfolio.
func (r *PortfolioRepository) getHoldings(portfolioID int64) ([]*models.Holding, error) {
	rows, err := r.db.Query(`
		SELECT id, portfolio_id, asset_symbol, quantity, cost_price, realized_pnl, version
		FROM holdings
		WHERE portfolio_id = ?
		ORDER BY asset_symbol ASC
	`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("getting holdings: %w", err)
	}
	defer rows.Close()

	holdings := make([]*models.Holding, 0)
	for rows.Next() {
		h, err := scanHoldingRow(rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}

	return holdings, rows.Err()
}

func scanHoldingRow(s scanner) (*models.Holding, error) {
	h := &models.Holding{}
	var quantity, costPrice string
	var pnl sql.NullString

	err := s.Scan(
		&h.ID,
		&h.PortfolioID,
		&h.AssetSymbol,
		&quantity,
		&costPrice,
		&pnl,
		&h.Version,
	)
	if err != nil {
		return nil, err
	}

	h.Quantity, err = parseDecimal(quantity)
	if err != nil {
		return nil, fmt.Errorf("parsing quantity for %s: %w", h.AssetSymbol, err)
	}
	h.CostPrice, err = parseDecimal(costPrice)
	if err != nil {
		return nil, fmt.Errorf("parsing cost_price for %s: %w", h.AssetSymbol, err)
	}
	h.RealizedPnL, err = parseNullDecimal(pnl)
	if err != nil {
		return nil, fmt.Errorf("parsing realized_pnl for %s: %w", h.AssetSymbol, err)
	}

	return h, nil
}
