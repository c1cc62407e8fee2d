package repository

import (
	"database/sql"
	"fmt"
	"time"

	"assetvision/internal/database"
	apperrors "assetvision/internal/errors"
	"assetvision/internal/models"
)

// AssetRepository handles asset data operations.
type AssetRepository struct {
	db *database.DB
}

// NewAssetRepository creates a new AssetRepository.
func NewAssetRepository(db *database.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Create inserts a new asset and returns its ID.
// Returns a Conflict error when the symbol is already registered.
func (r *AssetRepository) Create(asset *models.Asset) (int64, error) {
	query := `
		INSERT INTO assets (symbol, name, last_price, currency, asset_class, geo_zone, industry,
		                    created_by, created_at, last_updated_by, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()

	result, err := r.db.Exec(query,
		asset.Symbol,
		asset.Name,
		asset.LastPrice.String(),
		asset.Currency,
		asset.AssetClass,
		asset.GeoZone,
		asset.Industry,
		asset.CreatedBy,
		now,
		asset.CreatedBy,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperrors.Conflict(fmt.Sprintf("asset %s already exists", asset.Symbol))
		}
		return 0, fmt.Errorf("creating asset: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return id, nil
}

// GetBySymbol retrieves an asset by symbol. Returns nil if not found.
func (r *AssetRepository) GetBySymbol(symbol string) (*models.Asset, error) {
	row := r.db.QueryRow(`
		SELECT id, symbol, name, last_price, COALESCE(currency, ''), asset_class, geo_zone, industry,
		       COALESCE(created_by, ''), created_at, COALESCE(last_updated_by, ''), last_updated_at
		FROM assets
		WHERE symbol = ?
	`, symbol)

	return scanAsset(row)
}

// GetAll retrieves all assets ordered by symbol.
func (r *AssetRepository) GetAll() ([]*models.Asset, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol, name, last_price, COALESCE(currency, ''), asset_class, geo_zone, industry,
		       COALESCE(created_by, ''), created_at, COALESCE(last_updated_by, ''), last_updated_at
		FROM assets
		ORDER BY symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("getting all assets: %w", err)
	}
	defer rows.Close()

	assets := make([]*models.Asset, 0)
	for rows.Next() {
		asset, err := scanAssetRow(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}

	return assets, rows.Err()
}

// Update applies a validated patch to an asset and returns the updated
// record. Returns a NotFound error if the symbol does not exist.
func (r *AssetRepository) Update(symbol string, patch *models.AssetPatch, updatedBy string) (*models.Asset, error) {
	set := "last_updated_by = ?, last_updated_at = ?"
	args := []any{updatedBy, time.Now()}

	if patch.Name != nil {
		set += ", name = ?"
		args = append(args, *patch.Name)
	}
	if patch.LastPrice != nil {
		set += ", last_price = ?"
		args = append(args, patch.LastPrice.String())
	}
	if patch.Currency != nil {
		set += ", currency = ?"
		args = append(args, *patch.Currency)
	}
	if patch.AssetClass != nil {
		set += ", asset_class = ?"
		args = append(args, *patch.AssetClass)
	}
	if patch.GeoZone != nil {
		set += ", geo_zone = ?"
		args = append(args, *patch.GeoZone)
	}
	if patch.Industry != nil {
		set += ", industry = ?"
		args = append(args, *patch.Industry)
	}
	args = append(args, symbol)

	result, err := r.db.Exec("UPDATE assets SET "+set+" WHERE symbol = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("updating asset: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting affected rows: %w", err)
	}
	if affected == 0 {
		return nil, apperrors.NotFoundf("asset %s not found", symbol)
	}

	return r.GetBySymbol(symbol)
}

// Delete removes an asset by symbol.
func (r *AssetRepository) Delete(symbol string) error {
	result, err := r.db.Exec(`DELETE FROM assets WHERE symbol = ?`, symbol)
	if err != nil {
		return fmt.Errorf("deleting asset: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFoundf("asset %s not found", symbol)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(row *sql.Row) (*models.Asset, error) {
	asset, err := scanAssetRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return asset, err
}

func scanAssetRow(s scanner) (*models.Asset, error) {
	asset := &models.Asset{}
	var lastPrice string
	var assetClass, geoZone, industry sql.NullString

	err := s.Scan(
		&asset.ID,
		&asset.Symbol,
		&asset.Name,
		&lastPrice,
		&asset.Currency,
		&assetClass,
		&geoZone,
		&industry,
		&asset.CreatedBy,
		&asset.CreatedAt,
		&asset.LastUpdatedBy,
		&asset.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	asset.LastPrice, err = parseDecimal(lastPrice)
	if err != nil {
		return nil, fmt.Errorf("parsing last_price for %s: %w", asset.Symbol, err)
	}

	if assetClass.Valid {
		asset.AssetClass = &assetClass.String
	}
	if geoZone.Valid {
		asset.GeoZone = &geoZone.String
	}
	if industry.Valid {
		asset.Industry = &industry.String
	}

	return asset, nil
}
