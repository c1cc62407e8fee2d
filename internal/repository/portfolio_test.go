package repository

import (
	"testing"

	"github.com/shopspring/decimal"

	apperrors "assetvision/internal/errors"
	"assetvision/internal/models"
)

func testPortfolio(owner, name string) *models.Portfolio {
	return &models.Portfolio{
		Owner:             owner,
		Name:              name,
		PortfolioCurrency: "EUR",
		Holdings: []*models.Holding{
			{AssetSymbol: "AAPL", Quantity: decimal.NewFromInt(10), CostPrice: decimal.NewFromInt(100)},
			{AssetSymbol: "NOVO", Quantity: decimal.NewFromInt(5), CostPrice: decimal.NewFromInt(50)},
		},
	}
}

func TestPortfolioRepository_Create_WithHoldings_ReturnsID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPortfolioRepository(db)

	id, err := repo.Create(testPortfolio("alice", "retirement"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id <= 0 {
		t.Errorf("Create() id = %d, want > 0", id)
	}

	p, err := repo.GetByOwnerAndName("alice", "retirement")
	if err != nil {
		t.Fatalf("GetByOwnerAndName() error = %v", err)
	}
	if p == nil {
		t.Fatal("GetByOwnerAndName() = nil, want portfolio")
	}
	if len(p.Holdings) != 2 {
		t.Fatalf("holdings = %d, want 2", len(p.Holdings))
	}
	if p.Holdings[0].AssetSymbol != "AAPL" {
		t.Errorf("first holding = %s, want AAPL", p.Holdings[0].AssetSymbol)
	}
	if p.Holdings[0].Version != 1 {
		t.Errorf("new holding version = %d, want 1", p.Holdings[0].Version)
	}
	if p.Holdings[0].RealizedPnL != nil {
		t.Errorf("new holding RealizedPnL = %v, want nil", p.Holdings[0].RealizedPnL)
	}
}

func TestPortfolioRepository_Create_DuplicateOwnerName_ReturnsConflict(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPortfolioRepository(db)

	if _, err := repo.Create(testPortfolio("alice", "retirement")); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}

	_, err := repo.Create(testPortfolio("alice", "retirement"))
	if !apperrors.IsConflict(err) {
		t.Errorf("second Create() error = %v, want Conflict", err)
	}
}

func TestPortfolioRepository_Create_SameNameDifferentOwner_Allowed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPortfolioRepository(db)

	if _, err := repo.Create(testPortfolio("alice", "retirement")); err != nil {
		t.Fatalf("Create(alice) error = %v", err)
	}
	if _, err := repo.Create(testPortfolio("bob", "retirement")); err != nil {
		t.Errorf("Create(bob) error = %v, want nil", err)
	}
}

func TestPortfolioRepository_GetByOwnerAndName_Missing_ReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPortfolioRepository(db)

	p, err := repo.GetByOwnerAndName("alice", "nope")
	if err != nil {
		t.Fatalf("GetByOwnerAndName() error = %v", err)
	}
	if p != nil {
		t.Errorf("GetByOwnerAndName() = %+v, want nil", p)
	}
}

func TestPortfolioRepository_GetHolding_ReturnsOneRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPortfolioRepository(db)

	id, err := repo.Create(testPortfolio("alice", "retirement"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	h, err := repo.GetHolding(id, "AAPL")
	if err != nil {
		t.Fatalf("GetHolding() error = %v", err)
	}
	if h == nil {
		t.Fatal("GetHolding() = nil, want holding")
	}
	if !h.Quantity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Quantity = %s, want 10", h.Quantity)
	}

	missing, err := repo.GetHolding(id, "NOPE")
	if err != nil {
		t.Fatalf("GetHolding(NOPE) error = %v", err)
	}
	if missing != nil {
		t.Errorf("GetHolding(NOPE) = %+v, want nil", missing)
	}
}

func TestPortfolioRepository_InsertHolding_DuplicateSymbol_ReturnsConflict(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPortfolioRepository(db)

	id, err := repo.Create(testPortfolio("alice", "retirement"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	h := &models.Holding{AssetSymbol: "AAPL", Quantity: decimal.NewFromInt(1), CostPrice: decimal.NewFromInt(99)}
	err = repo.InsertHolding(id, h)
	if !apperrors.IsConflict(err) {
		t.Errorf("InsertHolding() error = %v, want Conflict", err)
	}
}

func TestPortfolioRepository_UpdateHolding_MatchingVersion_Applies(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPortfolioRepository(db)

	id, err := repo.Create(testPortfolio("alice", "retirement"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	pnl := decimal.NewFromInt(800)
	ok, err := repo.UpdateHolding(id, "AAPL", 1, decimal.NewFromInt(15), decimal.RequireFromString("106.67"), &pnl)
	if err != nil {
		t.Fatalf("UpdateHolding() error = %v", err)
	}
	if !ok {
		t.Fatal("UpdateHolding() = false, want true")
	}

	h, err := repo.GetHolding(id, "AAPL")
	if err != nil {
		t.Fatalf("GetHolding() error = %v", err)
	}
	if !h.Quantity.Equal(decimal.NewFromInt(15)) {
		t.Errorf("Quantity = %s, want 15", h.Quantity)
	}
	if h.Version != 2 {
		t.Errorf("Version = %d, want 2", h.Version)
	}
	if h.RealizedPnL == nil || !h.RealizedPnL.Equal(pnl) {
		t.Errorf("RealizedPnL = %v, want 800", h.RealizedPnL)
	}
}

func TestPortfolioRepository_UpdateHolding_StaleVersion_ReturnsFalse(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPortfolioRepository(db)

	id, err := repo.Create(testPortfolio("alice", "retirement"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// First writer bumps the version to 2.
	ok, err := repo.UpdateHolding(id, "AAPL", 1, decimal.NewFromInt(12), decimal.NewFromInt(100), nil)
	if err != nil || !ok {
		t.Fatalf("first UpdateHolding() = (%v, %v), want (true, nil)", ok, err)
	}

	// Second writer still holds version 1 and must lose.
	ok, err = repo.UpdateHolding(id, "AAPL", 1, decimal.NewFromInt(20), decimal.NewFromInt(100), nil)
	if err != nil {
		t.Fatalf("second UpdateHolding() error = %v", err)
	}
	if ok {
		t.Error("stale UpdateHolding() = true, want false")
	}

	h, _ := repo.GetHolding(id, "AAPL")
	if !h.Quantity.Equal(decimal.NewFromInt(12)) {
		t.Errorf("Quantity = %s, want 12 from the winning writer", h.Quantity)
	}
}

func TestPortfolioRepository_Delete_RemovesPortfolioAndHoldings(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPortfolioRepository(db)

	id, err := repo.Create(testPortfolio("alice", "retirement"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete("alice", "retirement"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM holdings WHERE portfolio_id = ?`, id).Scan(&count); err != nil {
		t.Fatalf("counting holdings: %v", err)
	}
	if count != 0 {
		t.Errorf("holdings remaining = %d, want 0 (cascade delete)", count)
	}
}

func TestPortfolioRepository_GetByOwner_ReturnsOwnPortfoliosOnly(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPortfolioRepository(db)

	if _, err := repo.Create(testPortfolio("alice", "retirement")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := repo.Create(testPortfolio("alice", "fun")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := repo.Create(testPortfolio("bob", "retirement")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	portfolios, err := repo.GetByOwner("alice")
	if err != nil {
		t.Fatalf("GetByOwner() error = %v", err)
	}
	if len(portfolios) != 2 {
		t.Errorf("GetByOwner() returned %d portfolios, want 2", len(portfolios))
	}
}
