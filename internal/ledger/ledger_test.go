package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "assetvision/internal/errors"
	"assetvision/internal/models"
)

// fakeStore is an in-memory PortfolioStore and AssetSource with versioned
// holdings. forcedMisses makes the next N conditional updates fail as if a
// concurrent writer had bumped the version.
type fakeStore struct {
	portfolio    *models.Portfolio
	holdings     map[string]*models.Holding
	assets       map[string]*models.Asset
	forcedMisses int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		portfolio: &models.Portfolio{
			ID:                1,
			Owner:             "alice",
			Name:              "retirement",
			PortfolioCurrency: "EUR",
		},
		holdings: make(map[string]*models.Holding),
		assets:   make(map[string]*models.Asset),
	}
}

func (f *fakeStore) GetByOwnerAndName(owner, name string) (*models.Portfolio, error) {
	if owner == f.portfolio.Owner && name == f.portfolio.Name {
		return f.portfolio, nil
	}
	return nil, nil
}

func (f *fakeStore) GetHolding(portfolioID int64, symbol string) (*models.Holding, error) {
	h, ok := f.holdings[symbol]
	if !ok {
		return nil, nil
	}
	copied := *h
	return &copied, nil
}

func (f *fakeStore) InsertHolding(portfolioID int64, h *models.Holding) error {
	if _, exists := f.holdings[h.AssetSymbol]; exists {
		return apperrors.Conflict("holding already exists")
	}
	h.Version = 1
	copied := *h
	f.holdings[h.AssetSymbol] = &copied
	return nil
}

func (f *fakeStore) UpdateHolding(portfolioID int64, symbol string, version int64, quantity, costPrice decimal.Decimal, realizedPnL *decimal.Decimal) (bool, error) {
	h, ok := f.holdings[symbol]
	if !ok {
		return false, nil
	}
	if f.forcedMisses > 0 {
		f.forcedMisses--
		h.Version++
		return false, nil
	}
	if h.Version != version {
		return false, nil
	}
	h.Quantity = quantity
	h.CostPrice = costPrice
	h.RealizedPnL = realizedPnL
	h.Version++
	return true, nil
}

func (f *fakeStore) GetBySymbol(symbol string) (*models.Asset, error) {
	return f.assets[symbol], nil
}

func (f *fakeStore) addAsset(symbol string) {
	f.assets[symbol] = &models.Asset{Symbol: symbol, Name: symbol + " Inc", Currency: "USD"}
}

func (f *fakeStore) addHolding(symbol, quantity, costPrice string) {
	f.holdings[symbol] = &models.Holding{
		AssetSymbol: symbol,
		Quantity:    decimal.RequireFromString(quantity),
		CostPrice:   decimal.RequireFromString(costPrice),
		Version:     1,
	}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// assertDecimalNear allows for division round-off in weighted averages.
func assertDecimalNear(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	diff := got.Sub(want).Abs()
	assert.True(t, diff.LessThan(d("0.0001")), "got %s, want ~%s", got, want)
}

func TestLedger_Buy_NewSymbol_AppendsHolding(t *testing.T) {
	f := newFakeStore()
	f.addAsset("AAPL")
	l := New(f, f)

	got, err := l.Buy("alice", "retirement", "AAPL", d("10"), d("100"))
	require.NoError(t, err)

	assert.Equal(t, SideBuy, got.Side)
	assert.True(t, got.Quantity.Equal(d("10")))
	assert.True(t, got.CostPrice.Equal(d("100")))
	assert.True(t, got.Held)
	assert.NotEmpty(t, got.TradeID)

	h := f.holdings["AAPL"]
	require.NotNil(t, h)
	assert.True(t, h.Quantity.Equal(d("10")))
}

func TestLedger_Buy_NewSymbolNotInCatalog_ReturnsNotFound(t *testing.T) {
	f := newFakeStore()
	l := New(f, f)

	_, err := l.Buy("alice", "retirement", "GHOST", d("10"), d("100"))
	assert.True(t, apperrors.IsNotFound(err), "err = %v", err)
}

func TestLedger_Buy_ExistingHolding_BlendsWeightedAverage(t *testing.T) {
	f := newFakeStore()
	f.addAsset("AAPL")
	f.addHolding("AAPL", "10", "100")
	l := New(f, f)

	got, err := l.Buy("alice", "retirement", "AAPL", d("5"), d("120"))
	require.NoError(t, err)

	assert.True(t, got.Quantity.Equal(d("15")))
	// (100*10 + 120*5) / 15 = 1600/15
	assertDecimalNear(t, d("106.6667"), got.CostPrice)
}

func TestLedger_Buy_ZeroResultingQuantity_ReturnsUndefined(t *testing.T) {
	f := newFakeStore()
	f.addAsset("AAPL")
	f.addHolding("AAPL", "-10", "100")
	l := New(f, f)

	_, err := l.Buy("alice", "retirement", "AAPL", d("10"), d("120"))
	assert.True(t, apperrors.IsUndefined(err), "err = %v", err)
}

func TestLedger_Buy_MissingPortfolio_ReturnsNotFound(t *testing.T) {
	f := newFakeStore()
	l := New(f, f)

	_, err := l.Buy("alice", "nope", "AAPL", d("10"), d("100"))
	assert.True(t, apperrors.IsNotFound(err), "err = %v", err)
}

func TestLedger_Buy_VersionMiss_RetriesAndSettles(t *testing.T) {
	f := newFakeStore()
	f.addAsset("AAPL")
	f.addHolding("AAPL", "10", "100")
	f.forcedMisses = 2
	l := New(f, f)

	got, err := l.Buy("alice", "retirement", "AAPL", d("5"), d("120"))
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(d("15")))
	assert.Equal(t, 0, f.forcedMisses, "expected both misses consumed")
}

func TestLedger_Buy_RetriesExhausted_ReturnsConflict(t *testing.T) {
	f := newFakeStore()
	f.addAsset("AAPL")
	f.addHolding("AAPL", "10", "100")
	f.forcedMisses = maxAttempts
	l := New(f, f)

	_, err := l.Buy("alice", "retirement", "AAPL", d("5"), d("120"))
	assert.True(t, apperrors.IsConflict(err), "err = %v", err)
}

func TestLedger_Sell_PartialSell_KeepsCostBasis(t *testing.T) {
	f := newFakeStore()
	f.addHolding("AAPL", "10", "100")
	l := New(f, f)

	got, err := l.Sell("alice", "retirement", "AAPL", d("4"), d("150"))
	require.NoError(t, err)

	assert.Equal(t, SideSell, got.Side)
	assert.True(t, got.ExecutedQuantity.Equal(d("4")))
	assert.True(t, got.Quantity.Equal(d("6")))
	assert.True(t, got.CostPrice.Equal(d("100")), "cost basis must not re-base on sell")
	require.NotNil(t, got.RealizedPnL)
	// (150 - 100) * 4
	assert.True(t, got.RealizedPnL.Equal(d("200")))
	assert.Empty(t, got.Message)
}

func TestLedger_Sell_OverSell_ClampsToHeldQuantity(t *testing.T) {
	f := newFakeStore()
	f.addHolding("AAPL", "15", "106.6666666666666667")
	l := New(f, f)

	got, err := l.Sell("alice", "retirement", "AAPL", d("20"), d("160"))
	require.NoError(t, err)

	assert.True(t, got.RequestedQuantity.Equal(d("20")))
	assert.True(t, got.ExecutedQuantity.Equal(d("15")))
	assert.True(t, got.Quantity.IsZero())
	require.NotNil(t, got.RealizedPnL)
	// (160 - 1600/15) * 15 = 800
	assertDecimalNear(t, d("800"), *got.RealizedPnL)
	assert.NotEmpty(t, got.Message, "clamp must be reported")
}

func TestLedger_Sell_UnheldSymbol_ReturnsNoOpResult(t *testing.T) {
	f := newFakeStore()
	l := New(f, f)

	got, err := l.Sell("alice", "retirement", "GHOST", d("5"), d("100"))
	require.NoError(t, err)

	assert.False(t, got.Held)
	assert.True(t, got.ExecutedQuantity.IsZero())
	assert.NotEmpty(t, got.Message)
	assert.Nil(t, f.holdings["GHOST"], "no holding may be created by a sell")
}

func TestLedger_Sell_AccumulatesRealizedPnL(t *testing.T) {
	f := newFakeStore()
	f.addHolding("AAPL", "10", "100")
	l := New(f, f)

	_, err := l.Sell("alice", "retirement", "AAPL", d("2"), d("150"))
	require.NoError(t, err)

	got, err := l.Sell("alice", "retirement", "AAPL", d("3"), d("130"))
	require.NoError(t, err)

	require.NotNil(t, got.RealizedPnL)
	// (150-100)*2 + (130-100)*3 = 100 + 90
	assert.True(t, got.RealizedPnL.Equal(d("190")), "pnl = %s", got.RealizedPnL)
	assert.True(t, got.Quantity.Equal(d("5")))
}

func TestLedger_Sell_AtLoss_AccumulatesNegativePnL(t *testing.T) {
	f := newFakeStore()
	f.addHolding("AAPL", "10", "100")
	l := New(f, f)

	got, err := l.Sell("alice", "retirement", "AAPL", d("5"), d("80"))
	require.NoError(t, err)

	require.NotNil(t, got.RealizedPnL)
	assert.True(t, got.RealizedPnL.Equal(d("-100")), "pnl = %s", got.RealizedPnL)
}

func TestLedger_Sell_VersionMiss_RetriesAndSettles(t *testing.T) {
	f := newFakeStore()
	f.addHolding("AAPL", "10", "100")
	f.forcedMisses = 1
	l := New(f, f)

	got, err := l.Sell("alice", "retirement", "AAPL", d("4"), d("150"))
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(d("6")))
}

func TestLedger_BuyThenSell_EndToEnd(t *testing.T) {
	f := newFakeStore()
	f.addAsset("AAPL")
	l := New(f, f)

	// 10 @ 100, then 5 @ 120: 15 shares at ~106.667.
	_, err := l.Buy("alice", "retirement", "AAPL", d("10"), d("100"))
	require.NoError(t, err)
	buy, err := l.Buy("alice", "retirement", "AAPL", d("5"), d("120"))
	require.NoError(t, err)
	assertDecimalNear(t, d("106.6667"), buy.CostPrice)

	// Over-sell 20 @ 160: clamps to 15, realizing ~800.
	sell, err := l.Sell("alice", "retirement", "AAPL", d("20"), d("160"))
	require.NoError(t, err)
	assert.True(t, sell.ExecutedQuantity.Equal(d("15")))
	require.NotNil(t, sell.RealizedPnL)
	assertDecimalNear(t, d("800"), *sell.RealizedPnL)
	assert.True(t, sell.Quantity.IsZero())
}
