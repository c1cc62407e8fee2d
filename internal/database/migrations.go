package database

// SQL migrations for the AssetVision database.
// All migrations use IF NOT EXISTS to be idempotent.
//
// Monetary columns (prices, quantities, rates) are stored as TEXT and
// round-trip through shopspring/decimal to avoid float drift.

const migrationUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    email TEXT,
    roles TEXT NOT NULL DEFAULT '["user"]',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const migrationSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    expires_at DATETIME NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const migrationAssets = `
CREATE TABLE IF NOT EXISTS assets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol TEXT UNIQUE NOT NULL,
    name TEXT NOT NULL,
    last_price TEXT NOT NULL DEFAULT '0',
    currency TEXT,
    asset_class TEXT,
    geo_zone TEXT,
    industry TEXT,
    created_by TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    last_updated_by TEXT,
    last_updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const migrationRates = `
CREATE TABLE IF NOT EXISTS rates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol TEXT UNIQUE NOT NULL,
    base_currency TEXT NOT NULL,
    target_currency TEXT NOT NULL,
    last_rate TEXT NOT NULL,
    created_by TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    last_updated_by TEXT,
    last_updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const migrationPortfolios = `
CREATE TABLE IF NOT EXISTS portfolios (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner TEXT NOT NULL,
    name TEXT NOT NULL,
    portfolio_currency TEXT NOT NULL DEFAULT 'USD',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    last_updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(owner, name)
);
`

// holdings.version backs the per-(portfolio, symbol) compare-and-swap used by
// the position ledger.
const migrationHoldings = `
CREATE TABLE IF NOT EXISTS holdings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    portfolio_id INTEGER NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
    asset_symbol TEXT NOT NULL,
    quantity TEXT NOT NULL DEFAULT '0',
    cost_price TEXT NOT NULL DEFAULT '0',
    realized_pnl TEXT,
    version INTEGER NOT NULL DEFAULT 1,
    UNIQUE(portfolio_id, asset_symbol)
);
`

const migrationIndexes = `
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_holdings_portfolio ON holdings(portfolio_id);
CREATE INDEX IF NOT EXISTS idx_portfolios_owner ON portfolios(owner);
`
