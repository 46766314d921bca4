package database

import (
	"database/sql"
	"fmt"
	stdlog "log"
	"strings"

	"github.com/username/lotfolio/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

// InitDB opens the application database, applies migrations and stores it in DB.
func InitDB(databasePath string) {
	db, err := Open(databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}
	logger.L.Info("Checking database migrations", "databasePath", databasePath)
	if err := Migrate(db); err != nil {
		logger.L.Error("failed to migrate database", "error", err)
		stdlog.Fatalf("failed to migrate database: %v", err)
	}
	DB = db
	logger.L.Info("Database tables ensured/created.")
}

// DSN builds the connection string for path. Foreign keys must be on for leg cascades.
func DSN(path string) string {
	connStr := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if !strings.Contains(path, ":memory:") {
		connStr += "&_pragma=journal_mode(WAL)"
	}
	return connStr
}

// Open opens a sqlite database without migrating it.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if strings.Contains(path, ":memory:") {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	institution_name TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id TEXT NOT NULL UNIQUE,
	account_id INTEGER NOT NULL,
	symbol TEXT,
	trade_date TEXT NOT NULL,
	type TEXT NOT NULL,
	quantity TEXT,
	price TEXT,
	amount TEXT,
	currency TEXT NOT NULL DEFAULT 'USD',
	description TEXT,
	is_option BOOLEAN NOT NULL DEFAULT FALSE,
	option_type TEXT,
	strike_price TEXT,
	expiration_date TEXT,
	underlying_symbol TEXT,
	option_action TEXT,
	FOREIGN KEY(account_id) REFERENCES accounts(id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_account_date ON transactions(account_id, trade_date, id);

CREATE TABLE IF NOT EXISTS trade_lots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL,
	instrument_type TEXT NOT NULL,
	symbol TEXT NOT NULL,
	option_type TEXT,
	strike_price TEXT,
	expiration_date TEXT,
	direction TEXT NOT NULL,
	realized_pl TEXT NOT NULL DEFAULT '0',
	is_closed BOOLEAN NOT NULL DEFAULT FALSE,
	total_opened_quantity TEXT NOT NULL DEFAULT '0',
	total_closed_quantity TEXT NOT NULL DEFAULT '0',
	is_auto_matched BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY(account_id) REFERENCES accounts(id)
);

CREATE INDEX IF NOT EXISTS idx_trade_lots_account ON trade_lots(account_id, is_closed);

CREATE TABLE IF NOT EXISTS lot_transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	lot_id INTEGER NOT NULL,
	transaction_id INTEGER NOT NULL,
	allocated_quantity TEXT NOT NULL,
	leg_type TEXT NOT NULL CHECK (leg_type IN ('OPEN', 'CLOSE')),
	trade_date TEXT NOT NULL,
	price_per_contract TEXT NOT NULL DEFAULT '0',
	FOREIGN KEY(lot_id) REFERENCES trade_lots(id) ON DELETE CASCADE,
	FOREIGN KEY(transaction_id) REFERENCES transactions(id) ON DELETE CASCADE,
	UNIQUE(lot_id, transaction_id, leg_type)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_lot_transactions_open_once
	ON lot_transactions(transaction_id) WHERE leg_type = 'OPEN';
CREATE INDEX IF NOT EXISTS idx_lot_transactions_lot ON lot_transactions(lot_id, trade_date, id);
CREATE INDEX IF NOT EXISTS idx_lot_transactions_txn ON lot_transactions(transaction_id);

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	color TEXT NOT NULL DEFAULT 'neutral',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transaction_tags (
	transaction_id INTEGER NOT NULL,
	tag_id INTEGER NOT NULL,
	PRIMARY KEY (transaction_id, tag_id),
	FOREIGN KEY(transaction_id) REFERENCES transactions(id) ON DELETE CASCADE,
	FOREIGN KEY(tag_id) REFERENCES tags(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	transaction_id INTEGER NOT NULL,
	text TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY(transaction_id) REFERENCES transactions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_comments_transaction ON comments(transaction_id);

CREATE TABLE IF NOT EXISTS trade_groups (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	strategy_type TEXT,
	description TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trade_group_transactions (
	trade_group_id INTEGER NOT NULL,
	transaction_id INTEGER NOT NULL,
	PRIMARY KEY (trade_group_id, transaction_id),
	FOREIGN KEY(trade_group_id) REFERENCES trade_groups(id) ON DELETE CASCADE,
	FOREIGN KEY(transaction_id) REFERENCES transactions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS match_runs (
	id TEXT PRIMARY KEY,
	account_id INTEGER,
	mode TEXT NOT NULL,
	created INTEGER NOT NULL DEFAULT 0,
	processed INTEGER NOT NULL DEFAULT 0,
	options_processed INTEGER NOT NULL DEFAULT 0,
	stocks_processed INTEGER NOT NULL DEFAULT 0,
	orphan_options INTEGER NOT NULL DEFAULT 0,
	orphan_stocks INTEGER NOT NULL DEFAULT 0,
	orphaned_closes INTEGER NOT NULL DEFAULT 0,
	deleted INTEGER NOT NULL DEFAULT 0,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL
);
`

// addedColumns lists columns introduced after a table's first release.
// Databases created earlier get them through ALTER TABLE.
var addedColumns = map[string][]struct{ name, ddl string }{
	"trade_lots": {
		{"notes", "ALTER TABLE trade_lots ADD COLUMN notes TEXT"},
	},
	"transactions": {
		{"created_at", "ALTER TABLE transactions ADD COLUMN created_at TEXT"},
	},
}

// Migrate creates missing tables and adds missing columns.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	for _, table := range []string{"trade_lots", "transactions"} {
		if err := migrateColumns(db, table); err != nil {
			return err
		}
	}
	return nil
}

func migrateColumns(db *sql.DB, table string) error {
	columnExists, err := tableColumns(db, table)
	if err != nil {
		return err
	}
	for _, col := range addedColumns[table] {
		if columnExists[col.name] {
			continue
		}
		if _, err := db.Exec(col.ddl); err != nil {
			return fmt.Errorf("error adding %s column to %s: %w", col.name, table, err)
		}
		logger.L.Info("Added column", "table", table, "column", col.name)
	}
	return nil
}

func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return nil, fmt.Errorf("error querying table schema for %s: %w", table, err)
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("error scanning column info for %s: %w", table, err)
		}
		columnExists[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over column info for %s: %w", table, err)
	}
	return columnExists, nil
}
