// Package testutil opens in-memory databases carrying the ledger schema for package tests.
package testutil

import (
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE units (
		id INTEGER PRIMARY KEY,
		code TEXT NOT NULL,
		rental_price NUMERIC
	)`,
	`CREATE TABLE residencies (
		id INTEGER PRIMARY KEY,
		resident_id INTEGER NOT NULL,
		unit_id INTEGER NOT NULL,
		contract_type TEXT NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE,
		is_active BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE charge_categories (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		is_system BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE billing_periods (
		id INTEGER PRIMARY KEY,
		residency_id INTEGER NOT NULL,
		period TEXT NOT NULL,
		total_amount NUMERIC NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		issued_on DATE NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (residency_id, period)
	)`,
	`CREATE TABLE charge_lines (
		id INTEGER PRIMARY KEY,
		billing_period_id INTEGER NOT NULL REFERENCES billing_periods(id),
		category_id INTEGER NOT NULL REFERENCES charge_categories(id),
		amount NUMERIC NOT NULL,
		description TEXT NOT NULL,
		reference TEXT NOT NULL,
		due_date DATE,
		idempotency_key TEXT UNIQUE,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE payments (
		id INTEGER PRIMARY KEY,
		billing_period_id INTEGER NOT NULL REFERENCES billing_periods(id),
		amount NUMERIC NOT NULL,
		method TEXT NOT NULL,
		paid_on DATE NOT NULL,
		recorded_by TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE fines (
		id INTEGER PRIMARY KEY,
		amount NUMERIC NOT NULL,
		reason TEXT NOT NULL,
		incident_date DATE NOT NULL,
		created_by TEXT NOT NULL,
		residency_id INTEGER,
		resident_id INTEGER,
		charge_line_id INTEGER,
		conversion_error TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE common_areas (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		capacity INTEGER NOT NULL,
		opens_at TEXT NOT NULL,
		closes_at TEXT NOT NULL,
		has_cost BOOLEAN NOT NULL,
		normal_rate NUMERIC NOT NULL DEFAULT 0,
		weekend_rate NUMERIC NOT NULL DEFAULT 0,
		tenants_allowed BOOLEAN NOT NULL DEFAULT 1,
		status TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE reservations (
		id INTEGER PRIMARY KEY,
		area_id INTEGER NOT NULL REFERENCES common_areas(id),
		resident_id INTEGER NOT NULL,
		date DATE NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		status TEXT NOT NULL,
		billing_period_id INTEGER,
		charge_line_id INTEGER,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE reservation_slot_locks (
		area_id INTEGER NOT NULL,
		date DATE NOT NULL,
		PRIMARY KEY (area_id, date)
	)`,
	`CREATE TABLE audit_logs (
		id INTEGER PRIMARY KEY,
		actor_type TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		metadata TEXT,
		created_at DATETIME NOT NULL
	)`,
}

// OpenDB returns a private in-memory database with the ledger schema. The
// pool is pinned to one connection so concurrent tests serialize on it the
// way row locks would on a server database.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

func NewNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SeedUnit inserts a unit; a zero price is stored as NULL.
func SeedUnit(t *testing.T, conn *gorm.DB, id snowflake.ID, price decimal.Decimal) {
	t.Helper()
	var value any
	if !price.IsZero() {
		value = price
	}
	require.NoError(t, conn.Exec(
		`INSERT INTO units (id, code, rental_price) VALUES (?, ?, ?)`,
		id, "U-"+id.String(), value,
	).Error)
}

type ResidencySeed struct {
	ID           snowflake.ID
	ResidentID   snowflake.ID
	UnitID       snowflake.ID
	ContractType string
	Start        time.Time
	End          *time.Time
	Active       bool
}

func SeedResidency(t *testing.T, conn *gorm.DB, r ResidencySeed) {
	t.Helper()
	require.NoError(t, conn.Exec(
		`INSERT INTO residencies (id, resident_id, unit_id, contract_type, start_date, end_date, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ResidentID, r.UnitID, r.ContractType, r.Start, r.End, r.Active,
	).Error)
}
