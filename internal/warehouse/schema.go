// Package warehouse provides the data warehouse client backing the raw,
// analytics, and statistics stores.
package warehouse

// Schema contains the SQL definitions for the warehouse (warehouse.db).
// The raw store keeps every column as TEXT so source values survive
// verbatim; typing only happens in the analytics layer.

// RawColumns are the source-derived columns of the raw store, in insert
// order. Each holds the original text of one normalized (and load-aliased)
// source column.
var RawColumns = []string{
	"fecha_utc",
	"hora_utc",
	"magnitud",
	"latitud",
	"longitud",
	"profundidad",
	"referencia_localizacion",
	"fecha_local",
	"hora_local",
	"estatus",
}

// CreateRawEventsTableSQL creates the append-only raw store.
const CreateRawEventsTableSQL = `
CREATE TABLE IF NOT EXISTS raw_earthquakes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    fecha_utc TEXT,
    hora_utc TEXT,
    magnitud TEXT,
    latitud TEXT,
    longitud TEXT,
    profundidad TEXT,
    referencia_localizacion TEXT,
    fecha_local TEXT,
    hora_local TEXT,
    estatus TEXT,
    batch_id TEXT NOT NULL,
    loaded_at INTEGER NOT NULL
)`

// CreateRawEventsIndexesSQL creates indexes for batch-scoped reads.
var CreateRawEventsIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_raw_earthquakes_batch ON raw_earthquakes(batch_id)`,
}

// CreateAnalyticsTableSQL creates the typed analytics store.
const CreateAnalyticsTableSQL = `
CREATE TABLE IF NOT EXISTS analytics_earthquakes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    earthquake_datetime INTEGER,
    magnitude REAL NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    depth_km REAL,
    location_reference TEXT,
    status TEXT,
    year INTEGER,
    month INTEGER,
    day_of_week TEXT,
    hour_of_day INTEGER,
    magnitude_category TEXT NOT NULL,
    depth_category TEXT NOT NULL,
    region TEXT NOT NULL,
    is_significant INTEGER NOT NULL,
    batch_id TEXT NOT NULL
)`

// CreateAnalyticsIndexesSQL creates indexes for batch replacement, export
// ordering, and the aggregation group-bys.
var CreateAnalyticsIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_analytics_batch ON analytics_earthquakes(batch_id)`,
	`CREATE INDEX IF NOT EXISTS idx_analytics_datetime ON analytics_earthquakes(earthquake_datetime)`,
	`CREATE INDEX IF NOT EXISTS idx_analytics_region ON analytics_earthquakes(region)`,
}

// CreateStatisticsTableSQL creates the append-only statistics store.
// The three count maps are serialized JSON objects.
const CreateStatisticsTableSQL = `
CREATE TABLE IF NOT EXISTS earthquake_statistics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    calculation_date INTEGER NOT NULL,
    total_earthquakes INTEGER NOT NULL,
    avg_magnitude REAL,
    max_magnitude REAL,
    min_magnitude REAL,
    avg_depth REAL,
    significant_count INTEGER NOT NULL,
    by_magnitude_category TEXT NOT NULL,
    by_region TEXT NOT NULL,
    by_month TEXT NOT NULL
)`

// AllSchemaSQL returns all schema statements in dependency order.
func AllSchemaSQL() []string {
	stmts := []string{
		CreateRawEventsTableSQL,
		CreateAnalyticsTableSQL,
		CreateStatisticsTableSQL,
	}
	stmts = append(stmts, CreateRawEventsIndexesSQL...)
	stmts = append(stmts, CreateAnalyticsIndexesSQL...)
	return stmts
}
