package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quakeflow/quakeflow/pkg/types"
)

// Warehouse is the SQLite-backed data warehouse holding the raw store, the
// analytics store, and the statistics store. It is constructed per pipeline
// run and closed deterministically at run end; there is no process-wide
// shared handle.
type Warehouse struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool (concurrent readers)
	dbPath string
}

// New opens (or creates) the warehouse database at dbPath.
func New(dbPath string) (*Warehouse, error) {
	// Write connection: single writer with WAL mode
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("warehouse: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	w := &Warehouse{db: db, dbPath: dbPath}

	if err := w.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("warehouse: failed to initialize schema: %w", err)
	}

	// Read connection pool: concurrent readers via read-only mode
	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("warehouse: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	w.readDB = readDB

	return w, nil
}

// initSchema creates all required tables and indexes.
func (w *Warehouse) initSchema() error {
	for _, stmt := range AllSchemaSQL() {
		if _, err := w.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Close closes the warehouse database connections.
func (w *Warehouse) Close() error {
	if w.readDB != nil {
		if err := w.readDB.Close(); err != nil {
			w.db.Close()
			return err
		}
	}
	return w.db.Close()
}

// AppendRaw appends snapshot rows to the raw store verbatim, stamping each
// with the batch ID and ingestion timestamp. The whole batch goes through a
// single transaction: a failed load leaves zero rows for the batch, which is
// what makes an orchestrator retry of the load stage safe.
//
// columns holds the snapshot's load-aliased column names, aligned with each
// row's fields; columns absent from the raw store schema are skipped.
func (w *Warehouse) AppendRaw(ctx context.Context, batchID types.BatchID, columns []string, rows [][]string, loadedAt time.Time) (int64, error) {
	known := make(map[string]int, len(RawColumns))
	for i, c := range RawColumns {
		known[c] = i
	}

	// srcIdx[i] is the snapshot field index feeding raw column i, or -1.
	srcIdx := make([]int, len(RawColumns))
	for i := range srcIdx {
		srcIdx[i] = -1
	}
	for fieldIdx, col := range columns {
		if rawIdx, ok := known[col]; ok {
			srcIdx[rawIdx] = fieldIdx
		}
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("warehouse: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertSQL := fmt.Sprintf(
		"INSERT INTO raw_earthquakes (%s, batch_id, loaded_at) VALUES (%s?, ?)",
		strings.Join(RawColumns, ", "),
		strings.Repeat("?, ", len(RawColumns)),
	)
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, fmt.Errorf("warehouse: failed to prepare raw insert: %w", err)
	}
	defer stmt.Close()

	args := make([]interface{}, len(RawColumns)+2)
	for _, row := range rows {
		for i, fieldIdx := range srcIdx {
			if fieldIdx >= 0 && fieldIdx < len(row) {
				args[i] = row[fieldIdx]
			} else {
				args[i] = nil
			}
		}
		args[len(RawColumns)] = batchID.String()
		args[len(RawColumns)+1] = loadedAt.Unix()

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("warehouse: failed to insert raw row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("warehouse: failed to commit raw load: %w", err)
	}

	return int64(len(rows)), nil
}

// CountRaw counts raw rows tagged with the given batch.
func (w *Warehouse) CountRaw(ctx context.Context, batchID types.BatchID) (int64, error) {
	var count int64
	err := w.readDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM raw_earthquakes WHERE batch_id = ?",
		batchID.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("warehouse: failed to count raw rows: %w", err)
	}
	return count, nil
}

// RawRecords returns every raw row tagged with the given batch.
func (w *Warehouse) RawRecords(ctx context.Context, batchID types.BatchID) ([]types.RawRecord, error) {
	query := fmt.Sprintf(
		"SELECT %s, loaded_at FROM raw_earthquakes WHERE batch_id = ? ORDER BY id",
		strings.Join(RawColumns, ", "),
	)

	rows, err := w.readDB.QueryContext(ctx, query, batchID.String())
	if err != nil {
		return nil, fmt.Errorf("warehouse: failed to query raw rows: %w", err)
	}
	defer rows.Close()

	var records []types.RawRecord
	for rows.Next() {
		fields := make([]sql.NullString, len(RawColumns))
		dest := make([]interface{}, 0, len(RawColumns)+1)
		for i := range fields {
			dest = append(dest, &fields[i])
		}
		var loadedAtUnix int64
		dest = append(dest, &loadedAtUnix)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("warehouse: failed to scan raw row: %w", err)
		}

		record := types.RawRecord{
			Fields:   make(map[string]string, len(RawColumns)),
			BatchID:  batchID,
			LoadedAt: time.Unix(loadedAtUnix, 0).UTC(),
		}
		for i, col := range RawColumns {
			if fields[i].Valid {
				record.Fields[col] = fields[i].String
			}
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("warehouse: error iterating raw rows: %w", err)
	}

	return records, nil
}

// ReplaceAnalytics replaces the analytics rows for a batch: a batch-scoped
// delete followed by the inserts, in one transaction. Re-running the
// transform for a batch therefore never duplicates analytics rows.
func (w *Warehouse) ReplaceAnalytics(ctx context.Context, batchID types.BatchID, events []types.Event) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("warehouse: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM analytics_earthquakes WHERE batch_id = ?",
		batchID.String(),
	); err != nil {
		return fmt.Errorf("warehouse: failed to clear analytics batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO analytics_earthquakes (
			earthquake_datetime, magnitude, latitude, longitude, depth_km,
			location_reference, status,
			year, month, day_of_week, hour_of_day,
			magnitude_category, depth_category, region, is_significant,
			batch_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("warehouse: failed to prepare analytics insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		var eventTime interface{}
		if ev.EventTime != nil {
			eventTime = ev.EventTime.Unix()
		}
		var depth interface{}
		if ev.DepthKm != nil {
			depth = *ev.DepthKm
		}

		significant := 0
		if ev.IsSignificant {
			significant = 1
		}

		if _, err := stmt.ExecContext(ctx,
			eventTime, derefFloat(ev.Magnitude), derefFloat(ev.Latitude), derefFloat(ev.Longitude), depth,
			ev.LocationRef, ev.Status,
			ev.Year, ev.Month, ev.DayOfWeek, ev.HourOfDay,
			string(ev.MagnitudeCategory), string(ev.DepthCategory), ev.Region, significant,
			ev.BatchID.String(),
		); err != nil {
			return fmt.Errorf("warehouse: failed to insert analytics row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("warehouse: failed to commit analytics batch: %w", err)
	}

	return nil
}

// derefFloat converts a required numeric field for insertion. The transform
// gate guarantees these are non-nil for every inserted event.
func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// CountAnalytics counts analytics rows, optionally scoped to one batch
// (empty batchID counts the whole store).
func (w *Warehouse) CountAnalytics(ctx context.Context, batchID types.BatchID) (int64, error) {
	var count int64
	var err error
	if batchID == "" {
		err = w.readDB.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM analytics_earthquakes").Scan(&count)
	} else {
		err = w.readDB.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM analytics_earthquakes WHERE batch_id = ?",
			batchID.String()).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("warehouse: failed to count analytics rows: %w", err)
	}
	return count, nil
}

// ListEventsByTimeDesc returns the whole analytics store ordered by event
// time descending (null timestamps last). This is the export read path.
func (w *Warehouse) ListEventsByTimeDesc(ctx context.Context) ([]types.Event, error) {
	query := `
		SELECT earthquake_datetime, magnitude, latitude, longitude, depth_km,
			location_reference, status,
			year, month, day_of_week, hour_of_day,
			magnitude_category, depth_category, region, is_significant,
			batch_id
		FROM analytics_earthquakes
		ORDER BY earthquake_datetime IS NULL, earthquake_datetime DESC, id`

	rows, err := w.readDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("warehouse: failed to query analytics rows: %w", err)
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("warehouse: error iterating analytics rows: %w", err)
	}

	return events, nil
}

// ListEventsByBatch returns the analytics rows for one batch, in insert order.
func (w *Warehouse) ListEventsByBatch(ctx context.Context, batchID types.BatchID) ([]types.Event, error) {
	query := `
		SELECT earthquake_datetime, magnitude, latitude, longitude, depth_km,
			location_reference, status,
			year, month, day_of_week, hour_of_day,
			magnitude_category, depth_category, region, is_significant,
			batch_id
		FROM analytics_earthquakes
		WHERE batch_id = ?
		ORDER BY id`

	rows, err := w.readDB.QueryContext(ctx, query, batchID.String())
	if err != nil {
		return nil, fmt.Errorf("warehouse: failed to query analytics batch: %w", err)
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("warehouse: error iterating analytics batch: %w", err)
	}

	return events, nil
}

func scanEvent(rows *sql.Rows) (types.Event, error) {
	var ev types.Event
	var eventTime sql.NullInt64
	var depth sql.NullFloat64
	var magnitude, latitude, longitude float64
	var magCat, depthCat, batchID string
	var significant int

	err := rows.Scan(
		&eventTime, &magnitude, &latitude, &longitude, &depth,
		&ev.LocationRef, &ev.Status,
		&ev.Year, &ev.Month, &ev.DayOfWeek, &ev.HourOfDay,
		&magCat, &depthCat, &ev.Region, &significant,
		&batchID,
	)
	if err != nil {
		return ev, fmt.Errorf("warehouse: failed to scan analytics row: %w", err)
	}

	if eventTime.Valid {
		t := time.Unix(eventTime.Int64, 0).UTC()
		ev.EventTime = &t
	}
	ev.Magnitude = &magnitude
	ev.Latitude = &latitude
	ev.Longitude = &longitude
	if depth.Valid {
		d := depth.Float64
		ev.DepthKm = &d
	}
	ev.MagnitudeCategory = types.MagnitudeCategory(magCat)
	ev.DepthCategory = types.DepthCategory(depthCat)
	ev.IsSignificant = significant != 0
	ev.BatchID = types.BatchID(batchID)

	return ev, nil
}

// ScalarStats holds the scalar KPIs computed over the analytics store.
type ScalarStats struct {
	Total            int64
	AvgMagnitude     sql.NullFloat64
	MaxMagnitude     sql.NullFloat64
	MinMagnitude     sql.NullFloat64
	AvgDepth         sql.NullFloat64
	SignificantCount int64
}

// AnalyticsScalarStats computes the scalar KPIs over the whole store.
func (w *Warehouse) AnalyticsScalarStats(ctx context.Context) (*ScalarStats, error) {
	var s ScalarStats
	err := w.readDB.QueryRowContext(ctx, `
		SELECT COUNT(*),
			ROUND(AVG(magnitude), 2), MAX(magnitude), MIN(magnitude),
			ROUND(AVG(depth_km), 2),
			COALESCE(SUM(is_significant), 0)
		FROM analytics_earthquakes`,
	).Scan(&s.Total, &s.AvgMagnitude, &s.MaxMagnitude, &s.MinMagnitude, &s.AvgDepth, &s.SignificantCount)
	if err != nil {
		return nil, fmt.Errorf("warehouse: failed to compute scalar stats: %w", err)
	}
	return &s, nil
}

// CountByColumn groups the analytics store by the given column and returns
// the counts, ordered and limited as requested. The column name comes from a
// fixed caller-side list, never from user input.
func (w *Warehouse) CountByColumn(ctx context.Context, column, orderBy string, limit int) (map[string]int64, error) {
	query := fmt.Sprintf(
		"SELECT %s, COUNT(*) AS count FROM analytics_earthquakes GROUP BY %s",
		column, column,
	)
	if orderBy != "" {
		query += " ORDER BY " + orderBy
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := w.readDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("warehouse: failed to group by %s: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("warehouse: failed to scan group row: %w", err)
		}
		counts[key] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("warehouse: error iterating group rows: %w", err)
	}

	return counts, nil
}

// InsertStatistics appends one statistics snapshot. Prior snapshots are
// never updated in place.
func (w *Warehouse) InsertStatistics(ctx context.Context, snap *types.StatisticsSnapshot) error {
	byCategory, err := json.Marshal(snap.ByMagnitudeCategory)
	if err != nil {
		return fmt.Errorf("warehouse: failed to marshal category counts: %w", err)
	}
	byRegion, err := json.Marshal(snap.ByRegion)
	if err != nil {
		return fmt.Errorf("warehouse: failed to marshal region counts: %w", err)
	}
	byMonth, err := json.Marshal(snap.ByMonth)
	if err != nil {
		return fmt.Errorf("warehouse: failed to marshal month counts: %w", err)
	}

	_, err = w.db.ExecContext(ctx, `
		INSERT INTO earthquake_statistics (
			calculation_date, total_earthquakes,
			avg_magnitude, max_magnitude, min_magnitude, avg_depth,
			significant_count,
			by_magnitude_category, by_region, by_month
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.CalculationDate.Unix(), snap.TotalEarthquakes,
		nullableFloat(snap.AvgMagnitude), nullableFloat(snap.MaxMagnitude),
		nullableFloat(snap.MinMagnitude), nullableFloat(snap.AvgDepth),
		snap.SignificantCount,
		string(byCategory), string(byRegion), string(byMonth),
	)
	if err != nil {
		return fmt.Errorf("warehouse: failed to insert statistics snapshot: %w", err)
	}

	return nil
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

// LatestStatistics returns the most recent statistics snapshot, or nil when
// no aggregation has run yet.
func (w *Warehouse) LatestStatistics(ctx context.Context) (*types.StatisticsSnapshot, error) {
	row := w.readDB.QueryRowContext(ctx, `
		SELECT calculation_date, total_earthquakes,
			avg_magnitude, max_magnitude, min_magnitude, avg_depth,
			significant_count,
			by_magnitude_category, by_region, by_month
		FROM earthquake_statistics
		ORDER BY id DESC
		LIMIT 1`)

	var snap types.StatisticsSnapshot
	var calcUnix int64
	var avgMag, maxMag, minMag, avgDepth sql.NullFloat64
	var byCategory, byRegion, byMonth string

	err := row.Scan(&calcUnix, &snap.TotalEarthquakes,
		&avgMag, &maxMag, &minMag, &avgDepth,
		&snap.SignificantCount,
		&byCategory, &byRegion, &byMonth)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("warehouse: failed to scan statistics snapshot: %w", err)
	}

	snap.CalculationDate = time.Unix(calcUnix, 0).UTC()
	snap.AvgMagnitude = floatPtr(avgMag)
	snap.MaxMagnitude = floatPtr(maxMag)
	snap.MinMagnitude = floatPtr(minMag)
	snap.AvgDepth = floatPtr(avgDepth)

	if err := json.Unmarshal([]byte(byCategory), &snap.ByMagnitudeCategory); err != nil {
		return nil, fmt.Errorf("warehouse: failed to unmarshal category counts: %w", err)
	}
	if err := json.Unmarshal([]byte(byRegion), &snap.ByRegion); err != nil {
		return nil, fmt.Errorf("warehouse: failed to unmarshal region counts: %w", err)
	}
	if err := json.Unmarshal([]byte(byMonth), &snap.ByMonth); err != nil {
		return nil, fmt.Errorf("warehouse: failed to unmarshal month counts: %w", err)
	}

	return &snap, nil
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
