// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"menu-catalog-api/internal/models"
)

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single connection: writes are serialised and :memory: databases stay shared.
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS menu_items (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL,
        category TEXT NOT NULL,
        calories INTEGER NOT NULL,
        price REAL NOT NULL,
        ingredients TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS provenance_records (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        kind TEXT NOT NULL,
        input_text TEXT NOT NULL,
        input TEXT NOT NULL,
        payload TEXT NOT NULL,
        metadata TEXT NOT NULL,
        total REAL,
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_menu_items_category ON menu_items(category);
    CREATE INDEX IF NOT EXISTS idx_menu_items_created_at ON menu_items(created_at);
    CREATE INDEX IF NOT EXISTS idx_provenance_kind_created ON provenance_records(kind, created_at);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const menuColumns = `id, name, category, calories, price, ingredients, description, created_at, updated_at`

func (s *SQLiteStorage) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	ingredients, err := json.Marshal(nonNilStrings(item.Ingredients))
	if err != nil {
		return fmt.Errorf("failed to encode ingredients: %w", err)
	}
	ts := now()

	res, err := s.db.ExecContext(ctx, `
        INSERT INTO menu_items (name, category, calories, price, ingredients, description, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `, item.Name, item.Category, item.Calories, item.Price, string(ingredients), item.Description,
		formatTime(ts), formatTime(ts))
	if err != nil {
		return fmt.Errorf("failed to insert menu item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read menu item id: %w", err)
	}
	item.ID = id
	item.CreatedAt = ts
	item.UpdatedAt = ts
	return nil
}

func (s *SQLiteStorage) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = ?`, id)
	item, err := scanMenuItem(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get menu item %d: %w", id, err)
	}
	return item, nil
}

func (s *SQLiteStorage) FindMenuItemByName(ctx context.Context, name string) (*models.MenuItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+menuColumns+` FROM menu_items WHERE LOWER(name) = LOWER(?) ORDER BY id LIMIT 1`,
		strings.TrimSpace(name))
	item, err := scanMenuItem(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find menu item %q: %w", name, err)
	}
	return item, nil
}

func (s *SQLiteStorage) UpdateMenuItem(ctx context.Context, item *models.MenuItem) error {
	ingredients, err := json.Marshal(nonNilStrings(item.Ingredients))
	if err != nil {
		return fmt.Errorf("failed to encode ingredients: %w", err)
	}
	ts := now()

	res, err := s.db.ExecContext(ctx, `
        UPDATE menu_items
        SET name = ?, category = ?, calories = ?, price = ?, ingredients = ?, description = ?, updated_at = ?
        WHERE id = ?
    `, item.Name, item.Category, item.Calories, item.Price, string(ingredients), item.Description,
		formatTime(ts), item.ID)
	if err != nil {
		return fmt.Errorf("failed to update menu item %d: %w", item.ID, err)
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("failed to update menu item %d: %w", item.ID, err)
	}

	updated, err := s.GetMenuItem(ctx, item.ID)
	if err != nil {
		return err
	}
	*item = *updated
	return nil
}

func (s *SQLiteStorage) DeleteMenuItem(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM menu_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete menu item %d: %w", id, err)
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("failed to delete menu item %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStorage) ListMenuItems(ctx context.Context, f MenuFilter) ([]*models.MenuItem, int64, error) {
	where := " WHERE 1=1"
	args := []interface{}{}

	if q := strings.TrimSpace(f.Query); q != "" {
		where += ` AND (name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\' OR ingredients LIKE ? ESCAPE '\')`
		like := likePattern(q)
		args = append(args, like, like, like)
	}
	if f.Category != "" {
		where += " AND LOWER(category) = LOWER(?)"
		args = append(args, f.Category)
	}
	if f.MinPrice != nil {
		where += " AND price >= ?"
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		where += " AND price <= ?"
		args = append(args, *f.MaxPrice)
	}
	if f.MaxCalories != nil {
		where += " AND calories <= ?"
		args = append(args, *f.MaxCalories)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM menu_items`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count menu items: %w", err)
	}

	query := `SELECT ` + menuColumns + ` FROM menu_items` + where + menuOrderBy(f)
	query += " LIMIT ? OFFSET ?"
	args = append(args, f.PerPage, offset(f.Page, f.PerPage))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query menu items: %w", err)
	}
	defer rows.Close()

	items := []*models.MenuItem{}
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate menu items: %w", err)
	}
	return items, total, nil
}

func menuOrderBy(f MenuFilter) string {
	if !SortFields[f.SortField] {
		return " ORDER BY created_at DESC, id DESC"
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id %s", f.SortField, dir, dir)
}

func (s *SQLiteStorage) CountByCategory(ctx context.Context) ([]CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM menu_items GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	defer rows.Close()

	counts := []CategoryCount{}
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (s *SQLiteStorage) ListByCategory(ctx context.Context, perCategory int) (map[string][]*models.MenuItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+menuColumns+` FROM menu_items ORDER BY category, created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu items by category: %w", err)
	}
	defer rows.Close()

	grouped := map[string][]*models.MenuItem{}
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		if perCategory > 0 && len(grouped[item.Category]) >= perCategory {
			continue
		}
		grouped[item.Category] = append(grouped[item.Category], item)
	}
	return grouped, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMenuItem(row rowScanner) (*models.MenuItem, error) {
	item := &models.MenuItem{}
	var ingredientsStr, createdAtStr, updatedAtStr string

	err := row.Scan(&item.ID, &item.Name, &item.Category, &item.Calories, &item.Price,
		&ingredientsStr, &item.Description, &createdAtStr, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan menu item: %w", err)
	}

	if err := json.Unmarshal([]byte(ingredientsStr), &item.Ingredients); err != nil {
		return nil, fmt.Errorf("failed to decode ingredients of menu item %d: %w", item.ID, err)
	}
	if item.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if item.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return item, nil
}

const recordColumns = `id, kind, input_text, input, payload, metadata, total, created_at, updated_at`

func (s *SQLiteStorage) SaveRecord(ctx context.Context, rec *models.ProvenanceRecord) error {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	ts := now()

	var total sql.NullFloat64
	if rec.Total != nil {
		total = sql.NullFloat64{Float64: *rec.Total, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
        INSERT INTO provenance_records (kind, input_text, input, payload, metadata, total, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `, string(rec.Kind), rec.InputText, rawOrNull(rec.Input), rawOrNull(rec.Payload), string(metadata), total,
		formatTime(ts), formatTime(ts))
	if err != nil {
		return fmt.Errorf("failed to insert provenance record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read provenance record id: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = ts
	rec.UpdatedAt = ts
	return nil
}

func (s *SQLiteStorage) GetRecord(ctx context.Context, kind models.ProvenanceKind, id int64) (*models.ProvenanceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM provenance_records WHERE kind = ? AND id = ?`, string(kind), id)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s record %d: %w", kind, id, err)
	}
	return rec, nil
}

func (s *SQLiteStorage) ListRecords(ctx context.Context, f ProvenanceFilter) ([]*models.ProvenanceRecord, int64, error) {
	where := " WHERE kind = ?"
	args := []interface{}{string(f.Kind)}

	if q := strings.TrimSpace(f.Query); q != "" {
		where += ` AND input_text LIKE ? ESCAPE '\'`
		args = append(args, likePattern(q))
	}
	if f.CreatedFrom != nil {
		where += " AND created_at >= ?"
		args = append(args, formatTime(*f.CreatedFrom))
	}
	if f.CreatedBefore != nil {
		where += " AND created_at < ?"
		args = append(args, formatTime(*f.CreatedBefore))
	}
	if f.MinTotal != nil {
		where += " AND total >= ?"
		args = append(args, *f.MinTotal)
	}
	if f.MaxTotal != nil {
		where += " AND total <= ?"
		args = append(args, *f.MaxTotal)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM provenance_records`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count provenance records: %w", err)
	}

	query := `SELECT ` + recordColumns + ` FROM provenance_records` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, f.PerPage, offset(f.Page, f.PerPage))

	recs, err := s.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func (s *SQLiteStorage) DeleteRecord(ctx context.Context, kind models.ProvenanceKind, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM provenance_records WHERE kind = ? AND id = ?`, string(kind), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s record %d: %w", kind, id, err)
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("failed to delete %s record %d: %w", kind, id, err)
	}
	return nil
}

func (s *SQLiteStorage) RecordStats(ctx context.Context, kind models.ProvenanceKind) (*models.ProvenanceStats, error) {
	var (
		stats       models.ProvenanceStats
		avg, lo, hi sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*), COUNT(DISTINCT input_text), AVG(total), MIN(total), MAX(total)
        FROM provenance_records WHERE kind = ?
    `, string(kind)).Scan(&stats.Count, &stats.UniqueInputs, &avg, &lo, &hi)
	if err != nil {
		return nil, fmt.Errorf("failed to compute %s statistics: %w", kind, err)
	}
	stats.AvgTotal = nullableFloat(avg)
	stats.MinTotal = nullableFloat(lo)
	stats.MaxTotal = nullableFloat(hi)
	return &stats, nil
}

func (s *SQLiteStorage) RecentRecords(ctx context.Context, kind models.ProvenanceKind, limit int) ([]*models.ProvenanceRecord, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM provenance_records WHERE kind = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		string(kind), limit)
}

func (s *SQLiteStorage) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*models.ProvenanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query provenance records: %w", err)
	}
	defer rows.Close()

	recs := []*models.ProvenanceRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate provenance records: %w", err)
	}
	return recs, nil
}

func scanRecord(row rowScanner) (*models.ProvenanceRecord, error) {
	rec := &models.ProvenanceRecord{}
	var (
		kind, input, payload, metadata string
		createdAtStr, updatedAtStr     string
		total                          sql.NullFloat64
	)

	err := row.Scan(&rec.ID, &kind, &rec.InputText, &input, &payload, &metadata, &total,
		&createdAtStr, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan provenance record: %w", err)
	}

	rec.Kind = models.ProvenanceKind(kind)
	rec.Input = json.RawMessage(input)
	rec.Payload = json.RawMessage(payload)
	rec.Total = nullableFloat(total)
	if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata of record %d: %w", rec.ID, err)
	}
	if rec.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return rec, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func rawOrNull(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
