package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"menu-catalog-api/internal/models"
)

type menuItemRow struct {
	ID          int64          `gorm:"primaryKey;autoIncrement"`
	Name        string         `gorm:"type:text;not null;index"`
	Category    string         `gorm:"type:text;not null;index"`
	Calories    int            `gorm:"not null"`
	Price       float64        `gorm:"not null"`
	Ingredients datatypes.JSON `gorm:"type:jsonb;not null"`
	Description string         `gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time      `gorm:"not null;index"`
	UpdatedAt   time.Time      `gorm:"not null"`
}

func (menuItemRow) TableName() string { return "menu_items" }

type provenanceRow struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	Kind      string         `gorm:"type:text;not null;index:idx_provenance_kind_created,priority:1"`
	InputText string         `gorm:"type:text;not null"`
	Input     datatypes.JSON `gorm:"type:jsonb;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	Metadata  datatypes.JSON `gorm:"type:jsonb;not null"`
	Total     *float64
	CreatedAt time.Time `gorm:"not null;index:idx_provenance_kind_created,priority:2"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (provenanceRow) TableName() string { return "provenance_records" }

// PostgresStorage is the gorm-backed Store used when DB_DRIVER=postgres.
type PostgresStorage struct {
	db *gorm.DB
}

func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&menuItemRow{}, &provenanceRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &PostgresStorage{db: db}, nil
}

func (s *PostgresStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresStorage) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	row, err := menuRowFrom(item)
	if err != nil {
		return err
	}
	ts := now()
	row.CreatedAt, row.UpdatedAt = ts, ts
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to insert menu item: %w", err)
	}
	item.ID = row.ID
	item.CreatedAt = ts
	item.UpdatedAt = ts
	return nil
}

func (s *PostgresStorage) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	var row menuItemRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get menu item %d: %w", id, gormErr(err))
	}
	return row.toModel()
}

func (s *PostgresStorage) FindMenuItemByName(ctx context.Context, name string) (*models.MenuItem, error) {
	var row menuItemRow
	err := s.db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?)", strings.TrimSpace(name)).
		Order("id").First(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find menu item %q: %w", name, gormErr(err))
	}
	return row.toModel()
}

func (s *PostgresStorage) UpdateMenuItem(ctx context.Context, item *models.MenuItem) error {
	row, err := menuRowFrom(item)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&menuItemRow{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
		"name":        row.Name,
		"category":    row.Category,
		"calories":    row.Calories,
		"price":       row.Price,
		"ingredients": row.Ingredients,
		"description": row.Description,
		"updated_at":  now(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update menu item %d: %w", item.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to update menu item %d: %w", item.ID, ErrNotFound)
	}
	updated, err := s.GetMenuItem(ctx, item.ID)
	if err != nil {
		return err
	}
	*item = *updated
	return nil
}

func (s *PostgresStorage) DeleteMenuItem(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&menuItemRow{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete menu item %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to delete menu item %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) ListMenuItems(ctx context.Context, f MenuFilter) ([]*models.MenuItem, int64, error) {
	q := s.db.WithContext(ctx).Model(&menuItemRow{})
	if text := strings.TrimSpace(f.Query); text != "" {
		like := likePattern(text)
		q = q.Where(`(name ILIKE ? ESCAPE '\' OR description ILIKE ? ESCAPE '\' OR ingredients::text ILIKE ? ESCAPE '\')`, like, like, like)
	}
	if f.Category != "" {
		q = q.Where("LOWER(category) = LOWER(?)", f.Category)
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	if f.MaxCalories != nil {
		q = q.Where("calories <= ?", *f.MaxCalories)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count menu items: %w", err)
	}

	var rows []menuItemRow
	order := strings.TrimPrefix(menuOrderBy(f), " ORDER BY ")
	if err := q.Order(order).Limit(f.PerPage).Offset(offset(f.Page, f.PerPage)).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to query menu items: %w", err)
	}

	items := make([]*models.MenuItem, 0, len(rows))
	for i := range rows {
		item, err := rows[i].toModel()
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, nil
}

func (s *PostgresStorage) CountByCategory(ctx context.Context) ([]CategoryCount, error) {
	counts := []CategoryCount{}
	err := s.db.WithContext(ctx).Model(&menuItemRow{}).
		Select("category, COUNT(*) AS count").Group("category").Order("category").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	return counts, nil
}

func (s *PostgresStorage) ListByCategory(ctx context.Context, perCategory int) (map[string][]*models.MenuItem, error) {
	var rows []menuItemRow
	if err := s.db.WithContext(ctx).Order("category, created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query menu items by category: %w", err)
	}
	grouped := map[string][]*models.MenuItem{}
	for i := range rows {
		if perCategory > 0 && len(grouped[rows[i].Category]) >= perCategory {
			continue
		}
		item, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		grouped[item.Category] = append(grouped[item.Category], item)
	}
	return grouped, nil
}

func (s *PostgresStorage) SaveRecord(ctx context.Context, rec *models.ProvenanceRecord) error {
	row, err := provenanceRowFrom(rec)
	if err != nil {
		return err
	}
	ts := now()
	row.CreatedAt, row.UpdatedAt = ts, ts
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to insert provenance record: %w", err)
	}
	rec.ID = row.ID
	rec.CreatedAt = ts
	rec.UpdatedAt = ts
	return nil
}

func (s *PostgresStorage) GetRecord(ctx context.Context, kind models.ProvenanceKind, id int64) (*models.ProvenanceRecord, error) {
	var row provenanceRow
	if err := s.db.WithContext(ctx).Where("kind = ? AND id = ?", string(kind), id).First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to get %s record %d: %w", kind, id, gormErr(err))
	}
	return row.toModel()
}

func (s *PostgresStorage) ListRecords(ctx context.Context, f ProvenanceFilter) ([]*models.ProvenanceRecord, int64, error) {
	q := s.db.WithContext(ctx).Model(&provenanceRow{}).Where("kind = ?", string(f.Kind))
	if text := strings.TrimSpace(f.Query); text != "" {
		q = q.Where(`input_text ILIKE ? ESCAPE '\'`, likePattern(text))
	}
	if f.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedBefore != nil {
		q = q.Where("created_at < ?", *f.CreatedBefore)
	}
	if f.MinTotal != nil {
		q = q.Where("total >= ?", *f.MinTotal)
	}
	if f.MaxTotal != nil {
		q = q.Where("total <= ?", *f.MaxTotal)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count provenance records: %w", err)
	}

	var rows []provenanceRow
	err := q.Order("created_at DESC, id DESC").Limit(f.PerPage).Offset(offset(f.Page, f.PerPage)).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query provenance records: %w", err)
	}
	recs, err := provenanceModels(rows)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func (s *PostgresStorage) DeleteRecord(ctx context.Context, kind models.ProvenanceKind, id int64) error {
	res := s.db.WithContext(ctx).Where("kind = ? AND id = ?", string(kind), id).Delete(&provenanceRow{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete %s record %d: %w", kind, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to delete %s record %d: %w", kind, id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) RecordStats(ctx context.Context, kind models.ProvenanceKind) (*models.ProvenanceStats, error) {
	var out struct {
		Count        int64
		UniqueInputs int64
		AvgTotal     *float64
		MinTotal     *float64
		MaxTotal     *float64
	}
	err := s.db.WithContext(ctx).Model(&provenanceRow{}).
		Select("COUNT(*) AS count, COUNT(DISTINCT input_text) AS unique_inputs, "+
			"AVG(total) AS avg_total, MIN(total) AS min_total, MAX(total) AS max_total").
		Where("kind = ?", string(kind)).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute %s statistics: %w", kind, err)
	}
	return &models.ProvenanceStats{
		Count:        out.Count,
		UniqueInputs: out.UniqueInputs,
		AvgTotal:     out.AvgTotal,
		MinTotal:     out.MinTotal,
		MaxTotal:     out.MaxTotal,
	}, nil
}

func (s *PostgresStorage) RecentRecords(ctx context.Context, kind models.ProvenanceKind, limit int) ([]*models.ProvenanceRecord, error) {
	var rows []provenanceRow
	err := s.db.WithContext(ctx).Where("kind = ?", string(kind)).
		Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query provenance records: %w", err)
	}
	return provenanceModels(rows)
}

func gormErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func menuRowFrom(item *models.MenuItem) (*menuItemRow, error) {
	ingredients, err := json.Marshal(nonNilStrings(item.Ingredients))
	if err != nil {
		return nil, fmt.Errorf("failed to encode ingredients: %w", err)
	}
	return &menuItemRow{
		ID:          item.ID,
		Name:        item.Name,
		Category:    item.Category,
		Calories:    item.Calories,
		Price:       item.Price,
		Ingredients: datatypes.JSON(ingredients),
		Description: item.Description,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}, nil
}

func (r *menuItemRow) toModel() (*models.MenuItem, error) {
	item := &models.MenuItem{
		ID:          r.ID,
		Name:        r.Name,
		Category:    r.Category,
		Calories:    r.Calories,
		Price:       r.Price,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if len(r.Ingredients) > 0 {
		if err := json.Unmarshal(r.Ingredients, &item.Ingredients); err != nil {
			return nil, fmt.Errorf("failed to decode ingredients of menu item %d: %w", r.ID, err)
		}
	}
	return item, nil
}

func provenanceRowFrom(rec *models.ProvenanceRecord) (*provenanceRow, error) {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return &provenanceRow{
		ID:        rec.ID,
		Kind:      string(rec.Kind),
		InputText: rec.InputText,
		Input:     datatypes.JSON(rawOrNull(rec.Input)),
		Payload:   datatypes.JSON(rawOrNull(rec.Payload)),
		Metadata:  datatypes.JSON(metadata),
		Total:     rec.Total,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

func (r *provenanceRow) toModel() (*models.ProvenanceRecord, error) {
	rec := &models.ProvenanceRecord{
		ID:        r.ID,
		Kind:      models.ProvenanceKind(r.Kind),
		InputText: r.InputText,
		Input:     json.RawMessage(r.Input),
		Payload:   json.RawMessage(r.Payload),
		Total:     r.Total,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of record %d: %w", r.ID, err)
		}
	}
	return rec, nil
}

func provenanceModels(rows []provenanceRow) ([]*models.ProvenanceRecord, error) {
	recs := make([]*models.ProvenanceRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
