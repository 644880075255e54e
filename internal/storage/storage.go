// Package storage persists the menu catalog and the provenance records of
// generations and calorie calculations. Two backends implement Store: SQLite
// (database/sql + modernc) and Postgres (gorm).
package storage

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"menu-catalog-api/internal/models"
)

var ErrNotFound = errors.New("record not found")

// SortFields lists the columns a menu listing may be ordered by.
var SortFields = map[string]bool{
	"name":       true,
	"category":   true,
	"calories":   true,
	"price":      true,
	"created_at": true,
}

type MenuFilter struct {
	Query       string
	Category    string
	MinPrice    *float64
	MaxPrice    *float64
	MaxCalories *int
	// SortField must be a key of SortFields; empty means newest first.
	SortField string
	SortDesc  bool
	Page      int
	PerPage   int
}

type ProvenanceFilter struct {
	Kind  models.ProvenanceKind
	Query string
	// CreatedFrom is inclusive, CreatedBefore exclusive.
	CreatedFrom   *time.Time
	CreatedBefore *time.Time
	MinTotal      *float64
	MaxTotal      *float64
	Page          int
	PerPage       int
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

type MenuStore interface {
	CreateMenuItem(ctx context.Context, item *models.MenuItem) error
	GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error)
	FindMenuItemByName(ctx context.Context, name string) (*models.MenuItem, error)
	UpdateMenuItem(ctx context.Context, item *models.MenuItem) error
	DeleteMenuItem(ctx context.Context, id int64) error
	ListMenuItems(ctx context.Context, f MenuFilter) ([]*models.MenuItem, int64, error)
	CountByCategory(ctx context.Context) ([]CategoryCount, error)
	// ListByCategory returns at most perCategory newest items per category.
	ListByCategory(ctx context.Context, perCategory int) (map[string][]*models.MenuItem, error)
}

type ProvenanceStore interface {
	SaveRecord(ctx context.Context, rec *models.ProvenanceRecord) error
	GetRecord(ctx context.Context, kind models.ProvenanceKind, id int64) (*models.ProvenanceRecord, error)
	ListRecords(ctx context.Context, f ProvenanceFilter) ([]*models.ProvenanceRecord, int64, error)
	DeleteRecord(ctx context.Context, kind models.ProvenanceKind, id int64) error
	RecordStats(ctx context.Context, kind models.ProvenanceKind) (*models.ProvenanceStats, error)
	RecentRecords(ctx context.Context, kind models.ProvenanceKind, limit int) ([]*models.ProvenanceRecord, error)
}

type Store interface {
	MenuStore
	ProvenanceStore
	Ping(ctx context.Context) error
	Close() error
}

// PageLimits holds the configured page sizes.
// MaxPage bounds the page number so (page-1)*perPage cannot overflow.
const MaxPage = 1_000_000

type PageLimits struct {
	Default int
	Max     int
}

// Normalize clamps a requested page and page size into range.
func (l PageLimits) Normalize(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if perPage < 1 {
		perPage = l.Default
	}
	if l.Max > 0 && perPage > l.Max {
		perPage = l.Max
	}
	if perPage < 1 {
		perPage = 10
	}
	return page, perPage
}

type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

func NewPagination(total int64, page, perPage int) Pagination {
	p := Pagination{Total: total, Page: page, PerPage: perPage}
	if perPage > 0 {
		p.TotalPages = int(math.Ceil(float64(total) / float64(perPage)))
	}
	return p
}

func offset(page, perPage int) int {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	return (page - 1) * perPage
}

// likePattern wraps q for a substring LIKE match with % and _ taken
// literally. Queries must declare ESCAPE '\'.
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func now() time.Time {
	return time.Now().UTC().Round(time.Microsecond)
}
