package service

import (
	"context"
	"fmt"
	"strings"

	"menu-catalog-api/internal/apperr"
	"menu-catalog-api/internal/models"
	"menu-catalog-api/internal/storage"
	"menu-catalog-api/internal/validate"
)

// MenuQuery carries the list and search parameters of the catalog endpoints.
type MenuQuery struct {
	Query       string
	Category    string
	MinPrice    *float64
	MaxPrice    *float64
	MaxCalories *int
	// Sort is "field" or "field:asc|desc".
	Sort    string
	Page    int
	PerPage int
}

func (s *Service) CreateMenuItem(ctx context.Context, body map[string]any) (*models.MenuItem, error) {
	draft, err := validate.MenuItem(body)
	if err != nil {
		return nil, err
	}
	item := draft.ToMenuItem()
	if err := s.store.CreateMenuItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	item, err := s.store.GetMenuItem(ctx, id)
	if err != nil {
		return nil, notFound(err, "Menu with id %d not found", id)
	}
	return item, nil
}

// UpdateMenuItem replaces every field of an existing item.
func (s *Service) UpdateMenuItem(ctx context.Context, id int64, body map[string]any) (*models.MenuItem, error) {
	draft, err := validate.MenuItem(body)
	if err != nil {
		return nil, err
	}
	item := draft.ToMenuItem()
	item.ID = id
	if err := s.store.UpdateMenuItem(ctx, item); err != nil {
		return nil, notFound(err, "Menu with id %d not found", id)
	}
	return item, nil
}

func (s *Service) DeleteMenuItem(ctx context.Context, id int64) error {
	if err := s.store.DeleteMenuItem(ctx, id); err != nil {
		return notFound(err, "Menu with id %d not found", id)
	}
	return nil
}

func (s *Service) ListMenu(ctx context.Context, q MenuQuery) ([]*models.MenuItem, storage.Pagination, error) {
	f := storage.MenuFilter{
		Query:       q.Query,
		Category:    strings.TrimSpace(q.Category),
		MinPrice:    q.MinPrice,
		MaxPrice:    q.MaxPrice,
		MaxCalories: q.MaxCalories,
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return nil, storage.Pagination{}, apperr.NewValidation("Invalid query parameters", "min_price must be <= max_price")
	}
	if q.Sort != "" {
		field, order, _ := strings.Cut(q.Sort, ":")
		field = strings.ToLower(strings.TrimSpace(field))
		order = strings.ToLower(strings.TrimSpace(order))
		if !storage.SortFields[field] || (order != "" && order != "asc" && order != "desc") {
			return nil, storage.Pagination{}, apperr.NewValidation("Invalid query parameters",
				fmt.Sprintf("sort must be field:asc|desc with field one of name, category, calories, price, created_at (got %q)", q.Sort))
		}
		f.SortField = field
		f.SortDesc = order == "desc"
	}
	f.Page, f.PerPage = s.page(q.Page, q.PerPage)

	items, total, err := s.store.ListMenuItems(ctx, f)
	if err != nil {
		return nil, storage.Pagination{}, err
	}
	return items, storage.NewPagination(total, f.Page, f.PerPage), nil
}

func (s *Service) SearchMenu(ctx context.Context, query string, page, perPage int) ([]*models.MenuItem, storage.Pagination, error) {
	if strings.TrimSpace(query) == "" {
		return nil, storage.Pagination{}, apperr.NewValidation("Invalid query parameters", "q is required")
	}
	return s.ListMenu(ctx, MenuQuery{Query: query, Page: page, PerPage: perPage})
}

const (
	GroupModeCount = "count"
	GroupModeList  = "list"

	defaultPerCategory = 5
)

// GroupByCategory returns category counts in count mode, or the newest
// perCategory items of each category in list mode.
func (s *Service) GroupByCategory(ctx context.Context, mode string, perCategory int) (interface{}, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", GroupModeCount:
		counts, err := s.store.CountByCategory(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[string]int64, len(counts))
		for _, c := range counts {
			out[c.Category] = c.Count
		}
		return out, nil
	case GroupModeList:
		if perCategory < 1 {
			perCategory = defaultPerCategory
		}
		if perCategory > s.opts.Paging.Max {
			perCategory = s.opts.Paging.Max
		}
		return s.store.ListByCategory(ctx, perCategory)
	default:
		return nil, apperr.NewValidation("Invalid query parameters", "mode must be count or list")
	}
}
