package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"menu-catalog-api/internal/apperr"
	"menu-catalog-api/internal/extract"
	"menu-catalog-api/internal/generation"
	"menu-catalog-api/internal/models"
	"menu-catalog-api/internal/prompt"
	"menu-catalog-api/internal/storage"
	"menu-catalog-api/internal/validate"
)

var (
	generateParams  = generation.Params{Temperature: 0.9, MaxOutputTokens: 4096}
	recommendParams = generation.Params{Temperature: 0.8, MaxOutputTokens: 3048, JSONOutput: true}
	calorieParams   = generation.Params{Temperature: 0.7, MaxOutputTokens: 8192, JSONOutput: true}
)

const (
	stageValidation = "validation"
	stageInsert     = "insert"

	reasonInsertFailed = "catalog insert failed"
)

// HistoryQuery filters the provenance listings.
type HistoryQuery struct {
	Query       string
	StartDate   string
	EndDate     string
	MinCalories *float64
	MaxCalories *float64
	Page        int
	PerPage     int
}

type generationInput struct {
	Prompt string `json:"prompt"`
	Count  int    `json:"count"`
}

// AutoGenerate asks the model for new menu items, records the generation and
// inserts every valid item into the catalog. Invalid drafts and failed inserts
// are skipped and reported; the call only fails outright when no draft is valid.
func (s *Service) AutoGenerate(ctx context.Context, req models.AutoGenerateRequest) (*models.AutoGenerateResult, error) {
	userPrompt := strings.TrimSpace(req.Prompt)
	if userPrompt == "" {
		return nil, apperr.NewValidation("Validation failed", "prompt is required")
	}
	count := req.Count
	if count == 0 {
		count = s.opts.DefaultGeneratedItems
	}
	if count < 1 || count > s.opts.MaxGeneratedItems {
		return nil, apperr.NewValidation("Validation failed",
			fmt.Sprintf("count must be between 1 and %d", s.opts.MaxGeneratedItems))
	}

	res, err := s.complete(ctx, "auto_generate", prompt.MenuGeneration(userPrompt, count), generateParams, extract.ShapeArray)
	if err != nil {
		return nil, err
	}

	raw := res.Array()
	var (
		drafts  []models.MenuItemDraft
		sources []int // position of each draft in the model output
		skipped []models.SkippedItem
	)
	for i, el := range raw {
		obj, ok := el.(map[string]any)
		if !ok {
			skipped = append(skipped, models.SkippedItem{Index: i, Stage: stageValidation, Reasons: []string{"item is not an object"}})
			continue
		}
		draft, err := validate.MenuItem(obj)
		if err != nil {
			name, _ := obj["name"].(string)
			skipped = append(skipped, models.SkippedItem{Index: i, Name: name, Stage: stageValidation, Reasons: reasons(err)})
			continue
		}
		drafts = append(drafts, draft)
		sources = append(sources, i)
	}

	if len(drafts) == 0 {
		details := []string{"the model returned no valid menu items"}
		for _, sk := range skipped {
			details = append(details, fmt.Sprintf("item %d: %s", sk.Index, strings.Join(sk.Reasons, "; ")))
		}
		return nil, apperr.NewValidation("Generated content failed validation", details...)
	}
	if len(drafts) > count {
		log.WithFields(log.Fields{
			"event":     "generation_over_count",
			"requested": count,
			"returned":  len(drafts),
		}).Warn("Model returned more items than requested, keeping the first ones")
		drafts, sources = drafts[:count], sources[:count]
	}

	input, _ := json.Marshal(generationInput{Prompt: userPrompt, Count: count})
	payload, err := json.Marshal(drafts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode generated items: %w", err)
	}
	rec := &models.ProvenanceRecord{
		Kind:      models.KindMenuGeneration,
		InputText: userPrompt,
		Input:     input,
		Payload:   payload,
		Metadata: models.GenerationMetadata{
			GeneratedAt:    time.Now().UTC(),
			Model:          s.gen.Model(),
			ItemCount:      len(drafts),
			RequestedCount: count,
			Strategy:       res.Strategy,
		},
	}
	if err := s.store.SaveRecord(ctx, rec); err != nil {
		return nil, err
	}

	result := &models.AutoGenerateResult{
		GenerationID:   rec.ID,
		Prompt:         userPrompt,
		RequestedCount: count,
		GeneratedCount: len(raw),
		Items:          []*models.MenuItem{},
		Skipped:        skipped,
	}
	for i, d := range drafts {
		item := d.ToMenuItem()
		if err := s.store.CreateMenuItem(ctx, item); err != nil {
			log.WithFields(log.Fields{
				"event":         "catalog_insert_failed",
				"generation_id": rec.ID,
				"name":          d.Name,
				"index":         sources[i],
				"error":         err.Error(),
			}).Error("Failed to insert generated menu item")
			result.Skipped = append(result.Skipped, models.SkippedItem{Index: sources[i], Name: d.Name, Stage: stageInsert, Reasons: []string{reasonInsertFailed}})
			continue
		}
		result.Items = append(result.Items, item)
	}
	result.CreatedCount = len(result.Items)

	log.WithFields(log.Fields{
		"event":         "menu_generated",
		"generation_id": rec.ID,
		"created":       result.CreatedCount,
		"skipped":       len(result.Skipped),
	}).Info("Menu generation completed")
	return result, nil
}

func reasons(err error) []string {
	var verr *apperr.ValidationError
	if errors.As(err, &verr) && len(verr.Details) > 0 {
		return verr.Details
	}
	return []string{err.Error()}
}

func (s *Service) historyFilter(kind models.ProvenanceKind, q HistoryQuery) (storage.ProvenanceFilter, error) {
	from, err := parseDateBound("start_date", q.StartDate, false)
	if err != nil {
		return storage.ProvenanceFilter{}, err
	}
	before, err := parseDateBound("end_date", q.EndDate, true)
	if err != nil {
		return storage.ProvenanceFilter{}, err
	}
	if from != nil && before != nil && !from.Before(*before) {
		return storage.ProvenanceFilter{}, apperr.NewValidation("Invalid query parameters", "start_date must not be after end_date")
	}
	f := storage.ProvenanceFilter{
		Kind:          kind,
		Query:         q.Query,
		CreatedFrom:   from,
		CreatedBefore: before,
		MinTotal:      q.MinCalories,
		MaxTotal:      q.MaxCalories,
	}
	f.Page, f.PerPage = s.page(q.Page, q.PerPage)
	return f, nil
}

func (s *Service) listHistory(ctx context.Context, kind models.ProvenanceKind, q HistoryQuery) ([]*models.ProvenanceRecord, storage.Pagination, error) {
	f, err := s.historyFilter(kind, q)
	if err != nil {
		return nil, storage.Pagination{}, err
	}
	recs, total, err := s.store.ListRecords(ctx, f)
	if err != nil {
		return nil, storage.Pagination{}, err
	}
	return recs, storage.NewPagination(total, f.Page, f.PerPage), nil
}

func (s *Service) ListGenerations(ctx context.Context, q HistoryQuery) ([]*models.ProvenanceRecord, storage.Pagination, error) {
	q.MinCalories, q.MaxCalories = nil, nil
	return s.listHistory(ctx, models.KindMenuGeneration, q)
}

func (s *Service) GetGeneration(ctx context.Context, id int64) (*models.ProvenanceRecord, error) {
	rec, err := s.store.GetRecord(ctx, models.KindMenuGeneration, id)
	if err != nil {
		return nil, notFound(err, "Generated menu with id %d not found", id)
	}
	return rec, nil
}

func (s *Service) DeleteGeneration(ctx context.Context, id int64) error {
	if err := s.store.DeleteRecord(ctx, models.KindMenuGeneration, id); err != nil {
		return notFound(err, "Generated menu with id %d not found", id)
	}
	return nil
}

func (s *Service) GenerationStats(ctx context.Context) (*models.GenerationStats, error) {
	st, err := s.store.RecordStats(ctx, models.KindMenuGeneration)
	if err != nil {
		return nil, err
	}
	return &models.GenerationStats{TotalGenerations: st.Count, UniquePrompts: st.UniqueInputs}, nil
}

func (s *Service) RecentGenerations(ctx context.Context, limit int) ([]*models.ProvenanceRecord, error) {
	return s.store.RecentRecords(ctx, models.KindMenuGeneration, s.recentLimit(limit))
}

func (s *Service) recentLimit(limit int) int {
	if limit < 1 {
		return s.opts.Paging.Default
	}
	if limit > s.opts.Paging.Max {
		return s.opts.Paging.Max
	}
	return limit
}
