package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"menu-catalog-api/internal/extract"
	"menu-catalog-api/internal/models"
	"menu-catalog-api/internal/prompt"
	"menu-catalog-api/internal/storage"
	"menu-catalog-api/internal/validate"
)

// CalculateCalories resolves the requested items against the catalog, asks
// the model for a calorie and exercise analysis and records the result.
func (s *Service) CalculateCalories(ctx context.Context, req models.CalorieRequest) (*models.CalorieCalculation, error) {
	if err := validate.CalorieRequest(req); err != nil {
		return nil, err
	}

	selections := make([]models.MenuSelection, 0, len(req.MenuItems))
	for _, ref := range req.MenuItems {
		item, err := s.resolveMenuItem(ctx, ref)
		if err != nil {
			return nil, err
		}
		qty := ref.Quantity
		if qty < 1 {
			qty = 1
		}
		selections = append(selections, models.MenuSelection{
			ID:          item.ID,
			Name:        item.Name,
			Calories:    item.Calories,
			Ingredients: item.Ingredients,
			Quantity:    qty,
		})
	}

	res, err := s.complete(ctx, "calculate_calories", prompt.CalorieAnalysis(selections), calorieParams, extract.ShapeObject)
	if err != nil {
		return nil, err
	}
	analysis, err := validate.CalorieAnalysis(res.Object())
	if err != nil {
		return nil, err
	}

	input, err := json.Marshal(map[string]interface{}{"menu_items": selections})
	if err != nil {
		return nil, fmt.Errorf("failed to encode calculation input: %w", err)
	}
	payload, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to encode calorie analysis: %w", err)
	}
	total := analysis.TotalCalories
	rec := &models.ProvenanceRecord{
		Kind:      models.KindCalorieCalculation,
		InputText: selectionSummary(selections),
		Input:     input,
		Payload:   payload,
		Total:     &total,
		Metadata: models.GenerationMetadata{
			GeneratedAt: time.Now().UTC(),
			Model:       s.gen.Model(),
			ItemCount:   len(selections),
			Strategy:    res.Strategy,
		},
	}
	if err := s.store.SaveRecord(ctx, rec); err != nil {
		return nil, err
	}

	return &models.CalorieCalculation{
		CalculationID:   rec.ID,
		MenuItems:       selections,
		CalorieAnalysis: analysis,
	}, nil
}

func (s *Service) resolveMenuItem(ctx context.Context, ref models.CalorieRequestItem) (*models.MenuItem, error) {
	if ref.ID > 0 {
		item, err := s.store.GetMenuItem(ctx, ref.ID)
		if err != nil {
			return nil, notFound(err, "Menu with id %d not found", ref.ID)
		}
		return item, nil
	}
	name := strings.TrimSpace(ref.Name)
	item, err := s.store.FindMenuItemByName(ctx, name)
	if err != nil {
		return nil, notFound(err, "Menu with name %q not found", name)
	}
	return item, nil
}

// selectionSummary is the searchable text stored with a calculation, e.g.
// "Nasi Goreng x1, Es Teh x2".
func selectionSummary(selections []models.MenuSelection) string {
	parts := make([]string, 0, len(selections))
	for _, sel := range selections {
		parts = append(parts, fmt.Sprintf("%s x%d", sel.Name, sel.Quantity))
	}
	return strings.Join(parts, ", ")
}

func (s *Service) ListCalculations(ctx context.Context, q HistoryQuery) ([]*models.ProvenanceRecord, storage.Pagination, error) {
	return s.listHistory(ctx, models.KindCalorieCalculation, q)
}

func (s *Service) GetCalculation(ctx context.Context, id int64) (*models.ProvenanceRecord, error) {
	rec, err := s.store.GetRecord(ctx, models.KindCalorieCalculation, id)
	if err != nil {
		return nil, notFound(err, "Calorie calculation with id %d not found", id)
	}
	return rec, nil
}

func (s *Service) DeleteCalculation(ctx context.Context, id int64) error {
	if err := s.store.DeleteRecord(ctx, models.KindCalorieCalculation, id); err != nil {
		return notFound(err, "Calorie calculation with id %d not found", id)
	}
	return nil
}

func (s *Service) CalculationStats(ctx context.Context) (*models.CalculationStats, error) {
	st, err := s.store.RecordStats(ctx, models.KindCalorieCalculation)
	if err != nil {
		return nil, err
	}
	return &models.CalculationStats{
		TotalCalculations: st.Count,
		AvgCalories:       st.AvgTotal,
		MinCalories:       st.MinTotal,
		MaxCalories:       st.MaxTotal,
	}, nil
}
