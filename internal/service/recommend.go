package service

import (
	"context"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"menu-catalog-api/internal/apperr"
	"menu-catalog-api/internal/extract"
	"menu-catalog-api/internal/models"
	"menu-catalog-api/internal/prompt"
)

// Recommend picks one catalog item per recommendation group. Picks that do
// not name a listed candidate are dropped, and the catalog's own values
// replace whatever the model echoed back. Nothing is persisted.
func (s *Service) Recommend(ctx context.Context, prefs models.Preferences) (*models.Recommendation, error) {
	if prefs.Budget < 0 {
		return nil, apperr.NewValidation("Validation failed", "budget must be >= 0")
	}

	byCategory, err := s.store.ListByCategory(ctx, s.opts.RecommendPerCategory)
	if err != nil {
		return nil, err
	}
	candidates := groupCandidates(byCategory, s.opts.RecommendPerCategory)
	if len(candidates) == 0 {
		return nil, apperr.NotFound("No menu items available for recommendation")
	}

	p := prompt.Recommendation(prefs, candidates, s.opts.RecommendPerCategory)
	res, err := s.complete(ctx, "recommend", p, recommendParams, extract.ShapeObject)
	if err != nil {
		return nil, err
	}
	obj := res.Object()

	out := &models.Recommendation{
		Recommendations: map[models.CategoryGroup]*models.RecommendedItem{},
		Model:           s.gen.Model(),
	}
	out.Summary, _ = obj["summary"].(string)

	picks, _ := obj["recommendations"].(map[string]any)
	for _, g := range models.RecommendationGroups {
		pick, ok := picks[string(g)].(map[string]any)
		if !ok {
			continue
		}
		item := matchCandidate(pick, candidates[g])
		if item == nil {
			log.WithFields(log.Fields{
				"event": "recommendation_dropped",
				"group": g,
				"id":    pick["id"],
				"name":  pick["name"],
			}).Warn("Model recommended an item that is not in the candidate list")
			continue
		}
		reason, _ := pick["reason"].(string)
		out.Recommendations[g] = &models.RecommendedItem{MenuItem: *item, Reason: reason}
		out.TotalPrice += item.Price
		out.TotalCalories += item.Calories
	}
	return out, nil
}

// groupCandidates folds catalog categories into recommendation groups, keeping
// at most limit items per group.
func groupCandidates(byCategory map[string][]*models.MenuItem, limit int) map[models.CategoryGroup][]*models.MenuItem {
	out := map[models.CategoryGroup][]*models.MenuItem{}
	// sorted category order keeps the prompt deterministic
	for _, category := range sortedKeys(byCategory) {
		g := models.ClassifyCategory(category)
		if g == models.GroupOther {
			continue
		}
		for _, item := range byCategory[category] {
			if len(out[g]) >= limit {
				break
			}
			out[g] = append(out[g], item)
		}
	}
	return out
}

func matchCandidate(pick map[string]any, candidates []*models.MenuItem) *models.MenuItem {
	if id, ok := pick["id"].(float64); ok {
		for _, c := range candidates {
			if float64(c.ID) == id {
				return c
			}
		}
		return nil
	}
	if name, ok := pick["name"].(string); ok {
		for _, c := range candidates {
			if strings.EqualFold(strings.TrimSpace(name), c.Name) {
				return c
			}
		}
	}
	return nil
}

func sortedKeys(m map[string][]*models.MenuItem) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
