// Package validate checks free-form structured values against the menu and
// calorie schemas. Every violation is collected; a validator never stops at
// the first problem.
package validate

import (
	"fmt"
	"math"
	"strings"

	"menu-catalog-api/internal/apperr"
	"menu-catalog-api/internal/models"
)

// violations accumulates field errors for one value.
type violations []string

func (v *violations) add(format string, args ...interface{}) {
	*v = append(*v, fmt.Sprintf(format, args...))
}

func (v violations) err(message string) error {
	if len(v) == 0 {
		return nil
	}
	return apperr.NewValidation(message, v...)
}

// MenuItem converts an extracted object into a draft menu item.
func MenuItem(obj map[string]any) (models.MenuItemDraft, error) {
	var (
		draft models.MenuItemDraft
		errs  violations
	)

	draft.Name = requiredString(obj, "", "name", &errs)
	draft.Category = requiredString(obj, "", "category", &errs)

	if calories, ok := number(obj, "", "calories", &errs); ok {
		switch {
		case calories != math.Trunc(calories):
			errs.add("calories must be an integer")
		case calories < 0:
			errs.add("calories must be >= 0")
		case calories > math.MaxInt32:
			errs.add("calories is too large")
		default:
			draft.Calories = int(calories)
		}
	}

	if price, ok := number(obj, "", "price", &errs); ok {
		if price < 0 {
			errs.add("price must be >= 0")
		} else {
			draft.Price = price
		}
	}

	draft.Ingredients = stringList(obj, "ingredients", &errs)

	if raw, present := obj["description"]; present && raw != nil {
		if s, ok := raw.(string); ok {
			draft.Description = strings.TrimSpace(s)
		} else {
			errs.add("description must be a string")
		}
	}

	if err := errs.err("invalid menu item"); err != nil {
		return models.MenuItemDraft{}, err
	}
	return draft, nil
}

// CalorieAnalysis converts an extracted object into a calorie analysis.
func CalorieAnalysis(obj map[string]any) (models.CalorieAnalysis, error) {
	var (
		out  models.CalorieAnalysis
		errs violations
	)

	if total, ok := number(obj, "", "total_calories", &errs); ok {
		if total < 0 {
			errs.add("total_calories must be >= 0")
		}
		out.TotalCalories = total
	}

	switch raw := obj["nutritional_breakdown"].(type) {
	case nil:
		errs.add("nutritional_breakdown is required")
	case map[string]any:
		out.NutritionalBreakdown = make(map[string]string, len(raw))
		for k, v := range raw {
			out.NutritionalBreakdown[k] = displayString(v)
		}
	default:
		errs.add("nutritional_breakdown must be an object")
	}

	for i, m := range objectList(obj, "menu_details", &errs) {
		p := fmt.Sprintf("menu_details[%d].", i)
		out.MenuDetails = append(out.MenuDetails, models.MenuDetail{
			Name:             requiredString(m, p, "name", &errs),
			Calories:         nonNegative(m, p, "calories", &errs),
			Quantity:         nonNegative(m, p, "quantity", &errs),
			SubtotalCalories: nonNegative(m, p, "subtotal_calories", &errs),
		})
	}

	for i, m := range objectList(obj, "exercise_recommendations", &errs) {
		p := fmt.Sprintf("exercise_recommendations[%d].", i)
		ex := models.ExerciseRecommendation{
			Name:                  requiredString(m, p, "name", &errs),
			DurationMinutes:       nonNegative(m, p, "duration_minutes", &errs),
			CaloriesBurnedPerHour: nonNegative(m, p, "calories_burned_per_hour", &errs),
			Description:           requiredString(m, p, "description", &errs),
		}
		s, _ := m["intensity"].(string)
		if in := models.Intensity(strings.ToLower(strings.TrimSpace(s))); in.Valid() {
			ex.Intensity = in
		} else {
			errs.add("%sintensity must be one of low, moderate, high", p)
		}
		if tips, ok := m["tips"].(string); ok {
			ex.Tips = tips
		}
		out.ExerciseRecommendations = append(out.ExerciseRecommendations, ex)
	}

	out.HealthNotes = optionalString(obj, "health_notes", &errs)
	out.Summary = optionalString(obj, "summary", &errs)

	if err := errs.err("invalid calorie analysis"); err != nil {
		return models.CalorieAnalysis{}, err
	}
	return out, nil
}

// CalorieRequest checks the parts of a calculate-calories body that binding
// tags cannot express.
func CalorieRequest(req models.CalorieRequest) error {
	var errs violations
	if len(req.MenuItems) == 0 {
		errs.add("menu_items must contain at least one item")
	}
	for i, item := range req.MenuItems {
		if item.ID <= 0 && strings.TrimSpace(item.Name) == "" {
			errs.add("menu_items[%d] needs an id or a name", i)
		}
		if item.Quantity < 0 {
			errs.add("menu_items[%d].quantity must be >= 1", i)
		}
	}
	return errs.err("invalid calorie request")
}

func requiredString(obj map[string]any, prefix, key string, errs *violations) string {
	raw, present := obj[key]
	if !present || raw == nil {
		errs.add("%s%s is required", prefix, key)
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		errs.add("%s%s must be a string", prefix, key)
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		errs.add("%s%s must not be empty", prefix, key)
	}
	return s
}

func optionalString(obj map[string]any, key string, errs *violations) string {
	raw, present := obj[key]
	if !present || raw == nil {
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		errs.add("%s must be a string", key)
	}
	return s
}

func number(obj map[string]any, prefix, key string, errs *violations) (float64, bool) {
	raw, present := obj[key]
	if !present || raw == nil {
		errs.add("%s%s is required", prefix, key)
		return 0, false
	}
	var f float64
	switch n := raw.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		errs.add("%s%s must be a number", prefix, key)
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		errs.add("%s%s must be a finite number", prefix, key)
		return 0, false
	}
	return f, true
}

func nonNegative(obj map[string]any, prefix, key string, errs *violations) float64 {
	f, ok := number(obj, prefix, key, errs)
	if !ok {
		return 0
	}
	if f < 0 {
		errs.add("%s%s must be >= 0", prefix, key)
		return 0
	}
	return f
}

func stringList(obj map[string]any, key string, errs *violations) []string {
	raw, present := obj[key]
	if !present || raw == nil {
		errs.add("%s is required", key)
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		errs.add("%s must be a list of strings", key)
		return nil
	}
	if len(list) == 0 {
		errs.add("%s must not be empty", key)
		return nil
	}
	out := make([]string, 0, len(list))
	for i, v := range list {
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			errs.add("%s[%d] must be a non-empty string", key, i)
			continue
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

func objectList(obj map[string]any, key string, errs *violations) []map[string]any {
	raw, present := obj[key]
	if !present || raw == nil {
		errs.add("%s is required", key)
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		errs.add("%s must be a list", key)
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for i, v := range list {
		m, ok := v.(map[string]any)
		if !ok {
			errs.add("%s[%d] must be an object", key, i)
			continue
		}
		out = append(out, m)
	}
	return out
}

// displayString renders a breakdown value; models sometimes emit numbers
// where a label like "45g" is expected.
func displayString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) {
			return fmt.Sprintf("%.0f", t)
		}
		return fmt.Sprintf("%g", t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
