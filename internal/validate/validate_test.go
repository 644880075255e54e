package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"

	"menu-catalog-api/internal/apperr"
	"menu-catalog-api/internal/models"
)

func validItem() map[string]any {
	return map[string]any{
		"name":        "  Nasi Goreng ",
		"category":    "main-course",
		"calories":    float64(650),
		"price":       float64(35000),
		"ingredients": []any{"rice", "egg"},
		"description": "Fried rice",
	}
}

func TestMenuItemValid(t *testing.T) {
	draft, err := MenuItem(validItem())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.Name != "Nasi Goreng" || draft.Calories != 650 || draft.Price != 35000 {
		t.Fatalf("unexpected draft %+v", draft)
	}
	if len(draft.Ingredients) != 2 || draft.Description != "Fried rice" {
		t.Fatalf("unexpected draft %+v", draft)
	}
}

func TestMenuItemAccumulatesAllViolations(t *testing.T) {
	item := validItem()
	item["name"] = ""
	item["calories"] = float64(-5)
	item["ingredients"] = []any{}

	_, err := MenuItem(item)
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Details) != 3 {
		t.Fatalf("expected 3 violations, got %v", verr.Details)
	}
	for _, field := range []string{"name", "calories", "ingredients"} {
		found := false
		for _, d := range verr.Details {
			if strings.HasPrefix(d, field) {
				found = true
			}
		}
		if !found {
			t.Fatalf("no violation reported for %s: %v", field, verr.Details)
		}
	}
}

func TestMenuItemRejectsFractionalCalories(t *testing.T) {
	item := validItem()
	item["calories"] = 1.5
	_, err := MenuItem(item)
	if err == nil || !strings.Contains(err.Error(), "calories must be an integer") {
		t.Fatalf("expected integer violation, got %v", err)
	}
}

func TestMenuItemTypeErrors(t *testing.T) {
	_, err := MenuItem(map[string]any{
		"name":        42.0,
		"category":    "drink",
		"calories":    "100",
		"price":       float64(-1),
		"ingredients": []any{"ice", 3.0},
		"description": true,
	})
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{
		"name must be a string",
		"calories must be a number",
		"price must be >= 0",
		"ingredients[1] must be a non-empty string",
		"description must be a string",
	}
	if strings.Join(verr.Details, "|") != strings.Join(want, "|") {
		t.Fatalf("got %v, want %v", verr.Details, want)
	}
}

func validAnalysis() map[string]any {
	return map[string]any{
		"total_calories":        float64(800),
		"nutritional_breakdown": map[string]any{"protein": "30g", "carbs": float64(90)},
		"menu_details": []any{
			map[string]any{"name": "Nasi Goreng", "calories": float64(650), "quantity": float64(1), "subtotal_calories": float64(650)},
		},
		"exercise_recommendations": []any{
			map[string]any{
				"name": "Jogging", "duration_minutes": float64(30), "intensity": "Moderate",
				"calories_burned_per_hour": float64(600), "description": "Easy pace",
			},
		},
		"health_notes": "Balanced",
		"summary":      "Fine",
	}
}

func TestCalorieAnalysisValid(t *testing.T) {
	a, err := CalorieAnalysis(validAnalysis())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.TotalCalories != 800 || a.NutritionalBreakdown["carbs"] != "90" {
		t.Fatalf("unexpected analysis %+v", a)
	}
	if a.ExerciseRecommendations[0].Intensity != models.IntensityModerate {
		t.Fatalf("intensity not normalised: %q", a.ExerciseRecommendations[0].Intensity)
	}
}

func TestCalorieAnalysisViolations(t *testing.T) {
	obj := validAnalysis()
	obj["total_calories"] = float64(-1)
	ex := obj["exercise_recommendations"].([]any)[0].(map[string]any)
	ex["intensity"] = "extreme"
	delete(obj, "menu_details")

	_, err := CalorieAnalysis(obj)
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{
		"total_calories must be >= 0",
		"menu_details is required",
		"exercise_recommendations[0].intensity must be one of low, moderate, high",
	}
	if strings.Join(verr.Details, "|") != strings.Join(want, "|") {
		t.Fatalf("got %v, want %v", verr.Details, want)
	}
}

func TestCalorieRequest(t *testing.T) {
	err := CalorieRequest(models.CalorieRequest{MenuItems: []models.CalorieRequestItem{
		{ID: 1},
		{Name: "Es Teh", Quantity: 2},
		{Quantity: 1},
	}})
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) || len(verr.Details) != 1 || verr.Details[0] != "menu_items[2] needs an id or a name" {
		t.Fatalf("unexpected result %v", err)
	}
	if err := CalorieRequest(models.CalorieRequest{MenuItems: []models.CalorieRequestItem{{ID: 3}}}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestBindingDetailsUsesJSONPaths(t *testing.T) {
	v := validator.New()
	v.SetTagName("binding")
	RegisterTagNames(v)
	err := v.Struct(models.CalorieRequest{MenuItems: []models.CalorieRequestItem{{ID: 1, Quantity: -2}}})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	details := BindingDetails(err)
	if len(details) != 1 || details[0] != "menu_items[0].quantity must be >= 1" {
		t.Fatalf("unexpected details %v", details)
	}

	err = v.Struct(models.CalorieRequest{})
	details = BindingDetails(err)
	if len(details) != 1 || details[0] != "menu_items is required" {
		t.Fatalf("unexpected details %v", details)
	}

	type listQuery struct {
		MaxCalories *int `form:"max_cal" binding:"omitempty,gte=0"`
	}
	negative := -1
	details = BindingDetails(v.Struct(listQuery{MaxCalories: &negative}))
	if len(details) != 1 || details[0] != "max_cal must be >= 0" {
		t.Fatalf("unexpected details %v", details)
	}
}
