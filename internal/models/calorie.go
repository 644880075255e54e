package models

type Intensity string

const (
	IntensityLow      Intensity = "low"
	IntensityModerate Intensity = "moderate"
	IntensityHigh     Intensity = "high"
)

func (i Intensity) Valid() bool {
	switch i {
	case IntensityLow, IntensityModerate, IntensityHigh:
		return true
	}
	return false
}

// MenuSelection is one catalog item resolved from a calorie calculation request.
type MenuSelection struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Calories    int      `json:"calories"`
	Ingredients []string `json:"ingredients"`
	Quantity    int      `json:"quantity"`
}

type MenuDetail struct {
	Name             string  `json:"name"`
	Calories         float64 `json:"calories"`
	Quantity         float64 `json:"quantity"`
	SubtotalCalories float64 `json:"subtotal_calories"`
}

type ExerciseRecommendation struct {
	Name                  string    `json:"name"`
	DurationMinutes       float64   `json:"duration_minutes"`
	Intensity             Intensity `json:"intensity"`
	CaloriesBurnedPerHour float64   `json:"calories_burned_per_hour"`
	Description           string    `json:"description"`
	Tips                  string    `json:"tips,omitempty"`
}

type CalorieAnalysis struct {
	TotalCalories           float64                  `json:"total_calories"`
	NutritionalBreakdown    map[string]string        `json:"nutritional_breakdown"`
	MenuDetails             []MenuDetail             `json:"menu_details"`
	ExerciseRecommendations []ExerciseRecommendation `json:"exercise_recommendations"`
	HealthNotes             string                   `json:"health_notes"`
	Summary                 string                   `json:"summary"`
}

// CalorieCalculation is what the calculate-calories use case returns.
type CalorieCalculation struct {
	CalculationID int64           `json:"calculation_id"`
	MenuItems     []MenuSelection `json:"menu_items"`
	CalorieAnalysis
}

// CalorieRequestItem references a catalog item by id or, failing that, by name.
type CalorieRequestItem struct {
	ID       int64  `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Quantity int    `json:"quantity,omitempty" binding:"omitempty,gte=1"`
}

type CalorieRequest struct {
	MenuItems []CalorieRequestItem `json:"menu_items" binding:"required,min=1,dive"`
}
