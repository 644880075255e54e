package models

type AutoGenerateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	Count  int    `json:"count" binding:"omitempty,gte=1"`
}

// SkippedItem reports a generated draft that did not make it into the catalog.
// Index is the draft's position in the model output for both stages.
type SkippedItem struct {
	Index   int      `json:"index"`
	Name    string   `json:"name,omitempty"`
	Stage   string   `json:"stage"` // "validation" or "insert"
	Reasons []string `json:"reasons"`
}

type AutoGenerateResult struct {
	GenerationID   int64         `json:"generation_id"`
	Prompt         string        `json:"prompt"`
	RequestedCount int           `json:"requested_count"`
	GeneratedCount int           `json:"generated_count"`
	CreatedCount   int           `json:"created_count"`
	Items          []*MenuItem   `json:"items"`
	Skipped        []SkippedItem `json:"skipped,omitempty"`
}

// Preferences is the free-form body of a recommendation request.
type Preferences struct {
	Budget              float64  `json:"budget,omitempty"`
	DietaryRestrictions []string `json:"dietary_restrictions,omitempty"`
	Dislikes            []string `json:"dislikes,omitempty"`
	Preferences         []string `json:"preferences,omitempty"`
	MealType            string   `json:"meal_type,omitempty"`
	Cuisine             string   `json:"cuisine,omitempty"`
	Occasion            string   `json:"occasion,omitempty"`
	AdditionalNotes     string   `json:"additional_notes,omitempty"`
}

type RecommendedItem struct {
	MenuItem
	Reason string `json:"reason,omitempty"`
}

type Recommendation struct {
	Recommendations map[CategoryGroup]*RecommendedItem `json:"recommendations"`
	TotalPrice      float64                            `json:"total_price"`
	TotalCalories   int                                `json:"total_calories"`
	Summary         string                             `json:"summary,omitempty"`
	Model           string                             `json:"model"`
}
