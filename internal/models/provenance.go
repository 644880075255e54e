package models

import (
	"encoding/json"
	"time"
)

type ProvenanceKind string

const (
	KindMenuGeneration     ProvenanceKind = "menu_generation"
	KindCalorieCalculation ProvenanceKind = "calorie_calculation"
)

type GenerationMetadata struct {
	GeneratedAt    time.Time `json:"generated_at"`
	Model          string    `json:"model"`
	ItemCount      int       `json:"item_count"`
	RequestedCount int       `json:"requested_count,omitempty"`
	Strategy       string    `json:"strategy,omitempty"`
}

// ProvenanceRecord is the audit entry written once per successful generation
// or calculation. Input and Payload are stored as-is and never updated.
type ProvenanceRecord struct {
	ID        int64              `json:"id"`
	Kind      ProvenanceKind     `json:"kind"`
	InputText string             `json:"input_text"`
	Input     json.RawMessage    `json:"input"`
	Payload   json.RawMessage    `json:"payload"`
	Metadata  GenerationMetadata `json:"generation_metadata"`
	Total     *float64           `json:"total,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type ProvenanceStats struct {
	Count        int64    `json:"count"`
	UniqueInputs int64    `json:"unique_inputs"`
	AvgTotal     *float64 `json:"avg_total,omitempty"`
	MinTotal     *float64 `json:"min_total,omitempty"`
	MaxTotal     *float64 `json:"max_total,omitempty"`
}

type GenerationStats struct {
	TotalGenerations int64 `json:"total_generations"`
	UniquePrompts    int64 `json:"unique_prompts"`
}

type CalculationStats struct {
	TotalCalculations int64    `json:"total_calculations"`
	AvgCalories       *float64 `json:"avg_calories"`
	MinCalories       *float64 `json:"min_calories"`
	MaxCalories       *float64 `json:"max_calories"`
}
