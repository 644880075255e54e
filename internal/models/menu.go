// internal/models/menu.go
package models

import (
	"strings"
	"time"
)

type MenuItem struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Calories    int       `json:"calories"`
	Price       float64   `json:"price"`
	Ingredients []string  `json:"ingredients"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MenuItemDraft is a menu item that passed validation but has not been
// written to the catalog yet.
type MenuItemDraft struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Calories    int      `json:"calories"`
	Price       float64  `json:"price"`
	Ingredients []string `json:"ingredients"`
	Description string   `json:"description,omitempty"`
}

func (d MenuItemDraft) ToMenuItem() *MenuItem {
	ingredients := make([]string, len(d.Ingredients))
	copy(ingredients, d.Ingredients)
	return &MenuItem{
		Name:        d.Name,
		Category:    d.Category,
		Calories:    d.Calories,
		Price:       d.Price,
		Ingredients: ingredients,
		Description: d.Description,
	}
}

type CategoryGroup string

const (
	GroupMainCourse CategoryGroup = "main_course"
	GroupBeverage   CategoryGroup = "beverage"
	GroupDessert    CategoryGroup = "dessert"
	GroupOther      CategoryGroup = "other"
)

// RecommendationGroups lists the groups a recommendation picks one item from,
// in the order they are presented to the model.
var RecommendationGroups = []CategoryGroup{GroupMainCourse, GroupBeverage, GroupDessert}

var categoryAliases = map[string]CategoryGroup{
	"main-course": GroupMainCourse,
	"main_course": GroupMainCourse,
	"main course": GroupMainCourse,
	"main":        GroupMainCourse,
	"food":        GroupMainCourse,
	"foods":       GroupMainCourse,
	"beverage":    GroupBeverage,
	"beverages":   GroupBeverage,
	"drink":       GroupBeverage,
	"drinks":      GroupBeverage,
	"dessert":     GroupDessert,
	"desserts":    GroupDessert,
	"snack":       GroupDessert,
	"snacks":      GroupDessert,
}

// ClassifyCategory maps a free-form catalog category onto a recommendation group.
func ClassifyCategory(category string) CategoryGroup {
	if g, ok := categoryAliases[strings.ToLower(strings.TrimSpace(category))]; ok {
		return g
	}
	return GroupOther
}
