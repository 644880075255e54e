// Package prompt renders the instructions sent to the language model for
// each use case. Builders are pure: the same input always yields the same text.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"menu-catalog-api/internal/models"
)

const jsonOnly = "Respond with ONLY the JSON value described below. Do not add explanations, " +
	"markdown, or code fences before or after it."

const menuItemSchema = `[
  {
    "name": "<string, dish name>",
    "category": "<string, e.g. main-course, beverage, dessert>",
    "calories": <integer kcal per serving, >= 0>,
    "price": <number in IDR, >= 0>,
    "ingredients": ["<string>", "..."],
    "description": "<string, one or two sentences>"
  }
]`

const recommendationSchema = `{
  "recommendations": {
    "main_course": {"id": <number, id from the list>, "name": "<exact name from the list>", "reason": "<why it fits the preferences>"},
    "beverage": {"id": <number, id from the list>, "name": "<exact name from the list>", "reason": "<why it fits the preferences>"},
    "dessert": {"id": <number, id from the list>, "name": "<exact name from the list>", "reason": "<why it fits the preferences>"}
  },
  "total_price": <number>,
  "total_calories": <number>,
  "summary": "<why these items work well together>"
}`

const calorieSchema = `{
  "total_calories": <number>,
  "nutritional_breakdown": {
    "protein": "<grams>g",
    "carbohydrates": "<grams>g",
    "fats": "<grams>g",
    "fiber": "<grams>g"
  },
  "menu_details": [
    {"name": "<menu name>", "calories": <number>, "quantity": <number>, "subtotal_calories": <number>}
  ],
  "exercise_recommendations": [
    {
      "name": "<exercise name>",
      "duration_minutes": <number>,
      "intensity": "low|moderate|high",
      "calories_burned_per_hour": <number>,
      "description": "<brief description>",
      "tips": "<helpful tips>"
    }
  ],
  "health_notes": "<general health advice>",
  "summary": "<brief summary>"
}`

// MenuGeneration asks for exactly count new menu items matching userPrompt.
func MenuGeneration(userPrompt string, count int) string {
	var b strings.Builder
	b.WriteString("You are a creative chef designing items for a restaurant menu.\n\n")
	fmt.Fprintf(&b, "Create exactly %d menu items based on this request:\n%s\n\n", count, strings.TrimSpace(userPrompt))
	b.WriteString("Each item must have a realistic calorie count and price, and a non-empty ingredient list.\n\n")
	b.WriteString(jsonOnly + "\n\n")
	fmt.Fprintf(&b, "Return a JSON array of %d objects with this exact structure:\n", count)
	b.WriteString(menuItemSchema)
	b.WriteString("\n")
	return b.String()
}

type candidate struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Calories    int      `json:"calories"`
	Ingredients []string `json:"ingredients"`
}

var groupTitles = map[models.CategoryGroup]string{
	models.GroupMainCourse: "Main Courses/Foods",
	models.GroupBeverage:   "Beverages/Drinks",
	models.GroupDessert:    "Desserts/Snacks",
}

// Recommendation asks the model to pick one item per group from candidates.
// At most perCategory items are listed for each group.
func Recommendation(prefs models.Preferences, candidates map[models.CategoryGroup][]*models.MenuItem, perCategory int) string {
	var b strings.Builder
	b.WriteString("You are a professional food recommendation system. Based on the user's preferences and ")
	b.WriteString("the available menu items, recommend a complete meal with one main course, one beverage and one dessert.\n\n")
	b.WriteString("IMPORTANT: You MUST choose from the available menu items listed below. Do NOT create new items.\n\n")

	b.WriteString("User Preferences:\n")
	writePreferences(&b, prefs)
	b.WriteString("\n")

	for _, g := range models.RecommendationGroups {
		items := candidates[g]
		if perCategory > 0 && len(items) > perCategory {
			items = items[:perCategory]
		}
		list := make([]candidate, 0, len(items))
		for _, m := range items {
			list = append(list, candidate{
				ID: m.ID, Name: m.Name, Category: m.Category,
				Price: m.Price, Calories: m.Calories, Ingredients: m.Ingredients,
			})
		}
		data, _ := json.MarshalIndent(list, "", "  ")
		fmt.Fprintf(&b, "Available %s:\n%s\n\n", groupTitles[g], data)
	}

	b.WriteString("Rules:\n")
	b.WriteString("1. Select items ONLY from the lists above and use their exact id and name.\n")
	b.WriteString("2. Avoid items containing ingredients the user dislikes.\n")
	b.WriteString("3. Respect all dietary restrictions.\n")
	b.WriteString("4. Stay within the budget if one is given.\n")
	b.WriteString("5. Leave a group out if its list is empty.\n\n")
	b.WriteString(jsonOnly + "\n\n")
	b.WriteString("Return a JSON object with this exact structure:\n")
	b.WriteString(recommendationSchema)
	b.WriteString("\n")
	return b.String()
}

func writePreferences(b *strings.Builder, p models.Preferences) {
	n := b.Len()
	if p.Budget > 0 {
		fmt.Fprintf(b, "- Budget: Rp %.0f\n", p.Budget)
	}
	list := func(label string, v []string) {
		if len(v) > 0 {
			fmt.Fprintf(b, "- %s: %s\n", label, strings.Join(v, ", "))
		}
	}
	list("Dietary Restrictions", p.DietaryRestrictions)
	list("Dislikes", p.Dislikes)
	list("Preferences/Likes", p.Preferences)
	text := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			fmt.Fprintf(b, "- %s: %s\n", label, v)
		}
	}
	text("Meal Type", p.MealType)
	text("Preferred Cuisine", p.Cuisine)
	text("Occasion", p.Occasion)
	text("Additional Notes", p.AdditionalNotes)
	if b.Len() == n {
		b.WriteString("- No specific preferences\n")
	}
}

type selection struct {
	Name        string   `json:"name"`
	Calories    int      `json:"calories"`
	Ingredients []string `json:"ingredients"`
	Quantity    int      `json:"quantity"`
}

// CalorieAnalysis asks for a calorie and exercise breakdown of the selected items.
func CalorieAnalysis(selections []models.MenuSelection) string {
	list := make([]selection, 0, len(selections))
	for _, s := range selections {
		q := s.Quantity
		if q < 1 {
			q = 1
		}
		ingredients := s.Ingredients
		if ingredients == nil {
			ingredients = []string{}
		}
		list = append(list, selection{Name: s.Name, Calories: s.Calories, Ingredients: ingredients, Quantity: q})
	}
	data, _ := json.MarshalIndent(list, "", "  ")

	var b strings.Builder
	b.WriteString("You are a professional nutritionist and fitness advisor. Analyze the following menu items ")
	b.WriteString("and provide a calorie calculation and exercise recommendations.\n\n")
	fmt.Fprintf(&b, "Selected Menu Items:\n%s\n\n", data)
	b.WriteString(jsonOnly + "\n\n")
	b.WriteString("Return a JSON object with this exact structure:\n")
	b.WriteString(calorieSchema)
	b.WriteString("\n\nProvide 3-5 exercise recommendations. Calculate TOTAL calories from all menu items ")
	b.WriteString("considering quantities. Intensity must be exactly one of low, moderate or high.\n")
	return b.String()
}
