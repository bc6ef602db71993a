// internal/models/meal.go
package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"nutrition-log/internal/apperr"
)

// RecipeReferenceQuantity is the quantity recorded for a whole-recipe meal
// item. Recipe totals are absolute, so scaling them by it is the identity.
const RecipeReferenceQuantity = 100.0

type ComponentType string

const (
	ComponentFood   ComponentType = "food"
	ComponentRecipe ComponentType = "recipe"
)

func (t ComponentType) Valid() bool {
	return t == ComponentFood || t == ComponentRecipe
}

type Meal struct {
	ID        int64      `json:"id"`
	MealDate  Date       `json:"meal_date"`
	Nutrients Nutrients  `json:"nutrients"`
	Items     []MealItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type MealItem struct {
	ComponentType ComponentType `json:"component_type"`
	ComponentID   int64         `json:"component_id"`
	Name          string        `json:"name,omitempty"`
	Quantity      float64       `json:"quantity"`
}

type MealInput struct {
	MealDate Date          `json:"meal_date" description:"Calendar date (YYYY-MM-DD)"`
	Recipes  []string      `json:"recipes" description:"Names of whole recipes eaten"`
	Foods    []FoodPortion `json:"foods" description:"Single-key objects mapping a food name to grams"`
}

// FoodPortion is one {"food name": grams} entry of a meal payload.
type FoodPortion NamedQuantity

func (p FoodPortion) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]float64{p.Name: p.QuantityG})
}

func (p *FoodPortion) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return apperr.Invalid("foods", "entry must not be null")
	}
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return apperr.Invalid("foods", "entry must map a food name to grams")
	}
	if len(raw) != 1 {
		return apperr.Invalid("foods", "entry must have exactly one food, got %d", len(raw))
	}
	for name, qty := range raw {
		*p = FoodPortion{Name: name, QuantityG: qty}
	}
	return nil
}

func (in MealInput) Validate() error {
	if in.MealDate.IsZero() {
		return apperr.Invalid("meal_date", "is required")
	}
	seenRecipes := make(map[string]struct{}, len(in.Recipes))
	for _, name := range in.Recipes {
		if strings.TrimSpace(name) == "" {
			return apperr.Invalid("recipes", "recipe name must not be empty")
		}
		if _, dup := seenRecipes[name]; dup {
			return apperr.Invalid("recipes", "recipe %q listed more than once", name)
		}
		seenRecipes[name] = struct{}{}
	}
	seenFoods := make(map[string]struct{}, len(in.Foods))
	for _, food := range in.Foods {
		if strings.TrimSpace(food.Name) == "" {
			return apperr.Invalid("foods", "food name must not be empty")
		}
		if _, dup := seenFoods[food.Name]; dup {
			return apperr.Invalid("foods", "food %q listed more than once", food.Name)
		}
		seenFoods[food.Name] = struct{}{}
		if err := validateQuantity("foods", food.Name, food.QuantityG); err != nil {
			return err
		}
	}
	return nil
}
