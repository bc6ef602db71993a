// internal/models/recipe.go
package models

import (
	"math"
	"sort"
	"strings"
	"time"

	"nutrition-log/internal/apperr"
)

type Recipe struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	Nutrients   Nutrients    `json:"nutrients"`
	Ingredients []Ingredient `json:"ingredients"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Ingredient is a recipe link resolved against its food.
type Ingredient struct {
	FoodID       int64     `json:"food_id"`
	FoodName     string    `json:"food_name"`
	QuantityG    float64   `json:"quantity_g"`
	Nutrients    Nutrients `json:"nutrients"`    // the food's per-100g values
	Contribution Nutrients `json:"contribution"` // absolute amounts for QuantityG
}

// Portion returns the ingredient as an aggregation input.
func (i Ingredient) Portion() Portion {
	return Portion{Nutrients: i.Nutrients, QuantityG: i.QuantityG}
}

type RecipeInput struct {
	Name                 string             `json:"name" description:"Unique recipe name"`
	Description          *string            `json:"description,omitempty" description:"Optional description"`
	IngredientQuantities map[string]float64 `json:"ingredient_quantities" description:"Food name to grams"`
}

// NamedQuantity is a component referenced by name with a quantity in grams.
type NamedQuantity struct {
	Name      string
	QuantityG float64
}

func (in RecipeInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Invalid("name", "must not be empty")
	}
	for name, qty := range in.IngredientQuantities {
		if strings.TrimSpace(name) == "" {
			return apperr.Invalid("ingredient_quantities", "food name must not be empty")
		}
		if err := validateQuantity("ingredient_quantities", name, qty); err != nil {
			return err
		}
	}
	return nil
}

// Ingredients returns the requested links ordered by food name.
func (in RecipeInput) Ingredients() []NamedQuantity {
	out := make([]NamedQuantity, 0, len(in.IngredientQuantities))
	for name, qty := range in.IngredientQuantities {
		out = append(out, NamedQuantity{Name: name, QuantityG: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func validateQuantity(field, name string, qty float64) error {
	if math.IsNaN(qty) || math.IsInf(qty, 0) || qty <= 0 {
		return apperr.Invalid(field, "quantity for %q must be > 0, got %g", name, qty)
	}
	return nil
}
