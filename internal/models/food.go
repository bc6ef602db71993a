// internal/models/food.go
package models

import (
	"math"
	"strings"
	"time"

	"nutrition-log/internal/apperr"
)

type Food struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Category  *string   `json:"category"`
	Nutrients Nutrients `json:"nutrients"` // per 100 g
	Unit      *float64  `json:"unit"`      // grams per piece
	Market    *string   `json:"market"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FoodInput is the full-replace payload for creating or updating a food.
type FoodInput struct {
	Name      string     `json:"name" description:"Unique food name (case-sensitive)"`
	Category  *string    `json:"category,omitempty" description:"Free-form category"`
	Nutrients *Nutrients `json:"nutrients" description:"kcal, protein_g, carbs_g and fat_g per 100 g"`
	Unit      *float64   `json:"unit,omitempty" description:"Grams per piece"`
	Market    *string    `json:"market,omitempty" description:"Where the food is bought"`
}

func (in FoodInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Invalid("name", "must not be empty")
	}
	if in.Nutrients == nil {
		return apperr.Invalid("nutrients", "is required")
	}
	if err := in.Nutrients.Validate("nutrients"); err != nil {
		return err
	}
	if in.Unit != nil {
		u := *in.Unit
		if math.IsNaN(u) || math.IsInf(u, 0) || u <= 0 {
			return apperr.Invalid("unit", "must be > 0, got %g", u)
		}
	}
	return nil
}
