// internal/models/nutrients.go
package models

import (
	"encoding/json"
	"math"

	"nutrition-log/internal/apperr"
)

// Nutrients is a macronutrient vector. Food values are per 100 g; recipe and
// meal values are absolute totals.
type Nutrients struct {
	Kcal     float64 `json:"kcal"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// Portion is a per-100g vector eaten in a given quantity of grams.
type Portion struct {
	Nutrients Nutrients
	QuantityG float64
}

// Aggregate sums every portion scaled to its quantity. An empty slice yields
// the zero vector. Values are not rounded.
func Aggregate(items []Portion) Nutrients {
	var total Nutrients
	for _, item := range items {
		total = total.Add(item.Nutrients.Scale(item.QuantityG))
	}
	return total
}

// Scale converts a per-100g vector into the absolute amounts for quantityG grams.
func (n Nutrients) Scale(quantityG float64) Nutrients {
	return Nutrients{
		Kcal:     n.Kcal * quantityG / 100,
		ProteinG: n.ProteinG * quantityG / 100,
		CarbsG:   n.CarbsG * quantityG / 100,
		FatG:     n.FatG * quantityG / 100,
	}
}

func (n Nutrients) Add(o Nutrients) Nutrients {
	return Nutrients{
		Kcal:     n.Kcal + o.Kcal,
		ProteinG: n.ProteinG + o.ProteinG,
		CarbsG:   n.CarbsG + o.CarbsG,
		FatG:     n.FatG + o.FatG,
	}
}

// Sub removes o from n. Components never go below zero, so rounding left
// over from earlier additions cannot produce a negative total.
func (n Nutrients) Sub(o Nutrients) Nutrients {
	return Nutrients{
		Kcal:     math.Max(n.Kcal-o.Kcal, 0),
		ProteinG: math.Max(n.ProteinG-o.ProteinG, 0),
		CarbsG:   math.Max(n.CarbsG-o.CarbsG, 0),
		FatG:     math.Max(n.FatG-o.FatG, 0),
	}
}

// Validate rejects negative and non-finite values. field prefixes the name of
// the offending component in the returned error.
func (n Nutrients) Validate(field string) error {
	values := []struct {
		name string
		v    float64
	}{
		{"kcal", n.Kcal},
		{"protein_g", n.ProteinG},
		{"carbs_g", n.CarbsG},
		{"fat_g", n.FatG},
	}
	for _, value := range values {
		if math.IsNaN(value.v) || math.IsInf(value.v, 0) {
			return apperr.Invalid(field+"."+value.name, "must be a finite number")
		}
		if value.v < 0 {
			return apperr.Invalid(field+"."+value.name, "must be >= 0, got %g", value.v)
		}
	}
	return nil
}

// UnmarshalJSON requires all four components to be present.
func (n *Nutrients) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kcal     *float64 `json:"kcal"`
		ProteinG *float64 `json:"protein_g"`
		CarbsG   *float64 `json:"carbs_g"`
		FatG     *float64 `json:"fat_g"`
	}
	if string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Kcal == nil:
		return apperr.Invalid("nutrients.kcal", "is required")
	case raw.ProteinG == nil:
		return apperr.Invalid("nutrients.protein_g", "is required")
	case raw.CarbsG == nil:
		return apperr.Invalid("nutrients.carbs_g", "is required")
	case raw.FatG == nil:
		return apperr.Invalid("nutrients.fat_g", "is required")
	}
	*n = Nutrients{Kcal: *raw.Kcal, ProteinG: *raw.ProteinG, CarbsG: *raw.CarbsG, FatG: *raw.FatG}
	return nil
}
