// internal/nutrition/foods.go
package nutrition

import (
	"context"
	"errors"
	"strings"
	"time"

	"nutrition-log/internal/apperr"
	"nutrition-log/internal/models"
	"nutrition-log/internal/storage"
)

type FoodService struct {
	base
}

// Propagation reports which cached aggregates were refreshed after a food
// changed.
type Propagation struct {
	FoodID  int64   `json:"food_id"`
	Recipes []int64 `json:"recipes"`
	Meals   []int64 `json:"meals"`
}

func (s *FoodService) Create(ctx context.Context, in models.FoodInput) (*models.Food, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var food *models.Food
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		if err := ensureFoodNameFree(ctx, q, in.Name, 0); err != nil {
			return err
		}
		id, err := q.InsertFood(ctx, in, s.now())
		if err != nil {
			return duplicateName("food", in.Name, err)
		}
		food, err = q.GetFood(ctx, id)
		return err
	})
	if err != nil {
		return nil, wrap("create food", err)
	}

	s.log.Info("food created", "food_id", food.ID, "name", food.Name)
	return food, nil
}

func (s *FoodService) Get(ctx context.Context, id int64) (*models.Food, error) {
	food, err := s.store.GetFood(ctx, id)
	if err != nil {
		return nil, wrap("get food", notFound("food", id, err))
	}
	return food, nil
}

func (s *FoodService) List(ctx context.Context) ([]*models.Food, error) {
	foods, err := s.store.ListFoods(ctx)
	if err != nil {
		return nil, wrap("list foods", err)
	}
	return foods, nil
}

// Update fully replaces a food. Cached recipe and meal totals are refreshed
// only when RecomputeDependents is set.
func (s *FoodService) Update(ctx context.Context, id int64, in models.FoodInput) (*models.Food, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var food *models.Food
	var prop *Propagation
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetFood(ctx, id); err != nil {
			return notFound("food", id, err)
		}
		if err := ensureFoodNameFree(ctx, q, in.Name, id); err != nil {
			return err
		}
		now := s.now()
		if err := q.UpdateFood(ctx, id, in, now); err != nil {
			return duplicateName("food", in.Name, notFound("food", id, err))
		}
		if s.opts.RecomputeDependents {
			var err error
			if prop, err = propagateFood(ctx, q, id, now); err != nil {
				return err
			}
		}
		var err error
		food, err = q.GetFood(ctx, id)
		return err
	})
	if err != nil {
		return nil, wrap("update food", err)
	}

	if prop != nil {
		s.log.Info("food updated", "food_id", id, "recipes_recomputed", len(prop.Recipes), "meals_recomputed", len(prop.Meals))
	} else {
		s.log.Info("food updated", "food_id", id)
	}
	return food, nil
}

// Delete removes a food that no recipe ingredient and no meal item refers to.
func (s *FoodService) Delete(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		food, err := q.GetFood(ctx, id)
		if err != nil {
			return notFound("food", id, err)
		}

		recipes, err := q.RecipesUsingFood(ctx, id)
		if err != nil {
			return err
		}
		if len(recipes) > 0 {
			names := make([]string, 0, len(recipes))
			for _, r := range recipes {
				names = append(names, r.Name)
			}
			return apperr.Integrity("food %q is an ingredient of recipes: %s", food.Name, strings.Join(names, ", "))
		}

		meals, err := q.MealsReferencing(ctx, models.ComponentFood, id)
		if err != nil {
			return err
		}
		if len(meals) > 0 {
			return apperr.Integrity("food %q is logged in %d meal(s)", food.Name, len(meals))
		}

		if err := q.DeleteFood(ctx, id); err != nil {
			if errors.Is(err, storage.ErrReferenced) {
				return apperr.Integrity("food %q is still referenced", food.Name)
			}
			return notFound("food", id, err)
		}
		return nil
	})
	if err != nil {
		return wrap("delete food", err)
	}

	s.log.Info("food deleted", "food_id", id)
	return nil
}

// PropagateNutrients recomputes every recipe using the food, then every meal
// that holds the food or one of those recipes, in one transaction.
func (s *FoodService) PropagateNutrients(ctx context.Context, id int64) (*Propagation, error) {
	var prop *Propagation
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetFood(ctx, id); err != nil {
			return notFound("food", id, err)
		}
		var err error
		prop, err = propagateFood(ctx, q, id, s.now())
		return err
	})
	if err != nil {
		return nil, wrap("propagate food", err)
	}

	s.log.Info("food propagated", "food_id", id, "recipes_recomputed", len(prop.Recipes), "meals_recomputed", len(prop.Meals))
	return prop, nil
}

func propagateFood(ctx context.Context, q *storage.Queries, foodID int64, now time.Time) (*Propagation, error) {
	prop := &Propagation{FoodID: foodID, Recipes: []int64{}, Meals: []int64{}}

	recipes, err := q.RecipesUsingFood(ctx, foodID)
	if err != nil {
		return nil, err
	}
	mealIDs, err := q.MealsReferencing(ctx, models.ComponentFood, foodID)
	if err != nil {
		return nil, err
	}

	for _, r := range recipes {
		if _, err := recomputeRecipe(ctx, q, r.ID, now); err != nil {
			return nil, err
		}
		prop.Recipes = append(prop.Recipes, r.ID)

		ids, err := q.MealsReferencing(ctx, models.ComponentRecipe, r.ID)
		if err != nil {
			return nil, err
		}
		mealIDs = append(mealIDs, ids...)
	}

	prop.Meals = uniqueSorted(mealIDs)
	if err := recomputeMeals(ctx, q, prop.Meals, now); err != nil {
		return nil, err
	}
	return prop, nil
}

// ensureFoodNameFree fails when another food than self already uses name.
func ensureFoodNameFree(ctx context.Context, q *storage.Queries, name string, self int64) error {
	existing, err := q.GetFoodByName(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != self {
		return apperr.Invalid("name", "food %q already exists", name)
	}
	return nil
}

func duplicateName(entity, name string, err error) error {
	if errors.Is(err, storage.ErrDuplicate) {
		return apperr.Invalid("name", "%s %q already exists", entity, name)
	}
	return err
}
