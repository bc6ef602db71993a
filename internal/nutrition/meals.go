// internal/nutrition/meals.go
package nutrition

import (
	"context"
	"errors"

	"nutrition-log/internal/apperr"
	"nutrition-log/internal/models"
	"nutrition-log/internal/storage"
)

type MealService struct {
	base
}

func (s *MealService) Create(ctx context.Context, in models.MealInput) (*models.Meal, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var meal *models.Meal
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		items, totals, err := resolveMealItems(ctx, q, in)
		if err != nil {
			return err
		}
		id, err := q.InsertMeal(ctx, in.MealDate, totals, s.now())
		if err != nil {
			return err
		}
		if err := q.ReplaceMealItems(ctx, id, items); err != nil {
			return err
		}
		meal, err = q.GetMeal(ctx, id)
		return err
	})
	if err != nil {
		return nil, wrap("create meal", err)
	}

	s.log.Info("meal created", "meal_id", meal.ID, "meal_date", meal.MealDate.String(), "items", len(meal.Items))
	return meal, nil
}

func (s *MealService) Get(ctx context.Context, id int64) (*models.Meal, error) {
	meal, err := s.store.GetMeal(ctx, id)
	if err != nil {
		return nil, wrap("get meal", notFound("meal", id, err))
	}
	return meal, nil
}

func (s *MealService) List(ctx context.Context) ([]*models.Meal, error) {
	meals, err := s.store.ListMeals(ctx)
	if err != nil {
		return nil, wrap("list meals", err)
	}
	return meals, nil
}

// ListByDate returns every meal logged on date; an empty slice when none.
func (s *MealService) ListByDate(ctx context.Context, date models.Date) ([]*models.Meal, error) {
	meals, err := s.store.ListMealsByDate(ctx, date)
	if err != nil {
		return nil, wrap("list meals by date", err)
	}
	return meals, nil
}

// Update replaces the date and every component of the meal.
func (s *MealService) Update(ctx context.Context, id int64, in models.MealInput) (*models.Meal, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var meal *models.Meal
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetMeal(ctx, id); err != nil {
			return notFound("meal", id, err)
		}
		items, totals, err := resolveMealItems(ctx, q, in)
		if err != nil {
			return err
		}
		if err := q.UpdateMeal(ctx, id, in.MealDate, totals, s.now()); err != nil {
			return notFound("meal", id, err)
		}
		if err := q.ReplaceMealItems(ctx, id, items); err != nil {
			return err
		}
		meal, err = q.GetMeal(ctx, id)
		return err
	})
	if err != nil {
		return nil, wrap("update meal", err)
	}

	s.log.Info("meal updated", "meal_id", id, "items", len(meal.Items))
	return meal, nil
}

func (s *MealService) Delete(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		return notFound("meal", id, q.DeleteMeal(ctx, id))
	})
	if err != nil {
		return wrap("delete meal", err)
	}

	s.log.Info("meal deleted", "meal_id", id)
	return nil
}

// Recompute refreshes the cached totals from the current recipe totals and
// food values.
func (s *MealService) Recompute(ctx context.Context, id int64) (*models.Meal, error) {
	var meal *models.Meal
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		var err error
		meal, err = recomputeMeal(ctx, q, id, s.now())
		return err
	})
	if err != nil {
		return nil, wrap("recompute meal", err)
	}

	s.log.Info("meal recomputed", "meal_id", id, "kcal", meal.Nutrients.Kcal)
	return meal, nil
}

// resolveMealItems looks up recipes then foods by name. Whole recipes are
// recorded with the reference quantity; foods with their grams.
func resolveMealItems(ctx context.Context, q *storage.Queries, in models.MealInput) ([]models.MealItem, models.Nutrients, error) {
	items := make([]models.MealItem, 0, len(in.Recipes)+len(in.Foods))
	portions := make([]models.Portion, 0, cap(items))

	for _, name := range in.Recipes {
		recipe, err := q.GetRecipeByName(ctx, name)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, models.Nutrients{}, apperr.Invalid("recipes", "recipe %q not found", name)
		}
		if err != nil {
			return nil, models.Nutrients{}, err
		}
		items = append(items, models.MealItem{
			ComponentType: models.ComponentRecipe,
			ComponentID:   recipe.ID,
			Name:          recipe.Name,
			Quantity:      models.RecipeReferenceQuantity,
		})
		portions = append(portions, models.Portion{Nutrients: recipe.Nutrients, QuantityG: models.RecipeReferenceQuantity})
	}

	for _, fp := range in.Foods {
		food, err := q.GetFoodByName(ctx, fp.Name)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, models.Nutrients{}, apperr.Invalid("foods", "food %q not found", fp.Name)
		}
		if err != nil {
			return nil, models.Nutrients{}, err
		}
		items = append(items, models.MealItem{
			ComponentType: models.ComponentFood,
			ComponentID:   food.ID,
			Name:          food.Name,
			Quantity:      fp.QuantityG,
		})
		portions = append(portions, models.Portion{Nutrients: food.Nutrients, QuantityG: fp.QuantityG})
	}

	return items, models.Aggregate(portions), nil
}
