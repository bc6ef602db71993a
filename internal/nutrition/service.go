// internal/nutrition/service.go
package nutrition

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"nutrition-log/internal/apperr"
	"nutrition-log/internal/logger"
	"nutrition-log/internal/models"
	"nutrition-log/internal/storage"
)

type Options struct {
	// RecomputeDependents makes food and recipe updates refresh the cached
	// totals of every recipe and meal built on them. Off by default: cached
	// totals reflect the values at the time each recipe or meal was written.
	RecomputeDependents bool
	Now                 func() time.Time
}

// Service groups the three entity services over one store.
type Service struct {
	Foods   *FoodService
	Recipes *RecipeService
	Meals   *MealService
}

type base struct {
	store *storage.SQLiteStorage
	log   *logger.Logger
	opts  Options
}

func New(store *storage.SQLiteStorage, log *logger.Logger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	b := base{store: store, log: log, opts: opts}
	return &Service{
		Foods:   &FoodService{base: b},
		Recipes: &RecipeService{base: b},
		Meals:   &MealService{base: b},
	}
}

func (b *base) now() time.Time {
	return b.opts.Now()
}

// wrap adds the operation name to unexpected failures; domain errors pass
// through unchanged.
func wrap(op string, err error) error {
	if err == nil || apperr.IsExpected(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func notFound(entity string, id int64, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(entity, id)
	}
	return err
}

// recomputeRecipe re-aggregates a recipe from the current values of its
// foods and persists the result.
func recomputeRecipe(ctx context.Context, q *storage.Queries, id int64, now time.Time) (*models.Recipe, error) {
	recipe, err := q.GetRecipe(ctx, id)
	if err != nil {
		return nil, notFound("recipe", id, err)
	}

	portions := make([]models.Portion, 0, len(recipe.Ingredients))
	for _, ing := range recipe.Ingredients {
		portions = append(portions, ing.Portion())
	}
	recipe.Nutrients = models.Aggregate(portions)

	if err := q.SetRecipeNutrients(ctx, id, recipe.Nutrients, now); err != nil {
		return nil, err
	}
	recipe.UpdatedAt = now.UTC()
	return recipe, nil
}

// recomputeMeal re-aggregates a meal from the current cached totals of its
// recipes and the current values of its foods.
func recomputeMeal(ctx context.Context, q *storage.Queries, id int64, now time.Time) (*models.Meal, error) {
	meal, err := q.GetMeal(ctx, id)
	if err != nil {
		return nil, notFound("meal", id, err)
	}

	portions := make([]models.Portion, 0, len(meal.Items))
	for _, item := range meal.Items {
		var n models.Nutrients
		switch item.ComponentType {
		case models.ComponentRecipe:
			recipe, err := q.GetRecipe(ctx, item.ComponentID)
			if err != nil {
				return nil, fmt.Errorf("meal %d: recipe %d: %w", id, item.ComponentID, err)
			}
			n = recipe.Nutrients
		case models.ComponentFood:
			food, err := q.GetFood(ctx, item.ComponentID)
			if err != nil {
				return nil, fmt.Errorf("meal %d: food %d: %w", id, item.ComponentID, err)
			}
			n = food.Nutrients
		default:
			return nil, fmt.Errorf("meal %d: unknown component type %q", id, item.ComponentType)
		}
		portions = append(portions, models.Portion{Nutrients: n, QuantityG: item.Quantity})
	}
	meal.Nutrients = models.Aggregate(portions)

	if err := q.SetMealNutrients(ctx, id, meal.Nutrients, now); err != nil {
		return nil, err
	}
	meal.UpdatedAt = now.UTC()
	return meal, nil
}

func recomputeMeals(ctx context.Context, q *storage.Queries, ids []int64, now time.Time) error {
	for _, id := range ids {
		if _, err := recomputeMeal(ctx, q, id, now); err != nil {
			return err
		}
	}
	return nil
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
