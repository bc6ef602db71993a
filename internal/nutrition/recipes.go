// internal/nutrition/recipes.go
package nutrition

import (
	"context"
	"errors"
	"time"

	"nutrition-log/internal/apperr"
	"nutrition-log/internal/models"
	"nutrition-log/internal/storage"
)

type RecipeService struct {
	base
}

func (s *RecipeService) Create(ctx context.Context, in models.RecipeInput) (*models.Recipe, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var recipe *models.Recipe
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		if err := ensureRecipeNameFree(ctx, q, in.Name, 0); err != nil {
			return err
		}
		items, totals, err := resolveIngredients(ctx, q, in)
		if err != nil {
			return err
		}
		id, err := q.InsertRecipe(ctx, in.Name, in.Description, totals, s.now())
		if err != nil {
			return duplicateName("recipe", in.Name, err)
		}
		if err := q.ReplaceRecipeItems(ctx, id, items); err != nil {
			return err
		}
		recipe, err = q.GetRecipe(ctx, id)
		return err
	})
	if err != nil {
		return nil, wrap("create recipe", err)
	}

	s.log.Info("recipe created", "recipe_id", recipe.ID, "name", recipe.Name, "ingredients", len(recipe.Ingredients))
	return recipe, nil
}

func (s *RecipeService) Get(ctx context.Context, id int64) (*models.Recipe, error) {
	recipe, err := s.store.GetRecipe(ctx, id)
	if err != nil {
		return nil, wrap("get recipe", notFound("recipe", id, err))
	}
	return recipe, nil
}

func (s *RecipeService) List(ctx context.Context) ([]*models.Recipe, error) {
	recipes, err := s.store.ListRecipes(ctx)
	if err != nil {
		return nil, wrap("list recipes", err)
	}
	return recipes, nil
}

// Update replaces name, description and the whole ingredient set, and
// re-aggregates the cached totals.
func (s *RecipeService) Update(ctx context.Context, id int64, in models.RecipeInput) (*models.Recipe, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var recipe *models.Recipe
	var meals []int64
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetRecipe(ctx, id); err != nil {
			return notFound("recipe", id, err)
		}
		if err := ensureRecipeNameFree(ctx, q, in.Name, id); err != nil {
			return err
		}
		items, totals, err := resolveIngredients(ctx, q, in)
		if err != nil {
			return err
		}
		now := s.now()
		if err := q.UpdateRecipe(ctx, id, in.Name, in.Description, totals, now); err != nil {
			return duplicateName("recipe", in.Name, notFound("recipe", id, err))
		}
		if err := q.ReplaceRecipeItems(ctx, id, items); err != nil {
			return err
		}
		if s.opts.RecomputeDependents {
			if meals, err = q.MealsReferencing(ctx, models.ComponentRecipe, id); err != nil {
				return err
			}
			if err := recomputeMeals(ctx, q, meals, now); err != nil {
				return err
			}
		}
		recipe, err = q.GetRecipe(ctx, id)
		return err
	})
	if err != nil {
		return nil, wrap("update recipe", err)
	}

	s.log.Info("recipe updated", "recipe_id", id, "meals_recomputed", len(meals))
	return recipe, nil
}

// Delete removes every meal item pointing at the recipe, then the recipe
// itself. Meals that lost an item have the recipe's cached contribution
// subtracted, or are fully recomputed when RecomputeDependents is set.
func (s *RecipeService) Delete(ctx context.Context, id int64) error {
	var meals []int64
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		recipe, err := q.GetRecipe(ctx, id)
		if err != nil {
			return notFound("recipe", id, err)
		}

		if meals, err = q.MealsReferencing(ctx, models.ComponentRecipe, id); err != nil {
			return err
		}
		if _, err := q.DeleteMealItemsFor(ctx, models.ComponentRecipe, id); err != nil {
			return err
		}
		if err := q.DeleteRecipe(ctx, id); err != nil {
			return notFound("recipe", id, err)
		}
		if s.opts.RecomputeDependents {
			return recomputeMeals(ctx, q, meals, s.now())
		}
		return withdrawRecipe(ctx, q, meals, recipe.Nutrients, s.now())
	})
	if err != nil {
		return wrap("delete recipe", err)
	}

	s.log.Info("recipe deleted", "recipe_id", id, "meals_updated", len(meals))
	return nil
}

// Recompute refreshes the cached totals from the current food values.
func (s *RecipeService) Recompute(ctx context.Context, id int64) (*models.Recipe, error) {
	var recipe *models.Recipe
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		var err error
		recipe, err = recomputeRecipe(ctx, q, id, s.now())
		return err
	})
	if err != nil {
		return nil, wrap("recompute recipe", err)
	}

	s.log.Info("recipe recomputed", "recipe_id", id, "kcal", recipe.Nutrients.Kcal)
	return recipe, nil
}

// withdrawRecipe takes the recipe's cached contribution out of each meal's
// cached totals, leaving every other item at the value it was logged with.
func withdrawRecipe(ctx context.Context, q *storage.Queries, meals []int64, recipe models.Nutrients, now time.Time) error {
	contribution := recipe.Scale(models.RecipeReferenceQuantity)
	for _, mealID := range meals {
		meal, err := q.GetMeal(ctx, mealID)
		if err != nil {
			return notFound("meal", mealID, err)
		}
		if err := q.SetMealNutrients(ctx, mealID, meal.Nutrients.Sub(contribution), now); err != nil {
			return err
		}
	}
	return nil
}

// resolveIngredients looks up every requested food by name. Any miss fails
// the whole request before anything is written.
func resolveIngredients(ctx context.Context, q *storage.Queries, in models.RecipeInput) ([]storage.RecipeItem, models.Nutrients, error) {
	requested := in.Ingredients()
	items := make([]storage.RecipeItem, 0, len(requested))
	portions := make([]models.Portion, 0, len(requested))

	for _, nq := range requested {
		food, err := q.GetFoodByName(ctx, nq.Name)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, models.Nutrients{}, apperr.Invalid("ingredient_quantities", "ingredient %q not found", nq.Name)
		}
		if err != nil {
			return nil, models.Nutrients{}, err
		}
		items = append(items, storage.RecipeItem{FoodID: food.ID, QuantityG: nq.QuantityG})
		portions = append(portions, models.Portion{Nutrients: food.Nutrients, QuantityG: nq.QuantityG})
	}

	return items, models.Aggregate(portions), nil
}

func ensureRecipeNameFree(ctx context.Context, q *storage.Queries, name string, self int64) error {
	existing, err := q.GetRecipeByName(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != self {
		return apperr.Invalid("name", "recipe %q already exists", name)
	}
	return nil
}
