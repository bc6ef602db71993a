// internal/storage/recipes.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nutrition-log/internal/models"
)

// RecipeItem is one ingredient link as persisted.
type RecipeItem struct {
	FoodID    int64
	QuantityG float64
}

const recipeColumns = `id, name, description, kcal, protein_g, carbs_g, fat_g, created_at, updated_at`

func scanRecipe(sc scanner) (*models.Recipe, error) {
	recipe := &models.Recipe{Ingredients: []models.Ingredient{}}
	var description sql.NullString
	var createdAtStr, updatedAtStr string

	err := sc.Scan(
		&recipe.ID, &recipe.Name, &description,
		&recipe.Nutrients.Kcal, &recipe.Nutrients.ProteinG, &recipe.Nutrients.CarbsG, &recipe.Nutrients.FatG,
		&createdAtStr, &updatedAtStr)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		recipe.Description = &description.String
	}
	if recipe.CreatedAt, recipe.UpdatedAt, err = parseTimes(createdAtStr, updatedAtStr); err != nil {
		return nil, err
	}
	return recipe, nil
}

func (q *Queries) InsertRecipe(ctx context.Context, name string, description *string, n models.Nutrients, now time.Time) (int64, error) {
	query := `
        INSERT INTO recipes (name, description, kcal, protein_g, carbs_g, fat_g, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	res, err := q.q.ExecContext(ctx, query,
		name, nullString(description), n.Kcal, n.ProteinG, n.CarbsG, n.FatG,
		formatTime(now), formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to insert recipe: %w", translate(err))
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateRecipe(ctx context.Context, id int64, name string, description *string, n models.Nutrients, now time.Time) error {
	query := `
        UPDATE recipes
        SET name = ?, description = ?, kcal = ?, protein_g = ?, carbs_g = ?, fat_g = ?, updated_at = ?
        WHERE id = ?
    `
	res, err := q.q.ExecContext(ctx, query,
		name, nullString(description), n.Kcal, n.ProteinG, n.CarbsG, n.FatG, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("failed to update recipe %d: %w", id, translate(err))
	}
	return affectedOne(res)
}

// SetRecipeNutrients overwrites only the cached totals.
func (q *Queries) SetRecipeNutrients(ctx context.Context, id int64, n models.Nutrients, now time.Time) error {
	query := `UPDATE recipes SET kcal = ?, protein_g = ?, carbs_g = ?, fat_g = ?, updated_at = ? WHERE id = ?`
	res, err := q.q.ExecContext(ctx, query, n.Kcal, n.ProteinG, n.CarbsG, n.FatG, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("failed to update recipe %d nutrients: %w", id, err)
	}
	return affectedOne(res)
}

// ReplaceRecipeItems drops every ingredient link of the recipe and inserts items.
func (q *Queries) ReplaceRecipeItems(ctx context.Context, recipeID int64, items []RecipeItem) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM recipe_items WHERE recipe_id = ?`, recipeID); err != nil {
		return fmt.Errorf("failed to clear recipe items: %w", err)
	}

	query := `INSERT INTO recipe_items (recipe_id, food_id, quantity_g) VALUES (?, ?, ?)`
	for _, item := range items {
		if _, err := q.q.ExecContext(ctx, query, recipeID, item.FoodID, item.QuantityG); err != nil {
			return fmt.Errorf("failed to insert recipe item: %w", translate(err))
		}
	}
	return nil
}

func (q *Queries) GetRecipe(ctx context.Context, id int64) (*models.Recipe, error) {
	return q.getRecipe(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = ?`, id)
}

func (q *Queries) GetRecipeByName(ctx context.Context, name string) (*models.Recipe, error) {
	return q.getRecipe(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE name = ?`, name)
}

func (q *Queries) getRecipe(ctx context.Context, query string, arg any) (*models.Recipe, error) {
	recipe, err := scanRecipe(q.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	ingredients, err := q.loadIngredients(ctx, `WHERE ri.recipe_id = ?`, recipe.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ingredients for recipe %d: %w", recipe.ID, err)
	}
	if items, ok := ingredients[recipe.ID]; ok {
		recipe.Ingredients = items
	}
	return recipe, nil
}

func (q *Queries) ListRecipes(ctx context.Context) ([]*models.Recipe, error) {
	recipes, err := q.listRecipeHeaders(ctx)
	if err != nil {
		return nil, err
	}

	ingredients, err := q.loadIngredients(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load ingredients: %w", err)
	}
	for _, recipe := range recipes {
		if items, ok := ingredients[recipe.ID]; ok {
			recipe.Ingredients = items
		}
	}
	return recipes, nil
}

func (q *Queries) listRecipeHeaders(ctx context.Context) ([]*models.Recipe, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+recipeColumns+` FROM recipes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipes: %w", err)
	}
	defer rows.Close()

	recipes := []*models.Recipe{}
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		recipes = append(recipes, recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recipes: %w", err)
	}
	return recipes, nil
}

// loadIngredients resolves ingredient links against their foods, grouped by
// recipe id and ordered by food name.
func (q *Queries) loadIngredients(ctx context.Context, where string, args ...any) (map[int64][]models.Ingredient, error) {
	query := `
        SELECT ri.recipe_id, ri.food_id, f.name, ri.quantity_g, f.kcal, f.protein_g, f.carbs_g, f.fat_g
        FROM recipe_items ri
        JOIN foods f ON f.id = ri.food_id
    ` + where + `
        ORDER BY ri.recipe_id, f.name
    `
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipe items: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]models.Ingredient)
	for rows.Next() {
		var recipeID int64
		var ing models.Ingredient
		err := rows.Scan(&recipeID, &ing.FoodID, &ing.FoodName, &ing.QuantityG,
			&ing.Nutrients.Kcal, &ing.Nutrients.ProteinG, &ing.Nutrients.CarbsG, &ing.Nutrients.FatG)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe item: %w", err)
		}
		ing.Contribution = ing.Nutrients.Scale(ing.QuantityG)
		out[recipeID] = append(out[recipeID], ing)
	}
	return out, rows.Err()
}

// DeleteRecipe removes the recipe; its ingredient links cascade.
func (q *Queries) DeleteRecipe(ctx context.Context, id int64) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recipe %d: %w", id, translate(err))
	}
	return affectedOne(res)
}
