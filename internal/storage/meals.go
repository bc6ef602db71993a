// internal/storage/meals.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nutrition-log/internal/models"
)

const mealColumns = `id, meal_date, kcal, protein_g, carbs_g, fat_g, created_at, updated_at`

func scanMeal(sc scanner) (*models.Meal, error) {
	meal := &models.Meal{Items: []models.MealItem{}}
	var mealDateStr, createdAtStr, updatedAtStr string

	err := sc.Scan(
		&meal.ID, &mealDateStr,
		&meal.Nutrients.Kcal, &meal.Nutrients.ProteinG, &meal.Nutrients.CarbsG, &meal.Nutrients.FatG,
		&createdAtStr, &updatedAtStr)
	if err != nil {
		return nil, err
	}

	if meal.MealDate, err = models.ParseDate(mealDateStr); err != nil {
		return nil, fmt.Errorf("failed to parse meal_date: %w", err)
	}
	if meal.CreatedAt, meal.UpdatedAt, err = parseTimes(createdAtStr, updatedAtStr); err != nil {
		return nil, err
	}
	return meal, nil
}

func (q *Queries) InsertMeal(ctx context.Context, date models.Date, n models.Nutrients, now time.Time) (int64, error) {
	query := `
        INSERT INTO meals (meal_date, kcal, protein_g, carbs_g, fat_g, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	res, err := q.q.ExecContext(ctx, query,
		date.String(), n.Kcal, n.ProteinG, n.CarbsG, n.FatG, formatTime(now), formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to insert meal: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateMeal(ctx context.Context, id int64, date models.Date, n models.Nutrients, now time.Time) error {
	query := `
        UPDATE meals
        SET meal_date = ?, kcal = ?, protein_g = ?, carbs_g = ?, fat_g = ?, updated_at = ?
        WHERE id = ?
    `
	res, err := q.q.ExecContext(ctx, query,
		date.String(), n.Kcal, n.ProteinG, n.CarbsG, n.FatG, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("failed to update meal %d: %w", id, err)
	}
	return affectedOne(res)
}

// SetMealNutrients overwrites only the cached totals.
func (q *Queries) SetMealNutrients(ctx context.Context, id int64, n models.Nutrients, now time.Time) error {
	query := `UPDATE meals SET kcal = ?, protein_g = ?, carbs_g = ?, fat_g = ?, updated_at = ? WHERE id = ?`
	res, err := q.q.ExecContext(ctx, query, n.Kcal, n.ProteinG, n.CarbsG, n.FatG, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("failed to update meal %d nutrients: %w", id, err)
	}
	return affectedOne(res)
}

// ReplaceMealItems drops every item of the meal and inserts items in order.
func (q *Queries) ReplaceMealItems(ctx context.Context, mealID int64, items []models.MealItem) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM meal_items WHERE meal_id = ?`, mealID); err != nil {
		return fmt.Errorf("failed to clear meal items: %w", err)
	}

	query := `INSERT INTO meal_items (meal_id, component_type, component_id, quantity) VALUES (?, ?, ?, ?)`
	for _, item := range items {
		_, err := q.q.ExecContext(ctx, query, mealID, string(item.ComponentType), item.ComponentID, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert meal item: %w", translate(err))
		}
	}
	return nil
}

func (q *Queries) GetMeal(ctx context.Context, id int64) (*models.Meal, error) {
	meal, err := scanMeal(q.q.QueryRowContext(ctx, `SELECT `+mealColumns+` FROM meals WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meal %d: %w", id, err)
	}

	items, err := q.loadMealItems(ctx, `WHERE mi.meal_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load items for meal %d: %w", id, err)
	}
	if list, ok := items[id]; ok {
		meal.Items = list
	}
	return meal, nil
}

func (q *Queries) ListMeals(ctx context.Context) ([]*models.Meal, error) {
	return q.listMeals(ctx, "")
}

// ListMealsByDate returns the meals whose date equals date exactly.
func (q *Queries) ListMealsByDate(ctx context.Context, date models.Date) ([]*models.Meal, error) {
	return q.listMeals(ctx, `WHERE meal_date = ?`, date.String())
}

func (q *Queries) listMeals(ctx context.Context, where string, args ...any) ([]*models.Meal, error) {
	meals, err := q.listMealHeaders(ctx, where, args...)
	if err != nil {
		return nil, err
	}

	itemWhere := ""
	if where != "" {
		itemWhere = `WHERE mi.meal_id IN (SELECT id FROM meals ` + where + `)`
	}
	items, err := q.loadMealItems(ctx, itemWhere, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load meal items: %w", err)
	}
	for _, meal := range meals {
		if list, ok := items[meal.ID]; ok {
			meal.Items = list
		}
	}
	return meals, nil
}

func (q *Queries) listMealHeaders(ctx context.Context, where string, args ...any) ([]*models.Meal, error) {
	query := `SELECT ` + mealColumns + ` FROM meals ` + where + ` ORDER BY meal_date, id`
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	defer rows.Close()

	meals := []*models.Meal{}
	for rows.Next() {
		meal, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		meals = append(meals, meal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meals: %w", err)
	}
	return meals, nil
}

// loadMealItems returns items grouped by meal id in insertion order, each
// carrying the current name of its food or recipe.
func (q *Queries) loadMealItems(ctx context.Context, where string, args ...any) (map[int64][]models.MealItem, error) {
	query := `
        SELECT mi.meal_id, mi.component_type, mi.component_id, mi.quantity, COALESCE(f.name, r.name, '')
        FROM meal_items mi
        LEFT JOIN foods f ON mi.component_type = 'food' AND f.id = mi.component_id
        LEFT JOIN recipes r ON mi.component_type = 'recipe' AND r.id = mi.component_id
    ` + where + `
        ORDER BY mi.meal_id, mi.rowid
    `
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query meal items: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]models.MealItem)
	for rows.Next() {
		var mealID int64
		var item models.MealItem
		var componentType string
		if err := rows.Scan(&mealID, &componentType, &item.ComponentID, &item.Quantity, &item.Name); err != nil {
			return nil, fmt.Errorf("failed to scan meal item: %w", err)
		}
		item.ComponentType = models.ComponentType(componentType)
		out[mealID] = append(out[mealID], item)
	}
	return out, rows.Err()
}

func (q *Queries) DeleteMeal(ctx context.Context, id int64) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM meals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete meal %d: %w", id, err)
	}
	return affectedOne(res)
}

// MealsReferencing returns the ids of meals holding an item of the given
// component.
func (q *Queries) MealsReferencing(ctx context.Context, componentType models.ComponentType, componentID int64) ([]int64, error) {
	query := `
        SELECT DISTINCT meal_id FROM meal_items
        WHERE component_type = ? AND component_id = ?
        ORDER BY meal_id
    `
	rows, err := q.q.QueryContext(ctx, query, string(componentType), componentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals referencing %s %d: %w", componentType, componentID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan meal id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteMealItemsFor removes every meal item pointing at the component.
func (q *Queries) DeleteMealItemsFor(ctx context.Context, componentType models.ComponentType, componentID int64) (int64, error) {
	res, err := q.q.ExecContext(ctx,
		`DELETE FROM meal_items WHERE component_type = ? AND component_id = ?`,
		string(componentType), componentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete meal items for %s %d: %w", componentType, componentID, err)
	}
	return res.RowsAffected()
}
