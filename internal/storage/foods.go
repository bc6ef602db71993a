// internal/storage/foods.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nutrition-log/internal/models"
)

// Ref identifies a row by id and name.
type Ref struct {
	ID   int64
	Name string
}

const foodColumns = `id, name, category, kcal, protein_g, carbs_g, fat_g, unit, market, created_at, updated_at`

func scanFood(sc scanner) (*models.Food, error) {
	food := &models.Food{}
	var category, market sql.NullString
	var unit sql.NullFloat64
	var createdAtStr, updatedAtStr string

	err := sc.Scan(
		&food.ID, &food.Name, &category,
		&food.Nutrients.Kcal, &food.Nutrients.ProteinG, &food.Nutrients.CarbsG, &food.Nutrients.FatG,
		&unit, &market, &createdAtStr, &updatedAtStr)
	if err != nil {
		return nil, err
	}

	if category.Valid {
		food.Category = &category.String
	}
	if market.Valid {
		food.Market = &market.String
	}
	if unit.Valid {
		food.Unit = &unit.Float64
	}
	if food.CreatedAt, food.UpdatedAt, err = parseTimes(createdAtStr, updatedAtStr); err != nil {
		return nil, err
	}
	return food, nil
}

func (q *Queries) InsertFood(ctx context.Context, in models.FoodInput, now time.Time) (int64, error) {
	query := `
        INSERT INTO foods (name, category, kcal, protein_g, carbs_g, fat_g, unit, market, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	n := in.Nutrients
	res, err := q.q.ExecContext(ctx, query,
		in.Name, nullString(in.Category), n.Kcal, n.ProteinG, n.CarbsG, n.FatG,
		nullFloat(in.Unit), nullString(in.Market), formatTime(now), formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to insert food: %w", translate(err))
	}
	return res.LastInsertId()
}

func (q *Queries) GetFood(ctx context.Context, id int64) (*models.Food, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+foodColumns+` FROM foods WHERE id = ?`, id)
	food, err := scanFood(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get food %d: %w", id, err)
	}
	return food, nil
}

func (q *Queries) GetFoodByName(ctx context.Context, name string) (*models.Food, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+foodColumns+` FROM foods WHERE name = ?`, name)
	food, err := scanFood(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get food %q: %w", name, err)
	}
	return food, nil
}

func (q *Queries) ListFoods(ctx context.Context) ([]*models.Food, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+foodColumns+` FROM foods ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query foods: %w", err)
	}
	defer rows.Close()

	foods := []*models.Food{}
	for rows.Next() {
		food, err := scanFood(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan food: %w", err)
		}
		foods = append(foods, food)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate foods: %w", err)
	}
	return foods, nil
}

func (q *Queries) UpdateFood(ctx context.Context, id int64, in models.FoodInput, now time.Time) error {
	query := `
        UPDATE foods
        SET name = ?, category = ?, kcal = ?, protein_g = ?, carbs_g = ?, fat_g = ?,
            unit = ?, market = ?, updated_at = ?
        WHERE id = ?
    `
	n := in.Nutrients
	res, err := q.q.ExecContext(ctx, query,
		in.Name, nullString(in.Category), n.Kcal, n.ProteinG, n.CarbsG, n.FatG,
		nullFloat(in.Unit), nullString(in.Market), formatTime(now), id)
	if err != nil {
		return fmt.Errorf("failed to update food %d: %w", id, translate(err))
	}
	return affectedOne(res)
}

func (q *Queries) DeleteFood(ctx context.Context, id int64) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM foods WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete food %d: %w", id, translate(err))
	}
	return affectedOne(res)
}

// RecipesUsingFood lists the recipes holding an ingredient link to the food.
func (q *Queries) RecipesUsingFood(ctx context.Context, foodID int64) ([]Ref, error) {
	query := `
        SELECT r.id, r.name
        FROM recipe_items ri
        JOIN recipes r ON r.id = ri.recipe_id
        WHERE ri.food_id = ?
        ORDER BY r.id
    `
	return q.refs(ctx, query, foodID)
}

func (q *Queries) refs(ctx context.Context, query string, args ...any) ([]Ref, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query references: %w", err)
	}
	defer rows.Close()

	var refs []Ref
	for rows.Next() {
		var ref Ref
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("failed to scan reference: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
