// internal/server/tools.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"nutrition-log/internal/apperr"
	"nutrition-log/internal/models"
)

type toolFunc func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

type tool struct {
	handle toolFunc
	// mutates marks tools after which cached lists are purged.
	mutates bool
}

type IDParams struct {
	ID int64 `json:"id" description:"Id of the food, recipe or meal"`
}

type UpdateFoodParams struct {
	ID int64 `json:"id" description:"Id of the food to replace"`
	models.FoodInput
}

type UpdateRecipeParams struct {
	ID int64 `json:"id" description:"Id of the recipe to replace"`
	models.RecipeInput
}

type UpdateMealParams struct {
	ID int64 `json:"id" description:"Id of the meal to replace"`
	models.MealInput
}

type MealsByDateParams struct {
	MealDate models.Date `json:"meal_date" description:"Calendar date (YYYY-MM-DD)"`
}

// extractParams safely extracts parameters from the request arguments
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	// Convert the Arguments map to JSON bytes, then unmarshal to target
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		if apperr.IsExpected(err) {
			return err
		}
		return apperr.Invalid("arguments", "%v", err)
	}

	return nil
}

func checkID(id int64) error {
	if id <= 0 {
		return apperr.Invalid("id", "must be a positive integer")
	}
	return nil
}

// idTool adapts an operation keyed by a single id.
func (s *NutritionServer) idTool(fn func(ctx context.Context, id int64) (interface{}, error)) toolFunc {
	return func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
		var params IDParams
		if err := extractParams(req, &params); err != nil {
			return nil, err
		}
		if err := checkID(params.ID); err != nil {
			return nil, err
		}
		data, err := fn(ctx, params.ID)
		if err != nil {
			return nil, err
		}
		return s.createJSONResponse(data)
	}
}

// listTool adapts an operation without arguments.
func (s *NutritionServer) listTool(fn func(ctx context.Context) (interface{}, error)) toolFunc {
	return func(ctx context.Context, _ *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
		data, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return s.createJSONResponse(data)
	}
}

func (s *NutritionServer) handleCreateFood(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params models.FoodInput
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	food, err := s.services.Foods.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(food)
}

func (s *NutritionServer) handleUpdateFood(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params UpdateFoodParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if err := checkID(params.ID); err != nil {
		return nil, err
	}
	food, err := s.services.Foods.Update(ctx, params.ID, params.FoodInput)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(food)
}

func (s *NutritionServer) handleCreateRecipe(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params models.RecipeInput
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	recipe, err := s.services.Recipes.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(recipe)
}

func (s *NutritionServer) handleUpdateRecipe(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params UpdateRecipeParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if err := checkID(params.ID); err != nil {
		return nil, err
	}
	recipe, err := s.services.Recipes.Update(ctx, params.ID, params.RecipeInput)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(recipe)
}

// handleLogMeal records a meal made of whole recipes and foods in grams.
func (s *NutritionServer) handleLogMeal(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params models.MealInput
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	meal, err := s.services.Meals.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(meal)
}

func (s *NutritionServer) handleUpdateMeal(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params UpdateMealParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if err := checkID(params.ID); err != nil {
		return nil, err
	}
	meal, err := s.services.Meals.Update(ctx, params.ID, params.MealInput)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(meal)
}

func (s *NutritionServer) handleGetMealsByDate(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params MealsByDateParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.MealDate.IsZero() {
		return nil, apperr.Invalid("meal_date", "is required")
	}
	meals, err := s.services.Meals.ListByDate(ctx, params.MealDate)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(meals)
}

func deleted(entity string, id int64) map[string]string {
	return map[string]string{"message": fmt.Sprintf("%s %d deleted", entity, id)}
}

func (s *NutritionServer) registerTools() error {
	foods, recipes, meals := s.services.Foods, s.services.Recipes, s.services.Meals

	s.tools = map[string]tool{
		"create_food": {handle: s.handleCreateFood, mutates: true},
		"list_foods": {handle: s.listTool(func(ctx context.Context) (interface{}, error) {
			return foods.List(ctx)
		})},
		"get_food": {handle: s.idTool(func(ctx context.Context, id int64) (interface{}, error) {
			return foods.Get(ctx, id)
		})},
		"update_food": {handle: s.handleUpdateFood, mutates: true},
		"delete_food": {handle: s.idTool(func(ctx context.Context, id int64) (interface{}, error) {
			return deleted("food", id), foods.Delete(ctx, id)
		}), mutates: true},
		"propagate_food": {handle: s.idTool(func(ctx context.Context, id int64) (interface{}, error) {
			return foods.PropagateNutrients(ctx, id)
		}), mutates: true},

		"create_recipe": {handle: s.handleCreateRecipe, mutates: true},
		"list_recipes": {handle: s.listTool(func(ctx context.Context) (interface{}, error) {
			return recipes.List(ctx)
		})},
		"get_recipe": {handle: s.idTool(func(ctx context.Context, id int64) (interface{}, error) {
			return recipes.Get(ctx, id)
		})},
		"update_recipe": {handle: s.handleUpdateRecipe, mutates: true},
		"delete_recipe": {handle: s.idTool(func(ctx context.Context, id int64) (interface{}, error) {
			return deleted("recipe", id), recipes.Delete(ctx, id)
		}), mutates: true},
		"recompute_recipe": {handle: s.idTool(func(ctx context.Context, id int64) (interface{}, error) {
			return recipes.Recompute(ctx, id)
		}), mutates: true},

		"log_meal": {handle: s.handleLogMeal, mutates: true},
		"list_meals": {handle: s.listTool(func(ctx context.Context) (interface{}, error) {
			return meals.List(ctx)
		})},
		"get_meal": {handle: s.idTool(func(ctx context.Context, id int64) (interface{}, error) {
			return meals.Get(ctx, id)
		})},
		"get_meals_by_date": {handle: s.handleGetMealsByDate},
		"update_meal":       {handle: s.handleUpdateMeal, mutates: true},
		"delete_meal": {handle: s.idTool(func(ctx context.Context, id int64) (interface{}, error) {
			return deleted("meal", id), meals.Delete(ctx, id)
		}), mutates: true},
		"recompute_meal": {handle: s.idTool(func(ctx context.Context, id int64) (interface{}, error) {
			return meals.Recompute(ctx, id)
		}), mutates: true},
	}

	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	s.log.Debug("registered tools", "tools", names)

	return nil
}
