// internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/gin-gonic/gin"

	"nutrition-log/internal/config"
	"nutrition-log/internal/logger"
	"nutrition-log/internal/models"
)

func newTestServer(t *testing.T) *NutritionServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Host:            "127.0.0.1",
		Port:            8011,
		ShutdownTimeout: time.Second,
		DBPath:          filepath.Join(t.TempDir(), "server.db"),
		DBMaxOpenConns:  1,
		CacheTTL:        time.Minute,
	}
	srv, err := NewNutritionServer(context.Background(), cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("NewNutritionServer: %v", err)
	}
	t.Cleanup(func() { srv.Stop(context.Background()) })
	return srv
}

func callTool(t *testing.T, srv *NutritionServer, name string, args map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(protocol.CallToolRequest{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

// toolText decodes the single text content of a successful tool call into into.
func toolText(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	var raw struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(raw.Content) != 1 || raw.Content[0].Type != "text" {
		t.Fatalf("unexpected content %+v", raw.Content)
	}
	if err := json.Unmarshal([]byte(raw.Content[0].Text), into); err != nil {
		t.Fatalf("decode text %q: %v", raw.Content[0].Text, err)
	}
}

func lentejasArgs() map[string]interface{} {
	return map[string]interface{}{
		"name": "Lentejas",
		"nutrients": map[string]interface{}{
			"kcal": 116, "protein_g": 9, "carbs_g": 20, "fat_g": 0.4,
		},
	}
}

func TestToolsEndToEnd(t *testing.T) {
	srv := newTestServer(t)

	var food models.Food
	toolText(t, callTool(t, srv, "create_food", lentejasArgs()), &food)
	if food.ID == 0 || food.Name != "Lentejas" {
		t.Fatalf("unexpected food %+v", food)
	}

	var recipe models.Recipe
	toolText(t, callTool(t, srv, "create_recipe", map[string]interface{}{
		"name":                  "R1",
		"ingredient_quantities": map[string]interface{}{"Lentejas": 200},
	}), &recipe)
	if recipe.Nutrients.Kcal != 232 {
		t.Fatalf("unexpected recipe %+v", recipe)
	}

	var meal models.Meal
	toolText(t, callTool(t, srv, "log_meal", map[string]interface{}{
		"meal_date": "2024-03-01",
		"recipes":   []interface{}{"R1"},
		"foods":     []interface{}{map[string]interface{}{"Lentejas": 50}},
	}), &meal)
	if meal.Nutrients.Kcal != 290 || meal.Nutrients.ProteinG != 22.5 {
		t.Fatalf("unexpected meal %+v", meal.Nutrients)
	}

	var byDate []models.Meal
	toolText(t, callTool(t, srv, "get_meals_by_date", map[string]interface{}{"meal_date": "2024-03-01"}), &byDate)
	if len(byDate) != 1 {
		t.Fatalf("expected 1 meal, got %d", len(byDate))
	}

	var updated models.Food
	args := lentejasArgs()
	args["id"] = food.ID
	args["nutrients"] = map[string]interface{}{"kcal": 100, "protein_g": 0, "carbs_g": 0, "fat_g": 0}
	toolText(t, callTool(t, srv, "update_food", args), &updated)
	if updated.Nutrients.Kcal != 100 {
		t.Fatalf("unexpected updated food %+v", updated)
	}

	var fresh models.Recipe
	toolText(t, callTool(t, srv, "recompute_recipe", map[string]interface{}{"id": recipe.ID}), &fresh)
	if fresh.Nutrients.Kcal != 200 {
		t.Fatalf("unexpected recomputed recipe %+v", fresh.Nutrients)
	}

	var msg map[string]string
	toolText(t, callTool(t, srv, "delete_recipe", map[string]interface{}{"id": recipe.ID}), &msg)
	if msg["message"] == "" {
		t.Fatalf("expected delete confirmation, got %+v", msg)
	}

	var got models.Meal
	toolText(t, callTool(t, srv, "get_meal", map[string]interface{}{"id": meal.ID}), &got)
	if len(got.Items) != 1 || got.Items[0].ComponentType != models.ComponentFood {
		t.Fatalf("expected only the food item left, got %+v", got.Items)
	}
}

func TestToolErrors(t *testing.T) {
	srv := newTestServer(t)
	toolText(t, callTool(t, srv, "create_food", lentejasArgs()), &models.Food{})
	toolText(t, callTool(t, srv, "create_recipe", map[string]interface{}{
		"name":                  "R1",
		"ingredient_quantities": map[string]interface{}{"Lentejas": 200},
	}), &models.Recipe{})

	cases := []struct {
		name   string
		tool   string
		args   map[string]interface{}
		status int
	}{
		{"unknown tool", "calculate_carbs", nil, http.StatusNotFound},
		{"missing food", "get_food", map[string]interface{}{"id": 42}, http.StatusNotFound},
		{"zero id", "get_food", map[string]interface{}{"id": 0}, http.StatusBadRequest},
		{"duplicate food", "create_food", lentejasArgs(), http.StatusBadRequest},
		{"unknown recipe", "log_meal", map[string]interface{}{"meal_date": "2024-03-01", "recipes": []interface{}{"R9"}}, http.StatusBadRequest},
		{"bad date", "get_meals_by_date", map[string]interface{}{"meal_date": "yesterday"}, http.StatusBadRequest},
		{"food in use", "delete_food", map[string]interface{}{"id": 1}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := callTool(t, srv, tc.tool, tc.args)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d, body: %s", w.Code, tc.status, w.Body.String())
			}
		})
	}
}

func TestMutatingToolPurgesCache(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	if err := srv.cache.Set(ctx, "foods", []byte("[]"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	toolText(t, callTool(t, srv, "list_foods", nil), &[]models.Food{})
	if _, ok, _ := srv.cache.Get(ctx, "foods"); !ok {
		t.Fatal("read-only tool must not purge the cache")
	}

	toolText(t, callTool(t, srv, "create_food", lentejasArgs()), &models.Food{})
	if _, ok, _ := srv.cache.Get(ctx, "foods"); ok {
		t.Fatal("expected cache purged after create_food")
	}
}

func TestRESTAndMCPShareRouter(t *testing.T) {
	srv := newTestServer(t)
	toolText(t, callTool(t, srv, "create_food", lentejasArgs()), &models.Food{})

	req := httptest.NewRequest(http.MethodGet, "/foods", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var foods []models.Food
	if err := json.Unmarshal(w.Body.Bytes(), &foods); err != nil || len(foods) != 1 {
		t.Fatalf("expected food created via MCP to be listed, got %v %s", err, w.Body.String())
	}
}
