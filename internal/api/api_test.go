// internal/api/api_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"nutrition-log/internal/cache"
	"nutrition-log/internal/logger"
	"nutrition-log/internal/models"
	"nutrition-log/internal/nutrition"
	"nutrition-log/internal/storage"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "api.db"), 1)
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := logger.NewNop()
	svc := nutrition.New(store, log, nutrition.Options{})
	return NewRouter(RouterConfig{
		Services: ServicesFrom(svc),
		Cache:    cache.NewMemory(),
		CacheTTL: time.Minute,
		Logger:   log,
		Version:  "test",
		Health:   store.Ping,
	})
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, want, w.Body.String())
	}
}

const lentejasBody = `{"name":"Lentejas","category":"legumbres","nutrients":{"kcal":116,"protein_g":9,"carbs_g":20,"fat_g":0.4}}`

func TestEndToEndAggregation(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/foods", lentejasBody)
	expectStatus(t, w, http.StatusCreated)
	var food models.Food
	decode(t, w, &food)

	w = do(t, r, http.MethodPost, "/recipes", `{"name":"R1","ingredient_quantities":{"Lentejas":200}}`)
	expectStatus(t, w, http.StatusCreated)
	var recipe models.Recipe
	decode(t, w, &recipe)
	if recipe.Nutrients.Kcal != 232 || recipe.Nutrients.ProteinG != 18 || recipe.Nutrients.CarbsG != 40 {
		t.Fatalf("unexpected recipe totals %+v", recipe.Nutrients)
	}
	if len(recipe.Ingredients) != 1 || recipe.Ingredients[0].FoodID != food.ID {
		t.Fatalf("unexpected ingredients %+v", recipe.Ingredients)
	}

	w = do(t, r, http.MethodPost, "/meals", `{"meal_date":"2024-03-01","recipes":["R1"],"foods":[{"Lentejas":50}]}`)
	expectStatus(t, w, http.StatusCreated)
	var meal models.Meal
	decode(t, w, &meal)
	if meal.Nutrients.Kcal != 290 || meal.Nutrients.ProteinG != 22.5 || math.Abs(meal.Nutrients.FatG-1.0) > 1e-9 {
		t.Fatalf("unexpected meal totals %+v", meal.Nutrients)
	}

	w = do(t, r, http.MethodGet, "/meals/date/2024-03-01", nil)
	expectStatus(t, w, http.StatusOK)
	var meals []models.Meal
	decode(t, w, &meals)
	if len(meals) != 1 || meals[0].ID != meal.ID {
		t.Fatalf("unexpected meals by date %+v", meals)
	}

	w = do(t, r, http.MethodGet, "/meals/date/2030-01-01", nil)
	expectStatus(t, w, http.StatusOK)
	if w.Body.String() != "[]" {
		t.Fatalf("expected empty list, got %s", w.Body.String())
	}
}

func TestErrorStatuses(t *testing.T) {
	r := newTestRouter(t)
	expectStatus(t, do(t, r, http.MethodPost, "/foods", lentejasBody), http.StatusCreated)
	expectStatus(t, do(t, r, http.MethodPost, "/recipes", `{"name":"R1","ingredient_quantities":{"Lentejas":200}}`), http.StatusCreated)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown food", http.MethodGet, "/foods/99", "", http.StatusNotFound, "not_found"},
		{"bad id", http.MethodGet, "/foods/abc", "", http.StatusBadRequest, "invalid_request"},
		{"duplicate food", http.MethodPost, "/foods", lentejasBody, http.StatusBadRequest, "validation_failed"},
		{"missing nutrient", http.MethodPost, "/foods", `{"name":"X","nutrients":{"kcal":1,"protein_g":1,"carbs_g":1}}`, http.StatusBadRequest, "validation_failed"},
		{"negative nutrient", http.MethodPost, "/foods", `{"name":"X","nutrients":{"kcal":-1,"protein_g":1,"carbs_g":1,"fat_g":1}}`, http.StatusBadRequest, "validation_failed"},
		{"unknown ingredient", http.MethodPost, "/recipes", `{"name":"R2","ingredient_quantities":{"Chorizo":10}}`, http.StatusBadRequest, "validation_failed"},
		{"update unknown recipe", http.MethodPut, "/recipes/99", `{"name":"R9","ingredient_quantities":{}}`, http.StatusNotFound, "not_found"},
		{"food in use", http.MethodDelete, "/foods/1", "", http.StatusConflict, "integrity_violation"},
		{"malformed meal food", http.MethodPost, "/meals", `{"meal_date":"2024-03-01","foods":[{"Lentejas":50,"Arroz":10}]}`, http.StatusBadRequest, "validation_failed"},
		{"bad date", http.MethodGet, "/meals/date/March", "", http.StatusBadRequest, "invalid_request"},
		{"invalid json", http.MethodPost, "/meals", `{`, http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body any
			if tc.body != "" {
				body = tc.body
			}
			w := do(t, r, tc.method, tc.path, body)
			expectStatus(t, w, tc.status)
			var env ErrorEnvelope
			decode(t, w, &env)
			if env.Error.Code != tc.code || env.Error.Message == "" {
				t.Fatalf("unexpected envelope %+v", env)
			}
		})
	}
}

func TestListCacheInvalidatedOnWrite(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/foods", nil)
	expectStatus(t, w, http.StatusOK)
	if w.Header().Get("X-Cache") != "MISS" || w.Body.String() != "[]" {
		t.Fatalf("expected cold empty list, got %s %s", w.Header().Get("X-Cache"), w.Body.String())
	}
	w = do(t, r, http.MethodGet, "/foods", nil)
	if w.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("expected cache hit on second read")
	}

	expectStatus(t, do(t, r, http.MethodPost, "/foods", lentejasBody), http.StatusCreated)

	w = do(t, r, http.MethodGet, "/foods", nil)
	if w.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("expected cache purged after write")
	}
	var foods []models.Food
	decode(t, w, &foods)
	if len(foods) != 1 || foods[0].Name != "Lentejas" {
		t.Fatalf("unexpected foods %+v", foods)
	}

	// a failed write leaves the cache alone
	expectStatus(t, do(t, r, http.MethodPost, "/foods", lentejasBody), http.StatusBadRequest)
	if w := do(t, r, http.MethodGet, "/foods", nil); w.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("expected cache kept after failed write")
	}
}

func TestListLoadedBeforePurgeNotCached(t *testing.T) {
	gin.SetMode(gin.TestMode)
	listCache := cache.NewMemory()
	h := NewHandler(RouterConfig{Cache: listCache, CacheTTL: time.Minute})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/foods", nil)

	h.cachedList(c, cache.KeyFoods, func(ctx context.Context) (any, error) {
		// a write commits and purges while this list is being read
		if err := listCache.Purge(ctx); err != nil {
			return nil, err
		}
		return []models.Food{}, nil
	})
	expectStatus(t, w, http.StatusOK)
	if w.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("expected miss, got %q", w.Header().Get("X-Cache"))
	}
	if _, ok, _ := listCache.Get(context.Background(), cache.KeyFoods); ok {
		t.Fatal("list loaded before the purge must not be cached")
	}
}

func TestRecipeDeleteAndRecompute(t *testing.T) {
	r := newTestRouter(t)
	expectStatus(t, do(t, r, http.MethodPost, "/foods", lentejasBody), http.StatusCreated)
	expectStatus(t, do(t, r, http.MethodPost, "/recipes", `{"name":"R1","ingredient_quantities":{"Lentejas":200}}`), http.StatusCreated)
	expectStatus(t, do(t, r, http.MethodPost, "/meals", `{"meal_date":"2024-03-01","recipes":["R1"]}`), http.StatusCreated)

	w := do(t, r, http.MethodPut, "/foods/1", `{"name":"Lentejas","nutrients":{"kcal":100,"protein_g":0,"carbs_g":0,"fat_g":0}}`)
	expectStatus(t, w, http.StatusOK)

	w = do(t, r, http.MethodGet, "/recipes/1", nil)
	var recipe models.Recipe
	decode(t, w, &recipe)
	if recipe.Nutrients.Kcal != 232 {
		t.Fatalf("recipe totals must not change on food update, got %+v", recipe.Nutrients)
	}

	w = do(t, r, http.MethodPost, "/foods/1/propagate", nil)
	expectStatus(t, w, http.StatusOK)
	var prop nutrition.Propagation
	decode(t, w, &prop)
	if len(prop.Recipes) != 1 || len(prop.Meals) != 1 {
		t.Fatalf("unexpected propagation %+v", prop)
	}

	w = do(t, r, http.MethodGet, "/meals/1", nil)
	var meal models.Meal
	decode(t, w, &meal)
	if meal.Nutrients.Kcal != 200 {
		t.Fatalf("expected propagated meal totals, got %+v", meal.Nutrients)
	}

	w = do(t, r, http.MethodDelete, "/recipes/1", nil)
	expectStatus(t, w, http.StatusOK)

	w = do(t, r, http.MethodGet, "/meals/1", nil)
	decode(t, w, &meal)
	if len(meal.Items) != 0 || meal.Nutrients.Kcal != 0 {
		t.Fatalf("expected recipe items removed, got %+v", meal)
	}

	expectStatus(t, do(t, r, http.MethodPost, "/meals/1/recompute", nil), http.StatusOK)
	expectStatus(t, do(t, r, http.MethodPost, "/recipes/1/recompute", nil), http.StatusNotFound)
	expectStatus(t, do(t, r, http.MethodDelete, "/foods/1", nil), http.StatusOK)
}

func TestWelcomeAndHealth(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodGet, "/health", nil)
	expectStatus(t, w, http.StatusOK)
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected a request id header")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get(requestIDHeader) != "abc-123" {
		t.Fatalf("expected request id echoed, got %q", rec.Header().Get(requestIDHeader))
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["version"] != "test" {
		t.Fatalf("unexpected welcome %+v", body)
	}
}
