// internal/api/router.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nutrition-log/internal/cache"
	"nutrition-log/internal/logger"
	"nutrition-log/internal/models"
	"nutrition-log/internal/nutrition"
)

type FoodService interface {
	Create(ctx context.Context, in models.FoodInput) (*models.Food, error)
	Get(ctx context.Context, id int64) (*models.Food, error)
	List(ctx context.Context) ([]*models.Food, error)
	Update(ctx context.Context, id int64, in models.FoodInput) (*models.Food, error)
	Delete(ctx context.Context, id int64) error
	PropagateNutrients(ctx context.Context, id int64) (*nutrition.Propagation, error)
}

type RecipeService interface {
	Create(ctx context.Context, in models.RecipeInput) (*models.Recipe, error)
	Get(ctx context.Context, id int64) (*models.Recipe, error)
	List(ctx context.Context) ([]*models.Recipe, error)
	Update(ctx context.Context, id int64, in models.RecipeInput) (*models.Recipe, error)
	Delete(ctx context.Context, id int64) error
	Recompute(ctx context.Context, id int64) (*models.Recipe, error)
}

type MealService interface {
	Create(ctx context.Context, in models.MealInput) (*models.Meal, error)
	Get(ctx context.Context, id int64) (*models.Meal, error)
	List(ctx context.Context) ([]*models.Meal, error)
	ListByDate(ctx context.Context, date models.Date) ([]*models.Meal, error)
	Update(ctx context.Context, id int64, in models.MealInput) (*models.Meal, error)
	Delete(ctx context.Context, id int64) error
	Recompute(ctx context.Context, id int64) (*models.Meal, error)
}

type Services struct {
	Foods   FoodService
	Recipes RecipeService
	Meals   MealService
}

// ServicesFrom adapts the nutrition services to the transport interfaces.
func ServicesFrom(svc *nutrition.Service) Services {
	return Services{Foods: svc.Foods, Recipes: svc.Recipes, Meals: svc.Meals}
}

type RouterConfig struct {
	Services Services
	Cache    cache.Cache
	CacheTTL time.Duration
	Logger   *logger.Logger
	Version  string
	// Health reports whether the backing store is reachable.
	Health func(ctx context.Context) error
}

type Handler struct {
	svc     Services
	cache   cache.Cache
	ttl     time.Duration
	log     *logger.Logger
	version string
	health  func(ctx context.Context) error
}

func NewHandler(cfg RouterConfig) *Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		svc:     cfg.Services,
		cache:   cfg.Cache,
		ttl:     cfg.CacheTTL,
		log:     log,
		version: cfg.Version,
		health:  cfg.Health,
	}
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	h := NewHandler(cfg)

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(h.log))

	r.GET("/", h.Welcome)
	r.GET("/health", h.Health)

	writes := PurgeOnWrite(h.cache, h.log)

	foods := r.Group("/foods", writes)
	foods.POST("", h.CreateFood)
	foods.GET("", h.ListFoods)
	foods.GET("/:id", h.GetFood)
	foods.PUT("/:id", h.UpdateFood)
	foods.DELETE("/:id", h.DeleteFood)
	foods.POST("/:id/propagate", h.PropagateFood)

	recipes := r.Group("/recipes", writes)
	recipes.POST("", h.CreateRecipe)
	recipes.GET("", h.ListRecipes)
	recipes.GET("/:id", h.GetRecipe)
	recipes.PUT("/:id", h.UpdateRecipe)
	recipes.DELETE("/:id", h.DeleteRecipe)
	recipes.POST("/:id/recompute", h.RecomputeRecipe)

	meals := r.Group("/meals", writes)
	meals.POST("", h.CreateMeal)
	meals.GET("", h.ListMeals)
	meals.GET("/date/:date", h.ListMealsByDate)
	meals.GET("/:id", h.GetMeal)
	meals.PUT("/:id", h.UpdateMeal)
	meals.DELETE("/:id", h.DeleteMeal)
	meals.POST("/:id/recompute", h.RecomputeMeal)

	return r
}

func (h *Handler) Welcome(c *gin.Context) {
	RespondOK(c, gin.H{"message": "nutrition-log API", "version": h.version})
}

func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			h.log.Error("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	RespondOK(c, gin.H{"status": "ok", "version": h.version})
}

// cachedList serves key from the list cache, loading and storing it on a miss.
// A result is only stored if no purge happened while it was loading. Cache
// failures are logged and bypassed.
func (h *Handler) cachedList(c *gin.Context, key string, load func(ctx context.Context) (any, error)) {
	ctx := c.Request.Context()
	var gen uint64
	cacheable := h.cache != nil
	if cacheable {
		var err error
		if gen, err = h.cache.Generation(ctx); err != nil {
			h.log.Warn("cache generation failed", "key", key, "error", err)
			cacheable = false
		}

		body, ok, err := h.cache.Get(ctx, key)
		if err != nil {
			h.log.Warn("cache get failed", "key", key, "error", err)
		} else if ok {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", body)
			return
		}
	}

	data, err := load(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	body, err := json.Marshal(data)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if cacheable {
		stored, err := h.cache.SetIfGeneration(ctx, gen, key, body, h.ttl)
		if err != nil {
			h.log.Warn("cache set failed", "key", key, "error", err)
		} else if !stored {
			h.log.Debug("cache purged during load, not storing", "key", key)
		}
	}
	c.Header("X-Cache", "MISS")
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
