// internal/api/meals.go
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"nutrition-log/internal/cache"
	"nutrition-log/internal/models"
)

func (h *Handler) CreateMeal(c *gin.Context) {
	var req models.MealInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	meal, err := h.svc.Meals.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondCreated(c, meal)
}

func (h *Handler) ListMeals(c *gin.Context) {
	h.cachedList(c, cache.KeyMeals, func(ctx context.Context) (any, error) {
		return h.svc.Meals.List(ctx)
	})
}

// ListMealsByDate returns the meals logged on an exact YYYY-MM-DD date. A date
// with no meals answers 200 with an empty list, not 404.
func (h *Handler) ListMealsByDate(c *gin.Context) {
	date, err := models.ParseDate(c.Param("date"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	h.cachedList(c, cache.KeyMeals+":date:"+date.String(), func(ctx context.Context) (any, error) {
		return h.svc.Meals.ListByDate(ctx, date)
	})
}

func (h *Handler) GetMeal(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	meal, err := h.svc.Meals.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, meal)
}

func (h *Handler) UpdateMeal(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req models.MealInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	meal, err := h.svc.Meals.Update(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, meal)
}

func (h *Handler) DeleteMeal(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Meals.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": fmt.Sprintf("meal %d deleted", id)})
}

func (h *Handler) RecomputeMeal(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	meal, err := h.svc.Meals.Recompute(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, meal)
}
