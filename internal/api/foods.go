// internal/api/foods.go
package api

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"nutrition-log/internal/cache"
	"nutrition-log/internal/models"
)

func (h *Handler) CreateFood(c *gin.Context) {
	var req models.FoodInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	food, err := h.svc.Foods.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondCreated(c, food)
}

func (h *Handler) ListFoods(c *gin.Context) {
	h.cachedList(c, cache.KeyFoods, func(ctx context.Context) (any, error) {
		return h.svc.Foods.List(ctx)
	})
}

func (h *Handler) GetFood(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	food, err := h.svc.Foods.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, food)
}

func (h *Handler) UpdateFood(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req models.FoodInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	food, err := h.svc.Foods.Update(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, food)
}

func (h *Handler) DeleteFood(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Foods.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": fmt.Sprintf("food %d deleted", id)})
}

func (h *Handler) PropagateFood(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	prop, err := h.svc.Foods.PropagateNutrients(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, prop)
}
