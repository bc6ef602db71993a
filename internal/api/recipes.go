// internal/api/recipes.go
package api

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"nutrition-log/internal/cache"
	"nutrition-log/internal/models"
)

func (h *Handler) CreateRecipe(c *gin.Context) {
	var req models.RecipeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	recipe, err := h.svc.Recipes.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondCreated(c, recipe)
}

func (h *Handler) ListRecipes(c *gin.Context) {
	h.cachedList(c, cache.KeyRecipes, func(ctx context.Context) (any, error) {
		return h.svc.Recipes.List(ctx)
	})
}

func (h *Handler) GetRecipe(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	recipe, err := h.svc.Recipes.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, recipe)
}

func (h *Handler) UpdateRecipe(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req models.RecipeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	recipe, err := h.svc.Recipes.Update(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, recipe)
}

func (h *Handler) DeleteRecipe(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Recipes.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": fmt.Sprintf("recipe %d deleted", id)})
}

func (h *Handler) RecomputeRecipe(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	recipe, err := h.svc.Recipes.Recompute(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, recipe)
}
