// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/gin-gonic/gin"

	"nutrition-log/internal/api"
	"nutrition-log/internal/apperr"
	"nutrition-log/internal/cache"
	"nutrition-log/internal/config"
	"nutrition-log/internal/logger"
	"nutrition-log/internal/nutrition"
	"nutrition-log/internal/storage"
)

type NutritionServer struct {
	httpServer *http.Server
	storage    *storage.SQLiteStorage
	cache      cache.Cache
	services   api.Services
	tools      map[string]tool
	log        *logger.Logger
	config     *config.Config
}

func NewNutritionServer(ctx context.Context, cfg *config.Config, log *logger.Logger) (*NutritionServer, error) {
	// Initialize database
	stor, err := storage.NewSQLiteStorage(cfg.DBPath, cfg.DBMaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	listCache, err := newCache(ctx, cfg)
	if err != nil {
		stor.Close()
		return nil, err
	}

	svc := nutrition.New(stor, log, nutrition.Options{RecomputeDependents: cfg.RecomputeDependents})

	nutritionServer := &NutritionServer{
		storage:  stor,
		cache:    listCache,
		services: api.ServicesFrom(svc),
		log:      log,
		config:   cfg,
	}

	if err := nutritionServer.registerTools(); err != nil {
		stor.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	router := api.NewRouter(api.RouterConfig{
		Services: nutritionServer.services,
		Cache:    listCache,
		CacheTTL: cfg.CacheTTL,
		Logger:   log,
		Version:  config.Version,
		Health:   stor.Ping,
	})
	router.POST("/mcp", gin.WrapF(nutritionServer.handleHTTP))
	router.OPTIONS("/mcp", gin.WrapF(nutritionServer.handleHTTP))

	nutritionServer.httpServer = &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	return nutritionServer, nil
}

func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(), nil
	}
	redisCache, err := cache.NewRedis(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	return redisCache, nil
}

// Handler exposes the combined REST and MCP handler.
func (s *NutritionServer) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *NutritionServer) handleHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		return
	}

	// Decode the MCP request
	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	t, ok := s.tools[request.Name]
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown tool: %s", request.Name), http.StatusNotFound)
		return
	}

	result, err := t.handle(r.Context(), &request)
	if err != nil {
		status := apperr.Status(err)
		if status == http.StatusInternalServerError {
			s.log.Error("tool call failed", "tool", request.Name, "error", err)
			http.Error(w, "internal server error", status)
			return
		}
		http.Error(w, err.Error(), status)
		return
	}

	if t.mutates {
		if err := s.cache.Purge(r.Context()); err != nil {
			s.log.Warn("cache purge failed", "tool", request.Name, "error", err)
		}
	}

	// Send response
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.log.Error("failed to encode response", "tool", request.Name, "error", err)
	}
}

func (s *NutritionServer) Start(ctx context.Context) error {
	s.log.Info("starting nutrition log server", "addr", s.httpServer.Addr, "recompute_dependents", s.config.RecomputeDependents)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests, then releases the cache and the store.
func (s *NutritionServer) Stop(ctx context.Context) error {
	var firstErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if closer, ok := s.cache.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *NutritionServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
