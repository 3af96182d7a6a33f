package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"news-stock-explorer/internal/domain"
	"news-stock-explorer/internal/ml/training"

	"github.com/gin-gonic/gin"
)

type MLTrainingRunner interface {
	RunTraining(ctx context.Context, now time.Time) ([]training.Result, error)
}

// ModelCacheInvalidator drops any cached model so the next prediction loads
// the freshly activated version.
type ModelCacheInvalidator interface {
	Invalidate()
}

type ModelHistorySource interface {
	ListModelVersions(ctx context.Context, modelKey string, limit int) ([]domain.ModelVersion, error)
}

// ListModelVersions returns the version history for one model key, newest
// first, without artifact payloads.
func (h *Handler) ListModelVersions(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model registry unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-model-versions")
	defer span.End()

	modelKey := c.DefaultQuery("model", "logistic_regression")
	limit := 20
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	versions, err := h.history.ListModelVersions(ctx, modelKey, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(versions))
	for _, v := range versions {
		out = append(out, gin.H{
			"model_key":           v.ModelKey,
			"version":             v.Version,
			"feature_set_version": v.FeatureSetVersion,
			"trained_at":          v.TrainedAt,
			"artifact_format":     v.ArtifactFormat,
			"is_active":           v.IsActive,
			"activated_at":        v.ActivatedAt,
			"metrics":             json.RawMessage(v.MetricsJSON),
		})
	}
	c.JSON(http.StatusOK, gin.H{"model_key": modelKey, "versions": out})
}

// TriggerMLTraining runs a full training cycle on demand.
func (h *Handler) TriggerMLTraining(c *gin.Context) {
	if h.mlTrainer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ml training service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-ml-training")
	defer span.End()

	results, err := h.mlTrainer.RunTraining(ctx, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if h.invalidator != nil {
		h.invalidator.Invalidate()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"trained": len(results),
		"results": results,
	})
}
