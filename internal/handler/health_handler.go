package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/pkg/response"
)

const healthTimeout = 2 * time.Second

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	appName string
	db      Pinger
}

func NewHealthHandler(appName string, db Pinger) *HealthHandler {
	return &HealthHandler{appName: appName, db: db}
}

func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "name": h.appName})
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		logutil.GetLogger(ctx).Error("health check failed", zap.Error(err))
		response.Error(c, http.StatusServiceUnavailable, "unavailable", "database unavailable")
		return
	}
	response.Success(c, gin.H{"status": "ok"})
}
