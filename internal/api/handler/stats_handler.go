package handler

import (
	"net/http"
	"time"

	"github.com/cuongbtq/quantum-imaging/internal/api/dto"
	"github.com/gin-gonic/gin"
)

// GetStats handles GET /api/v1/stats
func (h *StatsHandler) GetStats(c *gin.Context) {
	snap := h.scheduler.Stats()
	c.JSON(http.StatusOK, dto.NewStatsResponse(snap, time.Now().UTC()))
}
