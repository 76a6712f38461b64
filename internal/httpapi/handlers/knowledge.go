package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/suPer8Hu/nutribot/internal/common"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 20
)

func (h *Handler) SearchKnowledge(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		common.Fail(c, http.StatusBadRequest, 10001, "q required")
		return
	}
	limit := defaultSearchLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			common.Fail(c, http.StatusBadRequest, 10002, "invalid limit")
			return
		}
		limit = min(n, maxSearchLimit)
	}

	hits, err := h.Search.FindSimilar(c.Request.Context(), q, limit)
	if err != nil {
		h.Log.Error("knowledge search", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 20003, "search failed")
		return
	}
	common.OK(c, gin.H{"items": hits, "count": len(hits)})
}
