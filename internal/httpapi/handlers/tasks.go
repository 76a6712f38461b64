package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/suPer8Hu/nutribot/internal/common"
	"github.com/suPer8Hu/nutribot/internal/session"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

type taskResp struct {
	TaskID    string  `json:"task_id"`
	Status    string  `json:"status"`
	UserID    int64   `json:"user_id,omitempty"`
	Intent    string  `json:"intent,omitempty"`
	Model     string  `json:"model,omitempty"`
	Response  string  `json:"response,omitempty"`
	Error     *string `json:"error,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

// GetTask correlates a task id with its live status, the cached raw
// reply and the durable reply record.
func (h *Handler) GetTask(c *gin.Context) {
	taskID := strings.TrimSpace(c.Param("task_id"))
	if taskID == "" {
		common.Fail(c, http.StatusBadRequest, 10001, "task_id required")
		return
	}
	ctx := c.Request.Context()

	status, found, err := h.Tasks.Status(ctx, taskID)
	if err != nil {
		h.Log.Error("read task status", zap.String("task_id", taskID), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 20001, "status store error")
		return
	}

	resp := taskResp{TaskID: taskID, Status: string(status)}

	rep, err := h.Replies.GetReplyByTaskID(ctx, taskID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if !found {
			common.Fail(c, http.StatusNotFound, 40401, "task not found")
			return
		}
	case err != nil:
		h.Log.Error("read reply", zap.String("task_id", taskID), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 20002, "db error")
		return
	default:
		if !found {
			resp.Status = string(rep.Status)
		}
		resp.UserID = rep.UserID
		resp.Intent = rep.Intent
		resp.Model = rep.Model
		resp.Response = rep.Content
		resp.Error = rep.Error
		resp.CreatedAt = rep.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")
	}

	if resp.Response == "" && h.Store != nil {
		if v, ok, err := h.Store.Get(ctx, session.TaskResponseKey(taskID)); err == nil && ok {
			resp.Response = v
		}
	}
	common.OK(c, resp)
}
