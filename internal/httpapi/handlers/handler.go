package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/suPer8Hu/nutribot/internal/history"
	"github.com/suPer8Hu/nutribot/internal/knowledge"
	"github.com/suPer8Hu/nutribot/internal/logging"
	"github.com/suPer8Hu/nutribot/internal/session"
	"github.com/suPer8Hu/nutribot/internal/task"
)

type TaskStatus interface {
	Status(ctx context.Context, taskID string) (task.Status, bool, error)
}

type ReplyLookup interface {
	GetReplyByTaskID(ctx context.Context, taskID string) (*history.Reply, error)
}

type Searcher interface {
	FindSimilar(ctx context.Context, query string, limit int) ([]knowledge.Hit, error)
}

type Handler struct {
	Tasks   TaskStatus
	Replies ReplyLookup
	Search  Searcher
	Store   session.Store
	Log     *zap.Logger
}

func NewHandler(tasks TaskStatus, replies ReplyLookup, search Searcher, store session.Store, log *zap.Logger) *Handler {
	return &Handler{Tasks: tasks, Replies: replies, Search: search, Store: store, Log: logging.OrNop(log)}
}
