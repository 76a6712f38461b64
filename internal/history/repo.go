package history

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func Models() []any {
	return []any{&Interaction{}, &Reply{}}
}

func (r *Repo) LogInteraction(ctx context.Context, i *Interaction) error {
	return r.db.WithContext(ctx).Create(i).Error
}

// ListInteractions returns interactions in DESC id order (newest -> oldest).
func (r *Repo) ListInteractions(ctx context.Context, userID int64, limit int, beforeID uint64) ([]Interaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit)

	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var out []Interaction
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) GetReplyByTaskID(ctx context.Context, taskID string) (*Reply, error) {
	var rep Reply
	if err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		First(&rep).Error; err != nil {
		return nil, err
	}
	return &rep, nil
}

// RecordReplyOrGetExisting inserts rep, or returns the row already stored
// for rep.TaskID with created=false.
func (r *Repo) RecordReplyOrGetExisting(ctx context.Context, rep *Reply) (*Reply, bool, error) {
	err := r.db.WithContext(ctx).Create(rep).Error
	if err == nil {
		return rep, true, nil
	}

	existing, getErr := r.GetReplyByTaskID(ctx, rep.TaskID)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

// Completed reports whether taskID already has a delivered reply.
func (r *Repo) Completed(ctx context.Context, taskID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Reply{}).
		Where("task_id = ? AND status = ?", taskID, ReplyCompleted).
		Count(&n).Error
	return n > 0, err
}

// RecentCompletedDesc returns the user's latest delivered replies (newest -> oldest).
func (r *Repo) RecentCompletedDesc(ctx context.Context, userID int64, limit int) ([]Reply, error) {
	if limit <= 0 {
		return nil, nil
	}
	var out []Reply
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, ReplyCompleted).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
