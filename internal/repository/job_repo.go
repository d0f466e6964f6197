package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nat-prohmpiriya/talelingo-studio/internal/model"
	"gorm.io/gorm"
)

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(ctx context.Context, job *model.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *jobRepository) Save(ctx context.Context, job *model.Job) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *jobRepository) Get(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) ListByStory(ctx context.Context, storyID string) ([]model.Job, error) {
	var jobs []model.Job
	err := r.db.WithContext(ctx).
		Where("story_id = ?", storyID).
		Order("created_at DESC").
		Find(&jobs).Error
	return jobs, err
}

// FailRunningByStory 将故事下未结束的任务标记为失败
func (r *jobRepository) FailRunningByStory(ctx context.Context, storyID string, errMsg string) (int64, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&model.Job{}).
		Where("story_id = ? AND status IN ?", storyID, []string{"pending", "running"}).
		Updates(map[string]any{
			"status":       "failed",
			"error":        errMsg,
			"completed_at": &now,
		})
	return result.RowsAffected, result.Error
}
