package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nat-prohmpiriya/talelingo-studio/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 列表查询不返回剧集内容
var storySummaryColumns = []string{
	"id", "slug", "title", "level", "category", "cover_image_url", "estimated_time",
	"total_words", "episode_count", "status", "view_count", "created_at", "updated_at",
}

// 允许分组统计的列
var countableColumns = map[string]bool{
	"level":    true,
	"category": true,
	"status":   true,
}

type storyRepository struct {
	db *gorm.DB
}

func NewStoryRepository(db *gorm.DB) StoryRepository {
	return &storyRepository{db: db}
}

// FindPaginated 按创建时间倒序分页查询
func (r *storyRepository) FindPaginated(ctx context.Context, filter StoryFilter) ([]model.Story, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Story{})
	if filter.Level != "" {
		query = query.Where("level = ?", filter.Level)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var stories []model.Story
	err := query.Select(storySummaryColumns).
		Order("created_at DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&stories).Error
	if err != nil {
		return nil, 0, err
	}
	return stories, total, nil
}

func (r *storyRepository) Get(ctx context.Context, id string) (*model.Story, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *storyRepository) GetBySlug(ctx context.Context, slug string) (*model.Story, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *storyRepository) first(ctx context.Context, query string, arg any) (*model.Story, error) {
	var story model.Story
	err := r.db.WithContext(ctx).
		Preload("Episodes", func(db *gorm.DB) *gorm.DB {
			return db.Order("episode_number ASC")
		}).
		Where(query, arg).
		First(&story).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &story, nil
}

// Create 写入新故事，slug 唯一索引冲突返回 ErrConflict
func (r *storyRepository) Create(ctx context.Context, story *model.Story) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(story).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}

// UpdateFields 按列更新，不回写未修改的字段（状态、浏览量可能被并发修改）
func (r *storyRepository) UpdateFields(ctx context.Context, id string, fields map[string]any, from []string) error {
	if len(fields) == 0 {
		return nil
	}
	query := r.db.WithContext(ctx).Model(&model.Story{}).Where("id = ?", id)
	if len(from) > 0 {
		query = query.Where("status IN ?", from)
	}
	result := query.Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Story{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	if len(from) > 0 {
		return ErrConflict
	}
	return nil
}

func (r *storyRepository) SetStatus(ctx context.Context, id string, status string) error {
	result := r.db.WithContext(ctx).Model(&model.Story{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TransitionStatus 仅当当前状态属于 from 时才更新，用于防止并发生成
func (r *storyRepository) TransitionStatus(ctx context.Context, id string, from []string, to string) error {
	return r.UpdateFields(ctx, id, map[string]any{"status": to}, from)
}

// Delete 删除故事及其全部剧集
func (r *storyRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("story_id = ?", id).Delete(&model.Episode{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&model.Story{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// IncrementViewCount 浏览量加一，不更新 updated_at
func (r *storyRepository) IncrementViewCount(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.Story{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error
}

func (r *storyRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Story{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *storyRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Story{}).Count(&count).Error
	return count, err
}

// CountBy 按指定列分组计数
func (r *storyRepository) CountBy(ctx context.Context, column string) (map[string]int64, error) {
	if !countableColumns[column] {
		return nil, fmt.Errorf("unsupported group column: %s", column)
	}

	var rows []struct {
		GroupKey string
		Count    int64
	}
	err := r.db.WithContext(ctx).Model(&model.Story{}).
		Select(column + " AS group_key, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.GroupKey] = row.Count
	}
	return result, nil
}

func (r *storyRepository) NewReleases(ctx context.Context, limit int) ([]model.Story, error) {
	var stories []model.Story
	err := r.db.WithContext(ctx).Select(storySummaryColumns).
		Order("created_at DESC").
		Limit(limit).
		Find(&stories).Error
	return stories, err
}

func (r *storyRepository) Popular(ctx context.Context, limit int) ([]model.Story, error) {
	var stories []model.Story
	err := r.db.WithContext(ctx).Select(storySummaryColumns).
		Order("view_count DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&stories).Error
	return stories, err
}

// GetStuckGenerating 获取停留在 generating 超过 timeout 的故事
func (r *storyRepository) GetStuckGenerating(ctx context.Context, timeout time.Duration) ([]model.Story, error) {
	var stories []model.Story
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", "generating", time.Now().Add(-timeout)).
		Find(&stories).Error
	return stories, err
}
