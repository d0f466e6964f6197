package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nat-prohmpiriya/talelingo-studio/internal/model"
)

// ErrNotFound 记录不存在错误
var ErrNotFound = errors.New("record not found")

// ErrConflict 条件更新未命中（状态已被其他请求改变）
var ErrConflict = errors.New("record state conflict")

// StoryFilter 故事列表过滤条件
type StoryFilter struct {
	Level    string
	Category string
	Offset   int
	Limit    int
}

type StoryRepository interface {
	FindPaginated(ctx context.Context, filter StoryFilter) ([]model.Story, int64, error)
	Get(ctx context.Context, id string) (*model.Story, error)
	GetBySlug(ctx context.Context, slug string) (*model.Story, error)
	Create(ctx context.Context, story *model.Story) error
	// UpdateFields 只写入给定列，from 非空时要求当前状态属于 from
	UpdateFields(ctx context.Context, id string, fields map[string]any, from []string) error
	SetStatus(ctx context.Context, id string, status string) error
	TransitionStatus(ctx context.Context, id string, from []string, to string) error
	Delete(ctx context.Context, id string) error
	IncrementViewCount(ctx context.Context, id string) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	Count(ctx context.Context) (int64, error)
	CountBy(ctx context.Context, column string) (map[string]int64, error)
	NewReleases(ctx context.Context, limit int) ([]model.Story, error)
	Popular(ctx context.Context, limit int) ([]model.Story, error)
	GetStuckGenerating(ctx context.Context, timeout time.Duration) ([]model.Story, error)
}

type EpisodeRepository interface {
	ListByStory(ctx context.Context, storyID string) ([]model.Episode, error)
	GetByNumber(ctx context.Context, storyID string, episodeNumber int) (*model.Episode, error)
	// SaveGenerated 在一个事务内替换故事的全部剧集，并写入总词数和状态
	SaveGenerated(ctx context.Context, storyID string, episodes []model.Episode, totalWords int, status string) error
	// Upsert 按 (storyID, episodeNumber) 替换或追加单个剧集，返回是否为替换
	Upsert(ctx context.Context, episode *model.Episode) (bool, error)
	UpdateReview(ctx context.Context, storyID string, episodeNumber int, status string, reviewNotes *string) (*model.Episode, error)
}

type JobRepository interface {
	Create(ctx context.Context, job *model.Job) error
	Save(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	ListByStory(ctx context.Context, storyID string) ([]model.Job, error)
	FailRunningByStory(ctx context.Context, storyID string, errMsg string) (int64, error)
}
