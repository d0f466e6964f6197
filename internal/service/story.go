package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nat-prohmpiriya/talelingo-studio/internal/domain"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/eventbus"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/model"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/repository"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/service/statemachine"
	"gorm.io/datatypes"
	"k8s.io/klog/v2"
)

const (
	defaultPageSize  = 20
	maxPageSize      = 100
	defaultListLimit = 5
)

// CreateStoryRequest 创建故事请求
type CreateStoryRequest struct {
	TitleEn      string `json:"titleEn" binding:"required"`
	TitleTh      string `json:"titleTh"`
	Level        string `json:"level" binding:"required,oneof=A1 A2 B1 B2"`
	Category     string `json:"category" binding:"required"`
	EpisodeCount int    `json:"episodeCount" binding:"required,min=1,max=20"`
	ArtStyle     string `json:"artStyle"`
}

// UpdateStoryRequest 更新故事请求，未提供的字段保持不变
type UpdateStoryRequest struct {
	Title            model.Localized `json:"title"`
	Level            *string         `json:"level" binding:"omitempty,oneof=A1 A2 B1 B2"`
	Category         *string         `json:"category"`
	Tags             []string        `json:"tags"`
	EstimatedTime    *int            `json:"estimatedTime" binding:"omitempty,min=0"`
	TargetVocabulary *int            `json:"targetVocabulary" binding:"omitempty,min=0"`
	CoverImageURL    *string         `json:"coverImageUrl"`
	ArtStyle         *string         `json:"artStyle"`
	EpisodeCount     *int            `json:"episodeCount" binding:"omitempty,min=1,max=20"`
	Status           *string         `json:"status"`
	// 剧集只能通过生成和审核接口修改
	Episodes json.RawMessage `json:"episodes"`
}

// ListStoriesRequest 列表查询参数
type ListStoriesRequest struct {
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
	Level    string `form:"level"`
	Category string `form:"category"`
}

// ReviewEpisodeRequest 剧集审核请求，storyId 可以是 id 或 slug
type ReviewEpisodeRequest struct {
	StoryID     string  `json:"storyId" binding:"required"`
	Status      string  `json:"status" binding:"required"`
	ReviewNotes *string `json:"reviewNotes"`
}

type StoryListResult struct {
	Stories []model.Story `json:"stories"`
	Total   int64         `json:"total"`
	HasMore bool          `json:"hasMore"`
}

type StoryStats struct {
	Total      int64            `json:"total"`
	ByLevel    map[string]int64 `json:"byLevel"`
	ByCategory map[string]int64 `json:"byCategory"`
}

// StoryService 故事管理服务接口
type StoryService interface {
	List(ctx context.Context, req ListStoriesRequest) (*StoryListResult, error)
	Get(ctx context.Context, id string) (*model.Story, error)
	GetBySlug(ctx context.Context, slug string) (*model.Story, error)
	Create(ctx context.Context, req CreateStoryRequest) (*model.Story, error)
	Update(ctx context.Context, id string, req UpdateStoryRequest) (*model.Story, error)
	Delete(ctx context.Context, id string) error
	NewReleases(ctx context.Context, limit int) ([]model.Story, error)
	Popular(ctx context.Context, limit int) ([]model.Story, error)
	Stats(ctx context.Context) (*StoryStats, error)
	ReviewEpisode(ctx context.Context, episodeNumber int, req ReviewEpisodeRequest) (*model.Episode, error)
	ListJobs(ctx context.Context, storyID string) ([]model.Job, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
}

type storyService struct {
	stories   repository.StoryRepository
	episodes  repository.EpisodeRepository
	jobs      repository.JobRepository
	bus       *eventbus.StoryEventBus
	storySM   *statemachine.StoryStateMachine
	episodeSM *statemachine.EpisodeStateMachine
}

func NewStoryService(
	stories repository.StoryRepository,
	episodes repository.EpisodeRepository,
	jobs repository.JobRepository,
	bus *eventbus.StoryEventBus,
) StoryService {
	return &storyService{
		stories:   stories,
		episodes:  episodes,
		jobs:      jobs,
		bus:       bus,
		storySM:   statemachine.NewStoryStateMachine(),
		episodeSM: statemachine.NewEpisodeStateMachine(),
	}
}

// List 分页查询，page 从 1 开始
func (s *storyService) List(ctx context.Context, req ListStoriesRequest) (*StoryListResult, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	offset := (page - 1) * limit
	stories, total, err := s.stories.FindPaginated(ctx, repository.StoryFilter{
		Level:    req.Level,
		Category: req.Category,
		Offset:   offset,
		Limit:    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	if stories == nil {
		stories = []model.Story{}
	}

	return &StoryListResult{
		Stories: stories,
		Total:   total,
		HasMore: int64(offset+len(stories)) < total,
	}, nil
}

func (s *storyService) Get(ctx context.Context, id string) (*model.Story, error) {
	story, err := s.stories.Get(ctx, id)
	if err != nil {
		return nil, mapStoryErr(err)
	}
	return story, nil
}

// GetBySlug 按 slug 获取并累加浏览量
func (s *storyService) GetBySlug(ctx context.Context, slug string) (*model.Story, error) {
	story, err := s.stories.GetBySlug(ctx, slug)
	if err != nil {
		return nil, mapStoryErr(err)
	}

	if err := s.stories.IncrementViewCount(ctx, story.ID); err != nil {
		klog.Warningf("[StoryService] 更新浏览量失败: storyID=%s, error=%v", story.ID, err)
	} else {
		story.ViewCount++
	}
	return story, nil
}

// Create 创建 draft 故事，slug 由英文标题和级别生成
func (s *storyService) Create(ctx context.Context, req CreateStoryRequest) (*model.Story, error) {
	titleEn := strings.TrimSpace(req.TitleEn)
	if titleEn == "" {
		return nil, fmt.Errorf("%w: titleEn is required", domain.ErrValidation)
	}
	if !model.IsValidLevel(req.Level) {
		return nil, fmt.Errorf("%w: invalid level %q", domain.ErrValidation, req.Level)
	}

	slug := GenerateSlug(titleEn, req.Level)
	exists, err := s.stories.SlugExists(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to check slug: %w", err)
	}
	if exists {
		return nil, domain.ErrSlugExists
	}

	story := &model.Story{
		Slug:         slug,
		Title:        datatypes.NewJSONType(model.Localized{"en": titleEn, "th": req.TitleTh}),
		Language:     "en",
		Level:        req.Level,
		Category:     req.Category,
		Tags:         datatypes.NewJSONSlice(GenerateTags(req.Category, req.Level)),
		ArtStyle:     req.ArtStyle,
		EpisodeCount: req.EpisodeCount,
		Status:       string(statemachine.StoryStatusDraft),
	}
	if err := s.stories.Create(ctx, story); err != nil {
		// 并发创建时由唯一索引兜底
		if errors.Is(err, repository.ErrConflict) {
			return nil, domain.ErrSlugExists
		}
		return nil, fmt.Errorf("failed to create story: %w", err)
	}

	klog.V(6).Infof("[StoryService] 故事已创建: storyID=%s, slug=%s", story.ID, story.Slug)
	return story, nil
}

// Update 只写入请求中出现的字段，状态变更经过状态机校验并以读取时的状态为条件
func (s *storyService) Update(ctx context.Context, id string, req UpdateStoryRequest) (*model.Story, error) {
	if len(req.Episodes) > 0 {
		return nil, fmt.Errorf("%w: episodes cannot be updated through this endpoint", domain.ErrValidation)
	}

	story, err := s.stories.Get(ctx, id)
	if err != nil {
		return nil, mapStoryErr(err)
	}

	fields := make(map[string]any)
	var from []string
	if req.Status != nil && *req.Status != story.Status {
		current := statemachine.StoryStatus(story.Status)
		to := statemachine.StoryStatus(*req.Status)
		if !statemachine.IsValidStoryStatus(*req.Status) {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, *req.Status)
		}
		// generating 只能由生成流程进入和离开
		if to == statemachine.StoryStatusGenerating {
			return nil, fmt.Errorf("%w: use the generate endpoints to start generation", domain.ErrStatusConflict)
		}
		if current == statemachine.StoryStatusGenerating {
			return nil, fmt.Errorf("%w: story is being generated", domain.ErrStatusConflict)
		}
		if err := s.storySM.Transition(current, to, story.ID); err != nil {
			return nil, err
		}
		fields["status"] = *req.Status
		from = []string{story.Status}
	}

	if len(req.Title) > 0 {
		title := model.Localized{}
		for k, v := range story.Title.Data() {
			title[k] = v
		}
		for k, v := range req.Title {
			title[k] = v
		}
		fields["title"] = datatypes.NewJSONType(title)
	}
	if req.Level != nil {
		fields["level"] = *req.Level
	}
	if req.Category != nil {
		fields["category"] = *req.Category
	}
	if req.Tags != nil {
		fields["tags"] = datatypes.NewJSONSlice(req.Tags)
	}
	if req.EstimatedTime != nil {
		fields["estimated_time"] = *req.EstimatedTime
	}
	if req.TargetVocabulary != nil {
		fields["target_vocabulary"] = *req.TargetVocabulary
	}
	if req.CoverImageURL != nil {
		fields["cover_image_url"] = *req.CoverImageURL
	}
	if req.ArtStyle != nil {
		fields["art_style"] = *req.ArtStyle
	}
	if req.EpisodeCount != nil {
		fields["episode_count"] = *req.EpisodeCount
	}
	if len(fields) == 0 {
		return story, nil
	}

	if err := s.stories.UpdateFields(ctx, story.ID, fields, from); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, domain.ErrStoryNotFound
		case errors.Is(err, repository.ErrConflict):
			return nil, fmt.Errorf("%w: story status changed concurrently", domain.ErrStatusConflict)
		default:
			return nil, fmt.Errorf("failed to update story: %w", err)
		}
	}

	updated, err := s.stories.Get(ctx, story.ID)
	if err != nil {
		return nil, mapStoryErr(err)
	}
	return updated, nil
}

// Delete 删除故事，剧集级联删除
func (s *storyService) Delete(ctx context.Context, id string) error {
	if err := s.stories.Delete(ctx, id); err != nil {
		return mapStoryErr(err)
	}
	klog.V(6).Infof("[StoryService] 故事已删除: storyID=%s", id)
	return nil
}

func (s *storyService) NewReleases(ctx context.Context, limit int) ([]model.Story, error) {
	stories, err := s.stories.NewReleases(ctx, clampListLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list new releases: %w", err)
	}
	return nonNilStories(stories), nil
}

func (s *storyService) Popular(ctx context.Context, limit int) ([]model.Story, error) {
	stories, err := s.stories.Popular(ctx, clampListLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list popular stories: %w", err)
	}
	return nonNilStories(stories), nil
}

// Stats 级别和固定分类补零，其他出现过的分类也一并返回
func (s *storyService) Stats(ctx context.Context) (*StoryStats, error) {
	total, err := s.stories.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count stories: %w", err)
	}
	levels, err := s.stories.CountBy(ctx, "level")
	if err != nil {
		return nil, fmt.Errorf("failed to count stories by level: %w", err)
	}
	categories, err := s.stories.CountBy(ctx, "category")
	if err != nil {
		return nil, fmt.Errorf("failed to count stories by category: %w", err)
	}

	stats := &StoryStats{
		Total:      total,
		ByLevel:    make(map[string]int64, len(model.Levels)),
		ByCategory: make(map[string]int64, len(model.Categories)),
	}
	for _, level := range model.Levels {
		stats.ByLevel[level] = levels[level]
	}
	for _, category := range model.Categories {
		stats.ByCategory[category] = 0
	}
	for category, count := range categories {
		stats.ByCategory[category] = count
	}
	return stats, nil
}

// ReviewEpisode 更新剧集审核状态和备注
func (s *storyService) ReviewEpisode(ctx context.Context, episodeNumber int, req ReviewEpisodeRequest) (*model.Episode, error) {
	if episodeNumber < 1 {
		return nil, fmt.Errorf("%w: invalid episode number", domain.ErrValidation)
	}
	if !statemachine.IsValidEpisodeStatus(req.Status) {
		return nil, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, req.Status)
	}

	story, err := s.resolveStory(ctx, req.StoryID)
	if err != nil {
		return nil, err
	}

	current, err := s.episodes.GetByNumber(ctx, story.ID, episodeNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrEpisodeNotFound
		}
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}
	if current.Status != req.Status {
		from := statemachine.EpisodeStatus(current.Status)
		if err := s.episodeSM.ValidateTransition(from, statemachine.EpisodeStatus(req.Status)); err != nil {
			return nil, err
		}
	}

	episode, err := s.episodes.UpdateReview(ctx, story.ID, episodeNumber, req.Status, req.ReviewNotes)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrEpisodeNotFound
		}
		return nil, fmt.Errorf("failed to update episode: %w", err)
	}

	klog.V(6).Infof("[StoryService] 剧集审核: storyID=%s, episode=%d, status=%s", story.ID, episodeNumber, req.Status)
	if err := s.bus.Emit(ctx, eventbus.StoryEvent{
		Type:          eventbus.EpisodeEventReviewed,
		StoryID:       story.ID,
		EpisodeNumber: episodeNumber,
		Status:        req.Status,
	}); err != nil {
		klog.Warningf("[StoryService] 事件处理失败: storyID=%s, error=%v", story.ID, err)
	}
	return episode, nil
}

func (s *storyService) ListJobs(ctx context.Context, storyID string) ([]model.Job, error) {
	if _, err := s.stories.Get(ctx, storyID); err != nil {
		return nil, mapStoryErr(err)
	}
	jobs, err := s.jobs.ListByStory(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	return jobs, nil
}

func (s *storyService) GetJob(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// resolveStory 先按 slug 查找，再按 id 查找
func (s *storyService) resolveStory(ctx context.Context, idOrSlug string) (*model.Story, error) {
	story, err := s.stories.GetBySlug(ctx, idOrSlug)
	if err == nil {
		return story, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}

	story, err = s.stories.Get(ctx, idOrSlug)
	if err != nil {
		return nil, mapStoryErr(err)
	}
	return story, nil
}

func mapStoryErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.ErrStoryNotFound
	}
	return fmt.Errorf("failed to access story: %w", err)
}

func clampListLimit(limit int) int {
	if limit < 1 {
		return defaultListLimit
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

func nonNilStories(stories []model.Story) []model.Story {
	if stories == nil {
		return []model.Story{}
	}
	return stories
}
