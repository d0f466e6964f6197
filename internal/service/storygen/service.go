package storygen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nat-prohmpiriya/talelingo-studio/config"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/domain"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/eventbus"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/model"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/pkg/llm"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/repository"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/service/statemachine"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/utils"
	"k8s.io/klog/v2"
)

// TextGenerator 模型调用入口
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error)
	Stream(ctx context.Context, prompt string, opts llm.GenerateOptions) (*llm.TextStream, error)
}

// Service 故事文本生成流程：提示词 -> 模型 -> 提取 -> 转换 -> 保存 -> 状态迁移
type Service struct {
	cfg       config.GenerationConfig
	llm       TextGenerator
	stories   repository.StoryRepository
	episodes  repository.EpisodeRepository
	jobs      repository.JobRepository
	bus       *eventbus.StoryEventBus
	validator *SchemaValidator
	storySM   *statemachine.StoryStateMachine
	jobSM     *statemachine.JobStateMachine
}

func NewService(
	cfg *config.Config,
	generator TextGenerator,
	stories repository.StoryRepository,
	episodes repository.EpisodeRepository,
	jobs repository.JobRepository,
	bus *eventbus.StoryEventBus,
) (*Service, error) {
	s := &Service{
		cfg:      cfg.Generation,
		llm:      generator,
		stories:  stories,
		episodes: episodes,
		jobs:     jobs,
		bus:      bus,
		storySM:  statemachine.NewStoryStateMachine(),
		jobSM:    statemachine.NewJobStateMachine(),
	}
	if cfg.Generation.ValidateSchema {
		validator, err := NewSchemaValidator()
		if err != nil {
			return nil, err
		}
		s.validator = validator
	}
	return s, nil
}

// GenerateStoryText 调用模型生成整个故事并保存，失败时故事回到 draft
func (s *Service) GenerateStoryText(ctx context.Context, storyID string, cfg StoryConfig) (*GeneratedStory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return s.run(ctx, storyID, func(ctx context.Context) (string, error) {
		prompt := BuildStoryPrompt(cfg)
		klog.V(6).Infof("[StoryGen] 开始生成: storyID=%s, level=%s, episodes=%d", storyID, cfg.Level, cfg.EpisodeCount)
		return s.llm.Generate(ctx, prompt, llm.GenerateOptions{
			Temperature: s.cfg.StoryTemperature,
			MaxTokens:   s.cfg.MaxTokens,
		})
	})
}

// ImportGeneratedText 处理流式生成结束后缓存的完整文本
func (s *Service) ImportGeneratedText(ctx context.Context, storyID string, raw string) (*GeneratedStory, error) {
	return s.run(ctx, storyID, func(context.Context) (string, error) {
		klog.V(6).Infof("[StoryGen] 导入流式生成结果: storyID=%s, length=%d", storyID, len(raw))
		return raw, nil
	})
}

// StreamStoryGeneration 返回模型的文本流，不做任何保存
func (s *Service) StreamStoryGeneration(ctx context.Context, storyID string, cfg StoryConfig) (*llm.TextStream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	klog.V(6).Infof("[StoryGen] 开始流式生成: storyID=%s, level=%s", storyID, cfg.Level)
	return s.llm.Stream(ctx, BuildStoryPrompt(cfg), llm.GenerateOptions{
		Temperature: s.cfg.StoryTemperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
}

// RegenerateEpisode 重新生成单集，按剧集编号替换或追加，不改变故事状态
func (s *Service) RegenerateEpisode(ctx context.Context, storyID string, episodeNumber int, reason string) (*GeneratedEpisode, error) {
	if episodeNumber < 1 {
		return nil, fmt.Errorf("%w: episodeNumber must be at least 1", domain.ErrValidation)
	}

	story, err := s.stories.Get(ctx, storyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrStoryNotFound
		}
		return nil, err
	}

	prompt := BuildRegeneratePrompt(episodeNumber, story.TitleIn("en"), story.Level, reason)
	raw, err := s.llm.Generate(ctx, prompt, llm.GenerateOptions{Temperature: s.cfg.RegenerateTemperature})
	if err != nil {
		return nil, err
	}

	generated, err := ParseEpisode(raw, s.validator)
	if err != nil {
		klog.Errorf("[StoryGen] 解析重新生成结果失败: storyID=%s, episode=%d, error=%v", storyID, episodeNumber, err)
		return nil, err
	}
	generated.EpisodeNumber = episodeNumber

	episode := ConvertEpisode(*generated)
	episode.StoryID = story.ID
	replaced, err := s.episodes.Upsert(ctx, &episode)
	if err != nil {
		return nil, err
	}

	klog.V(6).Infof("[StoryGen] 剧集已重新生成: storyID=%s, episode=%d, replaced=%v", storyID, episodeNumber, replaced)
	s.emit(ctx, eventbus.StoryEvent{
		Type:          eventbus.EpisodeEventRegenerated,
		StoryID:       story.ID,
		EpisodeNumber: episodeNumber,
		Status:        episode.Status,
	})
	return generated, nil
}

// RecoverStuck 将停留在 generating 超过 timeout 的故事重置为 draft，并结束其运行中的任务
func (s *Service) RecoverStuck(ctx context.Context, timeout time.Duration) (int, error) {
	stuck, err := s.stories.GetStuckGenerating(ctx, timeout)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, story := range stuck {
		err := s.stories.TransitionStatus(ctx, story.ID,
			[]string{string(statemachine.StoryStatusGenerating)}, string(statemachine.StoryStatusDraft))
		if err != nil {
			klog.Warningf("[StoryGen] 重置卡住的故事失败: storyID=%s, error=%v", story.ID, err)
			continue
		}
		if _, err := s.jobs.FailRunningByStory(ctx, story.ID, "generation interrupted"); err != nil {
			klog.Warningf("[StoryGen] 结束卡住的任务失败: storyID=%s, error=%v", story.ID, err)
		}
		recovered++
		s.emit(ctx, eventbus.StoryEvent{Type: eventbus.StoryEventRecovered, StoryID: story.ID})
	}
	return recovered, nil
}

// run 标记生成中 -> 创建任务 -> 获取文本 -> 解析保存；任一步失败回滚到 draft
func (s *Service) run(ctx context.Context, storyID string, produce func(context.Context) (string, error)) (*GeneratedStory, error) {
	start := time.Now()

	if err := s.markGenerating(ctx, storyID); err != nil {
		return nil, err
	}

	job, err := s.startJob(ctx, storyID)
	if err != nil {
		klog.Errorf("[StoryGen] 创建任务失败: storyID=%s, error=%v", storyID, err)
		s.resetToDraft(context.WithoutCancel(ctx), storyID)
		return nil, err
	}

	raw, err := produce(ctx)
	if err != nil {
		return nil, s.fail(ctx, storyID, job, start, err)
	}

	generated, err := ParseStory(raw, s.validator)
	if err != nil {
		return nil, s.fail(ctx, storyID, job, start, err)
	}

	episodes := ConvertEpisodes(generated.Episodes)
	if err := s.episodes.SaveGenerated(ctx, storyID, episodes, generated.TotalWords, string(statemachine.StoryStatusReviewing)); err != nil {
		return nil, s.fail(ctx, storyID, job, start, err)
	}

	s.finishJob(ctx, job, statemachine.JobStatusCompleted, utils.ToJSON(map[string]int{
		"episodes":   len(generated.Episodes),
		"totalWords": generated.TotalWords,
		"vocabulary": len(generated.VocabularyList),
	}), "")

	klog.V(6).Infof("[StoryGen] 生成完成: storyID=%s, episodes=%d, duration=%v", storyID, len(episodes), time.Since(start))
	s.emit(ctx, eventbus.StoryEvent{
		Type:         eventbus.StoryEventGenerated,
		StoryID:      storyID,
		JobID:        job.ID,
		EpisodeCount: len(episodes),
		Duration:     time.Since(start),
	})
	return generated, nil
}

func (s *Service) markGenerating(ctx context.Context, storyID string) error {
	sources := statemachine.GenerationSources()
	from := make([]string, 0, len(sources))
	for _, st := range sources {
		from = append(from, string(st))
	}

	err := s.stories.TransitionStatus(ctx, storyID, from, string(statemachine.StoryStatusGenerating))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return domain.ErrStoryNotFound
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: story must be draft or reviewing to generate", domain.ErrStatusConflict)
	default:
		return err
	}
}

func (s *Service) startJob(ctx context.Context, storyID string) (*model.Job, error) {
	job := &model.Job{
		StoryID: storyID,
		Type:    model.JobTypeText,
		Status:  string(statemachine.JobStatusPending),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	if err := s.jobSM.Transition(statemachine.JobStatusPending, statemachine.JobStatusRunning, job.ID); err != nil {
		return nil, err
	}
	job.Status = string(statemachine.JobStatusRunning)
	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// fail 回滚故事状态并记录任务失败，返回原始错误
func (s *Service) fail(ctx context.Context, storyID string, job *model.Job, start time.Time, cause error) error {
	klog.Errorf("[StoryGen] 生成失败: storyID=%s, error=%v", storyID, cause)

	// 请求上下文可能已取消，清理仍需执行
	cleanupCtx := context.WithoutCancel(ctx)
	s.resetToDraft(cleanupCtx, storyID)
	s.finishJob(cleanupCtx, job, statemachine.JobStatusFailed, "", cause.Error())

	s.emit(cleanupCtx, eventbus.StoryEvent{
		Type:     eventbus.StoryEventGenerationFailed,
		StoryID:  storyID,
		JobID:    job.ID,
		Err:      cause,
		Duration: time.Since(start),
	})
	return cause
}

// resetToDraft 尽力回滚，失败只记录日志
func (s *Service) resetToDraft(ctx context.Context, storyID string) {
	if err := s.storySM.Transition(statemachine.StoryStatusGenerating, statemachine.StoryStatusDraft, storyID); err != nil {
		klog.Warningf("[StoryGen] 回滚状态被拒绝: storyID=%s, error=%v", storyID, err)
		return
	}
	if err := s.stories.SetStatus(ctx, storyID, string(statemachine.StoryStatusDraft)); err != nil {
		klog.Warningf("[StoryGen] 回滚故事状态失败: storyID=%s, error=%v", storyID, err)
	}
}

// finishJob 任务只结束一次，保存失败不影响生成结果
func (s *Service) finishJob(ctx context.Context, job *model.Job, status statemachine.JobStatus, result, errMsg string) {
	if err := s.jobSM.Transition(statemachine.JobStatus(job.Status), status, job.ID); err != nil {
		klog.Warningf("[StoryGen] 任务状态迁移被拒绝: jobID=%s, error=%v", job.ID, err)
		return
	}

	now := time.Now()
	job.Status = string(status)
	job.Result = result
	job.Error = errMsg
	job.CompletedAt = &now
	if status == statemachine.JobStatusCompleted {
		job.Progress = 100
	}
	if err := s.jobs.Save(ctx, job); err != nil {
		klog.Warningf("[StoryGen] 保存任务结果失败: jobID=%s, status=%s, error=%v", job.ID, status, err)
	}
}

func (s *Service) emit(ctx context.Context, event eventbus.StoryEvent) {
	if err := s.bus.Emit(ctx, event); err != nil {
		klog.Warningf("[StoryGen] 事件处理失败: type=%s, storyID=%s, error=%v", event.Type, event.StoryID, err)
	}
}
