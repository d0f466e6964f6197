package subscriber

import (
	"context"
	"fmt"

	"github.com/nat-prohmpiriya/talelingo-studio/internal/eventbus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"k8s.io/klog/v2"
)

var (
	storyEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talelingo_story_events_total",
		Help: "Story workflow events by type.",
	}, []string{"type"})

	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "talelingo_story_generation_duration_seconds",
		Help:    "End-to-end duration of story generation runs.",
		Buckets: []float64{5, 15, 30, 60, 120, 180, 300, 600},
	}, []string{"outcome"})
)

// StoryEventSubscriber 将故事事件写入日志和指标
type StoryEventSubscriber struct{}

func NewStoryEventSubscriber() *StoryEventSubscriber {
	return &StoryEventSubscriber{}
}

func (s *StoryEventSubscriber) Register(bus *eventbus.StoryEventBus) {
	if bus == nil {
		return
	}
	bus.Subscribe(eventbus.StoryEventGenerated, s.handleGenerated)
	bus.Subscribe(eventbus.StoryEventGenerationFailed, s.handleGenerationFailed)
	bus.Subscribe(eventbus.StoryEventRecovered, s.handleRecovered)
	bus.Subscribe(eventbus.EpisodeEventRegenerated, s.handleEpisode)
	bus.Subscribe(eventbus.EpisodeEventReviewed, s.handleEpisode)
}

func (s *StoryEventSubscriber) handleGenerated(ctx context.Context, event eventbus.StoryEvent) error {
	if event.StoryID == "" {
		return fmt.Errorf("故事ID为空")
	}
	storyEventsTotal.WithLabelValues(string(event.Type)).Inc()
	generationDuration.WithLabelValues("success").Observe(event.Duration.Seconds())
	klog.V(6).Infof("故事生成完成: storyID=%s, jobID=%s, episodes=%d, duration=%v",
		event.StoryID, event.JobID, event.EpisodeCount, event.Duration)
	return nil
}

func (s *StoryEventSubscriber) handleGenerationFailed(ctx context.Context, event eventbus.StoryEvent) error {
	if event.StoryID == "" {
		return fmt.Errorf("故事ID为空")
	}
	storyEventsTotal.WithLabelValues(string(event.Type)).Inc()
	generationDuration.WithLabelValues("failed").Observe(event.Duration.Seconds())
	klog.Errorf("故事生成失败: storyID=%s, jobID=%s, error=%v", event.StoryID, event.JobID, event.Err)
	return nil
}

func (s *StoryEventSubscriber) handleRecovered(ctx context.Context, event eventbus.StoryEvent) error {
	storyEventsTotal.WithLabelValues(string(event.Type)).Inc()
	klog.Warningf("卡住的故事已重置为草稿: storyID=%s", event.StoryID)
	return nil
}

func (s *StoryEventSubscriber) handleEpisode(ctx context.Context, event eventbus.StoryEvent) error {
	if event.StoryID == "" || event.EpisodeNumber <= 0 {
		return fmt.Errorf("剧集事件缺少故事ID或剧集编号")
	}
	storyEventsTotal.WithLabelValues(string(event.Type)).Inc()
	klog.V(6).Infof("剧集事件: type=%s, storyID=%s, episode=%d, status=%s",
		event.Type, event.StoryID, event.EpisodeNumber, event.Status)
	return nil
}
