package eventbus

import (
	"context"
	"time"
)

type StoryEventType string

const (
	StoryEventGenerated        StoryEventType = "story.generated"
	StoryEventGenerationFailed StoryEventType = "story.generation_failed"
	StoryEventRecovered        StoryEventType = "story.recovered"
	EpisodeEventRegenerated    StoryEventType = "episode.regenerated"
	EpisodeEventReviewed       StoryEventType = "episode.reviewed"
)

type StoryEvent struct {
	Type          StoryEventType
	StoryID       string
	JobID         string
	EpisodeNumber int
	EpisodeCount  int
	Status        string
	Err           error
	Duration      time.Duration
}

type StoryEventHandler = Handler[StoryEvent]

// StoryEventBus 故事生成相关事件
type StoryEventBus struct {
	*Bus[StoryEventType, StoryEvent]
}

func NewStoryEventBus() *StoryEventBus {
	return &StoryEventBus{Bus: NewBus[StoryEventType, StoryEvent]()}
}

// Emit 发布事件，nil 总线直接忽略
func (b *StoryEventBus) Emit(ctx context.Context, event StoryEvent) error {
	if b == nil {
		return nil
	}
	return b.Publish(ctx, event.Type, event)
}
