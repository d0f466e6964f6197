package subscriber

import (
	"context"
	"testing"

	"github.com/nat-prohmpiriya/talelingo-studio/internal/eventbus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStoryEventSubscriberCountsEvents(t *testing.T) {
	bus := eventbus.NewStoryEventBus()
	NewStoryEventSubscriber().Register(bus)

	counter := storyEventsTotal.WithLabelValues(string(eventbus.StoryEventGenerated))
	before := testutil.ToFloat64(counter)

	if err := bus.Emit(context.Background(), eventbus.StoryEvent{Type: eventbus.StoryEventGenerated, StoryID: "s1"}); err != nil {
		t.Fatalf("Emit error: %v", err)
	}
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("counter = %v, want %v", got, before+1)
	}
}

func TestStoryEventSubscriberRejectsIncompleteEpisodeEvent(t *testing.T) {
	bus := eventbus.NewStoryEventBus()
	NewStoryEventSubscriber().Register(bus)

	err := bus.Emit(context.Background(), eventbus.StoryEvent{Type: eventbus.EpisodeEventRegenerated, StoryID: "s1"})
	if err == nil {
		t.Fatalf("expected error for missing episode number")
	}
}
