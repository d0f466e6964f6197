package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/nat-prohmpiriya/talelingo-studio/internal/model"
)

func TestJobRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(setupTestDB(t))

	running := &model.Job{StoryID: "s1", Type: model.JobTypeText, Status: "running"}
	done := &model.Job{StoryID: "s1", Type: model.JobTypeText, Status: "completed", Progress: 100}
	other := &model.Job{StoryID: "s2", Type: model.JobTypeText, Status: "running"}
	for _, j := range []*model.Job{running, done, other} {
		if err := repo.Create(ctx, j); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}

	n, err := repo.FailRunningByStory(ctx, "s1", "interrupted")
	if err != nil || n != 1 {
		t.Fatalf("FailRunningByStory = %d, %v", n, err)
	}

	got, err := repo.Get(ctx, running.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Status != "failed" || got.Error != "interrupted" || got.CompletedAt == nil {
		t.Fatalf("unexpected job: %+v", got)
	}

	list, err := repo.ListByStory(ctx, "s1")
	if err != nil || len(list) != 2 {
		t.Fatalf("ListByStory = %d, %v", len(list), err)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
