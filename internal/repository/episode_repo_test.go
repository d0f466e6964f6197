package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/nat-prohmpiriya/talelingo-studio/internal/model"
	"gorm.io/datatypes"
)

func TestEpisodeRepositorySaveGenerated(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	stories := NewStoryRepository(db)
	repo := NewEpisodeRepository(db)

	story := newStory("s", "A1", "Fable")
	if err := stories.Create(ctx, story); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	pages := []model.Page{{
		PageNumber:   1,
		Text:         "Once upon a time.",
		Translations: model.Localized{"th": "กาลครั้งหนึ่ง", "ja": "", "zh": "", "vi": "", "id": ""},
		Vocabulary:   []model.VocabularyHighlight{{Word: "time", Highlight: true, Definition: "a period", CEFRLevel: "A1"}},
	}}
	first := []model.Episode{{
		EpisodeNumber: 1,
		Title:         datatypes.NewJSONType(model.Localized{"en": "One"}),
		Pages:         datatypes.NewJSONSlice(pages),
		Status:        "generated",
	}}
	if err := repo.SaveGenerated(ctx, story.ID, first, 0, "reviewing"); err != nil {
		t.Fatalf("SaveGenerated error: %v", err)
	}

	// 再次保存会替换全部剧集
	second := []model.Episode{{EpisodeNumber: 1}, {EpisodeNumber: 2}}
	if err := repo.SaveGenerated(ctx, story.ID, second, 1234, "reviewing"); err != nil {
		t.Fatalf("SaveGenerated error: %v", err)
	}

	list, err := repo.ListByStory(ctx, story.ID)
	if err != nil {
		t.Fatalf("ListByStory error: %v", err)
	}
	if len(list) != 2 || list[0].EpisodeNumber != 1 || list[1].EpisodeNumber != 2 {
		t.Fatalf("unexpected episodes: %+v", list)
	}

	got, err := stories.Get(ctx, story.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Status != "reviewing" || len(got.Episodes) != 2 || got.TotalWords != 1234 {
		t.Fatalf("unexpected story state: status=%s episodes=%d totalWords=%d", got.Status, len(got.Episodes), got.TotalWords)
	}

	if err := repo.SaveGenerated(ctx, "missing", nil, 0, "reviewing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEpisodeRepositoryUpsert(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	stories := NewStoryRepository(db)
	repo := NewEpisodeRepository(db)

	story := newStory("s", "A1", "Fable")
	if err := stories.Create(ctx, story); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := repo.SaveGenerated(ctx, story.ID, []model.Episode{{EpisodeNumber: 1, Summary: "old"}}, 0, "reviewing"); err != nil {
		t.Fatalf("SaveGenerated error: %v", err)
	}

	replaced, err := repo.Upsert(ctx, &model.Episode{StoryID: story.ID, EpisodeNumber: 1, Summary: "new"})
	if err != nil || !replaced {
		t.Fatalf("Upsert existing = %v, %v", replaced, err)
	}
	replaced, err = repo.Upsert(ctx, &model.Episode{StoryID: story.ID, EpisodeNumber: 2, Summary: "appended"})
	if err != nil || replaced {
		t.Fatalf("Upsert new = %v, %v", replaced, err)
	}

	list, err := repo.ListByStory(ctx, story.ID)
	if err != nil {
		t.Fatalf("ListByStory error: %v", err)
	}
	if len(list) != 2 || list[0].Summary != "new" || list[1].Summary != "appended" {
		t.Fatalf("unexpected episodes: %+v", list)
	}
}

func TestEpisodeRepositoryUpdateReview(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	stories := NewStoryRepository(db)
	repo := NewEpisodeRepository(db)

	story := newStory("s", "A1", "Fable")
	if err := stories.Create(ctx, story); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := repo.SaveGenerated(ctx, story.ID, []model.Episode{{EpisodeNumber: 1, Status: "generated"}}, 0, "reviewing"); err != nil {
		t.Fatalf("SaveGenerated error: %v", err)
	}

	notes := "looks good"
	ep, err := repo.UpdateReview(ctx, story.ID, 1, "approved", &notes)
	if err != nil {
		t.Fatalf("UpdateReview error: %v", err)
	}
	if ep.Status != "approved" || ep.ReviewNotes != notes {
		t.Fatalf("unexpected episode: %+v", ep)
	}

	if _, err := repo.UpdateReview(ctx, story.ID, 9, "approved", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
