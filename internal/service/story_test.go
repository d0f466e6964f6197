package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/domain"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/eventbus"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/model"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/repository"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/service/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type storyTestEnv struct {
	svc      StoryService
	stories  repository.StoryRepository
	episodes repository.EpisodeRepository
	jobs     repository.JobRepository
	bus      *eventbus.StoryEventBus
}

func newStoryTestEnv(t *testing.T) *storyTestEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Story{}, &model.Episode{}, &model.Job{}))

	env := &storyTestEnv{
		stories:  repository.NewStoryRepository(db),
		episodes: repository.NewEpisodeRepository(db),
		jobs:     repository.NewJobRepository(db),
		bus:      eventbus.NewStoryEventBus(),
	}
	env.svc = NewStoryService(env.stories, env.episodes, env.jobs, env.bus)
	return env
}

func (e *storyTestEnv) create(t *testing.T, title, level, category string) *model.Story {
	t.Helper()
	story, err := e.svc.Create(context.Background(), CreateStoryRequest{
		TitleEn:      title,
		Level:        level,
		Category:     category,
		EpisodeCount: 3,
	})
	require.NoError(t, err)
	return story
}

func (e *storyTestEnv) setStatus(t *testing.T, id string, status statemachine.StoryStatus) {
	t.Helper()
	require.NoError(t, e.stories.SetStatus(context.Background(), id, string(status)))
}

func (e *storyTestEnv) addEpisode(t *testing.T, storyID string, number int, status string) {
	t.Helper()
	_, err := e.episodes.Upsert(context.Background(), &model.Episode{
		StoryID:       storyID,
		EpisodeNumber: number,
		Title:         datatypes.NewJSONType(model.Localized{"en": fmt.Sprintf("Episode %d", number)}),
		Status:        status,
	})
	require.NoError(t, err)
}

func TestStoryServiceCreate(t *testing.T) {
	env := newStoryTestEnv(t)
	ctx := context.Background()

	story, err := env.svc.Create(ctx, CreateStoryRequest{
		TitleEn:      "The Lion's Den!",
		TitleTh:      "ถ้ำสิงโต",
		Level:        "A1",
		Category:     "Fable",
		EpisodeCount: 3,
		ArtStyle:     "crayon",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, story.ID)
	assert.Equal(t, "story-a1-the-lions-den", story.Slug)
	assert.Equal(t, "draft", story.Status)
	assert.Equal(t, "The Lion's Den!", story.TitleIn("en"))
	assert.Equal(t, "ถ้ำสิงโต", story.TitleIn("th"))
	assert.Equal(t, []string{"fable", "animals", "moral", "lesson", "a1"}, []string(story.Tags))
	assert.Equal(t, 3, story.EpisodeCount)
	assert.Equal(t, "crayon", story.ArtStyle)
}

func TestStoryServiceCreateDuplicateSlug(t *testing.T) {
	env := newStoryTestEnv(t)
	ctx := context.Background()

	env.create(t, "The Lion's Den!", "A1", "Fable")
	_, err := env.svc.Create(ctx, CreateStoryRequest{TitleEn: "the lions den", Level: "A1", Category: "Fairy"})
	assert.ErrorIs(t, err, domain.ErrSlugExists)

	// 不同级别生成不同 slug
	_, err = env.svc.Create(ctx, CreateStoryRequest{TitleEn: "The Lion's Den!", Level: "A2", Category: "Fable"})
	assert.NoError(t, err)
}

func TestStoryServiceCreateValidation(t *testing.T) {
	env := newStoryTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, CreateStoryRequest{TitleEn: "   ", Level: "A1", Category: "Fable"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.svc.Create(ctx, CreateStoryRequest{TitleEn: "Title", Level: "C1", Category: "Fable"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStoryServiceList(t *testing.T) {
	env := newStoryTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		env.create(t, fmt.Sprintf("Story %d", i), "A1", "Fable")
	}
	env.create(t, "Other", "B2", "Mystery")

	result, err := env.svc.List(ctx, ListStoriesRequest{Page: 1, Limit: 2, Level: "A1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Total)
	assert.Len(t, result.Stories, 2)
	assert.True(t, result.HasMore)

	result, err = env.svc.List(ctx, ListStoriesRequest{Page: 2, Limit: 2, Level: "A1"})
	require.NoError(t, err)
	assert.Len(t, result.Stories, 1)
	assert.False(t, result.HasMore)

	result, err = env.svc.List(ctx, ListStoriesRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.Total)
	assert.Len(t, result.Stories, 4)

	result, err = env.svc.List(ctx, ListStoriesRequest{Category: "Romance"})
	require.NoError(t, err)
	assert.NotNil(t, result.Stories)
	assert.Empty(t, result.Stories)
}

func TestStoryServiceGetBySlugIncrementsViews(t *testing.T) {
	env := newStoryTestEnv(t)
	ctx := context.Background()

	created := env.create(t, "Moon Rabbit", "A2", "Fairy")

	got, err := env.svc.GetBySlug(ctx, created.Slug)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ViewCount)

	got, err = env.svc.GetBySlug(ctx, created.Slug)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ViewCount)

	_, err = env.svc.GetBySlug(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrStoryNotFound)
}

func TestStoryServiceUpdate(t *testing.T) {
	env := newStoryTestEnv(t)
	ctx := context.Background()
	story := env.create(t, "Moon Rabbit", "A2", "Fairy")

	cover := "https://cdn.example.com/cover.png"
	updated, err := env.svc.Update(ctx, story.ID, UpdateStoryRequest{
		Title:         model.Localized{"ja": "月のうさぎ"},
		CoverImageURL: &cover,
	})
	require.NoError(t, err)
	assert.Equal(t, "Moon Rabbit", updated.TitleIn("en"))
	assert.Equal(t, "月のうさぎ", updated.TitleIn("ja"))
	assert.Equal(t, cover, updated.CoverImageURL)

	reloaded, err := env.svc.Get(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, cover, reloaded.CoverImageURL)
}

func TestStoryServiceUpdateRejectsEpisodes(t *testing.T) {
	env := newStoryTestEnv(t)
	story := env.create(t, "Moon Rabbit", "A2", "Fairy")

	_, err := env.svc.Update(context.Background(), story.ID, UpdateStoryRequest{
		Episodes: json.RawMessage(`[]`),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStoryServiceUpdateStatus(t *testing.T) {
	env := newStoryTestEnv(t)
	ctx := context.Background()
	story := env.create(t, "Moon Rabbit", "A2", "Fairy")

	published := "published"
	_, err := env.svc.Update(ctx, story.ID, UpdateStoryRequest{Status: &published})
	var transitionErr *statemachine.InvalidStateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, "draft", transitionErr.From)

	generating := "generating"
	_, err = env.svc.Update(ctx, story.ID, UpdateStoryRequest{Status: &generating})
	assert.ErrorIs(t, err, domain.ErrStatusConflict)

	unknown := "archived"
	_, err = env.svc.Update(ctx, story.ID, UpdateStoryRequest{Status: &unknown})
	assert.ErrorIs(t, err, domain.ErrValidation)

	env.setStatus(t, story.ID, statemachine.StoryStatusReviewing)
	approved := "approved"
	updated, err := env.svc.Update(ctx, story.ID, UpdateStoryRequest{Status: &approved})
	require.NoError(t, err)
	assert.Equal(t, "approved", updated.Status)

	updated, err = env.svc.Update(ctx, story.ID, UpdateStoryRequest{Status: &published})
	require.NoError(t, err)
	assert.Equal(t, "published", updated.Status)
}

func TestStoryServiceUpdateRejectsLeavingGenerating(t *testing.T) {
	env := newStoryTestEnv(t)
	ctx := context.Background()
	story := env.create(t, "Moon Rabbit", "A2", "Fairy")
	env.setStatus(t, story.ID, statemachine.StoryStatusGenerating)

	draft := "draft"
	_, err := env.svc.Update(ctx, story.ID, UpdateStoryRequest{Status: &draft})
	assert.ErrorIs(t, err, domain.ErrStatusConflict)

	// 生成中仍允许修改非状态字段
	artStyle := "pastel"
	updated, err := env.svc.Update(ctx, story.ID, UpdateStoryRequest{ArtStyle: &artStyle})
	require.NoError(t, err)
	assert.Equal(t, "generating", updated.Status)
	assert.Equal(t, "pastel", updated.ArtStyle)
}

// interleavingStoryRepository 在第一次 Get 之后执行 afterGet，模拟并发写入
type interleavingStoryRepository struct {
	repository.StoryRepository
	afterGet func()
}

func (r *interleavingStoryRepository) Get(ctx context.Context, id string) (*model.Story, error) {
	story, err := r.StoryRepository.Get(ctx, id)
	if r.afterGet != nil {
		fn := r.afterGet
		r.afterGet = nil
		fn()
	}
	return story, err
}

func TestStoryServiceUpdateKeepsConcurrentWrites(t *testing.T) {
	env := newStoryTestEnv(t)
	ctx := context.Background()
	story := env.create(t, "Moon Rabbit", "A2", "Fairy")
	env.setStatus(t, story.ID, statemachine.StoryStatusGenerating)

	repo := &interleavingStoryRepository{
		StoryRepository: env.stories,
		afterGet: func() {
			require.NoError(t, env.stories.IncrementViewCount(ctx, story.ID))
			require.NoError(t, env.episodes.SaveGenerated(ctx, story.ID,
				[]model.Episode{{EpisodeNumber: 1, Status: "generated"}}, 300, "reviewing"))
		},
	}
	svc := NewStoryService(repo, env.episodes, env.jobs, env.bus)

	updated, err := svc.Update(ctx, story.ID, UpdateStoryRequest{Title: model.Localized{"th": "กระต่ายบนดวงจันทร์"}})
	require.NoError(t, err)
	assert.Equal(t, "reviewing", updated.Status)
	assert.Equal(t, 1, updated.ViewCount)
	assert.Equal(t, 300, updated.TotalWords)
	assert.Equal(t, "Moon Rabbit", updated.TitleIn("en"))
	assert.Equal(t, "กระต่ายบนดวงจันทร์", updated.TitleIn("th"))
}

func TestStoryServiceUpdateStatusChangedConcurrently(t *testing.T) {
	env := newStoryTestEnv(t)
	ctx := context.Background()
	story := env.create(t, "Moon Rabbit", "A2", "Fairy")
	env.setStatus(t, story.ID, statemachine.StoryStatusReviewing)

	repo := &interleavingStoryRepository{
		StoryRepository: env.stories,
		afterGet: func() {
			require.NoError(t, env.stories.SetStatus(ctx, story.ID, "approved"))
		},
	}
	svc := NewStoryService(repo, env.episodes, env.jobs, env.bus)

	draft := "draft"
	_, err := svc.Update(ctx, story.ID, UpdateStoryRequest{Status: &draft})
	assert.ErrorIs(t, err, domain.ErrStatusConflict)

	reloaded, err := env.stories.Get(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, "approved", reloaded.Status)
}

func TestStoryServiceDelete(t *testing.T) {
	env := newStoryTestEnv(t)
	ctx := context.Background()
	story := env.create(t, "Moon Rabbit", "A2", "Fairy")
	env.addEpisode(t, story.ID, 1, "generated")

	require.NoError(t, env.svc.Delete(ctx, story.ID))

	_, err := env.svc.Get(ctx, story.ID)
	assert.ErrorIs(t, err, domain.ErrStoryNotFound)
	episodes, err := env.episodes.ListByStory(ctx, story.ID)
	require.NoError(t, err)
	assert.Empty(t, episodes)

	assert.ErrorIs(t, env.svc.Delete(ctx, story.ID), domain.ErrStoryNotFound)
}

func TestStoryServiceStats(t *testing.T) {
	env := newStoryTestEnv(t)
	ctx := context.Background()
	env.create(t, "One", "A1", "Fable")
	env.create(t, "Two", "A1", "Mystery")
	env.create(t, "Three", "B1", "Space")

	stats, err := env.svc.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, map[string]int64{"A1": 2, "A2": 0, "B1": 1, "B2": 0}, stats.ByLevel)
	assert.Equal(t, map[string]int64{
		"Fable": 1, "Fairy": 0, "Mystery": 1, "Romance": 0, "Fantasy": 0, "Daily": 0, "Space": 1,
	}, stats.ByCategory)
}

func TestStoryServiceNewReleasesAndPopular(t *testing.T) {
	env := newStoryTestEnv(t)
	ctx := context.Background()
	first := env.create(t, "One", "A1", "Fable")
	env.create(t, "Two", "A1", "Fable")

	_, err := env.svc.GetBySlug(ctx, first.Slug)
	require.NoError(t, err)

	popular, err := env.svc.Popular(ctx, 0)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, first.ID, popular[0].ID)

	releases, err := env.svc.NewReleases(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, releases, 1)
}

func TestStoryServiceReviewEpisode(t *testing.T) {
	env := newStoryTestEnv(t)
	ctx := context.Background()
	story := env.create(t, "Moon Rabbit", "A2", "Fairy")
	env.addEpisode(t, story.ID, 1, "generated")

	var reviewed []eventbus.StoryEvent
	env.bus.Subscribe(eventbus.EpisodeEventReviewed, func(_ context.Context, e eventbus.StoryEvent) error {
		reviewed = append(reviewed, e)
		return nil
	})

	notes := "Great pacing"
	// storyId 可以传 slug
	episode, err := env.svc.ReviewEpisode(ctx, 1, ReviewEpisodeRequest{
		StoryID:     story.Slug,
		Status:      "approved",
		ReviewNotes: &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, "approved", episode.Status)
	assert.Equal(t, "Great pacing", episode.ReviewNotes)
	require.Len(t, reviewed, 1)
	assert.Equal(t, 1, reviewed[0].EpisodeNumber)

	// 也可以传 id，状态不变时只更新备注
	notes = "Fix page 2"
	episode, err = env.svc.ReviewEpisode(ctx, 1, ReviewEpisodeRequest{
		StoryID:     story.ID,
		Status:      "approved",
		ReviewNotes: &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, "Fix page 2", episode.ReviewNotes)
}

func TestStoryServiceReviewEpisodeErrors(t *testing.T) {
	env := newStoryTestEnv(t)
	ctx := context.Background()
	story := env.create(t, "Moon Rabbit", "A2", "Fairy")
	env.addEpisode(t, story.ID, 1, "generated")

	_, err := env.svc.ReviewEpisode(ctx, 1, ReviewEpisodeRequest{StoryID: story.ID, Status: "published"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// generated 不能回到 draft
	_, err = env.svc.ReviewEpisode(ctx, 1, ReviewEpisodeRequest{StoryID: story.ID, Status: "draft"})
	var transitionErr *statemachine.InvalidStateTransitionError
	assert.ErrorAs(t, err, &transitionErr)

	_, err = env.svc.ReviewEpisode(ctx, 0, ReviewEpisodeRequest{StoryID: story.ID, Status: "approved"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.svc.ReviewEpisode(ctx, 1, ReviewEpisodeRequest{StoryID: "missing", Status: "approved"})
	assert.ErrorIs(t, err, domain.ErrStoryNotFound)

	_, err = env.svc.ReviewEpisode(ctx, 9, ReviewEpisodeRequest{StoryID: story.ID, Status: "approved"})
	assert.ErrorIs(t, err, domain.ErrEpisodeNotFound)
}

func TestStoryServiceJobs(t *testing.T) {
	env := newStoryTestEnv(t)
	ctx := context.Background()
	story := env.create(t, "Moon Rabbit", "A2", "Fairy")

	jobs, err := env.svc.ListJobs(ctx, story.ID)
	require.NoError(t, err)
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)

	job := &model.Job{StoryID: story.ID, Type: model.JobTypeText}
	require.NoError(t, env.jobs.Create(ctx, job))

	got, err := env.svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Status)

	_, err = env.svc.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	_, err = env.svc.ListJobs(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrStoryNotFound)
}

// stubStoryRepository 只实现测试用到的方法
type stubStoryRepository struct {
	repository.StoryRepository
	getBySlug          func(ctx context.Context, slug string) (*model.Story, error)
	incrementViewCount func(ctx context.Context, id string) error
	count              func(ctx context.Context) (int64, error)
}

func (s *stubStoryRepository) GetBySlug(ctx context.Context, slug string) (*model.Story, error) {
	return s.getBySlug(ctx, slug)
}

func (s *stubStoryRepository) IncrementViewCount(ctx context.Context, id string) error {
	return s.incrementViewCount(ctx, id)
}

func (s *stubStoryRepository) Count(ctx context.Context) (int64, error) {
	return s.count(ctx)
}

func TestStoryServiceGetBySlugViewCountFailure(t *testing.T) {
	repo := &stubStoryRepository{
		getBySlug: func(ctx context.Context, slug string) (*model.Story, error) {
			return &model.Story{ID: "s1", Slug: slug, ViewCount: 4}, nil
		},
		incrementViewCount: func(ctx context.Context, id string) error {
			return errors.New("database is locked")
		},
	}
	svc := NewStoryService(repo, nil, nil, nil)

	story, err := svc.GetBySlug(context.Background(), "story-a1-x")
	require.NoError(t, err)
	assert.Equal(t, 4, story.ViewCount)
}

func TestStoryServiceStatsError(t *testing.T) {
	storageErr := errors.New("connection refused")
	repo := &stubStoryRepository{
		count: func(ctx context.Context) (int64, error) { return 0, storageErr },
	}
	svc := NewStoryService(repo, nil, nil, nil)

	_, err := svc.Stats(context.Background())
	assert.ErrorIs(t, err, storageErr)
}
