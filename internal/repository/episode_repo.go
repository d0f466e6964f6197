package repository

import (
	"context"
	"errors"

	"github.com/nat-prohmpiriya/talelingo-studio/internal/model"
	"gorm.io/gorm"
)

type episodeRepository struct {
	db *gorm.DB
}

func NewEpisodeRepository(db *gorm.DB) EpisodeRepository {
	return &episodeRepository{db: db}
}

func (r *episodeRepository) ListByStory(ctx context.Context, storyID string) ([]model.Episode, error) {
	var episodes []model.Episode
	err := r.db.WithContext(ctx).
		Where("story_id = ?", storyID).
		Order("episode_number ASC").
		Find(&episodes).Error
	return episodes, err
}

func (r *episodeRepository) GetByNumber(ctx context.Context, storyID string, episodeNumber int) (*model.Episode, error) {
	var episode model.Episode
	err := r.db.WithContext(ctx).
		Where("story_id = ? AND episode_number = ?", storyID, episodeNumber).
		First(&episode).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &episode, nil
}

func (r *episodeRepository) SaveGenerated(ctx context.Context, storyID string, episodes []model.Episode, totalWords int, status string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("story_id = ?", storyID).Delete(&model.Episode{}).Error; err != nil {
			return err
		}

		for i := range episodes {
			episodes[i].ID = 0
			episodes[i].StoryID = storyID
		}
		if len(episodes) > 0 {
			if err := tx.Create(&episodes).Error; err != nil {
				return err
			}
		}

		result := tx.Model(&model.Story{}).Where("id = ?", storyID).Updates(map[string]any{
			"status":      status,
			"total_words": totalWords,
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *episodeRepository) Upsert(ctx context.Context, episode *model.Episode) (bool, error) {
	replaced := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Episode
		err := tx.Where("story_id = ? AND episode_number = ?", episode.StoryID, episode.EpisodeNumber).
			First(&existing).Error
		switch {
		case err == nil:
			replaced = true
			episode.ID = existing.ID
			episode.CreatedAt = existing.CreatedAt
			return tx.Save(episode).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			episode.ID = 0
			return tx.Create(episode).Error
		default:
			return err
		}
	})
	return replaced, err
}

func (r *episodeRepository) UpdateReview(ctx context.Context, storyID string, episodeNumber int, status string, reviewNotes *string) (*model.Episode, error) {
	updates := map[string]any{"status": status}
	if reviewNotes != nil {
		updates["review_notes"] = *reviewNotes
	}

	result := r.db.WithContext(ctx).Model(&model.Episode{}).
		Where("story_id = ? AND episode_number = ?", storyID, episodeNumber).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByNumber(ctx, storyID, episodeNumber)
}
