package storygen

import (
	"fmt"
	"strings"

	"github.com/nat-prohmpiriya/talelingo-studio/internal/domain"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/model"
)

// StoryConfig 一次生成的输入，运行开始后不再修改
type StoryConfig struct {
	TitleEn      string `json:"titleEn"`
	TitleTh      string `json:"titleTh,omitempty"`
	Level        string `json:"level"`
	Category     string `json:"category"`
	EpisodeCount int    `json:"episodeCount"`
	ArtStyle     string `json:"artStyle,omitempty"`
}

func (c StoryConfig) Validate() error {
	if strings.TrimSpace(c.TitleEn) == "" {
		return fmt.Errorf("%w: titleEn is required", domain.ErrValidation)
	}
	if !model.IsValidLevel(c.Level) {
		return fmt.Errorf("%w: level must be one of %s", domain.ErrValidation, strings.Join(model.Levels, ", "))
	}
	if strings.TrimSpace(c.Category) == "" {
		return fmt.Errorf("%w: category is required", domain.ErrValidation)
	}
	if c.EpisodeCount < 1 {
		return fmt.Errorf("%w: episodeCount must be at least 1", domain.ErrValidation)
	}
	return nil
}

// ConfigFromStory 根据已保存的故事推导生成配置
func ConfigFromStory(story *model.Story, defaultEpisodeCount int, defaultArtStyle string) StoryConfig {
	episodeCount := story.EpisodeCount
	if episodeCount <= 0 {
		episodeCount = len(story.Episodes)
	}
	if episodeCount <= 0 {
		episodeCount = defaultEpisodeCount
	}
	artStyle := story.ArtStyle
	if artStyle == "" {
		artStyle = defaultArtStyle
	}
	return StoryConfig{
		TitleEn:      story.TitleIn("en"),
		TitleTh:      story.TitleIn("th"),
		Level:        story.Level,
		Category:     story.Category,
		EpisodeCount: episodeCount,
		ArtStyle:     artStyle,
	}
}

type WordEntry struct {
	Word       string `json:"word"`
	Definition string `json:"definition"`
	CEFRLevel  string `json:"cefrLevel"`
}

type GeneratedPage struct {
	PageNumber   int               `json:"pageNumber"`
	TextEn       string            `json:"textEn"`
	TextTh       string            `json:"textTh,omitempty"`
	Vocab        []WordEntry       `json:"vocab"`
	Translations map[string]string `json:"translations,omitempty"`
}

type GeneratedEpisode struct {
	EpisodeNumber int             `json:"episodeNumber"`
	TitleEn       string          `json:"titleEn"`
	TitleTh       string          `json:"titleTh,omitempty"`
	Pages         []GeneratedPage `json:"pages"`
	Summary       string          `json:"summary"`
}

// GeneratedStory 模型一次调用的解析结果
type GeneratedStory struct {
	Episodes       []GeneratedEpisode `json:"episodes"`
	TotalWords     int                `json:"totalWords"`
	VocabularyList []WordEntry        `json:"vocabularyList"`
}
