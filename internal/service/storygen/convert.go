package storygen

import (
	"github.com/nat-prohmpiriya/talelingo-studio/internal/model"
	"gorm.io/datatypes"
)

// ConvertPage 将生成的页面转换为存储结构
func ConvertPage(page GeneratedPage) model.Page {
	translations := make(model.Localized, len(model.BaseLocales)+len(page.Translations))
	for locale, text := range page.Translations {
		translations[locale] = text
	}
	for _, locale := range model.BaseLocales {
		if _, ok := translations[locale]; !ok {
			translations[locale] = ""
		}
	}
	if page.TextTh != "" {
		translations["th"] = page.TextTh
	}

	vocabulary := make([]model.VocabularyHighlight, 0, len(page.Vocab))
	for _, v := range page.Vocab {
		vocabulary = append(vocabulary, model.VocabularyHighlight{
			Word:       v.Word,
			Highlight:  true,
			Definition: v.Definition,
			CEFRLevel:  v.CEFRLevel,
		})
	}

	return model.Page{
		PageNumber:     page.PageNumber,
		Text:           page.TextEn,
		Translations:   translations,
		Vocabulary:     vocabulary,
		AudioURL:       "",
		ImageURL:       "",
		WordTimestamps: []model.WordTimestamp{},
	}
}

// ConvertEpisode 将生成的剧集转换为存储结构，StoryID 由调用方填写
func ConvertEpisode(episode GeneratedEpisode) model.Episode {
	pages := make([]model.Page, 0, len(episode.Pages))
	for _, p := range episode.Pages {
		pages = append(pages, ConvertPage(p))
	}

	return model.Episode{
		EpisodeNumber:     episode.EpisodeNumber,
		Title:             datatypes.NewJSONType(model.Localized{"en": episode.TitleEn, "th": episode.TitleTh}),
		Summary:           episode.Summary,
		Pages:             datatypes.NewJSONSlice(pages),
		VocabularyDetails: datatypes.NewJSONSlice([]model.VocabularyDetail{}),
		MiniGame: datatypes.NewJSONType(model.MiniGame{
			Type:      model.MiniGameMultipleChoice,
			Questions: []model.Question{},
		}),
		Status: "generated",
	}
}

func ConvertEpisodes(episodes []GeneratedEpisode) []model.Episode {
	converted := make([]model.Episode, 0, len(episodes))
	for _, e := range episodes {
		converted = append(converted, ConvertEpisode(e))
	}
	return converted
}
