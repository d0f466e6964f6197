package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Localized 多语言文本，key 为语言代码（en, th, ja ...）
type Localized map[string]string

// BaseLocales 页面翻译始终包含的语言
var BaseLocales = []string{"th", "ja", "zh", "vi", "id"}

// Levels CEFR 级别
var Levels = []string{"A1", "A2", "B1", "B2"}

// Categories 统计时固定展示的故事分类
var Categories = []string{"Fable", "Fairy", "Mystery", "Romance", "Fantasy", "Daily"}

// IsValidLevel 判断是否为支持的 CEFR 级别
func IsValidLevel(level string) bool {
	for _, l := range Levels {
		if l == level {
			return true
		}
	}
	return false
}

type Story struct {
	ID               string                        `json:"id" gorm:"primaryKey;size:36"`
	Slug             string                        `json:"slug" gorm:"size:255;uniqueIndex;not null"`
	Title            datatypes.JSONType[Localized] `json:"title"`
	Language         string                        `json:"language" gorm:"size:10;default:en"`
	Level            string                        `json:"level" gorm:"size:2;index;not null"` // A1, A2, B1, B2
	Category         string                        `json:"category" gorm:"size:100;index;not null"`
	Tags             datatypes.JSONSlice[string]   `json:"tags"`
	EstimatedTime    int                           `json:"estimatedTime" gorm:"default:0"`
	TotalWords       int                           `json:"totalWords" gorm:"default:0"`
	TargetVocabulary int                           `json:"targetVocabulary" gorm:"default:0"`
	CoverImageURL    string                        `json:"coverImageUrl" gorm:"column:cover_image_url;size:500"`
	ArtStyle         string                        `json:"artStyle" gorm:"size:100"`
	EpisodeCount     int                           `json:"episodeCount" gorm:"default:0"`
	Status           string                        `json:"status" gorm:"size:20;index;default:draft"` // draft, generating, reviewing, approved, published
	ViewCount        int                           `json:"viewCount" gorm:"index;default:0"`
	Episodes         []Episode                     `json:"episodes,omitempty" gorm:"foreignKey:StoryID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time                     `json:"createdAt"`
	UpdatedAt        time.Time                     `json:"updatedAt"`
}

func (s *Story) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// TitleIn 返回指定语言的标题
func (s *Story) TitleIn(locale string) string {
	return s.Title.Data()[locale]
}

type Episode struct {
	ID                uint                                  `json:"-" gorm:"primaryKey"`
	StoryID           string                                `json:"storyId" gorm:"size:36;not null;uniqueIndex:idx_story_episode"`
	EpisodeNumber     int                                   `json:"episodeNumber" gorm:"not null;uniqueIndex:idx_story_episode"`
	Title             datatypes.JSONType[Localized]         `json:"title"`
	Summary           string                                `json:"summary" gorm:"type:text"`
	Pages             datatypes.JSONSlice[Page]             `json:"pages"`
	VocabularyDetails datatypes.JSONSlice[VocabularyDetail] `json:"vocabularyDetails"`
	MiniGame          datatypes.JSONType[MiniGame]          `json:"miniGame"`
	Status            string                                `json:"status" gorm:"size:20;default:draft"` // draft, generated, approved, rejected
	ReviewNotes       string                                `json:"reviewNotes" gorm:"type:text"`
	CreatedAt         time.Time                             `json:"createdAt"`
	UpdatedAt         time.Time                             `json:"updatedAt"`
}

type Page struct {
	PageNumber     int                   `json:"pageNumber"`
	Text           string                `json:"text"`
	Translations   Localized             `json:"translations"`
	Vocabulary     []VocabularyHighlight `json:"vocabulary"`
	AudioURL       string                `json:"audioUrl"`
	ImageURL       string                `json:"imageUrl"`
	WordTimestamps []WordTimestamp       `json:"wordTimestamps"`
}

// VocabularyHighlight 页面中需要高亮的词汇，保留生成时的释义和级别
type VocabularyHighlight struct {
	Word       string `json:"word"`
	Highlight  bool   `json:"highlight"`
	Definition string `json:"definition,omitempty"`
	CEFRLevel  string `json:"cefrLevel,omitempty"`
}

type WordTimestamp struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type VocabularyDetail struct {
	Word                string    `json:"word"`
	Phonetic            string    `json:"phonetic"`
	Pronunciations      Localized `json:"pronunciations,omitempty"`
	Translations        Localized `json:"translations,omitempty"`
	POS                 string    `json:"pos"`
	Example             string    `json:"example"`
	ExampleTranslations Localized `json:"exampleTranslations,omitempty"`
}

const (
	MiniGameMultipleChoice = "multipleChoice"
	MiniGameListening      = "listening"
	MiniGameSpelling       = "spelling"
	MiniGameContextFill    = "contextFill"
	MiniGameWordMatch      = "wordMatch"
)

type MiniGame struct {
	Type      string     `json:"type"`
	Questions []Question `json:"questions"`
}

type Question struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	AudioURL      string   `json:"audioUrl,omitempty"`
}
