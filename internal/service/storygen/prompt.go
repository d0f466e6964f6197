package storygen

import (
	"fmt"
	"math"
	"strings"
)

// 各级别词族上限
var vocabularyLimits = map[string]int{
	"A1": 500,
	"A2": 1000,
	"B1": 2000,
	"B2": 3000,
}

const pagesPerEpisode = 3

func VocabularyLimit(level string) int {
	return vocabularyLimits[level]
}

func WordsPerEpisode(level string) int {
	switch level {
	case "A1":
		return 150
	case "A2":
		return 250
	default:
		return 400
	}
}

func WordsPerPage(level string) int {
	return int(math.Round(float64(WordsPerEpisode(level)) / pagesPerEpisode))
}

// BuildStoryPrompt 整体生成提示词，相同配置总是得到相同结果
func BuildStoryPrompt(cfg StoryConfig) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a children's story writer for language learners. Write a %s story called %q.\n\n", cfg.Category, cfg.TitleEn)

	b.WriteString("REQUIREMENTS:\n")
	fmt.Fprintf(&b, "- CEFR Level: %s (Oxford 3000 vocabulary, max %d word families)\n", cfg.Level, VocabularyLimit(cfg.Level))
	fmt.Fprintf(&b, "- Episodes: %d\n", cfg.EpisodeCount)
	fmt.Fprintf(&b, "- Pages per episode: %d\n", pagesPerEpisode)
	fmt.Fprintf(&b, "- Words per page: ~%d\n", WordsPerPage(cfg.Level))
	b.WriteString("- Target audience: Children learning English\n")
	if cfg.TitleTh != "" {
		fmt.Fprintf(&b, "- Thai title: %s\n", cfg.TitleTh)
	}
	if cfg.ArtStyle != "" {
		fmt.Fprintf(&b, "- Illustration style (for scene descriptions): %s\n", cfg.ArtStyle)
	}

	b.WriteString(`
FORMAT - Return ONLY valid JSON:
{
  "episodes": [
    {
      "episodeNumber": 1,
      "titleEn": "Episode Title",
      "titleTh": "Thai Title",
      "pages": [
        {
          "pageNumber": 1,
          "textEn": "Page text here...",
          "textTh": "Thai translation...",
          "vocab": [
            {"word": "example", "definition": "a representative form", "cefrLevel": "A2"}
          ]
        }
      ],
      "summary": "Brief episode summary"
    }
  ],
  "totalWords": 1234,
  "vocabularyList": [
    {"word": "lion", "definition": "large wild cat", "cefrLevel": "A1"}
  ]
}

STYLE GUIDE:
- Use simple sentences
- Include dialogue
- Add sensory details
- Each page should end with a small cliffhanger
- Teach 3-5 new vocabulary words per page

`)
	fmt.Fprintf(&b, "STORY PLOT: %s about %q", cfg.Category, cfg.TitleEn)
	return b.String()
}

// BuildRegeneratePrompt 单集重新生成提示词
func BuildRegeneratePrompt(episodeNumber int, title, level, reason string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Regenerate episode %d of the story %q.\n\n", episodeNumber, title)
	if reason != "" {
		fmt.Fprintf(&b, "REASON FOR REGENERATION: %s\n", reason)
	}
	b.WriteString("Keep the same story context, but create fresh content.\n\n")

	b.WriteString("REQUIREMENTS:\n")
	fmt.Fprintf(&b, "- CEFR Level: %s\n", level)
	fmt.Fprintf(&b, "- %d pages\n", pagesPerEpisode)
	b.WriteString("- Same style as before\n\n")

	b.WriteString("Return ONLY valid JSON for this episode:\n")
	fmt.Fprintf(&b, `{
  "episodeNumber": %d,
  "titleEn": "Episode Title",
  "titleTh": "Thai Title",
  "pages": [
    {
      "pageNumber": 1,
      "textEn": "Page text here...",
      "textTh": "Thai translation...",
      "vocab": [
        {"word": "example", "definition": "a representative form", "cefrLevel": "%s"}
      ]
    }
  ],
  "summary": "Summary"
}`, episodeNumber, level)
	return b.String()
}
