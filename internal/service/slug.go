package service

import (
	"regexp"
	"strings"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugWhitespace   = regexp.MustCompile(`\s+`)
	slugHyphens      = regexp.MustCompile(`-+`)
)

// 分类附加标签
var categoryTags = map[string][]string{
	"fable":   {"animals", "moral", "lesson"},
	"fairy":   {"fantasy", "magic", "adventure"},
	"mystery": {"detective", "puzzle", "thriller"},
	"romance": {"love", "relationship", "emotion"},
	"fantasy": {"magic", "creatures", "adventure"},
	"daily":   {"life", "everyday", "realistic"},
}

// GenerateSlug story-<level>-<title>，重复时由调用方报冲突，不自动加后缀
func GenerateSlug(title, level string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugInvalidChars.ReplaceAllString(s, "")
	s = slugWhitespace.ReplaceAllString(s, "-")
	s = slugHyphens.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return "story-" + strings.ToLower(level) + "-" + s
}

// GenerateTags 分类、分类附加标签、级别
func GenerateTags(category, level string) []string {
	c := strings.ToLower(category)
	tags := []string{c}
	tags = append(tags, categoryTags[c]...)
	return append(tags, strings.ToLower(level))
}
