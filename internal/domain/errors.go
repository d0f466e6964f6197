package domain

import "errors"

var (
	ErrStoryNotFound   = errors.New("story not found")
	ErrEpisodeNotFound = errors.New("episode not found")
	ErrJobNotFound     = errors.New("job not found")
	ErrSlugExists      = errors.New("story with this slug already exists")
	// ErrStatusConflict 故事当前状态不允许该操作（例如已在生成中）
	ErrStatusConflict = errors.New("story status conflict")
	ErrValidation     = errors.New("validation failed")
)
