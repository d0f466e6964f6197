package storygen

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nat-prohmpiriya/talelingo-studio/internal/utils"
)

var (
	ErrNoJSON      = errors.New("no JSON found in response")
	ErrInvalidJSON = errors.New("invalid JSON in response")
	// ErrEmptyPayload JSON 合法但缺少剧集或页面
	ErrEmptyPayload = errors.New("generated content has no episodes or pages")
)

// ExtractPayload 先取 ```json 代码块，否则取第一个 '{' 到最后一个 '}'
func ExtractPayload(raw string) (string, error) {
	if body, ok := utils.ExtractFencedJSON(raw); ok {
		return body, nil
	}
	if span, ok := utils.ExtractJSONSpan(raw); ok {
		return span, nil
	}
	return "", ErrNoJSON
}

// ParseStory 从模型输出中解析整体生成结果，validator 为 nil 时不做结构校验
func ParseStory(raw string, validator *SchemaValidator) (*GeneratedStory, error) {
	var story GeneratedStory
	if err := parsePayload(raw, &story, validator.validateStory); err != nil {
		return nil, err
	}
	if len(story.Episodes) == 0 {
		return nil, fmt.Errorf("%w: missing episodes", ErrEmptyPayload)
	}
	for _, episode := range story.Episodes {
		if len(episode.Pages) == 0 {
			return nil, fmt.Errorf("%w: episode %d has no pages", ErrEmptyPayload, episode.EpisodeNumber)
		}
	}
	return &story, nil
}

// ParseEpisode 从模型输出中解析单集结果
func ParseEpisode(raw string, validator *SchemaValidator) (*GeneratedEpisode, error) {
	var episode GeneratedEpisode
	if err := parsePayload(raw, &episode, validator.validateEpisode); err != nil {
		return nil, err
	}
	if len(episode.Pages) == 0 {
		return nil, fmt.Errorf("%w: missing pages", ErrEmptyPayload)
	}
	return &episode, nil
}

func parsePayload(raw string, out any, validate func([]byte) error) error {
	payload, err := ExtractPayload(raw)
	if err != nil {
		return err
	}
	if err := validate([]byte(payload)); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}
