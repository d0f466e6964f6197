package storygen

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var ErrSchemaMismatch = errors.New("generated content does not match schema")

var (
	//go:embed schema/story.json
	storySchema []byte
	//go:embed schema/episode.json
	episodeSchema []byte
)

// SchemaValidator 严格模式下校验模型输出结构
type SchemaValidator struct {
	story   *jsonschema.Schema
	episode *jsonschema.Schema
}

func NewSchemaValidator() (*SchemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("episode.json", bytes.NewReader(episodeSchema)); err != nil {
		return nil, fmt.Errorf("load episode schema: %w", err)
	}
	if err := compiler.AddResource("story.json", bytes.NewReader(storySchema)); err != nil {
		return nil, fmt.Errorf("load story schema: %w", err)
	}

	episode, err := compiler.Compile("episode.json")
	if err != nil {
		return nil, fmt.Errorf("compile episode schema: %w", err)
	}
	story, err := compiler.Compile("story.json")
	if err != nil {
		return nil, fmt.Errorf("compile story schema: %w", err)
	}
	return &SchemaValidator{story: story, episode: episode}, nil
}

func (v *SchemaValidator) validateStory(payload []byte) error {
	if v == nil {
		return nil
	}
	return validateAgainst(v.story, payload)
}

func (v *SchemaValidator) validateEpisode(payload []byte) error {
	if v == nil {
		return nil
	}
	return validateAgainst(v.episode, payload)
}

func validateAgainst(schema *jsonschema.Schema, payload []byte) error {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return nil
}
