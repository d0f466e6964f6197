package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/nat-prohmpiriya/talelingo-studio/config"
	"github.com/ollama/ollama/api"
	"k8s.io/klog/v2"
)

var errStreamClosed = errors.New("stream reader closed")

// OllamaChatModel 将 Ollama 本地模型适配为 eino BaseChatModel
type OllamaChatModel struct {
	client   *api.Client
	model    string
	jsonMode bool
}

// NewOllamaChatModel 创建 Ollama ChatModel，base_url 不带 /v1 后缀
func NewOllamaChatModel(cfg config.OllamaConfig, timeout time.Duration) (*OllamaChatModel, error) {
	baseURL := strings.TrimSuffix(strings.TrimSuffix(cfg.BaseURL, "/"), "/v1")
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama base url %q: %w", baseURL, err)
	}

	klog.V(6).Infof("[LLM] 创建 Ollama ChatModel: model=%s, baseURL=%s", cfg.Model, baseURL)
	return &OllamaChatModel{
		client:   api.NewClient(parsedURL, &http.Client{Timeout: timeout}),
		model:    cfg.Model,
		jsonMode: cfg.JSONMode,
	}, nil
}

func (m *OllamaChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	req := m.buildRequest(input, false, opts...)

	var (
		content strings.Builder
		last    api.ChatResponse
	)
	err := m.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		last = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	msg := schema.AssistantMessage(content.String(), nil)
	msg.ResponseMeta = responseMeta(last)
	return msg, nil
}

func (m *OllamaChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	req := m.buildRequest(input, true, opts...)
	sr, sw := schema.Pipe[*schema.Message](16)

	go func() {
		defer sw.Close()
		err := m.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content == "" && !resp.Done {
				return nil
			}
			chunk := schema.AssistantMessage(resp.Message.Content, nil)
			if resp.Done {
				chunk.ResponseMeta = responseMeta(resp)
			}
			if closed := sw.Send(chunk, nil); closed {
				return errStreamClosed
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStreamClosed) {
			sw.Send(nil, err)
		}
	}()

	return sr, nil
}

func (m *OllamaChatModel) buildRequest(input []*schema.Message, stream bool, opts ...model.Option) *api.ChatRequest {
	options := model.GetCommonOptions(&model.Options{}, opts...)

	messages := make([]api.Message, 0, len(input))
	for _, msg := range input {
		messages = append(messages, api.Message{Role: string(msg.Role), Content: msg.Content})
	}

	req := &api.ChatRequest{
		Model:    m.model,
		Messages: messages,
		Stream:   &stream,
		Options:  map[string]interface{}{},
	}
	if options.Model != nil && *options.Model != "" {
		req.Model = *options.Model
	}
	if options.Temperature != nil {
		req.Options["temperature"] = *options.Temperature
	}
	if options.MaxTokens != nil {
		req.Options["num_predict"] = *options.MaxTokens
	}
	if m.jsonMode {
		req.Format = json.RawMessage(`"json"`)
	}
	return req
}

func responseMeta(resp api.ChatResponse) *schema.ResponseMeta {
	return &schema.ResponseMeta{
		FinishReason: resp.DoneReason,
		Usage: &schema.TokenUsage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}
}
