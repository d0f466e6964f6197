package llm

import (
	"context"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/nat-prohmpiriya/talelingo-studio/config"
	"k8s.io/klog/v2"
)

// NewOpenAIChatModel 创建 OpenAI 兼容接口的 ChatModel
// 通过 api_url 也可以接入 Gemini 等兼容网关
func NewOpenAIChatModel(ctx context.Context, cfg config.OpenAIConfig, timeout time.Duration) (model.BaseChatModel, error) {
	klog.V(6).Infof("[LLM] 创建 OpenAI ChatModel: model=%s, baseURL=%s", cfg.Model, cfg.APIURL)

	modelConfig := &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: timeout,
	}
	if cfg.APIURL != "" {
		modelConfig.BaseURL = cfg.APIURL
	}

	chatModel, err := openai.NewChatModel(ctx, modelConfig)
	if err != nil {
		klog.Errorf("[LLM] 创建 OpenAI ChatModel 失败: %v", err)
		return nil, err
	}
	return chatModel, nil
}
