package llm

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/nat-prohmpiriya/talelingo-studio/config"
	"k8s.io/klog/v2"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// GenerateOptions 单次调用参数
type GenerateOptions struct {
	Temperature float32
	MaxTokens   int // 0 表示不限制
}

// Client 文本生成客户端，底层为任意 eino BaseChatModel
type Client struct {
	provider  string
	chatModel model.BaseChatModel
	timeout   time.Duration
}

// NewClient 根据 llm.default_provider 创建客户端
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	var (
		chatModel model.BaseChatModel
		err       error
	)

	provider := cfg.LLM.DefaultProvider
	switch provider {
	case ProviderOpenAI, "":
		provider = ProviderOpenAI
		chatModel, err = NewOpenAIChatModel(ctx, cfg.LLM.OpenAI, cfg.LLM.Timeout)
	case ProviderOllama:
		chatModel, err = NewOllamaChatModel(cfg.LLM.Ollama, cfg.LLM.Timeout)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
	if err != nil {
		return nil, err
	}

	klog.V(6).Infof("[LLM] 客户端已创建: provider=%s", provider)
	return NewClientWithModel(provider, chatModel, cfg.LLM.Timeout), nil
}

// NewClientWithModel 使用已有的 ChatModel 创建客户端
func NewClientWithModel(provider string, chatModel model.BaseChatModel, timeout time.Duration) *Client {
	return &Client{
		provider:  provider,
		chatModel: chatModel,
		timeout:   timeout,
	}
}

func (c *Client) Provider() string {
	return c.provider
}

// Generate 发送单条用户消息并返回完整文本，错误原样返回
func (c *Client) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	klog.V(6).Infof("[LLM] Generate 开始: provider=%s, promptLength=%d, temperature=%.1f", c.provider, len(prompt), opts.Temperature)
	start := time.Now()

	msg, err := c.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)}, c.modelOptions(opts)...)
	observeRequest(c.provider, start, err)
	if err != nil {
		klog.Errorf("[LLM] Generate 失败: provider=%s, error=%v", c.provider, err)
		return "", err
	}

	observeUsage(c.provider, msg)
	klog.V(6).Infof("[LLM] Generate 完成: provider=%s, responseLength=%d, duration=%v", c.provider, len(msg.Content), time.Since(start))
	return msg.Content, nil
}

// Stream 流式生成，调用方负责 Close
func (c *Client) Stream(ctx context.Context, prompt string, opts GenerateOptions) (*TextStream, error) {
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	klog.V(6).Infof("[LLM] Stream 开始: provider=%s, promptLength=%d", c.provider, len(prompt))
	start := time.Now()

	reader, err := c.chatModel.Stream(ctx, []*schema.Message{schema.UserMessage(prompt)}, c.modelOptions(opts)...)
	if err != nil {
		cancel()
		observeRequest(c.provider, start, err)
		klog.Errorf("[LLM] Stream 失败: provider=%s, error=%v", c.provider, err)
		return nil, err
	}

	return &TextStream{
		reader:   reader,
		cancel:   cancel,
		provider: c.provider,
		start:    start,
	}, nil
}

func (c *Client) modelOptions(opts GenerateOptions) []model.Option {
	options := []model.Option{model.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		options = append(options, model.WithMaxTokens(opts.MaxTokens))
	}
	return options
}

// TextStream 模型输出的文本分片
type TextStream struct {
	reader   *schema.StreamReader[*schema.Message]
	cancel   context.CancelFunc
	provider string
	start    time.Time
	once     sync.Once
}

// Recv 返回下一个分片，结束时返回 io.EOF
func (s *TextStream) Recv() (string, error) {
	msg, err := s.reader.Recv()
	if err == io.EOF {
		s.finish(nil)
		return "", io.EOF
	}
	if err != nil {
		s.finish(err)
		return "", err
	}
	if msg == nil {
		return "", nil
	}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		observeUsage(s.provider, msg)
	}
	return msg.Content, nil
}

func (s *TextStream) Close() {
	s.reader.Close()
	s.cancel()
}

func (s *TextStream) finish(err error) {
	s.once.Do(func() {
		observeRequest(s.provider, s.start, err)
		if err != nil {
			klog.Errorf("[LLM] Stream 中断: provider=%s, error=%v", s.provider, err)
			return
		}
		klog.V(6).Infof("[LLM] Stream 完成: provider=%s, duration=%v", s.provider, time.Since(s.start))
	})
}
