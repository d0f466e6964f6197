package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/nat-prohmpiriya/talelingo-studio/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatModel 记录调用参数并返回预设结果
type fakeChatModel struct {
	content string
	chunks  []string
	err     error
	options *model.Options
	prompt  string
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.options = model.GetCommonOptions(&model.Options{}, opts...)
	f.prompt = input[len(input)-1].Content
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.content, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.options = model.GetCommonOptions(&model.Options{}, opts...)
	if f.err != nil {
		return nil, f.err
	}
	msgs := make([]*schema.Message, 0, len(f.chunks))
	for _, c := range f.chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func TestClientGeneratePassesOptions(t *testing.T) {
	fake := &fakeChatModel{content: "hello"}
	client := NewClientWithModel("fake", fake, time.Minute)

	out, err := client.Generate(context.Background(), "write a story", GenerateOptions{Temperature: 0.8, MaxTokens: 4000})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "write a story", fake.prompt)
	require.NotNil(t, fake.options.Temperature)
	assert.InDelta(t, 0.8, *fake.options.Temperature, 0.0001)
	require.NotNil(t, fake.options.MaxTokens)
	assert.Equal(t, 4000, *fake.options.MaxTokens)
}

func TestClientGenerateWithoutTokenCap(t *testing.T) {
	fake := &fakeChatModel{content: "x"}
	client := NewClientWithModel("fake", fake, 0)

	_, err := client.Generate(context.Background(), "p", GenerateOptions{Temperature: 0.9})
	require.NoError(t, err)
	assert.Nil(t, fake.options.MaxTokens)
}

func TestClientGeneratePropagatesError(t *testing.T) {
	providerErr := errors.New("rate limited")
	client := NewClientWithModel("fake", &fakeChatModel{err: providerErr}, time.Minute)

	_, err := client.Generate(context.Background(), "p", GenerateOptions{})
	assert.Same(t, providerErr, err)
}

func TestClientStream(t *testing.T) {
	client := NewClientWithModel("fake", &fakeChatModel{chunks: []string{"{\"a\":", " 1", "}"}}, time.Minute)

	stream, err := client.Stream(context.Background(), "p", GenerateOptions{Temperature: 0.8})
	require.NoError(t, err)
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sb.WriteString(chunk)
	}
	assert.Equal(t, "{\"a\": 1}", sb.String())
}

func TestNewClientUnsupportedProvider(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.DefaultProvider = "anthropic"
	_, err := NewClient(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewClientOllama(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.DefaultProvider = ProviderOllama
	client, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, client.Provider())
}
