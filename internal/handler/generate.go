package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nat-prohmpiriya/talelingo-studio/config"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/pkg/llm"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/service"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/service/storygen"
	"k8s.io/klog/v2"
)

// StoryGenerator 故事文本生成流程
type StoryGenerator interface {
	GenerateStoryText(ctx context.Context, storyID string, cfg storygen.StoryConfig) (*storygen.GeneratedStory, error)
	RegenerateEpisode(ctx context.Context, storyID string, episodeNumber int, reason string) (*storygen.GeneratedEpisode, error)
	StreamStoryGeneration(ctx context.Context, storyID string, cfg storygen.StoryConfig) (*llm.TextStream, error)
	ImportGeneratedText(ctx context.Context, storyID string, raw string) (*storygen.GeneratedStory, error)
}

type GenerateRequest struct {
	StoryID string `json:"storyId" binding:"required"`
}

type RegenerateRequest struct {
	StoryID       string `json:"storyId" binding:"required"`
	EpisodeNumber int    `json:"episodeNumber" binding:"required,min=1"`
	Reason        string `json:"reason"`
}

type GenerateHandler struct {
	stories   service.StoryService
	generator StoryGenerator
	defaults  config.GenerationConfig
}

func NewGenerateHandler(stories service.StoryService, generator StoryGenerator, defaults config.GenerationConfig) *GenerateHandler {
	return &GenerateHandler{
		stories:   stories,
		generator: generator,
		defaults:  defaults,
	}
}

func (h *GenerateHandler) RegisterRoutes(router *gin.RouterGroup) {
	generate := router.Group("/generate")
	{
		generate.POST("/text", h.Text)
		generate.POST("/regenerate", h.Regenerate)
		generate.POST("/stream", h.Stream)
	}
}

// Text 根据故事当前配置生成全部剧集
func (h *GenerateHandler) Text(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "storyId is required")
		return
	}

	ctx := c.Request.Context()
	cfg, err := h.storyConfig(ctx, req.StoryID)
	if err != nil {
		respondError(c, err, "Text generation failed")
		return
	}

	result, err := h.generator.GenerateStoryText(ctx, req.StoryID, cfg)
	if err != nil {
		respondError(c, err, "Text generation failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"storyId":    req.StoryID,
		"episodes":   len(result.Episodes),
		"totalWords": result.TotalWords,
	})
}

func (h *GenerateHandler) Regenerate(c *gin.Context) {
	var req RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "storyId and episodeNumber are required")
		return
	}

	episode, err := h.generator.RegenerateEpisode(c.Request.Context(), req.StoryID, req.EpisodeNumber, req.Reason)
	if err != nil {
		respondError(c, err, "Regeneration failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"episode": episode,
	})
}

// Stream 以 SSE 推送模型输出，结束后导入缓存的完整文本
func (h *GenerateHandler) Stream(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "storyId is required")
		return
	}

	ctx := c.Request.Context()
	cfg, err := h.storyConfig(ctx, req.StoryID)
	if err != nil {
		respondError(c, err, "Stream generation failed")
		return
	}

	stream, err := h.generator.StreamStoryGeneration(ctx, req.StoryID, cfg)
	if err != nil {
		respondError(c, err, "Stream generation failed")
		return
	}
	defer stream.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	var buf strings.Builder
	for {
		select {
		case <-ctx.Done():
			// 客户端断开，不导入不完整的文本
			klog.V(6).Infof("[GenerateHandler] 客户端断开流式生成: storyID=%s", req.StoryID)
			return
		default:
		}

		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			klog.Errorf("[GenerateHandler] 流式生成失败: storyID=%s, error=%v", req.StoryID, err)
			c.SSEvent("error", gin.H{"error": "Stream generation failed", "details": err.Error()})
			c.Writer.Flush()
			return
		}

		buf.WriteString(chunk)
		c.SSEvent("chunk", gin.H{"text": chunk})
		c.Writer.Flush()
	}

	result, err := h.generator.ImportGeneratedText(ctx, req.StoryID, buf.String())
	if err != nil {
		c.SSEvent("error", gin.H{"error": "Text generation failed", "details": err.Error()})
		c.Writer.Flush()
		return
	}

	c.SSEvent("done", gin.H{
		"success":    true,
		"storyId":    req.StoryID,
		"episodes":   len(result.Episodes),
		"totalWords": result.TotalWords,
	})
	c.Writer.Flush()
}

// storyConfig 从已保存的故事推导生成配置
func (h *GenerateHandler) storyConfig(ctx context.Context, storyID string) (storygen.StoryConfig, error) {
	story, err := h.stories.Get(ctx, storyID)
	if err != nil {
		return storygen.StoryConfig{}, err
	}
	return storygen.ConfigFromStory(story, h.defaults.DefaultEpisodeCount, h.defaults.DefaultArtStyle), nil
}
