package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/service"
	"k8s.io/klog/v2"
)

type StoryHandler struct {
	service service.StoryService
}

func NewStoryHandler(service service.StoryService) *StoryHandler {
	return &StoryHandler{service: service}
}

// RegisterRoutes 注册路由，固定路径需在 /:id 之前
func (h *StoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	stories := router.Group("/stories")
	{
		stories.GET("", h.List)
		stories.POST("", h.Create)
		stories.GET("/stats", h.Stats)
		stories.GET("/new", h.NewReleases)
		stories.GET("/popular", h.Popular)
		stories.GET("/slug/:slug", h.GetBySlug)
		stories.GET("/:id", h.Get)
		stories.PATCH("/:id", h.Update)
		stories.DELETE("/:id", h.Delete)
		stories.GET("/:id/jobs", h.ListJobs)
	}
}

func (h *StoryHandler) List(c *gin.Context) {
	var req service.ListStoriesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to fetch stories")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *StoryHandler) Create(c *gin.Context) {
	var req service.CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	story, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to create story")
		return
	}
	c.JSON(http.StatusCreated, story)
}

func (h *StoryHandler) Get(c *gin.Context) {
	story, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to fetch story")
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *StoryHandler) GetBySlug(c *gin.Context) {
	story, err := h.service.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err, "Failed to fetch story")
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *StoryHandler) Update(c *gin.Context) {
	var req service.UpdateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	story, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err, "Failed to update story")
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *StoryHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete story")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *StoryHandler) NewReleases(c *gin.Context) {
	stories, err := h.service.NewReleases(c.Request.Context(), queryLimit(c))
	if err != nil {
		respondError(c, err, "Failed to fetch new releases")
		return
	}
	c.JSON(http.StatusOK, stories)
}

func (h *StoryHandler) Popular(c *gin.Context) {
	stories, err := h.service.Popular(c.Request.Context(), queryLimit(c))
	if err != nil {
		respondError(c, err, "Failed to fetch popular stories")
		return
	}
	c.JSON(http.StatusOK, stories)
}

// Stats 统计失败时返回空统计，不影响页面展示
func (h *StoryHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		klog.Errorf("[StoryHandler] 获取统计失败: %v", err)
		c.JSON(http.StatusOK, service.StoryStats{
			ByLevel:    map[string]int64{},
			ByCategory: map[string]int64{},
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *StoryHandler) ListJobs(c *gin.Context) {
	jobs, err := h.service.ListJobs(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to fetch jobs")
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// queryLimit 非法或缺省时返回 0，由服务层使用默认值
func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return limit
}
