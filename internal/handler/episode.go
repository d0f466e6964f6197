package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/service"
)

// EpisodeHandler 剧集审核，:id 为剧集编号
type EpisodeHandler struct {
	service service.StoryService
}

func NewEpisodeHandler(service service.StoryService) *EpisodeHandler {
	return &EpisodeHandler{service: service}
}

func (h *EpisodeHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.PATCH("/episodes/:id", h.Review)
}

func (h *EpisodeHandler) Review(c *gin.Context) {
	episodeNumber, err := strconv.Atoi(c.Param("id"))
	if err != nil || episodeNumber < 1 {
		badRequest(c, "invalid episode number")
		return
	}

	var req service.ReviewEpisodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	episode, err := h.service.ReviewEpisode(c.Request.Context(), episodeNumber, req)
	if err != nil {
		respondError(c, err, "Failed to update episode")
		return
	}
	c.JSON(http.StatusOK, episode)
}
