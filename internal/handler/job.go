package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/service"
)

type JobHandler struct {
	service service.StoryService
}

func NewJobHandler(service service.StoryService) *JobHandler {
	return &JobHandler{service: service}
}

func (h *JobHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/jobs/:id", h.Get)
}

func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.service.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to fetch job")
		return
	}
	c.JSON(http.StatusOK, job)
}
