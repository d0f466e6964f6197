package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/domain"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/repository"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/service/statemachine"
	"k8s.io/klog/v2"
)

// statusFor 错误到 HTTP 状态码的映射
func statusFor(err error) int {
	var transitionErr *statemachine.InvalidStateTransitionError
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStoryNotFound),
		errors.Is(err, domain.ErrEpisodeNotFound),
		errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSlugExists),
		errors.Is(err, domain.ErrStatusConflict),
		errors.As(err, &transitionErr):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError 4xx 返回错误信息，5xx 返回通用信息和错误详情
func respondError(c *gin.Context, err error, message string) {
	status := statusFor(err)
	if status != http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	klog.Errorf("[Handler] %s: path=%s, error=%v", message, c.FullPath(), err)
	c.JSON(status, gin.H{"error": message, "details": err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}
