package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s.io/klog/v2"

	"github.com/nat-prohmpiriya/talelingo-studio/config"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/eventbus"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/handler"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/pkg/database"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/pkg/llm"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/repository"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/router"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/service"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/service/storygen"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/subscriber"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg := config.GetConfig()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		klog.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// 初始化 Repository
	storyRepo := repository.NewStoryRepository(db.DB)
	episodeRepo := repository.NewEpisodeRepository(db.DB)
	jobRepo := repository.NewJobRepository(db.DB)

	// 事件总线，生成结果写日志和指标
	bus := eventbus.NewStoryEventBus()
	subscriber.NewStoryEventSubscriber().Register(bus)

	// 初始化模型客户端
	llmClient, err := llm.NewClient(ctx, cfg)
	if err != nil {
		klog.Fatalf("Failed to initialize LLM client: %v", err)
	}
	klog.V(6).Infof("模型提供方: %s", llmClient.Provider())

	// 初始化 Service
	storyService := service.NewStoryService(storyRepo, episodeRepo, jobRepo, bus)
	genService, err := storygen.NewService(cfg, llmClient, storyRepo, episodeRepo, jobRepo, bus)
	if err != nil {
		klog.Fatalf("Failed to initialize generation service: %v", err)
	}

	// 启动时恢复卡在 generating 的故事
	recoverStuckStories(ctx, genService, cfg.Generation.StuckTimeout)

	// 初始化 Handler
	r := router.Setup(
		cfg,
		handler.NewHealthHandler(db),
		handler.NewStoryHandler(storyService),
		handler.NewEpisodeHandler(storyService),
		handler.NewJobHandler(storyService),
		handler.NewGenerateHandler(storyService, genService, cfg.Generation),
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		klog.Infof("Server starting on port %s...", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	klog.Info("服务关闭中...")

	// 生成请求可能持续数分钟，给足时间完成
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout+10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		klog.Errorf("Server shutdown error: %v", err)
	}
}

// recoverStuckStories 将超时的 generating 故事重置为 draft
func recoverStuckStories(ctx context.Context, genService *storygen.Service, timeout time.Duration) {
	if timeout <= 0 {
		return
	}

	recovered, err := genService.RecoverStuck(ctx, timeout)
	if err != nil {
		klog.V(6).Infof("恢复卡住的故事失败: %v", err)
		return
	}

	if recovered > 0 {
		klog.V(6).Infof("启动时恢复了 %d 个卡住的故事", recovered)
	}
}
