// internal/app/app.go
package app

import (
	"fmt"

	"github.com/amusedev/amuse/internal/config"
	"github.com/amusedev/amuse/internal/di"
	"github.com/amusedev/amuse/internal/services"
	"github.com/amusedev/amuse/internal/storage"
	"github.com/amusedev/amuse/internal/utils"

	// 注册LLM提供者
	_ "github.com/amusedev/amuse/internal/llm/providers/anthropic"
	_ "github.com/amusedev/amuse/internal/llm/providers/mock"
	_ "github.com/amusedev/amuse/internal/llm/providers/openai"
)

// InitServices 按依赖顺序初始化所有服务并注册到容器
//
// 顺序：存储 -> LLM -> 场景 -> 小说 -> 摘要 -> 生成 -> 用户/统计
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化文件存储失败: %w", err)
	}
	container.Register(di.ServiceStorage, fileStorage)

	statsStore, err := storage.OpenStatsStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化统计存储失败: %w", err)
	}
	container.Register(di.ServiceStatsStore, statsStore)

	llmService, err := services.NewLLMService()
	if err != nil {
		return fmt.Errorf("初始化LLM服务失败: %w", err)
	}
	container.Register(di.ServiceLLM, llmService)
	if !llmService.IsReady() {
		utils.GetLogger().Warnf("LLM服务未就绪，生成功能不可用，请检查API密钥配置")
	}

	sceneService := services.NewSceneService(fileStorage)
	container.Register(di.ServiceScene, sceneService)

	novelService := services.NewNovelService(fileStorage, sceneService, statsStore)
	container.Register(di.ServiceNovel, novelService)

	summaryService := services.NewSummaryService(llmService, novelService, sceneService)
	container.Register(di.ServiceSummary, summaryService)

	generationService := services.NewGenerationService(llmService, novelService, sceneService, summaryService)
	container.Register(di.ServiceGeneration, generationService)

	userService := services.NewUserService(fileStorage)
	container.Register(di.ServiceUser, userService)

	statsService := services.NewStatsService(statsStore)
	container.Register(di.ServiceStats, statsService)

	return nil
}

// Cleanup 释放持有的资源
func Cleanup() {
	container := di.GetContainer()

	if store, ok := container.Get(di.ServiceStatsStore).(*storage.StatsStore); ok && store != nil {
		if err := store.Close(); err != nil {
			utils.GetLogger().Warnf("关闭统计存储失败: %v", err)
		}
	}

	container.Clear()
}
