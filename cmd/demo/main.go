// cmd/demo/main.go
// 离线演示：使用mock提供者跑通创建小说 -> 写作会话 -> 生成场景的完整链路
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/amusedev/amuse/internal/llm/providers/mock"
	"github.com/amusedev/amuse/internal/models"
	"github.com/amusedev/amuse/internal/services"
	"github.com/amusedev/amuse/internal/session"
	"github.com/amusedev/amuse/internal/storage"
	"github.com/amusedev/amuse/internal/utils"
)

func main() {
	dataDir, err := os.MkdirTemp("", "amuse-demo-*")
	if err != nil {
		log.Fatalf("创建临时目录失败: %v", err)
	}
	defer os.RemoveAll(dataDir)

	if err := utils.InitLogger(dataDir); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}

	fileStorage, err := storage.NewFileStorage(dataDir)
	if err != nil {
		log.Fatalf("初始化存储失败: %v", err)
	}

	statsStore, err := storage.OpenStatsStore(dataDir)
	if err != nil {
		log.Fatalf("初始化统计存储失败: %v", err)
	}
	defer statsStore.Close()

	// mock提供者免密钥，离线可用
	provider := &mock.Provider{}
	llmService := services.NewEmptyLLMService()
	llmService.SetProvider(provider)

	sceneService := services.NewSceneService(fileStorage)
	novelService := services.NewNovelService(fileStorage, sceneService, statsStore)
	summaryService := services.NewSummaryService(llmService, novelService, sceneService)
	generationService := services.NewGenerationService(llmService, novelService, sceneService, summaryService)

	ctx := context.Background()

	novel, err := novelService.CreateNovel(ctx, "demo-user", &services.CreateNovelRequest{
		Title:        "星落之城",
		Description:  "错位时空中的重逢故事",
		AffinityMode: true,
		Characters: []services.CharacterSeed{
			{Name: "苏晚", Role: string(models.RoleMain), Personality: "清冷而敏感"},
			{Name: "我", Role: string(models.RoleUser)},
		},
		FirstScene: "雨夜的站台上，她回过头来。\"你迟到了。\"",
	})
	if err != nil {
		log.Fatalf("创建小说失败: %v", err)
	}
	fmt.Printf("小说已创建: %s (%s)\n", novel.Title, novel.ID)

	backend := session.NewLocalBackend(novelService, sceneService, generationService)
	store := session.NewSceneStore(backend, novel.ID)
	coordinator := session.NewCoordinator(store)

	coordinator.OnLevelUp = func(tier models.Tier) {
		fmt.Printf(">>> 关系提升: %s (%s)\n", tier.Name, tier.ID)
	}
	coordinator.OnFailure = func(message string) {
		fmt.Printf(">>> 生成失败: %s\n", message)
	}

	if _, err := store.LoadNovel(ctx); err != nil {
		log.Fatalf("加载小说失败: %v", err)
	}
	if _, err := store.LoadScenes(ctx); err != nil {
		log.Fatalf("加载场景失败: %v", err)
	}

	inputs := []string{
		"我递给她一把伞。\"路上堵车了，抱歉。\"",
		"\"下次我一定提前到。\"我认真地看着她。",
	}
	deltas := []int{40, 80}

	for i, input := range inputs {
		provider.QueueResponse(fmt.Sprintf(
			`{"ai_output":"她接过伞，嘴角微微扬起。","affinity_delta":%d,"reason":"真诚的举动让她动容","key_event":""}`,
			deltas[i]))

		coordinator.SetInput(input)
		result, err := coordinator.Generate(ctx)
		if err != nil {
			log.Fatalf("生成失败: %v", err)
		}

		fmt.Printf("第%d幕 好感度=%d 关系=%s\n",
			result.SequenceOrder, result.Affinity, result.Relationship)
	}

	fmt.Printf("会话内场景总数: %d\n", len(store.Scenes()))
}
