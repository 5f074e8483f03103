// internal/services/summary_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amusedev/amuse/internal/llm"
	"github.com/amusedev/amuse/internal/utils"
)

// SummaryService 维护小说的累计剧情摘要
// 摘要供生成时代替完整历史注入上下文，控制提示词长度
type SummaryService struct {
	LLMService   *LLMService
	NovelService *NovelService
	SceneService *SceneService
}

// NewSummaryService 创建摘要服务
func NewSummaryService(llmService *LLMService, novelService *NovelService, sceneService *SceneService) *SummaryService {
	return &SummaryService{
		LLMService:   llmService,
		NovelService: novelService,
		SceneService: sceneService,
	}
}

const summarySystemPrompt = `你是小说编辑助手。请将给出的已有摘要与新增剧情压缩成一段连贯的剧情摘要。
要求：保留人物关系变化和关键事件，省略对话细节，长度不超过500字，直接输出摘要正文。`

// RefreshSummary 重新生成小说的累计摘要并保存
func (s *SummaryService) RefreshSummary(ctx context.Context, novelID string) error {
	novel, err := s.NovelService.GetNovel(novelID)
	if err != nil {
		return err
	}

	scenes, err := s.SceneService.ListScenes(novelID)
	if err != nil {
		return err
	}
	if len(scenes) == 0 {
		return nil
	}

	var sb strings.Builder
	if novel.TotalSummary != "" {
		sb.WriteString("【已有摘要】\n")
		sb.WriteString(novel.TotalSummary)
		sb.WriteString("\n\n")
	}
	sb.WriteString("【新增剧情】\n")

	// 只送入尚未纳入摘要的尾部场景，上限10个
	tail := scenes
	if len(tail) > 10 {
		tail = tail[len(tail)-10:]
	}
	for _, scene := range tail {
		fmt.Fprintf(&sb, "第%d幕: %s\n", scene.SequenceOrder, scene.Content)
	}

	resp, err := s.LLMService.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: summarySystemPrompt,
		Prompt:       sb.String(),
		Temperature:  0.3,
		MaxTokens:    1024,
	})
	if err != nil {
		return fmt.Errorf("生成摘要失败: %w", err)
	}

	novel.TotalSummary = strings.TrimSpace(resp.Text)
	return s.NovelService.SaveNovel(novel)
}

// RefreshSummaryAsync 后台异步刷新摘要，失败只记日志
func (s *SummaryService) RefreshSummaryAsync(novelID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := s.RefreshSummary(ctx, novelID); err != nil {
			utils.GetLogger().Warnf("异步刷新摘要失败 novel=%s: %v", novelID, err)
		}
	}()
}
