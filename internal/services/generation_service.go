// internal/services/generation_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/amusedev/amuse/internal/errors"
	"github.com/amusedev/amuse/internal/llm"
	"github.com/amusedev/amuse/internal/models"
	"github.com/amusedev/amuse/internal/utils"
)

// 每累计多少个场景触发一次摘要刷新
const summaryRefreshInterval = 5

// 注入对话历史的场景数量上限
const historyWindow = 3

// AUTO模式下代替用户输入的续写指令
const autoContinueDirective = "（继续推进故事，保持当前的节奏和氛围）"

// GenerationService 驱动下一幕的AI生成
type GenerationService struct {
	LLMService     *LLMService
	NovelService   *NovelService
	SceneService   *SceneService
	SummaryService *SummaryService
}

// NewGenerationService 创建生成服务
func NewGenerationService(llmService *LLMService, novelService *NovelService, sceneService *SceneService, summaryService *SummaryService) *GenerationService {
	return &GenerationService{
		LLMService:     llmService,
		NovelService:   novelService,
		SceneService:   sceneService,
		SummaryService: summaryService,
	}
}

// storyReply AI返回的结构化故事回复
type storyReply struct {
	AIOutput      string `json:"ai_output"`
	AffinityDelta int    `json:"affinity_delta"`
	Reason        string `json:"reason"`
	KeyEvent      string `json:"key_event"`
}

// GenerateNextScene 生成并持久化下一个场景
//
// lastSceneId用于乐观并发控制：请求携带的基准场景与存储中的
// 最新场景不一致时拒绝生成，避免基于过期上下文续写
func (s *GenerationService) GenerateNextScene(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResult, error) {
	metrics := utils.GetGenerationMetrics()
	metrics.RecordRequest()
	started := time.Now()

	result, err := s.generate(ctx, req)
	if err != nil {
		if apperrors.IsStaleBase(err) || apperrors.IsValidation(err) {
			metrics.RecordRejected()
		} else {
			metrics.RecordResult(false, false, time.Since(started))
		}
		return nil, err
	}

	metrics.RecordResult(true, result.LevelUp, time.Since(started))
	return result, nil
}

func (s *GenerationService) generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResult, error) {
	userInput := strings.TrimSpace(req.Content)
	switch req.Mode {
	case models.ModeAuto:
		if userInput == "" {
			userInput = autoContinueDirective
		}
	case models.ModeUser:
		if userInput == "" {
			return nil, apperrors.NewValidationError("输入内容不能为空")
		}
	default:
		return nil, apperrors.NewValidationError("未知的生成模式: " + string(req.Mode))
	}

	novel, err := s.NovelService.GetNovel(req.NovelID)
	if err != nil {
		return nil, err
	}

	lastScene, err := s.SceneService.LastScene(req.NovelID)
	if err != nil {
		return nil, err
	}
	if lastScene == nil {
		return nil, apperrors.NewGenerationError("小说没有任何场景", nil)
	}
	if req.LastSceneID != "" && req.LastSceneID != lastScene.ID {
		return nil, apperrors.NewStaleBaseError("基准场景已过期，请刷新后重试")
	}

	mainCharacter := novel.MainCharacter()
	if mainCharacter == nil {
		return nil, apperrors.NewGenerationError("小说缺少主角色", nil)
	}

	history, err := s.buildHistory(req.NovelID)
	if err != nil {
		return nil, err
	}

	resp, err := s.LLMService.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: s.buildSystemPrompt(novel, mainCharacter),
		History:      history,
		Prompt:       userInput,
		Temperature:  0.8,
		MaxTokens:    2048,
	})
	if err != nil {
		return nil, apperrors.NewGenerationError("AI生成失败", err)
	}

	reply, err := parseStoryReply(resp.Text)
	if err != nil {
		return nil, apperrors.NewGenerationError("AI回复格式无效", err)
	}

	levelUp := false
	if novel.AffinityMode && reply.AffinityDelta != 0 {
		levelUp = mainCharacter.ApplyAffinityDelta(reply.AffinityDelta)
	}

	scene := &models.StoryScene{
		ID:               uuid.NewString(),
		NovelID:          novel.ID,
		SequenceOrder:    lastScene.SequenceOrder + 1,
		UserInput:        userInput,
		Content:          reply.AIOutput,
		KeyEvent:         reply.KeyEvent,
		AffinityAtMoment: mainCharacter.Affinity,
		AffinityDelta:    reply.AffinityDelta,
		CreatedAt:        time.Now(),
	}

	if err := s.SceneService.AppendScene(novel.ID, scene); err != nil {
		return nil, err
	}

	if err := s.NovelService.SaveNovel(novel); err != nil {
		return nil, fmt.Errorf("保存角色状态失败: %w", err)
	}

	// 每累计若干场景后台刷新一次摘要
	if (scene.SequenceOrder+1)%summaryRefreshInterval == 0 {
		s.SummaryService.RefreshSummaryAsync(novel.ID)
	}

	return &models.GenerateResult{
		SceneID:       scene.ID,
		NovelID:       novel.ID,
		SequenceOrder: scene.SequenceOrder,
		UserInput:     scene.UserInput,
		Content:       scene.Content,
		Affinity:      mainCharacter.Affinity,
		AffinityDelta: reply.AffinityDelta,
		Reason:        reply.Reason,
		Relationship:  mainCharacter.Relationship,
		LevelUp:       levelUp,
	}, nil
}

// buildSystemPrompt 组装系统提示词
// 优先使用累计摘要提供长程上下文，角色状态逐项列出
func (s *GenerationService) buildSystemPrompt(novel *models.Novel, mainCharacter *models.Character) string {
	var sb strings.Builder

	sb.WriteString("你是一位沉浸式互动小说的执笔者，负责续写下一幕。\n\n")

	if novel.CharacterSettings != "" {
		sb.WriteString("【世界观与角色设定】\n")
		sb.WriteString(novel.CharacterSettings)
		sb.WriteString("\n\n")
	}

	tier := models.TierFor(mainCharacter.Affinity)
	fmt.Fprintf(&sb, "【主角色当前状态】\n姓名: %s\n", mainCharacter.Name)
	if mainCharacter.Personality != "" {
		fmt.Fprintf(&sb, "性格: %s\n", mainCharacter.Personality)
	}
	if novel.AffinityMode {
		fmt.Fprintf(&sb, "好感度: %d（关系: %s）\n", mainCharacter.Affinity, tier.Name)
	}
	sb.WriteString("\n")

	if novel.TotalSummary != "" {
		sb.WriteString("【迄今剧情摘要】\n")
		sb.WriteString(novel.TotalSummary)
		sb.WriteString("\n\n")
	} else if novel.Description != "" {
		sb.WriteString("【故事简介】\n")
		sb.WriteString(novel.Description)
		sb.WriteString("\n\n")
	}

	sb.WriteString(`【输出要求】
以JSON格式输出，不要附加任何其他文字：
{
  "ai_output": "续写的场景正文，以主角色的视角描写动作与对话",
  "affinity_delta": 好感度变化整数（-20到20之间，无变化填0）,
  "reason": "好感度变化的一句话原因",
  "key_event": "若本幕发生关键事件则一句话概括，否则为空字符串"
}`)

	return sb.String()
}

// buildHistory 将最近的场景转换为对话历史回合
// assistant回合还原为JSON形态，保持与输出要求一致的格式示范
func (s *GenerationService) buildHistory(novelID string) ([]llm.Message, error) {
	recent, err := s.SceneService.RecentScenes(novelID, historyWindow)
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(recent)*2)
	for _, scene := range recent {
		history = append(history, llm.Message{
			Role:    llm.RoleUser,
			Content: scene.UserInput,
		})

		assistantPayload, err := json.Marshal(storyReply{
			AIOutput:      scene.Content,
			AffinityDelta: scene.AffinityDelta,
			KeyEvent:      scene.KeyEvent,
		})
		if err != nil {
			return nil, fmt.Errorf("构造历史回合失败: %w", err)
		}
		history = append(history, llm.Message{
			Role:    llm.RoleAssistant,
			Content: string(assistantPayload),
		})
	}
	return history, nil
}

// parseStoryReply 从AI返回文本中提取结构化回复
// 容忍代码块围栏和JSON前后的多余文字
func parseStoryReply(text string) (*storyReply, error) {
	cleaned := extractJSON(text)
	if cleaned == "" {
		return nil, fmt.Errorf("回复中未找到JSON: %q", truncateForLog(text))
	}

	reply := &storyReply{}
	if err := json.Unmarshal([]byte(cleaned), reply); err != nil {
		return nil, fmt.Errorf("解析JSON失败: %w", err)
	}
	if strings.TrimSpace(reply.AIOutput) == "" {
		return nil, fmt.Errorf("回复缺少ai_output字段")
	}
	return reply, nil
}

// extractJSON 剥离```围栏并截取最外层大括号之间的内容
func extractJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return ""
	}
	return cleaned[start : end+1]
}

func truncateForLog(text string) string {
	const limit = 200
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
