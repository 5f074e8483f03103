// internal/services/generation_service_test.go
package services

import (
	"context"
	"errors"
	"os"
	"testing"

	apperrors "github.com/amusedev/amuse/internal/errors"
	"github.com/amusedev/amuse/internal/llm/providers/mock"
	"github.com/amusedev/amuse/internal/models"
	"github.com/amusedev/amuse/internal/storage"
)

// testEnv 一套落在临时目录里的完整服务链
type testEnv struct {
	Provider          *mock.Provider
	LLMService        *LLMService
	NovelService      *NovelService
	SceneService      *SceneService
	GenerationService *GenerationService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "amuse-test-*")
	if err != nil {
		t.Fatalf("创建临时目录失败: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	fileStorage, err := storage.NewFileStorage(tempDir)
	if err != nil {
		t.Fatalf("创建文件存储失败: %v", err)
	}

	statsStore, err := storage.OpenStatsStore(tempDir)
	if err != nil {
		t.Fatalf("打开统计存储失败: %v", err)
	}
	t.Cleanup(func() { statsStore.Close() })

	provider := &mock.Provider{}
	llmService := NewEmptyLLMService()
	llmService.SetProvider(provider)

	sceneService := NewSceneService(fileStorage)
	novelService := NewNovelService(fileStorage, sceneService, statsStore)
	summaryService := NewSummaryService(llmService, novelService, sceneService)
	generationService := NewGenerationService(llmService, novelService, sceneService, summaryService)

	return &testEnv{
		Provider:          provider,
		LLMService:        llmService,
		NovelService:      novelService,
		SceneService:      sceneService,
		GenerationService: generationService,
	}
}

func createTestNovel(t *testing.T, env *testEnv) *models.Novel {
	t.Helper()

	novel, err := env.NovelService.CreateNovel(context.Background(), "author-1", &CreateNovelRequest{
		Title:        "星落之城",
		Description:  "一座会下星星的城市。",
		AffinityMode: true,
		Characters: []CharacterSeed{
			{Name: "苏晚", Role: "MAIN", Personality: "安静而敏锐"},
			{Name: "我", Role: "USER"},
		},
		FirstScene: "城市上空落下第一颗星星的夜晚，我们相遇了。",
	})
	if err != nil {
		t.Fatalf("创建小说失败: %v", err)
	}
	return novel
}

// TestCreateNovelSeedsState 新建小说的初始状态
// 角色好感度从0起步并处于最低等级，首个场景序号为0
func TestCreateNovelSeedsState(t *testing.T) {
	env := setupTestEnv(t)
	novel := createTestNovel(t, env)

	main := novel.MainCharacter()
	if main == nil {
		t.Fatal("应存在主角色")
	}
	if main.Affinity != 0 {
		t.Errorf("初始好感度 = %d, 期望 0", main.Affinity)
	}
	if main.Relationship != "ACQUAINTANCE" {
		t.Errorf("初始关系等级 = %s, 期望 ACQUAINTANCE", main.Relationship)
	}

	scenes, err := env.SceneService.ListScenes(novel.ID)
	if err != nil {
		t.Fatalf("读取场景失败: %v", err)
	}
	if len(scenes) != 1 {
		t.Fatalf("场景数 = %d, 期望 1", len(scenes))
	}

	opening := scenes[0]
	if opening.SequenceOrder != 0 {
		t.Errorf("首个场景序号 = %d, 期望 0", opening.SequenceOrder)
	}
	if opening.UserInput != opening.Content {
		t.Error("首个场景的输入与正文应相同")
	}
}

// TestCreateNovelRequiresMain 缺少主角色被拒绝
func TestCreateNovelRequiresMain(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.NovelService.CreateNovel(context.Background(), "author-1", &CreateNovelRequest{
		Title:      "没有主角的故事",
		Characters: []CharacterSeed{{Name: "我", Role: "USER"}},
		FirstScene: "开场。",
	})
	if err == nil {
		t.Fatal("缺少主角色应报错")
	}
	if !apperrors.IsValidation(err) {
		t.Errorf("错误类型 = %v, 期望 validation", err)
	}
}

// TestGenerateNextSceneSuccess 成功生成并持久化下一幕
func TestGenerateNextSceneSuccess(t *testing.T) {
	env := setupTestEnv(t)
	novel := createTestNovel(t, env)

	env.Provider.QueueResponse(`{"ai_output":"她抬起头，望向坠落的星光。","affinity_delta":10,"reason":"共同经历了难忘的一幕","key_event":""}`)

	result, err := env.GenerationService.GenerateNextScene(context.Background(), &models.GenerateRequest{
		NovelID: novel.ID,
		Mode:    models.ModeUser,
		Content: "我指向天空",
	})
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}

	if result.SequenceOrder != 1 {
		t.Errorf("场景序号 = %d, 期望 1", result.SequenceOrder)
	}
	if result.Affinity != 10 {
		t.Errorf("好感度 = %d, 期望 10", result.Affinity)
	}
	if result.LevelUp {
		t.Error("未跨过门槛不应标记升级")
	}

	// 角色状态已持久化
	saved, err := env.NovelService.GetNovel(novel.ID)
	if err != nil {
		t.Fatalf("读取小说失败: %v", err)
	}
	if saved.MainCharacter().Affinity != 10 {
		t.Errorf("持久化好感度 = %d, 期望 10", saved.MainCharacter().Affinity)
	}

	scenes, _ := env.SceneService.ListScenes(novel.ID)
	if len(scenes) != 2 {
		t.Fatalf("场景数 = %d, 期望 2", len(scenes))
	}
	if scenes[1].Content != "她抬起头，望向坠落的星光。" {
		t.Errorf("场景正文不符: %q", scenes[1].Content)
	}
}

// TestGenerateNextSceneLevelUp 好感度从150升到250时跨过SOME门槛
func TestGenerateNextSceneLevelUp(t *testing.T) {
	env := setupTestEnv(t)
	novel := createTestNovel(t, env)

	// 把主角色预置到FRIEND等级
	novel.MainCharacter().Affinity = 150
	novel.MainCharacter().Relationship = "FRIEND"
	if err := env.NovelService.SaveNovel(novel); err != nil {
		t.Fatalf("保存小说失败: %v", err)
	}

	env.Provider.QueueResponse(`{"ai_output":"她握住了你的手，没有松开。","affinity_delta":100,"reason":"坦诚相待","key_event":"关系的转折点"}`)

	result, err := env.GenerationService.GenerateNextScene(context.Background(), &models.GenerateRequest{
		NovelID: novel.ID,
		Mode:    models.ModeUser,
		Content: "我向她坦白了一切",
	})
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}

	if result.Affinity != 250 {
		t.Errorf("好感度 = %d, 期望 250", result.Affinity)
	}
	if !result.LevelUp {
		t.Error("跨过门槛应标记升级")
	}
	if result.Relationship != "SOME" {
		t.Errorf("关系等级 = %s, 期望 SOME", result.Relationship)
	}
}

// TestGenerateEmptyUserInput 手动模式下空输入被拒绝
func TestGenerateEmptyUserInput(t *testing.T) {
	env := setupTestEnv(t)
	novel := createTestNovel(t, env)

	_, err := env.GenerationService.GenerateNextScene(context.Background(), &models.GenerateRequest{
		NovelID: novel.ID,
		Mode:    models.ModeUser,
		Content: "   ",
	})
	if err == nil {
		t.Fatal("空输入应报错")
	}
	if !apperrors.IsValidation(err) {
		t.Errorf("错误类型 = %v, 期望 validation", err)
	}

	scenes, _ := env.SceneService.ListScenes(novel.ID)
	if len(scenes) != 1 {
		t.Errorf("场景数 = %d, 不应追加新场景", len(scenes))
	}
}

// TestGenerateAutoMode AUTO模式下空输入替换为续写指令
func TestGenerateAutoMode(t *testing.T) {
	env := setupTestEnv(t)
	novel := createTestNovel(t, env)

	env.Provider.QueueResponse(`{"ai_output":"夜色渐深，故事仍在继续。","affinity_delta":0,"reason":"","key_event":""}`)

	result, err := env.GenerationService.GenerateNextScene(context.Background(), &models.GenerateRequest{
		NovelID: novel.ID,
		Mode:    models.ModeAuto,
	})
	if err != nil {
		t.Fatalf("AUTO模式生成失败: %v", err)
	}
	if result.UserInput != autoContinueDirective {
		t.Errorf("AUTO模式输入 = %q, 期望续写指令", result.UserInput)
	}
}

// TestGenerateUnknownMode 未知模式被拒绝
func TestGenerateUnknownMode(t *testing.T) {
	env := setupTestEnv(t)
	novel := createTestNovel(t, env)

	_, err := env.GenerationService.GenerateNextScene(context.Background(), &models.GenerateRequest{
		NovelID: novel.ID,
		Mode:    "BATCH",
		Content: "输入",
	})
	if !apperrors.IsValidation(err) {
		t.Errorf("错误类型 = %v, 期望 validation", err)
	}
}

// TestGenerateStaleBase 基准场景过期时拒绝生成
func TestGenerateStaleBase(t *testing.T) {
	env := setupTestEnv(t)
	novel := createTestNovel(t, env)

	_, err := env.GenerationService.GenerateNextScene(context.Background(), &models.GenerateRequest{
		NovelID:     novel.ID,
		Mode:        models.ModeUser,
		Content:     "基于旧场景的输入",
		LastSceneID: "already-replaced",
	})
	if err == nil {
		t.Fatal("过期基准应报错")
	}
	if !apperrors.IsStaleBase(err) {
		t.Errorf("错误类型 = %v, 期望 stale_base", err)
	}
}

// TestGenerateProviderFailure 模型调用失败时不落库任何场景
func TestGenerateProviderFailure(t *testing.T) {
	env := setupTestEnv(t)
	novel := createTestNovel(t, env)

	env.Provider.FailNext(errors.New("上游超时"))

	_, err := env.GenerationService.GenerateNextScene(context.Background(), &models.GenerateRequest{
		NovelID: novel.ID,
		Mode:    models.ModeUser,
		Content: "输入",
	})
	if err == nil {
		t.Fatal("模型失败应报错")
	}

	scenes, _ := env.SceneService.ListScenes(novel.ID)
	if len(scenes) != 1 {
		t.Errorf("失败后场景数 = %d, 不应追加", len(scenes))
	}

	affinityAfter, _ := env.NovelService.GetNovel(novel.ID)
	if affinityAfter.MainCharacter().Affinity != 0 {
		t.Error("失败后好感度不应变化")
	}
}

// TestGenerateMissingNovel 不存在的小说
func TestGenerateMissingNovel(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.GenerationService.GenerateNextScene(context.Background(), &models.GenerateRequest{
		NovelID: "no-such-novel",
		Mode:    models.ModeUser,
		Content: "输入",
	})
	if !apperrors.IsNotFound(err) {
		t.Errorf("错误类型 = %v, 期望 not_found", err)
	}
}

// TestAppendSceneContiguity 场景序号必须连续
func TestAppendSceneContiguity(t *testing.T) {
	env := setupTestEnv(t)
	novel := createTestNovel(t, env)

	err := env.SceneService.AppendScene(novel.ID, &models.StoryScene{
		ID:            "scene-x",
		NovelID:       novel.ID,
		SequenceOrder: 5,
		Content:       "跳号的场景",
	})
	if err == nil {
		t.Fatal("序号不连续应报错")
	}
	if !apperrors.IsStaleBase(err) {
		t.Errorf("错误类型 = %v, 期望 stale_base", err)
	}
}

// TestParseStoryReply 各种形态的AI回复解析
func TestParseStoryReply(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		output  string
		delta   int
	}{
		{
			name:   "纯JSON",
			input:  `{"ai_output":"正文","affinity_delta":5,"reason":"","key_event":""}`,
			output: "正文",
			delta:  5,
		},
		{
			name:   "带json围栏",
			input:  "```json\n{\"ai_output\":\"围栏里的正文\",\"affinity_delta\":-3}\n```",
			output: "围栏里的正文",
			delta:  -3,
		},
		{
			name:   "带普通围栏",
			input:  "```\n{\"ai_output\":\"正文\",\"affinity_delta\":0}\n```",
			output: "正文",
		},
		{
			name:   "JSON前后有多余文字",
			input:  "好的，以下是续写：\n{\"ai_output\":\"正文\",\"affinity_delta\":2}\n希望你喜欢。",
			output: "正文",
			delta:  2,
		},
		{
			name:    "没有JSON",
			input:   "她安静地看着你。",
			wantErr: true,
		},
		{
			name:    "缺少正文字段",
			input:   `{"affinity_delta":5}`,
			wantErr: true,
		},
		{
			name:    "JSON损坏",
			input:   `{"ai_output":"正文",`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := parseStoryReply(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("应解析失败")
				}
				return
			}
			if err != nil {
				t.Fatalf("解析失败: %v", err)
			}
			if reply.AIOutput != tt.output {
				t.Errorf("正文 = %q, 期望 %q", reply.AIOutput, tt.output)
			}
			if reply.AffinityDelta != tt.delta {
				t.Errorf("好感度变化 = %d, 期望 %d", reply.AffinityDelta, tt.delta)
			}
		})
	}
}
