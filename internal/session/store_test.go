// internal/session/store_test.go
package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	apperrors "github.com/amusedev/amuse/internal/errors"
	"github.com/amusedev/amuse/internal/models"
)

// fakeBackend 测试用的内存后端
type fakeBackend struct {
	novel       *models.Novel
	scenes      []*models.StoryScene
	result      *models.GenerateResult
	generateErr error

	fetchSceneCalls int
	generateCalls   int
	lastRequest     *models.GenerateRequest

	// 生成调用前的钩子，用于模拟交错
	onGenerate func(req *models.GenerateRequest)
	// 列表请求中的钩子，用于模拟拉取过程中的并发操作
	onFetchScenes func()
}

func (b *fakeBackend) FetchNovel(ctx context.Context, novelID string) (*models.Novel, error) {
	if b.novel == nil {
		return nil, apperrors.NewNotFoundError("小说不存在: "+novelID, nil)
	}
	return b.novel, nil
}

func (b *fakeBackend) FetchScenes(ctx context.Context, novelID string) ([]*models.StoryScene, error) {
	b.fetchSceneCalls++
	if b.onFetchScenes != nil {
		b.onFetchScenes()
	}
	return b.scenes, nil
}

func (b *fakeBackend) GenerateScene(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResult, error) {
	b.generateCalls++
	b.lastRequest = req
	if b.onGenerate != nil {
		b.onGenerate(req)
	}
	if b.generateErr != nil {
		return nil, b.generateErr
	}
	return b.result, nil
}

// 构造带有若干已落库场景的后端
func newFakeBackend(sceneCount int) *fakeBackend {
	backend := &fakeBackend{
		novel: &models.Novel{
			ID:           "novel-1",
			Title:        "测试小说",
			AffinityMode: true,
			Characters: []*models.Character{
				{ID: "char-1", Name: "苏晚", Role: models.RoleMain, Affinity: 150, Relationship: "FRIEND"},
				{ID: "char-2", Name: "我", Role: models.RoleUser},
			},
		},
	}

	for i := 0; i < sceneCount; i++ {
		backend.scenes = append(backend.scenes, &models.StoryScene{
			ID:            fmt.Sprintf("scene-%d", i),
			NovelID:       "novel-1",
			SequenceOrder: i,
			UserInput:     fmt.Sprintf("输入%d", i),
			Content:       fmt.Sprintf("正文%d", i),
		})
	}
	return backend
}

func newTestStore(t *testing.T, sceneCount int) (*SceneStore, *fakeBackend) {
	t.Helper()

	backend := newFakeBackend(sceneCount)
	store := NewSceneStore(backend, "novel-1")

	ctx := context.Background()
	if _, err := store.LoadNovel(ctx); err != nil {
		t.Fatalf("加载小说失败: %v", err)
	}
	if _, err := store.LoadScenes(ctx); err != nil {
		t.Fatalf("加载场景失败: %v", err)
	}
	return store, backend
}

// TestLoadScenesNormalizes 加载时正文被规整
func TestLoadScenesNormalizes(t *testing.T) {
	backend := newFakeBackend(0)
	backend.scenes = []*models.StoryScene{
		{ID: "scene-0", SequenceOrder: 0, Content: `她说：\"走吧。\"`},
	}

	store := NewSceneStore(backend, "novel-1")
	scenes, err := store.LoadScenes(context.Background())
	if err != nil {
		t.Fatalf("加载场景失败: %v", err)
	}

	if len(scenes) != 1 {
		t.Fatalf("场景数 = %d, 期望 1", len(scenes))
	}
	if scenes[0].Content != NormalizeContent(`她说：\"走吧。\"`) {
		t.Errorf("正文未规整: %q", scenes[0].Content)
	}

	// 原始数据不应被就地修改
	if backend.scenes[0].Content != `她说：\"走吧。\"` {
		t.Error("后端原始数据被修改")
	}
}

// TestOptimisticRoundTrip 临时场景提交后落在原位置，之前的场景不变
func TestOptimisticRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, 3)

	before := store.Scenes()

	handle, err := store.BeginPendingScene("我的输入")
	if err != nil {
		t.Fatalf("创建临时场景失败: %v", err)
	}

	scenes := store.Scenes()
	if len(scenes) != 4 {
		t.Fatalf("临时场景未追加: 长度 = %d", len(scenes))
	}
	if scenes[3].ID != "pending-1" {
		t.Errorf("临时场景ID = %s, 期望 pending-1", scenes[3].ID)
	}
	if scenes[3].SequenceOrder != 3 {
		t.Errorf("临时场景序号 = %d, 期望 3", scenes[3].SequenceOrder)
	}

	result := &models.GenerateResult{
		SceneID:       "scene-3",
		NovelID:       "novel-1",
		SequenceOrder: 3,
		UserInput:     "我的输入",
		Content:       "正式正文",
		Affinity:      160,
		Relationship:  "FRIEND",
	}
	if err := store.CommitScene(handle, result); err != nil {
		t.Fatalf("提交失败: %v", err)
	}

	scenes = store.Scenes()
	if len(scenes) != 4 {
		t.Fatalf("提交后长度 = %d, 期望 4", len(scenes))
	}
	for i, prev := range before {
		if scenes[i].ID != prev.ID {
			t.Errorf("位置%d的场景被改变: %s -> %s", i, prev.ID, scenes[i].ID)
		}
	}
	if scenes[3].ID != "scene-3" {
		t.Errorf("末尾场景ID = %s, 期望 scene-3", scenes[3].ID)
	}
	if store.Affinity() != 160 {
		t.Errorf("好感度 = %d, 期望 160", store.Affinity())
	}
	if store.HasPending() {
		t.Error("提交后不应再有临时场景")
	}
}

// TestRollbackExact 丢弃临时场景后状态与请求前完全一致
func TestRollbackExact(t *testing.T) {
	store, _ := newTestStore(t, 3)

	before := store.Scenes()
	affinityBefore := store.Affinity()

	handle, err := store.BeginPendingScene("会失败的输入")
	if err != nil {
		t.Fatalf("创建临时场景失败: %v", err)
	}
	if err := store.DiscardScene(handle); err != nil {
		t.Fatalf("丢弃失败: %v", err)
	}

	after := store.Scenes()
	if len(after) != len(before) {
		t.Fatalf("长度变化: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if after[i].ID != before[i].ID || after[i].Content != before[i].Content {
			t.Errorf("位置%d的场景与请求前不一致", i)
		}
	}
	if store.Affinity() != affinityBefore {
		t.Errorf("好感度变化: %d -> %d", affinityBefore, store.Affinity())
	}
}

// TestSinglePending 同一时刻至多一个临时场景
func TestSinglePending(t *testing.T) {
	store, _ := newTestStore(t, 1)

	if _, err := store.BeginPendingScene("第一个"); err != nil {
		t.Fatalf("第一个临时场景应成功: %v", err)
	}

	_, err := store.BeginPendingScene("第二个")
	if err == nil {
		t.Fatal("第二个临时场景应被拒绝")
	}
	if !apperrors.IsInFlight(err) {
		t.Errorf("错误类型 = %v, 期望 in_flight", err)
	}

	if len(store.Scenes()) != 2 {
		t.Errorf("列表长度 = %d, 期望 2", len(store.Scenes()))
	}
}

// TestLoadSuppressedWhilePending 存在临时场景时列表加载不覆盖缓存
func TestLoadSuppressedWhilePending(t *testing.T) {
	store, backend := newTestStore(t, 2)
	callsBefore := backend.fetchSceneCalls

	handle, err := store.BeginPendingScene("进行中")
	if err != nil {
		t.Fatalf("创建临时场景失败: %v", err)
	}

	scenes, err := store.LoadScenes(context.Background())
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}

	if backend.fetchSceneCalls != callsBefore {
		t.Error("临时场景存在时不应发起列表请求")
	}
	if len(scenes) != 3 {
		t.Fatalf("返回长度 = %d, 期望 3（含临时场景）", len(scenes))
	}
	if scenes[2].ID != handle.tempID {
		t.Errorf("末尾应为临时场景，得到 %s", scenes[2].ID)
	}
}

// TestLoadDiscardedWhenPendingAppearsMidFetch 拉取途中出现临时场景时放弃本次结果
func TestLoadDiscardedWhenPendingAppearsMidFetch(t *testing.T) {
	store, backend := newTestStore(t, 2)

	var handle *PendingHandle
	backend.onFetchScenes = func() {
		h, err := store.BeginPendingScene("拉取途中的输入")
		if err != nil {
			t.Errorf("拉取途中创建临时场景失败: %v", err)
			return
		}
		handle = h
		backend.onFetchScenes = nil
	}

	scenes, err := store.LoadScenes(context.Background())
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if handle == nil {
		t.Fatal("钩子未触发")
	}

	// 请求已发出，但迟到的结果不能覆盖临时场景
	if backend.fetchSceneCalls != 2 {
		t.Errorf("列表请求次数 = %d, 期望 2", backend.fetchSceneCalls)
	}
	if len(scenes) != 3 {
		t.Fatalf("返回长度 = %d, 期望 3（含临时场景）", len(scenes))
	}
	if scenes[2].ID != handle.tempID {
		t.Errorf("末尾应为临时场景，得到 %s", scenes[2].ID)
	}
	if !store.HasPending() {
		t.Error("临时场景不应被迟到的列表结果覆盖")
	}
}

// TestCommitInvalidHandle 已结算的句柄不能重复操作
func TestCommitInvalidHandle(t *testing.T) {
	store, _ := newTestStore(t, 1)

	handle, _ := store.BeginPendingScene("输入")
	if err := store.DiscardScene(handle); err != nil {
		t.Fatalf("丢弃失败: %v", err)
	}

	err := store.CommitScene(handle, &models.GenerateResult{SceneID: "x"})
	if err == nil {
		t.Error("对已结算句柄的提交应报错")
	}
	if err := store.DiscardScene(handle); err == nil {
		t.Error("重复丢弃应报错")
	}
}

// TestTeardownDiscardsPending 会话销毁时清理临时场景
func TestTeardownDiscardsPending(t *testing.T) {
	store, _ := newTestStore(t, 2)

	if _, err := store.BeginPendingScene("未完成"); err != nil {
		t.Fatalf("创建临时场景失败: %v", err)
	}

	store.Teardown()

	if store.HasPending() {
		t.Error("销毁后不应有临时场景")
	}
	if len(store.Scenes()) != 2 {
		t.Errorf("列表长度 = %d, 期望 2", len(store.Scenes()))
	}

	// 再次销毁应无副作用
	store.Teardown()
	if len(store.Scenes()) != 2 {
		t.Error("重复销毁改变了列表")
	}
}

// TestLastCommittedSceneID 临时场景不计入最后已落库场景
func TestLastCommittedSceneID(t *testing.T) {
	store, _ := newTestStore(t, 2)

	if id := store.LastCommittedSceneID(); id != "scene-1" {
		t.Errorf("最后已落库场景 = %s, 期望 scene-1", id)
	}

	if _, err := store.BeginPendingScene("输入"); err != nil {
		t.Fatalf("创建临时场景失败: %v", err)
	}
	if id := store.LastCommittedSceneID(); id != "scene-1" {
		t.Errorf("临时场景不应改变最后已落库场景: %s", id)
	}
}

var errBackendDown = errors.New("后端不可用")
