// internal/session/store.go
package session

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/amusedev/amuse/internal/errors"
	"github.com/amusedev/amuse/internal/models"
)

// sceneEntry 场景缓存中的一项
// 未落库的临时场景带pending标记，且只会出现在列表末尾
type sceneEntry struct {
	scene   *models.StoryScene
	pending bool
}

// PendingHandle 临时场景的操作句柄
// 提交或丢弃时校验句柄，防止对已结算的临时场景重复操作
type PendingHandle struct {
	tempID string
}

// SceneStore 一部小说在写作会话中的场景缓存
//
// 持有按序号排列的场景列表与主角色的好感度快照，
// 所有变更都经过该结构串行化，外部始终观察到一致视图
type SceneStore struct {
	mu      sync.Mutex
	backend Backend
	novelID string

	entries []sceneEntry

	// 主角色快照
	mainCharacterID   string
	mainCharacterName string
	affinity          int
	relationship      string

	// 临时场景标识计数器，与后端UUID命名空间天然不冲突
	pendingCounter int
	pendingTempID  string

	// 合并并发的列表加载
	loadGroup singleflight.Group
}

// NewSceneStore 创建绑定到一部小说的场景缓存
func NewSceneStore(backend Backend, novelID string) *SceneStore {
	return &SceneStore{
		backend: backend,
		novelID: novelID,
	}
}

// NovelID 绑定的小说ID
func (s *SceneStore) NovelID() string {
	return s.novelID
}

// LoadNovel 拉取小说快照并记录主角色状态
func (s *SceneStore) LoadNovel(ctx context.Context) (*models.Novel, error) {
	novel, err := s.backend.FetchNovel(ctx, s.novelID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if main := novel.MainCharacter(); main != nil {
		s.mainCharacterID = main.ID
		s.mainCharacterName = main.Name
		s.affinity = main.Affinity
		s.relationship = main.Relationship
	}
	return novel, nil
}

// LoadScenes 拉取并替换整个场景列表
//
// 存在临时场景时跳过整体替换：生成尚未结算，此刻的全量覆盖
// 会吞掉临时项。并发调用通过singleflight合并为一次请求。
func (s *SceneStore) LoadScenes(ctx context.Context) ([]*models.StoryScene, error) {
	s.mu.Lock()
	if s.pendingTempID != "" {
		scenes := s.snapshotLocked()
		s.mu.Unlock()
		return scenes, nil
	}
	s.mu.Unlock()

	_, err, _ := s.loadGroup.Do("scenes", func() (interface{}, error) {
		fetched, err := s.backend.FetchScenes(ctx, s.novelID)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		// 加载期间产生了临时场景时放弃这次结果
		if s.pendingTempID != "" {
			return nil, nil
		}

		entries := make([]sceneEntry, 0, len(fetched))
		for _, scene := range fetched {
			normalized := *scene
			normalized.Content = NormalizeContent(scene.Content)
			entries = append(entries, sceneEntry{scene: &normalized})
		}
		s.entries = entries
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// Scenes 当前场景列表的快照
func (s *SceneStore) Scenes() []*models.StoryScene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *SceneStore) snapshotLocked() []*models.StoryScene {
	scenes := make([]*models.StoryScene, 0, len(s.entries))
	for _, entry := range s.entries {
		scenes = append(scenes, entry.scene)
	}
	return scenes
}

// HasPending 是否存在未结算的临时场景
func (s *SceneStore) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingTempID != ""
}

// LastCommittedSceneID 最后一个已落库场景的ID
func (s *SceneStore) LastCommittedSceneID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.entries) - 1; i >= 0; i-- {
		if !s.entries[i].pending {
			return s.entries[i].scene.ID
		}
	}
	return ""
}

// Affinity 主角色当前好感度
func (s *SceneStore) Affinity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.affinity
}

// Relationship 主角色当前关系等级ID
func (s *SceneStore) Relationship() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relationship
}

// MainCharacterName 主角色名称
func (s *SceneStore) MainCharacterName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mainCharacterName
}

// BeginPendingScene 在列表末尾追加一个临时场景
//
// 同一时刻至多允许一个临时场景，已存在时直接拒绝
func (s *SceneStore) BeginPendingScene(userInput string) (*PendingHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingTempID != "" {
		return nil, apperrors.NewInFlightError("已有未完成的生成请求")
	}

	s.pendingCounter++
	tempID := fmt.Sprintf("pending-%d", s.pendingCounter)

	nextSeq := 0
	if len(s.entries) > 0 {
		nextSeq = s.entries[len(s.entries)-1].scene.SequenceOrder + 1
	}

	s.entries = append(s.entries, sceneEntry{
		scene: &models.StoryScene{
			ID:            tempID,
			NovelID:       s.novelID,
			SequenceOrder: nextSeq,
			UserInput:     userInput,
		},
		pending: true,
	})
	s.pendingTempID = tempID

	return &PendingHandle{tempID: tempID}, nil
}

// CommitScene 用后端返回的正式场景替换临时场景
//
// 正式场景落在临时场景原来的位置（即列表末尾），
// 同时把主角色好感度更新为正式结果携带的新值
func (s *SceneStore) CommitScene(handle *PendingHandle, result *models.GenerateResult) error {
	if handle == nil || result == nil {
		return apperrors.NewValidationError("提交参数不完整")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingTempID == "" || s.pendingTempID != handle.tempID {
		return apperrors.NewValidationError("临时场景已结算或句柄无效")
	}

	committed := result.Scene()
	committed.Content = NormalizeContent(committed.Content)

	s.entries[len(s.entries)-1] = sceneEntry{scene: committed}
	s.pendingTempID = ""

	s.affinity = result.Affinity
	if result.Relationship != "" {
		s.relationship = result.Relationship
	}
	return nil
}

// DiscardScene 丢弃临时场景，恢复到请求前的状态
func (s *SceneStore) DiscardScene(handle *PendingHandle) error {
	if handle == nil {
		return apperrors.NewValidationError("句柄无效")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingTempID == "" || s.pendingTempID != handle.tempID {
		return apperrors.NewValidationError("临时场景已结算或句柄无效")
	}

	s.entries = s.entries[:len(s.entries)-1]
	s.pendingTempID = ""
	return nil
}

// Teardown 会话结束时的清理，丢弃任何未结算的临时场景
func (s *SceneStore) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingTempID != "" && len(s.entries) > 0 {
		s.entries = s.entries[:len(s.entries)-1]
		s.pendingTempID = ""
	}
}
