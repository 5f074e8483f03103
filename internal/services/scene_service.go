// internal/services/scene_service.go
package services

import (
	"fmt"
	"sync"

	apperrors "github.com/amusedev/amuse/internal/errors"
	"github.com/amusedev/amuse/internal/models"
	"github.com/amusedev/amuse/internal/storage"
)

const scenesFileName = "scenes.json"

// SceneService 管理小说的场景序列
// 场景只追加不修改顺序，序号从0开始连续递增
type SceneService struct {
	Storage *storage.FileStorage

	// 并发控制：novelID -> *sync.Mutex，追加需要读改写整个文件
	novelLocks sync.Map
}

// NewSceneService 创建场景服务
func NewSceneService(fileStorage *storage.FileStorage) *SceneService {
	return &SceneService{Storage: fileStorage}
}

func (s *SceneService) getNovelLock(novelID string) *sync.Mutex {
	value, _ := s.novelLocks.LoadOrStore(novelID, &sync.Mutex{})
	return value.(*sync.Mutex)
}

// ListScenes 按序号升序返回小说的全部场景
func (s *SceneService) ListScenes(novelID string) ([]*models.StoryScene, error) {
	if !s.Storage.FileExists(novelDir(novelID), scenesFileName) {
		return nil, nil
	}

	var scenes []*models.StoryScene
	if err := s.Storage.LoadJSON(novelDir(novelID), scenesFileName, &scenes); err != nil {
		return nil, fmt.Errorf("读取场景失败: %w", err)
	}
	return scenes, nil
}

// LastScene 返回最新的场景，没有场景时返回nil
func (s *SceneService) LastScene(novelID string) (*models.StoryScene, error) {
	scenes, err := s.ListScenes(novelID)
	if err != nil {
		return nil, err
	}
	if len(scenes) == 0 {
		return nil, nil
	}
	return scenes[len(scenes)-1], nil
}

// RecentScenes 返回最近的n个场景，时间升序
func (s *SceneService) RecentScenes(novelID string, n int) ([]*models.StoryScene, error) {
	scenes, err := s.ListScenes(novelID)
	if err != nil {
		return nil, err
	}
	if len(scenes) <= n {
		return scenes, nil
	}
	return scenes[len(scenes)-n:], nil
}

// SceneCount 场景总数
func (s *SceneService) SceneCount(novelID string) (int, error) {
	scenes, err := s.ListScenes(novelID)
	if err != nil {
		return 0, err
	}
	return len(scenes), nil
}

// AppendScene 追加一个场景
// 序号必须恰好等于当前最大序号+1（空列表时为0），否则拒绝
func (s *SceneService) AppendScene(novelID string, scene *models.StoryScene) error {
	lock := s.getNovelLock(novelID)
	lock.Lock()
	defer lock.Unlock()

	scenes, err := s.ListScenes(novelID)
	if err != nil {
		return err
	}

	expected := 0
	if len(scenes) > 0 {
		expected = scenes[len(scenes)-1].SequenceOrder + 1
	}
	if scene.SequenceOrder != expected {
		return apperrors.NewStaleBaseError(
			fmt.Sprintf("场景序号冲突: 期望%d，收到%d", expected, scene.SequenceOrder))
	}

	scenes = append(scenes, scene)
	if err := s.Storage.SaveJSON(novelDir(novelID), scenesFileName, scenes); err != nil {
		return fmt.Errorf("保存场景失败: %w", err)
	}
	return nil
}

// NextSequenceOrder 下一个应使用的场景序号
func (s *SceneService) NextSequenceOrder(novelID string) (int, error) {
	last, err := s.LastScene(novelID)
	if err != nil {
		return 0, err
	}
	if last == nil {
		return 0, nil
	}
	return last.SequenceOrder + 1, nil
}
