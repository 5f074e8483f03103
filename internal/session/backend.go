// internal/session/backend.go
package session

import (
	"context"

	"github.com/amusedev/amuse/internal/models"
	"github.com/amusedev/amuse/internal/services"
)

// Backend 写作会话依赖的后端操作
// 同进程内由服务层直接实现，远程场景由HTTP客户端实现
type Backend interface {
	FetchNovel(ctx context.Context, novelID string) (*models.Novel, error)
	FetchScenes(ctx context.Context, novelID string) ([]*models.StoryScene, error)
	GenerateScene(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResult, error)
}

// LocalBackend 进程内后端适配器，直接调用服务层
type LocalBackend struct {
	NovelService      *services.NovelService
	SceneService      *services.SceneService
	GenerationService *services.GenerationService
}

// NewLocalBackend 创建进程内后端
func NewLocalBackend(novelService *services.NovelService, sceneService *services.SceneService, generationService *services.GenerationService) *LocalBackend {
	return &LocalBackend{
		NovelService:      novelService,
		SceneService:      sceneService,
		GenerationService: generationService,
	}
}

func (b *LocalBackend) FetchNovel(ctx context.Context, novelID string) (*models.Novel, error) {
	return b.NovelService.GetNovel(novelID)
}

func (b *LocalBackend) FetchScenes(ctx context.Context, novelID string) ([]*models.StoryScene, error) {
	return b.SceneService.ListScenes(novelID)
}

func (b *LocalBackend) GenerateScene(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResult, error) {
	return b.GenerationService.GenerateNextScene(ctx, req)
}
