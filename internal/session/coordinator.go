// internal/session/coordinator.go
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	apperrors "github.com/amusedev/amuse/internal/errors"
	"github.com/amusedev/amuse/internal/models"
	"github.com/amusedev/amuse/internal/utils"
)

// Coordinator 驱动一次"生成下一幕"请求的完整生命周期
//
// 同一部小说同一时刻只允许一个生成请求在途：由in-flight标志
// 保证，第二个请求直接拒绝而不是排队。AUTO模式是单次的，
// 成功一次后自动回到手动模式。
type Coordinator struct {
	store *SceneStore

	mu       sync.Mutex
	inFlight bool
	autoMode bool
	input    string

	// OnLevelUp 关系等级提升时触发，携带新等级
	OnLevelUp func(tier models.Tier)

	// OnFailure 生成失败时触发，携带面向用户的提示文案
	OnFailure func(message string)
}

// NewCoordinator 创建生成协调器
func NewCoordinator(store *SceneStore) *Coordinator {
	return &Coordinator{store: store}
}

// Store 底层场景缓存
func (c *Coordinator) Store() *SceneStore {
	return c.store
}

// SetInput 更新输入缓冲
func (c *Coordinator) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
}

// Input 当前输入缓冲内容
func (c *Coordinator) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// SetAutoMode 切换AUTO模式
func (c *Coordinator) SetAutoMode(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoMode = enabled
}

// AutoMode 是否处于AUTO模式
func (c *Coordinator) AutoMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoMode
}

// InFlight 是否有生成请求在途
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Generate 按当前输入缓冲与模式发起一次生成
//
// 前置条件不满足（手动模式下输入为空白）时静默返回，
// 不产生临时场景也不发出网络请求。
func (c *Coordinator) Generate(ctx context.Context) (*models.GenerateResult, error) {
	c.mu.Lock()
	mode := models.ModeUser
	if c.autoMode {
		mode = models.ModeAuto
	}
	text := c.input
	c.mu.Unlock()

	return c.generate(ctx, mode, text)
}

func (c *Coordinator) generate(ctx context.Context, mode models.GenerateMode, text string) (*models.GenerateResult, error) {
	trimmed := strings.TrimSpace(text)
	if mode == models.ModeUser && trimmed == "" {
		return nil, nil
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, apperrors.NewInFlightError("生成请求正在进行中")
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	handle, err := c.store.BeginPendingScene(trimmed)
	if err != nil {
		return nil, err
	}

	tierBefore := models.TierFor(c.store.Affinity())

	req := &models.GenerateRequest{
		NovelID:     c.store.NovelID(),
		Mode:        mode,
		Content:     trimmed,
		LastSceneID: c.store.LastCommittedSceneID(),
	}

	result, err := c.store.backend.GenerateScene(ctx, req)
	if err != nil {
		if discardErr := c.store.DiscardScene(handle); discardErr != nil {
			utils.GetLogger().Warnf("回滚临时场景失败: %v", discardErr)
		}
		c.notifyFailure()
		return nil, err
	}

	if err := c.store.CommitScene(handle, result); err != nil {
		return nil, err
	}

	tierAfter := models.TierFor(c.store.Affinity())
	if (result.LevelUp || tierAfter.Level > tierBefore.Level) && c.OnLevelUp != nil {
		// 以后端标记为准，等级取当前好感度推导的结果
		c.OnLevelUp(tierAfter)
	}

	c.mu.Lock()
	c.input = ""
	c.autoMode = false
	c.mu.Unlock()

	return result, nil
}

// notifyFailure 发出角色化的失败提示
// 输入缓冲保持原样，用户无需重新输入即可重试
func (c *Coordinator) notifyFailure() {
	if c.OnFailure == nil {
		return
	}

	name := c.store.MainCharacterName()
	if name == "" {
		name = "对方"
	}
	c.OnFailure(fmt.Sprintf("%s似乎在犹豫，没有回应。再试一次吧。", name))
}

// Teardown 会话结束时的清理
func (c *Coordinator) Teardown() {
	c.store.Teardown()
}
