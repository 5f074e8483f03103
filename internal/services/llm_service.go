// internal/services/llm_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/amusedev/amuse/internal/config"
	"github.com/amusedev/amuse/internal/llm"
	"github.com/amusedev/amuse/internal/utils"
)

// LLMService 管理LLM提供者的生命周期
// 配置更新后自动重建底层Provider
type LLMService struct {
	mu       sync.RWMutex
	provider llm.Provider
	config   *config.AppConfig
	ready    bool
}

// NewLLMService 根据当前配置创建LLM服务
func NewLLMService() (*LLMService, error) {
	cfg := config.GetCurrentConfig()

	service := &LLMService{config: cfg}
	if err := service.rebuildProvider(); err != nil {
		// 密钥缺失时服务降级为未就绪，而不是阻止启动
		utils.GetLogger().Warnf("LLM提供者初始化失败: %v", err)
		return service, nil
	}
	return service, nil
}

// NewEmptyLLMService 创建未配置的空服务（测试用）
func NewEmptyLLMService() *LLMService {
	return &LLMService{config: &config.AppConfig{}}
}

func (s *LLMService) rebuildProvider() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := s.config.LLMProvider
	if name == "" {
		name = "anthropic"
	}

	providerConfig := map[string]string{}
	for k, v := range s.config.LLMConfig {
		providerConfig[k] = v
	}

	provider, err := llm.GetProvider(name, providerConfig)
	if err != nil {
		s.ready = false
		return fmt.Errorf("创建提供者 %q 失败: %w", name, err)
	}

	s.provider = provider
	s.ready = true
	return nil
}

// IsReady 提供者是否可用
func (s *LLMService) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// SetProvider 直接注入提供者（测试和演示用）
func (s *LLMService) SetProvider(provider llm.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = provider
	s.ready = provider != nil
}

// UpdateConfig 更新LLM配置并重建提供者
func (s *LLMService) UpdateConfig(providerName string, providerConfig map[string]string) error {
	if err := config.UpdateLLMConfig(providerName, providerConfig); err != nil {
		return err
	}

	s.mu.Lock()
	s.config = config.GetCurrentConfig()
	s.mu.Unlock()

	return s.rebuildProvider()
}

// Complete 执行一次文本生成
func (s *LLMService) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.mu.RLock()
	provider := s.provider
	ready := s.ready
	s.mu.RUnlock()

	if !ready || provider == nil {
		return nil, errors.New("LLM服务未就绪")
	}
	return provider.CompleteText(ctx, req)
}

// ProviderName 当前提供者的显示名称
func (s *LLMService) ProviderName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.provider == nil {
		return ""
	}
	return s.provider.GetName()
}
