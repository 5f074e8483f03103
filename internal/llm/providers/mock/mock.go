// internal/llm/providers/mock/mock.go
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/amusedev/amuse/internal/llm"
)

func init() {
	llm.Register("mock", func() llm.Provider {
		return &Provider{}
	})
}

// Provider 离线环境下的模拟提供者
// 演示和测试时无需真实API密钥即可跑通完整生成链路
type Provider struct {
	mu        sync.Mutex
	responses []string
	cursor    int
	failNext  error
}

func (p *Provider) Initialize(config map[string]string) error {
	return nil
}

func (p *Provider) GetName() string {
	return "Mock"
}

func (p *Provider) GetSupportedModels() []string {
	return []string{"mock-v1"}
}

// QueueResponse 预置下一次调用返回的文本
func (p *Provider) QueueResponse(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, text)
}

// FailNext 令下一次调用返回指定错误
func (p *Provider) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = err
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failNext != nil {
		err := p.failNext
		p.failNext = nil
		return nil, err
	}

	var text string
	if p.cursor < len(p.responses) {
		text = p.responses[p.cursor]
		p.cursor++
	} else {
		// 无预置内容时构造一份合法的故事回复
		payload := map[string]interface{}{
			"ai_output":      "她安静地看着你，似乎在等待你接下来的话。",
			"affinity_delta": 5,
			"reason":         "耐心的交流让她感到安心",
			"key_event":      "",
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.New("mock响应构造失败")
		}
		text = string(data)
	}

	return &llm.CompletionResponse{
		Text:         text,
		FinishReason: "stop",
		ModelName:    "mock-v1",
		ProviderName: p.GetName(),
	}, nil
}
