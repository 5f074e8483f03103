// internal/utils/metrics.go
package utils

import (
	"sync"
	"sync/atomic"
	"time"
)

// GenerationMetrics 记录场景生成的运行指标
type GenerationMetrics struct {
	requests  int64 // 收到的生成请求总数
	succeeded int64
	failed    int64
	rejected  int64 // 因互斥或基准过期被拒绝的请求数
	levelUps  int64

	mu           sync.Mutex
	totalLatency time.Duration
	maxLatency   time.Duration
}

var (
	globalGenMetrics *GenerationMetrics
	genMetricsOnce   sync.Once
)

// GetGenerationMetrics 获取全局指标收集器
func GetGenerationMetrics() *GenerationMetrics {
	genMetricsOnce.Do(func() {
		globalGenMetrics = &GenerationMetrics{}
	})
	return globalGenMetrics
}

// RecordRequest 记录一次收到的生成请求
func (m *GenerationMetrics) RecordRequest() {
	atomic.AddInt64(&m.requests, 1)
}

// RecordRejected 记录一次被本地拒绝的请求
func (m *GenerationMetrics) RecordRejected() {
	atomic.AddInt64(&m.rejected, 1)
}

// RecordResult 记录一次生成结果及耗时
func (m *GenerationMetrics) RecordResult(ok bool, levelUp bool, elapsed time.Duration) {
	if ok {
		atomic.AddInt64(&m.succeeded, 1)
		if levelUp {
			atomic.AddInt64(&m.levelUps, 1)
		}
	} else {
		atomic.AddInt64(&m.failed, 1)
	}

	m.mu.Lock()
	m.totalLatency += elapsed
	if elapsed > m.maxLatency {
		m.maxLatency = elapsed
	}
	m.mu.Unlock()
}

// Snapshot 导出当前指标快照
func (m *GenerationMetrics) Snapshot() map[string]interface{} {
	succeeded := atomic.LoadInt64(&m.succeeded)
	failed := atomic.LoadInt64(&m.failed)

	m.mu.Lock()
	total := m.totalLatency
	max := m.maxLatency
	m.mu.Unlock()

	var avgMs int64
	if done := succeeded + failed; done > 0 {
		avgMs = total.Milliseconds() / done
	}

	return map[string]interface{}{
		"requests":       atomic.LoadInt64(&m.requests),
		"succeeded":      succeeded,
		"failed":         failed,
		"rejected":       atomic.LoadInt64(&m.rejected),
		"level_ups":      atomic.LoadInt64(&m.levelUps),
		"avg_latency_ms": avgMs,
		"max_latency_ms": max.Milliseconds(),
	}
}
