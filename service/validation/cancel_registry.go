package validation

import (
	"context"
	"sync"
)

// cancelRegistry 运行中执行的取消句柄登记表
type cancelRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{cancels: make(map[string]context.CancelFunc)}
}

func (r *cancelRegistry) register(executionID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[executionID] = cancel
}

func (r *cancelRegistry) unregister(executionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, executionID)
}

// cancel 触发指定执行的取消，返回是否命中本进程内的运行协程
func (r *cancelRegistry) cancel(executionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.cancels[executionID]
	if ok {
		cancel()
	}
	return ok
}
