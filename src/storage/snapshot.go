package storage

import (
	"MSDDashboard/src/processor"
	"sync"
)

// Snapshot 封装当前数据集并提供线程安全访问
type Snapshot struct {
	ds *processor.Dataset // 当前数据集
	mu sync.RWMutex       // 读写锁保证线程安全
}

// Get 获取当前数据集(线程安全), 尚未加载时为 nil
func (s *Snapshot) Get() *processor.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds
}

// Set 替换当前数据集(线程安全)
func (s *Snapshot) Set(ds *processor.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = ds
}
