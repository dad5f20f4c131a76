package audio

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SourceTable 临时媒体源引用表, 引用在Revoke之后不可再解析
type SourceTable struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewSourceTable 创建引用表
func NewSourceTable() *SourceTable {
	return &SourceTable{entries: make(map[string][]byte)}
}

// Create 为数据创建一个新的引用
func (t *SourceTable) Create(data []byte) string {
	ref := "blob:" + uuid.NewString()
	t.mu.Lock()
	t.entries[ref] = data
	t.mu.Unlock()
	return ref
}

// Revoke 释放引用, 未知引用直接忽略
func (t *SourceTable) Revoke(ref string) {
	t.mu.Lock()
	delete(t.entries, ref)
	t.mu.Unlock()
}

// Resolve 取回引用对应的数据
func (t *SourceTable) Resolve(ref string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	data, ok := t.entries[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceRevoked, ref)
	}
	return data, nil
}

// Len 返回存活的引用数量
func (t *SourceTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
