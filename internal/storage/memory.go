package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStorage keeps uploads in process. Used for local runs without a
// bucket and in tests.
type MemoryStorage struct {
	mu      sync.Mutex
	baseURL string
	objects map[string]*UploadObject
}

func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{baseURL: baseURL, objects: make(map[string]*UploadObject)}
}

func (m *MemoryStorage) Upload(_ context.Context, object *UploadObject) (*UploadResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := objectKey(object)
	m.objects[object.Bucket+"/"+key] = object
	return &UploadResponse{
		Url:      fmt.Sprintf("%s/%s/%s", m.baseURL, object.Bucket, key),
		FileName: key,
	}, nil
}

// Get returns a stored object by bucket and key
func (m *MemoryStorage) Get(bucket, key string) (*UploadObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[bucket+"/"+key]
	return o, ok
}

func (m *MemoryStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
