package services

import (
	"context"
	"sync"
	"time"
)

// MockCache is an in-memory Cache for tests. TTLs are recorded but not
// enforced.
type MockCache struct {
	mu     sync.Mutex
	values map[string]string

	// Err, when set, is returned by every operation.
	Err error

	// Track calls for testing
	GetCalls []string
	SetCalls []SetCall
}

type SetCall struct {
	Key   string
	Value string
	TTL   time.Duration
}

var _ Cache = (*MockCache)(nil)

// NewMockCache creates a new mock cache
func NewMockCache() *MockCache {
	return &MockCache{values: make(map[string]string)}
}

func (m *MockCache) Ping(ctx context.Context) error {
	return m.Err
}

func (m *MockCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls = append(m.SetCalls, SetCall{Key: key, Value: value, TTL: ttl})
	if m.Err != nil {
		return m.Err
	}
	m.values[key] = value
	return nil
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls = append(m.GetCalls, key)
	if m.Err != nil {
		return "", m.Err
	}
	return m.values[key], nil
}

func (m *MockCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *MockCache) Close() error {
	return nil
}
