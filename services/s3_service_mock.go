package services

import (
	"context"
	"fmt"
	"sync"
)

// MockS3Service is an in-memory S3Interface for tests
type MockS3Service struct {
	mu      sync.Mutex
	Objects map[string][]byte
	// PutError, when set, is returned by every PutObject call
	PutError error
}

// NewMockS3Service creates a new mock S3 service
func NewMockS3Service() *MockS3Service {
	return &MockS3Service{Objects: make(map[string][]byte)}
}

func (m *MockS3Service) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	if m.PutError != nil {
		return m.PutError
	}
	if key == "" {
		return fmt.Errorf("key is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = append([]byte(nil), body...)
	return nil
}

// Keys returns the stored object keys
func (m *MockS3Service) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.Objects))
	for k := range m.Objects {
		keys = append(keys, k)
	}
	return keys
}
