package storage

import (
	"context"
	"strings"
	"sync"
)

// Object is a stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

// Memory is an in-process BlobStore for tests and local runs without a disk.
type Memory struct {
	mu      sync.Mutex
	objects map[string]Object
	base    string

	// FailUpload, when set, is returned by every Upload.
	FailUpload error
}

func NewMemory(publicBase string) *Memory {
	return &Memory{objects: map[string]Object{}, base: strings.TrimRight(publicBase, "/")}
}

func (m *Memory) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	rel, err := objectPath(bucket, key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpload != nil {
		return m.FailUpload
	}
	m.objects[rel] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	return nil
}

func (m *Memory) PublicURL(bucket, key string) string {
	return m.base + "/" + bucket + "/" + key
}

// Get returns a stored object.
func (m *Memory) Get(bucket, key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[bucket+"/"+key]
	return o, ok
}

// Len is the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
