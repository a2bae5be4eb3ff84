package memstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Objects is an in-memory object storage
type Objects struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

// NewObjects creates an empty object storage serving links under baseURL
func NewObjects(baseURL string) *Objects {
	return &Objects{objects: make(map[string][]byte), baseURL: baseURL}
}

func (o *Objects) Put(ctx context.Context, bucket, key, contentType string, body io.Reader, size int64) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[bucket+"/"+key] = buf.Bytes()
	return nil
}

func (o *Objects) Delete(ctx context.Context, bucket, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, bucket+"/"+key)
	return nil
}

func (o *Objects) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", o.baseURL, bucket, key)
}

// Has reports whether bucket/key is stored
func (o *Objects) Has(bucket, key string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.objects[bucket+"/"+key]
	return ok
}

// Len returns the number of stored objects
func (o *Objects) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.objects)
}
