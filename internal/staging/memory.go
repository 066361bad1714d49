package staging

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memObject struct {
	data     []byte
	storedAt time.Time
}

// MemoryStore keeps artifacts in process memory. It is used by tests and by
// deployments without a writable filesystem.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memObject),
		now:     time.Now,
	}
}

func memKey(area Area, name string) string {
	return string(area) + "/" + name
}

func (s *MemoryStore) Put(ctx context.Context, area Area, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validName(name); err != nil {
		return err
	}
	if area != AreaUploads && area != AreaFormatted {
		return fmt.Errorf("staging: unknown area %q", area)
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[memKey(area, name)] = memObject{data: cp, storedAt: s.now()}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, area Area, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, memKey(area, name))
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, obj := range s.objects {
		if obj.storedAt.Before(olderThan) {
			delete(s.objects, k)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Check(context.Context) error { return nil }

func (s *MemoryStore) Describe() map[string]string {
	return map[string]string{"backend": "memory"}
}

// Get returns a staged artifact.
func (s *MemoryStore) Get(area Area, name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[memKey(area, name)]
	return obj.data, ok
}

// Keys lists staged artifacts as "area/name", sorted.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len reports how many artifacts are staged.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
