package email

import (
	"context"
	"sync"
)

// folderLocks hands out one exclusive claim per folder name within this process
type folderLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newFolderLocks() *folderLocks {
	return &folderLocks{slots: make(map[string]chan struct{})}
}

// acquire blocks until the folder is free or ctx is done. The returned
// release func is safe to call more than once.
func (l *folderLocks) acquire(ctx context.Context, folder string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[folder]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[folder] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-slot }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
