package pipeline

import "sync"

// lockMap grants at most one in-flight run per file id.
type lockMap struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newLockMap() *lockMap {
	return &lockMap{held: make(map[string]struct{})}
}

// acquire takes the per-file token. Returns false when another run
// already holds it.
func (l *lockMap) acquire(fileID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[fileID]; taken {
		return false
	}
	l.held[fileID] = struct{}{}
	return true
}

func (l *lockMap) release(fileID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, fileID)
}
