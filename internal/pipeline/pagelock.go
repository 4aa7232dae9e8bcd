package pipeline

import "sync"

// pageLocks hands out one mutex per page so that two jobs never interleave
// appends on the same page. Entries are dropped once nobody holds them.
type pageLocks struct {
	mu    sync.Mutex
	locks map[string]*pageLock
}

type pageLock struct {
	mu   sync.Mutex
	refs int
}

func newPageLocks() *pageLocks {
	return &pageLocks{locks: make(map[string]*pageLock)}
}

// lock blocks until pageID is free and returns its unlock function.
func (p *pageLocks) lock(pageID string) func() {
	p.mu.Lock()
	l, ok := p.locks[pageID]
	if !ok {
		l = &pageLock{}
		p.locks[pageID] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, pageID)
		}
		p.mu.Unlock()
	}
}

func (p *pageLocks) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
