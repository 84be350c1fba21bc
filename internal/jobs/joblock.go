package jobs

import "sync"

// jobLocks serializes the upload sub-protocol and job deletion per job ID.
// Entries are reference-counted and removed when the last holder releases,
// so the map does not grow with the number of jobs ever touched.
type jobLocks struct {
	mu    sync.Mutex
	locks map[int64]*jobLock
}

type jobLock struct {
	mu   sync.Mutex
	refs int
}

func newJobLocks() *jobLocks {
	return &jobLocks{locks: make(map[int64]*jobLock)}
}

func (l *jobLocks) lock(jobID int64) {
	l.mu.Lock()
	entry, ok := l.locks[jobID]
	if !ok {
		entry = &jobLock{}
		l.locks[jobID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

func (l *jobLocks) unlock(jobID int64) {
	l.mu.Lock()
	entry := l.locks[jobID]
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, jobID)
	}
	l.mu.Unlock()

	entry.mu.Unlock()
}
