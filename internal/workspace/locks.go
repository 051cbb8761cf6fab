package workspace

import (
	"sort"
	"sync"

	"github.com/CageChen/ezworkspace/internal/tree"
)

// dirLocks serializes operations per directory node. Entries are reference
// counted and dropped once no operation holds or waits for them.
type dirLocks struct {
	mu    sync.Mutex
	locks map[*tree.Dir]*dirLock
}

type dirLock struct {
	mu   sync.Mutex
	refs int
}

func newDirLocks() *dirLocks {
	return &dirLocks{locks: make(map[*tree.Dir]*dirLock)}
}

// lock acquires every distinct directory in dirs, ordered by path, and
// returns the matching unlock.
func (l *dirLocks) lock(dirs ...*tree.Dir) func() {
	uniq := make([]*tree.Dir, 0, len(dirs))
	seen := make(map[*tree.Dir]bool, len(dirs))
	for _, d := range dirs {
		if d != nil && !seen[d] {
			seen[d] = true
			uniq = append(uniq, d)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].Path() < uniq[j].Path() })

	held := make([]*dirLock, len(uniq))
	for i, d := range uniq {
		l.mu.Lock()
		dl, ok := l.locks[d]
		if !ok {
			dl = &dirLock{}
			l.locks[d] = dl
		}
		dl.refs++
		l.mu.Unlock()

		dl.mu.Lock()
		held[i] = dl
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()

			l.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.locks, uniq[i])
			}
			l.mu.Unlock()
		}
	}
}
