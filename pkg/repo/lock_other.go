//go:build !unix

package repo

import "sync"

var fallbackLocks sync.Map

// lockFile serializes access within the process on platforms without
// flock. Cross-process exclusion still holds through the atomic
// rename commit.
func lockFile(path string) (func(), error) {
	muAny, _ := fallbackLocks.LoadOrStore(path, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock, nil
}
