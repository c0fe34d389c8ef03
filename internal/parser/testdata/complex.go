package testdata

import "sync"

// Counter groups a lock with the values it guards.
type Counter struct {
	hits  uint16
	mu    sync.Mutex
	total uint64
	name  string
}
