package domain

import "time"

// Executor identifies one running engine instance. Claims carry the executor
// id, and the reclaim sweep uses last_active to spot claims held by a dead
// instance.
type Executor struct {
	ID         int64
	Name       string
	Started    time.Time
	LastActive time.Time
}
