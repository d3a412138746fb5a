package models

import "sync"

// IDGenerator hands out sequential ids starting at 1.
type IDGenerator struct {
	mutex  sync.Mutex
	lastID uint32
}

// Next returns the next id.
func (g *IDGenerator) Next() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.lastID++
	return g.lastID
}

// Last returns the most recently handed out id, or 0 when none was.
func (g *IDGenerator) Last() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return g.lastID
}
