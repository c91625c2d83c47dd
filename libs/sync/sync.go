package sync

/*
// For detecting deadlock situations

import deadlock "github.com/sasha-s/go-deadlock"
import "sync"

type Mutex struct {
	deadlock.Mutex
}

type RWMutex struct {
	deadlock.RWMutex
}

type WaitGroup struct {
	sync.WaitGroup
}
*/

import "sync"

type Mutex struct {
	sync.Mutex
}

type RWMutex struct {
	sync.RWMutex
}
type WaitGroup struct {
	sync.WaitGroup
}

// Closer is a one-shot broadcast signal: Close is safe to call multiple
// times and from multiple goroutines, and every caller of Done observes
// the same closed channel once any one of them calls Close.
type Closer struct {
	once sync.Once
	done chan struct{}
}

func NewCloser() *Closer {
	return &Closer{done: make(chan struct{})}
}

func (c *Closer) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Closer) Done() <-chan struct{} {
	return c.done
}
