// Package cache provides the small in-process caches the HTTP layer puts in
// front of the spreadsheet backend. Reads against a remote spreadsheet are
// slow and quota-bound; listings and snapshots tolerate short staleness.
package cache

import "time"

// Cache is the read-through surface the handlers use.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	// DeletePrefix drops every key starting with prefix; writes use it to
	// invalidate all entries for a partition.
	DeletePrefix(prefix string) int
	Size() int
}

// Sweeper is implemented by caches whose expired entries need periodic
// removal.
type Sweeper interface {
	SweepExpired() int
}

// Janitor runs a background sweep over registered caches.
type Janitor struct {
	caches []Sweeper
	stop   chan struct{}
	done   chan struct{}
}

func NewJanitor() *Janitor {
	return &Janitor{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (j *Janitor) Register(c Sweeper) {
	j.caches = append(j.caches, c)
}

// Start begins sweeping at the given interval until Stop is called.
func (j *Janitor) Start(interval time.Duration) {
	go func() {
		defer close(j.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, c := range j.caches {
					c.SweepExpired()
				}
			case <-j.stop:
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for it to exit.
func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}
