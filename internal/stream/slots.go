package stream

import (
	"errors"
	"sync"
)

var (
	errClientLimit = errors.New("too many concurrent streams from this address")
	errServerLimit = errors.New("server stream capacity reached")
)

// slots caps concurrent streams per client address and across the server.
type slots struct {
	perClient int
	total     int

	mu    sync.Mutex
	held  map[string]int
	inUse int
}

func newSlots(perClient, total int) *slots {
	return &slots{perClient: perClient, total: total, held: make(map[string]int)}
}

// take reserves a stream slot for addr. The returned release frees it and may
// be called more than once.
func (s *slots) take(addr string) (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.inUse >= s.total:
		return nil, errServerLimit
	case s.held[addr] >= s.perClient:
		return nil, errClientLimit
	}
	s.held[addr]++
	s.inUse++

	var once sync.Once
	return func() { once.Do(func() { s.give(addr) }) }, nil
}

func (s *slots) give(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inUse--
	if s.held[addr]--; s.held[addr] <= 0 {
		delete(s.held, addr)
	}
}

// usage returns the slots held by addr and by everyone.
func (s *slots) usage(addr string) (client, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held[addr], s.inUse
}
