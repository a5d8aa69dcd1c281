// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package soft

import (
	"sync"
	"time"

	"cogentcore.org/pyro/gpu"
)

// Fence is a channel that is closed when signaled.
type Fence struct {
	mu       sync.Mutex
	ch       chan struct{}
	signaled bool
}

func newFence(signaled bool) *Fence {
	f := &Fence{ch: make(chan struct{})}
	if signaled {
		f.signal()
	}
	return f
}

func (f *Fence) Wait(timeout time.Duration) error {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-time.After(timeout):
		return gpu.ErrTimeout
	}
}

func (f *Fence) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaled {
		f.ch = make(chan struct{})
		f.signaled = false
	}
	return nil
}

func (f *Fence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

func (f *Fence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.signaled {
		f.signaled = true
		close(f.ch)
	}
}

func (f *Fence) Release() {}

// Semaphore is a binary semaphore on the queue timeline. Since the
// queue executes in order, a wait is only valid on a semaphore that an
// earlier operation has already signaled.
type Semaphore struct {
	mu       sync.Mutex
	signaled bool
}

func (s *Semaphore) signal() {
	s.mu.Lock()
	s.signaled = true
	s.mu.Unlock()
}

// consume unsignals the semaphore, returning whether it was signaled.
func (s *Semaphore) consume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.signaled
	s.signaled = false
	return was
}

func (s *Semaphore) Release() {}
