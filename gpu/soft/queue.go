// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package soft

import (
	"sync"

	"cogentcore.org/pyro/gpu"
)

// submission is one queue operation: a submit or a present.
type submission struct {
	infos []gpu.SubmitInfo
	fence *Fence

	// present, if set, runs instead of infos
	present func()
}

// Queue executes submissions in order, on its own goroutine or,
// in manual mode, when retired.
type Queue struct {
	dev    *Device
	manual bool

	mu      sync.Mutex
	cond    *sync.Cond
	subs    []*submission
	running bool
	closed  bool
}

func newQueue(dev *Device, manual bool) *Queue {
	q := &Queue{dev: dev, manual: manual}
	q.cond = sync.NewCond(&q.mu)
	if !manual {
		go q.run()
	}
	return q
}

// Submit queues the batches for execution.
func (q *Queue) Submit(infos []gpu.SubmitInfo, fence gpu.Fence) error {
	sb := &submission{infos: infos}
	if fence != nil {
		sb.fence = fence.(*Fence)
	}
	for _, in := range infos {
		for _, c := range in.Commands {
			c.(*CommandBuffer).submitted()
		}
	}
	q.dev.count(func(st *Stats) { st.Submissions++ })
	q.push(sb)
	return nil
}

func (q *Queue) push(sb *submission) {
	q.mu.Lock()
	q.subs = append(q.subs, sb)
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *Queue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.subs)
	if q.running {
		n++
	}
	return n
}

func (q *Queue) pop() *submission {
	if len(q.subs) == 0 {
		return nil
	}
	sb := q.subs[0]
	q.subs = q.subs[1:]
	q.running = true
	return sb
}

func (q *Queue) done() {
	q.mu.Lock()
	q.running = false
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *Queue) run() {
	for {
		q.mu.Lock()
		for len(q.subs) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed && len(q.subs) == 0 {
			q.mu.Unlock()
			return
		}
		sb := q.pop()
		q.mu.Unlock()
		q.execute(sb)
		q.done()
	}
}

func (q *Queue) retire() bool {
	q.mu.Lock()
	sb := q.pop()
	q.mu.Unlock()
	if sb == nil {
		return false
	}
	q.execute(sb)
	q.done()
	return true
}

func (q *Queue) waitIdle() {
	q.mu.Lock()
	for len(q.subs) > 0 || q.running {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

func (q *Queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *Queue) execute(sb *submission) {
	if sb.present != nil {
		sb.present()
		return
	}
	for _, in := range sb.infos {
		for _, s := range in.Wait {
			sm := s.(*Semaphore)
			if !sm.consume() {
				q.dev.validate("submission waits on unsignaled semaphore")
			}
		}
		for _, c := range in.Commands {
			c.(*CommandBuffer).execute()
		}
		for _, s := range in.Signal {
			s.(*Semaphore).signal()
		}
	}
	if sb.fence != nil {
		sb.fence.signal()
	}
}
