package service

import (
	"context"
	"fmt"
	"sync"
)

type laneJob struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Lane serializes every store write through a single worker. The embedded
// store accepts one writer at a time, so units of work queue here instead of
// contending for the database lock.
type Lane struct {
	queue  chan laneJob
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewLane(queueSize int) *Lane {
	if queueSize <= 0 {
		queueSize = 1
	}
	l := &Lane{queue: make(chan laneJob, queueSize)}
	l.wg.Add(1)
	go l.workerLoop()
	return l
}

// Do queues fn and waits for it. Once fn starts it runs to completion: the
// context it receives is detached from ctx cancellation.
func (l *Lane) Do(ctx context.Context, fn func(context.Context) error) error {
	job := laneJob{
		ctx:  context.WithoutCancel(ctx),
		fn:   fn,
		done: make(chan error, 1),
	}

	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ErrLaneClosed
	}
	select {
	case l.queue <- job:
	case <-ctx.Done():
		l.mu.RUnlock()
		return ctx.Err()
	}
	l.mu.RUnlock()

	return <-job.done
}

func (l *Lane) workerLoop() {
	defer l.wg.Done()
	for job := range l.queue {
		job.done <- runJob(job)
	}
}

func runJob(job laneJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("write lane job panicked: %v", r)
		}
	}()
	return job.fn(job.ctx)
}

// Close stops accepting work, drains queued jobs and waits for the worker.
func (l *Lane) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()
	l.wg.Wait()
}
