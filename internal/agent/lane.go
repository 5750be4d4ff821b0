// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package agent

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

const laneQueueSize = 64

type laneJob struct {
	ctx    context.Context
	fn     func(context.Context) error
	result chan<- error
	done   func() // called once the job has run or been skipped
}

// Lane runs the turns of one chat session one at a time, in the order they
// were submitted.
type Lane struct {
	sessionID string
	logger    *slog.Logger
	jobs      chan laneJob
	stopping  chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// sendMu keeps stop from racing an enqueue: once stopping is closed no
	// job can land in a queue the worker has already drained.
	sendMu sync.RWMutex
}

// NewLane starts the worker for sessionID. Close releases it.
func NewLane(sessionID string, logger *slog.Logger) *Lane {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Lane{
		sessionID: sessionID,
		logger:    logger,
		jobs:      make(chan laneJob, laneQueueSize),
		stopping:  make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go l.work()
	return l
}

func (l *Lane) work() {
	defer close(l.stopped)
	for {
		select {
		case job := <-l.jobs:
			l.run(job)
		case <-l.stopping:
			for {
				select {
				case job := <-l.jobs:
					l.run(job)
				default:
					return
				}
			}
		}
	}
}

func (l *Lane) run(job laneJob) {
	if job.done != nil {
		defer job.done()
	}
	if err := job.ctx.Err(); err != nil {
		job.result <- err
		return
	}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("session turn panicked",
					"session_id", l.sessionID,
					"panic", r,
					"stack", string(debug.Stack()))
				err = aegiserr.Errorf(aegiserr.CodeAgentLoopFailure, "turn panicked: %v", r)
			}
		}()
		err = job.fn(job.ctx)
	}()
	job.result <- err
}

// Submit queues fn behind any earlier work for the session and waits for it.
// fn is skipped when ctx ends before it starts.
func (l *Lane) Submit(ctx context.Context, fn func(context.Context) error) error {
	return l.submit(ctx, fn, nil)
}

// submit calls done exactly once: from the worker when the job was queued,
// otherwise before returning.
func (l *Lane) submit(ctx context.Context, fn func(context.Context) error, done func()) error {
	queued := false
	defer func() {
		if !queued && done != nil {
			done()
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	result := make(chan error, 1)
	if err := l.enqueue(ctx, laneJob{ctx: ctx, fn: fn, result: result, done: done}); err != nil {
		return err
	}
	queued = true

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-result:
		return err
	}
}

func (l *Lane) enqueue(ctx context.Context, job laneJob) error {
	l.sendMu.RLock()
	defer l.sendMu.RUnlock()

	select {
	case <-l.stopping:
		return l.inactive()
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case l.jobs <- job:
		return nil
	}
}

func (l *Lane) inactive() error {
	return aegiserr.New(aegiserr.CodeAgentSessionInactive, "session lane is closed",
		aegiserr.FieldSessionID(l.sessionID))
}

// stop tells the worker to exit once the queue is empty, without waiting.
func (l *Lane) stop() {
	l.closeOnce.Do(func() {
		l.sendMu.Lock()
		close(l.stopping)
		l.sendMu.Unlock()
	})
}

// Close stops accepting work, finishes what is queued and returns once the
// worker has exited. It is safe to call more than once.
func (l *Lane) Close() {
	l.stop()
	<-l.stopped
}

// LanePool runs each session's turns on its own Lane. A lane lives only
// while it has turns queued or running, so one-shot sessions cost nothing
// once they finish.
type LanePool struct {
	logger *slog.Logger

	mu    sync.Mutex
	lanes map[string]*pooledLane
}

type pooledLane struct {
	lane *Lane
	refs int // turns queued or running
}

func NewLanePool(logger *slog.Logger) *LanePool {
	return &LanePool{logger: logger, lanes: make(map[string]*pooledLane)}
}

// Submit runs fn on the lane of sessionID, starting the lane if the session
// has no turn in flight.
func (p *LanePool) Submit(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	pl := p.acquire(sessionID)
	return pl.lane.submit(ctx, fn, func() { p.release(sessionID, pl) })
}

func (p *LanePool) acquire(sessionID string) *pooledLane {
	p.mu.Lock()
	defer p.mu.Unlock()

	pl, ok := p.lanes[sessionID]
	if !ok {
		pl = &pooledLane{lane: NewLane(sessionID, p.logger)}
		p.lanes[sessionID] = pl
	}
	pl.refs++
	return pl
}

// release runs on the lane's own worker, so it must not wait for the lane.
func (p *LanePool) release(sessionID string, pl *pooledLane) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pl.refs--
	if pl.refs > 0 {
		return
	}
	if p.lanes[sessionID] == pl {
		delete(p.lanes, sessionID)
	}
	pl.lane.stop()
}

// Len reports how many sessions have a turn in flight.
func (p *LanePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lanes)
}

// Evict stops the lane of sessionID after its queued turns; later turns for
// the session start a fresh lane.
func (p *LanePool) Evict(sessionID string) {
	p.mu.Lock()
	pl, ok := p.lanes[sessionID]
	delete(p.lanes, sessionID)
	p.mu.Unlock()

	if ok {
		pl.lane.Close()
	}
}

// Close shuts every lane down, waiting for queued turns.
func (p *LanePool) Close() {
	p.mu.Lock()
	lanes := p.lanes
	p.lanes = make(map[string]*pooledLane)
	p.mu.Unlock()

	for _, pl := range lanes {
		pl.lane.Close()
	}
}
