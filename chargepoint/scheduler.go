package chargepoint

import (
	"context"
	"evcp/internal"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler runs a task periodically. Each tick re-arms a single timer after the task returns,
// and a tick that cannot take the lock within lockTimeout is skipped.
type Scheduler struct {
	name        string
	task        func(ctx context.Context)
	lockTimeout time.Duration
	lock        chan struct{}
	logger      internal.LogHandler
	mutex       sync.Mutex
	ctx         context.Context
	timer       *time.Timer
	interval    time.Duration
	generation  uint64
	running     bool
	suspended   bool
	skipped     atomic.Int64
}

func NewScheduler(name string, interval, lockTimeout time.Duration, task func(ctx context.Context), logger internal.LogHandler) *Scheduler {
	return &Scheduler{
		name:        name,
		task:        task,
		interval:    interval,
		lockTimeout: lockTimeout,
		lock:        make(chan struct{}, 1),
		logger:      logger,
	}
}

// Start arms the first tick; the scheduler stops when ctx is done
func (s *Scheduler) Start(ctx context.Context) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.running {
		return
	}
	s.ctx = ctx
	s.running = true
	if !s.suspended {
		s.arm()
	}
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

func (s *Scheduler) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.running = false
	s.disarm()
}

// Reset changes the interval; the next tick fires one new interval from now
func (s *Scheduler) Reset(interval time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if interval > 0 {
		s.interval = interval
	}
	s.suspended = false
	if s.running {
		s.arm()
	}
}

// Suspend keeps the scheduler but stops firing until Reset or Resume
func (s *Scheduler) Suspend() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.suspended = true
	s.disarm()
}

func (s *Scheduler) Resume() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.suspended {
		return
	}
	s.suspended = false
	if s.running {
		s.arm()
	}
}

func (s *Scheduler) Interval() time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.interval
}

func (s *Scheduler) Suspended() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.suspended
}

// Skipped counts ticks dropped because the previous one still held the lock
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

// Tick runs the task once under the scheduler lock; false when the tick was skipped
func (s *Scheduler) Tick(ctx context.Context) bool {
	wait := time.NewTimer(s.lockTimeout)
	defer wait.Stop()
	select {
	case s.lock <- struct{}{}:
	case <-wait.C:
		s.skipped.Add(1)
		s.logger.Warn(fmt.Sprintf("%s: previous tick still running, tick skipped", s.name))
		return false
	case <-ctx.Done():
		return false
	}
	defer func() { <-s.lock }()
	guard(s.logger, s.name+" task", func() { s.task(ctx) })
	return true
}

// arm must be called with the mutex held
func (s *Scheduler) arm() {
	s.disarm()
	s.generation++
	generation := s.generation
	s.timer = time.AfterFunc(s.interval, func() { s.fire(generation) })
}

// disarm must be called with the mutex held
func (s *Scheduler) disarm() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) fire(generation uint64) {
	s.mutex.Lock()
	if !s.running || s.suspended || generation != s.generation {
		s.mutex.Unlock()
		return
	}
	ctx := s.ctx
	s.mutex.Unlock()

	s.Tick(ctx)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.running && !s.suspended && generation == s.generation {
		s.arm()
	}
}
