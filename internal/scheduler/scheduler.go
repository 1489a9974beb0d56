// Package scheduler runs background work off the request path: bounded
// fallback fetches and periodic maintenance tasks.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("cqlls.scheduler")

var (
	ErrStopped   = errors.New("scheduler: stopped")
	ErrQueueFull = errors.New("scheduler: queue is full")
)

type Task struct {
	Name    string
	Execute func() error
}

type Scheduler struct {
	workers   int
	taskQueue chan Task
	stopChan  chan struct{}
	mu        sync.RWMutex
	stopped   bool
	started   bool
	wg        sync.WaitGroup
}

// NewScheduler creates a Scheduler with the given worker count and queue size.
func NewScheduler(workers int, queueSize int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		workers:   workers,
		taskQueue: make(chan Task, queueSize),
		stopChan:  make(chan struct{}),
	}
}

// RunScheduler starts the workers. Calling it more than once is a no-op.
func (s *Scheduler) RunScheduler() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.work()
	}
}

func (s *Scheduler) work() {
	defer s.wg.Done()
	for {
		select {
		case task := <-s.taskQueue:
			s.execute(task)
		case <-s.stopChan:
			// Drain what was accepted before the stop.
			for {
				select {
				case task := <-s.taskQueue:
					log.Debugf("draining task: %s", task.Name)
					s.execute(task)
				default:
					return
				}
			}
		}
	}
}

func (s *Scheduler) execute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()
	if err := task.Execute(); err != nil {
		log.Warningf("task %s failed: %s", task.Name, err)
	}
}

// Submit enqueues task, waiting for queue space until ctx is done.
func (s *Scheduler) Submit(ctx context.Context, task Task) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return ErrStopped
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit enqueues task only if there is room right now.
func (s *Scheduler) TrySubmit(task Task) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return ErrStopped
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// SchedulePeriodicTask queues task every interval until the scheduler stops.
// A tick is skipped when the queue is full.
func (s *Scheduler) SchedulePeriodicTask(interval time.Duration, task Task) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				switch err := s.TrySubmit(task); {
				case errors.Is(err, ErrStopped):
					return
				case err != nil:
					log.Debugf("skipped scheduling %s: %s", task.Name, err)
				}
			case <-s.stopChan:
				return
			}
		}
	}()
}

// StopScheduler refuses new tasks, runs everything already queued and waits
// for the workers to exit. It is safe to call more than once.
func (s *Scheduler) StopScheduler() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopChan)
	started := s.started
	s.mu.Unlock()

	if !started {
		return
	}
	log.Info("stopping scheduler")
	s.wg.Wait()
	log.Info("scheduler stopped")
}
