// Package jobs runs work on a fixed pool of goroutines, off the render
// thread.
package jobs

import (
	"errors"
	"sync"

	"github.com/spaghettifunk/anima-hal/engine/core"
)

var (
	ErrNoWorkers           = errors.New("attempting to create worker pool with less than 1 worker")
	ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
	ErrShutdown            = errors.New("job system is shut down")
)

type Job struct {
	Name string
	Run  func() error
	// OnComplete runs on the worker after Run succeeds.
	OnComplete func()
	// OnFailure runs on the worker with the error Run returned.
	OnFailure func(err error)
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan Job
	wg         sync.WaitGroup

	mutex  sync.RWMutex
	closed bool
}

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan Job, channelSize),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job Job) {
	if err := job.Run(); err != nil {
		core.LogError("job %s: %s", job.Name, err)
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
		return
	}
	if job.OnComplete != nil {
		job.OnComplete()
	}
}

/**
 * @brief Queues the job. Blocks while the queue is full.
 */
func (js *JobSystem) Submit(job Job) error {
	js.mutex.RLock()
	defer js.mutex.RUnlock()
	if js.closed {
		return ErrShutdown
	}
	js.jobQueue <- job
	return nil
}

/**
 * @brief Finishes every queued job and stops the workers.
 */
func (js *JobSystem) Shutdown() error {
	js.mutex.Lock()
	if js.closed {
		js.mutex.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.mutex.Unlock()

	js.wg.Wait()
	return nil
}
