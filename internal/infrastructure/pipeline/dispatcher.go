package pipeline

import (
	"errors"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"
)

// ErrDispatcherStopped is returned when dispatching to a stopped dispatcher.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// Task is one unit of lane work.
type Task struct {
	LaneKey string
	Run     func()
}

// Dispatcher fans commands out to a fixed pool of serializer lanes. The
// lane is picked by hashing the entity key, so all commands for one entity
// land on the same lane and execute in FIFO order; different entities run
// concurrently across lanes.
type Dispatcher struct {
	lanes  []chan Task
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher with the given lane count and
// per-lane buffer.
func NewDispatcher(lanes, buffer int, logger *zap.Logger) *Dispatcher {
	if lanes < 1 {
		lanes = 1
	}
	d := &Dispatcher{
		lanes:  make([]chan Task, lanes),
		logger: logger,
	}
	for i := range d.lanes {
		d.lanes[i] = make(chan Task, buffer)
	}
	return d
}

// Start launches one worker goroutine per lane
func (d *Dispatcher) Start() {
	for i, lane := range d.lanes {
		d.wg.Add(1)
		go d.work(i, lane)
	}
	d.logger.Info("dispatcher started", zap.Int("lanes", len(d.lanes)))
}

func (d *Dispatcher) work(lane int, tasks <-chan Task) {
	defer d.wg.Done()
	for task := range tasks {
		task.Run()
	}
	d.logger.Debug("lane drained", zap.Int("lane", lane))
}

// Dispatch enqueues a task on its lane. Blocks when the lane buffer is
// full; broker prefetch bounds how much work can pile up here.
func (d *Dispatcher) Dispatch(task Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherStopped
	}
	d.lanes[d.laneFor(task.LaneKey)] <- task
	return nil
}

// Stop closes the lanes and waits for queued tasks to drain
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, lane := range d.lanes {
		close(lane)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

func (d *Dispatcher) laneFor(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.lanes)))
}
