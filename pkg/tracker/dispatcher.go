package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotStarted = errors.New("dispatcher not started")
	ErrQueueFull  = errors.New("dispatcher queue is full")
)

// Sender delivers one submission.
type Sender interface {
	Send(ctx context.Context, sub Submission) error
}

// DispatcherConfig holds configuration for the dispatcher.
type DispatcherConfig struct {
	Workers         int           // Number of worker goroutines
	BufferSize      int           // Size of the queue buffer
	SendTimeout     time.Duration // Timeout for a single delivery
	ShutdownTimeout time.Duration // Time to wait for the queue to drain on Stop
}

// DefaultDispatcherConfig returns sensible defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:         2,
		BufferSize:      100,
		SendTimeout:     10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// DispatcherStats are delivery counters since Start.
type DispatcherStats struct {
	Started       bool
	QueueLength   int
	QueueCapacity int
	Sent          int64
	Failed        int64
	Dropped       int64
}

// Dispatcher delivers submissions in the background. Each submission gets
// one attempt: a failed delivery is logged and dropped, the same as a
// page-unload beacon.
type Dispatcher struct {
	config  DispatcherConfig
	sender  Sender
	log     *zap.Logger
	queue   chan Submission
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.RWMutex

	statsMu sync.Mutex
	stats   DispatcherStats
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(sender Sender, log *zap.Logger, config DispatcherConfig) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		config: config,
		sender: sender,
		log:    log,
		queue:  make(chan Submission, config.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the workers.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return errors.New("dispatcher already started")
	}

	d.log.Debug("starting dispatcher",
		zap.Int("workers", d.config.Workers),
		zap.Int("buffer_size", d.config.BufferSize),
	)
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.started = true
	return nil
}

// Stop closes the queue and waits for queued submissions to be delivered,
// giving up after ShutdownTimeout.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return ErrNotStarted
	}
	d.started = false
	close(d.queue)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.log.Debug("dispatcher stopped")
		return nil
	case <-time.After(d.config.ShutdownTimeout):
		d.cancel()
		d.log.Warn("dispatcher shutdown timeout reached", zap.Int("pending", len(d.queue)))
		return errors.New("shutdown timeout reached")
	}
}

// Submit queues a submission without blocking.
func (d *Dispatcher) Submit(sub Submission) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.started {
		return ErrNotStarted
	}

	select {
	case d.queue <- sub:
		return nil
	default:
		d.count(func(s *DispatcherStats) { s.Dropped++ })
		d.log.Warn("dispatcher queue is full, dropping event", zap.String("type", sub.Type))
		return ErrQueueFull
	}
}

// Emit implements Emitter.
func (d *Dispatcher) Emit(sub Submission) {
	if err := d.Submit(sub); err != nil && !errors.Is(err, ErrQueueFull) {
		d.log.Warn("event not dispatched", zap.String("type", sub.Type), zap.Error(err))
	}
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() DispatcherStats {
	d.mu.RLock()
	started := d.started
	d.mu.RUnlock()

	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	s := d.stats
	s.Started = started
	s.QueueLength = len(d.queue)
	s.QueueCapacity = cap(d.queue)
	return s
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	log := d.log.With(zap.Int("worker_id", id))

	for sub := range d.queue {
		ctx, cancel := context.WithTimeout(d.ctx, d.config.SendTimeout)
		err := d.sender.Send(ctx, sub)
		cancel()

		if err != nil {
			d.count(func(s *DispatcherStats) { s.Failed++ })
			log.Warn("event delivery failed", zap.String("type", sub.Type), zap.Error(err))
			continue
		}
		d.count(func(s *DispatcherStats) { s.Sent++ })
		log.Debug("event delivered", zap.String("type", sub.Type))
	}
}

func (d *Dispatcher) count(f func(*DispatcherStats)) {
	d.statsMu.Lock()
	f(&d.stats)
	d.statsMu.Unlock()
}
