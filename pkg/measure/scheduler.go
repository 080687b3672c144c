package measure

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reflowio/paginate/pkg/document"
)

// KnownFunc reports whether an outcome for (unit, width) already exists
// in the owner's height cache. It is called from the same goroutine
// that calls EnsureMeasured, so the owner may back it with unlocked
// cache reads.
type KnownFunc func(unit document.ItemRef, width float64) bool

// Result is a completed measurement handed back to the scheduler's
// owner.
type Result struct {
	Unit    document.ItemRef
	Width   float64
	Outcome Outcome
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// MaxConcurrent is the maximum number of measurement tasks
	// executing in parallel.
	MaxConcurrent int

	// QueueBuffer sizes the internal task queue.
	QueueBuffer int
}

// DefaultSchedulerConfig returns safe default configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxConcurrent: 2,
		QueueBuffer:   64,
	}
}

// Scheduler issues measurement tasks against a Measurer with bounded
// concurrency and per-key deduplication. Tasks are admitted in
// submission (spine) order; completion order is unspecified.
//
// The scheduler never touches the height cache. Completed outcomes are
// passed to the deliver callback from worker goroutines and the owner
// serializes the hand-off itself.
type Scheduler struct {
	measurer Measurer
	config   SchedulerConfig
	known    KnownFunc
	deliver  func(Result)
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan Key
	wg     sync.WaitGroup

	mu        sync.Mutex
	submitted map[Key]struct{}
}

// NewScheduler creates a scheduler and starts its worker pool. deliver
// must be non-nil; known may be nil if the owner has no cache.
func NewScheduler(m Measurer, config SchedulerConfig, known KnownFunc, deliver func(Result), logger zerolog.Logger) *Scheduler {
	if m == nil {
		panic("measurer cannot be nil")
	}
	if deliver == nil {
		panic("deliver callback cannot be nil")
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 2
	}
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		measurer:  m,
		config:    config,
		known:     known,
		deliver:   deliver,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		queue:     make(chan Key, config.QueueBuffer),
		submitted: make(map[Key]struct{}),
	}

	for i := 0; i < config.MaxConcurrent; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	return s
}

// EnsureMeasured submits a measurement task for every unit that has no
// cached outcome and has not already been submitted at width. Returns
// immediately; results arrive asynchronously via the deliver callback.
// Units are queued in the order given, so admission follows spine
// order as slots free up.
func (s *Scheduler) EnsureMeasured(units document.Spine, width float64) {
	pending := make([]Key, 0, len(units))

	s.mu.Lock()
	for _, unit := range units {
		if s.known != nil && s.known(unit, width) {
			heightCacheHits.Inc()
			continue
		}
		key := Key{Unit: unit, Width: width}
		if _, ok := s.submitted[key]; ok {
			continue
		}
		// Outcomes are terminal, so a key is submitted at most once
		// for the scheduler's lifetime.
		s.submitted[key] = struct{}{}
		heightCacheMisses.Inc()
		pending = append(pending, key)
	}
	s.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	s.logger.Debug().
		Float64("width", width).
		Int("submitted", len(pending)).
		Msg("Measurements submitted")

	// Feed the queue off the caller's goroutine so EnsureMeasured
	// never blocks on a full buffer.
	go func() {
		for _, key := range pending {
			select {
			case s.queue <- key:
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

// Close cancels outstanding measurement tasks and stops the workers.
// Cancelled tasks never deliver an outcome.
func (s *Scheduler) Close() {
	s.cancel()
	s.wg.Wait()
}

// worker executes measurement tasks from the queue.
func (s *Scheduler) worker(workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case key := <-s.queue:
			s.run(workerID, key)
		}
	}
}

func (s *Scheduler) run(workerID int, key Key) {
	measurementsInFlight.Inc()
	start := time.Now()
	height, err := s.measurer.Measure(s.ctx, key.Unit, key.Width)
	duration := time.Since(start)
	measurementsInFlight.Dec()
	measurementDuration.Observe(duration.Seconds())

	// A cancelled task must not surface a partial outcome.
	if s.ctx.Err() != nil {
		s.logger.Debug().
			Int("worker_id", workerID).
			Str("key", key.String()).
			Msg("Measurement discarded (scheduler closed)")
		return
	}

	var out Outcome
	if err != nil {
		out = Outcome{Err: &MeasurementError{Unit: key.Unit, Width: key.Width, Err: err}}
		measurementsTotal.WithLabelValues("failed").Inc()
		s.logger.Warn().
			Err(err).
			Int("worker_id", workerID).
			Str("key", key.String()).
			Dur("duration", duration).
			Msg("Measurement failed")
	} else {
		out = Outcome{Height: height}
		measurementsTotal.WithLabelValues("ok").Inc()
		s.logger.Debug().
			Int("worker_id", workerID).
			Str("key", key.String()).
			Float64("height", height).
			Dur("duration", duration).
			Msg("Measurement complete")
	}

	s.deliver(Result{Unit: key.Unit, Width: key.Width, Outcome: out})
}
